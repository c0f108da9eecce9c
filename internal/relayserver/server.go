// Package relayserver is the development relay: namespaced websocket rooms
// plus the message history endpoints the client expects.
package relayserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Murmur/internal/adapters/wsconn"
	"github.com/dkeye/Murmur/internal/protocol"
)

type Options struct {
	SendBuffer   int
	PingPeriod   time.Duration
	ReadLimit    int64
	RateLimit    int
	RateInterval time.Duration
	PageSize     int
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 65536
	}
	if o.PageSize <= 0 {
		o.PageSize = 50
	}
	return o
}

type Server struct {
	opts     Options
	Rooms    *RoomManager
	Registry *Registry
	Policy   Policy
	Limiter  *RateLimiter
	Store    *MessageStore
}

func NewServer(opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{
		opts:     opts,
		Rooms:    NewRoomManager(),
		Registry: NewRegistry(),
		Policy:   SimplePolicy{},
		Limiter:  NewRateLimiter(opts.RateLimit, opts.RateInterval),
		Store:    NewMessageStore(),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func knownNamespace(ns string) bool {
	return ns == protocol.NamespaceChat || ns == protocol.NamespaceVoice
}

// HandleWS upgrades one namespaced connection and greets it with its SID.
func (s *Server) HandleWS(ctx context.Context, c *gin.Context) {
	ns := c.Param("namespace")
	if !knownNamespace(ns) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown namespace"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("ws upgrade")
		return
	}

	sid := uuid.NewString()
	conn := wsconn.New(ws, s.opts.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	m := NewMember(sid, ns, conn, cancel)
	s.Registry.Bind(m)

	logger := log.With().Str("module", "relay").Str("ns", ns).Str("sid", sid).Logger()
	logger.Info().Str("client", c.GetString("client_token")).Msg("new WS connection")

	_ = m.Send(&protocol.Hello{ID: sid})

	go conn.WritePump(ctx, s.opts.PingPeriod, &logger)
	go s.readPump(ctx, m)
}

func (s *Server) readPump(ctx context.Context, m *Member) {
	logger := log.With().Str("module", "relay").Str("ns", m.Namespace).Str("sid", m.SID).Logger()
	defer func() {
		logger.Info().Msg("readPump closing")
		s.disconnect(m)
	}()

	ws := m.conn.Socket()
	pongWait := s.opts.PingPeriod * 10 / 9
	ws.SetReadLimit(s.opts.ReadLimit)
	extend := func() { _ = ws.SetReadDeadline(time.Now().Add(pongWait)) }
	extend()
	ws.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	ws.SetPingHandler(func(appData string) error {
		extend()
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(wsconn.WriteWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("readPump read error")
			}
			return
		}
		extend()

		msg, err := protocol.Decode(data)
		if err != nil {
			logger.Warn().Err(err).Msg("bad frame")
			continue
		}
		s.handle(m, msg)
	}
}

func (s *Server) handle(m *Member, msg protocol.Message) {
	switch m.Namespace {
	case protocol.NamespaceChat:
		s.handleChat(m, msg)
	case protocol.NamespaceVoice:
		s.handleVoice(m, msg)
	}
}

// publish broadcasts and applies the backpressure policy to lagging members.
func (s *Server) publish(room *Room, from string, msg protocol.Message) int {
	res := room.Broadcast(from, msg)
	for _, lagging := range res.Dropped {
		if s.Policy.OnBackPressure(room, lagging) == KickMember {
			log.Warn().Str("module", "relay").Str("sid", lagging.SID).Str("room", string(room.ID)).Msg("kicking slow member")
			lagging.Kick()
		}
	}
	return res.SentTo
}

// sendTo delivers to one member under the same policy as publish.
func (s *Server) sendTo(target *Member, msg protocol.Message) {
	if err := target.Send(msg); err != nil {
		log.Warn().Err(err).Str("module", "relay").Str("sid", target.SID).Str("event", string(msg.Event())).Msg("send failed")
		if errors.Is(err, wsconn.ErrBackpressure) && s.Policy.OnBackPressure(nil, target) == KickMember {
			target.Kick()
		}
	}
}

// enter moves m into the channel, leaving any other one first.
// The returned previous room is nil when m had none or stayed.
func (s *Server) enter(m *Member, id string) (room, previous *Room) {
	if cur := m.Room(); cur != "" && string(cur) != id {
		previous = s.exit(m)
	}
	room = s.Rooms.Join(m.Namespace, channelID(id), m)
	m.SetRoom(room.ID)
	return room, previous
}

func (s *Server) exit(m *Member) *Room {
	id := m.Room()
	if id == "" {
		return nil
	}
	m.SetRoom("")
	room, ok := s.Rooms.Leave(m.Namespace, id, m.SID)
	if !ok {
		return nil
	}
	return room
}

func (s *Server) disconnect(m *Member) {
	s.Registry.Unbind(m.SID)
	if room := s.exit(m); room != nil && m.Namespace == protocol.NamespaceVoice {
		s.announceLeft(room, m)
	}
	m.Kick()
}

// roomOf returns the member's room when it is the named channel.
func (s *Server) roomOf(m *Member, id string) (*Room, bool) {
	if string(m.Room()) != id {
		return nil, false
	}
	return s.Rooms.Get(m.Namespace, channelID(id))
}
