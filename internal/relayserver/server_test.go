package relayserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Murmur/internal/config"
	"github.com/dkeye/Murmur/internal/protocol"
)

type peer struct {
	t    *testing.T
	conn *websocket.Conn
	sid  string
}

func startRelay(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := NewServer(Options{PingPeriod: 5 * time.Second})
	ts := httptest.NewServer(SetupRouter(ctx, config.Default(), srv))
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, ns string) *peer {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + ns
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	p := &peer{t: t, conn: conn}
	hello := p.next(protocol.Connected).(*protocol.Hello)
	p.sid = hello.ID
	return p
}

func (p *peer) send(msg protocol.Message) {
	p.t.Helper()
	frame, err := protocol.Encode(msg)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, frame))
}

// next skips frames until one carries the event.
func (p *peer) next(event protocol.Event) protocol.Message {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := p.conn.ReadMessage()
		require.NoError(p.t, err)
		msg, err := protocol.Decode(data)
		require.NoError(p.t, err)
		if msg.Event() == event {
			return msg
		}
	}
}

func sids(users []protocol.VoiceUser) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.SocketID)
	}
	return out
}

func joinVoice(p *peer, channel, user, name string) {
	p.send(&protocol.VoiceJoinPayload{Membership: protocol.Membership{ChannelID: channel, UserID: user, Username: name}})
}

func TestVoiceRelay(t *testing.T) {
	t.Run("should announce joins and push the roster", func(t *testing.T) {
		_, ts := startRelay(t)
		a := dial(t, ts, protocol.NamespaceVoice)
		b := dial(t, ts, protocol.NamespaceVoice)
		require.NotEqual(t, a.sid, b.sid)

		joinVoice(a, "lobby", "ua", "Ann")
		roster := a.next(protocol.VoiceUsers).(*protocol.Roster)
		require.Equal(t, []string{a.sid}, sids(roster.Users))

		joinVoice(b, "lobby", "ub", "Bob")
		joined := a.next(protocol.VoiceUserJoined).(*protocol.UserJoined)
		require.Equal(t, protocol.VoiceUser{SocketID: b.sid, UserID: "ub", Username: "Bob"}, joined.User)

		roster = a.next(protocol.VoiceUsers).(*protocol.Roster)
		require.ElementsMatch(t, []string{a.sid, b.sid}, sids(roster.Users))
		roster = b.next(protocol.VoiceUsers).(*protocol.Roster)
		require.Equal(t, "lobby", roster.ChannelID)
		require.ElementsMatch(t, []string{a.sid, b.sid}, sids(roster.Users))
	})

	t.Run("should route signaling with the sender stamped", func(t *testing.T) {
		_, ts := startRelay(t)
		a := dial(t, ts, protocol.NamespaceVoice)
		b := dial(t, ts, protocol.NamespaceVoice)

		a.send(&protocol.Candidate{Route: protocol.Route{To: b.sid, From: "forged"}})
		cand := b.next(protocol.WebRTCCandidate).(*protocol.Candidate)
		require.Equal(t, a.sid, cand.From)
		require.Equal(t, b.sid, cand.To)
	})

	t.Run("should announce a disconnect with both identities", func(t *testing.T) {
		srv, ts := startRelay(t)
		a := dial(t, ts, protocol.NamespaceVoice)
		b := dial(t, ts, protocol.NamespaceVoice)

		joinVoice(a, "lobby", "ua", "Ann")
		a.next(protocol.VoiceUsers)
		joinVoice(b, "lobby", "ub", "Bob")
		b.next(protocol.VoiceUsers)

		require.NoError(t, b.conn.Close())

		left := a.next(protocol.VoiceUserLeft).(*protocol.UserLeft)
		require.Equal(t, b.sid, left.SocketID)
		require.Equal(t, "ub", left.UserID)
		roster := a.next(protocol.VoiceUsers).(*protocol.Roster)
		require.Equal(t, []string{a.sid}, sids(roster.Users))

		require.Eventually(t, func() bool {
			_, ok := srv.Registry.Get(b.sid)
			return !ok
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("should forward speaking to the other members", func(t *testing.T) {
		_, ts := startRelay(t)
		a := dial(t, ts, protocol.NamespaceVoice)
		b := dial(t, ts, protocol.NamespaceVoice)
		joinVoice(a, "lobby", "ua", "Ann")
		a.next(protocol.VoiceUsers)
		joinVoice(b, "lobby", "ub", "Bob")
		b.next(protocol.VoiceUsers)

		a.send(&protocol.Speaking{ChannelID: "lobby", UserID: "ua", IsSpeaking: true})
		got := b.next(protocol.VoiceUserSpeaking).(*protocol.UserSpeaking)
		require.Equal(t, protocol.UserSpeaking{ChannelID: "lobby", UserID: "ua", IsSpeaking: true}, *got)
	})
}

func TestChatRelay(t *testing.T) {
	joinChat := func(t *testing.T, srv *Server, peers ...*peer) {
		for i, p := range peers {
			p.send(&protocol.ChannelJoinPayload{Membership: protocol.Membership{ChannelID: "general", UserID: "u" + string(rune('a'+i))}})
		}
		require.Eventually(t, func() bool {
			room, ok := srv.Rooms.Get(protocol.NamespaceChat, "general")
			return ok && room.MemberCount() == len(peers)
		}, 2*time.Second, 10*time.Millisecond)
	}

	t.Run("should broadcast a sent message to the whole channel", func(t *testing.T) {
		srv, ts := startRelay(t)
		a := dial(t, ts, protocol.NamespaceChat)
		b := dial(t, ts, protocol.NamespaceChat)
		joinChat(t, srv, a, b)

		a.send(&protocol.SendMessage{ChannelID: "general", Content: "hi", UserID: "ua", Username: "Ann"})

		for _, p := range []*peer{a, b} {
			msg := p.next(protocol.MessageNew).(*protocol.NewMessage)
			require.Equal(t, "hi", msg.Content)
			require.Equal(t, a.sid, msg.SocketID)
			require.Equal(t, protocol.Author{ID: "ua", Username: "Ann"}, msg.User)
		}
	})

	t.Run("should forward typing to the others", func(t *testing.T) {
		srv, ts := startRelay(t)
		a := dial(t, ts, protocol.NamespaceChat)
		b := dial(t, ts, protocol.NamespaceChat)
		joinChat(t, srv, a, b)

		a.send(&protocol.Typing{ChannelID: "general", UserID: "ua", Username: "Ann", IsTyping: true})
		got := b.next(protocol.UserTyping).(*protocol.UserTypingPayload)
		require.Equal(t, "Ann", got.Username)
		require.True(t, got.IsTyping)
	})

	t.Run("should broadcast messages posted over http", func(t *testing.T) {
		srv, ts := startRelay(t)
		a := dial(t, ts, protocol.NamespaceChat)
		joinChat(t, srv, a)

		body := []byte(`{"userId":"ub","username":"Bob","content":"hello","socketId":"x1"}`)
		resp, err := http.Post(ts.URL+"/channels/general/messages", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var created struct {
			Data protocol.NewMessage `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
		require.NotEmpty(t, created.Data.ID)

		msg := a.next(protocol.MessageNew).(*protocol.NewMessage)
		require.Equal(t, created.Data.ID, msg.ID)
		require.Equal(t, "x1", msg.SocketID)
	})
}

func TestHTTP(t *testing.T) {
	t.Run("should reject unknown namespaces", func(t *testing.T) {
		_, ts := startRelay(t)
		resp, err := http.Get(ts.URL + "/ws/video")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("should reject posts without content", func(t *testing.T) {
		_, ts := startRelay(t)
		resp, err := http.Post(ts.URL+"/channels/general/messages", "application/json", strings.NewReader(`{"userId":"u"}`))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("should page history newest first", func(t *testing.T) {
		srv, ts := startRelay(t)
		for _, content := range []string{"one", "two", "three"} {
			srv.Post("general", protocol.Author{ID: "u"}, content, "")
		}

		resp, err := http.Get(ts.URL + "/channels/general/messages?limit=2")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var page messagePage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
		require.Len(t, page.Items, 2)
		require.Equal(t, "three", page.Items[0].Content)
		require.Equal(t, page.Items[1].ID, page.NextCursor)
	})

	t.Run("should list active rooms", func(t *testing.T) {
		srv, ts := startRelay(t)
		a := dial(t, ts, protocol.NamespaceVoice)
		joinVoice(a, "lobby", "ua", "Ann")
		a.next(protocol.VoiceUsers)
		require.Equal(t, 1, srv.Registry.Len())

		resp, err := http.Get(ts.URL + "/api/rooms")
		require.NoError(t, err)
		defer resp.Body.Close()

		var rooms []RoomInfo
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
		require.Equal(t, []RoomInfo{{Namespace: protocol.NamespaceVoice, ID: "lobby", MemberCount: 1}}, rooms)
	})
}
