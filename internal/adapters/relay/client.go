package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/dkeye/Murmur/internal/adapters/wsconn"
	"github.com/dkeye/Murmur/internal/core"
	"github.com/dkeye/Murmur/internal/protocol"
)

var ErrNotConnected = errors.New("relay not connected")

type Options struct {
	// URL is the relay websocket base, the namespace is appended as a path segment.
	URL          string
	Namespace    string
	PingPeriod   time.Duration
	ReadLimit    int64
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	SendBuffer   int
}

func (o Options) withDefaults() Options {
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 65536
	}
	if o.ReconnectMin <= 0 {
		o.ReconnectMin = 500 * time.Millisecond
	}
	if o.ReconnectMax < o.ReconnectMin {
		o.ReconnectMax = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	return o
}

func (o Options) endpoint() string {
	return strings.TrimRight(o.URL, "/") + "/" + o.Namespace
}

// Client is a reconnecting, namespaced event channel. Handlers run on the
// read goroutine one at a time, in arrival order.
type Client struct {
	opts   Options
	dialer *websocket.Dialer
	logger zerolog.Logger

	mu      sync.RWMutex
	conn    *wsconn.Conn
	id      string
	subs    map[protocol.Event]map[uint64]core.Handler
	hooks   map[uint64]func()
	nextKey uint64

	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
}

var _ core.EventChannel = (*Client)(nil)

func NewClient(opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		opts:   opts,
		dialer: websocket.DefaultDialer,
		logger: log.With().Str("module", "relay").Str("namespace", opts.Namespace).Logger(),
		subs:   make(map[protocol.Event]map[uint64]core.Handler),
		hooks:  make(map[uint64]func()),
		done:   make(chan struct{}),
	}
}

// Start launches the connect loop; it returns immediately.
func (c *Client) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		c.mu.Lock()
		c.cancel = cancel
		c.mu.Unlock()
		go c.run(ctx)
	})
}

// Close stops reconnecting and tears the current connection down.
func (c *Client) Close() {
	c.mu.RLock()
	cancel := c.cancel
	c.mu.RUnlock()
	if cancel == nil {
		return
	}
	cancel()
	<-c.done
}

func (c *Client) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

func (c *Client) Connected() bool {
	return c.ID() != ""
}

func (c *Client) Emit(msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	c.mu.RLock()
	conn, id := c.conn, c.id
	c.mu.RUnlock()
	if conn == nil || id == "" {
		return ErrNotConnected
	}
	if err := conn.TrySend(frame); err != nil {
		if errors.Is(err, wsconn.ErrClosed) {
			return ErrNotConnected
		}
		return fmt.Errorf("emit %s: %w", msg.Event(), err)
	}
	return nil
}

func (c *Client) Subscribe(event protocol.Event, h core.Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextKey++
	key := c.nextKey
	if c.subs[event] == nil {
		c.subs[event] = make(map[uint64]core.Handler)
	}
	c.subs[event][key] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[event], key)
	}
}

func (c *Client) OnConnect(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextKey++
	key := c.nextKey
	c.hooks[key] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.hooks, key)
	}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	for {
		ws, err := c.dial(ctx)
		if err != nil {
			c.logger.Info().Err(err).Msg("connect loop stopped")
			return
		}
		c.serve(ctx, ws)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn().Msg("relay connection lost, reconnecting")
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	b := retry.NewExponential(c.opts.ReconnectMin)
	b = retry.WithCappedDuration(c.opts.ReconnectMax, b)
	b = retry.WithJitterPercent(10, b)

	var ws *websocket.Conn
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		conn, _, err := c.dialer.DialContext(ctx, c.opts.endpoint(), nil)
		if err != nil {
			c.logger.Debug().Err(err).Str("url", c.opts.endpoint()).Msg("dial failed")
			return retry.RetryableError(err)
		}
		ws = conn
		return nil
	})
	return ws, err
}

// serve pumps one connection until it drops.
func (c *Client) serve(ctx context.Context, ws *websocket.Conn) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn := wsconn.New(ws, c.opts.SendBuffer)
	conn.CloseFrame = true
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn, c.id = nil, ""
		c.mu.Unlock()
		conn.Close()
	}()

	go conn.WritePump(connCtx, c.opts.PingPeriod, &c.logger)

	pongWait := c.opts.PingPeriod * 10 / 9
	ws.SetReadLimit(c.opts.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("read error")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		msg, err := protocol.Decode(data)
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownEvent) {
				c.logger.Debug().Err(err).Msg("ignoring frame")
			} else {
				c.logger.Error().Err(err).Msg("bad frame")
			}
			continue
		}
		if hello, ok := msg.(*protocol.Hello); ok {
			c.connected(hello.ID)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) connected(id string) {
	c.mu.Lock()
	c.id = id
	hooks := make([]func(), 0, len(c.hooks))
	for _, h := range c.hooks {
		hooks = append(hooks, h)
	}
	c.mu.Unlock()

	c.logger.Info().Str("sid", id).Msg("connected")
	for _, h := range hooks {
		h()
	}
}

func (c *Client) dispatch(msg protocol.Message) {
	c.mu.RLock()
	handlers := make([]core.Handler, 0, len(c.subs[msg.Event()]))
	for _, h := range c.subs[msg.Event()] {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}
