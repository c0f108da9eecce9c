package wsconn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const WriteWait = 5 * time.Second

// Conn is one websocket with a bounded send queue drained by WritePump.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte

	// CloseFrame sends a normal closure before WritePump returns on ctx done.
	CloseFrame bool

	mu     sync.RWMutex
	closed bool
}

func New(ws *websocket.Conn, buffer int) *Conn {
	return &Conn{ws: ws, send: make(chan []byte, buffer)}
}

// Socket is the underlying websocket for the read side.
func (c *Conn) Socket() *websocket.Conn {
	return c.ws
}

// TrySend never blocks; a full queue is reported as ErrBackpressure.
func (c *Conn) TrySend(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- frame:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	if c.ws != nil {
		_ = c.ws.Close()
	}
}

func (c *Conn) WritePump(ctx context.Context, ping time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(ping)
	defer ticker.Stop()
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("writePump ctx done")
			if c.CloseFrame {
				_ = c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(WriteWait))
			}
			return
		case frame, ok := <-c.send:
			if !ok {
				logger.Debug().Msg("writePump channel closed")
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(WriteWait)); err != nil {
				logger.Error().Err(err).Msg("writePump set deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Error().Err(err).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteWait)); err != nil {
				logger.Warn().Err(err).Msg("writePump ping failed")
				return
			}
		}
	}
}
