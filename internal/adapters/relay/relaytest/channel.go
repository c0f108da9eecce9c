// Package relaytest provides an in-memory core.EventChannel for tests.
package relaytest

import (
	"errors"
	"sync"

	"github.com/dkeye/Murmur/internal/core"
	"github.com/dkeye/Murmur/internal/protocol"
)

var ErrOffline = errors.New("relaytest: offline")

// Channel records every Emit and lets tests Deliver inbound events.
// Delivery runs handlers synchronously on the caller's goroutine.
type Channel struct {
	mu      sync.Mutex
	id      string
	offline bool
	emitted []protocol.Message
	subs    map[protocol.Event]map[uint64]core.Handler
	hooks   map[uint64]func()
	onEmit  func(protocol.Message)
	nextKey uint64
}

var _ core.EventChannel = (*Channel)(nil)

func New(id string) *Channel {
	return &Channel{
		id:    id,
		subs:  make(map[protocol.Event]map[uint64]core.Handler),
		hooks: make(map[uint64]func()),
	}
}

func (c *Channel) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offline {
		return ""
	}
	return c.id
}

func (c *Channel) Emit(msg protocol.Message) error {
	c.mu.Lock()
	if c.offline {
		c.mu.Unlock()
		return ErrOffline
	}
	c.emitted = append(c.emitted, msg)
	hook := c.onEmit
	c.mu.Unlock()

	if hook != nil {
		hook(msg)
	}
	return nil
}

func (c *Channel) Subscribe(event protocol.Event, h core.Handler) func() {
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

func (c *Channel) OnConnect(fn func()) func() {
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

// OnEmit installs a hook called after every successful Emit.
func (c *Channel) OnEmit(fn func(protocol.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEmit = fn
}

// Deliver hands msg to the current subscribers of its event.
func (c *Channel) Deliver(msg protocol.Message) {
	c.mu.Lock()
	handlers := make([]core.Handler, 0, len(c.subs[msg.Event()]))
	for _, h := range c.subs[msg.Event()] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

// SetOffline makes Emit fail until Reconnect.
func (c *Channel) SetOffline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offline = true
}

// Reconnect assigns a new connection id and runs the connect hooks.
func (c *Channel) Reconnect(id string) {
	c.mu.Lock()
	c.id = id
	c.offline = false
	hooks := make([]func(), 0, len(c.hooks))
	for _, h := range c.hooks {
		hooks = append(hooks, h)
	}
	c.mu.Unlock()

	for _, h := range hooks {
		h()
	}
}

func (c *Channel) Subscribers(event protocol.Event) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[event])
}

func (c *Channel) Emitted() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Message(nil), c.emitted...)
}

func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitted = nil
}

// Emitted returns the recorded messages of type T, in emit order.
func Emitted[T protocol.Message](c *Channel) []T {
	var out []T
	for _, m := range c.Emitted() {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
