package core

import "github.com/dkeye/Murmur/internal/protocol"

// Handler receives decoded relay messages in arrival order.
type Handler func(protocol.Message)

// EventChannel is one namespaced, reconnecting connection to the relay.
// Owned by the adapter registry; coordinators only borrow it.
type EventChannel interface {
	// ID is the relay-assigned identity of the current connection, "" while offline.
	ID() string
	// Emit is fire-and-forget; it fails fast when the channel is offline.
	Emit(protocol.Message) error
	Subscribe(event protocol.Event, h Handler) (unsubscribe func())
	// OnConnect registers a hook run after every (re)connection.
	OnConnect(func()) (unsubscribe func())
}
