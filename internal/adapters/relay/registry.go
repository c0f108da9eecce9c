package relay

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry owns the process-wide relay connections, one per namespace.
// Connections are built on first use and torn down together by Close.
type Registry struct {
	ctx  context.Context
	base Options

	mu      sync.Mutex
	clients map[string]*Client
}

func NewRegistry(ctx context.Context, base Options) *Registry {
	return &Registry{
		ctx:     ctx,
		base:    base,
		clients: make(map[string]*Client),
	}
}

// Channel returns the started client for namespace.
func (r *Registry) Channel(namespace string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[namespace]; ok {
		return c
	}
	opts := r.base
	opts.Namespace = namespace
	c := NewClient(opts)
	c.Start(r.ctx)
	r.clients[namespace] = c
	log.Info().Str("module", "relay.registry").Str("namespace", namespace).Msg("created channel")
	return c
}

func (r *Registry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for ns, c := range clients {
		c.Close()
		log.Info().Str("module", "relay.registry").Str("namespace", ns).Msg("closed channel")
	}
}
