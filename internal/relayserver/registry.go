package relayserver

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry indexes live connections by SID for addressed routing.
type Registry struct {
	mu      sync.RWMutex
	members map[string]*Member
}

func NewRegistry() *Registry {
	return &Registry{members: make(map[string]*Member)}
}

func (r *Registry) Bind(m *Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.SID] = m
	log.Info().Str("module", "relay.registry").Str("sid", m.SID).Str("ns", m.Namespace).Msg("bound member")
}

func (r *Registry) Unbind(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, sid)
	log.Info().Str("module", "relay.registry").Str("sid", sid).Msg("unbind member")
}

func (r *Registry) Get(sid string) (*Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[sid]
	return m, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
