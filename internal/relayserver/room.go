package relayserver

import (
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Murmur/internal/domain"
	"github.com/dkeye/Murmur/internal/protocol"
)

// PublishResult reports delivery stats and backpressure to the server.
type PublishResult struct {
	SentTo  int
	Dropped []*Member
}

// Room is a thread safe channel membership within one namespace.
// It never closes member connections.
type Room struct {
	Namespace string
	ID        domain.ChannelID

	mu    sync.RWMutex
	bySID map[string]*Member
}

func NewRoom(namespace string, id domain.ChannelID) *Room {
	return &Room{Namespace: namespace, ID: id, bySID: make(map[string]*Member)}
}

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *Room) AddMember(m *Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySID[m.SID] = m
	log.Info().Str("module", "relay.room").Str("ns", r.Namespace).Str("room", string(r.ID)).Str("sid", m.SID).Msg("member added")
}

func (r *Room) RemoveMember(sid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; !ok {
		return false
	}
	delete(r.bySID, sid)
	log.Info().Str("module", "relay.room").Str("ns", r.Namespace).Str("room", string(r.ID)).Str("sid", sid).Msg("member removed")
	return true
}

// Members returns a snapshot ordered by SID.
func (r *Room) Members() []*Member {
	r.mu.RLock()
	out := make([]*Member, 0, len(r.bySID))
	for _, m := range r.bySID {
		out = append(out, m)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Member) int { return strings.Compare(a.SID, b.SID) })
	return out
}

// Broadcast sends msg to every member except from; from may be empty.
func (r *Room) Broadcast(from string, msg protocol.Message) PublishResult {
	frame, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "relay.room").Msg("broadcast encode")
		return PublishResult{}
	}
	res := PublishResult{}
	for _, m := range r.Members() {
		if m.SID == from {
			continue
		}
		if err := m.conn.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "relay.room").Str("event", string(msg.Event())).Str("from", from).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// Roster lists the room as voice users.
func (r *Room) Roster() []protocol.VoiceUser {
	members := r.Members()
	out := make([]protocol.VoiceUser, 0, len(members))
	for _, m := range members {
		out = append(out, m.voiceUser())
	}
	return out
}
