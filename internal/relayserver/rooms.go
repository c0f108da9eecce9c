package relayserver

import (
	"sync"

	"github.com/dkeye/Murmur/internal/domain"
)

type roomKey struct {
	namespace string
	id        domain.ChannelID
}

type RoomInfo struct {
	Namespace   string           `json:"namespace"`
	ID          domain.ChannelID `json:"id"`
	MemberCount int              `json:"memberCount"`
}

type RoomManager struct {
	mu    sync.RWMutex
	rooms map[roomKey]*Room
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[roomKey]*Room)}
}

func (f *RoomManager) Get(namespace string, id domain.ChannelID) (*Room, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[roomKey{namespace, id}]
	return room, ok
}

func (f *RoomManager) List() []RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]RoomInfo, 0, len(f.rooms))
	for key, r := range f.rooms {
		out = append(out, RoomInfo{Namespace: key.namespace, ID: key.id, MemberCount: r.MemberCount()})
	}
	return out
}

// Join adds m to the room, creating it on first use.
func (f *RoomManager) Join(namespace string, id domain.ChannelID, m *Member) *Room {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := roomKey{namespace, id}
	room, ok := f.rooms[key]
	if !ok {
		room = NewRoom(namespace, id)
		f.rooms[key] = room
	}
	room.AddMember(m)
	return room
}

// Leave removes the member and drops the room once nobody is in it.
func (f *RoomManager) Leave(namespace string, id domain.ChannelID, sid string) (*Room, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := roomKey{namespace, id}
	room, ok := f.rooms[key]
	if !ok || !room.RemoveMember(sid) {
		return nil, false
	}
	if room.MemberCount() == 0 {
		delete(f.rooms, key)
	}
	return room, true
}
