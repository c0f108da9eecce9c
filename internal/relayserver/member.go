package relayserver

import (
	"context"
	"sync"

	"github.com/dkeye/Murmur/internal/adapters/wsconn"
	"github.com/dkeye/Murmur/internal/domain"
	"github.com/dkeye/Murmur/internal/protocol"
)

// Member is one relay connection in one namespace. SID is its
// connection-scoped identity; the user identity arrives with the first join.
type Member struct {
	SID       string
	Namespace string
	conn      *wsconn.Conn
	cancel    context.CancelFunc

	mu       sync.RWMutex
	userID   domain.UserID
	username string
	room     domain.ChannelID
}

func NewMember(sid, namespace string, conn *wsconn.Conn, cancel context.CancelFunc) *Member {
	return &Member{SID: sid, Namespace: namespace, conn: conn, cancel: cancel}
}

func (m *Member) Identity() (domain.UserID, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID, m.username
}

func (m *Member) SetIdentity(id domain.UserID, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userID = id
	m.username = username
}

func (m *Member) Room() domain.ChannelID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.room
}

func (m *Member) SetRoom(id domain.ChannelID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.room = id
}

func (m *Member) Send(msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return m.conn.TrySend(frame)
}

// Kick ends the connection; the read loop performs the cleanup.
func (m *Member) Kick() {
	if m.cancel != nil {
		m.cancel()
	}
	m.conn.Close()
}

func (m *Member) voiceUser() protocol.VoiceUser {
	id, name := m.Identity()
	return protocol.VoiceUser{SocketID: m.SID, UserID: string(id), Username: name}
}
