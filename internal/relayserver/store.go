package relayserver

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkeye/Murmur/internal/domain"
	"github.com/dkeye/Murmur/internal/protocol"
)

var ErrUnknownCursor = errors.New("unknown cursor")

// MessageStore keeps channel history in memory, oldest first.
type MessageStore struct {
	mu        sync.RWMutex
	byChannel map[domain.ChannelID][]protocol.NewMessage
}

func NewMessageStore() *MessageStore {
	return &MessageStore{byChannel: make(map[domain.ChannelID][]protocol.NewMessage)}
}

func (s *MessageStore) Add(channelID domain.ChannelID, author protocol.Author, content, socketID string) protocol.NewMessage {
	msg := protocol.NewMessage{
		ID:        uuid.NewString(),
		ChannelID: string(channelID),
		Content:   content,
		User:      author,
		CreatedAt: time.Now().UTC(),
		SocketID:  socketID,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byChannel[channelID] = append(s.byChannel[channelID], msg)
	return msg
}

// Page returns up to limit messages older than cursor, newest first, and
// the cursor of the next older page ("" when exhausted).
func (s *MessageStore) Page(channelID domain.ChannelID, cursor string, limit int) ([]protocol.NewMessage, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.byChannel[channelID]

	end := len(msgs)
	if cursor != "" {
		end = slices.IndexFunc(msgs, func(m protocol.NewMessage) bool { return m.ID == cursor })
		if end < 0 {
			return nil, "", ErrUnknownCursor
		}
	}
	start := max(0, end-limit)
	page := slices.Clone(msgs[start:end])
	slices.Reverse(page)

	next := ""
	if start > 0 {
		next = msgs[start].ID
	}
	return page, next, nil
}
