package chat

import (
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/dkeye/Murmur/internal/domain"
)

// MessageLog is the visible, oldest-first message list of one channel.
// An id appears at most once.
type MessageLog struct {
	mu    sync.RWMutex
	items []domain.ChatMessage
}

func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

func (l *MessageLog) indexOf(id domain.MessageID) int {
	return slices.IndexFunc(l.items, func(m domain.ChatMessage) bool { return m.ID == id })
}

// Append adds msg at the end unless its id is already present.
func (l *MessageLog) Append(msg domain.ChatMessage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.indexOf(msg.ID) >= 0 {
		return false
	}
	l.items = append(l.items, msg)
	return true
}

// Prepend puts an older page, oldest first, in front of the log and
// returns how many messages were new.
func (l *MessageLog) Prepend(older []domain.ChatMessage) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	fresh := lo.UniqBy(older, func(m domain.ChatMessage) domain.MessageID { return m.ID })
	fresh = lo.Filter(fresh, func(m domain.ChatMessage, _ int) bool { return l.indexOf(m.ID) < 0 })
	l.items = append(fresh, l.items...)
	return len(fresh)
}

// Confirm swaps the optimistic entry tempID for its confirmed record in
// place. A copy of the confirmed id that arrived meanwhile is dropped.
// It reports false when tempID is not in the log.
func (l *MessageLog) Confirm(tempID domain.MessageID, confirmed domain.ChatMessage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexOf(tempID)
	if idx < 0 {
		return false
	}
	l.items[idx] = confirmed
	l.items = lo.Reject(l.items, func(m domain.ChatMessage, i int) bool {
		return i != idx && m.ID == confirmed.ID
	})
	return true
}

func (l *MessageLog) SetStatus(id domain.MessageID, status domain.DeliveryStatus) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.indexOf(id)
	if idx < 0 {
		return false
	}
	l.items[idx].Status = status
	return true
}

func (l *MessageLog) Get(id domain.MessageID) (domain.ChatMessage, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.indexOf(id)
	if idx < 0 {
		return domain.ChatMessage{}, false
	}
	return l.items[idx], true
}

func (l *MessageLog) List() []domain.ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *MessageLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}
