package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Murmur/internal/domain"
)

func TestMessageLog(t *testing.T) {
	t.Run("should refuse duplicate ids", func(t *testing.T) {
		l := NewMessageLog()
		require.True(t, l.Append(domain.ChatMessage{ID: "a"}))
		require.False(t, l.Append(domain.ChatMessage{ID: "a"}))
		require.Equal(t, 1, l.Len())
	})

	t.Run("should confirm at the temporary position", func(t *testing.T) {
		l := NewMessageLog()
		l.Append(domain.ChatMessage{ID: "a"})
		l.Append(domain.ChatMessage{ID: "temp-1"})
		l.Append(domain.ChatMessage{ID: "b"})

		l.Confirm("temp-1", domain.ChatMessage{ID: "b", Status: domain.StatusDelivered})
		require.Equal(t, []domain.MessageID{"a", "b"}, ids(l.List()))
		got, ok := l.Get("b")
		require.True(t, ok)
		require.Equal(t, domain.StatusDelivered, got.Status)
	})

	t.Run("should ignore a confirmation whose temporary entry is gone", func(t *testing.T) {
		l := NewMessageLog()
		l.Append(domain.ChatMessage{ID: "a"})
		require.False(t, l.Confirm("temp-x", domain.ChatMessage{ID: "c"}))
		require.Equal(t, []domain.MessageID{"a"}, ids(l.List()))
	})

	t.Run("should prepend only unseen messages", func(t *testing.T) {
		l := NewMessageLog()
		l.Append(domain.ChatMessage{ID: "b"})
		n := l.Prepend([]domain.ChatMessage{{ID: "a"}, {ID: "a"}, {ID: "b"}})
		require.Equal(t, 1, n)
		require.Equal(t, []domain.MessageID{"a", "b"}, ids(l.List()))
	})
}

func TestTypingRoster(t *testing.T) {
	t.Run("should never expire a name before its window", func(t *testing.T) {
		var mu sync.Mutex
		var removedAt time.Time
		start := time.Now()
		r := NewTypingRoster(80*time.Millisecond, func(names []string) {
			if len(names) == 0 {
				mu.Lock()
				removedAt = time.Now()
				mu.Unlock()
			}
		})
		r.Touch("Bob")

		require.Eventually(t, func() bool { return len(r.Names()) == 0 }, time.Second, time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		require.GreaterOrEqual(t, removedAt.Sub(start), 80*time.Millisecond)
	})

	t.Run("should let only the latest timer remove a refreshed name", func(t *testing.T) {
		r := NewTypingRoster(50*time.Millisecond, nil)
		for range 5 {
			r.Touch("Bob")
			time.Sleep(20 * time.Millisecond)
		}
		require.Equal(t, []string{"Bob"}, r.Names())
		require.Eventually(t, func() bool { return len(r.Names()) == 0 }, time.Second, time.Millisecond)
	})

	t.Run("should clear without waiting", func(t *testing.T) {
		r := NewTypingRoster(time.Hour, nil)
		r.Touch("A")
		r.Touch("B")
		require.Equal(t, []string{"A", "B"}, r.Names())
		r.Clear()
		require.Empty(t, r.Names())
	})
}

func TestTypingLabel(t *testing.T) {
	require.Equal(t, "", TypingLabel(nil))
	require.Equal(t, "Ann is typing", TypingLabel([]string{"Ann"}))
	require.Equal(t, "Ann, Bob are typing", TypingLabel([]string{"Ann", "Bob"}))
	require.Equal(t, "Ann, Bob and others are typing", TypingLabel([]string{"Ann", "Bob", "Cid"}))
}
