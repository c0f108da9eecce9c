package relayserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Murmur/internal/adapters/wsconn"
	"github.com/dkeye/Murmur/internal/protocol"
)

func TestMessageStore(t *testing.T) {
	s := NewMessageStore()
	var ids []string
	for _, content := range []string{"1", "2", "3", "4", "5"} {
		ids = append(ids, s.Add("c", protocol.Author{ID: "u"}, content, "").ID)
	}

	contents := func(page []protocol.NewMessage) []string {
		out := make([]string, 0, len(page))
		for _, m := range page {
			out = append(out, m.Content)
		}
		return out
	}

	t.Run("should walk back through history", func(t *testing.T) {
		page, next, err := s.Page("c", "", 2)
		require.NoError(t, err)
		require.Equal(t, []string{"5", "4"}, contents(page))
		require.Equal(t, ids[3], next)

		page, next, err = s.Page("c", next, 2)
		require.NoError(t, err)
		require.Equal(t, []string{"3", "2"}, contents(page))
		require.Equal(t, ids[1], next)

		page, next, err = s.Page("c", next, 2)
		require.NoError(t, err)
		require.Equal(t, []string{"1"}, contents(page))
		require.Empty(t, next)
	})

	t.Run("should fail on an unknown cursor", func(t *testing.T) {
		_, _, err := s.Page("c", "nope", 2)
		require.ErrorIs(t, err, ErrUnknownCursor)
	})

	t.Run("should return an empty page for a new channel", func(t *testing.T) {
		page, next, err := s.Page("other", "", 2)
		require.NoError(t, err)
		require.Empty(t, page)
		require.Empty(t, next)
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("should cap attempts per user within the window", func(t *testing.T) {
		rl := NewRateLimiter(2, time.Hour)
		require.True(t, rl.Allow("a"))
		require.True(t, rl.Allow("a"))
		require.False(t, rl.Allow("a"))
		require.True(t, rl.Allow("b"))
	})

	t.Run("should allow again once the window passes", func(t *testing.T) {
		rl := NewRateLimiter(1, 20*time.Millisecond)
		require.True(t, rl.Allow("a"))
		require.False(t, rl.Allow("a"))
		time.Sleep(30 * time.Millisecond)
		require.True(t, rl.Allow("a"))
	})

	t.Run("should not limit when disabled", func(t *testing.T) {
		rl := NewRateLimiter(0, time.Second)
		for range 10 {
			require.True(t, rl.Allow("a"))
		}
	})
}

func TestRoomBroadcast(t *testing.T) {
	t.Run("should report members whose queue is full", func(t *testing.T) {
		room := NewRoom(protocol.NamespaceVoice, "lobby")
		a := NewMember("a", protocol.NamespaceVoice, wsconn.New(nil, 1), nil)
		b := NewMember("b", protocol.NamespaceVoice, wsconn.New(nil, 4), nil)
		room.AddMember(a)
		room.AddMember(b)

		msg := &protocol.UserSpeaking{UserID: "x"}
		res := room.Broadcast("", msg)
		require.Equal(t, 2, res.SentTo)
		require.Empty(t, res.Dropped)

		res = room.Broadcast("", msg)
		require.Equal(t, 1, res.SentTo)
		require.Equal(t, []*Member{a}, res.Dropped)
	})

	t.Run("should skip the sender", func(t *testing.T) {
		room := NewRoom(protocol.NamespaceVoice, "lobby")
		room.AddMember(NewMember("a", protocol.NamespaceVoice, wsconn.New(nil, 1), nil))
		room.AddMember(NewMember("b", protocol.NamespaceVoice, wsconn.New(nil, 1), nil))

		res := room.Broadcast("a", &protocol.UserSpeaking{UserID: "x"})
		require.Equal(t, 1, res.SentTo)
	})
}
