package voice

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/Murmur/internal/core"
	"github.com/dkeye/Murmur/internal/core/mocks"
)

func noEvents() LinkEvents {
	return LinkEvents{
		OnDescription: func(string, webrtc.SessionDescription) {},
		OnCandidate:   func(string, webrtc.ICECandidateInit) {},
		OnTrack:       func(string, core.RemoteStream) {},
		OnClosed:      func(*Link) {},
	}
}

func expectWiring(conn *mocks.MockMediaConnection) {
	conn.EXPECT().OnICECandidate(gomock.Any())
	conn.EXPECT().OnTrack(gomock.Any())
	conn.EXPECT().OnClosed(gomock.Any())
}

func TestManager(t *testing.T) {
	t.Run("should attach local tracks before the offer and build each link once", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		conn := mocks.NewMockMediaConnection(ctrl)
		factory := mocks.NewMockMediaFactory(ctrl)
		local := newFakeLocal()

		factory.EXPECT().NewConnection("b").Return(conn, nil).Times(1)
		expectWiring(conn)
		gomock.InOrder(
			conn.EXPECT().Start(gomock.Any()).Return(nil),
			conn.EXPECT().AddLocalTrack(local.track).Return(nil),
			conn.EXPECT().CreateAndSetOffer().Return(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "o"}, nil),
			conn.EXPECT().Close(),
		)

		offered := make(chan webrtc.SessionDescription, 1)
		events := noEvents()
		events.OnDescription = func(_ string, sd webrtc.SessionDescription) { offered <- sd }
		m := NewManager(context.Background(), factory, local, events)

		l, created, err := m.CreateLink("b")
		require.NoError(t, err)
		require.True(t, created)
		again, created, err := m.CreateLink("b")
		require.NoError(t, err)
		require.False(t, created)
		require.Same(t, l, again)

		require.NoError(t, l.Offer())
		select {
		case sd := <-offered:
			require.Equal(t, "o", sd.SDP)
		case <-time.After(time.Second):
			t.Fatal("offer not forwarded")
		}
		require.Equal(t, NegotiationHaveLocalOffer, l.State())
		require.True(t, l.Initiator())

		require.True(t, m.Remove("b"))
		require.False(t, m.Remove("b"))
		require.Equal(t, NegotiationClosed, l.State())
		require.ErrorIs(t, l.Offer(), ErrLinkClosed)
	})

	t.Run("should leave a link failed when negotiation errors", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		conn := mocks.NewMockMediaConnection(ctrl)
		factory := mocks.NewMockMediaFactory(ctrl)

		factory.EXPECT().NewConnection("c").Return(conn, nil)
		expectWiring(conn)
		conn.EXPECT().Start(gomock.Any()).Return(nil)
		conn.EXPECT().ApplyOfferAndCreateAnswer(gomock.Any()).Return(webrtc.SessionDescription{}, errors.New("bad sdp"))
		conn.EXPECT().Close()

		var described atomic.Int32
		events := noEvents()
		events.OnDescription = func(string, webrtc.SessionDescription) { described.Add(1) }
		m := NewManager(context.Background(), factory, nil, events)

		l, _, err := m.CreateLink("c")
		require.NoError(t, err)
		require.NoError(t, l.Answer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "garbage"}))

		require.Eventually(t, func() bool { return l.State() == NegotiationFailed }, time.Second, time.Millisecond)
		require.Zero(t, described.Load())
		require.Equal(t, 1, m.Len())

		m.CloseAll()
		require.Zero(t, m.Len())
	})

	t.Run("should report a remote stream once", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		conn := mocks.NewMockMediaConnection(ctrl)
		factory := mocks.NewMockMediaFactory(ctrl)

		var onTrack func(core.RemoteStream)
		factory.EXPECT().NewConnection("d").Return(conn, nil)
		conn.EXPECT().OnICECandidate(gomock.Any())
		conn.EXPECT().OnTrack(gomock.Any()).Do(func(fn func(core.RemoteStream)) { onTrack = fn })
		conn.EXPECT().OnClosed(gomock.Any())
		conn.EXPECT().Start(gomock.Any()).Return(nil)
		conn.EXPECT().Close()

		var tracks atomic.Int32
		events := noEvents()
		events.OnTrack = func(string, core.RemoteStream) { tracks.Add(1) }
		m := NewManager(context.Background(), factory, nil, events)
		l, _, err := m.CreateLink("d")
		require.NoError(t, err)

		stream := newFakeStream("s1")
		onTrack(stream)
		onTrack(stream)
		require.Equal(t, int32(1), tracks.Load())
		require.Equal(t, "s1", l.Stream().StreamID())

		m.CloseAll()
	})

	t.Run("should not let a stale close remove the replacement link", func(t *testing.T) {
		factory := newFakeFactory("a")
		closed := make(chan *Link, 1)
		events := noEvents()
		events.OnClosed = func(l *Link) { closed <- l }
		m := NewManager(context.Background(), factory, newFakeLocal(), events)

		first, _, err := m.CreateLink("b")
		require.NoError(t, err)
		factory.conn("b").fail()

		var stale *Link
		select {
		case stale = <-closed:
		case <-time.After(time.Second):
			t.Fatal("close not reported")
		}
		require.Same(t, first, stale)

		require.True(t, m.Remove("b"))
		replacement, created, err := m.CreateLink("b")
		require.NoError(t, err)
		require.True(t, created)

		require.False(t, m.RemoveLink(stale))
		cur, ok := m.Get("b")
		require.True(t, ok)
		require.Same(t, replacement, cur)
		require.Equal(t, NegotiationNew, replacement.State())

		require.True(t, m.RemoveLink(replacement))
		require.Zero(t, m.Len())
	})

	t.Run("should surface factory failures", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		factory := mocks.NewMockMediaFactory(ctrl)
		factory.EXPECT().NewConnection("e").Return(nil, errors.New("no ice"))

		m := NewManager(context.Background(), factory, nil, noEvents())
		_, _, err := m.CreateLink("e")
		require.Error(t, err)
		require.Zero(t, m.Len())
	})
}

func TestSpeakerSet(t *testing.T) {
	s := NewSpeakerSet()
	require.True(t, s.Set("u2", true))
	require.False(t, s.Set("u2", true))
	require.True(t, s.Set("u1", true))
	require.Equal(t, []string{"u1", "u2"}, s.List())

	s.ClearExcept("u1")
	require.Equal(t, []string{"u1"}, s.List())
	require.False(t, s.Set("u3", false))
	require.True(t, s.Set("u1", false))
	require.Empty(t, s.List())
}
