package rtc

import (
	"context"
	"testing"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Murmur/internal/adapters/capture"
)

func newTestConnection(t *testing.T, f *Factory, remote string) *WebRTCConnection {
	t.Helper()
	mc, err := f.NewConnection(remote)
	require.NoError(t, err)
	conn := mc.(*WebRTCConnection)
	require.NoError(t, conn.Start(context.Background()))
	t.Cleanup(conn.Close)
	return conn
}

func TestWebRTCConnection_Negotiation(t *testing.T) {
	f, err := NewFactory(DefaultWebRTCConfig(nil))
	require.NoError(t, err)

	stream, err := capture.SilenceSource{}.Acquire(context.Background())
	require.NoError(t, err)
	t.Cleanup(stream.Stop)

	offerer := newTestConnection(t, f, "answerer")
	answerer := newTestConnection(t, f, "offerer")
	for _, tr := range stream.Tracks() {
		require.NoError(t, offerer.AddLocalTrack(tr))
		require.NoError(t, answerer.AddLocalTrack(tr))
	}

	t.Run("should refuse candidates before a remote description", func(t *testing.T) {
		err := offerer.AddICECandidate(webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 5000 typ host"})
		require.Error(t, err)
	})

	offer, err := offerer.CreateAndSetOffer()
	require.NoError(t, err)
	require.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	require.Contains(t, offer.SDP, "opus")
	require.Equal(t, webrtc.SignalingStateHaveLocalOffer, offerer.SignalingState())

	answer, err := answerer.ApplyOfferAndCreateAnswer(offer)
	require.NoError(t, err)
	require.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
	require.Equal(t, webrtc.SignalingStateStable, answerer.SignalingState())

	require.NoError(t, offerer.ApplyAnswer(answer))
	require.Equal(t, webrtc.SignalingStateStable, offerer.SignalingState())
}

func TestWebRTCConnection_CloseIsIdempotent(t *testing.T) {
	f, err := NewFactory(DefaultWebRTCConfig(nil))
	require.NoError(t, err)
	conn := newTestConnection(t, f, "peer")

	closed := 0
	conn.OnClosed(func() { closed++ })
	conn.Close()
	conn.Close()
	require.Zero(t, closed)
}

func TestPacketEnergy(t *testing.T) {
	t.Run("should use the audio level extension when present", func(t *testing.T) {
		pkt := &rtp.Packet{Header: rtp.Header{Version: 2}, Payload: make([]byte, 4)}
		raw, err := rtp.AudioLevelExtension{Level: 0, Voice: true}.Marshal()
		require.NoError(t, err)
		require.NoError(t, pkt.Header.SetExtension(1, raw))

		require.Equal(t, capture.MaxEnergy, packetEnergy(pkt, 1))
	})

	t.Run("should fall back to payload size", func(t *testing.T) {
		pkt := &rtp.Packet{Payload: make([]byte, 400)}
		require.Equal(t, capture.MaxEnergy, packetEnergy(pkt, 0))
		require.Zero(t, packetEnergy(&rtp.Packet{Payload: []byte{1, 2}}, 3))
	})
}

func TestDefaultWebRTCConfig(t *testing.T) {
	require.Empty(t, DefaultWebRTCConfig(nil).ICEServers)
	cfg := DefaultWebRTCConfig([]string{"stun:stun.example.org:3478"})
	require.Equal(t, []string{"stun:stun.example.org:3478"}, cfg.ICEServers[0].URLs)
}
