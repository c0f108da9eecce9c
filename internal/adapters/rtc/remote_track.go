package rtc

import (
	"context"

	"github.com/pion/rtp"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Murmur/internal/adapters/capture"
)

// RemoteTrack meters an inbound audio track. Playback is out of scope, the
// reader only keeps the track drained and the meter fresh.
type RemoteTrack struct {
	*capture.Meter
	src      *webrtc.TrackRemote
	levelExt uint8
}

func newRemoteTrack(src *webrtc.TrackRemote, levelExt uint8) *RemoteTrack {
	return &RemoteTrack{Meter: capture.NewMeter(capture.DefaultStaleAfter), src: src, levelExt: levelExt}
}

func (t *RemoteTrack) ID() string       { return t.src.ID() }
func (t *RemoteTrack) StreamID() string { return t.src.StreamID() }

func (t *RemoteTrack) loop(ctx context.Context, remoteID string) {
	logger := log.With().Str("module", "webrtc").Str("peer", remoteID).Str("track_id", t.src.ID()).Logger()
	defer t.Meter.Close()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("remote track ctx done")
			return
		default:
		}
		pkt, _, err := t.src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("remote track ended")
			return
		}
		t.Observe(packetEnergy(pkt, t.levelExt))
	}
}

// packetEnergy prefers the sender's audio level and falls back to payload size.
func packetEnergy(pkt *rtp.Packet, levelExt uint8) float64 {
	if levelExt != 0 {
		if raw := pkt.GetExtension(levelExt); raw != nil {
			var ext rtp.AudioLevelExtension
			if err := ext.Unmarshal(raw); err == nil {
				return capture.LevelEnergy(ext.Level)
			}
		}
	}
	return capture.OpusEnergy(len(pkt.Payload))
}

func audioLevelID(receiver *webrtc.RTPReceiver) uint8 {
	if receiver == nil {
		return 0
	}
	for _, ext := range receiver.GetParameters().HeaderExtensions {
		if ext.URI == sdp.AudioLevelURI {
			return uint8(ext.ID)
		}
	}
	return 0
}
