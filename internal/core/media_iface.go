package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

//go:generate mockgen -destination=mocks/mock_media.go -package=mocks github.com/dkeye/Murmur/internal/core MediaConnection,MediaFactory,MediaSource

// AudioMeter is a live energy reading of one audio stream on a 0..255 scale.
type AudioMeter interface {
	Energy() float64
	// Done is closed when the stream ends; a meter cannot be restarted.
	Done() <-chan struct{}
}

// RemoteStream is an inbound track attached to a peer connection.
type RemoteStream interface {
	AudioMeter
	ID() string
	StreamID() string
}

// LocalStream is the captured local audio: one capture, many senders.
type LocalStream interface {
	AudioMeter
	ID() string
	Tracks() []webrtc.TrackLocal
	// Stop ends every track; only the session leave path may call it.
	Stop()
}

// MediaSource acquires the local stream (microphone or a stand-in).
type MediaSource interface {
	Acquire(ctx context.Context) (LocalStream, error)
}

type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()
	// AddLocalTrack attaches a local track; must precede offer/answer creation.
	AddLocalTrack(webrtc.TrackLocal) error
	CreateAndSetOffer() (webrtc.SessionDescription, error)
	ApplyOfferAndCreateAnswer(webrtc.SessionDescription) (webrtc.SessionDescription, error)
	ApplyAnswer(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback invoked when a remote track arrives.
	OnTrack(func(RemoteStream))
	// OnClosed sets a callback for a failed or closed transport.
	OnClosed(func())
}

// MediaFactory builds one connection per remote participant.
type MediaFactory interface {
	NewConnection(remoteID string) (MediaConnection, error)
}
