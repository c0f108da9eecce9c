package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Murmur/internal/core"
)

var ErrLinkClosed = errors.New("peer link closed")

type NegotiationState int

const (
	NegotiationNew NegotiationState = iota
	NegotiationHaveLocalOffer
	NegotiationStable
	NegotiationFailed
	NegotiationClosed
)

func (s NegotiationState) String() string {
	switch s {
	case NegotiationNew:
		return "new"
	case NegotiationHaveLocalOffer:
		return "have-local-offer"
	case NegotiationStable:
		return "stable"
	case NegotiationFailed:
		return "failed"
	case NegotiationClosed:
		return "closed"
	}
	return fmt.Sprintf("NegotiationState(%d)", int(s))
}

func (s NegotiationState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LinkEvents carries everything a link reports upward. Links never talk to
// the relay themselves.
type LinkEvents struct {
	// OnDescription receives a local offer or answer to forward to remoteID.
	OnDescription func(remoteID string, sd webrtc.SessionDescription)
	OnCandidate   func(remoteID string, c webrtc.ICECandidateInit)
	// OnTrack fires once per distinct remote stream.
	OnTrack func(remoteID string, s core.RemoteStream)
	// OnClosed reports the failed link itself; a newer link may already
	// serve the same remote id.
	OnClosed func(l *Link)
}

// Link is one media connection to one remote participant. Negotiation
// steps run in order on the link's own goroutine.
type Link struct {
	remoteID string
	conn     core.MediaConnection
	events   LinkEvents
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	ops    chan func()
	done   chan struct{}

	mu        sync.Mutex
	state     NegotiationState
	initiator bool
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	stream    core.RemoteStream
}

func (l *Link) RemoteID() string { return l.remoteID }

func (l *Link) State() NegotiationState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Initiator reports whether this side has started an offer that is not yet answered.
func (l *Link) Initiator() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initiator && l.state != NegotiationStable
}

// idle reports a link that exists but has not negotiated in either direction.
func (l *Link) idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == NegotiationNew && !l.initiator && !l.remoteSet
}

func (l *Link) Stream() core.RemoteStream {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stream
}

func (l *Link) PendingCandidates() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *Link) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case op := <-l.ops:
			op()
		}
	}
}

func (l *Link) enqueue(op func()) error {
	if l.ctx.Err() != nil {
		return ErrLinkClosed
	}
	select {
	case <-l.ctx.Done():
		return ErrLinkClosed
	case l.ops <- op:
		return nil
	}
}

// Offer creates and sends a local offer.
func (l *Link) Offer() error {
	l.mu.Lock()
	l.initiator = true
	l.mu.Unlock()
	return l.enqueue(func() {
		sd, err := l.conn.CreateAndSetOffer()
		if err != nil {
			l.fail(err, "create offer")
			return
		}
		l.setState(NegotiationHaveLocalOffer)
		l.logger.Debug().Msg("offer created")
		if l.ctx.Err() == nil {
			l.events.OnDescription(l.remoteID, sd)
		}
	})
}

// Answer applies a remote offer and sends back the answer.
func (l *Link) Answer(offer webrtc.SessionDescription) error {
	return l.enqueue(func() {
		answer, err := l.conn.ApplyOfferAndCreateAnswer(offer)
		if err != nil {
			l.fail(err, "apply offer")
			return
		}
		l.remoteDescriptionSet()
		l.setState(NegotiationStable)
		l.logger.Debug().Msg("answer created")
		if l.ctx.Err() == nil {
			l.events.OnDescription(l.remoteID, answer)
		}
	})
}

// ApplyAnswer completes an offer this side started.
func (l *Link) ApplyAnswer(answer webrtc.SessionDescription) error {
	return l.enqueue(func() {
		if st := l.State(); st != NegotiationHaveLocalOffer {
			l.logger.Warn().Stringer("state", st).Msg("answer without pending offer dropped")
			return
		}
		if err := l.conn.ApplyAnswer(answer); err != nil {
			l.fail(err, "apply answer")
			return
		}
		l.remoteDescriptionSet()
		l.setState(NegotiationStable)
		l.logger.Debug().Msg("answer applied")
	})
}

// AddCandidate applies a remote candidate, holding it until the remote
// description is in place.
func (l *Link) AddCandidate(c webrtc.ICECandidateInit) error {
	return l.enqueue(func() {
		l.mu.Lock()
		if !l.remoteSet {
			l.pending = append(l.pending, c)
			l.mu.Unlock()
			l.logger.Debug().Msg("candidate buffered")
			return
		}
		l.mu.Unlock()
		if err := l.conn.AddICECandidate(c); err != nil {
			l.logger.Error().Err(err).Msg("add candidate")
		}
	})
}

func (l *Link) remoteDescriptionSet() {
	l.mu.Lock()
	l.remoteSet = true
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, c := range pending {
		if err := l.conn.AddICECandidate(c); err != nil {
			l.logger.Error().Err(err).Msg("add buffered candidate")
		}
	}
	if len(pending) > 0 {
		l.logger.Debug().Int("count", len(pending)).Msg("flushed buffered candidates")
	}
}

func (l *Link) attach(s core.RemoteStream) {
	l.mu.Lock()
	if l.stream != nil && l.stream.StreamID() == s.StreamID() {
		l.mu.Unlock()
		return
	}
	l.stream = s
	l.mu.Unlock()

	l.logger.Info().Str("stream", s.StreamID()).Msg("remote stream attached")
	l.events.OnTrack(l.remoteID, s)
}

func (l *Link) setState(s NegotiationState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != NegotiationClosed {
		l.state = s
	}
}

func (l *Link) fail(err error, step string) {
	l.setState(NegotiationFailed)
	l.logger.Error().Err(err).Str("step", step).Msg("negotiation failed")
}

func (l *Link) close() {
	l.setState(NegotiationClosed)
	l.cancel()
	<-l.done
	l.conn.Close()
}

// Manager owns one Link per remote participant of a session.
type Manager struct {
	ctx     context.Context
	factory core.MediaFactory
	tracks  []webrtc.TrackLocal
	events  LinkEvents

	mu    sync.Mutex
	links map[string]*Link
}

func NewManager(ctx context.Context, factory core.MediaFactory, local core.LocalStream, events LinkEvents) *Manager {
	var tracks []webrtc.TrackLocal
	if local != nil {
		tracks = local.Tracks()
	}
	return &Manager{
		ctx:     ctx,
		factory: factory,
		tracks:  tracks,
		events:  events,
		links:   make(map[string]*Link),
	}
}

// CreateLink returns the link for remoteID, building it on first use.
func (m *Manager) CreateLink(remoteID string) (*Link, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.links[remoteID]; ok {
		return l, false, nil
	}

	conn, err := m.factory.NewConnection(remoteID)
	if err != nil {
		return nil, false, fmt.Errorf("new connection %s: %w", remoteID, err)
	}
	ctx, cancel := context.WithCancel(m.ctx)
	l := &Link{
		remoteID: remoteID,
		conn:     conn,
		events:   m.events,
		logger:   log.With().Str("module", "voice.peers").Str("peer", remoteID).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		ops:      make(chan func(), 32),
		done:     make(chan struct{}),
	}

	conn.OnICECandidate(func(c webrtc.ICECandidateInit) {
		if ctx.Err() == nil {
			m.events.OnCandidate(remoteID, c)
		}
	})
	conn.OnTrack(func(s core.RemoteStream) {
		if ctx.Err() == nil {
			l.attach(s)
		}
	})
	conn.OnClosed(func() {
		if ctx.Err() == nil {
			m.events.OnClosed(l)
		}
	})
	if err := conn.Start(ctx); err != nil {
		cancel()
		conn.Close()
		return nil, false, fmt.Errorf("start connection %s: %w", remoteID, err)
	}
	for _, tr := range m.tracks {
		if err := conn.AddLocalTrack(tr); err != nil {
			cancel()
			conn.Close()
			return nil, false, fmt.Errorf("add local track to %s: %w", remoteID, err)
		}
	}

	go l.run()
	m.links[remoteID] = l
	l.logger.Info().Int("tracks", len(m.tracks)).Msg("link created")
	return l, true, nil
}

func (m *Manager) Get(remoteID string) (*Link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[remoteID]
	return l, ok
}

// Remove closes and forgets the link to remoteID.
func (m *Manager) Remove(remoteID string) bool {
	m.mu.Lock()
	l, ok := m.links[remoteID]
	delete(m.links, remoteID)
	m.mu.Unlock()
	if !ok {
		return false
	}
	l.close()
	l.logger.Info().Msg("link removed")
	return true
}

// RemoveLink closes l and forgets it only if it is still the link to its
// remote id. It reports whether l was current.
func (m *Manager) RemoveLink(l *Link) bool {
	m.mu.Lock()
	current := m.links[l.remoteID] == l
	if current {
		delete(m.links, l.remoteID)
	}
	m.mu.Unlock()
	l.close()
	if current {
		l.logger.Info().Msg("link removed")
	}
	return current
}

// Retain removes every link whose remote id is not in keep.
func (m *Manager) Retain(keep []string) []string {
	m.mu.Lock()
	stale := lo.Filter(lo.Keys(m.links), func(id string, _ int) bool {
		return !lo.Contains(keep, id)
	})
	m.mu.Unlock()

	for _, id := range stale {
		m.Remove(id)
	}
	return stale
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	links := m.links
	m.links = make(map[string]*Link)
	m.mu.Unlock()

	for _, l := range links {
		l.close()
	}
	if len(links) > 0 {
		log.Info().Str("module", "voice.peers").Int("count", len(links)).Msg("closed all links")
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

func (m *Manager) Links() []*Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Values(m.links)
}
