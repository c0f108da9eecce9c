// Package voice runs a mesh voice session: one media link per remote
// participant, negotiated over the relay, with active speaker tracking.
package voice

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Murmur/internal/app/vad"
	"github.com/dkeye/Murmur/internal/core"
	"github.com/dkeye/Murmur/internal/domain"
	"github.com/dkeye/Murmur/internal/protocol"
)

var (
	ErrMediaAcquisition = errors.New("media acquisition failed")
	ErrChannelRequired  = errors.New("channel id is required")
)

// localStreamKey names the local stream's detector observation.
const localStreamKey = "local"

type Options struct {
	LocalThreshold  float64
	RemoteThreshold float64
	SamplePeriod    time.Duration
}

func DefaultOptions() Options {
	return Options{LocalThreshold: 35, RemoteThreshold: 25, SamplePeriod: vad.DefaultPeriod}
}

type PeerView struct {
	ParticipantID domain.ParticipantID `json:"participantId"`
	UserID        domain.UserID        `json:"userId,omitempty"`
	DisplayName   string               `json:"displayName"`
	State         NegotiationState     `json:"state"`
	StreamID      string               `json:"streamId,omitempty"`
}

func (p PeerView) Attached() bool { return p.StreamID != "" }

// State is a snapshot of the session for rendering.
type State struct {
	Joined         bool             `json:"joined"`
	ChannelID      domain.ChannelID `json:"channelId,omitempty"`
	SelfID         string           `json:"selfId,omitempty"`
	LocalStream    core.LocalStream `json:"-"`
	LocalStreamID  string           `json:"localStreamId,omitempty"`
	Peers          []PeerView       `json:"peers"`
	ActiveSpeakers []string         `json:"activeSpeakers"`
}

type session struct {
	ctx       context.Context
	cancel    context.CancelFunc
	channelID domain.ChannelID
	user      domain.User
	local     core.LocalStream
	peers     *Manager
	speakers  *SpeakerSet
	detector  *vad.Detector
	logger    zerolog.Logger

	mu          sync.Mutex
	directory   map[string]domain.Participant
	unsubscribe []func()
}

func (s *session) active() bool { return s.ctx.Err() == nil }

func (s *session) participant(socketID string) (domain.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.directory[socketID]
	return p, ok
}

func (s *session) speakerKey(socketID string) string {
	if p, ok := s.participant(socketID); ok && p.UserID != "" {
		return string(p.UserID)
	}
	return socketID
}

// Coordinator owns at most one voice session at a time.
type Coordinator struct {
	signal  core.EventChannel
	factory core.MediaFactory
	source  core.MediaSource
	opts    Options

	opMu    sync.Mutex
	mu      sync.Mutex
	session *session
}

func NewCoordinator(signal core.EventChannel, factory core.MediaFactory, source core.MediaSource, opts Options) *Coordinator {
	def := DefaultOptions()
	if opts.SamplePeriod <= 0 {
		opts.SamplePeriod = def.SamplePeriod
	}
	if opts.LocalThreshold <= 0 {
		opts.LocalThreshold = def.LocalThreshold
	}
	if opts.RemoteThreshold <= 0 {
		opts.RemoteThreshold = def.RemoteThreshold
	}
	return &Coordinator{signal: signal, factory: factory, source: source, opts: opts}
}

func (c *Coordinator) current() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Join acquires local media and announces the session. Joining another
// channel leaves the current one first; joining the same one is a no-op.
func (c *Coordinator) Join(ctx context.Context, channelID domain.ChannelID, user domain.User) error {
	if channelID == "" {
		return ErrChannelRequired
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if prev := c.current(); prev != nil {
		if prev.channelID == channelID {
			return nil
		}
		c.leave()
	}

	logger := log.With().Str("module", "voice").Str("channel", string(channelID)).Str("user", string(user.ID)).Logger()
	local, err := c.source.Acquire(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("join aborted")
		return fmt.Errorf("%w: %w", ErrMediaAcquisition, err)
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		ctx:       sctx,
		cancel:    cancel,
		channelID: channelID,
		user:      user,
		local:     local,
		speakers:  NewSpeakerSet(),
		logger:    logger,
		directory: make(map[string]domain.Participant),
	}
	s.detector = vad.NewDetector(c.opts.SamplePeriod, func(id string, speaking bool) {
		c.onSpeech(s, id, speaking)
	})
	s.peers = NewManager(sctx, c.factory, local, LinkEvents{
		OnDescription: func(remoteID string, sd webrtc.SessionDescription) { c.sendDescription(s, remoteID, sd) },
		OnCandidate: func(remoteID string, cand webrtc.ICECandidateInit) {
			c.emit(s, &protocol.Candidate{Route: protocol.Route{To: remoteID}, Candidate: cand})
		},
		OnTrack: func(remoteID string, stream core.RemoteStream) {
			s.detector.Observe(s.ctx, remoteID, stream, c.opts.RemoteThreshold)
		},
		OnClosed: func(l *Link) {
			remoteID := l.RemoteID()
			s.logger.Warn().Str("peer", remoteID).Msg("transport closed")
			if cur, ok := s.peers.Get(remoteID); !ok || cur == l {
				s.detector.Stop(remoteID)
				s.speakers.Set(s.speakerKey(remoteID), false)
			}
			go s.peers.RemoveLink(l)
		},
	})

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	s.unsubscribe = []func(){
		c.signal.Subscribe(protocol.VoiceUsers, func(m protocol.Message) { c.onRoster(s, m.(*protocol.Roster)) }),
		c.signal.Subscribe(protocol.VoiceUserJoined, func(m protocol.Message) { c.onUserJoined(s, m.(*protocol.UserJoined)) }),
		c.signal.Subscribe(protocol.VoiceUserLeft, func(m protocol.Message) { c.onUserLeft(s, m.(*protocol.UserLeft)) }),
		c.signal.Subscribe(protocol.WebRTCOffer, func(m protocol.Message) { c.onOffer(s, m.(*protocol.Offer)) }),
		c.signal.Subscribe(protocol.WebRTCAnswer, func(m protocol.Message) { c.onAnswer(s, m.(*protocol.Answer)) }),
		c.signal.Subscribe(protocol.WebRTCCandidate, func(m protocol.Message) { c.onCandidate(s, m.(*protocol.Candidate)) }),
		c.signal.Subscribe(protocol.VoiceUserSpeaking, func(m protocol.Message) { c.onUserSpeaking(s, m.(*protocol.UserSpeaking)) }),
		c.signal.OnConnect(func() { c.onReconnect(s) }),
	}

	s.detector.Observe(sctx, localStreamKey, local, c.opts.LocalThreshold)
	c.emit(s, c.membership(s, true))
	logger.Info().Str("stream", local.ID()).Msg("joined voice")
	return nil
}

// Leave closes every link, stops local capture and announces the departure.
func (c *Coordinator) Leave() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.leave()
}

func (c *Coordinator) leave() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s == nil {
		return
	}

	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	c.emit(s, c.membership(s, false))
	s.cancel()
	s.detector.StopAll()
	s.peers.CloseAll()
	s.local.Stop()
	s.speakers.Clear()
	s.logger.Info().Msg("left voice")
}

func (c *Coordinator) State() State {
	s := c.current()
	if s == nil {
		return State{Peers: []PeerView{}, ActiveSpeakers: []string{}}
	}
	peers := lo.Map(s.peers.Links(), func(l *Link, _ int) PeerView {
		p, _ := s.participant(l.RemoteID())
		view := PeerView{
			ParticipantID: domain.ParticipantID(l.RemoteID()),
			UserID:        p.UserID,
			DisplayName:   p.Label(),
			State:         l.State(),
		}
		if view.DisplayName == "" {
			view.DisplayName = domain.Participant{ID: view.ParticipantID}.Label()
		}
		if st := l.Stream(); st != nil {
			view.StreamID = st.StreamID()
		}
		return view
	})
	slices.SortFunc(peers, func(a, b PeerView) int {
		return strings.Compare(string(a.ParticipantID), string(b.ParticipantID))
	})
	return State{
		Joined:         true,
		ChannelID:      s.channelID,
		SelfID:         c.signal.ID(),
		LocalStream:    s.local,
		LocalStreamID:  s.local.ID(),
		Peers:          peers,
		ActiveSpeakers: s.speakers.List(),
	}
}

func (c *Coordinator) membership(s *session, join bool) protocol.Message {
	m := protocol.Membership{ChannelID: string(s.channelID), UserID: string(s.user.ID), Username: s.user.Username}
	if join {
		return &protocol.VoiceJoinPayload{Membership: m}
	}
	return &protocol.VoiceLeavePayload{Membership: m}
}

func (c *Coordinator) emit(s *session, msg protocol.Message) {
	if err := c.signal.Emit(msg); err != nil {
		s.logger.Warn().Err(err).Str("event", string(msg.Event())).Msg("emit failed")
	}
}

func (c *Coordinator) sendDescription(s *session, remoteID string, sd webrtc.SessionDescription) {
	route := protocol.Route{To: remoteID}
	switch sd.Type {
	case webrtc.SDPTypeOffer:
		c.emit(s, &protocol.Offer{Route: route, ChannelID: string(s.channelID), Offer: sd})
	case webrtc.SDPTypeAnswer:
		c.emit(s, &protocol.Answer{Route: route, Answer: sd})
	default:
		s.logger.Warn().Stringer("type", sd.Type).Msg("unexpected description type")
	}
}

// connect offers to remoteID unless a link is already negotiating.
func (c *Coordinator) connect(s *session, remoteID string) {
	l, created, err := s.peers.CreateLink(remoteID)
	if err != nil {
		s.logger.Error().Err(err).Str("peer", remoteID).Msg("create link")
		return
	}
	if !created && !l.idle() {
		return
	}
	if err := l.Offer(); err != nil {
		s.logger.Error().Err(err).Str("peer", remoteID).Msg("offer")
	}
}

// offers reports whether this side initiates toward remoteID: the lower id offers.
func offers(self, remoteID string) bool {
	return self != "" && self < remoteID
}

func (c *Coordinator) sameChannel(s *session, channelID string) bool {
	return channelID == "" || domain.ChannelID(channelID) == s.channelID
}

func (c *Coordinator) onRoster(s *session, r *protocol.Roster) {
	if !s.active() || !c.sameChannel(s, r.ChannelID) {
		return
	}
	self := c.signal.ID()
	remotes := lo.FilterMap(r.Users, func(u protocol.VoiceUser, _ int) (string, bool) {
		return u.SocketID, u.SocketID != self
	})

	s.mu.Lock()
	previous := s.directory
	s.directory = make(map[string]domain.Participant, len(r.Users))
	for _, u := range r.Users {
		s.directory[u.SocketID] = participantOf(u)
	}
	s.mu.Unlock()

	for _, id := range s.peers.Retain(remotes) {
		s.detector.Stop(id)
		key := id
		if p, ok := previous[id]; ok && p.UserID != "" {
			key = string(p.UserID)
		}
		s.speakers.Set(key, false)
		s.logger.Info().Str("peer", id).Msg("pruned peer missing from roster")
	}

	s.logger.Debug().Int("users", len(r.Users)).Msg("roster")
	for _, id := range remotes {
		if offers(self, id) {
			c.connect(s, id)
		}
	}
}

func (c *Coordinator) onUserJoined(s *session, m *protocol.UserJoined) {
	if !s.active() || !c.sameChannel(s, m.ChannelID) || m.User.SocketID == "" {
		return
	}
	self := c.signal.ID()
	if m.User.SocketID == self {
		return
	}
	s.mu.Lock()
	s.directory[m.User.SocketID] = participantOf(m.User)
	s.mu.Unlock()

	s.logger.Info().Str("peer", m.User.SocketID).Str("name", m.User.Username).Msg("user joined")
	if offers(self, m.User.SocketID) {
		c.connect(s, m.User.SocketID)
	}
}

func (c *Coordinator) onUserLeft(s *session, m *protocol.UserLeft) {
	if !s.active() || !c.sameChannel(s, m.ChannelID) {
		return
	}
	var ids []string
	s.mu.Lock()
	if m.SocketID != "" {
		ids = append(ids, m.SocketID)
	} else {
		for id, p := range s.directory {
			if string(p.UserID) == m.UserID {
				ids = append(ids, id)
			}
		}
		if _, ok := s.peers.Get(m.UserID); ok {
			ids = append(ids, m.UserID)
		}
	}
	for _, id := range ids {
		delete(s.directory, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.detector.Stop(id)
		s.peers.Remove(id)
	}
	if m.UserID != "" {
		s.speakers.Set(m.UserID, false)
	}
	for _, id := range ids {
		s.speakers.Set(id, false)
	}
	s.logger.Info().Strs("peers", ids).Str("userId", m.UserID).Msg("user left")
}

func (c *Coordinator) onOffer(s *session, m *protocol.Offer) {
	if !s.active() || !c.sameChannel(s, m.ChannelID) {
		return
	}
	from := m.From
	if from == "" {
		s.logger.Warn().Msg("offer without sender dropped")
		return
	}
	self := c.signal.ID()
	if l, ok := s.peers.Get(from); ok && l.Initiator() {
		if offers(self, from) {
			s.logger.Info().Str("peer", from).Msg("glare, keeping local offer")
			return
		}
		s.logger.Info().Str("peer", from).Msg("glare, yielding to remote offer")
		s.peers.Remove(from)
	}

	s.mu.Lock()
	if _, ok := s.directory[from]; !ok {
		s.directory[from] = domain.Participant{ID: domain.ParticipantID(from)}
	}
	s.mu.Unlock()

	l, _, err := s.peers.CreateLink(from)
	if err != nil {
		s.logger.Error().Err(err).Str("peer", from).Msg("create link")
		return
	}
	if err := l.Answer(m.Offer); err != nil {
		s.logger.Error().Err(err).Str("peer", from).Msg("answer")
	}
}

func (c *Coordinator) onAnswer(s *session, m *protocol.Answer) {
	if !s.active() {
		return
	}
	l, ok := s.peers.Get(m.From)
	if !ok {
		s.logger.Warn().Str("peer", m.From).Msg("answer for unknown link dropped")
		return
	}
	if err := l.ApplyAnswer(m.Answer); err != nil {
		s.logger.Error().Err(err).Str("peer", m.From).Msg("apply answer")
	}
}

func (c *Coordinator) onCandidate(s *session, m *protocol.Candidate) {
	if !s.active() {
		return
	}
	l, ok := s.peers.Get(m.From)
	if !ok {
		// a candidate may outrun the offer it belongs to
		if _, known := s.participant(m.From); !known {
			s.logger.Warn().Str("peer", m.From).Msg("candidate from unknown peer dropped")
			return
		}
		var err error
		if l, _, err = s.peers.CreateLink(m.From); err != nil {
			s.logger.Error().Err(err).Str("peer", m.From).Msg("create link")
			return
		}
	}
	if err := l.AddCandidate(m.Candidate); err != nil {
		s.logger.Error().Err(err).Str("peer", m.From).Msg("add candidate")
	}
}

func (c *Coordinator) onUserSpeaking(s *session, m *protocol.UserSpeaking) {
	if !s.active() || !c.sameChannel(s, m.ChannelID) || m.UserID == string(s.user.ID) {
		return
	}
	s.speakers.Set(m.UserID, m.IsSpeaking)
}

// onSpeech receives detector edges for the local stream and every remote one.
func (c *Coordinator) onSpeech(s *session, id string, speaking bool) {
	if !s.active() {
		return
	}
	if id != localStreamKey {
		s.speakers.Set(s.speakerKey(id), speaking)
		return
	}
	if s.speakers.Set(string(s.user.ID), speaking) {
		c.emit(s, &protocol.Speaking{ChannelID: string(s.channelID), UserID: string(s.user.ID), IsSpeaking: speaking})
	}
}

// onReconnect drops links bound to the previous connection id and joins again.
func (c *Coordinator) onReconnect(s *session) {
	if !s.active() {
		return
	}
	for _, l := range s.peers.Links() {
		s.detector.Stop(l.RemoteID())
	}
	s.peers.CloseAll()
	s.speakers.ClearExcept(string(s.user.ID))
	s.logger.Info().Str("sid", c.signal.ID()).Msg("relay reconnected, rejoining")
	c.emit(s, c.membership(s, true))
}

func participantOf(u protocol.VoiceUser) domain.Participant {
	return domain.Participant{
		ID:          domain.ParticipantID(u.SocketID),
		UserID:      domain.UserID(u.UserID),
		DisplayName: u.Username,
	}
}
