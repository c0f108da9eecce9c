package voice

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Murmur/internal/adapters/relay/relaytest"
	"github.com/dkeye/Murmur/internal/core"
	"github.com/dkeye/Murmur/internal/protocol"
)

type fakeStream struct {
	id   string
	bits atomic.Uint64
	done chan struct{}
	once sync.Once
}

func newFakeStream(id string) *fakeStream { return &fakeStream{id: id, done: make(chan struct{})} }

func (s *fakeStream) ID() string            { return "audio" }
func (s *fakeStream) StreamID() string      { return s.id }
func (s *fakeStream) Energy() float64       { return math.Float64frombits(s.bits.Load()) }
func (s *fakeStream) Done() <-chan struct{} { return s.done }
func (s *fakeStream) setEnergy(e float64)   { s.bits.Store(math.Float64bits(e)) }
func (s *fakeStream) end()                  { s.once.Do(func() { close(s.done) }) }

type fakeLocal struct {
	*fakeStream
	track   webrtc.TrackLocal
	stopped atomic.Bool
}

func newFakeLocal() *fakeLocal {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, "audio", "local")
	if err != nil {
		panic(err)
	}
	return &fakeLocal{fakeStream: newFakeStream("local"), track: track}
}

func (l *fakeLocal) Tracks() []webrtc.TrackLocal { return []webrtc.TrackLocal{l.track} }
func (l *fakeLocal) Stop() {
	l.stopped.Store(true)
	l.end()
}

type fakeSource struct{ local *fakeLocal }

func (s fakeSource) Acquire(context.Context) (core.LocalStream, error) { return s.local, nil }

// fakeConn mimics the ordering rules of a real peer connection: candidates
// are rejected until a remote description is set.
type fakeConn struct {
	owner, remote string

	mu         sync.Mutex
	onICE      func(webrtc.ICECandidateInit)
	onTrack    func(core.RemoteStream)
	onClosed   func()
	tracks     int
	remoteSet  bool
	candidates []webrtc.ICECandidateInit
	early      int
	offers     int
	answers    int
	closed     bool
	stream     *fakeStream
}

func (c *fakeConn) Start(context.Context) error { return nil }

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) AddLocalTrack(webrtc.TrackLocal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks++
	return nil
}

func (c *fakeConn) CreateAndSetOffer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	c.offers++
	c.mu.Unlock()
	go c.gather()
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer:" + c.owner}, nil
}

func (c *fakeConn) ApplyOfferAndCreateAnswer(sd webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if sd.Type != webrtc.SDPTypeOffer {
		return webrtc.SessionDescription{}, errors.New("not an offer")
	}
	c.mu.Lock()
	c.remoteSet = true
	c.answers++
	c.mu.Unlock()
	go c.remoteTrack()
	go c.gather()
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer:" + c.owner}, nil
}

func (c *fakeConn) ApplyAnswer(sd webrtc.SessionDescription) error {
	if sd.Type != webrtc.SDPTypeAnswer {
		return errors.New("not an answer")
	}
	c.mu.Lock()
	c.remoteSet = true
	c.mu.Unlock()
	go c.remoteTrack()
	return nil
}

func (c *fakeConn) AddICECandidate(cand webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.remoteSet {
		c.early++
		return errors.New("remote description not set")
	}
	c.candidates = append(c.candidates, cand)
	return nil
}

func (c *fakeConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onICE = fn
}

func (c *fakeConn) OnTrack(fn func(core.RemoteStream)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrack = fn
}

func (c *fakeConn) OnClosed(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClosed = fn
}

// fail reports a dead transport the way ICE failure does.
func (c *fakeConn) fail() {
	c.mu.Lock()
	fn := c.onClosed
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *fakeConn) gather() {
	c.mu.Lock()
	fn := c.onICE
	c.mu.Unlock()
	if fn != nil {
		fn(webrtc.ICECandidateInit{Candidate: "candidate:" + c.owner})
	}
}

func (c *fakeConn) remoteTrack() {
	c.mu.Lock()
	if c.stream == nil {
		c.stream = newFakeStream("stream-" + c.remote)
	}
	s, fn := c.stream, c.onTrack
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (c *fakeConn) snapshot() (remoteSet bool, candidates, early int, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteSet, len(c.candidates), c.early, c.closed
}

func (c *fakeConn) remoteStream() *fakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

type fakeFactory struct {
	owner string

	mu      sync.Mutex
	created int
	conns   map[string]*fakeConn
}

func newFakeFactory(owner string) *fakeFactory {
	return &fakeFactory{owner: owner, conns: make(map[string]*fakeConn)}
}

func (f *fakeFactory) NewConnection(remoteID string) (core.MediaConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	c := &fakeConn{owner: f.owner, remote: remoteID}
	f.conns[remoteID] = c
	return c, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func (f *fakeFactory) conn(remoteID string) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[remoteID]
}

// route forwards addressed signaling between in-memory channels the way
// the relay does, stamping the sender.
func route(chans ...*relaytest.Channel) {
	byID := make(map[string]*relaytest.Channel, len(chans))
	for _, ch := range chans {
		byID[ch.ID()] = ch
	}
	for _, ch := range chans {
		from := ch.ID()
		ch.OnEmit(func(m protocol.Message) {
			switch v := m.(type) {
			case *protocol.Offer:
				out := *v
				out.Route = protocol.Route{From: from}
				if to, ok := byID[v.To]; ok {
					to.Deliver(&out)
				}
			case *protocol.Answer:
				out := *v
				out.Route = protocol.Route{From: from}
				if to, ok := byID[v.To]; ok {
					to.Deliver(&out)
				}
			case *protocol.Candidate:
				out := *v
				out.Route = protocol.Route{From: from}
				if to, ok := byID[v.To]; ok {
					to.Deliver(&out)
				}
			}
		})
	}
}
