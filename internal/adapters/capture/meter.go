package capture

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MaxEnergy is the top of the energy scale shared by every meter.
const MaxEnergy = 255.0

// DefaultStaleAfter drops a reading to silence when no packet refreshed it.
const DefaultStaleAfter = 200 * time.Millisecond

// Meter holds the latest energy reading of a stream. Writers call Observe
// from the packet path, the detector polls Energy.
type Meter struct {
	bits       atomic.Uint64
	lastUpdate atomic.Int64
	staleAfter time.Duration

	done chan struct{}
	once sync.Once
}

func NewMeter(staleAfter time.Duration) *Meter {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Meter{staleAfter: staleAfter, done: make(chan struct{})}
}

func (m *Meter) Observe(energy float64) {
	m.bits.Store(math.Float64bits(clamp(energy)))
	m.lastUpdate.Store(time.Now().UnixNano())
}

func (m *Meter) Energy() float64 {
	last := m.lastUpdate.Load()
	if last == 0 || time.Since(time.Unix(0, last)) > m.staleAfter {
		return 0
	}
	return math.Float64frombits(m.bits.Load())
}

func (m *Meter) Done() <-chan struct{} { return m.done }

// Close marks the stream as ended. Safe to call more than once.
func (m *Meter) Close() {
	m.once.Do(func() { close(m.done) })
}

// LevelEnergy maps an RFC 6464 audio level (0 loudest .. 127 silent, -dBov)
// onto the energy scale.
func LevelEnergy(level uint8) float64 {
	if level > 127 {
		level = 127
	}
	return MaxEnergy * float64(127-level) / 127
}

// Opus frames of silence or DTX are a handful of bytes while voiced 20ms
// frames run from ~30 to ~160 bytes, so the payload size tracks loudness.
const (
	opusSilentBytes = 8
	opusLoudBytes   = 160
)

// OpusEnergy estimates energy from the size of one opus payload.
func OpusEnergy(payloadLen int) float64 {
	if payloadLen <= opusSilentBytes {
		return 0
	}
	return clamp(MaxEnergy * float64(payloadLen-opusSilentBytes) / float64(opusLoudBytes-opusSilentBytes))
}

func clamp(e float64) float64 {
	switch {
	case e < 0 || math.IsNaN(e):
		return 0
	case e > MaxEnergy:
		return MaxEnergy
	}
	return e
}
