// Package vad classifies audio meters as speaking or silent.
package vad

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Murmur/internal/core"
)

// DefaultPeriod is one display frame at 60Hz.
const DefaultPeriod = 16 * time.Millisecond

// Classifier turns energy samples into speaking edges.
type Classifier struct {
	threshold float64
	speaking  bool
}

func NewClassifier(threshold float64) *Classifier {
	return &Classifier{threshold: threshold}
}

// Sample reports the state after energy and whether it just flipped.
func (c *Classifier) Sample(energy float64) (speaking, changed bool) {
	now := energy > c.threshold
	if now == c.speaking {
		return now, false
	}
	c.speaking = now
	return now, true
}

func (c *Classifier) Speaking() bool { return c.speaking }

// Samples reads the meter once per period until ctx ends or the stream does.
func Samples(ctx context.Context, meter core.AudioMeter, period time.Duration) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-meter.Done():
				return
			case <-ticker.C:
				if !yield(meter.Energy()) {
					return
				}
			}
		}
	}
}

// Transition is called on every speaking edge of an observed stream.
type Transition func(id string, speaking bool)

type observation struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Detector runs one sampling loop per observed stream id.
type Detector struct {
	period   time.Duration
	onChange Transition

	mu           sync.Mutex
	observations map[string]*observation
}

func NewDetector(period time.Duration, onChange Transition) *Detector {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Detector{
		period:       period,
		onChange:     onChange,
		observations: make(map[string]*observation),
	}
}

// Observe starts sampling meter under id, replacing any earlier observation
// of the same id. The loop ends with ctx, Stop, or the end of the stream.
func (d *Detector) Observe(ctx context.Context, id string, meter core.AudioMeter, threshold float64) {
	ctx, cancel := context.WithCancel(ctx)
	obs := &observation{cancel: cancel, done: make(chan struct{})}

	d.mu.Lock()
	prev := d.observations[id]
	d.observations[id] = obs
	d.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}

	log.Debug().Str("module", "vad").Str("stream", id).Float64("threshold", threshold).Msg("observing")
	go d.loop(ctx, id, obs, meter, threshold)
}

func (d *Detector) loop(ctx context.Context, id string, obs *observation, meter core.AudioMeter, threshold float64) {
	defer close(obs.done)
	cls := NewClassifier(threshold)
	for energy := range Samples(ctx, meter, d.period) {
		if speaking, changed := cls.Sample(energy); changed && d.current(id, obs) {
			d.onChange(id, speaking)
		}
	}

	// a stream that ended while speaking goes silent; a cancelled one is the owner's to clean up
	if ctx.Err() == nil && cls.Speaking() && d.current(id, obs) {
		d.onChange(id, false)
	}
	d.mu.Lock()
	if d.observations[id] == obs {
		delete(d.observations, id)
	}
	d.mu.Unlock()
	obs.cancel()
}

func (d *Detector) current(id string, obs *observation) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.observations[id] == obs
}

// Stop cancels the observation of id without waiting for it.
func (d *Detector) Stop(id string) {
	d.mu.Lock()
	obs := d.observations[id]
	delete(d.observations, id)
	d.mu.Unlock()
	if obs != nil {
		obs.cancel()
	}
}

// StopAll cancels every observation and waits for the loops to exit.
// Must not be called from a Transition callback.
func (d *Detector) StopAll() {
	d.mu.Lock()
	all := d.observations
	d.observations = make(map[string]*observation)
	d.mu.Unlock()

	for _, obs := range all {
		obs.cancel()
	}
	for _, obs := range all {
		<-obs.done
	}
}

// Observing reports whether id has a live observation.
func (d *Detector) Observing(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.observations[id]
	return ok
}
