package vad

import (
	"context"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeMeter struct {
	bits atomic.Uint64
	done chan struct{}
	once sync.Once
}

func newFakeMeter() *fakeMeter { return &fakeMeter{done: make(chan struct{})} }

func (m *fakeMeter) set(e float64)         { m.bits.Store(math.Float64bits(e)) }
func (m *fakeMeter) Energy() float64       { return math.Float64frombits(m.bits.Load()) }
func (m *fakeMeter) Done() <-chan struct{} { return m.done }
func (m *fakeMeter) end()                  { m.once.Do(func() { close(m.done) }) }

type edge struct {
	id       string
	speaking bool
}

type recorder struct {
	mu    sync.Mutex
	edges []edge
}

func (r *recorder) record(id string, speaking bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = append(r.edges, edge{id, speaking})
}

func (r *recorder) get() []edge {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.edges)
}

func TestClassifier(t *testing.T) {
	t.Run("should only report threshold crossings", func(t *testing.T) {
		cls := NewClassifier(35)
		var flips []bool
		for _, e := range []float64{10, 40, 50, 60, 35, 5, 0, 36} {
			if speaking, changed := cls.Sample(e); changed {
				flips = append(flips, speaking)
			}
		}
		require.Equal(t, []bool{true, false, true}, flips)
	})

	t.Run("should treat the threshold itself as silence", func(t *testing.T) {
		cls := NewClassifier(25)
		speaking, changed := cls.Sample(25)
		require.False(t, speaking)
		require.False(t, changed)
	})
}

func TestSamples(t *testing.T) {
	t.Run("should stop when the stream ends", func(t *testing.T) {
		m := newFakeMeter()
		m.set(7)
		n := 0
		for e := range Samples(context.Background(), m, time.Millisecond) {
			require.Equal(t, 7.0, e)
			n++
			if n == 3 {
				m.end()
			}
		}
		require.GreaterOrEqual(t, n, 3)
	})

	t.Run("should stop when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		for range Samples(ctx, newFakeMeter(), time.Millisecond) {
			t.Fatal("no sample expected")
		}
	})
}

func TestDetector(t *testing.T) {
	t.Run("should emit one edge per transition for sustained speech", func(t *testing.T) {
		rec := &recorder{}
		d := NewDetector(time.Millisecond, rec.record)
		t.Cleanup(d.StopAll)

		m := newFakeMeter()
		d.Observe(context.Background(), "a", m, 35)

		m.set(80)
		require.Eventually(t, func() bool { return len(rec.get()) == 1 }, time.Second, time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, []edge{{"a", true}}, rec.get())

		m.set(0)
		require.Eventually(t, func() bool { return len(rec.get()) == 2 }, time.Second, time.Millisecond)
		require.Equal(t, edge{"a", false}, rec.get()[1])
	})

	t.Run("should go silent when a speaking stream ends", func(t *testing.T) {
		rec := &recorder{}
		d := NewDetector(time.Millisecond, rec.record)

		m := newFakeMeter()
		m.set(100)
		d.Observe(context.Background(), "b", m, 25)
		require.Eventually(t, func() bool { return len(rec.get()) == 1 }, time.Second, time.Millisecond)

		m.end()
		require.Eventually(t, func() bool { return !d.Observing("b") }, time.Second, time.Millisecond)
		require.Equal(t, []edge{{"b", true}, {"b", false}}, rec.get())
	})

	t.Run("should replace an observation of the same id", func(t *testing.T) {
		rec := &recorder{}
		d := NewDetector(time.Millisecond, rec.record)
		t.Cleanup(d.StopAll)

		old := newFakeMeter()
		old.set(100)
		d.Observe(context.Background(), "c", old, 25)
		require.Eventually(t, func() bool { return len(rec.get()) == 1 }, time.Second, time.Millisecond)

		fresh := newFakeMeter()
		d.Observe(context.Background(), "c", fresh, 25)
		time.Sleep(20 * time.Millisecond)
		require.Len(t, rec.get(), 1)

		fresh.set(100)
		require.Eventually(t, func() bool { return len(rec.get()) == 2 }, time.Second, time.Millisecond)
		require.Equal(t, edge{"c", true}, rec.get()[1])
	})

	t.Run("should stop every loop on StopAll", func(t *testing.T) {
		rec := &recorder{}
		d := NewDetector(time.Millisecond, rec.record)

		m1, m2 := newFakeMeter(), newFakeMeter()
		d.Observe(context.Background(), "x", m1, 35)
		d.Observe(context.Background(), "y", m2, 25)
		d.StopAll()

		require.False(t, d.Observing("x"))
		require.False(t, d.Observing("y"))
		m1.set(100)
		m2.set(100)
		time.Sleep(20 * time.Millisecond)
		require.Empty(t, rec.get())
	})
}
