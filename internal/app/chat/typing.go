package chat

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

// DefaultTypingWindow is how long a name stays without a refreshing event.
const DefaultTypingWindow = 2 * time.Second

type typingEntry struct {
	timer *time.Timer
	gen   uint64
}

// TypingRoster tracks who is typing. Each name owns one timer that is
// reset by every refresh; only the latest timer may remove the name.
type TypingRoster struct {
	window   time.Duration
	onChange func(names []string)

	mu      sync.Mutex
	entries map[string]*typingEntry
}

func NewTypingRoster(window time.Duration, onChange func(names []string)) *TypingRoster {
	if window <= 0 {
		window = DefaultTypingWindow
	}
	if onChange == nil {
		onChange = func([]string) {}
	}
	return &TypingRoster{window: window, onChange: onChange, entries: make(map[string]*typingEntry)}
}

// Touch inserts name or restarts its window.
func (r *TypingRoster) Touch(name string) {
	r.mu.Lock()
	e, existed := r.entries[name]
	if !existed {
		e = &typingEntry{}
		r.entries[name] = e
	}
	e.gen++
	gen := e.gen
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(r.window, func() { r.expire(name, gen) })
	names := r.namesLocked()
	r.mu.Unlock()

	if !existed {
		r.onChange(names)
	}
}

func (r *TypingRoster) expire(name string, gen uint64) {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok || e.gen != gen {
		r.mu.Unlock()
		return
	}
	delete(r.entries, name)
	names := r.namesLocked()
	r.mu.Unlock()
	r.onChange(names)
}

// Clear stops every timer without notifying.
func (r *TypingRoster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.entries {
		e.timer.Stop()
		delete(r.entries, name)
	}
}

func (r *TypingRoster) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namesLocked()
}

func (r *TypingRoster) namesLocked() []string {
	names := lo.Keys(r.entries)
	slices.Sort(names)
	return names
}

// TypingLabel renders the roster for display.
func TypingLabel(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing", names[0])
	case 2:
		return fmt.Sprintf("%s, %s are typing", names[0], names[1])
	default:
		return fmt.Sprintf("%s, %s and others are typing", names[0], names[1])
	}
}
