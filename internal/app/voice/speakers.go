package voice

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// SpeakerSet is the set of user ids currently classified as speaking.
type SpeakerSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewSpeakerSet() *SpeakerSet {
	return &SpeakerSet{ids: make(map[string]struct{})}
}

// Set inserts or removes id and reports whether membership changed.
func (s *SpeakerSet) Set(id string, speaking bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, present := s.ids[id]
	switch {
	case speaking && !present:
		s.ids[id] = struct{}{}
		return true
	case !speaking && present:
		delete(s.ids, id)
		return true
	}
	return false
}

func (s *SpeakerSet) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// List returns the members sorted.
func (s *SpeakerSet) List() []string {
	s.mu.Lock()
	ids := lo.Keys(s.ids)
	s.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// ClearExcept removes every member but keep.
func (s *SpeakerSet) ClearExcept(keep string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.ids {
		if id != keep {
			delete(s.ids, id)
		}
	}
}

func (s *SpeakerSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.ids)
}
