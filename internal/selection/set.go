// Package selection implements multi-select semantics shared by the
// conversation list and the message thread. Selection mode is never a
// stored flag; it is always derived from the set being non-empty.
package selection

import (
	"sort"
	"sync"
)

// Set is a plain selection set of entity ids.
type Set struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewSet creates an empty selection set.
func NewSet() *Set {
	return &Set{ids: make(map[string]struct{})}
}

// Toggle flips membership of id and reports whether it is now selected.
func (s *Set) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Clear empties the set.
func (s *Set) Clear() {
	s.mu.Lock()
	s.ids = make(map[string]struct{})
	s.mu.Unlock()
}

// IsSelected reports membership of id.
func (s *Set) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Count returns the number of selected ids.
func (s *Set) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Active reports selection mode: true iff anything is selected.
func (s *Set) Active() bool {
	return s.Count() > 0
}

// IDs returns the selected ids, sorted for deterministic iteration.
func (s *Set) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Reset empties the set. Part of the logout cascade.
func (s *Set) Reset() {
	s.Clear()
}
