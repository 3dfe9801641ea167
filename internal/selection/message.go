package selection

import (
	"context"
	"sort"
	"sync"
)

// Deleter applies a confirmed bulk delete of messages.
type Deleter interface {
	Delete(ctx context.Context, chatID string, messageIDs []string) error
}

// MessageSelection is the message-scope selection: the id set plus a
// counted multiset of the selected messages' senders. The sender counts
// matter: two selected messages from one author must keep that author
// present until both are deselected.
type MessageSelection struct {
	mu           sync.RWMutex
	self         string
	ids          map[string]struct{}
	senders      map[string]int
	canDeleteAll bool
}

// NewMessageSelection creates an empty message selection for the acting user.
func NewMessageSelection(actingUserID string) *MessageSelection {
	return &MessageSelection{
		self:         actingUserID,
		ids:          make(map[string]struct{}),
		senders:      make(map[string]int),
		canDeleteAll: true,
	}
}

// SetSelf updates the acting user id (set after login) and recomputes
// the delete permission.
func (s *MessageSelection) SetSelf(userID string) {
	s.mu.Lock()
	s.self = userID
	s.recompute()
	s.mu.Unlock()
}

// Toggle flips membership of messageID, pairing every add/remove with
// the corresponding sender count change, and recomputes the delete
// permission. Returns whether the message is now selected.
func (s *MessageSelection) Toggle(messageID, senderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var selected bool
	if _, ok := s.ids[messageID]; ok {
		delete(s.ids, messageID)
		if s.senders[senderID] > 1 {
			s.senders[senderID]--
		} else {
			delete(s.senders, senderID)
		}
	} else {
		s.ids[messageID] = struct{}{}
		s.senders[senderID]++
		selected = true
	}
	s.recompute()
	return selected
}

// recompute derives canDeleteAll: all selected senders equal the acting
// user. Vacuously true for an empty selection. Callers hold the lock.
func (s *MessageSelection) recompute() {
	for sender := range s.senders {
		if sender != s.self {
			s.canDeleteAll = false
			return
		}
	}
	s.canDeleteAll = true
}

// CanDeleteForEveryone reports whether every selected message was
// authored by the acting user.
func (s *MessageSelection) CanDeleteForEveryone() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canDeleteAll
}

// Clear empties both sets and resets the delete permission.
func (s *MessageSelection) Clear() {
	s.mu.Lock()
	s.ids = make(map[string]struct{})
	s.senders = make(map[string]int)
	s.canDeleteAll = true
	s.mu.Unlock()
}

// IsSelected reports membership of messageID.
func (s *MessageSelection) IsSelected(messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[messageID]
	return ok
}

// Count returns the number of selected messages.
func (s *MessageSelection) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Active reports selection mode: true iff anything is selected.
func (s *MessageSelection) Active() bool {
	return s.Count() > 0
}

// IDs returns the selected message ids, sorted.
func (s *MessageSelection) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// DeleteSelected deletes the current selection through d and clears it
// on success. An empty selection is a no-op.
func (s *MessageSelection) DeleteSelected(ctx context.Context, chatID string, d Deleter) error {
	ids := s.IDs()
	if len(ids) == 0 {
		return nil
	}
	if err := d.Delete(ctx, chatID, ids); err != nil {
		return err
	}
	s.Clear()
	return nil
}

// Reset empties the selection. Part of the logout cascade.
func (s *MessageSelection) Reset() {
	s.Clear()
}
