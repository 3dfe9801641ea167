package selection

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestSetToggleParity(t *testing.T) {
	s := NewSet()

	// Odd toggle count selects, even deselects.
	toggles := []string{"a", "b", "a", "c", "c", "c"}
	for _, id := range toggles {
		s.Toggle(id)
	}

	if !s.IsSelected("b") || !s.IsSelected("c") {
		t.Error("odd-toggled ids not selected")
	}
	if s.IsSelected("a") {
		t.Error("even-toggled id still selected")
	}
	if got := s.Count(); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
}

func TestSetClearAndSelectionMode(t *testing.T) {
	s := NewSet()
	if s.Active() {
		t.Error("empty set reports selection mode")
	}
	s.Toggle("c1")
	if !s.Active() {
		t.Error("non-empty set does not report selection mode")
	}
	s.Clear()
	if s.Count() != 0 || s.Active() {
		t.Error("Clear did not empty the set")
	}
}

func TestCanDeleteForEveryone(t *testing.T) {
	s := NewMessageSelection("me")

	if !s.CanDeleteForEveryone() {
		t.Error("empty selection: want vacuously true")
	}

	s.Toggle("m1", "me")
	s.Toggle("m2", "me")
	if !s.CanDeleteForEveryone() {
		t.Error("all own messages: want true")
	}

	s.Toggle("m3", "other")
	if s.CanDeleteForEveryone() {
		t.Error("foreign message selected: want false")
	}

	// Removing the foreign message flips it back.
	s.Toggle("m3", "other")
	if !s.CanDeleteForEveryone() {
		t.Error("foreign message deselected: want true again")
	}
}

func TestSenderCountsWithDuplicateSender(t *testing.T) {
	s := NewMessageSelection("me")

	// Two selected messages from the same other author; deselecting one
	// must not erase the author from the permission check.
	s.Toggle("m1", "other")
	s.Toggle("m2", "other")
	s.Toggle("m1", "other")

	if s.CanDeleteForEveryone() {
		t.Error("author still selected via m2: want false")
	}

	s.Toggle("m2", "other")
	if !s.CanDeleteForEveryone() {
		t.Error("selection empty: want true")
	}
}

func TestToggleKeepsSetsInSync(t *testing.T) {
	s := NewMessageSelection("me")
	for i := 0; i < 5; i++ {
		s.Toggle(fmt.Sprintf("m%d", i), "me")
	}
	if got := s.Count(); got != 5 {
		t.Fatalf("Count = %d, want 5", got)
	}
	for i := 0; i < 5; i++ {
		s.Toggle(fmt.Sprintf("m%d", i), "me")
	}
	if got := s.Count(); got != 0 {
		t.Errorf("Count = %d, want 0", got)
	}
	if !s.CanDeleteForEveryone() {
		t.Error("empty selection: want vacuously true")
	}
}

type fakeDeleter struct {
	calls [][]string
	err   error
}

func (d *fakeDeleter) Delete(_ context.Context, chatID string, ids []string) error {
	if d.err != nil {
		return d.err
	}
	d.calls = append(d.calls, ids)
	return nil
}

func TestDeleteSelectedClearsOnSuccess(t *testing.T) {
	s := NewMessageSelection("me")
	s.Toggle("m2", "me")
	s.Toggle("m1", "me")

	d := &fakeDeleter{}
	if err := s.DeleteSelected(context.Background(), "c1", d); err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 1 || len(d.calls[0]) != 2 {
		t.Errorf("delete calls = %v", d.calls)
	}
	if s.Count() != 0 {
		t.Error("selection not cleared after confirmed delete")
	}
}

func TestDeleteSelectedKeepsSelectionOnFailure(t *testing.T) {
	s := NewMessageSelection("me")
	s.Toggle("m1", "me")

	d := &fakeDeleter{err: errors.New("boom")}
	if err := s.DeleteSelected(context.Background(), "c1", d); err == nil {
		t.Fatal("expected error")
	}
	if s.Count() != 1 {
		t.Error("selection cleared despite failed delete")
	}
}

func TestDeleteSelectedEmptyNoop(t *testing.T) {
	s := NewMessageSelection("me")
	d := &fakeDeleter{err: errors.New("must not be called")}
	if err := s.DeleteSelected(context.Background(), "c1", d); err != nil {
		t.Errorf("empty selection: got %v, want nil", err)
	}
}

type fakeChatDeleter struct {
	calls [][]string
	err   error
}

func (d *fakeChatDeleter) DeleteChats(_ context.Context, ids []string) error {
	d.calls = append(d.calls, ids)
	return d.err
}

func TestDeleteSelectedChats(t *testing.T) {
	s := NewSet()
	s.Toggle("c1")
	s.Toggle("c2")

	d := &fakeChatDeleter{}
	if err := DeleteSelectedChats(context.Background(), s, d); err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 1 || len(d.calls[0]) != 2 {
		t.Errorf("delete calls = %v", d.calls)
	}
	if s.Count() != 0 {
		t.Error("selection not cleared after confirmed delete")
	}
}

func TestDeleteSelectedChatsFailureKeepsSelection(t *testing.T) {
	s := NewSet()
	s.Toggle("c1")

	d := &fakeChatDeleter{err: errors.New("boom")}
	if err := DeleteSelectedChats(context.Background(), s, d); err == nil {
		t.Fatal("expected error")
	}
	if s.Count() != 1 {
		t.Error("selection cleared despite failed delete")
	}
}
