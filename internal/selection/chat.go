package selection

import "context"

// ChatDeleter deletes conversations, typically the chat store.
type ChatDeleter interface {
	DeleteChats(ctx context.Context, chatIDs []string) error
}

// DeleteSelectedChats deletes every selected conversation, clearing the
// selection only when the delete succeeds. Empty selection is a no-op.
func DeleteSelectedChats(ctx context.Context, s *Set, d ChatDeleter) error {
	ids := s.IDs()
	if len(ids) == 0 {
		return nil
	}
	if err := d.DeleteChats(ctx, ids); err != nil {
		return err
	}
	s.Clear()
	return nil
}
