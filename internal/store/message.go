package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/murmurchat/murmur/internal/bus"
	"github.com/murmurchat/murmur/internal/transport"
	"go.uber.org/zap"
)

// MessageTransport is the slice of the REST client the message store needs.
type MessageTransport interface {
	FetchMessages(ctx context.Context, chatID string, page, limit int) ([]transport.Message, transport.Pagination, error)
	SendMessage(ctx context.Context, chatID, content, kind string, media *transport.MediaFile) (*transport.Message, error)
	DeleteMessages(ctx context.Context, chatID string, messageIDs []string) error
}

// Store maintains the authoritative client-visible message list per
// conversation, newest first, plus pagination metadata. It is the sole
// mutator of those lists; observers only read.
type Store struct {
	mu     sync.RWMutex
	tp     MessageTransport
	bus    *bus.Bus
	logger *zap.Logger
	convs  map[string]*conversation
}

type conversation struct {
	messages   []Message // reverse-chronological
	pagination Pagination
	paged      bool

	// Loads are tagged with a per-conversation monotonic sequence so a
	// stale response can never clobber the result of a newer one.
	issuedSeq  uint64
	appliedSeq uint64

	// Tombstones for confirmed deletions, re-applied after any load that
	// was in flight when the delete completed.
	deleted map[string]struct{}

	lastErr string
}

// NewStore creates a message store backed by the given transport.
func NewStore(tp MessageTransport, b *bus.Bus, logger *zap.Logger) *Store {
	return &Store{
		tp:     tp,
		bus:    b,
		logger: logger,
		convs:  make(map[string]*conversation),
	}
}

func (s *Store) conv(chatID string) *conversation {
	c, ok := s.convs[chatID]
	if !ok {
		c = &conversation{deleted: make(map[string]struct{})}
		s.convs[chatID] = c
	}
	return c
}

// LoadPage requests one page of history. Page 1 replaces the list,
// later pages merge older entries at the tail. On failure existing
// state is untouched and the conversation's error flag is set.
func (s *Store) LoadPage(ctx context.Context, chatID string, page, limit int) error {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	c := s.conv(chatID)
	c.issuedSeq++
	seq := c.issuedSeq
	s.mu.Unlock()

	msgs, pg, err := s.tp.FetchMessages(ctx, chatID, page, limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	c = s.conv(chatID)

	if err != nil {
		c.lastErr = err.Error()
		s.logger.Warn("load page failed",
			zap.String("chat_id", chatID), zap.Int("page", page), zap.Error(err))
		return fmt.Errorf("load page %d for %s: %w", page, chatID, err)
	}

	if seq < c.appliedSeq {
		// A later-issued load already applied; this response is stale.
		s.logger.Info("discarding stale load",
			zap.String("chat_id", chatID), zap.Uint64("seq", seq), zap.Uint64("applied", c.appliedSeq))
		return nil
	}
	c.appliedSeq = seq
	c.lastErr = ""

	incoming := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if _, gone := c.deleted[m.ID]; gone {
			continue
		}
		incoming = append(incoming, fromWire(m, StatusConfirmed))
	}

	if page == 1 {
		// Keep in-flight provisional entries at the head; the server
		// cannot know about them yet.
		var pending []Message
		for _, m := range c.messages {
			if m.Status == StatusSending {
				pending = append(pending, m)
			}
		}
		c.messages = append(pending, incoming...)
	} else {
		seen := make(map[string]struct{}, len(c.messages))
		for _, m := range c.messages {
			seen[m.ID] = struct{}{}
		}
		for _, m := range incoming {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			c.messages = append(c.messages, m)
		}
	}

	c.pagination = fromWirePagination(pg)
	c.paged = true

	s.bus.Publish(bus.Scoped("message.loaded", chatID, len(incoming)))
	return nil
}

// Send inserts a provisional message at the head of the conversation
// immediately, dispatches it, and reconciles the provisional entry with
// the server-assigned identity on success. On failure the entry stays,
// flagged as failed. The provisional and confirmed entries are
// correlated by a client-generated id, never by content or timestamp.
func (s *Store) Send(ctx context.Context, chatID, content string, kind Kind, media *transport.MediaFile, author Sender) (Message, error) {
	clientID := uuid.NewString()
	provisional := Message{
		ID:        clientID,
		ClientID:  clientID,
		ChatID:    chatID,
		Sender:    author,
		Content:   content,
		Kind:      kind,
		CreatedAt: time.Now(),
		Status:    StatusSending,
	}

	var final Message
	_, err := Run(ctx, Mutation[*transport.Message]{
		Apply: func() {
			s.mu.Lock()
			c := s.conv(chatID)
			c.messages = append([]Message{provisional}, c.messages...)
			s.mu.Unlock()
			s.bus.Publish(bus.Scoped("message.pending", chatID, MessageEvent{ChatID: chatID, Message: provisional}))
		},
		Attempt: func(ctx context.Context) (*transport.Message, error) {
			return s.tp.SendMessage(ctx, chatID, content, string(kind), media)
		},
		Reconcile: func(wire *transport.Message) {
			confirmed := fromWire(*wire, StatusConfirmed)
			confirmed.ClientID = clientID
			if confirmed.ChatID == "" {
				confirmed.ChatID = chatID
			}

			s.mu.Lock()
			c := s.conv(chatID)
			kept := c.messages[:0]
			for _, m := range c.messages {
				if m.ClientID == clientID || m.ID == confirmed.ID {
					continue
				}
				kept = append(kept, m)
			}
			c.messages = append([]Message{confirmed}, kept...)
			if c.paged {
				c.pagination.TotalMessages++
			}
			s.mu.Unlock()

			final = confirmed
			s.bus.Publish(bus.Scoped("message.sent", chatID, MessageEvent{ChatID: chatID, Message: confirmed}))
		},
		Fail: func(sendErr error) {
			s.mu.Lock()
			c := s.conv(chatID)
			for i := range c.messages {
				if c.messages[i].ClientID == clientID {
					c.messages[i].Status = StatusFailed
					final = c.messages[i]
					break
				}
			}
			s.mu.Unlock()
			s.logger.Warn("send failed", zap.String("chat_id", chatID), zap.Error(sendErr))
			s.bus.Publish(bus.Scoped("message.send_failed", chatID, MessageEvent{ChatID: chatID, Message: final}))
		},
	})
	if err != nil {
		return final, fmt.Errorf("send message to %s: %w", chatID, err)
	}
	return final, nil
}

// Delete removes messages only upon server confirmation. The ids are
// tombstoned for the lifetime of the conversation so an overlapping
// load cannot resurrect them.
func (s *Store) Delete(ctx context.Context, chatID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	c := s.conv(chatID)
	added := make([]string, 0, len(messageIDs))
	for _, id := range messageIDs {
		if _, ok := c.deleted[id]; !ok {
			c.deleted[id] = struct{}{}
			added = append(added, id)
		}
	}
	s.mu.Unlock()

	if err := s.tp.DeleteMessages(ctx, chatID, messageIDs); err != nil {
		s.mu.Lock()
		for _, id := range added {
			delete(c.deleted, id)
		}
		s.mu.Unlock()
		return fmt.Errorf("delete messages in %s: %w", chatID, err)
	}

	s.mu.Lock()
	removed := 0
	kept := c.messages[:0]
	for _, m := range c.messages {
		if _, gone := c.deleted[m.ID]; gone {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	c.messages = kept
	if c.paged && removed > 0 {
		c.pagination.TotalMessages -= removed
		if c.pagination.TotalMessages < 0 {
			c.pagination.TotalMessages = 0
		}
	}
	s.mu.Unlock()

	s.bus.Publish(bus.Scoped("message.deleted", chatID, DeleteEvent{ChatID: chatID, MessageIDs: messageIDs}))
	return nil
}

// MarkRead adds userID to the message's readBy set if absent. Idempotent.
func (s *Store) MarkRead(chatID, messageID, userID string) {
	s.mu.Lock()
	c := s.conv(chatID)
	changed := false
	for i := range c.messages {
		if c.messages[i].ID != messageID {
			continue
		}
		already := false
		for _, r := range c.messages[i].ReadBy {
			if r == userID {
				already = true
				break
			}
		}
		if !already {
			c.messages[i].ReadBy = append(c.messages[i].ReadBy, userID)
			changed = true
		}
		break
	}
	s.mu.Unlock()

	if changed {
		s.bus.Publish(bus.Scoped("message.read", chatID, ReadEvent{ChatID: chatID, MessageID: messageID, UserID: userID}))
	}
}

// Messages returns a copy of the conversation's visible list, newest first.
func (s *Store) Messages(chatID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[chatID]
	if !ok {
		return nil
	}
	return append([]Message(nil), c.messages...)
}

// Pagination returns the conversation's paging state, if a page was loaded.
func (s *Store) Pagination(chatID string) (Pagination, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[chatID]
	if !ok {
		return Pagination{}, false
	}
	return c.pagination, c.paged
}

// LastError returns the conversation's load error flag, "" when clear.
func (s *Store) LastError(chatID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[chatID]
	if !ok {
		return ""
	}
	return c.lastErr
}

// Reset drops all conversation state. Part of the logout cascade.
func (s *Store) Reset() {
	s.mu.Lock()
	s.convs = make(map[string]*conversation)
	s.mu.Unlock()
}
