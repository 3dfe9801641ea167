package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/murmurchat/murmur/internal/bus"
	"github.com/murmurchat/murmur/internal/transport"
	"go.uber.org/zap"
)

// ChatTransport is the slice of the REST client the chat store needs.
type ChatTransport interface {
	ListChats(ctx context.Context) ([]transport.Chat, error)
	DeleteChats(ctx context.Context, chatIDs []string) ([]string, error)
}

// ChatStore maintains the conversation list and its denormalized
// latestMessage cache. It also subscribes to message events so a send or
// load keeps the list's previews current.
type ChatStore struct {
	mu     sync.RWMutex
	tp     ChatTransport
	bus    *bus.Bus
	logger *zap.Logger
	self   string
	chats  []Chat
	cancel context.CancelFunc
}

// NewChatStore creates a chat store backed by the given transport.
func NewChatStore(tp ChatTransport, b *bus.Bus, logger *zap.Logger) *ChatStore {
	return &ChatStore{tp: tp, bus: b, logger: logger}
}

// SetSelf records the acting user id, used to derive 1:1 display names.
func (s *ChatStore) SetSelf(userID string) {
	s.mu.Lock()
	s.self = userID
	s.mu.Unlock()
}

// Start subscribes to message events so latestMessage stays current.
func (s *ChatStore) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	ch, unsub := s.bus.Subscribe("message.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if evt.Kind != "message.sent" && evt.Kind != "message.pending" {
					continue
				}
				if payload, ok := evt.Payload.(MessageEvent); ok {
					s.applyMessage(payload.Message)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the event subscription.
func (s *ChatStore) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// LoadChats replaces the conversation list from the server, sorted by
// latest activity descending.
func (s *ChatStore) LoadChats(ctx context.Context) error {
	wire, err := s.tp.ListChats(ctx)
	if err != nil {
		return fmt.Errorf("load chats: %w", err)
	}

	s.mu.Lock()
	chats := make([]Chat, 0, len(wire))
	for _, c := range wire {
		chats = append(chats, s.fromWireChat(c))
	}
	sortChats(chats)
	s.chats = chats
	s.mu.Unlock()

	s.bus.Publish(bus.Event{Kind: "chat.loaded", Payload: len(chats)})
	return nil
}

// DeleteChats removes conversations only upon server confirmation; the
// removed set is whatever the server reports as actually deleted.
func (s *ChatStore) DeleteChats(ctx context.Context, chatIDs []string) error {
	if len(chatIDs) == 0 {
		return nil
	}
	deleted, err := s.tp.DeleteChats(ctx, chatIDs)
	if err != nil {
		return fmt.Errorf("delete chats: %w", err)
	}

	gone := make(map[string]struct{}, len(deleted))
	for _, id := range deleted {
		gone[id] = struct{}{}
	}

	s.mu.Lock()
	kept := s.chats[:0]
	for _, c := range s.chats {
		if _, ok := gone[c.ID]; ok {
			continue
		}
		kept = append(kept, c)
	}
	s.chats = kept
	s.mu.Unlock()

	s.bus.Publish(bus.Event{Kind: "chat.deleted", Payload: deleted})
	return nil
}

// applyMessage updates a conversation's latestMessage pointer when a
// newer message for it is observed.
func (s *ChatStore) applyMessage(m Message) {
	s.mu.Lock()
	updated := false
	for i := range s.chats {
		if s.chats[i].ID != m.ChatID {
			continue
		}
		latest := s.chats[i].LatestMessage
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			msg := m
			s.chats[i].LatestMessage = &msg
			updated = true
		}
		break
	}
	if updated {
		sortChats(s.chats)
	}
	s.mu.Unlock()

	if updated {
		s.bus.Publish(bus.Scoped("chat.updated", m.ChatID, nil))
	}
}

// Chats returns a copy of the conversation list.
func (s *ChatStore) Chats() []Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Chat(nil), s.chats...)
}

// Chat returns a single conversation by id.
func (s *ChatStore) Chat(chatID string) (Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.chats {
		if c.ID == chatID {
			return c, true
		}
	}
	return Chat{}, false
}

// Reset drops the conversation list. Part of the logout cascade.
func (s *ChatStore) Reset() {
	s.mu.Lock()
	s.chats = nil
	s.mu.Unlock()
}

func (s *ChatStore) fromWireChat(c transport.Chat) Chat {
	chat := Chat{
		ID:      c.ID,
		Name:    c.Name,
		IsGroup: c.IsGroup,
	}
	for _, p := range c.Users {
		chat.Participants = append(chat.Participants, Sender{ID: p.ID, Username: p.Username})
	}
	if !c.IsGroup {
		// 1:1 chats display the other participant's username.
		for _, p := range c.Users {
			if p.ID != s.self {
				chat.Name = p.Username
				break
			}
		}
	}
	if c.LatestMessage != nil {
		m := fromWire(*c.LatestMessage, StatusConfirmed)
		chat.LatestMessage = &m
	}
	return chat
}

func sortChats(chats []Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		var ti, tj int64
		if chats[i].LatestMessage != nil {
			ti = chats[i].LatestMessage.CreatedAt.UnixMilli()
		}
		if chats[j].LatestMessage != nil {
			tj = chats[j].LatestMessage.CreatedAt.UnixMilli()
		}
		return ti > tj
	})
}
