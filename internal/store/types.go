package store

import (
	"time"

	"github.com/murmurchat/murmur/internal/transport"
)

// Kind is a message content kind.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVoice Kind = "voice"
	KindVideo Kind = "video"
)

// Status tracks a message's confirmation state. Provisional entries must
// never be indistinguishable from confirmed ones.
type Status string

const (
	StatusSending   Status = "sending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Sender identifies a message author.
type Sender struct {
	ID       string
	Username string
	Avatar   string
}

// Message is the client-visible message record.
type Message struct {
	ID        string
	ClientID  string // locally generated, correlates provisional and confirmed entries
	ChatID    string
	Sender    Sender
	Content   string
	Kind      Kind
	CreatedAt time.Time
	ReadBy    []string
	Status    Status
}

// Pagination is the per-conversation paging state. TotalMessages is a
// derived counter: +1 per confirmed send, -count per confirmed delete.
type Pagination struct {
	CurrentPage   int
	TotalPages    int
	PageSize      int
	TotalMessages int
}

// Chat is a conversation in the client-visible list.
type Chat struct {
	ID            string
	Name          string // derived: group name, or the other participant's username
	IsGroup       bool
	Participants  []Sender
	LatestMessage *Message
}

// MessageEvent is the payload for message change notifications.
type MessageEvent struct {
	ChatID  string
	Message Message
}

// DeleteEvent is the payload for confirmed bulk deletions.
type DeleteEvent struct {
	ChatID     string
	MessageIDs []string
}

// ReadEvent is the payload for read receipt changes.
type ReadEvent struct {
	ChatID    string
	MessageID string
	UserID    string
}

func fromWire(m transport.Message, status Status) Message {
	return Message{
		ID:     m.ID,
		ChatID: m.ChatID,
		Sender: Sender{
			ID:       m.Sender.ID,
			Username: m.Sender.Username,
			Avatar:   m.Sender.Avatar,
		},
		Content:   m.Content,
		Kind:      Kind(m.Type),
		CreatedAt: m.CreatedAt,
		ReadBy:    append([]string(nil), m.ReadBy...),
		Status:    status,
	}
}

func fromWirePagination(p transport.Pagination) Pagination {
	return Pagination{
		CurrentPage:   p.CurrentPage,
		TotalPages:    p.TotalPages,
		PageSize:      p.PageSize,
		TotalMessages: p.TotalMessages,
	}
}
