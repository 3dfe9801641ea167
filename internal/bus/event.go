package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	ChatID    string // empty for events not scoped to a conversation
	Timestamp time.Time
	Payload   any
}

// Scoped builds an event tied to a single conversation so observers
// can re-render only that conversation's view.
func Scoped(kind, chatID string, payload any) Event {
	return Event{
		Kind:      kind,
		ChatID:    chatID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}
