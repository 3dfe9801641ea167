package session

// Domain names a resettable slice of application state.
type Domain string

const (
	DomainSession          Domain = "session"
	DomainChats            Domain = "chats"
	DomainMessages         Domain = "messages"
	DomainChatSelection    Domain = "chat_selection"
	DomainMessageSelection Domain = "message_selection"
)

// LogoutDomains is the explicit table of what a logout resets. Anything
// not listed (e.g. theme or layout preferences owned by the UI layer)
// survives.
var LogoutDomains = []Domain{
	DomainSession,
	DomainChats,
	DomainMessages,
	DomainChatSelection,
	DomainMessageSelection,
}

// Resettable is implemented by every store whose state can be cleared
// back to its initial empty value.
type Resettable interface {
	Reset()
}

// Registry maps domains to their owning stores.
type Registry map[Domain]Resettable

// Reset clears the given domains. Unregistered domains are skipped.
func (r Registry) Reset(domains ...Domain) {
	for _, d := range domains {
		if target, ok := r[d]; ok && target != nil {
			target.Reset()
		}
	}
}
