package session

import (
	"fmt"
	"slices"
)

// Status is an auth lifecycle state.
type Status string

const (
	Unknown         Status = "UNKNOWN"
	Checking        Status = "CHECKING"
	Authenticated   Status = "AUTHENTICATED"
	Unauthenticated Status = "UNAUTHENTICATED"
)

// validTransitions defines allowed state transitions. Checking is only
// re-entered by a fresh Initialize.
var validTransitions = map[Status][]Status{
	Unknown:         {Checking},
	Checking:        {Authenticated, Unauthenticated},
	Authenticated:   {Unauthenticated, Checking},
	Unauthenticated: {Authenticated, Checking},
}

func checkTransition(from, to Status) error {
	if !slices.Contains(validTransitions[from], to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// StatusChange is the payload for session status events.
type StatusChange struct {
	From Status
	To   Status
}
