package store

import "context"

// Mutation is the generic apply-locally, attempt-remotely,
// reconcile-or-flag primitive shared by optimistic operations, so every
// caller gets the same rollback behavior.
type Mutation[T any] struct {
	Apply     func()                           // local optimistic state change
	Attempt   func(context.Context) (T, error) // remote call
	Reconcile func(T)                          // fold the confirmed result back in
	Fail      func(error)                      // flag or roll back the optimistic change
}

// Run executes the mutation. The optimistic Apply always happens before
// the Attempt; exactly one of Reconcile or Fail runs afterwards.
func Run[T any](ctx context.Context, m Mutation[T]) (T, error) {
	if m.Apply != nil {
		m.Apply()
	}
	out, err := m.Attempt(ctx)
	if err != nil {
		if m.Fail != nil {
			m.Fail(err)
		}
		var zero T
		return zero, err
	}
	if m.Reconcile != nil {
		m.Reconcile(out)
	}
	return out, nil
}
