package driven

import "context"

// UserStore is the driven port for the owning-user records credentials and
// entities hang off.
type UserStore interface {
	// Ensure creates the user row if it does not already exist. Idempotent.
	Ensure(ctx context.Context, id string) error
}
