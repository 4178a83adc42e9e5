package model

import "time"

// User owns credentials, accounts, and transactions. Created lazily the
// first time a credential is stored for it.
type User struct {
	ID        string
	CreatedAt time.Time
}
