package model

import "time"

// Credential is one encrypted access token for an institution, owned by a
// user. Multiple rows may exist per (user, institution) pair; reads always
// select the most recently created one. Ciphertext and IV are base64.
type Credential struct {
	ID          string
	UserID      string
	Institution InstitutionTag
	Ciphertext  string
	IV          string
	CreatedAt   time.Time
	LastUsedAt  *time.Time
}
