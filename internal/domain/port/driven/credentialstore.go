package driven

import (
	"context"
	"errors"
	"time"

	"github.com/dkendall/ledgerlink/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by vault operations when
// LEDGERLINK_ENCRYPTION_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set LEDGERLINK_ENCRYPTION_KEY")

// ErrInvalidInstitution is returned when an institution tag is not one of
// the recognized symbols.
var ErrInvalidInstitution = errors.New("unknown institution")

// CredentialStore is the driven port for encrypted credential rows. It
// stores ciphertext only; encryption and decryption happen in the
// application-layer vault.
type CredentialStore interface {
	// Insert writes a new credential row. Rows are never updated in place;
	// a re-store for the same institution adds a newer row.
	Insert(ctx context.Context, cred model.Credential) error

	// LatestByInstitution returns the most recently created credential for
	// the (user, institution) pair, or nil when none exists.
	LatestByInstitution(ctx context.Context, userID string, tag model.InstitutionTag) (*model.Credential, error)

	// TouchLastUsed stamps the last-used timestamp on a credential row.
	TouchLastUsed(ctx context.Context, id string, at time.Time) error

	// CountByInstitution returns how many credential rows exist for the
	// (user, institution) pair.
	CountByInstitution(ctx context.Context, userID string, tag model.InstitutionTag) (int, error)

	// DeleteByInstitution removes every credential row for the
	// (user, institution) pair and returns how many were removed.
	DeleteByInstitution(ctx context.Context, userID string, tag model.InstitutionTag) (int64, error)
}
