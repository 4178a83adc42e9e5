// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dkendall/ledgerlink/internal/crypto"
	"github.com/dkendall/ledgerlink/internal/domain/model"
	"github.com/dkendall/ledgerlink/internal/domain/port/driven"
)

// Vault owns the lifecycle of encrypted institution credentials: store,
// retrieve (latest-created wins), existence check, and delete. Encryption
// happens here, at the boundary between plaintext and the store; the
// credential store only ever sees ciphertext.
//
// Superseded rows are retained rather than pruned on re-store, so the
// history of stored credentials survives for audit. Delete removes all rows
// for the institution.
type Vault struct {
	creds driven.CredentialStore
	users driven.UserStore
	key   string // base64 AES-256 key; empty disables credential storage.
	now   func() time.Time
}

// NewVault creates a Vault. key must be a base64-encoded 256-bit key, or
// empty to disable credential storage (operations then return
// ErrEncryptionKeyNotSet).
func NewVault(creds driven.CredentialStore, users driven.UserStore, key string) *Vault {
	return &Vault{
		creds: creds,
		users: users,
		key:   key,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Store encrypts secret and persists it as a fresh credential row for the
// (user, institution) pair, creating the owning user record on first use.
// Older rows for the same pair are left in place; Retrieve picks the newest.
func (v *Vault) Store(ctx context.Context, userID string, tag model.InstitutionTag, secret string) (model.Credential, error) {
	if err := v.check(tag); err != nil {
		return model.Credential{}, err
	}

	if err := v.users.Ensure(ctx, userID); err != nil {
		return model.Credential{}, fmt.Errorf("ensure user: %w", err)
	}

	payload, err := crypto.Encrypt(secret, v.key)
	if err != nil {
		return model.Credential{}, err
	}

	cred := model.Credential{
		ID:          uuid.NewString(),
		UserID:      userID,
		Institution: tag,
		Ciphertext:  payload.Ciphertext,
		IV:          payload.IV,
		CreatedAt:   v.now(),
	}
	if err := v.creds.Insert(ctx, cred); err != nil {
		return model.Credential{}, err
	}

	slog.Info("credential stored", "institution", tag, "credential_id", cred.ID)
	return cred, nil
}

// Retrieve returns the decrypted secret for the most recently stored
// credential, stamping its last-used timestamp. found is false when no
// credential exists. A decryption failure propagates: it means the stored
// ciphertext no longer matches the configured key (key rotation orphaned
// it), which callers must surface rather than treat as absence.
func (v *Vault) Retrieve(ctx context.Context, userID string, tag model.InstitutionTag) (secret string, found bool, err error) {
	if err := v.check(tag); err != nil {
		return "", false, err
	}

	latest, err := v.creds.LatestByInstitution(ctx, userID, tag)
	if err != nil {
		return "", false, err
	}
	if latest == nil {
		return "", false, nil
	}

	if err := v.creds.TouchLastUsed(ctx, latest.ID, v.now()); err != nil {
		return "", false, fmt.Errorf("touch last used: %w", err)
	}

	plaintext, err := crypto.Decrypt(crypto.Payload{Ciphertext: latest.Ciphertext, IV: latest.IV}, v.key)
	if err != nil {
		return "", false, fmt.Errorf("credential %q for %s: %w", latest.ID, tag, err)
	}

	return plaintext, true, nil
}

// Exists reports whether any credential is stored for the pair.
func (v *Vault) Exists(ctx context.Context, userID string, tag model.InstitutionTag) (bool, error) {
	if !tag.Valid() {
		return false, fmt.Errorf("%w: %q", driven.ErrInvalidInstitution, tag)
	}

	n, err := v.creds.CountByInstitution(ctx, userID, tag)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes every credential row for the pair, reporting whether at
// least one was removed.
func (v *Vault) Delete(ctx context.Context, userID string, tag model.InstitutionTag) (bool, error) {
	if !tag.Valid() {
		return false, fmt.Errorf("%w: %q", driven.ErrInvalidInstitution, tag)
	}

	n, err := v.creds.DeleteByInstitution(ctx, userID, tag)
	if err != nil {
		return false, err
	}
	if n > 0 {
		slog.Info("credentials deleted", "institution", tag, "removed", n)
	}
	return n > 0, nil
}

// check validates the tag and the presence of key material for operations
// that touch the cipher.
func (v *Vault) check(tag model.InstitutionTag) error {
	if !tag.Valid() {
		return fmt.Errorf("%w: %q", driven.ErrInvalidInstitution, tag)
	}
	if v.key == "" {
		return driven.ErrEncryptionKeyNotSet
	}
	return nil
}
