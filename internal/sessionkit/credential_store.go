package sessionkit

import (
	"context"
	"time"
)

// credentialKeyPrefix is the wire contract with the backing key-value store:
// one key per identity, value is the opaque refresh token string.
const credentialKeyPrefix = "refresh_token_"

// CredentialKey returns the store key for an identity.
func CredentialKey(identity string) string {
	return credentialKeyPrefix + identity
}

// CredentialStore persists the single current refresh token per identity.
// Put overwrites any prior value, which is what enforces the at-most-one
// invariant; Get reports absence with ErrCredentialNotFound; Delete is
// idempotent. All three surface infrastructure failures as
// ErrStoreUnavailable so callers never mistake an outage for a logout.
type CredentialStore interface {
	Put(ctx context.Context, identity string, refreshToken string, ttl time.Duration) error
	Get(ctx context.Context, identity string) (string, error)
	Delete(ctx context.Context, identity string) error
}
