package sessionkit

import "errors"

// Token verification failures. Callers must distinguish ErrTokenExpired
// (recoverable through the refresh flow) from the other two (re-authentication
// required).
var (
	// ErrTokenMalformed indicates a structurally invalid token string.
	ErrTokenMalformed = errors.New("token.malformed")
	// ErrTokenSignature indicates a tampered token or one signed for the other kind.
	ErrTokenSignature = errors.New("token.invalid_signature")
	// ErrTokenExpired indicates a well-formed, correctly signed token past its expiry.
	ErrTokenExpired = errors.New("token.expired")
)

// Credential store failures.
var (
	// ErrCredentialNotFound indicates no stored refresh token for the identity.
	ErrCredentialNotFound = errors.New("credential_store.not_found")
	// ErrStoreUnavailable indicates the backing store could not be reached.
	// It must never be conflated with an absent session.
	ErrStoreUnavailable = errors.New("credential_store.unavailable")
)

// Session manager failures.
var (
	// ErrUnauthenticated indicates no token was presented where one is required.
	ErrUnauthenticated = errors.New("session.unauthenticated")
	// ErrRevokedOrSuperseded indicates a syntactically valid refresh token that
	// no longer matches the stored value for its identity.
	ErrRevokedOrSuperseded = errors.New("session.revoked_or_superseded")
)
