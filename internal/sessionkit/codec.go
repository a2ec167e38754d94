package sessionkit

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind selects which signing context a token belongs to. Access and
// refresh tokens are signed with independent secrets so one can never be
// replayed as the other.
type TokenKind string

const (
	// KindAccess marks the short-lived per-request credential.
	KindAccess TokenKind = "access"
	// KindRefresh marks the long-lived credential exchanged for new access tokens.
	KindRefresh TokenKind = "refresh"
)

// SessionClaims is the payload embedded in both token kinds.
type SessionClaims struct {
	TokenKind string `json:"token_kind"`
	jwt.RegisteredClaims
}

// TokenCodec mints and verifies signed HS256 session tokens. It has no side
// effects: output is a pure function of inputs, the clock, and the two
// signing secrets.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	clock         Clock
}

// NewTokenCodec validates the signing configuration and returns a codec.
func NewTokenCodec(configuration ServerConfig, clock Clock) (*TokenCodec, error) {
	if len(configuration.AccessTokenSecret) == 0 {
		return nil, fmt.Errorf("token.codec.new: access token secret must be provided")
	}
	if len(configuration.RefreshTokenSecret) == 0 {
		return nil, fmt.Errorf("token.codec.new: refresh token secret must be provided")
	}
	if bytes.Equal(configuration.AccessTokenSecret, configuration.RefreshTokenSecret) {
		return nil, fmt.Errorf("token.codec.new: access and refresh secrets must differ")
	}
	if strings.TrimSpace(configuration.TokenIssuer) == "" {
		return nil, fmt.Errorf("token.codec.new: issuer must be non-empty")
	}
	if configuration.AccessTTL <= 0 || configuration.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token.codec.new: token lifetimes must be greater than zero")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &TokenCodec{
		accessSecret:  configuration.AccessTokenSecret,
		refreshSecret: configuration.RefreshTokenSecret,
		issuer:        configuration.TokenIssuer,
		accessTTL:     configuration.AccessTTL,
		refreshTTL:    configuration.RefreshTTL,
		clock:         clock,
	}, nil
}

// Mint produces a signed token for the identity with the per-kind lifetime.
func (codec *TokenCodec) Mint(identity string, kind TokenKind) (string, time.Time, error) {
	if strings.TrimSpace(identity) == "" {
		return "", time.Time{}, fmt.Errorf("token.mint: subject must be non-empty")
	}
	secret, ttl, kindErr := codec.kindContext(kind)
	if kindErr != nil {
		return "", time.Time{}, kindErr
	}
	issuedAt := codec.clock.Now()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		TokenKind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    codec.issuer,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, signErr := token.SignedString(secret)
	if signErr != nil {
		return "", time.Time{}, fmt.Errorf("token.mint: %w", signErr)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, signing context, and expiry, and returns the
// identity the token was minted for. A token strictly before its expiry
// verifies; at or after the expiry instant it fails with ErrTokenExpired.
func (codec *TokenCodec) Verify(tokenString string, kind TokenKind) (string, error) {
	if strings.TrimSpace(tokenString) == "" {
		return "", fmt.Errorf("token.verify: %w", ErrTokenMalformed)
	}
	secret, _, kindErr := codec.kindContext(kind)
	if kindErr != nil {
		return "", kindErr
	}
	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(parsed *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(codec.issuer),
		jwt.WithTimeFunc(func() time.Time {
			return codec.clock.Now()
		}))
	if parseErr != nil {
		return "", fmt.Errorf("token.verify: %w", codec.mapParseError(parseErr))
	}
	if parsedToken == nil || !parsedToken.Valid {
		return "", fmt.Errorf("token.verify: %w", ErrTokenSignature)
	}
	claims, ok := parsedToken.Claims.(*SessionClaims)
	if !ok {
		return "", fmt.Errorf("token.verify: %w", ErrTokenMalformed)
	}
	if claims.TokenKind != string(kind) {
		return "", fmt.Errorf("token.verify: %w", ErrTokenSignature)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("token.verify: %w", ErrTokenMalformed)
	}
	return claims.Subject, nil
}

// AccessTTL exposes the configured access token lifetime.
func (codec *TokenCodec) AccessTTL() time.Duration {
	return codec.accessTTL
}

// RefreshTTL exposes the configured refresh token lifetime.
func (codec *TokenCodec) RefreshTTL() time.Duration {
	return codec.refreshTTL
}

// Now exposes the codec clock so callers share its notion of time.
func (codec *TokenCodec) Now() time.Time {
	return codec.clock.Now()
}

func (codec *TokenCodec) kindContext(kind TokenKind) ([]byte, time.Duration, error) {
	switch kind {
	case KindAccess:
		return codec.accessSecret, codec.accessTTL, nil
	case KindRefresh:
		return codec.refreshSecret, codec.refreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("token.kind.%s: unsupported token kind", kind)
	}
}

// mapParseError folds the jwt library's joined errors into the codec
// taxonomy. Signature failures win over expiry: a token signed for the wrong
// context is fatal even when it is also expired.
func (codec *TokenCodec) mapParseError(parseErr error) error {
	switch {
	case errors.Is(parseErr, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignature
	case errors.Is(parseErr, jwt.ErrTokenInvalidIssuer):
		return ErrTokenSignature
	case errors.Is(parseErr, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(parseErr, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return ErrTokenMalformed
	}
}
