package sessionkit

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

type fixedClock struct {
	timestamp time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.timestamp
}

type controllableClock struct {
	current time.Time
}

func (clock *controllableClock) Now() time.Time {
	return clock.current
}

func (clock *controllableClock) Advance(duration time.Duration) {
	clock.current = clock.current.Add(duration)
}

func newTestServerConfig() ServerConfig {
	return ServerConfig{
		AccessTokenSecret:  []byte("access-secret-for-tests"),
		RefreshTokenSecret: []byte("refresh-secret-for-tests"),
		TokenIssuer:        "storefront",
		AccessCookieName:   "accessToken",
		RefreshCookieName:  "refreshToken",
		AccessTTL:          15 * time.Minute,
		RefreshTTL:         7 * 24 * time.Hour,
		SameSiteMode:       http.SameSiteStrictMode,
	}
}

func newTestCodec(t *testing.T, clock Clock) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(newTestServerConfig(), clock)
	if err != nil {
		t.Fatalf("building codec failed: %v", err)
	}
	return codec
}

func TestNewTokenCodecRejectsBadConfig(t *testing.T) {
	t.Parallel()

	base := newTestServerConfig()

	missingAccess := base
	missingAccess.AccessTokenSecret = nil
	if _, err := NewTokenCodec(missingAccess, nil); err == nil {
		t.Fatalf("expected error for missing access secret")
	}

	identical := base
	identical.RefreshTokenSecret = identical.AccessTokenSecret
	if _, err := NewTokenCodec(identical, nil); err == nil {
		t.Fatalf("expected error for identical secrets")
	}

	zeroTTL := base
	zeroTTL.AccessTTL = 0
	if _, err := NewTokenCodec(zeroTTL, nil); err == nil {
		t.Fatalf("expected error for zero access TTL")
	}

	noIssuer := base
	noIssuer.TokenIssuer = "  "
	if _, err := NewTokenCodec(noIssuer, nil); err == nil {
		t.Fatalf("expected error for blank issuer")
	}
}

func TestMintRejectsEmptyIdentity(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, fixedClock{timestamp: time.Unix(1700000000, 0).UTC()})
	if _, _, err := codec.Mint("  ", KindAccess); err == nil {
		t.Fatalf("expected error for empty identity")
	}
}

func TestMintVerifyRoundTripBothKinds(t *testing.T) {
	t.Parallel()

	reference := time.Unix(1700000000, 0).UTC()
	codec := newTestCodec(t, fixedClock{timestamp: reference})

	for _, kind := range []TokenKind{KindAccess, KindRefresh} {
		token, expiresAt, mintErr := codec.Mint("user-1", kind)
		if mintErr != nil {
			t.Fatalf("mint %s failed: %v", kind, mintErr)
		}
		expectedTTL := codec.AccessTTL()
		if kind == KindRefresh {
			expectedTTL = codec.RefreshTTL()
		}
		if !expiresAt.Equal(reference.Add(expectedTTL)) {
			t.Fatalf("expected %s expiry %v, got %v", kind, reference.Add(expectedTTL), expiresAt)
		}
		identity, verifyErr := codec.Verify(token, kind)
		if verifyErr != nil {
			t.Fatalf("verify %s failed: %v", kind, verifyErr)
		}
		if identity != "user-1" {
			t.Fatalf("expected identity user-1, got %q", identity)
		}
	}
}

func TestVerifyRejectsCrossKindTokens(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, fixedClock{timestamp: time.Unix(1700000000, 0).UTC()})

	accessToken, _, err := codec.Mint("user-1", KindAccess)
	if err != nil {
		t.Fatalf("mint access failed: %v", err)
	}
	refreshToken, _, err := codec.Mint("user-1", KindRefresh)
	if err != nil {
		t.Fatalf("mint refresh failed: %v", err)
	}

	if _, verifyErr := codec.Verify(accessToken, KindRefresh); !errors.Is(verifyErr, ErrTokenSignature) {
		t.Fatalf("expected signature error for access token under refresh context, got %v", verifyErr)
	}
	if _, verifyErr := codec.Verify(refreshToken, KindAccess); !errors.Is(verifyErr, ErrTokenSignature) {
		t.Fatalf("expected signature error for refresh token under access context, got %v", verifyErr)
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	t.Parallel()

	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	codec := newTestCodec(t, clock)

	token, expiresAt, mintErr := codec.Mint("user-1", KindAccess)
	if mintErr != nil {
		t.Fatalf("mint failed: %v", mintErr)
	}

	clock.current = expiresAt.Add(-time.Second)
	if _, verifyErr := codec.Verify(token, KindAccess); verifyErr != nil {
		t.Fatalf("expected token valid one tick before expiry, got %v", verifyErr)
	}

	clock.current = expiresAt
	if _, verifyErr := codec.Verify(token, KindAccess); !errors.Is(verifyErr, ErrTokenExpired) {
		t.Fatalf("expected expired at exact expiry instant, got %v", verifyErr)
	}

	clock.current = expiresAt.Add(time.Hour)
	if _, verifyErr := codec.Verify(token, KindAccess); !errors.Is(verifyErr, ErrTokenExpired) {
		t.Fatalf("expected expired past expiry, got %v", verifyErr)
	}
}

func TestVerifyRejectsTamperedAndMalformedTokens(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, fixedClock{timestamp: time.Unix(1700000000, 0).UTC()})

	token, _, mintErr := codec.Mint("user-1", KindAccess)
	if mintErr != nil {
		t.Fatalf("mint failed: %v", mintErr)
	}

	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		t.Fatalf("expected three JWT segments, got %d", len(segments))
	}
	tampered := segments[0] + "." + segments[1] + "." + strings.Repeat("A", len(segments[2]))
	if _, verifyErr := codec.Verify(tampered, KindAccess); !errors.Is(verifyErr, ErrTokenSignature) {
		t.Fatalf("expected signature error for tampered token, got %v", verifyErr)
	}

	if _, verifyErr := codec.Verify("not-a-jwt", KindAccess); !errors.Is(verifyErr, ErrTokenMalformed) {
		t.Fatalf("expected malformed error for garbage, got %v", verifyErr)
	}
	if _, verifyErr := codec.Verify("   ", KindAccess); !errors.Is(verifyErr, ErrTokenMalformed) {
		t.Fatalf("expected malformed error for blank token, got %v", verifyErr)
	}
}

func TestMintProducesDistinctTokensAtSameInstant(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t, fixedClock{timestamp: time.Unix(1700000000, 0).UTC()})

	first, _, err := codec.Mint("user-1", KindAccess)
	if err != nil {
		t.Fatalf("first mint failed: %v", err)
	}
	second, _, err := codec.Mint("user-1", KindAccess)
	if err != nil {
		t.Fatalf("second mint failed: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct tokens for back-to-back mints")
	}
}
