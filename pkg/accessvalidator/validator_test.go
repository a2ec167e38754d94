package accessvalidator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type fixedClock struct {
	current time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.current
}

var testSigningKey = []byte("access-secret-for-tests")

func signTestToken(t *testing.T, mutate func(*Claims)) string {
	t.Helper()
	issuedAt := time.Unix(1700000000, 0).UTC()
	claims := &Claims{
		TokenKind: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "storefront",
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(15 * time.Minute)),
		},
	}
	if mutate != nil {
		mutate(claims)
	}
	token, signErr := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	if signErr != nil {
		t.Fatalf("signing test token failed: %v", signErr)
	}
	return token
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	validator, err := New(Config{
		SigningKey: testSigningKey,
		Issuer:     "storefront",
		Clock:      fixedClock{current: time.Unix(1700000000, 0).UTC().Add(time.Minute)},
	})
	if err != nil {
		t.Fatalf("building validator failed: %v", err)
	}
	return validator
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Issuer: "storefront"}); !errors.Is(err, ErrMissingSigningKey) {
		t.Fatalf("expected missing-signing-key, got %v", err)
	}
	if _, err := New(Config{SigningKey: testSigningKey, Issuer: "  "}); !errors.Is(err, ErrMissingIssuer) {
		t.Fatalf("expected missing-issuer, got %v", err)
	}
}

func TestValidateTokenAcceptsAccessToken(t *testing.T) {
	t.Parallel()

	validator := newTestValidator(t)
	claims, err := validator.ValidateToken(signTestToken(t, nil))
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if claims.Identity() != "u1" {
		t.Fatalf("expected identity u1, got %q", claims.Identity())
	}
}

func TestValidateTokenRejectsRefreshKind(t *testing.T) {
	t.Parallel()

	validator := newTestValidator(t)
	token := signTestToken(t, func(claims *Claims) {
		claims.TokenKind = "refresh"
	})
	if _, err := validator.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid-token for refresh kind, got %v", err)
	}
}

func TestValidateTokenRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	validator := newTestValidator(t)
	token := signTestToken(t, func(claims *Claims) {
		claims.Issuer = "someone-else"
	})
	if _, err := validator.ValidateToken(token); !errors.Is(err, ErrInvalidIssuer) {
		t.Fatalf("expected invalid-issuer, got %v", err)
	}
}

func TestValidateTokenExpiryBoundary(t *testing.T) {
	t.Parallel()

	issuedAt := time.Unix(1700000000, 0).UTC()
	expiresAt := issuedAt.Add(15 * time.Minute)

	beforeExpiry, err := New(Config{
		SigningKey: testSigningKey,
		Issuer:     "storefront",
		Clock:      fixedClock{current: expiresAt.Add(-time.Second)},
	})
	if err != nil {
		t.Fatalf("building validator failed: %v", err)
	}
	if _, validateErr := beforeExpiry.ValidateToken(signTestToken(t, nil)); validateErr != nil {
		t.Fatalf("token must be valid strictly before expiry, got %v", validateErr)
	}

	atExpiry, err := New(Config{
		SigningKey: testSigningKey,
		Issuer:     "storefront",
		Clock:      fixedClock{current: expiresAt},
	})
	if err != nil {
		t.Fatalf("building validator failed: %v", err)
	}
	if _, validateErr := atExpiry.ValidateToken(signTestToken(t, nil)); !errors.Is(validateErr, ErrTokenExpired) {
		t.Fatalf("expected expired at the boundary, got %v", validateErr)
	}
}

func TestValidateTokenRejectsGarbageAndEmpty(t *testing.T) {
	t.Parallel()

	validator := newTestValidator(t)
	if _, err := validator.ValidateToken(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing-token, got %v", err)
	}
	if _, err := validator.ValidateToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid-token, got %v", err)
	}
}

func TestGinMiddleware(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	validator := newTestValidator(t)
	router := gin.New()
	router.GET("/protected", validator.GinMiddleware(""), func(contextGin *gin.Context) {
		identity := contextGin.GetString(DefaultContextKey)
		contextGin.JSON(http.StatusOK, gin.H{"identity": identity})
	})

	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: signTestToken(t, nil)})
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	bare := httptest.NewRequest(http.MethodGet, "/protected", nil)
	bareRecorder := httptest.NewRecorder()
	router.ServeHTTP(bareRecorder, bare)
	if bareRecorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cookie, got %d", bareRecorder.Code)
	}
}
