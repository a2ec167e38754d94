package sessionkit

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TokenPair is the result of issuing a session: both credentials with their
// absolute expiry instants.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SessionManager orchestrates issuance, rotation, and revocation against the
// codec and the credential store. It holds no per-session state of its own;
// the credential store is the only shared mutable resource.
type SessionManager struct {
	codec       *TokenCodec
	credentials CredentialStore
	logger      *zap.Logger
	metrics     MetricsRecorder
}

// NewSessionManager wires the manager. Logger and metrics may be nil.
func NewSessionManager(codec *TokenCodec, credentials CredentialStore, logger *zap.Logger, metrics MetricsRecorder) *SessionManager {
	if codec == nil {
		panic("token codec is required")
	}
	if credentials == nil {
		panic("credential store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &SessionManager{
		codec:       codec,
		credentials: credentials,
		logger:      logger,
		metrics:     metrics,
	}
}

// Issue mints an access/refresh pair for the identity and persists the
// refresh token as the single current credential. A concurrent Issue for the
// same identity races on the store write; the last writer wins and earlier
// refresh tokens are silently superseded.
func (manager *SessionManager) Issue(ctx context.Context, identity string) (TokenPair, error) {
	accessToken, accessExpiresAt, accessErr := manager.codec.Mint(identity, KindAccess)
	if accessErr != nil {
		manager.metrics.Increment(metricSessionIssueFailure)
		return TokenPair{}, fmt.Errorf("session.issue: %w", accessErr)
	}
	refreshToken, refreshExpiresAt, refreshErr := manager.codec.Mint(identity, KindRefresh)
	if refreshErr != nil {
		manager.metrics.Increment(metricSessionIssueFailure)
		return TokenPair{}, fmt.Errorf("session.issue: %w", refreshErr)
	}
	ttl := refreshExpiresAt.Sub(manager.codec.Now())
	if putErr := manager.credentials.Put(ctx, identity, refreshToken, ttl); putErr != nil {
		manager.metrics.Increment(metricSessionIssueFailure)
		return TokenPair{}, fmt.Errorf("session.issue: %w", putErr)
	}
	manager.metrics.Increment(metricSessionIssueSuccess)
	manager.logger.Info("session issued",
		zap.String("code", "session.issue"),
		zap.String("identity", identity),
		zap.Time("refresh_expires", refreshExpiresAt))
	return TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// Rotate exchanges a valid refresh token for a fresh access token. The
// presented token must verify under the refresh signing context AND match the
// stored value byte for byte; a token rotated out by a later Issue or removed
// by Revoke fails with ErrRevokedOrSuperseded even though its signature and
// expiry are individually fine. The refresh token itself is not reissued
// here: it stays valid until its own expiry or an explicit revocation.
func (manager *SessionManager) Rotate(ctx context.Context, presentedRefreshToken string) (string, time.Time, error) {
	if strings.TrimSpace(presentedRefreshToken) == "" {
		manager.metrics.Increment(metricSessionRotateFailure)
		return "", time.Time{}, fmt.Errorf("session.rotate: %w", ErrUnauthenticated)
	}
	identity, verifyErr := manager.codec.Verify(presentedRefreshToken, KindRefresh)
	if verifyErr != nil {
		manager.metrics.Increment(metricSessionRotateFailure)
		return "", time.Time{}, fmt.Errorf("session.rotate: %w", verifyErr)
	}
	storedToken, getErr := manager.credentials.Get(ctx, identity)
	if getErr != nil {
		manager.metrics.Increment(metricSessionRotateFailure)
		if errors.Is(getErr, ErrCredentialNotFound) {
			return "", time.Time{}, fmt.Errorf("session.rotate: %w", ErrRevokedOrSuperseded)
		}
		return "", time.Time{}, fmt.Errorf("session.rotate: %w", getErr)
	}
	if subtle.ConstantTimeCompare([]byte(storedToken), []byte(presentedRefreshToken)) != 1 {
		manager.metrics.Increment(metricSessionRotateFailure)
		manager.logger.Warn("refresh token superseded",
			zap.String("code", "session.rotate.superseded"),
			zap.String("identity", identity))
		return "", time.Time{}, fmt.Errorf("session.rotate: %w", ErrRevokedOrSuperseded)
	}
	accessToken, accessExpiresAt, mintErr := manager.codec.Mint(identity, KindAccess)
	if mintErr != nil {
		manager.metrics.Increment(metricSessionRotateFailure)
		return "", time.Time{}, fmt.Errorf("session.rotate: %w", mintErr)
	}
	manager.metrics.Increment(metricSessionRotateSuccess)
	return accessToken, accessExpiresAt, nil
}

// Revoke removes the stored refresh credential for the token's identity.
// Logout must always look successful to the caller: an unverifiable token
// means there is nothing to look up, and a store failure is logged rather
// than surfaced.
func (manager *SessionManager) Revoke(ctx context.Context, presentedRefreshToken string) {
	manager.metrics.Increment(metricSessionRevoke)
	if strings.TrimSpace(presentedRefreshToken) == "" {
		return
	}
	identity, verifyErr := manager.codec.Verify(presentedRefreshToken, KindRefresh)
	if verifyErr != nil {
		manager.logger.Debug("revoke skipped for unverifiable token",
			zap.String("code", "session.revoke.skip"),
			zap.Error(verifyErr))
		return
	}
	if deleteErr := manager.credentials.Delete(ctx, identity); deleteErr != nil {
		manager.logger.Warn("revoke delete failed",
			zap.String("code", "session.revoke.delete_failed"),
			zap.String("identity", identity),
			zap.Error(deleteErr))
		return
	}
	manager.logger.Info("session revoked",
		zap.String("code", "session.revoke"),
		zap.String("identity", identity))
}

// Codec exposes the manager's token codec for middleware wiring.
func (manager *SessionManager) Codec() *TokenCodec {
	return manager.codec
}
