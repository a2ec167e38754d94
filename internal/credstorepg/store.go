package credstorepg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecomkit/storefront/internal/sessionkit"
)

// PostgresCredentialStore keeps one refresh credential per identity in PostgreSQL.
// A second Put for the same identity overwrites the previous row, so earlier
// refresh tokens are superseded the moment a new one is stored.
type PostgresCredentialStore struct {
	pool  *pgxpool.Pool
	clock sessionkit.Clock
}

// NewPostgresCredentialStore constructs a Postgres-backed store.
func NewPostgresCredentialStore(pool *pgxpool.Pool) *PostgresCredentialStore {
	return NewPostgresCredentialStoreWithClock(pool, sessionkit.NewSystemClock())
}

// NewPostgresCredentialStoreWithClock constructs a store with an injected clock.
func NewPostgresCredentialStoreWithClock(pool *pgxpool.Pool, clock sessionkit.Clock) *PostgresCredentialStore {
	if pool == nil {
		panic("postgres credential store requires a pool")
	}
	if clock == nil {
		clock = sessionkit.NewSystemClock()
	}
	return &PostgresCredentialStore{pool: pool, clock: clock}
}

// Put stores the refresh credential for an identity, replacing any previous one.
func (store *PostgresCredentialStore) Put(ctx context.Context, identity string, refreshToken string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("credential_store.postgres.put: non-positive ttl %v", ttl)
	}
	expiresUnix := store.clock.Now().Add(ttl).Unix()
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO refresh_credentials (identity, refresh_token, expires_unix)
VALUES ($1, $2, $3)
ON CONFLICT (identity) DO UPDATE
SET refresh_token = EXCLUDED.refresh_token, expires_unix = EXCLUDED.expires_unix
`, identity, refreshToken, expiresUnix)
	if execErr != nil {
		return fmt.Errorf("credential_store.postgres.put: %w: %w", sessionkit.ErrStoreUnavailable, execErr)
	}
	return nil
}

// Get returns the stored refresh credential for an identity. Rows past their
// expiry count as absent.
func (store *PostgresCredentialStore) Get(ctx context.Context, identity string) (string, error) {
	var refreshToken string
	var expiresUnix int64
	row := store.pool.QueryRow(ctx, `
SELECT refresh_token, expires_unix
FROM refresh_credentials
WHERE identity = $1
`, identity)
	if scanErr := row.Scan(&refreshToken, &expiresUnix); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return "", fmt.Errorf("credential_store.postgres.get: %w", sessionkit.ErrCredentialNotFound)
		}
		return "", fmt.Errorf("credential_store.postgres.get: %w: %w", sessionkit.ErrStoreUnavailable, scanErr)
	}
	if !store.clock.Now().Before(time.Unix(expiresUnix, 0)) {
		// Lazy purge; a failed delete only leaves the row for the next reader.
		_, _ = store.pool.Exec(ctx, `DELETE FROM refresh_credentials WHERE identity = $1 AND expires_unix = $2`, identity, expiresUnix)
		return "", fmt.Errorf("credential_store.postgres.get: %w", sessionkit.ErrCredentialNotFound)
	}
	return refreshToken, nil
}

// Delete removes the credential for an identity. Deleting an absent credential
// is not an error.
func (store *PostgresCredentialStore) Delete(ctx context.Context, identity string) error {
	_, execErr := store.pool.Exec(ctx, `DELETE FROM refresh_credentials WHERE identity = $1`, identity)
	if execErr != nil {
		return fmt.Errorf("credential_store.postgres.delete: %w: %w", sessionkit.ErrStoreUnavailable, execErr)
	}
	return nil
}
