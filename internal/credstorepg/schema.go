package credstorepg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS refresh_credentials (
    identity TEXT PRIMARY KEY,
    refresh_token TEXT NOT NULL,
    expires_unix BIGINT NOT NULL
);
`)
	return err
}
