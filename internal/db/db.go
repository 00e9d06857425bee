package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"chat-core/internal/retry"
)

// Connect opens the database, retrying per policy while it comes up, and
// applies the schema bootstrap.
func Connect(ctx context.Context, dsn string, policy retry.Policy, log *slog.Logger) (*sqlx.DB, error) {
	var db *sqlx.DB
	err := policy.Do(ctx, func(ctx context.Context) error {
		var err error
		db, err = sqlx.ConnectContext(ctx, "postgres", dsn)
		return err
	}, func(u retry.Update) {
		log.Info("database connect", "status", u.Status, "attempt", u.Attempt, "next_delay", u.NextDelay, "error", u.Err)
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations applied")
	return db, nil
}

// Migrate creates the chat tables if they do not exist yet. It is safe to
// run on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS public_messages (
            id BIGSERIAL PRIMARY KEY,
            sender TEXT NOT NULL,
            text TEXT NOT NULL DEFAULT '',
            file_name TEXT NOT NULL DEFAULT '',
            file_data BYTEA,
            file_type TEXT NOT NULL DEFAULT '',
            is_system BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS public_messages_created_at_idx ON public_messages (created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS private_messages (
            id BIGSERIAL PRIMARY KEY,
            from_user_id TEXT NOT NULL,
            from_user_name TEXT NOT NULL,
            to_user_id TEXT NOT NULL,
            text TEXT NOT NULL DEFAULT '',
            file_name TEXT NOT NULL DEFAULT '',
            file_data BYTEA,
            file_type TEXT NOT NULL DEFAULT '',
            edited BOOLEAN NOT NULL DEFAULT FALSE,
            deleted BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS private_messages_pair_idx ON private_messages (from_user_id, to_user_id, created_at);`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
