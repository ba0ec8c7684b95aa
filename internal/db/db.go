package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"messaging-service/internal/config"
)

// Connect opens the shared connection pool and runs migrations.
func Connect(ctx context.Context, cfg config.DBConfig, log *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations applied")
	return db, nil
}

// Migrate creates the conversation and message tables. Sessions and
// profiles belong to other services and are only read here.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
            id TEXT PRIMARY KEY,
            participant_a TEXT NOT NULL,
            participant_b TEXT NOT NULL,
            last_activity_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CONSTRAINT conversations_pair_ordered CHECK (participant_a < participant_b),
            CONSTRAINT conversations_pair_unique UNIQUE (participant_a, participant_b)
        );`,
		`CREATE INDEX IF NOT EXISTS conversations_participant_b_idx ON conversations (participant_b);`,
		`CREATE INDEX IF NOT EXISTS conversations_last_activity_idx ON conversations (last_activity_at DESC);`,
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            seq BIGSERIAL NOT NULL,
            conversation_id TEXT NOT NULL REFERENCES conversations(id),
            sender_id TEXT NOT NULL,
            receiver_id TEXT NOT NULL,
            content TEXT,
            image_url TEXT,
            video_url TEXT,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CONSTRAINT messages_distinct_parties CHECK (sender_id <> receiver_id),
            CONSTRAINT messages_has_payload CHECK (content IS NOT NULL OR image_url IS NOT NULL OR video_url IS NOT NULL)
        );`,
		`CREATE INDEX IF NOT EXISTS messages_conversation_created_idx ON messages (conversation_id, created_at, seq);`,
		`CREATE INDEX IF NOT EXISTS messages_unread_idx ON messages (conversation_id, receiver_id) WHERE is_read = FALSE;`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
