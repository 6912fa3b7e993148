package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// MessageInsertChannel is the NOTIFY channel fed by the messages insert trigger.
const MessageInsertChannel = "message_inserts"

// Connect initializes the database connection and applies the schema.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
	`CREATE TABLE IF NOT EXISTS profiles (
        id UUID PRIMARY KEY,
        username TEXT NOT NULL UNIQUE,
        full_name TEXT,
        avatar_url TEXT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE TABLE IF NOT EXISTS chats (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        is_group BOOLEAN NOT NULL DEFAULT FALSE,
        name TEXT,
        created_by UUID REFERENCES profiles(id),
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE TABLE IF NOT EXISTS chat_participants (
        chat_id UUID NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
        user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
        is_admin BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        PRIMARY KEY (chat_id, user_id)
    );`,
	`CREATE INDEX IF NOT EXISTS chat_participants_user_idx ON chat_participants (user_id);`,
	`CREATE TABLE IF NOT EXISTS messages (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        chat_id UUID NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
        sender_id UUID NOT NULL REFERENCES profiles(id),
        content TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE INDEX IF NOT EXISTS messages_chat_created_idx ON messages (chat_id, created_at);`,
	`CREATE OR REPLACE FUNCTION touch_chat_on_message() RETURNS trigger AS $$
    BEGIN
        UPDATE chats SET updated_at = NEW.created_at WHERE id = NEW.chat_id;
        RETURN NEW;
    END;
    $$ LANGUAGE plpgsql;`,
	`DROP TRIGGER IF EXISTS messages_touch_chat ON messages;`,
	`CREATE TRIGGER messages_touch_chat AFTER INSERT ON messages
        FOR EACH ROW EXECUTE FUNCTION touch_chat_on_message();`,
	// content is left out of the payload: NOTIFY payloads are capped at 8000 bytes
	// and subscribers re-read the full row anyway.
	`CREATE OR REPLACE FUNCTION notify_message_insert() RETURNS trigger AS $$
    BEGIN
        PERFORM pg_notify('` + MessageInsertChannel + `', json_build_object(
            'type', 'INSERT',
            'table', 'messages',
            'record', json_build_object(
                'id', NEW.id,
                'chat_id', NEW.chat_id,
                'sender_id', NEW.sender_id,
                'created_at', NEW.created_at
            )
        )::text);
        RETURN NEW;
    END;
    $$ LANGUAGE plpgsql;`,
	`DROP TRIGGER IF EXISTS messages_notify_insert ON messages;`,
	`CREATE TRIGGER messages_notify_insert AFTER INSERT ON messages
        FOR EACH ROW EXECUTE FUNCTION notify_message_insert();`,
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
