package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Database struct {
	Conn *sql.DB
}

func NewDatabase(dsn string) (*Database, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &Database{Conn: conn}, nil
}

// WithTx runs fn inside a single transaction. The transaction commits only
// if fn returns nil; any error or panic rolls the whole unit of work back.
// Every multi-statement write path goes through here so partial states are
// never visible to readers.
func (d *Database) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (d *Database) AutoMigrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            username VARCHAR(50) UNIQUE NOT NULL,
            email VARCHAR(100) UNIQUE NOT NULL,
            password_hash VARCHAR(255) NOT NULL,
            created_at TIMESTAMPTZ DEFAULT now()
        )`,

		`CREATE TABLE IF NOT EXISTS user_profiles (
            user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
            first_name VARCHAR(50),
            last_name VARCHAR(50),
            avatar_url TEXT
        )`,

		`CREATE TABLE IF NOT EXISTS friends (
            requester TEXT REFERENCES users(id) ON DELETE CASCADE,
            addressee TEXT REFERENCES users(id) ON DELETE CASCADE,
            status VARCHAR(10) CHECK (status IN ('pending', 'accepted')) DEFAULT 'pending',
            created_at TIMESTAMPTZ DEFAULT now(),
            PRIMARY KEY (requester, addressee)
        )`,

		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            sender_id TEXT REFERENCES users(id) ON DELETE CASCADE,
            receiver_id TEXT REFERENCES users(id) ON DELETE CASCADE,
            conversation_key TEXT NOT NULL,
            kind VARCHAR(10) CHECK (kind IN ('text', 'image', 'file', 'voice')) DEFAULT 'text',
            content TEXT,
            media_url TEXT,
            status VARCHAR(10) CHECK (status IN ('delivered', 'seen')) DEFAULT 'delivered',
            last_message BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ DEFAULT now()
        )`,

		`CREATE INDEX IF NOT EXISTS idx_messages_key_created
            ON messages (conversation_key, created_at)`,

		// At most one anchored message per conversation. The per-key lock in
		// the chat repository serializes writers; this index makes the store
		// itself reject a double anchor if that discipline is ever violated.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_key_anchor
            ON messages (conversation_key) WHERE last_message`,
	}

	for _, query := range queries {
		_, err := d.Conn.Exec(query)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
