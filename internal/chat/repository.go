package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"pairchat/internal/db"
)

// Repository is the message ledger. It owns the messages table and the
// last-message anchor; nothing else writes either.
type Repository struct {
	db    *db.Database
	locks keyLock
}

func NewRepository(database *db.Database) *Repository {
	return &Repository{db: database}
}

// AppendAndAnchor inserts msg and moves the conversation's anchor onto it
// as one atomic unit: clear the old anchor, insert the new row flagged as
// last. Writers for the same key are serialized by the per-key lock; the
// transaction guarantees readers never observe zero or two anchors.
// On success msg.CreatedAt is set to the committed timestamp.
func (r *Repository) AppendAndAnchor(ctx context.Context, msg *Message) error {
	unlock := r.locks.Lock(msg.ConversationKey)
	defer unlock()

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE messages SET last_message = FALSE
             WHERE conversation_key = $1 AND last_message`,
			msg.ConversationKey)
		if err != nil {
			return fmt.Errorf("clear anchor: %w", err)
		}

		row := tx.QueryRowContext(ctx,
			`INSERT INTO messages
                (id, sender_id, receiver_id, conversation_key, kind, content, media_url, status, last_message)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
             RETURNING created_at`,
			msg.ID, msg.SenderID, msg.ReceiverID, msg.ConversationKey,
			msg.Kind, nullable(msg.Content), nullable(msg.MediaURL), msg.Status)

		var createdAt time.Time
		if err := row.Scan(&createdAt); err != nil {
			return anchorInsertError(err)
		}
		msg.CreatedAt = createdAt
		msg.LastMessage = true
		return nil
	})
}

// History returns every message of a conversation, oldest first.
func (r *Repository) History(ctx context.Context, key string) ([]*Message, error) {
	rows, err := r.db.Conn.QueryContext(ctx,
		selectMessage+` WHERE conversation_key = $1 ORDER BY created_at ASC, id ASC`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// LastMessages returns the anchored message per conversation key. Keys
// with no messages yet are simply absent from the result.
func (r *Repository) LastMessages(ctx context.Context, keys []string) (map[string]*Message, error) {
	if len(keys) == 0 {
		return map[string]*Message{}, nil
	}

	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = k
	}

	rows, err := r.db.Conn.QueryContext(ctx,
		selectMessage+` WHERE last_message AND conversation_key IN (`+strings.Join(placeholders, ", ")+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*Message, len(msgs))
	for _, m := range msgs {
		result[m.ConversationKey] = m
	}
	return result, nil
}

// CounterpartIDs returns the distinct users that have exchanged at least
// one message with id, in either direction.
func (r *Repository) CounterpartIDs(ctx context.Context, id string) ([]string, error) {
	rows, err := r.db.Conn.QueryContext(ctx,
		`SELECT DISTINCT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END
         FROM messages
         WHERE sender_id = $1 OR receiver_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var other string
		if err := rows.Scan(&other); err != nil {
			return nil, err
		}
		ids = append(ids, other)
	}
	return ids, rows.Err()
}

// MarkSeen flips the reader's delivered messages in the conversation to
// seen. Only the receiving side of each message is affected.
func (r *Repository) MarkSeen(ctx context.Context, key, reader string) error {
	_, err := r.db.Conn.ExecContext(ctx,
		`UPDATE messages SET status = 'seen'
         WHERE conversation_key = $1 AND receiver_id = $2 AND status = 'delivered'`,
		key, reader)
	return err
}

// anchorInsertError translates a unique violation on the partial anchor
// index into ErrAnchorConflict. That violation fires when a writer outside
// this process (another instance holds its own key locks) anchored a
// message between our clear and insert; the caller retries. Anything else
// passes through wrapped.
func anchorInsertError(err error) error {
	var pgErr *pgconn.PgError
	// 23505 = unique_violation
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "idx_messages_key_anchor" {
		return ErrAnchorConflict
	}
	return fmt.Errorf("insert message: %w", err)
}

const selectMessage = `SELECT id, sender_id, receiver_id, conversation_key, kind, content, media_url, status, last_message, created_at FROM messages`

func scanMessages(rows *sql.Rows) ([]*Message, error) {
	var msgs []*Message
	for rows.Next() {
		msg := &Message{}
		var content, mediaURL sql.NullString
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.ConversationKey,
			&msg.Kind, &content, &mediaURL, &msg.Status, &msg.LastMessage, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Content = content.String
		msg.MediaURL = mediaURL.String
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
