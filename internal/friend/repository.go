package friend

import (
	"context"
	"database/sql"
	"errors"

	"pairchat/internal/db"
)

var (
	ErrEdgeExists = errors.New("friend: relation already exists")
	ErrNoRequest  = errors.New("friend: no pending request")
)

type Repository struct {
	db *db.Database
}

func NewRepository(database *db.Database) *Repository {
	return &Repository{db: database}
}

// FriendIDsOf returns the users on the other side of id's accepted edges.
func (r *Repository) FriendIDsOf(ctx context.Context, id string) ([]string, error) {
	rows, err := r.db.Conn.QueryContext(ctx,
		`SELECT CASE WHEN requester = $1 THEN addressee ELSE requester END
         FROM friends
         WHERE (requester = $1 OR addressee = $1) AND status = $2`, id, StatusAccepted)
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

// CreateRequest inserts a pending edge unless a relation already exists in
// either direction.
func (r *Repository) CreateRequest(ctx context.Context, from, to string) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (
                SELECT 1 FROM friends
                WHERE (requester = $1 AND addressee = $2)
                   OR (requester = $2 AND addressee = $1)
             )`, from, to).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return ErrEdgeExists
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO friends (requester, addressee, status) VALUES ($1, $2, $3)`,
			from, to, StatusPending)
		return err
	})
}

// Accept flips a pending request addressed to me into an accepted edge.
func (r *Repository) Accept(ctx context.Context, me, requester string) error {
	res, err := r.db.Conn.ExecContext(ctx,
		`UPDATE friends SET status = $3
         WHERE requester = $1 AND addressee = $2 AND status = $4`,
		requester, me, StatusAccepted, StatusPending)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNoRequest
	}
	return nil
}

// PendingFor lists the user IDs with requests waiting on me.
func (r *Repository) PendingFor(ctx context.Context, me string) ([]string, error) {
	rows, err := r.db.Conn.QueryContext(ctx,
		`SELECT requester FROM friends WHERE addressee = $1 AND status = $2`, me, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
