package user

import (
	"context"
	"database/sql"
	"errors"

	"pairchat/internal/db"
)

var ErrNotFound = errors.New("user: not found")

type Repository struct {
	db *db.Database
}

func NewRepository(database *db.Database) *Repository {
	return &Repository{db: database}
}

// CreateUser inserts the user and an empty profile row in one transaction.
func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, username, email, password_hash) VALUES ($1, $2, $3, $4)`,
			u.ID, u.Username, u.Email, u.PasswordHash)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO user_profiles (user_id) VALUES ($1)`, u.ID)
		return err
	})
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	err := r.db.Conn.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE email = $1`,
		email).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.Conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *Repository) GetProfile(ctx context.Context, id string) (*Profile, error) {
	p := &Profile{}
	var firstName, lastName, avatarURL sql.NullString
	err := r.db.Conn.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.email, p.first_name, p.last_name, p.avatar_url
         FROM users u
         LEFT JOIN user_profiles p ON p.user_id = u.id
         WHERE u.id = $1`,
		id).Scan(&p.ID, &p.Username, &p.Email, &firstName, &lastName, &avatarURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.FirstName = firstName.String
	p.LastName = lastName.String
	p.AvatarURL = avatarURL.String
	return p, nil
}

func (r *Repository) SearchUsers(ctx context.Context, query string) ([]Profile, error) {
	// Limit to 10 to keep it fast
	rows, err := r.db.Conn.QueryContext(ctx,
		`SELECT u.id, u.username, u.email, p.first_name, p.last_name, p.avatar_url
         FROM users u
         LEFT JOIN user_profiles p ON p.user_id = u.id
         WHERE u.username ILIKE $1
         LIMIT 10`,
		"%"+query+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		var firstName, lastName, avatarURL sql.NullString
		if err := rows.Scan(&p.ID, &p.Username, &p.Email, &firstName, &lastName, &avatarURL); err != nil {
			return nil, err
		}
		p.FirstName = firstName.String
		p.LastName = lastName.String
		p.AvatarURL = avatarURL.String
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
