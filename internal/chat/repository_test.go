package chat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestAnchorInsertError_UniqueViolationOnAnchorIndex(t *testing.T) {
	req := require.New(t)

	// The race the partial index guards against: a writer on another
	// instance anchors a message for the same key between our clear and
	// insert, so our insert with last_message = TRUE violates the index.
	// That must surface as the retryable conflict, not a generic failure.
	violation := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "idx_messages_key_anchor",
	}
	req.ErrorIs(anchorInsertError(violation), ErrAnchorConflict)

	// Wrapping (as the driver stack does) must not hide it.
	wrapped := fmt.Errorf("scan: %w", violation)
	req.ErrorIs(anchorInsertError(wrapped), ErrAnchorConflict)
}

func TestAnchorInsertError_OtherErrorsPassThrough(t *testing.T) {
	req := require.New(t)

	cases := []struct {
		name string
		err  error
	}{
		{"unique violation on another constraint", &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}},
		{"foreign key violation", &pgconn.PgError{Code: "23503", ConstraintName: "messages_sender_id_fkey"}},
		{"plain error", errors.New("connection reset")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := anchorInsertError(tc.err)
			req.NotErrorIs(out, ErrAnchorConflict)
			req.ErrorIs(out, tc.err, "original error must stay unwrappable")
		})
	}
}
