package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPair means sender and receiver are the same identity.
	ErrInvalidPair = errors.New("chat: conversation requires two distinct users")

	// ErrRecipientNotFound means the receiver does not exist in the user store.
	ErrRecipientNotFound = errors.New("chat: receiver not found")

	// ErrAnchorConflict means the store was found holding more than one
	// last-message anchor for a conversation key. The write is rolled back
	// and the caller should retry; it is never swallowed.
	ErrAnchorConflict = errors.New("chat: last-message anchor conflict")
)

// ValidationError reports a malformed send payload. Handlers map it to a
// client error rather than a server error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("chat: invalid %s: %s", e.Field, e.Reason)
}
