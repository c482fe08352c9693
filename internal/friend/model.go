package friend

// Status of a friend edge. The values are the ones the friends table's
// CHECK constraint accepts.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
)

type RequestBody struct {
	ToUserID string `json:"toUserId" validate:"required"`
}
