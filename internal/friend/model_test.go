package friend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusValuesMatchSchemaCheck(t *testing.T) {
	req := require.New(t)

	// The friends table CHECK constraint accepts exactly these strings;
	// the repository binds the constants as query parameters, so changing
	// a value here would make every edge invisible to the queries.
	req.Equal(Status("pending"), StatusPending)
	req.Equal(Status("accepted"), StatusAccepted)
}
