package presence

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pairchat/internal/user"
)

// recordConn captures the latest payload per event, the way a client
// treats presence pushes: last received state wins.
type recordConn struct {
	mu     sync.Mutex
	latest map[string]json.RawMessage
	fail   bool
}

func newRecordConn() *recordConn {
	return &recordConn{latest: map[string]json.RawMessage{}}
}

func (c *recordConn) Emit(event string, data any) error {
	if c.fail {
		return errors.New("connection gone")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest[event] = raw
	return nil
}

func (c *recordConn) friendsView(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.latest[EventOnlineFriends]
	if !ok {
		return nil
	}
	var ids []string
	require.NoError(t, json.Unmarshal(raw, &ids))
	return ids
}

func (c *recordConn) strangersView(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.latest[EventOnlineStrangers]
	if !ok {
		return nil
	}
	var rows []StrangerRow
	require.NoError(t, json.Unmarshal(raw, &rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.User.ID)
	}
	return ids
}

func (c *recordConn) status(t *testing.T) *OnlineStatus {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.latest[EventUserOnlineStatus]
	if !ok {
		return nil
	}
	var s OnlineStatus
	require.NoError(t, json.Unmarshal(raw, &s))
	return &s
}

type stubResolver struct {
	friends   map[string][]string
	strangers map[string][]string
}

func (r *stubResolver) FriendsOf(_ context.Context, id string) ([]string, error) {
	return r.friends[id], nil
}

func (r *stubResolver) StrangersOf(_ context.Context, id string) ([]string, error) {
	return r.strangers[id], nil
}

type stubDirectory struct{}

func (stubDirectory) ResolveProfile(_ context.Context, id string) (*user.Profile, error) {
	return &user.Profile{ID: id, Username: "name-" + id}, nil
}

func newTestHub(resolver *stubResolver) (*Hub, *Registry) {
	registry := NewRegistry()
	hub := NewHub(registry, resolver, stubDirectory{}, nil)
	return hub, registry
}

func TestProbe(t *testing.T) {
	req := require.New(t)
	hub, registry := newTestHub(&stubResolver{})
	asker := newRecordConn()

	// Never-connected target.
	hub.Probe(asker, "u9")
	status := asker.status(t)
	req.NotNil(status)
	req.Equal("u9", status.UserID)
	req.False(status.IsOnline)

	// Immediately after the target connects.
	registry.Register("u9", newRecordConn())
	hub.Probe(asker, "u9")
	req.True(asker.status(t).IsOnline)
}

func TestConnectFanout_FriendViewsRefresh(t *testing.T) {
	req := require.New(t)
	resolver := &stubResolver{
		friends:   map[string][]string{"u1": {"u2"}, "u2": {"u1"}},
		strangers: map[string][]string{},
	}
	hub, registry := newTestHub(resolver)

	// Y (u2) is already connected, then X (u1) connects.
	connU2 := newRecordConn()
	registry.Register("u2", connU2)
	hub.fanOutConnect("u2")
	req.Empty(connU2.friendsView(t))

	connU1 := newRecordConn()
	registry.Register("u1", connU1)
	hub.fanOutConnect("u1")

	req.Contains(connU2.friendsView(t), "u1", "u2's view must now include u1")
	req.Contains(connU1.friendsView(t), "u2")
}

func TestDisconnectFanout_FriendViewsRefresh(t *testing.T) {
	req := require.New(t)
	resolver := &stubResolver{
		friends:   map[string][]string{"u1": {"u2"}, "u2": {"u1"}},
		strangers: map[string][]string{},
	}
	hub, registry := newTestHub(resolver)

	connU1, connU2 := newRecordConn(), newRecordConn()
	registry.Register("u1", connU1)
	registry.Register("u2", connU2)
	hub.fanOutConnect("u1")
	hub.fanOutConnect("u2")
	req.Contains(connU2.friendsView(t), "u1")

	registry.Unregister("u1", connU1)
	hub.fanOutDisconnect("u1")
	req.NotContains(connU2.friendsView(t), "u1", "u2's next push must exclude u1")
}

func TestFanout_FriendsAndStrangersScenario(t *testing.T) {
	req := require.New(t)
	// u2 is u1's friend; u3 has message history with u1 but no edge.
	resolver := &stubResolver{
		friends: map[string][]string{
			"u1": {"u2"}, "u2": {"u1"}, "u3": {},
		},
		strangers: map[string][]string{
			"u1": {"u3"}, "u3": {"u1"},
		},
	}
	hub, registry := newTestHub(resolver)

	connU1, connU2, connU3 := newRecordConn(), newRecordConn(), newRecordConn()
	registry.Register("u1", connU1)
	hub.fanOutConnect("u1")
	registry.Register("u2", connU2)
	hub.fanOutConnect("u2")
	registry.Register("u3", connU3)
	hub.fanOutConnect("u3")

	// u3's connect refreshes u1's stranger view through its own connect
	// emit; re-derive u1's views to observe the registry-driven state.
	hub.emitOnlineFriends(context.Background(), "u1")
	hub.emitOnlineStrangers(context.Background(), "u1")

	req.Contains(connU1.friendsView(t), "u2")
	req.Contains(connU1.strangersView(t), "u3")
	req.NotContains(connU1.friendsView(t), "u3")

	// u2 disconnects: u1's next fan-out no longer lists u2.
	registry.Unregister("u2", connU2)
	hub.fanOutDisconnect("u2")
	req.NotContains(connU1.friendsView(t), "u2")
	req.Contains(connU1.strangersView(t), "u3")
}

func TestDisconnectFanout_StrangerViewsRefresh(t *testing.T) {
	req := require.New(t)
	resolver := &stubResolver{
		friends: map[string][]string{},
		strangers: map[string][]string{
			"u1": {"u3"}, "u3": {"u1"},
		},
	}
	hub, registry := newTestHub(resolver)

	connU1, connU3 := newRecordConn(), newRecordConn()
	registry.Register("u1", connU1)
	registry.Register("u3", connU3)
	hub.fanOutConnect("u1")
	hub.fanOutConnect("u3")
	hub.emitOnlineStrangers(context.Background(), "u3")
	req.Contains(connU3.strangersView(t), "u1")

	registry.Unregister("u1", connU1)
	hub.fanOutDisconnect("u1")
	req.NotContains(connU3.strangersView(t), "u1")
}

func TestPushMessage_LocalDelivery(t *testing.T) {
	req := require.New(t)
	hub, registry := newTestHub(&stubResolver{})

	connU1 := newRecordConn()
	registry.Register("u1", connU1)
	// u2 has no connection; its share of the push is silently dropped.

	hub.PushMessage(context.Background(), []string{"u1", "u2"}, map[string]string{"content": "hi"})

	connU1.mu.Lock()
	raw, ok := connU1.latest[EventReceiveMessage]
	connU1.mu.Unlock()
	req.True(ok)
	req.JSONEq(`{"content":"hi"}`, string(raw))
}

func TestFanout_DeadConnectionDoesNotFail(t *testing.T) {
	resolver := &stubResolver{
		friends: map[string][]string{"u1": {"u2"}, "u2": {"u1"}},
	}
	hub, registry := newTestHub(resolver)

	dead := newRecordConn()
	dead.fail = true
	registry.Register("u2", dead)
	registry.Register("u1", newRecordConn())

	// Emits to the dead connection are dropped, never escalate.
	hub.fanOutConnect("u1")
	hub.fanOutDisconnect("u1")
	hub.Probe(dead, "u1")
}
