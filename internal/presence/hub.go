package presence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pairchat/internal/user"
)

// presenceChannel is the redis pub/sub channel relaying targeted pushes
// between instances.
const presenceChannel = "pairchat:events"

// fanoutTimeout bounds the store reads behind one connect/disconnect
// recomputation.
const fanoutTimeout = 10 * time.Second

// AudienceResolver classifies a user's contacts (the friend resolver).
type AudienceResolver interface {
	FriendsOf(ctx context.Context, id string) ([]string, error)
	StrangersOf(ctx context.Context, id string) ([]string, error)
}

// Directory resolves IDs to public profiles (the user service).
type Directory interface {
	ResolveProfile(ctx context.Context, id string) (*user.Profile, error)
}

// Hub owns the connection lifecycle and the presence fan-out. The run loop
// is the only goroutine that mutates client lifecycles; each fan-out
// recomputation runs in its own goroutine so a slow store read never
// blocks presence events for unrelated users. Views are recomputed from
// scratch on every event (no incremental diffing).
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	registry  *Registry
	resolver  AudienceResolver
	directory Directory

	// Optional cross-instance relay. When nil, pushes are delivered to
	// locally registered connections only.
	redis *redis.Client
}

func NewHub(registry *Registry, resolver AudienceResolver, directory Directory, redisClient *redis.Client) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		registry:   registry,
		resolver:   resolver,
		directory:  directory,
		redis:      redisClient,
	}
}

// Run drives the connect/disconnect state machine. It never returns.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.Register:
			h.registry.Register(c.userID, c)
			go h.fanOutConnect(c.userID)

		case c := <-h.Unregister:
			acted := h.registry.Unregister(c.userID, c)
			c.shutdown()
			// A stale disconnect racing a fresher reconnect only stops the
			// old pumps; the newer registration stays and no fan-out runs.
			if acted {
				go h.fanOutDisconnect(c.userID)
			}
		}
	}
}

// fanOutConnect pushes the new connection its own visibility, then
// refreshes every online friend's view, which now includes this user.
func (h *Hub) fanOutConnect(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), fanoutTimeout)
	defer cancel()

	h.emitOnlineFriends(ctx, id)
	h.emitOnlineStrangers(ctx, id)

	friends, err := h.resolver.FriendsOf(ctx, id)
	if err != nil {
		logrus.WithError(err).WithField("user", id).Error("connect fan-out: resolve friends failed")
		return
	}
	online, _ := h.registry.IsOnline(friends)

	g, ctx := errgroup.WithContext(ctx)
	for _, fid := range online {
		fid := fid
		g.Go(func() error {
			h.emitOnlineFriends(ctx, fid)
			return nil
		})
	}
	_ = g.Wait()
}

// fanOutDisconnect refreshes the views this user just dropped out of:
// every online friend's friends-view and every online stranger
// counterpart's strangers-view.
func (h *Hub) fanOutDisconnect(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), fanoutTimeout)
	defer cancel()

	friends, err := h.resolver.FriendsOf(ctx, id)
	if err != nil {
		logrus.WithError(err).WithField("user", id).Error("disconnect fan-out: resolve friends failed")
		return
	}
	strangers, err := h.resolver.StrangersOf(ctx, id)
	if err != nil {
		logrus.WithError(err).WithField("user", id).Error("disconnect fan-out: resolve strangers failed")
		return
	}

	onlineFriends, _ := h.registry.IsOnline(friends)
	onlineStrangers, _ := h.registry.IsOnline(strangers)

	g, ctx := errgroup.WithContext(ctx)
	for _, fid := range onlineFriends {
		fid := fid
		g.Go(func() error {
			h.emitOnlineFriends(ctx, fid)
			return nil
		})
	}
	for _, sid := range onlineStrangers {
		sid := sid
		g.Go(func() error {
			h.emitOnlineStrangers(ctx, sid)
			return nil
		})
	}
	_ = g.Wait()
}

// Probe answers a checkUserOnline request on the asking connection. No
// fan-out.
func (h *Hub) Probe(conn Conn, target string) {
	online, _ := h.registry.IsOnline([]string{target})
	status := OnlineStatus{UserID: target, IsOnline: len(online) == 1}
	if err := conn.Emit(EventUserOnlineStatus, status); err != nil {
		logrus.WithError(err).WithField("target", target).Debug("probe reply dropped")
	}
}

// emitOnlineFriends recomputes id's online friends and pushes them to id's
// connection, if it is still registered.
func (h *Hub) emitOnlineFriends(ctx context.Context, id string) {
	conn, ok := h.registry.Lookup(id)
	if !ok {
		return
	}

	friends, err := h.resolver.FriendsOf(ctx, id)
	if err != nil {
		logrus.WithError(err).WithField("user", id).Error("emit online friends: resolve failed")
		return
	}
	online, _ := h.registry.IsOnline(friends)
	if online == nil {
		online = []string{}
	}

	if err := conn.Emit(EventOnlineFriends, online); err != nil {
		logrus.WithError(err).WithField("user", id).Debug("online friends push dropped")
	}
}

// emitOnlineStrangers recomputes id's online strangers, resolves their
// profiles and pushes them to id's connection.
func (h *Hub) emitOnlineStrangers(ctx context.Context, id string) {
	conn, ok := h.registry.Lookup(id)
	if !ok {
		return
	}

	strangers, err := h.resolver.StrangersOf(ctx, id)
	if err != nil {
		logrus.WithError(err).WithField("user", id).Error("emit online strangers: resolve failed")
		return
	}
	online, _ := h.registry.IsOnline(strangers)

	rows := make([]StrangerRow, 0, len(online))
	for _, sid := range online {
		profile, err := h.directory.ResolveProfile(ctx, sid)
		if err != nil {
			logrus.WithError(err).WithField("user", sid).Error("emit online strangers: profile failed")
			continue
		}
		rows = append(rows, StrangerRow{User: profile})
	}

	if err := conn.Emit(EventOnlineStrangers, rows); err != nil {
		logrus.WithError(err).WithField("user", id).Debug("online strangers push dropped")
	}
}

// PushMessage delivers a committed message payload to the targets' live
// connections. With redis configured the event goes through the relay so
// every instance delivers to the targets it holds; the publishing instance
// receives its own copy through the subscription.
func (h *Hub) PushMessage(ctx context.Context, targets []string, payload any) {
	if h.redis == nil {
		h.deliverLocal(targets, EventReceiveMessage, payload)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("push message: marshal failed")
		return
	}
	frame, err := json.Marshal(targetedEvent{Targets: targets, Event: EventReceiveMessage, Data: data})
	if err != nil {
		logrus.WithError(err).Error("push message: marshal failed")
		return
	}

	if err := h.redis.Publish(ctx, presenceChannel, frame).Err(); err != nil {
		logrus.WithError(err).Error("push message: redis publish failed, delivering locally")
		h.deliverLocal(targets, EventReceiveMessage, payload)
	}
}

// SubscribeToRedis consumes relayed events from other instances (and our
// own publishes) and delivers them to locally registered targets.
func (h *Hub) SubscribeToRedis() {
	if h.redis == nil {
		return
	}

	pubsub := h.redis.Subscribe(context.Background(), presenceChannel)
	ch := pubsub.Channel()

	for msg := range ch {
		var event targetedEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			logrus.WithError(err).Warn("presence relay: bad frame")
			continue
		}
		h.deliverLocal(event.Targets, event.Event, event.Data)
	}
}

func (h *Hub) deliverLocal(targets []string, event string, data any) {
	for _, id := range targets {
		conn, ok := h.registry.Lookup(id)
		if !ok {
			continue
		}
		if err := conn.Emit(event, data); err != nil {
			logrus.WithError(err).WithField("user", id).Debug("targeted push dropped")
		}
	}
}
