package presence

import (
	"encoding/json"

	"pairchat/internal/user"
)

// Wire event names. These are part of the client protocol and must not
// change.
const (
	EventReceiveMessage   = "receiveMessage"
	EventOnlineFriends    = "getOnlineFriends"
	EventOnlineStrangers  = "getOnlineStrangers"
	EventUserOnlineStatus = "getUserOnlineStatus"

	// Client -> server probe.
	EventCheckUserOnline = "checkUserOnline"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// StrangerRow wraps a profile for the getOnlineStrangers payload.
type StrangerRow struct {
	User *user.Profile `json:"user"`
}

// OnlineStatus is the getUserOnlineStatus payload.
type OnlineStatus struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// targetedEvent is relayed over redis so every instance can deliver to the
// targets it has registered locally.
type targetedEvent struct {
	Targets []string        `json:"targets"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}
