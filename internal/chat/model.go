package chat

import (
	"time"

	"pairchat/internal/user"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindFile  Kind = "file"
	KindVoice Kind = "voice"
)

type DeliveryState string

const (
	StateDelivered DeliveryState = "delivered"
	StateSeen      DeliveryState = "seen"
)

// Message is the ledger row. LastMessage marks the anchored (most recent)
// message of its conversation; it is flipped only by AppendAndAnchor,
// never by callers.
type Message struct {
	ID              string        `json:"_id"`
	SenderID        string        `json:"senderID"`
	ReceiverID      string        `json:"receiverID"`
	ConversationKey string        `json:"conversationKey"`
	Kind            Kind          `json:"type"`
	Content         string        `json:"content,omitempty"`
	MediaURL        string        `json:"mediaUrl,omitempty"`
	Status          DeliveryState `json:"status"`
	LastMessage     bool          `json:"lastMessage"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// SendMessageRequest is the JSON body of POST /api/messages. Field names
// match what the existing frontend sends.
type SendMessageRequest struct {
	ReceiverID string `json:"receiverID" validate:"required"`
	Kind       Kind   `json:"type" validate:"omitempty,oneof=text image file voice"`
	Content    string `json:"content" validate:"max=2000"`
	MediaURL   string `json:"mediaUrl" validate:"omitempty,url"`
}

// MessagePayload is the normalized shape pushed over the receiveMessage
// event and returned by the REST endpoints: sender and receiver are
// resolved to profiles instead of bare IDs.
type MessagePayload struct {
	ID          string        `json:"_id"`
	Sender      *user.Profile `json:"senderUser"`
	Receiver    *user.Profile `json:"receiverUser"`
	Kind        Kind          `json:"type"`
	Content     string        `json:"content,omitempty"`
	MediaURL    string        `json:"mediaUrl,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	Status      DeliveryState `json:"status"`
	LastMessage bool          `json:"lastMessage"`
}

type Audience string

const (
	AudienceFriends   Audience = "friends"
	AudienceStrangers Audience = "strangers"
)

// ConversationRow pairs a counterpart with the anchored message of that
// conversation, or nil when the pair has never exchanged one.
type ConversationRow struct {
	User        *user.Profile   `json:"user"`
	LastMessage *MessagePayload `json:"lastMessageInfo"`
}

type ConversationPage struct {
	Data    []ConversationRow `json:"data"`
	HasMore bool              `json:"hasMore"`
}
