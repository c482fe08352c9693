package chat

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"pairchat/internal/user"
)

// Ledger is what the service needs from the message store.
type Ledger interface {
	AppendAndAnchor(ctx context.Context, msg *Message) error
	History(ctx context.Context, key string) ([]*Message, error)
	LastMessages(ctx context.Context, keys []string) (map[string]*Message, error)
	MarkSeen(ctx context.Context, key, reader string) error
}

// Directory resolves identities against the user store.
type Directory interface {
	ResolveProfile(ctx context.Context, id string) (*user.Profile, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// AudienceResolver classifies a user's counterparts.
type AudienceResolver interface {
	FriendsOf(ctx context.Context, id string) ([]string, error)
	StrangersOf(ctx context.Context, id string) ([]string, error)
}

// Pusher delivers a committed message to the participants' live
// connections, best effort. The payload is opaque to the transport.
type Pusher interface {
	PushMessage(ctx context.Context, targets []string, payload any)
}

type Service struct {
	ledger    Ledger
	directory Directory
	resolver  AudienceResolver
	pusher    Pusher
	validate  *validator.Validate
	pageSize  int
}

func NewService(ledger Ledger, directory Directory, resolver AudienceResolver, pusher Pusher, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Service{
		ledger:    ledger,
		directory: directory,
		resolver:  resolver,
		pusher:    pusher,
		validate:  validator.New(),
		pageSize:  pageSize,
	}
}

// Send validates the request, appends the message with the anchor moved
// onto it, then pushes the normalized payload to both participants'
// connections. The push is best effort; the committed message is returned
// either way.
func (s *Service) Send(ctx context.Context, senderID string, req *SendMessageRequest) (*MessagePayload, error) {
	if req.Kind == "" {
		req.Kind = KindText
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Field: "payload", Reason: err.Error()}
	}
	if req.Kind == KindText && req.Content == "" {
		return nil, &ValidationError{Field: "content", Reason: "required for text messages"}
	}
	if req.Kind != KindText && req.MediaURL == "" {
		return nil, &ValidationError{Field: "mediaUrl", Reason: fmt.Sprintf("required for %s messages", req.Kind)}
	}

	key, err := DeriveKey(senderID, req.ReceiverID)
	if err != nil {
		return nil, err
	}

	exists, err := s.directory.Exists(ctx, req.ReceiverID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrRecipientNotFound
	}

	msg := &Message{
		ID:              uuid.NewString(),
		SenderID:        senderID,
		ReceiverID:      req.ReceiverID,
		ConversationKey: key,
		Kind:            req.Kind,
		Content:         req.Content,
		MediaURL:        req.MediaURL,
		Status:          StateDelivered,
	}
	if err := s.ledger.AppendAndAnchor(ctx, msg); err != nil {
		return nil, err
	}

	payload, err := s.toPayload(ctx, msg, map[string]*user.Profile{})
	if err != nil {
		return nil, err
	}
	s.pusher.PushMessage(ctx, []string{req.ReceiverID, senderID}, payload)
	return payload, nil
}

// ListConversations pages over a user's counterparts, friends or
// strangers, most recently messaged first. Pagination runs over the
// counterpart set, not over messages, so page boundaries stay stable while
// new messages arrive.
func (s *Service) ListConversations(ctx context.Context, id string, audience Audience, skip, limit int) (*ConversationPage, error) {
	if limit <= 0 {
		limit = s.pageSize
	}
	if skip < 0 {
		skip = 0
	}

	var (
		others []string
		err    error
	)
	switch audience {
	case AudienceFriends:
		others, err = s.resolver.FriendsOf(ctx, id)
	case AudienceStrangers:
		others, err = s.resolver.StrangersOf(ctx, id)
	default:
		return nil, &ValidationError{Field: "audience", Reason: "must be friends or strangers"}
	}
	if err != nil {
		return nil, err
	}

	keyFor := make(map[string]string, len(others))
	for _, other := range others {
		key, err := DeriveKey(id, other)
		if err != nil {
			return nil, err
		}
		keyFor[other] = key
	}

	last, err := s.ledger.LastMessages(ctx, lo.Values(keyFor))
	if err != nil {
		return nil, err
	}

	// Counterparts with no message at all sort last.
	sort.SliceStable(others, func(i, j int) bool {
		mi, mj := last[keyFor[others[i]]], last[keyFor[others[j]]]
		switch {
		case mi == nil:
			return false
		case mj == nil:
			return true
		default:
			return mi.CreatedAt.After(mj.CreatedAt)
		}
	})

	hasMore := skip+limit < len(others)
	if skip >= len(others) {
		return &ConversationPage{Data: []ConversationRow{}, HasMore: false}, nil
	}
	page := others[skip:min(skip+limit, len(others))]

	profiles := map[string]*user.Profile{}
	rows := make([]ConversationRow, 0, len(page))
	for _, other := range page {
		profile, err := s.profile(ctx, other, profiles)
		if err != nil {
			return nil, err
		}
		row := ConversationRow{User: profile}
		if msg := last[keyFor[other]]; msg != nil {
			payload, err := s.toPayload(ctx, msg, profiles)
			if err != nil {
				return nil, err
			}
			row.LastMessage = payload
		}
		rows = append(rows, row)
	}
	return &ConversationPage{Data: rows, HasMore: hasMore}, nil
}

// History returns the full conversation between two users, oldest first.
func (s *Service) History(ctx context.Context, a, b string) ([]*MessagePayload, error) {
	key, err := DeriveKey(a, b)
	if err != nil {
		return nil, err
	}

	msgs, err := s.ledger.History(ctx, key)
	if err != nil {
		return nil, err
	}

	profiles := map[string]*user.Profile{}
	payloads := make([]*MessagePayload, 0, len(msgs))
	for _, msg := range msgs {
		payload, err := s.toPayload(ctx, msg, profiles)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, payload)
	}
	return payloads, nil
}

// MarkSeen records that reader has read the conversation with other.
func (s *Service) MarkSeen(ctx context.Context, reader, other string) error {
	key, err := DeriveKey(reader, other)
	if err != nil {
		return err
	}
	return s.ledger.MarkSeen(ctx, key, reader)
}

func (s *Service) toPayload(ctx context.Context, msg *Message, cache map[string]*user.Profile) (*MessagePayload, error) {
	sender, err := s.profile(ctx, msg.SenderID, cache)
	if err != nil {
		return nil, err
	}
	receiver, err := s.profile(ctx, msg.ReceiverID, cache)
	if err != nil {
		return nil, err
	}
	return &MessagePayload{
		ID:          msg.ID,
		Sender:      sender,
		Receiver:    receiver,
		Kind:        msg.Kind,
		Content:     msg.Content,
		MediaURL:    msg.MediaURL,
		CreatedAt:   msg.CreatedAt,
		Status:      msg.Status,
		LastMessage: msg.LastMessage,
	}, nil
}

// profile memoizes directory lookups within a single call; the cache never
// outlives the request.
func (s *Service) profile(ctx context.Context, id string, cache map[string]*user.Profile) (*user.Profile, error) {
	if p, ok := cache[id]; ok {
		return p, nil
	}
	p, err := s.directory.ResolveProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = p
	return p, nil
}
