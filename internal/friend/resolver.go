package friend

import (
	"context"

	"github.com/samber/lo"
)

// FriendSource supplies accepted friend edges.
type FriendSource interface {
	FriendIDsOf(ctx context.Context, id string) ([]string, error)
}

// Counterparts supplies the distinct users id has exchanged messages with,
// implemented by the chat message ledger.
type Counterparts interface {
	CounterpartIDs(ctx context.Context, id string) ([]string, error)
}

// Resolver classifies a user's contacts: friends are accepted edges,
// strangers are message counterparts without one. Both views are derived
// fresh on every call; friend and message state change underneath us too
// often for a cache to stay honest.
type Resolver struct {
	friends FriendSource
	ledger  Counterparts
}

func NewResolver(friends FriendSource, ledger Counterparts) *Resolver {
	return &Resolver{friends: friends, ledger: ledger}
}

func (r *Resolver) FriendsOf(ctx context.Context, id string) ([]string, error) {
	ids, err := r.friends.FriendIDsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return lo.Uniq(ids), nil
}

func (r *Resolver) StrangersOf(ctx context.Context, id string) ([]string, error) {
	others, err := r.ledger.CounterpartIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	friends, err := r.friends.FriendIDsOf(ctx, id)
	if err != nil {
		return nil, err
	}

	strangers := lo.Without(lo.Uniq(others), id)
	return lo.Without(strangers, friends...), nil
}
