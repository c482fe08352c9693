package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	byEmail map[string]*User
	byID    map[string]*User
}

func newMemStore() *memStore {
	return &memStore{byEmail: map[string]*User{}, byID: map[string]*User{}}
}

func (s *memStore) CreateUser(_ context.Context, u *User) error {
	s.byEmail[u.Email] = u
	s.byID[u.ID] = u
	return nil
}

func (s *memStore) GetByEmail(_ context.Context, email string) (*User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *memStore) Exists(_ context.Context, id string) (bool, error) {
	_, ok := s.byID[id]
	return ok, nil
}

func (s *memStore) GetProfile(_ context.Context, id string) (*Profile, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Profile{ID: u.ID, Username: u.Username, Email: u.Email}, nil
}

func (s *memStore) SearchUsers(_ context.Context, query string) ([]Profile, error) {
	return nil, nil
}

func TestService_RegisterLoginRoundTrip(t *testing.T) {
	req := require.New(t)
	svc := NewService(newMemStore(), "test-secret")
	ctx := context.Background()

	profile, err := svc.Register(ctx, &RegisterRequest{
		Username: "alice", Email: "alice@test.local", Password: "correct horse",
	})
	req.NoError(err)
	req.NotEmpty(profile.ID)

	res, err := svc.Login(ctx, &LoginRequest{Email: "alice@test.local", Password: "correct horse"})
	req.NoError(err)
	req.NotEmpty(res.AccessToken)
	req.Equal(profile.ID, res.User.ID)

	id, username, err := svc.ValidateToken(res.AccessToken)
	req.NoError(err)
	req.Equal(profile.ID, id)
	req.Equal("alice", username)
}

func TestService_LoginWrongPassword(t *testing.T) {
	req := require.New(t)
	svc := NewService(newMemStore(), "test-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{
		Username: "bob", Email: "bob@test.local", Password: "right password",
	})
	req.NoError(err)

	_, err = svc.Login(ctx, &LoginRequest{Email: "bob@test.local", Password: "wrong password"})
	req.ErrorIs(err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, &LoginRequest{Email: "nobody@test.local", Password: "whatever"})
	req.ErrorIs(err, ErrInvalidCredentials)
}

func TestService_RegisterValidation(t *testing.T) {
	req := require.New(t)
	svc := NewService(newMemStore(), "test-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{Username: "x", Email: "not-an-email", Password: "short"})
	req.Error(err)
}

func TestService_ValidateTokenRejectsTampered(t *testing.T) {
	req := require.New(t)
	svc := NewService(newMemStore(), "test-secret")
	other := NewService(newMemStore(), "other-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{
		Username: "carol", Email: "carol@test.local", Password: "long enough",
	})
	req.NoError(err)
	res, err := svc.Login(ctx, &LoginRequest{Email: "carol@test.local", Password: "long enough"})
	req.NoError(err)

	_, _, err = other.ValidateToken(res.AccessToken)
	req.Error(err, "token signed with a different secret must be rejected")

	_, _, err = svc.ValidateToken(res.AccessToken + "x")
	req.Error(err)
}
