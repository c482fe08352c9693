package user

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("user: invalid credentials")

// Store is what the service needs from the repository.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	Exists(ctx context.Context, id string) (bool, error)
	GetProfile(ctx context.Context, id string) (*Profile, error)
	SearchUsers(ctx context.Context, query string) ([]Profile, error)
}

type Service struct {
	store     Store
	jwtSecret string
	validate  *validator.Validate
}

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewService(store Store, secret string) *Service {
	return &Service{
		store:     store,
		jwtSecret: secret,
		validate:  validator.New(),
	}
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*Profile, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hashed),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	return &Profile{ID: u.ID, Username: u.Username, Email: u.Email}, nil
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	u, err := s.store.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    "pairchat",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	})
	ss, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	profile, err := s.store.GetProfile(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{AccessToken: ss, User: profile}, nil
}

// ValidateToken returns the user ID and username encoded in the token.
func (s *Service) ValidateToken(tokenString string) (string, string, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, c, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", "", err
	}
	if !token.Valid || c.Subject == "" {
		return "", "", errors.New("user: invalid token")
	}
	return c.Subject, c.Username, nil
}

// ResolveProfile and Exists are the identity-store surface consumed by the
// chat and presence packages.

func (s *Service) ResolveProfile(ctx context.Context, id string) (*Profile, error) {
	return s.store.GetProfile(ctx, id)
}

func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.store.Exists(ctx, id)
}

func (s *Service) SearchUsers(ctx context.Context, query string) ([]Profile, error) {
	return s.store.SearchUsers(ctx, query)
}
