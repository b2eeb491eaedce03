package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// TokenSigner issues access tokens; *auth.TokenIssuer satisfies it.
type TokenSigner interface {
	Issue(userID, username string, roles []string) (string, time.Time, error)
}

type Service struct {
	repo   Repository
	tokens TokenSigner
	logger zerolog.Logger
	cost   int
}

func NewService(repo Repository, tokens TokenSigner, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		logger: logger.With().Str("component", "identity").Logger(),
		cost:   bcrypt.DefaultCost,
	}
}

// Register creates a staff account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	username, email, err := in.Validate()
	if err != nil {
		return nil, err
	}
	return s.CreateUser(ctx, username, email, in.Password, []string{auth.RoleStaff})
}

// CreateUser stores a user with the given roles. Input is assumed valid
// apart from the password length bcrypt enforces; the seed command uses it
// to create the first admin.
func (s *Service) CreateUser(ctx context.Context, username, email, password string, roles []string) (*User, error) {
	if len(password) > MaxPasswordBytes {
		v := &apperr.ValidationError{}
		v.Add("password", "must be at most %d bytes", MaxPasswordBytes)
		return nil, v
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{Username: username, Email: email, PasswordHash: string(hash), Roles: roles}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("username", u.Username).Msg("user registered")
	return u, nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*TokenResponse, error) {
	u, err := s.repo.GetByUsername(ctx, in.Username)
	if errors.Is(err, apperr.ErrNotFound) {
		// Hash anyway so unknown usernames take as long as wrong passwords.
		_, _ = bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		s.logger.Warn().Str("username", in.Username).Msg("failed login attempt")
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(u.ID.String(), u.Username, u.Roles)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Msg("user logged in")
	return &TokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: exp, User: u}, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}
