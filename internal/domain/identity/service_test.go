package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

// -- Mock Repository --

type mockRepo struct {
	users map[uuid.UUID]*User
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return usernameTaken()
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, &apperr.NotFoundError{Resource: "user"}
}

var signingKey = []byte("test-signing-key")

func newTestService() *Service {
	svc := NewService(newMockRepo(), auth.NewTokenIssuer("clinic", signingKey, time.Hour), zerolog.Nop())
	svc.cost = bcrypt.MinCost
	return svc
}

func TestService_Register(t *testing.T) {
	svc := newTestService()
	u, err := svc.Register(context.Background(), validRegister())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.PasswordHash == "correct-horse" || u.PasswordHash == "" {
		t.Error("expected the password to be hashed")
	}
	if len(u.Roles) != 1 || u.Roles[0] != auth.RoleStaff {
		t.Errorf("expected staff role, got %v", u.Roles)
	}
}

func TestService_Register_DuplicateUsername(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Register(context.Background(), validRegister()); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Register(context.Background(), validRegister())
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || !ve.Has("username") {
		t.Errorf("expected username field error, got %v", err)
	}
}

func TestService_Register_PasswordOverBcryptLimit(t *testing.T) {
	svc := newTestService()
	in := validRegister()
	in.Password = strings.Repeat("correct-horse-", 5) + "battery-stap"
	in.PasswordConfirm = in.Password

	_, err := svc.Register(context.Background(), in)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || !ve.Has("password") {
		t.Fatalf("expected password field error, got %v", err)
	}

	_, err = svc.CreateUser(context.Background(), "admin", "admin@clinic.example", in.Password, []string{auth.RoleAdmin})
	if !errors.As(err, &ve) || !ve.Has("password") {
		t.Errorf("expected password field error from CreateUser, got %v", err)
	}
}

func TestService_Login(t *testing.T) {
	svc := newTestService()
	u, err := svc.Register(context.Background(), validRegister())
	if err != nil {
		t.Fatal(err)
	}

	resp, err := svc.Login(context.Background(), LoginInput{Username: "frontdesk", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TokenType != "Bearer" || resp.AccessToken == "" {
		t.Fatalf("unexpected response %+v", resp)
	}

	claims := &auth.Claims{}
	_, err = jwt.ParseWithClaims(resp.AccessToken, claims, func(*jwt.Token) (interface{}, error) { return signingKey, nil })
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if claims.Subject != u.ID.String() || claims.Username != "frontdesk" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestService_Login_InvalidCredentials(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Register(context.Background(), validRegister()); err != nil {
		t.Fatal(err)
	}
	for _, in := range []LoginInput{
		{Username: "frontdesk", Password: "wrong-horse"},
		{Username: "nobody", Password: "correct-horse"},
	} {
		if _, err := svc.Login(context.Background(), in); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%s: expected invalid credentials, got %v", in.Username, err)
		}
	}
}
