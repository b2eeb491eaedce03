package identity

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/validate"
)

// User is a member of clinic staff who can sign in.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	MaxUsernameLength = 150
	MinPasswordLength = 8
	// MaxPasswordBytes is the most bcrypt will hash.
	MaxPasswordBytes = 72
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

type RegisterInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Validate returns the cleaned username and email, or every field error.
func (in RegisterInput) Validate() (username, email string, err error) {
	var v apperr.ValidationError

	username = validate.Text(&v, "username", in.Username, true, MaxUsernameLength)
	if username != "" && !usernamePattern.MatchString(username) {
		v.Add("username", "may contain only letters, digits and @/./+/-/_")
	}
	email = validate.Email(&v, "email", in.Email, true)

	switch {
	case in.Password == "":
		v.Add("password", "is required")
	case len(in.Password) < MinPasswordLength:
		v.Add("password", "must be at least %d characters", MinPasswordLength)
	case len(in.Password) > MaxPasswordBytes:
		v.Add("password", "must be at most %d bytes", MaxPasswordBytes)
	case strings.Trim(in.Password, "0123456789") == "":
		v.Add("password", "must not be entirely numeric")
	case strings.EqualFold(in.Password, username):
		v.Add("password", "is too similar to the username")
	}
	if in.Password != in.PasswordConfirm {
		v.Add("password_confirm", "does not match password")
	}

	if err := v.Err(); err != nil {
		return "", "", err
	}
	return username, email, nil
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}
