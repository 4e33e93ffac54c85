package core

import (
	"context"
	"errors"
	"strings"
	"time"
)

// User represents an authenticated principal returned to handlers.
type User struct {
	ID          int64
	Username    string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	IsActive    bool
	IsStaff     bool
	IsSuperuser bool
	LastLogin   *time.Time
	CreatedAt   time.Time
}

// DisplayName is the profile name shown to clients: family name first.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.LastName + " " + u.FirstName)
}

var (
	// ErrInvalidCredentials is returned when the identifier/password pair is
	// wrong. "No such user" and "wrong password" are deliberately collapsed
	// into this one error to prevent user enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken covers malformed tokens, bad signatures, expired
	// tokens, wrong token types and unresolvable subjects.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnauthenticated is returned when a protected endpoint is reached
	// without a resolvable identity.
	ErrUnauthenticated = errors.New("authentication required")

	errMissingSecretKey = errors.New("SECRET_KEY is not configured")
)

// AuthService defines credential verification and login bookkeeping.
type AuthService interface {
	// Authenticate resolves identifier (user ID, email or username) plus
	// password to a user, or ErrInvalidCredentials.
	Authenticate(ctx context.Context, identifier, password string) (User, error)
	// Login records the successful login (last_login) and returns the
	// updated user.
	Login(ctx context.Context, user User) (User, error)
}
