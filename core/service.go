package core

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when no user matches, so the wall-clock cost
// of "user not found" stays indistinguishable from "wrong password".
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("!unusable-password-sentinel"), bcrypt.DefaultCost)

// RepositoryAuthService verifies credentials against the user repository.
type RepositoryAuthService struct {
	users UserRepository
}

func NewRepositoryAuthService(users UserRepository) *RepositoryAuthService {
	return &RepositoryAuthService{users: users}
}

// Authenticate resolves identifier to an active user and checks the password.
// An all-digit identifier is looked up by primary key, one containing "@" by
// email, anything else by username.
func (s *RepositoryAuthService) Authenticate(ctx context.Context, identifier, password string) (User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	rec, err := s.lookup(ctx, identifier)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		// Infrastructure failures are not credential failures.
		return User{}, err
	}
	if err != nil || !rec.IsActive {
		// Burn one hash comparison anyway (timing defence).
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return User{}, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return rec.User(), nil
}

func (s *RepositoryAuthService) lookup(ctx context.Context, identifier string) (*UserRecord, error) {
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return s.users.FindByID(ctx, id)
	}
	if strings.Contains(identifier, "@") {
		return s.users.FindByEmail(ctx, identifier)
	}
	return s.users.FindByUsername(ctx, identifier)
}

// Login stamps last_login and persists only that column.
func (s *RepositoryAuthService) Login(ctx context.Context, user User) (User, error) {
	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return User{}, err
	}
	user.LastLogin = &now
	return user, nil
}
