package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// memUserRepository is an in-memory UserRepository for tests.
type memUserRepository struct {
	mu    sync.Mutex
	seq   int64
	users map[int64]*UserRecord
}

func newMemUserRepository() *memUserRepository {
	return &memUserRepository{users: map[int64]*UserRecord{}}
}

func (r *memUserRepository) FindByID(ctx context.Context, id int64) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrUserNotFound
}

func (r *memUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	return r.findBy(func(u *UserRecord) bool { return u.Username == username })
}

func (r *memUserRepository) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	return r.findBy(func(u *UserRecord) bool { return u.Email == email })
}

func (r *memUserRepository) findBy(match func(*UserRecord) bool) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memUserRepository) Create(ctx context.Context, rec UserRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	rec.ID = r.seq
	rec.CreatedAt = time.Now().UTC()
	r.users[rec.ID] = &rec
	return rec.ID, nil
}

func (r *memUserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LastLogin = &at
	return nil
}

func (r *memUserRepository) HasSuperuser(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.IsSuperuser {
			return true, nil
		}
	}
	return false, nil
}

// mustAddUser inserts an active user with a bcrypt-hashed password and
// returns its ID. MinCost keeps the test suite fast.
func mustAddUser(t *testing.T, repo *memUserRepository, username, email, password string) int64 {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	id, err := repo.Create(context.Background(), UserRecord{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func setUserName(t *testing.T, repo *memUserRepository, id int64, first, last string) {
	t.Helper()
	repo.mu.Lock()
	defer repo.mu.Unlock()
	u, ok := repo.users[id]
	if !ok {
		t.Fatalf("no user %d", id)
	}
	u.FirstName = first
	u.LastName = last
}

func deactivateUser(t *testing.T, repo *memUserRepository, id int64) {
	t.Helper()
	repo.mu.Lock()
	defer repo.mu.Unlock()
	u, ok := repo.users[id]
	if !ok {
		t.Fatalf("no user %d", id)
	}
	u.IsActive = false
}
