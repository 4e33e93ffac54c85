package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned by repositories when no row matches.
var ErrUserNotFound = errors.New("user not found")

// UserRecord is the full persistence projection, including the password hash.
type UserRecord struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	PasswordHash string
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	LastLogin    *time.Time
	CreatedAt    time.Time
}

// User strips the persistence-only fields from a record.
func (r *UserRecord) User() User {
	return User{
		ID:          r.ID,
		Username:    r.Username,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		Phone:       r.Phone,
		IsActive:    r.IsActive,
		IsStaff:     r.IsStaff,
		IsSuperuser: r.IsSuperuser,
		LastLogin:   r.LastLogin,
		CreatedAt:   r.CreatedAt,
	}
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*UserRecord, error)
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
	Create(ctx context.Context, rec UserRecord) (int64, error)
	// UpdateLastLogin persists only the last_login column.
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	HasSuperuser(ctx context.Context) (bool, error)
}

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

const userColumns = `id, username, first_name, last_name, email, phone, password_hash, is_active, is_staff, is_superuser, last_login, created_at`

func (r *PgUserRepository) FindByID(ctx context.Context, id int64) (*UserRecord, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.findOne(ctx, q, id)
}

func (r *PgUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username=$1`
	return r.findOne(ctx, q, username)
}

func (r *PgUserRepository) FindByEmail(ctx context.Context, email string) (*UserRecord, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return r.findOne(ctx, q, email)
}

func (r *PgUserRepository) findOne(ctx context.Context, q string, arg any) (*UserRecord, error) {
	var u UserRecord
	err := r.db.QueryRow(ctx, q, arg).Scan(
		&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.Phone,
		&u.PasswordHash, &u.IsActive, &u.IsStaff, &u.IsSuperuser,
		&u.LastLogin, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, rec UserRecord) (int64, error) {
	const q = `INSERT INTO users (username, first_name, last_name, email, phone, password_hash, is_active, is_staff, is_superuser)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, q,
		rec.Username, rec.FirstName, rec.LastName, rec.Email, rec.Phone,
		rec.PasswordHash, rec.IsActive, rec.IsStaff, rec.IsSuperuser,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgUserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	const q = `UPDATE users SET last_login=$2 WHERE id=$1`
	tag, err := r.db.Exec(ctx, q, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PgUserRepository) HasSuperuser(ctx context.Context) (bool, error) {
	const q = `SELECT 1 FROM users WHERE is_superuser LIMIT 1`
	var one int
	if err := r.db.QueryRow(ctx, q).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
