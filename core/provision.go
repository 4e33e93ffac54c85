package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// UserManifest is the YAML document consumed by the provision command.
// Expected layout:
//
//	users:
//	  - username: alice
//	    email: alice@example.com
//	    password: Secr3t!23        # or password_hash: $2a$...
//	    is_staff: true
type UserManifest struct {
	Users []ManifestUser `yaml:"users"`
}

// ManifestUser describes one user to provision. Exactly one of Password or
// PasswordHash must be set; IsActive defaults to true.
type ManifestUser struct {
	Username     string `yaml:"username"`
	FirstName    string `yaml:"first_name"`
	LastName     string `yaml:"last_name"`
	Email        string `yaml:"email"`
	Phone        string `yaml:"phone"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
	IsActive     *bool  `yaml:"is_active"`
	IsStaff      bool   `yaml:"is_staff"`
	IsSuperuser  bool   `yaml:"is_superuser"`
}

// LoadUserManifest reads and validates a manifest file.
func LoadUserManifest(path string) (UserManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return UserManifest{}, err
	}
	return ParseUserManifest(data)
}

// ParseUserManifest decodes and validates manifest bytes.
func ParseUserManifest(data []byte) (UserManifest, error) {
	var m UserManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return UserManifest{}, fmt.Errorf("invalid manifest: %w", err)
	}
	if len(m.Users) == 0 {
		return UserManifest{}, errors.New("manifest contains no users")
	}
	seen := map[string]struct{}{}
	for i, u := range m.Users {
		if strings.TrimSpace(u.Username) == "" {
			return UserManifest{}, fmt.Errorf("users[%d]: username is required", i)
		}
		if _, dup := seen[u.Username]; dup {
			return UserManifest{}, fmt.Errorf("users[%d]: duplicate username %q", i, u.Username)
		}
		seen[u.Username] = struct{}{}
		if (u.Password == "") == (u.PasswordHash == "") {
			return UserManifest{}, fmt.Errorf("users[%d]: exactly one of password or password_hash is required", i)
		}
	}
	return m, nil
}

// ProvisionUsers inserts the manifest users that do not exist yet and
// returns how many were created. Existing usernames are skipped, not
// updated.
func ProvisionUsers(ctx context.Context, repo UserRepository, m UserManifest) (int, error) {
	created := 0
	for _, u := range m.Users {
		_, err := repo.FindByUsername(ctx, u.Username)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrUserNotFound) {
			return created, err
		}

		hash := u.PasswordHash
		if hash == "" {
			h, herr := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if herr != nil {
				return created, fmt.Errorf("hash password for %q: %w", u.Username, herr)
			}
			hash = string(h)
		}

		active := true
		if u.IsActive != nil {
			active = *u.IsActive
		}

		rec := UserRecord{
			Username:     u.Username,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			Email:        u.Email,
			Phone:        u.Phone,
			PasswordHash: hash,
			IsActive:     active,
			IsStaff:      u.IsStaff,
			IsSuperuser:  u.IsSuperuser,
		}
		if _, err := repo.Create(ctx, rec); err != nil {
			return created, fmt.Errorf("create %q: %w", u.Username, err)
		}
		created++
	}
	return created, nil
}
