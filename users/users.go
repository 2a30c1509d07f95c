// Package users checks dashboard credentials against the tenant's user table.
package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/jrsteele09/dashboard-gateway/credentials"
	gwerrors "github.com/jrsteele09/dashboard-gateway/internal/errors"
	"github.com/jrsteele09/dashboard-gateway/token"
)

var ErrInvalidCredentials = gwerrors.ErrInvalidCredentials

// User is a dashboard user as stored in the tenant database.
type User struct {
	ID       string `json:"userId"`
	Username string `json:"username"`
	Branches string `json:"userBranches,omitempty"` // comma separated branch ids
}

func (u *User) Identity() token.Identity {
	return token.Identity{Username: u.Username, UserID: u.ID, Branches: u.Branches}
}

type Repo interface {
	// Authenticate returns the active user whose name and stored password
	// hash match, or ErrInvalidCredentials.
	Authenticate(ctx context.Context, tenantID, username, passwordHash string) (*User, error)
}

// ValidateUsername rejects names that cannot be looked up safely. The login
// query is rendered by the engine's template engine without escaping.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("username is required: %w", ErrInvalidCredentials)
	}
	if strings.ContainsAny(username, `'"\;`) {
		return fmt.Errorf("username contains forbidden characters: %w", ErrInvalidCredentials)
	}
	return nil
}

// Service hashes submitted passwords and looks the user up.
type Service struct {
	repo   Repo
	hasher credentials.Hasher
}

func NewService(repo Repo, hasher credentials.Hasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

func (s *Service) Login(ctx context.Context, tenantID, username, password string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("password is required: %w", ErrInvalidCredentials)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, gwerrors.Wrapf(err, "failed to hash password")
	}
	return s.repo.Authenticate(ctx, tenantID, username, hash)
}
