package userrepofakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/dashboard-gateway/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type storedUser struct {
	user         users.User
	passwordHash string
	tenantID     string
}

type FakeUserRepo struct {
	users map[string]storedUser
	err   error
	lock  sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users: make(map[string]storedUser),
	}
}

// Add stores user in tenantID under the given password hash.
func (ur *FakeUserRepo) Add(tenantID string, user users.User, passwordHash string) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.users[user.Username] = storedUser{user: user, passwordHash: passwordHash, tenantID: tenantID}
}

// FailWith makes every lookup return err.
func (ur *FakeUserRepo) FailWith(err error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.err = err
}

func (ur *FakeUserRepo) Authenticate(_ context.Context, tenantID, username, passwordHash string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	if ur.err != nil {
		return nil, ur.err
	}
	stored, ok := ur.users[username]
	if !ok || stored.passwordHash != passwordHash || stored.tenantID != tenantID {
		return nil, users.ErrInvalidCredentials
	}
	u := stored.user
	return &u, nil
}
