package users_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jrsteele09/dashboard-gateway/credentials"
	"github.com/jrsteele09/dashboard-gateway/engine"
	"github.com/jrsteele09/dashboard-gateway/engine/enginefake"
	"github.com/jrsteele09/dashboard-gateway/token"
	"github.com/jrsteele09/dashboard-gateway/users"
	userrepofakes "github.com/jrsteele09/dashboard-gateway/users/repofakes"
	"github.com/stretchr/testify/require"
)

const (
	loginSQL     = "SELECT TOP 1 UserID, UserName, UserBranchs FROM Efr_Users WHERE UserName = '{{ username }}'"
	passwordHash = "E2-01-06-5D-05-54-65-26-15-C3-20-C0-0A-1D-5B-C8-ED-CA-46-9D-72-C2-79-0E-24-15-2D-0C-1E-2B-61-89"
)

type fixedDatabase int

func (f fixedDatabase) DatabaseID(context.Context, string) int {
	return int(f)
}

func TestEngineRepo_Authenticate(t *testing.T) {
	fake := enginefake.NewFakeEngine().On("Efr_Users", engine.Row{"UserID": 42.0, "UserName": "jdoe", "UserBranchs": "1,2,3"})
	repo := users.NewEngineRepo(fake, loginSQL, fixedDatabase(9))

	user, err := repo.Authenticate(context.Background(), "AcmeCafe", "jdoe", passwordHash)
	require.NoError(t, err)
	require.Equal(t, &users.User{ID: "42", Username: "jdoe", Branches: "1,2,3"}, user)
	require.Equal(t, token.Identity{Username: "jdoe", UserID: "42", Branches: "1,2,3"}, user.Identity())

	calls := fake.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, loginSQL, calls[0].SQL)
	require.Equal(t, map[string]any{"username": "jdoe", "password": passwordHash}, calls[0].Options.TemplateParams)
	require.Equal(t, 9, *calls[0].Options.DatabaseID)
}

func TestEngineRepo_Rejects(t *testing.T) {
	t.Run("no matching row", func(t *testing.T) {
		repo := users.NewEngineRepo(enginefake.NewFakeEngine(), loginSQL, nil)
		_, err := repo.Authenticate(context.Background(), "AcmeCafe", "jdoe", passwordHash)
		require.ErrorIs(t, err, users.ErrInvalidCredentials)
	})

	t.Run("quoted username never reaches the engine", func(t *testing.T) {
		fake := enginefake.NewFakeEngine()
		repo := users.NewEngineRepo(fake, loginSQL, nil)
		_, err := repo.Authenticate(context.Background(), "AcmeCafe", "x' OR '1'='1", passwordHash)
		require.ErrorIs(t, err, users.ErrInvalidCredentials)
		require.Empty(t, fake.Calls())
	})

	t.Run("engine failure is not a credential failure", func(t *testing.T) {
		boom := errors.New("boom")
		repo := users.NewEngineRepo(enginefake.NewFakeEngine().OnError("Efr_Users", boom), loginSQL, nil)
		_, err := repo.Authenticate(context.Background(), "AcmeCafe", "jdoe", passwordHash)
		require.ErrorIs(t, err, boom)
		require.NotErrorIs(t, err, users.ErrInvalidCredentials)
	})
}

func TestService_Login(t *testing.T) {
	repo := userrepofakes.NewFakeUserRepo()
	repo.Add("AcmeCafe", users.User{ID: "42", Username: "jdoe", Branches: "7"}, passwordHash)
	svc := users.NewService(repo, credentials.UTF16SHA256Hasher{})

	user, err := svc.Login(context.Background(), "AcmeCafe", "jdoe", "password")
	require.NoError(t, err)
	require.Equal(t, "42", user.ID)

	_, err = svc.Login(context.Background(), "AcmeCafe", "jdoe", "wrong")
	require.ErrorIs(t, err, users.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "OtherTenant", "jdoe", "password")
	require.ErrorIs(t, err, users.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "AcmeCafe", "", "password")
	require.ErrorIs(t, err, users.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "AcmeCafe", "jdoe", "")
	require.ErrorIs(t, err, users.ErrInvalidCredentials)
}
