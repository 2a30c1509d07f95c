package users

import (
	"context"

	"github.com/jrsteele09/dashboard-gateway/engine"
	gwerrors "github.com/jrsteele09/dashboard-gateway/internal/errors"
	"github.com/spf13/cast"
)

// Querier executes SQL on the engine.
type Querier interface {
	Execute(ctx context.Context, sql string, opts engine.QueryOptions) (*engine.QueryResult, error)
}

// DatabaseResolver maps a tenant to its engine database.
type DatabaseResolver interface {
	DatabaseID(ctx context.Context, tenantID string) int
}

// EngineRepo looks users up with the stored login query.
type EngineRepo struct {
	engine    Querier
	loginSQL  string
	databases DatabaseResolver
}

var _ Repo = (*EngineRepo)(nil)

func NewEngineRepo(q Querier, loginSQL string, databases DatabaseResolver) *EngineRepo {
	return &EngineRepo{engine: q, loginSQL: loginSQL, databases: databases}
}

func (r *EngineRepo) Authenticate(ctx context.Context, tenantID, username, passwordHash string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	opts := engine.QueryOptions{
		TemplateParams: map[string]any{
			"username": username,
			"password": passwordHash,
		},
	}
	if r.databases != nil {
		id := r.databases.DatabaseID(ctx, tenantID)
		opts.DatabaseID = &id
	}

	result, err := r.engine.Execute(ctx, r.loginSQL, opts)
	if err != nil {
		return nil, gwerrors.Wrapf(err, "failed to look up user")
	}
	if result.Empty() {
		return nil, ErrInvalidCredentials
	}

	row := result.Data[0]
	return &User{
		ID:       cast.ToString(row["UserID"]),
		Username: cast.ToString(row["UserName"]),
		Branches: cast.ToString(row["UserBranchs"]),
	}, nil
}
