package mappings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Resolver returns the account code configured for a role.
type Resolver interface {
	Code(ctx context.Context, role Role) (string, error)
}

type repository struct {
	db Querier
}

// NewResolver reads overrides from account_mappings and falls back to DefaultCodes.
func NewResolver(db Querier) Resolver {
	return &repository{db: db}
}

func (r *repository) Code(ctx context.Context, role Role) (string, error) {
	var code string
	err := r.db.QueryRow(ctx, `SELECT account_code FROM account_mappings WHERE role=$1`, string(role)).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultCodes[role], nil
		}
		return "", err
	}
	return code, nil
}

// Static resolves roles from a fixed map, falling back to DefaultCodes.
type Static map[Role]string

func (s Static) Code(_ context.Context, role Role) (string, error) {
	if code, ok := s[role]; ok {
		return code, nil
	}
	return DefaultCodes[role], nil
}
