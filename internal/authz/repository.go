package authz

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdminDirectory answers whether an account holds an active administrator
// role. The users repository is the canonical implementation.
type AdminDirectory interface {
	IsAdministrator(ctx context.Context, userID int64) (bool, error)
}

// PgOracle answers role and ownership questions. Role checks delegate to the
// users repository; inquiry ownership is resolved straight from PostgreSQL.
type PgOracle struct {
	admins AdminDirectory
	pool   *pgxpool.Pool
}

// NewPgOracle constructs the oracle backing the Guard.
func NewPgOracle(admins AdminDirectory, pool *pgxpool.Pool) *PgOracle {
	return &PgOracle{admins: admins, pool: pool}
}

func (o *PgOracle) IsAdministrator(ctx context.Context, userID int64) (bool, error) {
	return o.admins.IsAdministrator(ctx, userID)
}

func (o *PgOracle) OwnsInquiry(ctx context.Context, userID, inquiryID int64) (bool, error) {
	var ok bool
	err := o.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM inquiries WHERE id = $1 AND trader_id = $2)`,
		inquiryID, userID).Scan(&ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}
