package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stashspace/stashspace/internal/booking/pricing"
	"github.com/stashspace/stashspace/internal/shared"
)

// Repository provides read access to the space/service catalog. It backs the
// calculator's referential checks; catalog mutation is data entry outside
// this engine.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SpaceByID resolves an active space for allocation validation.
func (r *Repository) SpaceByID(ctx context.Context, id int64) (*pricing.SpaceInfo, error) {
	var info pricing.SpaceInfo
	err := r.pool.QueryRow(ctx, `SELECT id, warehouse_id, space_type, list_price_per_m2_cents
FROM warehouse_spaces WHERE id = $1 AND active`, id).
		Scan(&info.ID, &info.WarehouseID, &info.SpaceType, &info.ListPricePerM2Cents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &info, nil
}

// ServiceByID resolves an active storage service.
func (r *Repository) ServiceByID(ctx context.Context, id int64) (*pricing.ServiceInfo, error) {
	var info pricing.ServiceInfo
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM storage_services WHERE id = $1 AND active`, id).
		Scan(&info.ID, &info.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &info, nil
}

// ListPricePerM2 returns the current list price for a space type, used for
// the trader-facing inquiry estimate before any offer exists.
func (r *Repository) ListPricePerM2(ctx context.Context, spaceType string) (int64, error) {
	var price int64
	err := r.pool.QueryRow(ctx, `SELECT MIN(list_price_per_m2_cents) FROM warehouse_spaces
WHERE space_type = $1 AND active HAVING COUNT(*) > 0`, spaceType).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return price, nil
}

// ListSpaces returns active spaces for a warehouse.
func (r *Repository) ListSpaces(ctx context.Context, warehouseID int64) ([]Space, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, warehouse_id, space_type, total_size_m2, list_price_per_m2_cents, active, created_at, updated_at
FROM warehouse_spaces WHERE warehouse_id = $1 AND active ORDER BY space_type, id`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var spaces []Space
	for rows.Next() {
		var s Space
		if err := rows.Scan(&s.ID, &s.WarehouseID, &s.SpaceType, &s.TotalSizeM2, &s.ListPricePerM2Cents, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		spaces = append(spaces, s)
	}
	return spaces, rows.Err()
}

// ListServices returns every active bookable service.
func (r *Repository) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, active, created_at
FROM storage_services WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var services []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}
