package inquiries

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stashspace/stashspace/internal/booking/lifecycle"
	"github.com/stashspace/stashspace/internal/platform/db"
	"github.com/stashspace/stashspace/internal/shared"
)

// Repository persists inquiries and their requested space/service rows.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	Get(ctx context.Context, id int64) (*Inquiry, error)
	List(ctx context.Context, filter Filter) ([]Inquiry, error)
	Insert(ctx context.Context, inquiry Inquiry) (int64, error)
	UpdateHeader(ctx context.Context, id int64, updates map[string]interface{}) error
	UpdateStatus(ctx context.Context, id int64, status lifecycle.Status) error
	ReplaceRequests(ctx context.Context, inquiryID int64, spaces []SpaceRequest, services []ServiceRequest) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const inquiryColumns = `id, trader_id, start_date, end_date, notes, estimated_cost_cents, status, created_at, updated_at`

func scanInquiry(row pgx.Row) (*Inquiry, error) {
	var q Inquiry
	err := row.Scan(&q.ID, &q.TraderID, &q.StartDate, &q.EndDate, &q.Notes,
		&q.EstimatedCostCents, &q.Status, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Inquiry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+inquiryColumns+` FROM inquiries WHERE id = $1`, id)
	inquiry, err := scanInquiry(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadRequests(ctx, inquiry); err != nil {
		return nil, err
	}
	return inquiry, nil
}

func (r *repository) loadRequests(ctx context.Context, inquiry *Inquiry) error {
	rows, err := r.db.Query(ctx,
		`SELECT id, inquiry_id, space_type, size_m2 FROM inquiry_space_requests WHERE inquiry_id = $1 ORDER BY id`,
		inquiry.ID)
	if err != nil {
		return fmt.Errorf("load space requests: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var req SpaceRequest
		if err := rows.Scan(&req.ID, &req.InquiryID, &req.SpaceType, &req.SizeM2); err != nil {
			return err
		}
		inquiry.SpaceRequests = append(inquiry.SpaceRequests, req)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	svcRows, err := r.db.Query(ctx,
		`SELECT id, inquiry_id, service_id FROM inquiry_service_requests WHERE inquiry_id = $1 ORDER BY id`,
		inquiry.ID)
	if err != nil {
		return fmt.Errorf("load service requests: %w", err)
	}
	defer svcRows.Close()
	for svcRows.Next() {
		var req ServiceRequest
		if err := svcRows.Scan(&req.ID, &req.InquiryID, &req.ServiceID); err != nil {
			return err
		}
		inquiry.ServiceRequests = append(inquiry.ServiceRequests, req)
	}
	return svcRows.Err()
}

func (r *repository) List(ctx context.Context, filter Filter) ([]Inquiry, error) {
	query := `SELECT ` + inquiryColumns + ` FROM inquiries WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if filter.TraderID != nil {
		query += fmt.Sprintf(` AND trader_id = $%d`, idx)
		args = append(args, *filter.TraderID)
		idx++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, *filter.Status)
		idx++
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, idx)
		args = append(args, filter.Limit)
		idx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, idx)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var inquiries []Inquiry
	for rows.Next() {
		var q Inquiry
		if err := rows.Scan(&q.ID, &q.TraderID, &q.StartDate, &q.EndDate, &q.Notes,
			&q.EstimatedCostCents, &q.Status, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		inquiries = append(inquiries, q)
	}
	return inquiries, rows.Err()
}

func (r *repository) Insert(ctx context.Context, inquiry Inquiry) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO inquiries (trader_id, start_date, end_date, notes, estimated_cost_cents, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		 RETURNING id`,
		inquiry.TraderID, inquiry.StartDate, inquiry.EndDate, inquiry.Notes,
		inquiry.EstimatedCostCents, inquiry.Status).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) UpdateHeader(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	query := `UPDATE inquiries SET updated_at = now()`
	args := []interface{}{}
	idx := 1
	for _, col := range []string{"start_date", "end_date", "notes", "estimated_cost_cents", "status"} {
		if value, ok := updates[col]; ok {
			query += fmt.Sprintf(`, %s = $%d`, col, idx)
			args = append(args, value)
			idx++
		}
	}
	query += fmt.Sprintf(` WHERE id = $%d`, idx)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status lifecycle.Status) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE inquiries SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ReplaceRequests(ctx context.Context, inquiryID int64, spaces []SpaceRequest, services []ServiceRequest) error {
	for _, table := range []string{"inquiry_space_requests", "inquiry_service_requests"} {
		if _, err := r.db.Exec(ctx, `DELETE FROM `+table+` WHERE inquiry_id = $1`, inquiryID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, req := range spaces {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO inquiry_space_requests (inquiry_id, space_type, size_m2) VALUES ($1, $2, $3)`,
			inquiryID, req.SpaceType, req.SizeM2); err != nil {
			return fmt.Errorf("insert space request: %w", err)
		}
	}
	for _, req := range services {
		if _, err := r.db.Exec(ctx,
			`INSERT INTO inquiry_service_requests (inquiry_id, service_id) VALUES ($1, $2)`,
			inquiryID, req.ServiceID); err != nil {
			return fmt.Errorf("insert service request: %w", err)
		}
	}
	return nil
}
