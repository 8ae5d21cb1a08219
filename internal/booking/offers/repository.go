package offers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stashspace/stashspace/internal/booking/lifecycle"
	"github.com/stashspace/stashspace/internal/booking/pricing"
	"github.com/stashspace/stashspace/internal/platform/db"
	"github.com/stashspace/stashspace/internal/shared"
)

// Repository owns all persisted offer state: header, allocation rows, terms,
// the derived summary, and the booking record. Header + children + summary
// for one logical operation always commit as a single transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	Get(ctx context.Context, id int64) (*Offer, error)
	// LockHeader reads the offer header under a row-level write lock, serializing
	// concurrent replace/send operations on the same offer.
	LockHeader(ctx context.Context, id int64) (*Offer, error)
	InquirySnapshot(ctx context.Context, inquiryID int64) (*InquirySnapshot, error)

	Insert(ctx context.Context, offer Offer) (int64, error)
	UpdateHeader(ctx context.Context, id int64, updates map[string]interface{}) error
	UpdateStatus(ctx context.Context, id int64, status lifecycle.Status, validUntil *time.Time, clearValidUntil bool) error
	UpdateInquiryStatus(ctx context.Context, inquiryID int64, status lifecycle.Status) error

	InsertSpaceAllocation(ctx context.Context, alloc SpaceAllocation) (int64, error)
	InsertServiceAllocation(ctx context.Context, alloc ServiceAllocation) (int64, error)
	InsertTerm(ctx context.Context, term Term) (int64, error)
	DeleteLines(ctx context.Context, offerID int64) error
	UpsertSummary(ctx context.Context, summary Summary) error

	InsertBooking(ctx context.Context, booking Booking) (int64, error)
	ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]int64, error)
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

const offerColumns = `id, inquiry_id, administrator_id, total_cost_cents, valid_until, status, notes, created_at, updated_at`

func (r *repository) scanOffer(row pgx.Row) (*Offer, error) {
	var o Offer
	err := row.Scan(&o.ID, &o.InquiryID, &o.AdministratorID, &o.TotalCostCents,
		&o.ValidUntil, &o.Status, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Offer, error) {
	o, err := r.scanOffer(r.db.QueryRow(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) LockHeader(ctx context.Context, id int64) (*Offer, error) {
	return r.scanOffer(r.db.QueryRow(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE id = $1 FOR UPDATE`, id))
}

func (r *repository) loadChildren(ctx context.Context, o *Offer) error {
	rows, err := r.db.Query(ctx, `SELECT id, offer_id, space_id, allocated_size_m2, price_per_m2_cents,
is_manual_price, offer_total_cents, comments, line_order
FROM offer_space_allocations WHERE offer_id = $1 ORDER BY line_order, id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a SpaceAllocation
		if err := rows.Scan(&a.ID, &a.OfferID, &a.SpaceID, &a.AllocatedSizeM2, &a.PricePerM2Cents,
			&a.IsManualPrice, &a.OfferTotalCents, &a.Comments, &a.LineOrder); err != nil {
			return err
		}
		o.SpaceAllocations = append(o.SpaceAllocations, a)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	svcRows, err := r.db.Query(ctx, `SELECT id, offer_id, service_id, pricing_type, quantity,
price_per_hour_cents, price_per_unit_cents, unit_type, fixed_price_cents, offer_total_cents, comments, line_order
FROM offer_service_allocations WHERE offer_id = $1 ORDER BY line_order, id`, o.ID)
	if err != nil {
		return err
	}
	defer svcRows.Close()
	for svcRows.Next() {
		var a ServiceAllocation
		if err := svcRows.Scan(&a.ID, &a.OfferID, &a.ServiceID, &a.PricingType, &a.Quantity,
			&a.PricePerHourCents, &a.PricePerUnitCents, &a.UnitType, &a.FixedPriceCents,
			&a.OfferTotalCents, &a.Comments, &a.LineOrder); err != nil {
			return err
		}
		o.ServiceAllocations = append(o.ServiceAllocations, a)
	}
	if err := svcRows.Err(); err != nil {
		return err
	}

	termRows, err := r.db.Query(ctx, `SELECT id, offer_id, text, line_order
FROM offer_terms WHERE offer_id = $1 ORDER BY line_order, id`, o.ID)
	if err != nil {
		return err
	}
	defer termRows.Close()
	for termRows.Next() {
		var t Term
		if err := termRows.Scan(&t.ID, &t.OfferID, &t.Text, &t.LineOrder); err != nil {
			return err
		}
		o.Terms = append(o.Terms, t)
	}
	if err := termRows.Err(); err != nil {
		return err
	}

	var s Summary
	err = r.db.QueryRow(ctx, `SELECT offer_id, quoted_estimate_cents, calculated_cents,
space_total_cents, services_total_cents, actual_offer_cents, updated_at
FROM offer_summaries WHERE offer_id = $1`, o.ID).
		Scan(&s.OfferID, &s.QuotedEstimateCents, &s.CalculatedCents,
			&s.SpaceTotalCents, &s.ServicesTotalCents, &s.ActualOfferCents, &s.UpdatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if err == nil {
		o.Summary = &s
	}
	return nil
}

func (r *repository) InquirySnapshot(ctx context.Context, inquiryID int64) (*InquirySnapshot, error) {
	var snap InquirySnapshot
	err := r.db.QueryRow(ctx, `SELECT id, trader_id, start_date, end_date, status, estimated_cost_cents
FROM inquiries WHERE id = $1`, inquiryID).
		Scan(&snap.ID, &snap.TraderID, &snap.StartDate, &snap.EndDate, &snap.Status, &snap.EstimatedCostCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT space_type, size_m2 FROM inquiry_space_requests
WHERE inquiry_id = $1 ORDER BY id`, inquiryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var req pricing.SpaceRequest
		if err := rows.Scan(&req.SpaceType, &req.SizeM2); err != nil {
			return nil, err
		}
		snap.SpaceRequests = append(snap.SpaceRequests, req)
	}
	return &snap, rows.Err()
}

func (r *repository) Insert(ctx context.Context, offer Offer) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO offers
(inquiry_id, administrator_id, total_cost_cents, valid_until, status, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING id`,
		offer.InquiryID, offer.AdministratorID, offer.TotalCostCents, offer.ValidUntil,
		offer.Status, offer.Notes).Scan(&id)
	return id, err
}

func (r *repository) UpdateHeader(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	var setClauses []string
	var args []interface{}
	argPos := 1
	for field, value := range updates {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, argPos))
		args = append(args, value)
		argPos++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE offers SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), argPos)
	cmdTag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status lifecycle.Status, validUntil *time.Time, clearValidUntil bool) error {
	updates := map[string]interface{}{"status": status}
	if validUntil != nil {
		updates["valid_until"] = *validUntil
	}
	if clearValidUntil {
		updates["valid_until"] = nil
	}
	return r.UpdateHeader(ctx, id, updates)
}

func (r *repository) UpdateInquiryStatus(ctx context.Context, inquiryID int64, status lifecycle.Status) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE inquiries SET status = $1, updated_at = NOW() WHERE id = $2`, status, inquiryID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) InsertSpaceAllocation(ctx context.Context, alloc SpaceAllocation) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO offer_space_allocations
(offer_id, space_id, allocated_size_m2, price_per_m2_cents, is_manual_price, offer_total_cents, comments, line_order)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		alloc.OfferID, alloc.SpaceID, alloc.AllocatedSizeM2, alloc.PricePerM2Cents,
		alloc.IsManualPrice, alloc.OfferTotalCents, alloc.Comments, alloc.LineOrder).Scan(&id)
	return id, err
}

func (r *repository) InsertServiceAllocation(ctx context.Context, alloc ServiceAllocation) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO offer_service_allocations
(offer_id, service_id, pricing_type, quantity, price_per_hour_cents, price_per_unit_cents, unit_type, fixed_price_cents, offer_total_cents, comments, line_order)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		alloc.OfferID, alloc.ServiceID, alloc.PricingType, alloc.Quantity,
		alloc.PricePerHourCents, alloc.PricePerUnitCents, alloc.UnitType, alloc.FixedPriceCents,
		alloc.OfferTotalCents, alloc.Comments, alloc.LineOrder).Scan(&id)
	return id, err
}

func (r *repository) InsertTerm(ctx context.Context, term Term) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO offer_terms (offer_id, text, line_order)
VALUES ($1, $2, $3) RETURNING id`, term.OfferID, term.Text, term.LineOrder).Scan(&id)
	return id, err
}

func (r *repository) DeleteLines(ctx context.Context, offerID int64) error {
	for _, table := range []string{"offer_space_allocations", "offer_service_allocations", "offer_terms"} {
		if _, err := r.db.Exec(ctx, `DELETE FROM `+table+` WHERE offer_id = $1`, offerID); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) UpsertSummary(ctx context.Context, summary Summary) error {
	_, err := r.db.Exec(ctx, `INSERT INTO offer_summaries
(offer_id, quoted_estimate_cents, calculated_cents, space_total_cents, services_total_cents, actual_offer_cents, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
ON CONFLICT (offer_id) DO UPDATE SET
quoted_estimate_cents = EXCLUDED.quoted_estimate_cents,
calculated_cents = EXCLUDED.calculated_cents,
space_total_cents = EXCLUDED.space_total_cents,
services_total_cents = EXCLUDED.services_total_cents,
actual_offer_cents = EXCLUDED.actual_offer_cents,
updated_at = NOW()`,
		summary.OfferID, summary.QuotedEstimateCents, summary.CalculatedCents,
		summary.SpaceTotalCents, summary.ServicesTotalCents, summary.ActualOfferCents)
	return err
}

func (r *repository) InsertBooking(ctx context.Context, booking Booking) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO bookings
(offer_id, inquiry_id, trader_id, total_cost_cents, start_date, end_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id`,
		booking.OfferID, booking.InquiryID, booking.TraderID, booking.TotalCostCents,
		booking.StartDate, booking.EndDate).Scan(&id)
	return id, err
}

func (r *repository) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM offers
WHERE status = $1 AND valid_until IS NOT NULL AND valid_until < $2
ORDER BY valid_until LIMIT $3`, lifecycle.StatusOfferSent, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
