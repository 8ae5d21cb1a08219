package offers

import (
	"time"

	"github.com/stashspace/stashspace/internal/booking/lifecycle"
	"github.com/stashspace/stashspace/internal/booking/pricing"
)

// Offer is an administrator's priced proposal against one inquiry. The header
// and its children are owned exclusively by this package's repository; nothing
// else writes these rows.
type Offer struct {
	ID              int64            `json:"id" db:"id"`
	InquiryID       int64            `json:"inquiry_id" db:"inquiry_id"`
	AdministratorID int64            `json:"administrator_id" db:"administrator_id"`
	TotalCostCents  *int64           `json:"total_cost_cents,omitempty" db:"total_cost_cents"`
	ValidUntil      *time.Time       `json:"valid_until,omitempty" db:"valid_until"`
	Status          lifecycle.Status `json:"status" db:"status"`
	Notes           *string          `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`

	SpaceAllocations   []SpaceAllocation   `json:"space_allocations,omitempty" db:"-"`
	ServiceAllocations []ServiceAllocation `json:"service_allocations,omitempty" db:"-"`
	Terms              []Term              `json:"terms,omitempty" db:"-"`
	Summary            *Summary            `json:"summary,omitempty" db:"-"`
}

// SpaceAllocation is one space line of an offer.
type SpaceAllocation struct {
	ID              int64   `json:"id" db:"id"`
	OfferID         int64   `json:"offer_id" db:"offer_id"`
	SpaceID         int64   `json:"space_id" db:"space_id"`
	AllocatedSizeM2 float64 `json:"allocated_size_m2" db:"allocated_size_m2"`
	PricePerM2Cents int64   `json:"price_per_m2_cents" db:"price_per_m2_cents"`
	IsManualPrice   bool    `json:"is_manual_price" db:"is_manual_price"`
	OfferTotalCents int64   `json:"offer_total_cents" db:"offer_total_cents"`
	Comments        *string `json:"comments,omitempty" db:"comments"`
	LineOrder       int     `json:"line_order" db:"line_order"`
}

// ServiceAllocation is one service line of an offer. Exactly the price field
// matching the pricing type is required, except for ask_quote lines which
// carry no committed price.
type ServiceAllocation struct {
	ID                int64               `json:"id" db:"id"`
	OfferID           int64               `json:"offer_id" db:"offer_id"`
	ServiceID         int64               `json:"service_id" db:"service_id"`
	PricingType       pricing.PricingType `json:"pricing_type" db:"pricing_type"`
	Quantity          float64             `json:"quantity" db:"quantity"`
	PricePerHourCents *int64              `json:"price_per_hour_cents,omitempty" db:"price_per_hour_cents"`
	PricePerUnitCents *int64              `json:"price_per_unit_cents,omitempty" db:"price_per_unit_cents"`
	UnitType          *string             `json:"unit_type,omitempty" db:"unit_type"`
	FixedPriceCents   *int64              `json:"fixed_price_cents,omitempty" db:"fixed_price_cents"`
	OfferTotalCents   int64               `json:"offer_total_cents" db:"offer_total_cents"`
	Comments          *string             `json:"comments,omitempty" db:"comments"`
	LineOrder         int                 `json:"line_order" db:"line_order"`
}

// Term is one free-text contractual term attached to an offer.
type Term struct {
	ID        int64  `json:"id" db:"id"`
	OfferID   int64  `json:"offer_id" db:"offer_id"`
	Text      string `json:"text" db:"text"`
	LineOrder int    `json:"line_order" db:"line_order"`
}

// Summary is the derived offer-scoped aggregate. Quoted is captured from the
// inquiry at offer creation, Calculated is the sum of current line totals,
// Actual is the administrator-chosen headline (null while drafting, mandatory
// before send). It is overwritten whenever allocations are saved and never
// edited independently.
type Summary struct {
	OfferID              int64     `json:"offer_id" db:"offer_id"`
	QuotedEstimateCents  int64     `json:"quoted_estimate_cents" db:"quoted_estimate_cents"`
	CalculatedCents      int64     `json:"calculated_cents" db:"calculated_cents"`
	SpaceTotalCents      int64     `json:"space_total_cents" db:"space_total_cents"`
	ServicesTotalCents   int64     `json:"services_total_cents" db:"services_total_cents"`
	ActualOfferCents     *int64    `json:"actual_offer_cents,omitempty" db:"actual_offer_cents"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// Booking is the confirmed booking record created when a trader accepts an
// offer.
type Booking struct {
	ID             int64     `json:"id" db:"id"`
	OfferID        int64     `json:"offer_id" db:"offer_id"`
	InquiryID      int64     `json:"inquiry_id" db:"inquiry_id"`
	TraderID       int64     `json:"trader_id" db:"trader_id"`
	TotalCostCents int64     `json:"total_cost_cents" db:"total_cost_cents"`
	StartDate      time.Time `json:"start_date" db:"start_date"`
	EndDate        time.Time `json:"end_date" db:"end_date"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// InquirySnapshot is the slice of the owning inquiry the offer operations
// need: ownership, dates, lifecycle position and the requested space set.
type InquirySnapshot struct {
	ID                 int64
	TraderID           int64
	StartDate          time.Time
	EndDate            time.Time
	Status             lifecycle.Status
	EstimatedCostCents int64
	SpaceRequests      []pricing.SpaceRequest
}

// TotalRequestedM2 sums the requested sizes across all space requests.
func (s *InquirySnapshot) TotalRequestedM2() float64 {
	var total float64
	for _, req := range s.SpaceRequests {
		total += req.SizeM2
	}
	return total
}
