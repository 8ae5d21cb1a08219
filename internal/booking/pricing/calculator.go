// Package pricing computes allocation line totals and offer summaries.
// All functions are pure; catalog access goes through the Lookup interface
// so the calculator can be exercised without a database.
package pricing

import (
	"context"
	"math"
	"time"

	"github.com/stashspace/stashspace/internal/shared"
)

// PricingType selects how a service line is priced.
type PricingType string

const (
	PricingHourlyRate PricingType = "hourly_rate"
	PricingPerUnit    PricingType = "per_unit"
	PricingFixed      PricingType = "fixed"
	PricingAskQuote   PricingType = "ask_quote"
)

// Valid reports whether p is a known pricing type.
func (p PricingType) Valid() bool {
	switch p {
	case PricingHourlyRate, PricingPerUnit, PricingFixed, PricingAskQuote:
		return true
	}
	return false
}

// SpaceInfo is the catalog view of a warehouse space.
type SpaceInfo struct {
	ID                  int64
	WarehouseID         int64
	SpaceType           string
	ListPricePerM2Cents int64
}

// ServiceInfo is the catalog view of a storage service.
type ServiceInfo struct {
	ID   int64
	Name string
}

// Lookup resolves catalog references during validation. Implementations
// return shared.ErrNotFound for unknown ids.
type Lookup interface {
	SpaceByID(ctx context.Context, id int64) (*SpaceInfo, error)
	ServiceByID(ctx context.Context, id int64) (*ServiceInfo, error)
	ListPricePerM2(ctx context.Context, spaceType string) (int64, error)
}

// SpaceRequest is one requested space-type/size pair from the inquiry.
type SpaceRequest struct {
	SpaceType string
	SizeM2    float64
}

// SpaceLine is a caller-supplied space allocation.
type SpaceLine struct {
	SpaceID         int64
	AllocatedSizeM2 float64
	PricePerM2Cents int64
	IsManualPrice   bool
	OfferTotalCents int64
	Comments        string
}

// ServiceLine is a caller-supplied service allocation. Price fields are
// pointers: only the field matching the pricing type may be required.
type ServiceLine struct {
	ServiceID         int64
	PricingType       PricingType
	Quantity          float64
	PricePerHourCents *int64
	PricePerUnitCents *int64
	UnitType          string
	FixedPriceCents   *int64
	Comments          string
}

// Breakdown carries the per-line totals and the three summary figures.
type Breakdown struct {
	SpaceTotalsCents []int64
	// SpacePricesCents is the per-m2 price applied to each space line: the
	// catalog list price, or the caller-supplied price for manual lines.
	SpacePricesCents   []int64
	ServiceTotalsCents []int64
	SpaceTotalCents    int64
	ServicesTotalCents int64
	// CalculatedTotalCents = SpaceTotalCents + ServicesTotalCents.
	CalculatedTotalCents int64
	// AllocatedSizeM2 is the sum over all space lines, used by the send
	// precondition against the inquiry's requested size.
	AllocatedSizeM2 float64
}

// DurationDays returns the day count between start and end, inclusive of both
// boundary days. A one-day booking (start == end) counts as 1. The count is
// taken over calendar dates, so a DST-shortened day still counts in full.
func DurationDays(start, end time.Time) (int64, error) {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if e.Before(s) {
		return 0, shared.Validationf("end_date", "must not precede start date")
	}
	return int64(e.Sub(s)/(24*time.Hour)) + 1, nil
}

// SpaceLineTotal computes a single space line total in cents. For manual
// pricing the caller-supplied total is authoritative; otherwise
// size × list price × duration.
func SpaceLineTotal(line SpaceLine, listPricePerM2Cents, durationDays int64) (int64, error) {
	if line.AllocatedSizeM2 < 0 {
		return 0, shared.Validationf("allocated_size_m2", "must be non-negative, got %v", line.AllocatedSizeM2)
	}
	if line.IsManualPrice {
		if line.OfferTotalCents < 0 {
			return 0, shared.Validationf("offer_total_cents", "must be non-negative, got %d", line.OfferTotalCents)
		}
		return line.OfferTotalCents, nil
	}
	if listPricePerM2Cents < 0 {
		return 0, shared.Validationf("price_per_m2_cents", "must be non-negative, got %d", listPricePerM2Cents)
	}
	return int64(math.Round(line.AllocatedSizeM2 * float64(listPricePerM2Cents) * float64(durationDays))), nil
}

// ServiceLineTotal computes a single service line total in cents, branching
// on the pricing mode. ask_quote lines are always valid and contribute zero.
func ServiceLineTotal(line ServiceLine) (int64, error) {
	if !line.PricingType.Valid() {
		return 0, shared.Validationf("pricing_type", "unknown pricing type %q", line.PricingType)
	}
	if line.Quantity < 0 {
		return 0, shared.Validationf("quantity", "must be non-negative, got %v", line.Quantity)
	}
	switch line.PricingType {
	case PricingHourlyRate:
		if line.PricePerHourCents == nil {
			return 0, shared.Validationf("price_per_hour_cents", "required for hourly_rate pricing")
		}
		if *line.PricePerHourCents < 0 {
			return 0, shared.Validationf("price_per_hour_cents", "must be non-negative, got %d", *line.PricePerHourCents)
		}
		return int64(math.Round(line.Quantity * float64(*line.PricePerHourCents))), nil
	case PricingPerUnit:
		if line.PricePerUnitCents == nil {
			return 0, shared.Validationf("price_per_unit_cents", "required for per_unit pricing")
		}
		if *line.PricePerUnitCents < 0 {
			return 0, shared.Validationf("price_per_unit_cents", "must be non-negative, got %d", *line.PricePerUnitCents)
		}
		if line.UnitType == "" {
			return 0, shared.Validationf("unit_type", "required for per_unit pricing")
		}
		return int64(math.Round(line.Quantity * float64(*line.PricePerUnitCents))), nil
	case PricingFixed:
		if line.FixedPriceCents == nil {
			return 0, shared.Validationf("fixed_price_cents", "required for fixed pricing")
		}
		if *line.FixedPriceCents < 0 {
			return 0, shared.Validationf("fixed_price_cents", "must be non-negative, got %d", *line.FixedPriceCents)
		}
		return *line.FixedPriceCents, nil
	default: // PricingAskQuote
		return 0, nil
	}
}

// Compute validates the allocation lists against the inquiry's requests and
// the catalog, and produces per-line totals plus the summary figures.
// Space lines priced from the list use the catalog price, not the
// caller-supplied one.
func Compute(
	ctx context.Context,
	start, end time.Time,
	requested []SpaceRequest,
	spaces []SpaceLine,
	services []ServiceLine,
	catalog Lookup,
) (*Breakdown, error) {
	days, err := DurationDays(start, end)
	if err != nil {
		return nil, err
	}

	requestedTypes := make(map[string]struct{}, len(requested))
	for _, req := range requested {
		requestedTypes[req.SpaceType] = struct{}{}
	}

	bd := &Breakdown{
		SpaceTotalsCents:   make([]int64, 0, len(spaces)),
		SpacePricesCents:   make([]int64, 0, len(spaces)),
		ServiceTotalsCents: make([]int64, 0, len(services)),
	}

	for _, line := range spaces {
		info, err := catalog.SpaceByID(ctx, line.SpaceID)
		if err != nil {
			if shared.IsNotFound(err) {
				return nil, shared.Referentialf("space", line.SpaceID, "does not exist")
			}
			return nil, err
		}
		if _, ok := requestedTypes[info.SpaceType]; !ok {
			return nil, shared.Referentialf("space", line.SpaceID, "type %q was not requested", info.SpaceType)
		}
		total, err := SpaceLineTotal(line, info.ListPricePerM2Cents, days)
		if err != nil {
			return nil, err
		}
		appliedPrice := info.ListPricePerM2Cents
		if line.IsManualPrice {
			appliedPrice = line.PricePerM2Cents
		}
		bd.SpacePricesCents = append(bd.SpacePricesCents, appliedPrice)
		bd.SpaceTotalsCents = append(bd.SpaceTotalsCents, total)
		bd.SpaceTotalCents += total
		bd.AllocatedSizeM2 += line.AllocatedSizeM2
	}

	for _, line := range services {
		if _, err := catalog.ServiceByID(ctx, line.ServiceID); err != nil {
			if shared.IsNotFound(err) {
				return nil, shared.Referentialf("service", line.ServiceID, "does not exist")
			}
			return nil, err
		}
		total, err := ServiceLineTotal(line)
		if err != nil {
			return nil, err
		}
		bd.ServiceTotalsCents = append(bd.ServiceTotalsCents, total)
		bd.ServicesTotalCents += total
	}

	bd.CalculatedTotalCents = bd.SpaceTotalCents + bd.ServicesTotalCents
	return bd, nil
}

// Estimate prices an inquiry's space requests from catalog list prices. It is
// the trader-visible figure shown before any offer exists; services are
// excluded because their rates are offer-time decisions.
func Estimate(ctx context.Context, start, end time.Time, requested []SpaceRequest, catalog Lookup) (int64, error) {
	days, err := DurationDays(start, end)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, req := range requested {
		if req.SizeM2 < 0 {
			return 0, shared.Validationf("size_m2", "must be non-negative, got %v", req.SizeM2)
		}
		price, err := catalog.ListPricePerM2(ctx, req.SpaceType)
		if err != nil {
			if shared.IsNotFound(err) {
				return 0, shared.Validationf("space_type", "no list price for %q", req.SpaceType)
			}
			return 0, err
		}
		total += int64(math.Round(req.SizeM2 * float64(price) * float64(days)))
	}
	return total, nil
}
