package offers

import (
	"time"

	"github.com/stashspace/stashspace/internal/booking/pricing"
)

// SpaceAllocationRequest is one space line as supplied by the caller.
type SpaceAllocationRequest struct {
	SpaceID         int64   `json:"space_id" validate:"required,gt=0"`
	AllocatedSizeM2 float64 `json:"allocated_size_m2" validate:"gte=0"`
	PricePerM2Cents int64   `json:"price_per_m2_cents" validate:"gte=0"`
	IsManualPrice   bool    `json:"is_manual_price"`
	OfferTotalCents int64   `json:"offer_total_cents" validate:"gte=0"`
	Comments        *string `json:"comments,omitempty"`
}

// ServiceAllocationRequest is one service line as supplied by the caller.
type ServiceAllocationRequest struct {
	ServiceID         int64               `json:"service_id" validate:"required,gt=0"`
	PricingType       pricing.PricingType `json:"pricing_type" validate:"required"`
	Quantity          float64             `json:"quantity" validate:"gte=0"`
	PricePerHourCents *int64              `json:"price_per_hour_cents,omitempty"`
	PricePerUnitCents *int64              `json:"price_per_unit_cents,omitempty"`
	UnitType          *string             `json:"unit_type,omitempty"`
	FixedPriceCents   *int64              `json:"fixed_price_cents,omitempty"`
	Comments          *string             `json:"comments,omitempty"`
}

// CreateOfferRequest creates a new draft offer against an inquiry.
type CreateOfferRequest struct {
	InquiryID          int64                      `json:"inquiry_id" validate:"required,gt=0"`
	TotalCostCents     *int64                     `json:"total_cost_cents,omitempty"`
	ValidUntil         *time.Time                 `json:"valid_until,omitempty"`
	Notes              *string                    `json:"notes,omitempty"`
	SpaceAllocations   []SpaceAllocationRequest   `json:"space_allocations"`
	ServiceAllocations []ServiceAllocationRequest `json:"service_allocations"`
	Terms              []string                   `json:"terms"`
}

// ReplaceOfferRequest replaces the full line-item set of a draft offer.
type ReplaceOfferRequest struct {
	TotalCostCents     *int64                     `json:"total_cost_cents,omitempty"`
	ValidUntil         *time.Time                 `json:"valid_until,omitempty"`
	Notes              *string                    `json:"notes,omitempty"`
	SpaceAllocations   []SpaceAllocationRequest   `json:"space_allocations"`
	ServiceAllocations []ServiceAllocationRequest `json:"service_allocations"`
	Terms              []string                   `json:"terms"`
}

// RespondAction is the trader's decision on a sent offer.
type RespondAction string

const (
	ActionAccept         RespondAction = "accept"
	ActionReject         RespondAction = "reject"
	ActionRequestChanges RespondAction = "request_changes"
)

// RespondRequest carries the trader's response.
type RespondRequest struct {
	Action RespondAction `json:"action" validate:"required,oneof=accept reject request_changes"`
}

func spaceLines(reqs []SpaceAllocationRequest) []pricing.SpaceLine {
	lines := make([]pricing.SpaceLine, 0, len(reqs))
	for _, r := range reqs {
		lines = append(lines, pricing.SpaceLine{
			SpaceID:         r.SpaceID,
			AllocatedSizeM2: r.AllocatedSizeM2,
			PricePerM2Cents: r.PricePerM2Cents,
			IsManualPrice:   r.IsManualPrice,
			OfferTotalCents: r.OfferTotalCents,
		})
	}
	return lines
}

func serviceLines(reqs []ServiceAllocationRequest) []pricing.ServiceLine {
	lines := make([]pricing.ServiceLine, 0, len(reqs))
	for _, r := range reqs {
		unit := ""
		if r.UnitType != nil {
			unit = *r.UnitType
		}
		lines = append(lines, pricing.ServiceLine{
			ServiceID:         r.ServiceID,
			PricingType:       r.PricingType,
			Quantity:          r.Quantity,
			PricePerHourCents: r.PricePerHourCents,
			PricePerUnitCents: r.PricePerUnitCents,
			UnitType:          unit,
			FixedPriceCents:   r.FixedPriceCents,
		})
	}
	return lines
}
