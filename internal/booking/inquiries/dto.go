package inquiries

import (
	"time"

	"github.com/stashspace/stashspace/internal/booking/pricing"
)

// SpaceRequestInput is one requested space-type/size pair as supplied by the
// trader.
type SpaceRequestInput struct {
	SpaceType string  `json:"space_type" validate:"required"`
	SizeM2    float64 `json:"size_m2" validate:"gt=0"`
}

// CreateInquiryRequest opens a new draft inquiry.
type CreateInquiryRequest struct {
	StartDate     time.Time           `json:"start_date" validate:"required"`
	EndDate       time.Time           `json:"end_date" validate:"required"`
	Notes         *string             `json:"notes,omitempty"`
	SpaceRequests []SpaceRequestInput `json:"space_requests" validate:"required,min=1,dive"`
	ServiceIDs    []int64             `json:"service_ids" validate:"dive,gt=0"`
}

// UpdateInquiryRequest replaces the mutable fields of a draft inquiry.
type UpdateInquiryRequest struct {
	StartDate     time.Time           `json:"start_date" validate:"required"`
	EndDate       time.Time           `json:"end_date" validate:"required"`
	Notes         *string             `json:"notes,omitempty"`
	SpaceRequests []SpaceRequestInput `json:"space_requests" validate:"required,min=1,dive"`
	ServiceIDs    []int64             `json:"service_ids" validate:"dive,gt=0"`
}

// EstimateRequest asks for a list-price estimate without creating anything.
type EstimateRequest struct {
	StartDate     time.Time           `json:"start_date" validate:"required"`
	EndDate       time.Time           `json:"end_date" validate:"required"`
	SpaceRequests []SpaceRequestInput `json:"space_requests" validate:"required,min=1,dive"`
}

// EstimateResponse is the list-price estimate for the requested spaces.
type EstimateResponse struct {
	EstimatedCostCents int64 `json:"estimated_cost_cents"`
	DurationDays       int64 `json:"duration_days"`
}

func pricingRequests(inputs []SpaceRequestInput) []pricing.SpaceRequest {
	reqs := make([]pricing.SpaceRequest, 0, len(inputs))
	for _, in := range inputs {
		reqs = append(reqs, pricing.SpaceRequest{SpaceType: in.SpaceType, SizeM2: in.SizeM2})
	}
	return reqs
}
