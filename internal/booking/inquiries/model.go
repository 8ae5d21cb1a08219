package inquiries

import (
	"time"

	"github.com/stashspace/stashspace/internal/booking/lifecycle"
)

// Inquiry is a trader's request for warehouse space and services over a date
// range. Inquiries are never hard-deleted; the lifecycle ends in a terminal
// status instead.
type Inquiry struct {
	ID                 int64            `json:"id" db:"id"`
	TraderID           int64            `json:"trader_id" db:"trader_id"`
	StartDate          time.Time        `json:"start_date" db:"start_date"`
	EndDate            time.Time        `json:"end_date" db:"end_date"`
	Notes              *string          `json:"notes,omitempty" db:"notes"`
	EstimatedCostCents int64            `json:"estimated_cost_cents" db:"estimated_cost_cents"`
	Status             lifecycle.Status `json:"status" db:"status"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at" db:"updated_at"`

	SpaceRequests   []SpaceRequest   `json:"space_requests,omitempty" db:"-"`
	ServiceRequests []ServiceRequest `json:"service_requests,omitempty" db:"-"`
}

// SpaceRequest is one requested space-type/size pair on an inquiry.
type SpaceRequest struct {
	ID        int64   `json:"id" db:"id"`
	InquiryID int64   `json:"inquiry_id" db:"inquiry_id"`
	SpaceType string  `json:"space_type" db:"space_type"`
	SizeM2    float64 `json:"size_m2" db:"size_m2"`
}

// ServiceRequest is one requested service reference on an inquiry.
type ServiceRequest struct {
	ID        int64 `json:"id" db:"id"`
	InquiryID int64 `json:"inquiry_id" db:"inquiry_id"`
	ServiceID int64 `json:"service_id" db:"service_id"`
}

// Filter narrows inquiry listings.
type Filter struct {
	TraderID *int64
	Status   *lifecycle.Status
	Limit    int
	Offset   int
}
