package catalog

import "time"

// Space is one rentable unit inside a warehouse.
type Space struct {
	ID                  int64     `json:"id" db:"id"`
	WarehouseID         int64     `json:"warehouse_id" db:"warehouse_id"`
	SpaceType           string    `json:"space_type" db:"space_type"`
	TotalSizeM2         float64   `json:"total_size_m2" db:"total_size_m2"`
	ListPricePerM2Cents int64     `json:"list_price_per_m2_cents" db:"list_price_per_m2_cents"`
	Active              bool      `json:"active" db:"active"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// Service is a bookable storage service (handling, labelling, transport).
type Service struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
