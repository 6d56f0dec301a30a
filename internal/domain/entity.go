package domain

import "time"

type UnitStatus string

const (
	UnitStatusOccupied UnitStatus = "occupied"
	UnitStatusVacant   UnitStatus = "vacant"
	UnitStatusNotReady UnitStatus = "not_ready"
)

type WorkOrderStatus string

const (
	WorkOrderStatusOpen       WorkOrderStatus = "open"
	WorkOrderStatusInProgress WorkOrderStatus = "in_progress"
	WorkOrderStatusClosed     WorkOrderStatus = "closed"
	WorkOrderStatusCancelled  WorkOrderStatus = "cancelled"
)

type LeaseStatus string

const (
	LeaseStatusActive   LeaseStatus = "active"
	LeaseStatusUpcoming LeaseStatus = "upcoming"
	LeaseStatusExpired  LeaseStatus = "expired"
)

// Property is a synchronized remote property. Ingestion owns the columns
// below; local-only columns (e.g. notes) are never touched by the upsert.
type Property struct {
	ID              int64     `db:"id"`
	ConnectionID    int64     `db:"connection_id"`
	ExternalID      string    `db:"external_id"`
	Name            string    `db:"name"`
	AddressLine1    string    `db:"address_line1"`
	City            string    `db:"city"`
	State           string    `db:"state"`
	PostalCode      string    `db:"postal_code"`
	RemoteUpdatedAt time.Time `db:"remote_updated_at"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type Unit struct {
	ID              int64      `db:"id"`
	ConnectionID    int64      `db:"connection_id"`
	ExternalID      string     `db:"external_id"`
	PropertyID      int64      `db:"property_id"`
	UnitNumber      string     `db:"unit_number"`
	Bedrooms        int        `db:"bedrooms"`
	Bathrooms       float64    `db:"bathrooms"`
	Status          UnitStatus `db:"status"`
	MarketRentCents int64      `db:"market_rent_cents"`
	RemoteUpdatedAt time.Time  `db:"remote_updated_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

type Lease struct {
	ID              int64       `db:"id"`
	ConnectionID    int64       `db:"connection_id"`
	ExternalID      string      `db:"external_id"`
	UnitID          int64       `db:"unit_id"`
	TenantName      string      `db:"tenant_name"`
	Status          LeaseStatus `db:"status"`
	StartsOn        time.Time   `db:"starts_on"`
	EndsOn          *time.Time  `db:"ends_on"`
	RentCents       int64       `db:"rent_cents"`
	RemoteUpdatedAt time.Time   `db:"remote_updated_at"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

type WorkOrder struct {
	ID              int64           `db:"id"`
	ConnectionID    int64           `db:"connection_id"`
	ExternalID      string          `db:"external_id"`
	PropertyID      int64           `db:"property_id"`
	UnitID          *int64          `db:"unit_id"`
	Title           string          `db:"title"`
	Description     string          `db:"description"`
	Status          WorkOrderStatus `db:"status"`
	Priority        string          `db:"priority"`
	RemoteUpdatedAt time.Time       `db:"remote_updated_at"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

type Expense struct {
	ID              int64     `db:"id"`
	ConnectionID    int64     `db:"connection_id"`
	ExternalID      string    `db:"external_id"`
	PropertyID      int64     `db:"property_id"`
	GLAccount       string    `db:"gl_account"`
	AmountCents     int64     `db:"amount_cents"`
	Memo            string    `db:"memo"`
	IncurredOn      time.Time `db:"incurred_on"`
	RemoteUpdatedAt time.Time `db:"remote_updated_at"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}
