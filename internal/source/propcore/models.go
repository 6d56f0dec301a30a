package propcore

import "encoding/json"

// Page is the envelope every PropCore list endpoint returns. Items are kept
// as raw JSON so callers can persist the payload before mapping it.
type Page struct {
	Data       []json.RawMessage `json:"data"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	TotalPages int               `json:"total_pages"`
}

// HasMore reports whether pages remain after this one.
func (p *Page) HasMore() bool {
	return p.Page < p.TotalPages
}

type RemoteProperty struct {
	ID           json.Number `json:"id"`
	Name         string      `json:"name"`
	AddressLine1 string      `json:"address_line1"`
	City         string      `json:"city"`
	State        string      `json:"state"`
	PostalCode   string      `json:"postal_code"`
	UpdatedAt    string      `json:"updated_at"`
}

type RemoteUnit struct {
	ID         json.Number `json:"id"`
	PropertyID json.Number `json:"property_id"`
	UnitNumber string      `json:"unit_number"`
	Bedrooms   int         `json:"bedrooms"`
	Bathrooms  float64     `json:"bathrooms"`
	// Status uses PropCore vocabulary: occupied, available, maintenance.
	Status     string  `json:"status"`
	MarketRent float64 `json:"market_rent"`
	UpdatedAt  string  `json:"updated_at"`
}

type RemoteLease struct {
	ID         json.Number `json:"id"`
	UnitID     json.Number `json:"unit_id"`
	TenantName string      `json:"tenant_name"`
	// Status uses PropCore vocabulary: active, future, past.
	Status    string  `json:"status"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date"`
	Rent      float64 `json:"rent"`
	UpdatedAt string  `json:"updated_at"`
}

type RemoteWorkOrder struct {
	ID         json.Number  `json:"id"`
	PropertyID json.Number  `json:"property_id"`
	UnitID     *json.Number `json:"unit_id"`
	Subject    string       `json:"subject"`
	Details    string       `json:"details"`
	// Status uses PropCore vocabulary: new, in_progress, completed, cancelled.
	Status    string `json:"status"`
	Priority  string `json:"priority"`
	UpdatedAt string `json:"updated_at"`
}

type RemoteExpense struct {
	ID         json.Number `json:"id"`
	PropertyID json.Number `json:"property_id"`
	Amount     float64     `json:"amount"`
	Memo       string      `json:"memo"`
	Date       string      `json:"date"`
	UpdatedAt  string      `json:"updated_at"`
	// The GL account number arrives under one of several key names depending
	// on the remote account's configuration; see GLAccountAliases.
}
