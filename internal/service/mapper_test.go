package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsync/internal/domain"
)

func TestExternalID(t *testing.T) {
	id, err := externalID([]byte(`{"id": 42, "name": "Maple Court"}`))
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	id, err = externalID([]byte(`{"id": "A-17"}`))
	require.NoError(t, err)
	assert.Equal(t, "A-17", id)

	_, err = externalID([]byte(`{"name": "no id here"}`))
	assert.Error(t, err)

	_, err = externalID([]byte(`not json`))
	assert.Error(t, err)
}

func TestMapProperty(t *testing.T) {
	raw := []byte(`{
		"id": 101,
		"name": "Maple Court",
		"address_line1": "12 Maple St",
		"city": "Springfield",
		"state": "IL",
		"postal_code": "62704",
		"updated_at": "2026-03-01T12:00:00Z"
	}`)

	property, err := mapProperty(7, raw)
	require.NoError(t, err)

	assert.Equal(t, int64(7), property.ConnectionID)
	assert.Equal(t, "101", property.ExternalID)
	assert.Equal(t, "Maple Court", property.Name)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), property.RemoteUpdatedAt)

	_, err = mapProperty(7, []byte(`{"id": 102}`))
	assert.ErrorContains(t, err, "has no name")
}

func TestMapUnit_StatusVocabulary(t *testing.T) {
	cases := []struct {
		remote string
		want   domain.UnitStatus
	}{
		{"occupied", domain.UnitStatusOccupied},
		{"available", domain.UnitStatusVacant},
		{"maintenance", domain.UnitStatusNotReady},
	}

	for _, tc := range cases {
		raw := []byte(`{
			"id": 5, "property_id": 101, "unit_number": "2B",
			"bedrooms": 2, "bathrooms": 1.5, "status": "` + tc.remote + `",
			"market_rent": 1250.50, "updated_at": "2026-03-01T12:00:00Z"
		}`)

		unit, propertyExtID, err := mapUnit(7, raw)
		require.NoError(t, err, tc.remote)
		assert.Equal(t, tc.want, unit.Status)
		assert.Equal(t, "101", propertyExtID)
		assert.Equal(t, int64(125050), unit.MarketRentCents)
	}

	_, _, err := mapUnit(7, []byte(`{"id": 5, "property_id": 101, "status": "demolished"}`))
	assert.ErrorContains(t, err, "unknown status")

	_, _, err = mapUnit(7, []byte(`{"id": 5, "status": "occupied"}`))
	assert.ErrorContains(t, err, "has no property_id")
}

func TestMapLease_OpenEnded(t *testing.T) {
	raw := []byte(`{
		"id": 9, "unit_id": 5, "tenant_name": "Jordan Blake",
		"status": "active", "start_date": "2025-09-01", "end_date": null,
		"rent": 1200, "updated_at": "2026-03-01T12:00:00Z"
	}`)

	lease, unitExtID, err := mapLease(7, raw)
	require.NoError(t, err)

	assert.Equal(t, "5", unitExtID)
	assert.Equal(t, domain.LeaseStatusActive, lease.Status)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), lease.StartsOn)
	assert.Nil(t, lease.EndsOn)
	assert.Equal(t, int64(120000), lease.RentCents)
}

func TestMapLease_StatusVocabulary(t *testing.T) {
	cases := []struct {
		remote string
		want   domain.LeaseStatus
	}{
		{"active", domain.LeaseStatusActive},
		{"future", domain.LeaseStatusUpcoming},
		{"past", domain.LeaseStatusExpired},
	}

	for _, tc := range cases {
		raw := []byte(`{
			"id": 9, "unit_id": 5, "status": "` + tc.remote + `",
			"start_date": "2025-09-01", "end_date": "2026-08-31",
			"rent": 1200, "updated_at": "2026-03-01T12:00:00Z"
		}`)

		lease, _, err := mapLease(7, raw)
		require.NoError(t, err, tc.remote)
		assert.Equal(t, tc.want, lease.Status)
		require.NotNil(t, lease.EndsOn)
	}
}

func TestMapWorkOrder_OptionalUnit(t *testing.T) {
	withUnit := []byte(`{
		"id": 33, "property_id": 101, "unit_id": 5,
		"subject": "Leaking faucet", "details": "Kitchen sink",
		"status": "new", "priority": "high", "updated_at": "2026-03-01T12:00:00Z"
	}`)

	workOrder, propertyExtID, unitExtID, err := mapWorkOrder(7, withUnit)
	require.NoError(t, err)
	assert.Equal(t, "101", propertyExtID)
	assert.Equal(t, "5", unitExtID)
	assert.Equal(t, domain.WorkOrderStatusOpen, workOrder.Status)
	assert.Equal(t, "Leaking faucet", workOrder.Title)

	withoutUnit := []byte(`{
		"id": 34, "property_id": 101,
		"subject": "Roof inspection", "status": "completed",
		"priority": "low", "updated_at": "2026-03-01T12:00:00Z"
	}`)

	workOrder, propertyExtID, unitExtID, err = mapWorkOrder(7, withoutUnit)
	require.NoError(t, err)
	assert.Equal(t, "101", propertyExtID)
	assert.Empty(t, unitExtID)
	assert.Equal(t, domain.WorkOrderStatusClosed, workOrder.Status)
}

func TestMapExpense_GLAccountAliases(t *testing.T) {
	for _, alias := range []string{"gl_account", "glAccountNumber", "account_number", "accountNo"} {
		raw := []byte(`{
			"id": 55, "property_id": 101, "amount": 249.99,
			"memo": "Plumbing repair", "date": "2026-02-15",
			"updated_at": "2026-03-01T12:00:00Z",
			"` + alias + `": "6200"
		}`)

		expense, propertyExtID, err := mapExpense(7, raw)
		require.NoError(t, err, alias)
		assert.Equal(t, "6200", expense.GLAccount)
		assert.Equal(t, "101", propertyExtID)
		assert.Equal(t, int64(24999), expense.AmountCents)
		assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), expense.IncurredOn)
	}

	_, _, err := mapExpense(7, []byte(`{
		"id": 56, "property_id": 101, "amount": 10,
		"date": "2026-02-15", "updated_at": "2026-03-01T12:00:00Z"
	}`))
	assert.ErrorContains(t, err, "no GL account")
}

func TestDollarsToCents_Rounds(t *testing.T) {
	assert.Equal(t, int64(125050), dollarsToCents(1250.50))
	assert.Equal(t, int64(1), dollarsToCents(0.005))
	assert.Equal(t, int64(1999), dollarsToCents(19.99))
	assert.Equal(t, int64(0), dollarsToCents(0))
}
