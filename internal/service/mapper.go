package service

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"propsync/internal/domain"
	"propsync/internal/source/propcore"
)

// Vocabulary translation between PropCore statuses and the internal schema.

var unitStatusMap = map[string]domain.UnitStatus{
	"occupied":    domain.UnitStatusOccupied,
	"available":   domain.UnitStatusVacant,
	"maintenance": domain.UnitStatusNotReady,
}

var leaseStatusMap = map[string]domain.LeaseStatus{
	"active": domain.LeaseStatusActive,
	"future": domain.LeaseStatusUpcoming,
	"past":   domain.LeaseStatusExpired,
}

var workOrderStatusMap = map[string]domain.WorkOrderStatus{
	"new":         domain.WorkOrderStatusOpen,
	"in_progress": domain.WorkOrderStatusInProgress,
	"completed":   domain.WorkOrderStatusClosed,
	"cancelled":   domain.WorkOrderStatusCancelled,
}

// externalID pulls the remote identifier out of a raw record without
// committing to the record's shape.
func externalID(raw json.RawMessage) (string, error) {
	var probe struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", fmt.Errorf("decode record: %w", err)
	}
	if probe.ID.String() == "" {
		return "", fmt.Errorf("record has no id field")
	}
	return probe.ID.String(), nil
}

func parseRemoteTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func parseRemoteDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

func dollarsToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func mapProperty(connectionID int64, raw json.RawMessage) (*domain.Property, error) {
	var remote propcore.RemoteProperty
	if err := json.Unmarshal(raw, &remote); err != nil {
		return nil, fmt.Errorf("decode property: %w", err)
	}
	if remote.Name == "" {
		return nil, fmt.Errorf("property %s has no name", remote.ID)
	}

	updatedAt, err := parseRemoteTimestamp(remote.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &domain.Property{
		ConnectionID:    connectionID,
		ExternalID:      remote.ID.String(),
		Name:            remote.Name,
		AddressLine1:    remote.AddressLine1,
		City:            remote.City,
		State:           remote.State,
		PostalCode:      remote.PostalCode,
		RemoteUpdatedAt: updatedAt,
	}, nil
}

// mapUnit returns the mapped unit and the external id of its owning
// property; the caller resolves the reference.
func mapUnit(connectionID int64, raw json.RawMessage) (*domain.Unit, string, error) {
	var remote propcore.RemoteUnit
	if err := json.Unmarshal(raw, &remote); err != nil {
		return nil, "", fmt.Errorf("decode unit: %w", err)
	}
	if remote.PropertyID.String() == "" {
		return nil, "", fmt.Errorf("unit %s has no property_id", remote.ID)
	}

	status, ok := unitStatusMap[remote.Status]
	if !ok {
		return nil, "", fmt.Errorf("unit %s has unknown status %q", remote.ID, remote.Status)
	}

	updatedAt, err := parseRemoteTimestamp(remote.UpdatedAt)
	if err != nil {
		return nil, "", err
	}

	return &domain.Unit{
		ConnectionID:    connectionID,
		ExternalID:      remote.ID.String(),
		UnitNumber:      remote.UnitNumber,
		Bedrooms:        remote.Bedrooms,
		Bathrooms:       remote.Bathrooms,
		Status:          status,
		MarketRentCents: dollarsToCents(remote.MarketRent),
		RemoteUpdatedAt: updatedAt,
	}, remote.PropertyID.String(), nil
}

func mapLease(connectionID int64, raw json.RawMessage) (*domain.Lease, string, error) {
	var remote propcore.RemoteLease
	if err := json.Unmarshal(raw, &remote); err != nil {
		return nil, "", fmt.Errorf("decode lease: %w", err)
	}
	if remote.UnitID.String() == "" {
		return nil, "", fmt.Errorf("lease %s has no unit_id", remote.ID)
	}

	status, ok := leaseStatusMap[remote.Status]
	if !ok {
		return nil, "", fmt.Errorf("lease %s has unknown status %q", remote.ID, remote.Status)
	}

	startsOn, err := parseRemoteDate(remote.StartDate)
	if err != nil {
		return nil, "", err
	}

	var endsOn *time.Time
	if remote.EndDate != nil && *remote.EndDate != "" {
		parsed, err := parseRemoteDate(*remote.EndDate)
		if err != nil {
			return nil, "", err
		}
		endsOn = &parsed
	}

	updatedAt, err := parseRemoteTimestamp(remote.UpdatedAt)
	if err != nil {
		return nil, "", err
	}

	return &domain.Lease{
		ConnectionID:    connectionID,
		ExternalID:      remote.ID.String(),
		TenantName:      remote.TenantName,
		Status:          status,
		StartsOn:        startsOn,
		EndsOn:          endsOn,
		RentCents:       dollarsToCents(remote.Rent),
		RemoteUpdatedAt: updatedAt,
	}, remote.UnitID.String(), nil
}

// mapWorkOrder returns the property external id and, when present, the unit
// external id alongside the mapped record.
func mapWorkOrder(connectionID int64, raw json.RawMessage) (*domain.WorkOrder, string, string, error) {
	var remote propcore.RemoteWorkOrder
	if err := json.Unmarshal(raw, &remote); err != nil {
		return nil, "", "", fmt.Errorf("decode work order: %w", err)
	}
	if remote.PropertyID.String() == "" {
		return nil, "", "", fmt.Errorf("work order %s has no property_id", remote.ID)
	}

	status, ok := workOrderStatusMap[remote.Status]
	if !ok {
		return nil, "", "", fmt.Errorf("work order %s has unknown status %q", remote.ID, remote.Status)
	}

	updatedAt, err := parseRemoteTimestamp(remote.UpdatedAt)
	if err != nil {
		return nil, "", "", err
	}

	var unitExternalID string
	if remote.UnitID != nil {
		unitExternalID = remote.UnitID.String()
	}

	return &domain.WorkOrder{
		ConnectionID:    connectionID,
		ExternalID:      remote.ID.String(),
		Title:           remote.Subject,
		Description:     remote.Details,
		Status:          status,
		Priority:        remote.Priority,
		RemoteUpdatedAt: updatedAt,
	}, remote.PropertyID.String(), unitExternalID, nil
}

func mapExpense(connectionID int64, raw json.RawMessage) (*domain.Expense, string, error) {
	var remote propcore.RemoteExpense
	if err := json.Unmarshal(raw, &remote); err != nil {
		return nil, "", fmt.Errorf("decode expense: %w", err)
	}
	if remote.PropertyID.String() == "" {
		return nil, "", fmt.Errorf("expense %s has no property_id", remote.ID)
	}

	glAccount, ok := propcore.ResolveGLAccount(raw)
	if !ok {
		return nil, "", fmt.Errorf("expense %s has no GL account field", remote.ID)
	}

	incurredOn, err := parseRemoteDate(remote.Date)
	if err != nil {
		return nil, "", err
	}

	updatedAt, err := parseRemoteTimestamp(remote.UpdatedAt)
	if err != nil {
		return nil, "", err
	}

	return &domain.Expense{
		ConnectionID:    connectionID,
		ExternalID:      remote.ID.String(),
		GLAccount:       glAccount,
		AmountCents:     dollarsToCents(remote.Amount),
		Memo:            remote.Memo,
		IncurredOn:      incurredOn,
		RemoteUpdatedAt: updatedAt,
	}, remote.PropertyID.String(), nil
}
