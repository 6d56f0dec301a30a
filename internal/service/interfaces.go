package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"propsync/internal/domain"
	"propsync/internal/source/propcore"
)

// RemoteClient is the PropCore API surface the orchestrator consumes.
type RemoteClient interface {
	IsConfigured() bool
	TestConnection(ctx context.Context) bool
	FetchPage(ctx context.Context, resource domain.ResourceType, page int, modifiedSince *time.Time) (*propcore.Page, error)
}

type SyncRunStore interface {
	// Create persists a pending run. It returns domain.ErrRunAlreadyActive
	// when the connection already has a pending or running run.
	Create(ctx context.Context, run *domain.SyncRun) error
	// Start transitions a pending run to running. It fails if the run was
	// already started.
	Start(ctx context.Context, runID string, at time.Time) error
	Finalize(ctx context.Context, run *domain.SyncRun) error
	LastCompletedAt(ctx context.Context, connectionID int64) (*time.Time, error)
}

type RawEventStore interface {
	Append(ctx context.Context, event *domain.RawEvent) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Entity stores upsert by (connection id, external id). Upsert reports
// whether the row was created. IDByExternalID returns 0 when no row exists.

type PropertyStore interface {
	Upsert(ctx context.Context, property *domain.Property) (int64, bool, error)
	IDByExternalID(ctx context.Context, connectionID int64, externalID string) (int64, error)
}

type UnitStore interface {
	Upsert(ctx context.Context, unit *domain.Unit) (int64, bool, error)
	IDByExternalID(ctx context.Context, connectionID int64, externalID string) (int64, error)
}

type LeaseStore interface {
	Upsert(ctx context.Context, lease *domain.Lease) (int64, bool, error)
}

type WorkOrderStore interface {
	Upsert(ctx context.Context, workOrder *domain.WorkOrder) (int64, bool, error)
}

type ExpenseStore interface {
	Upsert(ctx context.Context, expense *domain.Expense) (int64, bool, error)
}

type AlertStore interface {
	GetByConnection(ctx context.Context, connectionID int64) (*domain.SyncFailureAlert, error)
	// ResetFailures zeroes the consecutive-failure counter, creating the
	// alert row if absent. Acknowledgment state is left untouched.
	ResetFailures(ctx context.Context, connectionID int64) error
	// RecordFailure increments the counter, appends a bounded failure
	// detail and clears any prior acknowledgment, returning the updated row.
	RecordFailure(ctx context.Context, connectionID int64, detail domain.FailureDetail) (*domain.SyncFailureAlert, error)
	MarkAlertSent(ctx context.Context, connectionID int64, at time.Time) error
	Acknowledge(ctx context.Context, alertID int64, user string, at time.Time) error
}

type Notifier interface {
	NotifyFailure(ctx context.Context, alert *domain.SyncFailureAlert, run *domain.SyncRun) error
	Close() error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CompletionHandler consumes finished runs; the failure escalation service is
// the production implementation.
type CompletionHandler interface {
	HandleSyncCompleted(ctx context.Context, run *domain.SyncRun) error
}
