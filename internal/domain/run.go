package domain

import (
	"encoding/json"
	"time"
)

type SyncMode string

const (
	SyncModeFull        SyncMode = "full"
	SyncModeIncremental SyncMode = "incremental"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type ResourceType string

const (
	ResourceProperties ResourceType = "properties"
	ResourceUnits      ResourceType = "units"
	ResourceLeases     ResourceType = "leases"
	ResourceWorkOrders ResourceType = "work_orders"
	ResourceExpenses   ResourceType = "expenses"
)

// ResourceSyncOrder is the processing order within a run. Properties come
// first so that units, leases, work orders and expenses can resolve their
// owning records in a single pass.
func ResourceSyncOrder() []ResourceType {
	return []ResourceType{
		ResourceProperties,
		ResourceUnits,
		ResourceLeases,
		ResourceWorkOrders,
		ResourceExpenses,
	}
}

// ResourceMetrics is the finalized counter snapshot for one resource type
// within a run. Once written to a run it is never rewritten.
type ResourceMetrics struct {
	Created    int   `json:"created"`
	Updated    int   `json:"updated"`
	Skipped    int   `json:"skipped"`
	Errors     int   `json:"errors"`
	DurationMs int64 `json:"duration_ms"`
}

type ResourceError struct {
	Resource   ResourceType `json:"resource"`
	ExternalID string       `json:"external_id,omitempty"`
	Message    string       `json:"message"`
	Fatal      bool         `json:"fatal"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// SyncRun is one end-to-end ingestion attempt. It is mutated only by the
// orchestrator and its trackers and becomes immutable once terminal.
type SyncRun struct {
	ID           string     `db:"id"`
	ConnectionID int64      `db:"connection_id"`
	Mode         SyncMode   `db:"mode"`
	Status       RunStatus  `db:"status"`
	StartedAt    *time.Time `db:"started_at"`
	EndedAt      *time.Time `db:"ended_at"`
	ErrorSummary *string    `db:"error_summary"`
	CreatedAt    time.Time  `db:"created_at"`

	ResourceMetrics map[ResourceType]ResourceMetrics `db:"-"`
	ResourceErrors  []ResourceError                  `db:"-"`
}

func (r *SyncRun) IsTerminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// FatalErrors returns the resource-level errors that make the run fail.
func (r *SyncRun) FatalErrors() []ResourceError {
	var fatal []ResourceError
	for _, e := range r.ResourceErrors {
		if e.Fatal {
			fatal = append(fatal, e)
		}
	}
	return fatal
}

// RawEvent is an append-only audit record of one fetched remote item. It is
// written before any mapping happens so the trail survives mapping failures.
type RawEvent struct {
	ID         int64           `db:"id"`
	RunID      string          `db:"run_id"`
	Resource   ResourceType    `db:"resource"`
	ExternalID string          `db:"external_id"`
	Payload    json.RawMessage `db:"payload"`
	ReceivedAt time.Time       `db:"received_at"`
}
