package domain

import "time"

// MaxFailureDetails bounds the failure history kept on an alert row.
const MaxFailureDetails = 10

type FailureDetail struct {
	RunID      string    `json:"run_id"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SyncFailureAlert tracks consecutive sync failures for one connection.
// Mutated exclusively by the failure escalation service. The counter resets
// to zero only on a successful run; a new failure always clears any prior
// acknowledgment.
type SyncFailureAlert struct {
	ID                  int64      `db:"id"`
	ConnectionID        int64      `db:"connection_id"`
	ConsecutiveFailures int        `db:"consecutive_failures"`
	LastAlertSentAt     *time.Time `db:"last_alert_sent_at"`
	AcknowledgedAt      *time.Time `db:"acknowledged_at"`
	AcknowledgedBy      *string    `db:"acknowledged_by"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`

	FailureDetails []FailureDetail `db:"-"`
}

func (a *SyncFailureAlert) IsAcknowledged() bool {
	return a.AcknowledgedAt != nil
}
