package service

import (
	"time"

	"propsync/internal/domain"
)

// ResourceSyncTracker accumulates counters for one (run, resource) pair.
// Duration is measured from construction to Finish. A tracker finalizes into
// its run exactly once; the snapshot is never rewritten afterwards.
type ResourceSyncTracker struct {
	run      *domain.SyncRun
	resource domain.ResourceType

	created int
	updated int
	skipped int
	errored int

	skipReasons   []string
	errorMessages []string

	startedAt time.Time
	finished  bool
	snapshot  domain.ResourceMetrics

	now func() time.Time
}

func NewResourceSyncTracker(run *domain.SyncRun, resource domain.ResourceType) *ResourceSyncTracker {
	t := &ResourceSyncTracker{
		run:      run,
		resource: resource,
		now:      time.Now,
	}
	t.startedAt = t.now()
	return t
}

func (t *ResourceSyncTracker) RecordCreated() {
	t.created++
	metrics.recordsProcessed.WithLabelValues(string(t.resource), "created").Inc()
}

func (t *ResourceSyncTracker) RecordUpdated() {
	t.updated++
	metrics.recordsProcessed.WithLabelValues(string(t.resource), "updated").Inc()
}

func (t *ResourceSyncTracker) RecordSkipped(reason string) {
	t.skipped++
	t.skipReasons = append(t.skipReasons, reason)
	metrics.recordsProcessed.WithLabelValues(string(t.resource), "skipped").Inc()
}

// RecordError records a record-level error; processing of the resource
// continues.
func (t *ResourceSyncTracker) RecordError(message, externalID string) {
	t.recordError(message, externalID, false)
}

// RecordFatal records a resource-level error that aborts the resource and
// fails the run.
func (t *ResourceSyncTracker) RecordFatal(message string) {
	t.recordError(message, "", true)
}

func (t *ResourceSyncTracker) recordError(message, externalID string, fatal bool) {
	t.errored++
	t.errorMessages = append(t.errorMessages, message)
	t.run.ResourceErrors = append(t.run.ResourceErrors, domain.ResourceError{
		Resource:   t.resource,
		ExternalID: externalID,
		Message:    message,
		Fatal:      fatal,
		OccurredAt: t.now(),
	})
	metrics.recordsProcessed.WithLabelValues(string(t.resource), "error").Inc()
}

func (t *ResourceSyncTracker) Metrics() domain.ResourceMetrics {
	if t.finished {
		return t.snapshot
	}
	return domain.ResourceMetrics{
		Created:    t.created,
		Updated:    t.updated,
		Skipped:    t.skipped,
		Errors:     t.errored,
		DurationMs: t.now().Sub(t.startedAt).Milliseconds(),
	}
}

// ProcessedCount is the number of records that made it into the local store.
func (t *ResourceSyncTracker) ProcessedCount() int {
	return t.created + t.updated
}

func (t *ResourceSyncTracker) HasErrors() bool {
	return t.errored > 0
}

func (t *ResourceSyncTracker) ErrorMessages() []string {
	return t.errorMessages
}

func (t *ResourceSyncTracker) SkipReasons() []string {
	return t.skipReasons
}

// Finish stamps the duration and persists the snapshot into the owning run's
// resource-metrics map. Repeated calls return the original snapshot.
func (t *ResourceSyncTracker) Finish() domain.ResourceMetrics {
	if t.finished {
		return t.snapshot
	}

	t.snapshot = t.Metrics()
	t.finished = true

	if t.run.ResourceMetrics == nil {
		t.run.ResourceMetrics = make(map[domain.ResourceType]domain.ResourceMetrics)
	}
	t.run.ResourceMetrics[t.resource] = t.snapshot

	return t.snapshot
}
