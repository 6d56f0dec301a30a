package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"propsync/internal/config"
	"propsync/internal/domain"
)

// Stores groups the persistence dependencies of the orchestrator.
type Stores struct {
	Runs       SyncRunStore
	RawEvents  RawEventStore
	Properties PropertyStore
	Units      UnitStore
	Leases     LeaseStore
	WorkOrders WorkOrderStore
	Expenses   ExpenseStore
}

// Orchestrator drives one ingestion run for a single connection: it opens
// the run record, pages every configured resource through the remote client,
// maps and upserts each record, captures raw payloads, and finalizes the
// run. It is not safe for concurrent use; the run store refuses a second
// active run per connection.
type Orchestrator struct {
	conn       *domain.Connection
	client     RemoteClient
	stores     Stores
	txManager  TransactionManager
	completion CompletionHandler
	logger     *slog.Logger
	cfg        config.SyncConfig

	trackers map[domain.ResourceType]*ResourceSyncTracker
	since    *time.Time

	now func() time.Time
}

func NewOrchestrator(
	conn *domain.Connection,
	client RemoteClient,
	stores Stores,
	txManager TransactionManager,
	completion CompletionHandler,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *Orchestrator {
	return &Orchestrator{
		conn:       conn,
		client:     client,
		stores:     stores,
		txManager:  txManager,
		completion: completion,
		logger:     logger.With("connection", conn.Name),
		cfg:        cfg,
		trackers:   make(map[domain.ResourceType]*ResourceSyncTracker),
		now:        time.Now,
	}
}

// BeginRun opens a pending run record. domain.ErrRunAlreadyActive is
// returned untouched so the caller can treat an overlapping trigger as a
// no-op rather than a fault.
func (o *Orchestrator) BeginRun(ctx context.Context, mode domain.SyncMode) (*domain.SyncRun, error) {
	run := &domain.SyncRun{
		ID:              uuid.NewString(),
		ConnectionID:    o.conn.ID,
		Mode:            mode,
		Status:          domain.RunStatusPending,
		ResourceMetrics: make(map[domain.ResourceType]domain.ResourceMetrics),
	}

	if err := o.stores.Runs.Create(ctx, run); err != nil {
		if errors.Is(err, domain.ErrRunAlreadyActive) {
			return nil, err
		}
		return nil, fmt.Errorf("create run: %w", err)
	}

	return run, nil
}

// StartSync transitions a pending run to running. A run may only be started
// once.
func (o *Orchestrator) StartSync(ctx context.Context, run *domain.SyncRun) error {
	if run.Status != domain.RunStatusPending {
		return fmt.Errorf("run %s already started", run.ID)
	}

	startedAt := o.now()
	if err := o.stores.Runs.Start(ctx, run.ID, startedAt); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	run.Status = domain.RunStatusRunning
	run.StartedAt = &startedAt

	o.trackers = make(map[domain.ResourceType]*ResourceSyncTracker)
	o.since = nil

	if run.Mode == domain.SyncModeIncremental {
		since, err := o.stores.Runs.LastCompletedAt(ctx, o.conn.ID)
		if err != nil {
			return fmt.Errorf("resolve modified_since: %w", err)
		}
		// nil means no completed run yet; the first incremental run fetches
		// the full dataset.
		o.since = since
	}

	o.logger.Info("sync run started", "run_id", run.ID, "mode", run.Mode)
	return nil
}

// ProcessAll processes every resource type in dependency order so foreign
// references resolve within a single pass.
func (o *Orchestrator) ProcessAll(ctx context.Context, run *domain.SyncRun) error {
	for _, resource := range domain.ResourceSyncOrder() {
		if err := o.ProcessResource(ctx, run, resource); err != nil {
			return err
		}
	}
	return nil
}

// ProcessResource pages through one resource type. A fatal client error
// aborts this resource and is recorded; record-level failures are recorded
// and processing continues. The returned error is non-nil only when the
// context is cancelled.
func (o *Orchestrator) ProcessResource(ctx context.Context, run *domain.SyncRun, resource domain.ResourceType) error {
	if _, done := run.ResourceMetrics[resource]; done {
		return fmt.Errorf("resource %s already processed in run %s", resource, run.ID)
	}

	tracker := NewResourceSyncTracker(run, resource)
	o.trackers[resource] = tracker

	logger := o.logger.With("run_id", run.ID, "resource", resource)

	page := 1
	pagesFetched := 0
	for {
		p, err := o.client.FetchPage(ctx, resource, page, o.since)
		if err != nil {
			tracker.RecordFatal(err.Error())
			tracker.Finish()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("resource fetch failed", "page", page, "error", err)
			return nil
		}

		for _, raw := range p.Data {
			o.processRecord(ctx, run, resource, tracker, raw, logger)
		}

		pagesFetched++
		if len(p.Data) == 0 || !p.HasMore() {
			break
		}
		if o.cfg.MaxPagesPerResource > 0 && pagesFetched >= o.cfg.MaxPagesPerResource {
			logger.Warn("page budget reached, remaining records deferred to next run",
				"pages_fetched", pagesFetched,
				"total_pages", p.TotalPages,
			)
			break
		}
		page++
	}

	m := tracker.Finish()
	logger.Info("resource processed",
		"created", m.Created,
		"updated", m.Updated,
		"skipped", m.Skipped,
		"errors", m.Errors,
		"duration_ms", m.DurationMs,
	)
	return nil
}

// processRecord persists the raw payload first, so the audit trail exists
// even when mapping fails, then maps, resolves references and upserts.
func (o *Orchestrator) processRecord(ctx context.Context, run *domain.SyncRun, resource domain.ResourceType, tracker *ResourceSyncTracker, raw []byte, logger *slog.Logger) {
	extID, idErr := externalID(raw)

	event := &domain.RawEvent{
		RunID:      run.ID,
		Resource:   resource,
		ExternalID: extID,
		Payload:    raw,
		ReceivedAt: o.now(),
	}
	if err := o.stores.RawEvents.Append(ctx, event); err != nil {
		logger.Error("raw event append failed", "external_id", extID, "error", err)
		tracker.RecordError(fmt.Sprintf("append raw event: %v", err), extID)
	}

	if idErr != nil {
		tracker.RecordError(idErr.Error(), "")
		return
	}

	created, err := o.upsertRecord(ctx, resource, tracker, raw, extID)
	if err != nil {
		tracker.RecordError(err.Error(), extID)
		logger.Debug("record failed", "external_id", extID, "error", err)
		return
	}
	if created == nil {
		// Skip already recorded with its reason.
		return
	}

	if *created {
		tracker.RecordCreated()
	} else {
		tracker.RecordUpdated()
	}
}

// upsertRecord returns nil without error when the record was skipped.
func (o *Orchestrator) upsertRecord(ctx context.Context, resource domain.ResourceType, tracker *ResourceSyncTracker, raw []byte, extID string) (*bool, error) {
	switch resource {
	case domain.ResourceProperties:
		property, err := mapProperty(o.conn.ID, raw)
		if err != nil {
			return nil, err
		}
		_, created, err := o.stores.Properties.Upsert(ctx, property)
		if err != nil {
			return nil, fmt.Errorf("upsert property: %w", err)
		}
		return &created, nil

	case domain.ResourceUnits:
		unit, propertyExtID, err := mapUnit(o.conn.ID, raw)
		if err != nil {
			return nil, err
		}
		propertyID, err := o.stores.Properties.IDByExternalID(ctx, o.conn.ID, propertyExtID)
		if err != nil {
			return nil, fmt.Errorf("resolve property %s: %w", propertyExtID, err)
		}
		if propertyID == 0 {
			tracker.RecordSkipped(fmt.Sprintf("unit %s references unknown property %s", extID, propertyExtID))
			return nil, nil
		}
		unit.PropertyID = propertyID
		_, created, err := o.stores.Units.Upsert(ctx, unit)
		if err != nil {
			return nil, fmt.Errorf("upsert unit: %w", err)
		}
		return &created, nil

	case domain.ResourceLeases:
		lease, unitExtID, err := mapLease(o.conn.ID, raw)
		if err != nil {
			return nil, err
		}
		unitID, err := o.stores.Units.IDByExternalID(ctx, o.conn.ID, unitExtID)
		if err != nil {
			return nil, fmt.Errorf("resolve unit %s: %w", unitExtID, err)
		}
		if unitID == 0 {
			tracker.RecordSkipped(fmt.Sprintf("lease %s references unknown unit %s", extID, unitExtID))
			return nil, nil
		}
		lease.UnitID = unitID
		_, created, err := o.stores.Leases.Upsert(ctx, lease)
		if err != nil {
			return nil, fmt.Errorf("upsert lease: %w", err)
		}
		return &created, nil

	case domain.ResourceWorkOrders:
		workOrder, propertyExtID, unitExtID, err := mapWorkOrder(o.conn.ID, raw)
		if err != nil {
			return nil, err
		}
		propertyID, err := o.stores.Properties.IDByExternalID(ctx, o.conn.ID, propertyExtID)
		if err != nil {
			return nil, fmt.Errorf("resolve property %s: %w", propertyExtID, err)
		}
		if propertyID == 0 {
			tracker.RecordSkipped(fmt.Sprintf("work order %s references unknown property %s", extID, propertyExtID))
			return nil, nil
		}
		workOrder.PropertyID = propertyID
		if unitExtID != "" {
			unitID, err := o.stores.Units.IDByExternalID(ctx, o.conn.ID, unitExtID)
			if err != nil {
				return nil, fmt.Errorf("resolve unit %s: %w", unitExtID, err)
			}
			if unitID == 0 {
				tracker.RecordSkipped(fmt.Sprintf("work order %s references unknown unit %s", extID, unitExtID))
				return nil, nil
			}
			workOrder.UnitID = &unitID
		}
		_, created, err := o.stores.WorkOrders.Upsert(ctx, workOrder)
		if err != nil {
			return nil, fmt.Errorf("upsert work order: %w", err)
		}
		return &created, nil

	case domain.ResourceExpenses:
		expense, propertyExtID, err := mapExpense(o.conn.ID, raw)
		if err != nil {
			return nil, err
		}
		propertyID, err := o.stores.Properties.IDByExternalID(ctx, o.conn.ID, propertyExtID)
		if err != nil {
			return nil, fmt.Errorf("resolve property %s: %w", propertyExtID, err)
		}
		if propertyID == 0 {
			tracker.RecordSkipped(fmt.Sprintf("expense %s references unknown property %s", extID, propertyExtID))
			return nil, nil
		}
		expense.PropertyID = propertyID
		_, created, err := o.stores.Expenses.Upsert(ctx, expense)
		if err != nil {
			return nil, fmt.Errorf("upsert expense: %w", err)
		}
		return &created, nil

	default:
		return nil, fmt.Errorf("unknown resource type %q", resource)
	}
}

// CompleteSync finalizes every open tracker, aggregates metrics into the
// run, persists the terminal state together with the raw-event retention
// sweep, and hands the finished run to the completion handler regardless of
// the run's outcome.
func (o *Orchestrator) CompleteSync(ctx context.Context, run *domain.SyncRun) error {
	for _, resource := range domain.ResourceSyncOrder() {
		if tracker := o.trackers[resource]; tracker != nil {
			tracker.Finish()
		}
	}

	endedAt := o.now()
	run.EndedAt = &endedAt

	if fatal := run.FatalErrors(); len(fatal) > 0 {
		run.Status = domain.RunStatusFailed
		summary := fatal[0].Message
		run.ErrorSummary = &summary
	} else {
		run.Status = domain.RunStatusCompleted
	}

	err := o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := o.stores.Runs.Finalize(txCtx, run); err != nil {
			return fmt.Errorf("finalize run: %w", err)
		}
		if o.cfg.RawEventRetentionDays > 0 {
			cutoff := endedAt.AddDate(0, 0, -o.cfg.RawEventRetentionDays)
			if _, err := o.stores.RawEvents.DeleteOlderThan(txCtx, cutoff); err != nil {
				return fmt.Errorf("prune raw events: %w", err)
			}
		}
		return nil
	})

	metrics.runsTotal.WithLabelValues(string(run.Status)).Inc()

	if hErr := o.completion.HandleSyncCompleted(ctx, run); hErr != nil {
		o.logger.Error("completion handler failed", "run_id", run.ID, "error", hErr)
	}

	if err != nil {
		return err
	}

	o.logger.Info("sync run finished",
		"run_id", run.ID,
		"status", run.Status,
		"errors", len(run.ResourceErrors),
	)
	return nil
}

// RunOnce is the scheduler entry point: begin, start, process all resources
// and complete, in one call.
func (o *Orchestrator) RunOnce(ctx context.Context) (*domain.SyncRun, error) {
	mode := domain.SyncModeFull
	if o.cfg.Mode == string(domain.SyncModeIncremental) {
		mode = domain.SyncModeIncremental
	}

	run, err := o.BeginRun(ctx, mode)
	if err != nil {
		return nil, err
	}

	if err := o.StartSync(ctx, run); err != nil {
		return run, err
	}

	if err := o.ProcessAll(ctx, run); err != nil {
		// Cancelled mid-run; finalize what was ingested so far.
		if cErr := o.CompleteSync(context.WithoutCancel(ctx), run); cErr != nil {
			o.logger.Error("finalize after cancellation failed", "run_id", run.ID, "error", cErr)
		}
		return run, err
	}

	if err := o.CompleteSync(ctx, run); err != nil {
		return run, err
	}
	return run, nil
}
