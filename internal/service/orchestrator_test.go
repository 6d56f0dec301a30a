package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"propsync/internal/config"
	"propsync/internal/domain"
	"propsync/internal/service/mocks"
	"propsync/internal/source/propcore"
)

type OrchestratorTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	client     *mocks.MockRemoteClient
	runs       *mocks.MockSyncRunStore
	rawEvents  *mocks.MockRawEventStore
	properties *mocks.MockPropertyStore
	units      *mocks.MockUnitStore
	leases     *mocks.MockLeaseStore
	workOrders *mocks.MockWorkOrderStore
	expenses   *mocks.MockExpenseStore
	txManager  *mocks.MockTransactionManager
	completion *mocks.MockCompletionHandler

	conn   *domain.Connection
	cfg    config.SyncConfig
	logger *slog.Logger

	orchestrator *Orchestrator
}

func (s *OrchestratorTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.client = mocks.NewMockRemoteClient(s.ctrl)
	s.runs = mocks.NewMockSyncRunStore(s.ctrl)
	s.rawEvents = mocks.NewMockRawEventStore(s.ctrl)
	s.properties = mocks.NewMockPropertyStore(s.ctrl)
	s.units = mocks.NewMockUnitStore(s.ctrl)
	s.leases = mocks.NewMockLeaseStore(s.ctrl)
	s.workOrders = mocks.NewMockWorkOrderStore(s.ctrl)
	s.expenses = mocks.NewMockExpenseStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.completion = mocks.NewMockCompletionHandler(s.ctrl)

	s.conn = &domain.Connection{
		ID:              7,
		Name:            "propcore",
		BaseURL:         "https://api.propcore.test",
		ClientID:        "client-id",
		EncryptedSecret: []byte("sealed"),
		Status:          domain.ConnectionStatusConnected,
	}

	s.cfg = config.SyncConfig{
		Mode:                  "full",
		MaxPagesPerResource:   10,
		RawEventRetentionDays: 30,
		RunTimeout:            10 * time.Minute,
	}

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.orchestrator = s.newOrchestrator(s.cfg)
}

func (s *OrchestratorTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *OrchestratorTestSuite) newOrchestrator(cfg config.SyncConfig) *Orchestrator {
	return NewOrchestrator(
		s.conn,
		s.client,
		Stores{
			Runs:       s.runs,
			RawEvents:  s.rawEvents,
			Properties: s.properties,
			Units:      s.units,
			Leases:     s.leases,
			WorkOrders: s.workOrders,
			Expenses:   s.expenses,
		},
		s.txManager,
		s.completion,
		s.logger,
		cfg,
	)
}

func TestOrchestratorTestSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

func pageOf(records ...string) *propcore.Page {
	p := &propcore.Page{Page: 1, PerPage: 100, TotalPages: 1}
	for _, r := range records {
		p.Data = append(p.Data, []byte(r))
	}
	return p
}

// expectEmptyPages wires an empty first page for every resource except the
// listed ones.
func (s *OrchestratorTestSuite) expectEmptyPages(except ...domain.ResourceType) {
	skip := make(map[domain.ResourceType]bool)
	for _, r := range except {
		skip[r] = true
	}
	for _, resource := range domain.ResourceSyncOrder() {
		if skip[resource] {
			continue
		}
		s.client.EXPECT().FetchPage(gomock.Any(), resource, 1, gomock.Any()).Return(pageOf(), nil)
	}
}

func (s *OrchestratorTestSuite) expectFinalization() {
	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.runs.EXPECT().Finalize(gomock.Any(), gomock.Any()).Return(nil)
	s.rawEvents.EXPECT().DeleteOlderThan(gomock.Any(), gomock.Any()).Return(int64(0), nil)
}

func (s *OrchestratorTestSuite) TestRunOnce_CreatedAndUpdated() {
	ctx := context.Background()

	s.runs.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	s.runs.EXPECT().Start(ctx, gomock.Any(), gomock.Any()).Return(nil)

	s.client.EXPECT().FetchPage(ctx, domain.ResourceProperties, 1, nil).Return(pageOf(
		`{"id": 101, "name": "Maple Court", "updated_at": "2026-03-01T12:00:00Z"}`,
		`{"id": 102, "name": "Oak Ridge", "updated_at": "2026-03-01T12:00:00Z"}`,
	), nil)
	s.expectEmptyPages(domain.ResourceProperties)

	s.rawEvents.EXPECT().Append(ctx, gomock.Any()).Return(nil).Times(2)

	s.properties.EXPECT().Upsert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, p *domain.Property) (int64, bool, error) {
			if p.ExternalID == "101" {
				return 1, true, nil
			}
			return 2, false, nil
		},
	).Times(2)

	s.expectFinalization()
	s.completion.EXPECT().HandleSyncCompleted(ctx, gomock.Any()).Return(nil)

	run, err := s.orchestrator.RunOnce(ctx)

	s.NoError(err)
	s.Equal(domain.RunStatusCompleted, run.Status)
	s.Equal(domain.SyncModeFull, run.Mode)
	s.NotNil(run.EndedAt)
	s.Len(run.ResourceMetrics, 5)

	m := run.ResourceMetrics[domain.ResourceProperties]
	s.Equal(1, m.Created)
	s.Equal(1, m.Updated)
	s.Equal(0, m.Errors)
}

func (s *OrchestratorTestSuite) TestRunOnce_RecordErrorDoesNotFailRun() {
	ctx := context.Background()

	s.runs.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	s.runs.EXPECT().Start(ctx, gomock.Any(), gomock.Any()).Return(nil)

	// The middle record has an id but no name, so it fails mapping after its
	// raw payload was captured.
	s.client.EXPECT().FetchPage(ctx, domain.ResourceProperties, 1, nil).Return(pageOf(
		`{"id": 101, "name": "Maple Court", "updated_at": "2026-03-01T12:00:00Z"}`,
		`{"id": 102, "updated_at": "2026-03-01T12:00:00Z"}`,
		`{"id": 103, "name": "Oak Ridge", "updated_at": "2026-03-01T12:00:00Z"}`,
	), nil)
	s.expectEmptyPages(domain.ResourceProperties)

	s.rawEvents.EXPECT().Append(ctx, gomock.Any()).Return(nil).Times(3)
	s.properties.EXPECT().Upsert(ctx, gomock.Any()).Return(int64(1), true, nil).Times(2)

	s.expectFinalization()
	s.completion.EXPECT().HandleSyncCompleted(ctx, gomock.Any()).Return(nil)

	run, err := s.orchestrator.RunOnce(ctx)

	s.NoError(err)
	s.Equal(domain.RunStatusCompleted, run.Status)

	m := run.ResourceMetrics[domain.ResourceProperties]
	s.Equal(2, m.Created)
	s.Equal(1, m.Errors)

	s.Require().Len(run.ResourceErrors, 1)
	s.Equal("102", run.ResourceErrors[0].ExternalID)
	s.False(run.ResourceErrors[0].Fatal)
}

func (s *OrchestratorTestSuite) TestRunOnce_FatalFetchFailsRunButOtherResourcesProceed() {
	ctx := context.Background()

	s.runs.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	s.runs.EXPECT().Start(ctx, gomock.Any(), gomock.Any()).Return(nil)

	fetchErr := errors.New("fetch properties: after 2 attempts: propcore: properties returned HTTP 500")
	s.client.EXPECT().FetchPage(ctx, domain.ResourceProperties, 1, nil).Return(nil, fetchErr)
	s.expectEmptyPages(domain.ResourceProperties)

	s.expectFinalization()
	s.completion.EXPECT().HandleSyncCompleted(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, run *domain.SyncRun) error {
			s.Equal(domain.RunStatusFailed, run.Status)
			return nil
		},
	)

	run, err := s.orchestrator.RunOnce(ctx)

	s.NoError(err)
	s.Equal(domain.RunStatusFailed, run.Status)
	s.Require().NotNil(run.ErrorSummary)
	s.Equal(fetchErr.Error(), *run.ErrorSummary)

	// The failed resource still has a finalized metrics snapshot; the other
	// resources were processed normally.
	s.Len(run.ResourceMetrics, 5)
	s.Equal(1, run.ResourceMetrics[domain.ResourceProperties].Errors)
}

func (s *OrchestratorTestSuite) TestRunOnce_AlreadyActiveRunPassesThrough() {
	ctx := context.Background()

	s.runs.EXPECT().Create(ctx, gomock.Any()).Return(domain.ErrRunAlreadyActive)

	run, err := s.orchestrator.RunOnce(ctx)

	s.Nil(run)
	s.ErrorIs(err, domain.ErrRunAlreadyActive)
}

func (s *OrchestratorTestSuite) TestRunOnce_IncrementalUsesLastCompletedRun() {
	ctx := context.Background()
	since := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

	cfg := s.cfg
	cfg.Mode = "incremental"
	orchestrator := s.newOrchestrator(cfg)

	s.runs.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	s.runs.EXPECT().Start(ctx, gomock.Any(), gomock.Any()).Return(nil)
	s.runs.EXPECT().LastCompletedAt(ctx, int64(7)).Return(&since, nil)

	for _, resource := range domain.ResourceSyncOrder() {
		s.client.EXPECT().FetchPage(ctx, resource, 1, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ domain.ResourceType, _ int, modifiedSince *time.Time) (*propcore.Page, error) {
				s.Require().NotNil(modifiedSince)
				s.Equal(since, *modifiedSince)
				return pageOf(), nil
			},
		)
	}

	s.expectFinalization()
	s.completion.EXPECT().HandleSyncCompleted(ctx, gomock.Any()).Return(nil)

	run, err := orchestrator.RunOnce(ctx)

	s.NoError(err)
	s.Equal(domain.SyncModeIncremental, run.Mode)
	s.Equal(domain.RunStatusCompleted, run.Status)
}

func (s *OrchestratorTestSuite) TestProcessResource_UnresolvedReferenceIsSkipped() {
	ctx := context.Background()
	run := &domain.SyncRun{
		ID:              "run-1",
		ConnectionID:    7,
		Status:          domain.RunStatusRunning,
		ResourceMetrics: make(map[domain.ResourceType]domain.ResourceMetrics),
	}

	s.client.EXPECT().FetchPage(ctx, domain.ResourceUnits, 1, nil).Return(pageOf(
		`{"id": 5, "property_id": 999, "unit_number": "2B", "status": "occupied", "market_rent": 1000, "updated_at": "2026-03-01T12:00:00Z"}`,
	), nil)
	s.rawEvents.EXPECT().Append(ctx, gomock.Any()).Return(nil)
	s.properties.EXPECT().IDByExternalID(ctx, int64(7), "999").Return(int64(0), nil)

	err := s.orchestrator.ProcessResource(ctx, run, domain.ResourceUnits)

	s.NoError(err)

	m := run.ResourceMetrics[domain.ResourceUnits]
	s.Equal(1, m.Skipped)
	s.Equal(0, m.Created)
	s.Equal(0, m.Errors)
	s.Empty(run.ResourceErrors)
}

func (s *OrchestratorTestSuite) TestProcessResource_PageBudgetDefersRemainder() {
	ctx := context.Background()
	cfg := s.cfg
	cfg.MaxPagesPerResource = 2
	orchestrator := s.newOrchestrator(cfg)

	run := &domain.SyncRun{
		ID:              "run-1",
		ConnectionID:    7,
		Status:          domain.RunStatusRunning,
		ResourceMetrics: make(map[domain.ResourceType]domain.ResourceMetrics),
	}

	page1 := pageOf(`{"id": 101, "name": "Maple Court", "updated_at": "2026-03-01T12:00:00Z"}`)
	page1.TotalPages = 5
	page2 := pageOf(`{"id": 102, "name": "Oak Ridge", "updated_at": "2026-03-01T12:00:00Z"}`)
	page2.Page = 2
	page2.TotalPages = 5

	s.client.EXPECT().FetchPage(ctx, domain.ResourceProperties, 1, nil).Return(page1, nil)
	s.client.EXPECT().FetchPage(ctx, domain.ResourceProperties, 2, nil).Return(page2, nil)
	s.rawEvents.EXPECT().Append(ctx, gomock.Any()).Return(nil).Times(2)
	s.properties.EXPECT().Upsert(ctx, gomock.Any()).Return(int64(1), true, nil).Times(2)

	err := orchestrator.ProcessResource(ctx, run, domain.ResourceProperties)

	s.NoError(err)
	s.Equal(2, run.ResourceMetrics[domain.ResourceProperties].Created)
}

func (s *OrchestratorTestSuite) TestProcessResource_RefusesSecondPass() {
	ctx := context.Background()
	run := &domain.SyncRun{
		ID:           "run-1",
		ConnectionID: 7,
		Status:       domain.RunStatusRunning,
		ResourceMetrics: map[domain.ResourceType]domain.ResourceMetrics{
			domain.ResourceProperties: {Created: 3},
		},
	}

	err := s.orchestrator.ProcessResource(ctx, run, domain.ResourceProperties)

	s.Error(err)
	s.Contains(err.Error(), "already processed")
}

func (s *OrchestratorTestSuite) TestCompleteSync_CompletionHandlerErrorIsSwallowed() {
	ctx := context.Background()
	run := &domain.SyncRun{
		ID:              "run-1",
		ConnectionID:    7,
		Status:          domain.RunStatusRunning,
		ResourceMetrics: make(map[domain.ResourceType]domain.ResourceMetrics),
	}

	s.expectFinalization()
	s.completion.EXPECT().HandleSyncCompleted(ctx, run).Return(errors.New("amqp connection refused"))

	err := s.orchestrator.CompleteSync(ctx, run)

	s.NoError(err)
	s.Equal(domain.RunStatusCompleted, run.Status)
}
