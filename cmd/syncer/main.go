package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"propsync/internal/config"
	"propsync/internal/domain"
	"propsync/internal/notify"
	"propsync/internal/scheduler"
	"propsync/internal/secrets"
	"propsync/internal/service"
	"propsync/internal/source/propcore"
	"propsync/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single sync and exit")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	codec, err := secrets.NewCodecFromBase64(cfg.Secrets.EncryptionKey)
	if err != nil {
		logger.Error("failed to initialize secret codec", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectionStore := postgres.NewConnectionStore(db)
	conn, err := ensureConnection(ctx, connectionStore, codec, cfg.API)
	if err != nil {
		logger.Error("failed to configure connection", "error", err)
		os.Exit(1)
	}

	notifier, err := notify.NewRabbitMQNotifier(notify.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
		Recipients: cfg.Alerts.Recipients,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer notifier.Close()

	client := propcore.New(conn, propcore.NewClientCredentials(conn, codec), propcore.Config{
		PageSize:   cfg.API.PageSize,
		Timeout:    cfg.API.Timeout,
		MaxRetries: cfg.API.MaxRetries,
	}, logger)

	probeConnection(ctx, client, connectionStore, conn, logger)

	escalation := service.NewFailureEscalationService(
		postgres.NewSyncFailureAlertStore(db),
		notifier,
		logger,
		cfg.Alerts,
	)

	orchestrator := service.NewOrchestrator(
		conn,
		client,
		service.Stores{
			Runs:       postgres.NewSyncRunStore(db),
			RawEvents:  postgres.NewRawEventStore(db),
			Properties: postgres.NewPropertyStore(db),
			Units:      postgres.NewUnitStore(db),
			Leases:     postgres.NewLeaseStore(db),
			WorkOrders: postgres.NewWorkOrderStore(db),
			Expenses:   postgres.NewExpenseStore(db),
		},
		postgres.NewTransactionManager(db),
		escalation,
		logger,
		cfg.Sync,
	)

	go serveMetrics(cfg.MetricsAddr, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if *once {
		runCtx, runCancel := context.WithTimeout(ctx, cfg.Sync.RunTimeout)
		defer runCancel()
		if _, err := orchestrator.RunOnce(runCtx); err != nil {
			logger.Error("sync run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	policy, err := scheduler.NewPolicy(cfg.BusinessHours)
	if err != nil {
		logger.Error("failed to build scheduling policy", "error", err)
		os.Exit(1)
	}

	logger.Info("starting property syncer",
		"connection", conn.Name,
		"mode", cfg.Sync.Mode,
		"business_hours_interval", cfg.BusinessHours.BusinessHoursInterval,
		"off_hours_interval", cfg.BusinessHours.OffHoursInterval,
	)

	sched := scheduler.NewScheduler(orchestrator, policy, cfg.Sync.RunTimeout, logger)
	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

// ensureConnection materializes the configured remote account as a
// connection row, encrypting the client secret before it is stored.
func ensureConnection(ctx context.Context, store *postgres.ConnectionStore, codec *secrets.Codec, cfg config.APIConfig) (*domain.Connection, error) {
	var encrypted []byte
	if cfg.ClientSecret != "" {
		var err error
		encrypted, err = codec.Encrypt(cfg.ClientSecret)
		if err != nil {
			return nil, err
		}
	}

	return store.Ensure(ctx, &domain.Connection{
		Name:            cfg.ConnectionName,
		BaseURL:         cfg.BaseURL,
		ClientID:        cfg.ClientID,
		EncryptedSecret: encrypted,
	})
}

func probeConnection(ctx context.Context, client *propcore.Client, store *postgres.ConnectionStore, conn *domain.Connection, logger *slog.Logger) {
	if !client.IsConfigured() {
		logger.Warn("connection is not configured, skipping probe", "connection", conn.Name)
		return
	}

	status := domain.ConnectionStatusError
	if client.TestConnection(ctx) {
		status = domain.ConnectionStatusConnected
	}

	if err := store.UpdateStatus(ctx, conn.ID, status); err != nil {
		logger.Error("failed to update connection status", "error", err)
		return
	}
	conn.Status = status
	logger.Info("connection probe finished", "connection", conn.Name, "status", status)
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint failed", "error", err)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
