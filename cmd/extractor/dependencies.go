package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/FACorreiaa/statement-extractor/internal/domain/alerting"
	"github.com/FACorreiaa/statement-extractor/internal/domain/classifier"
	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
	"github.com/FACorreiaa/statement-extractor/internal/domain/pipeline"
	"github.com/FACorreiaa/statement-extractor/internal/domain/queue"
	"github.com/FACorreiaa/statement-extractor/internal/domain/remote"
	"github.com/FACorreiaa/statement-extractor/pkg/config"
	"github.com/FACorreiaa/statement-extractor/pkg/cron"
	"github.com/FACorreiaa/statement-extractor/pkg/db"
	"github.com/FACorreiaa/statement-extractor/pkg/metrics"
	"github.com/FACorreiaa/statement-extractor/pkg/storage"
)

// Dependencies holds everything the subcommands share.
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	Registry *extraction.Registry
	Text     document.TextExtractor
	Metrics  *metrics.Prometheus

	// Broker
	Tasks  queue.TaskQueue
	Status queue.StatusLog
	Dial   queue.Dialer
	Events *queue.Publisher

	sqlite   *sql.DB
	postgres *db.DB
}

// InitDependencies connects the broker and builds the shared services.
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: extraction.NewRegistry(),
		Text:     document.NewPDFExtractor(),
		Metrics:  metrics.NewPrometheus(),
	}

	if err := deps.initBroker(); err != nil {
		return nil, fmt.Errorf("failed to init broker: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		slog.String("broker", cfg.Broker.Driver))
	return deps, nil
}

// initBroker opens the task queue and status stream for the configured
// driver and applies migrations.
func (d *Dependencies) initBroker() error {
	q := d.Config.Queue

	switch d.Config.Broker.Driver {
	case config.DriverPostgres:
		database, err := db.New(db.Config{
			DSN:             d.Config.Broker.DSN(),
			MaxConns:        int32(max(q.Concurrency+4, 8)),
			MinConns:        2,
			MaxConnLifetime: 5 * time.Minute,
			MaxConnIdleTime: 10 * time.Minute,
		}, d.Logger)
		if err != nil {
			return err
		}
		if err := database.RunMigrations(); err != nil {
			database.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		d.postgres = database
		d.Tasks = queue.NewPostgresQueue(database.Pool, q.TaskQueue, q.VisibilityTimeout)
		d.Status = queue.NewPostgresStatusLog(database.Pool, q.StatusQueue)
		d.Dial = queue.PostgresDialer(d.Config.Broker.DSN(), q.StatusQueue)

	default:
		sqlDB, err := db.OpenSQLite(d.Config.Broker.SQLitePath, d.Logger)
		if err != nil {
			return err
		}
		d.sqlite = sqlDB
		d.Tasks = queue.NewSQLiteQueue(sqlDB, q.TaskQueue, q.VisibilityTimeout)
		d.Status = queue.NewSQLiteStatusLog(sqlDB, q.StatusQueue)
		d.Dial = queue.SQLiteDialer(sqlDB, q.StatusQueue)
	}

	d.Events = queue.NewPublisher(d.Status, d.Logger)
	return nil
}

// Processor builds the shared extraction and artifact writer.
func (d *Dependencies) Processor() *pipeline.Processor {
	return pipeline.NewProcessor(d.Registry, d.Text, storage.LocalFactory(), d.Config.Output.CSV, d.Logger)
}

// Orchestrator builds the dispatcher: rule classifier, remote client and
// task queue.
func (d *Dependencies) Orchestrator(outputDir string) (*pipeline.Orchestrator, error) {
	fallback, err := d.Registry.Resolve(d.Config.Remote.Capability)
	if err != nil {
		return nil, fmt.Errorf("invalid remote capability: %w", err)
	}
	if !d.Registry.IsRemote(fallback) {
		return nil, fmt.Errorf("extractor %q is not a remote capability", fallback)
	}

	rules, err := classifier.LoadRulesFile(d.Config.Classifier.RulesFile, d.Registry)
	if err != nil {
		return nil, err
	}
	d.Logger.Info("extraction rules loaded",
		slog.String("file", d.Config.Classifier.RulesFile),
		slog.Int("rules", len(rules)))

	if outputDir == "" {
		outputDir = d.Config.Output.Dir
	}

	return pipeline.NewOrchestrator(
		classifier.New(rules, d.Text, fallback, d.Logger),
		d.Registry,
		remote.NewClient(d.Config.Remote.BaseURL, string(fallback), d.Config.Remote.Timeout, d.Logger),
		d.Tasks,
		d.Processor(),
		d.Events,
		d.Metrics,
		pipeline.OrchestratorConfig{OutputDir: outputDir},
		d.Logger,
	), nil
}

// Worker builds a task consumer with dead-letter alerting when configured.
func (d *Dependencies) Worker(concurrency int) *pipeline.Worker {
	var alerts pipeline.Alerter
	if d.Config.Alerting.Enabled() {
		alerts = alerting.NewResendNotifier(
			d.Config.Alerting.ResendAPIKey,
			d.Config.Alerting.From,
			d.Config.Alerting.To,
			d.Logger,
		)
	}

	return pipeline.NewWorker(
		d.Tasks,
		d.Registry,
		d.Processor(),
		d.Events,
		alerts,
		d.Metrics,
		d.workerConfig(concurrency),
		d.Logger,
	)
}

func (d *Dependencies) workerConfig(concurrency int) pipeline.WorkerConfig {
	q := d.Config.Queue
	if concurrency <= 0 {
		concurrency = q.Concurrency
	}
	return pipeline.WorkerConfig{
		OutputDir:     d.Config.Output.Dir,
		PollInterval:  q.PollInterval,
		MaxAttempts:   q.MaxAttempts,
		RetryBackoff:  q.RetryBackoff,
		BrokerBackoff: q.BrokerBackoff,
		Concurrency:   concurrency,
	}
}

// StartScheduler refreshes the queue gauges in the background.
func (d *Dependencies) StartScheduler() (*cron.Scheduler, error) {
	s := cron.NewScheduler(d.Tasks, d.Metrics, "", d.Logger)
	if err := s.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}
	s.RunNow()
	return s, nil
}

// ServeMetrics exposes /metrics until ctx is cancelled. It is a no-op when
// metrics are disabled.
func (d *Dependencies) ServeMetrics(ctx context.Context) {
	obs := d.Config.Observability
	if !obs.MetricsEnabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", d.Metrics.Handler())
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(obs.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		d.Logger.Info("metrics server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.Logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.sqlite != nil {
		d.sqlite.Close()
	}
	if d.postgres != nil {
		d.postgres.Close()
	}
	d.Logger.Info("cleanup completed")
}
