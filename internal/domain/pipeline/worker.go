package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
	"github.com/FACorreiaa/statement-extractor/internal/domain/queue"
	"github.com/FACorreiaa/statement-extractor/pkg/metrics"
)

// DeadLetter describes a task given up on.
type DeadLetter struct {
	TaskID    string
	PDFPath   string
	Extractor string
	Attempts  int
	Cause     string
}

// Alerter is told about every dead-lettered task.
type Alerter interface {
	DeadLettered(ctx context.Context, dl DeadLetter) error
}

// WorkerConfig tunes a Worker. Zero values take defaults.
type WorkerConfig struct {
	// OutputDir overrides DefaultOutputDir.
	OutputDir    string
	PollInterval time.Duration
	// MaxAttempts is how many deliveries a task gets before it is
	// dead-lettered.
	MaxAttempts  int
	RetryBackoff time.Duration
	// BrokerBackoff is the pause after the queue itself fails.
	BrokerBackoff time.Duration
	Concurrency   int
}

// Worker consumes processing tasks, one at a time per concurrent loop.
type Worker struct {
	tasks     queue.TaskQueue
	registry  *extraction.Registry
	processor *Processor
	events    *queue.Publisher
	alerts    Alerter
	metrics   metrics.Sink
	cfg       WorkerConfig
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewWorker creates a worker. alerts may be nil.
func NewWorker(
	tasks queue.TaskQueue,
	registry *extraction.Registry,
	processor *Processor,
	events *queue.Publisher,
	alerts Alerter,
	sink metrics.Sink,
	cfg WorkerConfig,
	logger *slog.Logger,
) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Second
	}
	if cfg.BrokerBackoff <= 0 {
		cfg.BrokerBackoff = 5 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Worker{
		tasks:     tasks,
		registry:  registry,
		processor: processor,
		events:    events,
		alerts:    alerts,
		metrics:   sink,
		cfg:       cfg,
		tracer:    otel.Tracer("github.com/FACorreiaa/statement-extractor/pipeline"),
		logger:    logger,
	}
}

// Run consumes tasks until ctx is cancelled. In-flight tasks finish first.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		slog.Int("concurrency", w.cfg.Concurrency),
		slog.Int("max_attempts", w.cfg.MaxAttempts),
		slog.Duration("poll", w.cfg.PollInterval),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			w.loop(gctx)
			return nil
		})
	}
	err := g.Wait()

	w.logger.Info("worker stopped")
	return err
}

func (w *Worker) loop(ctx context.Context) {
	for {
		claimed, err := w.ProcessOne(ctx)
		if ctx.Err() != nil {
			return
		}

		var wait time.Duration
		switch {
		case err != nil:
			w.logger.Warn("task queue unavailable, backing off",
				slog.Duration("backoff", w.cfg.BrokerBackoff),
				slog.Any("error", err))
			wait = w.cfg.BrokerBackoff
		case !claimed:
			wait = w.cfg.PollInterval
		default:
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// ProcessOne claims and handles a single task. It reports false when the
// queue had nothing visible; an error means the queue itself failed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	d, err := w.tasks.Claim(ctx)
	if errors.Is(err, queue.ErrQueueEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	w.handle(ctx, d)
	return true, nil
}

func (w *Worker) handle(ctx context.Context, d *queue.Delivery) {
	start := time.Now()
	ctx, span := w.tracer.Start(ctx, "pipeline.Worker.handle", trace.WithAttributes(
		attribute.String("task_id", d.ID),
		attribute.Int("attempt", d.Attempts),
	))
	defer span.End()

	task, err := queue.DecodeTask(d.Body)
	label := task.ExtractorName
	if label == "" {
		label = "unknown"
	}
	logger := w.logger.With(
		slog.String("task_id", d.ID),
		slog.String("pdf_path", task.PDFPath),
		slog.String("extractor", label),
		slog.Int("attempt", d.Attempts),
	)

	if err != nil {
		logger.Error("dropping malformed task", slog.Any("error", err))
		if task.PDFPath != "" {
			w.events.Failed(ctx, task.PDFPath, task.ExtractorName, err.Error())
		}
		w.drop(ctx, d, label, start, logger)
		return
	}

	id, err := w.registry.Resolve(task.ExtractorName)
	if err == nil && w.registry.IsRemote(id) {
		err = errors.New("remote extractor cannot be processed locally")
	}
	if err != nil {
		logger.Error("dropping task for unusable extractor", slog.Any("error", err))
		w.events.Failed(ctx, task.PDFPath, task.ExtractorName, err.Error())
		w.drop(ctx, d, label, start, logger)
		return
	}
	label = string(id)

	if d.Attempts > w.cfg.MaxAttempts {
		// Deliveries that outlived their visibility timeout (crashed
		// workers) count as attempts too.
		w.deadLetter(ctx, d, task, label, "maximum attempts exceeded", start, logger)
		return
	}

	doc, err := document.Open(task.PDFPath)
	if err != nil {
		logger.Error("dropping task for unreadable document", slog.Any("error", err))
		w.events.Failed(ctx, task.PDFPath, task.ExtractorName, err.Error())
		w.drop(ctx, d, label, start, logger)
		return
	}

	dir := w.cfg.OutputDir
	if dir == "" {
		dir = DefaultOutputDir(doc.Path)
	}

	out, err := w.processor.Run(ctx, doc, id, dir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			logger.Warn("processing interrupted, task will be redelivered", slog.Any("error", err))
			return
		}
		w.retryOrDeadLetter(ctx, d, task, label, err, start, logger)
		return
	}

	if out.Empty {
		logger.Info("no valid data, skipping output")
		w.events.CompletedNoOutput(ctx, doc.Path, task.ExtractorName)
		w.metrics.PDFProcessed(label, metrics.StatusCompletedNoOutput, time.Since(start))
	} else {
		for _, f := range out.Generated() {
			w.events.FileGenerated(ctx, doc.Path, task.ExtractorName, f)
		}
		w.events.Completed(ctx, doc.Path, task.ExtractorName)
		w.metrics.PDFProcessed(label, metrics.StatusCompleted, time.Since(start))
		logger.Info("task completed", slog.Int("records", out.Records), slog.Int("findings", out.Findings))
	}

	if err := w.tasks.Ack(ctx, d.ID); err != nil {
		logger.Error("failed to ack task", slog.Any("error", err))
	}
}

// drop acks a task that can never succeed.
func (w *Worker) drop(ctx context.Context, d *queue.Delivery, label string, start time.Time, logger *slog.Logger) {
	w.metrics.PDFProcessed(label, metrics.StatusError, time.Since(start))
	if err := w.tasks.Ack(ctx, d.ID); err != nil {
		logger.Error("failed to ack task", slog.Any("error", err))
	}
}

func (w *Worker) retryOrDeadLetter(
	ctx context.Context,
	d *queue.Delivery,
	task queue.Task,
	label string,
	cause error,
	start time.Time,
	logger *slog.Logger,
) {
	if d.Attempts >= w.cfg.MaxAttempts {
		w.deadLetter(ctx, d, task, label, cause.Error(), start, logger)
		return
	}

	logger.Warn("processing failed, requeueing",
		slog.Duration("backoff", w.cfg.RetryBackoff),
		slog.Any("error", cause))
	w.metrics.PDFProcessed(label, metrics.StatusError, time.Since(start))
	if err := w.tasks.Retry(ctx, d.ID, w.cfg.RetryBackoff, cause.Error()); err != nil {
		logger.Error("failed to requeue task", slog.Any("error", err))
	}
}

func (w *Worker) deadLetter(
	ctx context.Context,
	d *queue.Delivery,
	task queue.Task,
	label, cause string,
	start time.Time,
	logger *slog.Logger,
) {
	logger.Error("giving up on task", slog.String("cause", cause))

	if err := w.tasks.DeadLetter(ctx, d.ID, cause); err != nil {
		logger.Error("failed to dead-letter task", slog.Any("error", err))
		return
	}

	w.events.Failed(ctx, task.PDFPath, task.ExtractorName, cause)
	w.metrics.PDFProcessed(label, metrics.StatusDeadLettered, time.Since(start))

	if w.alerts == nil {
		return
	}
	err := w.alerts.DeadLettered(ctx, DeadLetter{
		TaskID:    d.ID,
		PDFPath:   task.PDFPath,
		Extractor: task.ExtractorName,
		Attempts:  d.Attempts,
		Cause:     cause,
	})
	if err != nil {
		logger.Warn("failed to send dead-letter alert", slog.Any("error", err))
	}
}
