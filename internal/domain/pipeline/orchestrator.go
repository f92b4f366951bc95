package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
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

// State is where a submitted document ended up once Submit returned.
type State string

const (
	// StateEnqueued means a worker will finish the document; its terminal
	// state arrives on the status stream.
	StateEnqueued          State = "enqueued"
	StateCompleted         State = "completed"
	StateCompletedNoOutput State = "completed_no_output"
	StateError             State = "error"
)

// Result is the dispatch outcome of one document.
type Result struct {
	Path      string
	Extractor extraction.ID
	State     State
	TaskID    string
	Outcome   Outcome
	Err       error
}

// Accepted reports whether the document was enqueued or completed.
func (r Result) Accepted() bool { return r.State != StateError }

// Classifier picks the strategy for a document.
type Classifier interface {
	Classify(ctx context.Context, doc document.Document) extraction.ID
}

// RemoteExtractor calls the remote extraction capability.
type RemoteExtractor interface {
	Extract(ctx context.Context, doc document.Document) (extraction.Table, error)
}

// OrchestratorConfig tunes the dispatcher.
type OrchestratorConfig struct {
	// OutputDir receives remote-path artifacts. Empty uses DefaultOutputDir
	// of each document.
	OutputDir string
	// Parallelism bounds SubmitBatch. Defaults to 4.
	Parallelism int
}

// Orchestrator dispatches submitted documents: remote strategies run inline,
// local strategies are queued for workers.
type Orchestrator struct {
	classifier Classifier
	registry   *extraction.Registry
	remote     RemoteExtractor
	tasks      queue.TaskQueue
	processor  *Processor
	events     *queue.Publisher
	metrics    metrics.Sink
	cfg        OrchestratorConfig
	tracer     trace.Tracer
	logger     *slog.Logger
}

func NewOrchestrator(
	classifier Classifier,
	registry *extraction.Registry,
	remote RemoteExtractor,
	tasks queue.TaskQueue,
	processor *Processor,
	events *queue.Publisher,
	sink metrics.Sink,
	cfg OrchestratorConfig,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &Orchestrator{
		classifier: classifier,
		registry:   registry,
		remote:     remote,
		tasks:      tasks,
		processor:  processor,
		events:     events,
		metrics:    sink,
		cfg:        cfg,
		tracer:     otel.Tracer("github.com/FACorreiaa/statement-extractor/pipeline"),
		logger:     logger,
	}
}

// SubmitBatch expands directories into their PDFs and submits every
// document independently. It returns how many were accepted.
func (o *Orchestrator) SubmitBatch(ctx context.Context, paths []string) (int, []Result, error) {
	files, err := ExpandPaths(paths)
	if err != nil {
		return 0, nil, err
	}

	results := make([]Result, len(files))
	var mu sync.Mutex
	accepted := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Parallelism)
	for i, path := range files {
		g.Go(func() error {
			res := o.Submit(gctx, path)
			results[i] = res
			if res.Accepted() {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	o.logger.Info("batch submitted",
		slog.Int("documents", len(files)),
		slog.Int("accepted", accepted),
	)
	return accepted, results, nil
}

// Submit classifies and dispatches one document.
func (o *Orchestrator) Submit(ctx context.Context, path string) Result {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "pipeline.Submit", trace.WithAttributes(attribute.String("pdf_path", path)))
	defer span.End()

	doc, err := document.Open(path)
	if err != nil {
		res := o.fail(ctx, Result{Path: path}, err, start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res
	}

	id := o.classifier.Classify(ctx, doc)
	span.SetAttributes(attribute.String("extractor", string(id)))
	o.logger.Info("document classified",
		slog.String("pdf_path", doc.Path),
		slog.String("extractor", string(id)),
	)

	res := Result{Path: doc.Path, Extractor: id}
	if o.registry.IsRemote(id) {
		res = o.dispatchRemote(ctx, doc, res, start)
	} else {
		res = o.enqueue(ctx, doc, res, start)
	}

	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	return res
}

func (o *Orchestrator) dispatchRemote(ctx context.Context, doc document.Document, res Result, start time.Time) Result {
	extractor := string(res.Extractor)
	o.events.Started(ctx, doc.Path, extractor)

	if o.remote == nil {
		return o.fail(ctx, res, errors.New("no remote extraction capability configured"), start)
	}

	table, err := o.remote.Extract(ctx, doc)
	if err != nil {
		return o.fail(ctx, res, err, start)
	}

	dir := o.cfg.OutputDir
	if dir == "" {
		dir = DefaultOutputDir(doc.Path)
	}
	out, err := o.processor.Emit(ctx, doc, table, dir)
	if err != nil {
		return o.fail(ctx, res, err, start)
	}
	res.Outcome = out

	if out.Empty {
		o.logger.Info("no valid data, skipping output", slog.String("pdf_path", doc.Path))
		o.events.CompletedNoOutput(ctx, doc.Path, extractor)
		o.metrics.PDFDispatched(extractor, metrics.StatusCompletedNoOutput, time.Since(start))
		res.State = StateCompletedNoOutput
		return res
	}

	for _, f := range out.Generated() {
		o.events.FileGenerated(ctx, doc.Path, extractor, f)
	}
	o.events.Completed(ctx, doc.Path, extractor)
	o.metrics.PDFDispatched(extractor, metrics.StatusCompleted, time.Since(start))
	res.State = StateCompleted
	return res
}

func (o *Orchestrator) enqueue(ctx context.Context, doc document.Document, res Result, start time.Time) Result {
	extractor := string(res.Extractor)
	o.events.Started(ctx, doc.Path, extractor)

	id, err := queue.Enqueue(ctx, o.tasks, queue.Task{PDFPath: doc.Path, ExtractorName: extractor})
	if err != nil {
		return o.fail(ctx, res, err, start)
	}

	o.metrics.PDFEnqueued()
	o.metrics.PDFDispatched(extractor, metrics.StatusEnqueued, time.Since(start))
	o.logger.Info("document enqueued",
		slog.String("pdf_path", doc.Path),
		slog.String("extractor", extractor),
		slog.String("task_id", id),
	)
	res.State = StateEnqueued
	res.TaskID = id
	return res
}

func (o *Orchestrator) fail(ctx context.Context, res Result, err error, start time.Time) Result {
	extractor := string(res.Extractor)
	label := extractor
	if label == "" {
		label = "unknown"
	}

	o.logger.Error("document dispatch failed",
		slog.String("pdf_path", res.Path),
		slog.String("extractor", label),
		slog.Any("error", err),
	)
	o.events.Failed(ctx, res.Path, extractor, err.Error())
	o.metrics.PDFDispatched(label, metrics.StatusError, time.Since(start))

	res.State = StateError
	res.Err = fmt.Errorf("failed to process %s: %w", res.Path, err)
	return res
}
