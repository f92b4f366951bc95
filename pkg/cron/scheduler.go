// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/statement-extractor/internal/domain/queue"
	"github.com/FACorreiaa/statement-extractor/pkg/metrics"
)

// StatsSource reports queue gauges.
type StatsSource interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron    *cron.Cron
	queue   StatsSource
	metrics metrics.Sink
	spec    string
	logger  *slog.Logger

	lastDeadLetters int
}

// NewScheduler creates a scheduler that refreshes the queue gauges on spec,
// a cron expression that also accepts descriptors such as "@every 30s".
func NewScheduler(q StatsSource, sink metrics.Sink, spec string, logger *slog.Logger) *Scheduler {
	c := cron.New(
		cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if spec == "" {
		spec = "@every 30s"
	}

	return &Scheduler{
		cron:    c,
		queue:   q,
		metrics: sink,
		spec:    spec,
		logger:  logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.refreshQueueStats); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("spec", s.spec),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow refreshes the gauges synchronously.
func (s *Scheduler) RunNow() {
	s.refreshQueueStats()
}

func (s *Scheduler) refreshQueueStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := s.queue.Stats(ctx)
	if err != nil {
		s.logger.Warn("failed to read queue stats", slog.Any("error", err))
		return
	}
	s.metrics.QueueDepth(stats.Depth, stats.DeadLetters)

	if stats.DeadLetters > s.lastDeadLetters {
		s.logger.Warn("dead letters accumulated",
			slog.Int("dead_letters", stats.DeadLetters),
			slog.Int("new", stats.DeadLetters-s.lastDeadLetters),
		)
	}
	s.lastDeadLetters = stats.DeadLetters

	s.logger.Debug("queue stats refreshed",
		slog.Int("depth", stats.Depth),
		slog.Int("dead_letters", stats.DeadLetters),
	)
}
