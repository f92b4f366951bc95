package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// Handler reacts to one status event. A handler error is logged; the event
// is still consumed.
type Handler func(ctx context.Context, ev StatusEvent) error

// OnFileGenerated wraps fn so it only sees file_generated events.
func OnFileGenerated(fn Handler) Handler {
	return func(ctx context.Context, ev StatusEvent) error {
		if ev.Type != EventFileGenerated {
			return nil
		}
		return fn(ctx, ev)
	}
}

// SubscriberConfig tunes a Subscriber. Zero values take defaults.
type SubscriberConfig struct {
	// Name identifies the durable cursor. Defaults to a random name, which
	// makes the subscription ephemeral: its cursor is dropped when Run
	// returns.
	Name string
	// FromStart starts a new cursor at the oldest stored event instead of
	// the current end of the stream.
	FromStart    bool
	BatchSize    int
	PollInterval time.Duration
	// Backoff is the fixed wait before reconnecting after a failure.
	Backoff time.Duration
}

// Subscriber follows the status stream until its context ends, reconnecting
// after any session failure.
type Subscriber struct {
	dial      Dialer
	cfg       SubscriberConfig
	ephemeral bool
	logger    *slog.Logger
}

// unregisterTimeout bounds the cursor cleanup of an ephemeral subscriber,
// which runs after the caller's context is already done.
const unregisterTimeout = 5 * time.Second

func NewSubscriber(dial Dialer, cfg SubscriberConfig, logger *slog.Logger) *Subscriber {
	ephemeral := cfg.Name == ""
	if ephemeral {
		cfg.Name = "status-" + uuid.NewString()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Second
	}
	return &Subscriber{dial: dial, cfg: cfg, ephemeral: ephemeral, logger: logger}
}

// Name returns the cursor name.
func (s *Subscriber) Name() string { return s.cfg.Name }

// Run consumes events with h. It returns nil once ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context, h Handler) error {
	err := retry.Do(ctx, retry.NewConstant(s.cfg.Backoff), func(ctx context.Context) error {
		err := s.session(ctx, h)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("status subscription lost, reconnecting",
			slog.String("subscriber", s.cfg.Name),
			slog.Duration("backoff", s.cfg.Backoff),
			slog.Any("error", err))
		return retry.RetryableError(err)
	})
	if s.ephemeral {
		s.unregister()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (s *Subscriber) session(ctx context.Context, h Handler) error {
	log, release, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := log.Register(ctx, s.cfg.Name, s.cfg.FromStart); err != nil {
		return err
	}
	s.logger.Info("status subscription started", slog.String("subscriber", s.cfg.Name))

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		batch, err := log.Fetch(ctx, s.cfg.Name, s.cfg.BatchSize)
		if err != nil {
			return err
		}

		for _, env := range batch {
			s.deliver(ctx, env, h)
			if err := log.Commit(ctx, s.cfg.Name, env.Seq); err != nil {
				return err
			}
		}

		if len(batch) == s.cfg.BatchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Subscriber) unregister() {
	ctx, cancel := context.WithTimeout(context.Background(), unregisterTimeout)
	defer cancel()

	log, release, err := s.dial(ctx)
	if err == nil {
		defer release()
		err = log.Unregister(ctx, s.cfg.Name)
	}
	if err != nil {
		s.logger.Warn("failed to drop ephemeral status cursor",
			slog.String("subscriber", s.cfg.Name),
			slog.Any("error", err))
	}
}

func (s *Subscriber) deliver(ctx context.Context, env Envelope, h Handler) {
	ev, err := DecodeEvent(env.Body)
	if err != nil {
		s.logger.Warn("skipping malformed status event",
			slog.Int64("seq", env.Seq), slog.Any("error", err))
		return
	}
	if err := h(ctx, ev); err != nil {
		s.logger.Error("status handler failed",
			slog.Int64("seq", env.Seq),
			slog.String("type", string(ev.Type)),
			slog.Any("error", err))
	}
}
