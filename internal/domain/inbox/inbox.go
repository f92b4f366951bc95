// Package inbox watches a folder and submits every PDF dropped into it.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/FACorreiaa/statement-extractor/internal/domain/pipeline"
)

// DefaultSettle is how long a file must stay unchanged before it is
// submitted.
const DefaultSettle = 500 * time.Millisecond

// Submitter dispatches one document.
type Submitter interface {
	Submit(ctx context.Context, path string) pipeline.Result
}

// Config tunes a Watcher.
type Config struct {
	Dir string
	// Settle defaults to DefaultSettle.
	Settle time.Duration
	// Existing submits the PDFs already in Dir before watching.
	Existing bool
}

// Watcher submits PDFs created in a directory. Copies in progress emit a
// stream of write events; a path is submitted once they stop for Settle.
type Watcher struct {
	submit Submitter
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	wg      sync.WaitGroup
}

func New(submit Submitter, cfg Config, logger *slog.Logger) *Watcher {
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	return &Watcher{
		submit:  submit,
		cfg:     cfg,
		logger:  logger.With(slog.String("inbox", cfg.Dir)),
		pending: make(map[string]*time.Timer),
	}
}

// Run watches until ctx is cancelled. Submissions already scheduled when
// ctx ends are abandoned; ones in flight finish.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("failed to open inbox: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("inbox %s is not a directory", w.cfg.Dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}
	w.logger.Info("watching inbox", slog.Duration("settle", w.cfg.Settle))

	if w.cfg.Existing {
		paths, err := pipeline.ExpandPaths([]string{w.cfg.Dir})
		if err != nil {
			return err
		}
		for _, p := range paths {
			w.schedule(ctx, p)
		}
	}

	defer w.wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isPDF(event.Name) || !event.Has(fsnotify.Create|fsnotify.Write) {
				continue
			}
			w.logger.Debug("inbox event", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			w.schedule(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

// schedule (re)starts the settle timer of path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.cfg.Settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.cfg.Settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		if w.closed {
			w.mu.Unlock()
			return
		}
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()

		if ctx.Err() != nil {
			return
		}
		w.dispatch(ctx, path)
	})
}

func (w *Watcher) dispatch(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		w.logger.Debug("inbox file vanished before submission", slog.String("path", path))
		return
	}

	res := w.submit.Submit(ctx, path)
	if res.Err != nil {
		w.logger.Warn("inbox submission failed", slog.String("path", path), slog.Any("error", res.Err))
		return
	}
	w.logger.Info("inbox document submitted",
		slog.String("path", path),
		slog.String("extractor", string(res.Extractor)),
		slog.String("state", string(res.State)),
	)
}

func (w *Watcher) wait() {
	w.mu.Lock()
	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
