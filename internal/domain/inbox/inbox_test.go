package inbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
	"github.com/FACorreiaa/statement-extractor/internal/domain/pipeline"
)

type recordingSubmitter struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingSubmitter) Submit(_ context.Context, path string) pipeline.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return pipeline.Result{Path: path, Extractor: extraction.Tata, State: pipeline.StateEnqueued}
}

func (r *recordingSubmitter) submitted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func startWatcher(t *testing.T, cfg Config) (*recordingSubmitter, context.CancelFunc, <-chan error) {
	t.Helper()
	sub := &recordingSubmitter{}
	w := New(sub, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(cancel)
	return sub, cancel, done
}

func TestWatcher_SubmitsNewPDFs(t *testing.T) {
	dir := t.TempDir()
	sub, cancel, done := startWatcher(t, Config{Dir: dir, Settle: 50 * time.Millisecond})
	time.Sleep(50 * time.Millisecond)

	pdf := filepath.Join(dir, "statement.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return len(sub.submitted()) == 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{pdf}, sub.submitted(), "repeated writes are submitted once")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_SubmitsExisting(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "old.PDF")
	require.NoError(t, os.WriteFile(existing, []byte("%PDF-1.4"), 0o644))

	sub, _, _ := startWatcher(t, Config{Dir: dir, Settle: 10 * time.Millisecond, Existing: true})

	assert.Eventually(t, func() bool {
		got := sub.submitted()
		return len(got) == 1 && got[0] == existing
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_MissingDir(t *testing.T) {
	w := New(&recordingSubmitter{}, Config{Dir: filepath.Join(t.TempDir(), "nope")}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := w.Run(context.Background())
	assert.ErrorContains(t, err, "failed to open inbox")
}

func TestIsPDF(t *testing.T) {
	assert.True(t, isPDF("/in/a.pdf"))
	assert.True(t, isPDF("B.PDF"))
	assert.False(t, isPDF("a.pdf.tmp"))
}
