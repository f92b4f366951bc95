package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
	"github.com/FACorreiaa/statement-extractor/internal/domain/queue"
	"github.com/FACorreiaa/statement-extractor/internal/domain/spreadsheet"
	"github.com/FACorreiaa/statement-extractor/internal/domain/validator"
	"github.com/FACorreiaa/statement-extractor/pkg/db"
	"github.com/FACorreiaa/statement-extractor/pkg/metrics"
	"github.com/FACorreiaa/statement-extractor/pkg/storage"
)

const gduPage = "123456-7 Fact 1000,00 10,00 5,00\n" +
	"234567-8 Fact 200,00 0,00 2,00\n" +
	"34567-1 Fact 50,50 1,00 0,50"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeText serves page text by file name; unknown names fail.
type fakeText struct {
	pages map[string]string
}

func (f fakeText) Text(_ context.Context, doc document.Document, _ int) (document.Text, error) {
	page, ok := f.pages[doc.Name()]
	if !ok {
		return document.Text{}, errors.New("corrupt pdf")
	}
	return document.NewText(page), nil
}

type fixedClassifier extraction.ID

func (c fixedClassifier) Classify(context.Context, document.Document) extraction.ID {
	return extraction.ID(c)
}

type fakeRemote struct {
	table extraction.Table
	err   error
	calls int
}

func (f *fakeRemote) Extract(context.Context, document.Document) (extraction.Table, error) {
	f.calls++
	return f.table, f.err
}

type memLog struct {
	queue.StatusLog
	mu     sync.Mutex
	events []queue.StatusEvent
}

func (m *memLog) Append(_ context.Context, body []byte) (int64, error) {
	ev, err := queue.DecodeEvent(body)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return int64(len(m.events)), nil
}

func (m *memLog) types() []queue.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []queue.EventType
	for _, ev := range m.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingSink struct {
	metrics.Nop
	mu         sync.Mutex
	enqueued   int
	dispatched map[string]int
	processed  map[string]int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{dispatched: map[string]int{}, processed: map[string]int{}}
}

func (r *recordingSink) PDFEnqueued() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueued++
}

func (r *recordingSink) PDFDispatched(extractor, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatched[extractor+"/"+status]++
}

func (r *recordingSink) PDFProcessed(extractor, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed[extractor+"/"+status]++
}

type recordingAlerter struct {
	alerts []DeadLetter
}

func (r *recordingAlerter) DeadLettered(_ context.Context, dl DeadLetter) error {
	r.alerts = append(r.alerts, dl)
	return nil
}

// writePDF creates <root>/in/<name> and returns its path.
func writePDF(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, "in")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	return path
}

func newTaskQueue(t *testing.T) *queue.SQLiteQueue {
	t.Helper()
	sqlDB, err := db.OpenSQLite(":memory:", quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return queue.NewSQLiteQueue(sqlDB, queue.DefaultTaskQueue, time.Minute)
}

func newProcessor(pages map[string]string, csv bool) *Processor {
	return NewProcessor(extraction.NewRegistry(), fakeText{pages: pages}, storage.LocalFactory(), csv, quietLogger())
}

// ============================================================================
// Processor
// ============================================================================

func TestProcessor_Run(t *testing.T) {
	root := t.TempDir()
	path := writePDF(t, root, "gdu.pdf")
	doc, err := document.Open(path)
	require.NoError(t, err)

	p := newProcessor(map[string]string{"gdu.pdf": gduPage}, false)
	out, err := p.Run(context.Background(), doc, extraction.GDU, filepath.Join(root, "output"))
	require.NoError(t, err)

	assert.False(t, out.Empty)
	assert.Equal(t, 3, out.Records)
	assert.Zero(t, out.Findings)
	assert.Equal(t, filepath.Join(root, "output", "gdu_output.xlsx"), out.Spreadsheet)
	assert.Equal(t, filepath.Join(root, "output", "gdu_validation.txt"), out.Report)
	assert.Empty(t, out.CSV)

	report, err := os.ReadFile(out.Report)
	require.NoError(t, err)
	assert.Equal(t, "[Validación de gdu.pdf]\nSin advertencias detectadas.\n", string(report))

	f, err := os.Open(out.Spreadsheet)
	require.NoError(t, err)
	defer f.Close()
	table, err := spreadsheet.Read(f)
	require.NoError(t, err)
	require.Len(t, table.Rows, 4)
	assert.Equal(t, "A-0034567", table.Rows[0].Reference())
	assert.True(t, table.Rows[3].IsTotal())
	assert.Equal(t, "1250,50", table.Rows[3][extraction.ColumnAmount])
}

func TestProcessor_EmitEmpty(t *testing.T) {
	root := t.TempDir()
	doc := document.Document{Path: filepath.Join(root, "in", "empty.pdf")}
	p := newProcessor(nil, true)

	out, err := p.Emit(context.Background(), doc, extraction.Table{
		Columns: []extraction.Column{extraction.ColumnReference, extraction.ColumnAmount},
		Records: []extraction.RawRecord{{Reference: "no digits", Amount: extraction.Formatted("1,00")}},
	}, filepath.Join(root, "output"))
	require.NoError(t, err)

	assert.True(t, out.Empty)
	assert.Empty(t, out.Generated())
	_, err = os.Stat(filepath.Join(root, "output"))
	assert.True(t, os.IsNotExist(err), "nothing is written for an empty table")
}

func TestProcessor_CSVSidecar(t *testing.T) {
	root := t.TempDir()
	path := writePDF(t, root, "gdu.pdf")
	doc, err := document.Open(path)
	require.NoError(t, err)

	p := newProcessor(map[string]string{"gdu.pdf": gduPage}, true)
	out, err := p.Run(context.Background(), doc, extraction.GDU, filepath.Join(root, "output"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "output", spreadsheet.CSVName("gdu")), out.CSV)
	assert.Equal(t, []string{out.Spreadsheet, out.Report, out.CSV}, out.Generated())
	assert.FileExists(t, out.CSV)
}

func TestProcessor_ExtractErrors(t *testing.T) {
	p := newProcessor(map[string]string{}, false)
	doc := document.Document{Path: "/in/x.pdf", Content: []byte("x")}

	_, err := p.Extract(context.Background(), doc, extraction.ID("acme"))
	assert.ErrorIs(t, err, extraction.ErrUnknownExtractor)

	_, err = p.Extract(context.Background(), doc, extraction.Tata)
	assert.ErrorContains(t, err, "corrupt pdf")
}

func TestDefaultOutputDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/data", "output"), DefaultOutputDir("/data/in/a.pdf"))
}

func TestExpandPaths(t *testing.T) {
	root := t.TempDir()
	a := writePDF(t, root, "a.pdf")
	b := writePDF(t, root, "B.PDF")
	require.NoError(t, os.WriteFile(filepath.Join(root, "in", "notes.txt"), nil, 0o644))
	missing := filepath.Join(root, "missing.pdf")

	got, err := ExpandPaths([]string{filepath.Join(root, "in"), missing, a})
	require.NoError(t, err)
	assert.Equal(t, []string{b, a, missing, a}, got)
}

// ============================================================================
// Orchestrator
// ============================================================================

type orchestratorFixture struct {
	orch   *Orchestrator
	tasks  *queue.SQLiteQueue
	log    *memLog
	sink   *recordingSink
	remote *fakeRemote
}

func newOrchestrator(t *testing.T, id extraction.ID, remote *fakeRemote, outputDir string) orchestratorFixture {
	t.Helper()
	f := orchestratorFixture{
		tasks:  newTaskQueue(t),
		log:    &memLog{},
		sink:   newRecordingSink(),
		remote: remote,
	}
	f.orch = NewOrchestrator(
		fixedClassifier(id),
		extraction.NewRegistry(),
		remote,
		f.tasks,
		newProcessor(nil, false),
		queue.NewPublisher(f.log, quietLogger()),
		f.sink,
		OrchestratorConfig{OutputDir: outputDir},
		quietLogger(),
	)
	return f
}

func TestOrchestrator_EnqueuesLocal(t *testing.T) {
	ctx := context.Background()
	path := writePDF(t, t.TempDir(), "tata.pdf")
	f := newOrchestrator(t, extraction.Tata, &fakeRemote{}, "")

	res := f.orch.Submit(ctx, path)

	require.NoError(t, res.Err)
	assert.Equal(t, StateEnqueued, res.State)
	assert.NotEmpty(t, res.TaskID)
	assert.Equal(t, []queue.EventType{queue.EventStarted}, f.log.types())
	assert.Equal(t, 1, f.sink.enqueued)
	assert.Zero(t, f.remote.calls)

	d, err := f.tasks.Claim(ctx)
	require.NoError(t, err)
	task, err := queue.DecodeTask(d.Body)
	require.NoError(t, err)
	assert.Equal(t, queue.Task{PDFPath: path, ExtractorName: "tata"}, task)
}

func TestOrchestrator_RemoteCompletes(t *testing.T) {
	root := t.TempDir()
	path := writePDF(t, root, "henderson.pdf")
	remote := &fakeRemote{table: extraction.Table{
		Columns: []extraction.Column{extraction.ColumnReference, extraction.ColumnAmount},
		Records: []extraction.RawRecord{
			{Reference: "654321", Amount: extraction.Formatted("10,00")},
			{Reference: "123456", Amount: extraction.Formatted("1.234,56")},
		},
	}}
	out := filepath.Join(root, "results")
	f := newOrchestrator(t, extraction.Henderson, remote, out)

	res := f.orch.Submit(context.Background(), path)

	require.NoError(t, res.Err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, []queue.EventType{
		queue.EventStarted, queue.EventFileGenerated, queue.EventFileGenerated, queue.EventCompleted,
	}, f.log.types())
	assert.Equal(t, filepath.Join(out, "henderson_output.xlsx"), f.log.events[1].GeneratedFilePath)
	assert.Equal(t, filepath.Join(out, validator.ReportName("henderson")), f.log.events[2].GeneratedFilePath)
	assert.Equal(t, 1, f.sink.dispatched["henderson/"+metrics.StatusCompleted])

	stats, err := f.tasks.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Depth, "remote documents are never queued")
}

func TestOrchestrator_RemoteNoOutput(t *testing.T) {
	root := t.TempDir()
	path := writePDF(t, root, "empty.pdf")
	f := newOrchestrator(t, extraction.Henderson, &fakeRemote{}, filepath.Join(root, "results"))

	res := f.orch.Submit(context.Background(), path)

	require.NoError(t, res.Err)
	assert.Equal(t, StateCompletedNoOutput, res.State)
	assert.True(t, res.Accepted())
	assert.Equal(t, []queue.EventType{queue.EventStarted, queue.EventCompletedNoOutput}, f.log.types())
	assert.NoDirExists(t, filepath.Join(root, "results"))
}

func TestOrchestrator_RemoteFails(t *testing.T) {
	path := writePDF(t, t.TempDir(), "henderson.pdf")
	f := newOrchestrator(t, extraction.Henderson, &fakeRemote{err: errors.New("connection refused")}, "")

	res := f.orch.Submit(context.Background(), path)

	assert.Equal(t, StateError, res.State)
	assert.ErrorContains(t, res.Err, "connection refused")
	assert.Equal(t, []queue.EventType{queue.EventStarted, queue.EventError}, f.log.types())
	assert.Equal(t, "connection refused", f.log.events[1].ErrorMessage)
	assert.Equal(t, 1, f.sink.dispatched["henderson/"+metrics.StatusError])
}

func TestOrchestrator_MissingDocument(t *testing.T) {
	f := newOrchestrator(t, extraction.Tata, &fakeRemote{}, "")
	missing := filepath.Join(t.TempDir(), "missing.pdf")

	res := f.orch.Submit(context.Background(), missing)

	assert.ErrorIs(t, res.Err, document.ErrDocumentNotFound)
	assert.Equal(t, []queue.EventType{queue.EventError}, f.log.types())
	assert.Empty(t, f.log.events[0].ExtractorName)
	assert.Equal(t, 1, f.sink.dispatched["unknown/"+metrics.StatusError])
}

func TestOrchestrator_SubmitBatch(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		writePDF(t, root, name)
	}
	f := newOrchestrator(t, extraction.Polakof, &fakeRemote{}, "")

	accepted, results, err := f.orch.SubmitBatch(context.Background(),
		[]string{filepath.Join(root, "in"), filepath.Join(root, "missing.pdf")})
	require.NoError(t, err)

	assert.Equal(t, 3, accepted)
	require.Len(t, results, 4)
	assert.Equal(t, StateError, results[3].State)

	stats, err := f.tasks.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Depth)
}

// ============================================================================
// Worker
// ============================================================================

type workerFixture struct {
	worker *Worker
	tasks  *queue.SQLiteQueue
	log    *memLog
	sink   *recordingSink
	alerts *recordingAlerter
}

func newWorker(t *testing.T, pages map[string]string, cfg WorkerConfig) workerFixture {
	t.Helper()
	f := workerFixture{
		tasks:  newTaskQueue(t),
		log:    &memLog{},
		sink:   newRecordingSink(),
		alerts: &recordingAlerter{},
	}
	f.worker = NewWorker(
		f.tasks,
		extraction.NewRegistry(),
		newProcessor(pages, false),
		queue.NewPublisher(f.log, quietLogger()),
		f.alerts,
		f.sink,
		cfg,
		quietLogger(),
	)
	return f
}

func (f workerFixture) enqueue(t *testing.T, task queue.Task) {
	t.Helper()
	_, err := queue.Enqueue(context.Background(), f.tasks, task)
	require.NoError(t, err)
}

func (f workerFixture) stats(t *testing.T) queue.Stats {
	t.Helper()
	s, err := f.tasks.Stats(context.Background())
	require.NoError(t, err)
	return s
}

func TestWorker_ProcessesTask(t *testing.T) {
	root := t.TempDir()
	path := writePDF(t, root, "gdu.pdf")
	f := newWorker(t, map[string]string{"gdu.pdf": gduPage}, WorkerConfig{})
	f.enqueue(t, queue.Task{PDFPath: path, ExtractorName: "extract_GDU"})

	claimed, err := f.worker.ProcessOne(context.Background())
	require.NoError(t, err)
	require.True(t, claimed)

	assert.Equal(t, []queue.EventType{queue.EventFileGenerated, queue.EventFileGenerated, queue.EventCompleted}, f.log.types())
	assert.Equal(t, filepath.Join(root, "output", "gdu_output.xlsx"), f.log.events[0].GeneratedFilePath)
	assert.FileExists(t, filepath.Join(root, "output", "gdu_validation.txt"))
	assert.Equal(t, 1, f.sink.processed["gdu/"+metrics.StatusCompleted])
	assert.Equal(t, queue.Stats{}, f.stats(t))
}

func TestWorker_EmptyQueue(t *testing.T) {
	f := newWorker(t, nil, WorkerConfig{})

	claimed, err := f.worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestWorker_DropsUnprocessableTasks(t *testing.T) {
	root := t.TempDir()
	existing := writePDF(t, root, "a.pdf")

	tests := []struct {
		name       string
		body       string
		wantEvents []queue.EventType
	}{
		{name: "malformed body", body: `not json`},
		{
			name:       "missing extractor",
			body:       `{"pdf_path":"` + existing + `"}`,
			wantEvents: []queue.EventType{queue.EventError},
		},
		{
			name:       "unknown extractor",
			body:       `{"pdf_path":"` + existing + `","extractor_name":"extract_acme"}`,
			wantEvents: []queue.EventType{queue.EventError},
		},
		{
			name:       "remote extractor",
			body:       `{"pdf_path":"` + existing + `","extractor_name":"henderson"}`,
			wantEvents: []queue.EventType{queue.EventError},
		},
		{
			name:       "missing file",
			body:       `{"pdf_path":"` + filepath.Join(root, "gone.pdf") + `","extractor_name":"tata"}`,
			wantEvents: []queue.EventType{queue.EventError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWorker(t, nil, WorkerConfig{})
			_, err := f.tasks.Publish(context.Background(), []byte(tt.body))
			require.NoError(t, err)

			claimed, err := f.worker.ProcessOne(context.Background())
			require.NoError(t, err)
			assert.True(t, claimed)

			assert.Equal(t, tt.wantEvents, f.log.types())
			assert.Equal(t, queue.Stats{}, f.stats(t), "dropped tasks are acked, not retried")
			assert.Empty(t, f.alerts.alerts)
		})
	}
}

func TestWorker_RetriesThenDeadLetters(t *testing.T) {
	path := writePDF(t, t.TempDir(), "broken.pdf")
	f := newWorker(t, map[string]string{}, WorkerConfig{MaxAttempts: 2, RetryBackoff: time.Millisecond})
	f.enqueue(t, queue.Task{PDFPath: path, ExtractorName: "tata"})
	ctx := context.Background()

	claimed, err := f.worker.ProcessOne(ctx)
	require.NoError(t, err)
	require.True(t, claimed)

	assert.Empty(t, f.log.types(), "a retry publishes no event")
	assert.Equal(t, queue.Stats{Depth: 1}, f.stats(t))
	assert.Equal(t, 1, f.sink.processed["tata/"+metrics.StatusError])

	time.Sleep(10 * time.Millisecond)
	claimed, err = f.worker.ProcessOne(ctx)
	require.NoError(t, err)
	require.True(t, claimed)

	assert.Equal(t, queue.Stats{DeadLetters: 1}, f.stats(t))
	assert.Equal(t, []queue.EventType{queue.EventError}, f.log.types())
	assert.Contains(t, f.log.events[0].ErrorMessage, "corrupt pdf")
	assert.Equal(t, 1, f.sink.processed["tata/"+metrics.StatusDeadLettered])
	require.Len(t, f.alerts.alerts, 1)
	assert.Equal(t, 2, f.alerts.alerts[0].Attempts)
	assert.Equal(t, path, f.alerts.alerts[0].PDFPath)
}

func TestWorker_NoOutput(t *testing.T) {
	path := writePDF(t, t.TempDir(), "blank.pdf")
	f := newWorker(t, map[string]string{"blank.pdf": "nothing to see"}, WorkerConfig{})
	f.enqueue(t, queue.Task{PDFPath: path, ExtractorName: "macro_ops"})

	_, err := f.worker.ProcessOne(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []queue.EventType{queue.EventCompletedNoOutput}, f.log.types())
	assert.Equal(t, 1, f.sink.processed["macro_ops/"+metrics.StatusCompletedNoOutput])
	assert.Equal(t, queue.Stats{}, f.stats(t))
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	path := writePDF(t, root, "gdu.pdf")
	f := newWorker(t, map[string]string{"gdu.pdf": gduPage}, WorkerConfig{PollInterval: 5 * time.Millisecond, Concurrency: 2})
	f.enqueue(t, queue.Task{PDFPath: path, ExtractorName: "gdu"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx) }()

	assert.Eventually(t, func() bool {
		types := f.log.types()
		return len(types) > 0 && types[len(types)-1] == queue.EventCompleted
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
