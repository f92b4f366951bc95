// Package pipeline runs documents from classification to artifacts: the
// Orchestrator dispatches each submitted PDF, the Worker consumes queued
// tasks, and both hand extracted tables to the Processor.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/FACorreiaa/statement-extractor/internal/domain/document"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
	"github.com/FACorreiaa/statement-extractor/internal/domain/normalizer"
	"github.com/FACorreiaa/statement-extractor/internal/domain/spreadsheet"
	"github.com/FACorreiaa/statement-extractor/internal/domain/validator"
	"github.com/FACorreiaa/statement-extractor/pkg/storage"
)

// Outcome describes what the Processor produced for one document.
type Outcome struct {
	// Empty is set when the table had no referenced rows; nothing was
	// written.
	Empty       bool
	Records     int
	Spreadsheet string
	Report      string
	// CSV is set when the sidecar export is enabled.
	CSV      string
	Findings int
}

// Generated lists the produced files in the order they were written.
func (o Outcome) Generated() []string {
	var files []string
	for _, f := range []string{o.Spreadsheet, o.Report, o.CSV} {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

// Processor turns an extracted table into the spreadsheet, its audit report
// and the optional CSV sidecar.
type Processor struct {
	registry *extraction.Registry
	text     document.TextExtractor
	writer   *spreadsheet.Writer
	storage  storage.Factory
	csv      bool
	logger   *slog.Logger
}

func NewProcessor(
	registry *extraction.Registry,
	text document.TextExtractor,
	factory storage.Factory,
	csv bool,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		registry: registry,
		text:     text,
		writer:   spreadsheet.NewWriter(),
		storage:  factory,
		csv:      csv,
		logger:   logger,
	}
}

// Extract runs the local strategy id over every page of doc.
func (p *Processor) Extract(ctx context.Context, doc document.Document, id extraction.ID) (extraction.Table, error) {
	strategy, err := p.registry.Strategy(id)
	if err != nil {
		return extraction.Table{}, err
	}
	text, err := p.text.Text(ctx, doc, 0)
	if err != nil {
		return extraction.Table{}, fmt.Errorf("failed to read %s: %w", doc.Name(), err)
	}

	table := strategy.Extract(text)
	if table.Skipped > 0 {
		p.logger.Debug("lines skipped during extraction",
			slog.String("pdf_path", doc.Path),
			slog.String("extractor", string(id)),
			slog.Int("skipped", table.Skipped),
		)
	}
	return table, nil
}

// Run extracts doc with id and emits its artifacts into dir.
func (p *Processor) Run(ctx context.Context, doc document.Document, id extraction.ID, dir string) (Outcome, error) {
	table, err := p.Extract(ctx, doc, id)
	if err != nil {
		return Outcome{}, err
	}
	return p.Emit(ctx, doc, table, dir)
}

// Emit normalizes table and writes the artifacts for doc into dir. The
// report validates the spreadsheet as read back from storage, not the
// in-memory table.
func (p *Processor) Emit(ctx context.Context, doc document.Document, table extraction.Table, dir string) (Outcome, error) {
	normalized := normalizer.Normalize(table)
	if normalized.Empty() {
		return Outcome{Empty: true}, nil
	}

	store, err := p.storage(dir)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to open output directory: %w", err)
	}

	stem := doc.Stem()
	out := Outcome{Records: len(normalized.DataRows())}

	buf, err := p.writer.Encode(normalized)
	if err != nil {
		return Outcome{}, err
	}
	sheet, err := store.Put(ctx, spreadsheet.OutputName(stem), buf)
	if err != nil {
		return Outcome{}, err
	}
	out.Spreadsheet = sheet.Path

	written, err := p.readBack(ctx, store, spreadsheet.OutputName(stem))
	if err != nil {
		return Outcome{}, err
	}
	report := validator.Validate(written, doc.Name())
	out.Findings = len(report.Findings)

	info, err := store.Put(ctx, validator.ReportName(stem), strings.NewReader(report.String()+"\n"))
	if err != nil {
		return Outcome{}, err
	}
	out.Report = info.Path

	if p.csv {
		csvBuf, err := spreadsheet.EncodeCSV(normalized)
		if err != nil {
			return Outcome{}, err
		}
		info, err := store.Put(ctx, spreadsheet.CSVName(stem), csvBuf)
		if err != nil {
			return Outcome{}, err
		}
		out.CSV = info.Path
	}

	p.logger.Info("artifacts written",
		slog.String("pdf_path", doc.Path),
		slog.String("spreadsheet", out.Spreadsheet),
		slog.Int("records", out.Records),
		slog.Int("findings", out.Findings),
	)
	return out, nil
}

func (p *Processor) readBack(ctx context.Context, store storage.Storage, name string) (normalizer.Table, error) {
	rc, err := store.Open(ctx, name)
	if err != nil {
		return normalizer.Table{}, err
	}
	defer rc.Close()

	return spreadsheet.Read(rc)
}

// DefaultOutputDir is where a worker writes artifacts for pdfPath: an
// "output" folder next to the folder holding the document.
func DefaultOutputDir(pdfPath string) string {
	return filepath.Join(filepath.Dir(filepath.Dir(pdfPath)), "output")
}

// ExpandPaths replaces directories with the .pdf files directly inside them
// and keeps file paths as given. The result is sorted per directory.
func ExpandPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			// Missing files are reported per document.
			out = append(out, p)
			continue
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", p, err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				out = append(out, filepath.Join(p, e.Name()))
			}
		}
	}
	return out, nil
}
