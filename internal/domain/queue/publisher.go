package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Publisher emits status events. Publishing is fire-and-forget: failures are
// logged and never reach the caller, so a broken status bus cannot change a
// document's outcome.
type Publisher struct {
	log    StatusLog
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher creates a publisher over log. A nil log only logs events.
func NewPublisher(log StatusLog, logger *slog.Logger) *Publisher {
	return &Publisher{log: log, logger: logger, now: time.Now}
}

// Publish stamps ev (when it has no timestamp) and appends it.
func (p *Publisher) Publish(ctx context.Context, ev StatusEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = p.now().UTC()
	}

	attrs := []any{
		slog.String("type", string(ev.Type)),
		slog.String("pdf_path", ev.PDFPath),
		slog.String("extractor", ev.ExtractorName),
	}

	if p.log == nil {
		p.logger.Debug("status event (no bus)", attrs...)
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to encode status event", append(attrs, slog.Any("error", err))...)
		return
	}
	if _, err := p.log.Append(ctx, body); err != nil {
		p.logger.Error("failed to publish status event", append(attrs, slog.Any("error", err))...)
		return
	}
	p.logger.Debug("status event published", attrs...)
}

func (p *Publisher) Started(ctx context.Context, pdfPath, extractor string) {
	p.Publish(ctx, StatusEvent{Type: EventStarted, PDFPath: pdfPath, ExtractorName: extractor})
}

func (p *Publisher) Completed(ctx context.Context, pdfPath, extractor string) {
	p.Publish(ctx, StatusEvent{Type: EventCompleted, PDFPath: pdfPath, ExtractorName: extractor})
}

func (p *Publisher) CompletedNoOutput(ctx context.Context, pdfPath, extractor string) {
	p.Publish(ctx, StatusEvent{Type: EventCompletedNoOutput, PDFPath: pdfPath, ExtractorName: extractor})
}

func (p *Publisher) FileGenerated(ctx context.Context, pdfPath, extractor, generated string) {
	p.Publish(ctx, StatusEvent{
		Type:              EventFileGenerated,
		PDFPath:           pdfPath,
		ExtractorName:     extractor,
		GeneratedFilePath: generated,
	})
}

func (p *Publisher) Failed(ctx context.Context, pdfPath, extractor, message string) {
	p.Publish(ctx, StatusEvent{
		Type:          EventError,
		PDFPath:       pdfPath,
		ExtractorName: extractor,
		ErrorMessage:  message,
	})
}
