// Package alerting emails operators when a processing task is given up on.
package alerting

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"github.com/FACorreiaa/statement-extractor/internal/domain/pipeline"
)

// EmailSender is the part of the Resend client used here.
type EmailSender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Notifier sends dead-letter alerts through Resend.
type Notifier struct {
	emails EmailSender
	from   string
	to     []string
	logger *slog.Logger
}

// NewResendNotifier creates a notifier using the Resend API key. It returns
// nil when alerting is not configured; a nil *Notifier drops alerts.
func NewResendNotifier(apiKey, from string, to []string, logger *slog.Logger) *Notifier {
	if apiKey == "" || len(to) == 0 {
		logger.Warn("resend not configured, dead-letter alerts disabled")
		return nil
	}
	return NewNotifier(resend.NewClient(apiKey).Emails, from, to, logger)
}

func NewNotifier(emails EmailSender, from string, to []string, logger *slog.Logger) *Notifier {
	return &Notifier{emails: emails, from: from, to: to, logger: logger}
}

// DeadLettered implements pipeline.Alerter.
func (n *Notifier) DeadLettered(ctx context.Context, dl pipeline.DeadLetter) error {
	if n == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := n.emails.Send(&resend.SendEmailRequest{
		From:    n.from,
		To:      n.to,
		Subject: fmt.Sprintf("Statement extraction gave up on %s", dl.PDFPath),
		Html:    body(dl),
		Text:    textBody(dl),
	})
	if err != nil {
		return fmt.Errorf("failed to send dead-letter alert: %w", err)
	}

	n.logger.Info("dead-letter alert sent",
		slog.String("task_id", dl.TaskID),
		slog.String("email_id", resp.Id),
	)
	return nil
}

func textBody(dl pipeline.DeadLetter) string {
	return fmt.Sprintf(
		"Document: %s\nExtractor: %s\nTask: %s\nAttempts: %d\nLast error: %s\n",
		dl.PDFPath, dl.Extractor, dl.TaskID, dl.Attempts, dl.Cause,
	)
}

func body(dl pipeline.DeadLetter) string {
	return fmt.Sprintf(`<h2>Task moved to dead letters</h2>
<table>
  <tr><td>Document</td><td>%s</td></tr>
  <tr><td>Extractor</td><td>%s</td></tr>
  <tr><td>Task</td><td>%s</td></tr>
  <tr><td>Attempts</td><td>%d</td></tr>
  <tr><td>Last error</td><td><pre>%s</pre></td></tr>
</table>`,
		html.EscapeString(dl.PDFPath),
		html.EscapeString(dl.Extractor),
		html.EscapeString(dl.TaskID),
		dl.Attempts,
		html.EscapeString(dl.Cause),
	)
}
