package alerting

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-extractor/internal/domain/pipeline"
)

type fakeSender struct {
	sent []*resend.SendEmailRequest
	err  error
}

func (f *fakeSender) Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &resend.SendEmailResponse{Id: "email-1"}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleDeadLetter() pipeline.DeadLetter {
	return pipeline.DeadLetter{
		TaskID:    "t-1",
		PDFPath:   "/in/<odd>.pdf",
		Extractor: "gdu",
		Attempts:  5,
		Cause:     "failed to read page 2",
	}
}

func TestNotifier_DeadLettered(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, "alerts@example.com", []string{"ops@example.com"}, quietLogger())

	require.NoError(t, n.DeadLettered(context.Background(), sampleDeadLetter()))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "alerts@example.com", msg.From)
	assert.Equal(t, []string{"ops@example.com"}, msg.To)
	assert.Contains(t, msg.Subject, "/in/<odd>.pdf")
	assert.Contains(t, msg.Html, "&lt;odd&gt;")
	assert.Contains(t, msg.Text, "Attempts: 5")
	assert.Contains(t, msg.Text, "failed to read page 2")
}

func TestNotifier_SendError(t *testing.T) {
	n := NewNotifier(&fakeSender{err: errors.New("401")}, "a@example.com", []string{"b@example.com"}, quietLogger())

	err := n.DeadLettered(context.Background(), sampleDeadLetter())
	assert.ErrorContains(t, err, "401")
}

func TestNewResendNotifier_Disabled(t *testing.T) {
	n := NewResendNotifier("", "a@example.com", []string{"b@example.com"}, quietLogger())
	assert.Nil(t, n)
	assert.NoError(t, n.DeadLettered(context.Background(), sampleDeadLetter()), "nil notifier drops alerts")

	assert.Nil(t, NewResendNotifier("re_key", "a@example.com", nil, quietLogger()))
}
