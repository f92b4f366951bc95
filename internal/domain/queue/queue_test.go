package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Tasks
// ============================================================================

func TestDecodeTask(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		want      Task
		malformed bool
	}{
		{
			name: "valid",
			body: `{"pdf_path":"/in/a.pdf","extractor_name":"tata"}`,
			want: Task{PDFPath: "/in/a.pdf", ExtractorName: "tata"},
		},
		{
			name:      "not json",
			body:      `pdf_path=/in/a.pdf`,
			malformed: true,
		},
		{
			name:      "missing path",
			body:      `{"extractor_name":"tata"}`,
			want:      Task{ExtractorName: "tata"},
			malformed: true,
		},
		{
			name:      "missing extractor keeps path",
			body:      `{"pdf_path":"/in/a.pdf"}`,
			want:      Task{PDFPath: "/in/a.pdf"},
			malformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTask([]byte(tt.body))
			if tt.malformed {
				assert.ErrorIs(t, err, ErrMalformedTask)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTaskEncode_WireFormat(t *testing.T) {
	body, err := Task{PDFPath: "/in/a.pdf", ExtractorName: "gdu"}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"pdf_path":"/in/a.pdf","extractor_name":"gdu"}`, string(body))
}

type recordingQueue struct {
	TaskQueue
	bodies [][]byte
}

func (q *recordingQueue) Publish(_ context.Context, body []byte) (string, error) {
	q.bodies = append(q.bodies, body)
	return "id-1", nil
}

func TestEnqueue(t *testing.T) {
	q := &recordingQueue{}

	id, err := Enqueue(context.Background(), q, Task{PDFPath: "/in/a.pdf", ExtractorName: "tata"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
	require.Len(t, q.bodies, 1)

	got, err := DecodeTask(q.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, "tata", got.ExtractorName)
}

// ============================================================================
// Status events
// ============================================================================

func TestStatusEvent_MarshalJSON(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	t.Run("null extractor", func(t *testing.T) {
		body, err := json.Marshal(StatusEvent{Type: EventStarted, PDFPath: "/in/a.pdf", Timestamp: ts})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"started","pdf_path":"/in/a.pdf","extractor_name":null,"timestamp":"2024-03-01T10:30:00Z"}`, string(body))
	})

	t.Run("optional fields", func(t *testing.T) {
		body, err := json.Marshal(StatusEvent{
			Type:              EventFileGenerated,
			PDFPath:           "/in/a.pdf",
			ExtractorName:     "tata",
			Timestamp:         ts,
			GeneratedFilePath: "/out/a_output.xlsx",
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"file_generated","pdf_path":"/in/a.pdf","extractor_name":"tata","timestamp":"2024-03-01T10:30:00Z","generated_file_path":"/out/a_output.xlsx"}`, string(body))
	})
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"error","pdf_path":"/in/a.pdf","extractor_name":null,"timestamp":"2024-03-01T10:30:00Z","error_message":"boom"}`))
	require.NoError(t, err)
	assert.Equal(t, EventError, ev.Type)
	assert.Empty(t, ev.ExtractorName)
	assert.Equal(t, "boom", ev.ErrorMessage)

	_, err = DecodeEvent([]byte(`{"pdf_path":"/in/a.pdf"}`))
	assert.Error(t, err)

	_, err = DecodeEvent([]byte(`{`))
	assert.Error(t, err)
}

func TestEventType_Terminal(t *testing.T) {
	assert.True(t, EventCompleted.Terminal())
	assert.True(t, EventCompletedNoOutput.Terminal())
	assert.True(t, EventError.Terminal())
	assert.False(t, EventStarted.Terminal())
	assert.False(t, EventFileGenerated.Terminal())
}
