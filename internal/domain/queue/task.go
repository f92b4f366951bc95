package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedTask is returned when a task body cannot be decoded.
var ErrMalformedTask = errors.New("malformed task")

// Task is the unit of work placed on the task queue.
type Task struct {
	PDFPath       string `json:"pdf_path"`
	ExtractorName string `json:"extractor_name"`
}

// Encode serializes the task.
func (t Task) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// DecodeTask parses a task body. A task without a document path is
// malformed; the returned task still carries whatever fields did decode.
func DecodeTask(body []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(body, &t); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	if strings.TrimSpace(t.PDFPath) == "" {
		return t, fmt.Errorf("%w: missing pdf_path", ErrMalformedTask)
	}
	if strings.TrimSpace(t.ExtractorName) == "" {
		return t, fmt.Errorf("%w: missing extractor_name", ErrMalformedTask)
	}
	return t, nil
}

// Enqueue publishes t on q.
func Enqueue(ctx context.Context, q TaskQueue, t Task) (string, error) {
	body, err := t.Encode()
	if err != nil {
		return "", fmt.Errorf("failed to encode task: %w", err)
	}
	id, err := q.Publish(ctx, body)
	if err != nil {
		return "", fmt.Errorf("failed to publish task: %w", err)
	}
	return id, nil
}
