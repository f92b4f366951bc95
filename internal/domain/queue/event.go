package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is a document lifecycle transition.
type EventType string

const (
	EventStarted           EventType = "started"
	EventCompleted         EventType = "completed"
	EventCompletedNoOutput EventType = "completed_no_output"
	EventError             EventType = "error"
	EventFileGenerated     EventType = "file_generated"
)

// Terminal reports whether no further events follow for the document.
func (t EventType) Terminal() bool {
	switch t {
	case EventCompleted, EventCompletedNoOutput, EventError:
		return true
	}
	return false
}

// StatusEvent describes one lifecycle transition of a document.
type StatusEvent struct {
	Type              EventType `json:"type"`
	PDFPath           string    `json:"pdf_path"`
	ExtractorName     string    `json:"extractor_name"`
	Timestamp         time.Time `json:"timestamp"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	GeneratedFilePath string    `json:"generated_file_path,omitempty"`
}

// MarshalJSON writes an empty extractor name as null.
func (e StatusEvent) MarshalJSON() ([]byte, error) {
	type alias StatusEvent
	var extractor *string
	if e.ExtractorName != "" {
		extractor = &e.ExtractorName
	}
	return json.Marshal(struct {
		alias
		ExtractorName *string `json:"extractor_name"`
	}{alias: alias(e), ExtractorName: extractor})
}

// DecodeEvent parses a status event body.
func DecodeEvent(body []byte) (StatusEvent, error) {
	var raw struct {
		Type              EventType `json:"type"`
		PDFPath           string    `json:"pdf_path"`
		ExtractorName     *string   `json:"extractor_name"`
		Timestamp         time.Time `json:"timestamp"`
		ErrorMessage      string    `json:"error_message"`
		GeneratedFilePath string    `json:"generated_file_path"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return StatusEvent{}, fmt.Errorf("failed to decode status event: %w", err)
	}
	if raw.Type == "" {
		return StatusEvent{}, fmt.Errorf("failed to decode status event: missing type")
	}

	ev := StatusEvent{
		Type:              raw.Type,
		PDFPath:           raw.PDFPath,
		Timestamp:         raw.Timestamp,
		ErrorMessage:      raw.ErrorMessage,
		GeneratedFilePath: raw.GeneratedFilePath,
	}
	if raw.ExtractorName != nil {
		ev.ExtractorName = *raw.ExtractorName
	}
	return ev, nil
}
