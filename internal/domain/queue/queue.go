// Package queue carries ProcessingTasks from dispatchers to workers and
// StatusEvents from any component to any number of subscribers. Both are
// durable tables in SQLite (single host) or Postgres (shared).
package queue

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultTaskQueue is the queue name tasks are published to.
	DefaultTaskQueue = "pdf_processing_tasks"
	// DefaultStatusQueue is the status event stream name.
	DefaultStatusQueue = "pdf_status_updates"
)

// ErrQueueEmpty is returned by Claim when no task is visible.
var ErrQueueEmpty = errors.New("queue empty")

// Delivery is a claimed task. It stays invisible to other workers until it
// is acked, retried, dead-lettered or its visibility timeout expires.
type Delivery struct {
	ID         string
	Body       []byte
	Attempts   int
	EnqueuedAt time.Time
}

// Stats are queue gauges.
type Stats struct {
	Depth       int
	DeadLetters int
}

// TaskQueue is a durable at-least-once work queue with manual
// acknowledgment.
type TaskQueue interface {
	// Publish stores body and returns its task id.
	Publish(ctx context.Context, body []byte) (string, error)
	// Claim returns the oldest visible task or ErrQueueEmpty.
	Claim(ctx context.Context) (*Delivery, error)
	// Ack removes a finished (or permanently dropped) task.
	Ack(ctx context.Context, id string) error
	// Retry makes a task visible again after delay and records why.
	Retry(ctx context.Context, id string, delay time.Duration, cause string) error
	// DeadLetter moves a task out of the queue for inspection.
	DeadLetter(ctx context.Context, id string, cause string) error
	Stats(ctx context.Context) (Stats, error)
}

// Envelope is one stored status event.
type Envelope struct {
	Seq  int64
	Body []byte
}

// StatusLog is an append-only event stream with a durable read position per
// subscriber.
type StatusLog interface {
	Append(ctx context.Context, body []byte) (int64, error)
	// Register creates the subscriber's cursor if it does not exist yet. New
	// cursors start at the beginning of the stream when fromStart is set, at
	// its current end otherwise.
	Register(ctx context.Context, subscriber string, fromStart bool) error
	// Fetch returns up to limit events after the subscriber's cursor.
	Fetch(ctx context.Context, subscriber string, limit int) ([]Envelope, error)
	// Commit advances the subscriber's cursor to seq. Cursors never move
	// backwards.
	Commit(ctx context.Context, subscriber string, seq int64) error
	// Unregister drops the subscriber's cursor.
	Unregister(ctx context.Context, subscriber string) error
}

// Dialer opens a StatusLog session. The returned func releases it.
type Dialer func(ctx context.Context) (StatusLog, func(), error)
