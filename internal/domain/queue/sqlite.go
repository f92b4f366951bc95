package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteQueue is a visibility-timeout task queue stored in SQLite. Claimed
// rows are hidden for the visibility duration; a worker that dies without
// acking lets the task reappear.
type SQLiteQueue struct {
	db         *sql.DB
	queue      string
	visibility time.Duration
	now        func() time.Time
}

// NewSQLiteQueue creates a queue handle over an already migrated database.
func NewSQLiteQueue(db *sql.DB, queue string, visibility time.Duration) *SQLiteQueue {
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	return &SQLiteQueue{db: db, queue: queue, visibility: visibility, now: time.Now}
}

func (q *SQLiteQueue) Publish(ctx context.Context, body []byte) (string, error) {
	id := uuid.NewString()
	now := q.now().UnixMilli()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO processing_tasks (id, queue, payload, visible_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, q.queue, body, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert task: %w", err)
	}
	return id, nil
}

func (q *SQLiteQueue) Claim(ctx context.Context) (*Delivery, error) {
	now := q.now()
	row := q.db.QueryRowContext(ctx, `
		UPDATE processing_tasks
		SET visible_at = ?, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM processing_tasks
			WHERE queue = ? AND visible_at <= ?
			ORDER BY visible_at ASC, created_at ASC, rowid ASC
			LIMIT 1
		)
		RETURNING id, payload, attempts, created_at`,
		now.Add(q.visibility).UnixMilli(), q.queue, now.UnixMilli(),
	)

	var d Delivery
	var created int64
	err := row.Scan(&d.ID, &d.Body, &d.Attempts, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	d.EnqueuedAt = time.UnixMilli(created)
	return &d, nil
}

func (q *SQLiteQueue) Ack(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM processing_tasks WHERE id = ? AND queue = ?`, id, q.queue)
	if err != nil {
		return fmt.Errorf("failed to ack task %s: %w", id, err)
	}
	return nil
}

func (q *SQLiteQueue) Retry(ctx context.Context, id string, delay time.Duration, cause string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE processing_tasks SET visible_at = ?, last_error = ? WHERE id = ? AND queue = ?`,
		q.now().Add(delay).UnixMilli(), cause, id, q.queue)
	if err != nil {
		return fmt.Errorf("failed to requeue task %s: %w", id, err)
	}
	return nil
}

func (q *SQLiteQueue) DeadLetter(ctx context.Context, id string, cause string) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dead_letters (id, queue, payload, attempts, last_error, created_at, dead_at)
		SELECT id, queue, payload, attempts, ?, created_at, ?
		FROM processing_tasks WHERE id = ? AND queue = ?`,
		cause, q.now().UnixMilli(), id, q.queue)
	if err != nil {
		return fmt.Errorf("failed to dead-letter task %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM processing_tasks WHERE id = ? AND queue = ?`, id, q.queue); err != nil {
		return fmt.Errorf("failed to dead-letter task %s: %w", id, err)
	}

	return tx.Commit()
}

func (q *SQLiteQueue) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := q.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM processing_tasks WHERE queue = ?),
			(SELECT COUNT(*) FROM dead_letters WHERE queue = ?)`,
		q.queue, q.queue,
	).Scan(&s.Depth, &s.DeadLetters)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read queue stats: %w", err)
	}
	return s, nil
}

// SQLiteStatusLog stores status events and subscriber cursors in SQLite.
type SQLiteStatusLog struct {
	db    *sql.DB
	queue string
	now   func() time.Time
}

// NewSQLiteStatusLog creates a status log handle over an already migrated
// database.
func NewSQLiteStatusLog(db *sql.DB, queue string) *SQLiteStatusLog {
	return &SQLiteStatusLog{db: db, queue: queue, now: time.Now}
}

func (l *SQLiteStatusLog) Append(ctx context.Context, body []byte) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO status_events (queue, payload, published_at) VALUES (?, ?, ?)`,
		l.queue, body, l.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to append status event: %w", err)
	}
	return res.LastInsertId()
}

func (l *SQLiteStatusLog) Register(ctx context.Context, subscriber string, fromStart bool) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO status_cursors (queue, subscriber, seq, updated_at)
		SELECT ?, ?, CASE WHEN ? THEN 0 ELSE COALESCE(MAX(seq), 0) END, ?
		FROM status_events WHERE queue = ?
		ON CONFLICT (queue, subscriber) DO NOTHING`,
		l.queue, subscriber, fromStart, l.now().UnixMilli(), l.queue)
	if err != nil {
		return fmt.Errorf("failed to register subscriber %s: %w", subscriber, err)
	}
	return nil
}

func (l *SQLiteStatusLog) Fetch(ctx context.Context, subscriber string, limit int) ([]Envelope, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT e.seq, e.payload
		FROM status_events e
		JOIN status_cursors c ON c.queue = e.queue AND c.subscriber = ?
		WHERE e.queue = ? AND e.seq > c.seq
		ORDER BY e.seq ASC
		LIMIT ?`,
		subscriber, l.queue, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status events: %w", err)
	}
	defer rows.Close()

	var out []Envelope
	for rows.Next() {
		var e Envelope
		if err := rows.Scan(&e.Seq, &e.Body); err != nil {
			return nil, fmt.Errorf("failed to scan status event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *SQLiteStatusLog) Commit(ctx context.Context, subscriber string, seq int64) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE status_cursors SET seq = MAX(seq, ?), updated_at = ?
		WHERE queue = ? AND subscriber = ?`,
		seq, l.now().UnixMilli(), l.queue, subscriber)
	if err != nil {
		return fmt.Errorf("failed to commit cursor for %s: %w", subscriber, err)
	}
	return nil
}

func (l *SQLiteStatusLog) Unregister(ctx context.Context, subscriber string) error {
	_, err := l.db.ExecContext(ctx,
		`DELETE FROM status_cursors WHERE queue = ? AND subscriber = ?`,
		l.queue, subscriber)
	if err != nil {
		return fmt.Errorf("failed to unregister subscriber %s: %w", subscriber, err)
	}
	return nil
}

// SQLiteDialer returns a Dialer handing out the shared status log. Releasing
// a session leaves the database open; its owner closes it.
func SQLiteDialer(db *sql.DB, queue string) Dialer {
	return func(ctx context.Context) (StatusLog, func(), error) {
		if err := db.PingContext(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to reach status database: %w", err)
		}
		return NewSQLiteStatusLog(db, queue), func() {}, nil
	}
}
