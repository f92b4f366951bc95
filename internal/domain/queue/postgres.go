package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of *pgxpool.Pool the Postgres backends use.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresQueue is the shared-database task queue. Concurrent workers claim
// with SKIP LOCKED so a row is handed to at most one of them.
type PostgresQueue struct {
	pool       PgxPool
	queue      string
	visibility time.Duration
}

func NewPostgresQueue(pool PgxPool, queue string, visibility time.Duration) *PostgresQueue {
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	return &PostgresQueue{pool: pool, queue: queue, visibility: visibility}
}

func (q *PostgresQueue) Publish(ctx context.Context, body []byte) (string, error) {
	id := uuid.NewString()
	_, err := q.pool.Exec(ctx,
		`INSERT INTO processing_tasks (id, queue, payload) VALUES ($1, $2, $3)`,
		id, q.queue, body)
	if err != nil {
		return "", fmt.Errorf("failed to insert task: %w", err)
	}
	return id, nil
}

func (q *PostgresQueue) Claim(ctx context.Context) (*Delivery, error) {
	var d Delivery
	err := q.pool.QueryRow(ctx, `
		UPDATE processing_tasks
		SET visible_at = now() + $2::bigint * interval '1 millisecond',
			attempts = attempts + 1
		WHERE id = (
			SELECT id FROM processing_tasks
			WHERE queue = $1 AND visible_at <= now()
			ORDER BY visible_at, created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, payload, attempts, created_at`,
		q.queue, q.visibility.Milliseconds(),
	).Scan(&d.ID, &d.Body, &d.Attempts, &d.EnqueuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	return &d, nil
}

func (q *PostgresQueue) Ack(ctx context.Context, id string) error {
	if _, err := q.pool.Exec(ctx,
		`DELETE FROM processing_tasks WHERE id = $1 AND queue = $2`, id, q.queue); err != nil {
		return fmt.Errorf("failed to ack task %s: %w", id, err)
	}
	return nil
}

func (q *PostgresQueue) Retry(ctx context.Context, id string, delay time.Duration, cause string) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE processing_tasks
		SET visible_at = now() + $3::bigint * interval '1 millisecond', last_error = $4
		WHERE id = $1 AND queue = $2`,
		id, q.queue, delay.Milliseconds(), cause)
	if err != nil {
		return fmt.Errorf("failed to requeue task %s: %w", id, err)
	}
	return nil
}

func (q *PostgresQueue) DeadLetter(ctx context.Context, id string, cause string) error {
	_, err := q.pool.Exec(ctx, `
		WITH moved AS (
			DELETE FROM processing_tasks
			WHERE id = $1 AND queue = $2
			RETURNING id, queue, payload, attempts, created_at
		)
		INSERT INTO dead_letters (id, queue, payload, attempts, last_error, created_at)
		SELECT id, queue, payload, attempts, $3::text, created_at FROM moved`,
		id, q.queue, cause)
	if err != nil {
		return fmt.Errorf("failed to dead-letter task %s: %w", id, err)
	}
	return nil
}

func (q *PostgresQueue) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := q.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM processing_tasks WHERE queue = $1),
			(SELECT COUNT(*) FROM dead_letters WHERE queue = $1)`,
		q.queue,
	).Scan(&s.Depth, &s.DeadLetters)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read queue stats: %w", err)
	}
	return s, nil
}

// PostgresStatusLog is the shared-database status event stream.
type PostgresStatusLog struct {
	pool  PgxPool
	queue string
}

func NewPostgresStatusLog(pool PgxPool, queue string) *PostgresStatusLog {
	return &PostgresStatusLog{pool: pool, queue: queue}
}

// Append holds a per-queue advisory lock for the insert so sequence numbers
// commit in the order they are assigned. Without it a reader could advance
// its cursor past a seq whose transaction had not committed yet.
func (l *PostgresStatusLog) Append(ctx context.Context, body []byte) (int64, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin status append: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, l.queue); err != nil {
		return 0, fmt.Errorf("failed to lock status queue %s: %w", l.queue, err)
	}

	var seq int64
	err = tx.QueryRow(ctx,
		`INSERT INTO status_events (queue, payload) VALUES ($1, $2) RETURNING seq`,
		l.queue, body,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to append status event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit status event: %w", err)
	}
	return seq, nil
}

func (l *PostgresStatusLog) Register(ctx context.Context, subscriber string, fromStart bool) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO status_cursors (queue, subscriber, seq)
		SELECT $1::text, $2::text, CASE WHEN $3::boolean THEN 0 ELSE COALESCE(MAX(seq), 0) END
		FROM status_events WHERE queue = $1
		ON CONFLICT (queue, subscriber) DO NOTHING`,
		l.queue, subscriber, fromStart)
	if err != nil {
		return fmt.Errorf("failed to register subscriber %s: %w", subscriber, err)
	}
	return nil
}

func (l *PostgresStatusLog) Fetch(ctx context.Context, subscriber string, limit int) ([]Envelope, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT e.seq, e.payload
		FROM status_events e
		JOIN status_cursors c ON c.queue = e.queue AND c.subscriber = $2
		WHERE e.queue = $1 AND e.seq > c.seq
		ORDER BY e.seq
		LIMIT $3`,
		l.queue, subscriber, limit)
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

func (l *PostgresStatusLog) Commit(ctx context.Context, subscriber string, seq int64) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE status_cursors SET seq = GREATEST(seq, $3), updated_at = now()
		WHERE queue = $1 AND subscriber = $2`,
		l.queue, subscriber, seq)
	if err != nil {
		return fmt.Errorf("failed to commit cursor for %s: %w", subscriber, err)
	}
	return nil
}

func (l *PostgresStatusLog) Unregister(ctx context.Context, subscriber string) error {
	_, err := l.pool.Exec(ctx,
		`DELETE FROM status_cursors WHERE queue = $1 AND subscriber = $2`,
		l.queue, subscriber)
	if err != nil {
		return fmt.Errorf("failed to unregister subscriber %s: %w", subscriber, err)
	}
	return nil
}

// PostgresDialer returns a Dialer that opens a fresh pool per session, so a
// subscriber that lost its connection reconnects from scratch.
func PostgresDialer(dsn, queue string) Dialer {
	return func(ctx context.Context) (StatusLog, func(), error) {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to status database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to reach status database: %w", err)
		}
		return NewPostgresStatusLog(pool, queue), pool.Close, nil
	}
}
