package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Store provides durable operations (enqueue, claim, ack, fail, metrics,
// orphan recovery) against one queue table. Both queue_discovery and
// queue_profile are served by a Store instance naming their own table —
// the two queues are otherwise identical in shape and behavior.
type Store struct {
	db        *sql.DB
	tableName string
}

// NewStore returns a Store bound to the given schema-qualified table name,
// e.g. "sitescout.queue_discovery" or "sitescout.queue_profile".
func NewStore(db *sql.DB, tableName string) *Store {
	return &Store{db: db, tableName: tableName}
}

// uniqueViolation is the Postgres SQLSTATE for a unique-constraint violation.
const uniqueViolation = "23505"

// Enqueue inserts a job for companyID if no active (queued or processing)
// job already exists for it. Returns true if a new job was inserted.
func (s *Store) Enqueue(ctx context.Context, companyID string) (bool, error) {
	var existingID int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id FROM %s
		WHERE company_id = $1 AND status IN ('queued', 'processing')
		LIMIT 1
	`, s.tableName), companyID).Scan(&existingID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("checking active job: %w", err)
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (company_id) VALUES ($1)
	`, s.tableName), companyID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("enqueueing job: %w", err)
	}
	return true, nil
}

// Claim reserves up to limit queued jobs whose available_at has passed,
// marking them processing and locked by workerID. Uses a claim-then-update
// CTE so concurrent claimers never double-pick a row (SKIP LOCKED).
func (s *Store) Claim(ctx context.Context, workerID string, limit int) ([]*Job, error) {
	if limit < 1 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		WITH picked AS (
			SELECT id FROM %[1]s
			WHERE status = 'queued' AND available_at <= now()
			ORDER BY id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE %[1]s q
		SET status = 'processing', locked_at = now(), locked_by = $1, updated_at = now()
		FROM picked
		WHERE q.id = picked.id
		RETURNING q.id, q.company_id, q.status, q.attempts, q.max_attempts,
		          q.available_at, q.locked_at, q.locked_by, q.last_error,
		          q.created_at, q.updated_at
	`, s.tableName), workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("claiming jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j := &Job{}
		if err := rows.Scan(
			&j.ID, &j.CompanyID, &j.Status, &j.Attempts, &j.MaxAttempts,
			&j.AvailableAt, &j.LockedAt, &j.LockedBy, &j.LastError,
			&j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning claimed job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating claimed jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil, ErrNoJobsAvailable
	}
	return jobs, nil
}

// Ack marks a job done and clears its error.
func (s *Store) Ack(ctx context.Context, jobID int64) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET status = 'done', last_error = NULL, updated_at = now()
		WHERE id = $1
	`, s.tableName), jobID)
	if err != nil {
		return fmt.Errorf("acking job %d: %w", jobID, err)
	}
	return nil
}

// maxErrorLength bounds last_error to avoid pathological row bloat from a
// runaway stack trace or HTML error page.
const maxErrorLength = 5000

// Fail increments attempts and either requeues the job with a linear
// backoff delay or marks it permanently failed once max_attempts is hit.
func (s *Store) Fail(ctx context.Context, jobID int64, errMsg string) error {
	if len(errMsg) > maxErrorLength {
		errMsg = errMsg[:maxErrorLength]
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET
			attempts = attempts + 1,
			status = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'queued' END,
			available_at = CASE
				WHEN attempts + 1 >= max_attempts THEN now()
				ELSE now() + (attempts + 1) * interval '30 seconds'
			END,
			last_error = $2,
			locked_at = NULL,
			locked_by = NULL,
			updated_at = now()
		WHERE id = $1
	`, s.tableName), jobID, errMsg)
	if err != nil {
		return fmt.Errorf("failing job %d: %w", jobID, err)
	}
	return nil
}

// Heartbeat refreshes locked_at for a job still being worked, so orphan
// detection can distinguish a live worker from a crashed one.
func (s *Store) Heartbeat(ctx context.Context, jobID int64) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET locked_at = now() WHERE id = $1 AND status = 'processing'
	`, s.tableName), jobID)
	if err != nil {
		return fmt.Errorf("heartbeat for job %d: %w", jobID, err)
	}
	return nil
}

// GetMetrics returns per-status counts and the age of the oldest queued job.
func (s *Store) GetMetrics(ctx context.Context) (Metrics, error) {
	var m Metrics
	var oldestSeconds sql.NullFloat64

	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT
			COALESCE(SUM(CASE WHEN status = 'queued' THEN 1 ELSE 0 END), 0)::int,
			COALESCE(SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END), 0)::int,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)::int,
			EXTRACT(EPOCH FROM (now() - MIN(CASE WHEN status = 'queued' THEN created_at END)))
		FROM %s
	`, s.tableName)).Scan(&m.QueuedCount, &m.ProcessingCount, &m.FailedCount, &oldestSeconds)
	if err != nil {
		return Metrics{}, fmt.Errorf("querying metrics: %w", err)
	}
	if oldestSeconds.Valid {
		m.OldestJobAgeSeconds = &oldestSeconds.Float64
	}
	return m, nil
}

// RequeueStale resets processing jobs whose locked_at is older than
// threshold back to queued (or to failed once max_attempts is reached),
// incrementing their attempt count as if they had failed, but with
// available_at set to now rather than backed off. Used both by the
// periodic orphan sweep and the one-time startup sweep.
func (s *Store) RequeueStale(ctx context.Context, threshold time.Duration, reason string) ([]int64, error) {
	cutoff := time.Now().Add(-threshold)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET
			attempts = attempts + 1,
			status = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'queued' END,
			available_at = now(),
			last_error = $2,
			locked_at = NULL,
			locked_by = NULL,
			updated_at = now()
		WHERE status = 'processing' AND locked_at IS NOT NULL AND locked_at < $1
		RETURNING id
	`, s.tableName), cutoff, reason)
	if err != nil {
		return nil, fmt.Errorf("requeuing stale jobs: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning requeued job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
