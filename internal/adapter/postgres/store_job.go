package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/Herald/internal/domain/job"
)

const jobColumns = `id, kind, reference, status, total, sent, failed, attempts, error, created_at, updated_at, finished_at`

func scanJob(row scannable) (job.Job, error) {
	var j job.Job
	err := row.Scan(&j.ID, &j.Kind, &j.Reference, &j.Status, &j.Total, &j.Sent, &j.Failed,
		&j.Attempts, &j.Error, &j.CreatedAt, &j.UpdatedAt, &j.FinishedAt)
	return j, err
}

func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now
	if j.Status == "" {
		j.Status = job.StatusQueued
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO notification_jobs (id, kind, reference, status, total, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		j.ID, j.Kind, j.Reference, j.Status, j.Total, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return conflictWrap(err, "create job %s", j.ID)
	}
	return nil
}

// GetJob returns the job with its delivery ledger in send order.
func (s *Store) GetJob(ctx context.Context, id string) (*job.Job, error) {
	if err := checkID(id, "job"); err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM notification_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err != nil {
		return nil, notFoundWrap(err, "get job %s", id)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT email, status, message_id, error, sent_at
		 FROM job_deliveries WHERE job_id = $1 ORDER BY sent_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("list deliveries of job %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var d job.Delivery
		if err := rows.Scan(&d.Email, &d.Status, &d.MessageID, &d.Error, &d.SentAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		j.Deliveries = append(j.Deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	j.Deliveries = orEmpty(j.Deliveries)
	return &j, nil
}

// StartJob marks a job running. Successful deliveries of an earlier attempt
// are kept so a redelivered job does not mail the same address twice;
// failed ones are dropped and retried.
func (s *Store) StartJob(ctx context.Context, id string) error {
	if err := checkID(id, "job"); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("start job %s: begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE notification_jobs
		 SET status = 'running', attempts = attempts + 1, error = '', updated_at = now()
		 WHERE id = $1`, id)
	if err := execExpectOne(tag, err, "start job %s", id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM job_deliveries WHERE job_id = $1 AND status <> 'sent'`, id); err != nil {
		return fmt.Errorf("start job %s: reset deliveries: %w", id, err)
	}
	return tx.Commit(ctx)
}

func (s *Store) RecordDelivery(ctx context.Context, jobID string, d job.Delivery) error {
	if d.SentAt.IsZero() {
		d.SentAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_deliveries (job_id, email, status, message_id, error, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		jobID, d.Email, d.Status, d.MessageID, d.Error, d.SentAt)
	if err != nil {
		return fmt.Errorf("record delivery for job %s: %w", jobID, err)
	}
	return nil
}

func (s *Store) FinishJob(ctx context.Context, id string, status job.Status, sent, failed int, errMsg string) error {
	if err := checkID(id, "job"); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE notification_jobs
		 SET status = $2, sent = $3, failed = $4, error = $5, updated_at = now(), finished_at = $6
		 WHERE id = $1`,
		id, status, sent, failed, errMsg, time.Now().UTC())
	return execExpectOne(tag, err, "finish job %s", id)
}

func (s *Store) ListJobs(ctx context.Context, limit int) ([]job.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM notification_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return orEmpty(jobs), rows.Err()
}

// PurgeJobs deletes finished jobs created before olderThan.
func (s *Store) PurgeJobs(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notification_jobs WHERE finished_at IS NOT NULL AND created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
