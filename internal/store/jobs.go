// internal/store/jobs.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "psychosocial-workers/internal/common/errors"
	"psychosocial-workers/internal/models"
)

const jobColumns = `
	id, assessment_response_id, COALESCE(company_id::text, ''), status, priority,
	retry_count, max_retries, COALESCE(error_message, ''), next_run_at, created_at,
	started_at, completed_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.ProcessingJob, error) {
	var (
		j         models.ProcessingJob
		started   sql.NullTime
		completed sql.NullTime
	)
	if err := row.Scan(
		&j.ID, &j.AssessmentResponseID, &j.CompanyID, &j.Status, &j.Priority,
		&j.RetryCount, &j.MaxRetries, &j.ErrorMessage, &j.NextRunAt, &j.CreatedAt,
		&started, &completed,
	); err != nil {
		return nil, err
	}
	if started.Valid {
		t := started.Time
		j.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		j.CompletedAt = &t
	}
	return &j, nil
}

// EnqueueJob inserts a pending job unless the assessment already has a live
// one, guarded by the partial unique index on non-terminal jobs.
func (p *Postgres) EnqueueJob(ctx context.Context, job *models.ProcessingJob) (string, bool, error) {
	query := `
		INSERT INTO processing_jobs (
			id, assessment_response_id, company_id, status, priority,
			retry_count, max_retries, next_run_at, created_at
		) VALUES ($1, $2, NULLIF($3, ''), 'pending', $4, 0, $5, $6, $7)
		ON CONFLICT (assessment_response_id) WHERE status IN ('pending', 'processing') DO NOTHING
		RETURNING id
	`
	var id string
	err := p.db.QueryRowContext(ctx, query,
		job.ID, job.AssessmentResponseID, job.CompanyID, job.Priority,
		job.MaxRetries, job.NextRunAt, job.CreatedAt,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, apperrors.NewStoreError("insert processing_jobs", err)
	}

	existing := `
		SELECT id FROM processing_jobs
		WHERE assessment_response_id = $1 AND status IN ('pending', 'processing')
		LIMIT 1
	`
	if err := p.db.QueryRowContext(ctx, existing, job.AssessmentResponseID).Scan(&id); err != nil {
		return "", false, apperrors.NewStoreError("select live processing_jobs", err)
	}
	return id, false, nil
}

// FetchPending returns due jobs, strictly priority first then FIFO.
func (p *Postgres) FetchPending(ctx context.Context, limit int) ([]models.ProcessingJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM processing_jobs
		WHERE status = 'pending' AND next_run_at <= NOW()
		ORDER BY CASE priority
			WHEN 'critical' THEN 0
			WHEN 'high' THEN 1
			WHEN 'medium' THEN 2
			ELSE 3
		END, created_at ASC
		LIMIT $1
	`
	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.NewStoreError("select pending processing_jobs", err)
	}
	defer rows.Close()

	var out []models.ProcessingJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("scan processing_jobs", err)
		}
		out = append(out, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("iterate processing_jobs", err)
	}
	return out, nil
}

// ClaimJob is the mutual-exclusion point: a compare-and-swap on status that
// affects one row for exactly one caller.
func (p *Postgres) ClaimJob(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE processing_jobs
		SET status = 'processing', started_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	res, err := p.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, apperrors.NewStoreError("claim processing_jobs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStoreError("claim processing_jobs", err)
	}
	return n == 1, nil
}

func (p *Postgres) CompleteJob(ctx context.Context, id string) error {
	query := `
		UPDATE processing_jobs
		SET status = 'completed', completed_at = NOW(), error_message = NULL
		WHERE id = $1 AND status = 'processing'
	`
	return p.transition(ctx, "complete processing_jobs", id, query, id)
}

func (p *Postgres) RetryJob(ctx context.Context, id string, retryCount int, nextRunAt time.Time, message string) error {
	query := `
		UPDATE processing_jobs
		SET status = 'pending', retry_count = $2, next_run_at = $3, error_message = $4, started_at = NULL
		WHERE id = $1 AND status = 'processing'
	`
	return p.transition(ctx, "retry processing_jobs", id, query, id, retryCount, nextRunAt, message)
}

func (p *Postgres) FailJob(ctx context.Context, id, message string) error {
	query := `
		UPDATE processing_jobs
		SET status = 'error', error_message = $2, completed_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	return p.transition(ctx, "fail processing_jobs", id, query, id, message)
}

// ReleaseStaleJobs hands back claims whose worker never reported an outcome.
// A release spends one retry; jobs with no budget left end in error.
func (p *Postgres) ReleaseStaleJobs(ctx context.Context, claimedBefore time.Time) (int64, error) {
	query := `
		UPDATE processing_jobs
		SET status = CASE WHEN retry_count < max_retries THEN 'pending' ELSE 'error' END,
			retry_count = CASE WHEN retry_count < max_retries THEN retry_count + 1 ELSE retry_count END,
			completed_at = CASE WHEN retry_count < max_retries THEN NULL ELSE NOW() END,
			error_message = 'claim expired before the job finished',
			next_run_at = NOW(),
			started_at = NULL
		WHERE status = 'processing' AND started_at < $1
	`
	res, err := p.db.ExecContext(ctx, query, claimedBefore)
	if err != nil {
		return 0, apperrors.NewStoreError("release processing_jobs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewStoreError("release processing_jobs", err)
	}
	return n, nil
}

func (p *Postgres) GetJob(ctx context.Context, id string) (*models.ProcessingJob, error) {
	query := `SELECT ` + jobColumns + ` FROM processing_jobs WHERE id = $1`
	j, err := scanJob(p.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewJobNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("select processing_jobs", err)
	}
	return j, nil
}

// transition only moves jobs out of processing, so terminal states never
// regress.
func (p *Postgres) transition(ctx context.Context, op, id, query string, args ...interface{}) error {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStoreError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStoreError(op, err)
	}
	if n == 0 {
		return apperrors.NewJobNotFoundError(id).WithMetadata("expectedStatus", models.JobProcessing)
	}
	return nil
}
