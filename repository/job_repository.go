package repository

import (
	"context"
	"fmt"
	"time"

	"priceradar/database"
	"priceradar/models"
)

type JobRepository struct{}

func NewJobRepository() *JobRepository {
	return &JobRepository{}
}

// CreateJob records a pending fetch job.
func (r *JobRepository) CreateJob(ctx context.Context, job *models.FetchJob) error {
	query := `
		INSERT INTO fetch_jobs (id, job_type, status, scope, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := database.DB.ExecContext(ctx, query,
		job.ID, job.JobType, models.JobStatusPending, job.Scope, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create fetch job: %v", err)
	}
	return nil
}

// MarkJobRunning transitions a job from pending to running.
func (r *JobRepository) MarkJobRunning(ctx context.Context, id string) error {
	query := `
		UPDATE fetch_jobs SET status = $2, started_at = $3 WHERE id = $1
	`

	_, err := database.DB.ExecContext(ctx, query, id, models.JobStatusRunning, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark job running: %v", err)
	}
	return nil
}

// FinishJob records the terminal state of a job.
func (r *JobRepository) FinishJob(ctx context.Context, id string, status models.JobStatus, items int, errText string) error {
	query := `
		UPDATE fetch_jobs
		SET status = $2, items_processed = $3, error_text = $4, finished_at = $5
		WHERE id = $1
	`

	_, err := database.DB.ExecContext(ctx, query, id, status, items, errText, time.Now())
	if err != nil {
		return fmt.Errorf("failed to finish job: %v", err)
	}
	return nil
}

// RecentJobs returns the most recent jobs for the status endpoint.
func (r *JobRepository) RecentJobs(ctx context.Context, limit int) ([]models.FetchJob, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, job_type, status, scope, items_processed, error_text, created_at, started_at, finished_at
		FROM fetch_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := database.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent jobs: %v", err)
	}
	defer rows.Close()

	var jobs []models.FetchJob
	for rows.Next() {
		var j models.FetchJob
		err := rows.Scan(&j.ID, &j.JobType, &j.Status, &j.Scope,
			&j.ItemsProcessed, &j.ErrorText, &j.CreatedAt, &j.StartedAt, &j.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %v", err)
		}
		jobs = append(jobs, j)
	}

	return jobs, nil
}
