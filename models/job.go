package models

import (
	"time"
)

// JobStatus tracks a fetch job through its lifecycle.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// FetchJob is the audit record written for every orchestration run.
type FetchJob struct {
	ID             string     `json:"id" db:"id"`
	JobType        string     `json:"job_type" db:"job_type"` // "search", "url", "refresh"
	Status         JobStatus  `json:"status" db:"status"`
	Scope          string     `json:"scope" db:"scope"`
	ItemsProcessed int        `json:"items_processed" db:"items_processed"`
	ErrorText      string     `json:"error_text" db:"error_text"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	StartedAt      *time.Time `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at" db:"finished_at"`
}

// IsFinished reports whether the job reached a terminal state.
func (j *FetchJob) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// RetailerResult is the per-retailer outcome of one orchestration run.
type RetailerResult struct {
	RetailerID string `json:"retailer_id"`
	Success    bool   `json:"success"`
	ItemCount  int    `json:"item_count"`
	Error      string `json:"error,omitempty"`
}

// FetchSummary is the aggregate result returned to the caller of FetchAndSave.
type FetchSummary struct {
	JobID           string                    `json:"job_id"`
	Query           string                    `json:"query"`
	TotalScraped    int                       `json:"total_scraped"`
	NewProducts     int                       `json:"new_products"`
	UpdatedProducts int                       `json:"updated_products"`
	PerRetailer     map[string]RetailerResult `json:"per_retailer"`
	Duration        time.Duration             `json:"duration_ms"`
}

// SingleFetchResult is the outcome of a direct-URL extraction.
type SingleFetchResult struct {
	ProductID int    `json:"product_id,omitempty"`
	IsNew     bool   `json:"is_new"`
	Error     string `json:"error,omitempty"`
}
