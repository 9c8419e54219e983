package model

import (
	"encoding/json"
	"time"
)

// JobType names a pipeline stage for mutual exclusion and bookkeeping.
type JobType string

const (
	JobDiscovery        JobType = "discovery"
	JobEnrichment       JobType = "enrichment"
	JobQualification    JobType = "qualification"
	JobOutreachQueue    JobType = "outreach_queue"
	JobOutreachDispatch JobType = "outreach_dispatch"
	JobMatching         JobType = "matching"
	JobInvestorSync     JobType = "investor_sync"
	JobCleanup          JobType = "cleanup"
)

// JobStatus is the state of a job run.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobProgress counts records handled by a run.
type JobProgress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ProgressFunc receives a stage's running counts. A nil ProgressFunc is a
// no-op when called through Report.
type ProgressFunc func(JobProgress)

// Report calls fn with p when fn is set.
func (fn ProgressFunc) Report(p JobProgress) {
	if fn != nil {
		fn(p)
	}
}

// JobRun is one invocation of a stage for one user. A running JobRun is the
// mutual-exclusion token for that (user, job type).
type JobRun struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	JobType     JobType         `json:"job_type"`
	Status      JobStatus       `json:"status"`
	Progress    JobProgress     `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// RateLimitCounter is the sliding-window state for one (user, api).
type RateLimitCounter struct {
	UserID       string    `json:"user_id"`
	APIName      string    `json:"api_name"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	RequestCount int       `json:"request_count"`
}
