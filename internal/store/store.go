// Package store persists pipeline records in typed collections backed by
// SQLite or Postgres.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/model"
)

// ErrNotFound is returned when a record lookup matches nothing.
var ErrNotFound = eris.New("store: not found")

// CompanyFilter specifies criteria for listing companies.
type CompanyFilter struct {
	Stages []model.Stage `json:"stages,omitempty"`
	Limit  int           `json:"limit,omitempty"`
}

// OutreachFilter specifies criteria for listing outreach items.
type OutreachFilter struct {
	Status    model.OutreachStatus `json:"status,omitempty"`
	FounderID string               `json:"founder_id,omitempty"`
	Limit     int                  `json:"limit,omitempty"`
}

// JobFilter specifies criteria for listing job runs. An empty UserID
// matches every user.
type JobFilter struct {
	UserID        string          `json:"user_id,omitempty"`
	JobType       model.JobType   `json:"job_type,omitempty"`
	Status        model.JobStatus `json:"status,omitempty"`
	StartedBefore time.Time       `json:"started_before,omitempty"`
	Limit         int             `json:"limit,omitempty"`
}

// Store defines the persistence interface for the sourcing pipeline.
// Single-record writes are atomic; multi-record operations are not.
type Store interface {
	// Companies
	UpsertCompany(ctx context.Context, c *model.Company) (id string, created bool, err error)
	GetCompany(ctx context.Context, userID, id string) (*model.Company, error)
	UpdateCompany(ctx context.Context, c *model.Company) error
	ListCompanies(ctx context.Context, userID string, filter CompanyFilter) ([]model.Company, error)
	CompanyExists(ctx context.Context, userID, registryID string) (bool, error)

	// Founders
	CreateFounder(ctx context.Context, f *model.Founder) error
	GetFounder(ctx context.Context, userID, id string) (*model.Founder, error)
	UpdateFounder(ctx context.Context, f *model.Founder) error
	ListFounders(ctx context.Context, userID, companyID string) ([]model.Founder, error)

	// Investors
	UpsertInvestor(ctx context.Context, inv *model.Investor) (created bool, err error)
	GetInvestor(ctx context.Context, userID, id string) (*model.Investor, error)
	UpdateInvestor(ctx context.Context, inv *model.Investor) error
	ListInvestors(ctx context.Context, userID string) ([]model.Investor, error)

	// Introductions
	IntroductionExists(ctx context.Context, userID, companyID, investorID string) (bool, error)
	CreateIntroduction(ctx context.Context, in *model.Introduction) (created bool, err error)
	ListIntroductions(ctx context.Context, userID, companyID string) ([]model.Introduction, error)

	// Outreach
	CreateOutreach(ctx context.Context, o *model.OutreachItem) error
	UpdateOutreach(ctx context.Context, o *model.OutreachItem) error
	ListDueOutreach(ctx context.Context, userID string, ch model.Channel, now time.Time, limit int) ([]model.OutreachItem, error)
	ListOutreach(ctx context.Context, userID string, filter OutreachFilter) ([]model.OutreachItem, error)

	// Templates
	PutTemplate(ctx context.Context, t *model.Template) error
	GetDefaultTemplate(ctx context.Context, userID string, ch model.Channel) (*model.Template, error)

	// Job runs
	CreateJobRun(ctx context.Context, r *model.JobRun) error
	UpdateJobRun(ctx context.Context, r *model.JobRun) error
	GetJobRun(ctx context.Context, userID, id string) (*model.JobRun, error)
	FindJobRuns(ctx context.Context, filter JobFilter) ([]model.JobRun, error)
	DeleteFinishedJobRunsBefore(ctx context.Context, before time.Time) (int64, error)

	// Rate-limit counters. GetRateLimit returns nil, nil when no counter exists.
	GetRateLimit(ctx context.Context, userID, api string) (*model.RateLimitCounter, error)
	PutRateLimit(ctx context.Context, c *model.RateLimitCounter) error
	DeleteExpiredRateLimits(ctx context.Context, now time.Time) (int64, error)

	// Settings
	GetSettings(ctx context.Context, userID string) (*model.Settings, error)
	PutSettings(ctx context.Context, s *model.Settings) error
	ListSettings(ctx context.Context) ([]model.Settings, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
