package store

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/dealflow-cli/internal/model"
)

func jobRunDoc(r *model.JobRun, updated time.Time) (doc, error) {
	return marshalDoc(r.ID, r.UserID, r, map[string]any{
		"job_type":   string(r.JobType),
		"status":     string(r.Status),
		"started_at": r.StartedAt.UTC(),
	}, r.StartedAt, updated)
}

// CreateJobRun inserts a job run, assigning an id and start time when empty.
func (s *SQLStore) CreateJobRun(ctx context.Context, r *model.JobRun) error {
	now := s.nowFunc()
	if r.ID == "" {
		r.ID = newID()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = now
	}
	d, err := jobRunDoc(r, now)
	if err != nil {
		return err
	}
	return s.b.insert(ctx, jobRuns, d)
}

// UpdateJobRun writes the full job run record.
func (s *SQLStore) UpdateJobRun(ctx context.Context, r *model.JobRun) error {
	d, err := jobRunDoc(r, s.nowFunc())
	if err != nil {
		return err
	}
	return s.b.update(ctx, jobRuns, d)
}

// GetJobRun returns one job run by id.
func (s *SQLStore) GetJobRun(ctx context.Context, userID, id string) (*model.JobRun, error) {
	return findOne[model.JobRun](ctx, s, jobRuns, eq("user_id", userID), eq("id", id))
}

// FindJobRuns returns job runs matching the filter, newest first.
func (s *SQLStore) FindJobRuns(ctx context.Context, filter JobFilter) ([]model.JobRun, error) {
	var conds []cond
	if filter.UserID != "" {
		conds = append(conds, eq("user_id", filter.UserID))
	}
	if filter.JobType != "" {
		conds = append(conds, eq("job_type", string(filter.JobType)))
	}
	if filter.Status != "" {
		conds = append(conds, eq("status", string(filter.Status)))
	}
	if !filter.StartedBefore.IsZero() {
		conds = append(conds, cond{col: "started_at", op: "<", val: filter.StartedBefore.UTC()})
	}
	return findAll[model.JobRun](ctx, s, jobRuns, query{
		conds: conds, order: "started_at", desc: true, limit: filter.Limit,
	})
}

// DeleteFinishedJobRunsBefore removes completed and failed runs started
// before the cutoff.
func (s *SQLStore) DeleteFinishedJobRunsBefore(ctx context.Context, before time.Time) (int64, error) {
	return s.b.remove(ctx, jobRuns, []cond{
		{col: "status", op: "!=", val: string(model.JobRunning)},
		{col: "started_at", op: "<", val: before.UTC()},
	})
}

func rateLimitID(userID, api string) string {
	return userID + ":" + api
}

// GetRateLimit returns the counter for (user, api), or nil when none exists.
func (s *SQLStore) GetRateLimit(ctx context.Context, userID, api string) (*model.RateLimitCounter, error) {
	c, err := findOne[model.RateLimitCounter](ctx, s, rateLimits, eq("id", rateLimitID(userID, api)))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return c, err
}

// PutRateLimit creates or replaces the counter for (user, api).
func (s *SQLStore) PutRateLimit(ctx context.Context, c *model.RateLimitCounter) error {
	now := s.nowFunc()
	d, err := marshalDoc(rateLimitID(c.UserID, c.APIName), c.UserID, c, map[string]any{
		"api_name":   c.APIName,
		"window_end": c.WindowEnd.UTC(),
	}, c.WindowStart, now)
	if err != nil {
		return err
	}
	return s.b.upsert(ctx, rateLimits, d)
}

// DeleteExpiredRateLimits removes counters whose window ended before now.
func (s *SQLStore) DeleteExpiredRateLimits(ctx context.Context, now time.Time) (int64, error) {
	return s.b.remove(ctx, rateLimits, []cond{{col: "window_end", op: "<", val: now.UTC()}})
}

// GetSettings returns the user's settings or ErrNotFound.
func (s *SQLStore) GetSettings(ctx context.Context, userID string) (*model.Settings, error) {
	return findOne[model.Settings](ctx, s, settings, eq("id", userID))
}

// PutSettings creates or replaces the user's settings.
func (s *SQLStore) PutSettings(ctx context.Context, st *model.Settings) error {
	now := s.nowFunc()
	st.UpdatedAt = now
	d, err := marshalDoc(st.UserID, st.UserID, st, nil, now, now)
	if err != nil {
		return err
	}
	return s.b.upsert(ctx, settings, d)
}

// ListSettings returns settings for every user.
func (s *SQLStore) ListSettings(ctx context.Context) ([]model.Settings, error) {
	return findAll[model.Settings](ctx, s, settings, query{order: "id"})
}
