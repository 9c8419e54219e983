package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cleanup defaults used when the config leaves them unset.
const (
	DefaultStaleJobHours    = 6
	DefaultJobRetentionDays = 30
)

// CleanupResult reports a cleanup run.
type CleanupResult struct {
	ExpiredCounters int64 `json:"expired_counters"`
	StaleJobs       int   `json:"stale_jobs"`
	DeletedJobs     int64 `json:"deleted_jobs"`
}

// cleanup drops expired rate-limit counters, fails runs that have been
// running longer than the stale timeout, and deletes finished runs past
// the retention window.
func (p *Pipeline) cleanup(ctx context.Context) (*CleanupResult, error) {
	log := zap.L().With(zap.String("stage", "cleanup"))
	now := p.nowFunc().UTC()
	res := &CleanupResult{}

	staleHours := p.cfg.Cleanup.StaleJobHours
	if staleHours <= 0 {
		staleHours = DefaultStaleJobHours
	}
	retentionDays := p.cfg.Cleanup.JobRetentionDays
	if retentionDays <= 0 {
		retentionDays = DefaultJobRetentionDays
	}

	var err error
	if res.ExpiredCounters, err = p.store.DeleteExpiredRateLimits(ctx, now); err != nil {
		return res, eris.Wrap(err, "pipeline: delete expired rate limits")
	}
	if res.StaleJobs, err = p.guard.FailStale(ctx, now.Add(-time.Duration(staleHours)*time.Hour)); err != nil {
		return res, eris.Wrap(err, "pipeline: fail stale jobs")
	}
	if res.DeletedJobs, err = p.store.DeleteFinishedJobRunsBefore(ctx, now.AddDate(0, 0, -retentionDays)); err != nil {
		return res, eris.Wrap(err, "pipeline: delete finished jobs")
	}

	log.Info("cleanup complete",
		zap.Int64("expired_counters", res.ExpiredCounters),
		zap.Int("stale_jobs", res.StaleJobs),
		zap.Int64("deleted_jobs", res.DeletedJobs),
	)
	return res, nil
}
