// Package jobguard keeps pipeline stages from overlapping per (user, job
// type) and records each run's progress and result.
package jobguard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/store"
)

// RunStore persists job runs.
type RunStore interface {
	CreateJobRun(ctx context.Context, r *model.JobRun) error
	UpdateJobRun(ctx context.Context, r *model.JobRun) error
	FindJobRuns(ctx context.Context, filter store.JobFilter) ([]model.JobRun, error)
}

// ErrAlreadyRunning is returned by Acquire when a run of the same type is
// active for the user.
var ErrAlreadyRunning = eris.New("jobguard: job already running")

// Guard is an advisory lock over the job-run ledger. Acquire checks for a
// running run and then starts one; two callers racing between the check
// and the insert can both proceed.
type Guard struct {
	store   RunStore
	nowFunc func() time.Time
}

// New creates a Guard.
func New(s RunStore) *Guard {
	return &Guard{store: s, nowFunc: func() time.Time { return time.Now().UTC() }}
}

// IsRunning reports whether the user has a running job of the given type.
func (g *Guard) IsRunning(ctx context.Context, userID string, jobType model.JobType) (bool, error) {
	runs, err := g.store.FindJobRuns(ctx, store.JobFilter{
		UserID:  userID,
		JobType: jobType,
		Status:  model.JobRunning,
		Limit:   1,
	})
	if err != nil {
		return false, eris.Wrapf(err, "jobguard: check %s", jobType)
	}
	return len(runs) > 0, nil
}

// Start records a new running job.
func (g *Guard) Start(ctx context.Context, userID string, jobType model.JobType) (*model.JobRun, error) {
	run := &model.JobRun{
		UserID:    userID,
		JobType:   jobType,
		Status:    model.JobRunning,
		StartedAt: g.nowFunc(),
	}
	if err := g.store.CreateJobRun(ctx, run); err != nil {
		return nil, eris.Wrapf(err, "jobguard: start %s", jobType)
	}
	return run, nil
}

// Acquire starts a run unless one of the same type is already running.
func (g *Guard) Acquire(ctx context.Context, userID string, jobType model.JobType) (*model.JobRun, error) {
	running, err := g.IsRunning(ctx, userID, jobType)
	if err != nil {
		return nil, err
	}
	if running {
		return nil, eris.Wrapf(ErrAlreadyRunning, "%s for %s", jobType, userID)
	}
	return g.Start(ctx, userID, jobType)
}

// Update saves progress on a running job.
func (g *Guard) Update(ctx context.Context, run *model.JobRun, progress model.JobProgress) error {
	run.Progress = progress
	return eris.Wrapf(g.store.UpdateJobRun(ctx, run), "jobguard: update %s", run.ID)
}

// Reporter returns a ProgressFunc that saves progress on run. Save
// failures are logged; they never stop the stage.
func (g *Guard) Reporter(ctx context.Context, run *model.JobRun) model.ProgressFunc {
	return func(p model.JobProgress) {
		if err := g.Update(ctx, run, p); err != nil {
			zap.L().Warn("jobguard: save progress", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
}

// Complete marks the run completed with a JSON-encoded result.
func (g *Guard) Complete(ctx context.Context, run *model.JobRun, result any) error {
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return eris.Wrap(err, "jobguard: marshal result")
		}
		run.Result = data
	}
	return g.finish(ctx, run, model.JobCompleted)
}

// Fail marks the run failed with the error message.
func (g *Guard) Fail(ctx context.Context, run *model.JobRun, cause error) error {
	if cause != nil {
		run.Error = cause.Error()
	}
	return g.finish(ctx, run, model.JobFailed)
}

func (g *Guard) finish(ctx context.Context, run *model.JobRun, status model.JobStatus) error {
	now := g.nowFunc()
	run.Status = status
	run.CompletedAt = &now
	return eris.Wrapf(g.store.UpdateJobRun(ctx, run), "jobguard: finish %s", run.ID)
}

// Run wraps fn in Acquire and Complete/Fail. When a run is already active it
// returns ErrAlreadyRunning without calling fn. fn may update progress on
// the run it receives.
func (g *Guard) Run(ctx context.Context, userID string, jobType model.JobType, fn func(ctx context.Context, run *model.JobRun) (any, error)) error {
	run, err := g.Acquire(ctx, userID, jobType)
	if err != nil {
		return err
	}
	log := zap.L().With(zap.String("user", userID), zap.String("job", string(jobType)), zap.String("run_id", run.ID))

	result, runErr := fn(ctx, run)
	if runErr != nil {
		if err := g.Fail(ctx, run, runErr); err != nil {
			log.Error("record job failure", zap.Error(err))
		}
		return runErr
	}
	if err := g.Complete(ctx, run, result); err != nil {
		log.Error("record job completion", zap.Error(err))
		return err
	}
	return nil
}

// FailStale marks running jobs started before cutoff as failed and returns
// how many were closed.
func (g *Guard) FailStale(ctx context.Context, cutoff time.Time) (int, error) {
	runs, err := g.store.FindJobRuns(ctx, store.JobFilter{Status: model.JobRunning, StartedBefore: cutoff})
	if err != nil {
		return 0, eris.Wrap(err, "jobguard: find stale runs")
	}
	n := 0
	for i := range runs {
		if err := g.Fail(ctx, &runs[i], eris.New("abandoned: exceeded stale timeout")); err != nil {
			zap.L().Warn("fail stale job", zap.String("run_id", runs[i].ID), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}
