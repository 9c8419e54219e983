// Package scheduler fires pipeline stages on fixed intervals for every user
// with stored settings.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dealflow-cli/internal/config"
	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/pipeline"
)

// Runner executes one stage for one user.
type Runner interface {
	Run(ctx context.Context, stage model.JobType, s *model.Settings, trigger pipeline.Trigger) (*pipeline.Report, error)
}

// SettingsLister loads every user's settings.
type SettingsLister interface {
	ListSettings(ctx context.Context) ([]model.Settings, error)
}

// Trigger fires a stage every Interval.
type Trigger struct {
	Stage    model.JobType
	Interval time.Duration
}

// Triggers returns the configured triggers. Stages with a non-positive
// interval are left out.
func Triggers(cfg config.ScheduleConfig) []Trigger {
	all := []Trigger{
		{model.JobDiscovery, cfg.Discovery},
		{model.JobEnrichment, cfg.Enrichment},
		{model.JobQualification, cfg.Qualification},
		{model.JobOutreachQueue, cfg.OutreachQueue},
		{model.JobOutreachDispatch, cfg.OutreachDispatch},
		{model.JobMatching, cfg.Matching},
		{model.JobInvestorSync, cfg.InvestorSync},
		{model.JobCleanup, cfg.Cleanup},
	}
	out := all[:0]
	for _, t := range all {
		if t.Interval > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Scheduler runs one ticker per trigger.
type Scheduler struct {
	runner   Runner
	settings SettingsLister
	triggers []Trigger
}

// New creates a Scheduler.
func New(runner Runner, settings SettingsLister, triggers []Trigger) *Scheduler {
	return &Scheduler{runner: runner, settings: settings, triggers: triggers}
}

// Run starts every trigger. It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "scheduler"))
	log.Info("starting scheduler", zap.Int("triggers", len(s.triggers)))

	var g errgroup.Group
	for _, t := range s.triggers {
		g.Go(func() error {
			s.loop(ctx, t, log)
			return nil
		})
	}
	_ = g.Wait()
	log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, t Trigger, log *zap.Logger) {
	log.Info("trigger armed", zap.String("stage", string(t.Stage)), zap.Duration("interval", t.Interval))
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, t.Stage)
		}
	}
}

// Tick runs stage once for each user, one after another. Settings are
// loaded once per tick. Cleanup is not per user and runs once. Failures
// are logged and never stop the tick.
func (s *Scheduler) Tick(ctx context.Context, stage model.JobType) {
	log := zap.L().With(zap.String("component", "scheduler"), zap.String("stage", string(stage)))

	if stage == model.JobCleanup {
		s.runOne(ctx, stage, &model.Settings{UserID: pipeline.SystemUser}, log)
		return
	}

	users, err := s.settings.ListSettings(ctx)
	if err != nil {
		log.Error("scheduler: load settings", zap.Error(err))
		return
	}
	for i := range users {
		if ctx.Err() != nil {
			return
		}
		s.runOne(ctx, stage, &users[i], log)
	}
}

func (s *Scheduler) runOne(ctx context.Context, stage model.JobType, settings *model.Settings, log *zap.Logger) {
	rep, err := s.runner.Run(ctx, stage, settings, pipeline.TriggerScheduled)
	if err != nil {
		log.Error("scheduler: stage failed", zap.String("user", settings.UserID), zap.Error(err))
		return
	}
	if rep != nil && rep.Skipped != "" {
		log.Debug("scheduler: stage skipped", zap.String("user", settings.UserID), zap.String("reason", rep.Skipped))
	}
}
