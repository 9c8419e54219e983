// Package pipeline binds the sourcing stages to the store, the job guard,
// the rate limiter and each user's API clients.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/config"
	"github.com/sells-group/dealflow-cli/internal/jobguard"
	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/profile"
	"github.com/sells-group/dealflow-cli/internal/ratelimit"
	"github.com/sells-group/dealflow-cli/internal/resilience"
	"github.com/sells-group/dealflow-cli/internal/store"
)

// SystemUser owns job runs that are not tied to one user.
const SystemUser = "_system"

// Trigger says who asked for a stage. Scheduled runs use the batch
// discovery window and respect the user's auto-outreach switch.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// Order is the sequence RunAll follows.
var Order = []model.JobType{
	model.JobInvestorSync,
	model.JobDiscovery,
	model.JobEnrichment,
	model.JobQualification,
	model.JobOutreachQueue,
	model.JobOutreachDispatch,
	model.JobMatching,
}

// Stages lists every job type Run accepts.
var Stages = append(append([]model.JobType{}, Order...), model.JobCleanup)

// ParseStage validates a stage name.
func ParseStage(s string) (model.JobType, error) {
	name := model.JobType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, st := range Stages {
		if st == name {
			return st, nil
		}
	}
	return "", eris.Errorf("pipeline: unknown stage %q", s)
}

// Report is what one stage invocation did. Skipped carries the reason a
// stage did not run.
type Report struct {
	Stage   model.JobType `json:"stage"`
	UserID  string        `json:"user_id"`
	Skipped string        `json:"skipped,omitempty"`
	Result  any           `json:"result,omitempty"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClients replaces the config-built API clients.
func WithClients(c Clients) Option {
	return func(p *Pipeline) { p.clients = c }
}

// WithClock overrides the time source used by the stages.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.nowFunc = now }
}

// Pipeline runs stages for one user at a time.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	guard   *jobguard.Guard
	limiter *ratelimit.Limiter
	clients Clients
	parser  *profile.Parser
	nowFunc func() time.Time

	breakers *resilience.BreakerSet
}

// New creates a Pipeline. The profile parser loads its keyword lists from
// enrichment.lists_file when one is configured.
func New(cfg *config.Config, st store.Store, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:     cfg,
		store:   st,
		guard:   jobguard.New(st),
		nowFunc: time.Now,
		breakers: resilience.NewBreakerSet(
			resilience.BreakerConfig{Threshold: 5, Cooldown: 5 * time.Minute, Trips: resilience.IsTransient},
			func(user string, from, to resilience.BreakerState) {
				zap.L().Warn("pipeline: delivery circuit changed",
					zap.String("user", user),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		),
	}
	for _, o := range opts {
		o(p)
	}
	if p.clients == nil {
		p.clients = NewClients(cfg)
	}

	lists := profile.DefaultLists()
	if cfg.Enrichment.ListsFile != "" {
		var err error
		if lists, err = profile.LoadLists(cfg.Enrichment.ListsFile); err != nil {
			return nil, eris.Wrap(err, "pipeline: load keyword lists")
		}
	}
	p.parser = profile.NewParser(lists)

	p.limiter = ratelimit.New(st,
		ratelimit.WithPacer(ratelimit.NewPacer(Pacing(cfg))),
		ratelimit.WithClock(p.nowFunc),
	)
	return p, nil
}

// Pacing maps each limited API to its configured inter-call spacing.
func Pacing(cfg *config.Config) map[string]time.Duration {
	return map[string]time.Duration{
		ratelimit.APICompaniesHouse: cfg.Registry.Pacing(),
		ratelimit.APIExa:            cfg.Search.Pacing(),
		ratelimit.APIApollo:         cfg.Apollo.Pacing(),
		ratelimit.APIHunter:         cfg.Hunter.Pacing(),
		ratelimit.APIGitHub:         cfg.GitHub.Pacing(),
		ratelimit.APIResend:         cfg.Resend.Pacing(),
		ratelimit.APIWebsite:        cfg.Website.Pacing(),
	}
}

// Guard returns the job guard the stages run under.
func (p *Pipeline) Guard() *jobguard.Guard { return p.guard }

// Limiter returns the shared rate limiter.
func (p *Pipeline) Limiter() *ratelimit.Limiter { return p.limiter }

// stageFunc runs a prepared stage and returns its result. progress saves
// running counts on the job run.
type stageFunc func(ctx context.Context, progress model.ProgressFunc) (any, error)

// Run executes one stage for the user under the job guard. A stage whose
// prerequisites are missing, or that is already running, is reported as
// skipped without error. Cleanup ignores the user and runs as SystemUser.
func (p *Pipeline) Run(ctx context.Context, stage model.JobType, s *model.Settings, trigger Trigger) (*Report, error) {
	userID := s.UserID
	if stage == model.JobCleanup {
		userID = SystemUser
	}
	rep := &Report{Stage: stage, UserID: userID}
	log := zap.L().With(zap.String("user", userID), zap.String("stage", string(stage)), zap.String("trigger", string(trigger)))

	fn, reason, err := p.prepare(stage, s, trigger)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		rep.Skipped = reason
		log.Info("pipeline: stage skipped", zap.String("reason", reason))
		return rep, nil
	}

	start := time.Now()
	err = p.guard.Run(ctx, userID, stage, func(ctx context.Context, run *model.JobRun) (any, error) {
		res, err := fn(ctx, p.guard.Reporter(ctx, run))
		rep.Result = res
		return res, err
	})
	if errors.Is(err, jobguard.ErrAlreadyRunning) {
		rep.Skipped = "already running"
		log.Info("pipeline: stage skipped", zap.String("reason", rep.Skipped))
		return rep, nil
	}
	if err != nil {
		return rep, eris.Wrapf(err, "pipeline: %s", stage)
	}
	log.Info("pipeline: stage complete", zap.Duration("elapsed", time.Since(start)))
	return rep, nil
}

// RunAll runs every per-user stage in Order. A failed stage is logged and
// the sequence continues; the failures are returned together.
func (p *Pipeline) RunAll(ctx context.Context, s *model.Settings, trigger Trigger) ([]Report, error) {
	var (
		reports []Report
		errs    []error
	)
	for _, stage := range Order {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		rep, err := p.Run(ctx, stage, s, trigger)
		if rep != nil {
			reports = append(reports, *rep)
		}
		if err != nil {
			zap.L().Error("pipeline: stage failed",
				zap.String("user", s.UserID),
				zap.String("stage", string(stage)),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return reports, eris.Wrap(errors.Join(errs...), "pipeline: run all")
	}
	return reports, nil
}

// breaker returns the user's delivery circuit breaker, which persists
// across dispatch runs in this process.
func (p *Pipeline) breaker(userID string) *resilience.Breaker {
	return p.breakers.For(userID)
}
