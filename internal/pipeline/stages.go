package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/discovery"
	"github.com/sells-group/dealflow-cli/internal/enrich"
	"github.com/sells-group/dealflow-cli/internal/fetcher"
	"github.com/sells-group/dealflow-cli/internal/investors"
	"github.com/sells-group/dealflow-cli/internal/matching"
	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/outreach"
	"github.com/sells-group/dealflow-cli/internal/scoring"
	"github.com/sells-group/dealflow-cli/internal/store"
)

// prepare builds the runner for a stage, or returns the reason it cannot
// run for this user.
func (p *Pipeline) prepare(stage model.JobType, s *model.Settings, trigger Trigger) (stageFunc, string, error) {
	switch stage {
	case model.JobDiscovery:
		reg := p.clients.Registry(s)
		if reg == nil {
			return nil, "no registry key", nil
		}
		params := p.DiscoveryParams(s, trigger)
		return func(ctx context.Context, progress model.ProgressFunc) (any, error) {
			d := discovery.New(p.store, reg, p.limiter, discovery.WithProgress(progress))
			return d.Run(ctx, s.UserID, params)
		}, "", nil

	case model.JobEnrichment:
		search := p.clients.Search(s)
		if search == nil {
			return nil, "no search key", nil
		}
		opts := []enrich.Option{
			enrich.WithSearch(search),
			enrich.WithParser(p.parser),
			enrich.WithClock(p.nowFunc),
		}
		if c := p.clients.Apollo(s); c != nil {
			opts = append(opts, enrich.WithApollo(c))
		}
		if c := p.clients.Hunter(s); c != nil {
			opts = append(opts, enrich.WithHunter(c))
		}
		code, err := p.clients.CodeHost(s, p.limiter)
		if err != nil {
			return nil, "", eris.Wrap(err, "pipeline: code host")
		}
		if code != nil {
			opts = append(opts, enrich.WithCodeHost(code))
		}
		if web := p.clients.Fetcher(); web != nil {
			opts = append(opts, enrich.WithFetcher(web))
		}
		params := enrich.Params{Limit: p.cfg.Enrichment.CompanyLimit}
		return func(ctx context.Context, progress model.ProgressFunc) (any, error) {
			e := enrich.New(p.store, p.limiter, append(opts, enrich.WithProgress(progress))...)
			return e.Run(ctx, s.UserID, params)
		}, "", nil

	case model.JobQualification:
		policy, err := scoring.ParsePolicy(p.cfg.Qualification.Policy)
		if err != nil {
			return nil, "", err
		}
		return func(ctx context.Context, progress model.ProgressFunc) (any, error) {
			return p.qualify(ctx, s.UserID, policy, progress)
		}, "", nil

	case model.JobMatching:
		return func(ctx context.Context, progress model.ProgressFunc) (any, error) {
			m := matching.New(p.store,
				matching.WithThreshold(p.cfg.Matching.Threshold),
				matching.WithRecencyDays(p.cfg.Matching.RecencyDays),
				matching.WithClock(p.nowFunc),
				matching.WithProgress(progress),
			)
			return m.Run(ctx, s.UserID)
		}, "", nil

	case model.JobOutreachQueue:
		if trigger == TriggerScheduled && !s.AutoOutreach {
			return nil, "auto outreach disabled", nil
		}
		opts := []outreach.QueueOption{
			outreach.WithSpacing(time.Duration(p.cfg.Outreach.SpacingMinutes) * time.Minute),
			outreach.WithMaxAttempts(p.cfg.Outreach.MaxAttempts),
			outreach.WithQueueClock(p.nowFunc),
		}
		if ai := p.clients.Anthropic(s); ai != nil {
			opts = append(opts, outreach.WithOpener(outreach.NewAIOpener(ai, p.cfg.Anthropic.Model, p.cfg.Anthropic.MaxTokens)))
		}
		return func(ctx context.Context, progress model.ProgressFunc) (any, error) {
			q := outreach.NewQueue(p.store, append(opts, outreach.WithQueueProgress(progress))...)
			return q.Run(ctx, s)
		}, "", nil

	case model.JobOutreachDispatch:
		mailer := p.clients.Mailer(s)
		if mailer == nil {
			return nil, "no email delivery key", nil
		}
		if s.SenderEmail == "" {
			return nil, "no sender email", nil
		}
		return func(ctx context.Context, progress model.ProgressFunc) (any, error) {
			d := outreach.NewDispatcher(p.store, mailer,
				outreach.WithGate(p.limiter),
				outreach.WithBreaker(p.breaker(s.UserID)),
				outreach.WithDispatchLimit(p.cfg.Outreach.DispatchLimit),
				outreach.WithDispatchClock(p.nowFunc),
				outreach.WithDispatchProgress(progress),
			)
			return d.Run(ctx, s)
		}, "", nil

	case model.JobInvestorSync:
		nc := p.clients.Notion(s)
		if nc == nil {
			return nil, "no notion token", nil
		}
		if s.NotionInvestorDB == "" {
			return nil, "no notion investor database", nil
		}
		im := investors.NewImporter(p.store)
		return func(ctx context.Context, _ model.ProgressFunc) (any, error) {
			return im.SyncNotion(ctx, s.UserID, nc, s.NotionInvestorDB)
		}, "", nil

	case model.JobCleanup:
		return func(ctx context.Context, _ model.ProgressFunc) (any, error) {
			return p.cleanup(ctx)
		}, "", nil
	}
	return nil, "", eris.Errorf("pipeline: unknown stage %q", stage)
}

// DiscoveryParams resolves the discovery window, cap and codes. Scheduled
// runs use the batch window and cap. The user's lookback and codes
// override the config, and a named discovery profile selects one of the
// configured batch code lists.
func (p *Pipeline) DiscoveryParams(s *model.Settings, trigger Trigger) discovery.Params {
	dc := p.cfg.Discovery
	params := discovery.Params{
		Codes:        dc.Codes,
		LookbackDays: dc.LookbackDays,
		Limit:        dc.OnDemandLimit,
	}
	if trigger == TriggerScheduled {
		params.LookbackDays, params.Limit = dc.BatchLookbackDays, dc.BatchLimit
	}
	if s.LookbackDays > 0 {
		params.LookbackDays = s.LookbackDays
	}
	// viper lowercases map keys.
	if codes := dc.BatchProfiles[strings.ToLower(s.DiscoveryProfile)]; s.DiscoveryProfile != "" && len(codes) > 0 {
		params.Codes = codes
	}
	if len(s.DiscoveryCodes) > 0 {
		params.Codes = s.DiscoveryCodes
	}
	return params
}

// QualifyResult reports a qualification run.
type QualifyResult struct {
	Companies int `json:"companies"`
	Qualified int `json:"qualified"`
	Watchlist int `json:"watchlist"`
	Passed    int `json:"passed"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
}

// qualify scores every company in discovered or researching and advances
// those the policy decides on. Scores are saved even when the decision is
// pending.
func (p *Pipeline) qualify(ctx context.Context, userID string, policy scoring.Policy, progress model.ProgressFunc) (*QualifyResult, error) {
	log := zap.L().With(zap.String("user", userID), zap.String("stage", "qualification"))
	companies, err := p.store.ListCompanies(ctx, userID, store.CompanyFilter{
		Stages: []model.Stage{model.StageDiscovered, model.StageResearching},
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list companies")
	}

	res := &QualifyResult{Companies: len(companies)}
	prog := model.JobProgress{Total: len(companies)}
	now := p.nowFunc()
	for i := range companies {
		if ctx.Err() != nil {
			return res, eris.Wrap(ctx.Err(), "pipeline: qualify")
		}
		c := &companies[i]
		prog.Processed++
		if err := p.qualifyCompany(ctx, userID, c, policy, now, res, log); err != nil {
			res.Failed++
			prog.Failed++
		} else {
			prog.Succeeded++
		}
		progress.Report(prog)
	}

	log.Info("qualification complete",
		zap.Int("companies", res.Companies),
		zap.Int("qualified", res.Qualified),
		zap.Int("passed", res.Passed),
		zap.Int("pending", res.Pending),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// qualifyCompany scores one company, saves it and counts the decision.
// Failures are logged before they are returned.
func (p *Pipeline) qualifyCompany(ctx context.Context, userID string, c *model.Company, policy scoring.Policy, now time.Time, res *QualifyResult, log *zap.Logger) error {
	founders, err := p.store.ListFounders(ctx, userID, c.ID)
	if err != nil {
		log.Warn("pipeline: list founders", zap.String("company_id", c.ID), zap.Error(err))
		return err
	}

	a := scoring.Assess(c, founders, policy)
	if _, err := scoring.Apply(c, a, now); err != nil {
		log.Warn("pipeline: apply assessment", zap.String("company_id", c.ID), zap.Error(err))
		return err
	}
	if err := p.store.UpdateCompany(ctx, c); err != nil {
		log.Warn("pipeline: save company", zap.String("company_id", c.ID), zap.Error(err))
		return err
	}

	switch c.Stage {
	case model.StageQualified:
		res.Qualified++
		if c.Watchlist {
			res.Watchlist++
		}
	case model.StagePassed:
		res.Passed++
	default:
		res.Pending++
	}
	return nil
}

// ImportInvestors loads investors from a spreadsheet under the investor
// sync job guard.
func (p *Pipeline) ImportInvestors(ctx context.Context, userID, path string, opts fetcher.XLSXOptions) (*investors.Result, error) {
	var res *investors.Result
	err := p.guard.Run(ctx, userID, model.JobInvestorSync, func(ctx context.Context, _ *model.JobRun) (any, error) {
		var err error
		res, err = investors.NewImporter(p.store).ImportFile(ctx, userID, path, opts)
		return res, err
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: import investors")
	}
	return res, nil
}
