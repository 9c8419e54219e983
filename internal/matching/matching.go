// Package matching pairs qualified companies with investors in the user's
// network and records the promising pairs as introductions.
package matching

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/store"
)

const (
	// DefaultThreshold is the minimum score that creates an introduction.
	DefaultThreshold = 60
	// DefaultRecencyDays is how recent the last investor contact must be
	// to earn the recency points.
	DefaultRecencyDays = 30

	stagePoints    = 40
	sectorPoints   = 20
	recencyPoints  = 10
	qualityPoints  = 5
	qualityMinimum = 60
)

var relationshipPoints = map[model.Relationship]int{
	model.RelationshipStrong:   25,
	model.RelationshipModerate: 15,
	model.RelationshipWeak:     5,
}

// matchStages are the company stages eligible for matching.
var matchStages = []model.Stage{
	model.StageQualified,
	model.StageContacted,
	model.StageMeeting,
	model.StageIntroduced,
}

// Store is the subset of the record store matching uses.
type Store interface {
	ListCompanies(ctx context.Context, userID string, filter store.CompanyFilter) ([]model.Company, error)
	ListFounders(ctx context.Context, userID, companyID string) ([]model.Founder, error)
	ListInvestors(ctx context.Context, userID string) ([]model.Investor, error)
	UpdateInvestor(ctx context.Context, inv *model.Investor) error
	IntroductionExists(ctx context.Context, userID, companyID, investorID string) (bool, error)
	CreateIntroduction(ctx context.Context, in *model.Introduction) (bool, error)
}

// Breakdown holds the points each rule contributed.
type Breakdown struct {
	Stage        int `json:"stage"`
	Sector       int `json:"sector"`
	Relationship int `json:"relationship"`
	Recency      int `json:"recency"`
	Quality      int `json:"quality"`
}

// Total sums the components.
func (b Breakdown) Total() int {
	return b.Stage + b.Sector + b.Relationship + b.Recency + b.Quality
}

// Match is the scored pairing of one company and one investor.
type Match struct {
	Score     int       `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
	Reasons   []string  `json:"reasons"`
}

// Score rates how well an investor fits a company. A company without a
// known funding stage is treated as pre-seed; an unset or unrecognised
// relationship earns nothing.
func Score(c *model.Company, inv *model.Investor, now time.Time, recency time.Duration) Match {
	var m Match

	stage := model.NormalizeFundingStage(c.FundingStage)
	if stage == "" {
		stage = model.DefaultFundingStage
	}
	for _, s := range inv.Stages {
		if model.NormalizeFundingStage(s) == stage {
			m.Breakdown.Stage = stagePoints
			m.Reasons = append(m.Reasons, "invests at "+stage)
			break
		}
	}

	if sector, ok := sectorOverlap(Sectors(c.IndustryCodes), inv.Sectors); ok {
		m.Breakdown.Sector = sectorPoints
		m.Reasons = append(m.Reasons, "sector overlap: "+sector)
	}

	if pts, ok := relationshipPoints[inv.Relationship]; ok {
		m.Breakdown.Relationship = pts
		m.Reasons = append(m.Reasons, string(inv.Relationship)+" relationship")
	}

	if inv.LastContactAt != nil && now.Sub(*inv.LastContactAt) <= recency {
		m.Breakdown.Recency = recencyPoints
		m.Reasons = append(m.Reasons, fmt.Sprintf("contacted within %d days", int(recency.Hours()/24)))
	}

	if c.Scores.Overall >= qualityMinimum {
		m.Breakdown.Quality = qualityPoints
		m.Reasons = append(m.Reasons, fmt.Sprintf("company score %d", c.Scores.Overall))
	}

	m.Score = m.Breakdown.Total()
	return m
}

// BestFounder returns the highest scoring founder, preferring scored
// founders. Ties keep the earlier founder. It returns nil for no founders.
func BestFounder(founders []model.Founder) *model.Founder {
	var best *model.Founder
	for i := range founders {
		f := &founders[i]
		switch {
		case best == nil:
			best = f
		case f.Scored && !best.Scored:
			best = f
		case f.Scored == best.Scored && f.Scores.Overall > best.Scores.Overall:
			best = f
		}
	}
	return best
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold sets the minimum score for an introduction.
func WithThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.threshold = n
		}
	}
}

// WithRecencyDays sets the recent-contact window.
func WithRecencyDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.recency = time.Duration(days) * 24 * time.Hour
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.nowFunc = now }
}

// WithProgress reports counts after each company.
func WithProgress(fn model.ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// Engine runs matching for one user at a time.
type Engine struct {
	store     Store
	threshold int
	recency   time.Duration
	progress  model.ProgressFunc
	nowFunc   func() time.Time
}

// New creates an Engine with the default threshold and recency window.
func New(st Store, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		threshold: DefaultThreshold,
		recency:   DefaultRecencyDays * 24 * time.Hour,
		nowFunc:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Result reports a matching run.
type Result struct {
	Companies     int `json:"companies"`
	Investors     int `json:"investors"`
	Evaluated     int `json:"evaluated"`
	Existing      int `json:"existing"`
	BelowScore    int `json:"below_score"`
	Introductions int `json:"introductions"`
	Failed        int `json:"failed"`
}

// Run scores every eligible company against every investor without an
// introduction and creates introductions for pairs at or above the
// threshold. Per-pair failures are logged and counted.
func (e *Engine) Run(ctx context.Context, userID string) (*Result, error) {
	log := zap.L().With(zap.String("user", userID), zap.String("stage", "matching"))
	res := &Result{}

	companies, err := e.store.ListCompanies(ctx, userID, store.CompanyFilter{Stages: matchStages})
	if err != nil {
		return nil, eris.Wrap(err, "matching: list companies")
	}
	investors, err := e.store.ListInvestors(ctx, userID)
	if err != nil {
		return nil, eris.Wrap(err, "matching: list investors")
	}
	res.Companies, res.Investors = len(companies), len(investors)
	if len(companies) == 0 || len(investors) == 0 {
		return res, nil
	}

	now := e.nowFunc().UTC()
	prog := model.JobProgress{Total: len(companies)}
	for i := range companies {
		c := &companies[i]
		var contact *model.Founder
		loaded := false
		failed := res.Failed

		for j := range investors {
			inv := &investors[j]
			exists, err := e.store.IntroductionExists(ctx, userID, c.ID, inv.ID)
			if err != nil {
				res.Failed++
				log.Warn("matching: check introduction", zap.String("company_id", c.ID),
					zap.String("investor_id", inv.ID), zap.Error(err))
				continue
			}
			if exists {
				res.Existing++
				continue
			}

			res.Evaluated++
			m := Score(c, inv, now, e.recency)
			if m.Score < e.threshold {
				res.BelowScore++
				continue
			}

			if !loaded {
				founders, err := e.store.ListFounders(ctx, userID, c.ID)
				if err != nil {
					log.Warn("matching: list founders", zap.String("company_id", c.ID), zap.Error(err))
				}
				contact = BestFounder(founders)
				loaded = true
			}

			created, err := e.introduce(ctx, c, inv, contact, m, now)
			if created {
				res.Introductions++
				log.Debug("matching: introduction created",
					zap.String("company", c.Name), zap.String("firm", inv.Firm),
					zap.Int("score", m.Score), zap.String("reasons", strings.Join(m.Reasons, "; ")))
			}
			if err != nil {
				res.Failed++
				log.Warn("matching: create introduction", zap.String("company_id", c.ID),
					zap.String("investor_id", inv.ID), zap.Error(err))
				continue
			}
			if !created {
				res.Existing++
			}
		}

		prog.Processed++
		if res.Failed > failed {
			prog.Failed++
		} else {
			prog.Succeeded++
		}
		e.progress.Report(prog)
	}

	log.Info("matching complete",
		zap.Int("companies", res.Companies),
		zap.Int("investors", res.Investors),
		zap.Int("evaluated", res.Evaluated),
		zap.Int("introductions", res.Introductions),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// introduce records the introduction and bumps the investor's intro
// bookkeeping when it was newly created.
func (e *Engine) introduce(ctx context.Context, c *model.Company, inv *model.Investor, contact *model.Founder, m Match, now time.Time) (bool, error) {
	in := &model.Introduction{
		UserID:     c.UserID,
		CompanyID:  c.ID,
		InvestorID: inv.ID,
		Status:     model.IntroConsidering,
		MatchScore: m.Score,
		Reasons:    m.Reasons,
	}
	if in.UserID == "" {
		in.UserID = inv.UserID
	}
	if contact != nil {
		in.FounderID = contact.ID
	}
	created, err := e.store.CreateIntroduction(ctx, in)
	if err != nil || !created {
		return created, err
	}

	inv.IntroCount++
	inv.LastIntroducedAt = &now
	if err := e.store.UpdateInvestor(ctx, inv); err != nil {
		return true, eris.Wrapf(err, "matching: update investor %s", inv.ID)
	}
	return true, nil
}
