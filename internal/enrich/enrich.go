// Package enrich fills in founder profiles and company details from web
// search, email discovery and code hosting.
package enrich

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/fetcher"
	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/profile"
	"github.com/sells-group/dealflow-cli/internal/ratelimit"
	"github.com/sells-group/dealflow-cli/internal/resilience"
	"github.com/sells-group/dealflow-cli/internal/scoring"
	"github.com/sells-group/dealflow-cli/internal/store"
	"github.com/sells-group/dealflow-cli/pkg/apollo"
	"github.com/sells-group/dealflow-cli/pkg/exa"
	"github.com/sells-group/dealflow-cli/pkg/hunter"
)

const (
	// DefaultCompanyLimit caps companies processed per run.
	DefaultCompanyLimit = 10

	// founderRetryAfter spaces repeat attempts on a founder whose profile,
	// email or code profile is still missing.
	founderRetryAfter = 7 * 24 * time.Hour
)

// Store is the subset of the record store enrichment reads and writes.
type Store interface {
	ListCompanies(ctx context.Context, userID string, filter store.CompanyFilter) ([]model.Company, error)
	UpdateCompany(ctx context.Context, c *model.Company) error
	ListFounders(ctx context.Context, userID, companyID string) ([]model.Founder, error)
	UpdateFounder(ctx context.Context, f *model.Founder) error
}

// Gate admits one call to an external API for a user.
type Gate interface {
	Gate(ctx context.Context, userID, api string) error
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithSearch sets the semantic search client. Without one, founder and
// company searches are skipped.
func WithSearch(c exa.Client) Option { return func(e *Enricher) { e.search = c } }

// WithApollo sets the primary email-discovery client.
func WithApollo(c apollo.Client) Option { return func(e *Enricher) { e.apollo = c } }

// WithHunter sets the fallback email-discovery client.
func WithHunter(c hunter.Client) Option { return func(e *Enricher) { e.hunter = c } }

// WithCodeHost sets the code-hosting lookup.
func WithCodeHost(h CodeHost) Option { return func(e *Enricher) { e.code = h } }

// WithFetcher sets the website fetcher used for product descriptions.
func WithFetcher(f fetcher.Fetcher) Option { return func(e *Enricher) { e.web = f } }

// WithParser overrides the profile parser.
func WithParser(p *profile.Parser) Option { return func(e *Enricher) { e.parser = p } }

// WithProgress reports counts after each company.
func WithProgress(fn model.ProgressFunc) Option { return func(e *Enricher) { e.progress = fn } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(e *Enricher) { e.nowFunc = now } }

// Enricher runs founder and company enrichment for one user at a time.
type Enricher struct {
	store    Store
	gate     Gate
	search   exa.Client
	apollo   apollo.Client
	hunter   hunter.Client
	code     CodeHost
	web      fetcher.Fetcher
	parser   *profile.Parser
	progress model.ProgressFunc
	nowFunc  func() time.Time
}

// New creates an Enricher. gate may be nil.
func New(st Store, gate Gate, opts ...Option) *Enricher {
	e := &Enricher{store: st, gate: gate, nowFunc: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.parser == nil {
		e.parser = profile.NewParser(nil)
	}
	return e
}

// Params describes one enrichment run.
type Params struct {
	Limit int
}

// Result reports what a run did.
type Result struct {
	Companies         int  `json:"companies"`
	Advanced          int  `json:"advanced"`
	CompaniesEnriched int  `json:"companies_enriched"`
	FoundersSearched  int  `json:"founders_searched"`
	FoundersEnriched  int  `json:"founders_enriched"`
	Emails            int  `json:"emails"`
	CodeProfiles      int  `json:"code_profiles"`
	LookupErrors      int  `json:"lookup_errors"`
	Failed            int  `json:"failed"`
	RateLimited       bool `json:"rate_limited"`
}

// runState is the per-run counters plus lookups switched off mid-run.
type runState struct {
	res      *Result
	emailOff bool
	codeOff  bool
}

// Run enriches companies in discovered or researching, least recently
// attempted first. Each attempted company moves to researching. A quota or
// upstream rate limit on search stops the run; email and code-host limits
// only switch that lookup off. Other per-record errors are logged and
// counted.
func (e *Enricher) Run(ctx context.Context, userID string, p Params) (*Result, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultCompanyLimit
	}
	log := zap.L().With(zap.String("user", userID), zap.String("stage", "enrichment"))

	companies, err := e.store.ListCompanies(ctx, userID, store.CompanyFilter{
		Stages: []model.Stage{model.StageDiscovered, model.StageResearching},
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: list companies")
	}
	sortByAttempt(companies)
	if len(companies) > p.Limit {
		companies = companies[:p.Limit]
	}

	res := &Result{}
	rs := &runState{res: res}
	prog := model.JobProgress{Total: len(companies)}
	for i := range companies {
		if ctx.Err() != nil {
			return res, eris.Wrap(ctx.Err(), "enrich: run")
		}
		c := &companies[i]
		res.Companies++
		err := e.enrichCompanyRecord(ctx, userID, c, rs)
		prog.Processed++
		if err == nil {
			prog.Succeeded++
			e.progress.Report(prog)
			continue
		}
		prog.Failed++
		e.progress.Report(prog)
		if isRateLimit(err) {
			res.RateLimited = true
			log.Warn("enrich: rate limited, stopping", zap.String("company_id", c.ID), zap.Error(err))
			break
		}
		res.Failed++
		log.Warn("enrich: company failed", zap.String("company_id", c.ID), zap.Error(err))
	}

	log.Info("enrichment complete",
		zap.Int("companies", res.Companies),
		zap.Int("advanced", res.Advanced),
		zap.Int("companies_enriched", res.CompaniesEnriched),
		zap.Int("founders_enriched", res.FoundersEnriched),
		zap.Int("emails", res.Emails),
		zap.Int("code_profiles", res.CodeProfiles),
		zap.Int("lookup_errors", res.LookupErrors),
		zap.Bool("rate_limited", res.RateLimited),
	)
	return res, nil
}

// enrichCompanyRecord marks the company attempted, enriches it and its
// founders, and saves the company even when a step fails.
func (e *Enricher) enrichCompanyRecord(ctx context.Context, userID string, c *model.Company, rs *runState) (err error) {
	res := rs.res
	now := e.nowFunc().UTC()
	if c.Stage == model.StageDiscovered {
		if aerr := c.Advance(model.StageResearching); aerr == nil {
			res.Advanced++
		}
	}
	c.EnrichmentAttemptedAt = &now
	defer func() {
		if uerr := e.store.UpdateCompany(ctx, c); uerr != nil && err == nil {
			err = eris.Wrap(uerr, "enrich: save company")
		}
	}()

	if c.Enrichment == nil && e.search != nil {
		enr, cerr := e.EnrichCompany(ctx, userID, c)
		switch {
		case cerr == nil:
			c.Enrichment = enr
			c.FundingStage = FundingStage(enr.Funding)
			c.Scores.Traction = enr.TractionScore
			res.CompaniesEnriched++
		case isRateLimit(cerr):
			return cerr
		default:
			res.Failed++
			zap.L().Warn("enrich: company search failed",
				zap.String("user", userID), zap.String("company_id", c.ID), zap.Error(cerr))
		}
	}

	founders, ferr := e.store.ListFounders(ctx, userID, c.ID)
	if ferr != nil {
		return eris.Wrap(ferr, "enrich: list founders")
	}
	for i := range founders {
		f := &founders[i]
		if ferr := e.enrichFounderRecord(ctx, userID, f, c, rs); ferr != nil {
			if isRateLimit(ferr) {
				return ferr
			}
			res.Failed++
			zap.L().Warn("enrich: founder failed",
				zap.String("user", userID), zap.String("founder_id", f.ID), zap.Error(ferr))
		}
	}
	return nil
}

// enrichFounderRecord runs every founder sub-flow that still has work to do,
// profile first, saving the founder after each one that changes it. A
// profile error is returned; email and code-host errors are logged and the
// lookup is switched off for the rest of the run when rate limited. A
// founder is attempted at most once per founderRetryAfter.
func (e *Enricher) enrichFounderRecord(ctx context.Context, userID string, f *model.Founder, c *model.Company, rs *runState) error {
	now := e.nowFunc().UTC()
	if !dueForAttempt(f, now) {
		return nil
	}
	res := rs.res
	wantProfile := e.search != nil && f.NeedsEnrichment()
	wantEmail := f.Email == "" && !rs.emailOff && (e.apollo != nil || e.hunter != nil)
	wantCode := f.CodeProfile == nil && !rs.codeOff && e.code != nil
	if !wantProfile && !wantEmail && !wantCode {
		return nil
	}
	log := zap.L().With(zap.String("user", userID), zap.String("founder_id", f.ID))

	if wantProfile {
		res.FoundersSearched++
		en, err := e.EnrichFounder(ctx, userID, f, c.Name)
		if err != nil {
			return err
		}
		if en != nil {
			ApplyFounderEnrichment(f, en)
			res.FoundersEnriched++
		}
		if err := e.saveFounder(ctx, f, now); err != nil {
			return err
		}
	}

	if wantEmail {
		email, source, err := e.FindEmail(ctx, userID, f, c)
		switch {
		case err != nil:
			res.LookupErrors++
			if isRateLimit(err) {
				rs.emailOff = true
				log.Warn("enrich: email lookup rate limited, skipping for this run", zap.Error(err))
			} else {
				log.Warn("enrich: email lookup failed", zap.Error(err))
			}
		case email != "":
			f.Email = email
			res.Emails++
			log.Debug("enrich: email found", zap.String("source", source))
		}
	}

	if wantCode {
		cp, err := e.lookupCode(ctx, userID, f)
		switch {
		case err != nil:
			res.LookupErrors++
			if isRateLimit(err) {
				rs.codeOff = true
				log.Warn("enrich: code host rate limited, skipping for this run", zap.Error(err))
			} else {
				log.Warn("enrich: code profile lookup failed", zap.Error(err))
			}
		case cp != nil:
			f.CodeProfile = cp
			if f.GitHubURL == "" {
				f.GitHubURL = cp.URL
			}
			res.CodeProfiles++
		}
	}

	return e.saveFounder(ctx, f, now)
}

// saveFounder refreshes derived signals and scores, stamps the attempt and
// writes the founder.
func (e *Enricher) saveFounder(ctx context.Context, f *model.Founder, now time.Time) error {
	applyCodeSignals(f)
	if f.LinkedInURL != "" {
		scoring.ApplyFounder(f)
	}
	f.EnrichedAt = &now
	if err := e.store.UpdateFounder(ctx, f); err != nil {
		return eris.Wrap(err, "enrich: save founder")
	}
	return nil
}

// dueForAttempt reports whether a founder was never attempted or its last
// attempt is stale.
func dueForAttempt(f *model.Founder, now time.Time) bool {
	return f.EnrichedAt == nil || now.Sub(*f.EnrichedAt) >= founderRetryAfter
}

func (e *Enricher) admit(ctx context.Context, userID, api string) error {
	if e.gate == nil {
		return nil
	}
	return e.gate.Gate(ctx, userID, api)
}

// sortByAttempt orders never-attempted companies first, then oldest
// attempt first. The sort is stable so store order breaks ties.
func sortByAttempt(cs []model.Company) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i].EnrichmentAttemptedAt, cs[j].EnrichmentAttemptedAt
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		}
		return a.Before(*b)
	})
}

func isRateLimit(err error) bool {
	return errors.Is(err, ratelimit.ErrQuotaExceeded) || resilience.StatusCode(err) == 429
}

// CleanCompanyName strips a trailing legal suffix from a registry name and
// title-cases it for search.
func CleanCompanyName(name string) string {
	fields := strings.Fields(name)
	for len(fields) > 1 {
		last := strings.ToUpper(strings.Trim(fields[len(fields)-1], ".,"))
		if last != "LTD" && last != "LIMITED" && last != "PLC" && last != "LLP" {
			break
		}
		fields = fields[:len(fields)-1]
	}
	for i, f := range fields {
		if f == strings.ToUpper(f) && utf8.RuneCountInString(f) > 3 {
			_, size := utf8.DecodeRuneInString(f)
			fields[i] = f[:size] + strings.ToLower(f[size:])
		}
	}
	return strings.Join(fields, " ")
}
