// Package discovery finds newly incorporated companies in the public
// registry and records them with their officers.
package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/ratelimit"
	"github.com/sells-group/dealflow-cli/pkg/companieshouse"
)

const (
	// DefaultLookbackDays is the on-demand incorporation window.
	DefaultLookbackDays = 30
	// DefaultLimit caps new companies per on-demand run.
	DefaultLimit = 50

	// maxPagesPerCode bounds enumeration of a single code.
	maxPagesPerCode = 20

	stealthDays   = 90
	announcedDays = 180
)

// DefaultCodes is the curated tech, AI, fintech and fashion-tech SIC list.
var DefaultCodes = []string{
	"62011", // ready-made interactive leisure and entertainment software
	"62012", // business and domestic software development
	"62020", // information technology consultancy
	"62090", // other information technology services
	"63110", // data processing, hosting
	"63120", // web portals
	"58290", // other software publishing
	"72190", // other research and experimental development on natural sciences
	"64999", // financial intermediation not elsewhere classified
	"66190", // other activities auxiliary to financial services
	"47910", // retail via internet
	"14190", // manufacture of other wearing apparel
}

// eligibleTypes are the limited-company types kept after search.
var eligibleTypes = map[string]bool{
	"ltd":                         true,
	"private-limited-guarant-nsc": true,
	"private-limited-guarant-nsc-limited-exemption": true,
	"private-limited-shares-section-30-exemption":   true,
	"plc": true,
}

// Store is the subset of the record store discovery writes to.
type Store interface {
	CompanyExists(ctx context.Context, userID, registryID string) (bool, error)
	UpsertCompany(ctx context.Context, c *model.Company) (id string, created bool, err error)
	CreateFounder(ctx context.Context, f *model.Founder) error
}

// Gate admits one call to an external API for a user.
type Gate interface {
	Gate(ctx context.Context, userID, api string) error
}

// Params describes one discovery run.
type Params struct {
	Codes        []string
	LookbackDays int
	Limit        int
}

// Result reports what a run found and added.
type Result struct {
	Found       int  `json:"found"`
	Filtered    int  `json:"filtered"`
	Added       int  `json:"added"`
	Existing    int  `json:"existing"`
	Founders    int  `json:"founders"`
	Failed      int  `json:"failed"`
	RateLimited bool `json:"rate_limited"`
}

// Discoverer runs registry discovery for one user at a time.
type Discoverer struct {
	store    Store
	registry companieshouse.Client
	gate     Gate
	progress model.ProgressFunc
	nowFunc  func() time.Time
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithProgress reports counts after each eligible company.
func WithProgress(fn model.ProgressFunc) Option {
	return func(d *Discoverer) { d.progress = fn }
}

// New creates a Discoverer. gate may be nil.
func New(store Store, registry companieshouse.Client, gate Gate, opts ...Option) *Discoverer {
	d := &Discoverer{store: store, registry: registry, gate: gate, nowFunc: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run searches each code over the lookback window, keeps active limited
// companies, and stores up to Limit companies not seen before. A registry
// rate limit, during search or officer lookup, stops the run but keeps what
// was already stored.
func (d *Discoverer) Run(ctx context.Context, userID string, p Params) (*Result, error) {
	if len(p.Codes) == 0 {
		p.Codes = DefaultCodes
	}
	if p.LookbackDays <= 0 {
		p.LookbackDays = DefaultLookbackDays
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	log := zap.L().With(zap.String("user", userID), zap.String("stage", "discovery"))

	now := d.nowFunc().UTC()
	from := now.AddDate(0, 0, -p.LookbackDays)
	res := &Result{}

	found, order, limited := d.collect(ctx, userID, p.Codes, from, now)
	res.Found = len(found)
	res.RateLimited = limited
	if ctx.Err() != nil {
		return res, eris.Wrap(ctx.Err(), "discovery: run")
	}

	var eligible []companieshouse.CompanySummary
	for _, num := range order {
		cs := found[num]
		if cs.CompanyStatus == "active" && eligibleTypes[cs.CompanyType] {
			eligible = append(eligible, cs)
		}
	}
	res.Filtered = len(eligible)

	prog := model.JobProgress{Total: len(eligible)}
	for _, cs := range eligible {
		if res.Added >= p.Limit {
			break
		}
		failed := res.Failed
		stop := d.storeCompany(ctx, userID, cs, now, res, log)
		prog.Processed++
		if res.Failed > failed {
			prog.Failed++
		} else {
			prog.Succeeded++
		}
		d.progress.Report(prog)
		if stop {
			break
		}
	}

	log.Info("discovery complete",
		zap.Int("found", res.Found),
		zap.Int("filtered", res.Filtered),
		zap.Int("added", res.Added),
		zap.Int("existing", res.Existing),
		zap.Int("founders", res.Founders),
		zap.Bool("rate_limited", res.RateLimited),
	)
	return res, nil
}

// storeCompany fetches officers and stores one company with its founders.
// A company whose officers cannot be read is left for a later run. It
// returns true when the registry rate limit means the run should stop.
func (d *Discoverer) storeCompany(ctx context.Context, userID string, cs companieshouse.CompanySummary, now time.Time, res *Result, log *zap.Logger) bool {
	num := cs.CompanyNumber
	exists, err := d.store.CompanyExists(ctx, userID, num)
	if err != nil {
		res.Failed++
		log.Warn("discovery: check existing company", zap.String("registry_id", num), zap.Error(err))
		return false
	}
	if exists {
		res.Existing++
		return false
	}

	officers, err := d.officers(ctx, userID, num)
	if err != nil {
		if isRateLimit(err) {
			res.RateLimited = true
			log.Warn("discovery: registry rate limited fetching officers, stopping", zap.String("registry_id", num))
			return true
		}
		res.Failed++
		log.Warn("discovery: fetch officers, company skipped", zap.String("registry_id", num), zap.Error(err))
		return false
	}

	c := newCompany(userID, cs, now)
	id, created, err := d.store.UpsertCompany(ctx, c)
	if err != nil {
		res.Failed++
		log.Warn("discovery: store company", zap.String("registry_id", num), zap.Error(err))
		return false
	}
	if !created {
		res.Existing++
		return false
	}
	res.Added++

	for _, o := range officers {
		f := newFounder(userID, id, o)
		if err := d.store.CreateFounder(ctx, f); err != nil {
			log.Warn("discovery: store founder", zap.String("company_id", id), zap.Error(err))
			continue
		}
		res.Founders++
	}
	return false
}

// collect pages through every code and merges results by company number.
// order lists numbers by first appearance; the map holds the last seen
// summary for each.
func (d *Discoverer) collect(ctx context.Context, userID string, codes []string, from, to time.Time) (map[string]companieshouse.CompanySummary, []string, bool) {
	log := zap.L().With(zap.String("user", userID), zap.String("stage", "discovery"))
	found := make(map[string]companieshouse.CompanySummary)
	var order []string

	for _, code := range codes {
		start := 0
		for page := 0; page < maxPagesPerCode; page++ {
			if ctx.Err() != nil {
				return found, order, false
			}
			if err := d.admit(ctx, userID); err != nil {
				if isRateLimit(err) {
					log.Warn("discovery: registry quota reached, stopping", zap.Error(err))
					return found, order, true
				}
				log.Warn("discovery: rate gate", zap.Error(err))
				return found, order, false
			}

			res, err := d.registry.AdvancedSearch(ctx, companieshouse.SearchParams{
				IncorporatedFrom: from,
				IncorporatedTo:   to,
				SICCodes:         []string{code},
				Status:           "active",
				Size:             companieshouse.MaxPageSize,
				StartIndex:       start,
			})
			if err != nil {
				if errors.Is(err, companieshouse.ErrRateLimited) {
					log.Warn("discovery: registry rate limited, stopping", zap.String("code", code))
					return found, order, true
				}
				log.Warn("discovery: search failed, skipping code", zap.String("code", code), zap.Error(err))
				break
			}

			for _, item := range res.Items {
				if item.CompanyNumber == "" {
					continue
				}
				if _, seen := found[item.CompanyNumber]; !seen {
					order = append(order, item.CompanyNumber)
				}
				found[item.CompanyNumber] = item
			}
			if len(res.Items) < companieshouse.MaxPageSize {
				break
			}
			start += len(res.Items)
		}
	}
	return found, order, false
}

// officers returns the active natural-person officers of a company.
func (d *Discoverer) officers(ctx context.Context, userID, number string) ([]companieshouse.Officer, error) {
	if err := d.admit(ctx, userID); err != nil {
		return nil, err
	}
	list, err := d.registry.Officers(ctx, number)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: officers for %s", number)
	}
	var out []companieshouse.Officer
	for _, o := range list.Items {
		if o.Resigned() || o.Corporate() || o.Name == "" {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (d *Discoverer) admit(ctx context.Context, userID string) error {
	if d.gate == nil {
		return nil
	}
	return d.gate.Gate(ctx, userID, ratelimit.APICompaniesHouse)
}

func isRateLimit(err error) bool {
	return errors.Is(err, ratelimit.ErrQuotaExceeded) || errors.Is(err, companieshouse.ErrRateLimited)
}

// newCompany maps a registry summary to a discovered company. Stealth and
// recently-announced flags come from incorporation age alone.
func newCompany(userID string, cs companieshouse.CompanySummary, now time.Time) *model.Company {
	c := &model.Company{
		UserID:         userID,
		RegistryID:     cs.CompanyNumber,
		Name:           cs.CompanyName,
		IncorporatedOn: cs.IncorporatedOn(),
		Status:         cs.CompanyStatus,
		Type:           cs.CompanyType,
		IndustryCodes:  cs.SICCodes,
		Locality:       cs.Address.Locality,
		PostalCode:     cs.Address.PostalCode,
		Stage:          model.StageDiscovered,
	}
	c.IsStealth, c.RecentlyAnnounced = AgeFlags(c.AgeDays(now))
	return c
}

// AgeFlags derives the stealth and recently-announced flags from company
// age in days. A negative age (unknown date) sets neither.
func AgeFlags(ageDays int) (stealth, announced bool) {
	switch {
	case ageDays < 0:
		return false, false
	case ageDays < stealthDays:
		return true, false
	case ageDays <= announcedDays:
		return false, true
	}
	return false, false
}

func newFounder(userID, companyID string, o companieshouse.Officer) *model.Founder {
	first, last := o.Names()
	return &model.Founder{
		UserID:      userID,
		CompanyID:   companyID,
		OfficerRole: o.OfficerRole,
		FirstName:   first,
		LastName:    last,
	}
}
