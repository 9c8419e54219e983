// Package ratelimit enforces per-(user, API) sliding-window quotas and
// paces calls to each external API.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/model"
)

// External API names used as limiter keys.
const (
	APICompaniesHouse = "companies_house"
	APIExa            = "exa"
	APIResend         = "resend"
	APIApollo         = "apollo"
	APIHunter         = "hunter"
	APIGitHub         = "github"
	APIWebsite        = "website"
)

// Quota is the number of requests allowed per window.
type Quota struct {
	Requests int
	Window   time.Duration
}

// DefaultQuotas returns the per-API quotas.
func DefaultQuotas() map[string]Quota {
	return map[string]Quota{
		APICompaniesHouse: {Requests: 600, Window: 5 * time.Minute},
		APIExa:            {Requests: 100, Window: time.Minute},
		APIResend:         {Requests: 10, Window: time.Minute},
		APIApollo:         {Requests: 50, Window: time.Minute},
		APIHunter:         {Requests: 25, Window: time.Minute},
		APIGitHub:         {Requests: 10, Window: time.Minute},
		APIWebsite:        {Requests: 60, Window: time.Minute},
	}
}

// CounterStore persists rate-limit counters.
type CounterStore interface {
	GetRateLimit(ctx context.Context, userID, api string) (*model.RateLimitCounter, error)
	PutRateLimit(ctx context.Context, c *model.RateLimitCounter) error
}

// ErrQuotaExceeded is the sentinel behind every *QuotaError.
var ErrQuotaExceeded = eris.New("ratelimit: quota exceeded")

// QuotaError reports a rejected call and how long until the window resets.
type QuotaError struct {
	API        string
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("ratelimit: %s quota exceeded, retry after %s", e.API, e.RetryAfter.Round(time.Second))
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// Decision is the result of an Allowed check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter checks and records calls against per-API quotas. Checks and
// records are separate reads and writes, so concurrent callers for the same
// user can briefly over-admit; stages serialize per user via the job guard.
type Limiter struct {
	store   CounterStore
	quotas  map[string]Quota
	pacer   *Pacer
	nowFunc func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithQuotas replaces the default quotas.
func WithQuotas(q map[string]Quota) Option {
	return func(l *Limiter) { l.quotas = q }
}

// WithPacer sets the pacer Gate waits on before each call.
func WithPacer(p *Pacer) Option {
	return func(l *Limiter) { l.pacer = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.nowFunc = now }
}

// New creates a Limiter over the given counter store.
func New(store CounterStore, opts ...Option) *Limiter {
	l := &Limiter{
		store:   store,
		quotas:  DefaultQuotas(),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Quota returns the quota for api and whether one is configured.
func (l *Limiter) Quota(api string) (Quota, bool) {
	q, ok := l.quotas[api]
	return q, ok
}

// Allowed reports whether one more call to api fits in the user's current
// window. It does not consume quota. APIs without a quota are always allowed.
func (l *Limiter) Allowed(ctx context.Context, userID, api string) (Decision, error) {
	q, ok := l.quotas[api]
	if !ok {
		return Decision{Allowed: true}, nil
	}

	c, err := l.store.GetRateLimit(ctx, userID, api)
	if err != nil {
		return Decision{}, eris.Wrapf(err, "ratelimit: load counter %s", api)
	}
	now := l.nowFunc()
	if c == nil || !now.Before(c.WindowEnd) {
		return Decision{Allowed: true}, nil
	}
	if c.RequestCount >= q.Requests {
		return Decision{Allowed: false, RetryAfter: c.WindowEnd.Sub(now)}, nil
	}
	return Decision{Allowed: true}, nil
}

// Record consumes one unit of the user's quota for api, starting a fresh
// window when none is active.
func (l *Limiter) Record(ctx context.Context, userID, api string) error {
	q, ok := l.quotas[api]
	if !ok {
		return nil
	}

	c, err := l.store.GetRateLimit(ctx, userID, api)
	if err != nil {
		return eris.Wrapf(err, "ratelimit: load counter %s", api)
	}
	now := l.nowFunc()
	if c == nil || !now.Before(c.WindowEnd) {
		c = &model.RateLimitCounter{
			UserID:      userID,
			APIName:     api,
			WindowStart: now,
			WindowEnd:   now.Add(q.Window),
		}
	}
	c.RequestCount++

	if err := l.store.PutRateLimit(ctx, c); err != nil {
		return eris.Wrapf(err, "ratelimit: save counter %s", api)
	}
	return nil
}

// Gate waits out the API's pacing interval, checks the quota and records
// the call. A rejected call returns a *QuotaError and records nothing.
func (l *Limiter) Gate(ctx context.Context, userID, api string) error {
	if l.pacer != nil {
		if err := l.pacer.Wait(ctx, api); err != nil {
			return err
		}
	}

	d, err := l.Allowed(ctx, userID, api)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &QuotaError{API: api, RetryAfter: d.RetryAfter}
	}
	return l.Record(ctx, userID, api)
}
