package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Pacer enforces a minimum spacing between consecutive calls to each API.
// It is process-wide: all users share one spacing per API.
type Pacer struct {
	mu       sync.Mutex
	spacing  map[string]time.Duration
	limiters map[string]*rate.Limiter
}

// NewPacer creates a pacer. APIs missing from spacing, or with a
// non-positive spacing, are not paced.
func NewPacer(spacing map[string]time.Duration) *Pacer {
	return &Pacer{
		spacing:  spacing,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the next call to api may proceed.
func (p *Pacer) Wait(ctx context.Context, api string) error {
	lim := p.limiterFor(api)
	if lim == nil {
		return nil
	}
	if err := lim.Wait(ctx); err != nil {
		return eris.Wrapf(err, "ratelimit: pace %s", api)
	}
	return nil
}

// Spacing returns the configured interval for api.
func (p *Pacer) Spacing(api string) time.Duration {
	return p.spacing[api]
}

func (p *Pacer) limiterFor(api string) *rate.Limiter {
	d := p.spacing[api]
	if d <= 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	lim, ok := p.limiters[api]
	if !ok {
		lim = rate.NewLimiter(rate.Every(d), 1)
		p.limiters[api] = lim
	}
	return lim
}
