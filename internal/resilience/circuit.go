// Package resilience provides retry, backoff and circuit breaking for
// external API calls and outreach delivery.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the position of a Breaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cooldown has passed.
	BreakerOpen
	// BreakerHalfOpen lets one trial call through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned for calls rejected by an open breaker.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerConfig tunes a Breaker. Zero values take the defaults below.
type BreakerConfig struct {
	Threshold int           // consecutive failures that open the breaker; default 5
	Cooldown  time.Duration // time spent open before a trial call; default 5m

	// Trips reports whether err counts as a provider failure. Nil counts
	// every error.
	Trips func(err error) bool

	OnChange func(from, to BreakerState)
}

// Breaker stops calls to a provider after repeated failures. Once the
// cooldown has passed a single trial call is admitted; its outcome closes or
// reopens the breaker. Calls arriving while the trial call is in flight are
// rejected.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool

	nowFunc func() time.Time
}

// NewBreaker creates a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.Trips == nil {
		cfg.Trips = func(err error) bool { return err != nil }
	}
	return &Breaker{cfg: cfg, nowFunc: time.Now}
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Guarded(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Guarded runs fn through b and returns its value. It is Do for calls that
// return a result.
func Guarded[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := b.admit(); err != nil {
		var zero T
		return zero, err
	}
	v, err := fn(ctx)
	b.settle(err)
	return v, err
}

// State reports the current state. An open breaker whose cooldown has
// passed reports half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.cooled() {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears the failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	b.moveTo(BreakerClosed)
}

func (b *Breaker) cooled() bool {
	return b.nowFunc().Sub(b.openedAt) >= b.cfg.Cooldown
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if !b.cooled() {
			return ErrCircuitOpen
		}
		b.moveTo(BreakerHalfOpen)
		b.probing = true
	case BreakerHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := err != nil && b.cfg.Trips(err)
	wasProbe := b.state == BreakerHalfOpen
	b.probing = false

	if !failed {
		b.failures = 0
		if wasProbe {
			b.moveTo(BreakerClosed)
		}
		return
	}

	b.failures++
	if wasProbe || b.failures >= b.cfg.Threshold {
		b.openedAt = b.nowFunc()
		b.moveTo(BreakerOpen)
	}
}

func (b *Breaker) moveTo(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnChange != nil {
		b.cfg.OnChange(from, to)
	}
}

// BreakerSet hands out one Breaker per key, all built from the same
// config. Breakers live as long as the set.
type BreakerSet struct {
	cfg      BreakerConfig
	onChange func(key string, from, to BreakerState)

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewBreakerSet creates an empty set. onChange, if set, is told about every
// transition of every breaker in the set.
func NewBreakerSet(cfg BreakerConfig, onChange func(key string, from, to BreakerState)) *BreakerSet {
	return &BreakerSet{cfg: cfg, onChange: onChange, breakers: make(map[string]*Breaker)}
}

// For returns the breaker for key, creating it on first use.
func (s *BreakerSet) For(key string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[key]; ok {
		return b
	}
	cfg := s.cfg
	if s.onChange != nil {
		cfg.OnChange = func(from, to BreakerState) { s.onChange(key, from, to) }
	}
	b := NewBreaker(cfg)
	s.breakers[key] = b
	return b
}

// States snapshots the state of every breaker created so far.
func (s *BreakerSet) States() map[string]BreakerState {
	s.mu.Lock()
	keys := make(map[string]*Breaker, len(s.breakers))
	for k, b := range s.breakers {
		keys[k] = b
	}
	s.mu.Unlock()

	out := make(map[string]BreakerState, len(keys))
	for k, b := range keys {
		out[k] = b.State()
	}
	return out
}
