package outreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/ratelimit"
	"github.com/sells-group/dealflow-cli/internal/resilience"
	"github.com/sells-group/dealflow-cli/pkg/resend"
)

const (
	// DefaultDispatchLimit caps items sent per run.
	DefaultDispatchLimit = 20
	// RetryBase is the unit of the retry schedule: a failed item is retried
	// after RetryBase × 2^attempts.
	RetryBase = time.Minute
)

// Gate admits one call to an external API for a user.
type Gate interface {
	Gate(ctx context.Context, userID, api string) error
}

// DispatchOption configures a Dispatcher.
type DispatchOption func(*Dispatcher)

// WithDispatchLimit caps items per run.
func WithDispatchLimit(n int) DispatchOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.limit = n
		}
	}
}

// WithGate sets the rate-limit gate.
func WithGate(g Gate) DispatchOption {
	return func(d *Dispatcher) { d.gate = g }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *resilience.Breaker) DispatchOption {
	return func(d *Dispatcher) { d.breaker = cb }
}

// WithDispatchClock overrides the time source.
func WithDispatchClock(now func() time.Time) DispatchOption {
	return func(d *Dispatcher) { d.nowFunc = now }
}

// WithDispatchProgress reports counts after each item.
func WithDispatchProgress(fn model.ProgressFunc) DispatchOption {
	return func(d *Dispatcher) { d.progress = fn }
}

// Dispatcher sends due email items one at a time.
type Dispatcher struct {
	store    Store
	mailer   resend.Client
	gate     Gate
	breaker  *resilience.Breaker
	limit    int
	progress model.ProgressFunc
	nowFunc  func() time.Time
}

// NewDispatcher creates a Dispatcher. The default breaker opens after five
// consecutive transient provider failures.
func NewDispatcher(st Store, mailer resend.Client, opts ...DispatchOption) *Dispatcher {
	d := &Dispatcher{
		store:   st,
		mailer:  mailer,
		breaker: resilience.NewBreaker(resilience.BreakerConfig{Trips: resilience.IsTransient}),
		limit:   DefaultDispatchLimit,
		nowFunc: time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// DispatchResult reports a dispatch run.
type DispatchResult struct {
	Due         int  `json:"due"`
	Sent        int  `json:"sent"`
	Retried     int  `json:"retried"`
	Failed      int  `json:"failed"`
	RateLimited bool `json:"rate_limited"`
	CircuitOpen bool `json:"circuit_open"`
}

// Sender formats the From header for the user's sender identity.
func Sender(s *model.Settings) string {
	if s.SenderName == "" {
		return s.SenderEmail
	}
	return fmt.Sprintf("%s <%s>", s.SenderName, s.SenderEmail)
}

// Run sends due queued email items. A failed send increments attempts and
// either reschedules the item after RetryBase × 2^attempts or, once the
// budget is spent, marks it failed. A quota rejection or open breaker ends
// the run without charging an attempt.
func (d *Dispatcher) Run(ctx context.Context, s *model.Settings) (*DispatchResult, error) {
	if s.SenderEmail == "" {
		return nil, eris.New("outreach: sender email not configured")
	}
	userID := s.UserID
	log := zap.L().With(zap.String("user", userID), zap.String("stage", "outreach_dispatch"))
	res := &DispatchResult{}

	items, err := d.store.ListDueOutreach(ctx, userID, model.ChannelEmail, d.nowFunc().UTC(), d.limit)
	if err != nil {
		return nil, eris.Wrap(err, "outreach: list due")
	}
	res.Due = len(items)
	from := Sender(s)
	prog := model.JobProgress{Total: len(items)}

	for i := range items {
		item := &items[i]

		if d.gate != nil {
			if err := d.gate.Gate(ctx, userID, ratelimit.APIResend); err != nil {
				if errors.Is(err, ratelimit.ErrQuotaExceeded) {
					res.RateLimited = true
					log.Info("outreach: send quota reached", zap.Error(err))
					break
				}
				return res, eris.Wrap(err, "outreach: gate")
			}
		}

		resp, err := resilience.Guarded(ctx, d.breaker, func(ctx context.Context) (*resend.SendResponse, error) {
			return d.mailer.Send(ctx, resend.SendRequest{
				From:    from,
				To:      []string{item.Recipient},
				Subject: item.Subject,
				Text:    item.Content,
				ReplyTo: s.SenderEmail,
			})
		})
		if errors.Is(err, resilience.ErrCircuitOpen) {
			res.CircuitOpen = true
			log.Warn("outreach: provider circuit open, stopping")
			break
		}

		now := d.nowFunc().UTC()
		prog.Processed++
		if err != nil {
			d.recordFailure(item, err, now)
			if item.Status == model.OutreachFailed {
				res.Failed++
			} else {
				res.Retried++
			}
			log.Warn("outreach: send failed", zap.String("outreach_id", item.ID),
				zap.Int("attempts", item.Attempts), zap.String("status", string(item.Status)), zap.Error(err))
			if uerr := d.store.UpdateOutreach(ctx, item); uerr != nil {
				log.Error("outreach: save failed item", zap.String("outreach_id", item.ID), zap.Error(uerr))
			}
			prog.Failed++
			d.progress.Report(prog)
			continue
		}

		item.Status = model.OutreachSent
		item.SentAt = &now
		item.NextAttemptAt = nil
		item.LastError = ""
		if resp != nil {
			item.ProviderMessageID = resp.ID
		}
		if err := d.store.UpdateOutreach(ctx, item); err != nil {
			log.Error("outreach: save sent item", zap.String("outreach_id", item.ID), zap.Error(err))
			prog.Failed++
			d.progress.Report(prog)
			continue
		}
		res.Sent++
		prog.Succeeded++
		d.progress.Report(prog)
		if err := d.recordHistory(ctx, userID, item); err != nil {
			log.Warn("outreach: record founder history", zap.String("founder_id", item.FounderID), zap.Error(err))
		}
	}

	log.Info("outreach dispatch complete",
		zap.Int("due", res.Due),
		zap.Int("sent", res.Sent),
		zap.Int("retried", res.Retried),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// recordFailure applies the retry schedule to a failed item.
func (d *Dispatcher) recordFailure(item *model.OutreachItem, err error, now time.Time) {
	maxAttempts := item.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = model.DefaultMaxAttempts
	}
	out := resilience.RecordFailure(item.Attempts, maxAttempts, RetryBase, now)
	item.Attempts = out.Attempts
	item.LastError = err.Error()
	if out.Exhausted {
		item.Status = model.OutreachFailed
		item.NextAttemptAt = nil
		return
	}
	item.Status = model.OutreachQueued
	next := out.NextAttemptAt
	item.NextAttemptAt = &next
}

// recordHistory copies a sent item onto the founder.
func (d *Dispatcher) recordHistory(ctx context.Context, userID string, item *model.OutreachItem) error {
	f, err := d.store.GetFounder(ctx, userID, item.FounderID)
	if err != nil {
		return err
	}
	f.OutreachHistory = append(f.OutreachHistory, model.OutreachRecord{
		OutreachID: item.ID,
		Channel:    item.Channel,
		Subject:    item.Subject,
		Body:       item.Content,
		SentAt:     *item.SentAt,
	})
	return d.store.UpdateFounder(ctx, f)
}
