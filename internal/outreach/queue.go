package outreach

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/store"
)

// DefaultSpacing separates consecutive queued items.
const DefaultSpacing = 30 * time.Minute

// Store is the subset of the record store outreach uses.
type Store interface {
	ListCompanies(ctx context.Context, userID string, filter store.CompanyFilter) ([]model.Company, error)
	UpdateCompany(ctx context.Context, c *model.Company) error
	ListFounders(ctx context.Context, userID, companyID string) ([]model.Founder, error)
	GetFounder(ctx context.Context, userID, id string) (*model.Founder, error)
	UpdateFounder(ctx context.Context, f *model.Founder) error
	GetDefaultTemplate(ctx context.Context, userID string, ch model.Channel) (*model.Template, error)
	CreateOutreach(ctx context.Context, o *model.OutreachItem) error
	UpdateOutreach(ctx context.Context, o *model.OutreachItem) error
	ListOutreach(ctx context.Context, userID string, filter store.OutreachFilter) ([]model.OutreachItem, error)
	ListDueOutreach(ctx context.Context, userID string, ch model.Channel, now time.Time, limit int) ([]model.OutreachItem, error)
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithSpacing sets the gap between queued items.
func WithSpacing(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d >= 0 {
			q.spacing = d
		}
	}
}

// WithMaxAttempts sets the send budget for new items.
func WithMaxAttempts(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

// WithOpener enables generated openers.
func WithOpener(o Opener) QueueOption {
	return func(q *Queue) { q.opener = o }
}

// WithQueueClock overrides the time source.
func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.nowFunc = now }
}

// WithQueueProgress reports counts after each company.
func WithQueueProgress(fn model.ProgressFunc) QueueOption {
	return func(q *Queue) { q.progress = fn }
}

// Queue renders and schedules outreach for qualified companies.
type Queue struct {
	store       Store
	opener      Opener
	spacing     time.Duration
	maxAttempts int
	progress    model.ProgressFunc
	nowFunc     func() time.Time
}

// NewQueue creates a Queue.
func NewQueue(st Store, opts ...QueueOption) *Queue {
	q := &Queue{
		store:       st,
		spacing:     DefaultSpacing,
		maxAttempts: model.DefaultMaxAttempts,
		nowFunc:     time.Now,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// QueueResult reports an auto-queue run.
type QueueResult struct {
	Companies  int  `json:"companies"`
	Queued     int  `json:"queued"`
	Contacted  int  `json:"contacted"`
	NoEmail    int  `json:"no_email"`
	Duplicates int  `json:"duplicates"`
	Failed     int  `json:"failed"`
	NoTemplate bool `json:"no_template"`
}

// Run queues one email per founder with a known email for every qualified
// company, spacing items from the latest already-queued item. A company
// with at least one queued item moves to contacted. Founders who already
// have outreach are skipped.
func (q *Queue) Run(ctx context.Context, s *model.Settings) (*QueueResult, error) {
	userID := s.UserID
	log := zap.L().With(zap.String("user", userID), zap.String("stage", "outreach_queue"))
	res := &QueueResult{}

	tmpl, err := q.store.GetDefaultTemplate(ctx, userID, model.ChannelEmail)
	if errors.Is(err, store.ErrNotFound) {
		res.NoTemplate = true
		log.Info("outreach: no default email template, skipping")
		return res, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "outreach: load template")
	}

	companies, err := q.store.ListCompanies(ctx, userID, store.CompanyFilter{Stages: []model.Stage{model.StageQualified}})
	if err != nil {
		return nil, eris.Wrap(err, "outreach: list companies")
	}
	res.Companies = len(companies)
	if len(companies) == 0 {
		return res, nil
	}

	next, err := q.nextSlot(ctx, userID)
	if err != nil {
		return nil, err
	}
	withOpener := q.opener != nil && UsesOpener(tmpl)

	prog := model.JobProgress{Total: len(companies)}
	for i := range companies {
		failed := res.Failed
		q.queueCompany(ctx, s, tmpl, withOpener, &companies[i], &next, res, log)
		prog.Processed++
		if res.Failed > failed {
			prog.Failed++
		} else {
			prog.Succeeded++
		}
		q.progress.Report(prog)
	}

	log.Info("outreach queue complete",
		zap.Int("companies", res.Companies),
		zap.Int("queued", res.Queued),
		zap.Int("contacted", res.Contacted),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// queueCompany queues outreach for the founders of one company and moves
// it to contacted when anything was queued.
func (q *Queue) queueCompany(ctx context.Context, s *model.Settings, tmpl *model.Template, withOpener bool, c *model.Company, next *time.Time, res *QueueResult, log *zap.Logger) {
	userID := s.UserID
	founders, err := q.store.ListFounders(ctx, userID, c.ID)
	if err != nil {
		res.Failed++
		log.Warn("outreach: list founders", zap.String("company_id", c.ID), zap.Error(err))
		return
	}

	queued := 0
	for j := range founders {
		f := &founders[j]
		if f.Email == "" {
			res.NoEmail++
			continue
		}
		dup, err := q.hasOutreach(ctx, userID, f)
		if err != nil {
			res.Failed++
			log.Warn("outreach: check history", zap.String("founder_id", f.ID), zap.Error(err))
			continue
		}
		if dup {
			res.Duplicates++
			continue
		}

		opener := ""
		if withOpener {
			if opener, err = q.opener.Opener(ctx, f, c); err != nil {
				log.Warn("outreach: opener failed, sending without", zap.String("founder_id", f.ID), zap.Error(err))
				opener = ""
			}
		}
		vars := VarsFor(f, c, s, opener)
		item := &model.OutreachItem{
			UserID:       userID,
			FounderID:    f.ID,
			CompanyID:    c.ID,
			Channel:      model.ChannelEmail,
			Recipient:    f.Email,
			Subject:      Render(tmpl.Subject, vars),
			Content:      Render(tmpl.Body, vars),
			Status:       model.OutreachQueued,
			MaxAttempts:  q.maxAttempts,
			ScheduledFor: *next,
		}
		if err := q.store.CreateOutreach(ctx, item); err != nil {
			res.Failed++
			log.Warn("outreach: queue item", zap.String("founder_id", f.ID), zap.Error(err))
			continue
		}
		queued++
		*next = next.Add(q.spacing)
	}

	if queued == 0 {
		return
	}
	res.Queued += queued
	if err := c.Advance(model.StageContacted); err != nil {
		res.Failed++
		log.Warn("outreach: advance company", zap.String("company_id", c.ID), zap.Error(err))
		return
	}
	if err := q.store.UpdateCompany(ctx, c); err != nil {
		res.Failed++
		log.Warn("outreach: update company", zap.String("company_id", c.ID), zap.Error(err))
		return
	}
	res.Contacted++
}

// nextSlot returns now, or one spacing after the latest queued item when
// that is later.
func (q *Queue) nextSlot(ctx context.Context, userID string) (time.Time, error) {
	next := q.nowFunc().UTC()
	pending, err := q.store.ListOutreach(ctx, userID, store.OutreachFilter{Status: model.OutreachQueued})
	if err != nil {
		return time.Time{}, eris.Wrap(err, "outreach: list queued")
	}
	for _, o := range pending {
		if after := o.ScheduledFor.Add(q.spacing); after.After(next) {
			next = after
		}
	}
	return next, nil
}

func (q *Queue) hasOutreach(ctx context.Context, userID string, f *model.Founder) (bool, error) {
	if len(f.OutreachHistory) > 0 {
		return true, nil
	}
	items, err := q.store.ListOutreach(ctx, userID, store.OutreachFilter{FounderID: f.ID, Limit: 1})
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}
