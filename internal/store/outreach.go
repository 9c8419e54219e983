package store

import (
	"context"
	"time"

	"github.com/sells-group/dealflow-cli/internal/model"
)

func outreachDoc(o *model.OutreachItem) (doc, error) {
	return marshalDoc(o.ID, o.UserID, o, map[string]any{
		"founder_id": o.FounderID,
		"status":     string(o.Status),
		"channel":    string(o.Channel),
		"due_at":     o.DueAt().UTC(),
	}, o.CreatedAt, o.UpdatedAt)
}

// CreateOutreach inserts a new outreach item.
func (s *SQLStore) CreateOutreach(ctx context.Context, o *model.OutreachItem) error {
	now := s.nowFunc()
	if o.ID == "" {
		o.ID = newID()
	}
	if o.Status == "" {
		o.Status = model.OutreachQueued
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = model.DefaultMaxAttempts
	}
	o.CreatedAt, o.UpdatedAt = now, now
	d, err := outreachDoc(o)
	if err != nil {
		return err
	}
	return s.b.insert(ctx, outreach, d)
}

// UpdateOutreach writes the full outreach record.
func (s *SQLStore) UpdateOutreach(ctx context.Context, o *model.OutreachItem) error {
	o.UpdatedAt = s.nowFunc()
	d, err := outreachDoc(o)
	if err != nil {
		return err
	}
	return s.b.update(ctx, outreach, d)
}

// ListDueOutreach returns queued items on the channel whose due time is at
// or before now, earliest first.
func (s *SQLStore) ListDueOutreach(ctx context.Context, userID string, ch model.Channel, now time.Time, limit int) ([]model.OutreachItem, error) {
	return findAll[model.OutreachItem](ctx, s, outreach, query{
		conds: []cond{
			eq("user_id", userID),
			eq("status", string(model.OutreachQueued)),
			eq("channel", string(ch)),
			{col: "due_at", op: "<=", val: now.UTC()},
		},
		order: "due_at",
		limit: limit,
	})
}

// ListOutreach returns a user's outreach items, latest due first.
func (s *SQLStore) ListOutreach(ctx context.Context, userID string, filter OutreachFilter) ([]model.OutreachItem, error) {
	conds := []cond{eq("user_id", userID)}
	if filter.Status != "" {
		conds = append(conds, eq("status", string(filter.Status)))
	}
	if filter.FounderID != "" {
		conds = append(conds, eq("founder_id", filter.FounderID))
	}
	return findAll[model.OutreachItem](ctx, s, outreach, query{
		conds: conds, order: "due_at", desc: true, limit: filter.Limit,
	})
}

// PutTemplate stores a template. Marking it default clears the default flag
// on the user's other templates for the same channel.
func (s *SQLStore) PutTemplate(ctx context.Context, t *model.Template) error {
	now := s.nowFunc()
	if t.ID == "" {
		t.ID = newID()
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	if t.IsDefault {
		others, err := findAll[model.Template](ctx, s, templates, query{conds: []cond{
			eq("user_id", t.UserID), eq("channel", string(t.Channel)), eq("is_default", int64(1)),
		}})
		if err != nil {
			return err
		}
		for i := range others {
			if others[i].ID == t.ID {
				continue
			}
			others[i].IsDefault = false
			if err := s.putTemplate(ctx, &others[i]); err != nil {
				return err
			}
		}
	}
	return s.putTemplate(ctx, t)
}

func (s *SQLStore) putTemplate(ctx context.Context, t *model.Template) error {
	d, err := marshalDoc(t.ID, t.UserID, t, map[string]any{
		"channel":    string(t.Channel),
		"is_default": boolInt(t.IsDefault),
	}, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return err
	}
	return s.b.upsert(ctx, templates, d)
}

// GetDefaultTemplate returns the user's default template for the channel,
// or ErrNotFound.
func (s *SQLStore) GetDefaultTemplate(ctx context.Context, userID string, ch model.Channel) (*model.Template, error) {
	return findOne[model.Template](ctx, s, templates,
		eq("user_id", userID), eq("channel", string(ch)), eq("is_default", int64(1)))
}
