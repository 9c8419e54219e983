package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/model"
)

func companyDoc(c *model.Company) (doc, error) {
	return marshalDoc(c.ID, c.UserID, c, map[string]any{
		"registry_id": c.RegistryID,
		"stage":       string(c.Stage),
	}, c.CreatedAt, c.UpdatedAt)
}

// UpsertCompany inserts the company unless one with the same registry id
// already exists for the user, in which case the existing id is returned
// and nothing is written.
func (s *SQLStore) UpsertCompany(ctx context.Context, c *model.Company) (string, bool, error) {
	if c.RegistryID == "" {
		return "", false, eris.New("store: company registry id is required")
	}
	now := s.nowFunc()
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Stage == "" {
		c.Stage = model.StageDiscovered
	}
	c.CreatedAt, c.UpdatedAt = now, now

	d, err := companyDoc(c)
	if err != nil {
		return "", false, err
	}
	inserted, err := s.b.insertIfAbsent(ctx, companies, d)
	if err != nil {
		return "", false, err
	}
	if inserted {
		return c.ID, true, nil
	}

	existing, err := findOne[model.Company](ctx, s, companies,
		eq("user_id", c.UserID), eq("registry_id", c.RegistryID))
	if err != nil {
		return "", false, eris.Wrapf(err, "store: lookup existing company %s", c.RegistryID)
	}
	c.ID, c.CreatedAt = existing.ID, existing.CreatedAt
	return existing.ID, false, nil
}

// GetCompany returns one company by id.
func (s *SQLStore) GetCompany(ctx context.Context, userID, id string) (*model.Company, error) {
	return findOne[model.Company](ctx, s, companies, eq("user_id", userID), eq("id", id))
}

// UpdateCompany writes the full company record.
func (s *SQLStore) UpdateCompany(ctx context.Context, c *model.Company) error {
	c.UpdatedAt = s.nowFunc()
	d, err := companyDoc(c)
	if err != nil {
		return err
	}
	return s.b.update(ctx, companies, d)
}

// ListCompanies returns a user's companies in insertion order.
func (s *SQLStore) ListCompanies(ctx context.Context, userID string, filter CompanyFilter) ([]model.Company, error) {
	conds := []cond{eq("user_id", userID)}
	if len(filter.Stages) > 0 {
		stages := make([]string, len(filter.Stages))
		for i, st := range filter.Stages {
			stages[i] = string(st)
		}
		conds = append(conds, cond{col: "stage", op: "in", val: stages})
	}
	return findAll[model.Company](ctx, s, companies, query{conds: conds, limit: filter.Limit})
}

// CompanyExists reports whether the user already has a company with the
// given registry id.
func (s *SQLStore) CompanyExists(ctx context.Context, userID, registryID string) (bool, error) {
	return exists(ctx, s, companies, eq("user_id", userID), eq("registry_id", registryID))
}

func founderDoc(f *model.Founder) (doc, error) {
	return marshalDoc(f.ID, f.UserID, f, map[string]any{
		"company_id": f.CompanyID,
	}, f.CreatedAt, f.UpdatedAt)
}

// CreateFounder inserts a founder, assigning an id when empty.
func (s *SQLStore) CreateFounder(ctx context.Context, f *model.Founder) error {
	now := s.nowFunc()
	if f.ID == "" {
		f.ID = newID()
	}
	f.CreatedAt, f.UpdatedAt = now, now
	d, err := founderDoc(f)
	if err != nil {
		return err
	}
	return s.b.insert(ctx, founders, d)
}

// GetFounder returns one founder by id.
func (s *SQLStore) GetFounder(ctx context.Context, userID, id string) (*model.Founder, error) {
	return findOne[model.Founder](ctx, s, founders, eq("user_id", userID), eq("id", id))
}

// UpdateFounder writes the full founder record.
func (s *SQLStore) UpdateFounder(ctx context.Context, f *model.Founder) error {
	f.UpdatedAt = s.nowFunc()
	d, err := founderDoc(f)
	if err != nil {
		return err
	}
	return s.b.update(ctx, founders, d)
}

// ListFounders returns the founders of one company, or every founder of the
// user when companyID is empty.
func (s *SQLStore) ListFounders(ctx context.Context, userID, companyID string) ([]model.Founder, error) {
	conds := []cond{eq("user_id", userID)}
	if companyID != "" {
		conds = append(conds, eq("company_id", companyID))
	}
	return findAll[model.Founder](ctx, s, founders, query{conds: conds})
}
