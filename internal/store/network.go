package store

import (
	"context"
	"errors"

	"github.com/sells-group/dealflow-cli/internal/model"
)

func investorDoc(inv *model.Investor) (doc, error) {
	return marshalDoc(inv.ID, inv.UserID, inv, map[string]any{
		"external_id": inv.ExternalID,
	}, inv.CreatedAt, inv.UpdatedAt)
}

// UpsertInvestor inserts an investor or, when one with the same external id
// exists, overwrites its imported fields while keeping intro bookkeeping.
func (s *SQLStore) UpsertInvestor(ctx context.Context, inv *model.Investor) (bool, error) {
	now := s.nowFunc()
	if inv.ExternalID != "" {
		existing, err := findOne[model.Investor](ctx, s, investors,
			eq("user_id", inv.UserID), eq("external_id", inv.ExternalID))
		switch {
		case err == nil:
			inv.ID = existing.ID
			inv.CreatedAt = existing.CreatedAt
			inv.IntroCount = existing.IntroCount
			inv.LastIntroducedAt = existing.LastIntroducedAt
			inv.UpdatedAt = now
			d, err := investorDoc(inv)
			if err != nil {
				return false, err
			}
			return false, s.b.update(ctx, investors, d)
		case !errors.Is(err, ErrNotFound):
			return false, err
		}
	}

	if inv.ID == "" {
		inv.ID = newID()
	}
	inv.CreatedAt, inv.UpdatedAt = now, now
	d, err := investorDoc(inv)
	if err != nil {
		return false, err
	}
	return true, s.b.insert(ctx, investors, d)
}

// GetInvestor returns one investor by id.
func (s *SQLStore) GetInvestor(ctx context.Context, userID, id string) (*model.Investor, error) {
	return findOne[model.Investor](ctx, s, investors, eq("user_id", userID), eq("id", id))
}

// UpdateInvestor writes the full investor record.
func (s *SQLStore) UpdateInvestor(ctx context.Context, inv *model.Investor) error {
	inv.UpdatedAt = s.nowFunc()
	d, err := investorDoc(inv)
	if err != nil {
		return err
	}
	return s.b.update(ctx, investors, d)
}

// ListInvestors returns all of a user's investor connections.
func (s *SQLStore) ListInvestors(ctx context.Context, userID string) ([]model.Investor, error) {
	return findAll[model.Investor](ctx, s, investors, query{conds: []cond{eq("user_id", userID)}})
}

// IntroductionExists reports whether an introduction already links the pair.
func (s *SQLStore) IntroductionExists(ctx context.Context, userID, companyID, investorID string) (bool, error) {
	return exists(ctx, s, introductions,
		eq("user_id", userID), eq("company_id", companyID), eq("investor_id", investorID))
}

// CreateIntroduction inserts an introduction. A second introduction for the
// same (company, investor) pair is ignored and reported as not created.
func (s *SQLStore) CreateIntroduction(ctx context.Context, in *model.Introduction) (bool, error) {
	now := s.nowFunc()
	if in.ID == "" {
		in.ID = newID()
	}
	if in.Status == "" {
		in.Status = model.IntroConsidering
	}
	in.CreatedAt, in.UpdatedAt = now, now
	d, err := marshalDoc(in.ID, in.UserID, in, map[string]any{
		"company_id":  in.CompanyID,
		"investor_id": in.InvestorID,
	}, now, now)
	if err != nil {
		return false, err
	}
	return s.b.insertIfAbsent(ctx, introductions, d)
}

// ListIntroductions returns introductions for one company, or all of the
// user's when companyID is empty.
func (s *SQLStore) ListIntroductions(ctx context.Context, userID, companyID string) ([]model.Introduction, error) {
	conds := []cond{eq("user_id", userID)}
	if companyID != "" {
		conds = append(conds, eq("company_id", companyID))
	}
	return findAll[model.Introduction](ctx, s, introductions, query{conds: conds})
}
