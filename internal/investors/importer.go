package investors

import (
	"context"
	"errors"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/fetcher"
	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/pkg/notion"
)

// Notion property names read by SyncNotion.
const (
	PropFirm         = "Firm"
	PropContact      = "Contact"
	PropEmail        = "Email"
	PropStages       = "Stages"
	PropSectors      = "Sectors"
	PropCheckMin     = "Check Min"
	PropCheckMax     = "Check Max"
	PropRelationship = "Relationship"
	PropLastContact  = "Last Contact"
)

// Store is the subset of the record store the importer writes to.
type Store interface {
	UpsertInvestor(ctx context.Context, inv *model.Investor) (created bool, err error)
}

// Result reports an import.
type Result struct {
	Rows    int `json:"rows"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Importer upserts investors by external id.
type Importer struct {
	store Store
}

// NewImporter creates an Importer.
func NewImporter(st Store) *Importer {
	return &Importer{store: st}
}

// ImportFile reads investors from a spreadsheet whose first row is a
// header. Rows without a firm are skipped; rows with unreadable values are
// counted as failed.
func (im *Importer) ImportFile(ctx context.Context, userID, path string, opts fetcher.XLSXOptions) (*Result, error) {
	log := zap.L().With(zap.String("user", userID), zap.String("stage", "investor_import"))
	recs, err := fetcher.ReadRecords(path, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "investors: read %s", path)
	}

	res := &Result{Rows: len(recs)}
	for i, rec := range recs {
		inv, err := FromRecord(rec)
		if errors.Is(err, ErrMissingFirm) {
			res.Skipped++
			continue
		}
		if err != nil {
			res.Failed++
			log.Warn("investors: bad row", zap.Int("row", i+2), zap.Error(err))
			continue
		}
		im.upsert(ctx, log, userID, inv, res)
	}

	log.Info("investor import complete",
		zap.String("file", path),
		zap.Int("rows", res.Rows),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// SyncNotion upserts every page of the user's investor database.
func (im *Importer) SyncNotion(ctx context.Context, userID string, client notion.Client, dbID string) (*Result, error) {
	log := zap.L().With(zap.String("user", userID), zap.String("stage", "investor_sync"))
	pages, err := notion.QueryAll(ctx, client, dbID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "investors: query notion")
	}

	res := &Result{Rows: len(pages)}
	for i := range pages {
		inv := FromNotionPage(&pages[i])
		if inv.Firm == "" {
			res.Skipped++
			continue
		}
		im.upsert(ctx, log, userID, inv, res)
	}

	log.Info("investor sync complete",
		zap.Int("pages", res.Rows),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// FromNotionPage converts a database page to an investor keyed by page id.
func FromNotionPage(p *notionapi.Page) *model.Investor {
	props := p.Properties
	return &model.Investor{
		ExternalID:    SourceNotion + ":" + string(p.ID),
		Firm:          notion.Text(props, PropFirm),
		ContactName:   notion.Text(props, PropContact),
		Email:         strings.ToLower(notion.Text(props, PropEmail)),
		Stages:        normalizeStages(notion.Options(props, PropStages)),
		Sectors:       notion.Options(props, PropSectors),
		CheckSizeMin:  notion.Number(props, PropCheckMin),
		CheckSizeMax:  notion.Number(props, PropCheckMax),
		Relationship:  model.ParseRelationship(notion.Text(props, PropRelationship)),
		LastContactAt: notion.Date(props, PropLastContact),
		Source:        SourceNotion,
	}
}

func (im *Importer) upsert(ctx context.Context, log *zap.Logger, userID string, inv *model.Investor, res *Result) {
	inv.UserID = userID
	created, err := im.store.UpsertInvestor(ctx, inv)
	switch {
	case err != nil:
		res.Failed++
		log.Warn("investors: upsert", zap.String("firm", inv.Firm), zap.Error(err))
	case created:
		res.Created++
	default:
		res.Updated++
	}
}
