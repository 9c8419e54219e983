package investors

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dealflow-cli/internal/fetcher"
	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/store"
)

func TestFromRecord(t *testing.T) {
	inv, err := FromRecord(map[string]string{
		"firm":         "Northwind Ventures",
		"contact":      "Ada Park",
		"email":        "Ada@Northwind.VC",
		"stages":       "Pre Seed; Seed | Series A",
		"sectors":      "fintech, AI",
		"check_min":    "£250k",
		"check_max":    "$1.5m",
		"relationship": "Strong",
		"last_contact": "2026-02-10",
	})
	require.NoError(t, err)
	assert.Equal(t, "Northwind Ventures", inv.Firm)
	assert.Equal(t, "ada@northwind.vc", inv.Email)
	assert.Equal(t, []string{"pre-seed", "seed", "series-a"}, inv.Stages)
	assert.Equal(t, []string{"fintech", "AI"}, inv.Sectors)
	assert.Equal(t, 250_000.0, inv.CheckSizeMin)
	assert.Equal(t, 1_500_000.0, inv.CheckSizeMax)
	assert.Equal(t, model.RelationshipStrong, inv.Relationship)
	require.NotNil(t, inv.LastContactAt)
	assert.True(t, inv.LastContactAt.Equal(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "spreadsheet:northwind ventures|ada@northwind.vc", inv.ExternalID)
	assert.Equal(t, SourceSpreadsheet, inv.Source)
}

func TestFromRecord_Errors(t *testing.T) {
	_, err := FromRecord(map[string]string{"contact": "Ada"})
	assert.ErrorIs(t, err, ErrMissingFirm)

	_, err = FromRecord(map[string]string{"firm": "X", "check_min": "lots"})
	assert.Error(t, err)

	_, err = FromRecord(map[string]string{"firm": "X", "last_contact": "last spring"})
	assert.Error(t, err)

	inv, err := FromRecord(map[string]string{"firm": "X", "id": "crm-7", "relationship": "unknown"})
	require.NoError(t, err)
	assert.Equal(t, "crm-7", inv.ExternalID)
	assert.Equal(t, model.RelationshipWeak, inv.Relationship)
	assert.Nil(t, inv.Stages)
}

func TestParseAmount(t *testing.T) {
	tests := map[string]float64{
		"":          0,
		"250000":    250000,
		"1,000,000": 1e6,
		"€2M":       2e6,
		"50k":       50000,
		"1.2bn":     1.2e9,
	}
	for in, want := range tests {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 0.001, in)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2026-02-10", "10/02/2026", "10/2/2026", "10 Feb 2026", "Feb 10, 2026", "46063"} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		require.NotNil(t, got, in)
		assert.True(t, got.Equal(want), "%s parsed as %s", in, got)
	}
	got, err := ParseDate(" ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func newStore(t *testing.T) *store.SQLStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "investors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func writeSheet(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Investors")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, c := range r {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(t.TempDir(), "investors.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestImportFile(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	path := writeSheet(t, [][]string{
		{"Firm", "Contact", "Email", "Stages", "Sectors", "Check Min", "Relationship"},
		{"Northwind", "Ada Park", "ada@northwind.vc", "seed", "fintech", "100k", "strong"},
		{"", "Nobody", "", "", "", "", ""},
		{"Bad Numbers", "", "", "", "", "plenty", ""},
		{"Octo", "Sam", "sam@octo.vc", "Series A", "ai", "", "moderate"},
	})

	im := NewImporter(st)
	res, err := im.ImportFile(ctx, "u1", path, fetcher.XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, Result{Rows: 4, Created: 2, Skipped: 1, Failed: 1}, *res)

	list, err := st.ListInvestors(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Intro bookkeeping survives a re-import.
	for i := range list {
		if list[i].Firm == "Northwind" {
			list[i].IntroCount = 2
			require.NoError(t, st.UpdateInvestor(ctx, &list[i]))
		}
	}
	res, err = im.ImportFile(ctx, "u1", path, fetcher.XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Zero(t, res.Created)

	list, err = st.ListInvestors(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, inv := range list {
		if inv.Firm == "Northwind" {
			assert.Equal(t, 2, inv.IntroCount)
			assert.Equal(t, []string{"seed"}, inv.Stages)
		}
	}
}

func TestImportFile_MissingFile(t *testing.T) {
	_, err := NewImporter(nil).ImportFile(context.Background(), "u1", filepath.Join(t.TempDir(), "none.xlsx"), fetcher.XLSXOptions{})
	assert.Error(t, err)
}

type mockNotion struct{ mock.Mock }

func (m *mockNotion) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if resp, ok := args.Get(0).(*notionapi.DatabaseQueryResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func notionPage(id, firm string) notionapi.Page {
	contacted := notionapi.Date(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			PropFirm:         &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: firm}}},
			PropEmail:        &notionapi.EmailProperty{Email: "Ada@Northwind.vc"},
			PropStages:       &notionapi.MultiSelectProperty{MultiSelect: []notionapi.Option{{Name: "Seed"}, {Name: "Series A"}}},
			PropSectors:      &notionapi.MultiSelectProperty{MultiSelect: []notionapi.Option{{Name: "fashion"}}},
			PropCheckMax:     &notionapi.NumberProperty{Number: 500000},
			PropRelationship: &notionapi.SelectProperty{Select: notionapi.Option{Name: "moderate"}},
			PropLastContact:  &notionapi.DateProperty{Date: &notionapi.DateObject{Start: &contacted}},
		},
	}
}

func TestSyncNotion(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	nc := &mockNotion{}
	nc.On("QueryDatabase", mock.Anything, "db-1", mock.Anything).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{notionPage("p1", "Northwind"), notionPage("p2", "")},
	}, nil)

	im := NewImporter(st)
	res, err := im.SyncNotion(ctx, "u1", nc, "db-1")
	require.NoError(t, err)
	assert.Equal(t, Result{Rows: 2, Created: 1, Skipped: 1}, *res)

	list, err := st.ListInvestors(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	inv := list[0]
	assert.Equal(t, "notion:p1", inv.ExternalID)
	assert.Equal(t, "ada@northwind.vc", inv.Email)
	assert.Equal(t, []string{"seed", "series-a"}, inv.Stages)
	assert.Equal(t, []string{"fashion"}, inv.Sectors)
	assert.Equal(t, 500000.0, inv.CheckSizeMax)
	assert.Equal(t, model.RelationshipModerate, inv.Relationship)
	require.NotNil(t, inv.LastContactAt)
	assert.Equal(t, SourceNotion, inv.Source)

	res, err = im.SyncNotion(ctx, "u1", nc, "db-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
}

func TestSyncNotion_Error(t *testing.T) {
	nc := &mockNotion{}
	nc.On("QueryDatabase", mock.Anything, "db-1", mock.Anything).Return(nil, assert.AnError).Once()
	_, err := NewImporter(nil).SyncNotion(context.Background(), "u1", nc, "db-1")
	require.Error(t, err)
}
