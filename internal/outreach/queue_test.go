package outreach

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/store"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var testSettings = &model.Settings{
	UserID:        "u1",
	SenderName:    "Alex",
	SenderEmail:   "alex@northwind.vc",
	SenderCompany: "Northwind",
}

func newStore(t *testing.T) *store.SQLStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "outreach.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func putTemplate(t *testing.T, st *store.SQLStore) {
	t.Helper()
	require.NoError(t, st.PutTemplate(context.Background(), &model.Template{
		UserID:    "u1",
		Name:      "intro",
		Channel:   model.ChannelEmail,
		Subject:   "{{company}} x {{sender_company}}",
		Body:      "Hi {{first_name}},\n\n{{opener}}\n\nBest,\n{{sender_name}}",
		IsDefault: true,
	}))
}

func seedCompany(t *testing.T, st *store.SQLStore, registryID, name string, stage model.Stage, founders ...*model.Founder) string {
	t.Helper()
	ctx := context.Background()
	id, _, err := st.UpsertCompany(ctx, &model.Company{UserID: "u1", RegistryID: registryID, Name: name, Stage: stage})
	require.NoError(t, err)
	for _, f := range founders {
		f.UserID, f.CompanyID = "u1", id
		require.NoError(t, st.CreateFounder(ctx, f))
	}
	return id
}

type stubOpener struct {
	text  string
	err   error
	calls int
}

func (s *stubOpener) Opener(context.Context, *model.Founder, *model.Company) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestQueue_QueuesSpacedItems(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	putTemplate(t, st)

	jane := &model.Founder{FirstName: "Jane", LastName: "Doe", Email: "jane@acme.io"}
	priya := &model.Founder{FirstName: "Priya", LastName: "Shah", Email: "priya@acme.io"}
	acme := seedCompany(t, st, "001", "ACME ROBOTICS LTD", model.StageQualified,
		jane,
		&model.Founder{FirstName: "John", LastName: "Smith"},
		&model.Founder{FirstName: "Sam", LastName: "Lee", Email: "sam@acme.io",
			OutreachHistory: []model.OutreachRecord{{OutreachID: "old", Channel: model.ChannelEmail}}},
		priya,
	)
	quiet := seedCompany(t, st, "002", "QUIET LTD", model.StageQualified, &model.Founder{FirstName: "Q", LastName: "Q"})
	seedCompany(t, st, "003", "EARLY LTD", model.StageResearching, &model.Founder{FirstName: "E", LastName: "E", Email: "e@early.io"})

	require.NoError(t, st.CreateOutreach(ctx, &model.OutreachItem{
		UserID: "u1", FounderID: "elsewhere", Channel: model.ChannelEmail, ScheduledFor: testNow.Add(time.Hour),
	}))

	opener := &stubOpener{text: "Your warehouse robots look great."}
	q := NewQueue(st, WithOpener(opener), WithQueueClock(func() time.Time { return testNow }))
	res, err := q.Run(ctx, testSettings)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Companies)
	assert.Equal(t, 2, res.Queued)
	assert.Equal(t, 1, res.Contacted)
	assert.Equal(t, 2, res.NoEmail)
	assert.Equal(t, 1, res.Duplicates)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 2, opener.calls)

	janeItems, err := st.ListOutreach(ctx, "u1", store.OutreachFilter{FounderID: jane.ID})
	require.NoError(t, err)
	require.Len(t, janeItems, 1)
	item := janeItems[0]
	assert.Equal(t, model.OutreachQueued, item.Status)
	assert.Equal(t, "jane@acme.io", item.Recipient)
	assert.Equal(t, acme, item.CompanyID)
	assert.Equal(t, "Acme Robotics x Northwind", item.Subject)
	assert.Equal(t, "Hi Jane,\n\nYour warehouse robots look great.\n\nBest,\nAlex", item.Content)
	assert.Equal(t, model.DefaultMaxAttempts, item.MaxAttempts)

	all, err := st.ListOutreach(ctx, "u1", store.OutreachFilter{Status: model.OutreachQueued})
	require.NoError(t, err)
	require.Len(t, all, 3)
	var times []time.Time
	for _, o := range all {
		times = append(times, o.ScheduledFor)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	assert.True(t, times[1].Equal(testNow.Add(90*time.Minute)), "starts one spacing after the latest queued item")
	assert.True(t, times[2].Equal(testNow.Add(120*time.Minute)))

	c, err := st.GetCompany(ctx, "u1", acme)
	require.NoError(t, err)
	assert.Equal(t, model.StageContacted, c.Stage)
	c, err = st.GetCompany(ctx, "u1", quiet)
	require.NoError(t, err)
	assert.Equal(t, model.StageQualified, c.Stage)

	res, err = q.Run(ctx, testSettings)
	require.NoError(t, err)
	assert.Zero(t, res.Queued)
	assert.Equal(t, 1, res.Companies)
}

func TestQueue_NoTemplate(t *testing.T) {
	st := newStore(t)
	seedCompany(t, st, "001", "ACME LTD", model.StageQualified, &model.Founder{FirstName: "J", LastName: "D", Email: "j@acme.io"})

	res, err := NewQueue(st).Run(context.Background(), testSettings)
	require.NoError(t, err)
	assert.True(t, res.NoTemplate)
	assert.Zero(t, res.Queued)
}

func TestQueue_OpenerFailureStillQueues(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	putTemplate(t, st)
	f := &model.Founder{FirstName: "Jane", LastName: "Doe", Email: "jane@acme.io"}
	seedCompany(t, st, "001", "ACME LTD", model.StageQualified, f)

	q := NewQueue(st, WithOpener(&stubOpener{err: assert.AnError}), WithSpacing(0),
		WithQueueClock(func() time.Time { return testNow }))
	res, err := q.Run(ctx, testSettings)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Queued)

	items, err := st.ListOutreach(ctx, "u1", store.OutreachFilter{FounderID: f.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Hi Jane,\n\nBest,\nAlex", items[0].Content)
	assert.True(t, items[0].ScheduledFor.Equal(testNow))
}
