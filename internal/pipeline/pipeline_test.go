package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealflow-cli/internal/config"
	"github.com/sells-group/dealflow-cli/internal/discovery"
	"github.com/sells-group/dealflow-cli/internal/enrich"
	"github.com/sells-group/dealflow-cli/internal/fetcher"
	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/internal/outreach"
	"github.com/sells-group/dealflow-cli/internal/store"
	"github.com/sells-group/dealflow-cli/pkg/anthropic"
	"github.com/sells-group/dealflow-cli/pkg/apollo"
	"github.com/sells-group/dealflow-cli/pkg/companieshouse"
	"github.com/sells-group/dealflow-cli/pkg/companieshouse/mocks"
	"github.com/sells-group/dealflow-cli/pkg/exa"
	"github.com/sells-group/dealflow-cli/pkg/hunter"
	"github.com/sells-group/dealflow-cli/pkg/notion"
	"github.com/sells-group/dealflow-cli/pkg/resend"
)

func testConfig() *config.Config {
	return &config.Config{
		Discovery: config.DiscoveryConfig{
			LookbackDays:      30,
			BatchLookbackDays: 90,
			OnDemandLimit:     50,
			BatchLimit:        5,
			Codes:             []string{"62012"},
			BatchProfiles:     map[string][]string{"fashion": {"47710", "47910"}},
		},
		Enrichment:    config.EnrichmentConfig{CompanyLimit: 10},
		Qualification: config.QualificationConfig{Policy: "background"},
		Matching:      config.MatchingConfig{Threshold: 60, RecencyDays: 30},
		Outreach:      config.OutreachConfig{SpacingMinutes: 30, MaxAttempts: 3, DispatchLimit: 20},
		Cleanup:       config.CleanupConfig{StaleJobHours: 6, JobRetentionDays: 30},
	}
}

// stubClients hands out whatever clients a test sets.
type stubClients struct {
	registry companieshouse.Client
	search   exa.Client
	mailer   resend.Client
	notion   notion.Client
}

func (s *stubClients) Registry(*model.Settings) companieshouse.Client { return s.registry }
func (s *stubClients) Search(*model.Settings) exa.Client              { return s.search }
func (s *stubClients) Apollo(*model.Settings) apollo.Client           { return nil }
func (s *stubClients) Hunter(*model.Settings) hunter.Client           { return nil }
func (s *stubClients) Mailer(*model.Settings) resend.Client           { return s.mailer }
func (s *stubClients) Anthropic(*model.Settings) anthropic.Client     { return nil }
func (s *stubClients) Notion(*model.Settings) notion.Client           { return s.notion }
func (s *stubClients) Fetcher() fetcher.Fetcher                       { return nil }

func (s *stubClients) CodeHost(*model.Settings, enrich.Gate) (enrich.CodeHost, error) {
	return nil, nil
}

func newPipeline(t *testing.T, cfg *config.Config, clients Clients) (*Pipeline, *store.SQLStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	p, err := New(cfg, st, WithClients(clients))
	require.NoError(t, err)
	return p, st
}

func jobRuns(t *testing.T, st *store.SQLStore, userID string, jobType model.JobType) []model.JobRun {
	t.Helper()
	runs, err := st.FindJobRuns(context.Background(), store.JobFilter{UserID: userID, JobType: jobType})
	require.NoError(t, err)
	return runs
}

func TestParseStage(t *testing.T) {
	for in, want := range map[string]model.JobType{
		"discovery":         model.JobDiscovery,
		"Outreach-Dispatch": model.JobOutreachDispatch,
		" investor_sync ":   model.JobInvestorSync,
		"cleanup":           model.JobCleanup,
	} {
		got, err := ParseStage(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseStage("crawl")
	assert.Error(t, err)
}

func TestDiscoveryParams(t *testing.T) {
	p, _ := newPipeline(t, testConfig(), &stubClients{})

	got := p.DiscoveryParams(&model.Settings{UserID: "u1"}, TriggerManual)
	assert.Equal(t, discovery.Params{Codes: []string{"62012"}, LookbackDays: 30, Limit: 50}, got)

	got = p.DiscoveryParams(&model.Settings{UserID: "u1"}, TriggerScheduled)
	assert.Equal(t, 90, got.LookbackDays)
	assert.Equal(t, 5, got.Limit)

	got = p.DiscoveryParams(&model.Settings{UserID: "u1", DiscoveryProfile: "Fashion", LookbackDays: 14}, TriggerScheduled)
	assert.Equal(t, []string{"47710", "47910"}, got.Codes)
	assert.Equal(t, 14, got.LookbackDays)

	got = p.DiscoveryParams(&model.Settings{UserID: "u1", DiscoveryProfile: "fashion", DiscoveryCodes: []string{"64999"}}, TriggerManual)
	assert.Equal(t, []string{"64999"}, got.Codes)

	got = p.DiscoveryParams(&model.Settings{UserID: "u1", DiscoveryProfile: "unknown"}, TriggerManual)
	assert.Equal(t, []string{"62012"}, got.Codes)
}

func TestRun_SkipsWithoutPrerequisites(t *testing.T) {
	p, st := newPipeline(t, testConfig(), &stubClients{})
	ctx := context.Background()
	s := &model.Settings{UserID: "u1"}

	tests := []struct {
		stage   model.JobType
		trigger Trigger
		reason  string
	}{
		{model.JobDiscovery, TriggerManual, "no registry key"},
		{model.JobEnrichment, TriggerManual, "no search key"},
		{model.JobOutreachQueue, TriggerScheduled, "auto outreach disabled"},
		{model.JobOutreachDispatch, TriggerManual, "no email delivery key"},
		{model.JobInvestorSync, TriggerManual, "no notion token"},
	}
	for _, tt := range tests {
		rep, err := p.Run(ctx, tt.stage, s, tt.trigger)
		require.NoError(t, err, tt.stage)
		assert.Equal(t, tt.reason, rep.Skipped, tt.stage)
		assert.Empty(t, jobRuns(t, st, "u1", tt.stage), "skipped stages record no run")
	}

	p.clients = &stubClients{mailer: &mockMailer{}}
	rep, err := p.Run(ctx, model.JobOutreachDispatch, s, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, "no sender email", rep.Skipped)
}

func TestRun_DiscoveryRecordsJob(t *testing.T) {
	reg := mocks.NewMockClient(t)
	p, st := newPipeline(t, testConfig(), &stubClients{registry: reg})
	ctx := context.Background()

	created := time.Now().UTC().AddDate(0, 0, -10).Format("2006-01-02")
	reg.On("AdvancedSearch", mock.Anything, mock.MatchedBy(func(sp companieshouse.SearchParams) bool {
		return len(sp.SICCodes) == 1 && sp.SICCodes[0] == "62012"
	})).Return(&companieshouse.SearchPage{Items: []companieshouse.CompanySummary{{
		CompanyNumber:  "0001",
		CompanyName:    "ACME ROBOTICS LTD",
		CompanyStatus:  "active",
		CompanyType:    "ltd",
		DateOfCreation: created,
		SICCodes:       []string{"62012"},
	}}}, nil)
	reg.On("Officers", mock.Anything, "0001").Return(&companieshouse.OfficerList{Items: []companieshouse.Officer{
		{Name: "DOE, Jane", OfficerRole: "director"},
	}}, nil)

	rep, err := p.Run(ctx, model.JobDiscovery, &model.Settings{UserID: "u1", CompaniesHouseKey: "k"}, TriggerManual)
	require.NoError(t, err)
	assert.Empty(t, rep.Skipped)
	res, ok := rep.Result.(*discovery.Result)
	require.True(t, ok)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Founders)

	runs := jobRuns(t, st, "u1", model.JobDiscovery)
	require.Len(t, runs, 1)
	assert.Equal(t, model.JobCompleted, runs[0].Status)
	assert.Contains(t, string(runs[0].Result), `"added":1`)
	assert.Equal(t, model.JobProgress{Total: 1, Processed: 1, Succeeded: 1}, runs[0].Progress)

	// Registry calls are counted against the user's quota.
	counter, err := st.GetRateLimit(ctx, "u1", "companies_house")
	require.NoError(t, err)
	require.NotNil(t, counter)
	assert.Equal(t, 2, counter.RequestCount)
}

func TestRun_AlreadyRunningIsSkipped(t *testing.T) {
	p, st := newPipeline(t, testConfig(), &stubClients{})
	ctx := context.Background()

	_, err := p.Guard().Start(ctx, "u1", model.JobMatching)
	require.NoError(t, err)

	rep, err := p.Run(ctx, model.JobMatching, &model.Settings{UserID: "u1"}, TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, "already running", rep.Skipped)
	assert.Len(t, jobRuns(t, st, "u1", model.JobMatching), 1)
}

func TestRun_QualificationManualPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Qualification.Policy = "manual"
	p, st := newPipeline(t, cfg, &stubClients{})
	ctx := context.Background()

	ids := map[string]string{}
	for reg, code := range map[string]string{"b": "62012", "c": "62020", "d": "99999"} {
		id, _, err := st.UpsertCompany(ctx, &model.Company{
			UserID: "u1", RegistryID: reg, Name: reg, Stage: model.StageResearching, IndustryCodes: []string{code},
		})
		require.NoError(t, err)
		ids[reg] = id
	}

	rep, err := p.Run(ctx, model.JobQualification, &model.Settings{UserID: "u1"}, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, &QualifyResult{Companies: 3, Qualified: 2, Watchlist: 1, Passed: 1}, rep.Result)

	c, err := st.GetCompany(ctx, "u1", ids["c"])
	require.NoError(t, err)
	assert.Equal(t, model.StageQualified, c.Stage)
	assert.True(t, c.Watchlist)
	assert.Equal(t, model.TierC, c.Tier)

	c, err = st.GetCompany(ctx, "u1", ids["d"])
	require.NoError(t, err)
	assert.Equal(t, model.StagePassed, c.Stage)

	runs := jobRuns(t, st, "u1", model.JobQualification)
	require.Len(t, runs, 1)
	assert.Equal(t, model.JobProgress{Total: 3, Processed: 3, Succeeded: 3}, runs[0].Progress)
}

func TestRun_QualificationBackgroundKeepsPending(t *testing.T) {
	p, st := newPipeline(t, testConfig(), &stubClients{})
	ctx := context.Background()
	id, _, err := st.UpsertCompany(ctx, &model.Company{
		UserID: "u1", RegistryID: "001", Name: "ACME", Stage: model.StageResearching, IndustryCodes: []string{"62012"},
	})
	require.NoError(t, err)

	rep, err := p.Run(ctx, model.JobQualification, &model.Settings{UserID: "u1"}, TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, &QualifyResult{Companies: 1, Pending: 1}, rep.Result)

	c, err := st.GetCompany(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, model.StageResearching, c.Stage)
	assert.Equal(t, 43, c.Scores.Overall)
}

func TestRun_Cleanup(t *testing.T) {
	p, st := newPipeline(t, testConfig(), &stubClients{})
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.PutRateLimit(ctx, &model.RateLimitCounter{
		UserID: "u1", APIName: "exa", WindowStart: now.Add(-2 * time.Minute), WindowEnd: now.Add(-time.Minute), RequestCount: 3,
	}))
	require.NoError(t, st.PutRateLimit(ctx, &model.RateLimitCounter{
		UserID: "u1", APIName: "resend", WindowStart: now, WindowEnd: now.Add(time.Minute), RequestCount: 1,
	}))
	stale := &model.JobRun{UserID: "u1", JobType: model.JobEnrichment, Status: model.JobRunning, StartedAt: now.Add(-10 * time.Hour)}
	require.NoError(t, st.CreateJobRun(ctx, stale))
	done := now.AddDate(0, 0, -40)
	old := &model.JobRun{UserID: "u1", JobType: model.JobDiscovery, Status: model.JobCompleted, StartedAt: done, CompletedAt: &done}
	require.NoError(t, st.CreateJobRun(ctx, old))

	rep, err := p.Run(ctx, model.JobCleanup, &model.Settings{UserID: "u1"}, TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, SystemUser, rep.UserID)
	assert.Equal(t, &CleanupResult{ExpiredCounters: 1, StaleJobs: 1, DeletedJobs: 1}, rep.Result)

	got, err := st.GetJobRun(ctx, "u1", stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, got.Status)
	_, err = st.GetJobRun(ctx, "u1", old.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	live, err := st.GetRateLimit(ctx, "u1", "resend")
	require.NoError(t, err)
	assert.NotNil(t, live)

	runs := jobRuns(t, st, SystemUser, model.JobCleanup)
	require.Len(t, runs, 1)
	assert.Equal(t, model.JobCompleted, runs[0].Status)
}

func TestRunAll(t *testing.T) {
	p, st := newPipeline(t, testConfig(), &stubClients{})
	ctx := context.Background()

	reports, err := p.RunAll(ctx, &model.Settings{UserID: "u1"}, TriggerManual)
	require.NoError(t, err)
	var stages []model.JobType
	for _, rep := range reports {
		stages = append(stages, rep.Stage)
	}
	assert.Equal(t, []model.JobType{
		model.JobInvestorSync,
		model.JobDiscovery,
		model.JobEnrichment,
		model.JobQualification,
		model.JobOutreachQueue,
		model.JobOutreachDispatch,
		model.JobMatching,
	}, stages)
	assert.Equal(t, "no notion token", reports[0].Skipped)
	assert.Empty(t, reports[3].Skipped, "qualification needs no keys")

	queue, ok := reports[4].Result.(*outreach.QueueResult)
	require.True(t, ok)
	assert.True(t, queue.NoTemplate)

	assert.Len(t, jobRuns(t, st, "u1", model.JobMatching), 1)
}

func TestRunAll_StopsOnCancelledContext(t *testing.T) {
	p, _ := newPipeline(t, testConfig(), &stubClients{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports, err := p.RunAll(ctx, &model.Settings{UserID: "u1"}, TriggerManual)
	require.Error(t, err)
	assert.Empty(t, reports)
}

func TestBreakerPerUser(t *testing.T) {
	p, _ := newPipeline(t, testConfig(), &stubClients{})
	assert.Same(t, p.breaker("u1"), p.breaker("u1"))
	assert.NotSame(t, p.breaker("u1"), p.breaker("u2"))
}

func TestImportInvestors_RecordsFailure(t *testing.T) {
	p, st := newPipeline(t, testConfig(), &stubClients{})
	_, err := p.ImportInvestors(context.Background(), "u1", filepath.Join(t.TempDir(), "missing.xlsx"), fetcher.XLSXOptions{})
	require.Error(t, err)

	runs := jobRuns(t, st, "u1", model.JobInvestorSync)
	require.Len(t, runs, 1)
	assert.Equal(t, model.JobFailed, runs[0].Status)
}

func TestNew_ListsFile(t *testing.T) {
	cfg := testConfig()
	cfg.Enrichment.ListsFile = filepath.Join(t.TempDir(), "missing.yaml")
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "p.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = New(cfg, st, WithClients(&stubClients{}))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "lists.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lists:\n  locations: [\"Leeds\"]\n"), 0o600))
	cfg.Enrichment.ListsFile = path
	_, err = New(cfg, st, WithClients(&stubClients{}))
	require.NoError(t, err)
}

func TestPacing(t *testing.T) {
	cfg := testConfig()
	cfg.Resend.PacingMs = 2000
	got := Pacing(cfg)
	assert.Equal(t, 2*time.Second, got["resend"])
	assert.Zero(t, got["exa"])
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) Send(ctx context.Context, req resend.SendRequest) (*resend.SendResponse, error) {
	args := m.Called(ctx, req)
	if resp, ok := args.Get(0).(*resend.SendResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}
