package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealflow-cli/internal/model"
)

// newMockPostgresStore creates a Postgres-backed store on pgxmock.
func newMockPostgresStore(t *testing.T, matchers ...pgxmock.QueryMatcher) (*SQLStore, pgxmock.PgxPoolIface) {
	t.Helper()
	matcher := pgxmock.QueryMatcher(pgxmock.QueryMatcherRegexp)
	if len(matchers) > 0 {
		matcher = matchers[0]
	}
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(matcher))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := newPostgresWithPool(mock)
	s.nowFunc = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t, pgxmock.QueryMatcherEqual)

	mock.ExpectBegin()
	for _, c := range allCollections {
		for _, stmt := range postgresDialect.createStatements(c) {
			mock.ExpectExec(stmt).WillReturnResult(pgxmock.NewResult("CREATE", 0))
		}
	}
	mock.ExpectCommit()

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, "postgres", s.Driver())
}

func TestPostgresStore_GetCompany_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM "companies" WHERE "user_id" = \$1 AND "id" = \$2 ORDER BY "created_at" LIMIT 1`).
		WithArgs("u1", "missing").
		WillReturnRows(pgxmock.NewRows([]string{"data"}))

	_, err := s.GetCompany(context.Background(), "u1", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertCompany_Existing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO "companies" .* ON CONFLICT DO NOTHING`).
		WithArgs(pgxmock.AnyArg(), "u1", "0999", "discovered", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`SELECT data FROM "companies" WHERE "user_id" = \$1 AND "registry_id" = \$2`).
		WithArgs("u1", "0999").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"id":"existing-id","user_id":"u1","registry_id":"0999","stage":"researching"}`)))

	c := &model.Company{UserID: "u1", RegistryID: "0999", Name: "Dup"}
	id, created, err := s.UpsertCompany(context.Background(), c)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "existing-id", id)
	assert.Equal(t, "existing-id", c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertCompany_New(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO "companies"`).
		WithArgs(pgxmock.AnyArg(), "u1", "0100", "discovered", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, created, err := s.UpsertCompany(context.Background(), &model.Company{UserID: "u1", RegistryID: "0100"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateFounder_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE "founders" SET "company_id" = \$1, data = \$2, updated_at = \$3 WHERE id = \$4 AND user_id = \$5`).
		WithArgs("c1", pgxmock.AnyArg(), pgxmock.AnyArg(), "f1", "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateFounder(context.Background(), &model.Founder{ID: "f1", UserID: "u1", CompanyID: "c1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDueOutreach(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT data FROM "outreach_items" WHERE "user_id" = \$1 AND "status" = \$2 AND "channel" = \$3 AND "due_at" <= \$4 ORDER BY "due_at" LIMIT 20`).
		WithArgs("u1", "queued", "email", now).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"id":"o1","user_id":"u1","founder_id":"f1","channel":"email","status":"queued","attempts":1,"max_attempts":3}`)))

	items, err := s.ListDueOutreach(context.Background(), "u1", model.ChannelEmail, now, 20)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "o1", items[0].ID)
	assert.Equal(t, 1, items[0].Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCompanies_StageIn(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM "companies" WHERE "user_id" = \$1 AND "stage" IN \(\$2, \$3\) ORDER BY "created_at"`).
		WithArgs("u1", "qualified", "contacted").
		WillReturnRows(pgxmock.NewRows([]string{"data"}))

	list, err := s.ListCompanies(context.Background(), "u1", CompanyFilter{
		Stages: []model.Stage{model.StageQualified, model.StageContacted},
	})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRateLimit_None(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM "rate_limits" WHERE "id" = \$1`).
		WithArgs("u1:exa").
		WillReturnRows(pgxmock.NewRows([]string{"data"}))

	c, err := s.GetRateLimit(context.Background(), "u1", "exa")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutRateLimit_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO "rate_limits" .* ON CONFLICT \(id\) DO UPDATE SET`).
		WithArgs("u1:exa", "u1", "exa", start.Add(time.Minute), pgxmock.AnyArg(), start, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.PutRateLimit(context.Background(), &model.RateLimitCounter{
		UserID: "u1", APIName: "exa", WindowStart: start, WindowEnd: start.Add(time.Minute), RequestCount: 1,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteFinishedJobRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM "job_runs" WHERE "status" != \$1 AND "started_at" < \$2`).
		WithArgs("running", cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.DeleteFinishedJobRunsBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM "investors"`).
		WithArgs("u1").
		WillReturnError(errors.New("connection reset"))

	_, err := s.ListInvestors(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: query investors")
	assert.NoError(t, mock.ExpectationsWereMet())
}
