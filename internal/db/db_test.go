package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.Background(), nil, "job_events", []string{"id"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock := newMock(t)
	mock.ExpectCopyFrom(pgx.Identifier{"job_events"}, []string{"id", "job_id"}).WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "job_events", []string{"id", "job_id"}, [][]any{{"e1", "j1"}, {"e2", "j2"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock := newMock(t)
	mock.ExpectCopyFrom(pgx.Identifier{"drylogs", "job_events"}, []string{"id"}).WillReturnError(fmt.Errorf("permission denied"))

	_, err := CopyFrom(context.Background(), mock, "drylogs.job_events", []string{"id"}, [][]any{{"e1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO drylogs.job_events")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_Validation(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{Table: "jobs"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{Table: "jobs", ConflictKeys: []string{"id"}}, [][]any{{1}})
	assert.ErrorContains(t, err, "no columns specified")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{Table: "jobs", Columns: []string{"id"}}, [][]any{{1}})
	assert.ErrorContains(t, err, "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock := newMock(t)
	cols := []string{"id", "status", "document"}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_jobs" \(LIKE "jobs" INCLUDING DEFAULTS\)`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_jobs"}, cols).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "jobs" .* ON CONFLICT \("id"\) DO UPDATE SET "status" = EXCLUDED."status", "document" = EXCLUDED."document"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "jobs",
		Columns:      cols,
		ConflictKeys: []string{"id"},
	}, [][]any{{"j1", "Install", []byte(`{}`)}, {"j2", "Demo", []byte(`{}`)}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyFailsRollsBack(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_jobs"}, []string{"id"}).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "jobs",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, [][]any{{"j1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for jobs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL_Where(t *testing.T) {
	got := upsertSQL(UpsertConfig{
		Table:        "drylogs.jobs",
		Columns:      []string{"id", "version"},
		ConflictKeys: []string{"id"},
		Where:        `"drylogs"."jobs"."version" < EXCLUDED."version"`,
	}, "_tmp")
	assert.Equal(t,
		`INSERT INTO "drylogs"."jobs" ("id", "version") SELECT "id", "version" FROM "_tmp" ON CONFLICT ("id") DO UPDATE SET "version" = EXCLUDED."version" WHERE "drylogs"."jobs"."version" < EXCLUDED."version"`,
		got)
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, `"jobs"`, identifier("jobs").Sanitize())
	assert.Equal(t, `"drylogs"."jobs"`, identifier("drylogs.jobs").Sanitize())
}
