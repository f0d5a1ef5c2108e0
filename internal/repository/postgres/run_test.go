package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/pan-validator/internal/pan"
	"github.com/ignite/pan-validator/internal/service/validation"
)

func newRepo(t *testing.T) (*RunRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRunRepo(db), mock
}

func result(t *testing.T, values ...string) *pan.Result {
	t.Helper()
	res, err := pan.NewPipeline(nil, pan.PipelineOptions{}).Run(context.Background(), pan.RawStrings(values...))
	require.NoError(t, err)
	res.Source = "file:batch.csv"
	return res
}

func TestSaveRun(t *testing.T) {
	repo, mock := newRepo(t)
	res := result(t, "ABXCD1934F", "AABCD1923F")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pan_runs").
		WithArgs(res.RunID, "file:batch.csv", 2, 0, 2, 1, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO pan_outcomes").
		WithArgs(res.RunID, 0, "ABXCD1934F", "valid", res.RunID, 1, "AABCD1923F", "invalid_adjacent_alphabets").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveRun(context.Background(), res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun_BatchesOutcomes(t *testing.T) {
	repo, mock := newRepo(t)
	values := make([]string, 1200)
	for i := range values {
		values[i] = fmt.Sprintf("PQXRT%04dZ", i)
	}
	res := result(t, values...)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pan_runs").WillReturnResult(sqlmock.NewResult(0, 1))
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO pan_outcomes").WillReturnResult(sqlmock.NewResult(0, 500))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.SaveRun(context.Background(), res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun_RollsBackOnError(t *testing.T) {
	repo, mock := newRepo(t)
	res := result(t, "ABXCD1934F")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pan_runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO pan_outcomes").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.SaveRun(context.Background(), res)
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSummary(t *testing.T) {
	repo, mock := newRepo(t)
	id := uuid.New()
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, source").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "source", "input_records", "duplicates", "total_records", "total_valid", "total_invalid", "by_verdict", "created_at"}).
			AddRow(id.String(), "s3://b/k", 5, 1, 4, 3, 1, []byte(`{"valid":3,"invalid_format":1}`), created))

	got, err := repo.GetSummary(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id.String(), got.RunID)
	assert.Equal(t, 4, got.Summary.TotalRecords)
	assert.Equal(t, 4, got.Dedup.Unique)
	assert.Equal(t, 3, got.Summary.ByVerdict[pan.VerdictValid])
	assert.Equal(t, created, got.CreatedAt)
}

func TestGetSummary_NotFound(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery("SELECT id, source").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetSummary(context.Background(), uuid.New())
	assert.ErrorIs(t, err, validation.ErrRunNotFound)
}

func TestListOutcomes_Filter(t *testing.T) {
	repo, mock := newRepo(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT identifier, verdict FROM pan_outcomes WHERE run_id = \$1 AND verdict = \$2 ORDER BY position LIMIT \$3 OFFSET \$4`).
		WithArgs(id, "invalid_format", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"identifier", "verdict"}).AddRow("BAD", "invalid_format"))

	got, err := repo.ListOutcomes(context.Background(), id, validation.OutcomeFilter{Verdict: pan.VerdictInvalidFormat, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []pan.Outcome{{Identifier: "BAD", Verdict: pan.VerdictInvalidFormat}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOutcomes_Identifier(t *testing.T) {
	repo, mock := newRepo(t)
	id := uuid.New()

	mock.ExpectQuery(`WHERE run_id = \$1 AND identifier = \$2 ORDER BY position$`).
		WithArgs(id, "ABXCD1934F").
		WillReturnRows(sqlmock.NewRows([]string{"identifier", "verdict"}).AddRow("ABXCD1934F", "valid"))

	key := "ABXCD1934F"
	got, err := repo.ListOutcomes(context.Background(), id, validation.OutcomeFilter{Identifier: &key})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pan.VerdictValid, got[0].Verdict)
}

func TestListOutcomes_EmptyIdentifierIsAKey(t *testing.T) {
	repo, mock := newRepo(t)
	id := uuid.New()

	mock.ExpectQuery(`WHERE run_id = \$1 AND identifier = \$2 ORDER BY position LIMIT \$3 OFFSET \$4$`).
		WithArgs(id, "", 1, 0).
		WillReturnRows(sqlmock.NewRows([]string{"identifier", "verdict"}))

	empty := ""
	got, err := repo.ListOutcomes(context.Background(), id, validation.OutcomeFilter{Identifier: &empty, Limit: 1})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOutcomes_UnknownVerdict(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery("SELECT identifier, verdict").
		WillReturnRows(sqlmock.NewRows([]string{"identifier", "verdict"}).AddRow("X", "maybe"))

	_, err := repo.ListOutcomes(context.Background(), uuid.New(), validation.OutcomeFilter{})
	assert.ErrorIs(t, err, pan.ErrUnknownVerdict)
}
