package progress

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStartOnAbsentTableCreatesInProgressRow(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.Start("users", 100)
	require.NoError(t, err)
	require.Equal(t, InProgress, rec.Status)
	require.EqualValues(t, 100, rec.TotalRows)
	require.EqualValues(t, 0, rec.MigratedRows)
	require.Nil(t, rec.LastPK)
}

func TestStartOnInProgressResumesWithoutResettingProgress(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Start("users", 100)
	require.NoError(t, err)
	require.NoError(t, s.Update("users", 40, strPtr("40")))

	rec, err := s.Start("users", 100)
	require.NoError(t, err)
	require.Equal(t, InProgress, rec.Status)
	require.EqualValues(t, 40, rec.MigratedRows, "restarting an interrupted table must not lose migrated_rows")
	require.Equal(t, "40", *rec.LastPK)
}

func TestStartOnCompletedResetsRow(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Start("users", 100)
	require.NoError(t, err)
	require.NoError(t, s.Update("users", 100, strPtr("100")))
	require.NoError(t, s.Complete("users"))

	rec, err := s.Start("users", 100)
	require.NoError(t, err)
	require.Equal(t, InProgress, rec.Status)
	require.EqualValues(t, 0, rec.MigratedRows, "re-running a COMPLETED table starts fresh")
	require.Nil(t, rec.LastPK)
}

func TestFailThenReset(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Start("users", 10)
	require.NoError(t, err)
	require.NoError(t, s.Fail("users", errors.New("connection refused")))

	rec, err := s.Get("users")
	require.NoError(t, err)
	require.Equal(t, Failed, rec.Status)
	require.Equal(t, "connection refused", *rec.ErrorMessage)

	require.NoError(t, s.Reset("users"))
	rec, err = s.Get("users")
	require.NoError(t, err)
	require.Equal(t, Pending, rec.Status)
	require.Nil(t, rec.ErrorMessage)
}

func TestGetMissingTableReturnsErrNoRows(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("nope")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSummaryCountsByStatus(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Start("a", 1)
	require.NoError(t, err)
	_, err = s.Start("b", 1)
	require.NoError(t, err)
	require.NoError(t, s.Complete("b"))

	summary, err := s.Summary()
	require.NoError(t, err)
	require.Equal(t, 1, summary[InProgress])
	require.Equal(t, 1, summary[Completed])
}

func TestGetIncompleteExcludesCompleted(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Start("a", 1)
	require.NoError(t, err)
	_, err = s.Start("b", 1)
	require.NoError(t, err)
	require.NoError(t, s.Complete("b"))

	incomplete, err := s.GetIncomplete()
	require.NoError(t, err)
	require.Len(t, incomplete, 1)
	require.Equal(t, "a", incomplete[0].TableName)
}

func strPtr(s string) *string { return &s }
