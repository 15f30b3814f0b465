package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mangoGood/mysql-replicate/internal/position"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadBeforeAnySaveReturnsErrNoCheckpoint(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Load()
	require.ErrorIs(t, err, ErrNoCheckpoint)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := openTestStore(t)
	p := position.Position{Filename: "bin.000003", Offset: 4096, GTID: "aaaa:1-9"}
	require.NoError(t, s.Save(p))

	got, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestSaveOverwritesSingleRow(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Save(position.Position{Filename: "bin.000001", Offset: 1}))
	require.NoError(t, s.Save(position.Position{Filename: "bin.000002", Offset: 2}))

	got, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, "bin.000002", got.Filename)
	require.EqualValues(t, 2, got.Offset)
}
