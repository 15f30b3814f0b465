package binlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mangoGood/mysql-replicate/internal/model"
	"github.com/mangoGood/mysql-replicate/internal/position"
)

func TestJournalSinkWritesPositionAndGTIDHeaders(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewJournalSink(dir)
	require.NoError(t, err)
	defer sink.Close()

	ev := &model.Event{
		Kind:     model.EventInsert,
		Database: "shop",
		Table:    "orders",
		Pos:      position.Position{Filename: "bin.000001", Offset: 640, GTID: "aaaa:1-2"},
		Rows: []model.Row{{
			Columns: []string{"id", "user_id"},
			After:   []any{1, 1},
		}},
	}
	require.NoError(t, sink.Accept(ev))
	require.NoError(t, sink.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Regexp(t, `^binlog_sql_\d{8}_\d{6}_0001\.sql$`, entries[0].Name())

	content, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(content), "[POSITION] bin.000001:640\n")
	require.Contains(t, string(content), "[GTID] aaaa:1-2\n")
	require.Contains(t, string(content), "INSERT INTO shop.orders (id, user_id) VALUES (1, 1);\n")

	parsed, _, err := ParseEntries(entries[0].Name(), content)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	require.Equal(t, "aaaa:1-2", parsed[0].Pos.GTID)
}
