package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableDescriptorResumableKey(t *testing.T) {
	td := TableDescriptor{Name: "users", PrimaryKey: "id"}
	require.True(t, td.HasResumableKey())

	composite := td.WithCompositeKey()
	require.False(t, composite.HasResumableKey())
	require.Empty(t, composite.PrimaryKey)

	absent := TableDescriptor{Name: "log"}
	require.False(t, absent.HasResumableKey())
}

func TestTableDescriptorColumnNames(t *testing.T) {
	td := TableDescriptor{Columns: []ColumnDescriptor{{Name: "id"}, {Name: "name"}, {Name: "email"}}}
	require.Equal(t, []string{"id", "name", "email"}, td.ColumnNames())
}

func TestRowGetPrefersAfter(t *testing.T) {
	r := Row{
		Columns: []string{"id", "name"},
		Before:  []any{1, "b"},
		After:   []any{1, "c"},
	}
	v, ok := r.Get("name")
	require.True(t, ok)
	require.Equal(t, "c", v)

	del := Row{Columns: []string{"id", "name"}, Before: []any{1, "b"}}
	v, ok = del.Get("name")
	require.True(t, ok)
	require.Equal(t, "b", v)

	_, ok = del.Get("missing")
	require.False(t, ok)
}

func TestEventKindString(t *testing.T) {
	require.Equal(t, "DDL", EventDDL.String())
	require.Equal(t, "INSERT", EventInsert.String())
	require.Equal(t, "UPDATE", EventUpdate.String())
	require.Equal(t, "DELETE", EventDelete.String())
}
