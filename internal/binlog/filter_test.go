package binlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterEmptyPassesEverythingExceptSystemDatabases(t *testing.T) {
	f := NewFilter(nil, nil)
	require.True(t, f.ShouldProcessTable("app", "users"))
	require.True(t, f.ShouldProcessDDL("app"))
	require.False(t, f.ShouldProcessTable("mysql", "user"))
	require.False(t, f.ShouldProcessDDL("performance_schema"))
}

func TestFilterDatabaseAllowList(t *testing.T) {
	f := NewFilter([]string{"app"}, nil)
	require.True(t, f.ShouldProcessTable("app", "users"))
	require.False(t, f.ShouldProcessTable("otherdb", "users"))
	require.False(t, f.ShouldProcessDDL("otherdb"))
}

func TestFilterTableAllowListBareAndQualified(t *testing.T) {
	f := NewFilter(nil, []string{"users", "app.orders"})
	require.True(t, f.ShouldProcessTable("app", "users"))
	require.True(t, f.ShouldProcessTable("otherdb", "users"))
	require.True(t, f.ShouldProcessTable("app", "orders"))
	require.False(t, f.ShouldProcessTable("app", "products"))
}
