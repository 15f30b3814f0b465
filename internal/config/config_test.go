package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsApplyWhenUnset(t *testing.T) {
	v := New()
	v.Set("source.db.host", "src")
	v.Set("target.db.host", "tgt")
	cfg, err := Resolve(v)
	require.NoError(t, err)
	require.Equal(t, 1000, cfg.BatchSize)
	require.False(t, cfg.DropTables)
	require.True(t, cfg.CreateTables)
	require.True(t, cfg.EnableResume)
	require.Equal(t, 5000, cfg.ScanIntervalMillis)
}

func TestEnvOverridesTakePrecedenceOverDefaults(t *testing.T) {
	t.Setenv("TARGET_HOST", "env-target")
	t.Setenv("SQL_SCAN_INTERVAL_MS", "1500")

	v := New()
	v.Set("source.db.host", "src")
	cfg, err := Resolve(v)
	require.NoError(t, err)
	require.Equal(t, "env-target", cfg.TargetDB.Host)
	require.Equal(t, 1500, cfg.ScanIntervalMillis)
}

func TestSplitListTrimsAndDropsEmpty(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, splitList(" a, b ,c, "))
	require.Nil(t, splitList(""))
	require.Nil(t, splitList("   "))
}

func TestValidateRequiresHosts(t *testing.T) {
	cfg := Config{BatchSize: 1}
	require.Error(t, cfg.Validate())

	cfg.SourceDB.Host = "src"
	require.Error(t, cfg.Validate())

	cfg.TargetDB.Host = "tgt"
	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresPositiveBatchSize(t *testing.T) {
	cfg := Config{SourceDB: DBConfig{Host: "src"}, TargetDB: DBConfig{Host: "tgt"}, BatchSize: 0}
	require.Error(t, cfg.Validate())
}

func TestValidateIncrementalRequiresDirectoryOrCheckpoint(t *testing.T) {
	cfg := Config{
		SourceDB:          DBConfig{Host: "src"},
		TargetDB:          DBConfig{Host: "tgt"},
		BatchSize:         1,
		EnableIncremental: true,
	}
	require.Error(t, cfg.Validate())

	cfg.SQLDirectory = "/tmp/journal"
	require.NoError(t, cfg.Validate())
}

func TestDBConfigAddr(t *testing.T) {
	c := DBConfig{Host: "db.internal", Port: 3306}
	require.Equal(t, "db.internal:3306", c.Addr())
}
