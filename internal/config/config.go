// Package config loads the flat key/value configuration described by the
// external interface: dotted config keys with a small set of environment
// variable overrides, bound through Viper the way wesql-wescale and
// vitess bind their own operator-facing configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DBConfig is one endpoint's connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

func (c DBConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Config is the fully resolved configuration for one pipeline run.
type Config struct {
	SourceDB DBConfig
	TargetDB DBConfig

	BatchSize          int
	DropTables         bool
	CreateTables       bool
	MigrateData        bool
	ContinueOnError    bool
	EnableResume       bool
	EnableIncremental  bool
	IncludedDatabases  []string
	IncludedTables     []string
	CheckpointDBPath   string
	SQLDirectory       string
	ScanIntervalMillis int
}

// New builds a Viper instance bound to the config keys and environment
// overrides from the external interface, with defaults applied. Callers
// load a file into it (viper.SetConfigFile + ReadInConfig) or bind CLI
// flags before calling Resolve.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("migration.batch.size", 1000)
	v.SetDefault("migration.drop.tables", false)
	v.SetDefault("migration.create.tables", true)
	v.SetDefault("migration.migrate.data", true)
	v.SetDefault("migration.continue.on.error", false)
	v.SetDefault("migration.enable.resume", true)
	v.SetDefault("migration.enable.incremental", false)
	v.SetDefault("migration.included.databases", "")
	v.SetDefault("migration.included.tables", "")
	v.SetDefault("sql.scan.interval.ms", 5000)
}

// bindEnv wires the exact environment variable names the external
// interface names, each overriding its corresponding dotted key only when
// the environment variable is non-empty (BindEnv already has that
// semantic: an unset env var simply isn't consulted).
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("target.db.host", "TARGET_HOST")
	_ = v.BindEnv("target.db.port", "TARGET_PORT")
	_ = v.BindEnv("target.db.database", "TARGET_DATABASE")
	_ = v.BindEnv("target.db.username", "TARGET_USERNAME")
	_ = v.BindEnv("target.db.password", "TARGET_PASSWORD")
	_ = v.BindEnv("sql.directory", "SQL_DIRECTORY")
	_ = v.BindEnv("migration.checkpoint.db.path", "CHECKPOINT_DB_PATH")
	_ = v.BindEnv("sql.scan.interval.ms", "SQL_SCAN_INTERVAL_MS")
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Resolve reads every bound key out of v into a Config.
func Resolve(v *viper.Viper) (Config, error) {
	cfg := Config{
		SourceDB: DBConfig{
			Host:     v.GetString("source.db.host"),
			Port:     v.GetInt("source.db.port"),
			Database: v.GetString("source.db.database"),
			Username: v.GetString("source.db.username"),
			Password: v.GetString("source.db.password"),
		},
		TargetDB: DBConfig{
			Host:     v.GetString("target.db.host"),
			Port:     v.GetInt("target.db.port"),
			Database: v.GetString("target.db.database"),
			Username: v.GetString("target.db.username"),
			Password: v.GetString("target.db.password"),
		},
		BatchSize:          v.GetInt("migration.batch.size"),
		DropTables:         v.GetBool("migration.drop.tables"),
		CreateTables:       v.GetBool("migration.create.tables"),
		MigrateData:        v.GetBool("migration.migrate.data"),
		ContinueOnError:    v.GetBool("migration.continue.on.error"),
		EnableResume:       v.GetBool("migration.enable.resume"),
		EnableIncremental:  v.GetBool("migration.enable.incremental"),
		IncludedDatabases:  splitList(v.GetString("migration.included.databases")),
		IncludedTables:     splitList(v.GetString("migration.included.tables")),
		CheckpointDBPath:   v.GetString("migration.checkpoint.db.path"),
		SQLDirectory:       v.GetString("sql.directory"),
		ScanIntervalMillis: v.GetInt("sql.scan.interval.ms"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants a missing/invalid config would otherwise
// only surface as a confusing downstream connection error.
func (c Config) Validate() error {
	if c.SourceDB.Host == "" {
		return fmt.Errorf("source.db.host is required")
	}
	if c.TargetDB.Host == "" {
		return fmt.Errorf("target.db.host is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("migration.batch.size must be positive, got %d", c.BatchSize)
	}
	if c.EnableIncremental && c.SQLDirectory == "" && c.CheckpointDBPath == "" {
		return fmt.Errorf("migration.enable.incremental requires sql.directory or migration.checkpoint.db.path")
	}
	return nil
}
