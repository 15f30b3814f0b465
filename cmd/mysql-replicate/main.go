// Command mysql-replicate runs the snapshot copier, the binlog tailer and
// the journal replayer, wired together with cobra/viper the way
// wesql-wescale's and vitess's own CLIs bind operator-facing configuration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mangoGood/mysql-replicate/internal/config"
)

var (
	cfgFile  string
	logLevel string
	v        *viper.Viper
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	v = config.New()

	root := &cobra.Command{
		Use:   "mysql-replicate",
		Short: "Resumable MySQL-to-MySQL snapshot and binlog replication",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "logrus level (debug|info|warn|error)")
	root.PersistentFlags().String("source-host", "", "source.db.host")
	root.PersistentFlags().Int("source-port", 3306, "source.db.port")
	root.PersistentFlags().String("source-database", "", "source.db.database")
	root.PersistentFlags().String("source-username", "", "source.db.username")
	root.PersistentFlags().String("source-password", "", "source.db.password")
	root.PersistentFlags().String("target-host", "", "target.db.host")
	root.PersistentFlags().Int("target-port", 3306, "target.db.port")
	root.PersistentFlags().String("target-database", "", "target.db.database")
	root.PersistentFlags().String("target-username", "", "target.db.username")
	root.PersistentFlags().String("target-password", "", "target.db.password")
	root.PersistentFlags().Int("batch-size", 1000, "migration.batch.size")
	root.PersistentFlags().Bool("drop-tables", false, "migration.drop.tables")
	root.PersistentFlags().Bool("continue-on-error", false, "migration.continue.on.error")
	root.PersistentFlags().String("checkpoint-db-path", "", "migration.checkpoint.db.path")
	root.PersistentFlags().String("sql-directory", "", "sql.directory")
	root.PersistentFlags().Int("scan-interval-ms", 5000, "sql.scan.interval.ms")
	root.PersistentFlags().String("included-databases", "", "migration.included.databases")
	root.PersistentFlags().String("included-tables", "", "migration.included.tables")

	bindFlag(v, root, "source.db.host", "source-host")
	bindFlag(v, root, "source.db.port", "source-port")
	bindFlag(v, root, "source.db.database", "source-database")
	bindFlag(v, root, "source.db.username", "source-username")
	bindFlag(v, root, "source.db.password", "source-password")
	bindFlag(v, root, "target.db.host", "target-host")
	bindFlag(v, root, "target.db.port", "target-port")
	bindFlag(v, root, "target.db.database", "target-database")
	bindFlag(v, root, "target.db.username", "target-username")
	bindFlag(v, root, "target.db.password", "target-password")
	bindFlag(v, root, "migration.batch.size", "batch-size")
	bindFlag(v, root, "migration.drop.tables", "drop-tables")
	bindFlag(v, root, "migration.continue.on.error", "continue-on-error")
	bindFlag(v, root, "migration.checkpoint.db.path", "checkpoint-db-path")
	bindFlag(v, root, "sql.directory", "sql-directory")
	bindFlag(v, root, "sql.scan.interval.ms", "scan-interval-ms")
	bindFlag(v, root, "migration.included.databases", "included-databases")
	bindFlag(v, root, "migration.included.tables", "included-tables")

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: reading config file: %v\n", err)
			}
		}
	})

	root.AddCommand(snapshotCmd(), tailCmd(), replayCmd(), runCmd(), statusCmd(), resetTableCmd())
	return root
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	_ = v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag))
}
