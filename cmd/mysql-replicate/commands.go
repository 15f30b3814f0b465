package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-mysql-org/go-mysql/client"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mangoGood/mysql-replicate/internal/binlog"
	"github.com/mangoGood/mysql-replicate/internal/checkpoint"
	"github.com/mangoGood/mysql-replicate/internal/config"
	"github.com/mangoGood/mysql-replicate/internal/logging"
	"github.com/mangoGood/mysql-replicate/internal/model"
	"github.com/mangoGood/mysql-replicate/internal/mysqlsrc"
	"github.com/mangoGood/mysql-replicate/internal/progress"
	"github.com/mangoGood/mysql-replicate/internal/snapshot"
	"github.com/mangoGood/mysql-replicate/internal/target"
)

func loadConfig() (config.Config, error) {
	return config.Resolve(v)
}

func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Discover source tables, apply schema and copy rows to the target",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logging.Setup(logLevel, os.Stderr)
			return runSnapshot(cfg, log.WithField("cmd", "snapshot"))
		},
	}
}

func tailCmd() *cobra.Command {
	var sink string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail the source binlog and apply or journal decoded events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logging.Setup(logLevel, os.Stderr)
			return runTail(cfg, sink, log.WithField("cmd", "tail"))
		},
	}
	cmd.Flags().StringVar(&sink, "sink", "journal", "direct|journal")
	return cmd
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay a journal directory against the target",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logging.Setup(logLevel, os.Stderr)
			return runReplay(cfg, log.WithField("cmd", "replay"))
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Snapshot, then (with incremental enabled) tail with the journal sink while replaying it, in one process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logging.Setup(logLevel, os.Stderr)
			if err := runSnapshot(cfg, log.WithField("cmd", "run.snapshot")); err != nil {
				return err
			}
			if !cfg.EnableIncremental {
				return nil
			}
			errCh := make(chan error, 2)
			go func() { errCh <- runTail(cfg, "journal", log.WithField("cmd", "run.tail")) }()
			go func() { errCh <- runReplay(cfg, log.WithField("cmd", "run.replay")) }()
			return <-errCh
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print per-table progress summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := progress.Open(cfg.CheckpointDBPath)
			if err != nil {
				return err
			}
			defer store.Close()
			summary, err := store.Summary()
			if err != nil {
				return err
			}
			for status, n := range summary {
				fmt.Printf("%-12s %d\n", status, n)
			}
			return nil
		},
	}
}

func resetTableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-table <table>",
		Short: "Reset a FAILED table's progress back to PENDING",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := progress.Open(cfg.CheckpointDBPath)
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Reset(args[0])
		},
	}
}

func connectSource(cfg config.Config) (*client.Conn, error) {
	conn, err := client.Connect(cfg.SourceDB.Addr(), cfg.SourceDB.Username, cfg.SourceDB.Password, cfg.SourceDB.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to source: %w", err)
	}
	return conn, nil
}

func runSnapshot(cfg config.Config, log *logrus.Entry) error {
	src, err := connectSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	tgt, err := target.Open(cfg.TargetDB)
	if err != nil {
		return err
	}
	defer tgt.Close()

	cpStore, err := checkpoint.Open(cfg.CheckpointDBPath)
	if err != nil {
		return err
	}
	defer cpStore.Close()

	// Snapshot start position must be captured before the first row read
	// (the checkpoint-race design note).
	startPos, err := checkpoint.CaptureSourcePosition(src)
	if err != nil {
		return fmt.Errorf("capturing snapshot start position: %w", err)
	}
	if err := cpStore.Save(startPos); err != nil {
		return fmt.Errorf("recording snapshot start checkpoint: %w", err)
	}

	progStore, err := progress.Open(cfg.CheckpointDBPath)
	if err != nil {
		return err
	}
	defer progStore.Close()

	reader := mysqlsrc.NewReader(src, cfg.SourceDB.Database)
	names, err := reader.ListTables()
	if err != nil {
		return err
	}
	tables := make([]model.TableDescriptor, 0, len(names))
	for _, name := range names {
		td, err := reader.Describe(name)
		if err != nil {
			log.WithError(err).WithField("table", name).Warn("describing table failed, skipping")
			continue
		}
		tables = append(tables, td)
	}

	engine := snapshot.New(src, cfg.SourceDB.Database, tgt, progStore, snapshot.Options{
		DropTables:      cfg.DropTables,
		CreateTables:    cfg.CreateTables,
		MigrateData:     cfg.MigrateData,
		ContinueOnError: cfg.ContinueOnError,
		EnableResume:    cfg.EnableResume,
		BatchSize:       cfg.BatchSize,
	}, log)

	if err := engine.RunSchemaPhase(tables); err != nil {
		return err
	}
	return engine.RunDataPhase(tables)
}

func runTail(cfg config.Config, sinkKind string, log *logrus.Entry) error {
	prereqConn, err := connectSource(cfg)
	if err != nil {
		return err
	}
	if err := mysqlsrc.CheckPrerequisites(prereqConn); err != nil {
		prereqConn.Close()
		return fmt.Errorf("tail: %w", err)
	}
	prereqConn.Close()

	tgt, err := target.Open(cfg.TargetDB)
	if err != nil {
		return err
	}

	var sink binlog.Sink
	if sinkKind == "direct" {
		sink = binlog.NewDirectSink(tgt, log)
	} else {
		js, err := binlog.NewJournalSink(cfg.SQLDirectory)
		if err != nil {
			return err
		}
		sink = js
	}
	filter := binlog.NewFilter(cfg.IncludedDatabases, cfg.IncludedTables)

	cpStore, err := checkpoint.Open(cfg.CheckpointDBPath)
	if err != nil {
		return err
	}
	defer cpStore.Close()
	startPos, err := cpStore.Load()
	if err != nil {
		return fmt.Errorf("loading checkpoint before tailing: %w", err)
	}

	engine, err := binlog.New(cfg.SourceDB, cfg.SourceDB.Database, uint32(time.Now().Unix()%100000+1000), sink, filter, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("received shutdown signal, stopping tail cleanly")
		engine.Stop()
		cancel()
	}()

	return engine.Start(ctx, startPos)
}

func runReplay(cfg config.Config, log *logrus.Entry) error {
	tgt, err := target.Open(cfg.TargetDB)
	if err != nil {
		return err
	}
	defer tgt.Close()

	cpStore, err := checkpoint.Open(cfg.CheckpointDBPath)
	if err != nil {
		return err
	}
	defer cpStore.Close()

	replayer := binlog.NewReplayer(cfg.SQLDirectory, tgt, cpStore, time.Duration(cfg.ScanIntervalMillis)*time.Millisecond, log)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("received shutdown signal, draining journal before exit")
		cancel()
	}()

	return replayer.Run(ctx)
}
