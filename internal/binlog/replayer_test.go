package binlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mangoGood/mysql-replicate/internal/checkpoint"
	"github.com/mangoGood/mysql-replicate/internal/position"
)

// fakeExecutor is a minimal in-memory Executor: it records every statement
// it was asked to run and can be told to fail specific ones, so tests can
// exercise the replayer's dedup and checkpoint-advance logic without a
// live MySQL connection.
type fakeExecutor struct {
	execCalls []string
	failOn    map[string]bool
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{failOn: map[string]bool{}}
}

func (f *fakeExecutor) Exec(sql string) error {
	if f.failOn[sql] {
		return fmt.Errorf("fake: forced failure for %q", sql)
	}
	f.execCalls = append(f.execCalls, sql)
	return nil
}

func (f *fakeExecutor) ExecParams(sql string, args ...any) error {
	if f.failOn[sql] {
		return fmt.Errorf("fake: forced failure for %q", sql)
	}
	f.execCalls = append(f.execCalls, sql)
	return nil
}

func openTestCheckpoint(t *testing.T) *checkpoint.Store {
	t.Helper()
	cp, err := checkpoint.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { cp.Close() })
	return cp
}

func TestApplyEntrySkipsAlreadySeenFingerprint(t *testing.T) {
	exec := newFakeExecutor()
	cp := openTestCheckpoint(t)
	r := NewReplayer(t.TempDir(), exec, cp, time.Second, nil)

	entry := Entry{Pos: position.Position{Filename: "bin.000001", Offset: 100}, SQL: "INSERT INTO t VALUES (1);"}

	pos := r.applyEntry(entry, position.Zero)
	require.True(t, pos.Equal(entry.Pos))
	require.Len(t, exec.execCalls, 1)

	// Replaying the identical entry again must not re-execute it, per the
	// round-trip/idempotence property: the fingerprint has already been
	// seen this run.
	pos = r.applyEntry(entry, pos)
	require.True(t, pos.Equal(entry.Pos))
	require.Len(t, exec.execCalls, 1, "duplicate fingerprint must not be re-applied")
}

func TestApplyEntrySkipsAtOrBeforeCheckpoint(t *testing.T) {
	exec := newFakeExecutor()
	cp := openTestCheckpoint(t)
	r := NewReplayer(t.TempDir(), exec, cp, time.Second, nil)

	checkpointPos := position.Position{Filename: "bin.000001", Offset: 500}
	entry := Entry{Pos: position.Position{Filename: "bin.000001", Offset: 200}, SQL: "INSERT INTO t VALUES (1);"}

	pos := r.applyEntry(entry, checkpointPos)
	require.True(t, pos.Equal(checkpointPos), "entry at or before the checkpoint must be gated out")
	require.Empty(t, exec.execCalls)
}

func TestApplyEntryFailureDoesNotAdvanceOrMarkSeen(t *testing.T) {
	exec := newFakeExecutor()
	sql := "INSERT INTO t VALUES (1);"
	exec.failOn[sql] = true
	cp := openTestCheckpoint(t)
	r := NewReplayer(t.TempDir(), exec, cp, time.Second, nil)

	entry := Entry{Pos: position.Position{Filename: "bin.000001", Offset: 100}, SQL: sql}
	pos := r.applyEntry(entry, position.Zero)
	require.True(t, pos.Equal(position.Zero), "checkpoint must not advance past a failed apply")
	require.False(t, r.seen[entry.Fingerprint()], "a failed apply must not be marked seen, so it is retried on the next scan")
}

func TestApplyEntryAdvancesCheckpointEveryHundredApplies(t *testing.T) {
	exec := newFakeExecutor()
	cp := openTestCheckpoint(t)
	r := NewReplayer(t.TempDir(), exec, cp, time.Second, nil)

	var pos position.Position
	for i := 0; i < checkpointBatchSize; i++ {
		entry := Entry{Pos: position.Position{Filename: "bin.000001", Offset: uint32(100 + i)}, SQL: fmt.Sprintf("INSERT INTO t VALUES (%d);", i)}
		pos = r.applyEntry(entry, pos)
	}
	require.Equal(t, 0, r.applied, "counter resets once the 100-apply threshold saves the checkpoint")

	saved, err := cp.Load()
	require.NoError(t, err)
	require.True(t, saved.Equal(pos))
}

func writeJournalFile(t *testing.T, dir, name string, entries []Entry) {
	t.Helper()
	var body string
	for _, e := range entries {
		body += fmt.Sprintf("[POSITION] %s\n[GTID] \n%s\n\n", e.Pos.String(), e.SQL)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestRunAppliesJournalAndSavesCheckpointAtEndOfScan(t *testing.T) {
	dir := t.TempDir()
	writeJournalFile(t, dir, "binlog_sql_0001.sql", []Entry{
		{Pos: position.Position{Filename: "bin.000001", Offset: 10}, SQL: "INSERT INTO t VALUES (1);"},
		{Pos: position.Position{Filename: "bin.000001", Offset: 20}, SQL: "INSERT INTO t VALUES (2);"},
	})

	exec := newFakeExecutor()
	cp := openTestCheckpoint(t)
	r := NewReplayer(dir, exec, cp, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		pos, err := cp.Load()
		return err == nil && pos.Equal(position.Position{Filename: "bin.000001", Offset: 20})
	}, time.Second, 5*time.Millisecond, "checkpoint must be saved at the end of a scan that applied fewer than 100 entries, not just at shutdown")

	cancel()
	require.NoError(t, <-done)
	require.Len(t, exec.execCalls, 2)
}

func TestRunDoesNotReapplyAcrossRestartAfterCheckpointSaved(t *testing.T) {
	dir := t.TempDir()
	writeJournalFile(t, dir, "binlog_sql_0001.sql", []Entry{
		{Pos: position.Position{Filename: "bin.000001", Offset: 10}, SQL: "INSERT INTO t VALUES (1);"},
	})

	exec := newFakeExecutor()
	cp := openTestCheckpoint(t)

	r1 := NewReplayer(dir, exec, cp, 10*time.Millisecond, nil)
	ctx1, cancel1 := context.WithCancel(context.Background())
	done1 := make(chan error, 1)
	go func() { done1 <- r1.Run(ctx1) }()
	require.Eventually(t, func() bool { return len(exec.execCalls) == 1 }, time.Second, 5*time.Millisecond)
	cancel1()
	require.NoError(t, <-done1)

	// A fresh replayer (simulating a restart, in-memory "seen" set empty)
	// against the same checkpoint store and journal directory must not
	// re-execute the already-applied, already-checkpointed entry.
	r2 := NewReplayer(dir, exec, cp, 10*time.Millisecond, nil)
	ctx2, cancel2 := context.WithCancel(context.Background())
	done2 := make(chan error, 1)
	go func() { done2 <- r2.Run(ctx2) }()
	time.Sleep(50 * time.Millisecond)
	cancel2()
	require.NoError(t, <-done2)

	require.Len(t, exec.execCalls, 1, "a checkpointed entry must not be re-applied on restart")
}
