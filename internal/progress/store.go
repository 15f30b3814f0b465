// Package progress implements the durable per-table snapshot cursor store
// (C2): one row per table tracking migrated_rows, last_pk and status,
// grounded on the original ProgressManager/ProgressDatabase pairing and
// carried into Go on database/sql + sqlite, the same pairing the
// checkpoint store uses.
package progress

import (
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Status is one of the four states in the PENDING -> IN_PROGRESS ->
// {COMPLETED, FAILED} DAG; FAILED may be explicitly reset to PENDING.
type Status string

const (
	Pending    Status = "PENDING"
	InProgress Status = "IN_PROGRESS"
	Completed  Status = "COMPLETED"
	Failed     Status = "FAILED"
)

// Record is one table's snapshot progress.
type Record struct {
	TableName      string
	TotalRows      int64
	MigratedRows   int64
	LastPK         *string
	Status         Status
	StartTime      time.Time
	LastUpdateTime time.Time
	CompleteTime   *time.Time
	ErrorMessage   *string
}

// Store is the embedded key/value-over-SQL progress store, keyed by table
// name.
type Store struct {
	db *stdsql.DB
}

func Open(path string) (*Store, error) {
	db, err := stdsql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("progress: opening store at %q: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migration_progress (
			table_name       TEXT PRIMARY KEY,
			total_rows       INTEGER NOT NULL DEFAULT 0,
			migrated_rows    INTEGER NOT NULL DEFAULT 0,
			last_pk_value    TEXT,
			status           TEXT NOT NULL,
			start_time       TEXT NOT NULL,
			last_update_time TEXT NOT NULL,
			complete_time    TEXT,
			error_message    TEXT
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("progress: creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// Start creates the row directly as IN_PROGRESS if absent (no PENDING row
// is ever written by Start); if present and COMPLETED it resets to a fresh
// IN_PROGRESS row (matching
// "re-running a completed table is not idempotent no-op at this layer,
// the snapshot engine itself checks Status before calling Start" — Start
// is the low-level primitive); otherwise it marks the existing row
// IN_PROGRESS without touching migrated_rows/last_pk so an interrupted
// run resumes.
func (s *Store) Start(table string, totalRows int64) (Record, error) {
	existing, err := s.Get(table)
	if err != nil && !errors.Is(err, stdsql.ErrNoRows) {
		return Record{}, err
	}
	ts := now()
	if err == nil && existing.Status != Completed {
		if _, err := s.db.Exec(`UPDATE migration_progress SET status = ?, total_rows = ?, last_update_time = ? WHERE table_name = ?`,
			InProgress, totalRows, ts, table); err != nil {
			return Record{}, fmt.Errorf("progress: starting %q: %w", table, err)
		}
		return s.Get(table)
	}
	if _, err := s.db.Exec(`
		INSERT INTO migration_progress (table_name, total_rows, migrated_rows, last_pk_value, status, start_time, last_update_time)
		VALUES (?, ?, 0, NULL, ?, ?, ?)
		ON CONFLICT(table_name) DO UPDATE SET
			total_rows = excluded.total_rows,
			migrated_rows = 0,
			last_pk_value = NULL,
			status = excluded.status,
			start_time = excluded.start_time,
			last_update_time = excluded.last_update_time,
			complete_time = NULL,
			error_message = NULL`,
		table, totalRows, InProgress, ts, ts); err != nil {
		return Record{}, fmt.Errorf("progress: starting %q: %w", table, err)
	}
	return s.Get(table)
}

// Update writes migrated_rows/last_pk without touching status, safe to call
// at any frequency (the snapshot engine calls it once per batch, including
// a batch skipped under continue_on_error).
func (s *Store) Update(table string, migratedRows int64, lastPK *string) error {
	_, err := s.db.Exec(`UPDATE migration_progress SET migrated_rows = ?, last_pk_value = ?, last_update_time = ? WHERE table_name = ?`,
		migratedRows, lastPK, now(), table)
	if err != nil {
		return fmt.Errorf("progress: updating %q: %w", table, err)
	}
	return nil
}

func (s *Store) Complete(table string) error {
	ts := now()
	_, err := s.db.Exec(`UPDATE migration_progress SET status = ?, complete_time = ?, last_update_time = ? WHERE table_name = ?`,
		Completed, ts, ts, table)
	if err != nil {
		return fmt.Errorf("progress: completing %q: %w", table, err)
	}
	return nil
}

func (s *Store) Fail(table string, cause error) error {
	msg := cause.Error()
	_, err := s.db.Exec(`UPDATE migration_progress SET status = ?, error_message = ?, last_update_time = ? WHERE table_name = ?`,
		Failed, msg, now(), table)
	if err != nil {
		return fmt.Errorf("progress: failing %q: %w", table, err)
	}
	return nil
}

// Reset implements the operator-triggered FAILED -> PENDING transition.
func (s *Store) Reset(table string) error {
	_, err := s.db.Exec(`UPDATE migration_progress SET status = ?, error_message = NULL, last_update_time = ? WHERE table_name = ?`,
		Pending, now(), table)
	if err != nil {
		return fmt.Errorf("progress: resetting %q: %w", table, err)
	}
	return nil
}

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var r Record
	var lastPK, errMsg stdsql.NullString
	var completeTime stdsql.NullString
	var startTime, updateTime string
	if err := row.Scan(&r.TableName, &r.TotalRows, &r.MigratedRows, &lastPK, &r.Status, &startTime, &updateTime, &completeTime, &errMsg); err != nil {
		return Record{}, err
	}
	if lastPK.Valid {
		v := lastPK.String
		r.LastPK = &v
	}
	if errMsg.Valid {
		v := errMsg.String
		r.ErrorMessage = &v
	}
	r.StartTime, _ = time.Parse(time.RFC3339Nano, startTime)
	r.LastUpdateTime, _ = time.Parse(time.RFC3339Nano, updateTime)
	if completeTime.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completeTime.String); err == nil {
			r.CompleteTime = &t
		}
	}
	return r, nil
}

const selectCols = `table_name, total_rows, migrated_rows, last_pk_value, status, start_time, last_update_time, complete_time, error_message`

func (s *Store) Get(table string) (Record, error) {
	row := s.db.QueryRow(`SELECT `+selectCols+` FROM migration_progress WHERE table_name = ?`, table)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return Record{}, stdsql.ErrNoRows
		}
		return Record{}, fmt.Errorf("progress: getting %q: %w", table, err)
	}
	return rec, nil
}

func (s *Store) GetAll() ([]Record, error) {
	return s.query(`SELECT ` + selectCols + ` FROM migration_progress ORDER BY table_name`)
}

func (s *Store) GetIncomplete() ([]Record, error) {
	return s.query(`SELECT ` + selectCols + ` FROM migration_progress WHERE status != ? ORDER BY table_name`, Completed)
}

func (s *Store) query(q string, args ...any) ([]Record, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("progress: querying: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("progress: scanning: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ClearAll() error {
	if _, err := s.db.Exec(`DELETE FROM migration_progress`); err != nil {
		return fmt.Errorf("progress: clearing: %w", err)
	}
	return nil
}

// Summary reports per-status table counts, grounded on the original's
// printProgressSummary.
func (s *Store) Summary() (map[Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM migration_progress GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("progress: summarizing: %w", err)
	}
	defer rows.Close()
	out := map[Status]int{}
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, rows.Err()
}
