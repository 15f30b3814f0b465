// Package checkpoint implements the single-row durable checkpoint store
// (C3) that records the binlog position/GTID past which every event has
// been applied to the target.
package checkpoint

import (
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mangoGood/mysql-replicate/internal/position"
)

// ErrNoCheckpoint is returned by Store.Load when the store has never been
// written to.
var ErrNoCheckpoint = errors.New("checkpoint: no checkpoint recorded yet")

// Store is a single-row SQL-backed checkpoint store, the embedded
// key/value-over-SQL store the external interface calls for, built on
// database/sql + sqlite. save/load are the entire contract: exactly one
// row ever exists.
type Store struct {
	db *stdsql.DB
}

// Open opens (creating if absent) the sqlite-backed checkpoint database at
// path and ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := stdsql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: opening store at %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-row store, single writer (the replayer)
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoint (
			id        INTEGER PRIMARY KEY CHECK (id = 1),
			filename  TEXT NOT NULL,
			offset_   INTEGER NOT NULL,
			gtid      TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save overwrites the single checkpoint row. Durable before returning:
// sqlite fsyncs the write-ahead-log/journal on commit by default.
func (s *Store) Save(p position.Position) error {
	_, err := s.db.Exec(`
		INSERT INTO checkpoint (id, filename, offset_, gtid, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			offset_ = excluded.offset_,
			gtid = excluded.gtid,
			updated_at = excluded.updated_at`,
		p.Filename, p.Offset, p.GTID, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("checkpoint: saving %s: %w", p, err)
	}
	return nil
}

// Load returns the current checkpoint, or ErrNoCheckpoint if Save has
// never been called.
func (s *Store) Load() (position.Position, error) {
	var p position.Position
	row := s.db.QueryRow(`SELECT filename, offset_, gtid FROM checkpoint WHERE id = 1`)
	if err := row.Scan(&p.Filename, &p.Offset, &p.GTID); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return position.Position{}, ErrNoCheckpoint
		}
		return position.Position{}, fmt.Errorf("checkpoint: loading: %w", err)
	}
	return p, nil
}
