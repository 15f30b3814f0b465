// Package model holds the value types shared by every stage of the
// replication pipeline: table descriptors, column values and the tagged
// binlog event variant.
package model

import (
	"fmt"

	"github.com/mangoGood/mysql-replicate/internal/position"
)

// ColumnDescriptor describes one column of a source table as reported by
// information_schema.
type ColumnDescriptor struct {
	Name          string
	DataType      string
	Nullable      bool
	Default       *string
	AutoIncrement bool
}

// TableDescriptor is the immutable description of a source table produced
// by the metadata reader and consumed by the snapshot engine.
type TableDescriptor struct {
	Name          string
	Columns       []ColumnDescriptor
	PrimaryKey    string // empty when absent or composite
	RowCount      int64
	CreateSQL     string // normalized, database-neutral CREATE TABLE
	compositePK   bool
}

// HasResumableKey reports whether the table has the single-column primary
// key required for keyset-paginated resume.
func (t TableDescriptor) HasResumableKey() bool {
	return t.PrimaryKey != "" && !t.compositePK
}

// WithCompositeKey marks the descriptor as having a composite (or absent)
// primary key, disabling resumable snapshot reads for it.
func (t TableDescriptor) WithCompositeKey() TableDescriptor {
	t.compositePK = true
	t.PrimaryKey = ""
	return t
}

func (t TableDescriptor) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// EventKind tags the variant carried by Event.
type EventKind int

const (
	EventDDL EventKind = iota
	EventInsert
	EventUpdate
	EventDelete
)

func (k EventKind) String() string {
	switch k {
	case EventDDL:
		return "DDL"
	case EventInsert:
		return "INSERT"
	case EventUpdate:
		return "UPDATE"
	case EventDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Row is one changed row, column order preserved (map[string]any would
// lose it, and rendering — both parameterized and literal — must be
// deterministic and match the table's declared column order). Before is
// empty for Insert, After is empty for Delete; both are populated for
// Update, over the same Columns slice.
type Row struct {
	Columns []string
	Before  []any
	After   []any
}

// Get returns the named column's value from After if present, else
// Before, and whether it was found.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			if len(r.After) > i {
				return r.After[i], true
			}
			if len(r.Before) > i {
				return r.Before[i], true
			}
		}
	}
	return nil, false
}

// Event is the single tagged variant produced by the decoder and consumed
// by every sink. It unifies what the source system modeled as two
// independent handler hierarchies (direct-apply and file-journal).
type Event struct {
	Kind     EventKind
	Database string
	Table    string
	SQL      string // populated only for EventDDL
	Rows     []Row  // populated for Insert/Update/Delete
	Pos      position.Position
}
