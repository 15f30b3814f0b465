package binlog

import "strings"

// systemDatabases are always dropped, matching the source's hard-coded
// exclusion of MySQL's own catalog and performance schemas.
var systemDatabases = map[string]bool{
	"mysql":              true,
	"information_schema": true,
	"performance_schema": true,
	"sys":                true,
}

// Filter implements the configurable shouldProcess(db, table) predicate:
// empty include-sets pass everything, otherwise membership is required.
// A table entry may be given as bare "table" or qualified "db.table".
type Filter struct {
	databases map[string]bool
	tables    map[string]bool
}

func NewFilter(databases, tables []string) *Filter {
	f := &Filter{databases: map[string]bool{}, tables: map[string]bool{}}
	for _, d := range databases {
		f.databases[d] = true
	}
	for _, t := range tables {
		f.tables[t] = true
	}
	return f
}

func (f *Filter) databaseIncluded(db string) bool {
	if systemDatabases[strings.ToLower(db)] {
		return false
	}
	if len(f.databases) == 0 {
		return true
	}
	return f.databases[db]
}

// ShouldProcessTable reports whether a row event for (db, table) should be
// decoded and passed downstream.
func (f *Filter) ShouldProcessTable(db, table string) bool {
	if !f.databaseIncluded(db) {
		return false
	}
	if len(f.tables) == 0 {
		return true
	}
	return f.tables[table] || f.tables[db+"."+table]
}

// ShouldProcessDDL reports whether a DDL/query event for db should pass.
// Transaction-control statements never reach this predicate; the decoder
// drops BEGIN/COMMIT/ROLLBACK before filtering (see decoder.go).
func (f *Filter) ShouldProcessDDL(db string) bool {
	return f.databaseIncluded(db)
}
