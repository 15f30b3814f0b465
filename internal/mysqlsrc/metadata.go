// Package mysqlsrc wraps the source MySQL connection: metadata discovery
// (C1) and the startup prerequisite checks the binlog engine depends on.
// It is built on the same native-protocol client the binlog syncer itself
// uses (go-mysql-org/go-mysql/client), rather than database/sql, so a
// single dependency covers both the metadata queries and the replication
// stream.
package mysqlsrc

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-mysql-org/go-mysql/client"

	"github.com/mangoGood/mysql-replicate/internal/model"
)

// Reader is the metadata reader (C1): it enumerates tables and reads their
// column list, primary key, row count and CREATE DDL.
type Reader struct {
	conn     *client.Conn
	database string
}

func NewReader(conn *client.Conn, database string) *Reader {
	return &Reader{conn: conn, database: database}
}

// ListTables returns every base table name in the configured database, in
// SHOW TABLES order (discovery order, which the snapshot engine copies
// sequentially).
func (r *Reader) ListTables() ([]string, error) {
	res, err := r.conn.Execute(fmt.Sprintf("SHOW FULL TABLES FROM `%s` WHERE Table_type = 'BASE TABLE'", r.database))
	if err != nil {
		return nil, fmt.Errorf("mysqlsrc: SHOW TABLES: %w", err)
	}
	defer res.Close()
	names := make([]string, 0, res.RowNumber())
	for i := 0; i < res.RowNumber(); i++ {
		name, err := res.GetString(i, 0)
		if err != nil {
			return nil, fmt.Errorf("mysqlsrc: reading table name: %w", err)
		}
		names = append(names, name)
	}
	return names, nil
}

// Describe reads the full table descriptor for one table: columns, primary
// key, row count and normalized CREATE statement.
func (r *Reader) Describe(table string) (model.TableDescriptor, error) {
	cols, pk, composite, err := r.columns(table)
	if err != nil {
		return model.TableDescriptor{}, err
	}
	count, err := r.rowCount(table)
	if err != nil {
		return model.TableDescriptor{}, err
	}
	createSQL, err := r.createStatement(table)
	if err != nil {
		return model.TableDescriptor{}, err
	}

	td := model.TableDescriptor{
		Name:       table,
		Columns:    cols,
		PrimaryKey: pk,
		RowCount:   count,
		CreateSQL:  NormalizeCreateStatement(createSQL),
	}
	if composite {
		td = td.WithCompositeKey()
	}
	return td, nil
}

// columns reads ordered column metadata plus the primary key column, via
// information_schema the same way the source connector's discovery.go
// does (getColumns/getPrimaryKeys), rather than parsing DESCRIBE output.
func (r *Reader) columns(table string) ([]model.ColumnDescriptor, string, bool, error) {
	res, err := r.conn.Execute(
		"SELECT column_name, data_type, is_nullable, column_default, extra "+
			"FROM information_schema.columns WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position",
		r.database, table)
	if err != nil {
		return nil, "", false, fmt.Errorf("mysqlsrc: reading columns of %q: %w", table, err)
	}
	defer res.Close()

	cols := make([]model.ColumnDescriptor, 0, res.RowNumber())
	for i := 0; i < res.RowNumber(); i++ {
		name, _ := res.GetString(i, 0)
		dataType, _ := res.GetString(i, 1)
		nullable, _ := res.GetString(i, 2)
		extra, _ := res.GetString(i, 4)

		var def *string
		if v, err := res.GetStringByName(i, "column_default"); err == nil {
			if isNull, err := res.IsNull(i, 3); err == nil && !isNull {
				d := v
				def = &d
			}
		}
		cols = append(cols, model.ColumnDescriptor{
			Name:          name,
			DataType:      dataType,
			Nullable:      strings.EqualFold(nullable, "YES"),
			Default:       def,
			AutoIncrement: strings.Contains(strings.ToLower(extra), "auto_increment"),
		})
	}

	pkCols, err := r.primaryKeyColumns(table)
	if err != nil {
		return nil, "", false, err
	}
	switch len(pkCols) {
	case 0:
		return cols, "", false, nil
	case 1:
		return cols, pkCols[0], false, nil
	default:
		return cols, "", true, nil
	}
}

func (r *Reader) primaryKeyColumns(table string) ([]string, error) {
	res, err := r.conn.Execute(
		"SELECT column_name FROM information_schema.key_column_usage "+
			"WHERE table_schema = ? AND table_name = ? AND constraint_name = 'PRIMARY' ORDER BY ordinal_position",
		r.database, table)
	if err != nil {
		return nil, fmt.Errorf("mysqlsrc: reading primary key of %q: %w", table, err)
	}
	defer res.Close()
	out := make([]string, 0, res.RowNumber())
	for i := 0; i < res.RowNumber(); i++ {
		name, _ := res.GetString(i, 0)
		out = append(out, name)
	}
	return out, nil
}

func (r *Reader) rowCount(table string) (int64, error) {
	res, err := r.conn.Execute(fmt.Sprintf("SELECT COUNT(*) FROM `%s`.`%s`", r.database, table))
	if err != nil {
		return 0, fmt.Errorf("mysqlsrc: counting rows of %q: %w", table, err)
	}
	defer res.Close()
	n, err := res.GetIntByName(0, "COUNT(*)")
	if err != nil {
		return 0, fmt.Errorf("mysqlsrc: reading row count of %q: %w", table, err)
	}
	return n, nil
}

func (r *Reader) createStatement(table string) (string, error) {
	res, err := r.conn.Execute(fmt.Sprintf("SHOW CREATE TABLE `%s`.`%s`", r.database, table))
	if err != nil {
		return "", fmt.Errorf("mysqlsrc: SHOW CREATE TABLE %q: %w", table, err)
	}
	defer res.Close()
	stmt, err := res.GetStringByName(0, "Create Table")
	if err != nil {
		return "", fmt.Errorf("mysqlsrc: reading CREATE statement of %q: %w", table, err)
	}
	return stmt, nil
}

// qualifiedIdentRegexp matches a back-tick-qualified `db`.`table` prefix
// immediately after CREATE TABLE, so it can be stripped without disturbing
// dots that appear inside other identifiers or default values.
var qualifiedIdentRegexp = regexp.MustCompile("(?i)(CREATE TABLE\\s+)`[^`]+`\\.(`[^`]+`)")

// autoIncrementRegexp matches a numeric AUTO_INCREMENT=<n> table option; it
// only fires outside of back-ticks because it requires the literal
// "AUTO_INCREMENT=" token followed by digits, which never appears inside a
// quoted identifier.
var autoIncrementRegexp = regexp.MustCompile(`(?i)AUTO_INCREMENT=\d+`)

// NormalizeCreateStatement makes a CREATE TABLE statement database-neutral
// and reproducible: the schema qualifier is stripped so it can be applied
// against any target database, and any AUTO_INCREMENT start value is reset
// to 1 so a resumed or re-run migration doesn't inherit the source's
// current counter.
func NormalizeCreateStatement(createSQL string) string {
	out := qualifiedIdentRegexp.ReplaceAllString(createSQL, "$1$2")
	out = autoIncrementRegexp.ReplaceAllString(out, "AUTO_INCREMENT=1")
	return out
}
