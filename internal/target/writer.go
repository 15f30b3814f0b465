// Package target wraps the target MySQL connection used by the schema
// phase, the data phase, the direct-apply sink and the replayer. It is
// built on database/sql plus go-sql-driver/mysql, the exact pairing the
// materialize-mysql client in the pack uses for its own target writes.
package target

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/mangoGood/mysql-replicate/internal/config"
)

// Writer executes DDL and DML against the target database.
type Writer struct {
	db *stdsql.DB
}

// Open connects to the target and pings it, translating the common
// connection failure causes into operator-readable messages the same way
// the materialize-mysql client's preReqs does.
func Open(cfg config.DBConfig) (*Writer, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&multiStatements=true",
		cfg.Username, cfg.Password, cfg.Addr(), cfg.Database)
	db, err := stdsql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("target: opening connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("target: %w", translateConnError(cfg, err))
	}
	return &Writer{db: db}, nil
}

func translateConnError(cfg config.DBConfig, err error) error {
	var mysqlErr *mysql.MySQLError
	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.As(err, &mysqlErr):
		switch mysqlErr.Number {
		case 1045:
			return fmt.Errorf("incorrect username or password (%d): %s", mysqlErr.Number, mysqlErr.Message)
		case 1049, 1044:
			return fmt.Errorf("database %q cannot be accessed, it might not exist or you lack permission (%d): %s", cfg.Database, mysqlErr.Number, mysqlErr.Message)
		}
	case errors.As(err, &dnsErr):
		if dnsErr.IsNotFound {
			return fmt.Errorf("host %q cannot be found", cfg.Host)
		}
	case errors.As(err, &opErr):
		if opErr.Timeout() {
			return fmt.Errorf("connection to %q timed out (incorrect host or port?)", cfg.Addr())
		}
	}
	return err
}

func (w *Writer) Close() error { return w.db.Close() }

func (w *Writer) DB() *stdsql.DB { return w.db }

// DropTableIfExists issues DROP TABLE IF EXISTS for the schema phase's
// drop_tables option.
func (w *Writer) DropTableIfExists(table string) error {
	_, err := w.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS `%s`", table))
	if err != nil {
		return fmt.Errorf("target: dropping %q: %w", table, err)
	}
	return nil
}

// ApplyCreate issues a normalized CREATE TABLE statement. Errors here are
// schema-apply errors: the caller decides whether to halt the phase.
func (w *Writer) ApplyCreate(createSQL string) error {
	if _, err := w.db.Exec(createSQL); err != nil {
		return fmt.Errorf("target: applying CREATE TABLE: %w", err)
	}
	return nil
}

// ApplyDDL executes verbatim forwarded DDL (ALTER/DROP/RENAME/TRUNCATE)
// captured from the source's binlog.
func (w *Writer) ApplyDDL(sql string) error {
	if _, err := w.db.Exec(sql); err != nil {
		return fmt.Errorf("target: applying DDL: %w", err)
	}
	return nil
}

// InsertBatch renders and executes a single parameterized multi-row INSERT
// for one batch of rows, matching §4.4 step 3.
func (w *Writer) InsertBatch(table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = "`" + c + "`"
	}
	placeholderGroup := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	groups := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		groups[i] = placeholderGroup
		args = append(args, row...)
	}
	stmt := fmt.Sprintf("INSERT INTO `%s` (%s) VALUES %s", table, strings.Join(quoted, ","), strings.Join(groups, ","))
	if _, err := w.db.Exec(stmt, args...); err != nil {
		return fmt.Errorf("target: inserting batch into %q: %w", table, err)
	}
	return nil
}

// Exec runs an arbitrary rendered statement, used by the journal replayer
// for statements rendered as literal SQL and by the direct-apply sink for
// statements without bind arguments (forwarded DDL).
func (w *Writer) Exec(sql string) error {
	if _, err := w.db.Exec(sql); err != nil {
		return fmt.Errorf("target: executing statement: %w", err)
	}
	return nil
}

// ExecParams runs a parameterized statement, used by the direct-apply
// sink for row events rendered with bind arguments rather than literals.
func (w *Writer) ExecParams(sql string, args ...any) error {
	if _, err := w.db.Exec(sql, args...); err != nil {
		return fmt.Errorf("target: executing statement: %w", err)
	}
	return nil
}
