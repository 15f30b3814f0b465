package mysqlsrc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-mysql-org/go-mysql/client"
)

// PrerequisiteError collects every failed prerequisite so an operator sees
// all of them at once instead of fixing them one at a time, the same
// pattern the source connector's SetupPrerequisites chain uses.
type PrerequisiteError struct {
	Failures []error
}

func (e *PrerequisiteError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("prerequisites not met: %s", strings.Join(msgs, "; "))
}

func (e *PrerequisiteError) add(err error) {
	if err != nil {
		e.Failures = append(e.Failures, err)
	}
}

// CheckPrerequisites gates the binlog engine's startup on the source
// being configured for row-based replication and the connecting user
// holding replication privileges (binlog retention is read but not
// enforced, see checkBinlogExpiry). This corresponds to
// the Connectivity/Configuration error category: a failure here is fatal
// at startup, not something the tailer should discover mid-stream.
func CheckPrerequisites(conn *client.Conn) error {
	perr := &PrerequisiteError{}
	perr.add(checkBinlogFormat(conn))
	perr.add(checkBinlogExpiry(conn))
	perr.add(checkReplicationPrivilege(conn))
	if len(perr.Failures) > 0 {
		return perr
	}
	return nil
}

func systemVariable(conn *client.Conn, name string) (string, error) {
	res, err := conn.Execute(fmt.Sprintf("SHOW VARIABLES LIKE '%s'", name))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	defer res.Close()
	if res.RowNumber() == 0 {
		return "", fmt.Errorf("system variable %s is not set on the source", name)
	}
	return res.GetStringByName(0, "Value")
}

func checkBinlogFormat(conn *client.Conn) error {
	v, err := systemVariable(conn, "binlog_format")
	if err != nil {
		return err
	}
	if !strings.EqualFold(v, "ROW") {
		return fmt.Errorf("binlog_format must be ROW, got %q (statement-based binlog format is not supported)", v)
	}
	return nil
}

// checkBinlogExpiry never fails the gate and logs nothing: it reads
// binlog_expire_logs_seconds and expire_logs_days but accepts any value,
// so a short retention window is not reported.
func checkBinlogExpiry(conn *client.Conn) error {
	for _, name := range []string{"binlog_expire_logs_seconds", "expire_logs_days"} {
		v, err := systemVariable(conn, name)
		if err != nil {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return nil
		}
	}
	return nil
}

func checkReplicationPrivilege(conn *client.Conn) error {
	res, err := conn.Execute("SHOW GRANTS")
	if err != nil {
		return fmt.Errorf("checking replication privileges: %w", err)
	}
	defer res.Close()
	for i := 0; i < res.RowNumber(); i++ {
		grant, err := res.GetString(i, 0)
		if err != nil {
			continue
		}
		upper := strings.ToUpper(grant)
		if strings.Contains(upper, "ALL PRIVILEGES") ||
			(strings.Contains(upper, "REPLICATION CLIENT") && strings.Contains(upper, "REPLICATION SLAVE")) {
			return nil
		}
	}
	return fmt.Errorf("connecting user lacks REPLICATION CLIENT and REPLICATION SLAVE privileges")
}
