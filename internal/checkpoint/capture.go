package checkpoint

import (
	"fmt"

	"github.com/go-mysql-org/go-mysql/client"

	"github.com/mangoGood/mysql-replicate/internal/position"
)

// CaptureSourcePosition records the source's current binlog file/position
// and executed GTID set with the same SHOW MASTER STATUS + SELECT
// @@global.gtid_executed sequence the original checkpoint recorder used,
// executed before any snapshot row is read so the checkpoint the replayer
// eventually catches up to is a safe upper bound (see the checkpoint-race
// design note: capturing after the first read could let tail events during
// the snapshot go unrecorded).
func CaptureSourcePosition(conn *client.Conn) (position.Position, error) {
	res, err := conn.Execute("SHOW MASTER STATUS")
	if err != nil {
		return position.Position{}, fmt.Errorf("checkpoint: SHOW MASTER STATUS: %w", err)
	}
	defer res.Close()
	if res.RowNumber() == 0 {
		return position.Position{}, fmt.Errorf("checkpoint: SHOW MASTER STATUS returned no rows (is binary logging enabled on the source?)")
	}
	filename, err := res.GetStringByName(0, "File")
	if err != nil {
		return position.Position{}, fmt.Errorf("checkpoint: reading File column: %w", err)
	}
	pos, err := res.GetUintByName(0, "Position")
	if err != nil {
		return position.Position{}, fmt.Errorf("checkpoint: reading Position column: %w", err)
	}

	gtidRes, err := conn.Execute("SELECT @@global.gtid_executed")
	if err != nil {
		return position.Position{}, fmt.Errorf("checkpoint: SELECT @@global.gtid_executed: %w", err)
	}
	defer gtidRes.Close()
	var gtid string
	if gtidRes.RowNumber() > 0 {
		gtid, _ = gtidRes.GetStringByName(0, "@@global.gtid_executed")
	}

	return position.Position{Filename: filename, Offset: uint32(pos), GTID: gtid}, nil
}
