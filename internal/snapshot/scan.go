package snapshot

import (
	"fmt"

	"github.com/go-mysql-org/go-mysql/client"

	"github.com/mangoGood/mysql-replicate/internal/model"
)

// fetchBatch issues one page of the keyset-paginated seek query when a
// resumable primary key exists, or a single unbounded read otherwise (in
// which case hasMore is always false: the whole table came back in one
// shot and resume is disabled per §9 "no composite-PK resume").
func fetchBatch(conn *client.Conn, database string, t model.TableDescriptor, lastPK *string, batchSize int) (rows [][]any, newLastPK *string, hasMore bool, err error) {
	colList := "`" + joinBackticked(t.ColumnNames()) + "`"

	if !t.HasResumableKey() {
		q := fmt.Sprintf("SELECT %s FROM `%s`.`%s`", colList, database, t.Name)
		res, execErr := conn.Execute(q)
		if execErr != nil {
			return nil, nil, false, fmt.Errorf("scanning %q: %w", t.Name, execErr)
		}
		defer res.Close()
		rows, err = extractRows(res, len(t.Columns))
		return rows, nil, false, err
	}

	var q string
	var args []any
	if lastPK != nil {
		q = fmt.Sprintf("SELECT %s FROM `%s`.`%s` WHERE `%s` > ? ORDER BY `%s` LIMIT %d",
			colList, database, t.Name, t.PrimaryKey, t.PrimaryKey, batchSize)
		args = []any{*lastPK}
	} else {
		q = fmt.Sprintf("SELECT %s FROM `%s`.`%s` ORDER BY `%s` LIMIT %d",
			colList, database, t.Name, t.PrimaryKey, batchSize)
	}

	result, execErr := conn.Execute(q, args...)
	if execErr != nil {
		return nil, nil, false, fmt.Errorf("scanning %q: %w", t.Name, execErr)
	}
	defer result.Close()

	rows, err = extractRows(result, len(t.Columns))
	if err != nil {
		return nil, nil, false, err
	}
	if len(rows) == 0 {
		return rows, lastPK, false, nil
	}

	pkIdx := pkColumnIndex(t)
	last := fmt.Sprintf("%v", rows[len(rows)-1][pkIdx])
	hasMore = len(rows) == batchSize
	return rows, &last, hasMore, nil
}

func pkColumnIndex(t model.TableDescriptor) int {
	for i, c := range t.Columns {
		if c.Name == t.PrimaryKey {
			return i
		}
	}
	return 0
}

// extractRows pulls every row of res into [][]any, one slice per row in
// column order, using the client library's generic FieldValue accessor so
// the same code handles every MySQL scalar type in the data model (ints,
// floats, decimals rendered as strings, text, blobs, temporal values).
func extractRows(res interface {
	RowNumber() int
	GetValue(row, col int) (interface{}, error)
}, numCols int) ([][]any, error) {
	rows := make([][]any, 0, res.RowNumber())
	for i := 0; i < res.RowNumber(); i++ {
		row := make([]any, numCols)
		for j := 0; j < numCols; j++ {
			v, err := res.GetValue(i, j)
			if err != nil {
				return nil, fmt.Errorf("reading row %d column %d: %w", i, j, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
