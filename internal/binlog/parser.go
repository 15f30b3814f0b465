package binlog

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mangoGood/mysql-replicate/internal/position"
)

// Entry is one parsed journal entry: the position of its enclosing binlog
// event, the parsed GTID (empty means absent), and the accumulated SQL
// statement.
type Entry struct {
	Pos position.Position
	SQL string
}

// Fingerprint is the replayer's dedup key: (filename, position, sql-hash).
type Fingerprint string

// Fingerprint computes e's dedup key.
func (e Entry) Fingerprint() Fingerprint {
	sum := sha256.Sum256([]byte(e.SQL))
	return Fingerprint(fmt.Sprintf("%s:%d:%s", e.Pos.Filename, e.Pos.Offset, hex.EncodeToString(sum[:8])))
}

// ParseEntries parses complete journal entries out of data and returns how
// many bytes were consumed by those complete entries (data may end with a
// partial entry still being written; the caller should re-read starting
// at bytesConsumed on the next scan rather than discard the remainder).
//
// Parsers MUST ignore empty lines and "--" comments, accumulate SQL across
// lines until the next [POSITION], and treat an empty [GTID] line as
// absent — this function implements exactly that contract.
func ParseEntries(filename string, data []byte) (entries []Entry, bytesConsumed int, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		haveHeader   bool
		curPos       position.Position
		curGTID      string
		sqlLines     []string
		consumed     int
		lastComplete int
	)

	flush := func() {
		if haveHeader && len(sqlLines) > 0 {
			pos := curPos
			pos.GTID = curGTID
			entries = append(entries, Entry{Pos: pos, SQL: strings.TrimSpace(strings.Join(sqlLines, "\n"))})
		}
		haveHeader = false
		curGTID = ""
		sqlLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		consumed += len(line) + 1 // +1 for the newline consumed by Scan

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			if haveHeader && len(sqlLines) > 0 && strings.HasSuffix(strings.TrimSpace(sqlLines[len(sqlLines)-1]), ";") {
				flush()
				lastComplete = consumed
			}
			continue
		case strings.HasPrefix(trimmed, "--"):
			continue
		case strings.HasPrefix(trimmed, "[POSITION]"):
			flush() // a new header always starts a new entry
			body := strings.TrimSpace(strings.TrimPrefix(trimmed, "[POSITION]"))
			p, perr := position.Parse(body)
			if perr != nil {
				return nil, lastComplete, fmt.Errorf("journal %s: %w", filename, perr)
			}
			curPos = p
			haveHeader = true
		case strings.HasPrefix(trimmed, "[GTID]"):
			curGTID = strings.TrimSpace(strings.TrimPrefix(trimmed, "[GTID]"))
		default:
			sqlLines = append(sqlLines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return entries, lastComplete, fmt.Errorf("journal %s: scanning: %w", filename, err)
	}
	return entries, lastComplete, nil
}
