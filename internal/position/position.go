// Package position implements the single unified binlog position type used
// throughout the pipeline. The source system this was ported from carried
// two independent BinlogPosition classes, one per sink strategy; this
// package is the one type both the checkpoint store and the binlog engine
// share.
package position

import (
	"fmt"
	"strconv"
	"strings"
)

// Position identifies a location in the source's binary log, optionally
// augmented with a GTID.
type Position struct {
	Filename string
	Offset   uint32
	GTID     string
}

// Zero is the position before any binlog file exists.
var Zero = Position{}

// String renders "filename:offset", matching the journal's [POSITION] line
// body (the GTID is rendered separately on its own [GTID] line).
func (p Position) String() string {
	return fmt.Sprintf("%s:%d", p.Filename, p.Offset)
}

// Parse reverses String. It does not populate GTID; callers combine it with
// a separately-parsed GTID value.
func Parse(s string) (Position, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return Position{}, fmt.Errorf("malformed position %q: missing ':'", s)
	}
	off, err := strconv.ParseUint(s[idx+1:], 10, 32)
	if err != nil {
		return Position{}, fmt.Errorf("malformed position %q: %w", s, err)
	}
	return Position{Filename: s[:idx], Offset: uint32(off)}, nil
}

// Equal implements the corrected semantics for what the source's
// BinlogPosition.equals got wrong via an operator-precedence bug: two
// positions are equal iff both filename and offset match, full stop. GTID
// is not part of equality because two positions with and without a GTID
// attached, but the same filename/offset, refer to the same place.
func (p Position) Equal(o Position) bool {
	return p.Filename == o.Filename && p.Offset == o.Offset
}

// gtidRange holds a parsed "uuid:lo-hi" or "uuid:txn" GTID value.
type gtidRange struct {
	uuid string
	lo   uint64
	hi   uint64
}

func parseGTID(s string) (gtidRange, bool) {
	if s == "" {
		return gtidRange{}, false
	}
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return gtidRange{}, false
	}
	uuid, rest := s[:idx], s[idx+1:]
	if dash := strings.IndexByte(rest, '-'); dash >= 0 {
		lo, err1 := strconv.ParseUint(rest[:dash], 10, 64)
		hi, err2 := strconv.ParseUint(rest[dash+1:], 10, 64)
		if err1 != nil || err2 != nil {
			return gtidRange{}, false
		}
		return gtidRange{uuid: uuid, lo: lo, hi: hi}, true
	}
	txn, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return gtidRange{}, false
	}
	return gtidRange{uuid: uuid, lo: txn, hi: txn}, true
}

// Compare implements the total order from the data model: if both sides
// carry GTIDs with the same uuid, the comparison is by the upper bound of
// the (possibly single-value) range. Otherwise, or when GTIDs are absent or
// uuids differ, comparison falls back to (filename, offset) — lexicographic
// on filename, then numeric on offset.
func Compare(a, b Position) int {
	ag, aok := parseGTID(a.GTID)
	bg, bok := parseGTID(b.GTID)
	if aok && bok && ag.uuid == bg.uuid {
		switch {
		case ag.hi < bg.hi:
			return -1
		case ag.hi > bg.hi:
			return 1
		default:
			return 0
		}
	}
	if a.Filename != b.Filename {
		if a.Filename < b.Filename {
			return -1
		}
		return 1
	}
	switch {
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	default:
		return 0
	}
}

// After reports whether p is strictly after checkpoint in the total order,
// the exact predicate the replayer applies before executing a journal
// entry.
func After(p, checkpoint Position) bool {
	return Compare(p, checkpoint) > 0
}
