package binlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mangoGood/mysql-replicate/internal/model"
)

// journalRollover is the fixed number of statements per file from §4.5.
const journalRollover = 10000

// JournalSink appends each decoded event's rendered statements to a
// rolling file journal for asynchronous replay, decoupling the tail from
// target availability entirely (§4.5's "apply is decoupled" failure
// semantics: the tail never fails because of a target error under this
// sink).
type JournalSink struct {
	dir       string
	baseStamp string

	mu      sync.Mutex
	seq     int
	written int
	file    *os.File
}

func NewJournalSink(dir string) (*JournalSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: creating directory %q: %w", dir, err)
	}
	s := &JournalSink{dir: dir, baseStamp: time.Now().UTC().Format("20060102_150405"), seq: 1}
	if err := s.openCurrent(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JournalSink) filename(seq int) string {
	return filepath.Join(s.dir, fmt.Sprintf("binlog_sql_%s_%04d.sql", s.baseStamp, seq))
}

func (s *JournalSink) openCurrent() error {
	f, err := os.OpenFile(s.filename(s.seq), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("journal: opening %q: %w", s.filename(s.seq), err)
	}
	s.file = f
	s.written = 0
	return nil
}

func (s *JournalSink) rollover() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("journal: closing %q: %w", s.filename(s.seq), err)
	}
	s.seq++
	return s.openCurrent()
}

// Accept renders ev and appends one journal entry per rendered statement,
// each carrying ev's position (the position of its enclosing binlog
// event), flushing after every write for durability-per-statement.
func (s *JournalSink) Accept(ev *model.Event) error {
	stmts, err := RenderLiteral(ev)
	if err != nil {
		return fmt.Errorf("journal: rendering event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range stmts {
		entry := fmt.Sprintf("[POSITION] %s\n[GTID] %s\n%s\n\n", ev.Pos.String(), ev.Pos.GTID, stmt)
		if _, err := s.file.WriteString(entry); err != nil {
			return fmt.Errorf("journal: writing entry: %w", err)
		}
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("journal: flushing: %w", err)
		}
		s.written++
		if s.written >= journalRollover {
			if err := s.rollover(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *JournalSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
