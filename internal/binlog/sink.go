package binlog

import (
	"github.com/sirupsen/logrus"

	"github.com/mangoGood/mysql-replicate/internal/model"
)

// Sink is the one capability both sink strategies implement, replacing
// the source's two independent DmlEventHandler classes per the design
// notes: the binlog engine depends on this interface, never on a concrete
// sink.
type Sink interface {
	Accept(ev *model.Event) error
	Close() error
}

// Executor is the write surface DirectSink and Replayer need from
// *target.Writer: a plain statement and a parameterized one. Depending on
// this instead of the concrete Writer is what lets both be tested with a
// fake or sqlite-backed executor instead of a live MySQL connection,
// mirroring the Sink interface just above.
type Executor interface {
	Exec(sql string) error
	ExecParams(sql string, args ...any) error
}

// DirectSink applies each decoded event straight to the target. Apply
// failures are logged and the event is dropped; the tail is never blocked
// by a target error (§4.5 failure semantics).
type DirectSink struct {
	tgt Executor
	log *logrus.Entry
}

func NewDirectSink(tgt Executor, log *logrus.Entry) *DirectSink {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &DirectSink{tgt: tgt, log: log}
}

func (s *DirectSink) Accept(ev *model.Event) error {
	stmts, err := RenderParameterized(ev)
	if err != nil {
		s.log.WithError(err).Warn("rendering event failed, dropping")
		return nil
	}
	for _, st := range stmts {
		var applyErr error
		if len(st.Args) > 0 {
			applyErr = s.tgt.ExecParams(st.SQL, st.Args...)
		} else {
			applyErr = s.tgt.Exec(st.SQL)
		}
		if applyErr != nil {
			s.log.WithError(applyErr).WithFields(logrus.Fields{
				"kind": ev.Kind.String(), "database": ev.Database, "table": ev.Table,
			}).Warn("apply failed, dropping event and continuing tail")
		}
	}
	return nil
}

func (s *DirectSink) Close() error { return nil }
