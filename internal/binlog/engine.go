package binlog

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/go-mysql-org/go-mysql/client"
	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/sirupsen/logrus"

	"github.com/mangoGood/mysql-replicate/internal/config"
	"github.com/mangoGood/mysql-replicate/internal/model"
	"github.com/mangoGood/mysql-replicate/internal/position"
)

// State is one of the binlog engine's four states from §4.5.
type State int32

const (
	StateStopped State = iota
	StateConnecting
	StateStreaming
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateConnecting:
		return "CONNECTING"
	case StateStreaming:
		return "STREAMING"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Engine is the client+decoder+filter+sink pipeline: it tails the source
// binlog from a given start position, decodes and filters events, and
// hands survivors to whichever Sink was configured.
type Engine struct {
	cfg      config.DBConfig
	database string
	sink     Sink
	filter   *Filter
	log      *logrus.Entry

	state   atomic.Int32
	syncer  *replication.BinlogSyncer
	decoder *Decoder
}

// New builds an Engine. serverID must be unique among every replica
// currently attached to the source, per §4.5's "server id uniquely
// assigned per run".
func New(cfg config.DBConfig, database string, serverID uint32, sink Sink, filter *Filter, log *logrus.Entry) (*Engine, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	metaConn, err := client.Connect(cfg.Addr(), cfg.Username, cfg.Password, database)
	if err != nil {
		return nil, fmt.Errorf("binlog: connecting metadata client: %w", err)
	}
	decoder := NewDecoder(metaConn, database, log)

	syncerCfg := replication.BinlogSyncerConfig{
		ServerID: serverID,
		Flavor:   "mysql",
		Host:     cfg.Host,
		Port:     uint16(cfg.Port),
		User:     cfg.Username,
		Password: cfg.Password,
	}

	e := &Engine{
		cfg: cfg, database: database, sink: sink, filter: filter, log: log,
		syncer: replication.NewBinlogSyncer(syncerCfg), decoder: decoder,
	}
	e.state.Store(int32(StateStopped))
	return e, nil
}

func (e *Engine) State() State { return State(e.state.Load()) }

// Start begins tailing from pos. It is idempotent while STREAMING (ignored
// with a warning) and reconnection after DISCONNECTED is the caller's
// responsibility, per §4.5.
func (e *Engine) Start(ctx context.Context, pos position.Position) error {
	if e.State() == StateStreaming {
		e.log.Warn("start() called while already STREAMING, ignoring")
		return nil
	}
	e.state.Store(int32(StateConnecting))
	e.decoder.SetFilename(pos.Filename)

	streamer, err := e.syncer.StartSync(mysql.Position{Name: pos.Filename, Pos: pos.Offset})
	if err != nil {
		e.state.Store(int32(StateStopped))
		return fmt.Errorf("binlog: starting sync at %s: %w", pos, err)
	}

	e.state.Store(int32(StateStreaming))
	for {
		if e.State() == StateStopped {
			return nil
		}
		ev, err := streamer.GetEvent(ctx)
		if err != nil {
			if ctx.Err() != nil || e.State() == StateStopped {
				e.state.Store(int32(StateStopped))
				return nil
			}
			e.log.WithError(err).Warn("communication failure, transitioning to DISCONNECTED")
			e.state.Store(int32(StateDisconnected))
			return fmt.Errorf("binlog: stream error: %w", err)
		}
		e.handleEvent(ev)
	}
}

func (e *Engine) handleEvent(ev *replication.BinlogEvent) {
	decoded, err := e.decoder.Decode(ev)
	if err != nil {
		e.log.WithError(err).Warn("deserialization failure, skipping event")
		return
	}
	if decoded == nil {
		return
	}
	if !e.passesFilter(decoded) {
		return
	}
	if err := e.sink.Accept(decoded); err != nil {
		e.log.WithError(err).WithField("kind", decoded.Kind.String()).Error("sink rejected event")
	}
}

func (e *Engine) passesFilter(ev *model.Event) bool {
	if ev.Kind == model.EventDDL {
		return e.filter.ShouldProcessDDL(ev.Database)
	}
	return e.filter.ShouldProcessTable(ev.Database, ev.Table)
}

// Stop sets the atomic running flag observed by the event loop; idempotent
// in STOPPED.
func (e *Engine) Stop() {
	if e.State() == StateStopped {
		return
	}
	e.state.Store(int32(StateStopped))
	e.syncer.Close()
}

func (e *Engine) Close() error {
	e.Stop()
	return e.sink.Close()
}
