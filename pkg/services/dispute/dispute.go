package dispute

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/veritas-l2/hextrie/pkg/config"
	"github.com/veritas-l2/hextrie/pkg/io"
	"github.com/veritas-l2/hextrie/pkg/storage"
	"github.com/veritas-l2/hextrie/pkg/trie"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Spool subdirectories for processed claim files.
const (
	doneSubdir    = "done"
	invalidSubdir = "invalid"
)

// Module watches a spool directory for claim files, verifies each claim and
// files it by verdict. Claims are processed one at a time, strictly in the
// order the directory listing gives them.
type Module struct {
	cfg config.DisputeConfiguration
	log *zap.Logger
	ps  storage.Store

	started *atomic.Bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewModule returns a new dispute module. Verified claims are archived in
// the given store keyed by claim ID.
func NewModule(cfg config.DisputeConfiguration, log *zap.Logger, ps storage.Store) (*Module, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Module{
		cfg:     cfg,
		log:     log,
		ps:      ps,
		started: atomic.NewBool(false),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Name returns service name.
func (m *Module) Name() string {
	return "dispute"
}

// Start runs the spool watcher in a separate goroutine. The module only
// starts once, subsequent calls to Start are no-op.
func (m *Module) Start() error {
	if !m.started.CAS(false, true) {
		return nil
	}
	for _, dir := range []string{m.doneDir(), m.invalidDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			m.started.Store(false)
			return fmt.Errorf("can't create spool directory: %w", err)
		}
	}
	m.log.Info("starting dispute service",
		zap.String("spool", m.cfg.SpoolPath),
		zap.Duration("interval", m.cfg.PollInterval))
	go m.mainLoop()
	return nil
}

// Shutdown stops the spool watcher and waits for the claim in flight to be
// finished. It can only be called once, subsequent calls are no-op. The
// stopped instance can not be started again, use a new instance if needed.
func (m *Module) Shutdown() {
	if !m.started.CAS(true, false) {
		return
	}
	m.log.Info("stopping dispute service")
	close(m.stopCh)
	<-m.done
	_ = m.log.Sync()
}

func (m *Module) mainLoop() {
	defer close(m.done)
	tick := time.NewTicker(m.cfg.PollInterval)
	defer tick.Stop()
	for {
		m.scanSpool()
		select {
		case <-m.stopCh:
			return
		case <-tick.C:
		}
	}
}

// scanSpool processes every claim file currently waiting in the spool
// directory.
func (m *Module) scanSpool() {
	files, err := filepath.Glob(filepath.Join(m.cfg.SpoolPath, "*.claim"))
	if err != nil {
		m.log.Error("can't scan spool directory", zap.Error(err))
		return
	}
	updateSpoolBacklogMetric(len(files))
	for _, path := range files {
		select {
		case <-m.stopCh:
			return
		default:
		}
		m.processClaimFile(path)
	}
}

func (m *Module) processClaimFile(path string) {
	log := m.log.With(
		zap.Stringer("session", uuid.New()),
		zap.String("file", filepath.Base(path)))

	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("can't read claim file", zap.Error(err))
		updateUnreadableClaimMetric()
		m.moveClaimFile(log, path, m.invalidDir())
		return
	}
	c, err := trie.LoadClaim(io.NewBinReaderFromBuf(data))
	if err != nil {
		log.Error("can't decode claim file", zap.Error(err))
		updateUnreadableClaimMetric()
		m.moveClaimFile(log, path, m.invalidDir())
		return
	}
	log = log.With(zap.String("claim", c.ID().StringLE()))

	start := time.Now()
	verdict, err := trie.VerifyClaim(c, nil)
	took := time.Since(start)
	updateVerifiedClaimMetrics(verdict.String(), len(data), took)

	fields := []zap.Field{
		zap.Stringer("verdict", verdict),
		zap.String("preRoot", c.PreRoot.StringLE()),
		zap.String("postRoot", c.PostRoot.StringLE()),
		zap.Int("ops", len(c.Ops)),
		zap.Int("entries", len(c.Bundle.Entries)),
		zap.Int("size", len(data)),
		zap.Duration("took", took),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	log.Info("claim verified", fields...)

	if verdict == trie.VerdictInvalid {
		m.moveClaimFile(log, path, m.invalidDir())
		return
	}
	m.archiveClaim(log, c, data)
	m.moveClaimFile(log, path, m.doneDir())
}

// archiveClaim keeps the raw encoding of a definitively judged claim in the
// store, content-addressed by claim ID.
func (m *Module) archiveClaim(log *zap.Logger, c *trie.Claim, data []byte) {
	key := storage.AppendPrefix(storage.DataClaim, c.ID().BytesBE())
	if err := m.ps.Put(key, data); err != nil {
		log.Error("can't archive claim", zap.Error(err))
	}
}

func (m *Module) moveClaimFile(log *zap.Logger, path, dir string) {
	if err := os.Rename(path, filepath.Join(dir, filepath.Base(path))); err != nil {
		log.Error("can't move claim file", zap.Error(err))
	}
}

func (m *Module) doneDir() string {
	return filepath.Join(m.cfg.SpoolPath, doneSubdir)
}

func (m *Module) invalidDir() string {
	return filepath.Join(m.cfg.SpoolPath, invalidSubdir)
}
