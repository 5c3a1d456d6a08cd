// Package manager is the operation layer behind the CLI: every operator
// action (mount, format, persist, share, reconnect) runs here as one
// synchronous unit of work over a fresh inventory snapshot.
//
// There is no in-process locking. Each operation re-reads live system state
// (inventory, mount table, live mounts) immediately before acting, so a
// concurrent request either observes the first one's effect or fails on a
// precondition check.
package manager

import (
	"os"
	"regexp"

	"go.uber.org/zap"

	"github.com/mlara/diskmanager/internal/classify"
	"github.com/mlara/diskmanager/internal/config"
	"github.com/mlara/diskmanager/internal/diskprep"
	"github.com/mlara/diskmanager/internal/execx"
	"github.com/mlara/diskmanager/internal/fstab"
	"github.com/mlara/diskmanager/internal/history"
	"github.com/mlara/diskmanager/internal/inventory"
	"github.com/mlara/diskmanager/internal/mounter"
	"github.com/mlara/diskmanager/internal/samba"
	"github.com/mlara/diskmanager/internal/txfile"
)

var (
	deviceIDRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	uuidRe     = regexp.MustCompile(`^[A-Fa-f0-9-]+$`)
)

// seams for tests
var (
	geteuid    = os.Geteuid
	pathExists = func(p string) bool { _, err := os.Stat(p); return err == nil }
)

// Result is the outcome contract shared with the CLI/UI layer.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func succeed(message string) Result { return Result{OK: true, Message: message} }
func fail(message string) Result    { return Result{OK: false, Message: message} }
func failDetail(msg, details string) Result {
	return Result{OK: false, Message: msg, Details: details}
}

// Manager wires the stores and pipelines together.
type Manager struct {
	cfg   *config.Config
	op    config.Operator
	log   *zap.Logger
	run   execx.Runner
	rules classify.Rules

	fstab *fstab.Store
	samba *samba.Store
	mount *mounter.Mounter
	prep  *diskprep.Preparer
	hist  *history.DB // nil disables the audit log
}

// New builds a Manager. hist may be nil.
func New(cfg *config.Config, op config.Operator, run execx.Runner, hist *history.DB, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	writer := txfile.New(log)
	m := &Manager{
		cfg:   cfg,
		op:    op,
		log:   log,
		run:   run,
		rules: classify.Rules{UserPrefixes: cfg.MountPrefixes},
		hist:  hist,
	}
	m.fstab = fstab.NewStore(cfg.FstabPath, writer, log)
	m.samba = samba.NewStore(cfg.SmbConfPath, writer, run, log)
	m.mount = mounter.New(run, op, log)
	m.prep = diskprep.New(run, m.snapshot, log)
	return m
}

func (m *Manager) snapshot() []inventory.BlockDevice {
	return inventory.List(m.run)
}

// requireRoot gates every mutating operation.
func (m *Manager) requireRoot() (Result, bool) {
	if geteuid() != 0 {
		return fail("permission denied: run as root (e.g. sudo diskmanager ...) to mount/unmount or edit fstab/Samba"), false
	}
	return Result{}, true
}

// manageable returns the named device if the classifier allows operating on
// it. Recomputed from a fresh snapshot on every call.
func (m *Manager) manageable(devs []inventory.BlockDevice, id string) (inventory.BlockDevice, bool) {
	d, found := inventory.ByName(devs, id)
	if !found {
		return inventory.BlockDevice{}, false
	}
	root := inventory.ResolveRootDisk(devs)
	if m.rules.Classify(d, root) != classify.Manageable {
		return inventory.BlockDevice{}, false
	}
	return d, true
}

// record appends to the audit log; logging failures never fail an operation.
func (m *Manager) record(kind, target string, res Result, backup string) {
	if m.hist == nil {
		return
	}
	err := m.hist.Append(history.Record{
		Kind:       kind,
		Target:     target,
		OK:         res.OK,
		Message:    res.Message,
		BackupPath: backup,
	})
	if err != nil {
		m.log.Warn("could not record operation", zap.String("kind", kind), zap.Error(err))
	}
}

func mkdirAll(path string) error { return os.MkdirAll(path, 0755) }
