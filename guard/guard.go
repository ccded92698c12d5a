// Package guard keeps a generator from re-entering itself.
//
// A generation run can trigger a rebuild that invokes the generator again
// before the first run finishes. Two layers detect that and turn the nested
// run into a successful no-op:
//
//  1. an in-process flag, raised for the duration of a run
//  2. a lock file in the output directory, created exclusively
//
// A recursion skip is never an error. Cleanup failures are logged and
// swallowed.
package guard

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/teranos/autojson/errors"
	"github.com/teranos/autojson/logger"
)

// LockFileName is created in the output directory while a run is active
const LockFileName = "autojson.lock"

// SkipReason explains why Acquire declined to run
type SkipReason int

const (
	NotSkipped SkipReason = iota
	SkipFlagRaised
	SkipLockHeld
)

func (r SkipReason) String() string {
	switch r {
	case SkipFlagRaised:
		return "generator already running in this process"
	case SkipLockHeld:
		return "lock file present"
	default:
		return "not skipped"
	}
}

// LockInfo is the body of the lock file
type LockInfo struct {
	StartedAt time.Time `toml:"started_at"`
	PID       int       `toml:"pid"`
	RunID     string    `toml:"run_id"`
}

// Guard protects one output directory
type Guard struct {
	flag Flag
	dir  string

	now       func() time.Time
	pid       func() int
	pidExists func(pid int32) (bool, error)
}

// New creates a guard for outputDir using flag as the in-process layer
func New(flag Flag, outputDir string) *Guard {
	return &Guard{
		flag:      flag,
		dir:       outputDir,
		now:       time.Now,
		pid:       os.Getpid,
		pidExists: process.PidExists,
	}
}

// LockPath is the lock file location
func (g *Guard) LockPath() string {
	return filepath.Join(g.dir, LockFileName)
}

// Token is a held guard. Release it on every exit path.
type Token struct {
	Info LockInfo

	guard *Guard
	once  sync.Once
}

// Acquire raises the flag and creates the lock file. When either layer is
// already held it returns a nil token and the reason, with a nil error.
func (g *Guard) Acquire() (*Token, SkipReason, error) {
	log := logger.Named("guard")

	if g.flag.Raised() {
		log.Infow("Skipping nested run", "reason", SkipFlagRaised.String())
		return nil, SkipFlagRaised, nil
	}

	lockPath := g.LockPath()
	if _, err := os.Stat(lockPath); err == nil {
		g.reportHeldLock(lockPath)
		return nil, SkipLockHeld, nil
	}

	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return nil, NotSkipped, errors.Wrapf(err, "failed to create output directory %s", g.dir)
	}

	if err := g.flag.Raise(); err != nil {
		return nil, NotSkipped, errors.Wrap(err, "failed to raise recursion flag")
	}

	info := LockInfo{
		StartedAt: g.now().UTC().Truncate(time.Second),
		PID:       g.pid(),
		RunID:     uuid.NewString(),
	}
	if err := writeLock(lockPath, info); err != nil {
		g.lowerFlag()
		if os.IsExist(errors.UnwrapAll(err)) {
			g.reportHeldLock(lockPath)
			return nil, SkipLockHeld, nil
		}
		return nil, NotSkipped, err
	}

	log.Debugw("Lock acquired", "path", lockPath, "run_id", info.RunID)
	return &Token{Info: info, guard: g}, NotSkipped, nil
}

// Release removes the lock file and lowers the flag. Safe to call twice.
func (t *Token) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		lockPath := t.guard.LockPath()
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			logger.Named("guard").Warnw("Failed to remove lock file", "path", lockPath, "error", err)
		}
		t.guard.lowerFlag()
	})
}

// Run executes fn inside the guard. A skipped run returns its reason and
// does not call fn. The guard is released even if fn panics.
func (g *Guard) Run(fn func() error) (SkipReason, error) {
	token, skip, err := g.Acquire()
	if err != nil || skip != NotSkipped {
		return skip, err
	}
	defer token.Release()
	return NotSkipped, fn()
}

func (g *Guard) lowerFlag() {
	if err := g.flag.Lower(); err != nil {
		logger.Named("guard").Warnw("Failed to lower recursion flag", "error", err)
	}
}

// ReadLock parses the lock file at path
func ReadLock(path string) (LockInfo, error) {
	var info LockInfo
	data, err := os.ReadFile(path)
	if err != nil {
		return info, errors.Wrapf(err, "failed to read %s", path)
	}
	if err := toml.Unmarshal(data, &info); err != nil {
		return info, errors.Wrapf(err, "failed to parse %s", path)
	}
	return info, nil
}

func writeLock(path string, info LockInfo) error {
	data, err := toml.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "failed to encode lock file")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return errors.Wrapf(err, "failed to create lock file %s", path)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return errors.Wrapf(err, "failed to write lock file %s", path)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return errors.Wrapf(err, "failed to close lock file %s", path)
	}
	return nil
}

// reportHeldLock logs the skip and warns when the owning process is gone.
// The lock is never removed here: an operator decides.
func (g *Guard) reportHeldLock(lockPath string) {
	log := logger.Named("guard")
	log.Infow("Skipping run", "reason", SkipLockHeld.String(), "path", lockPath)

	info, err := ReadLock(lockPath)
	if err != nil {
		log.Warnw("Lock file is unreadable; remove it if no generation is running", "path", lockPath, "error", err)
		return
	}
	if info.PID <= 0 {
		return
	}
	alive, err := g.pidExists(int32(info.PID))
	if err != nil {
		log.Debugw("Could not check lock owner", "pid", info.PID, "error", err)
		return
	}
	if !alive {
		log.Warnw("Stale lock file: owning process is gone; remove it to re-enable generation",
			"path", lockPath,
			"pid", info.PID,
			"started_at", info.StartedAt.Format(time.RFC3339),
			"run_id", info.RunID)
	}
}
