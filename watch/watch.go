// Package watch re-runs generation when a module's sources change.
//
// Events are filtered down to Go sources and generator inputs, debounced,
// and rate limited. Runs are strictly sequential: a burst of saves during a
// run schedules at most one follow-up run.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/teranos/autojson/config"
	"github.com/teranos/autojson/errors"
	"github.com/teranos/autojson/gosym"
	"github.com/teranos/autojson/guard"
	"github.com/teranos/autojson/logger"
	"github.com/teranos/autojson/render"
)

const (
	DefaultDebounce    = 500 * time.Millisecond
	DefaultMinInterval = time.Second
)

// RunFunc performs one generation pass
type RunFunc func(ctx context.Context) error

// Options configure a Watcher
type Options struct {
	// Root is the module directory to watch recursively
	Root string
	// Debounce is the quiet period after the last event before a run
	Debounce time.Duration
	// MinInterval is the minimum time between two runs
	MinInterval time.Duration
}

// Watcher triggers RunFunc on relevant file changes
type Watcher struct {
	root     string
	run      RunFunc
	debounce time.Duration
	limiter  *rate.Limiter
	fsw      *fsnotify.Watcher
	dirs     map[string]bool
}

// New creates a watcher over every eligible directory below opts.Root
func New(opts Options, run RunFunc) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinInterval
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	w := &Watcher{
		root:     opts.Root,
		run:      run,
		debounce: opts.Debounce,
		limiter:  rate.NewLimiter(rate.Every(opts.MinInterval), 1),
		fsw:      fsw,
		dirs:     map[string]bool{},
	}
	if err := w.addTree(opts.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Dirs returns the watched directories, unordered
func (w *Watcher) Dirs() []string {
	out := make([]string, 0, len(w.dirs))
	for dir := range w.dirs {
		out = append(out, dir)
	}
	return out
}

// Run performs an initial pass and then one pass per debounced burst of
// changes until ctx is cancelled. Pass errors are logged, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	log := logger.Named("watch")
	log.Infow("Watching for changes", "root", w.root, "dirs", len(w.dirs), "debounce", w.debounce)

	w.runOnce(ctx)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Infow("Watch stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						log.Warnw("Failed to watch new directory", "dir", event.Name, "error", err)
					}
				}
			}
			if !Relevant(event) {
				continue
			}
			log.Debugw("Change detected", "file", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)
			pending = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warnw("Watcher error", "error", err)

		case <-pending:
			pending = nil
			if err := w.limiter.Wait(ctx); err != nil {
				return nil
			}
			w.runOnce(ctx)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	start := time.Now()
	if err := w.run(ctx); err != nil {
		logger.Named("watch").Errorw("Generation failed", "error", err)
		return
	}
	logger.Named("watch").Infow("Generation pass finished", "duration", time.Since(start))
}

// addTree watches dir and every non-skipped directory below it
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if w.dirs[path] {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return errors.Wrapf(err, "failed to watch %s", path)
		}
		w.dirs[path] = true
		return nil
	})
}

// SkipDir reports whether a directory is left out of the watch, following
// the go command's rules for directories that never hold packages
func SkipDir(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasPrefix(name, "_") ||
		name == "vendor" ||
		name == "testdata"
}

// Relevant reports whether an event can change the generated artifact.
// The artifact and lock file themselves are ignored so a pass never
// triggers the next one.
func Relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	switch base {
	case render.FileName, guard.LockFileName:
		return false
	case gosym.GoModFileName, config.JSONFileName, config.EditorConfigFileName:
		return true
	}
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.HasSuffix(base, ".go")
}
