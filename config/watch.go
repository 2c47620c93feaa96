package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/itsneelabh/kaizen/pkg/logger"
	"github.com/itsneelabh/kaizen/safety"
)

// BoundsWatcher watches a YAML file's safetyBounds section and pushes
// every change into a safety.Evaluator, so an operator can retune
// thresholds without restarting the process.
type BoundsWatcher struct {
	path string
	eval *safety.Evaluator
	log  logger.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewBoundsWatcher constructs a watcher targeting path, to be applied
// to eval. A nil Logger defaults to logger.NewDefaultLogger().
func NewBoundsWatcher(path string, eval *safety.Evaluator, lg logger.Logger) *BoundsWatcher {
	if lg == nil {
		lg = logger.NewDefaultLogger()
	}
	return &BoundsWatcher{path: path, eval: eval, log: lg.WithField("component", "bounds-watcher")}
}

// Start loads path once immediately, then watches it for writes,
// reloading and re-upserting every recognized bound on each change.
// Parse errors on reload are logged and the previous bounds are left
// in place; Start itself fails if the initial load fails.
func (w *BoundsWatcher) Start() error {
	if err := w.reload(); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.path); err != nil {
		fw.Close()
		return err
	}

	w.mu.Lock()
	w.watcher = fw
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	go w.run(fw, done)
	return nil
}

func (w *BoundsWatcher) run(fw *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.reload(); err != nil {
				w.log.Error("safety bounds reload failed", "path", w.path, "error", err)
			} else {
				w.log.Info("safety bounds reloaded", "path", w.path)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.Error("safety bounds watcher error", "error", err)
		}
	}
}

func (w *BoundsWatcher) reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	for key, spec := range cfg.SafetyBounds {
		w.eval.UpsertBound(key, spec)
	}
	return nil
}

// Stop closes the underlying filesystem watcher and the run goroutine.
func (w *BoundsWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		close(w.done)
		w.done = nil
	}
	if w.watcher != nil {
		w.watcher.Close()
		w.watcher = nil
	}
}
