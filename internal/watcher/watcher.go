// Package watcher wraps a recursive filesystem watcher and coalesces events
// into debounced batches for the Indexing Orchestrator (C4).
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rishitank/context-engine-sub000/internal/ignore"
	"github.com/rishitank/context-engine-sub000/internal/logging"
	"github.com/rishitank/context-engine-sub000/internal/pathpolicy"
)

// EventKind classifies a coalesced path change.
type EventKind int

const (
	EventAddOrChange EventKind = iota
	EventUnlink
)

// Batch is a coalesced set of changes ready for the indexer.
type Batch struct {
	Changed []string // add/change, workspace-relative
	Deleted []string // unlink, workspace-relative
}

// Options configures debounce/cooldown/burst behavior per spec.md §4.5.
type Options struct {
	DebounceMs           int
	ReindexOnDelete      bool
	ReindexDebounceMs    int
	ReindexCooldownMs    int
	DeleteBurstThreshold int
}

// DefaultOptions mirror spec.md's defaults.
func DefaultOptions() Options {
	return Options{
		DebounceMs:           500,
		ReindexOnDelete:      true,
		ReindexDebounceMs:    2000,
		ReindexCooldownMs:    60000,
		DeleteBurstThreshold: 10,
	}
}

// Watcher coalesces fsnotify events into debounced Batches and, on deletion
// bursts or standalone unlinks, schedules full-reindex signals.
type Watcher struct {
	opts   Options
	policy *pathpolicy.Policy
	rules  *ignore.Set
	fsw    *fsnotify.Watcher

	mu           sync.Mutex
	pendingAdd   map[string]bool
	pendingDel   map[string]bool
	debounceT    *time.Timer
	reindexT     *time.Timer
	lastReindex  time.Time
	deleteBurst  int
	burstWindowT *time.Timer

	Batches       chan Batch
	ReindexSignal chan struct{}
	done          chan struct{}
}

// New constructs a Watcher rooted at policy.Root(), seeding its ignore list
// from rules + the built-in directory blocklist.
func New(policy *pathpolicy.Policy, rules *ignore.Set, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		opts:          opts,
		policy:        policy,
		rules:         rules,
		fsw:           fsw,
		pendingAdd:    make(map[string]bool),
		pendingDel:    make(map[string]bool),
		Batches:       make(chan Batch, 16),
		ReindexSignal: make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	if err := w.addRecursive(policy.Root()); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		rel, ok := w.policy.Relativize(path)
		if ok && w.rules.ShouldIgnore(rel, true) {
			return filepath.SkipDir
		}
		for _, blocked := range ignore.BuiltinDirBlocklist {
			if info.Name() == blocked {
				return filepath.SkipDir
			}
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			logging.WatcherWarn("failed to watch %s: %v", path, addErr)
		}
		return nil
	})
}

// Run consumes fsnotify events until Close is called.
func (w *Watcher) Run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.WatcherWarn("fsnotify error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	rel, ok := w.policy.Relativize(ev.Name)
	if !ok {
		return
	}
	isDir := false
	if w.rules.ShouldIgnore(rel, isDir) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0:
		delete(w.pendingAdd, rel)
		w.pendingDel[rel] = true
		w.deleteBurst++
		if w.deleteBurst >= w.opts.DeleteBurstThreshold {
			logging.Watcher("delete burst threshold reached (%d), scheduling immediate reindex", w.deleteBurst)
			w.scheduleReindexLocked(0)
		}
	default:
		delete(w.pendingDel, rel)
		w.pendingAdd[rel] = true
	}

	w.resetDebounceLocked()
}

func (w *Watcher) resetDebounceLocked() {
	if w.debounceT != nil {
		w.debounceT.Stop()
	}
	w.debounceT = time.AfterFunc(time.Duration(w.opts.DebounceMs)*time.Millisecond, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pendingAdd) == 0 && len(w.pendingDel) == 0 {
		w.mu.Unlock()
		return
	}
	batch := Batch{}
	for p := range w.pendingAdd {
		if !w.pendingDel[p] {
			batch.Changed = append(batch.Changed, p)
		}
	}
	for p := range w.pendingDel {
		batch.Deleted = append(batch.Deleted, p)
	}
	w.pendingAdd = make(map[string]bool)
	w.pendingDel = make(map[string]bool)
	hasDeletes := len(batch.Deleted) > 0
	w.mu.Unlock()

	logging.Watcher("flushing batch: %d changed, %d deleted", len(batch.Changed), len(batch.Deleted))
	select {
	case w.Batches <- batch:
	default:
		logging.WatcherWarn("batch channel full, dropping batch")
	}

	if hasDeletes && w.opts.ReindexOnDelete {
		w.mu.Lock()
		w.scheduleReindexLocked(time.Duration(w.opts.ReindexDebounceMs) * time.Millisecond)
		w.mu.Unlock()
	}
}

// scheduleReindexLocked arms a reindex timer respecting the cooldown, unless
// delay is 0 (burst threshold), which fires immediately regardless.
func (w *Watcher) scheduleReindexLocked(delay time.Duration) {
	if delay > 0 {
		cooldown := time.Duration(w.opts.ReindexCooldownMs) * time.Millisecond
		if !w.lastReindex.IsZero() && time.Since(w.lastReindex) < cooldown {
			logging.WatcherDebug("reindex suppressed by cooldown")
			return
		}
	}
	if w.reindexT != nil {
		w.reindexT.Stop()
	}
	w.reindexT = time.AfterFunc(delay, func() {
		w.mu.Lock()
		w.lastReindex = time.Now()
		w.deleteBurst = 0
		w.mu.Unlock()
		select {
		case w.ReindexSignal <- struct{}{}:
		default:
		}
	})
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
