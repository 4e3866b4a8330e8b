// Package indexing drives the Indexing Orchestrator (C4): discovering,
// reading, batching, and forwarding workspace files to a ContextEngine, with
// persisted status and per-file failure isolation.
package indexing

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rishitank/context-engine-sub000/internal/cache"
	"github.com/rishitank/context-engine-sub000/internal/config"
	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/discovery"
	"github.com/rishitank/context-engine-sub000/internal/engine"
	"github.com/rishitank/context-engine-sub000/internal/logging"
	"github.com/rishitank/context-engine-sub000/internal/pathpolicy"
)

// FileError records a per-file indexing failure without failing the batch.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Status reports the orchestrator's current state.
type Status struct {
	State           string      `json:"state"` // idle, indexing, error
	FilesIndexed    int         `json:"files_indexed"`
	FilesSkipped    int         `json:"files_skipped"`
	Errors          []FileError `json:"errors"`
	IndexFingerprint int        `json:"index_fingerprint"`
	StartedAt       time.Time   `json:"started_at"`
	CompletedAt     time.Time   `json:"completed_at"`
}

// Orchestrator coordinates Discovery, the ContextEngine, and the cache tier.
type Orchestrator struct {
	policy      *pathpolicy.Policy
	discoverer  *discovery.Discoverer
	eng         engine.ContextEngine
	cfg         config.IndexingConfig
	searchCache *cache.Cache
	ctxCache    *cache.Cache
	fingerprint *cache.Fingerprint
	statePath   string

	mu     sync.Mutex
	status Status
}

// New constructs an Orchestrator. statePath is where engine/index state is
// persisted (./.augment-context-state.json by convention).
func New(policy *pathpolicy.Policy, disc *discovery.Discoverer, eng engine.ContextEngine, cfg config.IndexingConfig, searchCache, ctxCache *cache.Cache, fp *cache.Fingerprint, statePath string) *Orchestrator {
	return &Orchestrator{
		policy:      policy,
		discoverer:  disc,
		eng:         eng,
		cfg:         cfg,
		searchCache: searchCache,
		ctxCache:    ctxCache,
		fingerprint: fp,
		statePath:   statePath,
		status:      Status{State: "idle"},
	}
}

func (o *Orchestrator) checkOfflinePolicy() *daemonerr.Error {
	if !o.cfg.OfflineOnly {
		return nil
	}
	if o.cfg.EngineURL == "" {
		return nil
	}
	if !config.IsLoopbackOrLocal(o.cfg.EngineURL) {
		return daemonerr.New(daemonerr.OfflinePolicyRemote, "offline_only is set but engine_url is not loopback/local: "+o.cfg.EngineURL)
	}
	return nil
}

// IndexWorkspace performs a full re-index: discover, read, batch, forward.
func (o *Orchestrator) IndexWorkspace(ctx context.Context) (Status, *daemonerr.Error) {
	if err := o.checkOfflinePolicy(); err != nil {
		return o.snapshotStatus(), err
	}
	timer := logging.StartTimer(logging.CategoryIndexing, "IndexWorkspace")
	defer timer.Stop()

	files, walkErr := o.discoverer.Walk(ctx)
	if walkErr != nil {
		return o.failStatus(daemonerr.Wrap(walkErr))
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.RelPath)
	}
	return o.indexPaths(ctx, paths)
}

// IndexFiles performs an incremental index of the given workspace-relative
// paths (from the watcher, or an explicit tool call).
func (o *Orchestrator) IndexFiles(ctx context.Context, relPaths []string) (Status, *daemonerr.Error) {
	if err := o.checkOfflinePolicy(); err != nil {
		return o.snapshotStatus(), err
	}
	return o.indexPaths(ctx, relPaths)
}

func (o *Orchestrator) indexPaths(ctx context.Context, relPaths []string) (Status, *daemonerr.Error) {
	o.mu.Lock()
	o.status = Status{State: "indexing", StartedAt: time.Now(), IndexFingerprint: o.fingerprint.Value()}
	o.mu.Unlock()

	batchSize := o.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	var filesIndexed, filesSkipped int
	var errs []FileError

	for start := 0; start < len(relPaths); start += batchSize {
		end := start + batchSize
		if end > len(relPaths) {
			end = len(relPaths)
		}
		batch := relPaths[start:end]
		isLast := end == len(relPaths)

		indexed, skipped, batchErrs := o.processBatch(ctx, batch)
		filesIndexed += indexed
		filesSkipped += skipped
		errs = append(errs, batchErrs...)

		if isLast {
			logging.Indexing("final batch submitted, waiting for engine completion")
		}
	}

	fp, fpErr := o.fingerprint.Bump()
	if fpErr != nil {
		logging.IndexingWarn("failed to bump index fingerprint: %v", fpErr)
	}

	o.searchCache.Clear()
	o.ctxCache.Clear()

	status := Status{
		State:            "idle",
		FilesIndexed:     filesIndexed,
		FilesSkipped:     filesSkipped,
		Errors:           errs,
		IndexFingerprint: fp,
		CompletedAt:      time.Now(),
	}
	o.mu.Lock()
	status.StartedAt = o.status.StartedAt
	o.status = status
	o.mu.Unlock()

	if err := o.persistState(); err != nil {
		logging.IndexingWarn("failed to persist index state: %v", err)
	}

	logging.Indexing("index run complete: %d indexed, %d skipped, %d errors, fingerprint=%d",
		filesIndexed, filesSkipped, len(errs), fp)
	return status, nil
}

// processBatch reads and forwards one batch, falling back to per-file
// insertion on whole-batch failure so one poison file does not reject the
// whole batch.
func (o *Orchestrator) processBatch(ctx context.Context, relPaths []string) (indexed, skipped int, errs []FileError) {
	var paths, contents []string
	for _, rel := range relPaths {
		full, polErr := o.policy.ResolveForRead(rel)
		if polErr != nil {
			errs = append(errs, FileError{Path: rel, Error: polErr.Error()})
			skipped++
			continue
		}
		data, readErr := os.ReadFile(full)
		if readErr != nil {
			errs = append(errs, FileError{Path: rel, Error: readErr.Error()})
			skipped++
			continue
		}
		if isBinary(data) {
			skipped++
			continue
		}
		paths = append(paths, rel)
		contents = append(contents, string(data))
	}

	if len(paths) == 0 {
		return 0, skipped, errs
	}

	if err := o.eng.AddToIndex(ctx, paths, contents); err != nil {
		logging.IndexingWarn("batch of %d failed, falling back to per-file insertion: %v", len(paths), err)
		for i, p := range paths {
			if err := o.eng.AddToIndex(ctx, []string{p}, []string{contents[i]}); err != nil {
				errs = append(errs, FileError{Path: p, Error: err.Error()})
				skipped++
				continue
			}
			indexed++
		}
		return indexed, skipped, errs
	}

	return len(paths), skipped, errs
}

// isBinary applies a crude heuristic: a NUL byte in the first 8KB means binary.
func isBinary(data []byte) bool {
	limit := len(data)
	if limit > 8192 {
		limit = 8192
	}
	for i := 0; i < limit; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}

// ClearIndex deletes persisted state and invalidates both caches.
func (o *Orchestrator) ClearIndex() *daemonerr.Error {
	o.searchCache.Clear()
	o.ctxCache.Clear()
	if o.statePath != "" {
		if err := os.Remove(o.statePath); err != nil && !os.IsNotExist(err) {
			return daemonerr.Wrap(err)
		}
	}
	o.mu.Lock()
	o.status = Status{State: "idle"}
	o.mu.Unlock()
	logging.Indexing("index cleared")
	return nil
}

// ReindexWorkspace is ClearIndex followed by IndexWorkspace.
func (o *Orchestrator) ReindexWorkspace(ctx context.Context) (Status, *daemonerr.Error) {
	if err := o.ClearIndex(); err != nil {
		return o.snapshotStatus(), err
	}
	return o.IndexWorkspace(ctx)
}

// GetIndexStatus returns the orchestrator's current status snapshot.
func (o *Orchestrator) GetIndexStatus() Status {
	return o.snapshotStatus()
}

func (o *Orchestrator) snapshotStatus() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator) failStatus(err *daemonerr.Error) (Status, *daemonerr.Error) {
	o.mu.Lock()
	o.status = Status{State: "error", Errors: []FileError{{Error: err.Error()}}}
	s := o.status
	o.mu.Unlock()
	return s, err
}

type persistedState struct {
	IndexFingerprint int       `json:"index_fingerprint"`
	LastIndexed      time.Time `json:"last_indexed"`
}

// persistState atomically writes engine/index state, matching the daemon's
// temp-file + rename convention (internal/cache uses the same pattern).
func (o *Orchestrator) persistState() error {
	if o.statePath == "" {
		return nil
	}
	s := persistedState{IndexFingerprint: o.fingerprint.Value(), LastIndexed: time.Now()}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	dir := filepath.Dir(o.statePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".index-state-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, o.statePath)
}
