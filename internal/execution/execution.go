// Package execution implements the Execution Tracker (C12): per-plan step
// state machines with DAG readiness, parallel/sequential scheduling modes,
// a per-step resilience envelope (timeout + circuit breaker), and a
// TTL/LRU-swept state map bounding how many plans are tracked concurrently.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rishitank/context-engine-sub000/internal/config"
	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/logging"
	"github.com/rishitank/context-engine-sub000/internal/pathpolicy"
	"github.com/rishitank/context-engine-sub000/internal/plan"
)

// StepStatus is a step's position in the C12 state machine.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepReady      StepStatus = "ready"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
	StepBlocked    StepStatus = "blocked"
)

// Mode selects how execute_plan schedules steps.
type Mode string

const (
	ModeSingleStep Mode = "single_step"
	ModeAllReady   Mode = "all_ready"
	ModeFullPlan   Mode = "full_plan"
)

// Operation is the kind of file mutation a step's change set entry performs.
type Operation string

const (
	OpCreate Operation = "create"
	OpModify Operation = "modify"
	OpDelete Operation = "delete"
)

// Change is one entry in a step's structured change set.
type Change struct {
	FilePath  string    `json:"file_path"`
	Operation Operation `json:"operation"`
	Content   string    `json:"content,omitempty"`
}

// FileError records a per-file apply failure that did not necessarily fail
// the step it belongs to.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// StepState is one step's tracked runtime state.
type StepState struct {
	StepNumber  int         `json:"step_number"`
	Status      StepStatus  `json:"status"`
	Changes     []Change    `json:"changes,omitempty"`
	FileErrors  []FileError `json:"file_errors,omitempty"`
	FailReason  string      `json:"fail_reason,omitempty"`
	Attempts    int         `json:"attempts"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// circuitBreaker trips after consecutive failures and resets after either a
// cooldown duration or a run of consecutive successes.
type circuitBreaker struct {
	tripAfter      int
	resetAfter     time.Duration
	consecFailures int
	consecSuccess  int
	trippedAt      time.Time
	open           bool
}

func (b *circuitBreaker) allow() bool {
	if !b.open {
		return true
	}
	if time.Since(b.trippedAt) >= b.resetAfter {
		b.open = false
		b.consecFailures = 0
		b.consecSuccess = 0
		return true
	}
	return false
}

func (b *circuitBreaker) recordSuccess() {
	b.consecFailures = 0
	b.consecSuccess++
	if b.open && b.consecSuccess >= 2 {
		b.open = false
		b.consecSuccess = 0
	}
}

func (b *circuitBreaker) recordFailure() {
	b.consecSuccess = 0
	b.consecFailures++
	if b.consecFailures >= b.tripAfter {
		b.open = true
		b.trippedAt = time.Now()
	}
}

// tracked is one plan's in-memory execution state.
type tracked struct {
	mu        sync.Mutex
	plan      *plan.Plan
	steps     map[int]*StepState
	breaker   *circuitBreaker
	updatedAt time.Time
}

func (t *tracked) terminal() bool {
	for _, s := range t.steps {
		switch s.Status {
		case StepCompleted, StepFailed, StepSkipped, StepBlocked:
			continue
		default:
			return false
		}
	}
	return true
}

// Asker is the subset of the Retrieval Service an execution step needs: it
// drives search_and_ask with plan context to produce a change set.
type Asker interface {
	SearchAndAsk(ctx context.Context, query, prompt string) (string, *daemonerr.Error)
}

// ChangeSetParser turns a search_and_ask response into a structured change
// set. The default parser is ParseChangeSetJSON, which parses a real LLM
// collaborator's JSON-shaped answer and produces no changes for the
// degenerate local engine's plain-text answer.
type ChangeSetParser func(answer string) ([]Change, error)

// Tracker implements the Execution Tracker (C12).
type Tracker struct {
	mu     sync.Mutex
	plans  map[string]*tracked
	cfg    config.ExecutionConfig
	pool   int
	asker  Asker
	policy *pathpolicy.Policy
	parser ChangeSetParser
}

// New constructs a Tracker. pool is the worker-pool size for all_ready mode
// (defaults to config.Concurrency.ResolvedWorkerPoolSize() at the caller).
func New(cfg config.ExecutionConfig, pool int, asker Asker, policy *pathpolicy.Policy, parser ChangeSetParser) *Tracker {
	if pool < 1 {
		pool = 1
	}
	if parser == nil {
		parser = ParseChangeSetJSON
	}
	return &Tracker{
		plans:  make(map[string]*tracked),
		cfg:    cfg,
		pool:   pool,
		asker:  asker,
		policy: policy,
		parser: parser,
	}
}

// Track registers p for execution tracking, seeding every step pending and
// computing the initial ready set.
func (tr *Tracker) Track(p *plan.Plan) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if len(tr.plans) >= tr.cfg.MaxTrackedPlans {
		tr.evictLRULocked()
	}

	steps := make(map[int]*StepState, len(p.Steps))
	for _, s := range p.Steps {
		steps[s.StepNumber] = &StepState{StepNumber: s.StepNumber, Status: StepPending}
	}
	t := &tracked{
		plan:    p,
		steps:   steps,
		breaker: &circuitBreaker{tripAfter: tr.cfg.CircuitTripAfter, resetAfter: tr.cfg.CircuitResetAfter},
		updatedAt: time.Now(),
	}
	recomputeReadinessLocked(t)
	tr.plans[p.ID] = t
	logging.Execution("tracking plan %s (%d steps)", p.ID, len(p.Steps))
}

// evictLRULocked drops the least-recently-updated tracked plan to keep the
// map at or under MaxTrackedPlans, preferring a terminal-state plan if one
// exists; when none is terminal, the least-recently-updated in-flight plan
// is dropped.
func (tr *Tracker) evictLRULocked() {
	var oldestID, oldestTerminalID string
	var oldest, oldestTerminal time.Time
	first, firstTerminal := true, true
	for id, t := range tr.plans {
		if first || t.updatedAt.Before(oldest) {
			oldestID = id
			oldest = t.updatedAt
			first = false
		}
		if t.terminal() && (firstTerminal || t.updatedAt.Before(oldestTerminal)) {
			oldestTerminalID = id
			oldestTerminal = t.updatedAt
			firstTerminal = false
		}
	}
	if oldestTerminalID != "" {
		delete(tr.plans, oldestTerminalID)
		return
	}
	if oldestID != "" {
		delete(tr.plans, oldestID)
	}
}

// Sweep removes terminal-state plans whose last update is older than the
// configured terminal TTL. Intended to be called on cfg.SweepInterval.
func (tr *Tracker) Sweep() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	cutoff := time.Now().Add(-tr.cfg.TerminalTTL)
	removed := 0
	for id, t := range tr.plans {
		t.mu.Lock()
		isTerminal := t.terminal()
		updated := t.updatedAt
		t.mu.Unlock()
		if isTerminal && updated.Before(cutoff) {
			delete(tr.plans, id)
			removed++
		}
	}
	if removed > 0 {
		logging.Execution("swept %d terminal plan(s) past TTL", removed)
	}
	return removed
}

// StartSweeper launches a goroutine that calls Sweep every cfg.SweepInterval
// until ctx is cancelled.
func (tr *Tracker) StartSweeper(ctx context.Context) {
	interval := tr.cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tr.Sweep()
			}
		}
	}()
}

func (tr *Tracker) get(planID string) (*tracked, *daemonerr.Error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	t, ok := tr.plans[planID]
	if !ok {
		return nil, daemonerr.New(daemonerr.PlanNotFound, "plan not tracked: "+planID)
	}
	t.updatedAt = time.Now()
	return t, nil
}

// recomputeReadinessLocked promotes pending steps whose dependencies are all
// completed to ready. Caller must hold t.mu.
func recomputeReadinessLocked(t *tracked) {
	for _, step := range t.plan.Steps {
		st := t.steps[step.StepNumber]
		if st.Status != StepPending {
			continue
		}
		ready := true
		for _, dep := range step.DependsOn {
			if depState, ok := t.steps[dep]; !ok || depState.Status != StepCompleted {
				ready = false
				break
			}
		}
		if ready {
			st.Status = StepReady
		}
	}
}

// ReadySteps returns the step numbers currently in StepReady, sorted.
func (tr *Tracker) ReadySteps(planID string) ([]int, *daemonerr.Error) {
	t, err := tr.get(planID)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var ready []int
	for _, step := range t.plan.Steps {
		if t.steps[step.StepNumber].Status == StepReady {
			ready = append(ready, step.StepNumber)
		}
	}
	return ready, nil
}

// StepSnapshot returns a copy of one step's tracked state.
func (tr *Tracker) StepSnapshot(planID string, stepNumber int) (StepState, *daemonerr.Error) {
	t, err := tr.get(planID)
	if err != nil {
		return StepState{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.steps[stepNumber]
	if !ok {
		return StepState{}, daemonerr.Newf(daemonerr.InvalidInput, "no such step: %d", stepNumber)
	}
	return *st, nil
}

// Progress summarizes every step's status for view_progress.
func (tr *Tracker) Progress(planID string) ([]StepState, *daemonerr.Error) {
	t, err := tr.get(planID)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StepState, 0, len(t.plan.Steps))
	for _, step := range t.plan.Steps {
		out = append(out, *t.steps[step.StepNumber])
	}
	return out, nil
}

// ExecuteOptions carries execute_plan's arguments.
type ExecuteOptions struct {
	Mode              Mode
	StepNumber        int
	ApplyChanges      bool
	MaxSteps          int
	StopOnFailure     bool
	AdditionalContext string
}

// ExecuteResult is execute_plan's return value.
type ExecuteResult struct {
	Executed []StepState `json:"executed"`
	Ready    []int       `json:"ready"`
}

// ExecutePlan dispatches to the scheduling mode named in opts.Mode.
func (tr *Tracker) ExecutePlan(ctx context.Context, planID string, opts ExecuteOptions) (*ExecuteResult, *daemonerr.Error) {
	switch opts.Mode {
	case ModeSingleStep:
		st, err := tr.StartStep(ctx, planID, opts.StepNumber, opts.ApplyChanges, opts.AdditionalContext)
		if err != nil {
			return nil, err
		}
		ready, _ := tr.ReadySteps(planID)
		return &ExecuteResult{Executed: []StepState{*st}, Ready: ready}, nil
	case ModeAllReady:
		return tr.executeAllReady(ctx, planID, opts)
	case ModeFullPlan:
		return tr.executeFullPlan(ctx, planID, opts)
	default:
		return nil, daemonerr.Newf(daemonerr.InvalidInput, "unknown execution mode: %s", opts.Mode)
	}
}

// executeAllReady runs every currently-ready step in parallel, up to the
// configured worker-pool size, and reassembles results in step_number order.
func (tr *Tracker) executeAllReady(ctx context.Context, planID string, opts ExecuteOptions) (*ExecuteResult, *daemonerr.Error) {
	ready, rerr := tr.ReadySteps(planID)
	if rerr != nil {
		return nil, rerr
	}
	if opts.MaxSteps > 0 && len(ready) > opts.MaxSteps {
		ready = ready[:opts.MaxSteps]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tr.pool)
	results := make([]StepState, len(ready))
	for i, stepNum := range ready {
		i, stepNum := i, stepNum
		g.Go(func() error {
			st, err := tr.StartStep(gctx, planID, stepNum, opts.ApplyChanges, opts.AdditionalContext)
			if err != nil {
				results[i] = StepState{StepNumber: stepNum, Status: StepFailed, FailReason: err.Error()}
				return nil
			}
			results[i] = *st
			return nil
		})
	}
	_ = g.Wait()

	newReady, _ := tr.ReadySteps(planID)
	return &ExecuteResult{Executed: results, Ready: newReady}, nil
}

// executeFullPlan drains the DAG sequentially, respecting readiness and
// optionally stopping the first time a step fails.
func (tr *Tracker) executeFullPlan(ctx context.Context, planID string, opts ExecuteOptions) (*ExecuteResult, *daemonerr.Error) {
	var executed []StepState
	stepsRun := 0
	for {
		if opts.MaxSteps > 0 && stepsRun >= opts.MaxSteps {
			break
		}
		ready, err := tr.ReadySteps(planID)
		if err != nil {
			return nil, err
		}
		if len(ready) == 0 {
			break
		}
		stepNum := ready[0]
		st, serr := tr.StartStep(ctx, planID, stepNum, opts.ApplyChanges, opts.AdditionalContext)
		stepsRun++
		if serr != nil {
			executed = append(executed, StepState{StepNumber: stepNum, Status: StepFailed, FailReason: serr.Error()})
			if opts.StopOnFailure {
				break
			}
			continue
		}
		executed = append(executed, *st)
		if st.Status == StepFailed && opts.StopOnFailure {
			break
		}
	}
	ready, _ := tr.ReadySteps(planID)
	return &ExecuteResult{Executed: executed, Ready: ready}, nil
}

// StartStep runs one ready step through search_and_ask, optionally applies
// its change set under Path Policy, and advances the state machine.
// Returns StepNotReady if the step is not currently ready.
func (tr *Tracker) StartStep(ctx context.Context, planID string, stepNumber int, applyChanges bool, additionalContext string) (*StepState, *daemonerr.Error) {
	t, err := tr.get(planID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	st, ok := t.steps[stepNumber]
	if !ok {
		t.mu.Unlock()
		return nil, daemonerr.Newf(daemonerr.InvalidInput, "no such step: %d", stepNumber)
	}
	if st.Status != StepReady {
		t.mu.Unlock()
		return nil, daemonerr.Newf(daemonerr.StepNotReady, "step %d is not ready (status=%s)", stepNumber, st.Status)
	}
	if !t.breaker.allow() {
		t.mu.Unlock()
		return nil, daemonerr.New(daemonerr.CircuitBreakerOpen, "circuit breaker open; step execution suspended")
	}
	now := time.Now()
	st.Status = StepInProgress
	st.StartedAt = &now
	st.Attempts++
	stepDef := findStep(t.plan, stepNumber)
	t.mu.Unlock()

	// One context.WithTimeout per in-flight step stands in for a registered
	// timer; defer cancel() is the removal, so no timer ever outlives its step.
	timeout := tr.cfg.StepTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	changes, fileErrs, failReason := tr.runStep(stepCtx, stepDef, additionalContext, applyChanges)

	t.mu.Lock()
	defer t.mu.Unlock()
	completed := time.Now()
	st.CompletedAt = &completed
	st.Changes = changes
	st.FileErrors = fileErrs
	if failReason != "" {
		st.Status = StepFailed
		st.FailReason = failReason
		t.breaker.recordFailure()
	} else {
		st.Status = StepCompleted
		t.breaker.recordSuccess()
		recomputeReadinessLocked(t)
	}
	t.updatedAt = time.Now()
	logging.Execution("plan %s step %d finished: %s", planID, stepNumber, st.Status)
	return st, nil
}

// CompleteStep transitions a ready step straight to completed/failed using a
// result computed by the caller, rather than dispatching to runStep's
// asker-driven change-set flow. Reactive review sessions (C18) use this: a
// step there means "analyze one diff unit", not "generate and apply a code
// change set", but the readiness/timeout/circuit-breaker bookkeeping is the
// same DAG machinery either way. When failReason is non-empty and
// skipDependents is true, every transitive dependent of stepNumber is
// recursively marked skipped; otherwise transitive dependents that can now
// never become ready are marked blocked so the plan can still reach a
// terminal state.
func (tr *Tracker) CompleteStep(ctx context.Context, planID string, stepNumber int, failReason string, skipDependents bool) (*StepState, *daemonerr.Error) {
	t, err := tr.get(planID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.steps[stepNumber]
	if !ok {
		return nil, daemonerr.Newf(daemonerr.InvalidInput, "no such step: %d", stepNumber)
	}
	if st.Status != StepReady {
		return nil, daemonerr.Newf(daemonerr.StepNotReady, "step %d is not ready (status=%s)", stepNumber, st.Status)
	}
	if !t.breaker.allow() {
		return nil, daemonerr.New(daemonerr.CircuitBreakerOpen, "circuit breaker open; step execution suspended")
	}

	now := time.Now()
	st.Status = StepInProgress
	st.StartedAt = &now
	st.Attempts++

	completed := time.Now()
	st.CompletedAt = &completed
	if failReason != "" {
		st.Status = StepFailed
		st.FailReason = failReason
		t.breaker.recordFailure()
		if skipDependents {
			n := cascadeSkipLocked(t, stepNumber)
			if n > 0 {
				logging.Execution("plan %s step %d failure skipped %d dependent step(s)", planID, stepNumber, n)
			}
		} else {
			recomputeBlockedLocked(t)
		}
	} else {
		st.Status = StepCompleted
		t.breaker.recordSuccess()
		recomputeReadinessLocked(t)
	}
	t.updatedAt = time.Now()
	logging.Execution("plan %s step %d finished: %s", planID, stepNumber, st.Status)
	return st, nil
}

// cascadeSkipLocked marks stepNumber's transitive dependents skipped,
// stopping at any step already in a terminal state. Caller must hold t.mu.
func cascadeSkipLocked(t *tracked, stepNumber int) int {
	skipped := map[int]bool{stepNumber: true}
	count := 0
	for changed := true; changed; {
		changed = false
		for _, step := range t.plan.Steps {
			st := t.steps[step.StepNumber]
			if skipped[step.StepNumber] || st.Status == StepCompleted || st.Status == StepFailed {
				continue
			}
			for _, dep := range step.DependsOn {
				if skipped[dep] {
					st.Status = StepSkipped
					skipped[step.StepNumber] = true
					count++
					changed = true
					break
				}
			}
		}
	}
	return count
}

// recomputeBlockedLocked marks pending steps blocked when any dependency has
// failed or is itself blocked, since such a step's depends_on can never all
// reach completed. Caller must hold t.mu.
func recomputeBlockedLocked(t *tracked) int {
	blocked := map[int]bool{}
	for _, step := range t.plan.Steps {
		if s := t.steps[step.StepNumber]; s.Status == StepFailed || s.Status == StepBlocked {
			blocked[step.StepNumber] = true
		}
	}
	count := 0
	for changed := true; changed; {
		changed = false
		for _, step := range t.plan.Steps {
			st := t.steps[step.StepNumber]
			if st.Status != StepPending {
				continue
			}
			for _, dep := range step.DependsOn {
				if blocked[dep] {
					st.Status = StepBlocked
					blocked[step.StepNumber] = true
					count++
					changed = true
					break
				}
			}
		}
	}
	return count
}

func findStep(p *plan.Plan, stepNumber int) plan.Step {
	for _, s := range p.Steps {
		if s.StepNumber == stepNumber {
			return s
		}
	}
	return plan.Step{StepNumber: stepNumber}
}

// runStep calls search_and_ask with plan context, parses the resulting
// change set, and — if applyChanges — applies it under Path Policy. It
// returns a non-empty failReason only when the step's core change set is
// unrecoverable; per-file apply errors are collected but don't fail the step.
func (tr *Tracker) runStep(ctx context.Context, step plan.Step, additionalContext string, applyChanges bool) ([]Change, []FileError, string) {
	query := fmt.Sprintf("implement plan step #%d: %s", step.StepNumber, step.Title)
	prompt := buildStepPrompt(step, additionalContext)

	if tr.asker == nil {
		return nil, nil, "no search_and_ask collaborator configured"
	}
	answer, askErr := tr.asker.SearchAndAsk(ctx, query, prompt)
	if askErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, nil, "Timeout"
		}
		return nil, nil, askErr.Error()
	}

	changes, parseErr := tr.parser(answer)
	if parseErr != nil {
		return nil, nil, fmt.Sprintf("unrecoverable change set: %v", parseErr)
	}

	var fileErrs []FileError
	if applyChanges && tr.policy != nil {
		fileErrs = tr.applyChanges(changes)
	}
	return changes, fileErrs, ""
}

func buildStepPrompt(step plan.Step, additionalContext string) string {
	prompt := fmt.Sprintf("Step %d: %s\n%s\nfiles to create: %v\nfiles to modify: %v\nfiles to delete: %v",
		step.StepNumber, step.Title, step.Description, step.FilesToCreate, step.FilesToModify, step.FilesToDelete)
	if additionalContext != "" {
		prompt += "\nadditional context:\n" + additionalContext
	}
	return prompt
}

// applyChanges writes each change under Path Policy: creates make parent
// directories, modifies save a .backup.<timestamp> before overwriting,
// deletes are logged. Per-file errors are collected, never aborting the
// whole change set.
func (tr *Tracker) applyChanges(changes []Change) []FileError {
	var errs []FileError
	for _, c := range changes {
		full, polErr := tr.policy.Resolve(c.FilePath)
		if polErr != nil {
			errs = append(errs, FileError{Path: c.FilePath, Error: polErr.Error()})
			continue
		}
		switch c.Operation {
		case OpCreate:
			if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
				errs = append(errs, FileError{Path: c.FilePath, Error: err.Error()})
				continue
			}
			if err := os.WriteFile(full, []byte(c.Content), 0644); err != nil {
				errs = append(errs, FileError{Path: c.FilePath, Error: err.Error()})
			}
		case OpModify:
			if _, statErr := os.Stat(full); statErr == nil {
				backup := fmt.Sprintf("%s.backup.%d", full, time.Now().UnixNano())
				if data, readErr := os.ReadFile(full); readErr == nil {
					if err := os.WriteFile(backup, data, 0644); err != nil {
						errs = append(errs, FileError{Path: c.FilePath, Error: "backup failed: " + err.Error()})
						continue
					}
				}
			}
			if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
				errs = append(errs, FileError{Path: c.FilePath, Error: err.Error()})
				continue
			}
			if err := os.WriteFile(full, []byte(c.Content), 0644); err != nil {
				errs = append(errs, FileError{Path: c.FilePath, Error: err.Error()})
			}
		case OpDelete:
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				errs = append(errs, FileError{Path: c.FilePath, Error: err.Error()})
			} else {
				logging.Execution("deleted %s per change set", c.FilePath)
			}
		default:
			errs = append(errs, FileError{Path: c.FilePath, Error: "unknown operation: " + string(c.Operation)})
		}
	}
	return errs
}

// ParseChangeSetJSON is the default ChangeSetParser: it expects a
// search_and_ask answer containing a JSON array of
// {file_path, operation, content} objects, optionally wrapped in a fenced
// code block. A response with no parseable JSON array yields an empty,
// non-error change set (the degenerate local engine's plain-text answers
// fall through here harmlessly).
func ParseChangeSetJSON(answer string) ([]Change, error) {
	raw := extractJSONArray(answer)
	if raw == "" {
		return nil, nil
	}
	var changes []Change
	if err := json.Unmarshal([]byte(raw), &changes); err != nil {
		return nil, fmt.Errorf("parsing change set: %w", err)
	}
	for _, c := range changes {
		switch c.Operation {
		case OpCreate, OpModify, OpDelete:
		default:
			return nil, fmt.Errorf("invalid change operation: %q", c.Operation)
		}
	}
	return changes, nil
}

func extractJSONArray(s string) string {
	start := -1
	depth := 0
	for i, r := range s {
		if r == '[' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if r == ']' {
			depth--
			if depth == 0 && start >= 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
