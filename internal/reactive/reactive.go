// Package reactive implements Reactive Review Sessions (C18): long-running,
// background-executed review sessions keyed by session_id, built on top of
// the Execution Tracker (C12), the deterministic + LLM review stages
// (C13-C16), and the Finding Merger (C17).
package reactive

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rishitank/context-engine-sub000/internal/config"
	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/diffparse"
	"github.com/rishitank/context-engine-sub000/internal/execution"
	"github.com/rishitank/context-engine-sub000/internal/finding"
	"github.com/rishitank/context-engine-sub000/internal/invariants"
	"github.com/rishitank/context-engine-sub000/internal/llmreview"
	"github.com/rishitank/context-engine-sub000/internal/logging"
	"github.com/rishitank/context-engine-sub000/internal/plan"
	"github.com/rishitank/context-engine-sub000/internal/staticanalysis"
	"github.com/rishitank/context-engine-sub000/internal/verdict"
)

// State is a review session's lifecycle state.
type State string

const (
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Request is the reactive_review_pr argument shape.
type Request struct {
	CommitHash   string
	BaseRef      string
	ChangedFiles []string
	Title        string
	Author       string
	Additions    int
	Deletions    int
	Parallel     bool
	MaxWorkers   int
}

// Telemetry holds per-step timings and cache/token metrics.
type Telemetry struct {
	StepTimingsMs map[int]int64 `json:"step_timings_ms"`
	CacheHits     int           `json:"cache_hits"`
	TokensUsed    int           `json:"tokens_used"`
}

// Status is the get_review_status projection.
type Status struct {
	State          State   `json:"state"`
	Progress       float64 `json:"progress"`
	FindingsCount  int     `json:"findings_count"`
	AppearsStalled bool    `json:"appears_stalled"`
	Error          string  `json:"error,omitempty"`
}

// DiffProvider fetches the unified diff text for one changed file between
// a base ref and a commit, so each review step has something to analyze.
type DiffProvider interface {
	Diff(ctx context.Context, baseRef, commitHash, file string) (string, error)
}

// GitDiffProvider shells out to `git diff`, the same context.WithTimeout +
// exec.CommandContext idiom used by the static analysis adapters.
type GitDiffProvider struct {
	Dir     string
	Timeout time.Duration
}

// Diff implements DiffProvider via the local git binary.
func (g *GitDiffProvider) Diff(ctx context.Context, baseRef, commitHash, file string) (string, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rangeArg := commitHash
	if baseRef != "" {
		rangeArg = baseRef + ".." + commitHash
	}
	cmd := exec.CommandContext(runCtx, "git", "diff", rangeArg, "--", file)
	cmd.Dir = g.Dir
	out, err := cmd.Output()
	return string(out), err
}

// session is one tracked reactive review.
type session struct {
	mu             sync.Mutex
	id             string
	planID         string
	state          State
	findings       []finding.Finding
	telemetry      Telemetry
	err            string
	createdAt      time.Time
	updatedAt      time.Time
	lastActivityAt time.Time
	appearsStalled bool
	pauseRequested bool
	cancel         context.CancelFunc
}

func (s *session) terminal() bool {
	return s.state == StateCompleted || s.state == StateFailed
}

// PlanSynthesizer turns a review request into a Plan DAG: one step per
// logical diff unit, with no inter-step dependencies, per spec §4.18.
type PlanSynthesizer func(req Request) *plan.Plan

// Manager owns every in-flight reactive session plus its housekeeping.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	cfg         config.ReactiveConfig
	reviewCfg   config.ReviewConfig
	tracker     *execution.Tracker
	planner     PlanSynthesizer
	diffs       DiffProvider
	ruleSet     *invariants.RuleSet
	analyzers   []staticanalysis.Adapter
	llm         *llmreview.Orchestrator
}

// Dependencies bundles the Manager's collaborators.
type Dependencies struct {
	Tracker   *execution.Tracker
	Planner   PlanSynthesizer
	Diffs     DiffProvider
	RuleSet   *invariants.RuleSet
	Analyzers []staticanalysis.Adapter
	LLM       *llmreview.Orchestrator
}

// New builds a Manager sharing the given Execution Tracker and review
// pipeline collaborators.
func New(cfg config.ReactiveConfig, reviewCfg config.ReviewConfig, deps Dependencies) *Manager {
	planner := deps.Planner
	if planner == nil {
		planner = DefaultPlanSynthesizer
	}
	return &Manager{
		sessions:  make(map[string]*session),
		cfg:       cfg,
		reviewCfg: reviewCfg,
		tracker:   deps.Tracker,
		planner:   planner,
		diffs:     deps.Diffs,
		ruleSet:   deps.RuleSet,
		analyzers: deps.Analyzers,
		llm:       deps.LLM,
	}
}

// DefaultPlanSynthesizer creates one no-dependency step per changed file —
// the "logical unit of the diff" the spec leaves open-ended absent a richer
// hunk-clustering signal.
func DefaultPlanSynthesizer(req Request) *plan.Plan {
	p := &plan.Plan{
		ID:      uuid.NewString(),
		Version: 1,
		Goal:    fmt.Sprintf("Review %s (%s)", req.CommitHash, req.Title),
	}
	for i, f := range req.ChangedFiles {
		p.Steps = append(p.Steps, plan.Step{
			StepNumber:  i + 1,
			ID:          fmt.Sprintf("review-%d", i+1),
			Title:       "Review " + f,
			Description: "Analyze changes in " + f,
			FilesToModify: []string{f},
			Priority:    plan.PriorityMedium,
		})
	}
	p.DeriveDependencyGraph()
	return p
}

// ReactiveReviewPR creates a session, synthesizes a plan, registers it with
// the Execution Tracker, and starts background execution, returning the
// session_id immediately.
func (m *Manager) ReactiveReviewPR(ctx context.Context, req Request) (string, *daemonerr.Error) {
	p := m.planner(req)
	m.tracker.Track(p)

	workers := req.MaxWorkers
	if workers == 0 {
		if req.Parallel {
			workers = maxInt(1, runtime.NumCPU()-1)
		} else {
			workers = 1
		}
	}

	now := time.Now()
	sess := &session{
		id:             uuid.NewString(),
		planID:         p.ID,
		state:          StateRunning,
		telemetry:      Telemetry{StepTimingsMs: map[int]int64{}},
		createdAt:      now,
		updatedAt:      now,
		lastActivityAt: now,
	}

	m.mu.Lock()
	m.evictLRULocked()
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel

	go m.run(runCtx, sess, p, req, workers)

	return sess.id, nil
}

// run drives background execution of sess's plan: each step analyzes one
// changed file through the deterministic + LLM review stages, and its
// findings funnel into the session's accumulator for the eventual Finding
// Merger pass.
func (m *Manager) run(ctx context.Context, sess *session, p *plan.Plan, req Request, workers int) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, step := range p.Steps {
		step := step
		g.Go(func() error {
			sess.mu.Lock()
			paused := sess.pauseRequested
			sess.mu.Unlock()
			if paused {
				return nil
			}

			start := time.Now()
			found, failReason := m.reviewStep(gctx, req, step)
			elapsed := time.Since(start).Milliseconds()

			if _, err := m.tracker.CompleteStep(gctx, p.ID, step.StepNumber, failReason, false); err != nil {
				logging.ReactiveWarn("session %s step %d bookkeeping failed: %v", sess.id, step.StepNumber, err)
			}

			sess.mu.Lock()
			sess.telemetry.StepTimingsMs[step.StepNumber] = elapsed
			sess.findings = append(sess.findings, found...)
			sess.lastActivityAt = time.Now()
			sess.updatedAt = sess.lastActivityAt
			sess.appearsStalled = false
			sess.mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	sess.mu.Lock()
	all := append([]finding.Finding{}, sess.findings...)
	sess.mu.Unlock()

	merged, v := verdict.Pipeline(all, verdict.Options{
		ConfidenceThreshold: m.reviewCfg.ConfidenceThreshold,
		MaxFindings:         m.reviewCfg.MaxFindings,
		FailOnSeverity:      finding.Severity(m.reviewCfg.FailOnSeverity),
		FailOnInvariantIDs:  m.reviewCfg.FailOnInvariantIDs,
		AllowlistFindingIDs: m.reviewCfg.AllowlistFindingIDs,
	})

	sess.mu.Lock()
	sess.findings = merged
	if v.ShouldFail {
		sess.state = StateFailed
		sess.err = fmt.Sprintf("%d fail reason(s)", len(v.FailReasons))
	} else {
		sess.state = StateCompleted
	}
	sess.updatedAt = time.Now()
	sess.mu.Unlock()
}

// reviewStep analyzes one step's file through preflight, invariants, static
// analysis, and (if gated in) the LLM orchestrator. A per-step error is
// returned as a fail reason, never panics the worker.
func (m *Manager) reviewStep(ctx context.Context, req Request, step plan.Step) ([]finding.Finding, string) {
	if m.diffs == nil || len(step.FilesToModify) == 0 {
		return nil, ""
	}
	file := step.FilesToModify[0]

	diffText, err := m.diffs.Diff(ctx, req.BaseRef, req.CommitHash, file)
	if err != nil {
		return nil, fmt.Sprintf("diff fetch failed for %s: %v", file, err)
	}
	if diffText == "" {
		return nil, ""
	}

	files, derr := diffparse.Parse(diffText)
	if derr != nil {
		return nil, derr.Error()
	}

	pf := diffparse.RunPreflight(files, m.reviewCfg.HotspotGlobs, m.reviewCfg.RiskPatterns)

	var out []finding.Finding
	if m.ruleSet != nil {
		out = append(out, invariants.Evaluate(m.ruleSet, files, invariants.DefaultOptions())...)
	}

	if len(m.analyzers) > 0 {
		results, _ := staticanalysis.Run(ctx, m.analyzers, []string{file}, staticanalysis.Options{
			Timeout:    m.reviewCfg.StaticAnalyzerTimeout,
			FindingCap: m.reviewCfg.MaxFindingsPerAnalyzer,
		})
		for _, r := range results {
			out = append(out, r.Findings...)
		}
	}

	if m.llm != nil {
		llmFindings, _, lerr := m.llm.Review(ctx, diffText, files, pf.RiskScore, llmreview.Options{
			RiskThreshold:   m.reviewCfg.RiskThreshold,
			TwoPass:         m.reviewCfg.TwoPass,
			MaxContextFiles: m.reviewCfg.MaxContextFiles,
			TokenBudget:     m.reviewCfg.TokenBudget,
		})
		if lerr == nil {
			out = append(out, llmFindings...)
		}
	}

	return out, ""
}

// GetReviewStatus returns the get_review_status projection.
func (m *Manager) GetReviewStatus(sessionID string) (Status, *daemonerr.Error) {
	sess, err := m.get(sessionID)
	if err != nil {
		return Status{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	progress := 0.0
	if steps, perr := m.tracker.Progress(sess.planID); perr == nil && len(steps) > 0 {
		done := 0
		for _, s := range steps {
			if s.Status == execution.StepCompleted || s.Status == execution.StepFailed || s.Status == execution.StepSkipped || s.Status == execution.StepBlocked {
				done++
			}
		}
		progress = float64(done) / float64(len(steps))
	}

	return Status{
		State:          sess.state,
		Progress:       progress,
		FindingsCount:  len(sess.findings),
		AppearsStalled: sess.appearsStalled,
		Error:          sess.err,
	}, nil
}

// GetReviewTelemetry returns per-step timings and cache/token metrics.
func (m *Manager) GetReviewTelemetry(sessionID string) (Telemetry, *daemonerr.Error) {
	sess, err := m.get(sessionID)
	if err != nil {
		return Telemetry{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := Telemetry{
		StepTimingsMs: make(map[int]int64, len(sess.telemetry.StepTimingsMs)),
		CacheHits:     sess.telemetry.CacheHits,
		TokensUsed:    sess.telemetry.TokensUsed,
	}
	for k, v := range sess.telemetry.StepTimingsMs {
		out.StepTimingsMs[k] = v
	}
	return out, nil
}

// PauseReview sets state to paused and stops new dispatches; in-flight
// steps complete, per spec — there is no mid-step cancellation here.
func (m *Manager) PauseReview(sessionID string) *daemonerr.Error {
	sess, err := m.get(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.terminal() {
		return daemonerr.Newf(daemonerr.ApprovalStateConflict, "session %s already terminal", sessionID)
	}
	sess.pauseRequested = true
	sess.state = StatePaused
	sess.updatedAt = time.Now()
	return nil
}

// ResumeReview clears the pause flag and re-dispatches remaining ready
// steps, since the prior worker group already exited when pausing.
func (m *Manager) ResumeReview(ctx context.Context, sessionID string, req Request, workers int) *daemonerr.Error {
	sess, err := m.get(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	if sess.state != StatePaused {
		sess.mu.Unlock()
		return daemonerr.Newf(daemonerr.ApprovalStateConflict, "session %s is not paused", sessionID)
	}
	sess.pauseRequested = false
	sess.state = StateRunning
	sess.updatedAt = time.Now()
	planID := sess.planID
	sess.mu.Unlock()

	readySteps, perr := m.tracker.ReadySteps(planID)
	if perr != nil {
		return perr
	}
	if len(readySteps) == 0 {
		sess.mu.Lock()
		sess.state = StateCompleted
		sess.mu.Unlock()
		return nil
	}

	stepSet := make(map[int]bool, len(readySteps))
	for _, n := range readySteps {
		stepSet[n] = true
	}
	remaining := plan.Plan{ID: planID}

	p := m.planner(req)
	for _, s := range p.Steps {
		if stepSet[s.StepNumber] {
			remaining.Steps = append(remaining.Steps, s)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	sess.mu.Lock()
	sess.cancel = cancel
	sess.mu.Unlock()
	go m.run(runCtx, sess, &remaining, req, workers)
	return nil
}

func (m *Manager) get(sessionID string) (*session, *daemonerr.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, daemonerr.Newf(daemonerr.SessionNotFound, "session %s not found", sessionID)
	}
	return sess, nil
}

// evictLRULocked bounds tracked sessions to cfg.MaxSessions, preferring to
// evict the oldest terminal session; falls back to the oldest overall if
// none are terminal, mirroring the Execution Tracker's C12 housekeeping.
func (m *Manager) evictLRULocked() {
	max := m.cfg.MaxSessions
	if max <= 0 {
		max = 100
	}
	if len(m.sessions) < max {
		return
	}

	var terminalID, oldestID string
	var terminalAt, oldestAt time.Time
	for id, s := range m.sessions {
		s.mu.Lock()
		updatedAt := s.updatedAt
		isTerminal := s.terminal()
		s.mu.Unlock()

		if oldestID == "" || updatedAt.Before(oldestAt) {
			oldestID, oldestAt = id, updatedAt
		}
		if isTerminal && (terminalID == "" || updatedAt.Before(terminalAt)) {
			terminalID, terminalAt = id, updatedAt
		}
	}

	victim := terminalID
	if victim == "" {
		victim = oldestID
	}
	if s, ok := m.sessions[victim]; ok && s.cancel != nil {
		s.cancel()
	}
	delete(m.sessions, victim)
}

// Sweep runs stalled-session detection: active sessions whose
// last_activity_at is more than cfg.StalledAfter in the past are flagged
// appears_stalled=true, never auto-cancelled, per spec. It also evicts
// terminal sessions whose terminal-transition age exceeds cfg.TTL,
// mirroring the Execution Tracker's Sweep (execution.go).
func (m *Manager) Sweep() int {
	stalledAfter := m.cfg.StalledAfter
	if stalledAfter <= 0 {
		stalledAfter = 2 * time.Minute
	}
	ttl := m.cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()
	cutoff := now.Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	flagged := 0
	for id, sess := range m.sessions {
		sess.mu.Lock()
		isTerminal := sess.terminal()
		updatedAt := sess.updatedAt
		if !isTerminal && now.Sub(sess.lastActivityAt) > stalledAfter {
			sess.appearsStalled = true
			flagged++
		}
		sess.mu.Unlock()

		if isTerminal && updatedAt.Before(cutoff) {
			if sess.cancel != nil {
				sess.cancel()
			}
			delete(m.sessions, id)
		}
	}
	return flagged
}

// StartHousekeeping runs Sweep on cfg.HousekeepingInterval (default 30s)
// until ctx is cancelled.
func (m *Manager) StartHousekeeping(ctx context.Context) {
	interval := m.cfg.HousekeepingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					logging.ReactiveWarn("flagged %d stalled review session(s)", n)
				}
			}
		}
	}()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
