// Package staticanalysis implements the Static Analyzer Adapters (C15): a
// common Adapter contract plus built-in type-check and pattern-rule
// implementations, run against the changed files of a diff.
package staticanalysis

import (
	"bufio"
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/finding"
	"github.com/rishitank/context-engine-sub000/internal/logging"
)

// Options configures one analyzer run.
type Options struct {
	Timeout        time.Duration
	FindingCap     int
	WorkingDir     string
}

// Result is one analyzer's output.
type Result struct {
	Findings   []finding.Finding `json:"findings"`
	DurationMs int64             `json:"duration_ms"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// Adapter is the abstract per-analyzer contract.
type Adapter interface {
	Name() string
	Run(ctx context.Context, changedFiles []string, opts Options) (*Result, *daemonerr.Error)
}

// severityMap maps an adapter's raw severity token to the common scale.
type severityMap map[string]finding.Severity

func (m severityMap) resolve(raw string) finding.Severity {
	if s, ok := m[strings.ToLower(raw)]; ok {
		return s
	}
	return finding.SeverityMedium
}

// ---- Type-check adapter -----------------------------------------------

// TypeCheckAdapter shells out to `go vet` (or another configured binary) and
// parses its "file:line:col: message" diagnostics.
type TypeCheckAdapter struct {
	Binary string   // defaults to "go"
	Args   []string // defaults to ["vet", "./..."]
}

// NewTypeCheckAdapter builds the default go-vet-backed adapter.
func NewTypeCheckAdapter() *TypeCheckAdapter {
	return &TypeCheckAdapter{Binary: "go", Args: []string{"vet", "./..."}}
}

func (a *TypeCheckAdapter) Name() string { return "typecheck" }

var reDiagnostic = regexp.MustCompile(`^([^:]+\.go):(\d+)(?::(\d+))?:\s*(.+)$`)

func (a *TypeCheckAdapter) Run(ctx context.Context, changedFiles []string, opts Options) (*Result, *daemonerr.Error) {
	start := time.Now()
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	changed := make(map[string]bool, len(changedFiles))
	for _, f := range changedFiles {
		changed[f] = true
	}

	binary := a.Binary
	if binary == "" {
		binary = "go"
	}
	args := a.Args
	if len(args) == 0 {
		args = []string{"vet", "./..."}
	}

	cmd := exec.CommandContext(runCtx, binary, args...)
	cmd.Dir = opts.WorkingDir
	output, err := cmd.CombinedOutput()
	duration := time.Since(start).Milliseconds()

	if err != nil && runCtx.Err() == context.DeadlineExceeded {
		return nil, daemonerr.Newf(daemonerr.Timeout, "typecheck adapter timed out after %s", timeout)
	}

	var findings []finding.Finding
	var warnings []string
	cap := opts.FindingCap
	if cap <= 0 {
		cap = 20
	}

	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		line := scanner.Text()
		m := reDiagnostic.FindStringSubmatch(line)
		if m == nil {
			if strings.TrimSpace(line) != "" {
				warnings = append(warnings, line)
			}
			continue
		}
		file := m[1]
		if len(changed) > 0 && !changed[file] {
			continue
		}
		if len(findings) >= cap {
			break
		}
		lineNo, _ := strconv.Atoi(m[2])
		findings = append(findings, finding.Finding{
			ID:          finding.StableID(file, lineNo, lineNo, "typecheck"),
			Category:    "correctness",
			Severity:    finding.SeverityMedium,
			Priority:    finding.PriorityForSeverity(finding.SeverityMedium),
			Confidence:  0.9,
			FilePath:    file,
			LineStart:   lineNo,
			LineEnd:     lineNo,
			Title:       "type-check diagnostic",
			Description: m[4],
			Source:      finding.StaticSource(a.Name()),
			RuleID:      finding.NormalizedRuleID("correctness", "typecheck"),
		})
	}

	// go vet exits non-zero on any diagnostic; that's expected output, not a
	// tool failure, unless it also produced nothing parseable.
	if err != nil && len(findings) == 0 && len(warnings) == 0 {
		logging.StaticWarn("typecheck adapter exited with error and no diagnostics: %v", err)
	}

	return &Result{Findings: findings, DurationMs: duration, Warnings: warnings}, nil
}

// ---- Pattern-rule adapter ----------------------------------------------

// PatternRule is one regex-based static rule.
type PatternRule struct {
	ID       string
	Pattern  *regexp.Regexp
	Severity finding.Severity
	Category string
	Message  string
}

// PatternRuleAdapter scans changed file contents directly (not via an
// external process) against a configured set of regex rules — useful for
// quick heuristics that don't warrant a full compiler invocation.
type PatternRuleAdapter struct {
	Rules    []PatternRule
	ReadFile func(path string) ([]byte, error)
}

func (a *PatternRuleAdapter) Name() string { return "pattern-rule" }

func (a *PatternRuleAdapter) Run(ctx context.Context, changedFiles []string, opts Options) (*Result, *daemonerr.Error) {
	start := time.Now()
	cap := opts.FindingCap
	if cap <= 0 {
		cap = 20
	}

	var findings []finding.Finding
	var warnings []string

	for _, path := range changedFiles {
		select {
		case <-ctx.Done():
			return nil, daemonerr.Newf(daemonerr.Timeout, "pattern-rule adapter cancelled: %v", ctx.Err())
		default:
		}
		content, err := a.ReadFile(path)
		if err != nil {
			warnings = append(warnings, path+": "+err.Error())
			continue
		}
		lines := strings.Split(string(content), "\n")
		for _, rule := range a.Rules {
			for i, l := range lines {
				if len(findings) >= cap {
					break
				}
				if !rule.Pattern.MatchString(l) {
					continue
				}
				lineNo := i + 1
				findings = append(findings, finding.Finding{
					ID:          finding.StableID(path, lineNo, lineNo, rule.ID),
					Category:    rule.Category,
					Severity:    rule.Severity,
					Priority:    finding.PriorityForSeverity(rule.Severity),
					Confidence:  0.75,
					FilePath:    path,
					LineStart:   lineNo,
					LineEnd:     lineNo,
					Title:       rule.Message,
					Description: "matched pattern " + rule.Pattern.String(),
					CodeSnippet: l,
					Source:      finding.StaticSource(a.Name()),
					RuleID:      finding.NormalizedRuleID(rule.Category, rule.ID),
				})
			}
		}
	}

	return &Result{
		Findings:   findings,
		DurationMs: time.Since(start).Milliseconds(),
		Warnings:   warnings,
	}, nil
}

// DefaultPatternRules mirrors the invariants engine's risk-pattern idea but
// as a static-analysis finding source (unconditional, not diff-risk-gated).
func DefaultPatternRules() []PatternRule {
	return []PatternRule{
		{ID: "panic-todo", Pattern: regexp.MustCompile(`panic\(`), Severity: finding.SeverityLow, Category: "robustness", Message: "explicit panic() call"},
		{ID: "hardcoded-secret", Pattern: regexp.MustCompile(`(?i)(password|secret|api[_-]?key)\s*=\s*["'][^"']+["']`), Severity: finding.SeverityHigh, Category: "security", Message: "possible hardcoded credential"},
	}
}

// Run executes every adapter against changedFiles, collecting per-analyzer
// results; a single adapter's error is recorded and does not abort the rest.
func Run(ctx context.Context, adapters []Adapter, changedFiles []string, opts Options) (map[string]*Result, []daemonerr.FileError) {
	results := make(map[string]*Result, len(adapters))
	var errs []daemonerr.FileError

	for _, a := range adapters {
		res, err := a.Run(ctx, changedFiles, opts)
		if err != nil {
			errs = append(errs, daemonerr.FileError{Path: a.Name(), Code: err.Code, Message: err.Message})
			continue
		}
		results[a.Name()] = res
	}
	return results, errs
}
