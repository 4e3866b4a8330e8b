// Package invariants implements the Invariants Engine (C14): a YAML-defined
// deny/when_require/warn ruleset evaluated against changed diff text.
package invariants

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/diffparse"
	"github.com/rishitank/context-engine-sub000/internal/finding"
	"github.com/rishitank/context-engine-sub000/internal/logging"
)

// Action names the evaluation strategy for one invariant.
type Action string

const (
	ActionDeny        Action = "deny"
	ActionWhenRequire Action = "when_require"
	ActionWarn        Action = "warn"
)

// PatternPair is the {pattern} shape of a when_require invariant's when and
// require entries.
type PatternPair struct {
	Pattern string `yaml:"pattern"`
}

// rawInvariant mirrors one YAML rule entry before pattern compilation.
type rawInvariant struct {
	ID          string      `yaml:"id"`
	Paths       []string    `yaml:"paths"`
	Severity    string      `yaml:"severity"`
	Action      Action      `yaml:"action"`
	Pattern     string      `yaml:"pattern"`
	When        PatternPair `yaml:"when"`
	Require     PatternPair `yaml:"require"`
}

// ruleSetFile is the top-level YAML document: category name -> rules.
type ruleSetFile map[string][]rawInvariant

// Invariant is a single compiled rule ready for evaluation.
type Invariant struct {
	ID       string
	Category string
	Paths    []string
	Severity finding.Severity
	Action   Action
	Pattern  *regexp.Regexp
	When     *regexp.Regexp
	Require  *regexp.Regexp
}

// RuleSet is the full loaded, compiled invariant set.
type RuleSet struct {
	Invariants []Invariant
}

// Load reads and compiles a .review-invariants.yml file.
func Load(path string) (*RuleSet, *daemonerr.Error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RuleSet{}, nil
		}
		return nil, daemonerr.Newf(daemonerr.FileNotFound, "reading invariants file: %v", err)
	}

	var doc ruleSetFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, daemonerr.Newf(daemonerr.ConfigInvalid, "parsing invariants YAML: %v", err)
	}

	rs := &RuleSet{}
	for category, rules := range doc {
		for _, r := range rules {
			inv := Invariant{
				ID:       r.ID,
				Category: category,
				Paths:    r.Paths,
				Severity: finding.Severity(r.Severity),
				Action:   r.Action,
			}
			var compileErr error
			switch r.Action {
			case ActionDeny, ActionWarn:
				inv.Pattern, compileErr = regexp.Compile(r.Pattern)
			case ActionWhenRequire:
				inv.When, compileErr = regexp.Compile(r.When.Pattern)
				if compileErr == nil {
					inv.Require, compileErr = regexp.Compile(r.Require.Pattern)
				}
			default:
				compileErr = fmt.Errorf("unknown action %q", r.Action)
			}
			if compileErr != nil {
				return nil, daemonerr.Newf(daemonerr.PatternInvalid, "invariant %s: %v", r.ID, compileErr)
			}
			rs.Invariants = append(rs.Invariants, inv)
		}
	}
	return rs, nil
}

// Options tunes evaluation.
type Options struct {
	ChangedLinesOnly bool
}

// DefaultOptions matches the spec default: scope restricted to hunk content.
func DefaultOptions() Options {
	return Options{ChangedLinesOnly: true}
}

// Evaluate runs every invariant in rs against the parsed diff, returning
// findings. Per-invariant regex failures were already rejected at Load time,
// so Evaluate itself cannot fail per spec's "per-item recoverable errors are
// collected, not raised" policy — there is nothing left to collect here.
func Evaluate(rs *RuleSet, files []diffparse.FileDiff, opts Options) []finding.Finding {
	var findings []finding.Finding
	if rs == nil {
		return findings
	}

	for _, f := range files {
		path := f.NewPath
		if path == "" || path == "/dev/null" {
			path = f.OldPath
		}
		for _, inv := range rs.Invariants {
			if !pathMatches(inv.Paths, path) {
				continue
			}
			findings = append(findings, evaluateInvariant(inv, f, path, opts)...)
		}
	}
	return findings
}

func evaluateInvariant(inv Invariant, f diffparse.FileDiff, path string, opts Options) []finding.Finding {
	var out []finding.Finding
	switch inv.Action {
	case ActionDeny:
		out = append(out, matchLines(inv, f, path, inv.Pattern, "violates "+inv.ID, opts)...)
	case ActionWarn:
		out = append(out, matchLines(inv, f, path, inv.Pattern, "warning: "+inv.ID, opts)...)
	case ActionWhenRequire:
		whenHits := matchLines(inv, f, path, inv.When, "", opts)
		if len(whenHits) == 0 {
			return nil
		}
		if requireSatisfied(f, inv.Require, opts) {
			return nil
		}
		for _, h := range whenHits {
			h.Title = fmt.Sprintf("%s: condition matched without required counterpart", inv.ID)
			h.Description = fmt.Sprintf("pattern %q matched but required pattern %q was not found", inv.When.String(), inv.Require.String())
			out = append(out, h)
		}
	}
	return out
}

// matchLines scans every changed line (or, if !opts.ChangedLinesOnly, every
// line including context) of f for pattern, emitting one finding per hit.
func matchLines(inv Invariant, f diffparse.FileDiff, path string, pattern *regexp.Regexp, title string, opts Options) []finding.Finding {
	var out []finding.Finding
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			if opts.ChangedLinesOnly && l.Type == diffparse.LineContext {
				continue
			}
			if !pattern.MatchString(l.Content) {
				continue
			}
			line := l.NewLine
			if line == 0 {
				line = l.OldLine
			}
			ruleID := finding.NormalizedRuleID(inv.Category, inv.ID)
			out = append(out, finding.Finding{
				ID:          finding.StableID(path, line, line, inv.ID),
				Category:    inv.Category,
				Severity:    inv.Severity,
				Priority:    finding.PriorityForSeverity(inv.Severity),
				Confidence:  1.0,
				FilePath:    path,
				LineStart:   line,
				LineEnd:     line,
				Title:       title,
				Description: fmt.Sprintf("matched pattern %q", pattern.String()),
				CodeSnippet: l.Content,
				Source:      finding.SourceInvariant,
				RuleID:      ruleID,
			})
		}
	}
	return out
}

// requireSatisfied reports whether require matches anywhere in f's changed
// (or full, per opts) text.
func requireSatisfied(f diffparse.FileDiff, require *regexp.Regexp, opts Options) bool {
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			if opts.ChangedLinesOnly && l.Type == diffparse.LineContext {
				continue
			}
			if require.MatchString(l.Content) {
				return true
			}
		}
	}
	return false
}

func pathMatches(globs []string, path string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if diffparse.GlobMatch(g, path) {
			return true
		}
	}
	return false
}

// CheckInvariants is the tool-facing entry point: load + evaluate in one
// call, logging a warning if no invariants file is present.
func CheckInvariants(invariantsPath string, files []diffparse.FileDiff, opts Options) ([]finding.Finding, *daemonerr.Error) {
	rs, err := Load(invariantsPath)
	if err != nil {
		return nil, err
	}
	if len(rs.Invariants) == 0 {
		logging.InvariantsWarn("no invariants loaded from %s", invariantsPath)
	}
	return Evaluate(rs, files, opts), nil
}
