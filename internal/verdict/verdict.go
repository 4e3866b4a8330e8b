// Package verdict implements the Finding Merger & Verdict (C17): dedup
// across every finding source, confidence filtering, capping, and the
// should_fail gate computation. Optional SARIF/Markdown renderings are
// derived projections of the same in-memory result.
package verdict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rishitank/context-engine-sub000/internal/finding"
)

// Options tunes merge and verdict computation; zero values resolve to spec
// defaults via ResolveDefaults.
type Options struct {
	ConfidenceThreshold float64
	MaxFindings         int
	FailOnSeverity      finding.Severity
	FailOnInvariantIDs  []string
	AllowlistFindingIDs []string
}

// ResolveDefaults fills unset fields with spec §4.17 defaults.
func (o Options) ResolveDefaults() Options {
	if o.ConfidenceThreshold == 0 {
		o.ConfidenceThreshold = 0.55
	}
	if o.MaxFindings == 0 {
		o.MaxFindings = 20
	}
	if o.FailOnSeverity == "" {
		o.FailOnSeverity = finding.SeverityCritical
	}
	return o
}

// dedupKey is (file, line_range, normalized_rule_id) per spec §4.17.
type dedupKey struct {
	file      string
	lineStart int
	lineEnd   int
	ruleID    string
}

func keyOf(f finding.Finding) dedupKey {
	ruleID := f.RuleID
	if ruleID == "" {
		ruleID = f.Title
	}
	return dedupKey{file: f.FilePath, lineStart: f.LineStart, lineEnd: f.LineEnd, ruleID: ruleID}
}

// Merge dedups findings from every source: on collision, keep the highest
// severity and sum confidences up to 1.0. A finding is only folded into an
// existing entry's confidence once per distinct ID — reseeing the exact
// same finding (e.g. the same source reported twice) is a no-op rather than
// compounding its confidence, which is what makes dedup idempotent: merging
// F union F yields the same result as merging F once.
func Merge(all []finding.Finding) []finding.Finding {
	merged := make(map[dedupKey]finding.Finding)
	seenIDs := make(map[dedupKey]map[string]bool)
	order := make([]dedupKey, 0, len(all))

	for _, f := range all {
		k := keyOf(f)
		existing, ok := merged[k]
		if !ok {
			merged[k] = f
			seenIDs[k] = map[string]bool{f.ID: true}
			order = append(order, k)
			continue
		}
		if seenIDs[k][f.ID] {
			continue
		}
		seenIDs[k][f.ID] = true

		combined := existing
		if f.Severity.Rank() > existing.Severity.Rank() {
			combined.Severity = f.Severity
			combined.Priority = f.Priority
			combined.Title = f.Title
			combined.Description = f.Description
		}
		combined.Confidence = existing.Confidence + f.Confidence
		if combined.Confidence > 1.0 {
			combined.Confidence = 1.0
		}
		merged[k] = combined
	}

	out := make([]finding.Finding, 0, len(order))
	for _, k := range order {
		out = append(out, merged[k])
	}
	return out
}

// FilterByConfidence drops findings below threshold. After filtering, no
// finding with confidence < threshold remains — a one-pass property, not a
// fixpoint, since filtering never raises confidence.
func FilterByConfidence(findings []finding.Finding, threshold float64) []finding.Finding {
	out := make([]finding.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Confidence >= threshold {
			out = append(out, f)
		}
	}
	return out
}

// Sort orders findings by (severity desc, confidence desc, line_start asc)
// per spec §4.17.
func Sort(findings []finding.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity.Rank() != findings[j].Severity.Rank() {
			return findings[i].Severity.Rank() > findings[j].Severity.Rank()
		}
		if findings[i].Confidence != findings[j].Confidence {
			return findings[i].Confidence > findings[j].Confidence
		}
		return findings[i].LineStart < findings[j].LineStart
	})
}

// Cap truncates findings to max, assuming Sort has already been applied.
func Cap(findings []finding.Finding, max int) []finding.Finding {
	if max <= 0 || len(findings) <= max {
		return findings
	}
	return findings[:max]
}

// Verdict is the should_fail gate computed over the final finding set.
type Verdict struct {
	ShouldFail  bool     `json:"should_fail"`
	FailReasons []string `json:"fail_reasons"`
}

// Compute evaluates should_fail = any finding.severity >= fail_on_severity,
// OR any finding.id in fail_on_invariant_ids, AND not in
// allowlist_finding_ids. should_fail is monotone in fail_on_severity:
// lowering the threshold can only flip false->true, never the reverse,
// since AtLeast's rank comparison is monotone in the threshold's own rank.
func Compute(findings []finding.Finding, opts Options) Verdict {
	opts = opts.ResolveDefaults()
	allow := make(map[string]bool, len(opts.AllowlistFindingIDs))
	for _, id := range opts.AllowlistFindingIDs {
		allow[id] = true
	}
	failIDs := make(map[string]bool, len(opts.FailOnInvariantIDs))
	for _, id := range opts.FailOnInvariantIDs {
		failIDs[id] = true
	}

	v := Verdict{}
	for _, f := range findings {
		if allow[f.ID] {
			continue
		}
		bySeverity := f.Severity.AtLeast(opts.FailOnSeverity)
		byID := failIDs[f.ID]
		if bySeverity || byID {
			v.ShouldFail = true
			v.FailReasons = append(v.FailReasons, fmt.Sprintf("%s: %s (%s) at %s:%d", f.ID, f.Title, f.Severity, f.FilePath, f.LineStart))
		}
	}
	return v
}

// Pipeline runs the full C17 sequence: merge, filter, sort, cap, verdict.
func Pipeline(all []finding.Finding, opts Options) ([]finding.Finding, Verdict) {
	opts = opts.ResolveDefaults()
	merged := Merge(all)
	filtered := FilterByConfidence(merged, opts.ConfidenceThreshold)
	Sort(filtered)
	capped := Cap(filtered, opts.MaxFindings)
	v := Compute(capped, opts)
	return capped, v
}

// ToMarkdown renders a finding set as a Markdown summary — a derived
// projection of the in-memory result, not a separate source of truth.
func ToMarkdown(findings []finding.Finding, v Verdict) string {
	var b strings.Builder
	b.WriteString("# Review Findings\n\n")
	if v.ShouldFail {
		b.WriteString("**Verdict: FAIL**\n\n")
		for _, r := range v.FailReasons {
			b.WriteString("- " + r + "\n")
		}
		b.WriteString("\n")
	} else {
		b.WriteString("**Verdict: PASS**\n\n")
	}
	for _, f := range findings {
		b.WriteString(fmt.Sprintf("## [%s] %s\n\n%s:%d-%d — %s\n\n%s\n\n", f.Severity, f.Title, f.FilePath, f.LineStart, f.LineEnd, f.Source, f.Description))
	}
	return b.String()
}

// sarifResult is the minimal SARIF 2.1.0 shape needed to project findings.
type sarifResult struct {
	RuleID  string `json:"ruleId"`
	Level   string `json:"level"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifLocation struct {
	PhysicalLocation struct {
		ArtifactLocation struct {
			URI string `json:"uri"`
		} `json:"artifactLocation"`
		Region struct {
			StartLine int `json:"startLine"`
			EndLine   int `json:"endLine"`
		} `json:"region"`
	} `json:"physicalLocation"`
}

// SARIFDocument is the top-level log object of a SARIF 2.1.0 report.
type SARIFDocument struct {
	Version string      `json:"version"`
	Schema  string      `json:"$schema"`
	Runs    []sarifRun  `json:"runs"`
}

type sarifRun struct {
	Tool struct {
		Driver struct {
			Name string `json:"name"`
		} `json:"driver"`
	} `json:"tool"`
	Results []sarifResult `json:"results"`
}

// ToSARIF renders findings as a minimal SARIF 2.1.0 document.
func ToSARIF(findings []finding.Finding) SARIFDocument {
	doc := SARIFDocument{Version: "2.1.0", Schema: "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"}
	run := sarifRun{}
	run.Tool.Driver.Name = "review-pipeline"
	for _, f := range findings {
		res := sarifResult{RuleID: f.RuleID, Level: sarifLevel(f.Severity)}
		res.Message.Text = f.Title + ": " + f.Description
		loc := sarifLocation{}
		loc.PhysicalLocation.ArtifactLocation.URI = f.FilePath
		loc.PhysicalLocation.Region.StartLine = f.LineStart
		loc.PhysicalLocation.Region.EndLine = f.LineEnd
		res.Locations = []sarifLocation{loc}
		run.Results = append(run.Results, res)
	}
	doc.Runs = []sarifRun{run}
	return doc
}

func sarifLevel(s finding.Severity) string {
	switch s {
	case finding.SeverityCritical, finding.SeverityHigh:
		return "error"
	case finding.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}
