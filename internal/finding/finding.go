// Package finding defines the Review finding shape shared by every stage of
// the Review Pipeline Core (C13-C17): the invariants engine, static analyzer
// adapters, the LLM review orchestrator, and the finding merger.
package finding

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Severity ranks a finding's impact.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// severityRank orders severities for comparison; higher is worse.
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns s's ordinal, for use in >= comparisons against a threshold.
func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is at least as severe as threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Rank() >= threshold.Rank()
}

// Priority is the P0..P3 urgency band surfaced alongside severity.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// PriorityForSeverity maps a severity onto its default priority band.
func PriorityForSeverity(s Severity) Priority {
	switch s {
	case SeverityCritical:
		return PriorityP0
	case SeverityHigh:
		return PriorityP1
	case SeverityMedium:
		return PriorityP2
	default:
		return PriorityP3
	}
}

// Source names which pipeline stage produced a finding.
type Source string

const (
	SourcePreflight      Source = "preflight"
	SourceInvariant      Source = "invariant"
	SourceStaticPrefix   Source = "static:"
	SourceLLMStructural  Source = "llm:structural"
	SourceLLMDetailed    Source = "llm:detailed"
)

// StaticSource builds the "static:<analyzer>" source tag for an adapter.
func StaticSource(analyzer string) Source {
	return Source(string(SourceStaticPrefix) + analyzer)
}

// Finding is the spec §3 "Review finding" record.
type Finding struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Priority    Priority `json:"priority"`
	Confidence  float64  `json:"confidence"`
	FilePath    string   `json:"file_path"`
	LineStart   int      `json:"line_start"`
	LineEnd     int      `json:"line_end"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
	CodeSnippet string   `json:"code_snippet,omitempty"`
	Source      Source   `json:"source"`
	RuleID      string   `json:"rule_id,omitempty"`
}

// StableID computes the spec-required "stable hash of file+line_range+rule"
// identifier for a finding.
func StableID(filePath string, lineStart, lineEnd int, ruleID string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d-%d:%s", filePath, lineStart, lineEnd, ruleID)))
	return hex.EncodeToString(h[:])[:16]
}

// NormalizedRuleID is the dedup key's rule component: category-qualified so
// identical patterns from different invariant categories don't collide.
func NormalizedRuleID(category, ruleID string) string {
	return category + "/" + ruleID
}
