// Package llmreview implements the LLM Review Orchestrator (C16): an
// opt-in, risk-gated two-pass LLM pass over a diff, producing findings in
// the common shape alongside the deterministic C13-C15 sources.
package llmreview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/diffparse"
	"github.com/rishitank/context-engine-sub000/internal/finding"
	"github.com/rishitank/context-engine-sub000/internal/logging"
)

// Asker is the subset of the Retrieval Service the LLM review orchestrator
// needs: a single search+prompt round trip.
type Asker interface {
	SearchAndAsk(ctx context.Context, query, prompt string) (string, *daemonerr.Error)
}

// Options tunes a review run; zero values resolve to spec defaults via
// ResolveDefaults.
type Options struct {
	RiskThreshold   int
	LLMForce        bool
	TwoPass         bool
	MaxContextFiles int
	TokenBudget     int
}

// ResolveDefaults fills unset fields with spec §4.16 defaults.
func (o Options) ResolveDefaults() Options {
	if o.RiskThreshold == 0 {
		o.RiskThreshold = 3
	}
	if o.MaxContextFiles == 0 {
		o.MaxContextFiles = 5
	}
	if o.TokenBudget == 0 {
		o.TokenBudget = 8000
	}
	return o
}

// Stats reports the timings the spec requires per pass.
type Stats struct {
	TimingsMs map[string]int64 `json:"timings_ms"`
}

// rawFinding is the shape the LLM is asked to emit, before Finding enrichment.
type rawFinding struct {
	Category    string  `json:"category"`
	Severity    string  `json:"severity"`
	Confidence  float64 `json:"confidence"`
	FilePath    string  `json:"file_path"`
	LineStart   int     `json:"line_start"`
	LineEnd     int     `json:"line_end"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Suggestion  string  `json:"suggestion,omitempty"`
}

// Orchestrator runs the two-pass review against an Asker collaborator.
type Orchestrator struct {
	asker Asker
}

// New builds an Orchestrator.
func New(asker Asker) *Orchestrator {
	return &Orchestrator{asker: asker}
}

// Review runs structural and (if enabled) detailed passes, gated by risk
// score unless llm_force overrides the gate. Returns nil findings, empty
// stats and a nil error when the gate is not met — that is not an error, it's spec'd behavior.
func (o *Orchestrator) Review(ctx context.Context, diffText string, files []diffparse.FileDiff, riskScore int, opts Options) ([]finding.Finding, *Stats, *daemonerr.Error) {
	opts = opts.ResolveDefaults()
	stats := &Stats{TimingsMs: map[string]int64{}}

	if riskScore < opts.RiskThreshold && !opts.LLMForce {
		logging.LLMReview("skipping LLM review: risk_score=%d below threshold=%d", riskScore, opts.RiskThreshold)
		return nil, stats, nil
	}

	structStart := time.Now()
	structural, err := o.runPass(ctx, diffText, files, nil, finding.SourceLLMStructural, opts)
	stats.TimingsMs["llm_structural"] = time.Since(structStart).Milliseconds()
	if err != nil {
		return nil, stats, err
	}

	all := structural
	if opts.TwoPass {
		detailStart := time.Now()
		detailed, err := o.runPass(ctx, diffText, files, structural, finding.SourceLLMDetailed, opts)
		stats.TimingsMs["llm_detailed"] = time.Since(detailStart).Milliseconds()
		if err != nil {
			return all, stats, err
		}
		all = append(all, detailed...)
	}

	return all, stats, nil
}

// runPass builds the prompt for one pass, queries the Asker, and parses its
// answer into Findings tagged with source.
func (o *Orchestrator) runPass(ctx context.Context, diffText string, files []diffparse.FileDiff, seeds []finding.Finding, source finding.Source, opts Options) ([]finding.Finding, *daemonerr.Error) {
	prompt := buildPrompt(diffText, files, seeds, opts)
	answer, err := o.asker.SearchAndAsk(ctx, diffText, prompt)
	if err != nil {
		return nil, err
	}
	raws := parseFindings(answer)
	out := make([]finding.Finding, 0, len(raws))
	for _, r := range raws {
		sev := finding.Severity(strings.ToUpper(r.Severity))
		if sev == "" {
			sev = finding.SeverityMedium
		}
		conf := r.Confidence
		if conf <= 0 {
			conf = 0.6
		}
		if conf > 1 {
			conf = 1
		}
		out = append(out, finding.Finding{
			ID:          finding.StableID(r.FilePath, r.LineStart, r.LineEnd, r.Title),
			Category:    r.Category,
			Severity:    sev,
			Priority:    finding.PriorityForSeverity(sev),
			Confidence:  conf,
			FilePath:    r.FilePath,
			LineStart:   r.LineStart,
			LineEnd:     r.LineEnd,
			Title:       r.Title,
			Description: r.Description,
			Suggestion:  r.Suggestion,
			Source:      source,
		})
	}
	return out, nil
}

// buildPrompt assembles the review prompt: the diff itself, up to
// max_context_files touched file paths as lightweight context, and — on the
// detailed pass — the structural findings as seeds for a deeper dive.
func buildPrompt(diffText string, files []diffparse.FileDiff, seeds []finding.Finding, opts Options) string {
	var b strings.Builder
	b.WriteString("Review the following diff and report findings as a JSON array of objects ")
	b.WriteString("with fields {category, severity, confidence, file_path, line_start, line_end, title, description, suggestion}.\n\n")

	touched := 0
	for _, f := range files {
		if touched >= opts.MaxContextFiles {
			break
		}
		path := f.NewPath
		if path == "" {
			path = f.OldPath
		}
		b.WriteString("File: " + path + "\n")
		touched++
	}

	if len(seeds) > 0 {
		b.WriteString("\nStructural findings to investigate further:\n")
		for _, s := range seeds {
			b.WriteString(fmt.Sprintf("- [%s] %s:%d %s\n", s.Severity, s.FilePath, s.LineStart, s.Title))
		}
	}

	b.WriteString("\nDiff:\n")
	diff := diffText
	if len(diff) > opts.TokenBudget*4 {
		diff = diff[:opts.TokenBudget*4]
	}
	b.WriteString(diff)
	return b.String()
}

// parseFindings tolerates a plain-text, non-JSON answer by returning no
// findings rather than erroring — matching the execution package's
// search_and_ask degenerate-answer handling.
func parseFindings(answer string) []rawFinding {
	start := strings.Index(answer, "[")
	end := strings.LastIndex(answer, "]")
	if start < 0 || end < start {
		return nil
	}
	var raws []rawFinding
	if err := json.Unmarshal([]byte(answer[start:end+1]), &raws); err != nil {
		return nil
	}
	return raws
}
