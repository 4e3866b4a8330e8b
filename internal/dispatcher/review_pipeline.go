package dispatcher

import (
	"context"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/diffparse"
	"github.com/rishitank/context-engine-sub000/internal/finding"
	"github.com/rishitank/context-engine-sub000/internal/invariants"
	"github.com/rishitank/context-engine-sub000/internal/llmreview"
	"github.com/rishitank/context-engine-sub000/internal/staticanalysis"
	"github.com/rishitank/context-engine-sub000/internal/verdict"
)

// reviewResult is the shared shape returned by review_changes, review_git_diff,
// review_diff, and review_auto: the deterministic preflight plus every
// finding surviving the merge/verdict pass.
type reviewResult struct {
	Preflight *diffparse.Preflight `json:"preflight"`
	Findings  []finding.Finding    `json:"findings"`
	Verdict   verdict.Verdict      `json:"verdict"`
}

// runReviewPipeline composes C13 (preflight) -> C14 (invariants) -> C15
// (static analysis) -> C16 (LLM review, risk-gated) -> C17 (merge/verdict)
// over one unified diff, the same stage order internal/reactive's reviewStep
// runs per-file, but applied once to the whole diff text.
func runReviewPipeline(ctx context.Context, deps Dependencies, diffText string) (*reviewResult, *daemonerr.Error) {
	files, derr := diffparse.Parse(diffText)
	if derr != nil {
		return nil, derr
	}

	pf := diffparse.RunPreflight(files, deps.Review.HotspotGlobs, deps.Review.RiskPatterns)

	var changedFiles []string
	for _, f := range files {
		path := f.NewPath
		if path == "" || path == "/dev/null" {
			path = f.OldPath
		}
		changedFiles = append(changedFiles, path)
	}

	var all []finding.Finding

	invFindings, ierr := invariants.CheckInvariants(deps.InvariantsPath, files, invariants.DefaultOptions())
	if ierr != nil {
		return nil, ierr
	}
	all = append(all, invFindings...)

	if len(deps.Analyzers) > 0 {
		results, _ := staticanalysis.Run(ctx, deps.Analyzers, changedFiles, staticanalysis.Options{
			Timeout:    deps.Review.StaticAnalyzerTimeout,
			FindingCap: deps.Review.MaxFindingsPerAnalyzer,
		})
		for _, r := range results {
			all = append(all, r.Findings...)
		}
	}

	if deps.LLM != nil && pf.RiskScore >= deps.Review.RiskThreshold {
		llmFindings, _, lerr := deps.LLM.Review(ctx, diffText, files, pf.RiskScore, llmreview.Options{
			RiskThreshold:   deps.Review.RiskThreshold,
			TwoPass:         deps.Review.TwoPass,
			MaxContextFiles: deps.Review.MaxContextFiles,
			TokenBudget:     deps.Review.TokenBudget,
		})
		if lerr == nil {
			all = append(all, llmFindings...)
		}
	}

	merged, v := verdict.Pipeline(all, verdict.Options{
		ConfidenceThreshold: deps.Review.ConfidenceThreshold,
		MaxFindings:         deps.Review.MaxFindings,
		FailOnSeverity:      finding.Severity(deps.Review.FailOnSeverity),
		FailOnInvariantIDs:  deps.Review.FailOnInvariantIDs,
		AllowlistFindingIDs: deps.Review.AllowlistFindingIDs,
	})

	return &reviewResult{Preflight: pf, Findings: merged, Verdict: v}, nil
}
