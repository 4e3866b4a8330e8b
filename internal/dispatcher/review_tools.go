package dispatcher

import (
	"context"
	"os/exec"
	"regexp"
	"strings"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/diffparse"
	"github.com/rishitank/context-engine-sub000/internal/invariants"
	"github.com/rishitank/context-engine-sub000/internal/staticanalysis"
	"github.com/rishitank/context-engine-sub000/internal/tools"
)

func registerReviewTools(reg *tools.Registry, deps Dependencies) {
	reg.MustRegister(&tools.Tool{
		Name:        "review_diff",
		Description: "Run the full review pipeline (preflight, invariants, static analysis, LLM review, verdict) over a literal unified diff.",
		Category:    tools.CategoryReview,
		Schema: tools.ToolSchema{
			Required:   []string{"diff"},
			Properties: map[string]tools.Property{"diff": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			diffText, err := argStringRequired(args, "diff")
			if err != nil {
				return "", err
			}
			res, derr := runReviewPipeline(ctx, deps, diffText)
			return errFromDaemonerr(res, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "review_git_diff",
		Description: "Run the full review pipeline over `git diff <base>..<commit>` for the working repository.",
		Category:    tools.CategoryReview,
		Schema: tools.ToolSchema{
			Required: []string{"commit"},
			Properties: map[string]tools.Property{
				"base_ref": {Type: "string"},
				"commit":   {Type: "string"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			commit, err := argStringRequired(args, "commit")
			if err != nil {
				return "", err
			}
			diffText, gerr := gitDiffRange(ctx, argString(args, "base_ref"), commit)
			if gerr != nil {
				return "", daemonerr.Newf(daemonerr.Internal, "git diff failed: %v", gerr)
			}
			res, derr := runReviewPipeline(ctx, deps, diffText)
			return errFromDaemonerr(res, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "review_changes",
		Description: "Run the full review pipeline over the working tree's uncommitted changes (`git diff HEAD`).",
		Category:    tools.CategoryReview,
		Schema:      tools.ToolSchema{Properties: map[string]tools.Property{}},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			diffText, gerr := gitDiffRange(ctx, "", "HEAD")
			if gerr != nil {
				return "", daemonerr.Newf(daemonerr.Internal, "git diff failed: %v", gerr)
			}
			res, derr := runReviewPipeline(ctx, deps, diffText)
			return errFromDaemonerr(res, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "review_auto",
		Description: "Review a literal diff if provided, else fall back to the working tree's uncommitted changes.",
		Category:    tools.CategoryReview,
		Schema: tools.ToolSchema{
			Properties: map[string]tools.Property{"diff": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			diffText := argString(args, "diff")
			if diffText == "" {
				var gerr error
				diffText, gerr = gitDiffRange(ctx, "", "HEAD")
				if gerr != nil {
					return "", daemonerr.Newf(daemonerr.Internal, "git diff failed: %v", gerr)
				}
			}
			res, derr := runReviewPipeline(ctx, deps, diffText)
			return errFromDaemonerr(res, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "check_invariants",
		Description: "Evaluate ./.review-invariants.yml against a literal unified diff, with no static analysis or LLM pass.",
		Category:    tools.CategoryReview,
		Schema: tools.ToolSchema{
			Required:   []string{"diff"},
			Properties: map[string]tools.Property{"diff": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			diffText, err := argStringRequired(args, "diff")
			if err != nil {
				return "", err
			}
			files, derr := diffparse.Parse(diffText)
			if derr != nil {
				return "", derr
			}
			findings, derr := invariants.CheckInvariants(deps.InvariantsPath, files, invariants.DefaultOptions())
			return errFromDaemonerr(findings, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "run_static_analysis",
		Description: "Run every configured static analyzer adapter over the named files.",
		Category:    tools.CategoryReview,
		Schema: tools.ToolSchema{
			Required: []string{"files"},
			Properties: map[string]tools.Property{
				"files": {Type: "array", Items: &tools.PropertyItems{Type: "string"}},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			files := argStringSlice(args, "files")
			if len(files) == 0 {
				return "", missingArg("files")
			}
			results, fileErrs := staticanalysis.Run(ctx, deps.Analyzers, files, staticanalysis.Options{
				Timeout:    deps.Review.StaticAnalyzerTimeout,
				FindingCap: deps.Review.MaxFindingsPerAnalyzer,
			})
			return asJSON(map[string]any{"results": results, "errors": fileErrs})
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "scrub_secrets",
		Description: "Scan text for hardcoded-secret patterns and return a copy with matches redacted.",
		Category:    tools.CategoryReview,
		Schema: tools.ToolSchema{
			Required:   []string{"content"},
			Properties: map[string]tools.Property{"content": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			content, err := argStringRequired(args, "content")
			if err != nil {
				return "", err
			}
			scrubbed, matches := scrubSecrets(content)
			return asJSON(map[string]any{"scrubbed": scrubbed, "matches_found": matches})
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "validate_content",
		Description: "Check that content is non-empty and within the configured size limit.",
		Category:    tools.CategoryReview,
		Schema: tools.ToolSchema{
			Required: []string{"content"},
			Properties: map[string]tools.Property{
				"content":   {Type: "string"},
				"max_bytes": {Type: "integer", Default: 1 << 20},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			content := argString(args, "content")
			maxBytes := argInt(args, "max_bytes", 1<<20)
			if content == "" {
				return "", daemonerr.New(daemonerr.InvalidInput, "content must not be empty")
			}
			if len(content) > maxBytes {
				return "", daemonerr.Newf(daemonerr.FileTooLarge, "content is %d bytes, exceeds limit of %d", len(content), maxBytes)
			}
			return asJSON(map[string]any{"valid": true, "bytes": len(content)})
		},
	})
}

// gitDiffRange shells out to `git diff`, the same exec.CommandContext idiom
// internal/reactive's GitDiffProvider uses, over the whole working tree
// rather than one file.
func gitDiffRange(ctx context.Context, baseRef, commit string) (string, error) {
	rangeArg := commit
	if baseRef != "" {
		rangeArg = baseRef + ".." + commit
	}
	cmd := exec.CommandContext(ctx, "git", "diff", rangeArg)
	out, err := cmd.Output()
	return string(out), err
}

// secretPatterns mirrors internal/staticanalysis's hardcoded-secret pattern
// rules, reused here for scrub_secrets rather than as a finding-producing
// analyzer pass.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*['"][^'"]{8,}['"]`),
	regexp.MustCompile(`(?i)-----BEGIN [A-Z ]*PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)AKIA[0-9A-Z]{16}`),
}

func scrubSecrets(content string) (string, int) {
	matches := 0
	out := content
	for _, pattern := range secretPatterns {
		out = pattern.ReplaceAllStringFunc(out, func(m string) string {
			matches++
			return strings.Repeat("*", len(m))
		})
	}
	return out, matches
}
