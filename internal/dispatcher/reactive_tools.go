package dispatcher

import (
	"context"

	"github.com/rishitank/context-engine-sub000/internal/reactive"
	"github.com/rishitank/context-engine-sub000/internal/tools"
)

func registerReactiveTools(reg *tools.Registry, deps Dependencies) {
	reg.MustRegister(&tools.Tool{
		Name:        "reactive_review_pr",
		Description: "Start a background reactive review session over a PR's changed files.",
		Category:    tools.CategoryReactive,
		Schema: tools.ToolSchema{
			Required: []string{"commit_hash", "changed_files"},
			Properties: map[string]tools.Property{
				"commit_hash":   {Type: "string"},
				"base_ref":      {Type: "string"},
				"changed_files": {Type: "array", Items: &tools.PropertyItems{Type: "string"}},
				"title":         {Type: "string"},
				"author":        {Type: "string"},
				"parallel":      {Type: "boolean"},
				"max_workers":   {Type: "integer"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			commitHash, err := argStringRequired(args, "commit_hash")
			if err != nil {
				return "", err
			}
			changed := argStringSlice(args, "changed_files")
			if len(changed) == 0 {
				return "", missingArg("changed_files")
			}
			sessionID, derr := deps.Reactive.ReactiveReviewPR(ctx, reactive.Request{
				CommitHash:   commitHash,
				BaseRef:      argString(args, "base_ref"),
				ChangedFiles: changed,
				Title:        argString(args, "title"),
				Author:       argString(args, "author"),
				Parallel:     argBool(args, "parallel"),
				MaxWorkers:   argInt(args, "max_workers", 0),
			})
			if derr != nil {
				return "", derr
			}
			return asJSON(map[string]string{"session_id": sessionID})
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "get_review_status",
		Description: "Report a reactive review session's state, progress, and finding count.",
		Category:    tools.CategoryReactive,
		Schema: tools.ToolSchema{
			Required:   []string{"session_id"},
			Properties: map[string]tools.Property{"session_id": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			sessionID, err := argStringRequired(args, "session_id")
			if err != nil {
				return "", err
			}
			status, derr := deps.Reactive.GetReviewStatus(sessionID)
			return errFromDaemonerr(status, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "get_review_telemetry",
		Description: "Report a reactive review session's per-step timings and cache/token metrics.",
		Category:    tools.CategoryReactive,
		Schema: tools.ToolSchema{
			Required:   []string{"session_id"},
			Properties: map[string]tools.Property{"session_id": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			sessionID, err := argStringRequired(args, "session_id")
			if err != nil {
				return "", err
			}
			telemetry, derr := deps.Reactive.GetReviewTelemetry(sessionID)
			return errFromDaemonerr(telemetry, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "pause_review",
		Description: "Request that a running reactive review session pause after its in-flight steps.",
		Category:    tools.CategoryReactive,
		Schema: tools.ToolSchema{
			Required:   []string{"session_id"},
			Properties: map[string]tools.Property{"session_id": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			sessionID, err := argStringRequired(args, "session_id")
			if err != nil {
				return "", err
			}
			if derr := deps.Reactive.PauseReview(sessionID); derr != nil {
				return "", derr
			}
			return asJSON(map[string]string{"status": "pause_requested"})
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "resume_review",
		Description: "Resume a paused reactive review session.",
		Category:    tools.CategoryReactive,
		Schema: tools.ToolSchema{
			Required: []string{"session_id", "commit_hash", "changed_files"},
			Properties: map[string]tools.Property{
				"session_id":    {Type: "string"},
				"commit_hash":   {Type: "string"},
				"base_ref":      {Type: "string"},
				"changed_files": {Type: "array", Items: &tools.PropertyItems{Type: "string"}},
				"parallel":      {Type: "boolean"},
				"max_workers":   {Type: "integer"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			sessionID, err := argStringRequired(args, "session_id")
			if err != nil {
				return "", err
			}
			commitHash, err := argStringRequired(args, "commit_hash")
			if err != nil {
				return "", err
			}
			req := reactive.Request{
				CommitHash:   commitHash,
				BaseRef:      argString(args, "base_ref"),
				ChangedFiles: argStringSlice(args, "changed_files"),
				Parallel:     argBool(args, "parallel"),
				MaxWorkers:   argInt(args, "max_workers", 0),
			}
			if derr := deps.Reactive.ResumeReview(ctx, sessionID, req, argInt(args, "max_workers", 0)); derr != nil {
				return "", derr
			}
			return asJSON(map[string]string{"status": "resumed"})
		},
	})
}
