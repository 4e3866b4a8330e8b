package dispatcher

import (
	"context"

	"github.com/rishitank/context-engine-sub000/internal/approval"
	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/execution"
	"github.com/rishitank/context-engine-sub000/internal/tools"
)

func registerExecutionTools(reg *tools.Registry, deps Dependencies) {
	reg.MustRegister(&tools.Tool{
		Name:        "execute_plan",
		Description: "Run a plan's steps under single_step, all_ready, or full_plan scheduling.",
		Category:    tools.CategoryExecution,
		Schema: tools.ToolSchema{
			Required: []string{"plan_id", "mode"},
			Properties: map[string]tools.Property{
				"plan_id":            {Type: "string"},
				"mode":               {Type: "string", Enum: []any{"single_step", "all_ready", "full_plan"}},
				"step_number":        {Type: "integer"},
				"apply_changes":      {Type: "boolean"},
				"max_steps":          {Type: "integer"},
				"stop_on_failure":    {Type: "boolean"},
				"additional_context": {Type: "string"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			planID, err := argStringRequired(args, "plan_id")
			if err != nil {
				return "", err
			}
			mode, err := argStringRequired(args, "mode")
			if err != nil {
				return "", err
			}
			automatic := mode == string(execution.ModeAllReady) || mode == string(execution.ModeFullPlan)
			if automatic && deps.RequireApprovalAuto && !deps.Approvals.IsPlanApproved(planID) {
				return "", daemonerr.New(daemonerr.ApprovalStateConflict, "plan is not approved for automatic execution")
			}
			res, derr := deps.Execution.ExecutePlan(ctx, planID, execution.ExecuteOptions{
				Mode:              execution.Mode(mode),
				StepNumber:        argInt(args, "step_number", 0),
				ApplyChanges:      argBool(args, "apply_changes"),
				MaxSteps:          argInt(args, "max_steps", 0),
				StopOnFailure:     argBool(args, "stop_on_failure"),
				AdditionalContext: argString(args, "additional_context"),
			})
			return errFromDaemonerr(res, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "request_approval",
		Description: "Request approval for a plan or a subset of its steps.",
		Category:    tools.CategoryExecution,
		Schema: tools.ToolSchema{
			Required: []string{"plan_id"},
			Properties: map[string]tools.Property{
				"plan_id":      {Type: "string"},
				"step_numbers": {Type: "array", Items: &tools.PropertyItems{Type: "integer"}},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			planID, err := argStringRequired(args, "plan_id")
			if err != nil {
				return "", err
			}
			p, derr := deps.Plans.Load(planID)
			if derr != nil {
				return "", derr
			}
			req := deps.Approvals.RequestApproval(p, argIntSlice(args, "step_numbers"))
			return asJSON(req)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "respond_approval",
		Description: "Respond to a pending approval request: approve, reject, or request changes.",
		Category:    tools.CategoryExecution,
		Schema: tools.ToolSchema{
			Required: []string{"request_id", "action"},
			Properties: map[string]tools.Property{
				"request_id": {Type: "string"},
				"action":     {Type: "string", Enum: []any{"approve", "reject", "request_changes"}},
				"comments":   {Type: "string"},
				"actor":      {Type: "string"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			requestID, err := argStringRequired(args, "request_id")
			if err != nil {
				return "", err
			}
			action, err := argStringRequired(args, "action")
			if err != nil {
				return "", err
			}
			req, derr := deps.Approvals.RespondApproval(requestID, approval.Action(action), argString(args, "comments"), argString(args, "actor"))
			return errFromDaemonerr(req, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "start_step",
		Description: "Run a single ready step, generating and optionally applying its change set.",
		Category:    tools.CategoryExecution,
		Schema: tools.ToolSchema{
			Required: []string{"plan_id", "step_number"},
			Properties: map[string]tools.Property{
				"plan_id":            {Type: "string"},
				"step_number":        {Type: "integer"},
				"apply_changes":      {Type: "boolean"},
				"additional_context": {Type: "string"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			planID, err := argStringRequired(args, "plan_id")
			if err != nil {
				return "", err
			}
			st, derr := deps.Execution.StartStep(ctx, planID, argInt(args, "step_number", 0), argBool(args, "apply_changes"), argString(args, "additional_context"))
			return errFromDaemonerr(st, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "complete_step",
		Description: "Mark a ready step completed (for steps executed outside the change-set flow, e.g. reactive review).",
		Category:    tools.CategoryExecution,
		Schema: tools.ToolSchema{
			Required: []string{"plan_id", "step_number"},
			Properties: map[string]tools.Property{
				"plan_id":     {Type: "string"},
				"step_number": {Type: "integer"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			planID, err := argStringRequired(args, "plan_id")
			if err != nil {
				return "", err
			}
			st, derr := deps.Execution.CompleteStep(ctx, planID, argInt(args, "step_number", 0), "", false)
			return errFromDaemonerr(st, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "fail_step",
		Description: "Mark a ready step failed with a reason, tripping the circuit breaker on repeated failures. With skip_dependents=true, every transitive dependent is recursively marked skipped; otherwise transitive dependents that can never become ready are marked blocked.",
		Category:    tools.CategoryExecution,
		Schema: tools.ToolSchema{
			Required: []string{"plan_id", "step_number", "reason"},
			Properties: map[string]tools.Property{
				"plan_id":         {Type: "string"},
				"step_number":     {Type: "integer"},
				"reason":          {Type: "string"},
				"skip_dependents": {Type: "boolean"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			planID, err := argStringRequired(args, "plan_id")
			if err != nil {
				return "", err
			}
			reason, err := argStringRequired(args, "reason")
			if err != nil {
				return "", err
			}
			st, derr := deps.Execution.CompleteStep(ctx, planID, argInt(args, "step_number", 0), reason, argBool(args, "skip_dependents"))
			return errFromDaemonerr(st, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "view_progress",
		Description: "Report every tracked step's state for a plan.",
		Category:    tools.CategoryExecution,
		Schema: tools.ToolSchema{
			Required:   []string{"plan_id"},
			Properties: map[string]tools.Property{"plan_id": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			planID, err := argStringRequired(args, "plan_id")
			if err != nil {
				return "", err
			}
			progress, derr := deps.Execution.Progress(planID)
			return errFromDaemonerr(progress, derr)
		},
	})
}
