package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/history"
	"github.com/rishitank/context-engine-sub000/internal/plan"
	"github.com/rishitank/context-engine-sub000/internal/tools"
)

func registerPlanningTools(reg *tools.Registry, deps Dependencies) {
	reg.MustRegister(&tools.Tool{
		Name:        "create_plan",
		Description: "Draft a new implementation plan for a goal, grounded in a codebase search.",
		Category:    tools.CategoryPlanning,
		Schema: tools.ToolSchema{
			Required: []string{"goal"},
			Properties: map[string]tools.Property{
				"goal":          {Type: "string"},
				"context_query": {Type: "string", Description: "search query used to ground the plan; defaults to goal"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			goal, err := argStringRequired(args, "goal")
			if err != nil {
				return "", err
			}
			p, derr := synthesizePlan(ctx, deps.Retrieval, goal, argString(args, "context_query"), nil, "")
			return errFromDaemonerr(p, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "refine_plan",
		Description: "Revise an existing plan in response to feedback.",
		Category:    tools.CategoryPlanning,
		Schema: tools.ToolSchema{
			Required: []string{"plan_id", "feedback"},
			Properties: map[string]tools.Property{
				"plan_id":  {Type: "string"},
				"feedback": {Type: "string"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			planID, err := argStringRequired(args, "plan_id")
			if err != nil {
				return "", err
			}
			feedback, err := argStringRequired(args, "feedback")
			if err != nil {
				return "", err
			}
			existing, derr := deps.Plans.Load(planID)
			if derr != nil {
				return "", derr
			}
			p, derr := synthesizePlan(ctx, deps.Retrieval, existing.Goal, existing.Goal, existing, feedback)
			return errFromDaemonerr(p, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "visualize_plan",
		Description: "Render a plan's step DAG and metadata as markdown.",
		Category:    tools.CategoryPlanning,
		Schema: tools.ToolSchema{
			Required:   []string{"plan_id"},
			Properties: map[string]tools.Property{"plan_id": {Type: "string"}},
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
			return renderPlan(p), nil
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "save_plan",
		Description: "Persist a plan (as JSON) to the Plan Store, creating or overwriting its index entry.",
		Category:    tools.CategoryPlanning,
		Schema: tools.ToolSchema{
			Required: []string{"plan"},
			Properties: map[string]tools.Property{
				"plan":      {Type: "string", Description: "plan JSON object"},
				"name":      {Type: "string"},
				"tags":      {Type: "array", Items: &tools.PropertyItems{Type: "string"}},
				"overwrite": {Type: "boolean"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			raw, err := argStringRequired(args, "plan")
			if err != nil {
				return "", err
			}
			var p plan.Plan
			if jerr := json.Unmarshal([]byte(raw), &p); jerr != nil {
				return "", daemonerr.Newf(daemonerr.InvalidInput, "invalid plan JSON: %v", jerr)
			}
			saved, derr := deps.Plans.Save(&p, plan.SaveOptions{
				Name:      argString(args, "name"),
				Tags:      argStringSlice(args, "tags"),
				Overwrite: argBool(args, "overwrite"),
			})
			if derr != nil {
				return "", derr
			}
			deps.History.Append(saved.ID, history.ChangeCreated, "plan saved", saved)
			return asJSON(saved)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "load_plan",
		Description: "Load a plan by id or name.",
		Category:    tools.CategoryPlanning,
		Schema: tools.ToolSchema{
			Required:   []string{"id"},
			Properties: map[string]tools.Property{"id": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id, err := argStringRequired(args, "id")
			if err != nil {
				return "", err
			}
			p, derr := deps.Plans.Load(id)
			return errFromDaemonerr(p, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "list_plans",
		Description: "List plan index entries, optionally filtered by status or tags.",
		Category:    tools.CategoryPlanning,
		Schema: tools.ToolSchema{
			Properties: map[string]tools.Property{
				"status": {Type: "string"},
				"tags":   {Type: "array", Items: &tools.PropertyItems{Type: "string"}},
				"limit":  {Type: "integer"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			entries, derr := deps.Plans.List(plan.ListFilter{
				Status: argString(args, "status"),
				Tags:   argStringSlice(args, "tags"),
				Limit:  argInt(args, "limit", 0),
			})
			return errFromDaemonerr(entries, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "delete_plan",
		Description: "Delete a plan's file and index entry.",
		Category:    tools.CategoryPlanning,
		Schema: tools.ToolSchema{
			Required:   []string{"id"},
			Properties: map[string]tools.Property{"id": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id, err := argStringRequired(args, "id")
			if err != nil {
				return "", err
			}
			if derr := deps.Plans.Delete(id); derr != nil {
				return "", derr
			}
			return asJSON(map[string]string{"status": "deleted", "id": id})
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "view_history",
		Description: "List every recorded version for a plan.",
		Category:    tools.CategoryPlanning,
		Schema: tools.ToolSchema{
			Required:   []string{"plan_id"},
			Properties: map[string]tools.Property{"plan_id": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			planID, err := argStringRequired(args, "plan_id")
			if err != nil {
				return "", err
			}
			return asJSON(deps.History.Versions(planID))
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "compare_plan_versions",
		Description: "Compute a structural diff between two recorded plan versions.",
		Category:    tools.CategoryPlanning,
		Schema: tools.ToolSchema{
			Required: []string{"plan_id", "from", "to"},
			Properties: map[string]tools.Property{
				"plan_id": {Type: "string"},
				"from":    {Type: "integer"},
				"to":      {Type: "integer"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			planID, err := argStringRequired(args, "plan_id")
			if err != nil {
				return "", err
			}
			diff, derr := deps.History.CompareVersions(planID, argInt(args, "from", 0), argInt(args, "to", 0))
			return errFromDaemonerr(diff, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "rollback_plan",
		Description: "Restore a plan to a previous version, recording a rolled_back history entry.",
		Category:    tools.CategoryPlanning,
		Schema: tools.ToolSchema{
			Required: []string{"plan_id", "version"},
			Properties: map[string]tools.Property{
				"plan_id": {Type: "string"},
				"version": {Type: "integer"},
				"reason":  {Type: "string"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			planID, err := argStringRequired(args, "plan_id")
			if err != nil {
				return "", err
			}
			p, derr := deps.History.RollbackPlan(planID, argInt(args, "version", 0), argString(args, "reason"))
			return errFromDaemonerr(p, derr)
		},
	})
}
