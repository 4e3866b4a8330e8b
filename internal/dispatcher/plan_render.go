package dispatcher

import (
	"fmt"
	"strings"

	"github.com/rishitank/context-engine-sub000/internal/plan"
)

// renderPlan renders a plan's goal, scope, and step DAG as markdown for
// visualize_plan. Deterministic, no LLM involved.
func renderPlan(p *plan.Plan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", firstNonEmptyPlanTitle(p))
	fmt.Fprintf(&b, "**Goal:** %s\n\n", p.Goal)

	if len(p.Scope.Included) > 0 {
		fmt.Fprintf(&b, "**In scope:** %s\n\n", strings.Join(p.Scope.Included, ", "))
	}
	if len(p.Scope.Excluded) > 0 {
		fmt.Fprintf(&b, "**Out of scope:** %s\n\n", strings.Join(p.Scope.Excluded, ", "))
	}

	b.WriteString("## Steps\n\n")
	for _, step := range p.Steps {
		deps := "none"
		if len(step.DependsOn) > 0 {
			deps = fmt.Sprintf("%v", step.DependsOn)
		}
		fmt.Fprintf(&b, "- **#%d %s** (%s, depends_on=%s)\n", step.StepNumber, step.Title, step.Priority, deps)
		if step.Description != "" {
			fmt.Fprintf(&b, "  %s\n", step.Description)
		}
	}

	if p.DependencyGraph != nil {
		b.WriteString("\n## Execution order\n\n")
		fmt.Fprintf(&b, "%v\n", p.DependencyGraph.ExecutionOrder)
		if len(p.DependencyGraph.ParallelGroups) > 0 {
			b.WriteString("\n## Parallel groups\n\n")
			for i, group := range p.DependencyGraph.ParallelGroups {
				fmt.Fprintf(&b, "%d. %v\n", i+1, group)
			}
		}
	}

	return b.String()
}

func firstNonEmptyPlanTitle(p *plan.Plan) string {
	if p.Name != "" {
		return p.Name
	}
	if p.Goal != "" {
		return p.Goal
	}
	return p.ID
}
