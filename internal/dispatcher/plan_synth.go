package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/plan"
	"github.com/rishitank/context-engine-sub000/internal/retrieval"
)

// synthesizePlan asks the engine (via SearchAndAsk, the same collaborator
// the Execution Tracker uses to turn a step into a change set) to produce a
// structured plan.Plan as JSON, grounded in a codebase search for
// contextQuery. refining, when non-nil, is folded into the prompt so the
// model revises an existing plan instead of drafting one from scratch.
func synthesizePlan(ctx context.Context, svc *retrieval.Service, goal, contextQuery string, refining *plan.Plan, feedback string) (*plan.Plan, *daemonerr.Error) {
	if contextQuery == "" {
		contextQuery = goal
	}

	prompt := buildPlanPrompt(goal, refining, feedback)
	answer, derr := svc.SearchAndAsk(ctx, contextQuery, prompt)
	if derr != nil {
		return nil, derr
	}

	raw := extractJSONObject(answer)
	if raw == "" {
		return nil, daemonerr.New(daemonerr.EngineUnavailable, "plan synthesis returned no parseable JSON")
	}

	var p plan.Plan
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, daemonerr.Newf(daemonerr.EngineUnavailable, "parsing synthesized plan: %v", err)
	}
	if refining != nil {
		p.ID = refining.ID
		p.Name = refining.Name
		p.Tags = refining.Tags
	}
	if p.Goal == "" {
		p.Goal = goal
	}

	if verr := p.Validate(); verr != nil {
		return nil, verr
	}
	p.DeriveDependencyGraph()
	return &p, nil
}

func buildPlanPrompt(goal string, refining *plan.Plan, feedback string) string {
	if refining == nil {
		return fmt.Sprintf(`Draft an implementation plan for the following goal, grounded in the
codebase context above. Respond with a single JSON object matching this
shape and nothing else:

{
  "goal": string,
  "scope": {"included": [string], "excluded": [string], "assumptions": [string], "constraints": [string]},
  "mvp_features": [string],
  "nice_to_have_features": [string],
  "architecture": {"notes": string, "patterns": [string], "diagrams": [string]},
  "risks": [string],
  "milestones": [string],
  "steps": [{"step_number": int, "id": string, "title": string, "description": string,
             "files_to_modify": [string], "files_to_create": [string], "files_to_delete": [string],
             "depends_on": [int], "priority": "critical"|"high"|"medium"|"low", "estimated_effort": string,
             "acceptance_criteria": [string]}],
  "testing_strategy": string,
  "acceptance_criteria": [string],
  "confidence_score": number,
  "questions_for_clarification": [string]
}

Goal: %s`, goal)
	}

	existing, _ := json.Marshal(refining)
	return fmt.Sprintf(`Revise the following plan JSON in response to this feedback, grounded in
the codebase context above. Respond with the complete revised plan as a
single JSON object in the same shape, and nothing else.

Feedback: %s

Existing plan:
%s`, feedback, string(existing))
}

// extractJSONObject returns the first balanced {...} block in s, mirroring
// internal/execution's extractJSONArray but for an object instead of an
// array — LLM answers often wrap JSON in prose or code fences.
func extractJSONObject(s string) string {
	start := -1
	depth := 0
	for i, r := range s {
		if r == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if r == '}' {
			depth--
			if depth == 0 && start >= 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
