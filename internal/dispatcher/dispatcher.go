// Package dispatcher wires the Tool Dispatcher (C19): it builds one
// internal/tools.Tool per spec tool-catalog entry, each a thin adapter over a
// real component operation, and registers them into an internal/tools.Registry.
// internal/mcpserver routes incoming requests through that registry; this
// package owns what each tool name actually does.
package dispatcher

import (
	"encoding/json"

	"github.com/rishitank/context-engine-sub000/internal/approval"
	"github.com/rishitank/context-engine-sub000/internal/config"
	"github.com/rishitank/context-engine-sub000/internal/contextbundle"
	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/execution"
	"github.com/rishitank/context-engine-sub000/internal/history"
	"github.com/rishitank/context-engine-sub000/internal/indexing"
	"github.com/rishitank/context-engine-sub000/internal/llmreview"
	"github.com/rishitank/context-engine-sub000/internal/logging"
	"github.com/rishitank/context-engine-sub000/internal/memory"
	"github.com/rishitank/context-engine-sub000/internal/plan"
	"github.com/rishitank/context-engine-sub000/internal/reactive"
	"github.com/rishitank/context-engine-sub000/internal/retrieval"
	"github.com/rishitank/context-engine-sub000/internal/staticanalysis"
	"github.com/rishitank/context-engine-sub000/internal/tools"
)

// Dependencies collects every component the dispatcher fronts. All fields
// are required except InvariantsPath, which may be empty (check_invariants
// then reports zero findings rather than failing).
type Dependencies struct {
	Indexing    *indexing.Orchestrator
	Retrieval   *retrieval.Service
	Bundler     *contextbundle.Bundler
	Plans       *plan.Store
	History     *history.Store
	Approvals   *approval.Store
	Execution   *execution.Tracker
	Reactive    *reactive.Manager
	Memories    *memory.Store
	Analyzers []staticanalysis.Adapter
	LLM       *llmreview.Orchestrator

	InvariantsPath      string
	Review              config.ReviewConfig
	RequireApprovalAuto bool
}

// Register builds every spec §6 tool and adds it to reg. It panics on the
// first registration error, which can only happen if two tools share a name
// — a programmer error, not a runtime condition.
func Register(reg *tools.Registry, deps Dependencies) {
	registerIndexingTools(reg, deps)
	registerRetrievalTools(reg, deps)
	registerPlanningTools(reg, deps)
	registerExecutionTools(reg, deps)
	registerReviewTools(reg, deps)
	registerReactiveTools(reg, deps)
	registerMemoryTools(reg, deps)

	logging.Dispatcher("registered %d tools", reg.Count())
}

// --- shared argument helpers -----------------------------------------------

func argString(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func argBool(args map[string]any, key string) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func argInt(args map[string]any, key string, fallback int) int {
	if v, ok := args[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return fallback
}

func argStringSlice(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func argIntSlice(args map[string]any, key string) []int {
	v, ok := args[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, e := range raw {
		if n, ok := e.(float64); ok {
			out = append(out, int(n))
		}
	}
	return out
}

// asJSON renders v as an indented JSON string, the uniform "content" shape
// tools return through the registry (mcpserver wraps it as
// {content:[{type:"text",text}]}).
func asJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", daemonerr.Wrap(err)
	}
	return string(data), nil
}

// errFromDaemonerr converts a possibly-nil *daemonerr.Error return into the
// (string, error) shape ExecuteFunc expects.
func errFromDaemonerr(v any, derr *daemonerr.Error) (string, error) {
	if derr != nil {
		return "", derr
	}
	return asJSON(v)
}

func missingArg(name string) error {
	return daemonerr.Newf(daemonerr.InvalidInput, "missing required argument: %s", name)
}

func argStringRequired(args map[string]any, key string) (string, error) {
	s := argString(args, key)
	if s == "" {
		return "", missingArg(key)
	}
	return s, nil
}
