package dispatcher

import (
	"context"

	"github.com/rishitank/context-engine-sub000/internal/tools"
)

func registerIndexingTools(reg *tools.Registry, deps Dependencies) {
	reg.MustRegister(&tools.Tool{
		Name:        "index_workspace",
		Description: "Index every discoverable file in the workspace into the Context Engine.",
		Category:    tools.CategoryIndexing,
		Schema:      tools.ToolSchema{Properties: map[string]tools.Property{}},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			status, derr := deps.Indexing.IndexWorkspace(ctx)
			return errFromDaemonerr(status, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "index_status",
		Description: "Report the orchestrator's current indexing state and counters.",
		Category:    tools.CategoryIndexing,
		Schema:      tools.ToolSchema{Properties: map[string]tools.Property{}},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return asJSON(deps.Indexing.GetIndexStatus())
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "reindex_workspace",
		Description: "Clear the index and rebuild it from a full workspace scan.",
		Category:    tools.CategoryIndexing,
		Schema:      tools.ToolSchema{Properties: map[string]tools.Property{}},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			status, derr := deps.Indexing.ReindexWorkspace(ctx)
			return errFromDaemonerr(status, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "clear_index",
		Description: "Delete the persisted index state file and clear the search/context caches; documents already in the Context Engine are kept.",
		Category:    tools.CategoryIndexing,
		Schema:      tools.ToolSchema{Properties: map[string]tools.Property{}},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			if derr := deps.Indexing.ClearIndex(); derr != nil {
				return "", derr
			}
			return asJSON(map[string]string{"status": "cleared"})
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "tool_manifest",
		Description: "List every registered tool name grouped by category.",
		Category:    tools.CategoryIndexing,
		Schema:      tools.ToolSchema{Properties: map[string]tools.Property{}},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return asJSON(map[string]any{"tools": reg.Names(), "count": reg.Count()})
		},
	})
}
