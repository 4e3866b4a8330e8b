package dispatcher

import (
	"context"

	"github.com/rishitank/context-engine-sub000/internal/contextbundle"
	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/rishitank/context-engine-sub000/internal/tools"
)

func registerRetrievalTools(reg *tools.Registry, deps Dependencies) {
	reg.MustRegister(&tools.Tool{
		Name:        "codebase_retrieval",
		Description: "Retrieve the most relevant indexed snippets for a natural-language query.",
		Category:    tools.CategoryRetrieval,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query":  {Type: "string", Description: "what to look for"},
				"top_k":  {Type: "integer", Description: "max results", Default: 10},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			query, err := argStringRequired(args, "query")
			if err != nil {
				return "", err
			}
			hits, derr := deps.Retrieval.CodebaseRetrieval(ctx, query, argInt(args, "top_k", 10))
			return errFromDaemonerr(hits, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "semantic_search",
		Description: "Vector-rank indexed content against a query, returning scored hits.",
		Category:    tools.CategoryRetrieval,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {Type: "string"},
				"top_k": {Type: "integer", Default: 10},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			query, err := argStringRequired(args, "query")
			if err != nil {
				return "", err
			}
			hits, derr := deps.Retrieval.SemanticSearch(ctx, query, argInt(args, "top_k", 10))
			return errFromDaemonerr(hits, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "get_file",
		Description: "Read a workspace file, optionally restricted to a line range.",
		Category:    tools.CategoryRetrieval,
		Schema: tools.ToolSchema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path":       {Type: "string"},
				"start_line": {Type: "integer"},
				"end_line":   {Type: "integer"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			path, err := argStringRequired(args, "path")
			if err != nil {
				return "", err
			}
			content, derr := deps.Retrieval.GetFile(ctx, path, argInt(args, "start_line", 0), argInt(args, "end_line", 0))
			if derr != nil {
				return "", derr
			}
			return content, nil
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "get_context_for_prompt",
		Description: "Assemble a token-budgeted context bundle of files relevant to a prompt.",
		Category:    tools.CategoryRetrieval,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query":        {Type: "string"},
				"token_budget": {Type: "integer"},
				"max_files":    {Type: "integer"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			query, err := argStringRequired(args, "query")
			if err != nil {
				return "", err
			}
			opts := contextbundle.DefaultOptions()
			if v := argInt(args, "token_budget", 0); v > 0 {
				opts.TokenBudget = v
			}
			if v := argInt(args, "max_files", 0); v > 0 {
				opts.MaxFiles = v
			}
			bundle, berr := deps.Bundler.Assemble(ctx, query, opts)
			if berr != nil {
				return "", daemonerr.Wrap(berr)
			}
			return asJSON(bundle)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "enhance_prompt",
		Description: "Answer a free-form prompt grounded in a semantic search over the index.",
		Category:    tools.CategoryRetrieval,
		Schema: tools.ToolSchema{
			Required: []string{"query", "prompt"},
			Properties: map[string]tools.Property{
				"query":  {Type: "string"},
				"prompt": {Type: "string"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			query, err := argStringRequired(args, "query")
			if err != nil {
				return "", err
			}
			prompt, err := argStringRequired(args, "prompt")
			if err != nil {
				return "", err
			}
			answer, derr := deps.Retrieval.SearchAndAsk(ctx, query, prompt)
			if derr != nil {
				return "", derr
			}
			return answer, nil
		},
	})
}
