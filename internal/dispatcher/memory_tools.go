package dispatcher

import (
	"context"

	"github.com/rishitank/context-engine-sub000/internal/memory"
	"github.com/rishitank/context-engine-sub000/internal/tools"
)

func registerMemoryTools(reg *tools.Registry, deps Dependencies) {
	reg.MustRegister(&tools.Tool{
		Name:        "add_memory",
		Description: "Append a preference, decision, or fact to the persistent Memory Store.",
		Category:    tools.CategoryMemory,
		Schema: tools.ToolSchema{
			Required: []string{"category", "content"},
			Properties: map[string]tools.Property{
				"category": {Type: "string", Enum: []any{"preferences", "decisions", "facts"}},
				"title":    {Type: "string"},
				"content":  {Type: "string"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			category, err := argStringRequired(args, "category")
			if err != nil {
				return "", err
			}
			content, err := argStringRequired(args, "content")
			if err != nil {
				return "", err
			}
			rec, derr := deps.Memories.Add(memory.Category(category), argString(args, "title"), content)
			return errFromDaemonerr(rec, derr)
		},
	})

	reg.MustRegister(&tools.Tool{
		Name:        "list_memories",
		Description: "List memory records, youngest first; omit category to merge all three.",
		Category:    tools.CategoryMemory,
		Schema: tools.ToolSchema{
			Properties: map[string]tools.Property{
				"category": {Type: "string", Enum: []any{"", "preferences", "decisions", "facts"}},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			recs, derr := deps.Memories.List(memory.Category(argString(args, "category")))
			return errFromDaemonerr(recs, derr)
		},
	})
}
