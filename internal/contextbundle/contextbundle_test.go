package contextbundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rishitank/context-engine-sub000/internal/cache"
	"github.com/rishitank/context-engine-sub000/internal/engine"
	"github.com/rishitank/context-engine-sub000/internal/pathpolicy"
	"github.com/rishitank/context-engine-sub000/internal/retrieval"
	"github.com/stretchr/testify/require"
)

func newTestBundler(t *testing.T) (*Bundler, string, *engine.LocalEngine) {
	t.Helper()
	root := t.TempDir()
	policy, err := pathpolicy.New(root)
	require.NoError(t, err)
	eng, err := engine.Open(filepath.Join(root, "engine.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	searchCache := cache.New(100, time.Minute, "")
	fp := cache.NewFingerprint(filepath.Join(root, "fp.json"))
	svc := retrieval.New(eng, policy, searchCache, fp)

	reader := func(relPath string) (string, error) {
		data, err := os.ReadFile(filepath.Join(root, relPath))
		return string(data), err
	}
	return New(svc, reader), root, eng
}

func TestEstimateTokensUsesFourCharsPerToken(t *testing.T) {
	require.Equal(t, 2, EstimateTokens("12345678"))
	require.Equal(t, 1, EstimateTokens("a"))
	require.Equal(t, 0, EstimateTokens(""))
}

func TestAssembleRespectsTokenBudgetAndMinRelevance(t *testing.T) {
	b, _, eng := newTestBundler(t)
	ctx := context.Background()
	require.NoError(t, eng.AddToIndex(ctx, []string{"a.go", "b.go"}, []string{
		"package a\nfunc widget() {\n  return 1\n}",
		"package b\nfunc other() {}",
	}))

	opts := DefaultOptions()
	opts.MinRelevance = 0.0
	bundle, err := b.Assemble(ctx, "widget", opts)
	require.NoError(t, err)
	require.NotEmpty(t, bundle.Files)
	require.LessOrEqual(t, bundle.Metadata.TotalTokens, bundle.Metadata.TokenBudget)
}

func TestAssembleMarksTruncatedWhenBudgetExhausted(t *testing.T) {
	b, _, eng := newTestBundler(t)
	ctx := context.Background()
	var paths, contents []string
	for i := 0; i < 10; i++ {
		p := fmt.Sprintf("f%d.go", i)
		paths = append(paths, p)
		contents = append(contents, fmt.Sprintf("package f\nfunc widget%d() {}", i))
	}
	require.NoError(t, eng.AddToIndex(ctx, paths, contents))

	opts := DefaultOptions()
	opts.MaxFiles = 20
	opts.TokenBudget = 50
	opts.MinRelevance = 0.0
	bundle, err := b.Assemble(ctx, "widget", opts)
	require.NoError(t, err)
	require.True(t, bundle.Metadata.Truncated)
}

func TestExtractSnippetKeepsVerbatimWhenWithinBudget(t *testing.T) {
	text := "package a\nfunc x() {}"
	out := extractSnippet("a.go", text, 1000)
	require.Equal(t, text, out)
}

func TestExtractSnippetInsertsOmittedMarker(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, fmt.Sprintf("var x%d = %d", i, i))
	}
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	out := extractSnippet("a.go", content, 10)
	require.Contains(t, out, "lines omitted")
}

func TestGenerateHintsIncludesCoverage(t *testing.T) {
	files := []FileContext{{Path: "a.go", Relevance: 0.9, Snippets: []Snippet{{CodeType: "function"}}}}
	hints := generateHints(files, 5)
	require.Contains(t, hints[0], "showing 1 of 5")
}
