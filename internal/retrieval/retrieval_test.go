package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rishitank/context-engine-sub000/internal/cache"
	"github.com/rishitank/context-engine-sub000/internal/engine"
	"github.com/rishitank/context-engine-sub000/internal/pathpolicy"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, string, *engine.LocalEngine) {
	t.Helper()
	root := t.TempDir()
	policy, err := pathpolicy.New(root)
	require.NoError(t, err)
	eng, err := engine.Open(filepath.Join(root, "engine.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	searchCache := cache.New(100, time.Minute, "")
	fp := cache.NewFingerprint(filepath.Join(root, "fp.json"))
	return New(eng, policy, searchCache, fp), root, eng
}

func TestSemanticSearchFindsIndexedContent(t *testing.T) {
	svc, _, eng := newTestService(t)
	ctx := context.Background()
	require.NoError(t, eng.AddToIndex(ctx, []string{"src/auth/login.ts"}, []string{"const TOKEN = 'WHALE_CONST_42'"}))

	results, err := svc.SemanticSearch(ctx, "WHALE_CONST_42", 5)
	require.Nil(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "src/auth/login.ts", results[0].Path)
	require.True(t, results[0].Relevance > 0)
}

func TestSemanticSearchIsCached(t *testing.T) {
	svc, _, eng := newTestService(t)
	ctx := context.Background()
	require.NoError(t, eng.AddToIndex(ctx, []string{"a.go"}, []string{"package a\nfunc widget() {}"}))

	first, err := svc.SemanticSearch(ctx, "widget", 5)
	require.Nil(t, err)
	require.NotEmpty(t, first)

	require.Equal(t, 1, svc.searchCache.Len())
}

func TestGetFileSlicesLineRange(t *testing.T) {
	svc, root, _ := newTestService(t)
	path := filepath.Join(root, "f.go")
	require.NoError(t, os.WriteFile(path, []byte("line1\nline2\nline3\nline4\n"), 0644))

	content, err := svc.GetFile(context.Background(), "f.go", 2, 3)
	require.Nil(t, err)
	require.Equal(t, "line2\nline3", content)
}

func TestGetFileRejectsOutOfBoundsRange(t *testing.T) {
	svc, root, _ := newTestService(t)
	path := filepath.Join(root, "f.go")
	require.NoError(t, os.WriteFile(path, []byte("line1\nline2\n"), 0644))

	_, err := svc.GetFile(context.Background(), "f.go", 5, 10)
	require.NotNil(t, err)
}

func TestParseEngineOutputPathPrefixShape(t *testing.T) {
	raw := "Path: src/a.go\nfunc Foo() {}\nPath: src/b.go\nfunc Bar() {}\n"
	results := ParseEngineOutput(raw)
	require.Len(t, results, 2)
	require.Equal(t, "src/a.go", results[0].Path)
	require.Contains(t, results[0].Content, "func Foo")
}

func TestParseEngineOutputMarkdownShape(t *testing.T) {
	raw := "## src/a.go\n```go\n1: func Foo() {}\n2: return\n```\n"
	results := ParseEngineOutput(raw)
	require.Len(t, results, 1)
	require.Equal(t, "src/a.go", results[0].Path)
	require.NotContains(t, results[0].Content, "1:")
}
