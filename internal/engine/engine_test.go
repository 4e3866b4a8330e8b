package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddToIndexAndGetFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "engine.db")
	e, err := Open(dbPath, nil)
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.AddToIndex(ctx, []string{"a.go"}, []string{"package a\nfunc Foo() {}"}))

	content, err := e.GetFile(ctx, "a.go")
	require.NoError(t, err)
	require.Contains(t, content, "func Foo")
}

func TestGetFileMissingReturnsError(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "engine.db")
	e, err := Open(dbPath, nil)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.GetFile(context.Background(), "missing.go")
	require.Error(t, err)
}

func TestSearchKeywordFallbackRanksMatches(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "engine.db")
	e, err := Open(dbPath, nil)
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.AddToIndex(ctx, []string{"a.go", "b.go"}, []string{
		"package a\nfunc widget() {}\nfunc widget2() {}",
		"package b\nfunc other() {}",
	}))

	hits, err := e.Search(ctx, "widget", 1000)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, "a.go", hits[0].Path)
}

func TestURLIsEmptyForLocalEngine(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "engine.db")
	e, err := Open(dbPath, nil)
	require.NoError(t, err)
	defer e.Close()
	require.Equal(t, "", e.URL())
}
