package pathpolicy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rishitank/context-engine-sub000/internal/daemonerr"
	"github.com/stretchr/testify/require"
)

func newTestPolicy(t *testing.T) (*Policy, string) {
	t.Helper()
	root := t.TempDir()
	p, err := New(root)
	require.NoError(t, err)
	return p, root
}

func TestResolveRejectsAbsolute(t *testing.T) {
	p, _ := newTestPolicy(t)
	_, err := p.Resolve("/etc/passwd")
	require.Error(t, err)
	require.Equal(t, daemonerr.PathTraversal, err.Code)
}

func TestResolveRejectsTraversal(t *testing.T) {
	p, _ := newTestPolicy(t)
	for _, input := range []string{"../secret", "a/../../b", "a/b/../../../c"} {
		_, err := p.Resolve(input)
		require.Error(t, err, input)
	}
}

func TestResolveAcceptsWorkspaceRelative(t *testing.T) {
	p, root := newTestPolicy(t)
	full, err := p.Resolve("src/main.go")
	require.Nil(t, err)
	require.Equal(t, filepath.Join(root, "src/main.go"), full)
}

func TestResolveForReadRejectsOversize(t *testing.T) {
	p, root := newTestPolicy(t)
	p = p.WithMaxFileBytes(4)
	path := filepath.Join(root, "big.txt")
	require.NoError(t, os.WriteFile(path, []byte("way too big"), 0644))

	_, err := p.ResolveForRead("big.txt")
	require.Error(t, err)
	require.Equal(t, daemonerr.FileTooLarge, err.Code)
}

func TestResolveForReadMissingFile(t *testing.T) {
	p, _ := newTestPolicy(t)
	_, err := p.ResolveForRead("missing.txt")
	require.Error(t, err)
	require.Equal(t, daemonerr.FileNotFound, err.Code)
}

func TestRelativize(t *testing.T) {
	p, root := newTestPolicy(t)
	rel, ok := p.Relativize(filepath.Join(root, "a/b.go"))
	require.True(t, ok)
	require.Equal(t, "a/b.go", rel)

	_, ok = p.Relativize("/somewhere/else")
	require.False(t, ok)
}
