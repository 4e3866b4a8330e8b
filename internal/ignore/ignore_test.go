package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestBuiltinDirBlocklist(t *testing.T) {
	root := t.TempDir()
	s, err := Load(root)
	require.NoError(t, err)
	require.True(t, s.ShouldIgnore("node_modules", true))
	require.True(t, s.ShouldIgnore("a/b/node_modules", true))
}

func TestTrailingSlashOnlyMatchesDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "build/\n")
	s, err := Load(root)
	require.NoError(t, err)
	require.True(t, s.ShouldIgnore("build", true))
	require.False(t, s.ShouldIgnore("build", false), "trailing slash rule should not match a plain file named build")
}

func TestLeadingSlashAnchorsToRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "/only_root.txt\n")
	s, err := Load(root)
	require.NoError(t, err)
	require.True(t, s.ShouldIgnore("only_root.txt", false))
	require.False(t, s.ShouldIgnore("nested/only_root.txt", false))
}

func TestNegationsAreNoOps(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "*.log\n!important.log\n")
	s, err := Load(root)
	require.NoError(t, err)
	require.True(t, s.ShouldIgnore("debug.log", false))
	require.True(t, s.ShouldIgnore("important.log", false), "negation must not un-ignore per spec.md's documented simplification")
}

func TestDoubleStarMatchesAcrossSeparators(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "**/fixtures/**\n")
	s, err := Load(root)
	require.NoError(t, err)
	require.True(t, s.ShouldIgnore("a/b/fixtures/data.json", false))
	require.True(t, s.ShouldIgnore("fixtures/data.json", false))
}

func TestContextIgnoreIsAdditive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "*.log\n")
	writeFile(t, filepath.Join(root, ".contextignore"), "*.secret\n")
	s, err := Load(root)
	require.NoError(t, err)
	require.True(t, s.ShouldIgnore("x.log", false))
	require.True(t, s.ShouldIgnore("x.secret", false))
}

func TestCommentsAndBlankLinesSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "# comment\n\n*.tmp\n")
	s, err := Load(root)
	require.NoError(t, err)
	require.True(t, s.ShouldIgnore("x.tmp", false))
}
