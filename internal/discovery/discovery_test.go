package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rishitank/context-engine-sub000/internal/ignore"
	"github.com/rishitank/context-engine-sub000/internal/pathpolicy"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, files map[string]string) (*Discoverer, string) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	policy, err := pathpolicy.New(root)
	require.NoError(t, err)
	rules, err := ignore.Load(root)
	require.NoError(t, err)
	return New(policy, rules), root
}

func TestWalkFindsIndexableFiles(t *testing.T) {
	d, _ := setup(t, map[string]string{
		"src/main.go":       "package main",
		"src/util/helper.py": "def f(): pass",
		"README.md":          "# hi",
	})
	files, err := d.Walk(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 3)
}

func TestWalkSkipsBuiltinBlockedDirs(t *testing.T) {
	d, _ := setup(t, map[string]string{
		"node_modules/pkg/index.js": "module.exports = {}",
		"src/app.go":                "package main",
	})
	files, err := d.Walk(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "src/app.go", files[0].RelPath)
}

func TestWalkSkipsNonIndexableExtensions(t *testing.T) {
	d, _ := setup(t, map[string]string{
		"bin/app.exe": "binary",
		"src/app.go":  "package main",
	})
	files, err := d.Walk(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestWalkAllowlistsHiddenFilenames(t *testing.T) {
	d, _ := setup(t, map[string]string{
		"Makefile": "build:\n\techo hi",
	})
	files, err := d.Walk(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "Makefile", files[0].RelPath)
}

func TestWalkSkipsHiddenDirsNotAllowlisted(t *testing.T) {
	d, _ := setup(t, map[string]string{
		".secret/dat.go": "package secret",
		"src/app.go":     "package main",
	})
	files, err := d.Walk(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "src/app.go", files[0].RelPath)
}

func TestWalkRespectsGitignore(t *testing.T) {
	_, root := setup(t, map[string]string{
		"src/app.go":       "package main",
		"generated/out.go": "package generated",
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("generated/\n"), 0644))

	policy, err := pathpolicy.New(root)
	require.NoError(t, err)
	rules, err := ignore.Load(root)
	require.NoError(t, err)
	d := New(policy, rules)

	files, err := d.Walk(context.Background())
	require.NoError(t, err)
	// .gitignore itself is on HiddenAllowlist, so it is discovered too.
	require.Len(t, files, 2)
	require.Equal(t, ".gitignore", files[0].RelPath)
	require.Equal(t, "src/app.go", files[1].RelPath)
}
