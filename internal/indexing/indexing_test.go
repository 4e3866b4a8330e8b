package indexing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rishitank/context-engine-sub000/internal/cache"
	"github.com/rishitank/context-engine-sub000/internal/config"
	"github.com/rishitank/context-engine-sub000/internal/discovery"
	"github.com/rishitank/context-engine-sub000/internal/engine"
	"github.com/rishitank/context-engine-sub000/internal/ignore"
	"github.com/rishitank/context-engine-sub000/internal/pathpolicy"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, cfg config.IndexingConfig) (*Orchestrator, string, *engine.LocalEngine) {
	t.Helper()
	root := t.TempDir()
	policy, err := pathpolicy.New(root)
	require.NoError(t, err)
	rules, err := ignore.Load(root)
	require.NoError(t, err)
	disc := discovery.New(policy, rules)

	eng, err := engine.Open(filepath.Join(root, ".augment-engine.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	searchCache := cache.New(100, time.Minute, "")
	ctxCache := cache.New(100, time.Minute, "")
	fp := cache.NewFingerprint(filepath.Join(root, ".augment-index-fingerprint.json"))

	o := New(policy, disc, eng, cfg, searchCache, ctxCache, fp, filepath.Join(root, ".augment-context-state.json"))
	return o, root, eng
}

func TestIndexWorkspaceIndexesDiscoveredFiles(t *testing.T) {
	o, root, eng := newTestOrchestrator(t, config.IndexingConfig{BatchSize: 10})
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\nconst X = 1"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte("package a\nconst Y = 2"), 0644))

	status, err := o.IndexWorkspace(context.Background())
	require.Nil(t, err)
	require.Equal(t, "idle", status.State)
	require.Equal(t, 2, status.FilesIndexed)
	require.Equal(t, 1, status.IndexFingerprint)

	content, getErr := eng.GetFile(context.Background(), "a.go")
	require.NoError(t, getErr)
	require.Contains(t, content, "const X")
}

func TestIndexFilesIncrementalBumpsFingerprintAgain(t *testing.T) {
	o, root, _ := newTestOrchestrator(t, config.IndexingConfig{BatchSize: 10})
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0644))
	_, err := o.IndexWorkspace(context.Background())
	require.Nil(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte("package a"), 0644))
	status, err := o.IndexFiles(context.Background(), []string{"b.go"})
	require.Nil(t, err)
	require.Equal(t, 2, status.IndexFingerprint)
}

func TestClearIndexResetsStatusAndCaches(t *testing.T) {
	o, root, _ := newTestOrchestrator(t, config.IndexingConfig{BatchSize: 10})
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0644))
	_, err := o.IndexWorkspace(context.Background())
	require.Nil(t, err)

	clearErr := o.ClearIndex()
	require.Nil(t, clearErr)
	status := o.GetIndexStatus()
	require.Equal(t, "idle", status.State)
	require.Equal(t, 0, status.FilesIndexed)
}

func TestOfflinePolicyRejectsRemoteEngineURL(t *testing.T) {
	o, root, _ := newTestOrchestrator(t, config.IndexingConfig{
		BatchSize:   10,
		OfflineOnly: true,
		EngineURL:   "https://remote.example.com/engine",
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0644))

	_, err := o.IndexWorkspace(context.Background())
	require.NotNil(t, err)
	require.Equal(t, "OfflinePolicy.RemoteEndpoint", string(err.Code))
}

func TestMissingFileDuringBatchIsRecordedAsPerFileError(t *testing.T) {
	o, root, _ := newTestOrchestrator(t, config.IndexingConfig{BatchSize: 10})
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0644))

	status, err := o.IndexFiles(context.Background(), []string{"a.go", "missing.go"})
	require.Nil(t, err)
	require.Equal(t, 1, status.FilesIndexed)
	require.Len(t, status.Errors, 1)
	require.Equal(t, "missing.go", status.Errors[0].Path)
}
