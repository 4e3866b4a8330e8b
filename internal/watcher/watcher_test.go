package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rishitank/context-engine-sub000/internal/ignore"
	"github.com/rishitank/context-engine-sub000/internal/pathpolicy"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestWatcher(t *testing.T, opts Options) (*Watcher, string) {
	t.Helper()
	root := t.TempDir()
	policy, err := pathpolicy.New(root)
	require.NoError(t, err)
	rules, err := ignore.Load(root)
	require.NoError(t, err)
	w, err := New(policy, rules, opts)
	require.NoError(t, err)
	go w.Run()
	t.Cleanup(func() { w.Close() })
	return w, root
}

func TestWatcherCoalescesChangesIntoOneBatch(t *testing.T) {
	opts := DefaultOptions()
	opts.DebounceMs = 30
	w, root := newTestWatcher(t, opts)

	path := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a"), 0644))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("package a; var x = 1"), 0644))

	select {
	case batch := <-w.Batches:
		require.Contains(t, batch.Changed, "a.go")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a coalesced batch")
	}
}

func TestWatcherDeleteBurstTriggersReindex(t *testing.T) {
	opts := DefaultOptions()
	opts.DebounceMs = 30
	opts.DeleteBurstThreshold = 2
	w, root := newTestWatcher(t, opts)

	paths := []string{}
	for i := 0; i < 3; i++ {
		p := filepath.Join(root, "f"+string(rune('a'+i))+".go")
		require.NoError(t, os.WriteFile(p, []byte("package f"), 0644))
		paths = append(paths, p)
	}
	time.Sleep(50 * time.Millisecond)
	// Drain the add batch, if any.
	select {
	case <-w.Batches:
	default:
	}

	for _, p := range paths {
		require.NoError(t, os.Remove(p))
	}

	select {
	case <-w.ReindexSignal:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a reindex signal after delete burst")
	}
}
