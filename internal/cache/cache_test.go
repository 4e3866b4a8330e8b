package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New(10, time.Minute, "")
	key := Key("q", "5", "1")
	require.NoError(t, c.Set(key, map[string]string{"path": "a.go"}))

	raw, ok := c.Get(key)
	require.True(t, ok)
	require.Contains(t, string(raw), "a.go")
}

func TestGetExpiresAfterTTL(t *testing.T) {
	c := New(10, time.Millisecond, "")
	key := Key("q")
	require.NoError(t, c.Set(key, "v"))
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(key)
	require.False(t, ok)
}

func TestEvictsOldestWhenFull(t *testing.T) {
	c := New(2, time.Minute, "")
	require.NoError(t, c.Set("a", 1))
	time.Sleep(time.Millisecond)
	require.NoError(t, c.Set("b", 2))
	time.Sleep(time.Millisecond)
	// touch "b" so "a" becomes the least-recently-used entry
	c.Get("b")
	require.NoError(t, c.Set("c", 3))

	_, ok := c.Get("a")
	require.False(t, ok, "oldest/least-recently-used entry should be evicted")
	_, ok = c.Get("b")
	require.True(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
}

func TestClearRemovesEntriesAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	c := New(10, time.Minute, path)
	require.NoError(t, c.Set("a", 1))
	require.NoError(t, c.Persist())
	c.Clear()
	require.Equal(t, 0, c.Len())
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestPersistAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	c := New(10, time.Minute, path)
	require.NoError(t, c.Set("a", "value-a"))
	require.NoError(t, c.Persist())

	c2 := New(10, time.Minute, path)
	raw, ok := c2.Get("a")
	require.True(t, ok)
	require.Contains(t, string(raw), "value-a")
}

func TestPersistDiscardsExpiredOnLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	c := New(10, time.Millisecond, path)
	require.NoError(t, c.Set("a", "value-a"))
	require.NoError(t, c.Persist())
	time.Sleep(5 * time.Millisecond)

	c2 := New(10, time.Millisecond, path)
	_, ok := c2.Get("a")
	require.False(t, ok)
}

func TestFingerprintBumpIsMonotonicAndPersisted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fingerprint.json")
	fp := NewFingerprint(path)
	require.Equal(t, 0, fp.Value())

	v1, err := fp.Bump()
	require.NoError(t, err)
	require.Equal(t, 1, v1)

	fp2 := NewFingerprint(path)
	require.Equal(t, 1, fp2.Value())

	v2, err := fp2.Bump()
	require.NoError(t, err)
	require.Equal(t, 2, v2)
}
