package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig("/tmp/workspace")
	require.NoError(t, cfg.Validate())
	require.Equal(t, 10, cfg.Indexing.BatchSize)
	require.Equal(t, "stdio", cfg.Transport.Mode)
	require.True(t, cfg.Cache.PersistSearchCache, "search cache persistence defaults on per the chosen open-question resolution")
	require.True(t, cfg.Cache.PersistContextCache)
}

func TestValidateRejectsEmptyWorkspace(t *testing.T) {
	cfg := DefaultConfig("")
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsHTTPWithoutPort(t *testing.T) {
	cfg := DefaultConfig("/tmp/workspace")
	cfg.Transport.Mode = "http"
	cfg.Transport.Port = 0
	require.Error(t, cfg.Validate())
}

func TestEnvOverridePrecedence(t *testing.T) {
	t.Setenv("CE_INDEX_BATCH_SIZE", "25")
	t.Setenv("CE_INDEX_USE_WORKER", "true")
	t.Setenv("CONTEXT_ENGINE_OFFLINE_ONLY", "true")
	t.Setenv("REACTIVE_SESSION_TTL", "120000")
	t.Setenv("REACTIVE_MAX_SESSIONS", "50")

	cfg, err := Load("/tmp/workspace", "")
	require.NoError(t, err)

	require.Equal(t, 25, cfg.Indexing.BatchSize)
	require.True(t, cfg.Indexing.UseWorker)
	require.True(t, cfg.Indexing.OfflineOnly)
	require.Equal(t, 120*time.Second, cfg.Reactive.TTL)
	require.Equal(t, 50, cfg.Reactive.MaxSessions)
}

func TestEnvOverrideDoesNotClobberUnsetVars(t *testing.T) {
	cfg, err := Load("/tmp/workspace", "")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig("/tmp/workspace").Indexing.BatchSize, cfg.Indexing.BatchSize)
}

func TestIsLoopbackOrLocal(t *testing.T) {
	cases := map[string]bool{
		"":                           true,
		"http://localhost:8080":      true,
		"http://127.0.0.1:11434":     true,
		"https://api.example.com":    false,
		"http://my-remote-host:9000": false,
	}
	for url, want := range cases {
		require.Equal(t, want, IsLoopbackOrLocal(url), url)
	}
}

func TestLoggingIsCategoryEnabled(t *testing.T) {
	l := LoggingConfig{DebugMode: false}
	require.False(t, l.IsCategoryEnabled("boot"))

	l = LoggingConfig{DebugMode: true}
	require.True(t, l.IsCategoryEnabled("boot"), "unspecified categories default to enabled")

	l = LoggingConfig{DebugMode: true, Categories: map[string]bool{"boot": false}}
	require.False(t, l.IsCategoryEnabled("boot"))
}
