// Package config loads and validates the daemon's workspace configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the struct-of-structs root for the daemon's runtime configuration.
type Config struct {
	Workspace   WorkspaceConfig   `yaml:"workspace"`
	Logging     LoggingConfig     `yaml:"logging"`
	Indexing    IndexingConfig    `yaml:"indexing"`
	Watcher     WatcherConfig     `yaml:"watcher"`
	Cache       CacheConfig       `yaml:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Plan        PlanConfig        `yaml:"plan"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Review      ReviewConfig      `yaml:"review"`
	Reactive    ReactiveConfig    `yaml:"reactive"`
	Transport   TransportConfig   `yaml:"transport"`
	Engine      EngineConfig      `yaml:"engine"`
}

// WorkspaceConfig holds the absolute workspace root and derived state paths.
type WorkspaceConfig struct {
	Root          string `yaml:"root"`
	StateFilePath string `yaml:"state_file_path"`
}

// LoggingConfig mirrors internal/logging's on-disk config shape.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// IsCategoryEnabled reports whether a named category is enabled, defaulting
// to enabled when debug mode is on and the category has no explicit entry.
func (l LoggingConfig) IsCategoryEnabled(category string) bool {
	if !l.DebugMode {
		return false
	}
	if l.Categories == nil {
		return true
	}
	enabled, ok := l.Categories[category]
	if !ok {
		return true
	}
	return enabled
}

// IndexingConfig governs the Indexing Orchestrator (C4).
type IndexingConfig struct {
	BatchSize     int    `yaml:"batch_size"`
	UseWorker     bool   `yaml:"use_worker"`
	OfflineOnly   bool   `yaml:"offline_only"`
	EngineURL     string `yaml:"engine_url"`
	MaxFileBytes  int64  `yaml:"max_file_bytes"`
	DebugIndex    bool   `yaml:"debug_index"`
}

// WatcherConfig governs the Watcher + Batcher (C5).
type WatcherConfig struct {
	Enabled              bool          `yaml:"enabled"`
	DebounceMs           int           `yaml:"debounce_ms"`
	ReindexOnDelete      bool          `yaml:"reindex_on_delete"`
	ReindexDebounceMs    int           `yaml:"reindex_debounce_ms"`
	ReindexCooldownMs    int           `yaml:"reindex_cooldown_ms"`
	DeleteBurstThreshold int           `yaml:"delete_burst_threshold"`
	BatchSize            int           `yaml:"batch_size"`
	Cooldown             time.Duration `yaml:"-"`
}

// CacheConfig governs the Cache Tier (C6).
type CacheConfig struct {
	TTLSeconds          int  `yaml:"ttl_seconds"`
	MaxEntries          int  `yaml:"max_entries"`
	PersistSearchCache  bool `yaml:"persist_search_cache"`
	PersistContextCache bool `yaml:"persist_context_cache"`
	DebugSearch         bool `yaml:"debug_search"`
}

// ConcurrencyConfig consolidates the two worker-thread code paths (full index
// and reactive review) flagged as an open question in spec.md into one policy.
type ConcurrencyConfig struct {
	WorkerPoolSize int `yaml:"worker_pool_size"`
}

// ResolvedWorkerPoolSize returns the configured pool size, defaulting to
// max(1, cpu_count-1) as spec.md requires for all_ready/reactive dispatch.
func (c ConcurrencyConfig) ResolvedWorkerPoolSize() int {
	if c.WorkerPoolSize > 0 {
		return c.WorkerPoolSize
	}
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// PlanConfig governs the Plan Store/History (C9/C10).
type PlanConfig struct {
	Dir             string `yaml:"dir"`
	MaxHistories    int    `yaml:"max_histories"`
	MaxVersionsEach int    `yaml:"max_versions_each"`
}

// ExecutionConfig governs the Execution Tracker (C12).
type ExecutionConfig struct {
	MaxTrackedPlans     int           `yaml:"max_tracked_plans"`
	TerminalTTL         time.Duration `yaml:"terminal_ttl"`
	SweepInterval       time.Duration `yaml:"sweep_interval"`
	StepTimeout         time.Duration `yaml:"step_timeout"`
	CircuitTripAfter    int           `yaml:"circuit_trip_after"`
	CircuitResetAfter   time.Duration `yaml:"circuit_reset_after"`
	RequireApprovalAuto bool          `yaml:"require_approval_auto"`
}

// ReviewConfig governs the Review Pipeline Core (C13-C17).
type ReviewConfig struct {
	RiskThreshold        int      `yaml:"risk_threshold"`
	ConfidenceThreshold  float64  `yaml:"confidence_threshold"`
	FailOnSeverity       string   `yaml:"fail_on_severity"`
	FailOnInvariantIDs   []string `yaml:"fail_on_invariant_ids"`
	AllowlistFindingIDs  []string `yaml:"allowlist_finding_ids"`
	MaxFindings          int      `yaml:"max_findings"`
	MaxContextFiles      int      `yaml:"max_context_files"`
	TokenBudget          int      `yaml:"token_budget"`
	TwoPass              bool     `yaml:"two_pass"`
	StaticAnalyzerTimeout time.Duration `yaml:"static_analyzer_timeout"`
	LLMTimeout           time.Duration `yaml:"llm_timeout"`
	MaxFindingsPerAnalyzer int    `yaml:"max_findings_per_analyzer"`
	HotspotGlobs         []string `yaml:"hotspot_globs"`
	RiskPatterns         []string `yaml:"risk_patterns"`
}

// ReactiveConfig governs Reactive Review Sessions (C18).
type ReactiveConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	MaxSessions     int           `yaml:"max_sessions"`
	StalledAfter    time.Duration `yaml:"stalled_after"`
	HousekeepingInterval time.Duration `yaml:"housekeeping_interval"`
}

// TransportConfig governs the Tool Dispatcher's external surface (C19).
type TransportConfig struct {
	Mode       string `yaml:"mode"` // "stdio" | "http"
	Port       int    `yaml:"port"`
	Metrics    bool   `yaml:"metrics"`
	MetricsPort int   `yaml:"metrics_port"`
}

// EngineConfig governs the bundled default Context Engine.
type EngineConfig struct {
	DBPath           string `yaml:"db_path"`
	EmbeddingProvider string `yaml:"embedding_provider"`
}

// DefaultConfig returns the daemon's default configuration.
func DefaultConfig(workspaceRoot string) Config {
	return Config{
		Workspace: WorkspaceConfig{
			Root:          workspaceRoot,
			StateFilePath: filepath.Join(workspaceRoot, ".augment-context-state.json"),
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
		Indexing: IndexingConfig{
			BatchSize:    10,
			UseWorker:    false,
			OfflineOnly:  false,
			MaxFileBytes: 1 << 20,
		},
		Watcher: WatcherConfig{
			Enabled:              false,
			DebounceMs:           500,
			ReindexOnDelete:      true,
			ReindexDebounceMs:    2000,
			ReindexCooldownMs:    60000,
			DeleteBurstThreshold: 10,
			BatchSize:            10,
		},
		Cache: CacheConfig{
			TTLSeconds:          60,
			MaxEntries:          100,
			PersistSearchCache:  true,
			PersistContextCache: true,
		},
		Concurrency: ConcurrencyConfig{},
		Plan: PlanConfig{
			Dir:             filepath.Join(workspaceRoot, ".augment-plans"),
			MaxHistories:    50,
			MaxVersionsEach: 20,
		},
		Execution: ExecutionConfig{
			MaxTrackedPlans:   100,
			TerminalTTL:       time.Hour,
			SweepInterval:     5 * time.Minute,
			StepTimeout:       120 * time.Second,
			CircuitTripAfter:  3,
			CircuitResetAfter: 60 * time.Second,
		},
		Review: ReviewConfig{
			RiskThreshold:          3,
			ConfidenceThreshold:    0.55,
			FailOnSeverity:         "CRITICAL",
			MaxFindings:            20,
			MaxContextFiles:        5,
			TokenBudget:            8000,
			TwoPass:                true,
			StaticAnalyzerTimeout:  60 * time.Second,
			LLMTimeout:             120 * time.Second,
			MaxFindingsPerAnalyzer: 20,
			HotspotGlobs:           []string{"**/auth/**", "**/payment*/**", "**/migrations/**"},
			RiskPatterns:           []string{"eval(", "exec(", "auth", "crypto", "password", "secret"},
		},
		Reactive: ReactiveConfig{
			TTL:                  time.Hour,
			MaxSessions:          100,
			StalledAfter:         2 * time.Minute,
			HousekeepingInterval: 30 * time.Second,
		},
		Transport: TransportConfig{
			Mode: "stdio",
			Port: 0,
		},
		Engine: EngineConfig{
			DBPath:            filepath.Join(workspaceRoot, ".augment-engine.db"),
			EmbeddingProvider: "ollama",
		},
	}
}

// Load reads a YAML config file at path, falling back to DefaultConfig for any
// field left unset, then applies environment-variable overrides.
func Load(workspaceRoot, path string) (Config, error) {
	cfg := DefaultConfig(workspaceRoot)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate enforces the invariants the rest of the daemon relies on.
func (c Config) Validate() error {
	if c.Workspace.Root == "" {
		return fmt.Errorf("config: workspace root required")
	}
	if c.Indexing.BatchSize <= 0 {
		return fmt.Errorf("config: indexing.batch_size must be positive")
	}
	if c.Transport.Mode != "stdio" && c.Transport.Mode != "http" {
		return fmt.Errorf("config: transport.mode must be stdio or http, got %q", c.Transport.Mode)
	}
	if c.Transport.Mode == "http" && c.Transport.Port <= 0 {
		return fmt.Errorf("config: transport.port must be positive for http transport")
	}
	return nil
}

// IsLoopbackOrLocal reports whether a URL's host is loopback or a local
// hostname, per the C4 offline-policy check.
func IsLoopbackOrLocal(rawurl string) bool {
	if rawurl == "" {
		return true
	}
	lower := strings.ToLower(rawurl)
	for _, prefix := range []string{
		"http://localhost", "https://localhost",
		"http://127.", "https://127.",
		"http://[::1]", "https://[::1]",
		"http://0.0.0.0", "https://0.0.0.0",
	} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("AUGMENT_API_URL"); ok {
		cfg.Indexing.EngineURL = v
	}
	if v, ok := os.LookupEnv("CONTEXT_ENGINE_OFFLINE_ONLY"); ok {
		cfg.Indexing.OfflineOnly = parseBool(v, cfg.Indexing.OfflineOnly)
	}
	if v, ok := os.LookupEnv("CE_DEBUG_INDEX"); ok {
		cfg.Indexing.DebugIndex = parseBool(v, cfg.Indexing.DebugIndex)
	}
	if v, ok := os.LookupEnv("CE_DEBUG_SEARCH"); ok {
		cfg.Cache.DebugSearch = parseBool(v, cfg.Cache.DebugSearch)
	}
	if v, ok := os.LookupEnv("CE_INDEX_BATCH_SIZE"); ok {
		cfg.Indexing.BatchSize = parseInt(v, cfg.Indexing.BatchSize)
	}
	if v, ok := os.LookupEnv("CE_INDEX_USE_WORKER"); ok {
		cfg.Indexing.UseWorker = parseBool(v, cfg.Indexing.UseWorker)
	}
	if v, ok := os.LookupEnv("CE_PERSIST_SEARCH_CACHE"); ok {
		cfg.Cache.PersistSearchCache = parseBool(v, cfg.Cache.PersistSearchCache)
	}
	if v, ok := os.LookupEnv("CE_PERSIST_CONTEXT_CACHE"); ok {
		cfg.Cache.PersistContextCache = parseBool(v, cfg.Cache.PersistContextCache)
	}
	if v, ok := os.LookupEnv("CE_WATCHER_REINDEX_ON_DELETE"); ok {
		cfg.Watcher.ReindexOnDelete = parseBool(v, cfg.Watcher.ReindexOnDelete)
	}
	if v, ok := os.LookupEnv("CE_WATCHER_REINDEX_DEBOUNCE_MS"); ok {
		cfg.Watcher.ReindexDebounceMs = parseInt(v, cfg.Watcher.ReindexDebounceMs)
	}
	if v, ok := os.LookupEnv("CE_WATCHER_REINDEX_COOLDOWN_MS"); ok {
		cfg.Watcher.ReindexCooldownMs = parseInt(v, cfg.Watcher.ReindexCooldownMs)
	}
	if v, ok := os.LookupEnv("CE_WATCHER_DELETE_BURST_THRESHOLD"); ok {
		cfg.Watcher.DeleteBurstThreshold = parseInt(v, cfg.Watcher.DeleteBurstThreshold)
	}
	if v, ok := os.LookupEnv("REACTIVE_SESSION_TTL"); ok {
		if ms := parseInt(v, -1); ms >= 0 {
			cfg.Reactive.TTL = time.Duration(ms) * time.Millisecond
		}
	}
	if v, ok := os.LookupEnv("REACTIVE_MAX_SESSIONS"); ok {
		cfg.Reactive.MaxSessions = parseInt(v, cfg.Reactive.MaxSessions)
	}
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
