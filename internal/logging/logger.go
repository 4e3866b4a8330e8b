// Package logging provides config-driven categorized file-based logging for the daemon.
// Logs are written to <workspace>/.augment/logs/ with separate files per category.
// Logging is controlled by debug_mode in the daemon config - when false, no logs are written.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/system
type Category string

const (
	// Ambient categories
	CategoryBoot       Category = "boot"       // Daemon startup/shutdown
	CategoryConfig     Category = "config"     // Config load/validation
	CategoryDispatcher Category = "dispatcher" // Tool Dispatcher (C19)

	// Workspace Indexing & Retrieval Core
	CategoryPathPolicy Category = "path_policy" // C1
	CategoryIgnore     Category = "ignore"      // C2
	CategoryDiscovery  Category = "discovery"   // C3
	CategoryIndexing   Category = "indexing"    // C4
	CategoryWatcher    Category = "watcher"     // C5
	CategoryCache      Category = "cache"       // C6
	CategoryRetrieval  Category = "retrieval"   // C7
	CategoryBundler    Category = "bundler"     // C8
	CategoryEngine     Category = "engine"      // default local Context Engine
	CategoryEmbedding  Category = "embedding"   // embedding backends

	// Plan & Execution Core
	CategoryPlan      Category = "plan"      // C9
	CategoryHistory   Category = "history"   // C10
	CategoryApproval  Category = "approval"  // C11
	CategoryExecution Category = "execution" // C12

	// Review Pipeline Core
	CategoryPreflight     Category = "preflight"      // C13
	CategoryInvariants    Category = "invariants"     // C14
	CategoryStatic        Category = "static"         // C15
	CategoryLLMReview     Category = "llm_review"     // C16
	CategoryVerdict       Category = "verdict"        // C17

	// Reactive Review Session Core
	CategoryReactive Category = "reactive" // C18

	// Ambient tools/memory
	CategoryTools  Category = "tools"  // tool registry
	CategoryMemory Category = "memory" // C20
)

// loggingConfig mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type loggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories"`
	Level      string          `json:"level"`
	JSONFormat bool            `json:"json_format"`
}

// configFile structure for reading .augment/config.json
type configFile struct {
	Logging loggingConfig `json:"logging"`
}

// StructuredLogEntry represents a JSON log entry for structured log consumers.
type StructuredLogEntry struct {
	Timestamp int64  `json:"ts"`       // Unix milliseconds
	Category  string `json:"cat"`      // Log category
	Level     string `json:"lvl"`      // debug/info/warn/error
	Message   string `json:"msg"`      // Log message
	File      string `json:"file"`     // Source file (optional)
	Line      int    `json:"line"`     // Source line (optional)
	RequestID string `json:"req,omitempty"` // Request correlation ID
	Fields    map[string]interface{} `json:"fields,omitempty"` // Additional structured fields
}

// Logger wraps a standard logger with category and file output
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers      = make(map[Category]*Logger)
	loggersMu    sync.RWMutex
	logsDir      string
	workspace    string
	config       loggingConfig
	configLoaded bool
	configMu     sync.RWMutex
	logLevel     int // 0=debug, 1=info, 2=warn, 3=error
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory and loads config.
// Should be called once at startup with the workspace path.
func Initialize(ws string) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}

	workspace = ws
	logsDir = filepath.Join(workspace, ".augment", "logs")

	// Load config first to check if debug mode is enabled
	if err := loadConfig(); err != nil {
		// Log to stderr if we can't load config
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not load config: %v\n", err)
		// Default to disabled (production mode)
		config.DebugMode = false
	}

	// Only create logs directory if debug mode is enabled
	if !config.DebugMode {
		return nil // Silent no-op in production mode
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	// Create a boot log entry
	bootLogger := Get(CategoryBoot)
	bootLogger.Info("=== daemon logging initialized ===")
	bootLogger.Info("Workspace: %s", workspace)
	bootLogger.Info("Logs directory: %s", logsDir)
	bootLogger.Info("Debug mode: %v", config.DebugMode)
	bootLogger.Info("Log level: %s", config.Level)

	// Log enabled categories
	if len(config.Categories) > 0 {
		enabledCount := 0
		for cat, enabled := range config.Categories {
			if enabled {
				enabledCount++
			}
			bootLogger.Debug("Category '%s': %v", cat, enabled)
		}
		bootLogger.Info("Enabled categories: %d/%d", enabledCount, len(config.Categories))
	} else {
		bootLogger.Info("All categories enabled (no category filter)")
	}

	return nil
}

// loadConfig reads the logging config from .augment/config.json
func loadConfig() error {
	configMu.Lock()
	defer configMu.Unlock()

	configPath := filepath.Join(workspace, ".augment", "config.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config = production mode (no logging)
			config.DebugMode = false
			configLoaded = true
			return nil
		}
		return err
	}

	var cf configFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	config = cf.Logging
	configLoaded = true

	// Parse log level
	switch config.Level {
	case "debug":
		logLevel = LevelDebug
	case "info":
		logLevel = LevelInfo
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}

	return nil
}

// ReloadConfig reloads the config from disk.
// Call this if config changes at runtime.
func ReloadConfig() error {
	return loadConfig()
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}

	if config.Categories == nil {
		return true // All enabled by default in debug mode
	}

	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true // Enable by default if not specified
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		// Return a no-op logger
		return &Logger{category: category}
	}

	if logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	// Create new logger
	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	// Create log file with date prefix for easy rotation
	date := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", date, category)
	logPath := filepath.Join(logsDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// Fall back to no-op logger
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l

	return l
}

// logJSON writes a structured JSON log entry
func (l *Logger) logJSON(level, msg string) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg) // Fallback to text
		return
	}
	l.logger.Printf("%s", data)
}

// Debug logs a debug message (only if level <= debug)
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("debug", msg)
	} else {
		l.logger.Printf("[DEBUG] %s", msg)
	}
}

// Info logs an informational message (only if level <= info)
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("info", msg)
	} else {
		l.logger.Printf("[INFO] %s", msg)
	}
}

// Warn logs a warning message (only if level <= warn)
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("warn", msg)
	} else {
		l.logger.Printf("[WARN] %s", msg)
	}
}

// Error logs an error message (always logged if logger exists)
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("error", msg)
	} else {
		l.logger.Printf("[ERROR] %s", msg)
	}
}

// StructuredLog writes a fully structured log entry with custom fields
func (l *Logger) StructuredLog(level string, msg string, fields map[string]interface{}) {
	if l.logger == nil {
		return
	}
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}
	if config.JSONFormat {
		data, err := json.Marshal(entry)
		if err == nil {
			l.logger.Printf("%s", data)
			return
		}
	}
	// Fallback to text format with fields
	l.logger.Printf("[%s] %s | fields=%v", level, msg, fields)
}

// IsJSONFormat returns whether JSON logging is enabled
func IsJSONFormat() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.JSONFormat
}

// WithContext returns a context logger for structured logging
func (l *Logger) WithContext(ctx map[string]interface{}) *ContextLogger {
	return &ContextLogger{logger: l, context: ctx}
}

// ContextLogger provides structured logging with key-value context
type ContextLogger struct {
	logger  *Logger
	context map[string]interface{}
}

func (c *ContextLogger) Debug(format string, args ...interface{}) {
	if c.logger.logger == nil || logLevel > LevelDebug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	c.logger.logger.Printf("[DEBUG] %s | ctx=%v", msg, c.context)
}

func (c *ContextLogger) Info(format string, args ...interface{}) {
	if c.logger.logger == nil || logLevel > LevelInfo {
		return
	}
	msg := fmt.Sprintf(format, args...)
	c.logger.logger.Printf("[INFO] %s | ctx=%v", msg, c.context)
}

func (c *ContextLogger) Warn(format string, args ...interface{}) {
	if c.logger.logger == nil || logLevel > LevelWarn {
		return
	}
	msg := fmt.Sprintf(format, args...)
	c.logger.logger.Printf("[WARN] %s | ctx=%v", msg, c.context)
}

func (c *ContextLogger) Error(format string, args ...interface{}) {
	if c.logger.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	c.logger.logger.Printf("[ERROR] %s | ctx=%v", msg, c.context)
}

// CloseAll closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// BootWarn logs warning to the boot category
func BootWarn(format string, args ...interface{}) {
	Get(CategoryBoot).Warn(format, args...)
}

// BootError logs error to the boot category
func BootError(format string, args ...interface{}) {
	Get(CategoryBoot).Error(format, args...)
}

// Config logs to the config category
func Config(format string, args ...interface{}) {
	Get(CategoryConfig).Info(format, args...)
}

// ConfigDebug logs debug to the config category
func ConfigDebug(format string, args ...interface{}) {
	Get(CategoryConfig).Debug(format, args...)
}

// ConfigWarn logs warning to the config category
func ConfigWarn(format string, args ...interface{}) {
	Get(CategoryConfig).Warn(format, args...)
}

// ConfigError logs error to the config category
func ConfigError(format string, args ...interface{}) {
	Get(CategoryConfig).Error(format, args...)
}

// Dispatcher logs to the dispatcher category
func Dispatcher(format string, args ...interface{}) {
	Get(CategoryDispatcher).Info(format, args...)
}

// DispatcherDebug logs debug to the dispatcher category
func DispatcherDebug(format string, args ...interface{}) {
	Get(CategoryDispatcher).Debug(format, args...)
}

// DispatcherWarn logs warning to the dispatcher category
func DispatcherWarn(format string, args ...interface{}) {
	Get(CategoryDispatcher).Warn(format, args...)
}

// DispatcherError logs error to the dispatcher category
func DispatcherError(format string, args ...interface{}) {
	Get(CategoryDispatcher).Error(format, args...)
}

// PathPolicy logs to the pathPolicy category
func PathPolicy(format string, args ...interface{}) {
	Get(CategoryPathPolicy).Info(format, args...)
}

// PathPolicyDebug logs debug to the pathPolicy category
func PathPolicyDebug(format string, args ...interface{}) {
	Get(CategoryPathPolicy).Debug(format, args...)
}

// PathPolicyWarn logs warning to the pathPolicy category
func PathPolicyWarn(format string, args ...interface{}) {
	Get(CategoryPathPolicy).Warn(format, args...)
}

// PathPolicyError logs error to the pathPolicy category
func PathPolicyError(format string, args ...interface{}) {
	Get(CategoryPathPolicy).Error(format, args...)
}

// Ignore logs to the ignore category
func Ignore(format string, args ...interface{}) {
	Get(CategoryIgnore).Info(format, args...)
}

// IgnoreDebug logs debug to the ignore category
func IgnoreDebug(format string, args ...interface{}) {
	Get(CategoryIgnore).Debug(format, args...)
}

// IgnoreWarn logs warning to the ignore category
func IgnoreWarn(format string, args ...interface{}) {
	Get(CategoryIgnore).Warn(format, args...)
}

// IgnoreError logs error to the ignore category
func IgnoreError(format string, args ...interface{}) {
	Get(CategoryIgnore).Error(format, args...)
}

// Discovery logs to the discovery category
func Discovery(format string, args ...interface{}) {
	Get(CategoryDiscovery).Info(format, args...)
}

// DiscoveryDebug logs debug to the discovery category
func DiscoveryDebug(format string, args ...interface{}) {
	Get(CategoryDiscovery).Debug(format, args...)
}

// DiscoveryWarn logs warning to the discovery category
func DiscoveryWarn(format string, args ...interface{}) {
	Get(CategoryDiscovery).Warn(format, args...)
}

// DiscoveryError logs error to the discovery category
func DiscoveryError(format string, args ...interface{}) {
	Get(CategoryDiscovery).Error(format, args...)
}

// Indexing logs to the indexing category
func Indexing(format string, args ...interface{}) {
	Get(CategoryIndexing).Info(format, args...)
}

// IndexingDebug logs debug to the indexing category
func IndexingDebug(format string, args ...interface{}) {
	Get(CategoryIndexing).Debug(format, args...)
}

// IndexingWarn logs warning to the indexing category
func IndexingWarn(format string, args ...interface{}) {
	Get(CategoryIndexing).Warn(format, args...)
}

// IndexingError logs error to the indexing category
func IndexingError(format string, args ...interface{}) {
	Get(CategoryIndexing).Error(format, args...)
}

// Watcher logs to the watcher category
func Watcher(format string, args ...interface{}) {
	Get(CategoryWatcher).Info(format, args...)
}

// WatcherDebug logs debug to the watcher category
func WatcherDebug(format string, args ...interface{}) {
	Get(CategoryWatcher).Debug(format, args...)
}

// WatcherWarn logs warning to the watcher category
func WatcherWarn(format string, args ...interface{}) {
	Get(CategoryWatcher).Warn(format, args...)
}

// WatcherError logs error to the watcher category
func WatcherError(format string, args ...interface{}) {
	Get(CategoryWatcher).Error(format, args...)
}

// Cache logs to the cache category
func Cache(format string, args ...interface{}) {
	Get(CategoryCache).Info(format, args...)
}

// CacheDebug logs debug to the cache category
func CacheDebug(format string, args ...interface{}) {
	Get(CategoryCache).Debug(format, args...)
}

// CacheWarn logs warning to the cache category
func CacheWarn(format string, args ...interface{}) {
	Get(CategoryCache).Warn(format, args...)
}

// CacheError logs error to the cache category
func CacheError(format string, args ...interface{}) {
	Get(CategoryCache).Error(format, args...)
}

// Retrieval logs to the retrieval category
func Retrieval(format string, args ...interface{}) {
	Get(CategoryRetrieval).Info(format, args...)
}

// RetrievalDebug logs debug to the retrieval category
func RetrievalDebug(format string, args ...interface{}) {
	Get(CategoryRetrieval).Debug(format, args...)
}

// RetrievalWarn logs warning to the retrieval category
func RetrievalWarn(format string, args ...interface{}) {
	Get(CategoryRetrieval).Warn(format, args...)
}

// RetrievalError logs error to the retrieval category
func RetrievalError(format string, args ...interface{}) {
	Get(CategoryRetrieval).Error(format, args...)
}

// Bundler logs to the bundler category
func Bundler(format string, args ...interface{}) {
	Get(CategoryBundler).Info(format, args...)
}

// BundlerDebug logs debug to the bundler category
func BundlerDebug(format string, args ...interface{}) {
	Get(CategoryBundler).Debug(format, args...)
}

// BundlerWarn logs warning to the bundler category
func BundlerWarn(format string, args ...interface{}) {
	Get(CategoryBundler).Warn(format, args...)
}

// BundlerError logs error to the bundler category
func BundlerError(format string, args ...interface{}) {
	Get(CategoryBundler).Error(format, args...)
}

// Engine logs to the engine category
func Engine(format string, args ...interface{}) {
	Get(CategoryEngine).Info(format, args...)
}

// EngineDebug logs debug to the engine category
func EngineDebug(format string, args ...interface{}) {
	Get(CategoryEngine).Debug(format, args...)
}

// EngineWarn logs warning to the engine category
func EngineWarn(format string, args ...interface{}) {
	Get(CategoryEngine).Warn(format, args...)
}

// EngineError logs error to the engine category
func EngineError(format string, args ...interface{}) {
	Get(CategoryEngine).Error(format, args...)
}

// Embedding logs to the embedding category
func Embedding(format string, args ...interface{}) {
	Get(CategoryEmbedding).Info(format, args...)
}

// EmbeddingDebug logs debug to the embedding category
func EmbeddingDebug(format string, args ...interface{}) {
	Get(CategoryEmbedding).Debug(format, args...)
}

// EmbeddingWarn logs warning to the embedding category
func EmbeddingWarn(format string, args ...interface{}) {
	Get(CategoryEmbedding).Warn(format, args...)
}

// EmbeddingError logs error to the embedding category
func EmbeddingError(format string, args ...interface{}) {
	Get(CategoryEmbedding).Error(format, args...)
}

// Plan logs to the plan category
func Plan(format string, args ...interface{}) {
	Get(CategoryPlan).Info(format, args...)
}

// PlanDebug logs debug to the plan category
func PlanDebug(format string, args ...interface{}) {
	Get(CategoryPlan).Debug(format, args...)
}

// PlanWarn logs warning to the plan category
func PlanWarn(format string, args ...interface{}) {
	Get(CategoryPlan).Warn(format, args...)
}

// PlanError logs error to the plan category
func PlanError(format string, args ...interface{}) {
	Get(CategoryPlan).Error(format, args...)
}

// History logs to the history category
func History(format string, args ...interface{}) {
	Get(CategoryHistory).Info(format, args...)
}

// HistoryDebug logs debug to the history category
func HistoryDebug(format string, args ...interface{}) {
	Get(CategoryHistory).Debug(format, args...)
}

// HistoryWarn logs warning to the history category
func HistoryWarn(format string, args ...interface{}) {
	Get(CategoryHistory).Warn(format, args...)
}

// HistoryError logs error to the history category
func HistoryError(format string, args ...interface{}) {
	Get(CategoryHistory).Error(format, args...)
}

// Approval logs to the approval category
func Approval(format string, args ...interface{}) {
	Get(CategoryApproval).Info(format, args...)
}

// ApprovalDebug logs debug to the approval category
func ApprovalDebug(format string, args ...interface{}) {
	Get(CategoryApproval).Debug(format, args...)
}

// ApprovalWarn logs warning to the approval category
func ApprovalWarn(format string, args ...interface{}) {
	Get(CategoryApproval).Warn(format, args...)
}

// ApprovalError logs error to the approval category
func ApprovalError(format string, args ...interface{}) {
	Get(CategoryApproval).Error(format, args...)
}

// Execution logs to the execution category
func Execution(format string, args ...interface{}) {
	Get(CategoryExecution).Info(format, args...)
}

// ExecutionDebug logs debug to the execution category
func ExecutionDebug(format string, args ...interface{}) {
	Get(CategoryExecution).Debug(format, args...)
}

// ExecutionWarn logs warning to the execution category
func ExecutionWarn(format string, args ...interface{}) {
	Get(CategoryExecution).Warn(format, args...)
}

// ExecutionError logs error to the execution category
func ExecutionError(format string, args ...interface{}) {
	Get(CategoryExecution).Error(format, args...)
}

// Preflight logs to the preflight category
func Preflight(format string, args ...interface{}) {
	Get(CategoryPreflight).Info(format, args...)
}

// PreflightDebug logs debug to the preflight category
func PreflightDebug(format string, args ...interface{}) {
	Get(CategoryPreflight).Debug(format, args...)
}

// PreflightWarn logs warning to the preflight category
func PreflightWarn(format string, args ...interface{}) {
	Get(CategoryPreflight).Warn(format, args...)
}

// PreflightError logs error to the preflight category
func PreflightError(format string, args ...interface{}) {
	Get(CategoryPreflight).Error(format, args...)
}

// Invariants logs to the invariants category
func Invariants(format string, args ...interface{}) {
	Get(CategoryInvariants).Info(format, args...)
}

// InvariantsDebug logs debug to the invariants category
func InvariantsDebug(format string, args ...interface{}) {
	Get(CategoryInvariants).Debug(format, args...)
}

// InvariantsWarn logs warning to the invariants category
func InvariantsWarn(format string, args ...interface{}) {
	Get(CategoryInvariants).Warn(format, args...)
}

// InvariantsError logs error to the invariants category
func InvariantsError(format string, args ...interface{}) {
	Get(CategoryInvariants).Error(format, args...)
}

// Static logs to the static category
func Static(format string, args ...interface{}) {
	Get(CategoryStatic).Info(format, args...)
}

// StaticDebug logs debug to the static category
func StaticDebug(format string, args ...interface{}) {
	Get(CategoryStatic).Debug(format, args...)
}

// StaticWarn logs warning to the static category
func StaticWarn(format string, args ...interface{}) {
	Get(CategoryStatic).Warn(format, args...)
}

// StaticError logs error to the static category
func StaticError(format string, args ...interface{}) {
	Get(CategoryStatic).Error(format, args...)
}

// LLMReview logs to the lLMReview category
func LLMReview(format string, args ...interface{}) {
	Get(CategoryLLMReview).Info(format, args...)
}

// LLMReviewDebug logs debug to the lLMReview category
func LLMReviewDebug(format string, args ...interface{}) {
	Get(CategoryLLMReview).Debug(format, args...)
}

// LLMReviewWarn logs warning to the lLMReview category
func LLMReviewWarn(format string, args ...interface{}) {
	Get(CategoryLLMReview).Warn(format, args...)
}

// LLMReviewError logs error to the lLMReview category
func LLMReviewError(format string, args ...interface{}) {
	Get(CategoryLLMReview).Error(format, args...)
}

// Verdict logs to the verdict category
func Verdict(format string, args ...interface{}) {
	Get(CategoryVerdict).Info(format, args...)
}

// VerdictDebug logs debug to the verdict category
func VerdictDebug(format string, args ...interface{}) {
	Get(CategoryVerdict).Debug(format, args...)
}

// VerdictWarn logs warning to the verdict category
func VerdictWarn(format string, args ...interface{}) {
	Get(CategoryVerdict).Warn(format, args...)
}

// VerdictError logs error to the verdict category
func VerdictError(format string, args ...interface{}) {
	Get(CategoryVerdict).Error(format, args...)
}

// Reactive logs to the reactive category
func Reactive(format string, args ...interface{}) {
	Get(CategoryReactive).Info(format, args...)
}

// ReactiveDebug logs debug to the reactive category
func ReactiveDebug(format string, args ...interface{}) {
	Get(CategoryReactive).Debug(format, args...)
}

// ReactiveWarn logs warning to the reactive category
func ReactiveWarn(format string, args ...interface{}) {
	Get(CategoryReactive).Warn(format, args...)
}

// ReactiveError logs error to the reactive category
func ReactiveError(format string, args ...interface{}) {
	Get(CategoryReactive).Error(format, args...)
}

// Tools logs to the tools category
func Tools(format string, args ...interface{}) {
	Get(CategoryTools).Info(format, args...)
}

// ToolsDebug logs debug to the tools category
func ToolsDebug(format string, args ...interface{}) {
	Get(CategoryTools).Debug(format, args...)
}

// ToolsWarn logs warning to the tools category
func ToolsWarn(format string, args ...interface{}) {
	Get(CategoryTools).Warn(format, args...)
}

// ToolsError logs error to the tools category
func ToolsError(format string, args ...interface{}) {
	Get(CategoryTools).Error(format, args...)
}

// Memory logs to the memory category
func Memory(format string, args ...interface{}) {
	Get(CategoryMemory).Info(format, args...)
}

// MemoryDebug logs debug to the memory category
func MemoryDebug(format string, args ...interface{}) {
	Get(CategoryMemory).Debug(format, args...)
}

// MemoryWarn logs warning to the memory category
func MemoryWarn(format string, args ...interface{}) {
	Get(CategoryMemory).Warn(format, args...)
}

// MemoryError logs error to the memory category
func MemoryError(format string, args ...interface{}) {
	Get(CategoryMemory).Error(format, args...)
}


// =============================================================================
// REQUEST ID TRACING - For distributed request tracing
// =============================================================================

// RequestLogger provides request-scoped logging with a correlation ID
type RequestLogger struct {
	logger    *Logger
	requestID string
	fields    map[string]interface{}
}

// WithRequestID creates a request-scoped logger for distributed tracing
func WithRequestID(category Category, requestID string) *RequestLogger {
	return &RequestLogger{
		logger:    Get(category),
		requestID: requestID,
		fields:    make(map[string]interface{}),
	}
}

// WithField adds a field to the request logger
func (r *RequestLogger) WithField(key string, value interface{}) *RequestLogger {
	r.fields[key] = value
	return r
}

func (r *RequestLogger) formatMsg(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	if len(r.fields) > 0 {
		return fmt.Sprintf("[req:%s] %s | %v", r.requestID, msg, r.fields)
	}
	return fmt.Sprintf("[req:%s] %s", r.requestID, msg)
}

func (r *RequestLogger) Debug(format string, args ...interface{}) {
	if r.logger.logger == nil || logLevel > LevelDebug {
		return
	}
	r.logger.logger.Printf("[DEBUG] %s", r.formatMsg(format, args...))
}

func (r *RequestLogger) Info(format string, args ...interface{}) {
	if r.logger.logger == nil || logLevel > LevelInfo {
		return
	}
	r.logger.logger.Printf("[INFO] %s", r.formatMsg(format, args...))
}

func (r *RequestLogger) Warn(format string, args ...interface{}) {
	if r.logger.logger == nil || logLevel > LevelWarn {
		return
	}
	r.logger.logger.Printf("[WARN] %s", r.formatMsg(format, args...))
}

func (r *RequestLogger) Error(format string, args ...interface{}) {
	if r.logger.logger == nil {
		return
	}
	r.logger.logger.Printf("[ERROR] %s", r.formatMsg(format, args...))
}

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
