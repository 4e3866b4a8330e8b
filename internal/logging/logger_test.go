package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetLoggingState() {
	CloseAll()
	loggers = make(map[Category]*Logger)
	logsDir = ""
	workspace = ""
	configLoaded = false
	config = loggingConfig{}
}

func writeConfig(t *testing.T, tempDir string, content string) {
	t.Helper()
	configDir := filepath.Join(tempDir, ".augment")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestAllCategoriesLog(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	writeConfig(t, tempDir, `{
		"logging": {
			"level": "debug",
			"debug_mode": true,
			"categories": {
				"boot": true, "config": true, "dispatcher": true,
				"path_policy": true, "ignore": true, "discovery": true,
				"indexing": true, "watcher": true, "cache": true,
				"retrieval": true, "bundler": true, "engine": true,
				"embedding": true, "plan": true, "history": true,
				"approval": true, "execution": true, "preflight": true,
				"invariants": true, "static": true, "llm_review": true,
				"verdict": true, "reactive": true, "tools": true, "memory": true
			}
		}
	}`)

	resetLoggingState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("failed to initialize logging: %v", err)
	}
	if !IsDebugMode() {
		t.Fatal("expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot, CategoryConfig, CategoryDispatcher,
		CategoryPathPolicy, CategoryIgnore, CategoryDiscovery,
		CategoryIndexing, CategoryWatcher, CategoryCache,
		CategoryRetrieval, CategoryBundler, CategoryEngine,
		CategoryEmbedding, CategoryPlan, CategoryHistory,
		CategoryApproval, CategoryExecution, CategoryPreflight,
		CategoryInvariants, CategoryStatic, CategoryLLMReview,
		CategoryVerdict, CategoryReactive, CategoryTools, CategoryMemory,
	}

	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("category %s should be enabled", cat)
		}
		logger := Get(cat)
		logger.Info("info for %s", cat)
		logger.Debug("debug for %s", cat)
		logger.Warn("warn for %s", cat)
		logger.Error("error for %s", cat)
	}

	Boot("convenience boot log")
	Dispatcher("convenience dispatcher log")
	Indexing("convenience indexing log")
	Retrieval("convenience retrieval log")
	Execution("convenience execution log")
	Reactive("convenience reactive log")

	CloseAll()

	logsPath := filepath.Join(tempDir, ".augment", "logs")
	entries, err := os.ReadDir(logsPath)
	if err != nil {
		t.Fatalf("failed to read logs dir: %v", err)
	}

	for _, cat := range categories {
		found := false
		for _, entry := range entries {
			if strings.Contains(entry.Name(), string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(logsPath, entry.Name()))
				if err != nil {
					t.Errorf("failed to read log file for %s: %v", cat, err)
					continue
				}
				if len(content) == 0 {
					t.Errorf("log file for %s is empty", cat)
				}
				break
			}
		}
		if !found {
			t.Errorf("no log file found for category: %s", cat)
		}
	}
}

func TestDebugModeDisabled(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test_disabled")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	writeConfig(t, tempDir, `{
		"logging": {
			"level": "debug",
			"debug_mode": false,
			"categories": {"boot": true, "execution": true}
		}
	}`)

	resetLoggingState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("failed to initialize logging: %v", err)
	}
	if IsDebugMode() {
		t.Error("expected debug mode to be disabled (production mode)")
	}

	for _, cat := range []Category{CategoryBoot, CategoryExecution, CategoryReactive} {
		if IsCategoryEnabled(cat) {
			t.Errorf("category %s should be disabled when debug_mode=false", cat)
		}
	}

	Boot("should not be logged")
	Get(CategoryBoot).Info("should not be logged")

	CloseAll()

	logsPath := filepath.Join(tempDir, ".augment", "logs")
	if _, err := os.Stat(logsPath); err == nil {
		entries, _ := os.ReadDir(logsPath)
		if len(entries) > 0 {
			t.Errorf("expected no log files in production mode, found %d", len(entries))
		}
	} else if !os.IsNotExist(err) {
		t.Fatalf("unexpected stat error: %v", err)
	}
}

func TestCategoryToggle(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test_category")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	writeConfig(t, tempDir, `{
		"logging": {
			"level": "debug",
			"debug_mode": true,
			"categories": {"boot": true, "execution": true, "reactive": false, "preflight": false}
		}
	}`)

	resetLoggingState()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}

	if !IsCategoryEnabled(CategoryBoot) {
		t.Error("boot should be enabled")
	}
	if !IsCategoryEnabled(CategoryExecution) {
		t.Error("execution should be enabled")
	}
	if IsCategoryEnabled(CategoryReactive) {
		t.Error("reactive should be disabled")
	}
	if IsCategoryEnabled(CategoryPreflight) {
		t.Error("preflight should be disabled")
	}
	if !IsCategoryEnabled(CategoryVerdict) {
		t.Error("verdict (not in config) should default to enabled")
	}

	Boot("should be logged")
	Execution("should be logged")
	Reactive("should not be logged")
	Preflight("should not be logged")
	Verdict("should be logged (default enabled)")

	CloseAll()

	logsPath := filepath.Join(tempDir, ".augment", "logs")
	entries, _ := os.ReadDir(logsPath)

	var hasBoot, hasExecution, hasReactive, hasPreflight bool
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.Contains(name, "boot"):
			hasBoot = true
		case strings.Contains(name, "execution"):
			hasExecution = true
		case strings.Contains(name, "reactive"):
			hasReactive = true
		case strings.Contains(name, "preflight"):
			hasPreflight = true
		}
	}

	if !hasBoot {
		t.Error("expected boot log file")
	}
	if !hasExecution {
		t.Error("expected execution log file")
	}
	if hasReactive {
		t.Error("should not have reactive log file (disabled)")
	}
	if hasPreflight {
		t.Error("should not have preflight log file (disabled)")
	}
}

func TestTimerLogging(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test_timer")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	writeConfig(t, tempDir, `{"logging": {"level": "debug", "debug_mode": true}}`)

	resetLoggingState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}

	timer := StartTimer(CategoryExecution, "test_operation")
	time.Sleep(time.Millisecond)
	elapsed := timer.Stop()

	if elapsed <= 0 {
		t.Error("timer should have recorded non-zero duration")
	}

	CloseAll()
}
