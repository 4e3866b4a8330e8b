// Command daemon is the long-running developer-assist daemon's entry point:
// it parses the workspace/transport flags, wires every component, and serves
// the Tool Dispatcher (C19) over stdio or HTTP until signalled to stop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rishitank/context-engine-sub000/internal/approval"
	"github.com/rishitank/context-engine-sub000/internal/cache"
	"github.com/rishitank/context-engine-sub000/internal/config"
	"github.com/rishitank/context-engine-sub000/internal/contextbundle"
	"github.com/rishitank/context-engine-sub000/internal/discovery"
	"github.com/rishitank/context-engine-sub000/internal/dispatcher"
	"github.com/rishitank/context-engine-sub000/internal/embedding"
	"github.com/rishitank/context-engine-sub000/internal/engine"
	"github.com/rishitank/context-engine-sub000/internal/execution"
	"github.com/rishitank/context-engine-sub000/internal/history"
	"github.com/rishitank/context-engine-sub000/internal/ignore"
	"github.com/rishitank/context-engine-sub000/internal/indexing"
	"github.com/rishitank/context-engine-sub000/internal/invariants"
	"github.com/rishitank/context-engine-sub000/internal/llmreview"
	"github.com/rishitank/context-engine-sub000/internal/logging"
	"github.com/rishitank/context-engine-sub000/internal/mcpserver"
	"github.com/rishitank/context-engine-sub000/internal/memory"
	"github.com/rishitank/context-engine-sub000/internal/pathpolicy"
	"github.com/rishitank/context-engine-sub000/internal/plan"
	"github.com/rishitank/context-engine-sub000/internal/reactive"
	"github.com/rishitank/context-engine-sub000/internal/retrieval"
	"github.com/rishitank/context-engine-sub000/internal/staticanalysis"
	"github.com/rishitank/context-engine-sub000/internal/tools"
	"github.com/rishitank/context-engine-sub000/internal/watcher"
)

// Global flags, set by cobra.Command.PersistentFlags/Flags in init().
var (
	verbose      bool
	workspace    string
	doIndex      bool
	doWatch      bool
	transport    string
	port         int
	metricsFlag  bool
	metricsPort  int
)

var logger *zap.Logger

// policyError causes main() to exit 2 (policy violation) instead of 1
// (generic startup error), per spec §6's CLI exit-code contract.
type policyError struct{ msg string }

func (e *policyError) Error() string { return e.msg }

var rootCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Local developer-assist context daemon",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		z, err := zapCfg.Build()
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		logger = z

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		} else if abs, err := filepath.Abs(ws); err == nil {
			ws = abs
		}
		workspace = ws

		if err := logging.Initialize(ws); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runDaemon,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().BoolVar(&doIndex, "index", false, "Index the workspace on start")
	rootCmd.PersistentFlags().BoolVar(&doWatch, "watch", false, "Enable the file-system watcher (C5)")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "stdio", "Tool protocol transport: stdio|http")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "HTTP port (required for --transport http)")
	rootCmd.PersistentFlags().BoolVar(&metricsFlag, "metrics", false, "Expose a GET /metrics endpoint")
	rootCmd.PersistentFlags().IntVar(&metricsPort, "metrics-port", 0, "Metrics port (defaults to --port when 0 and transport is http)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if _, ok := err.(*policyError); ok {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(workspace, "")
	if err != nil {
		return err
	}
	cfg.Transport.Mode = transport
	cfg.Transport.Port = port
	cfg.Transport.Metrics = metricsFlag
	cfg.Transport.MetricsPort = metricsPort
	cfg.Watcher.Enabled = doWatch

	if doIndex && cfg.Indexing.OfflineOnly && !config.IsLoopbackOrLocal(cfg.Indexing.EngineURL) {
		return &policyError{msg: "policy violation: --index requested under CONTEXT_ENGINE_OFFLINE_ONLY with a non-local engine URL"}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, cleanup, err := wire(cfg)
	if err != nil {
		return fmt.Errorf("wiring daemon: %w", err)
	}
	defer cleanup()

	reg := tools.NewRegistry()
	dispatcher.Register(reg, deps.dispatcherDeps())

	if doIndex {
		logging.Boot("indexing workspace on start")
		if _, derr := deps.Indexing.IndexWorkspace(ctx); derr != nil {
			return fmt.Errorf("initial index: %w", derr)
		}
	}

	deps.Execution.StartSweeper(ctx)
	deps.Reactive.StartHousekeeping(ctx)

	if doWatch {
		go runWatcher(ctx, deps)
	}

	srv := mcpserver.New(reg)
	logging.Boot("daemon ready: workspace=%s transport=%s", workspace, cfg.Transport.Mode)

	switch cfg.Transport.Mode {
	case "stdio":
		return mcpserver.ServeStdio(ctx, srv, os.Stdin, os.Stdout)
	case "http":
		return serveHTTP(ctx, srv, cfg)
	default:
		return fmt.Errorf("unsupported transport: %s", cfg.Transport.Mode)
	}
}

func serveHTTP(ctx context.Context, srv *mcpserver.Server, cfg config.Config) error {
	mux := mcpserver.NewMux(srv, false)
	addr := fmt.Sprintf(":%d", cfg.Transport.Port)
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	var metricsSrv *http.Server
	if cfg.Transport.Metrics {
		mp := cfg.Transport.MetricsPort
		if mp == 0 {
			mp = cfg.Transport.Port
		}
		if mp == cfg.Transport.Port {
			mux.HandleFunc("/metrics", mcpserver.MetricsHandler(srv))
		} else {
			metricsMux := http.NewServeMux()
			metricsMux.HandleFunc("/metrics", mcpserver.MetricsHandler(srv))
			metricsSrv = &http.Server{Addr: fmt.Sprintf(":%d", mp), Handler: metricsMux}
			go func() {
				if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logging.BootError("metrics server: %v", err)
				}
			}()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Boot("http transport listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// runWatcher forwards C5 batches into the Indexing Orchestrator until ctx is
// cancelled, mirroring spec §4.5's "Watcher feeds C4" data flow.
func runWatcher(ctx context.Context, deps *daemonDeps) {
	go deps.Watcher.Run()
	defer deps.Watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-deps.Watcher.Batches:
			if !ok {
				return
			}
			if len(batch.Changed) > 0 {
				if _, derr := deps.Indexing.IndexFiles(ctx, batch.Changed); derr != nil {
					logging.IndexingError("watcher-triggered index failed: %s", derr.Message)
				}
			}
		case _, ok := <-deps.Watcher.ReindexSignal:
			if !ok {
				return
			}
			if _, derr := deps.Indexing.ReindexWorkspace(ctx); derr != nil {
				logging.IndexingError("watcher-triggered reindex failed: %s", derr.Message)
			}
		}
	}
}

// daemonDeps collects every constructed component, before they are narrowed
// into dispatcher.Dependencies for tool registration.
type daemonDeps struct {
	Policy    *pathpolicy.Policy
	Discovery *discovery.Discoverer
	Indexing  *indexing.Orchestrator
	Watcher   *watcher.Watcher
	Retrieval *retrieval.Service
	Bundler   *contextbundle.Bundler
	Plans     *plan.Store
	History   *history.Store
	Approvals *approval.Store
	Execution *execution.Tracker
	Reactive  *reactive.Manager
	Memories  *memory.Store
	Analyzers []staticanalysis.Adapter
	LLM       *llmreview.Orchestrator
	Config    config.Config
}

func (d *daemonDeps) dispatcherDeps() dispatcher.Dependencies {
	return dispatcher.Dependencies{
		Indexing:            d.Indexing,
		Retrieval:           d.Retrieval,
		Bundler:             d.Bundler,
		Plans:               d.Plans,
		History:             d.History,
		Approvals:           d.Approvals,
		Execution:           d.Execution,
		Reactive:            d.Reactive,
		Memories:            d.Memories,
		Analyzers:           d.Analyzers,
		LLM:                 d.LLM,
		InvariantsPath:      filepath.Join(d.Config.Workspace.Root, ".review-invariants.yml"),
		Review:              d.Config.Review,
		RequireApprovalAuto: d.Config.Execution.RequireApprovalAuto,
	}
}

func wire(cfg config.Config) (*daemonDeps, func(), error) {
	ws := cfg.Workspace.Root

	policy, err := pathpolicy.New(ws)
	if err != nil {
		return nil, nil, fmt.Errorf("path policy: %w", err)
	}
	policy = policy.WithMaxFileBytes(cfg.Indexing.MaxFileBytes)

	rules, err := ignore.Load(ws)
	if err != nil {
		return nil, nil, fmt.Errorf("ignore rules: %w", err)
	}

	disc := discovery.New(policy, rules)

	embedCfg := embedding.DefaultConfig()
	embedCfg.Provider = cfg.Engine.EmbeddingProvider
	embedder, err := embedding.NewEngine(embedCfg)
	if err != nil {
		logging.BootWarn("embedding engine unavailable (%v); falling back to keyword search", err)
	}

	eng, err := engine.Open(cfg.Engine.DBPath, embedder)
	if err != nil {
		return nil, nil, fmt.Errorf("opening context engine: %w", err)
	}

	searchCache := cache.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLSeconds)*time.Second, filepath.Join(ws, ".augment-search-cache.json"))
	ctxCache := cache.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLSeconds)*time.Second, filepath.Join(ws, ".augment-context-cache.json"))
	fp := cache.NewFingerprint(filepath.Join(ws, ".augment-index-fingerprint.json"))

	idx := indexing.New(policy, disc, eng, cfg.Indexing, searchCache, ctxCache, fp, cfg.Workspace.StateFilePath)

	var w *watcher.Watcher
	if cfg.Watcher.Enabled {
		w, err = watcher.New(policy, rules, watcher.Options{
			DebounceMs:           cfg.Watcher.DebounceMs,
			ReindexOnDelete:      cfg.Watcher.ReindexOnDelete,
			ReindexDebounceMs:    cfg.Watcher.ReindexDebounceMs,
			ReindexCooldownMs:    cfg.Watcher.ReindexCooldownMs,
			DeleteBurstThreshold: cfg.Watcher.DeleteBurstThreshold,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("watcher: %w", err)
		}
	}

	svc := retrieval.New(eng, policy, searchCache, fp)

	reader := func(relPath string) (string, error) {
		content, derr := svc.GetFile(context.Background(), relPath, 0, 0)
		if derr != nil {
			return "", derr
		}
		return content, nil
	}
	bundler := contextbundle.New(svc, reader)

	plans, err := plan.NewStore(cfg.Plan.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("plan store: %w", err)
	}
	hist, err := history.NewStore(filepath.Join(cfg.Plan.Dir, "history"))
	if err != nil {
		return nil, nil, fmt.Errorf("history store: %w", err)
	}
	approvals := approval.NewStore()

	pool := cfg.Concurrency.ResolvedWorkerPoolSize()
	tracker := execution.New(cfg.Execution, pool, svc, policy, execution.ParseChangeSetJSON)

	analyzers := []staticanalysis.Adapter{
		staticanalysis.NewTypeCheckAdapter(),
		&staticanalysis.PatternRuleAdapter{
			Rules:    staticanalysis.DefaultPatternRules(),
			ReadFile: os.ReadFile,
		},
	}
	llm := llmreview.New(svc)

	invariantsPath := filepath.Join(ws, ".review-invariants.yml")
	ruleSet, derr := invariants.Load(invariantsPath)
	if derr != nil {
		logging.BootWarn("invariants not loaded (%s): reactive sessions will run without rule checks", derr.Message)
	}

	reactiveMgr := reactive.New(cfg.Reactive, cfg.Review, reactive.Dependencies{
		Tracker:   tracker,
		Diffs:     &reactive.GitDiffProvider{Dir: ws},
		RuleSet:   ruleSet,
		Analyzers: analyzers,
		LLM:       llm,
	})

	memories, err := memory.NewStore(filepath.Join(ws, ".memories"))
	if err != nil {
		return nil, nil, fmt.Errorf("memory store: %w", err)
	}

	deps := &daemonDeps{
		Policy:    policy,
		Discovery: disc,
		Indexing:  idx,
		Watcher:   w,
		Retrieval: svc,
		Bundler:   bundler,
		Plans:     plans,
		History:   hist,
		Approvals: approvals,
		Execution: tracker,
		Reactive:  reactiveMgr,
		Memories:  memories,
		Analyzers: analyzers,
		LLM:       llm,
		Config:    cfg,
	}

	cleanup := func() {
		_ = eng.Close()
	}
	return deps, cleanup, nil
}
