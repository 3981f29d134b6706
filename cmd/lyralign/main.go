// Command lyralign is the main entry point for the lyralign alignment server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/lyralign/internal/cache"
	"github.com/MrWong99/lyralign/internal/catalog"
	"github.com/MrWong99/lyralign/internal/config"
	"github.com/MrWong99/lyralign/internal/health"
	"github.com/MrWong99/lyralign/internal/jobs"
	"github.com/MrWong99/lyralign/internal/modelpool"
	"github.com/MrWong99/lyralign/internal/observe"
	"github.com/MrWong99/lyralign/internal/pipeline"
	"github.com/MrWong99/lyralign/internal/pipeline/linemap"
	"github.com/MrWong99/lyralign/internal/pipeline/refine"
	"github.com/MrWong99/lyralign/internal/resilience"
	"github.com/MrWong99/lyralign/pkg/provider/align"
	"github.com/MrWong99/lyralign/pkg/provider/align/mms"
	"github.com/MrWong99/lyralign/pkg/provider/asr"
	asropenai "github.com/MrWong99/lyralign/pkg/provider/asr/openai"
	"github.com/MrWong99/lyralign/pkg/provider/asr/whisper"
)

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lyralign: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lyralign: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("lyralign starting",
		"config", *configPath,
		"listen_addr", listenAddr(cfg),
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "lyralign"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	models, err := modelpool.New(modelpool.DefaultSize, func(path string) (*whisper.Provider, error) {
		return whisper.New(path)
	})
	if err != nil {
		slog.Error("failed to initialise model pool", "err", err)
		return 1
	}
	defer models.Close()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg, models)

	// ── Transcription (with optional fallback) ────────────────────────────────
	asrProvider, err := buildASR(cfg, reg)
	if err != nil {
		slog.Error("failed to build ASR provider", "err", err)
		return 1
	}

	// ── Refinement strategies ─────────────────────────────────────────────────
	strategies, err := buildStrategies(cfg, reg)
	if err != nil {
		slog.Error("failed to build refinement strategies", "err", err)
		return 1
	}
	refiner := refine.New(strategies)

	// ── Storage ───────────────────────────────────────────────────────────────
	cacheStore, err := cache.New(cfg.Cache.Dir)
	if err != nil {
		slog.Error("failed to open result cache", "err", err)
		return 1
	}

	var catalogStore *catalog.Store
	checkers := []health.Checker{
		health.DirWritable("cache", cfg.Cache.Dir),
		health.DirWritable("output", cfg.Jobs.OutputDir),
	}
	if cfg.Catalog.PostgresDSN != "" {
		store, closeCatalog, err := catalog.Connect(ctx, cfg.Catalog.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to catalog", "err", err)
			return 1
		}
		defer closeCatalog()
		catalogStore = store
		checkers = append(checkers, health.Checker{Name: "catalog", Check: store.Ping})
		slog.Info("catalog connected")
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	runner := pipeline.New(asrProvider, refiner, newMapper(cfg.Pipeline), cacheStore,
		pipelineOptions(cfg.Pipeline, metrics)...)

	// ── Jobs ──────────────────────────────────────────────────────────────────
	jobStore := jobs.NewStore()
	pool := jobs.NewPool(runner, jobStore, jobs.PoolConfig{
		Workers:   cfg.Jobs.Workers,
		QueueSize: cfg.Jobs.QueueSize,
		OutputDir: cfg.Jobs.OutputDir,
		Catalog:   catalogStore,
		Metrics:   metrics,
	})

	// ── HTTP server ───────────────────────────────────────────────────────────
	server := jobs.NewServer(pool, jobStore, health.New(checkers...), metrics)
	httpSrv := &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.PipelineChanged {
			runner.Retune(newMapper(d.NewPipeline), pipelineOptions(d.NewPipeline, metrics)...)
			slog.Info("pipeline tunables reloaded")
		}
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	// ── Serve ─────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Whisper models are loaded through the shared model pool so repeated
// creates with the same model path reuse one handle.
func registerBuiltinProviders(reg *config.Registry, models *modelpool.Pool[*whisper.Provider]) {
	// ── ASR ───────────────────────────────────────────────────────────────────

	reg.RegisterASR("whisper", func(entry config.ProviderEntry) (asr.Provider, error) {
		if entry.ModelPath == "" {
			return nil, errors.New("whisper requires model_path")
		}
		return models.Get(entry.ModelPath)
	})

	reg.RegisterASR("openai", func(entry config.ProviderEntry) (asr.Provider, error) {
		var opts []asropenai.Option
		if entry.Model != "" {
			opts = append(opts, asropenai.WithModel(entry.Model))
		}
		return asropenai.New(entry.APIKey, entry.BaseURL, opts...)
	})

	// ── Forced alignment ──────────────────────────────────────────────────────

	reg.RegisterAligner("mms", func(entry config.ProviderEntry) (align.Provider, error) {
		return mms.New(entry.BaseURL)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (anyllmlib.Provider, error) {
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllmoai.New(opts...)
	})

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (anyllmlib.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return ollama.New(opts...)
	})
}

// buildASR instantiates the primary transcription provider and, when
// configured, wraps it with the circuit-breaking fallback chain.
func buildASR(cfg *config.Config, reg *config.Registry) (asr.Provider, error) {
	primary, err := reg.CreateASR(cfg.Providers.ASR)
	if err != nil {
		return nil, fmt.Errorf("create asr provider %q: %w", cfg.Providers.ASR.Name, err)
	}
	slog.Info("provider created", "kind", "asr", "name", cfg.Providers.ASR.Name)

	if cfg.Providers.ASRFallback == nil {
		return primary, nil
	}

	fallback, err := reg.CreateASR(*cfg.Providers.ASRFallback)
	if err != nil {
		return nil, fmt.Errorf("create asr fallback %q: %w", cfg.Providers.ASRFallback.Name, err)
	}
	slog.Info("provider created", "kind", "asr", "name", cfg.Providers.ASRFallback.Name, "role", "fallback")

	group := resilience.NewASRFallback(primary, cfg.Providers.ASR.Name, resilience.FallbackConfig{})
	group.AddFallback(cfg.Providers.ASRFallback.Name, fallback)
	return group, nil
}

// buildStrategies turns the configured strategy list into refinement
// strategy instances, in order. The raw-transcript fallback is implicit.
func buildStrategies(cfg *config.Config, reg *config.Registry) ([]refine.Strategy, error) {
	names := cfg.Pipeline.Strategies
	if len(names) == 0 {
		names = []config.RefineStrategy{config.StrategyForcedAligner}
	}

	var strategies []refine.Strategy
	for _, name := range names {
		switch name {
		case config.StrategyForcedAligner:
			provider, err := reg.CreateAligner(cfg.Providers.Aligner)
			if err != nil {
				return nil, fmt.Errorf("create aligner provider %q: %w", cfg.Providers.Aligner.Name, err)
			}
			slog.Info("provider created", "kind", "aligner", "name", cfg.Providers.Aligner.Name)
			strategies = append(strategies,
				refine.NewAlignerStrategy(provider, cfg.Pipeline.MaxAlignSeconds, cfg.Pipeline.Language))

		case config.StrategyLLMRefine:
			backend, err := reg.CreateLLM(cfg.Providers.LLM)
			if err != nil {
				return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
			}
			slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)
			s, err := refine.NewLLMStrategy(backend, cfg.Providers.LLM.Model)
			if err != nil {
				return nil, err
			}
			strategies = append(strategies, s)

		default:
			return nil, fmt.Errorf("unknown refinement strategy %q", name)
		}
	}
	return strategies, nil
}

// ── Pipeline wiring ───────────────────────────────────────────────────────────

func newMapper(p config.PipelineConfig) *linemap.Mapper {
	return linemap.New(linemap.Config{
		Threshold: p.MatchThreshold,
		Lookahead: p.Lookahead,
	})
}

func pipelineOptions(p config.PipelineConfig, metrics *observe.Metrics) []pipeline.Option {
	opts := []pipeline.Option{
		pipeline.WithVAD(p.VAD),
		pipeline.WithLyricsPrompt(p.PromptLyrics),
		pipeline.WithMetrics(metrics),
	}
	if p.StageTimeoutSeconds > 0 {
		opts = append(opts, pipeline.WithStageTimeout(time.Duration(p.StageTimeoutSeconds)*time.Second))
	}
	return opts
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        lyralign — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("ASR", cfg.Providers.ASR.Name, cfg.Providers.ASR.Model)
	if fb := cfg.Providers.ASRFallback; fb != nil {
		printProvider("ASR fallback", fb.Name, fb.Model)
	}
	printProvider("Aligner", cfg.Providers.Aligner.Name, "")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	if cfg.Catalog.PostgresDSN != "" {
		fmt.Printf("║  Catalog         : %-19s ║\n", "connected")
	} else {
		fmt.Printf("║  Catalog         : %-19s ║\n", "(disabled)")
	}
	fmt.Printf("║  Cache dir       : %-19s ║\n", trunc(cfg.Cache.Dir))
	fmt.Printf("║  Output dir      : %-19s ║\n", trunc(cfg.Jobs.OutputDir))
	fmt.Printf("║  Listen addr     : %-19s ║\n", listenAddr(cfg))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, trunc(value))
}

func trunc(s string) string {
	if len(s) > 19 {
		return s[:16] + "…"
	}
	return s
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func listenAddr(cfg *config.Config) string {
	if cfg.Server.ListenAddr != "" {
		return cfg.Server.ListenAddr
	}
	return ":8080"
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
