package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"asr":     {"whisper", "openai"},
	"aligner": {"mms"},
	"llm":     {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("asr", cfg.Providers.ASR.Name)
	if cfg.Providers.ASRFallback != nil {
		validateProviderName("asr", cfg.Providers.ASRFallback.Name)
	}
	validateProviderName("aligner", cfg.Providers.Aligner.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)

	if cfg.Providers.ASR.Name == "" {
		errs = append(errs, errors.New("providers.asr.name is required"))
	}
	if cfg.Providers.ASRFallback != nil && cfg.Providers.ASRFallback.Name == "" {
		errs = append(errs, errors.New("providers.asr_fallback.name is required when the block is present"))
	}

	// Refinement strategies and the providers they depend on.
	strategies := cfg.Pipeline.Strategies
	if len(strategies) == 0 {
		strategies = []RefineStrategy{StrategyForcedAligner}
	}
	seen := make(map[RefineStrategy]int, len(strategies))
	for i, s := range strategies {
		prefix := fmt.Sprintf("pipeline.strategies[%d]", i)
		if !s.IsValid() {
			errs = append(errs, fmt.Errorf("%s %q is invalid; valid values: forced_aligner, llm_refine", prefix, s))
			continue
		}
		if prev, ok := seen[s]; ok {
			errs = append(errs, fmt.Errorf("%s %q is a duplicate of pipeline.strategies[%d]", prefix, s, prev))
		}
		seen[s] = i
	}
	if _, ok := seen[StrategyForcedAligner]; ok && cfg.Providers.Aligner.Name == "" {
		errs = append(errs, errors.New("pipeline.strategies includes forced_aligner but providers.aligner is not configured"))
	}
	if _, ok := seen[StrategyLLMRefine]; ok && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("pipeline.strategies includes llm_refine but providers.llm is not configured"))
	}

	// Pipeline tunables
	if t := cfg.Pipeline.MatchThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("pipeline.match_threshold %.2f is out of range (0, 1]", t))
	}
	if cfg.Pipeline.Lookahead < 0 {
		errs = append(errs, fmt.Errorf("pipeline.lookahead %d must not be negative", cfg.Pipeline.Lookahead))
	}
	if cfg.Pipeline.MaxAlignSeconds < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_align_seconds %.1f must not be negative", cfg.Pipeline.MaxAlignSeconds))
	}
	if cfg.Pipeline.StageTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("pipeline.stage_timeout_seconds %d must not be negative", cfg.Pipeline.StageTimeoutSeconds))
	}

	// Storage
	if cfg.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir is required"))
	}
	if cfg.Jobs.OutputDir == "" {
		errs = append(errs, errors.New("jobs.output_dir is required"))
	}
	if cfg.Jobs.Workers < 0 {
		errs = append(errs, fmt.Errorf("jobs.workers %d must not be negative", cfg.Jobs.Workers))
	}
	if cfg.Jobs.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("jobs.queue_size %d must not be negative", cfg.Jobs.QueueSize))
	}

	// Catalog availability
	if cfg.Catalog.PostgresDSN == "" {
		slog.Warn("catalog.postgres_dsn is empty; alignment history will not be recorded")
	}
	if fb := cfg.Providers.ASRFallback; fb != nil && fb.Name == cfg.Providers.ASR.Name {
		slog.Warn("ASR fallback uses the same provider as the primary",
			"name", cfg.Providers.ASR.Name,
		)
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
