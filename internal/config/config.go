// Package config provides the configuration schema, loader, provider
// registry, and hot-reload watcher for the lyralign service.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// RefineStrategy names one timing refinement strategy in the ordered
// strategy list.
type RefineStrategy string

const (
	// StrategyForcedAligner runs the forced aligner (highest precision,
	// duration gated).
	StrategyForcedAligner RefineStrategy = "forced_aligner"

	// StrategyLLMRefine re-segments transcript timing with an LLM.
	StrategyLLMRefine RefineStrategy = "llm_refine"
)

// IsValid reports whether s is a recognised strategy name.
func (s RefineStrategy) IsValid() bool {
	return s == StrategyForcedAligner || s == StrategyLLMRefine
}

// Config is the root configuration, typically loaded from a YAML file
// via [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Cache     CacheConfig     `yaml:"cache"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Jobs      JobsConfig      `yaml:"jobs"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the API listens on (e.g. ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures HTTPS. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds PEM certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the ML backend for each pipeline concern. Each
// entry's Name is looked up in the [Registry].
type ProvidersConfig struct {
	// ASR is the primary transcription backend.
	ASR ProviderEntry `yaml:"asr"`

	// ASRFallback, when set, backs the primary behind a circuit breaker.
	ASRFallback *ProviderEntry `yaml:"asr_fallback"`

	// Aligner is the forced-alignment backend.
	Aligner ProviderEntry `yaml:"aligner"`

	// LLM is the refinement model backend, required only when the
	// strategy list contains llm_refine.
	LLM ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds.
type ProviderEntry struct {
	// Name selects the registered implementation (e.g. "whisper",
	// "openai", "mms").
	Name string `yaml:"name"`

	// APIKey authenticates hosted backends.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a hosted model (e.g. "whisper-1", "gpt-4o-mini").
	Model string `yaml:"model"`

	// ModelPath points at a local model file for in-process backends.
	ModelPath string `yaml:"model_path"`

	// Options holds backend-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// PipelineConfig holds the alignment pipeline tunables.
type PipelineConfig struct {
	// Language is the default BCP-47 hint for the ML engines.
	Language string `yaml:"language"`

	// Strategies is the ordered refinement strategy list. Empty means
	// [forced_aligner]; the raw-transcript fallback is always implicit
	// and last.
	Strategies []RefineStrategy `yaml:"strategies"`

	// MatchThreshold is the minimum line/span similarity in (0, 1].
	// Zero means the built-in default.
	MatchThreshold float64 `yaml:"match_threshold"`

	// Lookahead bounds the mapper's forward search in spans. Zero means
	// the built-in default.
	Lookahead int `yaml:"lookahead"`

	// MaxAlignSeconds is the forced aligner's admission ceiling. Zero
	// means the built-in default.
	MaxAlignSeconds float64 `yaml:"max_align_seconds"`

	// StageTimeoutSeconds bounds one ML stage invocation. Zero means the
	// built-in default.
	StageTimeoutSeconds int `yaml:"stage_timeout_seconds"`

	// VAD enables voice-activity filtering during transcription.
	VAD bool `yaml:"vad"`

	// PromptLyrics primes the ASR pass with the submitted lyric text.
	PromptLyrics bool `yaml:"prompt_lyrics"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	// Dir is the on-disk cache root. Required.
	Dir string `yaml:"dir"`
}

// CatalogConfig holds the optional track catalog settings.
type CatalogConfig struct {
	// PostgresDSN is the catalog connection string. Empty disables the
	// catalog; the service still aligns, it just keeps no history.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// JobsConfig holds worker pool settings.
type JobsConfig struct {
	// Workers is the number of concurrent pipeline runs.
	Workers int `yaml:"workers"`

	// QueueSize bounds pending submissions.
	QueueSize int `yaml:"queue_size"`

	// OutputDir is where LRC artifacts are written. Required.
	OutputDir string `yaml:"output_dir"`
}
