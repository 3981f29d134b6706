package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/lyralign/internal/config"
)

// validYAML is a minimal config that passes validation.
const validYAML = `
server:
  listen_addr: ":8080"
providers:
  asr:
    name: whisper
    model_path: /models/ggml-base.bin
  aligner:
    name: mms
cache:
  dir: /var/cache/lyralign
jobs:
  output_dir: /var/lib/lyralign/lrc
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.ASR.Name != "whisper" {
		t.Errorf("providers.asr.name = %q, want whisper", cfg.Providers.ASR.Name)
	}
	if cfg.Providers.ASR.ModelPath != "/models/ggml-base.bin" {
		t.Errorf("providers.asr.model_path = %q", cfg.Providers.ASR.ModelPath)
	}
	if cfg.Cache.Dir != "/var/cache/lyralign" {
		t.Errorf("cache.dir = %q", cfg.Cache.Dir)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	yaml := validYAML + `
pipelines:
  language: en
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown top-level field, got nil")
	}
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
server:
  listen_addr: ":8080"
`))
	if err == nil {
		t.Fatal("expected errors for missing required fields, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"providers.asr.name", "cache.dir", "jobs.output_dir"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_ForcedAlignerRequiresAligner(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  asr:
    name: whisper
pipeline:
  strategies: [forced_aligner]
cache:
  dir: /tmp/cache
jobs:
  output_dir: /tmp/out
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for forced_aligner without an aligner provider, got nil")
	}
	if !strings.Contains(err.Error(), "providers.aligner") {
		t.Errorf("error should mention providers.aligner, got: %v", err)
	}
}

func TestValidate_LLMRefineRequiresLLM(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  asr:
    name: whisper
  aligner:
    name: mms
pipeline:
  strategies: [forced_aligner, llm_refine]
cache:
  dir: /tmp/cache
jobs:
  output_dir: /tmp/out
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for llm_refine without an LLM provider, got nil")
	}
	if !strings.Contains(err.Error(), "providers.llm") {
		t.Errorf("error should mention providers.llm, got: %v", err)
	}
}

func TestValidate_DuplicateStrategy(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  asr:
    name: whisper
  aligner:
    name: mms
pipeline:
  strategies: [forced_aligner, forced_aligner]
cache:
  dir: /tmp/cache
jobs:
  output_dir: /tmp/out
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate strategy, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_UnknownStrategy(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  asr:
    name: whisper
  aligner:
    name: mms
pipeline:
  strategies: [forced_aligner, dtw]
cache:
  dir: /tmp/cache
jobs:
  output_dir: /tmp/out
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown strategy, got nil")
	}
	if !strings.Contains(err.Error(), "dtw") {
		t.Errorf("error should mention the bad strategy, got: %v", err)
	}
}

func TestValidate_TunableRanges(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		extra string
		want  string
	}{
		{"threshold above one", "  match_threshold: 1.5", "match_threshold"},
		{"negative lookahead", "  lookahead: -1", "lookahead"},
		{"negative ceiling", "  max_align_seconds: -10", "max_align_seconds"},
		{"negative stage timeout", "  stage_timeout_seconds: -5", "stage_timeout_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			yaml := validYAML + "\npipeline:\n" + tt.extra + "\n"
			_, err := config.LoadFromReader(strings.NewReader(yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %s, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	t.Parallel()
	yaml := strings.Replace(validYAML, "  listen_addr: \":8080\"",
		"  listen_addr: \":8080\"\n  tls:\n    cert_file: /etc/lyralign/tls.crt", 1)
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for TLS with missing key_file, got nil")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	t.Parallel()
	yaml := strings.Replace(validYAML, "  listen_addr: \":8080\"",
		"  listen_addr: \":8080\"\n  log_level: verbose", 1)
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for bad log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	asrNames := config.ValidProviderNames["asr"]
	if len(asrNames) == 0 {
		t.Fatal("ValidProviderNames[\"asr\"] should not be empty")
	}
	found := false
	for _, n := range asrNames {
		if n == "whisper" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"asr\"] should contain \"whisper\"")
	}
}
