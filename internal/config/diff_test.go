package config_test

import (
	"reflect"
	"testing"

	"github.com/MrWong99/lyralign/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Pipeline: config.PipelineConfig{
			Language:       "en",
			Strategies:     []config.RefineStrategy{config.StrategyForcedAligner},
			MatchThreshold: 0.7,
		},
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if d.PipelineChanged {
		t.Error("expected PipelineChanged=false for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.PipelineChanged {
		t.Error("expected PipelineChanged=false")
	}
}

func TestDiff_PipelineTunableChanged(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		mod  func(*config.PipelineConfig)
	}{
		{"language", func(p *config.PipelineConfig) { p.Language = "de" }},
		{"threshold", func(p *config.PipelineConfig) { p.MatchThreshold = 0.9 }},
		{"lookahead", func(p *config.PipelineConfig) { p.Lookahead = 12 }},
		{"align ceiling", func(p *config.PipelineConfig) { p.MaxAlignSeconds = 120 }},
		{"stage timeout", func(p *config.PipelineConfig) { p.StageTimeoutSeconds = 60 }},
		{"vad", func(p *config.PipelineConfig) { p.VAD = true }},
		{"prompt lyrics", func(p *config.PipelineConfig) { p.PromptLyrics = true }},
	}
	base := config.PipelineConfig{
		Language:       "en",
		MatchThreshold: 0.7,
		Lookahead:      6,
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old := &config.Config{Pipeline: base}
			modified := base
			tt.mod(&modified)
			new := &config.Config{Pipeline: modified}

			d := config.Diff(old, new)
			if !d.PipelineChanged {
				t.Fatal("expected PipelineChanged=true")
			}
			if !reflect.DeepEqual(d.NewPipeline, new.Pipeline) {
				t.Errorf("NewPipeline = %+v, want %+v", d.NewPipeline, new.Pipeline)
			}
		})
	}
}

func TestDiff_StrategyOrderChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Pipeline: config.PipelineConfig{
		Strategies: []config.RefineStrategy{config.StrategyForcedAligner, config.StrategyLLMRefine},
	}}
	new := &config.Config{Pipeline: config.PipelineConfig{
		Strategies: []config.RefineStrategy{config.StrategyLLMRefine, config.StrategyForcedAligner},
	}}

	d := config.Diff(old, new)
	if !d.PipelineChanged {
		t.Error("expected PipelineChanged=true for reordered strategies")
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server:   config.ServerConfig{LogLevel: config.LogInfo},
		Pipeline: config.PipelineConfig{MatchThreshold: 0.7},
	}
	new := &config.Config{
		Server:   config.ServerConfig{LogLevel: config.LogWarn},
		Pipeline: config.PipelineConfig{MatchThreshold: 0.8},
	}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if !d.PipelineChanged {
		t.Error("expected PipelineChanged=true")
	}
}
