package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider,
// storage, and server wiring changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PipelineChanged is true when any hot-reloadable pipeline tunable
	// moved (threshold, lookahead, duration ceiling, timeout, VAD, prompt,
	// language, strategy order).
	PipelineChanged bool
	NewPipeline     PipelineConfig
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !pipelineEqual(old.Pipeline, new.Pipeline) {
		d.PipelineChanged = true
		d.NewPipeline = new.Pipeline
	}

	return d
}

// pipelineEqual compares the tunables field by field; PipelineConfig holds
// a slice, so it is not directly comparable.
func pipelineEqual(a, b PipelineConfig) bool {
	if a.Language != b.Language ||
		a.MatchThreshold != b.MatchThreshold ||
		a.Lookahead != b.Lookahead ||
		a.MaxAlignSeconds != b.MaxAlignSeconds ||
		a.StageTimeoutSeconds != b.StageTimeoutSeconds ||
		a.VAD != b.VAD ||
		a.PromptLyrics != b.PromptLyrics {
		return false
	}
	if len(a.Strategies) != len(b.Strategies) {
		return false
	}
	for i := range a.Strategies {
		if a.Strategies[i] != b.Strategies[i] {
			return false
		}
	}
	return true
}
