package types

// RunStage is a pipeline lifecycle stage. A run advances monotonically
// through the stages and terminates on StageFormatted or StageFailed.
type RunStage string

const (
	StageTranscribed RunStage = "transcribed"
	StageAligned     RunStage = "aligned"
	StageMapped      RunStage = "mapped"
	StageFormatted   RunStage = "formatted"
	StageFailed      RunStage = "failed"
)

// IsValid reports whether s is a recognised run stage.
func (s RunStage) IsValid() bool {
	switch s {
	case StageTranscribed, StageAligned, StageMapped, StageFormatted, StageFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal stage.
func (s RunStage) Terminal() bool {
	return s == StageFormatted || s == StageFailed
}

// TimingTier labels the provenance of a completed run's timing so that
// downstream consumers can decide how much to trust its precision.
type TimingTier string

const (
	// TierAligned means the forced aligner produced the fine spans.
	TierAligned TimingTier = "aligned"

	// TierLLMRefined means an LLM redistribution strategy produced the
	// timing after the forced aligner was skipped or failed.
	TierLLMRefined TimingTier = "llm_refined"

	// TierTranscriptFallback means timing comes from the raw transcript
	// phrases unchanged.
	TierTranscriptFallback TimingTier = "transcript_fallback"
)

// IsValid reports whether t is a recognised timing tier.
func (t TimingTier) IsValid() bool {
	switch t {
	case TierAligned, TierLLMRefined, TierTranscriptFallback:
		return true
	}
	return false
}

// FallbackReason explains why a run degraded below TierAligned.
type FallbackReason string

const (
	// FallbackDurationExceeded: the audio was longer than the forced
	// aligner's duration ceiling, so the aligner was never invoked.
	FallbackDurationExceeded FallbackReason = "duration_exceeded"

	// FallbackAlignerError: the forced aligner was invoked and failed
	// (model load failure, runtime error, malformed output, timeout).
	FallbackAlignerError FallbackReason = "aligner_error"
)

// RunResult is the terminal artifact of a successful pipeline run.
type RunResult struct {
	// ContentIdentity is the stable fingerprint of the audio bytes the
	// run was keyed by.
	ContentIdentity string `json:"content_identity"`

	// LRC is the rendered lyric file text.
	LRC string `json:"lrc"`

	// LineCount is the number of timestamped lines in LRC.
	LineCount int `json:"line_count"`

	// Tier reports which refinement strategy produced the timing.
	Tier TimingTier `json:"tier"`

	// Reason is set when Tier is below TierAligned.
	Reason FallbackReason `json:"reason,omitempty"`

	// Strategy is the name of the refinement strategy that won.
	Strategy string `json:"strategy"`

	// DurationSeconds is the wall-clock duration of the whole run.
	DurationSeconds float64 `json:"duration_seconds"`
}
