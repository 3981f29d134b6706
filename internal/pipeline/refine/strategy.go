// Package refine decides how the transcript's approximate timing gets
// upgraded to fine-grained timing before line mapping.
//
// The original nested-conditional fallback ("forced aligner, else LLM
// refinement, else raw transcript") is modelled as an explicit prioritized
// strategy list: each strategy has an admission check and a refinement
// function, and the refiner evaluates the list in order until one
// succeeds. The raw transcript is the built-in terminal fallback and can
// never fail, so refinement as a whole never fails a run — degraded
// timing is tagged in the result, not raised as an error.
package refine

import (
	"context"

	"github.com/MrWong99/lyralign/pkg/audio"
	"github.com/MrWong99/lyralign/pkg/types"
)

// Strategy is one prioritized refinement approach.
type Strategy interface {
	// Name identifies the strategy in run metadata and logs.
	Name() string

	// Tier is the timing tier results of this strategy carry.
	Tier() types.TimingTier

	// Admit reports whether the strategy may run for this audio. When it
	// declines, the returned reason (if any) explains the degradation.
	Admit(info audio.Info) (bool, types.FallbackReason)

	// Refine produces fine spans from the transcript phrases. phrases is
	// the *sung* text with approximate timing; implementations must not
	// substitute the printed catalog lyrics.
	Refine(ctx context.Context, info audio.Info, phrases []types.Phrase) ([]types.Phrase, error)
}

// Result is the outcome of a refinement pass.
type Result struct {
	// Spans is the fine-span sequence handed to the line mapper.
	Spans []types.Phrase `json:"spans"`

	// Tier reports the winning strategy's timing tier.
	Tier types.TimingTier `json:"tier"`

	// Reason is set when Tier is below TierAligned: why the forced
	// aligner did not produce the timing.
	Reason types.FallbackReason `json:"reason,omitempty"`

	// Strategy is the winning strategy's name.
	Strategy string `json:"strategy"`
}
