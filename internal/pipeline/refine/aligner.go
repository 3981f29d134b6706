package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/lyralign/pkg/audio"
	"github.com/MrWong99/lyralign/pkg/provider/align"
	"github.com/MrWong99/lyralign/pkg/types"
)

// DefaultMaxDuration is the forced aligner's admission ceiling in seconds.
// Alignment models hold the whole utterance in memory, so audio beyond
// this bound is never submitted.
const DefaultMaxDuration = 300.0

// AlignerStrategy runs the forced aligner on the concatenated transcript
// text. It is the highest-precision strategy and the only one gated on
// audio duration.
type AlignerStrategy struct {
	provider    align.Provider
	maxDuration float64
	language    string
}

var _ Strategy = (*AlignerStrategy)(nil)

// NewAlignerStrategy creates the forced-alignment strategy. maxDuration
// is the admission ceiling in seconds; values <= 0 fall back to
// DefaultMaxDuration. language is the hint passed to the aligner.
func NewAlignerStrategy(provider align.Provider, maxDuration float64, language string) *AlignerStrategy {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	return &AlignerStrategy{
		provider:    provider,
		maxDuration: maxDuration,
		language:    language,
	}
}

// Name implements Strategy.
func (s *AlignerStrategy) Name() string { return "forced-aligner" }

// Tier implements Strategy.
func (s *AlignerStrategy) Tier() types.TimingTier { return types.TierAligned }

// Admit enforces the duration gate: audio of exactly the ceiling duration
// is admitted, anything longer is not.
func (s *AlignerStrategy) Admit(info audio.Info) (bool, types.FallbackReason) {
	if info.DurationSeconds > s.maxDuration {
		return false, types.FallbackDurationExceeded
	}
	return true, ""
}

// Refine concatenates the transcript phrase text and forced-aligns it.
func (s *AlignerStrategy) Refine(ctx context.Context, info audio.Info, phrases []types.Phrase) ([]types.Phrase, error) {
	text := concatText(phrases)
	if text == "" {
		return nil, errors.New("refine: transcript has no text to align")
	}
	spans, err := s.provider.Align(ctx, info.Path, text, s.language)
	if err != nil {
		return nil, fmt.Errorf("refine: forced alignment: %w", err)
	}
	return spans, nil
}

// concatText joins the sung text of all phrases with single spaces.
func concatText(phrases []types.Phrase) string {
	parts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
