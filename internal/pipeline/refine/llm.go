package refine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/lyralign/pkg/audio"
	"github.com/MrWong99/lyralign/pkg/types"
)

const llmSystemPrompt = `You are a lyric timing assistant. You receive a JSON array of
transcript phrases with approximate start/end times in seconds, plus the total audio
duration. Split the phrases into shorter spans (one short sung line each) and assign each
span refined start/end times. Times must stay within the audio duration, be strictly
increasing, and every span must satisfy end > start. Respond with ONLY a JSON array of
objects with keys "text", "start", "end".`

// LLMStrategy redistributes phrase timing with a language model. It sits
// between the forced aligner and the raw-transcript fallback: less precise
// than real forced alignment, but able to split whole phrases into line-
// sized spans when the aligner is gated out or broken.
type LLMStrategy struct {
	backend anyllmlib.Provider
	model   string
}

var _ Strategy = (*LLMStrategy)(nil)

// NewLLMStrategy creates the LLM refinement strategy on top of an
// any-llm-go backend.
func NewLLMStrategy(backend anyllmlib.Provider, model string) (*LLMStrategy, error) {
	if backend == nil {
		return nil, errors.New("refine: llm backend must not be nil")
	}
	if model == "" {
		return nil, errors.New("refine: llm model must not be empty")
	}
	return &LLMStrategy{backend: backend, model: model}, nil
}

// Name implements Strategy.
func (s *LLMStrategy) Name() string { return "llm-refine" }

// Tier implements Strategy.
func (s *LLMStrategy) Tier() types.TimingTier { return types.TierLLMRefined }

// Admit implements Strategy. The LLM strategy has no duration ceiling.
func (s *LLMStrategy) Admit(audio.Info) (bool, types.FallbackReason) { return true, "" }

// llmSpan is the model's expected response element.
type llmSpan struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Refine asks the model to re-segment the transcript phrases and parses
// the JSON response into spans. Malformed or out-of-bounds output is an
// error, which the refiner absorbs by moving to the next strategy.
func (s *LLMStrategy) Refine(ctx context.Context, info audio.Info, phrases []types.Phrase) ([]types.Phrase, error) {
	payload, err := json.Marshal(phrases)
	if err != nil {
		return nil, fmt.Errorf("refine: marshal phrases: %w", err)
	}

	temp := 0.0
	resp, err := s.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: s.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: llmSystemPrompt},
			{Role: anyllmlib.RoleUser, Content: fmt.Sprintf("Audio duration: %.2f seconds.\nPhrases: %s", info.DurationSeconds, payload)},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("refine: llm completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("refine: llm returned no choices")
	}

	content := resp.Choices[0].Message.ContentString()
	spans, err := parseLLMSpans(content, info.DurationSeconds)
	if err != nil {
		return nil, err
	}
	return spans, nil
}

// parseLLMSpans decodes and validates the model output. Code fences are
// tolerated; everything else malformed is rejected.
func parseLLMSpans(content string, duration float64) ([]types.Phrase, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw []llmSpan
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return nil, fmt.Errorf("refine: llm output is not a span array: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("refine: llm returned no spans")
	}

	spans := make([]types.Phrase, 0, len(raw))
	prevStart := -1.0
	for i, sp := range raw {
		if strings.TrimSpace(sp.Text) == "" {
			continue
		}
		if sp.Start < 0 || sp.End <= sp.Start || sp.End > duration+1 {
			return nil, fmt.Errorf("refine: llm span %d out of bounds: [%v, %v]", i, sp.Start, sp.End)
		}
		if sp.Start < prevStart {
			return nil, fmt.Errorf("refine: llm span %d regresses: %v < %v", i, sp.Start, prevStart)
		}
		prevStart = sp.Start
		spans = append(spans, types.Phrase{
			Text:   sp.Text,
			Start:  sp.Start,
			End:    sp.End,
			Source: types.SourceTranscript,
		})
	}
	if len(spans) == 0 {
		return nil, errors.New("refine: llm returned only empty spans")
	}
	return spans, nil
}
