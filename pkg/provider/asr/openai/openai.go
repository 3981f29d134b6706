// Package openai implements asr.Provider using the OpenAI audio
// transcriptions API via the official Go SDK. It requests verbose JSON so
// that per-segment timestamps are available; the SDK's typed response only
// surfaces the flat text, so the segment list is decoded from the raw
// response payload.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/lyralign/pkg/provider/asr"
	"github.com/MrWong99/lyralign/pkg/types"
)

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)

// Provider is an OpenAI-hosted batch transcriber.
type Provider struct {
	client openai.Client
	model  string
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel selects the transcription model. Defaults to whisper-1, the
// only OpenAI transcription model that supports verbose JSON segments.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// New creates a Provider authenticated with apiKey. baseURL overrides the
// default API endpoint when non-empty (for OpenAI-compatible servers).
func New(apiKey, baseURL string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	p := &Provider{
		client: openai.NewClient(reqOpts...),
		model:  string(openai.AudioModelWhisper1),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// verboseTranscription mirrors the verbose_json response shape. The typed
// SDK response drops the segment list, so it is re-decoded from raw JSON.
type verboseTranscription struct {
	Language string `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

// Transcribe uploads the audio file and returns one phrase per response
// segment, tagged types.SourceTranscript.
func (p *Provider) Transcribe(ctx context.Context, audioPath string, opts asr.TranscribeOptions) ([]types.Phrase, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("openai: open %q: %w", audioPath, err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:           f,
		Model:          openai.AudioModel(p.model),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	if opts.Language != "" {
		params.Language = openai.String(opts.Language)
	}
	if opts.Prompt != "" {
		params.Prompt = openai.String(opts.Prompt)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: transcribe %q: %w", audioPath, err)
	}

	var verbose verboseTranscription
	if err := json.Unmarshal([]byte(resp.RawJSON()), &verbose); err != nil {
		return nil, fmt.Errorf("openai: decode verbose transcription: %w", err)
	}

	phrases := make([]types.Phrase, 0, len(verbose.Segments))
	for _, seg := range verbose.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || seg.End <= seg.Start {
			continue
		}
		phrases = append(phrases, types.Phrase{
			Text:   text,
			Start:  seg.Start,
			End:    seg.End,
			Source: types.SourceTranscript,
		})
	}
	if len(phrases) == 0 {
		return nil, errors.New("openai: no speech recognised")
	}
	return phrases, nil
}
