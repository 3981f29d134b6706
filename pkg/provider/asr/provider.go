// Package asr defines the Provider interface for speech-recognition
// backends (the pipeline's Transcript Provider).
//
// An ASR provider transcribes a complete audio file in one batch call and
// returns phrase-level timestamps. The timestamps are approximate — ASR
// engines drift and occasionally hallucinate — which is exactly why the
// pipeline follows transcription with a forced-alignment refinement pass.
// The transcript is nonetheless the authoritative record of what was
// actually *sung*, so downstream stages always work from the transcript
// text rather than the printed catalog lyrics.
//
// Implementations must be safe for concurrent use; multiple pipeline runs
// may transcribe simultaneously.
package asr

import (
	"context"

	"github.com/MrWong99/lyralign/pkg/types"
)

// TranscribeOptions carries recognition hints for a transcription call.
type TranscribeOptions struct {
	// Language is the BCP-47 language tag for recognition (e.g. "en",
	// "de"). An empty string lets the provider auto-detect, if supported.
	Language string

	// Prompt is optional priming text — typically the known catalog
	// lyrics — that biases decoding towards the expected vocabulary.
	// Providers without prompt support ignore it.
	Prompt string

	// VAD enables voice-activity filtering so that long instrumental
	// passages do not produce hallucinated phrases. Best effort.
	VAD bool
}

// Provider is the abstraction over any batch speech-recognition backend.
type Provider interface {
	// Transcribe recognises the audio file at audioPath and returns the
	// ordered, non-overlapping phrase sequence with Source set to
	// types.SourceTranscript. An error means no usable timing source
	// exists for this audio; callers treat it as fatal to the run.
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) ([]types.Phrase, error)
}
