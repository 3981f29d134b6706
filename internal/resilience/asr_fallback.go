package resilience

import (
	"context"

	"github.com/MrWong99/lyralign/pkg/provider/asr"
	"github.com/MrWong99/lyralign/pkg/types"
)

// ASRFallback implements [asr.Provider] with automatic failover across
// multiple transcription backends, e.g. a local whisper.cpp model backed
// by the hosted OpenAI API. Each backend has its own circuit breaker.
type ASRFallback struct {
	group *FallbackGroup[asr.Provider]
}

// Compile-time interface assertion.
var _ asr.Provider = (*ASRFallback)(nil)

// NewASRFallback creates an [ASRFallback] with primary as the preferred
// backend.
func NewASRFallback(primary asr.Provider, primaryName string, cfg FallbackConfig) *ASRFallback {
	return &ASRFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcription backend.
func (f *ASRFallback) AddFallback(name string, provider asr.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe runs the transcription against the first healthy backend.
func (f *ASRFallback) Transcribe(ctx context.Context, audioPath string, opts asr.TranscribeOptions) ([]types.Phrase, error) {
	return ExecuteWithResult(f.group, func(p asr.Provider) ([]types.Phrase, error) {
		return p.Transcribe(ctx, audioPath, opts)
	})
}
