package resilience

import (
	"context"

	"github.com/MrWong99/lyralign/pkg/provider/align"
	"github.com/MrWong99/lyralign/pkg/types"
)

// AlignFallback implements [align.Provider] with automatic failover
// across multiple forced-alignment backends. Each backend has its own
// circuit breaker.
type AlignFallback struct {
	group *FallbackGroup[align.Provider]
}

// Compile-time interface assertion.
var _ align.Provider = (*AlignFallback)(nil)

// NewAlignFallback creates an [AlignFallback] with primary as the
// preferred backend.
func NewAlignFallback(primary align.Provider, primaryName string, cfg FallbackConfig) *AlignFallback {
	return &AlignFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional alignment backend.
func (f *AlignFallback) AddFallback(name string, provider align.Provider) {
	f.group.AddFallback(name, provider)
}

// Align forced-aligns text against the first healthy backend.
func (f *AlignFallback) Align(ctx context.Context, audioPath, text, language string) ([]types.Phrase, error) {
	return ExecuteWithResult(f.group, func(p align.Provider) ([]types.Phrase, error) {
		return p.Align(ctx, audioPath, text, language)
	})
}
