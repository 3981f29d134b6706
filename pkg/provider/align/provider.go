// Package align defines the Provider interface for forced-alignment
// backends.
//
// Forced alignment is the inverse of recognition: the text is already
// known, and the engine recovers precise timing for it. Alignment models
// are bounded to a hard maximum audio duration; the admission gate that
// enforces the bound lives in the refinement layer, not here — a provider
// given over-long audio simply fails.
//
// Implementations must be safe for concurrent use.
package align

import (
	"context"

	"github.com/MrWong99/lyralign/pkg/types"
)

// Provider is the abstraction over any forced-alignment backend.
type Provider interface {
	// Align maps text onto the audio file at audioPath and returns the
	// ordered fine-span sequence with Source set to types.SourceAligner.
	// text is the *sung* text (the ASR transcript), never the printed
	// catalog lyrics — sung content may omit or repeat lines relative to
	// the printed form, and feeding the aligner text that was not sung
	// produces garbage timing.
	//
	// Errors are recoverable from the pipeline's point of view: the
	// refiner falls back to the next strategy rather than failing the
	// run.
	Align(ctx context.Context, audioPath, text, language string) ([]types.Phrase, error)
}
