// Package mock provides a test double for the asr package interfaces.
//
// Use Provider to feed controlled phrase sequences into the pipeline and
// inspect the options each transcription call was made with.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lyralign/pkg/provider/asr"
	"github.com/MrWong99/lyralign/pkg/types"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// AudioPath is the path passed to Transcribe.
	AudioPath string
	// Opts are the options passed to Transcribe.
	Opts asr.TranscribeOptions
}

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// Phrases is returned from Transcribe when Err is nil.
	Phrases []types.Phrase

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records every call to Transcribe.
	Calls []TranscribeCall
}

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)

// Transcribe records the call and returns Phrases, Err.
func (p *Provider) Transcribe(ctx context.Context, audioPath string, opts asr.TranscribeOptions) ([]types.Phrase, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, TranscribeCall{AudioPath: audioPath, Opts: opts})
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([]types.Phrase, len(p.Phrases))
	copy(out, p.Phrases)
	return out, nil
}

// CallCount returns the number of recorded Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}
