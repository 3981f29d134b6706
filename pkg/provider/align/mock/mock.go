// Package mock provides a test double for the align package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lyralign/pkg/provider/align"
	"github.com/MrWong99/lyralign/pkg/types"
)

// AlignCall records a single invocation of Provider.Align.
type AlignCall struct {
	AudioPath string
	Text      string
	Language  string
}

// Provider is a mock implementation of align.Provider.
type Provider struct {
	mu sync.Mutex

	// Spans is returned from Align when Err and Fn are nil.
	Spans []types.Phrase

	// Err, if non-nil, is returned as the error from Align.
	Err error

	// Fn, if non-nil, overrides Spans/Err entirely.
	Fn func(ctx context.Context, audioPath, text, language string) ([]types.Phrase, error)

	// Calls records every call to Align.
	Calls []AlignCall
}

// Compile-time assertion that Provider satisfies align.Provider.
var _ align.Provider = (*Provider)(nil)

// Align records the call and returns the configured result.
func (p *Provider) Align(ctx context.Context, audioPath, text, language string) ([]types.Phrase, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, AlignCall{AudioPath: audioPath, Text: text, Language: language})
	fn := p.Fn
	spans, err := p.Spans, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, audioPath, text, language)
	}
	if err != nil {
		return nil, err
	}
	out := make([]types.Phrase, len(spans))
	copy(out, spans)
	return out, nil
}

// CallCount returns the number of recorded Align calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
