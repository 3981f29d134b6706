package config

import (
	"errors"
	"fmt"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/lyralign/pkg/provider/align"
	"github.com/MrWong99/lyralign/pkg/provider/asr"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	asr   map[string]func(ProviderEntry) (asr.Provider, error)
	align map[string]func(ProviderEntry) (align.Provider, error)
	llm   map[string]func(ProviderEntry) (anyllmlib.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		asr:   make(map[string]func(ProviderEntry) (asr.Provider, error)),
		align: make(map[string]func(ProviderEntry) (align.Provider, error)),
		llm:   make(map[string]func(ProviderEntry) (anyllmlib.Provider, error)),
	}
}

// RegisterASR registers a transcription provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterASR(name string, factory func(ProviderEntry) (asr.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[name] = factory
}

// RegisterAligner registers a forced-alignment provider factory under name.
func (r *Registry) RegisterAligner(name string, factory func(ProviderEntry) (align.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.align[name] = factory
}

// RegisterLLM registers an LLM provider factory under name.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (anyllmlib.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// CreateASR instantiates a transcription provider using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateASR(entry ProviderEntry) (asr.Provider, error) {
	r.mu.RLock()
	factory, ok := r.asr[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateAligner instantiates a forced-alignment provider using the factory
// registered under entry.Name.
func (r *Registry) CreateAligner(entry ProviderEntry) (align.Provider, error) {
	r.mu.RLock()
	factory, ok := r.align[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: aligner/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (anyllmlib.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
