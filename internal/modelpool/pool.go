// Package modelpool keeps expensive process-local model handles warm.
//
// Loading a whisper.cpp model takes seconds and hundreds of megabytes, so
// handles are cached in a bounded LRU keyed by model path. Evicted and
// shut-down handles get closed exactly once. The pool serialises loads of
// the same key; distinct keys load concurrently.
package modelpool

import (
	"fmt"
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is the default number of warm handles kept.
const DefaultSize = 2

// LoadFunc loads the handle for a key. It is called at most once per key
// while a load for that key is in flight.
type LoadFunc[T io.Closer] func(key string) (T, error)

// Pool is a bounded LRU of live model handles. Safe for concurrent use.
type Pool[T io.Closer] struct {
	load LoadFunc[T]
	sf   singleflight.Group

	mu     sync.Mutex
	cache  *lru.Cache[string, T]
	closed bool
}

// New creates a pool that loads handles with load and keeps at most size
// of them warm. size <= 0 falls back to DefaultSize.
func New[T io.Closer](size int, load LoadFunc[T]) (*Pool[T], error) {
	if load == nil {
		return nil, fmt.Errorf("modelpool: nil load function")
	}
	if size <= 0 {
		size = DefaultSize
	}
	p := &Pool[T]{load: load}
	cache, err := lru.NewWithEvict[string, T](size, func(_ string, h T) {
		// Eviction runs under the pool lock; Close must not re-enter.
		_ = h.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("modelpool: %w", err)
	}
	p.cache = cache
	return p, nil
}

// Get returns the warm handle for key, loading it on first use. The
// returned handle stays owned by the pool; callers must not Close it.
func (p *Pool[T]) Get(key string) (T, error) {
	var zero T

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, fmt.Errorf("modelpool: pool is closed")
	}
	if h, ok := p.cache.Get(key); ok {
		p.mu.Unlock()
		return h, nil
	}
	p.mu.Unlock()

	v, err, _ := p.sf.Do(key, func() (any, error) {
		p.mu.Lock()
		if h, ok := p.cache.Get(key); ok {
			p.mu.Unlock()
			return h, nil
		}
		p.mu.Unlock()

		h, err := p.load(key)
		if err != nil {
			return nil, fmt.Errorf("modelpool: load %q: %w", key, err)
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			_ = h.Close()
			return nil, fmt.Errorf("modelpool: pool closed during load of %q", key)
		}
		p.cache.Add(key, h)
		return h, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Len reports the number of warm handles.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.Len()
}

// Close releases every warm handle. Subsequent Gets fail.
func (p *Pool[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.cache.Purge()
	return nil
}
