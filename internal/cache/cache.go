// Package cache implements the pipeline's result cache: a disk-backed,
// content-addressed store keyed by (audio content identity, pipeline
// stage).
//
// The cache guarantees at-most-once computation per key under normal
// operation: a hit short-circuits the corresponding pipeline stage, and
// concurrent computations of the same key are collapsed into one via
// singleflight. It is explicitly not a correctness boundary — read or
// write failures degrade to recomputation with a warning, never to an
// incorrect or failed pipeline result. Invalidation is explicit only (the
// bypass flag skips the read but still writes the fresh result); there is
// no time-based expiry.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/lyralign/pkg/types"
)

// Store is the on-disk result cache. All methods are safe for concurrent
// use.
type Store struct {
	dir string
	sf  singleflight.Group
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache: dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Get returns the cached artifact for (identity, stage) and whether it was
// present. Read errors are logged and reported as a miss.
func (s *Store) Get(identity string, stage types.RunStage) ([]byte, bool) {
	path, err := s.path(identity, stage)
	if err != nil {
		slog.Warn("cache: invalid key on read", "identity", identity, "stage", stage, "error", err)
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("cache: read failed, degrading to recompute", "path", path, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Put stores the artifact for (identity, stage). The write is atomic: data
// lands in a temp file first and is renamed into place, so readers never
// observe a torn artifact.
func (s *Store) Put(identity string, stage types.RunStage, data []byte) error {
	path, err := s.path(identity, stage)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: create entry dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+string(stage)+".*")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: commit %q: %w", path, err)
	}
	return nil
}

// Do returns the artifact for (identity, stage), computing it at most once.
//
// Unless bypass is set, a cache hit is returned directly. On a miss,
// concurrent callers for the same key share a single invocation of compute
// (singleflight); its result is written through to disk before being
// returned. bypass skips the read but still writes, which is how forced
// recomputation refreshes the cache. The returned hit flag reports whether
// the artifact came from the cache read.
func (s *Store) Do(ctx context.Context, identity string, stage types.RunStage, bypass bool, compute func(context.Context) ([]byte, error)) (data []byte, hit bool, err error) {
	if !bypass {
		if data, ok := s.Get(identity, stage); ok {
			return data, true, nil
		}
	}

	key := identity + "/" + string(stage)
	v, err, _ := s.sf.Do(key, func() (any, error) {
		out, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.Put(identity, stage, out); err != nil {
			// Not a correctness boundary: the result is still good.
			slog.Warn("cache: write failed, result not cached", "identity", identity, "stage", stage, "error", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// path validates the key and returns the entry's file path.
func (s *Store) path(identity string, stage types.RunStage) (string, error) {
	if identity == "" || strings.ContainsAny(identity, `/\.`) {
		return "", fmt.Errorf("cache: invalid content identity %q", identity)
	}
	if !stage.IsValid() {
		return "", fmt.Errorf("cache: invalid stage %q", stage)
	}
	return filepath.Join(s.dir, identity, string(stage)+".json"), nil
}
