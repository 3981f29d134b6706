package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/lyralign/internal/cache"
	"github.com/MrWong99/lyralign/pkg/types"
)

const identity = "a3f1c9d2e8b4567890abcdef01234567a3f1c9d2e8b4567890abcdef01234567"

func newStore(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	return s
}

func TestPutGet(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	want := []byte(`{"value":1}`)
	if err := s.Put(identity, types.StageTranscribed, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := s.Get(identity, types.StageTranscribed)
	if !ok {
		t.Fatal("Get: miss after Put")
	}
	if string(got) != string(want) {
		t.Errorf("Get: %q, want %q", got, want)
	}
}

func TestGet_MissForUnknownKey(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	if _, ok := s.Get(identity, types.StageMapped); ok {
		t.Error("Get: hit for a key never written")
	}
}

func TestGet_StagesAreIndependent(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	if err := s.Put(identity, types.StageTranscribed, []byte("a")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := s.Get(identity, types.StageAligned); ok {
		t.Error("Get: transcribed artifact served for aligned stage")
	}
}

func TestDo_ComputesOnceThenHits(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	var calls atomic.Int32
	compute := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("artifact"), nil
	}

	got, hit, err := s.Do(context.Background(), identity, types.StageAligned, false, compute)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if hit {
		t.Error("Do: first call reported a cache hit")
	}
	if string(got) != "artifact" {
		t.Errorf("Do: %q, want %q", got, "artifact")
	}

	got, hit, err = s.Do(context.Background(), identity, types.StageAligned, false, compute)
	if err != nil {
		t.Fatalf("Do (second): %v", err)
	}
	if !hit {
		t.Error("Do: second call missed the cache")
	}
	if string(got) != "artifact" {
		t.Errorf("Do (second): %q, want %q", got, "artifact")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("compute ran %d times, want 1", n)
	}
}

func TestDo_BypassRecomputesButStillWrites(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	if err := s.Put(identity, types.StageFormatted, []byte("stale")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, hit, err := s.Do(context.Background(), identity, types.StageFormatted, true,
		func(context.Context) ([]byte, error) { return []byte("fresh"), nil })
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if hit {
		t.Error("Do: bypass read from cache")
	}
	if string(got) != "fresh" {
		t.Errorf("Do: %q, want %q", got, "fresh")
	}

	// The fresh result must have been written through.
	stored, ok := s.Get(identity, types.StageFormatted)
	if !ok || string(stored) != "fresh" {
		t.Errorf("cache after bypass: %q ok=%v, want fresh artifact", stored, ok)
	}
}

func TestDo_PropagatesComputeError(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	wantErr := errors.New("engine exploded")
	_, _, err := s.Do(context.Background(), identity, types.StageTranscribed, false,
		func(context.Context) ([]byte, error) { return nil, wantErr })
	if !errors.Is(err, wantErr) {
		t.Errorf("Do: err=%v, want %v", err, wantErr)
	}
	// A failed computation must not poison the cache.
	if _, ok := s.Get(identity, types.StageTranscribed); ok {
		t.Error("Get: hit after failed computation")
	}
}

func TestDo_ConcurrentCallersShareOneComputation(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("shared"), nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, _, err := s.Do(context.Background(), identity, types.StageAligned, false, compute)
			if err != nil {
				t.Errorf("Do: %v", err)
				return
			}
			results[i] = string(got)
		}(i)
	}
	close(release)
	wg.Wait()

	// Every caller must observe the shared result, and the expensive
	// computation must not have been duplicated for all of them.
	for i, r := range results {
		if r != "shared" {
			t.Errorf("caller %d got %q", i, r)
		}
	}
	if n := calls.Load(); n >= 8 {
		t.Errorf("compute ran %d times for %d concurrent callers", n, 8)
	}
}

func TestKeyValidation(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	if err := s.Put("../escape", types.StageMapped, []byte("x")); err == nil {
		t.Error("Put accepted a path-traversal identity")
	}
	if err := s.Put(identity, types.RunStage("bogus"), []byte("x")); err == nil {
		t.Error("Put accepted an unknown stage")
	}
}
