package jobs

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/lyralign/pkg/types"
)

// ErrNotFound is returned by Store lookups for unknown job IDs.
var ErrNotFound = errors.New("jobs: job not found")

// Store holds jobs in memory. Safe for concurrent use. Jobs are never
// evicted; the process lifetime bounds the set.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create registers a new queued job for sub and returns its snapshot.
func (s *Store) Create(sub Submission) Job {
	job := &Job{
		ID:         uuid.NewString(),
		Status:     StatusQueued,
		Submission: sub,
		CreatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return *job
}

// Get returns a snapshot of the job with the given ID.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *job, nil
}

// List returns snapshots of all jobs, newest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// markProcessing transitions a job to processing.
func (s *Store) markProcessing(id string) {
	now := time.Now().UTC()
	s.update(id, func(j *Job) {
		j.Status = StatusProcessing
		j.StartedAt = &now
	})
}

// markCompleted transitions a job to completed with its result.
func (s *Store) markCompleted(id string, result *types.RunResult, outputPath string) {
	now := time.Now().UTC()
	s.update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Result = result
		j.OutputPath = outputPath
		j.CompletedAt = &now
	})
}

// markFailed transitions a job to failed with the error message.
func (s *Store) markFailed(id string, errMsg string) {
	now := time.Now().UTC()
	s.update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Error = errMsg
		j.CompletedAt = &now
	})
}

func (s *Store) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
	}
}
