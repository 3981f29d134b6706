// Package jobs runs alignment requests asynchronously.
//
// A submission is accepted immediately with a job ID, queued, and picked
// up by a bounded worker pool. Clients poll the job until it reaches a
// terminal status and then fetch the LRC artifact. Jobs live in memory;
// completed run metadata is additionally persisted to the catalog when
// one is configured.
package jobs

import (
	"time"

	"github.com/MrWong99/lyralign/pkg/types"
)

// Status is a job's lifecycle state.
type Status string

const (
	// StatusQueued: accepted, waiting for a worker.
	StatusQueued Status = "queued"

	// StatusProcessing: a worker is running the pipeline.
	StatusProcessing Status = "processing"

	// StatusCompleted: the run finished and the artifact is available.
	StatusCompleted Status = "completed"

	// StatusFailed: the run hit a fatal error.
	StatusFailed Status = "failed"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Submission is the client's alignment request.
type Submission struct {
	// AudioPath is the local path of the WAV recording.
	AudioPath string `json:"audio_path"`

	// Lyrics is the printed lyric text, one line per song line.
	Lyrics string `json:"lyrics"`

	// Language is an optional BCP-47 hint for the ML engines.
	Language string `json:"language,omitempty"`

	// Title and Artist are catalog display metadata.
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`

	// BypassCache forces recomputation of every pipeline stage.
	BypassCache bool `json:"bypass_cache,omitempty"`
}

// Job is one tracked alignment run.
type Job struct {
	// ID is the job's UUID.
	ID string `json:"id"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Submission is the originating request.
	Submission Submission `json:"submission"`

	// Result holds the run outcome once Status is completed.
	Result *types.RunResult `json:"result,omitempty"`

	// OutputPath is where the LRC artifact was written.
	OutputPath string `json:"output_path,omitempty"`

	// Error describes the failure once Status is failed.
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
