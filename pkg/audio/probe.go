// Package audio provides the two facts the alignment pipeline needs about
// an input recording before any ML stage runs: its measured duration (for
// the forced-aligner admission gate) and its content identity (the
// idempotency and cache key).
package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// ErrZeroDuration is returned by Probe for audio that decodes to zero
// playable duration. Zero-length audio is fatal to a pipeline run.
var ErrZeroDuration = errors.New("audio: zero-length audio")

// Info describes a probed audio file.
type Info struct {
	// Path is the probed file path.
	Path string

	// DurationSeconds is the playable duration.
	DurationSeconds float64

	// SampleRate in Hz.
	SampleRate int

	// Channels is the channel count.
	Channels int
}

// Probe opens the WAV file at path and returns its duration and format.
// It returns ErrZeroDuration (wrapped) when the file contains no audible
// samples.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("audio: open %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Info{}, fmt.Errorf("audio: %q is not a valid WAV file", path)
	}

	dur, err := dec.Duration()
	if err != nil {
		return Info{}, fmt.Errorf("audio: read duration of %q: %w", path, err)
	}
	info := Info{
		Path:            path,
		DurationSeconds: dur.Seconds(),
		SampleRate:      int(dec.SampleRate),
		Channels:        int(dec.NumChans),
	}
	if info.DurationSeconds <= 0 {
		return Info{}, fmt.Errorf("audio: %q: %w", path, ErrZeroDuration)
	}
	return info, nil
}
