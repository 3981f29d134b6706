// Package types defines the shared types used across all lyralign packages.
//
// These types form the lingua franca between the ASR and forced-alignment
// providers, the refinement and mapping pipeline, the result cache, and the
// job layer. They are intentionally minimal — each package defines its own
// domain types, but cross-cutting data structures live here to avoid
// circular imports.
package types

import "strings"

// PhraseSource identifies which timing engine produced a Phrase.
type PhraseSource string

const (
	// SourceTranscript marks phrases produced by the speech-recognition
	// pass. Timestamps are approximate and may drift.
	SourceTranscript PhraseSource = "transcript"

	// SourceAligner marks fine spans produced by the forced-alignment
	// pass. Timestamps are precise but the aligner is bounded to a
	// maximum audio duration.
	SourceAligner PhraseSource = "aligner"
)

// Phrase is a timestamped slice of sung text produced by either ML stage.
// Phrases from a single producer are ordered and non-overlapping; overlap
// across producers is possible and must be tolerated by consumers.
type Phrase struct {
	// Text is the recognised or aligned text of this span.
	Text string `json:"text"`

	// Start is the onset in seconds from the beginning of the audio, >= 0.
	Start float64 `json:"start"`

	// End is the offset in seconds. Always > Start.
	End float64 `json:"end"`

	// Source records which engine produced this phrase.
	Source PhraseSource `json:"source"`
}

// Duration returns the phrase length in seconds.
func (p Phrase) Duration() float64 { return p.End - p.Start }

// LyricLine is one line of the printed catalog lyrics. Lines are immutable
// once loaded; Index is the ordinal position in the song and the ordering
// is semantically meaningful — it must never be changed downstream.
type LyricLine struct {
	// Index is the zero-based position of the line in the song.
	Index int `json:"index"`

	// Text is the printed lyric text. Never empty.
	Text string `json:"text"`

	// IsRepeat is true when an earlier line has the same text after
	// normalisation (repeated chorus, refrain). Derived by ParseLyrics.
	IsRepeat bool `json:"is_repeat,omitempty"`
}

// Confidence labels how an AlignedLine's timestamp was derived.
type Confidence string

const (
	// ConfidenceAligned means the line's text matched a span window above
	// the acceptance threshold and carries the window's real timestamps.
	ConfidenceAligned Confidence = "aligned"

	// ConfidenceInterpolated means the timestamp was reconstructed from
	// the nearest matched neighbours rather than matched directly.
	ConfidenceInterpolated Confidence = "interpolated"

	// ConfidenceUnmatched means no acceptable match was found. This is an
	// intermediate state inside the mapper; the interpolation pass
	// resolves it, so it never appears in final output unless the span
	// stream was empty.
	ConfidenceUnmatched Confidence = "unmatched"
)

// AlignedLine pairs one LyricLine with its best-effort timing. The mapper
// emits exactly one AlignedLine per input LyricLine, in line order.
type AlignedLine struct {
	Line LyricLine `json:"line"`

	// Start and End are seconds, nil while the line is unmatched.
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`

	Confidence Confidence `json:"confidence"`
}

// ParseLyrics splits raw lyric text into ordered LyricLines, skipping blank
// lines and flagging repeats. The returned slice preserves song order.
func ParseLyrics(raw string) []LyricLine {
	var lines []LyricLine
	seen := make(map[string]struct{})
	for _, l := range strings.Split(raw, "\n") {
		text := strings.TrimSpace(l)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		_, repeat := seen[key]
		seen[key] = struct{}{}
		lines = append(lines, LyricLine{
			Index:    len(lines),
			Text:     text,
			IsRepeat: repeat,
		})
	}
	return lines
}
