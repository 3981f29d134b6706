// Package linemap reconciles fine-grained timed spans of *sung* text
// against the ordered *printed* lyric lines, producing one best-effort
// timestamp per printed line.
//
// Sung and printed text diverge in practice: choruses printed twice may be
// sung once, bridges are dropped, ad-libs appear from nowhere. The mapper
// therefore never assumes a 1:1, monotonically advancing correspondence.
// Instead it runs a greedy sequential alignment with bounded lookahead: a
// cursor walks the span stream, each line bids on sliding windows of
// concatenated span text, and the window with the highest normalised
// similarity above the acceptance threshold wins. Lines that find no
// acceptable window fall to interpolation between their matched
// neighbours. Greedy-with-lookahead handles the dominant failure mode —
// localised divergence — without the cost of a global dynamic program.
package linemap

import (
	"log/slog"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/lyralign/pkg/types"
)

const (
	// DefaultThreshold is the minimum Jaro-Winkler similarity a window
	// must reach to be accepted for a line. Tuned against transcripts
	// whose text diverges moderately from the printed lyrics; see the
	// package tests for the divergence levels verified at this value.
	DefaultThreshold = 0.72

	// DefaultLookahead is how many span start positions past the cursor
	// are considered for a single line before it is declared unmatched.
	DefaultLookahead = 12

	// DefaultEpsilon is the minimal positive increment (seconds) used by
	// the monotonicity sweep when clamping a regressed start time.
	DefaultEpsilon = 0.01

	// maxWindowSpans caps how many consecutive spans one window may
	// concatenate. Lyric lines are short; windows beyond this length
	// only ever lower the similarity score.
	maxWindowSpans = 8
)

// Config carries the externally supplied tunables of the mapper. The zero
// value of any field is replaced by the package default in New.
type Config struct {
	// Threshold is the minimum acceptance similarity in (0, 1].
	Threshold float64

	// Lookahead bounds the forward search window, in span positions.
	Lookahead int

	// Epsilon is the clamp increment of the final monotonicity sweep.
	Epsilon float64
}

// Mapper assigns timestamps to lyric lines. Mappers are read-only after
// construction and safe for concurrent use.
type Mapper struct {
	threshold float64
	lookahead int
	epsilon   float64
}

// New returns a Mapper configured by cfg, with package defaults filled in
// for zero-valued fields.
func New(cfg Config) *Mapper {
	m := &Mapper{
		threshold: cfg.Threshold,
		lookahead: cfg.Lookahead,
		epsilon:   cfg.Epsilon,
	}
	if m.threshold <= 0 {
		m.threshold = DefaultThreshold
	}
	if m.lookahead <= 0 {
		m.lookahead = DefaultLookahead
	}
	if m.epsilon <= 0 {
		m.epsilon = DefaultEpsilon
	}
	return m
}

// span is a pre-normalised view of one input phrase.
type span struct {
	norm  string
	words int
	start float64
	end   float64
}

// match is an accepted window for one line.
type match struct {
	first, last int // span indices, inclusive
	score       float64
}

// Map assigns each line in lines a best-effort timestamp from spans.
//
// The result always has exactly len(lines) entries in the original line
// order. Non-nil start times are non-decreasing. Lines whose text found no
// acceptable window carry ConfidenceInterpolated timing reconstructed from
// their neighbours; only when no line at all matched does the output
// contain ConfidenceUnmatched entries.
func (m *Mapper) Map(spans []types.Phrase, lines []types.LyricLine) []types.AlignedLine {
	out := make([]types.AlignedLine, len(lines))
	for i, l := range lines {
		out[i] = types.AlignedLine{Line: l, Confidence: types.ConfidenceUnmatched}
	}
	if len(lines) == 0 {
		return out
	}

	ss := normalizeSpans(spans)

	cursor := 0
	prevStart := -1.0 // last assigned start, for the repeat regression guard

	for i := range lines {
		target := Normalize(lines[i].Text)
		if target == "" || len(ss) == 0 {
			continue
		}

		best, ok := m.bestWindow(ss, target, cursor, cursor+m.lookahead)
		fromBehind := false
		if !ok && lines[i].IsRepeat && cursor > 0 {
			// A repeated line may re-match earlier audio, but only when
			// that audio actually lies after the previous line's start.
			// Otherwise the same span would serve two lines, which the
			// mapper must never do.
			if b, o := m.bestWindow(ss, target, 0, cursor-1); o && ss[b.first].start > prevStart {
				best, ok = b, true
				fromBehind = true
			}
		}
		if !ok {
			slog.Debug("linemap: no acceptable window", "line", lines[i].Index, "text", lines[i].Text)
			continue
		}

		start := ss[best.first].start
		end := ss[best.last].end
		out[i].Start = &start
		out[i].End = &end
		out[i].Confidence = types.ConfidenceAligned
		prevStart = start

		// The cursor only ever advances; a behind-cursor repeat match
		// must not make later lines re-consume audio.
		if !fromBehind {
			cursor = best.last + 1
		}
	}

	m.interpolate(out)
	m.sweep(out)
	return out
}

// bestWindow scans window start positions in [from, to] (clamped to the
// span slice) and returns the highest-scoring window above the acceptance
// threshold.
func (m *Mapper) bestWindow(ss []span, target string, from, to int) (match, bool) {
	targetWords := wordCount(target)
	// A window may concatenate more spans than the line has words, but
	// growing far past the target length only dilutes the score.
	growCap := 2*targetWords + 2
	if growCap > maxWindowSpans {
		growCap = maxWindowSpans
	}

	if from < 0 {
		from = 0
	}
	if to >= len(ss) {
		to = len(ss) - 1
	}

	var best match
	found := false
	for i := from; i <= to; i++ {
		if ss[i].norm == "" {
			continue
		}
		window := ""
		words := 0
		// The lookahead bounds where a window may *start*; the window
		// itself may extend past it.
		for j := i; j < len(ss) && j < i+growCap; j++ {
			if ss[j].norm == "" {
				continue
			}
			if window == "" {
				window = ss[j].norm
			} else {
				window += " " + ss[j].norm
			}
			words += ss[j].words
			score := matchr.JaroWinkler(target, window, false)
			if score >= m.threshold && (!found || score > best.score) {
				best = match{first: i, last: j, score: score}
				found = true
			}
			// Stop extending once the window is clearly longer than
			// the line; further spans cannot raise the score.
			if words > 2*targetWords {
				break
			}
		}
	}
	return best, found
}

// interpolate resolves unmatched lines from their matched neighbours.
// Lines between two matched neighbours get linearly interpolated starts,
// strictly between the neighbours'. Leading and trailing runs inherit the
// nearest neighbour's boundary timestamp; the monotonicity sweep restores
// ordering afterwards.
func (m *Mapper) interpolate(out []types.AlignedLine) {
	matched := make([]int, 0, len(out))
	for i := range out {
		if out[i].Confidence == types.ConfidenceAligned {
			matched = append(matched, i)
		}
	}
	if len(matched) == 0 {
		// Nothing to anchor on; leave every line unmatched.
		return
	}

	setStart := func(i int, t float64) {
		s := t
		out[i].Start = &s
		out[i].Confidence = types.ConfidenceInterpolated
	}

	first, last := matched[0], matched[len(matched)-1]

	// Leading run inherits the first matched line's start.
	for i := 0; i < first; i++ {
		setStart(i, *out[first].Start)
	}
	// Trailing run inherits the last matched line's end when known,
	// otherwise its start.
	tail := *out[last].Start
	if out[last].End != nil {
		tail = *out[last].End
	}
	for i := last + 1; i < len(out); i++ {
		setStart(i, tail)
	}

	// Interior runs interpolate linearly between straddling neighbours.
	for mi := 0; mi+1 < len(matched); mi++ {
		a, b := matched[mi], matched[mi+1]
		if b-a <= 1 {
			continue
		}
		ta, tb := *out[a].Start, *out[b].Start
		step := (tb - ta) / float64(b-a)
		for k := a + 1; k < b; k++ {
			setStart(k, ta+step*float64(k-a))
		}
	}
}

// sweep is the final monotonicity pass: any start below its predecessor's
// is clamped to predecessor + epsilon. Violations are corrected here, never
// surfaced to output.
func (m *Mapper) sweep(out []types.AlignedLine) {
	prev := -1.0
	havePrev := false
	for i := range out {
		if out[i].Start == nil {
			continue
		}
		if havePrev && *out[i].Start < prev {
			clamped := prev + m.epsilon
			out[i].Start = &clamped
			if out[i].End != nil && *out[i].End < clamped {
				e := clamped + m.epsilon
				out[i].End = &e
			}
		}
		prev = *out[i].Start
		havePrev = true
	}
}

// normalizeSpans precomputes the comparable text of every span.
func normalizeSpans(spans []types.Phrase) []span {
	ss := make([]span, len(spans))
	for i, p := range spans {
		n := Normalize(p.Text)
		ss[i] = span{
			norm:  n,
			words: wordCount(n),
			start: p.Start,
			end:   p.End,
		}
	}
	return ss
}
