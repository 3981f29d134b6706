// Package lrc renders and parses the LRC lyric format: one line per lyric,
// each prefixed with a [mm:ss.xx] tag marking its vocal onset.
package lrc

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/MrWong99/lyralign/pkg/types"
)

// Line is one parsed LRC entry.
type Line struct {
	// Start is the tag timestamp in seconds.
	Start float64

	// Text is the lyric text following the tag.
	Text string
}

// Format renders aligned lines as LRC text and returns it together with
// the number of lines emitted. It is a pure function of its input.
//
// Lines are rendered in their original order. A line without a timestamp
// should not occur after interpolation, but defensively such lines are
// skipped with a warning rather than emitted with a sentinel tag.
func Format(aligned []types.AlignedLine) (string, int) {
	var b strings.Builder
	count := 0
	for _, al := range aligned {
		if al.Start == nil {
			slog.Warn("lrc: skipping line without timestamp",
				"line", al.Line.Index, "text", al.Line.Text)
			continue
		}
		b.WriteString(Timestamp(*al.Start))
		b.WriteString(al.Line.Text)
		b.WriteByte('\n')
		count++
	}
	return b.String(), count
}

// Timestamp renders seconds as an LRC tag "[mm:ss.xx]" (hundredths).
// Negative input is clamped to zero.
func Timestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	// Round to hundredths first so 59.999 does not render as [00:60.00].
	cs := int(seconds*100 + 0.5)
	m := cs / 6000
	s := (cs % 6000) / 100
	h := cs % 100
	return fmt.Sprintf("[%02d:%02d.%02d]", m, s, h)
}

var tagRe = regexp.MustCompile(`^\[(\d+):(\d{2})\.(\d{2})\](.*)$`)

// Parse reads LRC text from r and returns its timestamped lines in file
// order. Lines without a timestamp tag (metadata tags, blanks) are
// skipped.
func Parse(r io.Reader) ([]Line, error) {
	var out []Line
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		m := tagRe.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		mins, _ := strconv.Atoi(m[1])
		secs, _ := strconv.Atoi(m[2])
		hundredths, _ := strconv.Atoi(m[3])
		out = append(out, Line{
			Start: float64(mins)*60 + float64(secs) + float64(hundredths)/100,
			Text:  strings.TrimSpace(m[4]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("lrc: read: %w", err)
	}
	return out, nil
}
