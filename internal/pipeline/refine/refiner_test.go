package refine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/lyralign/internal/pipeline/refine"
	"github.com/MrWong99/lyralign/pkg/audio"
	alignmock "github.com/MrWong99/lyralign/pkg/provider/align/mock"
	"github.com/MrWong99/lyralign/pkg/types"
)

func info(duration float64) audio.Info {
	return audio.Info{Path: "/tmp/song.wav", DurationSeconds: duration, SampleRate: 16000, Channels: 1}
}

func transcript() []types.Phrase {
	return []types.Phrase{
		{Text: "hello darkness my old friend", Start: 1, End: 4, Source: types.SourceTranscript},
		{Text: "i've come to talk with you again", Start: 5, End: 9, Source: types.SourceTranscript},
	}
}

func fineSpans() []types.Phrase {
	return []types.Phrase{
		{Text: "hello darkness", Start: 1.1, End: 2.4, Source: types.SourceAligner},
		{Text: "my old friend", Start: 2.5, End: 3.9, Source: types.SourceAligner},
	}
}

func newRefiner(p *alignmock.Provider, maxDuration float64) *refine.Refiner {
	return refine.New([]refine.Strategy{
		refine.NewAlignerStrategy(p, maxDuration, "en"),
	})
}

func TestRefine_AlignerWins(t *testing.T) {
	t.Parallel()

	mock := &alignmock.Provider{Spans: fineSpans()}
	r := newRefiner(mock, 300)

	res := r.Refine(context.Background(), info(200), transcript())
	if res.Tier != types.TierAligned {
		t.Fatalf("tier=%s, want aligned", res.Tier)
	}
	if res.Reason != "" {
		t.Errorf("reason=%q, want empty for an aligned result", res.Reason)
	}
	if res.Strategy != "forced-aligner" {
		t.Errorf("strategy=%q, want forced-aligner", res.Strategy)
	}
	if len(res.Spans) != 2 || res.Spans[0].Text != "hello darkness" {
		t.Errorf("unexpected spans: %+v", res.Spans)
	}
}

func TestRefine_AlignerReceivesTranscriptText(t *testing.T) {
	t.Parallel()

	// The aligner must be fed the *sung* text (the transcript), never
	// the printed catalog lyrics.
	mock := &alignmock.Provider{Spans: fineSpans()}
	r := newRefiner(mock, 300)

	r.Refine(context.Background(), info(200), transcript())
	if mock.CallCount() != 1 {
		t.Fatalf("aligner called %d times, want 1", mock.CallCount())
	}
	want := "hello darkness my old friend i've come to talk with you again"
	if got := mock.Calls[0].Text; got != want {
		t.Errorf("aligner text:\ngot  %q\nwant %q", got, want)
	}
	if mock.Calls[0].Language != "en" {
		t.Errorf("language=%q, want en", mock.Calls[0].Language)
	}
}

func TestRefine_DurationGate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		duration float64
		admitted bool
	}{
		{"well under ceiling", 120, true},
		{"exactly at ceiling", 300, true},
		{"one second over", 301, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mock := &alignmock.Provider{Spans: fineSpans()}
			r := newRefiner(mock, 300)

			res := r.Refine(context.Background(), info(tc.duration), transcript())
			if tc.admitted {
				if mock.CallCount() != 1 {
					t.Fatalf("aligner called %d times, want 1", mock.CallCount())
				}
				if res.Tier != types.TierAligned {
					t.Errorf("tier=%s, want aligned", res.Tier)
				}
				return
			}
			if mock.CallCount() != 0 {
				t.Fatalf("aligner invoked despite duration gate")
			}
			if res.Tier != types.TierTranscriptFallback {
				t.Errorf("tier=%s, want transcript_fallback", res.Tier)
			}
			if res.Reason != types.FallbackDurationExceeded {
				t.Errorf("reason=%s, want duration_exceeded", res.Reason)
			}
			// The transcript phrases pass through unchanged.
			if len(res.Spans) != 2 || res.Spans[0].Text != "hello darkness my old friend" {
				t.Errorf("fallback spans altered: %+v", res.Spans)
			}
		})
	}
}

func TestRefine_AlignerErrorFallsBack(t *testing.T) {
	t.Parallel()

	mock := &alignmock.Provider{Err: errors.New("model load failed")}
	r := newRefiner(mock, 300)

	res := r.Refine(context.Background(), info(200), transcript())
	if res.Tier != types.TierTranscriptFallback {
		t.Fatalf("tier=%s, want transcript_fallback", res.Tier)
	}
	if res.Reason != types.FallbackAlignerError {
		t.Errorf("reason=%s, want aligner_error", res.Reason)
	}
	if res.Strategy != "raw-transcript" {
		t.Errorf("strategy=%q, want raw-transcript", res.Strategy)
	}
	if len(res.Spans) != len(transcript()) {
		t.Errorf("fallback did not carry the transcript phrases: %+v", res.Spans)
	}
}

func TestRefine_NoStrategies(t *testing.T) {
	t.Parallel()

	r := refine.New(nil)
	res := r.Refine(context.Background(), info(100), transcript())
	if res.Tier != types.TierTranscriptFallback {
		t.Fatalf("tier=%s, want transcript_fallback", res.Tier)
	}
	if res.Strategy != "raw-transcript" {
		t.Errorf("strategy=%q, want raw-transcript", res.Strategy)
	}
}

// flakyStrategy fails a fixed number of times before succeeding; used to
// verify the ordered-evaluation contract directly.
type flakyStrategy struct {
	name  string
	tier  types.TimingTier
	err   error
	spans []types.Phrase
}

func (s *flakyStrategy) Name() string                                 { return s.name }
func (s *flakyStrategy) Tier() types.TimingTier                       { return s.tier }
func (s *flakyStrategy) Admit(audio.Info) (bool, types.FallbackReason) { return true, "" }
func (s *flakyStrategy) Refine(context.Context, audio.Info, []types.Phrase) ([]types.Phrase, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.spans, nil
}

func TestRefine_StrategiesEvaluatedInOrder(t *testing.T) {
	t.Parallel()

	r := refine.New([]refine.Strategy{
		&flakyStrategy{name: "first", tier: types.TierAligned, err: errors.New("down")},
		&flakyStrategy{name: "second", tier: types.TierLLMRefined, spans: fineSpans()},
	})

	res := r.Refine(context.Background(), info(100), transcript())
	if res.Strategy != "second" {
		t.Fatalf("strategy=%q, want second", res.Strategy)
	}
	if res.Tier != types.TierLLMRefined {
		t.Errorf("tier=%s, want llm_refined", res.Tier)
	}
	// The first strategy's failure is the recorded degradation reason.
	if res.Reason != types.FallbackAlignerError {
		t.Errorf("reason=%s, want aligner_error", res.Reason)
	}
}
