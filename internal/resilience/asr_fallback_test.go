package resilience_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/lyralign/internal/resilience"
	alignmock "github.com/MrWong99/lyralign/pkg/provider/align/mock"
	"github.com/MrWong99/lyralign/pkg/provider/asr"
	asrmock "github.com/MrWong99/lyralign/pkg/provider/asr/mock"
	"github.com/MrWong99/lyralign/pkg/types"
)

func TestASRFallbackUsesPrimary(t *testing.T) {
	t.Parallel()

	primary := &asrmock.Provider{Phrases: []types.Phrase{{Text: "hello", Start: 0, End: 1}}}
	secondary := &asrmock.Provider{}
	f := resilience.NewASRFallback(primary, "whisper-local", resilience.FallbackConfig{})
	f.AddFallback("openai", secondary)

	phrases, err := f.Transcribe(context.Background(), "song.wav", asr.TranscribeOptions{Language: "en"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(phrases) != 1 || phrases[0].Text != "hello" {
		t.Fatalf("phrases = %+v, want the primary's transcript", phrases)
	}
	if secondary.CallCount() != 0 {
		t.Errorf("fallback called %d times while primary is healthy", secondary.CallCount())
	}
}

func TestASRFallbackFailsOver(t *testing.T) {
	t.Parallel()

	primary := &asrmock.Provider{Err: errors.New("model load failed")}
	secondary := &asrmock.Provider{Phrases: []types.Phrase{{Text: "from fallback", Start: 0, End: 1}}}
	f := resilience.NewASRFallback(primary, "whisper-local", resilience.FallbackConfig{})
	f.AddFallback("openai", secondary)

	phrases, err := f.Transcribe(context.Background(), "song.wav", asr.TranscribeOptions{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(phrases) != 1 || phrases[0].Text != "from fallback" {
		t.Fatalf("phrases = %+v, want the fallback's transcript", phrases)
	}
	if primary.CallCount() != 1 {
		t.Errorf("primary calls = %d, want 1", primary.CallCount())
	}
}

func TestASRFallbackAllFail(t *testing.T) {
	t.Parallel()

	primary := &asrmock.Provider{Err: errors.New("down")}
	f := resilience.NewASRFallback(primary, "whisper-local", resilience.FallbackConfig{})

	_, err := f.Transcribe(context.Background(), "song.wav", asr.TranscribeOptions{})
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestAlignFallbackFailsOver(t *testing.T) {
	t.Parallel()

	primary := &alignmock.Provider{Err: errors.New("aligner timeout")}
	secondary := &alignmock.Provider{Spans: []types.Phrase{
		{Text: "hello world", Start: 0.5, End: 1.5, Source: types.SourceAligner},
	}}
	f := resilience.NewAlignFallback(primary, "mms-primary", resilience.FallbackConfig{})
	f.AddFallback("mms-backup", secondary)

	spans, err := f.Align(context.Background(), "song.wav", "hello world", "en")
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(spans) != 1 || spans[0].Source != types.SourceAligner {
		t.Fatalf("spans = %+v, want the fallback's spans", spans)
	}
	if got := secondary.Calls[0]; got.Text != "hello world" || got.Language != "en" {
		t.Errorf("fallback received %+v, want original arguments", got)
	}
}
