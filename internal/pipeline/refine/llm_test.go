package refine

import (
	"testing"

	"github.com/MrWong99/lyralign/pkg/types"
)

func TestParseLLMSpans(t *testing.T) {
	t.Parallel()

	content := `[
		{"text": "hello darkness", "start": 1.0, "end": 2.5},
		{"text": "my old friend", "start": 2.6, "end": 4.0}
	]`
	spans, err := parseLLMSpans(content, 10)
	if err != nil {
		t.Fatalf("parseLLMSpans: %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[1].Text != "my old friend" || spans[1].Start != 2.6 {
		t.Errorf("span 1: %+v", spans[1])
	}
}

func TestParseLLMSpans_ToleratesCodeFence(t *testing.T) {
	t.Parallel()

	content := "```json\n[{\"text\": \"la\", \"start\": 0.5, \"end\": 1.0}]\n```"
	spans, err := parseLLMSpans(content, 10)
	if err != nil {
		t.Fatalf("parseLLMSpans: %v", err)
	}
	if len(spans) != 1 || spans[0].Text != "la" {
		t.Errorf("spans: %+v", spans)
	}
}

func TestParseLLMSpans_RejectsMalformedOutput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
	}{
		{"not json", "sure! here are the spans you asked for"},
		{"empty array", "[]"},
		{"end before start", `[{"text": "x", "start": 5, "end": 3}]`},
		{"negative start", `[{"text": "x", "start": -1, "end": 3}]`},
		{"beyond duration", `[{"text": "x", "start": 1, "end": 500}]`},
		{"regressing starts", `[{"text": "a", "start": 5, "end": 6}, {"text": "b", "start": 2, "end": 3}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := parseLLMSpans(tc.content, 10); err == nil {
				t.Errorf("parseLLMSpans accepted %s", tc.name)
			}
		})
	}
}

func TestConcatText(t *testing.T) {
	t.Parallel()

	phrases := []types.Phrase{
		{Text: "  first ", Start: 0, End: 1},
		{Text: "", Start: 1, End: 2},
		{Text: "second", Start: 2, End: 3},
	}
	if got := concatText(phrases); got != "first second" {
		t.Errorf("concatText = %q, want %q", got, "first second")
	}
	if concatText(nil) != "" {
		t.Error("concatText(nil) should be empty")
	}
}
