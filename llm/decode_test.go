package llm

import (
	"testing"

	"github.com/fabrik-ai/fabrik/schema"
)

func TestStripFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json\n{\"a\":1}\n```\n ", `{"a":1}`},
		{"plain text untouched", "hello world", "hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFence(tt.in); got != tt.want {
				t.Errorf("StripFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeStructured(t *testing.T) {
	s := schema.Object(map[string]schema.JSON{
		"score": schema.NumberRange(0, 5),
	}, "score")

	t.Run("valid json", func(t *testing.T) {
		got := DecodeStructured(`{"score": 4}`, &s)
		if got == nil || got["score"] != float64(4) {
			t.Errorf("Parsed = %v", got)
		}
	})

	t.Run("fenced json", func(t *testing.T) {
		got := DecodeStructured("```json\n{\"score\": 2}\n```", &s)
		if got == nil {
			t.Error("expected parse of fenced JSON")
		}
	})

	t.Run("prose around object", func(t *testing.T) {
		got := DecodeStructured(`Here is my verdict: {"score": 3} — thanks!`, &s)
		if got == nil {
			t.Error("expected parse of embedded object")
		}
	})

	t.Run("schema violation yields nil", func(t *testing.T) {
		if got := DecodeStructured(`{"score": 9}`, &s); got != nil {
			t.Errorf("Parsed = %v, want nil", got)
		}
	})

	t.Run("missing required yields nil", func(t *testing.T) {
		if got := DecodeStructured(`{"reasoning": "x"}`, &s); got != nil {
			t.Errorf("Parsed = %v, want nil", got)
		}
	})

	t.Run("not json yields nil", func(t *testing.T) {
		if got := DecodeStructured("no object here", &s); got != nil {
			t.Errorf("Parsed = %v, want nil", got)
		}
	})

	t.Run("nil schema yields nil", func(t *testing.T) {
		if got := DecodeStructured(`{"score": 1}`, nil); got != nil {
			t.Errorf("Parsed = %v, want nil", got)
		}
	})
}
