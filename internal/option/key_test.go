package option

import (
	"strings"
	"testing"
)

func TestGenerateKeyDeterministic(t *testing.T) {
	tests := []struct {
		name       string
		label      string
		index      int
		questionID string
	}{
		{name: "plain word", label: "Red", index: 0, questionID: "q1"},
		{name: "sentence", label: "Strongly agree with this", index: 3, questionID: "form-9/q2"},
		{name: "unicode", label: "Cédula de Ciudadanía", index: 1, questionID: "q7"},
		{name: "emoji only", label: "👍👍", index: 0, questionID: "q1"},
		{name: "empty", label: "", index: 5, questionID: "q4"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			first := GenerateKey(tc.label, tc.index, tc.questionID)
			second := GenerateKey(tc.label, tc.index, tc.questionID)
			if first != second {
				t.Fatalf("same inputs yielded %q and %q", first, second)
			}
			if first == "" {
				t.Fatalf("key must never be empty")
			}
		})
	}
}

func TestGenerateKeySlugShape(t *testing.T) {
	key := string(GenerateKey("Strongly Agree!", 0, "q1"))
	if !strings.HasPrefix(key, "strongly_agree_") {
		t.Fatalf("expected slug prefix strongly_agree_, got %q", key)
	}
	parts := strings.Split(key, "_")
	suffix := parts[len(parts)-1]
	if len(suffix) != hashLen {
		t.Fatalf("expected %d-char hash suffix, got %q", hashLen, suffix)
	}
}

func TestGenerateKeyEmptySlugFallback(t *testing.T) {
	for _, label := range []string{"👍", "???", "   ", ""} {
		key := string(GenerateKey(label, 0, "q1"))
		if !strings.HasPrefix(key, emptyPrefix+"_") {
			t.Fatalf("label %q: expected fallback prefix %q, got %q", label, emptyPrefix, key)
		}
	}
}

func TestGenerateKeyDistinctInputs(t *testing.T) {
	base := GenerateKey("Red", 0, "q1")
	if GenerateKey("Red", 1, "q1") == base {
		t.Fatalf("index must affect the key")
	}
	if GenerateKey("Red", 0, "q2") == base {
		t.Fatalf("question id must affect the key")
	}
	if GenerateKey("Blue", 0, "q1") == base {
		t.Fatalf("label must affect the key")
	}
}

func TestGenerateKeyTruncatesLongLabels(t *testing.T) {
	long := strings.Repeat("option label with many words ", 10)
	key := string(GenerateKey(long, 0, "q1"))
	if len(key) > maxSlugLen+1+hashLen {
		t.Fatalf("key %q exceeds bounded length", key)
	}
}
