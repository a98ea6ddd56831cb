package submission

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"formhub/internal/form"
	"formhub/internal/option"
)

func selectableQuestion(questionType string) *formQuestion {
	return &formQuestion{
		ID:           1,
		QuestionType: questionType,
		Options: []option.Option{
			{Key: "red_1a2b3c4d", Label: "Red"},
			{Key: "blue_5e6f7a8b", Label: "Blue"},
			{Key: "green_9c0d1e2f", Label: "Green"},
		},
	}
}

func TestResolveAnswerSingleSelect(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    any
		wantErr string
	}{
		{name: "by key", raw: `"red_1a2b3c4d"`, want: option.Key("red_1a2b3c4d")},
		{name: "by current label", raw: `"Blue"`, want: option.Key("blue_5e6f7a8b")},
		{name: "unknown value", raw: `"Purple"`, wantErr: `unknown option "Purple"`},
		{name: "array rejected", raw: `["Red"]`, wantErr: "expected a single value"},
		{name: "number rejected", raw: `3`, wantErr: "expected a single value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveAnswer(selectableQuestion(form.TypeSingleSelect), json.RawMessage(tt.raw))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("resolved = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveAnswerMultiSelect(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []option.Key
		wantErr string
	}{
		{name: "keys and labels mixed", raw: `["red_1a2b3c4d", "Blue"]`, want: []option.Key{"red_1a2b3c4d", "blue_5e6f7a8b"}},
		{name: "scalar rejected", raw: `"Red"`, wantErr: "expected an array"},
		{name: "empty rejected", raw: `[]`, wantErr: "at least one selection"},
		{name: "duplicate selection", raw: `["Red", "red_1a2b3c4d"]`, wantErr: "duplicate selection"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveAnswer(selectableQuestion(form.TypeMultiSelect), json.RawMessage(tt.raw))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("resolved = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveAnswerShortText(t *testing.T) {
	q := &formQuestion{ID: 2, QuestionType: form.TypeShortText}

	got, err := resolveAnswer(q, json.RawMessage(`"  hello  "`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Errorf("resolved = %v, want hello", got)
	}

	if _, err := resolveAnswer(q, json.RawMessage(`"   "`)); err == nil {
		t.Errorf("expected error for blank text")
	}

	long := strings.Repeat("x", maxTextAnswerLen+1)
	if _, err := resolveAnswer(q, json.RawMessage(`"`+long+`"`)); err == nil {
		t.Errorf("expected error for oversized text")
	}
}
