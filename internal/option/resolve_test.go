package option

import (
	"errors"
	"strings"
	"testing"
)

func colorOptions(t *testing.T) []Option {
	t.Helper()
	opts, err := Normalize(Labels([]string{"Red", "Blue", "Green"}), "q1")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return opts
}

func TestResolveSingleByKeyAndByLabel(t *testing.T) {
	opts := colorOptions(t)
	redKey := opts[0].Key

	byLabel, err := ResolveSingle("Red", opts)
	if err != nil {
		t.Fatalf("resolve by label: %v", err)
	}
	byKey, err := ResolveSingle(string(redKey), opts)
	if err != nil {
		t.Fatalf("resolve by key: %v", err)
	}
	if byLabel != redKey || byKey != redKey {
		t.Fatalf("expected both paths to yield %q, got label=%q key=%q", redKey, byLabel, byKey)
	}
}

func TestResolveSingleUnknown(t *testing.T) {
	_, err := ResolveSingle("Purple", colorOptions(t))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), `unknown option "Purple"`) {
		t.Fatalf("error must name the offending value, got %v", verr)
	}
}

func TestResolveRenamedLabelNoLongerMatches(t *testing.T) {
	opts := colorOptions(t)
	redKey := opts[0].Key

	// Rename touches the label only; the key is untouched.
	opts[0].Label = "Crimson"

	if _, err := ResolveSingle("Red", opts); err == nil {
		t.Fatalf("old label must not resolve after a rename")
	}
	got, err := ResolveSingle("Crimson", opts)
	if err != nil {
		t.Fatalf("new label must resolve: %v", err)
	}
	if got != redKey {
		t.Fatalf("rename must not change the key: got %q want %q", got, redKey)
	}
	byKey, err := ResolveSingle(string(redKey), opts)
	if err != nil || byKey != redKey {
		t.Fatalf("key must keep resolving after rename: %v %q", err, byKey)
	}
}

func TestResolveMulti(t *testing.T) {
	opts := colorOptions(t)
	keys, err := ResolveMulti([]string{"Red", string(opts[2].Key)}, opts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(keys) != 2 || keys[0] != opts[0].Key || keys[1] != opts[2].Key {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestResolveMultiDuplicateSelectionRejected(t *testing.T) {
	opts := colorOptions(t)
	// Same option picked twice: once by key, once by its current label.
	_, err := ResolveMulti([]string{string(opts[0].Key), "Red"}, opts)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), "duplicate selection") {
		t.Fatalf("expected duplicate selection problem, got %v", verr)
	}
}

func TestResolveMultiAggregatesProblems(t *testing.T) {
	opts := colorOptions(t)
	_, err := ResolveMulti([]string{"Purple", "Red", "Red", "Mauve"}, opts)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Problems) != 3 {
		t.Fatalf("expected 3 problems (2 unknown, 1 duplicate), got %v", verr.Problems)
	}
}

func TestResolveMultiEmpty(t *testing.T) {
	if _, err := ResolveMulti(nil, colorOptions(t)); err == nil {
		t.Fatalf("expected error for empty multi-select answer")
	}
}

func TestLabelFor(t *testing.T) {
	opts := colorOptions(t)
	if LabelFor(opts, opts[1].Key) != "Blue" {
		t.Fatalf("expected current label")
	}
	if LabelFor(opts, "gone_deadbeef") != "gone_deadbeef" {
		t.Fatalf("missing key must fall back to the key itself")
	}
}
