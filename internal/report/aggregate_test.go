package report

import (
	"reflect"
	"testing"

	"formhub/internal/option"
)

func colorOptions() []option.Option {
	return []option.Option{
		{Key: "red_1a2b3c4d", Label: "Red", Order: 0},
		{Key: "blue_5e6f7a8b", Label: "Blue", Order: 1},
		{Key: "green_9c0d1e2f", Label: "Green", Order: 2},
	}
}

func TestAggregateQuestionCountsByKey(t *testing.T) {
	answers := [][]option.Key{
		{"red_1a2b3c4d"},
		{"blue_5e6f7a8b"},
		{"red_1a2b3c4d"},
	}

	stats := AggregateQuestion(answers, colorOptions(), nil)

	if stats.Total != 3 {
		t.Fatalf("Total = %d, want 3", stats.Total)
	}
	wantKeys := map[option.Key]int{
		"red_1a2b3c4d":   2,
		"blue_5e6f7a8b":  1,
		"green_9c0d1e2f": 0,
	}
	if !reflect.DeepEqual(stats.KeyDistribution, wantKeys) {
		t.Errorf("KeyDistribution = %v, want %v", stats.KeyDistribution, wantKeys)
	}
	wantLabels := map[string]int{"Red": 2, "Blue": 1, "Green": 0}
	if !reflect.DeepEqual(stats.LabelDistribution, wantLabels) {
		t.Errorf("LabelDistribution = %v, want %v", stats.LabelDistribution, wantLabels)
	}
	if len(stats.Orphaned) != 0 {
		t.Errorf("Orphaned = %v, want none", stats.Orphaned)
	}
}

func TestAggregateQuestionSeedsCurrentOptionsAtZero(t *testing.T) {
	stats := AggregateQuestion(nil, colorOptions(), nil)

	if stats.Total != 0 {
		t.Fatalf("Total = %d, want 0", stats.Total)
	}
	for _, o := range colorOptions() {
		if count, ok := stats.KeyDistribution[o.Key]; !ok || count != 0 {
			t.Errorf("KeyDistribution[%q] = %d, %v; want 0, true", o.Key, count, ok)
		}
		if count, ok := stats.LabelDistribution[string(o.Label)]; !ok || count != 0 {
			t.Errorf("LabelDistribution[%q] = %d, %v; want 0, true", o.Label, count, ok)
		}
	}
}

// A rename must not move any counts in the key view, and must move ALL
// counts, historical answers included, to the new label in the label view.
func TestAggregateQuestionRenameInvariance(t *testing.T) {
	answers := [][]option.Key{
		{"red_1a2b3c4d"},
		{"red_1a2b3c4d"},
		{"blue_5e6f7a8b"},
	}

	before := AggregateQuestion(answers, colorOptions(), nil)

	renamed := colorOptions()
	renamed[0].Label = "Crimson"
	after := AggregateQuestion(answers, renamed, nil)

	if !reflect.DeepEqual(before.KeyDistribution, after.KeyDistribution) {
		t.Errorf("KeyDistribution changed across rename: %v vs %v", before.KeyDistribution, after.KeyDistribution)
	}
	if after.LabelDistribution["Crimson"] != 2 {
		t.Errorf("LabelDistribution[Crimson] = %d, want 2", after.LabelDistribution["Crimson"])
	}
	if count, ok := after.LabelDistribution["Red"]; ok {
		t.Errorf("LabelDistribution[Red] = %d, want absent", count)
	}
}

func TestAggregateQuestionMultiSelectIncrementsPerKey(t *testing.T) {
	answers := [][]option.Key{
		{"red_1a2b3c4d", "blue_5e6f7a8b"},
		{"blue_5e6f7a8b", "green_9c0d1e2f"},
	}

	stats := AggregateQuestion(answers, colorOptions(), nil)

	if stats.Total != 4 {
		t.Fatalf("Total = %d, want 4", stats.Total)
	}
	if stats.KeyDistribution["blue_5e6f7a8b"] != 2 {
		t.Errorf("KeyDistribution[blue] = %d, want 2", stats.KeyDistribution["blue_5e6f7a8b"])
	}
}

func TestAggregateQuestionOrphanedKeysSurvive(t *testing.T) {
	answers := [][]option.Key{
		{"red_1a2b3c4d"},
		{"legacy_feedface"},
		{"ghost_00000000"},
	}
	lastKnown := map[option.Key]option.Label{
		"legacy_feedface": "Legacy choice",
	}

	stats := AggregateQuestion(answers, colorOptions(), lastKnown)

	if stats.KeyDistribution["legacy_feedface"] != 1 {
		t.Errorf("KeyDistribution[legacy_feedface] = %d, want 1", stats.KeyDistribution["legacy_feedface"])
	}
	if stats.LabelDistribution["Legacy choice"] != 1 {
		t.Errorf("LabelDistribution[Legacy choice] = %d, want 1", stats.LabelDistribution["Legacy choice"])
	}
	// No history for ghost_00000000: the raw key is the display label.
	if stats.LabelDistribution["ghost_00000000"] != 1 {
		t.Errorf("LabelDistribution[ghost_00000000] = %d, want 1", stats.LabelDistribution["ghost_00000000"])
	}
	wantOrphans := []option.Key{"ghost_00000000", "legacy_feedface"}
	if !reflect.DeepEqual(stats.Orphaned, wantOrphans) {
		t.Errorf("Orphaned = %v, want %v", stats.Orphaned, wantOrphans)
	}
	if got := stats.KeyLabels["legacy_feedface"]; got != "Legacy choice" {
		t.Errorf("KeyLabels[legacy_feedface] = %q, want %q", got, "Legacy choice")
	}
}

func TestAnswerKeys(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []option.Key
	}{
		{"single string", "red_1a2b3c4d", []option.Key{"red_1a2b3c4d"}},
		{"string slice", []any{"red_1a2b3c4d", "blue_5e6f7a8b"}, []option.Key{"red_1a2b3c4d", "blue_5e6f7a8b"}},
		{"free text ignored", 42, nil},
		{"nil ignored", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := answerKeys(tt.value)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("answerKeys(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
