package report

import (
	"sort"

	"formhub/internal/option"
)

// QuestionStats summarizes the resolved answers of one selectable question
// in two views. KeyDistribution counts occurrences per immutable key and is
// completely insensitive to label renames. LabelDistribution re-keys the same
// counts by each option's CURRENT label, so after a rename all historical and
// future occurrences report under the new label and none remain under the
// old one.
type QuestionStats struct {
	QuestionID        int64                  `json:"question_id"`
	Prompt            string                 `json:"prompt"`
	QuestionType      string                 `json:"question_type"`
	Total             int                    `json:"total"`
	KeyDistribution   map[option.Key]int     `json:"key_distribution"`
	KeyLabels         map[option.Key]string  `json:"key_labels"`
	LabelDistribution map[string]int         `json:"label_distribution"`
	Orphaned          []option.Key           `json:"orphaned_keys,omitempty"`
}

// AggregateQuestion folds per-submission answer key sets into both
// distributions. Keys absent from the current option set are never dropped:
// they stay in KeyDistribution under the orphaned key, and LabelDistribution
// falls back to the last-known label from history, or the raw key if none is
// tracked. Multi-select answers increment one count per selected key.
func AggregateQuestion(answerSets [][]option.Key, current []option.Option, lastKnown map[option.Key]option.Label) QuestionStats {
	stats := QuestionStats{
		KeyDistribution:   make(map[option.Key]int),
		KeyLabels:         make(map[option.Key]string),
		LabelDistribution: make(map[string]int),
	}

	// Every current option appears in both views, even at zero.
	for _, o := range current {
		stats.KeyDistribution[o.Key] = 0
	}

	for _, keys := range answerSets {
		for _, key := range keys {
			stats.KeyDistribution[key]++
			stats.Total++
		}
	}

	// Second pass: re-key by current label, falling back for orphans.
	for key, count := range stats.KeyDistribution {
		label, orphaned := displayLabel(key, current, lastKnown)
		stats.KeyLabels[key] = label
		stats.LabelDistribution[label] += count
		if orphaned {
			stats.Orphaned = append(stats.Orphaned, key)
		}
	}
	sort.Slice(stats.Orphaned, func(i, j int) bool { return stats.Orphaned[i] < stats.Orphaned[j] })

	return stats
}

func displayLabel(key option.Key, current []option.Option, lastKnown map[option.Key]option.Label) (string, bool) {
	if o, ok := option.FindByKey(current, key); ok {
		return string(o.Label), false
	}
	if label, ok := lastKnown[key]; ok {
		return string(label), true
	}
	return string(key), true
}
