package report

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"formhub/internal/option"
)

// ExportFormStatsExcel renders the form's aggregated stats as a workbook with
// one row per option key, orphaned keys included.
func (s *Service) ExportFormStatsExcel(ctx context.Context, formID int64) ([]byte, error) {
	stats, err := s.FormStats(ctx, formID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"question_id", "prompt", "option_key", "current_label", "count", "orphaned"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, q := range stats.Questions {
		orphaned := make(map[option.Key]bool, len(q.Orphaned))
		for _, key := range q.Orphaned {
			orphaned[key] = true
		}
		keys := make([]option.Key, 0, len(q.KeyDistribution))
		for key := range q.KeyDistribution {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, key := range keys {
			values := []any{
				q.QuestionID,
				q.Prompt,
				string(key),
				q.KeyLabels[key],
				q.KeyDistribution[key],
				orphaned[key],
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				_ = f.SetCellValue(sheet, cell, v)
			}
			row++
		}
	}
	_ = f.SetColWidth(sheet, "A", "F", 22)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
