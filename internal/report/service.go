package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"formhub/internal/form"
	"formhub/internal/option"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrFormNotFound     = errors.New("form not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrNotSelectable    = errors.New("question has no options")
)

type Service struct {
	db *sql.DB
}

type FormStats struct {
	FormID          int64           `json:"form_id"`
	SubmissionCount int             `json:"submission_count"`
	Questions       []QuestionStats `json:"questions"`
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// FormStats aggregates every selectable question of a form over all of its
// submissions. Reads are plain snapshot queries: no form-wide lock, and a
// concurrent rename or submission may or may not be visible yet.
func (s *Service) FormStats(ctx context.Context, formID int64) (*FormStats, error) {
	if formID <= 0 {
		return nil, ErrInvalidInput
	}

	var formExists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM forms WHERE id = $1 AND is_active = TRUE)
	`, formID).Scan(&formExists); err != nil {
		return nil, fmt.Errorf("check form: %w", err)
	}
	if !formExists {
		return nil, ErrFormNotFound
	}

	questions, err := s.loadSelectableQuestions(ctx, formID)
	if err != nil {
		return nil, err
	}
	answers, count, err := s.loadAnswerSets(ctx, formID)
	if err != nil {
		return nil, err
	}

	out := &FormStats{FormID: formID, SubmissionCount: count, Questions: make([]QuestionStats, 0, len(questions))}
	for _, q := range questions {
		stats, err := s.aggregateOne(ctx, q, answers[q.ID])
		if err != nil {
			return nil, err
		}
		out.Questions = append(out.Questions, stats)
	}
	return out, nil
}

// QuestionStats aggregates a single selectable question.
func (s *Service) QuestionStats(ctx context.Context, questionID int64) (*QuestionStats, error) {
	if questionID <= 0 {
		return nil, ErrInvalidInput
	}

	var q reportQuestion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, form_id, question_type, prompt
		FROM questions
		WHERE id = $1 AND is_active = TRUE
	`, questionID).Scan(&q.ID, &q.FormID, &q.QuestionType, &q.Prompt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("load question: %w", err)
	}
	if !form.IsSelectable(q.QuestionType) {
		return nil, ErrNotSelectable
	}

	answers, _, err := s.loadAnswerSets(ctx, q.FormID)
	if err != nil {
		return nil, err
	}
	stats, err := s.aggregateOne(ctx, q, answers[q.ID])
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

type reportQuestion struct {
	ID           int64
	FormID       int64
	QuestionType string
	Prompt       string
}

func (s *Service) aggregateOne(ctx context.Context, q reportQuestion, answerSets [][]option.Key) (QuestionStats, error) {
	opts, err := form.LoadOptions(ctx, s.db, q.ID)
	if err != nil {
		return QuestionStats{}, err
	}
	lastKnown, err := s.loadLastKnownLabels(ctx, q.ID)
	if err != nil {
		return QuestionStats{}, err
	}

	stats := AggregateQuestion(answerSets, opts, lastKnown)
	stats.QuestionID = q.ID
	stats.Prompt = q.Prompt
	stats.QuestionType = q.QuestionType
	return stats, nil
}

func (s *Service) loadSelectableQuestions(ctx context.Context, formID int64) ([]reportQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, form_id, question_type, prompt
		FROM questions
		WHERE form_id = $1 AND is_active = TRUE AND question_type IN ($2, $3)
		ORDER BY position ASC, id ASC
	`, formID, form.TypeSingleSelect, form.TypeMultiSelect)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	items := make([]reportQuestion, 0)
	for rows.Next() {
		var q reportQuestion
		if err := rows.Scan(&q.ID, &q.FormID, &q.QuestionType, &q.Prompt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		items = append(items, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return items, nil
}

// loadAnswerSets reads every submission of the form and indexes the resolved
// key sets per question. Single-select answers become one-element sets.
func (s *Service) loadAnswerSets(ctx context.Context, formID int64) (map[int64][][]option.Key, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT answers
		FROM submissions
		WHERE form_id = $1
	`, formID)
	if err != nil {
		return nil, 0, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][][]option.Key)
	count := 0
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, 0, fmt.Errorf("scan submission: %w", err)
		}
		count++

		var answers map[string]any
		if err := json.Unmarshal(raw, &answers); err != nil {
			return nil, 0, fmt.Errorf("unmarshal answers: %w", err)
		}
		for qid, value := range answers {
			id, err := strconv.ParseInt(qid, 10, 64)
			if err != nil {
				continue
			}
			keys := answerKeys(value)
			if keys != nil {
				out[id] = append(out[id], keys)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, count, nil
}

func answerKeys(value any) []option.Key {
	switch v := value.(type) {
	case string:
		return []option.Key{option.Key(v)}
	case []any:
		keys := make([]option.Key, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				keys = append(keys, option.Key(s))
			}
		}
		return keys
	default:
		return nil
	}
}

// loadLastKnownLabels returns the newest recorded label per option key of a
// question. The aggregator uses it to keep orphaned keys readable after
// their option has been removed.
func (s *Service) loadLastKnownLabels(ctx context.Context, questionID int64) (map[option.Key]option.Label, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (option_key) option_key, new_label
		FROM option_label_history
		WHERE question_id = $1
		ORDER BY option_key, changed_at DESC, id DESC
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query last known labels: %w", err)
	}
	defer rows.Close()

	out := make(map[option.Key]option.Label)
	for rows.Next() {
		var key option.Key
		var label option.Label
		if err := rows.Scan(&key, &label); err != nil {
			return nil, fmt.Errorf("scan last known label: %w", err)
		}
		out[key] = label
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate last known labels: %w", err)
	}
	return out, nil
}
