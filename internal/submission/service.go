package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"formhub/internal/form"
	"formhub/internal/option"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrFormNotFound       = errors.New("form not found")
	ErrSubmissionNotFound = errors.New("submission not found")
)

const maxTextAnswerLen = 4000

type Service struct {
	db *sql.DB
}

// Submission is a stored response. Selectable answers hold canonical option
// keys only; labels never reach this record.
type Submission struct {
	ID        uuid.UUID      `json:"id"`
	FormID    int64          `json:"form_id"`
	Answers   map[string]any `json:"answers"`
	CreatedAt time.Time      `json:"created_at"`
}

// AnswerView pairs a stored answer with its display rendering through the
// question's CURRENT option set, so renamed labels show through on old
// submissions.
type AnswerView struct {
	QuestionID   int64  `json:"question_id"`
	QuestionType string `json:"question_type"`
	Prompt       string `json:"prompt"`
	Value        any    `json:"value"`
	Display      any    `json:"display,omitempty"`
}

type SubmissionView struct {
	ID        uuid.UUID    `json:"id"`
	FormID    int64        `json:"form_id"`
	Answers   []AnswerView `json:"answers"`
	CreatedAt time.Time    `json:"created_at"`
}

type CreateSubmissionInput struct {
	FormID  int64
	Answers map[string]json.RawMessage
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

type formQuestion struct {
	ID           int64
	QuestionType string
	Prompt       string
	Options      []option.Option
}

// CreateSubmission validates and resolves every answer against the form's
// current questions and options, then persists the canonical keys. Every
// problem across all answers is collected before failing; nothing is written
// unless the whole submission resolves.
func (s *Service) CreateSubmission(ctx context.Context, in CreateSubmissionInput) (*Submission, error) {
	if in.FormID <= 0 {
		return nil, ErrInvalidInput
	}
	if len(in.Answers) == 0 {
		return nil, fmt.Errorf("%w: answers are required", ErrInvalidInput)
	}

	questions, err := s.loadFormQuestions(ctx, in.FormID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*formQuestion, len(questions))
	for i := range questions {
		byID[strconv.FormatInt(questions[i].ID, 10)] = &questions[i]
	}

	verr := &option.ValidationError{}
	resolved := make(map[string]any, len(in.Answers))
	for qid, raw := range in.Answers {
		q, ok := byID[qid]
		if !ok {
			verr.Problems = append(verr.Problems, fmt.Sprintf("unknown question %q", qid))
			continue
		}
		value, err := resolveAnswer(q, raw)
		if err != nil {
			var inner *option.ValidationError
			if errors.As(err, &inner) {
				for _, p := range inner.Problems {
					verr.Problems = append(verr.Problems, fmt.Sprintf("question %s: %s", qid, p))
				}
			} else {
				verr.Problems = append(verr.Problems, fmt.Sprintf("question %s: %v", qid, err))
			}
			continue
		}
		resolved[qid] = value
	}
	if len(verr.Problems) > 0 {
		return nil, verr
	}

	answersRaw, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("marshal answers: %w", err)
	}

	id := uuid.New()
	var createdAt time.Time
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO submissions (id, form_id, answers, created_at)
		VALUES ($1, $2, $3::jsonb, now())
		RETURNING created_at
	`, id, in.FormID, answersRaw).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}

	return &Submission{
		ID:        id,
		FormID:    in.FormID,
		Answers:   resolved,
		CreatedAt: createdAt,
	}, nil
}

// resolveAnswer enforces shape discipline and maps raw values to canonical
// keys: scalar in, scalar out for single-select; array in, array out for
// multi-select.
func resolveAnswer(q *formQuestion, raw json.RawMessage) (any, error) {
	switch q.QuestionType {
	case form.TypeSingleSelect:
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, errors.New("expected a single value, not an array")
		}
		key, err := option.ResolveSingle(value, q.Options)
		if err != nil {
			return nil, err
		}
		return key, nil
	case form.TypeMultiSelect:
		var values []string
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, errors.New("expected an array of values")
		}
		keys, err := option.ResolveMulti(values, q.Options)
		if err != nil {
			return nil, err
		}
		return keys, nil
	case form.TypeShortText:
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, errors.New("expected a text value")
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return nil, errors.New("text answer is empty")
		}
		if len(value) > maxTextAnswerLen {
			return nil, fmt.Errorf("text answer exceeds %d characters", maxTextAnswerLen)
		}
		return value, nil
	default:
		return nil, fmt.Errorf("unsupported question type %q", q.QuestionType)
	}
}

// GetSubmission returns the stored canonical answer alongside its current
// display labels. A key whose option was removed displays as the key itself.
func (s *Service) GetSubmission(ctx context.Context, id uuid.UUID) (*SubmissionView, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, form_id, answers, created_at
		FROM submissions
		WHERE id = $1
	`, id)

	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("load submission: %w", err)
	}

	questions, err := s.loadFormQuestions(ctx, sub.FormID)
	if err != nil {
		return nil, err
	}

	view := &SubmissionView{
		ID:        sub.ID,
		FormID:    sub.FormID,
		CreatedAt: sub.CreatedAt,
		Answers:   make([]AnswerView, 0, len(sub.Answers)),
	}
	for i := range questions {
		q := &questions[i]
		stored, ok := sub.Answers[strconv.FormatInt(q.ID, 10)]
		if !ok {
			continue
		}
		av := AnswerView{
			QuestionID:   q.ID,
			QuestionType: q.QuestionType,
			Prompt:       q.Prompt,
			Value:        stored,
		}
		switch q.QuestionType {
		case form.TypeSingleSelect:
			if key, ok := stored.(string); ok {
				av.Display = string(option.LabelFor(q.Options, option.Key(key)))
			}
		case form.TypeMultiSelect:
			if keys, ok := stored.([]any); ok {
				labels := make([]string, 0, len(keys))
				for _, k := range keys {
					if key, ok := k.(string); ok {
						labels = append(labels, string(option.LabelFor(q.Options, option.Key(key))))
					}
				}
				av.Display = labels
			}
		}
		view.Answers = append(view.Answers, av)
	}
	return view, nil
}

func (s *Service) ListSubmissions(ctx context.Context, formID int64) ([]Submission, error) {
	if formID <= 0 {
		return nil, ErrInvalidInput
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, form_id, answers, created_at
		FROM submissions
		WHERE form_id = $1
		ORDER BY created_at DESC, id DESC
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	items := make([]Submission, 0)
	for rows.Next() {
		item, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return items, nil
}

func (s *Service) loadFormQuestions(ctx context.Context, formID int64) ([]formQuestion, error) {
	var formExists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM forms WHERE id = $1 AND is_active = TRUE)
	`, formID).Scan(&formExists); err != nil {
		return nil, fmt.Errorf("check form: %w", err)
	}
	if !formExists {
		return nil, ErrFormNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question_type, prompt
		FROM questions
		WHERE form_id = $1 AND is_active = TRUE
		ORDER BY position ASC, id ASC
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	items := make([]formQuestion, 0)
	for rows.Next() {
		var q formQuestion
		if err := rows.Scan(&q.ID, &q.QuestionType, &q.Prompt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		items = append(items, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	for i := range items {
		if !form.IsSelectable(items[i].QuestionType) {
			continue
		}
		opts, err := form.LoadOptions(ctx, s.db, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Options = opts
	}
	return items, nil
}

func scanSubmission(scanner interface{ Scan(dest ...any) error }) (*Submission, error) {
	var out Submission
	var answersRaw []byte
	if err := scanner.Scan(&out.ID, &out.FormID, &answersRaw, &out.CreatedAt); err != nil {
		return nil, err
	}
	if len(answersRaw) > 0 {
		if err := json.Unmarshal(answersRaw, &out.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return &out, nil
}
