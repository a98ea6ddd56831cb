package form

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"formhub/internal/option"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrFormNotFound     = errors.New("form not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrNotSelectable    = errors.New("question has no options")
)

const (
	TypeSingleSelect = "single_select"
	TypeMultiSelect  = "multi_select"
	TypeShortText    = "short_text"
)

type Service struct {
	db *sql.DB
}

type Form struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Question struct {
	ID           int64           `json:"id"`
	FormID       int64           `json:"form_id"`
	QuestionType string          `json:"question_type"`
	Prompt       string          `json:"prompt"`
	Position     int             `json:"position"`
	Options      []option.Option `json:"options,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type CreateFormInput struct {
	Title       string
	Description string
}

type CreateQuestionInput struct {
	FormID       int64
	QuestionType string
	Prompt       string
	Options      json.RawMessage
}

type ReplaceOptionsInput struct {
	QuestionID int64
	Options    json.RawMessage
}

type RenameOptionInput struct {
	QuestionID int64
	Key        option.Key
	NewLabel   string
	Actor      *string
	Reason     *string
}

// RenameResult carries both effects of a label mutation: the updated option
// and the history row the same transaction appended.
type RenameResult struct {
	Option  option.Option       `json:"option"`
	History option.HistoryEntry `json:"history"`
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func normalizeQuestionType(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	switch v {
	case TypeSingleSelect, TypeMultiSelect, TypeShortText:
		return v
	default:
		return ""
	}
}

// IsSelectable reports whether a question type owns an option set.
func IsSelectable(questionType string) bool {
	return questionType == TypeSingleSelect || questionType == TypeMultiSelect
}

func (s *Service) CreateForm(ctx context.Context, in CreateFormInput) (*Form, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO forms (title, description, is_active, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), TRUE, now(), now())
		RETURNING id, title, description, is_active, created_at, updated_at
	`, in.Title, in.Description)

	out, err := scanForm(row)
	if err != nil {
		return nil, fmt.Errorf("insert form: %w", err)
	}
	return out, nil
}

func (s *Service) GetForm(ctx context.Context, formID int64) (*Form, error) {
	if formID <= 0 {
		return nil, ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, is_active, created_at, updated_at
		FROM forms
		WHERE id = $1 AND is_active = TRUE
	`, formID)
	out, err := scanForm(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFormNotFound
		}
		return nil, fmt.Errorf("load form: %w", err)
	}
	return out, nil
}

func (s *Service) ListForms(ctx context.Context) ([]Form, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, is_active, created_at, updated_at
		FROM forms
		WHERE is_active = TRUE
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query forms: %w", err)
	}
	defer rows.Close()

	items := make([]Form, 0)
	for rows.Next() {
		item, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forms: %w", err)
	}
	return items, nil
}

// CreateQuestion inserts a question and, for selectable types, its normalized
// option set in one transaction. Any validation problem in the option batch
// rejects the whole question: no partial option writes occur.
func (s *Service) CreateQuestion(ctx context.Context, in CreateQuestionInput) (*Question, error) {
	in.QuestionType = normalizeQuestionType(in.QuestionType)
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.FormID <= 0 || in.Prompt == "" {
		return nil, fmt.Errorf("%w: form_id and prompt are required", ErrInvalidInput)
	}
	if in.QuestionType == "" {
		return nil, fmt.Errorf("%w: question_type must be one of %s, %s, %s",
			ErrInvalidInput, TypeSingleSelect, TypeMultiSelect, TypeShortText)
	}

	var rawList option.RawList
	if IsSelectable(in.QuestionType) {
		if len(in.Options) == 0 {
			return nil, fmt.Errorf("%w: selectable questions require options", ErrInvalidInput)
		}
		parsed, err := option.ParseRawList(in.Options)
		if err != nil {
			return nil, err
		}
		if parsed.Len() == 0 {
			return nil, fmt.Errorf("%w: selectable questions require at least one option", ErrInvalidInput)
		}
		rawList = parsed
	} else if len(in.Options) > 0 {
		return nil, fmt.Errorf("%w: %s questions do not take options", ErrInvalidInput, in.QuestionType)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var formExists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM forms WHERE id = $1 AND is_active = TRUE)
	`, in.FormID).Scan(&formExists); err != nil {
		return nil, fmt.Errorf("check form: %w", err)
	}
	if !formExists {
		return nil, ErrFormNotFound
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO questions (form_id, question_type, prompt, position, is_active, created_at, updated_at)
		SELECT $1, $2, $3, COALESCE(MAX(position), 0) + 1, TRUE, now(), now()
		FROM questions WHERE form_id = $1
		RETURNING id, form_id, question_type, prompt, position, created_at, updated_at
	`, in.FormID, in.QuestionType, in.Prompt)

	out, err := scanQuestion(row)
	if err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}

	if IsSelectable(in.QuestionType) {
		opts, err := option.Normalize(rawList, strconv.FormatInt(out.ID, 10))
		if err != nil {
			return nil, err
		}
		if err := insertOptions(ctx, tx, out.ID, opts); err != nil {
			return nil, err
		}
		out.Options = opts
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return out, nil
}

func (s *Service) GetQuestion(ctx context.Context, questionID int64) (*Question, error) {
	if questionID <= 0 {
		return nil, ErrInvalidInput
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, form_id, question_type, prompt, position, created_at, updated_at
		FROM questions
		WHERE id = $1 AND is_active = TRUE
	`, questionID)
	out, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("load question: %w", err)
	}
	if IsSelectable(out.QuestionType) {
		opts, err := s.loadOptions(ctx, questionID)
		if err != nil {
			return nil, err
		}
		out.Options = opts
	}
	return out, nil
}

func (s *Service) ListQuestions(ctx context.Context, formID int64) ([]Question, error) {
	if formID <= 0 {
		return nil, ErrInvalidInput
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, form_id, question_type, prompt, position, created_at, updated_at
		FROM questions
		WHERE form_id = $1 AND is_active = TRUE
		ORDER BY position ASC, id ASC
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	items := make([]Question, 0)
	for rows.Next() {
		item, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	for i := range items {
		if !IsSelectable(items[i].QuestionType) {
			continue
		}
		opts, err := s.loadOptions(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Options = opts
	}
	return items, nil
}

// ReplaceOptions swaps a question's entire option list for a new one.
// Structured specs keep the keys they carry; plain labels get freshly
// generated keys. Keys removed here may still be referenced by old
// submissions; the stats layer keeps surfacing them as orphans.
func (s *Service) ReplaceOptions(ctx context.Context, in ReplaceOptionsInput) (*Question, error) {
	if in.QuestionID <= 0 {
		return nil, ErrInvalidInput
	}
	rawList, err := option.ParseRawList(in.Options)
	if err != nil {
		return nil, err
	}
	if rawList.Len() == 0 {
		return nil, fmt.Errorf("%w: selectable questions require at least one option", ErrInvalidInput)
	}

	opts, err := option.Normalize(rawList, strconv.FormatInt(in.QuestionID, 10))
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, form_id, question_type, prompt, position, created_at, updated_at
		FROM questions
		WHERE id = $1 AND is_active = TRUE
		FOR UPDATE
	`, in.QuestionID)
	out, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("load question: %w", err)
	}
	if !IsSelectable(out.QuestionType) {
		return nil, ErrNotSelectable
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM question_options WHERE question_id = $1
	`, in.QuestionID); err != nil {
		return nil, fmt.Errorf("clear question options: %w", err)
	}
	if err := insertOptions(ctx, tx, in.QuestionID, opts); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE questions SET updated_at = now() WHERE id = $1
	`, in.QuestionID); err != nil {
		return nil, fmt.Errorf("touch question: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	out.Options = opts
	return out, nil
}

// RenameOption overwrites only the option's label and appends the audit row
// in the same transaction: either both happen or neither does. Re-applying
// the same transition appends a second identical history row; the operation
// is deliberately not deduplicated.
func (s *Service) RenameOption(ctx context.Context, in RenameOptionInput) (*RenameResult, error) {
	in.NewLabel = strings.TrimSpace(in.NewLabel)
	if in.QuestionID <= 0 || strings.TrimSpace(string(in.Key)) == "" {
		return nil, ErrInvalidInput
	}
	if in.NewLabel == "" {
		return nil, fmt.Errorf("%w: new label is required", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var oldLabel string
	var metaRaw []byte
	var position int
	err = tx.QueryRowContext(ctx, `
		SELECT label, metadata, position
		FROM question_options
		WHERE question_id = $1 AND option_key = $2
		FOR UPDATE
	`, in.QuestionID, string(in.Key)).Scan(&oldLabel, &metaRaw, &position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, option.ErrOptionNotFound
		}
		return nil, fmt.Errorf("load option: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE question_options
		SET label = $3
		WHERE question_id = $1 AND option_key = $2
	`, in.QuestionID, string(in.Key), in.NewLabel); err != nil {
		return nil, fmt.Errorf("update option label: %w", err)
	}

	var changedAt time.Time
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO option_label_history (question_id, option_key, old_label, new_label, changed_by, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING changed_at
	`, in.QuestionID, string(in.Key), oldLabel, in.NewLabel,
		nullStringPtr(in.Actor), nullStringPtr(in.Reason)).Scan(&changedAt); err != nil {
		return nil, fmt.Errorf("append label history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	meta, err := unmarshalMetadata(metaRaw)
	if err != nil {
		return nil, err
	}
	return &RenameResult{
		Option: option.Option{
			Key:      in.Key,
			Label:    option.Label(in.NewLabel),
			Metadata: meta,
			Order:    position,
		},
		History: option.HistoryEntry{
			QuestionID: in.QuestionID,
			Key:        in.Key,
			OldLabel:   option.Label(oldLabel),
			NewLabel:   option.Label(in.NewLabel),
			ChangedBy:  in.Actor,
			Reason:     in.Reason,
			ChangedAt:  changedAt,
		},
	}, nil
}

// ListOptionHistory returns every label transition for one option key in
// append order. History survives option removal.
func (s *Service) ListOptionHistory(ctx context.Context, questionID int64, key option.Key) ([]option.HistoryEntry, error) {
	if questionID <= 0 || strings.TrimSpace(string(key)) == "" {
		return nil, ErrInvalidInput
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id, option_key, old_label, new_label, changed_by, reason, changed_at
		FROM option_label_history
		WHERE question_id = $1 AND option_key = $2
		ORDER BY changed_at ASC, id ASC
	`, questionID, string(key))
	if err != nil {
		return nil, fmt.Errorf("query option history: %w", err)
	}
	defer rows.Close()

	items := make([]option.HistoryEntry, 0)
	for rows.Next() {
		var item option.HistoryEntry
		var changedBy sql.NullString
		var reason sql.NullString
		if err := rows.Scan(&item.QuestionID, &item.Key, &item.OldLabel, &item.NewLabel, &changedBy, &reason, &item.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan option history: %w", err)
		}
		if changedBy.Valid {
			item.ChangedBy = &changedBy.String
		}
		if reason.Valid {
			item.Reason = &reason.String
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate option history: %w", err)
	}
	return items, nil
}

func (s *Service) loadOptions(ctx context.Context, questionID int64) ([]option.Option, error) {
	return loadOptions(ctx, s.db, questionID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// LoadOptions reads a question's current option set in display order. Shared
// with the submission and report layers, which resolve and aggregate against
// the same snapshot shape.
func LoadOptions(ctx context.Context, q querier, questionID int64) ([]option.Option, error) {
	return loadOptions(ctx, q, questionID)
}

func loadOptions(ctx context.Context, q querier, questionID int64) ([]option.Option, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT option_key, label, metadata, position
		FROM question_options
		WHERE question_id = $1
		ORDER BY position ASC
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}
	defer rows.Close()

	items := make([]option.Option, 0)
	for rows.Next() {
		var item option.Option
		var metaRaw []byte
		if err := rows.Scan(&item.Key, &item.Label, &metaRaw, &item.Order); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		meta, err := unmarshalMetadata(metaRaw)
		if err != nil {
			return nil, err
		}
		item.Metadata = meta
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate options: %w", err)
	}
	return items, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertOptions writes the batch inside the caller's transaction. A unique
// violation does not stop the batch: each insert runs under a savepoint, so
// the aborted statement can be rolled back and the remaining keys still
// attempted. The resulting ConflictError names every colliding key, not just
// the first.
func insertOptions(ctx context.Context, tx execer, questionID int64, opts []option.Option) error {
	var conflicts []option.Key
	for i, opt := range opts {
		metaRaw, err := json.Marshal(opt.Metadata)
		if err != nil {
			return fmt.Errorf("marshal option metadata: %w", err)
		}
		if opt.Metadata == nil {
			metaRaw = []byte(`{}`)
		}

		sp := fmt.Sprintf("insert_option_%d", i)
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO question_options (question_id, option_key, label, metadata, position)
			VALUES ($1, $2, $3, $4::jsonb, $5)
		`, questionID, string(opt.Key), string(opt.Label), metaRaw, opt.Order); err != nil {
			if isUniqueViolation(err) {
				if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); err != nil {
					return fmt.Errorf("rollback to savepoint: %w", err)
				}
				conflicts = append(conflicts, opt.Key)
				continue
			}
			return fmt.Errorf("insert option: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
			return fmt.Errorf("release savepoint: %w", err)
		}
	}
	if len(conflicts) > 0 {
		return &option.ConflictError{Keys: conflicts}
	}
	return nil
}

// isUniqueViolation detects the Postgres duplicate-key error that backstops
// the in-memory duplicate check under concurrent writers.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func unmarshalMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "{}" || string(raw) == "null" {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal option metadata: %w", err)
	}
	if len(meta) == 0 {
		return nil, nil
	}
	return meta, nil
}

func scanForm(scanner interface{ Scan(dest ...any) error }) (*Form, error) {
	var out Form
	var description sql.NullString
	if err := scanner.Scan(
		&out.ID,
		&out.Title,
		&description,
		&out.IsActive,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if description.Valid {
		out.Description = &description.String
	}
	return &out, nil
}

func scanQuestion(scanner interface{ Scan(dest ...any) error }) (*Question, error) {
	var out Question
	if err := scanner.Scan(
		&out.ID,
		&out.FormID,
		&out.QuestionType,
		&out.Prompt,
		&out.Position,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

func nullStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return s
}
