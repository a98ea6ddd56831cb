package form

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"formhub/internal/app/apiresp"
	"formhub/internal/auth"
	"formhub/internal/option"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc formService
}

type formService interface {
	CreateForm(ctx context.Context, in CreateFormInput) (*Form, error)
	GetForm(ctx context.Context, formID int64) (*Form, error)
	ListForms(ctx context.Context) ([]Form, error)
	CreateQuestion(ctx context.Context, in CreateQuestionInput) (*Question, error)
	GetQuestion(ctx context.Context, questionID int64) (*Question, error)
	ListQuestions(ctx context.Context, formID int64) ([]Question, error)
	ReplaceOptions(ctx context.Context, in ReplaceOptionsInput) (*Question, error)
	RenameOption(ctx context.Context, in RenameOptionInput) (*RenameResult, error)
	ListOptionHistory(ctx context.Context, questionID int64, key option.Key) ([]option.HistoryEntry, error)
}

type apiResponse struct {
	OK       bool        `json:"ok"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
	Problems []string    `json:"problems,omitempty"`
}

type createFormRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type createQuestionRequest struct {
	QuestionType string          `json:"question_type"`
	Prompt       string          `json:"prompt"`
	Options      json.RawMessage `json:"options"`
}

type replaceOptionsRequest struct {
	Options json.RawMessage `json:"options"`
}

type renameOptionRequest struct {
	NewLabel string  `json:"new_label"`
	Reason   *string `json:"reason"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) CreateForm(w http.ResponseWriter, r *http.Request) {
	var req createFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	item, err := h.svc.CreateForm(r.Context(), CreateFormInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: item})
}

func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	formID, ok := parseID(w, r, "id", "invalid form id")
	if !ok {
		return
	}
	item, err := h.svc.GetForm(r.Context(), formID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func (h *Handler) ListForms(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListForms(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	formID, ok := parseID(w, r, "id", "invalid form id")
	if !ok {
		return
	}

	var req createQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	item, err := h.svc.CreateQuestion(r.Context(), CreateQuestionInput{
		FormID:       formID,
		QuestionType: req.QuestionType,
		Prompt:       req.Prompt,
		Options:      req.Options,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: item})
}

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	formID, ok := parseID(w, r, "id", "invalid form id")
	if !ok {
		return
	}
	items, err := h.svc.ListQuestions(r.Context(), formID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	questionID, ok := parseID(w, r, "id", "invalid question id")
	if !ok {
		return
	}
	item, err := h.svc.GetQuestion(r.Context(), questionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func (h *Handler) ReplaceOptions(w http.ResponseWriter, r *http.Request) {
	questionID, ok := parseID(w, r, "id", "invalid question id")
	if !ok {
		return
	}

	var req replaceOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	item, err := h.svc.ReplaceOptions(r.Context(), ReplaceOptionsInput{
		QuestionID: questionID,
		Options:    req.Options,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func (h *Handler) RenameOption(w http.ResponseWriter, r *http.Request) {
	questionID, ok := parseID(w, r, "id", "invalid question id")
	if !ok {
		return
	}
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	if key == "" {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid option key"})
		return
	}

	var req renameOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	var actor *string
	if k, ok := auth.CurrentKey(r.Context()); ok {
		name := k.Name
		actor = &name
	}

	item, err := h.svc.RenameOption(r.Context(), RenameOptionInput{
		QuestionID: questionID,
		Key:        option.Key(key),
		NewLabel:   req.NewLabel,
		Actor:      actor,
		Reason:     req.Reason,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func (h *Handler) ListOptionHistory(w http.ResponseWriter, r *http.Request) {
	questionID, ok := parseID(w, r, "id", "invalid question id")
	if !ok {
		return
	}
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	if key == "" {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid option key"})
		return
	}

	items, err := h.svc.ListOptionHistory(r.Context(), questionID, option.Key(key))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

func parseID(w http.ResponseWriter, r *http.Request, param, msg string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: msg})
		return 0, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *option.ValidationError
	var cerr *option.ConflictError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, r, http.StatusUnprocessableEntity, apiResponse{OK: false, Error: verr.Error(), Problems: verr.Problems})
	case errors.As(err, &cerr):
		writeJSON(w, r, http.StatusConflict, apiResponse{OK: false, Error: cerr.Error()})
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrNotSelectable):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrFormNotFound), errors.Is(err, ErrQuestionNotFound), errors.Is(err, option.ErrOptionNotFound):
		writeJSON(w, r, http.StatusNotFound, apiResponse{OK: false, Error: err.Error()})
	default:
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error, payload.Problems)
}
