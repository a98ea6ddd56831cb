package submission

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"formhub/internal/app/apiresp"
	"formhub/internal/option"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	svc submissionService
}

type submissionService interface {
	CreateSubmission(ctx context.Context, in CreateSubmissionInput) (*Submission, error)
	GetSubmission(ctx context.Context, id uuid.UUID) (*SubmissionView, error)
	ListSubmissions(ctx context.Context, formID int64) ([]Submission, error)
}

type createSubmissionRequest struct {
	Answers map[string]json.RawMessage `json:"answers"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	formID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || formID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid form id", nil)
		return
	}

	var req createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	item, err := h.svc.CreateSubmission(r.Context(), CreateSubmissionInput{
		FormID:  formID,
		Answers: req.Answers,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, item)
}

func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid submission id", nil)
		return
	}

	item, err := h.svc.GetSubmission(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, item)
}

func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	formID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || formID <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid form id", nil)
		return
	}

	items, err := h.svc.ListSubmissions(r.Context(), formID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *option.ValidationError
	switch {
	case errors.As(err, &verr):
		apiresp.WriteError(w, r, http.StatusUnprocessableEntity, verr.Error(), verr.Problems)
	case errors.Is(err, ErrInvalidInput):
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ErrFormNotFound), errors.Is(err, ErrSubmissionNotFound):
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error(), nil)
	default:
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error", nil)
	}
}
