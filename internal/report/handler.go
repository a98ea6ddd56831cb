package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"formhub/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc reportService
}

type reportService interface {
	FormStats(ctx context.Context, formID int64) (*FormStats, error)
	QuestionStats(ctx context.Context, questionID int64) (*QuestionStats, error)
	ExportFormStatsExcel(ctx context.Context, formID int64) ([]byte, error)
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) FormStats(w http.ResponseWriter, r *http.Request) {
	formID, ok := parseID(w, r, "id", "invalid form id")
	if !ok {
		return
	}
	stats, err := h.svc.FormStats(r.Context(), formID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, stats)
}

func (h *Handler) QuestionStats(w http.ResponseWriter, r *http.Request) {
	questionID, ok := parseID(w, r, "id", "invalid question id")
	if !ok {
		return
	}
	stats, err := h.svc.QuestionStats(r.Context(), questionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, stats)
}

func (h *Handler) ExportFormStats(w http.ResponseWriter, r *http.Request) {
	formID, ok := parseID(w, r, "id", "invalid form id")
	if !ok {
		return
	}
	data, err := h.svc.ExportFormStatsExcel(r.Context(), formID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=form_%d_stats.xlsx", formID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseID(w http.ResponseWriter, r *http.Request, param, msg string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, msg, nil)
		return 0, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotSelectable):
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ErrFormNotFound), errors.Is(err, ErrQuestionNotFound):
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error(), nil)
	default:
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error", nil)
	}
}
