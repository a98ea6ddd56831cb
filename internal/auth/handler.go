package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"formhub/internal/app/apiresp"
)

type ctxKey int

const keyCtxKey ctxKey = iota

type Handler struct {
	svc authService
}

type authService interface {
	Bootstrap(ctx context.Context, token string) (*IssuedKey, error)
	CreateKey(ctx context.Context, in CreateKeyInput) (*IssuedKey, error)
	Authenticate(ctx context.Context, token string) (*Key, error)
	RevokeKey(ctx context.Context, keyID string) error
}

type bootstrapRequest struct {
	Token string `json:"token"`
}

type createKeyRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CurrentKey returns the authenticated API key stored on the request context.
func CurrentKey(ctx context.Context) (Key, bool) {
	k, ok := ctx.Value(keyCtxKey).(Key)
	return k, ok
}

func (h *Handler) BootstrapInit(w http.ResponseWriter, r *http.Request) {
	var req bootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	issued, err := h.svc.Bootstrap(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, ErrBootstrapDenied) {
			apiresp.WriteError(w, r, http.StatusForbidden, "bootstrap denied", nil)
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error", nil)
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, issued)
}

func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	issued, err := h.svc.CreateKey(r.Context(), CreateKeyInput{Name: req.Name, Role: req.Role})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error", nil)
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, issued)
}

func (h *Handler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	keyID := strings.TrimSpace(r.URL.Query().Get("key_id"))
	if err := h.svc.RevokeKey(r.Context(), keyID); err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, "key_id is required", nil)
		case errors.Is(err, ErrUnauthorized):
			apiresp.WriteError(w, r, http.StatusNotFound, "key not found", nil)
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error", nil)
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]bool{"revoked": true})
}

// RequireKey authenticates the Authorization bearer token (or X-API-Key
// header) and stores the key on the context.
func (h *Handler) RequireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			apiresp.WriteError(w, r, http.StatusUnauthorized, "missing api key", nil)
			return
		}
		key, err := h.svc.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				apiresp.WriteError(w, r, http.StatusUnauthorized, "invalid api key", nil)
				return
			}
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), keyCtxKey, *key)))
	})
}

// RequireRoles allows only keys carrying one of the listed roles.
func (h *Handler) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := CurrentKey(r.Context())
			if !ok {
				apiresp.WriteError(w, r, http.StatusUnauthorized, "missing api key", nil)
				return
			}
			if _, ok := allowed[key.Role]; !ok {
				apiresp.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-API-Key")); v != "" {
		return v
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}
