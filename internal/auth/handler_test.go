package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type mockAuthService struct {
	bootstrapFn    func(ctx context.Context, token string) (*IssuedKey, error)
	createKeyFn    func(ctx context.Context, in CreateKeyInput) (*IssuedKey, error)
	authenticateFn func(ctx context.Context, token string) (*Key, error)
	revokeKeyFn    func(ctx context.Context, keyID string) error
}

func (m *mockAuthService) Bootstrap(ctx context.Context, token string) (*IssuedKey, error) {
	if m.bootstrapFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.bootstrapFn(ctx, token)
}

func (m *mockAuthService) CreateKey(ctx context.Context, in CreateKeyInput) (*IssuedKey, error) {
	if m.createKeyFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createKeyFn(ctx, in)
}

func (m *mockAuthService) Authenticate(ctx context.Context, token string) (*Key, error) {
	if m.authenticateFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.authenticateFn(ctx, token)
}

func (m *mockAuthService) RevokeKey(ctx context.Context, keyID string) error {
	if m.revokeKeyFn == nil {
		return errors.New("not implemented")
	}
	return m.revokeKeyFn(ctx, keyID)
}

func TestRequireKeyMissingHeader(t *testing.T) {
	h := &Handler{svc: &mockAuthService{}}
	next := h.RequireKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/forms", nil)
	w := httptest.NewRecorder()
	next.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireKeyAcceptsBearerAndHeader(t *testing.T) {
	h := &Handler{svc: &mockAuthService{
		authenticateFn: func(ctx context.Context, token string) (*Key, error) {
			if token != "fk_abc_secret" {
				return nil, ErrUnauthorized
			}
			return &Key{ID: 1, KeyID: "abc", Name: "ci", Role: RoleViewer, IsActive: true}, nil
		},
	}}

	var got Key
	next := h.RequireKey(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CurrentKey(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/forms", nil)
	req.Header.Set("Authorization", "Bearer fk_abc_secret")
	w := httptest.NewRecorder()
	next.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("bearer: expected 200, got %d", w.Code)
	}
	if got.KeyID != "abc" {
		t.Fatalf("expected key on context, got %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/forms", nil)
	req.Header.Set("X-API-Key", "fk_abc_secret")
	w = httptest.NewRecorder()
	next.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("x-api-key: expected 200, got %d", w.Code)
	}
}

func TestRequireRolesForbidden(t *testing.T) {
	h := &Handler{svc: &mockAuthService{}}
	mw := h.RequireRoles(RoleAdmin)
	next := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/keys", nil)
	req = req.WithContext(context.WithValue(req.Context(), keyCtxKey, Key{Role: RoleViewer}))
	w := httptest.NewRecorder()
	next.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestBootstrapInitDenied(t *testing.T) {
	h := &Handler{svc: &mockAuthService{
		bootstrapFn: func(ctx context.Context, token string) (*IssuedKey, error) {
			return nil, ErrBootstrapDenied
		},
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bootstrap/init", strings.NewReader(`{"token":"wrong"}`))
	w := httptest.NewRecorder()

	h.BootstrapInit(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}
