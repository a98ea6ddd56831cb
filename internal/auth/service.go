package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrBootstrapDenied = errors.New("bootstrap denied")
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"

	keyPrefix = "fk"
)

type Service struct {
	db             *sql.DB
	bcryptCost     int
	bootstrapToken string
}

type ServiceConfig struct {
	BcryptCost     int
	BootstrapToken string
}

// Key is an authenticated API key. The secret is never stored; only its
// bcrypt hash is.
type Key struct {
	ID        int64     `json:"id"`
	KeyID     string    `json:"key_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// IssuedKey carries the one-time plaintext token alongside the stored record.
// The token is shown exactly once at creation.
type IssuedKey struct {
	Key   Key    `json:"key"`
	Token string `json:"token"`
}

type CreateKeyInput struct {
	Name string
	Role string
}

func NewService(db *sql.DB, cfg ServiceConfig) *Service {
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		db:             db,
		bcryptCost:     cfg.BcryptCost,
		bootstrapToken: cfg.BootstrapToken,
	}
}

func normalizeRole(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	switch v {
	case RoleAdmin, RoleEditor, RoleViewer:
		return v
	default:
		return ""
	}
}

// Bootstrap issues the first admin key. It is gated by the BOOTSTRAP_TOKEN
// env value and refuses to run once any admin key exists.
func (s *Service) Bootstrap(ctx context.Context, token string) (*IssuedKey, error) {
	if s.bootstrapToken == "" || !secureEqual(token, s.bootstrapToken) {
		return nil, ErrBootstrapDenied
	}

	var adminExists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM api_keys WHERE role = $1 AND is_active = TRUE)
	`, RoleAdmin).Scan(&adminExists); err != nil {
		return nil, fmt.Errorf("check admin key: %w", err)
	}
	if adminExists {
		return nil, ErrBootstrapDenied
	}

	return s.CreateKey(ctx, CreateKeyInput{Name: "bootstrap-admin", Role: RoleAdmin})
}

func (s *Service) CreateKey(ctx context.Context, in CreateKeyInput) (*IssuedKey, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Role = normalizeRole(in.Role)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Role == "" {
		return nil, fmt.Errorf("%w: role must be one of %s, %s, %s", ErrInvalidInput, RoleAdmin, RoleEditor, RoleViewer)
	}

	keyID, err := randomHex(8)
	if err != nil {
		return nil, fmt.Errorf("generate key id: %w", err)
	}
	secret, err := randomToken(24)
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	secretHash, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash secret: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO api_keys (key_id, secret_hash, name, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, now())
		RETURNING id, key_id, name, role, is_active, created_at
	`, keyID, string(secretHash), in.Name, in.Role)

	var out Key
	if err := row.Scan(&out.ID, &out.KeyID, &out.Name, &out.Role, &out.IsActive, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert api key: %w", err)
	}

	return &IssuedKey{
		Key:   out,
		Token: strings.Join([]string{keyPrefix, keyID, secret}, "_"),
	}, nil
}

// Authenticate verifies a presented token of the form fk_<keyid>_<secret>.
// The public key id locates the row; the secret is checked against the
// stored bcrypt hash.
func (s *Service) Authenticate(ctx context.Context, token string) (*Key, error) {
	parts := strings.SplitN(strings.TrimSpace(token), "_", 3)
	if len(parts) != 3 || parts[0] != keyPrefix || parts[1] == "" || parts[2] == "" {
		return nil, ErrUnauthorized
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, key_id, secret_hash, name, role, is_active, created_at
		FROM api_keys
		WHERE key_id = $1 AND is_active = TRUE
	`, parts[1])

	var out Key
	var secretHash string
	if err := row.Scan(&out.ID, &out.KeyID, &secretHash, &out.Name, &out.Role, &out.IsActive, &out.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load api key: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(secretHash), []byte(parts[2])); err != nil {
		return nil, ErrUnauthorized
	}
	return &out, nil
}

func (s *Service) RevokeKey(ctx context.Context, keyID string) error {
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return ErrInvalidInput
	}
	var revoked int64
	if err := s.db.QueryRowContext(ctx, `
		UPDATE api_keys
		SET is_active = FALSE
		WHERE key_id = $1 AND is_active = TRUE
		RETURNING id
	`, keyID).Scan(&revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUnauthorized
		}
		return fmt.Errorf("revoke api key: %w", err)
	}
	return nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func secureEqual(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return ha == hb
}
