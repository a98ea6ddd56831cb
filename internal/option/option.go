// Package option implements the stable identity core for selectable form
// answers: deterministic key generation, normalization of raw option input,
// resolution of submitted values to canonical keys, and the shared types the
// persistence and reporting layers build on. Everything here is a pure
// transform over explicit snapshots; persistence belongs to the callers.
package option

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Key is the immutable identifier of a selectable choice. Once generated it
// never changes, no matter how often the display label is renamed.
type Key string

// Label is the mutable display text of a choice. Never store a Label where a
// Key is required; submissions persist keys only.
type Label string

// Option is one selectable choice owned by exactly one question.
type Option struct {
	Key      Key            `json:"key"`
	Label    Label          `json:"label"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Order    int            `json:"order"`
}

// HistoryEntry records one label transition for one option key. Rows are
// append-only and are the only source of past labels.
type HistoryEntry struct {
	QuestionID int64     `json:"question_id"`
	Key        Key       `json:"option_key"`
	OldLabel   Label     `json:"old_label"`
	NewLabel   Label     `json:"new_label"`
	ChangedBy  *string   `json:"changed_by,omitempty"`
	Reason     *string   `json:"reason,omitempty"`
	ChangedAt  time.Time `json:"changed_at"`
}

// ErrOptionNotFound reports a label mutation against a (question, key) pair
// that does not exist.
var ErrOptionNotFound = errors.New("option not found")

// ValidationError aggregates every problem found in one validation pass.
// Callers never see only the first issue.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// ConflictError reports every key that collided during batch option creation.
type ConflictError struct {
	Keys []Key
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		parts = append(parts, string(k))
	}
	return "duplicate option keys: " + strings.Join(parts, ", ")
}

// FindByKey returns the option carrying key, if any.
func FindByKey(opts []Option, key Key) (Option, bool) {
	for _, o := range opts {
		if o.Key == key {
			return o, true
		}
	}
	return Option{}, false
}

// LabelFor maps a key to its current display label, falling back to the raw
// key when the option no longer exists in the current set.
func LabelFor(opts []Option, key Key) Label {
	if o, ok := FindByKey(opts, key); ok {
		return o.Label
	}
	return Label(key)
}
