package form

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"testing"

	"formhub/internal/option"

	"github.com/jackc/pgx/v5/pgconn"
)

// stubExecer simulates the transaction surface insertOptions writes through.
// Inserts whose option_key is listed in conflicts fail with the Postgres
// unique-violation code.
type stubExecer struct {
	conflicts map[string]bool
	queries   []string
	inserted  []string
}

func (s *stubExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.queries = append(s.queries, strings.TrimSpace(query))
	if !strings.Contains(query, "INSERT INTO question_options") {
		return nil, nil
	}
	key, _ := args[1].(string)
	if s.conflicts[key] {
		return nil, &pgconn.PgError{Code: "23505"}
	}
	s.inserted = append(s.inserted, key)
	return nil, nil
}

func TestInsertOptionsReportsEveryCollidingKey(t *testing.T) {
	tx := &stubExecer{conflicts: map[string]bool{
		"red_1a2b3c4d":   true,
		"green_9c0d1e2f": true,
	}}
	opts := []option.Option{
		{Key: "red_1a2b3c4d", Label: "Red", Order: 0},
		{Key: "blue_5e6f7a8b", Label: "Blue", Order: 1},
		{Key: "green_9c0d1e2f", Label: "Green", Order: 2},
	}

	err := insertOptions(context.Background(), tx, 7, opts)

	var cerr *option.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	wantKeys := []option.Key{"red_1a2b3c4d", "green_9c0d1e2f"}
	if !reflect.DeepEqual(cerr.Keys, wantKeys) {
		t.Fatalf("ConflictError.Keys = %v, want %v", cerr.Keys, wantKeys)
	}

	// The non-colliding key must still have been attempted and written.
	if !reflect.DeepEqual(tx.inserted, []string{"blue_5e6f7a8b"}) {
		t.Fatalf("inserted = %v, want only the non-colliding key", tx.inserted)
	}

	// Each failed insert must be rolled back to its savepoint so the
	// transaction stays usable for the rest of the batch.
	rollbacks := 0
	for _, q := range tx.queries {
		if strings.HasPrefix(q, "ROLLBACK TO SAVEPOINT") {
			rollbacks++
		}
	}
	if rollbacks != 2 {
		t.Fatalf("expected 2 savepoint rollbacks, got %d (queries: %v)", rollbacks, tx.queries)
	}
}

func TestInsertOptionsNoConflicts(t *testing.T) {
	tx := &stubExecer{}
	opts := []option.Option{
		{Key: "red_1a2b3c4d", Label: "Red", Order: 0},
		{Key: "blue_5e6f7a8b", Label: "Blue", Order: 1},
	}

	if err := insertOptions(context.Background(), tx, 7, opts); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(tx.inserted) != 2 {
		t.Fatalf("expected both keys inserted, got %v", tx.inserted)
	}
}
