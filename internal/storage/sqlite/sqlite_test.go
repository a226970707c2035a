package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mwhitley/crucible/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestExecution(code string) *storage.Execution {
	return &storage.Execution{
		ID:        uuid.New().String(),
		Code:      code,
		Status:    storage.StatusPending,
		SessionID: uuid.New().String(),
	}
}

func TestCreateAndGetExecution(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := newTestExecution(`print("hi")`)
	if err := store.CreateExecution(ctx, e); err != nil {
		t.Fatal(err)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not set on create")
	}

	got, err := store.GetExecution(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Code != e.Code {
		t.Errorf("code round trip: got %q", got.Code)
	}
	if got.Status != storage.StatusPending {
		t.Errorf("expected pending, got %q", got.Status)
	}
	if got.SessionID != e.SessionID {
		t.Errorf("session id round trip: got %q", got.SessionID)
	}
}

func TestGetExecution_PrefixMatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := newTestExecution("print(1)")
	if err := store.CreateExecution(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetExecution(ctx, e.ID[:8])
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != e.ID {
		t.Errorf("prefix lookup returned %s", got.ID)
	}

	if _, err := store.GetExecution(ctx, "no-such-id"); err == nil {
		t.Error("expected not-found error")
	}
}

func TestSetResult(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := newTestExecution(`print("hi")`)
	if err := store.CreateExecution(ctx, e); err != nil {
		t.Fatal(err)
	}

	if err := store.SetResult(ctx, e.ID, storage.StatusCompleted, "hi\n"); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetExecution(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != storage.StatusCompleted {
		t.Errorf("expected completed, got %q", got.Status)
	}
	if got.Output != "hi\n" {
		t.Errorf("expected output, got %q", got.Output)
	}

	if err := store.SetResult(ctx, "missing", storage.StatusFailed, ""); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestListExecutions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.CreateExecution(ctx, newTestExecution("print(1)")); err != nil {
			t.Fatal(err)
		}
	}
	done := newTestExecution("print(2)")
	if err := store.CreateExecution(ctx, done); err != nil {
		t.Fatal(err)
	}
	if err := store.SetResult(ctx, done.ID, storage.StatusCompleted, "2\n"); err != nil {
		t.Fatal(err)
	}

	all, err := store.ListExecutions(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 records, got %d", len(all))
	}

	completed, err := store.ListExecutions(ctx, storage.ListOptions{Status: storage.StatusCompleted})
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 1 || completed[0].ID != done.ID {
		t.Errorf("status filter broken: %+v", completed)
	}

	limited, err := store.ListExecutions(ctx, storage.ListOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limit ignored, got %d records", len(limited))
	}
}

func TestDeleteExecution(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := newTestExecution("print(1)")
	if err := store.CreateExecution(ctx, e); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteExecution(ctx, e.ID[:8]); err != nil {
		t.Fatal(err)
	}

	_, err := store.GetExecution(ctx, e.ID)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found, got %v", err)
	}
}
