package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mwhitley/crucible/internal/channel"
	"github.com/mwhitley/crucible/internal/runner"
	"github.com/mwhitley/crucible/internal/sandbox"
	"github.com/mwhitley/crucible/internal/storage"
	"github.com/mwhitley/crucible/internal/storage/sqlite"
)

func newTestDispatcher(t *testing.T, workers, queueSize int) (*Dispatcher, *sqlite.SQLiteStore) {
	t.Helper()

	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	ch := channel.NewMemoryStore(0, 0)
	t.Cleanup(func() { ch.Close() })

	r := runner.New(store, ch, sandbox.NewLua(), runner.Config{})
	d := New(r, workers, queueSize)
	t.Cleanup(d.Stop)
	return d, store
}

func createPending(t *testing.T, store storage.Store, code string) string {
	t.Helper()
	e := &storage.Execution{
		ID:        uuid.New().String(),
		Code:      code,
		Status:    storage.StatusPending,
		SessionID: uuid.New().String(),
	}
	if err := store.CreateExecution(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	return e.ID
}

func waitForStatus(t *testing.T, store storage.Store, id string, want storage.Status) *storage.Execution {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		e, err := store.GetExecution(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if e.Status == want {
			return e
		}
		if time.Now().After(deadline) {
			t.Fatalf("execution %s stuck at %q", id, e.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDispatcher_RunsEnqueuedWork(t *testing.T) {
	d, store := newTestDispatcher(t, 2, 8)
	d.Start()

	id := createPending(t, store, `print("dispatched")`)
	if err := d.Enqueue(id); err != nil {
		t.Fatal(err)
	}

	e := waitForStatus(t, store, id, storage.StatusCompleted)
	if e.Output != "dispatched\n" {
		t.Errorf("got %q", e.Output)
	}
}

func TestDispatcher_ProcessesManyJobs(t *testing.T) {
	d, store := newTestDispatcher(t, 4, 16)
	d.Start()

	var ids []string
	for i := 0; i < 8; i++ {
		id := createPending(t, store, `print("ok")`)
		if err := d.Enqueue(id); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	for _, id := range ids {
		waitForStatus(t, store, id, storage.StatusCompleted)
	}
}

func TestDispatcher_QueueFull(t *testing.T) {
	d, store := newTestDispatcher(t, 1, 1)
	// Not started: nothing drains the queue.

	first := createPending(t, store, `print(1)`)
	if err := d.Enqueue(first); err != nil {
		t.Fatal(err)
	}

	second := createPending(t, store, `print(2)`)
	if err := d.Enqueue(second); err == nil {
		t.Error("expected queue-full error")
	}
}

func TestDispatcher_EnqueueAfterStop(t *testing.T) {
	d, _ := newTestDispatcher(t, 1, 4)
	d.Start()
	d.Stop()

	if err := d.Enqueue("anything"); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}
