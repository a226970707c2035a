package channel

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_AppendAndRead(t *testing.T) {
	s := NewMemoryStore(0, 0)
	defer s.Close()
	ctx := context.Background()

	out, err := s.ReadOutput(ctx, "sess")
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("expected empty output before any append, got %q", out)
	}

	if err := s.AppendOutput(ctx, "sess", "line one\n"); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendOutput(ctx, "sess", "line two\n"); err != nil {
		t.Fatal(err)
	}

	out, err = s.ReadOutput(ctx, "sess")
	if err != nil {
		t.Fatal(err)
	}
	if out != "line one\nline two\n" {
		t.Errorf("appends out of order: %q", out)
	}
}

func TestMemoryStore_ClearOutput(t *testing.T) {
	s := NewMemoryStore(0, 0)
	defer s.Close()
	ctx := context.Background()

	s.AppendOutput(ctx, "sess", "stale")
	if err := s.ClearOutput(ctx, "sess"); err != nil {
		t.Fatal(err)
	}

	out, _ := s.ReadOutput(ctx, "sess")
	if out != "" {
		t.Errorf("expected cleared output, got %q", out)
	}
}

func TestMemoryStore_OutputExpiry(t *testing.T) {
	s := NewMemoryStore(20*time.Millisecond, 20*time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	s.AppendOutput(ctx, "sess", "soon gone")
	time.Sleep(40 * time.Millisecond)

	out, err := s.ReadOutput(ctx, "sess")
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("expected expired entry to read as empty, got %q", out)
	}
}

func TestMemoryStore_PromptIsIdempotent(t *testing.T) {
	s := NewMemoryStore(0, 0)
	defer s.Close()
	ctx := context.Background()

	p, _ := s.GetPrompt(ctx, "sess")
	if p != "" {
		t.Errorf("expected no prompt, got %q", p)
	}

	s.SetPrompt(ctx, "sess", "name? ")
	for i := 0; i < 3; i++ {
		p, err := s.GetPrompt(ctx, "sess")
		if err != nil {
			t.Fatal(err)
		}
		if p != "name? " {
			t.Errorf("read %d: got %q", i, p)
		}
	}

	if err := s.ClearPrompt(ctx, "sess"); err != nil {
		t.Fatal(err)
	}
	p, _ = s.GetPrompt(ctx, "sess")
	if p != "" {
		t.Errorf("expected cleared prompt, got %q", p)
	}
}

func TestMemoryStore_TakeInputIsDestructive(t *testing.T) {
	s := NewMemoryStore(0, 0)
	defer s.Close()
	ctx := context.Background()

	if _, ok, _ := s.TakeInput(ctx, "sess"); ok {
		t.Fatal("expected no pending input")
	}

	s.SetInput(ctx, "sess", "Ada")
	val, ok, err := s.TakeInput(ctx, "sess")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || val != "Ada" {
		t.Fatalf("expected Ada, got %q ok=%v", val, ok)
	}

	if _, ok, _ := s.TakeInput(ctx, "sess"); ok {
		t.Error("second consume should find nothing")
	}
}

func TestMemoryStore_InputLastWriteWins(t *testing.T) {
	s := NewMemoryStore(0, 0)
	defer s.Close()
	ctx := context.Background()

	s.SetInput(ctx, "sess", "first")
	s.SetInput(ctx, "sess", "second")

	val, ok, _ := s.TakeInput(ctx, "sess")
	if !ok || val != "second" {
		t.Errorf("expected last write to win, got %q ok=%v", val, ok)
	}
}

func TestMemoryStore_SessionsAreIndependent(t *testing.T) {
	s := NewMemoryStore(0, 0)
	defer s.Close()
	ctx := context.Background()

	s.AppendOutput(ctx, "a", "for a")
	s.AppendOutput(ctx, "b", "for b")
	s.ClearOutput(ctx, "a")

	out, _ := s.ReadOutput(ctx, "b")
	if out != "for b" {
		t.Errorf("clearing one session touched another: %q", out)
	}
}
