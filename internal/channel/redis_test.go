package channel

import (
	"context"
	"os"
	"testing"
)

// These tests need a live Redis; set REDIS_URL to run them.

func newTestRedis(t *testing.T) *RedisStore {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	s, err := NewRedisStore(context.Background(), url, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisStore_AppendAndRead(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	s.ClearOutput(ctx, "redis-test")
	if err := s.AppendOutput(ctx, "redis-test", "one\n"); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendOutput(ctx, "redis-test", "two\n"); err != nil {
		t.Fatal(err)
	}

	out, err := s.ReadOutput(ctx, "redis-test")
	if err != nil {
		t.Fatal(err)
	}
	if out != "one\ntwo\n" {
		t.Errorf("got %q", out)
	}
	s.ClearOutput(ctx, "redis-test")
}

func TestRedisStore_TakeInputIsDestructive(t *testing.T) {
	s := newTestRedis(t)
	ctx := context.Background()

	s.SetInput(ctx, "redis-test", "value")
	val, ok, err := s.TakeInput(ctx, "redis-test")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || val != "value" {
		t.Fatalf("got %q ok=%v", val, ok)
	}
	if _, ok, _ := s.TakeInput(ctx, "redis-test"); ok {
		t.Error("second consume should find nothing")
	}
}
