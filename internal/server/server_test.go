package server

import (
	"net/http/httptest"
	"testing"

	"github.com/mwhitley/crucible/internal/channel"
	"github.com/mwhitley/crucible/internal/config"
	"github.com/mwhitley/crucible/internal/dispatch"
	"github.com/mwhitley/crucible/internal/runner"
	"github.com/mwhitley/crucible/internal/sandbox"
	"github.com/mwhitley/crucible/internal/storage/sqlite"
)

// newTestServer wires a full in-process stack: in-memory channel,
// in-memory sqlite, real runner workers. Rate limits are generous so
// only the dedicated test exercises them.
func newTestServer(t *testing.T) (*Server, *httptest.Server, *channel.MemoryStore, *sqlite.SQLiteStore) {
	t.Helper()

	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	ch := channel.NewMemoryStore(0, 0)
	t.Cleanup(func() { ch.Close() })

	r := runner.New(store, ch, sandbox.NewLua(), runner.Config{})
	d := dispatch.New(r, 2, 16)
	d.Start()
	t.Cleanup(d.Stop)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:          0,
			RatePerMinute: 6000,
			RateBurst:     100,
		},
	}

	s := New(cfg, store, ch, d, sandbox.DefaultPolicy())
	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)

	return s, ts, ch, store
}
