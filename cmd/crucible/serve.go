package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwhitley/crucible/internal/channel"
	"github.com/mwhitley/crucible/internal/config"
	"github.com/mwhitley/crucible/internal/dispatch"
	"github.com/mwhitley/crucible/internal/runner"
	"github.com/mwhitley/crucible/internal/sandbox"
	"github.com/mwhitley/crucible/internal/server"
	"github.com/mwhitley/crucible/internal/storage/sqlite"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Crucible execution server",
	Long: `Start the HTTP server with the submission API and the websocket
streaming gateway.

Examples:
  crucible serve
  crucible serve --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Open the record store
	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	// Session channel store
	ch, err := openChannel(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("opening channel store: %w", err)
	}
	defer ch.Close()

	// Execution policy
	policy := sandbox.DefaultPolicy()
	policyLoaded := false
	if cfg.Sandbox.PolicyPath != "" {
		p, err := sandbox.LoadPolicy(cfg.Sandbox.PolicyPath)
		if err != nil {
			return fmt.Errorf("loading policy: %w", err)
		}
		policy = *p
		policyLoaded = true
		log.Printf("Policy: %s", policy.Name)
	}

	// Runner workers
	r := runner.New(store, ch, sandbox.NewLua(), runner.Config{
		Limits:       runnerLimits(cfg, policy, policyLoaded),
		PollInterval: time.Duration(cfg.Runner.InputPollSeconds) * time.Second,
		MaxAttempts:  cfg.Runner.InputMaxAttempts,
	})

	d := dispatch.New(r, cfg.Runner.Workers, cfg.Runner.QueueSize)
	d.Start()
	defer d.Stop()

	// Determine port
	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	srv := server.New(cfg, store, ch, d, policy)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		srv.Shutdown(context.Background())
	}()

	return srv.Start(port)
}

// runnerLimits picks the enforced resource limits: a policy loaded
// from file governs them, otherwise the config values apply.
func runnerLimits(cfg *config.Config, policy sandbox.Policy, fromFile bool) sandbox.Limits {
	if fromFile {
		return policy.Limits()
	}
	return sandbox.Limits{
		MaxMemoryMiB: cfg.Runner.MaxMemoryMiB,
		MaxWallClock: time.Duration(cfg.Runner.MaxRunSeconds) * time.Second,
	}
}

func openChannel(ctx context.Context, cfg *config.Config) (channel.Store, error) {
	switch cfg.Channel.Backend {
	case "", "memory":
		return channel.NewMemoryStore(cfg.Channel.OutputTTL, cfg.Channel.RelayTTL), nil
	case "redis":
		return channel.NewRedisStore(ctx, cfg.Channel.RedisURL, cfg.Channel.OutputTTL, cfg.Channel.RelayTTL)
	default:
		return nil, fmt.Errorf("unknown channel backend %q", cfg.Channel.Backend)
	}
}
