// Package runner executes one submitted record under resource limits,
// streaming its output into the session channel and relaying input
// requests, then finalizes the record.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mwhitley/crucible/internal/channel"
	"github.com/mwhitley/crucible/internal/sandbox"
	"github.com/mwhitley/crucible/internal/storage"
)

// User-facing messages appended to output when a limit trips. Limit
// violations are results of the submitted code, not system failures,
// so the record still completes.
const (
	timeoutMessage = "Error: Code execution timed out. Your code took too long to run."
	memoryMessage  = "Error: Memory limit exceeded. Your code used too much memory."
)

// Config tunes a Runner.
type Config struct {
	Limits sandbox.Limits

	// PollInterval and MaxAttempts bound the input wait: the runner
	// polls the input slot every PollInterval up to MaxAttempts times
	// before giving up and returning "".
	PollInterval time.Duration
	MaxAttempts  int
}

// Runner executes records dispatched to it. Safe for use from multiple
// workers; per-run state lives on the stack.
type Runner struct {
	store        storage.Store
	channel      channel.Store
	interp       sandbox.Interpreter
	limits       sandbox.Limits
	pollInterval time.Duration
	maxAttempts  int
}

// New creates a Runner. Zero Config fields fall back to defaults
// (stock limits, 1 s poll, 300 attempts).
func New(store storage.Store, ch channel.Store, interp sandbox.Interpreter, cfg Config) *Runner {
	limits := cfg.Limits
	if limits.MaxMemoryMiB == 0 && limits.MaxWallClock == 0 {
		limits = sandbox.DefaultLimits()
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 300
	}
	return &Runner{
		store:        store,
		channel:      ch,
		interp:       interp,
		limits:       limits,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
	}
}

// Execute runs the record with the given ID to completion. Faults are
// absorbed into the record; Execute never panics outward.
func (r *Runner) Execute(ctx context.Context, executionID string) {
	e, err := r.store.GetExecution(ctx, executionID)
	if err != nil {
		log.Printf("runner: loading execution %s: %v", executionID, err)
		return
	}

	if err := r.run(ctx, e); err != nil {
		// Fault outside the guarded execution itself: the record fails
		// with a diagnostic rather than a user-facing message.
		trace := fmt.Sprintf("runtime fault: %+v", err)
		if serr := r.store.SetResult(ctx, e.ID, storage.StatusFailed, trace); serr != nil {
			log.Printf("runner: recording fault for %s: %v", e.ID, serr)
		}
	}
}

func (r *Runner) run(ctx context.Context, e *storage.Execution) error {
	session := e.SessionID

	// Fresh buffer for this run.
	if err := r.channel.ClearOutput(ctx, session); err != nil {
		return fmt.Errorf("clearing output channel: %w", err)
	}

	guardCtx, release := r.limits.Guard(ctx)
	w := newLineWriter(ctx, r.channel, session)

	runErr := r.interp.Run(guardCtx, e.Code, w, r.inputFunc(guardCtx, session))
	release()

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}

	// The wall clock covers the whole run, input wait included, so a
	// cancelled interpreter is reported by cause, not by its own error.
	switch violation := sandbox.Violation(guardCtx); {
	case errors.Is(violation, sandbox.ErrExecutionTimeout):
		r.appendLine(ctx, session, timeoutMessage)
	case errors.Is(violation, sandbox.ErrMemoryLimit):
		r.appendLine(ctx, session, memoryMessage)
	case runErr != nil:
		// User-code error: a completed result with the message inline.
		r.appendLine(ctx, session, fmt.Sprintf("Error: %v", runErr))
	}

	output, err := r.channel.ReadOutput(ctx, session)
	if err != nil {
		return fmt.Errorf("reading final output: %w", err)
	}
	if err := r.store.SetResult(ctx, e.ID, storage.StatusCompleted, output); err != nil {
		return fmt.Errorf("finalizing record: %w", err)
	}
	return nil
}

func (r *Runner) appendLine(ctx context.Context, sessionID, line string) {
	if err := r.channel.AppendOutput(ctx, sessionID, line+"\n"); err != nil {
		log.Printf("runner: appending to session %s: %v", sessionID, err)
	}
}

// inputFunc builds the relay side of input(): publish the prompt, then
// poll the input slot until a viewer supplies a value, the attempt
// budget runs out, or the guard cancels the run.
func (r *Runner) inputFunc(ctx context.Context, sessionID string) sandbox.InputFunc {
	return func(prompt string) string {
		if err := r.channel.SetPrompt(ctx, sessionID, prompt); err != nil {
			log.Printf("runner: publishing prompt for %s: %v", sessionID, err)
		}

		for attempt := 0; attempt < r.maxAttempts; attempt++ {
			val, ok, err := r.channel.TakeInput(ctx, sessionID)
			if err != nil {
				log.Printf("runner: consuming input for %s: %v", sessionID, err)
			}
			if ok {
				return val
			}

			select {
			case <-ctx.Done():
				return ""
			case <-time.After(r.pollInterval):
			}
		}
		return ""
	}
}
