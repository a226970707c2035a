// Package channel holds the per-session stores that connect a running
// execution to its viewers: the append-only output buffer, the prompt
// slot, and the input slot. Entries are TTL-bounded; an expired or
// missing entry reads as empty, never as an error.
package channel

import (
	"context"
	"time"
)

// Store is the session-keyed state shared between the runner and the
// streaming gateway. One logical writer (the runner) appends output per
// session; any number of readers may poll it concurrently.
type Store interface {
	// AppendOutput appends text to the session's output buffer and
	// renews its TTL. Appends are atomic with respect to readers.
	AppendOutput(ctx context.Context, sessionID, text string) error

	// ReadOutput returns the full accumulated output for the session,
	// or "" if none has been written or the entry expired.
	ReadOutput(ctx context.Context, sessionID string) (string, error)

	// ClearOutput discards the session's output buffer.
	ClearOutput(ctx context.Context, sessionID string) error

	// SetPrompt records the most recent input request for the session.
	SetPrompt(ctx context.Context, sessionID, prompt string) error

	// GetPrompt returns the current prompt, or "" if absent. It never
	// blocks and is not consumed by reading.
	GetPrompt(ctx context.Context, sessionID string) (string, error)

	// ClearPrompt removes any stale prompt, e.g. when a viewer rebinds.
	ClearPrompt(ctx context.Context, sessionID string) error

	// SetInput stores a viewer-supplied value. The slot holds at most
	// one value; a later write replaces an unconsumed earlier one.
	SetInput(ctx context.Context, sessionID, input string) error

	// TakeInput consumes the pending input value if one exists. The
	// read is destructive: a second call returns ok=false.
	TakeInput(ctx context.Context, sessionID string) (input string, ok bool, err error)

	// Close releases resources.
	Close() error
}

const (
	// DefaultOutputTTL bounds how long accumulated output survives
	// without a new append.
	DefaultOutputTTL = time.Hour

	// DefaultRelayTTL bounds prompt and input slot lifetime.
	DefaultRelayTTL = 5 * time.Minute
)
