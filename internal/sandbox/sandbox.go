package sandbox

import (
	"context"
	"io"
)

// InputFunc supplies a value for one input request from running code.
// It may block (e.g. waiting for a viewer) and should return "" when no
// value arrives in time.
type InputFunc func(prompt string) string

// Interpreter executes untrusted source, writing its textual output to
// stdout as it is produced and routing input requests through input.
// Implementations must honor ctx cancellation promptly.
type Interpreter interface {
	Run(ctx context.Context, source string, stdout io.Writer, input InputFunc) error
}
