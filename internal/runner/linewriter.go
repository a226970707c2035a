package runner

import (
	"bytes"
	"context"

	"github.com/mwhitley/crucible/internal/channel"
)

// lineWriter buffers interpreter output and appends each completed
// line (including its newline) to the session's output channel. Any
// unterminated trailing text is pushed by Flush at run end.
type lineWriter struct {
	ctx       context.Context
	store     channel.Store
	sessionID string
	buf       []byte
}

func newLineWriter(ctx context.Context, store channel.Store, sessionID string) *lineWriter {
	return &lineWriter{ctx: ctx, store: store, sessionID: sessionID}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf[:idx+1])
		w.buf = w.buf[idx+1:]
		if err := w.store.AppendOutput(w.ctx, w.sessionID, line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Flush appends any buffered partial line.
func (w *lineWriter) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	rest := string(w.buf)
	w.buf = w.buf[:0]
	return w.store.AppendOutput(w.ctx, w.sessionID, rest)
}
