package sandbox

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"
)

// Sentinel failures raised by the resource guard. The runner converts
// both into user-visible output rather than a failed record.
var (
	ErrExecutionTimeout = errors.New("execution wall-clock limit exceeded")
	ErrMemoryLimit      = errors.New("execution memory limit exceeded")
)

// Limits bounds a single execution. These are containment measures for
// an in-process interpreter, not a security boundary: the memory check
// samples the Go heap, which is a process-wide approximation.
type Limits struct {
	MaxMemoryMiB int
	MaxWallClock time.Duration
}

// DefaultLimits returns the stock 100 MiB / 5 s envelope.
func DefaultLimits() Limits {
	return Limits{MaxMemoryMiB: 100, MaxWallClock: 5 * time.Second}
}

const memSampleInterval = 50 * time.Millisecond

// Guard returns a context that is cancelled with a distinguishable
// cause (ErrExecutionTimeout or ErrMemoryLimit) when either limit
// trips. Callers must invoke release when the guarded work finishes.
func (l Limits) Guard(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)

	done := make(chan struct{})
	var once sync.Once
	var timer *time.Timer

	release := func() {
		once.Do(func() {
			close(done)
			if timer != nil {
				timer.Stop()
			}
			cancel(nil)
		})
	}

	if l.MaxWallClock > 0 {
		timer = time.AfterFunc(l.MaxWallClock, func() {
			cancel(ErrExecutionTimeout)
		})
	}

	if l.MaxMemoryMiB > 0 {
		maxBytes := uint64(l.MaxMemoryMiB) << 20
		baseline := heapInUse()
		go func() {
			ticker := time.NewTicker(memSampleInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ctx.Done():
					return
				case <-ticker.C:
					if used := heapInUse(); used > baseline && used-baseline > maxBytes {
						cancel(ErrMemoryLimit)
						return
					}
				}
			}
		}()
	}

	return ctx, release
}

// Violation reports which limit, if any, cancelled the guarded context.
func Violation(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrExecutionTimeout) || errors.Is(cause, ErrMemoryLimit) {
		return cause
	}
	return nil
}

func heapInUse() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}
