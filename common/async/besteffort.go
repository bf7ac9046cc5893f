// Package async holds helpers for side effects whose failure must never reach the caller.
package async

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds a best-effort operation when the caller does not pass one.
const DefaultTimeout = 10 * time.Second

// BestEffort runs fn in its own goroutine, detached from the caller's cancellation but
// keeping its values (log fields, trace). The outcome is logged and never propagated.
// The returned channel is closed once fn has finished, which lets tests wait for it.
func BestEffort(ctx context.Context, op string, timeout time.Duration, fn func(ctx context.Context) error) <-chan struct{} {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	done := make(chan struct{})
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := runRecovered(ctx, fn)
		if err != nil {
			slog.WarnContext(ctx, "best-effort operation failed", "operation", op, "error", err)
			return
		}
		slog.DebugContext(ctx, "best-effort operation completed", "operation", op)
	}()

	return done
}

func runRecovered(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
