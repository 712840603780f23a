package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultOpenTimeout bounds format negotiation when no timeout is given.
const DefaultOpenTimeout = 10 * time.Second

// ErrOpenTimeout is returned when a source does not finish opening in time.
var ErrOpenTimeout = errors.New("source: open timed out")

type openResult struct {
	res Resolution
	err error
}

// OpenWithTimeout runs src.Open on its own goroutine and waits at most
// timeout for it. On ErrOpenTimeout the source may still finish opening in
// the background; callers should Close it.
func OpenWithTimeout(ctx context.Context, src Source, timeout time.Duration) (Resolution, error) {
	if src == nil {
		return Resolution{}, errors.New("source: nil source")
	}
	if timeout <= 0 {
		timeout = DefaultOpenTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan openResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- openResult{err: fmt.Errorf("source: open panic: %v", r)}
			}
		}()
		res, err := src.Open(ctx)
		ch <- openResult{res: res, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return Resolution{}, ErrOpenTimeout
			}
			return Resolution{}, fmt.Errorf("source: open: %w", r.err)
		}
		return r.res, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Resolution{}, ErrOpenTimeout
		}
		return Resolution{}, ctx.Err()
	}
}

// OpenAll opens sources strictly in order: each Open completes before the
// next one begins. Multi-surface devices require their surfaces to be
// registered in a fixed order, so concurrent opening is not allowed. On
// failure every source opened so far is closed in reverse order.
func OpenAll(ctx context.Context, srcs []Source, timeout time.Duration) ([]Resolution, error) {
	out := make([]Resolution, 0, len(srcs))
	for i, s := range srcs {
		res, err := OpenWithTimeout(ctx, s, timeout)
		if err != nil {
			// The failed source may still be mid-open.
			_ = s.Close()
			for j := i - 1; j >= 0; j-- {
				_ = srcs[j].Close()
			}
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		out = append(out, res)
	}
	return out, nil
}
