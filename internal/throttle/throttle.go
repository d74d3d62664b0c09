// Package throttle limits the throughput of data-connection writes with a
// rate.Limiter.
package throttle

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// chunkSize bounds a single write so that waits stay short.
const chunkSize = 32 * 1024

// NewLimiter returns a limiter admitting bytesPerSecond, or nil when the
// limit is not positive. The burst is one chunk, or the whole rate when that
// is smaller. A limiter may be shared by several writers to impose an
// aggregate limit.
func NewLimiter(bytesPerSecond int64) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := chunkSize
	if bytesPerSecond < int64(burst) {
		burst = int(bytesPerSecond)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
}

type writer struct {
	ctx   context.Context
	w     io.Writer
	lim   *rate.Limiter
	chunk int
}

// NewWriter wraps w so that every write first reserves its size from lim.
// A nil limiter returns w unchanged. Waits end early when ctx is done.
func NewWriter(ctx context.Context, w io.Writer, lim *rate.Limiter) io.Writer {
	if lim == nil {
		return w
	}
	chunk := chunkSize
	if b := lim.Burst(); lim.Limit() != rate.Inf && b < chunk {
		chunk = max(b, 1)
	}
	return &writer{ctx: ctx, w: w, lim: lim, chunk: chunk}
}

func (t *writer) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(len(p), t.chunk)
		if err := t.lim.WaitN(t.ctx, n); err != nil {
			return written, err
		}

		m, err := t.w.Write(p[:n])
		written += m
		if err != nil {
			return written, err
		}
		if m < n {
			return written, io.ErrShortWrite
		}
		p = p[n:]
	}
	return written, nil
}
