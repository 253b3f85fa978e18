// Package ratelimit provides a token bucket limiter for throttling FTP data
// channel throughput to a configured bytes-per-second rate.
package ratelimit

import (
	"io"
	"sync"
	"time"
)

// Limiter is a token bucket with a burst capacity of one second's worth of
// data. A nil *Limiter is valid and never blocks.
type Limiter struct {
	rate       float64 // bytes per second
	burst      float64 // bucket capacity
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// New creates a limiter capped at bytesPerSecond. Non-positive rates return
// nil, which disables throttling everywhere a limiter is accepted.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	rate := float64(bytesPerSecond)
	return &Limiter{
		rate:       rate,
		burst:      rate,
		tokens:     rate,
		lastUpdate: time.Now(),
	}
}

// maxWait caps a single sleep so large requests degrade into repeated short
// waits instead of one unbounded block.
const maxWait = time.Second

// take consumes n tokens, sleeping for the shortfall when the bucket is low.
func (l *Limiter) take(n int) {
	if l == nil || n <= 0 {
		return
	}

	need := float64(n)

	l.mu.Lock()
	l.refillLocked()
	if l.tokens >= need {
		l.tokens -= need
		l.mu.Unlock()
		return
	}

	wait := time.Duration((need - l.tokens) / l.rate * float64(time.Second))
	if wait > maxWait {
		wait = maxWait
	}
	l.mu.Unlock()

	time.Sleep(wait)

	l.mu.Lock()
	l.refillLocked()
	if l.tokens >= need {
		l.tokens -= need
	} else {
		l.tokens = 0
	}
	l.mu.Unlock()
}

func (l *Limiter) refillLocked() {
	now := time.Now()
	l.tokens += now.Sub(l.lastUpdate).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.lastUpdate = now
}

// readChunk keeps reads small so the achieved rate tracks the target closely.
const readChunk = 8 * 1024

type reader struct {
	r       io.Reader
	limiter *Limiter
}

// NewReader wraps r with rate limiting. A nil limiter returns r unchanged.
func NewReader(r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{r: r, limiter: limiter}
}

func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := len(p)
	if n > readChunk {
		n = readChunk
	}
	r.limiter.take(n)
	return r.r.Read(p[:n])
}

// writeChunk balances throttle accuracy against per-write overhead.
const writeChunk = 64 * 1024

type writer struct {
	w       io.Writer
	limiter *Limiter
}

// NewWriter wraps w with rate limiting. A nil limiter returns w unchanged.
func NewWriter(w io.Writer, limiter *Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{w: w, limiter: limiter}
}

func (w *writer) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		chunk := len(p) - total
		if chunk > writeChunk {
			chunk = writeChunk
		}

		// Tokens are consumed before writing to apply backpressure
		w.limiter.take(chunk)

		n, err := w.w.Write(p[total : total+chunk])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
