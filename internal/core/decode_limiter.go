package core

// decode_limiter.go bounds how many uploads are decoded at once.
//
// Decoding holds the whole file plus the decoded workbook in memory, so the
// limiter restricts parallel decodes to a configurable maximum. When every
// slot is taken, new requests wait up to maxWait and then fail with
// ErrTooManyUploads. WaitForDrain lets shutdown wait for in-flight decodes.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyUploads is returned when no decode slot frees up within maxWait.
var ErrTooManyUploads = errors.New("too many uploads in progress, please try again later")

const (
	DefaultMaxConcurrentDecodes = 4
	DefaultDecodeWaitTime       = 10 * time.Second
)

// DecodeLimiter is a counting semaphore over decode slots.
type DecodeLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewDecodeLimiter allows at most maxConcurrent decodes. Non-positive
// arguments select the defaults.
func NewDecodeLimiter(maxConcurrent int, maxWait time.Duration) *DecodeLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentDecodes
	}
	if maxWait <= 0 {
		maxWait = DefaultDecodeWaitTime
	}
	return &DecodeLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. The caller must Release it.
func (l *DecodeLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.track(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyUploads
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *DecodeLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.track(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *DecodeLimiter) Release() {
	l.track(-1)
	<-l.slots
}

func (l *DecodeLimiter) track(delta int) {
	l.mu.Lock()
	l.active += delta
	l.mu.Unlock()
}

func (l *DecodeLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

func (l *DecodeLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

func (l *DecodeLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no decode is running or ctx is done.
func (l *DecodeLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// DecodeLimiterStatus is a point-in-time view for the health endpoint.
type DecodeLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

func (l *DecodeLimiter) Status() DecodeLimiterStatus {
	return DecodeLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: l.MaxConcurrent(),
	}
}
