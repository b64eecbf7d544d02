package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/sandeepkv93/session-guard/internal/observability"
)

// Policy describes the sliding window: the most recent WindowSize requests are
// kept per key, and a request is blocked once more than Threshold of them fall
// within the trailing Interval.
type Policy struct {
	WindowSize int
	Threshold  int
	Interval   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{WindowSize: 50, Threshold: 20, Interval: 10 * time.Second}
}

func normalizePolicy(p Policy) Policy {
	def := DefaultPolicy()
	if p.WindowSize <= 0 {
		p.WindowSize = def.WindowSize
	}
	if p.Threshold <= 0 {
		p.Threshold = def.Threshold
	}
	if p.Interval <= 0 {
		p.Interval = def.Interval
	}
	return p
}

// Tracker records a request for key at now and returns how many recorded
// requests fall within the trailing interval, the new one included.
type Tracker interface {
	Track(ctx context.Context, key string, now time.Time) (int, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

func ParseFailureMode(v string) FailureMode {
	if FailureMode(v) == FailClosed {
		return FailClosed
	}
	return FailOpen
}

type Limiter struct {
	tracker Tracker
	policy  Policy
	mode    FailureMode
	backend string
	now     func() time.Time
}

func NewLimiter(tracker Tracker, policy Policy, mode FailureMode, backend string) *Limiter {
	if backend == "" {
		backend = "local"
	}
	return &Limiter{
		tracker: tracker,
		policy:  normalizePolicy(policy),
		mode:    mode,
		backend: backend,
		now:     time.Now,
	}
}

func (l *Limiter) Policy() Policy           { return l.policy }
func (l *Limiter) FailureMode() FailureMode { return l.mode }

// OnRequest records one request for key and reports whether it must be blocked.
// An empty key is the anonymous sentinel and is never tracked. On a tracker
// error the failure mode decides the result and the error is returned as well.
func (l *Limiter) OnRequest(ctx context.Context, key string) (bool, error) {
	if key == "" {
		observability.RecordRateLimitDecision(ctx, l.backend, "skip")
		return false, nil
	}
	count, err := l.tracker.Track(ctx, key, l.now())
	if err != nil {
		observability.RecordRateLimitDecision(ctx, l.backend, "backend_error")
		return l.mode == FailClosed, fmt.Errorf("track %s: %w", key, err)
	}
	if count > l.policy.Threshold {
		observability.RecordRateLimitDecision(ctx, l.backend, "block")
		return true, nil
	}
	observability.RecordRateLimitDecision(ctx, l.backend, "allow")
	return false, nil
}
