package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"
)

// LocalTracker keeps per-key windows in process memory. The key map has its own
// lock and each window is locked independently, so distinct keys never contend
// on anything but the map lookup.
type LocalTracker struct {
	mu        sync.Mutex
	windows   map[string]*window
	capacity  int
	interval  time.Duration
	nextSweep time.Time
}

type window struct {
	mu      sync.Mutex
	hits    *queue.Queue
	last    time.Time
	evicted bool
}

func NewLocalTracker(policy Policy) *LocalTracker {
	policy = normalizePolicy(policy)
	return &LocalTracker{
		windows:  make(map[string]*window),
		capacity: policy.WindowSize,
		interval: policy.Interval,
	}
}

func (t *LocalTracker) Track(_ context.Context, key string, now time.Time) (int, error) {
	for {
		w := t.window(key, now)
		w.mu.Lock()
		if w.evicted {
			w.mu.Unlock()
			continue
		}
		for w.hits.Length() >= t.capacity {
			w.hits.Remove()
		}
		w.hits.Add(now)
		if now.After(w.last) {
			w.last = now
		}
		cutoff := now.Add(-t.interval)
		count := 0
		for i := 0; i < w.hits.Length(); i++ {
			if w.hits.Get(i).(time.Time).After(cutoff) {
				count++
			}
		}
		w.mu.Unlock()
		return count, nil
	}
}

// Len reports the number of tracked keys.
func (t *LocalTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}

func (t *LocalTracker) window(key string, now time.Time) *window {
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.After(t.nextSweep) {
		t.sweep(now)
		t.nextSweep = now.Add(t.interval)
	}
	w, ok := t.windows[key]
	if !ok {
		w = &window{hits: queue.New()}
		t.windows[key] = w
	}
	return w
}

// sweep drops windows with no hit inside the interval; they can no longer
// contribute to a count. Caller holds t.mu.
func (t *LocalTracker) sweep(now time.Time) {
	cutoff := now.Add(-t.interval)
	for key, w := range t.windows {
		w.mu.Lock()
		if !w.last.After(cutoff) {
			w.evicted = true
			delete(t.windows, key)
		}
		w.mu.Unlock()
	}
}
