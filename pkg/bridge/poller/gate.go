package poller

import (
	"sync"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Interval gate and log throttle
// ─────────────────────────────────────────────────────────────────────────────

// gate enforces per-device polling intervals across cycles. Because cycles
// run every half second regardless of device configuration, the gate is what
// turns a 30 s polling_interval into at most one read batch per 30 s.
type gate struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newGate() *gate {
	return &gate{last: make(map[string]time.Time)}
}

// pass reports whether at least interval has elapsed since the previous pass
// for key, stamping the new attempt when it has. The stamp is taken before
// the reads begin, so a slow device cannot compress its own interval.
func (g *gate) pass(key string, interval time.Duration) bool {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.last[key]; ok && now.Sub(last) < interval {
		return false
	}
	g.last[key] = now
	return true
}

// throttle limits success logging to one line per key per window, keeping a
// 1 s device from writing a log line every second forever.
type throttle struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

func newThrottle(window time.Duration) *throttle {
	return &throttle{window: window, last: make(map[string]time.Time)}
}

func (t *throttle) allow(key string) bool {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.last[key]; ok && now.Sub(last) < t.window {
		return false
	}
	t.last[key] = now
	return true
}
