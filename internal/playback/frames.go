package playback

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates a 60 Hz display cadence. The scheduler's
// frame loop is cadence-agnostic, so the exact interval only affects how
// promptly a token boundary is noticed, never the aggregate pace.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameHandle identifies a pending frame request for cancellation.
type FrameHandle uint64

// Frames is the scheduling capability the host supplies to the scheduler:
// request a single callback carrying a monotonic timestamp, and cancel a
// pending request. There is no fixed-interval guarantee; callbacks may fire
// at whatever cadence the host provides.
type Frames interface {
	Request(fn func(now time.Duration)) FrameHandle
	Cancel(h FrameHandle)
}

// TickerFrames is the production Frames implementation, backed by
// time.AfterFunc at a fixed nominal interval. Timestamps are monotonic
// durations measured from the moment the instance was created.
//
// Callbacks fire on timer goroutines; hosts that also drive the scheduler
// from other goroutines must serialize access (see session.Reader).
type TickerFrames struct {
	interval time.Duration
	epoch    time.Time

	mu     sync.Mutex
	next   FrameHandle
	timers map[FrameHandle]*time.Timer
}

// NewTickerFrames creates a ticker-backed frame source. A non-positive
// interval falls back to DefaultFrameInterval.
func NewTickerFrames(interval time.Duration) *TickerFrames {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &TickerFrames{
		interval: interval,
		epoch:    time.Now(),
		timers:   make(map[FrameHandle]*time.Timer),
	}
}

// Request schedules fn to run once after the nominal interval.
func (t *TickerFrames) Request(fn func(now time.Duration)) FrameHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	h := t.next
	t.timers[h] = time.AfterFunc(t.interval, func() {
		t.mu.Lock()
		_, live := t.timers[h]
		delete(t.timers, h)
		t.mu.Unlock()
		if !live {
			// Cancelled after the timer fired but before we ran.
			return
		}
		fn(time.Since(t.epoch))
	})
	return h
}

// Cancel stops a pending request. Cancelling an already-fired or unknown
// handle is a no-op.
func (t *TickerFrames) Cancel(h FrameHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[h]; ok {
		timer.Stop()
		delete(t.timers, h)
	}
}

// Pending reports the number of outstanding frame requests.
func (t *TickerFrames) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}
