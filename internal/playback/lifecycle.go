package playback

import (
	"fmt"
	"sync"
)

// Signal is a host lifecycle transition delivered to the scheduler.
type Signal int

const (
	// SignalHidden means the host lost visibility (e.g. the app was
	// backgrounded). A running scheduler pauses; it never auto-resumes.
	SignalHidden Signal = iota
	// SignalVisible means the host regained visibility.
	SignalVisible
	// SignalSuspend means execution is about to stop entirely; no frame
	// callbacks can be assumed to fire until SignalResume.
	SignalSuspend
	// SignalResume means execution restarted after a suspension. The
	// suspended interval must not count as playback time.
	SignalResume
)

func (s Signal) String() string {
	switch s {
	case SignalHidden:
		return "hidden"
	case SignalVisible:
		return "visible"
	case SignalSuspend:
		return "suspend"
	case SignalResume:
		return "resume"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Lifecycle is the injected capability delivering host lifecycle signals.
// The scheduler subscribes for the duration of its existence and
// unsubscribes on Close.
type Lifecycle interface {
	// Subscribe registers fn and returns a cancel function that removes
	// the registration. Signals are delivered synchronously on the
	// caller's goroutine.
	Subscribe(fn func(Signal)) (cancel func())
}

// SignalHub is a minimal in-process Lifecycle implementation for hosts that
// translate platform events (window focus, OS suspend) into signals.
type SignalHub struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Signal)
}

// NewSignalHub creates an empty hub.
func NewSignalHub() *SignalHub {
	return &SignalHub{subs: make(map[int]func(Signal))}
}

// Subscribe registers fn for all future signals.
func (h *SignalHub) Subscribe(fn func(Signal)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	id := h.next
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// Emit delivers a signal synchronously to every subscriber.
func (h *SignalHub) Emit(s Signal) {
	h.mu.Lock()
	fns := make([]func(Signal), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
