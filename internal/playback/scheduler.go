// Package playback implements the drift-correcting playback scheduler that
// advances through a token sequence in real time. The scheduler is a small
// state machine (Idle -> Ready -> Running <-> Paused, with Ended as a
// sub-state of Paused) driven by a host-supplied frame source. It owns the
// current position and rate, converts each token's base duration into an
// on-screen duration, and reports every change through fire-and-forget
// callbacks.
//
// The scheduler is not thread-safe. All operations, including frame
// callbacks, must be serialized by the host; every mutating operation runs
// to completion before returning.
package playback

import (
	"math"
	"time"

	"github.com/LouPolish/Red-Read/internal/tokenizer"
)

// Rate bounds in units/minute. Out-of-range rates are clamped, never
// rejected.
const (
	MinRate     = 50
	MaxRate     = 2000
	DefaultRate = 300
)

// State is the externally visible playback state. It is mutated only by the
// scheduler's own operations.
type State struct {
	Running  bool           `json:"running"`
	Position int            `json:"position"`
	Rate     int            `json:"rate"`
	Mode     tokenizer.Mode `json:"mode"`
}

// Snapshot is the serializable subset of playback state handed to the
// persistence collaborator and accepted back on restore.
type Snapshot struct {
	Position int            `json:"position"`
	Rate     int            `json:"rate"`
	Mode     tokenizer.Mode `json:"mode"`
}

// Callbacks are the scheduler's notifications to the rendering layer. All
// are optional, fire-and-forget, and never invoked concurrently with each
// other.
type Callbacks struct {
	// OnToken fires whenever the token at the current position changes.
	OnToken func(tok tokenizer.Token, position int)
	// OnComplete fires once when playback passes the last token.
	OnComplete func()
	// OnState fires on every state transition or setting change.
	OnState func(s State)
	// OnProgress fires with percent complete whenever position changes.
	OnProgress func(percent float64)
}

// Scheduler advances through a borrowed token sequence at a user-controlled
// rate, correcting for frame jitter so the aggregate pace matches the target
// rate over time.
type Scheduler struct {
	frames      Frames
	cb          Callbacks
	unsubscribe func()

	tokens   []tokenizer.Token
	position int
	rate     int
	mode     tokenizer.Mode
	running  bool

	// interrupted records that a lifecycle signal paused an active run.
	// Resuming is a user decision; the host reads this to offer it.
	interrupted bool

	// Clock accumulator. pending carries the remainder across token
	// boundaries so rounding never accumulates into drift. lastFrame is
	// only meaningful while hasLast is set; it is cleared on pause and on
	// suspension recovery so a stale delta is never applied.
	lastFrame time.Duration
	hasLast   bool
	pending   time.Duration

	// current is the scaled on-screen duration of the token in flight.
	current time.Duration

	frame    FrameHandle
	hasFrame bool
}

// New creates a scheduler bound to a frame source and an optional lifecycle.
// The scheduler subscribes to lifecycle signals immediately and holds the
// subscription until Close.
func New(frames Frames, lifecycle Lifecycle, cb Callbacks) *Scheduler {
	s := &Scheduler{
		frames: frames,
		cb:     cb,
		rate:   DefaultRate,
		mode:   tokenizer.ModeReading,
	}
	if lifecycle != nil {
		s.unsubscribe = lifecycle.Subscribe(s.handleSignal)
	}
	return s
}

// Close cancels any pending frame and releases the lifecycle subscription.
func (s *Scheduler) Close() {
	s.cancelFrame()
	s.running = false
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// State returns the current playback state.
func (s *Scheduler) State() State {
	return State{Running: s.running, Position: s.position, Rate: s.rate, Mode: s.mode}
}

// Snapshot returns the serializable playback state for persistence.
func (s *Scheduler) Snapshot() Snapshot {
	return Snapshot{Position: s.position, Rate: s.rate, Mode: s.mode}
}

// Position returns the current index into the token sequence.
func (s *Scheduler) Position() int { return s.position }

// Rate returns the current rate in units/minute.
func (s *Scheduler) Rate() int { return s.rate }

// Mode returns the reported reading mode.
func (s *Scheduler) Mode() tokenizer.Mode { return s.mode }

// Running reports whether the frame loop is active.
func (s *Scheduler) Running() bool { return s.running }

// Len returns the length of the loaded token sequence.
func (s *Scheduler) Len() int { return len(s.tokens) }

// Interrupted reports whether a lifecycle signal paused an active run since
// the last Play.
func (s *Scheduler) Interrupted() bool { return s.interrupted }

// Progress returns percent complete, or 0 for an empty sequence.
func (s *Scheduler) Progress() float64 {
	if len(s.tokens) == 0 {
		return 0
	}
	return float64(s.position) / float64(len(s.tokens)) * 100
}

// Load stops any active run, replaces the token sequence, clamps the start
// position, resets the clock accumulator, and immediately notifies observers
// of the token now at position and of the new state.
func (s *Scheduler) Load(tokens []tokenizer.Token, startPosition int) {
	s.cancelFrame()
	s.running = false
	s.tokens = tokens
	s.position = clampPosition(startPosition, len(tokens))
	s.resetClock()
	s.emitToken()
	s.emitProgress()
	s.emitState()
}

// Restore is Load driven by a persisted snapshot.
func (s *Scheduler) Restore(tokens []tokenizer.Token, snap Snapshot) {
	s.rate = clampRate(snap.Rate)
	s.mode = tokenizer.ParseMode(string(snap.Mode))
	s.Load(tokens, snap.Position)
}

// SetRate clamps the rate into [MinRate, MaxRate]. If running, the token in
// flight is re-scaled at the new rate and the already-elapsed portion keeps
// accumulating against the new target. A mid-token rate change therefore
// jumps slightly rather than rescaling remaining progress; this matches the
// reference behavior and is intentional.
func (s *Scheduler) SetRate(rate int) {
	rate = clampRate(rate)
	if rate == s.rate {
		return
	}
	s.rate = rate
	if s.running && len(s.tokens) > 0 {
		s.current = s.scaled(s.position)
	}
	s.emitState()
}

// SetMode updates the reported mode. Mode affects timing only during
// tokenization; already-built tokens keep their durations.
func (s *Scheduler) SetMode(mode tokenizer.Mode) {
	if mode == s.mode {
		return
	}
	s.mode = mode
	s.emitState()
}

// Play starts the frame loop. With an empty sequence it is a no-op. If the
// position is at or past the last index, playback rewinds to the start
// first. The clock accumulator is reset so the first frame only establishes
// a baseline.
func (s *Scheduler) Play() {
	if len(s.tokens) == 0 || s.running {
		return
	}
	s.interrupted = false
	if s.position >= len(s.tokens)-1 && s.position > 0 {
		s.position = 0
		s.emitToken()
		s.emitProgress()
	}
	s.start()
}

// Pause cancels the pending frame and clears the timestamp baseline so a
// future resume never applies a stale elapsed delta. The pending remainder
// is kept; Play resets it.
func (s *Scheduler) Pause() {
	if !s.running {
		return
	}
	s.cancelFrame()
	s.running = false
	s.hasLast = false
	s.emitState()
}

// Stop pauses, then resets position and accumulator to zero.
func (s *Scheduler) Stop() {
	s.cancelFrame()
	s.running = false
	s.hasLast = false
	s.pending = 0
	s.position = 0
	s.emitToken()
	s.emitProgress()
	s.emitState()
}

// Toggle plays if paused and pauses if running.
func (s *Scheduler) Toggle() {
	if s.running {
		s.Pause()
	} else {
		s.Play()
	}
}

// Step moves the position by delta, clamped into range, with replay
// semantics: stepping while playing resumes playing after the jump,
// stepping while paused stays paused.
func (s *Scheduler) Step(delta int) {
	s.reposition(s.position + delta)
}

// Seek moves the position absolutely, clamped into range, with the same
// discontinuity handling as Step.
func (s *Scheduler) Seek(position int) {
	s.reposition(position)
}

// SeekPercent seeks to floor(p/100 * length).
func (s *Scheduler) SeekPercent(p float64) {
	s.reposition(int(math.Floor(p / 100 * float64(len(s.tokens)))))
}

// Rewind steps backwards by n tokens.
func (s *Scheduler) Rewind(n int) {
	s.Step(-n)
}

// reposition is the shared discontinuity path for Step/Seek/SeekPercent.
func (s *Scheduler) reposition(target int) {
	wasRunning := s.running
	if wasRunning {
		s.cancelFrame()
		s.running = false
	}
	s.position = clampPosition(target, len(s.tokens))
	s.resetClock()
	s.emitToken()
	s.emitProgress()
	if wasRunning && len(s.tokens) > 0 {
		s.start()
	} else {
		s.emitState()
	}
}

// start begins the frame loop from the current position. Unlike Play it
// never rewinds, so a jump to the last token plays that token to completion.
func (s *Scheduler) start() {
	s.resetClock()
	s.current = s.scaled(s.position)
	s.running = true
	s.requestFrame()
	s.emitState()
}

// tick is the frame loop body. The first tick after a (re)start only
// establishes the timestamp baseline. Subsequent ticks accumulate elapsed
// time and advance the position token by token, subtracting (never zeroing)
// each consumed duration so the remainder carries forward and the aggregate
// pace stays on target under irregular frame pacing.
func (s *Scheduler) tick(now time.Duration) {
	if !s.running {
		// A cancelled or stale frame must never advance state.
		return
	}
	if !s.hasLast {
		s.lastFrame = now
		s.hasLast = true
		s.requestFrame()
		return
	}

	elapsed := now - s.lastFrame
	s.lastFrame = now
	if elapsed > 0 {
		s.pending += elapsed
	}

	for s.pending >= s.current {
		s.pending -= s.current
		s.position++
		if s.position >= len(s.tokens) {
			s.position = len(s.tokens) - 1
			s.running = false
			s.hasLast = false
			s.emitState()
			if s.cb.OnComplete != nil {
				s.cb.OnComplete()
			}
			return
		}
		s.current = s.scaled(s.position)
		s.emitToken()
		s.emitProgress()
	}

	s.requestFrame()
}

// handleSignal reacts to host lifecycle transitions.
func (s *Scheduler) handleSignal(sig Signal) {
	switch sig {
	case SignalHidden, SignalSuspend:
		if s.running {
			s.interrupted = true
			s.Pause()
		}
	case SignalVisible:
		// Resuming playback is a user decision; never auto-play.
	case SignalResume:
		// No ticks can be assumed to have fired while suspended. Clear
		// the baseline and the pending remainder so the suspended
		// interval is not interpreted as elapsed playback time.
		s.hasLast = false
		s.pending = 0
	}
}

func (s *Scheduler) scaled(i int) time.Duration {
	ms := tokenizer.Scale(s.tokens[i].BaseDurationUnits, s.rate)
	return time.Duration(ms) * time.Millisecond
}

func (s *Scheduler) resetClock() {
	s.hasLast = false
	s.pending = 0
}

func (s *Scheduler) requestFrame() {
	s.frame = s.frames.Request(s.tick)
	s.hasFrame = true
}

func (s *Scheduler) cancelFrame() {
	if s.hasFrame {
		s.frames.Cancel(s.frame)
		s.hasFrame = false
	}
}

func (s *Scheduler) emitToken() {
	if s.cb.OnToken != nil && len(s.tokens) > 0 {
		s.cb.OnToken(s.tokens[s.position], s.position)
	}
}

func (s *Scheduler) emitProgress() {
	if s.cb.OnProgress != nil {
		s.cb.OnProgress(s.Progress())
	}
}

func (s *Scheduler) emitState() {
	if s.cb.OnState != nil {
		s.cb.OnState(s.State())
	}
}

func clampPosition(p, length int) int {
	if length == 0 || p < 0 {
		return 0
	}
	if p >= length {
		return length - 1
	}
	return p
}

func clampRate(rate int) int {
	if rate < MinRate {
		return MinRate
	}
	if rate > MaxRate {
		return MaxRate
	}
	return rate
}
