// Package session orchestrates one reading session: it tokenizes a document,
// owns an explicitly held playback scheduler, bridges the scheduler's
// callbacks onto the event bus, and persists playback snapshots through the
// progress store. The scheduler itself is not thread-safe, so the Reader
// serializes every path into it, including frame callbacks, behind one
// mutex.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/LouPolish/Red-Read/internal/bus"
	"github.com/LouPolish/Red-Read/internal/playback"
	"github.com/LouPolish/Red-Read/internal/store"
	"github.com/LouPolish/Red-Read/internal/tokenizer"
)

// Options configures a Reader. Bus and Store are optional; a nil Bus drops
// events and a nil Store disables persistence.
type Options struct {
	Frames    playback.Frames
	Lifecycle playback.Lifecycle
	Bus       *bus.Bus
	Store     *store.Store

	// Rate and Mode seed new sessions; a restored session keeps its own.
	Rate int
	Mode tokenizer.Mode
}

// Reader is one reading session over a single document.
type Reader struct {
	mu sync.Mutex

	id     string
	doc    store.Document
	tokens []tokenizer.Token
	sched  *playback.Scheduler

	bus   *bus.Bus
	store *store.Store
	log   zerolog.Logger

	opts Options
}

// NewReader creates an idle reader. Open must be called before playback.
func NewReader(opts Options) *Reader {
	r := &Reader{
		bus:   opts.Bus,
		store: opts.Store,
		opts:  opts,
		log:   log.With().Str("component", "session").Logger(),
	}

	frames := opts.Frames
	if frames != nil {
		// Frame callbacks arrive on timer goroutines; route them through
		// the session mutex so the scheduler only ever sees one caller.
		frames = lockedFrames{inner: frames, mu: &r.mu}
	}

	var lifecycle playback.Lifecycle
	if opts.Lifecycle != nil {
		lifecycle = lockedLifecycle{inner: opts.Lifecycle, mu: &r.mu}
	}

	r.sched = playback.New(frames, lifecycle, playback.Callbacks{
		OnToken:    r.onToken,
		OnComplete: r.onComplete,
		OnState:    r.onState,
		OnProgress: r.onProgress,
	})
	return r
}

// Open tokenizes text, registers the document, and loads the scheduler. If
// the store already holds a session for the same content, playback resumes
// from its snapshot; otherwise a new session starts at the beginning with
// the configured rate and mode.
func (r *Reader) Open(ctx context.Context, title, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mode := r.opts.Mode
	if mode == "" {
		mode = tokenizer.ModeReading
	}
	rate := r.opts.Rate
	if rate == 0 {
		rate = playback.DefaultRate
	}

	tokens := tokenizer.Tokenize(text, mode)
	doc := store.Document{
		ID:        uuid.NewString(),
		Title:     title,
		SHA256:    store.HashText(text),
		WordCount: len(tokens),
	}

	snap := playback.Snapshot{Position: 0, Rate: rate, Mode: mode}
	sessionID := uuid.NewString()

	if r.store != nil {
		stored, err := r.store.UpsertDocument(ctx, doc)
		if err != nil {
			return fmt.Errorf("register document: %w", err)
		}
		doc = stored

		prev, err := r.store.LatestSession(ctx, doc.ID)
		switch {
		case err == nil:
			sessionID = prev.ID
			snap = prev.Snapshot()
			if snap.Mode != mode {
				// Mode only affects timing during tokenization, so a
				// restored mode means rebuilding the sequence.
				mode = snap.Mode
				tokens = tokenizer.Tokenize(text, mode)
			}
			r.log.Info().Str("session", sessionID).Int("position", snap.Position).
				Msg("resuming stored session")
		case err == sql.ErrNoRows:
			// First read of this document.
		default:
			return fmt.Errorf("look up session: %w", err)
		}
	}

	r.id = sessionID
	r.doc = doc
	r.tokens = tokens
	r.sched.Restore(r.tokens, snap)

	r.publish(func(e *bus.Event) {
		e.Type = bus.EventSessionStart
		e.Position = r.sched.Position()
	})
	return nil
}

// ID returns the session identifier.
func (r *Reader) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

// State returns the scheduler's current state.
func (r *Reader) State() playback.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sched.State()
}

// Play starts or restarts playback.
func (r *Reader) Play() { r.locked(func() { r.sched.Play() }) }

// Pause halts playback and persists the snapshot.
func (r *Reader) Pause() {
	r.locked(func() {
		r.sched.Pause()
		r.persist()
	})
}

// Toggle flips between playing and paused, persisting on pause.
func (r *Reader) Toggle() {
	r.locked(func() {
		if r.sched.Running() {
			r.sched.Pause()
			r.persist()
		} else {
			r.sched.Play()
		}
	})
}

// Stop halts playback and rewinds to the start.
func (r *Reader) Stop() {
	r.locked(func() {
		r.sched.Stop()
		r.persist()
	})
}

// Step moves by delta tokens with the scheduler's replay semantics.
func (r *Reader) Step(delta int) { r.locked(func() { r.sched.Step(delta) }) }

// Seek moves to an absolute position.
func (r *Reader) Seek(position int) { r.locked(func() { r.sched.Seek(position) }) }

// SeekPercent moves to a percent position.
func (r *Reader) SeekPercent(p float64) { r.locked(func() { r.sched.SeekPercent(p) }) }

// Rewind steps backwards n tokens.
func (r *Reader) Rewind(n int) { r.locked(func() { r.sched.Rewind(n) }) }

// SetRate changes the playback rate.
func (r *Reader) SetRate(rate int) { r.locked(func() { r.sched.SetRate(rate) }) }

// SetMode updates the reported mode for state and persistence. It does not
// re-tokenize the open document; mode affects timing at tokenization time.
func (r *Reader) SetMode(mode tokenizer.Mode) { r.locked(func() { r.sched.SetMode(mode) }) }

// Close pauses, persists the final snapshot, emits the session-end event,
// and releases the scheduler's lifecycle subscription.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sched.Pause()
	r.persist()
	r.publish(func(e *bus.Event) {
		e.Type = bus.EventSessionEnd
		e.Position = r.sched.Position()
		e.Percent = r.sched.Progress()
	})
	r.sched.Close()
	return nil
}

func (r *Reader) locked(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// persist writes the current snapshot. Callers hold r.mu.
func (r *Reader) persist() {
	if r.store == nil || r.id == "" {
		return
	}
	snap := r.sched.Snapshot()
	err := r.store.SaveSession(context.Background(), store.Session{
		ID:         r.id,
		DocumentID: r.doc.ID,
		Position:   snap.Position,
		Rate:       snap.Rate,
		Mode:       string(snap.Mode),
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		r.log.Error().Err(err).Str("session", r.id).Msg("persist snapshot")
	}
}

// publish stamps session identity onto an event and sends it. Callers hold
// r.mu.
func (r *Reader) publish(fill func(*bus.Event)) {
	if r.bus == nil {
		return
	}
	event := bus.NewEvent("")
	event.SessionID = r.id
	event.DocumentID = r.doc.ID
	fill(&event)
	if err := r.bus.Publish(event); err != nil {
		r.log.Debug().Err(err).Msg("publish event")
	}
}

// Scheduler callback bridges. These run with r.mu held (all scheduler entry
// points are serialized by it), so they only forward, never call back into
// the scheduler.

func (r *Reader) onToken(tok tokenizer.Token, position int) {
	r.publish(func(e *bus.Event) {
		e.Type = bus.EventToken
		e.Word = tok.Text
		e.FixationIndex = tok.FixationIndex
		e.Position = position
	})
}

func (r *Reader) onComplete() {
	r.persist()
	r.publish(func(e *bus.Event) {
		e.Type = bus.EventComplete
		e.Position = r.sched.Position()
		e.Percent = 100
	})
}

func (r *Reader) onState(s playback.State) {
	r.publish(func(e *bus.Event) {
		e.Type = bus.EventState
		e.State = &s
	})
}

func (r *Reader) onProgress(percent float64) {
	r.publish(func(e *bus.Event) {
		e.Type = bus.EventProgress
		e.Percent = percent
	})
}

// lockedFrames wraps a Frames implementation so callbacks run under the
// session mutex.
type lockedFrames struct {
	inner playback.Frames
	mu    *sync.Mutex
}

func (l lockedFrames) Request(fn func(now time.Duration)) playback.FrameHandle {
	return l.inner.Request(func(now time.Duration) {
		l.mu.Lock()
		defer l.mu.Unlock()
		fn(now)
	})
}

func (l lockedFrames) Cancel(h playback.FrameHandle) {
	l.inner.Cancel(h)
}

// lockedLifecycle wraps the host lifecycle the same way, so signals arriving
// from platform goroutines are serialized with everything else.
type lockedLifecycle struct {
	inner playback.Lifecycle
	mu    *sync.Mutex
}

func (l lockedLifecycle) Subscribe(fn func(playback.Signal)) (cancel func()) {
	return l.inner.Subscribe(func(sig playback.Signal) {
		l.mu.Lock()
		defer l.mu.Unlock()
		fn(sig)
	})
}
