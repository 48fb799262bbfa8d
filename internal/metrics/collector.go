// Package metrics aggregates reading statistics from the playback event bus.
// The collector is a passive observer: it subscribes like any other consumer
// and never feeds back into playback.
package metrics

import (
	"sync"
	"time"

	"github.com/LouPolish/Red-Read/internal/bus"
)

// SessionStats holds the statistics gathered since the collector started.
type SessionStats struct {
	StartTime     time.Time
	TokensShown   int
	Sessions      int
	Completions   int
	FurthestPos   int
	ReadingTime   time.Duration
	LastEvent     bus.EventType
	LastEventTime time.Time
}

// EffectiveWPM is the pace actually achieved: tokens shown per minute of
// running playback. Zero when nothing has played yet.
func (s SessionStats) EffectiveWPM() float64 {
	if s.ReadingTime <= 0 || s.TokensShown == 0 {
		return 0
	}
	return float64(s.TokensShown) / s.ReadingTime.Minutes()
}

// Collector subscribes to the event bus and aggregates reading stats.
type Collector struct {
	bus *bus.Bus

	mu           sync.RWMutex
	stats        SessionStats
	runningSince time.Time
	running      bool
	sub          bus.SubscriptionID
	stopped      bool
}

// NewCollector creates a collector attached to the given bus.
func NewCollector(b *bus.Bus) *Collector {
	return &Collector{
		bus:   b,
		stats: SessionStats{StartTime: time.Now()},
	}
}

// Start begins listening. Safe to call with a nil bus.
func (c *Collector) Start() {
	if c.bus == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.sub != "" {
		return
	}
	c.sub = c.bus.Subscribe("", c.handleEvent)
}

// Stop unsubscribes and freezes the stats.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	c.settleRunning(time.Now())
	if c.sub != "" {
		_ = c.bus.Unsubscribe(c.sub)
		c.sub = ""
	}
}

// Stats returns a copy of the current statistics.
func (c *Collector) Stats() SessionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	if c.running {
		stats.ReadingTime += time.Since(c.runningSince)
	}
	return stats
}

func (c *Collector) handleEvent(event bus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.stats.LastEvent = event.Type
	c.stats.LastEventTime = now

	switch event.Type {
	case bus.EventToken:
		c.stats.TokensShown++
		if event.Position > c.stats.FurthestPos {
			c.stats.FurthestPos = event.Position
		}
	case bus.EventSessionStart:
		c.stats.Sessions++
	case bus.EventComplete:
		c.stats.Completions++
	case bus.EventState:
		if event.State == nil {
			return
		}
		if event.State.Running && !c.running {
			c.running = true
			c.runningSince = now
		} else if !event.State.Running {
			c.settleRunning(now)
		}
	}
}

// settleRunning folds an open running interval into ReadingTime. Callers
// hold c.mu.
func (c *Collector) settleRunning(now time.Time) {
	if c.running {
		c.stats.ReadingTime += now.Sub(c.runningSince)
		c.running = false
	}
}
