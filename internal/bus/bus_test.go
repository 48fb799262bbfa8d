package bus

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	b := New()
	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.historySize != DefaultHistorySize {
		t.Errorf("expected history size %d, got %d", DefaultHistorySize, b.historySize)
	}
	b.Close()
}

func TestNewWithHistory(t *testing.T) {
	b := NewWithHistory(25)
	if b.historySize != 25 {
		t.Errorf("expected history size 25, got %d", b.historySize)
	}
	b.Close()
}

func TestSubscribeAndPublish(t *testing.T) {
	b := New()
	defer b.Close()

	done := make(chan Event, 1)
	id := b.Subscribe(EventToken, func(e Event) {
		done <- e
	})
	if id == "" {
		t.Fatal("Subscribe returned empty ID")
	}

	event := NewEvent(EventToken)
	event.Word = "hello"
	event.Position = 4
	if err := b.Publish(event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case got := <-done:
		if got.Word != "hello" || got.Position != 4 {
			t.Errorf("received wrong event: %+v", got)
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for event")
	}
}

func TestTypedSubscriptionFilters(t *testing.T) {
	b := New()
	defer b.Close()

	var count atomic.Int32
	b.Subscribe(EventComplete, func(Event) {
		count.Add(1)
	})

	b.Publish(NewEvent(EventToken))
	b.Publish(NewEvent(EventProgress))
	b.Publish(NewEvent(EventComplete))

	deadline := time.Now().Add(time.Second)
	for count.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 delivery, got %d", got)
	}
}

func TestWildcardSubscription(t *testing.T) {
	b := New()
	defer b.Close()

	var count atomic.Int32
	b.Subscribe("", func(Event) {
		count.Add(1)
	})

	b.Publish(NewEvent(EventToken))
	b.Publish(NewEvent(EventState))
	b.Publish(NewEvent(EventSessionEnd))

	deadline := time.Now().Add(time.Second)
	for count.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := count.Load(); got != 3 {
		t.Errorf("expected 3 deliveries, got %d", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	var count atomic.Int32
	received := make(chan struct{}, 8)
	id := b.Subscribe(EventToken, func(Event) {
		count.Add(1)
		received <- struct{}{}
	})

	b.Publish(NewEvent(EventToken))
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("first event never delivered")
	}

	if err := b.Unsubscribe(id); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if got := b.SubscriptionsCount(); got != 0 {
		t.Errorf("expected 0 subscriptions, got %d", got)
	}

	b.Publish(NewEvent(EventToken))
	time.Sleep(50 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Errorf("unsubscribed handler was called, count %d", got)
	}
}

func TestUnsubscribeUnknown(t *testing.T) {
	b := New()
	defer b.Close()

	if err := b.Unsubscribe("sub_999"); err == nil {
		t.Error("expected error for unknown subscription")
	}
}

func TestHistory(t *testing.T) {
	b := NewWithHistory(3)
	defer b.Close()

	for _, word := range []string{"one", "two", "three", "four", "five"} {
		e := NewEvent(EventToken)
		e.Word = word
		b.Publish(e)
	}

	t.Run("bounded to history size", func(t *testing.T) {
		got := b.History(10)
		if len(got) != 3 {
			t.Fatalf("expected 3 retained events, got %d", len(got))
		}
		if got[0].Word != "three" || got[2].Word != "five" {
			t.Errorf("wrong retention window: %q .. %q", got[0].Word, got[2].Word)
		}
	})

	t.Run("last n", func(t *testing.T) {
		got := b.History(1)
		if len(got) != 1 || got[0].Word != "five" {
			t.Errorf("expected just the latest event, got %+v", got)
		}
	})

	t.Run("negative n returns everything retained", func(t *testing.T) {
		if got := b.History(-1); len(got) != 3 {
			t.Errorf("expected 3 events, got %d", len(got))
		}
	})
}

func TestClose(t *testing.T) {
	b := New()
	b.Subscribe(EventToken, func(Event) {})

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := b.Close(); err == nil {
		t.Error("expected error on double close")
	}
	if err := b.Publish(NewEvent(EventToken)); err == nil {
		t.Error("expected error publishing to closed bus")
	}
	if id := b.Subscribe(EventToken, func(Event) {}); id != "" {
		t.Error("expected empty ID subscribing to closed bus")
	}
}

func TestNewEvent(t *testing.T) {
	a := NewEvent(EventProgress)
	c := NewEvent(EventProgress)

	if a.ID == "" || a.ID == c.ID {
		t.Error("event IDs must be unique and non-empty")
	}
	if a.Type != EventProgress {
		t.Errorf("expected type %q, got %q", EventProgress, a.Type)
	}
	if a.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}
