package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventBus_PublishReachesSubscribers(t *testing.T) {
	b := NewEventBus()

	received := make(chan Event, 1)
	b.Subscribe(EventTypeStateChanged, func(e Event) {
		received <- e
	})

	b.Publish(Event{Type: EventTypeStateChanged, Data: map[string]any{"state": "speaking"}})

	select {
	case e := <-received:
		if e.Data["state"] != "speaking" {
			t.Errorf("payload = %v", e.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestEventBus_OnlyMatchingTypeDelivered(t *testing.T) {
	b := NewEventBus()

	var calls atomic.Int32
	b.Subscribe(EventTypeEmotionChanged, func(Event) { calls.Add(1) })

	b.PublishSync(Event{Type: EventTypeStateChanged})
	b.PublishSync(Event{Type: EventTypeEmotionChanged})

	if got := calls.Load(); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}
}

func TestEventBus_SubscribeMultiple(t *testing.T) {
	b := NewEventBus()

	var calls atomic.Int32
	b.SubscribeMultiple([]EventType{EventTypePlaybackStarted, EventTypePlaybackFinished},
		func(Event) { calls.Add(1) })

	b.PublishSync(Event{Type: EventTypePlaybackStarted})
	b.PublishSync(Event{Type: EventTypePlaybackFinished})

	if got := calls.Load(); got != 2 {
		t.Errorf("handler called %d times, want 2", got)
	}
}

func TestEventBus_PublishSyncWaits(t *testing.T) {
	b := NewEventBus()

	var mu sync.Mutex
	done := false
	b.Subscribe(EventTypeConfigReloaded, func(Event) {
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		done = true
		mu.Unlock()
	})

	b.PublishSync(Event{Type: EventTypeConfigReloaded})

	mu.Lock()
	defer mu.Unlock()
	if !done {
		t.Error("PublishSync returned before handler finished")
	}
}

func TestEventBus_Clear(t *testing.T) {
	b := NewEventBus()

	var calls atomic.Int32
	b.Subscribe(EventTypeGesture, func(Event) { calls.Add(1) })
	b.Clear()
	b.PublishSync(Event{Type: EventTypeGesture})

	if calls.Load() != 0 {
		t.Error("cleared handler still invoked")
	}
}
