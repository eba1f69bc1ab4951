package events

import (
	"sync"
	"testing"
	"time"
)

func collectingSubscriber(name string, filter func(Event) bool) (*Subscriber, func() []Event) {
	var mu sync.Mutex
	var got []Event
	s := NewSubscriber(name, 8, filter, func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	return s, func() []Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]Event(nil), got...)
	}
}

func TestBusPublishFansOutToAllSubscribers(t *testing.T) {
	b := NewBus(nil)
	s1, get1 := collectingSubscriber("one", AllEvents)
	s2, get2 := collectingSubscriber("two", AllEvents)
	b.Subscribe(s1)
	b.Subscribe(s2)
	defer b.CloseAll()

	b.Publish(Event{TaskID: "1"})

	waitFor(t, func() bool { return len(get1()) == 1 && len(get2()) == 1 })
}

func TestBusPublishStampsTimeWhenZero(t *testing.T) {
	b := NewBus(nil)
	s, get := collectingSubscriber("one", AllEvents)
	b.Subscribe(s)
	defer b.CloseAll()

	b.Publish(Event{TaskID: "1"})

	waitFor(t, func() bool { return len(get()) == 1 })
	if get()[0].Time.IsZero() {
		t.Fatal("expected Publish to stamp a zero Time")
	}
}

func TestBusForHostFilterScopesDelivery(t *testing.T) {
	b := NewBus(nil)
	s, get := collectingSubscriber("web-1-sink", ForHost("web-1"))
	b.Subscribe(s)
	defer b.CloseAll()

	b.Publish(Event{Host: "web-2"})
	b.Publish(Event{Host: "web-1"})

	waitFor(t, func() bool { return len(get()) == 1 })
	if got := get(); got[0].Host != "web-1" {
		t.Fatalf("expected only web-1 event, got %+v", got)
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus(nil)
	s, get := collectingSubscriber("one", AllEvents)
	b.Subscribe(s)

	b.Publish(Event{TaskID: "1"})
	waitFor(t, func() bool { return len(get()) == 1 })

	b.Unsubscribe("one")
	b.Publish(Event{TaskID: "2"})

	time.Sleep(20 * time.Millisecond)
	if len(get()) != 1 {
		t.Fatalf("expected no further delivery after unsubscribe, got %d events", len(get()))
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}
