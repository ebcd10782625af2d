package events

import (
	"testing"
	"time"
)

func TestBusPublishDeliversToSubscribers(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(4)
	defer b.Unsubscribe(sub)

	b.Publish(Event{Type: EventRouteSuccess, RequestedModel: "gpt-4", ProviderID: "openai-1"})

	select {
	case got := <-sub.C:
		if got.Type != EventRouteSuccess || got.RequestedModel != "gpt-4" {
			t.Fatalf("unexpected event: %+v", got)
		}
		if got.Timestamp.IsZero() {
			t.Fatal("expected Publish to stamp a timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusDropsEventsForSlowSubscribers(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(1)
	defer b.Unsubscribe(sub)

	b.Publish(Event{Type: EventHealthChange})
	b.Publish(Event{Type: EventHealthChange}) // channel full, should be dropped, not block

	if b.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.SubscriberCount())
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(4)
	b.Unsubscribe(sub)

	b.Publish(Event{Type: EventRouteError})

	select {
	case <-sub.C:
		t.Fatal("unsubscribed subscriber should not receive events")
	default:
	}
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", b.SubscriberCount())
	}
}
