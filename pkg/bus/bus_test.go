package bus

import (
	"context"
	"testing"
	"time"

	"wadigest/pkg/message"
)

func TestPublishEventAfterClose(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()
	mb.Close()

	if ok := mb.PublishEvent(context.Background(), Event{Type: EventSummaryCompleted}); ok {
		t.Fatal("expected publish to fail after close")
	}

	events, unsubscribe := mb.SubscribeEvents(context.Background(), 1)
	defer unsubscribe()
	if _, ok := <-events; ok {
		t.Fatal("expected subscription on a closed bus to be closed")
	}
}

func TestPublishEventHonorsContext(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if ok := mb.PublishEvent(ctx, Event{Type: EventSummaryCompleted}); ok {
		t.Fatal("expected publish to fail with canceled context")
	}
}

func TestEventFanout(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx := context.Background()
	eventsA, unsubA := mb.SubscribeEvents(ctx, 1)
	defer unsubA()
	eventsB, unsubB := mb.SubscribeEvents(ctx, 1)
	defer unsubB()

	event := Event{Type: EventCommandReceived, RequestID: "1"}
	if ok := mb.PublishEvent(ctx, event); !ok {
		t.Fatal("expected event publish to succeed")
	}

	select {
	case got := <-eventsA:
		if got.Type != EventCommandReceived {
			t.Fatalf("event type = %q, want %q", got.Type, EventCommandReceived)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("subscriber A did not receive event")
	}

	select {
	case got := <-eventsB:
		if got.Type != EventCommandReceived {
			t.Fatalf("event type = %q, want %q", got.Type, EventCommandReceived)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("subscriber B did not receive event")
	}
}

func TestSlowSubscriberDoesNotBlockPublishEvent(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx := context.Background()
	events, unsubscribe := mb.SubscribeEvents(ctx, 1)
	defer unsubscribe()

	if ok := mb.PublishEvent(ctx, Event{Type: EventCommandReceived}); !ok {
		t.Fatal("expected first event publish to succeed")
	}

	start := time.Now()
	if ok := mb.PublishEvent(ctx, Event{Type: EventCommandCompleted}); !ok {
		t.Fatal("expected second event publish to succeed")
	}

	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("publish event blocked on slow subscriber")
	}

	select {
	case <-events:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected at least one event")
	}
}

func TestUnsubscribeStopsEvents(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx := context.Background()
	events, unsubscribe := mb.SubscribeEvents(ctx, 1)
	unsubscribe()

	if ok := mb.PublishEvent(ctx, Event{Type: EventCommandReceived}); !ok {
		t.Fatal("expected event publish to succeed")
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed event channel")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event channel close after unsubscribe")
	}
}

func TestSubscribeEventsUnblocksOnClose(t *testing.T) {
	mb := NewMessageBus()

	ctx := context.Background()
	events, _ := mb.SubscribeEvents(ctx, 1)
	mb.Close()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected event channel to be closed")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("event subscription did not unblock after close")
	}
}

func TestCountersTrackPipelineEvents(t *testing.T) {
	mb := NewMessageBus()
	t.Cleanup(mb.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	counters := NewCounters()
	events, unsubscribe := mb.SubscribeEvents(ctx, 8)
	defer unsubscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		counters.Run(ctx, events)
	}()

	result := message.Result{Processed: 5, Accepted: 3, Rejected: 2, RejectedByReason: map[message.Reason]int{message.ReasonCommandMessage: 2}}
	mb.PublishEvent(ctx, BatchEvent("g@g.us", result))
	mb.PublishEvent(ctx, Event{Type: EventSummaryCompleted, ChatID: "g@g.us"})

	deadline := time.After(time.Second)
	for {
		stats := counters.Snapshot()
		if stats.Events[EventSummaryCompleted] == 1 {
			if stats.Normalized != 3 || stats.Rejected != 2 {
				t.Fatalf("stats = %+v", stats)
			}
			if stats.LastSummaryAt.IsZero() {
				t.Fatal("expected last summary time")
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("counters did not observe events: %+v", counters.Snapshot())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestBatchEventPayload(t *testing.T) {
	event := BatchEvent("g@g.us", message.Result{
		Processed:        4,
		Accepted:         1,
		Rejected:         3,
		RejectedByReason: map[message.Reason]int{message.ReasonUnsupportedType: 3},
	})
	if event.Type != EventBatchNormalized {
		t.Fatalf("type = %q", event.Type)
	}
	if event.Payload["reason.unsupported_type"] != "3" {
		t.Fatalf("payload = %v", event.Payload)
	}
	if payloadInt(event.Payload, "processed") != 4 {
		t.Fatalf("processed = %q", event.Payload["processed"])
	}
}
