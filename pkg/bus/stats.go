package bus

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Stats is a point-in-time copy of the counters.
type Stats struct {
	Events        map[EventType]int64 `json:"events"`
	Normalized    int64               `json:"normalized_messages"`
	Rejected      int64               `json:"rejected_messages"`
	LastEventAt   time.Time           `json:"last_event_at,omitzero"`
	LastSummaryAt time.Time           `json:"last_summary_at,omitzero"`
}

// Counters tallies bus events for the status API.
type Counters struct {
	mu            sync.Mutex
	events        map[EventType]int64
	normalized    int64
	rejected      int64
	lastEventAt   time.Time
	lastSummaryAt time.Time
}

func NewCounters() *Counters {
	return &Counters{events: make(map[EventType]int64)}
}

// Run consumes events until ctx is done or the channel is closed.
func (c *Counters) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			c.Record(event)
		}
	}
}

func (c *Counters) Record(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events[event.Type]++
	c.lastEventAt = event.At
	switch event.Type {
	case EventBatchNormalized:
		c.normalized += payloadInt(event.Payload, "accepted")
		c.rejected += payloadInt(event.Payload, "rejected")
	case EventSummaryCompleted:
		c.lastSummaryAt = event.At
	}
}

func (c *Counters) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Events:        maps.Clone(c.events),
		Normalized:    c.normalized,
		Rejected:      c.rejected,
		LastEventAt:   c.lastEventAt,
		LastSummaryAt: c.lastSummaryAt,
	}
}
