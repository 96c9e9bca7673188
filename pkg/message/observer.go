package message

import (
	"context"
	"log/slog"
	"sort"
)

type EventType string

const (
	EventDetected         EventType = "detected"
	EventAccepted         EventType = "accepted"
	EventRejected         EventType = "rejected"
	EventExtractionFailed EventType = "extraction_failed"
	EventBatchCompleted   EventType = "batch_completed"
)

// Event is one diagnostic notification from a Normalize call. Keys is only
// populated in debug mode.
type Event struct {
	Type      EventType
	Index     int
	MessageID string
	Kind      Kind
	Decision  Decision
	Keys      []string
	Err       error
	Debug     bool
	Result    *Result
}

// Observer receives normalization events. Implementations must not block.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(event Event) { f(event) }

type multiObserver []Observer

func (m multiObserver) Observe(event Event) {
	for _, o := range m {
		o.Observe(event)
	}
}

// MultiObserver fans events out to every non-nil observer.
func MultiObserver(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// LogObserver writes events to logger. Per-record rejections are only
// surfaced at info level when the batch runs in debug mode.
func LogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "message.normalizer")

	return ObserverFunc(func(event Event) {
		switch event.Type {
		case EventDetected:
			logger.Debug("message kind detected", "index", event.Index, "message_id", event.MessageID, "kind", event.Kind.String(), "keys", event.Keys)
		case EventAccepted:
			logger.Debug("message accepted", "index", event.Index, "message_id", event.MessageID, "kind", event.Kind.String())
		case EventRejected:
			level := slog.LevelDebug
			if event.Debug {
				level = slog.LevelInfo
			}
			attrs := []any{"index", event.Index, "message_id", event.MessageID, "kind", event.Kind.String(), "reason", event.Decision.Reason.String()}
			if event.Keys != nil {
				attrs = append(attrs, "keys", event.Keys)
			}
			if event.Err != nil {
				attrs = append(attrs, "error", event.Err)
			}
			logger.Log(context.Background(), level, "message rejected", attrs...)
		case EventExtractionFailed:
			logger.Warn("message extraction failed", "index", event.Index, "message_id", event.MessageID, "kind", event.Kind.String(), "keys", event.Keys, "error", event.Err)
		case EventBatchCompleted:
			logBatch(logger, event.Result)
		}
	})
}

func logBatch(logger *slog.Logger, result *Result) {
	if result == nil {
		return
	}
	logger.Info("message batch normalized",
		"processed", result.Processed,
		"accepted", result.Accepted,
		"rejected", result.Rejected,
		"extraction_failures", result.ExtractionFailures,
	)
	if result.Rejected == 0 {
		return
	}

	ranked := make([]Kind, 0, len(result.RejectedByKind))
	for k := range result.RejectedByKind {
		ranked = append(ranked, k)
	}
	sort.Slice(ranked, func(i, j int) bool {
		ci, cj := result.RejectedByKind[ranked[i]], result.RejectedByKind[ranked[j]]
		if ci != cj {
			return ci > cj
		}
		return ranked[i] < ranked[j]
	})
	for _, k := range ranked {
		logger.Info("rejected message kind", "kind", k.String(), "count", result.RejectedByKind[k])
	}

	if result.Processed > 0 && result.Accepted == 0 {
		logger.Warn("all messages in batch were rejected", "processed", result.Processed)
	}
}
