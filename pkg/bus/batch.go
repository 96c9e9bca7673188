package bus

import (
	"strconv"

	"wadigest/pkg/message"
)

// BatchEvent describes one normalized history batch of a chat.
func BatchEvent(chatID string, result message.Result) Event {
	payload := map[string]string{
		"processed":           strconv.Itoa(result.Processed),
		"accepted":            strconv.Itoa(result.Accepted),
		"rejected":            strconv.Itoa(result.Rejected),
		"extraction_failures": strconv.Itoa(result.ExtractionFailures),
	}
	for reason, count := range result.RejectedByReason {
		payload["reason."+reason.String()] = strconv.Itoa(count)
	}

	return Event{
		Type:    EventBatchNormalized,
		Channel: "greenapi",
		ChatID:  chatID,
		Payload: payload,
	}
}

func payloadInt(payload map[string]string, key string) int64 {
	value, err := strconv.ParseInt(payload[key], 10, 64)
	if err != nil {
		return 0
	}
	return value
}
