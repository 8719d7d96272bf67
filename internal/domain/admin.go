package domain

import "time"

// StreamInfo summarises the chat event stream and its dead-letter stream.
type StreamInfo struct {
	Stream    string `json:"stream"`
	Length    int64  `json:"length"`
	DLQStream string `json:"dlq_stream"`
	DLQLength int64  `json:"dlq_length"`
}

// ConsumerGroupInfo describes a consumer group reading the event stream.
type ConsumerGroupInfo struct {
	Name            string `json:"name"`
	Consumers       int64  `json:"consumers"`
	Pending         int64  `json:"pending"`
	LastDeliveredID string `json:"last_delivered_id"`
}

// ConsumerInfo describes one archive consumer within a group.
type ConsumerInfo struct {
	Name    string        `json:"name"`
	Pending int64         `json:"pending"`
	Idle    time.Duration `json:"idle"`
}

// PendingMessageSummary summarises delivered but unacknowledged events.
type PendingMessageSummary struct {
	Total          int64            `json:"total"`
	FirstMessageID string           `json:"first_message_id,omitempty"`
	LastMessageID  string           `json:"last_message_id,omitempty"`
	ConsumerTotals map[string]int64 `json:"consumer_totals,omitempty"`
}

// PendingMessageDetail is one unacknowledged stream message.
type PendingMessageDetail struct {
	ID         string        `json:"id"`
	Consumer   string        `json:"consumer"`
	IdleTime   time.Duration `json:"idle_time"`
	RetryCount int64         `json:"retry_count"`
}
