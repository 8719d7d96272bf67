package domain

import (
	"context"
	"time"
)

// ActivityRecorder accepts activity records for persistence.
type ActivityRecorder interface {
	// Add buffers one record, flushing first when the flush interval elapsed.
	Add(kind string, timestamp float64, payload any) error

	// Close performs the terminal write with NORMAL_SERVICE_SHUTDOWN.
	Close() error
}

// EventStreamRepository buffers chat events in a durable stream and hands
// them out to consumer groups.
type EventStreamRepository interface {
	// BufferEvent adds a single event to the stream.
	BufferEvent(ctx context.Context, event StreamEvent) error

	// ReadEventBatch reads a batch of events for a specific consumer.
	ReadEventBatch(ctx context.Context, group, consumer string, count int) ([]StreamEvent, error)

	// AcknowledgeEvents marks stream messages as processed.
	AcknowledgeEvents(ctx context.Context, group string, messageIDs ...string) error

	// MoveToDLQ parks events that could not be archived.
	MoveToDLQ(ctx context.Context, events []StreamEvent) error
}

// EventArchiveRepository is the long-term sink for mirrored events.
type EventArchiveRepository interface {
	WriteEventBatch(ctx context.Context, events []StreamEvent) error
}

// RaffleRepository stores finished raffles and their entrants.
type RaffleRepository interface {
	// SaveRaffle stores the raffle and one UserRaffle row per entrant.
	SaveRaffle(ctx context.Context, raffle *Raffle) error

	// ListRaffles returns the most recent raffles, newest first.
	ListRaffles(ctx context.Context, limit int) ([]Raffle, error)

	// ListEntries returns the participation rows of one raffle.
	ListEntries(ctx context.Context, raffleID string) ([]UserRaffle, error)
}

// StreamAdminRepository exposes stream administration operations.
type StreamAdminRepository interface {
	GetGroupInfo(ctx context.Context, stream string) ([]ConsumerGroupInfo, error)
	GetConsumerInfo(ctx context.Context, stream, group string) ([]ConsumerInfo, error)
	GetPendingSummary(ctx context.Context, stream, group string) (*PendingMessageSummary, error)
	GetPendingMessages(ctx context.Context, stream, group, consumer, startID string, count int64) ([]PendingMessageDetail, error)
	ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]StreamEvent, error)
	TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error)
	GetStreamInfo(ctx context.Context, stream, dlqStream string) (*StreamInfo, error)
}
