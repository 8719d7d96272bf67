package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/tctk/internal/domain"
)

// AdminRepository implements domain.StreamAdminRepository for the chat
// event streams.
type AdminRepository struct {
	client *redis.Client
	logger *slog.Logger
}

// NewAdminRepository creates a new Redis admin repository.
func NewAdminRepository(client *redis.Client, logger *slog.Logger) *AdminRepository {
	return &AdminRepository{
		client: client,
		logger: logger.With("component", "redis_stream_admin"),
	}
}

// GetGroupInfo lists the consumer groups of a stream. A stream nobody has
// mirrored to yet has no groups.
func (r *AdminRepository) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	groups, err := r.client.XInfoGroups(ctx, stream).Result()
	if isNoSuchKeyError(err) {
		r.logger.Debug("stream does not exist yet", "stream", stream)
		return []domain.ConsumerGroupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group info for stream %s: %w", stream, err)
	}

	result := make([]domain.ConsumerGroupInfo, len(groups))
	for i, g := range groups {
		result[i] = domain.ConsumerGroupInfo{
			Name:            g.Name,
			Consumers:       g.Consumers,
			Pending:         g.Pending,
			LastDeliveredID: g.LastDeliveredID,
		}
	}
	return result, nil
}

// GetConsumerInfo lists the archivers of a group.
func (r *AdminRepository) GetConsumerInfo(ctx context.Context, stream, group string) ([]domain.ConsumerInfo, error) {
	consumers, err := r.client.XInfoConsumers(ctx, stream, group).Result()
	if isNoSuchKeyError(err) {
		return []domain.ConsumerInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer info for stream %s, group %s: %w", stream, group, err)
	}

	result := make([]domain.ConsumerInfo, len(consumers))
	for i, c := range consumers {
		result[i] = domain.ConsumerInfo{
			Name:    c.Name,
			Pending: c.Pending,
			Idle:    time.Duration(c.Idle) * time.Millisecond,
		}
	}
	return result, nil
}

// GetPendingSummary retrieves a summary of pending messages for a group.
func (r *AdminRepository) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	pending, err := r.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get pending summary for stream %s, group %s: %w", stream, group, err)
	}

	return pendingSummary(pending), nil
}

func pendingSummary(pending *redis.XPending) *domain.PendingMessageSummary {
	return &domain.PendingMessageSummary{
		Total:          pending.Count,
		FirstMessageID: pending.Lower,
		LastMessageID:  pending.Higher,
		ConsumerTotals: pending.Consumers,
	}
}

// GetPendingMessages retrieves detailed information about pending messages.
func (r *AdminRepository) GetPendingMessages(ctx context.Context, stream, group, consumer string, startID string, count int64) ([]domain.PendingMessageDetail, error) {
	messages, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   stream,
		Group:    group,
		Start:    startID,
		End:      "+",
		Count:    count,
		Consumer: consumer,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending events of %s/%s: %w", stream, group, err)
	}

	details := make([]domain.PendingMessageDetail, 0, len(messages))
	for _, m := range messages {
		details = append(details, domain.PendingMessageDetail{
			ID:         m.ID,
			Consumer:   m.Consumer,
			IdleTime:   m.Idle,
			RetryCount: m.RetryCount,
		})
	}
	return details, nil
}

// ClaimMessages moves pending messages to another consumer and returns the
// decoded events.
func (r *AdminRepository) ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]domain.StreamEvent, error) {
	if len(messageIDs) == 0 {
		return nil, errors.New("at least one message ID is required")
	}
	claimed, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdleTime,
		Messages: messageIDs,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim %d events for %s: %w", len(messageIDs), consumer, err)
	}
	r.logger.Info("claimed pending events", "stream", stream, "group", group, "consumer", consumer, "count", len(claimed))
	return decodeMessages(claimed, r.logger), nil
}

// TrimStream trims a stream to a maximum length.
func (r *AdminRepository) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	n, err := r.client.XTrimMaxLen(ctx, stream, maxLen).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to trim stream %s: %w", stream, err)
	}
	r.logger.Info("trimmed stream", "stream", stream, "maxlen", maxLen, "removed", n)
	return n, nil
}

// GetStreamInfo returns the lengths of the event and dead-letter streams.
func (r *AdminRepository) GetStreamInfo(ctx context.Context, stream, dlqStream string) (*domain.StreamInfo, error) {
	pipe := r.client.Pipeline()
	streamLen := pipe.XLen(ctx, stream)
	dlqLen := pipe.XLen(ctx, dlqStream)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read stream lengths: %w", err)
	}
	return &domain.StreamInfo{
		Stream:    stream,
		Length:    streamLen.Val(),
		DLQStream: dlqStream,
		DLQLength: dlqLen.Val(),
	}, nil
}
