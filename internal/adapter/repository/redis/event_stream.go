package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/tctk/internal/adapter/metrics"
	"github.com/V4T54L/tctk/internal/domain"
)

const (
	DefaultStreamKey    = "chat_events"
	DefaultDLQStreamKey = "chat_events_dlq"

	payloadField = "payload"
	readBlock    = 2 * time.Second
)

// ErrUnavailable is returned by writes while the health check considers
// Redis down.
var ErrUnavailable = errors.New("redis is unavailable")

// EventStreamRepository implements domain.EventStreamRepository on a Redis
// stream. Each entry carries the JSON encoded event in its payload field.
type EventStreamRepository struct {
	client       *redis.Client
	logger       *slog.Logger
	metrics      *metrics.BotMetrics
	streamKey    string
	dlqStreamKey string
	group        string
	isAvailable  atomic.Bool
}

// NewEventStreamRepository creates the repository. When group is not empty
// the consumer group is created (with the stream) if missing.
func NewEventStreamRepository(client *redis.Client, logger *slog.Logger, m *metrics.BotMetrics, streamKey, dlqStreamKey, group string) *EventStreamRepository {
	if streamKey == "" {
		streamKey = DefaultStreamKey
	}
	if dlqStreamKey == "" {
		dlqStreamKey = DefaultDLQStreamKey
	}
	repo := &EventStreamRepository{
		client:       client,
		logger:       logger.With("component", "redis_event_stream", "stream", streamKey),
		metrics:      m,
		streamKey:    streamKey,
		dlqStreamKey: dlqStreamKey,
		group:        group,
	}
	repo.setAvailable(true)

	if err := repo.setupConsumerGroup(context.Background()); err != nil {
		repo.setAvailable(false)
		repo.logger.Error("failed to setup consumer group, redis may be unavailable on startup", "error", err)
	}
	return repo
}

// StreamKey is the key of the event stream.
func (r *EventStreamRepository) StreamKey() string { return r.streamKey }

// DLQStreamKey is the key of the dead-letter stream.
func (r *EventStreamRepository) DLQStreamKey() string { return r.dlqStreamKey }

// Available reports the last known connectivity.
func (r *EventStreamRepository) Available() bool { return r.isAvailable.Load() }

// StartHealthCheck pings Redis every interval until ctx is done and flips
// availability accordingly.
func (r *EventStreamRepository) StartHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("starting redis health check", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping redis health check")
			return
		case <-ticker.C:
			if err := r.client.Ping(ctx).Err(); err != nil {
				if r.isAvailable.CompareAndSwap(true, false) {
					r.setAvailable(false)
					r.logger.Error("redis connection lost", "error", err)
				}
				continue
			}
			if r.isAvailable.CompareAndSwap(false, true) {
				r.setAvailable(true)
				r.logger.Info("redis connection recovered")
				if err := r.setupConsumerGroup(ctx); err != nil {
					r.logger.Error("failed to setup consumer group after recovery", "error", err)
				}
			}
		}
	}
}

func (r *EventStreamRepository) setAvailable(ok bool) {
	r.isAvailable.Store(ok)
	if r.metrics != nil {
		if ok {
			r.metrics.StreamAvailable.Set(1)
		} else {
			r.metrics.StreamAvailable.Set(0)
		}
	}
}

func (r *EventStreamRepository) setupConsumerGroup(ctx context.Context) error {
	if r.group == "" {
		return nil
	}
	err := r.client.XGroupCreateMkStream(ctx, r.streamKey, r.group, "0").Err()
	if err != nil && !isRedisBusyGroupError(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// BufferEvent adds an event to the stream.
func (r *EventStreamRepository) BufferEvent(ctx context.Context, event domain.StreamEvent) error {
	if !r.isAvailable.Load() {
		return fmt.Errorf("%w, dropping event %s", ErrUnavailable, event.ID)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal chat event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: r.streamKey,
		Values: map[string]interface{}{payloadField: payload},
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		if isNetworkError(err) && r.isAvailable.CompareAndSwap(true, false) {
			r.setAvailable(false)
			r.logger.Error("redis connection lost during write", "error", err)
		}
		return fmt.Errorf("failed to XADD to redis stream: %w", err)
	}
	return nil
}

// ReadEventBatch reads new events for a consumer of the group.
func (r *EventStreamRepository) ReadEventBatch(ctx context.Context, group, consumer string, count int) ([]domain.StreamEvent, error) {
	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{r.streamKey, ">"},
		Count:    int64(count),
		Block:    readBlock,
	}

	streams, err := r.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP from redis: %w", err)
	}
	if len(streams) == 0 {
		return nil, nil
	}
	return decodeMessages(streams[0].Messages, r.logger), nil
}

// AcknowledgeEvents acknowledges processed messages.
func (r *EventStreamRepository) AcknowledgeEvents(ctx context.Context, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := r.client.XAck(ctx, r.streamKey, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to XACK messages in redis: %w", err)
	}
	return nil
}

// MoveToDLQ copies events to the dead-letter stream with their origin.
func (r *EventStreamRepository) MoveToDLQ(ctx context.Context, events []domain.StreamEvent) error {
	if len(events) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			r.logger.Error("failed to marshal event for DLQ", "event_id", event.ID, "error", err)
			continue
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: r.dlqStreamKey,
			Values: map[string]interface{}{
				payloadField:      payload,
				"original_stream": r.streamKey,
				"original_msg_id": event.StreamMessageID,
				"failed_at":       time.Now().UTC().Format(time.RFC3339),
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute DLQ pipeline: %w", err)
	}
	r.logger.Warn("moved events to DLQ", "count", len(events))
	return nil
}

// decodeMessages turns stream entries into events, skipping malformed ones.
func decodeMessages(messages []redis.XMessage, logger *slog.Logger) []domain.StreamEvent {
	events := make([]domain.StreamEvent, 0, len(messages))
	for _, msg := range messages {
		payload, ok := msg.Values[payloadField].(string)
		if !ok {
			logger.Warn("invalid message format in stream, skipping", "message_id", msg.ID)
			continue
		}
		var event domain.StreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			logger.Warn("failed to unmarshal chat event from stream, skipping", "message_id", msg.ID, "error", err)
			continue
		}
		event.StreamMessageID = msg.ID
		events = append(events, event)
	}
	return events
}

func isRedisBusyGroupError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded)
}

func isNoSuchKeyError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "ERR no such key")
}
