package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/tctk/internal/adapter/metrics"
	"github.com/V4T54L/tctk/internal/adapter/pii"
	"github.com/V4T54L/tctk/internal/domain"
	"github.com/V4T54L/tctk/internal/pkg/serialize"
)

const FeatureStreamMirror = "stream_mirror"

// StreamMirrorFeature publishes every chat event to the event stream for
// archiving.
type StreamMirrorFeature struct {
	repo       domain.EventStreamRepository
	serializer *serialize.Serializer
	redactor   *pii.Redactor
	logger     *slog.Logger
	metrics    *metrics.BotMetrics
}

// NewStreamMirrorFeature creates the feature. redactor and m may be nil.
func NewStreamMirrorFeature(repo domain.EventStreamRepository, serializer *serialize.Serializer, redactor *pii.Redactor, logger *slog.Logger, m *metrics.BotMetrics) *StreamMirrorFeature {
	if serializer == nil {
		serializer = serialize.New(logger)
	}
	return &StreamMirrorFeature{
		repo:       repo,
		serializer: serializer,
		redactor:   redactor,
		logger:     logger.With("component", FeatureStreamMirror),
		metrics:    m,
	}
}

func (f *StreamMirrorFeature) Name() string { return FeatureStreamMirror }

func (f *StreamMirrorFeature) Subscriptions() []domain.Subscription {
	subs := make([]domain.Subscription, 0, len(domain.AllEventKinds))
	for _, kind := range domain.AllEventKinds {
		subs = append(subs, domain.Subscription{Kind: kind, Handle: f.mirror})
	}
	return subs
}

func (f *StreamMirrorFeature) mirror(ctx context.Context, evt domain.Event, _ domain.ChannelSender) error {
	payload, err := json.Marshal(f.serializer.Serialize(evt.Payload))
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", evt.Kind, err)
	}

	receivedAt := evt.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	event := domain.StreamEvent{
		ID:         uuid.NewString(),
		Kind:       evt.Kind,
		Channel:    evt.Channel,
		ReceivedAt: receivedAt.UTC(),
		Payload:    payload,
	}

	if err := f.redactor.Redact(&event); err != nil {
		f.logger.Warn("failed to redact PII, proceeding with original event", "error", err, "event_id", event.ID)
	}

	if err := f.repo.BufferEvent(ctx, event); err != nil {
		f.logger.Error("failed to buffer chat event", "error", err, "event_id", event.ID)
		f.count("failed")
		return err
	}
	f.count("buffered")
	return nil
}

func (f *StreamMirrorFeature) count(status string) {
	if f.metrics != nil {
		f.metrics.StreamEventsTotal.WithLabelValues(status).Inc()
	}
}
