package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/tctk/internal/adapter/metrics"
	"github.com/V4T54L/tctk/internal/domain"
)

const (
	defaultBatchSize    = 500
	defaultRetryCount   = 3
	defaultRetryBackoff = 1 * time.Second
)

// ProcessEventsUseCase moves mirrored chat events from the stream into the
// archive. Batches that keep failing are parked in the dead-letter stream.
type ProcessEventsUseCase struct {
	streamRepo   domain.EventStreamRepository
	archiveRepo  domain.EventArchiveRepository
	logger       *slog.Logger
	metrics      *metrics.BotMetrics
	group        string
	consumer     string
	retryCount   int
	retryBackoff time.Duration
}

// NewProcessEventsUseCase creates the archive use case.
func NewProcessEventsUseCase(streamRepo domain.EventStreamRepository, archiveRepo domain.EventArchiveRepository, logger *slog.Logger, group, consumer string, retryCount int, retryBackoff time.Duration) *ProcessEventsUseCase {
	if retryCount <= 0 {
		retryCount = defaultRetryCount
	}
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}
	return &ProcessEventsUseCase{
		streamRepo:   streamRepo,
		archiveRepo:  archiveRepo,
		logger:       logger.With("component", "event_archiver", "group", group, "consumer", consumer),
		group:        group,
		consumer:     consumer,
		retryCount:   retryCount,
		retryBackoff: retryBackoff,
	}
}

// WithMetrics attaches archive counters.
func (uc *ProcessEventsUseCase) WithMetrics(m *metrics.BotMetrics) *ProcessEventsUseCase {
	uc.metrics = m
	return uc
}

// ProcessBatch reads a batch, writes it to the archive and acknowledges it.
// It returns the number of archived events.
func (uc *ProcessEventsUseCase) ProcessBatch(ctx context.Context) (int, error) {
	events, err := uc.streamRepo.ReadEventBatch(ctx, uc.group, uc.consumer, defaultBatchSize)
	if err != nil {
		uc.logger.Error("failed to read event batch from stream", "error", err)
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	uc.logger.Debug("read batch of events from stream", "count", len(events))

	if err := uc.writeWithRetry(ctx, events); err != nil {
		uc.logger.Error("failed to archive event batch after retries, moving to DLQ", "error", err, "count", len(events))
		if dlqErr := uc.streamRepo.MoveToDLQ(ctx, events); dlqErr != nil {
			// left pending; the batch is redelivered after a claim
			uc.logger.Error("failed to move events to DLQ", "error", dlqErr)
			return 0, dlqErr
		}
		uc.count("dlq", len(events))
		if ackErr := uc.ack(ctx, events); ackErr != nil {
			return 0, ackErr
		}
		return 0, err
	}

	if err := uc.ack(ctx, events); err != nil {
		// archived but not acked; the upsert absorbs the redelivery
		return 0, err
	}
	uc.count("archived", len(events))
	uc.logger.Info("archived event batch", "count", len(events))
	return len(events), nil
}

// Run processes batches until ctx is done, pausing after empty reads and
// errors.
func (uc *ProcessEventsUseCase) Run(ctx context.Context, idle time.Duration) {
	for {
		n, err := uc.ProcessBatch(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil && n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(idle):
		}
	}
}

func (uc *ProcessEventsUseCase) ack(ctx context.Context, events []domain.StreamEvent) error {
	ids := make([]string, len(events))
	for i, event := range events {
		ids[i] = event.StreamMessageID
	}
	if err := uc.streamRepo.AcknowledgeEvents(ctx, uc.group, ids...); err != nil {
		uc.logger.Error("failed to acknowledge events in stream", "error", err)
		return err
	}
	return nil
}

func (uc *ProcessEventsUseCase) writeWithRetry(ctx context.Context, events []domain.StreamEvent) error {
	var lastErr error
	for i := 0; i < uc.retryCount; i++ {
		err := uc.archiveRepo.WriteEventBatch(ctx, events)
		if err == nil {
			return nil
		}
		lastErr = err
		uc.logger.Warn("failed to write batch to archive, retrying", "attempt", i+1, "error", err)
		select {
		case <-time.After(uc.retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (uc *ProcessEventsUseCase) count(status string, n int) {
	if uc.metrics != nil {
		uc.metrics.ArchivedEventsTotal.WithLabelValues(status).Add(float64(n))
	}
}
