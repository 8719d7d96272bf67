package usecase

import (
	"context"
	"time"

	"github.com/V4T54L/tctk/internal/domain"
)

const defaultPendingCount = 100

// AdminStreamUseCase exposes the chat event stream to operators.
type AdminStreamUseCase struct {
	repo      domain.StreamAdminRepository
	stream    string
	dlqStream string
}

// NewAdminStreamUseCase creates a new AdminStreamUseCase.
func NewAdminStreamUseCase(repo domain.StreamAdminRepository, stream, dlqStream string) *AdminStreamUseCase {
	return &AdminStreamUseCase{repo: repo, stream: stream, dlqStream: dlqStream}
}

// StreamInfo returns the lengths of the event and dead-letter streams.
func (uc *AdminStreamUseCase) StreamInfo(ctx context.Context) (*domain.StreamInfo, error) {
	return uc.repo.GetStreamInfo(ctx, uc.stream, uc.dlqStream)
}

func (uc *AdminStreamUseCase) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	return uc.repo.GetGroupInfo(ctx, uc.resolve(stream))
}

func (uc *AdminStreamUseCase) GetConsumerInfo(ctx context.Context, stream, group string) ([]domain.ConsumerInfo, error) {
	return uc.repo.GetConsumerInfo(ctx, uc.resolve(stream), group)
}

func (uc *AdminStreamUseCase) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	return uc.repo.GetPendingSummary(ctx, uc.resolve(stream), group)
}

func (uc *AdminStreamUseCase) GetPendingMessages(ctx context.Context, stream, group, consumer string, startID string, count int64) ([]domain.PendingMessageDetail, error) {
	if startID == "" {
		startID = "-"
	}
	if count <= 0 {
		count = defaultPendingCount
	}
	return uc.repo.GetPendingMessages(ctx, uc.resolve(stream), group, consumer, startID, count)
}

func (uc *AdminStreamUseCase) ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]domain.StreamEvent, error) {
	return uc.repo.ClaimMessages(ctx, uc.resolve(stream), group, consumer, minIdleTime, messageIDs)
}

func (uc *AdminStreamUseCase) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	return uc.repo.TrimStream(ctx, uc.resolve(stream), maxLen)
}

// resolve maps the "events" and "dlq" aliases to the configured stream keys.
func (uc *AdminStreamUseCase) resolve(stream string) string {
	switch stream {
	case "events", "":
		return uc.stream
	case "dlq":
		return uc.dlqStream
	}
	return stream
}
