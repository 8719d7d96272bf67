package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/V4T54L/tctk/internal/domain"
	"github.com/V4T54L/tctk/internal/domain/mocks"
)

func TestProcessEventsUseCase_ProcessBatch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	testEvents := []domain.StreamEvent{
		{ID: "1", StreamMessageID: "msg1", Kind: domain.EventMessage},
		{ID: "2", StreamMessageID: "msg2", Kind: domain.EventJoin},
	}

	t.Run("Successful Processing", func(t *testing.T) {
		streamRepo := &mocks.MockEventStreamRepository{ReadBatchResult: testEvents}
		archiveRepo := &mocks.MockEventArchiveRepository{}
		uc := NewProcessEventsUseCase(streamRepo, archiveRepo, logger, "group", "consumer", 3, time.Millisecond)

		count, err := uc.ProcessBatch(context.Background())

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if count != len(testEvents) {
			t.Errorf("expected processed count to be %d, got %d", len(testEvents), count)
		}
		if len(archiveRepo.WrittenEvents) != 2 {
			t.Errorf("expected 2 events archived, got %d", len(archiveRepo.WrittenEvents))
		}
		if len(streamRepo.AckedMessageIDs) != 2 || streamRepo.AckedMessageIDs[0] != "msg1" {
			t.Errorf("unexpected acked ids %v", streamRepo.AckedMessageIDs)
		}
		if len(streamRepo.DLQEvents) != 0 {
			t.Errorf("expected 0 events in DLQ, got %d", len(streamRepo.DLQEvents))
		}
	})

	t.Run("Archive Failure with Retry and DLQ", func(t *testing.T) {
		streamRepo := &mocks.MockEventStreamRepository{ReadBatchResult: testEvents}
		archiveRepo := &mocks.MockEventArchiveRepository{WriteErr: errors.New("database is down")}
		uc := NewProcessEventsUseCase(streamRepo, archiveRepo, logger, "group", "consumer", 2, time.Millisecond)

		count, err := uc.ProcessBatch(context.Background())

		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if count != 0 {
			t.Errorf("expected processed count to be 0, got %d", count)
		}
		if archiveRepo.WriteCalls != 2 {
			t.Errorf("expected 2 write attempts, got %d", archiveRepo.WriteCalls)
		}
		if len(streamRepo.DLQEvents) != 2 {
			t.Errorf("expected 2 events in DLQ, got %d", len(streamRepo.DLQEvents))
		}
		if len(streamRepo.AckedMessageIDs) != 2 {
			t.Errorf("expected 2 messages to be acked, got %d", len(streamRepo.AckedMessageIDs))
		}
	})

	t.Run("DLQ Failure leaves events pending", func(t *testing.T) {
		streamRepo := &mocks.MockEventStreamRepository{ReadBatchResult: testEvents, DLQErr: errors.New("redis down")}
		archiveRepo := &mocks.MockEventArchiveRepository{WriteErr: errors.New("database is down")}
		uc := NewProcessEventsUseCase(streamRepo, archiveRepo, logger, "group", "consumer", 1, time.Millisecond)

		if _, err := uc.ProcessBatch(context.Background()); err == nil {
			t.Fatal("expected an error, got nil")
		}
		if len(streamRepo.AckedMessageIDs) != 0 {
			t.Errorf("expected no acks, got %v", streamRepo.AckedMessageIDs)
		}
	})

	t.Run("Stream Read Error", func(t *testing.T) {
		streamRepo := &mocks.MockEventStreamRepository{ReadErr: errors.New("redis connection failed")}
		uc := NewProcessEventsUseCase(streamRepo, &mocks.MockEventArchiveRepository{}, logger, "group", "consumer", 3, time.Millisecond)

		count, err := uc.ProcessBatch(context.Background())

		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if count != 0 {
			t.Errorf("expected processed count to be 0, got %d", count)
		}
	})

	t.Run("No Events to Process", func(t *testing.T) {
		streamRepo := &mocks.MockEventStreamRepository{ReadBatchResult: []domain.StreamEvent{}}
		archiveRepo := &mocks.MockEventArchiveRepository{}
		uc := NewProcessEventsUseCase(streamRepo, archiveRepo, logger, "group", "consumer", 3, time.Millisecond)

		count, err := uc.ProcessBatch(context.Background())

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if count != 0 {
			t.Errorf("expected processed count to be 0, got %d", count)
		}
		if archiveRepo.WriteCalls != 0 {
			t.Error("archive should not be called with no events")
		}
	})
}
