package usecase

import (
	"context"
	"testing"

	"github.com/V4T54L/tctk/internal/domain/mocks"
)

func TestAdminStreamUseCase(t *testing.T) {
	repo := &mocks.MockStreamAdminRepository{}
	uc := NewAdminStreamUseCase(repo, "chat_events", "chat_events_dlq")
	ctx := context.Background()

	t.Run("aliases resolve to configured streams", func(t *testing.T) {
		repo.Streams = nil
		_, _ = uc.GetGroupInfo(ctx, "events")
		_, _ = uc.GetGroupInfo(ctx, "dlq")
		_, _ = uc.GetGroupInfo(ctx, "other")
		want := []string{"chat_events", "chat_events_dlq", "other"}
		for i, w := range want {
			if repo.Streams[i] != w {
				t.Errorf("stream %d = %s, want %s", i, repo.Streams[i], w)
			}
		}
	})

	t.Run("pending defaults", func(t *testing.T) {
		if _, err := uc.GetPendingMessages(ctx, "events", "g", "", "", 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if repo.LastArgs[2] != "-" || repo.LastArgs[3] != int64(defaultPendingCount) {
			t.Errorf("unexpected defaults %v", repo.LastArgs)
		}
	})

	t.Run("stream info", func(t *testing.T) {
		repo.Info.Length = 7
		info, err := uc.StreamInfo(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.Stream != "chat_events" || info.DLQStream != "chat_events_dlq" || info.Length != 7 {
			t.Errorf("unexpected info %+v", info)
		}
	})
}
