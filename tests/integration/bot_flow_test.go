package integration

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/V4T54L/tctk/internal/adapter/repository/activitylog"
	"github.com/V4T54L/tctk/internal/adapter/repository/sqlite"
	"github.com/V4T54L/tctk/internal/bot"
	"github.com/V4T54L/tctk/internal/domain"
	"github.com/V4T54L/tctk/internal/domain/mocks"
	"github.com/V4T54L/tctk/internal/pkg/config"
	"github.com/V4T54L/tctk/internal/usecase"
)

type chanSource struct {
	ch chan domain.Event
}

func (s *chanSource) Events() <-chan domain.Event { return s.ch }

func message(at time.Time, user, text string) domain.Event {
	return domain.Event{
		Kind:       domain.EventMessage,
		Channel:    "thestreameast",
		ReceivedAt: at,
		Payload:    domain.ChatMessage{Text: text, User: domain.ChatUser{Name: user, DisplayName: user}},
	}
}

// TestBotFlow drives the bot with a scripted chat: a raffle is opened,
// joined and closed while every event is recorded in the activity log.
func TestBotFlow(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	dir := t.TempDir()
	activity, err := activitylog.New(activitylog.Options{
		Dir:        dir,
		FlushEvery: time.Hour,
		Logger:     logger,
	})
	require.NoError(t, err)

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.RunMigrations())
	raffles := sqlite.NewRaffleRepository(db)

	cfg := config.DefaultFile()
	registry := bot.NewRegistry()
	registry.Register(usecase.FeatureActivityLog, func() (domain.Feature, error) {
		return usecase.NewActivityLogFeature(activity, nil, nil, logger), nil
	})
	registry.Register(usecase.FeatureRaffleTracker, func() (domain.Feature, error) {
		return usecase.NewRaffleFeature(raffles, cfg.Raffle, logger)
	})
	registry.Register(usecase.FeatureResponder, func() (domain.Feature, error) {
		return usecase.NewResponderFeature(cfg.Responder.TriggerText, cfg.Responder.TriggerUsername, cfg.Responder.ResponseText, logger)
	})

	features, err := registry.Build([]string{"activity_log", "raffle_tracker", "responder"})
	require.NoError(t, err)

	source := &chanSource{ch: make(chan domain.Event, 16)}
	sender := &mocks.MockChannelSender{}
	chatBot := bot.New("thestreameast", source, sender, logger, nil)
	chatBot.Use(features...)

	start := time.Unix(1_700_000_000, 0)
	script := []domain.Event{
		{Kind: domain.EventReady, Channel: "thestreameast", ReceivedAt: start},
		message(start.Add(1*time.Second), "horse_person00", "a Multi-Raffle has begun for 1000 EastCoin, it will end in 60 Seconds"),
		message(start.Add(2*time.Second), "alice", "Glerp"),
		message(start.Add(3*time.Second), "bob", "Glerp"),
		message(start.Add(4*time.Second), "horse_person00", "!blastin"),
		message(start.Add(5*time.Second), "horse_person00", "The Multi-Raffle has ended! alice and bob won 500 EastCoin each"),
	}
	for _, evt := range script {
		source.ch <- evt
	}
	close(source.ch)

	require.NoError(t, chatBot.Run(ctx))

	// replies: join command after the announcement, then the responder
	sent := sender.Messages()
	require.Len(t, sent, 2)
	require.Regexp(t, `^Glerp [0-9a-f]{4}$`, sent[0].Text)
	require.Equal(t, time.Second, sent[0].Delay)
	require.Regexp(t, `^s! h! gunR p! ABOBA s! gunR [0-9a-f]{4}$`, sent[1].Text)

	stored, err := raffles.ListRaffles(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, 1000, stored[0].Amount)
	require.ElementsMatch(t, []string{"alice", "bob"}, stored[0].Winners)

	entries, err := raffles.ListEntries(ctx, stored[0].ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.True(t, e.DidWin, "entry %s", e.Username)
	}

	// the bot stopped the activity log feature, which wrote the final snapshot
	files, err := activitylog.ListLogFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)

	snapshots, err := activitylog.ReadLogFile(files[0].Path)
	require.NoError(t, err)
	require.Equal(t, domain.ReasonInitFile, snapshots[0].UpdateReason)
	last := snapshots[len(snapshots)-1]
	require.Equal(t, domain.ReasonNormalServiceShutdown, last.UpdateReason)
	require.NotNil(t, last.EndTime)

	records := activitylog.Records(snapshots)
	require.Len(t, records, len(script))
	require.Equal(t, "ready", records[0].Kind)
	require.Equal(t, float64(start.Unix()), records[0].Timestamp)
	require.Equal(t, "message", records[2].Kind)
	payload := records[2].Payload.(map[string]any)
	require.Equal(t, "Glerp", payload["text"])

	// writes after shutdown are rejected
	require.Error(t, activity.Add("message", 1, nil))
}
