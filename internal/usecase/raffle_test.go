package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/V4T54L/tctk/internal/domain"
	"github.com/V4T54L/tctk/internal/domain/mocks"
	"github.com/V4T54L/tctk/internal/pkg/config"
)

func newTestRaffleFeature(t *testing.T, repo domain.RaffleRepository) (*RaffleFeature, *time.Time) {
	t.Helper()
	f, err := NewRaffleFeature(repo, config.DefaultFile().Raffle, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewRaffleFeature() error = %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	f.now = func() time.Time { return now }
	return f, &now
}

func chatEvent(user, text string) domain.Event {
	return domain.Event{
		Kind:    domain.EventMessage,
		Channel: "thestreameast",
		Payload: domain.ChatMessage{Text: text, User: domain.ChatUser{Name: user}},
	}
}

func TestRaffleFeature_FullRaffle(t *testing.T) {
	repo := &mocks.MockRaffleRepository{}
	sender := &mocks.MockChannelSender{}
	f, now := newTestRaffleFeature(t, repo)
	ctx := context.Background()

	steps := []domain.Event{
		chatEvent("alice", "Glerp"),
		chatEvent("Horse_Person00", "a Multi-Raffle has begun for 5000 EastCoin, it will end in 120 Seconds. Type Glerp to join"),
		chatEvent("alice", "Glerp"),
		chatEvent("bob", "hello Glerp there"),
		chatEvent("carol", "Glerpy"),
		chatEvent("alice", "Glerp"),
	}
	for _, evt := range steps {
		if err := f.onMessage(ctx, evt, sender); err != nil {
			t.Fatalf("onMessage() error = %v", err)
		}
		*now = now.Add(time.Second)
	}

	active, ok := f.ActiveRaffle()
	if !ok {
		t.Fatal("expected an active raffle")
	}
	if active.Amount != 5000 || active.Duration != 120*time.Second {
		t.Errorf("unexpected raffle %+v", active)
	}
	wantEntrants := map[string]int64{"alice": 1_700_000_002, "bob": 1_700_000_003}
	if !reflect.DeepEqual(active.Entrants, wantEntrants) {
		t.Errorf("entrants = %v, want %v", active.Entrants, wantEntrants)
	}

	msgs := sender.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one join reply, got %v", msgs)
	}
	if !regexp.MustCompile(`^Glerp [0-9a-f]{4}$`).MatchString(msgs[0].Text) || msgs[0].Delay != time.Second {
		t.Errorf("unexpected join reply %+v", msgs[0])
	}

	if err := f.onMessage(ctx, chatEvent("horse_person00", "The Multi-Raffle has ended! alice won 5000 EastCoin"), sender); err != nil {
		t.Fatalf("close error = %v", err)
	}
	if _, ok := f.ActiveRaffle(); ok {
		t.Error("raffle should be closed")
	}
	if len(repo.Raffles) != 1 {
		t.Fatalf("expected 1 saved raffle, got %d", len(repo.Raffles))
	}
	saved := repo.Raffles[0]
	if !reflect.DeepEqual(saved.Winners, []string{"alice"}) || saved.ClosedAt == nil {
		t.Errorf("winners must be stored with the raffle, got %+v", saved)
	}
	if !saved.IsWinner("alice") || saved.IsWinner("bob") {
		t.Error("unexpected winner flags")
	}
}

func TestRaffleFeature_IgnoresOtherUsers(t *testing.T) {
	repo := &mocks.MockRaffleRepository{}
	sender := &mocks.MockChannelSender{}
	f, _ := newTestRaffleFeature(t, repo)

	_ = f.onMessage(context.Background(), chatEvent("impostor", "a Multi-Raffle has begun for 10 EastCoin, it will end in 5 Seconds"), sender)
	if _, ok := f.ActiveRaffle(); ok {
		t.Error("only the raffle bot may open raffles")
	}
	if len(sender.Messages()) != 0 {
		t.Error("no reply expected")
	}

	_ = f.onMessage(context.Background(), chatEvent("horse_person00", "The Multi-Raffle has ended! bob won"), sender)
	if len(repo.Raffles) != 0 {
		t.Error("closing without an open raffle must not store anything")
	}
}

func TestRaffleFeature_SaveError(t *testing.T) {
	repo := &mocks.MockRaffleRepository{SaveErr: errors.New("disk full")}
	f, _ := newTestRaffleFeature(t, repo)
	sender := &mocks.MockChannelSender{}
	ctx := context.Background()

	_ = f.onMessage(ctx, chatEvent("horse_person00", "a Multi-Raffle has begun for 10 EastCoin, it will end in 5 Seconds"), sender)
	err := f.onMessage(ctx, chatEvent("horse_person00", "The Multi-Raffle has ended! bob won"), sender)
	if err == nil || !errors.Is(err, repo.SaveErr) {
		t.Errorf("expected save error, got %v", err)
	}
}

func TestRaffleFeature_ExtractWinners(t *testing.T) {
	f, _ := newTestRaffleFeature(t, &mocks.MockRaffleRepository{})

	tests := []struct {
		text string
		want []string
	}{
		{"The Multi-Raffle has ended! alice won", []string{"alice"}},
		{"The Multi-Raffle has ended! alice and bob_2 won", []string{"alice", "bob_2"}},
		{"The Multi-Raffle has ended! alice, bob, carol and dave won", []string{"alice", "bob", "carol", "dave"}},
		{"The Multi-Raffle has ended! alice, bob, and carol won", []string{"alice", "bob", "carol"}},
		{"The Multi-Raffle has ended! nobody? won", nil},
		{"something else entirely", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := f.ExtractWinners(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractWinners() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewRaffleFeature_InvalidConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultFile().Raffle

	bad := cfg
	bad.OpenPattern = "("
	if _, err := NewRaffleFeature(nil, bad, logger); err == nil {
		t.Error("expected error for invalid pattern")
	}

	bad = cfg
	bad.WinnersTemplate = "no placeholder"
	if _, err := NewRaffleFeature(nil, bad, logger); err == nil {
		t.Error("expected error for template without placeholder")
	}

	bad = cfg
	bad.JoinCommand = ""
	if _, err := NewRaffleFeature(nil, bad, logger); err == nil {
		t.Error("expected error for missing join command")
	}
}
