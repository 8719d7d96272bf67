package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/tctk/internal/domain"
	"github.com/V4T54L/tctk/internal/pkg/config"
)

const (
	FeatureRaffleTracker = "raffle_tracker"

	winnersPlaceholder = "{winners}"
	usernamePattern    = `\w{3,24}`
	joinReplyDelay     = time.Second
)

// RaffleFeature follows the raffles run by the raffle bot: it joins each one
// and stores the entrants and winners when it closes.
type RaffleFeature struct {
	repo        domain.RaffleRepository
	botUsername string
	joinCommand string
	logger      *slog.Logger
	now         func() time.Time

	openRe     *regexp.Regexp
	durationRe *regexp.Regexp
	closeRe    *regexp.Regexp
	joinRe     *regexp.Regexp
	oneRe      *regexp.Regexp
	twoRe      *regexp.Regexp
	manyRe     *regexp.Regexp

	mu     sync.Mutex
	active *domain.Raffle
}

// NewRaffleFeature compiles the patterns in cfg.
func NewRaffleFeature(repo domain.RaffleRepository, cfg config.RaffleConfig, logger *slog.Logger) (*RaffleFeature, error) {
	if cfg.BotUsername == "" || cfg.JoinCommand == "" {
		return nil, fmt.Errorf("raffle tracker needs bot_username and join_command")
	}
	f := &RaffleFeature{
		repo:        repo,
		botUsername: cfg.BotUsername,
		joinCommand: cfg.JoinCommand,
		logger:      logger.With("component", FeatureRaffleTracker),
		now:         time.Now,
	}

	var err error
	compile := func(name, pattern string) *regexp.Regexp {
		if err != nil {
			return nil
		}
		var re *regexp.Regexp
		re, err = regexp.Compile(pattern)
		if err != nil {
			err = fmt.Errorf("invalid raffle %s pattern %q: %w", name, pattern, err)
		}
		return re
	}
	f.openRe = compile("open", cfg.OpenPattern)
	f.durationRe = compile("duration", cfg.DurationPattern)
	f.closeRe = compile("close", cfg.ClosePattern)
	f.joinRe = compile("join", `(^| )`+regexp.QuoteMeta(cfg.JoinCommand)+`( |$)`)

	before, after, ok := strings.Cut(cfg.WinnersTemplate, winnersPlaceholder)
	if !ok {
		return nil, fmt.Errorf("raffle winners template must contain %s", winnersPlaceholder)
	}
	winners := func(inner string) string {
		return regexp.QuoteMeta(before) + inner + regexp.QuoteMeta(after)
	}
	u := usernamePattern
	f.oneRe = compile("one winner", winners(`(`+u+`)`))
	f.twoRe = compile("two winners", winners(`(`+u+`) and (`+u+`)`))
	f.manyRe = compile("many winners", winners(`(`+u+`(?:, `+u+`)+),? and (`+u+`)`))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RaffleFeature) Name() string { return FeatureRaffleTracker }

func (f *RaffleFeature) Subscriptions() []domain.Subscription {
	return []domain.Subscription{{Kind: domain.EventMessage, Handle: f.onMessage}}
}

// ActiveRaffle returns a copy of the open raffle, if any.
func (f *RaffleFeature) ActiveRaffle() (domain.Raffle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return domain.Raffle{}, false
	}
	cp := *f.active
	cp.Entrants = make(map[string]int64, len(f.active.Entrants))
	for k, v := range f.active.Entrants {
		cp.Entrants[k] = v
	}
	return cp, true
}

func (f *RaffleFeature) onMessage(ctx context.Context, evt domain.Event, sender domain.ChannelSender) error {
	msg, ok := chatMessage(evt)
	if !ok {
		return nil
	}
	fromBot := strings.EqualFold(msg.User.Name, f.botUsername)

	if fromBot && f.closeRe.MatchString(msg.Text) {
		if err := f.close(ctx, msg.Text); err != nil {
			return err
		}
	}
	if f.joinRe.MatchString(msg.Text) {
		f.join(msg.User.Name)
	}
	if fromBot && f.openRe.MatchString(msg.Text) {
		if err := f.open(evt.Channel, msg.Text); err != nil {
			return err
		}
		return sender.Send(ctx, unique(f.joinCommand), joinReplyDelay)
	}
	return nil
}

func (f *RaffleFeature) open(channel, text string) error {
	amount, err := firstInt(f.openRe, text)
	if err != nil {
		return fmt.Errorf("failed to read raffle amount: %w", err)
	}
	duration, err := firstInt(f.durationRe, text)
	if err != nil {
		f.logger.Warn("raffle duration not found", "text", text)
		duration = 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active != nil {
		f.logger.Warn("new raffle opened before the previous one closed", "raffle_id", f.active.ID)
	}
	f.active = &domain.Raffle{
		ID:        uuid.NewString(),
		Channel:   channel,
		StartTime: f.now().UTC(),
		Duration:  time.Duration(duration) * time.Second,
		Amount:    amount,
		Entrants:  make(map[string]int64),
	}
	f.logger.Info("raffle opened", "raffle_id", f.active.ID, "amount", amount, "duration_s", duration)
	return nil
}

func (f *RaffleFeature) join(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return
	}
	if _, ok := f.active.Entrants[username]; !ok {
		f.active.Entrants[username] = f.now().Unix()
	}
}

// close stores the active raffle with its winners.
func (f *RaffleFeature) close(ctx context.Context, text string) error {
	f.mu.Lock()
	raffle := f.active
	f.active = nil
	f.mu.Unlock()

	if raffle == nil {
		f.logger.Warn("raffle closed but none was open", "error", domain.ErrNoActiveRaffle)
		return nil
	}

	winners := f.ExtractWinners(text)
	if winners == nil {
		f.logger.Warn("could not extract raffle winners", "text", text, "raffle_id", raffle.ID)
	}
	raffle.Winners = winners
	closedAt := f.now().UTC()
	raffle.ClosedAt = &closedAt

	if err := f.repo.SaveRaffle(ctx, raffle); err != nil {
		return fmt.Errorf("failed to save raffle %s: %w", raffle.ID, err)
	}
	f.logger.Info("raffle closed", "raffle_id", raffle.ID, "entrants", len(raffle.Entrants), "winners", winners)
	return nil
}

// ExtractWinners returns the winners named in a close message, or nil.
func (f *RaffleFeature) ExtractWinners(text string) []string {
	if m := f.manyRe.FindStringSubmatch(text); m != nil {
		winners := strings.Split(m[1], ", ")
		return append(winners, m[2])
	}
	if m := f.twoRe.FindStringSubmatch(text); m != nil {
		return []string{m[1], m[2]}
	}
	if m := f.oneRe.FindStringSubmatch(text); m != nil {
		return []string{m[1]}
	}
	return nil
}

func firstInt(re *regexp.Regexp, text string) (int, error) {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, fmt.Errorf("pattern %q has no match", re.String())
	}
	return strconv.Atoi(m[1])
}
