package twitch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/V4T54L/tctk/internal/adapter/metrics"
)

// DefaultMessagesPer30s is the chat service's limit for regular users.
const DefaultMessagesPer30s = 20

// MessageWriter is the part of Client the Sender needs.
type MessageWriter interface {
	SendMessage(ctx context.Context, channel, text string) error
}

// Sender is a domain.ChannelSender bound to one channel. Messages are rate
// limited; a positive delay schedules the send on its own goroutine.
type Sender struct {
	writer  MessageWriter
	channel string
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.BotMetrics

	wg sync.WaitGroup
}

// NewSender creates a Sender allowing perThirtySeconds messages per 30s.
func NewSender(writer MessageWriter, channel string, perThirtySeconds int, logger *slog.Logger, m *metrics.BotMetrics) *Sender {
	if perThirtySeconds <= 0 {
		perThirtySeconds = DefaultMessagesPer30s
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		writer:  writer,
		channel: channel,
		limiter: rate.NewLimiter(rate.Every(30*time.Second/time.Duration(perThirtySeconds)), 1),
		logger:  logger.With("component", "channel_sender", "channel", channel),
		metrics: m,
	}
}

// Send writes text to the channel. With delay > 0 it returns immediately
// and the message is sent later unless ctx is cancelled first.
func (s *Sender) Send(ctx context.Context, text string, delay time.Duration) error {
	if delay <= 0 {
		return s.send(ctx, text)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			s.logger.Debug("dropping delayed message, context done", "text", text)
			s.count("dropped")
			return
		case <-t.C:
		}
		if err := s.send(ctx, text); err != nil {
			s.logger.Error("delayed send failed", "error", err, "text", text)
		}
	}()
	return nil
}

// Wait blocks until scheduled sends have finished.
func (s *Sender) Wait() {
	s.wg.Wait()
}

func (s *Sender) send(ctx context.Context, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		s.count("dropped")
		return err
	}
	if err := s.writer.SendMessage(ctx, s.channel, text); err != nil {
		s.count("failed")
		return err
	}
	s.count("sent")
	s.logger.Debug("sent chat message", "text", text)
	return nil
}

func (s *Sender) count(status string) {
	if s.metrics != nil {
		s.metrics.MessagesSentTotal.WithLabelValues(status).Inc()
	}
}
