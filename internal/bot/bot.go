// Package bot dispatches chat events to feature handlers.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/V4T54L/tctk/internal/adapter/metrics"
	"github.com/V4T54L/tctk/internal/domain"
)

const stopTimeout = 10 * time.Second

type binding struct {
	feature string
	handle  domain.Handler
}

// ChatBot owns the subscription table. Events are dispatched one at a time in
// emission order; a failing handler never stops the loop.
type ChatBot struct {
	channel  string
	source   domain.EventSource
	sender   domain.ChannelSender
	logger   *slog.Logger
	metrics  *metrics.BotMetrics
	subs     map[domain.EventKind][]binding
	features []domain.Feature
}

// New creates a bot for one channel.
func New(channel string, source domain.EventSource, sender domain.ChannelSender, logger *slog.Logger, m *metrics.BotMetrics) *ChatBot {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatBot{
		channel: channel,
		source:  source,
		sender:  sender,
		logger:  logger.With("component", "chat_bot", "channel", channel),
		metrics: m,
		subs:    make(map[domain.EventKind][]binding),
	}
}

// Subscribe registers h for kind on behalf of feature.
func (b *ChatBot) Subscribe(feature string, kind domain.EventKind, h domain.Handler) {
	b.subs[kind] = append(b.subs[kind], binding{feature: feature, handle: h})
}

// Use registers every subscription of the given features.
func (b *ChatBot) Use(features ...domain.Feature) {
	for _, f := range features {
		b.features = append(b.features, f)
		for _, s := range f.Subscriptions() {
			b.Subscribe(f.Name(), s.Kind, s.Handle)
		}
	}
}

// Run starts the features, dispatches events until the source is drained or
// ctx is done, then stops the features in reverse order.
func (b *ChatBot) Run(ctx context.Context) error {
	started := 0
	for _, f := range b.features {
		if s, ok := f.(domain.Starter); ok {
			if err := s.Start(ctx); err != nil {
				b.stop(b.features[:started])
				return fmt.Errorf("failed to start feature %s: %w", f.Name(), err)
			}
		}
		started++
	}
	defer b.stop(b.features)

	b.logger.Info("bot is running", "features", len(b.features))
	events := b.source.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				b.logger.Info("event source closed")
				return nil
			}
			b.Dispatch(ctx, evt)
		}
	}
}

// Dispatch delivers evt to every handler subscribed to its kind.
func (b *ChatBot) Dispatch(ctx context.Context, evt domain.Event) {
	for _, s := range b.subs[evt.Kind] {
		if err := b.invoke(ctx, s, evt); err != nil {
			if b.metrics != nil {
				b.metrics.HandlerErrorsTotal.WithLabelValues(s.feature, string(evt.Kind)).Inc()
			}
			var he *HandlerError
			if errors.As(err, &he) {
				b.logger.Error("feature handler failed", he.LogAttrs()...)
			}
		}
	}
}

func (b *ChatBot) invoke(ctx context.Context, s binding, evt domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{
				Feature: s.feature,
				Kind:    evt.Kind,
				Err:     fmt.Errorf("panic: %v", r),
				Panic:   true,
				Stack:   string(debug.Stack()),
			}
		}
	}()
	if herr := s.handle(ctx, evt, b.sender); herr != nil {
		return &HandlerError{Feature: s.feature, Kind: evt.Kind, Err: herr}
	}
	return nil
}

func (b *ChatBot) stop(features []domain.Feature) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	for i := len(features) - 1; i >= 0; i-- {
		f := features[i]
		if s, ok := f.(domain.Stopper); ok {
			if err := s.Stop(ctx); err != nil {
				b.logger.Error("failed to stop feature", "feature", f.Name(), "error", err)
			}
		}
	}
}

// HandlerError describes a failed or panicking handler invocation.
type HandlerError struct {
	Feature string
	Kind    domain.EventKind
	Err     error
	Panic   bool
	Stack   string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("feature %s failed on %s event: %v", e.Feature, e.Kind, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// LogAttrs returns the context of the failure as slog key/value pairs.
func (e *HandlerError) LogAttrs() []any {
	attrs := []any{
		"feature", e.Feature,
		"event_kind", e.Kind,
		"error", e.Err.Error(),
		"error_type", fmt.Sprintf("%T", e.Err),
	}
	if e.Panic {
		attrs = append(attrs, "panic", true, "stack", e.Stack)
	}
	return attrs
}
