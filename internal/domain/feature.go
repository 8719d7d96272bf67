package domain

import (
	"context"
	"time"
)

// ChannelSender sends text into the channel the bot is joined to.
// A positive delay schedules the message and returns immediately.
type ChannelSender interface {
	Send(ctx context.Context, text string, delay time.Duration) error
}

// EventSource delivers chat events in emission order.
type EventSource interface {
	Events() <-chan Event
}

// Handler reacts to a single chat event.
type Handler func(ctx context.Context, evt Event, sender ChannelSender) error

// Subscription binds a handler to an event kind.
type Subscription struct {
	Kind   EventKind
	Handle Handler
}

// Feature is a pluggable unit of bot behaviour.
type Feature interface {
	Name() string
	Subscriptions() []Subscription
}

// Starter is implemented by features that need setup before events flow.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by features that need teardown on exit.
type Stopper interface {
	Stop(ctx context.Context) error
}
