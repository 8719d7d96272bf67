package usecase

import (
	"context"

	"github.com/V4T54L/tctk/internal/domain"
)

const FeatureEventRate = "event_rate"

// EventReporter counts dispatched events, for live rate displays.
type EventReporter interface {
	ReportEvent(kind domain.EventKind)
}

// EventRateFeature forwards every chat event kind to an EventReporter.
type EventRateFeature struct {
	reporter EventReporter
}

func NewEventRateFeature(reporter EventReporter) *EventRateFeature {
	return &EventRateFeature{reporter: reporter}
}

func (f *EventRateFeature) Name() string { return FeatureEventRate }

func (f *EventRateFeature) Subscriptions() []domain.Subscription {
	subs := make([]domain.Subscription, 0, len(domain.AllEventKinds))
	for _, kind := range domain.AllEventKinds {
		subs = append(subs, domain.Subscription{Kind: kind, Handle: f.report})
	}
	return subs
}

func (f *EventRateFeature) report(_ context.Context, evt domain.Event, _ domain.ChannelSender) error {
	f.reporter.ReportEvent(evt.Kind)
	return nil
}
