package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/tctk/internal/adapter/pii"
	"github.com/V4T54L/tctk/internal/domain"
	"github.com/V4T54L/tctk/internal/pkg/serialize"
)

const FeatureActivityLog = "activity_log"

// ActivityLogFeature records every chat event with the activity recorder.
type ActivityLogFeature struct {
	recorder   domain.ActivityRecorder
	serializer *serialize.Serializer
	redactor   *pii.Redactor
	logger     *slog.Logger
	now        func() time.Time
}

// NewActivityLogFeature creates the feature. redactor may be nil.
func NewActivityLogFeature(recorder domain.ActivityRecorder, serializer *serialize.Serializer, redactor *pii.Redactor, logger *slog.Logger) *ActivityLogFeature {
	if serializer == nil {
		serializer = serialize.New(logger)
	}
	return &ActivityLogFeature{
		recorder:   recorder,
		serializer: serializer,
		redactor:   redactor,
		logger:     logger.With("component", FeatureActivityLog),
		now:        time.Now,
	}
}

func (f *ActivityLogFeature) Name() string { return FeatureActivityLog }

func (f *ActivityLogFeature) Subscriptions() []domain.Subscription {
	subs := make([]domain.Subscription, 0, len(domain.AllEventKinds))
	for _, kind := range domain.AllEventKinds {
		subs = append(subs, domain.Subscription{Kind: kind, Handle: f.record})
	}
	return subs
}

func (f *ActivityLogFeature) Start(ctx context.Context) error {
	f.logger.Info("recording chat activity")
	return nil
}

// Stop performs the terminal write.
func (f *ActivityLogFeature) Stop(ctx context.Context) error {
	return f.recorder.Close()
}

func (f *ActivityLogFeature) record(ctx context.Context, evt domain.Event, _ domain.ChannelSender) error {
	at := evt.ReceivedAt
	if at.IsZero() {
		at = f.now()
	}
	tree := f.serializer.Serialize(evt.Payload)
	if f.redactor.RedactTree(tree) {
		f.logger.Debug("redacted activity payload", "kind", evt.Kind)
	}
	f.logger.Debug("chat activity", "kind", evt.Kind, "channel", evt.Channel, "at", at.Format(time.DateTime))
	return f.recorder.Add(string(evt.Kind), float64(at.UnixNano())/1e9, tree)
}
