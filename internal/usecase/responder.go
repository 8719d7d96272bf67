package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/V4T54L/tctk/internal/domain"
)

const FeatureResponder = "responder"

// ResponderFeature answers a trigger phrase, optionally only from one user.
type ResponderFeature struct {
	triggerText     string
	triggerUsername string
	responseText    string
	logger          *slog.Logger
}

// NewResponderFeature creates the feature. An empty triggerUsername accepts
// the trigger from anyone.
func NewResponderFeature(triggerText, triggerUsername, responseText string, logger *slog.Logger) (*ResponderFeature, error) {
	if triggerText == "" || responseText == "" {
		return nil, fmt.Errorf("responder needs trigger and response text")
	}
	return &ResponderFeature{
		triggerText:     triggerText,
		triggerUsername: triggerUsername,
		responseText:    responseText,
		logger:          logger.With("component", FeatureResponder),
	}, nil
}

func (f *ResponderFeature) Name() string { return FeatureResponder }

func (f *ResponderFeature) Subscriptions() []domain.Subscription {
	return []domain.Subscription{{Kind: domain.EventMessage, Handle: f.onMessage}}
}

func (f *ResponderFeature) onMessage(ctx context.Context, evt domain.Event, sender domain.ChannelSender) error {
	msg, ok := chatMessage(evt)
	if !ok || !strings.Contains(msg.Text, f.triggerText) {
		return nil
	}
	if f.triggerUsername != "" && !strings.EqualFold(msg.User.Name, f.triggerUsername) {
		return nil
	}
	f.logger.Info("trigger seen, responding", "user", msg.User.Name)
	return sender.Send(ctx, unique(f.responseText), 0)
}

// unique appends a random 4 digit hex suffix so repeated messages are not
// rejected as duplicates by the chat service.
func unique(s string) string {
	return fmt.Sprintf("%s %04x", s, rand.IntN(1<<16))
}

func chatMessage(evt domain.Event) (domain.ChatMessage, bool) {
	switch m := evt.Payload.(type) {
	case domain.ChatMessage:
		return m, true
	case *domain.ChatMessage:
		if m != nil {
			return *m, true
		}
	}
	return domain.ChatMessage{}, false
}
