package pii

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/V4T54L/tctk/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor masks configured keys in serialized chat payloads.
type Redactor struct {
	fieldsToRedact map[string]struct{}
	logger         *slog.Logger
}

// NewRedactor creates a Redactor for the given keys. Keys are matched
// case-insensitively at any depth.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		fieldSet[field] = struct{}{}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
}

// Enabled reports whether any key is configured.
func (r *Redactor) Enabled() bool {
	return r != nil && len(r.fieldsToRedact) > 0
}

// RedactTree masks matching keys in a tree built from map[string]any and
// []any, as produced by the serializer. Maps are modified in place. It
// reports whether anything was masked.
func (r *Redactor) RedactTree(tree any) bool {
	if !r.Enabled() {
		return false
	}
	return r.walk(tree)
}

func (r *Redactor) walk(node any) bool {
	redacted := false
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			if _, ok := r.fieldsToRedact[strings.ToLower(k)]; ok {
				v[k] = RedactedPlaceholder
				redacted = true
				continue
			}
			if r.walk(child) {
				redacted = true
			}
		}
	case []any:
		for _, child := range v {
			if r.walk(child) {
				redacted = true
			}
		}
	}
	return redacted
}

// Redact masks matching keys in the event payload.
func (r *Redactor) Redact(event *domain.StreamEvent) error {
	if !r.Enabled() || len(event.Payload) == 0 {
		return nil
	}

	var payload any
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		r.logger.Warn("failed to unmarshal payload for PII redaction", "error", err, "event_id", event.ID)
		return err
	}

	if !r.walk(payload) {
		return nil
	}
	event.PIIRedacted = true
	modified, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("failed to marshal payload after PII redaction", "error", err, "event_id", event.ID)
		return err
	}
	event.Payload = modified
	return nil
}
