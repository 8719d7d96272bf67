package redis

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/tctk/internal/domain"
)

func TestDecodeMessages(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	event := domain.StreamEvent{
		ID:         "e1",
		Kind:       domain.EventMessage,
		Channel:    "chan",
		ReceivedAt: time.Unix(1_700_000_000, 0).UTC(),
		Payload:    json.RawMessage(`{"text":"hi"}`),
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	messages := []redis.XMessage{
		{ID: "1-0", Values: map[string]interface{}{payloadField: string(encoded)}},
		{ID: "2-0", Values: map[string]interface{}{"data": "wrong field"}},
		{ID: "3-0", Values: map[string]interface{}{payloadField: "{not json"}},
	}

	events := decodeMessages(messages, logger)
	if len(events) != 1 {
		t.Fatalf("expected 1 decoded event, got %d", len(events))
	}
	got := events[0]
	if got.ID != "e1" || got.StreamMessageID != "1-0" || got.Kind != domain.EventMessage {
		t.Errorf("unexpected event %+v", got)
	}
	if string(got.Payload) != `{"text":"hi"}` {
		t.Errorf("unexpected payload %s", got.Payload)
	}
}

func TestErrorClassification(t *testing.T) {
	if !isRedisBusyGroupError(errors.New("BUSYGROUP Consumer Group name already exists")) {
		t.Error("expected BUSYGROUP to be recognised")
	}
	if isRedisBusyGroupError(errors.New("ERR no such key")) || isRedisBusyGroupError(nil) {
		t.Error("unexpected BUSYGROUP match")
	}
	if !isNoSuchKeyError(errors.New("ERR no such key")) || isNoSuchKeyError(nil) {
		t.Error("expected missing streams to be recognised")
	}
	if !isNetworkError(redis.ErrClosed) {
		t.Error("closed client is a network error")
	}
	if isNetworkError(errors.New("WRONGTYPE")) {
		t.Error("command errors are not network errors")
	}
}

func TestPendingSummary(t *testing.T) {
	got := pendingSummary(&redis.XPending{
		Count:     3,
		Lower:     "1-0",
		Higher:    "5-0",
		Consumers: map[string]int64{"archiver-a": 2, "archiver-b": 1},
	})
	if got.Total != 3 {
		t.Errorf("expected total 3, got %d", got.Total)
	}
	if got.FirstMessageID != "1-0" || got.LastMessageID != "5-0" {
		t.Errorf("unexpected id range %s..%s", got.FirstMessageID, got.LastMessageID)
	}
	if got.ConsumerTotals["archiver-a"] != 2 || got.ConsumerTotals["archiver-b"] != 1 {
		t.Errorf("unexpected consumer totals %v", got.ConsumerTotals)
	}
}
