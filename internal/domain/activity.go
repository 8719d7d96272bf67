package domain

import (
	"encoding/json"
	"fmt"
)

// UpdateReason records why a LogFile snapshot was written.
type UpdateReason string

const (
	ReasonInitFile              UpdateReason = "INIT_FILE"
	ReasonRegularUpdate         UpdateReason = "REGULAR_UPDATE"
	ReasonMaxSizeReached        UpdateReason = "MAX_SIZE_REACHED"
	ReasonNormalServiceShutdown UpdateReason = "NORMAL_SERVICE_SHUTDOWN"
	ReasonOSSignal              UpdateReason = "OS_SIGNAL"
)

// Valid reports whether r is one of the known reasons.
func (r UpdateReason) Valid() bool {
	switch r {
	case ReasonInitFile, ReasonRegularUpdate, ReasonMaxSizeReached, ReasonNormalServiceShutdown, ReasonOSSignal:
		return true
	}
	return false
}

// ActivityRecord is one logged event. On disk it is the array
// [event_kind, timestamp, payload].
type ActivityRecord struct {
	Kind      string
	Timestamp float64
	Payload   any
}

func (r ActivityRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{r.Kind, r.Timestamp, r.Payload})
}

func (r *ActivityRecord) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("activity record: expected 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &r.Kind); err != nil {
		return fmt.Errorf("activity record kind: %w", err)
	}
	if err := json.Unmarshal(raw[1], &r.Timestamp); err != nil {
		return fmt.Errorf("activity record timestamp: %w", err)
	}
	if err := json.Unmarshal(raw[2], &r.Payload); err != nil {
		return fmt.Errorf("activity record payload: %w", err)
	}
	return nil
}

// LogFile is one snapshot of a rotation epoch. Every write to an activity
// file appends one LogFile object. All times are Unix seconds.
type LogFile struct {
	StartTime       int64            `json:"start_time"`
	LastUpdatedTime int64            `json:"last_updated_time"`
	UpdateReason    UpdateReason     `json:"update_reason"`
	OSSignal        string           `json:"os_signal,omitempty"`
	EndTime         *int64           `json:"end_time,omitempty"`
	Activity        []ActivityRecord `json:"activity"`
}

// ActivityFileInfo describes an activity file on disk.
type ActivityFileInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	StartTime int64  `json:"start_time"`
	Size      int64  `json:"size"`
}

// ActivityStatus is a point-in-time view of the current LogFile.
type ActivityStatus struct {
	Path            string       `json:"path"`
	StartTime       int64        `json:"start_time"`
	LastUpdatedTime int64        `json:"last_updated_time"`
	UpdateReason    UpdateReason `json:"update_reason"`
	Pending         int          `json:"pending"`
	Closed          bool         `json:"closed"`
}
