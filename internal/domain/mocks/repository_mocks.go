package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/V4T54L/tctk/internal/domain"
)

// MockEventStreamRepository is a mock implementation of domain.EventStreamRepository for testing.
type MockEventStreamRepository struct {
	mu              sync.Mutex
	BufferedEvents  []domain.StreamEvent
	AckedMessageIDs []string
	DLQEvents       []domain.StreamEvent
	ReadBatchResult []domain.StreamEvent
	BufferErr       error
	ReadErr         error
	AckErr          error
	DLQErr          error
}

func (m *MockEventStreamRepository) BufferEvent(ctx context.Context, event domain.StreamEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BufferErr != nil {
		return m.BufferErr
	}
	m.BufferedEvents = append(m.BufferedEvents, event)
	return nil
}

func (m *MockEventStreamRepository) ReadEventBatch(ctx context.Context, group, consumer string, count int) ([]domain.StreamEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.ReadBatchResult, nil
}

func (m *MockEventStreamRepository) AcknowledgeEvents(ctx context.Context, group string, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedMessageIDs = append(m.AckedMessageIDs, messageIDs...)
	return nil
}

func (m *MockEventStreamRepository) MoveToDLQ(ctx context.Context, events []domain.StreamEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DLQErr != nil {
		return m.DLQErr
	}
	m.DLQEvents = append(m.DLQEvents, events...)
	return nil
}

// Buffered returns a copy of the buffered events.
func (m *MockEventStreamRepository) Buffered() []domain.StreamEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.StreamEvent(nil), m.BufferedEvents...)
}

// MockEventArchiveRepository is a mock implementation of domain.EventArchiveRepository.
type MockEventArchiveRepository struct {
	mu            sync.Mutex
	WrittenEvents []domain.StreamEvent
	WriteCalls    int
	WriteErr      error
}

func (m *MockEventArchiveRepository) WriteEventBatch(ctx context.Context, events []domain.StreamEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteCalls++
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.WrittenEvents = append(m.WrittenEvents, events...)
	return nil
}

// MockRaffleRepository is an in-memory domain.RaffleRepository.
type MockRaffleRepository struct {
	mu      sync.Mutex
	Raffles []domain.Raffle
	SaveErr error
}

func (m *MockRaffleRepository) SaveRaffle(ctx context.Context, raffle *domain.Raffle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Raffles = append(m.Raffles, *raffle)
	return nil
}

func (m *MockRaffleRepository) ListRaffles(ctx context.Context, limit int) ([]domain.Raffle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Raffle, 0, len(m.Raffles))
	for i := len(m.Raffles) - 1; i >= 0; i-- {
		out = append(out, m.Raffles[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockRaffleRepository) ListEntries(ctx context.Context, raffleID string) ([]domain.UserRaffle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.UserRaffle
	for _, r := range m.Raffles {
		if r.ID != raffleID {
			continue
		}
		for name, joined := range r.Entrants {
			out = append(out, domain.UserRaffle{
				RaffleID:        r.ID,
				Username:        name,
				RaffleStartTime: r.StartTime,
				DidWin:          r.IsWinner(name),
				JoinTime:        joined,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinTime < out[j].JoinTime })
	return out, nil
}

// MockActivityRecorder records Add calls.
type MockActivityRecorder struct {
	mu      sync.Mutex
	Records []domain.ActivityRecord
	AddErr  error
	Closed  int
}

func (m *MockActivityRecorder) Add(kind string, timestamp float64, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddErr != nil {
		return m.AddErr
	}
	m.Records = append(m.Records, domain.ActivityRecord{Kind: kind, Timestamp: timestamp, Payload: payload})
	return nil
}

func (m *MockActivityRecorder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed++
	return nil
}

// SentMessage is one message captured by MockChannelSender.
type SentMessage struct {
	Text  string
	Delay time.Duration
}

// MockChannelSender captures sent messages instead of delivering them.
type MockChannelSender struct {
	mu      sync.Mutex
	Sent    []SentMessage
	SendErr error
}

func (m *MockChannelSender) Send(ctx context.Context, text string, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, SentMessage{Text: text, Delay: delay})
	return nil
}

// Messages returns a copy of the captured messages.
func (m *MockChannelSender) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Sent...)
}

// MockStreamAdminRepository records the stream keys it was asked about.
type MockStreamAdminRepository struct {
	mu       sync.Mutex
	Streams  []string
	Info     domain.StreamInfo
	Groups   []domain.ConsumerGroupInfo
	Pending  []domain.PendingMessageDetail
	Trimmed  int64
	Err      error
	LastArgs []any
}

func (m *MockStreamAdminRepository) record(stream string, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Streams = append(m.Streams, stream)
	m.LastArgs = args
	return m.Err
}

func (m *MockStreamAdminRepository) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	if err := m.record(stream); err != nil {
		return nil, err
	}
	return m.Groups, nil
}

func (m *MockStreamAdminRepository) GetConsumerInfo(ctx context.Context, stream, group string) ([]domain.ConsumerInfo, error) {
	if err := m.record(stream, group); err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *MockStreamAdminRepository) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	if err := m.record(stream, group); err != nil {
		return nil, err
	}
	return &domain.PendingMessageSummary{Total: int64(len(m.Pending))}, nil
}

func (m *MockStreamAdminRepository) GetPendingMessages(ctx context.Context, stream, group, consumer, startID string, count int64) ([]domain.PendingMessageDetail, error) {
	if err := m.record(stream, group, consumer, startID, count); err != nil {
		return nil, err
	}
	return m.Pending, nil
}

func (m *MockStreamAdminRepository) ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]domain.StreamEvent, error) {
	if err := m.record(stream, group, consumer, minIdleTime, messageIDs); err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *MockStreamAdminRepository) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	if err := m.record(stream, maxLen); err != nil {
		return 0, err
	}
	return m.Trimmed, nil
}

func (m *MockStreamAdminRepository) GetStreamInfo(ctx context.Context, stream, dlqStream string) (*domain.StreamInfo, error) {
	if err := m.record(stream, dlqStream); err != nil {
		return nil, err
	}
	info := m.Info
	info.Stream, info.DLQStream = stream, dlqStream
	return &info, nil
}
