package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/V4T54L/tctk/internal/domain"
)

// SSEMessage is one rate sample pushed to connected clients.
type SSEMessage struct {
	Rate  float64        `json:"rate"`
	Kinds map[string]int `json:"kinds"`
}

// SSEBroker manages SSE client connections and broadcasts chat event rates.
type SSEBroker struct {
	logger   *slog.Logger
	clients  map[chan []byte]struct{}
	mu       sync.RWMutex
	events   chan domain.EventKind
	interval time.Duration
}

// NewSSEBroker creates a new SSEBroker and starts its processing loop.
func NewSSEBroker(ctx context.Context, logger *slog.Logger) *SSEBroker {
	return newSSEBroker(ctx, logger, time.Second)
}

func newSSEBroker(ctx context.Context, logger *slog.Logger, interval time.Duration) *SSEBroker {
	broker := &SSEBroker{
		logger:   logger,
		clients:  make(map[chan []byte]struct{}),
		events:   make(chan domain.EventKind, 1000),
		interval: interval,
	}
	go broker.run(ctx)
	return broker
}

// ServeHTTP handles new client connections for the SSE stream.
func (b *SSEBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	messageChan := make(chan []byte, 4)
	b.addClient(messageChan)
	defer b.removeClient(messageChan)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messageChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// ReportEvent counts one dispatched chat event. It never blocks.
func (b *SSEBroker) ReportEvent(kind domain.EventKind) {
	select {
	case b.events <- kind:
	default:
		b.logger.Warn("SSE event channel is full, dropping report", "kind", kind)
	}
}

// Clients returns the number of connected clients.
func (b *SSEBroker) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *SSEBroker) addClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
	b.logger.Info("SSE client connected")
}

func (b *SSEBroker) removeClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
		b.logger.Info("SSE client disconnected")
	}
}

func (b *SSEBroker) broadcast(msg []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- msg:
		default:
			// slow client, skip this sample
		}
	}
}

func (b *SSEBroker) run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	kinds := make(map[string]int)
	total := 0
	lastTimestamp := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case kind := <-b.events:
			kinds[string(kind)]++
			total++
		case <-ticker.C:
			now := time.Now()
			rate := 0.0
			if elapsed := now.Sub(lastTimestamp).Seconds(); elapsed > 0 {
				rate = float64(total) / elapsed
			}

			jsonData, err := json.Marshal(SSEMessage{Rate: rate, Kinds: kinds})
			if err != nil {
				b.logger.Error("failed to marshal SSE message", "error", err)
				continue
			}
			b.broadcast(jsonData)

			lastTimestamp = now
			total = 0
			kinds = make(map[string]int)
		}
	}
}
