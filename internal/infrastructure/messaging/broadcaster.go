// Package messaging provides the concrete implementation of the SSE broadcaster.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
)

// ErrTooManyClients is returned by AddClient when the subscriber cap is reached.
var ErrTooManyClients = errors.New("too many tail clients")

// clientBuffer is the per-subscriber backlog before messages are dropped.
const clientBuffer = 32

// SSEBroadcaster fans captured payloads out to every tail subscriber.
type SSEBroadcaster struct {
	clients    map[chan string]struct{}
	maxClients int
	mu         sync.Mutex
	logger     *logging.ChanneledLogger
}

// NewSSEBroadcaster creates a broadcaster. maxClients <= 0 means unlimited.
func NewSSEBroadcaster(maxClients int, logger *logging.ChanneledLogger) *SSEBroadcaster {
	return &SSEBroadcaster{
		clients:    make(map[chan string]struct{}),
		maxClients: maxClients,
		logger:     logger,
	}
}

// AddClient registers a new subscriber.
func (b *SSEBroadcaster) AddClient() (chan string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxClients > 0 && len(b.clients) >= b.maxClients {
		return nil, ErrTooManyClients
	}
	ch := make(chan string, clientBuffer)
	b.clients[ch] = struct{}{}

	b.logger.Collector().Debug("Tail client registered", "clients", len(b.clients))
	return ch, nil
}

// RemoveClient unregisters and closes a subscriber channel.
func (b *SSEBroadcaster) RemoveClient(ch chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[ch]; !ok {
		return
	}
	delete(b.clients, ch)
	close(ch)
	b.logger.Collector().Debug("Tail client unregistered", "clients", len(b.clients))
}

// ClientCount returns the number of subscribers.
func (b *SSEBroadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Broadcast sends one SSE frame to every subscriber. Slow subscribers lose
// the frame instead of blocking the sender.
func (b *SSEBroadcaster) Broadcast(event string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Collector().Error("Panic recovered in Broadcast", "error", r, "event", event)
		}
	}()

	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Collector().Error("Failed to encode broadcast payload", "event", event, "error", err.Error())
		return
	}
	message := FormatFrame(event, data)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.Collector().Debug("Broadcasting", "message", strings.ReplaceAll(message, "\n", "\\n"), "clients", len(b.clients))
	for ch := range b.clients {
		select {
		case ch <- message:
		default:
			b.logger.Collector().Warn("Tail channel full, message dropped", "event", event)
		}
	}
}

// FormatFrame renders one server-sent event frame.
func FormatFrame(event string, data []byte) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}
