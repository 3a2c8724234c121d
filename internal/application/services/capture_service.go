package services

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/security"
)

// Capture is one payload received by the development collector.
type Capture struct {
	ID         string    `json:"id"`
	Endpoint   string    `json:"endpoint"`
	EventName  string    `json:"event_name,omitempty"`
	VisitorID  string    `json:"visitor_id"`
	Key        string    `json:"key"`
	ReceivedAt time.Time `json:"received_at"`
	Payload    any       `json:"payload"`
}

// CaptureService keeps the most recent captures in a ring and forwards each
// one to tail subscribers.
type CaptureService struct {
	mu          sync.RWMutex
	recent      []Capture
	next        int
	total       int
	limit       int
	broadcaster messaging.Broadcaster
	clock       clock.Clock
	logger      *logging.ChanneledLogger
}

// NewCaptureService creates a capture service holding up to limit captures.
func NewCaptureService(limit int, broadcaster messaging.Broadcaster, clk clock.Clock, logger *logging.ChanneledLogger) *CaptureService {
	if limit <= 0 {
		limit = 1
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &CaptureService{
		recent:      make([]Capture, 0, limit),
		limit:       limit,
		broadcaster: broadcaster,
		clock:       clk,
		logger:      logger,
	}
}

// Record stores a capture and broadcasts it.
func (s *CaptureService) Record(endpoint, eventName, visitorID, key string, payload any) Capture {
	capture := Capture{
		ID:         security.GenerateULID(),
		Endpoint:   endpoint,
		EventName:  eventName,
		VisitorID:  visitorID,
		Key:        key,
		ReceivedAt: s.clock.Now().UTC(),
		Payload:    payload,
	}

	s.mu.Lock()
	if len(s.recent) < s.limit {
		s.recent = append(s.recent, capture)
	} else {
		s.recent[s.next] = capture
	}
	s.next = (s.next + 1) % s.limit
	s.total++
	s.mu.Unlock()

	s.logger.Collector().Info("Captured payload",
		"endpoint", endpoint,
		"event", eventName,
		"visitorId", logging.SanitizeID(visitorID))

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(endpointEvent(endpoint), capture)
	}
	return capture
}

// Recent returns up to n captures, newest first. n <= 0 returns all retained.
func (s *CaptureService) Recent(n int) []Capture {
	s.mu.RLock()
	defer s.mu.RUnlock()

	size := len(s.recent)
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Capture, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.next - i + s.limit) % s.limit
		out = append(out, s.recent[idx])
	}
	return out
}

// Total returns how many payloads were captured since start.
func (s *CaptureService) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

func endpointEvent(endpoint string) string {
	if len(endpoint) > 0 && endpoint[0] == '/' {
		return endpoint[1:]
	}
	return endpoint
}
