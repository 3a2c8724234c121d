package services

import (
	"context"
	"sync"
	"time"

	"github.com/AtRiskMedia/zori-go/internal/domain/events"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
)

// DefaultComebackThreshold is the hidden duration that makes a return a comeback.
const DefaultComebackThreshold = 30 * time.Second

// EventEmitter is the part of the dispatcher the visibility tracker needs.
type EventEmitter interface {
	TrackEvent(ctx context.Context, name string, props map[string]any, click *events.ClickData) bool
	TrackEventPersistent(ctx context.Context, name string, props map[string]any) bool
}

// VisibilityService classifies hidden/visible transitions into engagement
// events. State is in memory only; threshold and mode are fixed at construction.
type VisibilityService struct {
	emitter            EventEmitter
	clock              clock.Clock
	comebackThreshold  time.Duration
	trackQuickSwitches bool
	logger             *logging.ChanneledLogger

	mu          sync.Mutex
	hiddenSince *time.Time
}

// NewVisibilityService creates a new visibility service
func NewVisibilityService(emitter EventEmitter, clk clock.Clock, comebackThreshold time.Duration, trackQuickSwitches bool, logger *logging.ChanneledLogger) *VisibilityService {
	return &VisibilityService{
		emitter:            emitter,
		clock:              clk,
		comebackThreshold:  comebackThreshold,
		trackQuickSwitches: trackQuickSwitches,
		logger:             logger,
	}
}

// Hidden reports whether the page is currently hidden.
func (s *VisibilityService) Hidden() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hiddenSince != nil
}

// OnHidden records the moment the page was hidden. A repeated notification
// keeps the original moment and emits nothing.
func (s *VisibilityService) OnHidden(ctx context.Context) {
	s.mu.Lock()
	transitioned := s.hiddenSince == nil
	if transitioned {
		now := s.clock.Now()
		s.hiddenSince = &now
	}
	s.mu.Unlock()

	if transitioned && s.trackQuickSwitches {
		s.emitter.TrackEvent(ctx, events.PageHidden, nil, nil)
	}
}

// OnVisible classifies the return from hidden.
func (s *VisibilityService) OnVisible(ctx context.Context) {
	duration, ok := s.takeHidden()
	if !ok {
		return
	}

	switch {
	case duration >= s.comebackThreshold:
		s.logger.Visibility().Debug("Comeback detected", "hiddenMs", duration.Milliseconds())
		s.emitter.TrackEvent(ctx, events.UserComeback, durationProps(duration), nil)
	case s.trackQuickSwitches:
		s.emitter.TrackEvent(ctx, events.PageVisible, durationProps(duration), nil)
	}
}

// OnUnload emits left_while_hidden when the page goes away while hidden. The
// send completes before OnUnload returns.
func (s *VisibilityService) OnUnload(ctx context.Context) {
	duration, ok := s.takeHidden()
	if !ok {
		return
	}
	s.emitter.TrackEventPersistent(ctx, events.LeftWhileHidden, durationProps(duration))
}

// takeHidden returns the hidden duration and resets the state.
func (s *VisibilityService) takeHidden() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hiddenSince == nil {
		return 0, false
	}
	duration := s.clock.Now().Sub(*s.hiddenSince)
	s.hiddenSince = nil
	if duration < 0 {
		duration = 0
	}
	return duration, true
}

func durationProps(d time.Duration) map[string]any {
	ms := d.Milliseconds()
	return map[string]any{
		"hidden_duration_ms":      ms,
		"hidden_duration_seconds": ms / 1000,
	}
}
