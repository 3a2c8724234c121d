package services

import (
	"context"
	"sync"
	"time"

	"github.com/AtRiskMedia/zori-go/internal/domain/events"
	"github.com/AtRiskMedia/zori-go/internal/domain/faults"
	"github.com/AtRiskMedia/zori-go/internal/domain/page"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/persistence/store"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/transport"
)

// DispatchService builds envelopes and hands them to the transport.
//
// Delivery is best effort: each dispatch runs in its own goroutine on a context
// detached from the caller's cancellation, is never retried, and its outcome is
// only logged. Wait blocks until in-flight sends finish.
type DispatchService struct {
	consent   *ConsentService
	visitors  *VisitorService
	sessions  *SessionService
	pages     page.Provider
	transport transport.Transport
	ids       security.IDGenerator
	clock     clock.Clock
	store     *store.Adapter
	tracker   *performance.Tracker
	logger    *logging.ChanneledLogger

	mu      sync.Mutex
	pending int
	idle    chan struct{} // closed when pending drops to zero
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(
	consentSvc *ConsentService,
	visitors *VisitorService,
	sessions *SessionService,
	pages page.Provider,
	tr transport.Transport,
	ids security.IDGenerator,
	clk clock.Clock,
	st *store.Adapter,
	tracker *performance.Tracker,
	logger *logging.ChanneledLogger,
) *DispatchService {
	return &DispatchService{
		consent:   consentSvc,
		visitors:  visitors,
		sessions:  sessions,
		pages:     pages,
		transport: tr,
		ids:       ids,
		clock:     clk,
		store:     st,
		tracker:   tracker,
		logger:    logger,
	}
}

// SendEvent delivers one payload synchronously and reports success. Failures
// are logged, never returned.
func (s *DispatchService) SendEvent(ctx context.Context, endpoint, eventName string, payload any) bool {
	marker := s.tracker.StartOperation(endpoint, eventName)
	err := s.transport.Send(ctx, endpoint, payload)
	s.tracker.CompleteOperation(marker, err)

	s.logger.LogDelivery(endpoint, eventName, err == nil, marker.Duration)
	if err != nil {
		s.logger.Transport().Warn("Failed to send event",
			"endpoint", endpoint,
			"event", eventName,
			"error", err.Error())
		return false
	}
	return true
}

// TrackEvent records a named event. It returns false only when consent is
// denied; otherwise the envelope is dispatched and true is returned whatever
// the delivery outcome.
func (s *DispatchService) TrackEvent(ctx context.Context, name string, props map[string]any, click *events.ClickData) bool {
	env, ok := s.prepare(ctx, name, props, click)
	if !ok {
		return false
	}
	s.dispatch(ctx, events.EndpointIngest, name, env, nil)
	return true
}

// TrackEventPersistent is TrackEvent with a synchronous send, for events that
// must complete while the page tears down.
func (s *DispatchService) TrackEventPersistent(ctx context.Context, name string, props map[string]any) bool {
	env, ok := s.prepare(ctx, name, props, nil)
	if !ok {
		return false
	}
	s.begin()
	defer s.end()
	s.SendEvent(context.WithoutCancel(ctx), events.EndpointIngest, name, env)
	return true
}

// TrackPageView records a page_view carrying the page's title and address parts.
func (s *DispatchService) TrackPageView(ctx context.Context) bool {
	p := s.pages.Current()
	return s.TrackEvent(ctx, events.PageView, map[string]any{
		"page_title":  p.Title,
		"page_path":   p.Path(),
		"page_search": p.Search(),
		"page_hash":   p.Hash(),
	}, nil)
}

// TrackClick records a click on the described element.
func (s *DispatchService) TrackClick(ctx context.Context, click events.ClickData) bool {
	return s.TrackEvent(ctx, events.Click, nil, &click)
}

// IdentifyUser posts known identity fields to the identify endpoint and, once
// delivered, caches a snapshot locally.
func (s *DispatchService) IdentifyUser(ctx context.Context, userInfo map[string]any) (bool, error) {
	if userInfo == nil {
		return false, faults.Config("identify", "user info must be an object")
	}
	if !s.allowed(ctx) {
		return false, nil
	}

	visitorID := s.visitors.Resolve(ctx).ID
	sessionID := s.sessions.GetOrCreateSession(ctx)
	s.sessions.UpdateActivity(ctx)

	now := s.clock.Now()
	p := s.pages.Current()
	appID, email, fullname, rest := events.SplitUserInfo(userInfo)
	payload := events.IdentifyPayload{
		ClientGeneratedEventID: s.ids.EventID(),
		VisitorID:              visitorID,
		SessionID:              sessionID,
		ClientTimestampUTC:     events.FormatTimestamp(now),
		UserAgent:              p.UserAgent,
		PageURL:                p.Path(),
		Host:                   p.Host(),
		AppID:                  appID,
		Email:                  email,
		Fullname:               fullname,
		AdditionalProperties:   rest,
	}
	snapshot := events.IdentitySnapshot{
		VisitorID:    visitorID,
		AppID:        appID,
		Email:        email,
		Fullname:     fullname,
		IdentifiedAt: payload.ClientTimestampUTC,
	}

	s.dispatch(ctx, events.EndpointIdentify, "identify", payload, func(ctx context.Context) {
		s.store.SetJSON(ctx, store.KeyIdentify, snapshot)
	})
	return true, nil
}

// EmitSessionEvent is the session-event path: consent-gated, but it does not
// resolve or touch the session.
func (s *DispatchService) EmitSessionEvent(ctx context.Context, name, sessionID string, props map[string]any) {
	if !s.allowed(ctx) {
		return
	}
	env := s.envelope(name, s.visitors.Resolve(ctx).ID, sessionID)
	env.WithProperties(props)
	s.dispatch(ctx, events.EndpointIngest, name, env, nil)
}

// Wait blocks until every in-flight send has finished or ctx ends.
// Sends started while waiting extend the wait.
func (s *DispatchService) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.pending == 0 {
			s.mu.Unlock()
			return nil
		}
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *DispatchService) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == 0 {
		s.idle = make(chan struct{})
	}
	s.pending++
}

func (s *DispatchService) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	if s.pending == 0 {
		close(s.idle)
	}
}

// Stats returns the delivery statistics.
func (s *DispatchService) Stats() performance.Snapshot {
	return s.tracker.TakeSnapshot()
}

func (s *DispatchService) allowed(ctx context.Context) bool {
	if s.consent.HasTrackingConsent(ctx) {
		return true
	}
	s.tracker.RecordSuppressed()
	s.logger.Dispatch().Debug("Tracking suppressed by consent gate")
	return false
}

func (s *DispatchService) prepare(ctx context.Context, name string, props map[string]any, click *events.ClickData) (events.Envelope, bool) {
	if !s.allowed(ctx) {
		return events.Envelope{}, false
	}

	visitorID := s.visitors.Resolve(ctx).ID
	sessionID := s.sessions.GetOrCreateSession(ctx)
	if name == events.PageView {
		s.sessions.IncrementPageCount(ctx)
	} else {
		s.sessions.UpdateActivity(ctx)
	}

	env := s.envelope(name, visitorID, sessionID)
	env.WithClick(click)
	env.WithProperties(props)
	return env, true
}

func (s *DispatchService) envelope(name, visitorID, sessionID string) events.Envelope {
	p := s.pages.Current()
	return events.Envelope{
		EventName:              name,
		ClientGeneratedEventID: s.ids.EventID(),
		VisitorID:              visitorID,
		SessionID:              sessionID,
		ClientTimestampUTC:     events.FormatTimestamp(s.clock.Now()),
		UserAgent:              p.UserAgent,
		Referrer:               p.ReferrerOrNil(),
		PageURL:                p.Path(),
		Host:                   p.Host(),
		UTMParameters:          p.UTMParameters(),
	}
}

// dispatch sends in the background; onSuccess runs after a successful delivery.
func (s *DispatchService) dispatch(ctx context.Context, endpoint, name string, payload any, onSuccess func(context.Context)) {
	detached := context.WithoutCancel(ctx)
	s.begin()
	go func() {
		defer s.end()
		start := time.Now()
		if s.SendEvent(detached, endpoint, name, payload) && onSuccess != nil {
			onSuccess(detached)
		}
		s.logger.Dispatch().Debug("Dispatch finished", "event", name, "duration", time.Since(start))
	}()
}
