package services

import (
	"context"
	"sync"
	"time"

	"github.com/AtRiskMedia/zori-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/zori-go/internal/domain/events"
	"github.com/AtRiskMedia/zori-go/internal/domain/page"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/persistence/store"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/security"
)

// SessionEventSink receives session_start and session_end. It must not call
// back into the session service.
type SessionEventSink func(ctx context.Context, name, sessionID string, props map[string]any)

// SessionService manages the single persisted session slot.
//
// Every read-modify-write runs under one mutex. Before committing a new
// session the slot is read again, and a valid session written meanwhile by
// another instance sharing the store is adopted instead of overwritten.
type SessionService struct {
	store   *store.Adapter
	ids     security.IDGenerator
	clock   clock.Clock
	pages   page.Provider
	timeout time.Duration
	logger  *logging.ChanneledLogger

	mu   sync.Mutex
	sink SessionEventSink
	// memory holds the slot while the store refuses writes
	memory *session.Session
}

// NewSessionService creates a new session service. A zero timeout uses session.DefaultTimeout.
func NewSessionService(st *store.Adapter, ids security.IDGenerator, clk clock.Clock, pages page.Provider, timeout time.Duration, logger *logging.ChanneledLogger) *SessionService {
	if timeout <= 0 {
		timeout = session.DefaultTimeout
	}
	return &SessionService{
		store:   st,
		ids:     ids,
		clock:   clk,
		pages:   pages,
		timeout: timeout,
		logger:  logger,
	}
}

// SetEventSink wires the session-event path.
func (s *SessionService) SetEventSink(sink SessionEventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// GetSession returns the persisted session when it is still valid, else nil.
// An invalid record stays in storage until the next creation overwrites it.
func (s *SessionService) GetSession(ctx context.Context) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, _ := s.validLocked(ctx)
	return sess
}

// CreateNewSession starts a new session unconditionally.
func (s *SessionService) CreateNewSession(ctx context.Context) *session.Session {
	s.mu.Lock()
	sess := s.prepare()
	s.commitLocked(ctx, sess)
	sink := s.sink
	s.mu.Unlock()

	s.emit(ctx, sink, events.SessionStart, sess.SessionID, nil)
	return sess
}

// GetOrCreateSession returns the id of the valid session, creating one if needed.
func (s *SessionService) GetOrCreateSession(ctx context.Context) string {
	s.mu.Lock()
	if sess, _ := s.validLocked(ctx); sess != nil {
		s.mu.Unlock()
		return sess.SessionID
	}

	candidate := s.prepare()

	// re-read before commit
	if sess, _ := s.validLocked(ctx); sess != nil {
		s.mu.Unlock()
		s.logger.Session().Debug("Adopted concurrently created session", "sessionId", logging.SanitizeID(sess.SessionID))
		return sess.SessionID
	}

	s.commitLocked(ctx, candidate)
	sink := s.sink
	s.mu.Unlock()

	s.emit(ctx, sink, events.SessionStart, candidate.SessionID, nil)
	return candidate.SessionID
}

// UpdateActivity refreshes the activity timestamp of a valid session. It never
// creates a session.
func (s *SessionService) UpdateActivity(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _ := s.validLocked(ctx)
	if sess == nil {
		return false
	}
	sess.Touch(s.clock.Now())
	s.saveLocked(ctx, sess)
	return true
}

// IncrementPageCount records a page view on the valid session.
func (s *SessionService) IncrementPageCount(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _ := s.validLocked(ctx)
	if sess == nil {
		return false
	}
	sess.CountPage(s.clock.Now())
	s.saveLocked(ctx, sess)
	return true
}

// EndSession emits session_end for the persisted session, if any, and clears
// the slot and its cookie.
func (s *SessionService) EndSession(ctx context.Context) bool {
	s.mu.Lock()
	sess, ok := s.loadLocked(ctx)
	if !ok || sess.SessionID == "" {
		s.mu.Unlock()
		return false
	}
	now := s.clock.Now()
	props := map[string]any{
		"duration_ms": sess.Duration(now).Milliseconds(),
		"page_count":  sess.PageCount,
	}
	s.store.Remove(ctx, store.KeySession)
	s.store.DeleteCookie(ctx, store.CookieSessionID)
	s.memory = nil
	sink := s.sink
	s.mu.Unlock()

	s.logger.Session().Info("Session ended",
		"sessionId", logging.SanitizeID(sess.SessionID),
		"pageCount", sess.PageCount)
	s.emit(ctx, sink, events.SessionEnd, sess.SessionID, props)
	return true
}

// CurrentSessionID returns the valid session id or "". It never creates.
func (s *SessionService) CurrentSessionID(ctx context.Context) string {
	if sess := s.GetSession(ctx); sess != nil {
		return sess.SessionID
	}
	return ""
}

func (s *SessionService) validLocked(ctx context.Context) (*session.Session, session.Validity) {
	sess, ok := s.loadLocked(ctx)
	if !ok {
		return nil, session.Missing
	}
	validity := sess.Evaluate(s.clock.Now(), s.timeout, s.pages.Current().UTMFingerprint())
	if validity != session.Valid {
		s.logger.Session().Debug("Stored session unusable",
			"sessionId", logging.SanitizeID(sess.SessionID),
			"reason", validity.String())
		return nil, validity
	}
	return &sess, validity
}

func (s *SessionService) prepare() *session.Session {
	return session.NewSession(s.ids.SessionID(), s.clock.Now(), s.pages.Current().UTMFingerprint())
}

func (s *SessionService) commitLocked(ctx context.Context, sess *session.Session) {
	s.saveLocked(ctx, sess)
	s.store.SetCookie(ctx, store.CookieSessionID, sess.SessionID, store.SessionCookie)

	s.logger.Session().Info("Session started", "sessionId", logging.SanitizeID(sess.SessionID))
}

func (s *SessionService) loadLocked(ctx context.Context) (session.Session, bool) {
	var sess session.Session
	if s.store.GetJSON(ctx, store.KeySession, &sess) {
		return sess, true
	}
	if s.memory != nil {
		return *s.memory, true
	}
	return session.Session{}, false
}

func (s *SessionService) saveLocked(ctx context.Context, sess *session.Session) {
	if s.store.SetJSON(ctx, store.KeySession, sess) {
		s.memory = nil
		return
	}
	saved := *sess
	s.memory = &saved
}

func (s *SessionService) emit(ctx context.Context, sink SessionEventSink, name, sessionID string, props map[string]any) {
	if sink == nil {
		return
	}
	sink(ctx, name, sessionID, props)
}

// Reset forgets the in-memory slot, used after opt-out wiped the store.
func (s *SessionService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory = nil
}
