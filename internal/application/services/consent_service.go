// Package services provides the client's application-level orchestration
package services

import (
	"context"
	"net/url"
	"sync"

	"github.com/AtRiskMedia/zori-go/internal/domain/entities/consent"
	"github.com/AtRiskMedia/zori-go/internal/domain/page"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/persistence/store"
)

// ConsentCookieDays is how long a recorded consent choice lives.
const ConsentCookieDays = 365

// ConsentPolicy fixes how the gate treats DNT and the absence of a choice.
type ConsentPolicy struct {
	HonorDoNotTrack bool
	ImplicitConsent bool
}

// ConsentService records consent choices and gates all outbound activity.
// The cookie is re-read on every evaluation; the live record only stands in
// when the cookie cannot be read back.
type ConsentService struct {
	store  *store.Adapter
	pages  page.Provider
	clock  clock.Clock
	policy ConsentPolicy
	logger *logging.ChanneledLogger

	mu      sync.Mutex
	live    consent.Record
	hasLive bool
}

// NewConsentService creates a new consent service
func NewConsentService(st *store.Adapter, pages page.Provider, clk clock.Clock, policy ConsentPolicy, logger *logging.ChanneledLogger) *ConsentService {
	return &ConsentService{
		store:  st,
		pages:  pages,
		clock:  clk,
		policy: policy,
		logger: logger,
	}
}

// LoadConsentState returns the recorded consent. A missing or unreadable cookie
// yields a record without explicit consent.
func (s *ConsentService) LoadConsentState(ctx context.Context) consent.Record {
	raw, ok := s.store.Cookie(ctx, store.CookieConsent)
	if !ok || raw == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.hasLive {
			return s.live
		}
		return consent.Record{}
	}

	value, err := url.QueryUnescape(raw)
	if err != nil {
		value = raw
	}
	rec, err := consent.Decode(value)
	if err != nil {
		s.logger.Consent().Warn("Ignoring unreadable consent cookie", "error", err.Error())
		return consent.Record{}
	}
	return rec
}

// SetConsent folds and persists prefs, then updates the live record. A store
// that refuses the write leaves the choice in effect for this instance only.
func (s *ConsentService) SetConsent(ctx context.Context, prefs consent.Preferences) bool {
	now := s.clock.Now()
	value, err := consent.Encode(prefs, now)
	if err != nil {
		s.logger.LogError(logging.ChannelConsent, "set_consent", err, nil)
		return false
	}

	analytics, marketing := prefs.Fold()
	rec := consent.Record{
		AnalyticsGranted:   consent.TriOf(analytics),
		MarketingGranted:   marketing,
		HasExplicitConsent: true,
		RecordedAt:         now.UTC(),
	}

	s.mu.Lock()
	s.live, s.hasLive = rec, true
	s.mu.Unlock()

	if !s.store.SetCookie(ctx, store.CookieConsent, url.QueryEscape(value), ConsentCookieDays) {
		s.logger.Consent().Warn("Consent kept in memory only, cookie write failed")
	}

	s.logger.Consent().Info("Consent updated", "analytics", analytics, "marketing", marketing)
	return true
}

// HasTrackingConsent evaluates the gate for this call.
func (s *ConsentService) HasTrackingConsent(ctx context.Context) bool {
	if s.policy.HonorDoNotTrack && s.pages.Current().DoNotTrack {
		return false
	}
	rec := s.LoadConsentState(ctx)
	if !rec.HasExplicitConsent {
		return s.policy.ImplicitConsent
	}
	return rec.AnalyticsGranted == consent.Granted
}

// OptOut denies everything and wipes the visitor's local identity and caches.
// Calling it again is harmless.
func (s *ConsentService) OptOut(ctx context.Context) bool {
	s.SetConsent(ctx, consent.DeniedPreferences())

	s.store.DeleteCookie(ctx, store.CookieVisitorID)
	s.store.DeleteCookie(ctx, store.CookieSessionID)
	for _, key := range []string{store.KeyFingerprint, store.KeyIdentify, store.KeySession} {
		s.store.Remove(ctx, key)
	}

	s.logger.Consent().Info("Visitor opted out")
	return true
}
