package services

import (
	"context"
	"sync"

	"github.com/AtRiskMedia/zori-go/internal/domain/entities/visitor"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/fingerprint"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/persistence/store"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/security"
)

// VisitorService resolves the durable visitor id, minting one on first visit.
type VisitorService struct {
	store     *store.Adapter
	ids       security.IDGenerator
	collector fingerprint.Collector
	clock     clock.Clock
	logger    *logging.ChanneledLogger

	mu       sync.Mutex
	fallback string
}

// NewVisitorService creates a new visitor service. collector may be nil.
func NewVisitorService(st *store.Adapter, ids security.IDGenerator, collector fingerprint.Collector, clk clock.Clock, logger *logging.ChanneledLogger) *VisitorService {
	return &VisitorService{
		store:     st,
		ids:       ids,
		collector: collector,
		clock:     clk,
		logger:    logger,
	}
}

// Resolve returns the visitor id, creating and persisting it when absent. When
// the cookie cannot be written the id lives in memory for this instance.
func (s *VisitorService) Resolve(ctx context.Context) visitor.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.store.Cookie(ctx, store.CookieVisitorID); ok && id != "" {
		s.fallback = ""
		return visitor.Identity{ID: id}
	}
	if s.fallback != "" {
		return visitor.Identity{ID: s.fallback}
	}

	identity := visitor.Identity{
		ID:        s.ids.VisitorID(),
		CreatedAt: s.clock.Now().UTC(),
		IsNew:     true,
	}
	if !s.store.SetCookie(ctx, store.CookieVisitorID, identity.ID, visitor.CookieLifetimeDays) {
		s.fallback = identity.ID
	}

	s.logger.Visitor().Info("New visitor", "visitorId", logging.SanitizeID(identity.ID))
	s.recordFingerprint(ctx)
	return identity
}

// Current returns the stored visitor id without creating one.
func (s *VisitorService) Current(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.store.Cookie(ctx, store.CookieVisitorID); ok && id != "" {
		return id, true
	}
	if s.fallback != "" {
		return s.fallback, true
	}
	return "", false
}

// Forget drops any in-memory id, used after opt-out.
func (s *VisitorService) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = ""
}

func (s *VisitorService) recordFingerprint(ctx context.Context) {
	if s.collector == nil {
		return
	}
	profile, err := s.collector.Collect(ctx)
	if err != nil {
		s.logger.Visitor().Warn("Fingerprint collection failed", "error", err.Error())
		return
	}
	if !s.store.SetJSON(ctx, store.KeyFingerprint, profile) {
		s.logger.Visitor().Debug("Fingerprint not cached")
		return
	}
	s.logger.Visitor().Debug("Fingerprint cached", "hash", profile.Hash)
}
