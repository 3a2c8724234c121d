package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/zori-go/internal/domain/page"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/persistence/store"
	"github.com/AtRiskMedia/zori-go/internal/testutil"
)

const t0 = int64(1_700_000_000_000)

type harness struct {
	backend   *store.MemoryBackend
	store     *store.Adapter
	clock     *clock.Manual
	pages     *page.Static
	ids       *testutil.SequentialIDs
	transport *testutil.RecordingTransport
	collector *testutil.FakeCollector

	consent    *ConsentService
	visitors   *VisitorService
	sessions   *SessionService
	dispatcher *DispatchService
	visibility *VisibilityService
	commands   *CommandService
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	policy    ConsentPolicy
	timeout   time.Duration
	threshold time.Duration
	quick     bool
	backend   store.Backend
}

func withPolicy(p ConsentPolicy) harnessOption {
	return func(c *harnessConfig) { c.policy = p }
}

func withQuickSwitches() harnessOption {
	return func(c *harnessConfig) { c.quick = true }
}

func withBackend(b store.Backend) harnessOption {
	return func(c *harnessConfig) { c.backend = b }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{
		policy:    ConsentPolicy{HonorDoNotTrack: true, ImplicitConsent: true},
		timeout:   30 * time.Minute,
		threshold: DefaultComebackThreshold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := logging.Discard()
	h := &harness{
		clock:     clock.NewManualMillis(t0),
		ids:       &testutil.SequentialIDs{},
		transport: &testutil.RecordingTransport{},
		collector: &testutil.FakeCollector{},
	}
	h.backend = store.NewMemoryBackend(h.clock)
	backend := store.Backend(h.backend)
	if cfg.backend != nil {
		backend = cfg.backend
	}
	h.store = store.NewAdapter(backend, logger)

	landing := page.MustParse("https://shop.example.com/landing?ref=1")
	landing.Title = "Landing"
	landing.UserAgent = "test-agent/1.0"
	landing.Referrer = "https://search.example.com/"
	h.pages = page.NewStatic(landing)

	h.consent = NewConsentService(h.store, h.pages, h.clock, cfg.policy, logger)
	h.visitors = NewVisitorService(h.store, h.ids, h.collector, h.clock, logger)
	h.sessions = NewSessionService(h.store, h.ids, h.clock, h.pages, cfg.timeout, logger)
	h.dispatcher = NewDispatchService(h.consent, h.visitors, h.sessions, h.pages, h.transport, h.ids, h.clock, h.store, performance.NewTracker(nil), logger)
	h.sessions.SetEventSink(h.dispatcher.EmitSessionEvent)
	h.visibility = NewVisibilityService(h.dispatcher, h.clock, cfg.threshold, cfg.quick, logger)
	h.commands = NewCommandService(h.consent, h.visitors, h.sessions, h.dispatcher, logger)
	return h
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.dispatcher.Wait(ctx))
}

func (h *harness) navigate(rawURL string) {
	p := h.pages.Current()
	next := page.MustParse(rawURL)
	next.UserAgent = p.UserAgent
	next.Title = p.Title
	next.DoNotTrack = p.DoNotTrack
	h.pages.Navigate(next)
}
