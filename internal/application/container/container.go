// Package container wires one client instance: every service it owns and the
// infrastructure they share. Nothing here is global.
package container

import (
	"fmt"
	"net/http"

	"github.com/AtRiskMedia/zori-go/internal/application/services"
	"github.com/AtRiskMedia/zori-go/internal/domain/page"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/fingerprint"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/persistence/store"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/transport"
	"github.com/AtRiskMedia/zori-go/pkg/config"
)

// Options supplies the collaborators a host provides. Nil fields get defaults.
type Options struct {
	Backend    store.Backend
	Pages      page.Provider
	Transport  transport.Transport
	HTTPClient *http.Client
	Clock      clock.Clock
	IDs        security.IDGenerator
	Collector  fingerprint.Collector
	Logger     *logging.ChanneledLogger
}

// Container holds all services of one client instance
type Container struct {
	Config config.Client

	// Infrastructure Dependencies
	Logger  *logging.ChanneledLogger
	Store   *store.Adapter
	Clock   clock.Clock
	Pages   page.Provider
	Tracker *performance.Tracker

	// Services
	ConsentService    *services.ConsentService
	VisitorService    *services.VisitorService
	SessionService    *services.SessionService
	DispatchService   *services.DispatchService
	VisibilityService *services.VisibilityService
	CommandService    *services.CommandService
}

// NewContainer validates cfg and wires every service
func NewContainer(cfg config.Client, opts Options) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.NewChanneledLogger(logging.DefaultLoggerConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	backend := opts.Backend
	if backend == nil {
		backend = store.NewMemoryBackend(clk)
	}
	pages := opts.Pages
	if pages == nil {
		pages = page.NewStatic(page.Page{})
	}
	ids := opts.IDs
	if ids == nil {
		ids = security.DefaultIDs{}
	}
	collector := opts.Collector
	if collector == nil {
		collector = fingerprint.NewEnvironmentCollector(fingerprint.HostEnvironment(pages.Current().UserAgent))
	}
	tr := opts.Transport
	if tr == nil {
		tr = transport.NewHTTPTransport(cfg.BaseURL, cfg.Key, opts.HTTPClient, logger)
	}

	st := store.NewAdapter(backend, logger)
	tracker := performance.NewTracker(nil)

	consentSvc := services.NewConsentService(st, pages, clk, services.ConsentPolicy{
		HonorDoNotTrack: cfg.HonorDoNotTrack,
		ImplicitConsent: cfg.ImplicitConsent,
	}, logger)
	visitors := services.NewVisitorService(st, ids, collector, clk, logger)
	sessions := services.NewSessionService(st, ids, clk, pages, cfg.SessionTimeout, logger)
	dispatcher := services.NewDispatchService(consentSvc, visitors, sessions, pages, tr, ids, clk, st, tracker, logger)
	sessions.SetEventSink(dispatcher.EmitSessionEvent)

	c := &Container{
		Config:            cfg,
		Logger:            logger,
		Store:             st,
		Clock:             clk,
		Pages:             pages,
		Tracker:           tracker,
		ConsentService:    consentSvc,
		VisitorService:    visitors,
		SessionService:    sessions,
		DispatchService:   dispatcher,
		VisibilityService: services.NewVisibilityService(dispatcher, clk, cfg.ComebackThreshold, cfg.TrackQuickSwitches, logger),
		CommandService:    services.NewCommandService(consentSvc, visitors, sessions, dispatcher, logger),
	}

	logger.System().Debug("Client container built",
		"baseUrl", transport.ResolveURL(cfg.BaseURL, "/ingest"),
		"sessionTimeout", cfg.SessionTimeout,
		"comebackThreshold", cfg.ComebackThreshold,
		"trackQuickSwitches", cfg.TrackQuickSwitches)

	return c, nil
}
