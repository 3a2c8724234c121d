package container

import (
	"github.com/AtRiskMedia/zori-go/internal/application/services"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/zori-go/pkg/config"
)

// CollectorSettings configures the development collector.
type CollectorSettings struct {
	// Key, when set, is the only publishable key accepted.
	Key          string
	RecentLimit  int
	MaxBodyBytes int64
	AllowOrigins []string
	MaxTail      int
}

// DefaultCollectorSettings reads the collector settings from the environment.
func DefaultCollectorSettings() CollectorSettings {
	return CollectorSettings{
		Key:          config.CollectorKey,
		RecentLimit:  config.CollectorRecentLimit,
		MaxBodyBytes: int64(config.CollectorMaxBodyBytes),
		AllowOrigins: config.CollectorAllowOrigins,
		MaxTail:      config.MaxTailClients,
	}
}

// CollectorContainer holds the services of the development collector.
type CollectorContainer struct {
	Settings CollectorSettings

	Logger      *logging.ChanneledLogger
	Tracker     *performance.Tracker
	Broadcaster *messaging.SSEBroadcaster

	CaptureService *services.CaptureService
}

// NewCollectorContainer wires the collector services.
func NewCollectorContainer(settings CollectorSettings, clk clock.Clock, logger *logging.ChanneledLogger) *CollectorContainer {
	if logger == nil {
		logger = logging.Discard()
	}
	broadcaster := messaging.NewSSEBroadcaster(settings.MaxTail, logger)
	return &CollectorContainer{
		Settings:       settings,
		Logger:         logger,
		Tracker:        performance.NewTracker(nil),
		Broadcaster:    broadcaster,
		CaptureService: services.NewCaptureService(settings.RecentLimit, broadcaster, clk, logger),
	}
}
