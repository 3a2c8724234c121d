// Package startup prepares the development collector server
package startup

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/zori-go/internal/application/container"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/presentation/http/server"
)

// ShutdownTimeout bounds graceful shutdown of the collector.
const ShutdownTimeout = 30 * time.Second

// RunCollector serves the development collector on addr until ctx ends or
// SIGINT/SIGTERM arrives, then shuts down gracefully.
func RunCollector(ctx context.Context, addr string, settings container.CollectorSettings, logger *logging.ChanneledLogger) error {
	setupLogging()
	start := time.Now().UTC()

	appContainer := container.NewCollectorContainer(settings, clock.System{}, logger)
	logger = appContainer.Logger

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	httpServer := server.New(addr, appContainer)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	logger.Collector().Info("Collector ready",
		"address", listener.Addr().String(),
		"keyRequired", settings.Key != "",
		"recentLimit", settings.RecentLimit,
		"startupDuration", time.Since(start))

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	logger.Collector().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Collector().Error("Error during server shutdown", "error", err.Error())
		return err
	}

	logger.Collector().Info("Collector shutdown complete",
		"totalUptime", time.Since(start),
		"captured", appContainer.CaptureService.Total())
	return nil
}

// setupLogging configures gin's mode
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
}
