// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AtRiskMedia/zori-go/internal/application/services"
	"github.com/AtRiskMedia/zori-go/internal/domain/events"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/zori-go/internal/presentation/http/middleware"
)

// CollectorHandlers receives envelopes and identify payloads from clients and
// exposes what was captured.
type CollectorHandlers struct {
	captures     *services.CaptureService
	broadcaster  messaging.Broadcaster
	logger       *logging.ChanneledLogger
	perfTracker  *performance.Tracker
	maxBodyBytes int64
	heartbeat    time.Duration
}

// AcceptedResponse is returned for every stored payload.
type AcceptedResponse struct {
	Accepted bool   `json:"accepted"`
	ID       string `json:"id"`
}

// RecentResponse lists captured payloads, newest first.
type RecentResponse struct {
	Captures []services.Capture `json:"captures"`
	Total    int                `json:"total"`
}

// StatsResponse reports collector counters.
type StatsResponse struct {
	Captured    int                  `json:"captured"`
	TailClients int                  `json:"tailClients"`
	Requests    performance.Snapshot `json:"requests"`
}

// NewCollectorHandlers creates collector handlers with injected dependencies
func NewCollectorHandlers(captures *services.CaptureService, broadcaster messaging.Broadcaster, logger *logging.ChanneledLogger, perfTracker *performance.Tracker, maxBodyBytes int64, heartbeat time.Duration) *CollectorHandlers {
	return &CollectorHandlers{
		captures:     captures,
		broadcaster:  broadcaster,
		logger:       logger,
		perfTracker:  perfTracker,
		maxBodyBytes: maxBodyBytes,
		heartbeat:    heartbeat,
	}
}

// HandleIngest handles POST /ingest
func (h *CollectorHandlers) HandleIngest(c *gin.Context) {
	var env events.Envelope
	marker := h.perfTracker.StartOperation(events.EndpointIngest, "unknown")
	if err := h.bind(c, &env); err != nil {
		h.perfTracker.CompleteOperation(marker, err)
		h.reject(c, events.EndpointIngest, err)
		return
	}
	marker.EventName = env.EventName

	if env.EventName == "" || env.VisitorID == "" {
		err := errors.New("event_name and visitor_id are required")
		h.perfTracker.CompleteOperation(marker, err)
		h.reject(c, events.EndpointIngest, err)
		return
	}

	capture := h.captures.Record(events.EndpointIngest, env.EventName, env.VisitorID, c.GetString(middleware.ContextKeyPublishableKey), env)
	h.perfTracker.CompleteOperation(marker, nil)
	c.JSON(http.StatusAccepted, AcceptedResponse{Accepted: true, ID: capture.ID})
}

// HandleIdentify handles POST /identify
func (h *CollectorHandlers) HandleIdentify(c *gin.Context) {
	var payload events.IdentifyPayload
	marker := h.perfTracker.StartOperation(events.EndpointIdentify, "identify")
	if err := h.bind(c, &payload); err != nil {
		h.perfTracker.CompleteOperation(marker, err)
		h.reject(c, events.EndpointIdentify, err)
		return
	}
	if payload.VisitorID == "" {
		err := errors.New("visitor_id is required")
		h.perfTracker.CompleteOperation(marker, err)
		h.reject(c, events.EndpointIdentify, err)
		return
	}

	capture := h.captures.Record(events.EndpointIdentify, "", payload.VisitorID, c.GetString(middleware.ContextKeyPublishableKey), payload)
	h.perfTracker.CompleteOperation(marker, nil)
	c.JSON(http.StatusAccepted, AcceptedResponse{Accepted: true, ID: capture.ID})
}

// HandleRecent handles GET /recent?limit=N
func (h *CollectorHandlers) HandleRecent(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, RecentResponse{
		Captures: h.captures.Recent(limit),
		Total:    h.captures.Total(),
	})
}

// HandleStats handles GET /stats
func (h *CollectorHandlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		Captured:    h.captures.Total(),
		TailClients: h.broadcaster.ClientCount(),
		Requests:    h.perfTracker.TakeSnapshot(),
	})
}

// HandleHealth handles GET /health
func (h *CollectorHandlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleTail handles GET /tail, streaming every capture as a server-sent event.
func (h *CollectorHandlers) HandleTail(c *gin.Context) {
	ch, err := h.broadcaster.AddClient()
	if err != nil {
		h.logger.Collector().Warn("Tail subscription refused", "error", err.Error())
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	defer h.broadcaster.RemoveClient(ch)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(c.Writer, ": connection established\n\n")
	c.Writer.Flush()

	heartbeat := h.heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-ch:
			if !ok {
				return false
			}
			fmt.Fprint(w, message)
			return true
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *CollectorHandlers) bind(c *gin.Context, dst any) error {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func (h *CollectorHandlers) reject(c *gin.Context, endpoint string, err error) {
	status := http.StatusBadRequest
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	h.logger.Collector().Warn("Rejected payload", "endpoint", endpoint, "status", status, "error", err.Error())
	c.JSON(status, gin.H{"error": err.Error()})
}
