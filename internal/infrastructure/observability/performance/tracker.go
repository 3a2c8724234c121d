// Package performance tracks delivery outcomes of dispatched envelopes so hosts
// and the development collector can report on transport health.
package performance

import (
	"sync"
	"time"
)

// HealthStatus represents the overall health of delivery
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"   // Failures below the degraded ratio
	HealthDegraded  HealthStatus = "degraded"  // Some deliveries failing
	HealthUnhealthy HealthStatus = "unhealthy" // Most deliveries failing
	HealthUnknown   HealthStatus = "unknown"   // Nothing delivered yet
)

// Marker represents a single delivery attempt
type Marker struct {
	Endpoint  string        `json:"endpoint"`
	EventName string        `json:"eventName"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Completed bool          `json:"completed"`
}

// EndpointStats aggregates attempts against one endpoint
type EndpointStats struct {
	Attempts      int           `json:"attempts"`
	Failures      int           `json:"failures"`
	TotalDuration time.Duration `json:"totalDuration"`
	LastError     string        `json:"lastError,omitempty"`
}

// AverageDuration returns the mean attempt duration.
func (s EndpointStats) AverageDuration() time.Duration {
	if s.Attempts == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Attempts)
}

// Snapshot is a point-in-time view of delivery statistics
type Snapshot struct {
	Timestamp     time.Time                `json:"timestamp"`
	InFlight      int                      `json:"inFlight"`
	Delivered     int                      `json:"delivered"`
	Failed        int                      `json:"failed"`
	Suppressed    int                      `json:"suppressed"`
	Endpoints     map[string]EndpointStats `json:"endpoints"`
	OverallHealth HealthStatus             `json:"overallHealth"`
}

// TrackerConfig contains configuration options for the tracker
type TrackerConfig struct {
	DegradedFailureRatio  float64 `json:"degradedFailureRatio"`
	UnhealthyFailureRatio float64 `json:"unhealthyFailureRatio"`
}

// DefaultTrackerConfig returns the default thresholds
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		DegradedFailureRatio:  0.05,
		UnhealthyFailureRatio: 0.5,
	}
}

// Tracker accumulates delivery markers
type Tracker struct {
	mu         sync.RWMutex
	config     *TrackerConfig
	inFlight   int
	suppressed int
	endpoints  map[string]*EndpointStats
}

// NewTracker creates a new tracker with the given configuration
func NewTracker(config *TrackerConfig) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	return &Tracker{
		config:    config,
		endpoints: make(map[string]*EndpointStats),
	}
}

// StartOperation opens a marker for one delivery attempt
func (t *Tracker) StartOperation(endpoint, eventName string) *Marker {
	t.mu.Lock()
	t.inFlight++
	t.mu.Unlock()

	return &Marker{
		Endpoint:  endpoint,
		EventName: eventName,
		StartTime: time.Now(),
	}
}

// CompleteOperation closes a marker with the outcome of the attempt
func (t *Tracker) CompleteOperation(marker *Marker, err error) {
	if marker == nil || marker.Completed {
		return
	}
	marker.Completed = true
	marker.Duration = time.Since(marker.StartTime)
	marker.Success = err == nil
	if err != nil {
		marker.Error = err.Error()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.inFlight--
	stats, ok := t.endpoints[marker.Endpoint]
	if !ok {
		stats = &EndpointStats{}
		t.endpoints[marker.Endpoint] = stats
	}
	stats.Attempts++
	stats.TotalDuration += marker.Duration
	if !marker.Success {
		stats.Failures++
		stats.LastError = marker.Error
	}
}

// RecordSuppressed counts an event dropped by the consent gate
func (t *Tracker) RecordSuppressed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suppressed++
}

// TakeSnapshot returns the current statistics
func (t *Tracker) TakeSnapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		Timestamp:  time.Now(),
		InFlight:   t.inFlight,
		Suppressed: t.suppressed,
		Endpoints:  make(map[string]EndpointStats, len(t.endpoints)),
	}
	for name, stats := range t.endpoints {
		snap.Endpoints[name] = *stats
		snap.Delivered += stats.Attempts - stats.Failures
		snap.Failed += stats.Failures
	}
	snap.OverallHealth = t.calculateHealth(snap.Delivered, snap.Failed)
	return snap
}

func (t *Tracker) calculateHealth(delivered, failed int) HealthStatus {
	total := delivered + failed
	if total == 0 {
		return HealthUnknown
	}
	ratio := float64(failed) / float64(total)
	switch {
	case ratio > t.config.UnhealthyFailureRatio:
		return HealthUnhealthy
	case ratio > t.config.DegradedFailureRatio:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}
