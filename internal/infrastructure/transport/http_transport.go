// Package transport delivers envelopes to the collection endpoint.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AtRiskMedia/zori-go/internal/domain/faults"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
)

// Protocol headers.
const (
	HeaderPublishableKey = "X-Zori-PT"
	HeaderVersion        = "X-Zori-Version"

	// Version is the protocol version announced on every request.
	Version = "1.0.0"

	// DefaultURL is the hosted ingestion endpoint.
	DefaultURL = "https://ingestion.zorihq.com/ingest"
)

// Transport submits one JSON payload to an endpoint ("/ingest" or "/identify").
type Transport interface {
	Send(ctx context.Context, endpoint string, payload any) error
}

// HTTPTransport posts payloads over HTTP. There is no request timeout and no retry.
type HTTPTransport struct {
	client *http.Client
	base   string
	key    string
	logger *logging.ChanneledLogger
}

// NewHTTPTransport creates a transport for baseURL. A nil client uses a
// dedicated client without timeout.
func NewHTTPTransport(baseURL, publishableKey string, client *http.Client, logger *logging.ChanneledLogger) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{
		client: client,
		base:   normalizeBase(baseURL),
		key:    publishableKey,
		logger: logger,
	}
}

// ResolveURL joins a configured base with an endpoint. A trailing "/ingest"
// on the base is dropped so both endpoints hang off the same root.
func ResolveURL(baseURL, endpoint string) string {
	return normalizeBase(baseURL) + "/" + strings.TrimPrefix(endpoint, "/")
}

func normalizeBase(baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	base := strings.TrimRight(baseURL, "/")
	base = strings.TrimSuffix(base, "/ingest")
	return strings.TrimRight(base, "/")
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, endpoint string, payload any) error {
	target := t.base + "/" + strings.TrimPrefix(endpoint, "/")

	body, err := json.Marshal(payload)
	if err != nil {
		return faults.Transport("encode", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return faults.Transport("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderPublishableKey, t.key)
	req.Header.Set(HeaderVersion, Version)

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Transport().Debug("Request failed", "url", target, "error", err.Error())
		return faults.Transport("post "+endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	t.logger.Transport().Debug("Request completed",
		"url", target,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return faults.Transport("post "+endpoint, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}
