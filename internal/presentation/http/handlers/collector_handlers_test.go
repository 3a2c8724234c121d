package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/zori-go/internal/application/services"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/zori-go/internal/presentation/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(maxBody int64) (*gin.Engine, *services.CaptureService) {
	logger := logging.Discard()
	broadcaster := messaging.NewSSEBroadcaster(2, logger)
	captures := services.NewCaptureService(10, broadcaster, clock.NewManualMillis(1_700_000_000_000), logger)
	h := NewCollectorHandlers(captures, broadcaster, logger, performance.NewTracker(nil), maxBody, time.Second)

	r := gin.New()
	keyed := r.Group("/")
	keyed.Use(middleware.PublishableKeyMiddleware("", logger))
	keyed.POST("/ingest", h.HandleIngest)
	keyed.POST("/identify", h.HandleIdentify)
	r.GET("/recent", h.HandleRecent)
	r.GET("/stats", h.HandleStats)
	return r, captures
}

func post(r http.Handler, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-Zori-PT", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleIngest_Accepts(t *testing.T) {
	r, captures := newTestRouter(0)

	w := post(r, "/ingest", "pk_test", `{"event_name":"page_view","visitor_id":"vis_1","session_id":"ses_1","page_url":"/"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp AcceptedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.NotEmpty(t, resp.ID)

	recent := captures.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, "page_view", recent[0].EventName)
	assert.Equal(t, "pk_test", recent[0].Key)
}

func TestHandleIngest_Rejects(t *testing.T) {
	r, captures := newTestRouter(64)

	tests := []struct {
		name   string
		key    string
		body   string
		status int
	}{
		{"missing key", "", `{"event_name":"x","visitor_id":"v"}`, http.StatusUnauthorized},
		{"not json", "pk", `nope`, http.StatusBadRequest},
		{"missing event name", "pk", `{"visitor_id":"v"}`, http.StatusBadRequest},
		{"too large", "pk", `{"event_name":"` + strings.Repeat("x", 100) + `","visitor_id":"v"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(r, "/ingest", tt.key, tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
	assert.Equal(t, 0, captures.Total())
}

func TestHandleIdentify(t *testing.T) {
	r, captures := newTestRouter(0)

	w := post(r, "/identify", "pk", `{"visitor_id":"vis_1","email":"a@b.c"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/identify", captures.Recent(1)[0].Endpoint)

	w = post(r, "/identify", "pk", `{"email":"a@b.c"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRecentAndStats(t *testing.T) {
	r, _ := newTestRouter(0)
	for _, name := range []string{"a", "b", "c"} {
		post(r, "/ingest", "pk", `{"event_name":"`+name+`","visitor_id":"vis_1"}`)
	}
	post(r, "/ingest", "pk", `{}`)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/recent?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var recent RecentResponse
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&recent))
	require.Len(t, recent.Captures, 2)
	assert.Equal(t, "c", recent.Captures[0].EventName)
	assert.Equal(t, 3, recent.Total)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/recent?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var stats StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Captured)
	assert.Equal(t, 3, stats.Requests.Delivered)
	assert.Equal(t, 1, stats.Requests.Failed)
}
