package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/zori-go/internal/domain/events"
	"github.com/AtRiskMedia/zori-go/internal/domain/faults"
	"github.com/AtRiskMedia/zori-go/internal/domain/page"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/persistence/store"
)

func campaignPage(t *testing.T) page.Page {
	t.Helper()
	u, err := url.Parse("https://shop.example.com/landing?utm_source=news&utm_medium=email")
	require.NoError(t, err)
	return page.Page{
		URL:       u,
		Title:     "Landing",
		Referrer:  "https://search.example.com/",
		UserAgent: "test-agent/1.0",
	}
}

func assertGolden(t *testing.T, name string, v any) {
	t.Helper()
	raw, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, append(raw, '\n'))
}

func TestDispatch_EnvelopeWireShape(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.pages.Navigate(campaignPage(t))

	ok := h.dispatcher.TrackEvent(ctx, "add_to_cart",
		map[string]any{"sku": "A-1", "qty": 2},
		&events.ClickData{Selector: "#buy", Position: [2]int{120, 48}})
	require.True(t, ok)
	h.wait(t)

	got := h.transport.Named("add_to_cart")
	require.Len(t, got, 1)
	assertGolden(t, "envelope_add_to_cart", got[0])
}

func TestDispatch_EnvelopeOmitsEmptyExtras(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.navigate("https://shop.example.com/plain")

	require.True(t, h.dispatcher.TrackEvent(ctx, "ping", map[string]any{}, &events.ClickData{}))
	h.wait(t)

	got := h.transport.Named("ping")
	require.Len(t, got, 1)
	raw, err := json.Marshal(got[0])
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "custom_properties")
	assert.NotContains(t, fields, "click_on")
	assert.NotContains(t, fields, "click_position")
	assert.Contains(t, fields, "utm_parameters")
	assert.Nil(t, fields["utm_parameters"])
	assert.Nil(t, fields["referrer"])
}

func TestDispatch_PageView(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.navigate("https://shop.example.com/docs/intro?tab=2#setup")

	require.True(t, h.dispatcher.TrackPageView(ctx))
	h.wait(t)

	views := h.transport.Named(events.PageView)
	require.Len(t, views, 1)
	assert.Equal(t, "/docs/intro", views[0].PageURL)
	assert.Equal(t, map[string]any{
		"page_title":  "Landing",
		"page_path":   "/docs/intro",
		"page_search": "?tab=2",
		"page_hash":   "#setup",
	}, views[0].CustomProperties)
}

func TestDispatch_TransportFailureStillAttempted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.transport.Fail(faults.Transport("post /ingest", errors.New("connection refused")))

	assert.True(t, h.dispatcher.TrackEvent(ctx, "signup", nil, nil))
	h.wait(t)

	assert.Len(t, h.transport.Named("signup"), 1, "one attempt, no retry")
	stats := h.dispatcher.Stats()
	assert.Equal(t, 2, stats.Failed, "session_start and signup both failed")
	assert.Equal(t, 0, stats.Delivered)
}

func TestDispatch_Identify(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.pages.Navigate(campaignPage(t))

	ok, err := h.dispatcher.IdentifyUser(ctx, map[string]any{
		"app_id":    "user-42",
		"email":     "ada@example.com",
		"full_name": "Ada Lovelace",
		"plan":      "pro",
		"seats":     3,
	})
	require.NoError(t, err)
	require.True(t, ok)
	h.wait(t)

	ids := h.transport.Identifies()
	require.Len(t, ids, 1)
	assertGolden(t, "identify_payload", ids[0])

	var snapshot events.IdentitySnapshot
	require.True(t, h.store.GetJSON(ctx, store.KeyIdentify, &snapshot))
	assert.Equal(t, "vis_0001", snapshot.VisitorID)
	assert.Equal(t, "Ada Lovelace", snapshot.Fullname)
}

func TestDispatch_IdentifyFailureDoesNotCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.transport.Fail(errors.New("status 500"))

	ok, err := h.dispatcher.IdentifyUser(ctx, map[string]any{"email": "a@b.c"})
	require.NoError(t, err)
	assert.True(t, ok)
	h.wait(t)

	_, cached := h.store.Get(ctx, store.KeyIdentify)
	assert.False(t, cached)
}

func TestDispatch_IdentifyRejectsNonObject(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	ok, err := h.dispatcher.IdentifyUser(ctx, nil)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, faults.ErrConfig))
}

func TestDispatch_FingerprintCachedOnFirstVisitOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.dispatcher.TrackPageView(ctx)
	h.dispatcher.TrackPageView(ctx)
	h.wait(t)

	assert.Equal(t, 1, h.collector.Calls())
	_, ok := h.store.Get(ctx, store.KeyFingerprint)
	assert.True(t, ok)
}

func TestDispatch_WaitHonoursContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h.dispatcher.begin()
	defer h.dispatcher.end()
	assert.ErrorIs(t, h.dispatcher.Wait(ctx), context.Canceled)
}

func TestDispatch_WaitReturnsOnceIdleAgain(t *testing.T) {
	h := newHarness(t)
	assert.NoError(t, h.dispatcher.Wait(context.Background()), "nothing in flight")

	h.dispatcher.begin()
	h.dispatcher.begin()
	done := make(chan error, 1)
	go func() { done <- h.dispatcher.Wait(context.Background()) }()

	h.dispatcher.end()
	select {
	case <-done:
		t.Fatal("Wait returned with a send still in flight")
	case <-time.After(20 * time.Millisecond):
	}

	h.dispatcher.end()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the last send finished")
	}

	// The counter re-arms after reaching zero.
	h.dispatcher.begin()
	h.dispatcher.end()
	assert.NoError(t, h.dispatcher.Wait(context.Background()))
}

func TestDispatch_TrackWhileWaiting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				h.dispatcher.TrackEvent(ctx, "burst", nil, nil)
			}
		}()
	}
	writersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(writersDone)
	}()

	for waiting := true; waiting; {
		select {
		case <-writersDone:
			waiting = false
		default:
			wctx, cancel := context.WithTimeout(ctx, time.Millisecond)
			_ = h.dispatcher.Wait(wctx)
			cancel()
		}
	}

	require.NoError(t, h.dispatcher.Wait(ctx))
	h.dispatcher.mu.Lock()
	defer h.dispatcher.mu.Unlock()
	assert.Zero(t, h.dispatcher.pending)
}
