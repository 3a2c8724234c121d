package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/zori-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/zori-go/internal/domain/events"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/persistence/store"
)

func TestSession_StableWithinWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first := h.sessions.GetOrCreateSession(ctx)
	for i := 0; i < 5; i++ {
		h.clock.Advance(10 * time.Minute)
		assert.Equal(t, first, h.sessions.GetOrCreateSession(ctx))
		h.sessions.UpdateActivity(ctx)
	}
	h.wait(t)
	assert.Len(t, h.transport.Named(events.SessionStart), 1)
}

func TestSession_TimesOutAfterInactivity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first := h.sessions.GetOrCreateSession(ctx)
	h.clock.Advance(30 * time.Minute)
	assert.NotNil(t, h.sessions.GetSession(ctx), "exactly at the window edge is still valid")

	h.clock.Advance(time.Millisecond)
	assert.Nil(t, h.sessions.GetSession(ctx))
	assert.Equal(t, "", h.sessions.CurrentSessionID(ctx))

	var stale session.Session
	require.True(t, h.store.GetJSON(ctx, store.KeySession, &stale), "stale record left in place")
	assert.Equal(t, first, stale.SessionID)

	second := h.sessions.GetOrCreateSession(ctx)
	assert.NotEqual(t, first, second)
}

func TestSession_CampaignChange(t *testing.T) {
	ctx := context.Background()

	t.Run("both absent never invalidates", func(t *testing.T) {
		h := newHarness(t)
		id := h.sessions.GetOrCreateSession(ctx)
		h.navigate("https://shop.example.com/other")
		assert.Equal(t, id, h.sessions.GetOrCreateSession(ctx))
	})

	t.Run("stored absent, page with campaign keeps session", func(t *testing.T) {
		h := newHarness(t)
		id := h.sessions.GetOrCreateSession(ctx)
		h.navigate("https://shop.example.com/?utm_source=news")
		assert.Equal(t, id, h.sessions.GetOrCreateSession(ctx))
	})

	t.Run("stored campaign, page without keeps session", func(t *testing.T) {
		h := newHarness(t)
		h.navigate("https://shop.example.com/?utm_source=news")
		id := h.sessions.GetOrCreateSession(ctx)
		h.navigate("https://shop.example.com/cart")
		assert.Equal(t, id, h.sessions.GetOrCreateSession(ctx))
	})

	t.Run("different campaign invalidates", func(t *testing.T) {
		h := newHarness(t)
		h.navigate("https://shop.example.com/?utm_source=news&utm_campaign=spring")
		id := h.sessions.GetOrCreateSession(ctx)

		h.navigate("https://shop.example.com/?utm_source=news&utm_campaign=spring")
		assert.Equal(t, id, h.sessions.GetOrCreateSession(ctx), "same campaign")

		h.navigate("https://shop.example.com/?utm_source=ads")
		assert.Nil(t, h.sessions.GetSession(ctx))
		next := h.sessions.GetOrCreateSession(ctx)
		assert.NotEqual(t, id, next)

		var stored session.Session
		require.True(t, h.store.GetJSON(ctx, store.KeySession, &stored))
		require.NotNil(t, stored.UTMHash)
		assert.Equal(t, `{"utm_source":"ads"}`, *stored.UTMHash)
	})
}

func TestSession_PersistedShape(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.sessions.GetOrCreateSession(ctx)

	raw, ok := h.store.Get(ctx, store.KeySession)
	require.True(t, ok)
	assert.JSONEq(t, `{"session_id":"`+id+`","started_at":1700000000000,"last_activity":1700000000000,"page_count":0,"utm_hash":null}`, raw)

	cookie, ok := h.store.Cookie(ctx, store.CookieSessionID)
	require.True(t, ok)
	assert.Equal(t, id, cookie)

	h.backend.EndBrowserSession()
	_, ok = h.store.Cookie(ctx, store.CookieSessionID)
	assert.False(t, ok, "session cookie expires with the browser session")
}

func TestSession_PageCountOnlyOnPageView(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	require.True(t, h.dispatcher.TrackPageView(ctx))
	require.True(t, h.dispatcher.TrackEvent(ctx, "signup", nil, nil))
	require.True(t, h.dispatcher.TrackClick(ctx, events.ClickData{Selector: "#buy", Position: [2]int{1, 2}}))
	h.clock.Advance(time.Minute)
	require.True(t, h.dispatcher.TrackPageView(ctx))
	h.wait(t)

	sess := h.sessions.GetSession(ctx)
	require.NotNil(t, sess)
	assert.Equal(t, uint(2), sess.PageCount)
	assert.Equal(t, t0+time.Minute.Milliseconds(), sess.LastActivity)
}

func TestSession_UpdateActivityNeverCreates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	assert.False(t, h.sessions.UpdateActivity(ctx))
	assert.False(t, h.sessions.IncrementPageCount(ctx))
	assert.Nil(t, h.sessions.GetSession(ctx))
	h.wait(t)
	assert.Empty(t, h.transport.Deliveries())
}

func TestSession_EndSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	assert.False(t, h.sessions.EndSession(ctx), "nothing to end")

	id := h.sessions.GetOrCreateSession(ctx)
	h.sessions.IncrementPageCount(ctx)
	h.clock.Advance(90 * time.Second)
	assert.True(t, h.sessions.EndSession(ctx))
	h.wait(t)

	ends := h.transport.Named(events.SessionEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, id, ends[0].SessionID)
	assert.Equal(t, int64(90000), ends[0].CustomProperties["duration_ms"])
	assert.Equal(t, uint(1), ends[0].CustomProperties["page_count"])

	_, ok := h.store.Get(ctx, store.KeySession)
	assert.False(t, ok)
	_, ok = h.store.Cookie(ctx, store.CookieSessionID)
	assert.False(t, ok)
}

func TestSession_EventsBypassSessionResolution(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	id := h.sessions.GetOrCreateSession(ctx)
	h.wait(t)

	starts := h.transport.Named(events.SessionStart)
	require.Len(t, starts, 1)
	assert.Equal(t, id, starts[0].SessionID)
	assert.Equal(t, "vis_0001", starts[0].VisitorID)
	assert.Nil(t, starts[0].CustomProperties)
}

func TestSession_StorageUnavailableKeepsMemorySlot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.backend.SetAvailable(false)

	id := h.sessions.GetOrCreateSession(ctx)
	assert.Equal(t, id, h.sessions.GetOrCreateSession(ctx))
	assert.True(t, h.sessions.IncrementPageCount(ctx))
	assert.Equal(t, uint(1), h.sessions.GetSession(ctx).PageCount)
}

func TestSession_ConcurrentCallersShareOneSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = h.sessions.GetOrCreateSession(ctx)
		}(i)
	}
	wg.Wait()
	h.wait(t)

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, h.transport.Named(events.SessionStart), 1)
}

// racingBackend writes a competing session into the slot on the nth read of it.
type racingBackend struct {
	*store.MemoryBackend
	mu     sync.Mutex
	reads  int
	inject int
	value  string
}

func (r *racingBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if key == store.KeySession {
		r.mu.Lock()
		r.reads++
		if r.reads == r.inject {
			_ = r.MemoryBackend.Set(ctx, key, r.value)
		}
		r.mu.Unlock()
	}
	return r.MemoryBackend.Get(ctx, key)
}

func TestSession_AdoptsSessionWrittenBeforeCommit(t *testing.T) {
	ctx := context.Background()

	competing := session.NewSession("ses_other_instance", time.UnixMilli(t0), nil)
	raw, err := json.Marshal(competing)
	require.NoError(t, err)

	racing := &racingBackend{MemoryBackend: store.NewMemoryBackend(nil), inject: 2, value: string(raw)}
	h := newHarness(t, withBackend(racing))

	assert.Equal(t, "ses_other_instance", h.sessions.GetOrCreateSession(ctx))
	h.wait(t)
	assert.Empty(t, h.transport.Named(events.SessionStart), "adopted sessions are not announced again")
}
