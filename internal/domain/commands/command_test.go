package commands

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/zori-go/internal/domain/events"
	"github.com/AtRiskMedia/zori-go/internal/domain/faults"
)

func TestParse_Track(t *testing.T) {
	cmd, err := Parse("track", "signup", map[string]any{"plan": "pro"}, map[string]any{
		"selector": "#cta",
		"position": []any{float64(10), float64(20)},
	})
	require.NoError(t, err)

	track, ok := cmd.(Track)
	require.True(t, ok)
	assert.Equal(t, "signup", track.Name)
	assert.Equal(t, map[string]any{"plan": "pro"}, track.Properties)
	require.NotNil(t, track.Click)
	assert.Equal(t, events.ClickData{Selector: "#cta", Position: [2]int{10, 20}}, *track.Click)
}

func TestParse_TrackRejectsMissingName(t *testing.T) {
	_, err := Parse("track")
	assert.True(t, errors.Is(err, faults.ErrConfig))

	_, err = Parse("track", 42)
	assert.True(t, errors.Is(err, faults.ErrConfig))

	_, err = Parse("track", "x", "not-an-object")
	assert.True(t, errors.Is(err, faults.ErrConfig))
}

func TestParse_IdentifyRequiresObject(t *testing.T) {
	cmd, err := Parse("identify", map[string]any{"email": "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, KindIdentify, cmd.Kind())

	_, err = Parse("identify", "a@b.c")
	assert.True(t, errors.Is(err, faults.ErrConfig))

	_, err = Parse("identify")
	assert.True(t, errors.Is(err, faults.ErrConfig))
}

func TestParse_SetConsent(t *testing.T) {
	cmd, err := Parse("setConsent", map[string]any{"analytics": false})
	require.NoError(t, err)
	sc := cmd.(SetConsent)
	require.NotNil(t, sc.Preferences.Analytics)
	assert.False(t, *sc.Preferences.Analytics)

	_, err = Parse("setConsent", "nope")
	assert.True(t, errors.Is(err, faults.ErrConfig))
}

func TestParse_Callbacks(t *testing.T) {
	var got string
	cmd, err := Parse("getVisitorId", func(id string) { got = id })
	require.NoError(t, err)
	gv := cmd.(GetVisitorID)
	require.NotNil(t, gv.Callback)
	gv.Callback("vis_1")
	assert.Equal(t, "vis_1", got)

	cmd, err = Parse("getVisitorId")
	require.NoError(t, err)
	assert.Nil(t, cmd.(GetVisitorID).Callback)

	cmd, err = Parse("hasConsent", func(bool) {})
	require.NoError(t, err)
	assert.NotNil(t, cmd.(HasConsent).Callback)
}

func TestParse_PushWrapsInner(t *testing.T) {
	cmd, err := Parse("push", "track", "clicked")
	require.NoError(t, err)

	push, ok := cmd.(Push)
	require.True(t, ok)
	assert.Equal(t, KindTrack, push.Inner.Kind())
}

func TestParse_UnknownMethod(t *testing.T) {
	_, err := Parse("explode", 1, 2)
	assert.True(t, errors.Is(err, ErrUnknownMethod))
	assert.Contains(t, err.Error(), "explode")
}

func TestBuffer_DrainOnce(t *testing.T) {
	b := NewBuffer()
	require.True(t, b.Append("track", "a"))
	require.True(t, b.Append("identify", map[string]any{}))
	require.True(t, b.Append("track", "b"))
	assert.Equal(t, 3, b.Len())

	snapshot := b.Drain()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "track", snapshot[0].Method)
	assert.Equal(t, []any{"a"}, snapshot[0].Args)
	assert.Equal(t, "identify", snapshot[1].Method)
	assert.Equal(t, []any{"b"}, snapshot[2].Args)

	assert.True(t, b.Drained())
	assert.Nil(t, b.Drain(), "second drain returns nothing")
	assert.False(t, b.Append("track", "late"), "append after drain is refused")
	assert.Equal(t, 0, b.Len())
}
