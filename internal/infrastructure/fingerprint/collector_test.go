package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnvironment() Environment {
	return Environment{
		ScreenWidth:    1920,
		ScreenHeight:   1080,
		ColorDepth:     24,
		PixelDepth:     24,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64)",
		Platform:       "Linux x86_64",
		Language:       "en-US",
		Languages:      []string{"en-US", "en"},
		Timezone:       "Europe/Paris",
		TimezoneOffset: -60,
		CookiesEnabled: true,
		Plugins:        []string{"b", "a"},
	}
}

func TestEnvironmentCollector_Attributes(t *testing.T) {
	profile, err := NewEnvironmentCollector(testEnvironment()).Collect(context.Background())
	require.NoError(t, err)

	attrs := profile.Attributes
	assert.Equal(t, "1920x1080", attrs["screen_resolution"])
	assert.Equal(t, "1280x720", attrs["viewport_size"])
	assert.Equal(t, "en-US,en", attrs["languages"])
	assert.Equal(t, "a,b", attrs["plugins"])
	assert.Equal(t, ValueUnknown, attrs["screen_orientation"])
	assert.Equal(t, ValueUnknown, attrs["hardware_concurrency"])
	assert.Equal(t, ValueUnknown, attrs["do_not_track"])
	assert.NotEmpty(t, profile.Hash)
}

func TestEnvironmentCollector_ProbesDegrade(t *testing.T) {
	env := testEnvironment()
	env.Probes = map[string]Probe{
		"media_devices": func(context.Context) (any, error) {
			return map[string]int{"audio_input": 1, "audio_output": 2, "video_input": 0}, nil
		},
		"battery": func(context.Context) (any, error) {
			return nil, errors.New("permission denied")
		},
		"connection": func(context.Context) (any, error) {
			return nil, ErrNotSupported
		},
		"audio_context": nil,
	}

	profile, err := NewEnvironmentCollector(env).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"audio_input": 1, "audio_output": 2, "video_input": 0}, profile.Attributes["media_devices"])
	assert.Equal(t, ValueError, profile.Attributes["battery"])
	assert.Equal(t, ValueNotSupported, profile.Attributes["connection"])
	assert.Equal(t, ValueNotSupported, profile.Attributes["audio_context"])
}

func TestHash_Stable(t *testing.T) {
	a := map[string]any{"x": 1, "y": "two"}
	b := map[string]any{"y": "two", "x": 1}

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb, "key order does not matter")

	hc, err := Hash(map[string]any{"x": 2, "y": "two"})
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}

func TestProfile_MarshalJSON(t *testing.T) {
	p := Profile{Attributes: map[string]any{"platform": "linux"}, Hash: "abc123"}
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"platform":"linux","fingerprint_hash":"abc123"}`, string(raw))
}

func TestHostEnvironment(t *testing.T) {
	env := HostEnvironment("zori-go/1.0.0")
	assert.Equal(t, "zori-go/1.0.0", env.UserAgent)
	assert.NotEmpty(t, env.Platform)
	assert.Positive(t, env.HardwareConcurrency)

	profile, err := NewEnvironmentCollector(env).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ValueNotSupported, profile.Attributes["battery"])
}
