package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/zori-go/internal/domain/faults"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultSessionTimeout, cfg.SessionTimeout)
	assert.Equal(t, DefaultComebackThreshold, cfg.ComebackThreshold)
	assert.Equal(t, DefaultImplicitConsent, cfg.ImplicitConsent)
}

func TestFromAttributes(t *testing.T) {
	cfg, err := FromAttributes(map[string]string{
		AttrKey:                "pk_live_1",
		AttrBaseURL:            "https://collector.example.com/ingest",
		AttrComebackThreshold:  "45000",
		AttrTrackQuickSwitches: "true",
	})
	require.NoError(t, err)
	assert.Equal(t, "pk_live_1", cfg.Key)
	assert.Equal(t, "https://collector.example.com/ingest", cfg.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.ComebackThreshold)
	assert.True(t, cfg.TrackQuickSwitches)
}

func TestFromAttributes_MissingKey(t *testing.T) {
	_, err := FromAttributes(map[string]string{AttrKey: ""})
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrConfig))
}

func TestFromAttributes_BadValues(t *testing.T) {
	_, err := FromAttributes(map[string]string{AttrKey: "pk", AttrComebackThreshold: "soon"})
	assert.True(t, errors.Is(err, faults.ErrConfig))

	_, err = FromAttributes(map[string]string{AttrKey: "pk", AttrTrackQuickSwitches: "maybe"})
	assert.True(t, errors.Is(err, faults.ErrConfig))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zori.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
key: pk_file
base_url: http://localhost:8787
session_timeout: 10m
comeback_threshold: 5s
track_quick_switches: true
implicit_consent: false
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pk_file", cfg.Key)
	assert.Equal(t, "http://localhost:8787", cfg.BaseURL)
	assert.Equal(t, 10*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, 5*time.Second, cfg.ComebackThreshold)
	assert.True(t, cfg.TrackQuickSwitches)
	assert.False(t, cfg.ImplicitConsent)
	assert.Equal(t, DefaultHonorDoNotTrack, cfg.HonorDoNotTrack, "unset keys keep defaults")
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("key: [unterminated"), 0o644))
	_, err = LoadFile(path)
	assert.True(t, errors.Is(err, faults.ErrConfig))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Key = "pk"
	require.NoError(t, cfg.Validate())

	cfg.SessionTimeout = 0
	assert.True(t, errors.Is(cfg.Validate(), faults.ErrConfig))

	cfg = Default()
	cfg.Key = "pk"
	cfg.ComebackThreshold = -time.Second
	assert.True(t, errors.Is(cfg.Validate(), faults.ErrConfig))
}
