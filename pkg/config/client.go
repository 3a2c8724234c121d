package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AtRiskMedia/zori-go/internal/domain/faults"
)

// Host attribute names, as declared on the embedding script tag.
const (
	AttrKey                = "data-key"
	AttrBaseURL            = "data-base-url"
	AttrComebackThreshold  = "data-comeback-threshold"
	AttrTrackQuickSwitches = "data-track-quick-switches"
)

// Client is the configuration of one client instance. Values are fixed for the
// lifetime of the instance.
type Client struct {
	// Key is the publishable key sent with every request. Required.
	Key string `yaml:"key"`
	// BaseURL overrides the ingestion endpoint.
	BaseURL string `yaml:"base_url"`

	SessionTimeout     time.Duration `yaml:"session_timeout"`
	ComebackThreshold  time.Duration `yaml:"comeback_threshold"`
	TrackQuickSwitches bool          `yaml:"track_quick_switches"`

	HonorDoNotTrack bool `yaml:"honor_do_not_track"`
	// ImplicitConsent grants tracking when no explicit choice was ever recorded.
	ImplicitConsent bool `yaml:"implicit_consent"`

	// AutoPageView tracks a page_view once initialization completes.
	AutoPageView bool `yaml:"auto_page_view"`
	// EndSessionOnUnload ends the session from the unload hook.
	EndSessionOnUnload bool `yaml:"end_session_on_unload"`
}

// Default returns the configuration built from the environment defaults.
func Default() Client {
	return Client{
		Key:                DefaultKey,
		BaseURL:            DefaultBaseURL,
		SessionTimeout:     DefaultSessionTimeout,
		ComebackThreshold:  DefaultComebackThreshold,
		TrackQuickSwitches: DefaultTrackQuickSwitches,
		HonorDoNotTrack:    DefaultHonorDoNotTrack,
		ImplicitConsent:    DefaultImplicitConsent,
		AutoPageView:       DefaultAutoPageView,
		EndSessionOnUnload: DefaultEndSessionOnUnload,
	}
}

// FromAttributes applies host attributes over the defaults. The comeback
// threshold is given in milliseconds.
func FromAttributes(attrs map[string]string) (Client, error) {
	cfg := Default()
	if v, ok := attrs[AttrKey]; ok {
		cfg.Key = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(attrs[AttrBaseURL]); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(attrs[AttrComebackThreshold]); v != "" {
		ms, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return cfg, faults.Config("attributes", "%s must be a non-negative integer, got %q", AttrComebackThreshold, v)
		}
		cfg.ComebackThreshold = time.Duration(ms) * time.Millisecond
	}
	if v := strings.TrimSpace(attrs[AttrTrackQuickSwitches]); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, faults.Config("attributes", "%s must be a boolean, got %q", AttrTrackQuickSwitches, v)
		}
		cfg.TrackQuickSwitches = on
	}
	return cfg, cfg.Validate()
}

// LoadFile reads a YAML file over the defaults.
func LoadFile(path string) (Client, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, faults.Config("load "+path, "invalid YAML: %v", err)
	}
	return cfg, nil
}

// Validate checks the required key and the time windows.
func (c Client) Validate() error {
	if c.Key == "" {
		return faults.Config("validate", "missing publishable key (%s)", AttrKey)
	}
	if c.SessionTimeout <= 0 {
		return faults.Config("validate", "session timeout must be positive, got %s", c.SessionTimeout)
	}
	if c.ComebackThreshold < 0 {
		return faults.Config("validate", "comeback threshold must not be negative, got %s", c.ComebackThreshold)
	}
	return nil
}
