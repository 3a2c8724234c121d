// Package fingerprint builds the device profile recorded on a visitor's first
// visit, along with a short hash derived from it.
package fingerprint

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Sentinel attribute values for signals that could not be read.
const (
	ValueError        = "error"
	ValueNotSupported = "not_supported"
	ValueUnknown      = "unknown"
)

// HashKey is the profile attribute holding the derived hash.
const HashKey = "fingerprint_hash"

// ErrNotSupported is returned by a probe whose signal does not exist on the host.
var ErrNotSupported = errors.New("not supported")

// Collector produces a device profile.
type Collector interface {
	Collect(ctx context.Context) (Profile, error)
}

// Profile is an opaque attribute map plus its derived hash.
type Profile struct {
	Attributes map[string]any
	Hash       string
}

// MarshalJSON flattens the hash into the attributes, the shape cached locally.
func (p Profile) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Attributes)+1)
	for k, v := range p.Attributes {
		out[k] = v
	}
	out[HashKey] = p.Hash
	return json.Marshal(out)
}

// Probe reads one asynchronous signal such as media devices or battery state.
type Probe func(ctx context.Context) (any, error)

// Environment is the static description of the host plus its async probes.
// Zero values are reported as ValueUnknown where the signal is optional.
type Environment struct {
	ScreenWidth, ScreenHeight     int
	ColorDepth, PixelDepth        int
	ViewportWidth, ViewportHeight int
	Orientation                   string

	UserAgent string
	Platform  string
	Language  string
	Languages []string
	Timezone  string
	// TimezoneOffset is minutes behind UTC, as browsers report it.
	TimezoneOffset int

	HardwareConcurrency int
	DeviceMemoryGB      float64
	MaxTouchPoints      int

	CookiesEnabled bool
	DoNotTrack     string
	LocalStorage   bool
	SessionStorage bool
	IndexedDB      bool

	Plugins []string

	// Probes keyed by attribute name (media_devices, battery, canvas_fingerprint, ...).
	// A nil probe is reported as ValueNotSupported.
	Probes map[string]Probe
}

// EnvironmentCollector builds profiles from an Environment.
type EnvironmentCollector struct {
	env Environment
}

// NewEnvironmentCollector creates a collector over env.
func NewEnvironmentCollector(env Environment) *EnvironmentCollector {
	return &EnvironmentCollector{env: env}
}

// Collect implements Collector. Probe failures degrade the attribute to a
// sentinel; only a failure to hash the profile is returned as an error.
func (c *EnvironmentCollector) Collect(ctx context.Context) (Profile, error) {
	env := c.env
	attrs := map[string]any{
		"screen_resolution":    fmt.Sprintf("%dx%d", env.ScreenWidth, env.ScreenHeight),
		"screen_color_depth":   env.ColorDepth,
		"screen_pixel_depth":   env.PixelDepth,
		"viewport_size":        fmt.Sprintf("%dx%d", env.ViewportWidth, env.ViewportHeight),
		"screen_orientation":   orUnknown(env.Orientation),
		"user_agent":           env.UserAgent,
		"platform":             env.Platform,
		"language":             env.Language,
		"languages":            strings.Join(env.Languages, ","),
		"timezone":             env.Timezone,
		"timezone_offset":      env.TimezoneOffset,
		"hardware_concurrency": unknownIfZero(env.HardwareConcurrency),
		"device_memory":        unknownIfZero(env.DeviceMemoryGB),
		"max_touch_points":     env.MaxTouchPoints,
		"cookies_enabled":      env.CookiesEnabled,
		"do_not_track":         orUnknown(env.DoNotTrack),
		"local_storage":        env.LocalStorage,
		"session_storage":      env.SessionStorage,
		"indexed_db":           env.IndexedDB,
		"plugins":              plugins(env.Plugins),
	}

	for name, value := range runProbes(ctx, env.Probes) {
		attrs[name] = value
	}

	hash, err := Hash(attrs)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Attributes: attrs, Hash: hash}, nil
}

func runProbes(ctx context.Context, probes map[string]Probe) map[string]any {
	results := make(map[string]any, len(probes))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, probe := range probes {
		if probe == nil {
			results[name] = ValueNotSupported
			continue
		}
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()
			value, err := probe(ctx)
			switch {
			case errors.Is(err, ErrNotSupported):
				value = ValueNotSupported
			case err != nil:
				value = ValueError
			}
			mu.Lock()
			results[name] = value
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()
	return results
}

// Hash derives the short profile hash: BLAKE2b-256 over the canonical JSON of
// attrs, first eight bytes rendered in base 36.
func Hash(attrs map[string]any) (string, error) {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("failed to encode fingerprint: %w", err)
	}
	sum := blake2b.Sum256(raw)
	return strconv.FormatUint(binary.BigEndian.Uint64(sum[:8]), 36), nil
}

func plugins(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func orUnknown(s string) string {
	if s == "" {
		return ValueUnknown
	}
	return s
}

func unknownIfZero[T int | float64](v T) any {
	if v == 0 {
		return ValueUnknown
	}
	return v
}

// HostEnvironment describes the running process for command-line and server
// hosts, where there is no screen or browser storage to inspect.
func HostEnvironment(userAgent string) Environment {
	zone, offset := time.Now().Zone()
	lang := os.Getenv("LANG")
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	lang = strings.ReplaceAll(lang, "_", "-")

	env := Environment{
		UserAgent:           userAgent,
		Platform:            runtime.GOOS + "/" + runtime.GOARCH,
		Language:            lang,
		Timezone:            zone,
		TimezoneOffset:      -offset / 60,
		HardwareConcurrency: runtime.NumCPU(),
		CookiesEnabled:      true,
		LocalStorage:        true,
		Probes: map[string]Probe{
			"media_devices": nil,
			"battery":       nil,
		},
	}
	if lang != "" {
		env.Languages = []string{lang}
	}
	return env
}
