// Package consent holds the consent record and the folding rules applied to
// consent preferences supplied by the host.
package consent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AtRiskMedia/zori-go/internal/domain/faults"
)

// Tri is a tri-state grant flag.
type Tri int

const (
	Unset Tri = iota
	Granted
	Denied
)

func (t Tri) String() string {
	switch t {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unset"
	}
}

// TriOf converts a bool to Granted/Denied.
func TriOf(v bool) Tri {
	if v {
		return Granted
	}
	return Denied
}

// Record is the live consent state.
type Record struct {
	AnalyticsGranted   Tri
	MarketingGranted   bool
	HasExplicitConsent bool
	RecordedAt         time.Time
}

// Preferences are host-supplied consent choices. Nil fields are folded by Fold.
type Preferences struct {
	Analytics *bool `json:"analytics,omitempty" yaml:"analytics,omitempty"`
	Marketing *bool `json:"marketing,omitempty" yaml:"marketing,omitempty"`
}

// Fold applies the defaults: missing analytics means granted, missing marketing means denied.
func (p Preferences) Fold() (analytics, marketing bool) {
	analytics = true
	if p.Analytics != nil {
		analytics = *p.Analytics
	}
	if p.Marketing != nil {
		marketing = *p.Marketing
	}
	return analytics, marketing
}

// DeniedPreferences returns preferences that revoke everything.
func DeniedPreferences() Preferences {
	f := false
	return Preferences{Analytics: &f, Marketing: &f}
}

// cookieValue is the wire form stored in the consent cookie.
type cookieValue struct {
	Analytics *bool `json:"analytics"`
	Marketing *bool `json:"marketing"`
	Timestamp int64 `json:"timestamp"`
}

// Encode renders the cookie payload for folded preferences.
func Encode(p Preferences, at time.Time) (string, error) {
	analytics, marketing := p.Fold()
	raw, err := json.Marshal(cookieValue{Analytics: &analytics, Marketing: &marketing, Timestamp: at.UnixMilli()})
	if err != nil {
		return "", fmt.Errorf("failed to encode consent: %w", err)
	}
	return string(raw), nil
}

// Decode parses a cookie payload into a Record, folding missing fields.
func Decode(value string) (Record, error) {
	var cv cookieValue
	if err := json.Unmarshal([]byte(value), &cv); err != nil {
		return Record{}, faults.MalformedState("decode consent", err)
	}
	analytics, marketing := Preferences{Analytics: cv.Analytics, Marketing: cv.Marketing}.Fold()
	rec := Record{
		AnalyticsGranted:   TriOf(analytics),
		MarketingGranted:   marketing,
		HasExplicitConsent: true,
	}
	if cv.Timestamp > 0 {
		rec.RecordedAt = time.UnixMilli(cv.Timestamp).UTC()
	}
	return rec, nil
}

// PreferencesFrom converts a loosely typed argument (as pushed through the
// command queue) into Preferences. Anything that is not an object is a ConfigError.
func PreferencesFrom(v any) (Preferences, error) {
	switch p := v.(type) {
	case Preferences:
		return p, nil
	case *Preferences:
		if p == nil {
			return Preferences{}, faults.Config("setConsent", "preferences must be an object, got nil")
		}
		return *p, nil
	case map[string]any:
		var out Preferences
		for key, raw := range p {
			b, ok := boolish(raw)
			if !ok {
				continue
			}
			switch key {
			case "analytics":
				out.Analytics = &b
			case "marketing":
				out.Marketing = &b
			}
		}
		return out, nil
	case map[string]bool:
		var out Preferences
		if b, ok := p["analytics"]; ok {
			out.Analytics = &b
		}
		if b, ok := p["marketing"]; ok {
			out.Marketing = &b
		}
		return out, nil
	default:
		return Preferences{}, faults.Config("setConsent", "preferences must be an object, got %T", v)
	}
}

func boolish(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	default:
		return false, false
	}
}
