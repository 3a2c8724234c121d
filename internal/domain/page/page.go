// Package page describes the host page the client is embedded in: its address,
// title, referrer, user agent and Do-Not-Track signal, plus the marketing
// campaign parameters derived from the address.
package page

import (
	"encoding/json"
	"net/url"
	"sync"
)

// UTMKeys lists the campaign query parameters, in reporting order.
var UTMKeys = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content"}

// Page is a snapshot of the host page at the time of a call.
type Page struct {
	URL        *url.URL
	Title      string
	Referrer   string
	UserAgent  string
	DoNotTrack bool
}

// Provider returns the current page. Hosts that navigate update what it returns.
type Provider interface {
	Current() Page
}

// Path returns the URL path ("/" when empty).
func (p Page) Path() string {
	if p.URL == nil || p.URL.Path == "" {
		return "/"
	}
	return p.URL.Path
}

// Host returns host[:port].
func (p Page) Host() string {
	if p.URL == nil {
		return ""
	}
	return p.URL.Host
}

// Search returns the raw query with its leading "?" or "".
func (p Page) Search() string {
	if p.URL == nil || p.URL.RawQuery == "" {
		return ""
	}
	return "?" + p.URL.RawQuery
}

// Hash returns the fragment with its leading "#" or "".
func (p Page) Hash() string {
	if p.URL == nil || p.URL.Fragment == "" {
		return ""
	}
	return "#" + p.URL.Fragment
}

// ReferrerOrNil returns nil for an empty referrer.
func (p Page) ReferrerOrNil() *string {
	if p.Referrer == "" {
		return nil
	}
	r := p.Referrer
	return &r
}

// UTMParameters extracts non-empty campaign parameters. Returns nil when none are present.
func (p Page) UTMParameters() map[string]string {
	if p.URL == nil {
		return nil
	}
	q := p.URL.Query()
	params := make(map[string]string)
	for _, key := range UTMKeys {
		if v := q.Get(key); v != "" {
			params[key] = v
		}
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

// UTMFingerprint returns a stable string identifying the campaign parameters,
// or nil when the page carries none.
func (p Page) UTMFingerprint() *string {
	return Fingerprint(p.UTMParameters())
}

// Fingerprint encodes campaign parameters as canonical JSON (sorted keys).
func Fingerprint(params map[string]string) *string {
	if len(params) == 0 {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	s := string(raw)
	return &s
}

// Static is a mutable Provider for hosts that report navigation explicitly.
type Static struct {
	mu   sync.RWMutex
	page Page
}

// NewStatic creates a provider positioned at p.
func NewStatic(p Page) *Static {
	return &Static{page: p}
}

// MustParse builds a Page from a raw URL, panicking on malformed input. Intended
// for fixed addresses in hosts and tests.
func MustParse(rawURL string) Page {
	u, err := url.Parse(rawURL)
	if err != nil {
		panic(err)
	}
	return Page{URL: u}
}

// Current implements Provider.
func (s *Static) Current() Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// Navigate replaces the current page.
func (s *Static) Navigate(p Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = p
}

// SetDoNotTrack toggles the Do-Not-Track signal of the current page.
func (s *Static) SetDoNotTrack(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page.DoNotTrack = on
}
