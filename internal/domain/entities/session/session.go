// Package session provides the persisted session record and the rules that
// decide whether a stored session may still be used.
package session

import "time"

// DefaultTimeout is the inactivity window after which a session ends.
const DefaultTimeout = 30 * time.Minute

// Session is the persisted session slot. Timestamps are Unix milliseconds so the
// record stays compatible with what the browser tracker writes to local storage.
type Session struct {
	SessionID    string  `json:"session_id"`
	StartedAt    int64   `json:"started_at"`
	LastActivity int64   `json:"last_activity"`
	PageCount    uint    `json:"page_count"`
	UTMHash      *string `json:"utm_hash"`
}

// Validity is the outcome of evaluating a stored session against the current page.
type Validity int

const (
	Valid Validity = iota
	TimedOut
	CampaignChanged
	Missing
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case TimedOut:
		return "timed_out"
	case CampaignChanged:
		return "campaign_changed"
	default:
		return "missing"
	}
}

// NewSession creates a fresh record started at now.
func NewSession(id string, now time.Time, utmHash *string) *Session {
	ms := now.UnixMilli()
	return &Session{
		SessionID:    id,
		StartedAt:    ms,
		LastActivity: ms,
		PageCount:    0,
		UTMHash:      utmHash,
	}
}

// Evaluate applies the timeout and campaign rules. A nil fingerprint on either
// side never invalidates; only two different non-nil fingerprints do.
func (s *Session) Evaluate(now time.Time, timeout time.Duration, currentUTM *string) Validity {
	if s == nil || s.SessionID == "" {
		return Missing
	}
	if now.UnixMilli()-s.LastActivity > timeout.Milliseconds() {
		return TimedOut
	}
	if currentUTM != nil && s.UTMHash != nil && *currentUTM != *s.UTMHash {
		return CampaignChanged
	}
	return Valid
}

// Touch refreshes the activity timestamp.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now.UnixMilli()
}

// CountPage records a page view.
func (s *Session) CountPage(now time.Time) {
	s.PageCount++
	s.Touch(now)
}

// Duration returns the time elapsed since the session started.
func (s *Session) Duration(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-s.StartedAt) * time.Millisecond
}

// Started returns the start time.
func (s *Session) Started() time.Time {
	return time.UnixMilli(s.StartedAt).UTC()
}
