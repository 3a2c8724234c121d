// Package store provides the cookie and local key-value persistence used by the
// client, with backends for memory, SQLite and libSQL.
package store

import (
	"context"
	"errors"
)

// Cookie and local-storage keys.
const (
	CookieVisitorID = "zori_visitor_id"
	CookieSessionID = "zori_session_id"
	CookieConsent   = "zori_consent"

	KeyFingerprint = "zori_fp"
	KeySession     = "zori_session"
	KeyIdentify    = "zori_identify"
)

// SessionCookie is the expiry value for cookies that end with the browser session.
const SessionCookie = 0

// ErrUnavailable is returned by a backend whose storage cannot be reached.
var ErrUnavailable = errors.New("storage unavailable")

// Backend is a raw persistence surface. Every method may fail.
type Backend interface {
	// GetCookie returns the cookie value and whether it exists and has not expired.
	GetCookie(ctx context.Context, name string) (string, bool, error)
	// SetCookie writes a cookie living for days days; SessionCookie (0) means it
	// ends with the browser session.
	SetCookie(ctx context.Context, name, value string, days int) error
	DeleteCookie(ctx context.Context, name string) error

	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
