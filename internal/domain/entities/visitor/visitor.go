// Package visitor defines the durable visitor identity.
package visitor

import "time"

// CookieLifetimeDays is how long the visitor cookie lives (two years).
const CookieLifetimeDays = 365 * 2

// Identity is an opaque, long-lived visitor id.
type Identity struct {
	ID string
	// CreatedAt is only known for identities minted during this call.
	CreatedAt time.Time
	// IsNew reports whether the id was created by this resolution.
	IsNew bool
}
