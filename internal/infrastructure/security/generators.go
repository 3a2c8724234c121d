// Package security provides identifier generation for visitors, sessions and events.
package security

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Identifier prefixes.
const (
	VisitorPrefix = "vis_"
	SessionPrefix = "ses_"
)

// IDGenerator mints the identifiers the client stamps on its records.
type IDGenerator interface {
	VisitorID() string
	SessionID() string
	EventID() string
}

// DefaultIDs uses random UUIDs for visitors and events and ULIDs for sessions,
// so session ids sort by creation time.
type DefaultIDs struct{}

// VisitorID returns "vis_" followed by a random (v4) UUID.
func (DefaultIDs) VisitorID() string {
	return VisitorPrefix + uuid.NewString()
}

// SessionID returns "ses_" followed by a ULID.
func (DefaultIDs) SessionID() string {
	return SessionPrefix + GenerateULID()
}

// EventID returns a random (v4) UUID.
func (DefaultIDs) EventID() string {
	return uuid.NewString()
}

// GenerateULID generates a new ULID string.
func GenerateULID() string {
	return ulid.Make().String()
}
