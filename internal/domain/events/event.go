// Package events provides the envelopes submitted to the collection endpoint.
package events

import (
	"fmt"
	"time"
)

// Event names emitted by the client itself.
const (
	PageView        = "page_view"
	Click           = "click"
	SessionStart    = "session_start"
	SessionEnd      = "session_end"
	PageHidden      = "page_hidden"
	PageVisible     = "page_visible"
	UserComeback    = "user_comeback"
	LeftWhileHidden = "left_while_hidden"
)

// Submission endpoints, relative to the configured base.
const (
	EndpointIngest   = "/ingest"
	EndpointIdentify = "/identify"
)

// TimestampLayout matches JavaScript's Date.prototype.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ClickData describes the element a click landed on.
type ClickData struct {
	Selector string `json:"selector"`
	Position [2]int `json:"position"`
}

// Envelope is the record submitted for every tracked event.
type Envelope struct {
	EventName              string            `json:"event_name"`
	ClientGeneratedEventID string            `json:"client_generated_event_id"`
	VisitorID              string            `json:"visitor_id"`
	SessionID              string            `json:"session_id"`
	ClientTimestampUTC     string            `json:"client_timestamp_utc"`
	UserAgent              string            `json:"user_agent"`
	Referrer               *string           `json:"referrer"`
	PageURL                string            `json:"page_url"`
	Host                   string            `json:"host"`
	UTMParameters          map[string]string `json:"utm_parameters"`
	ClickOn                *string           `json:"click_on,omitempty"`
	ClickPosition          *[2]int           `json:"click_position,omitempty"`
	CustomProperties       map[string]any    `json:"custom_properties,omitempty"`
}

// WithClick merges click metadata when a selector is present.
func (e *Envelope) WithClick(click *ClickData) {
	if click == nil || click.Selector == "" {
		return
	}
	selector := click.Selector
	position := click.Position
	e.ClickOn = &selector
	e.ClickPosition = &position
}

// WithProperties merges custom properties when non-empty.
func (e *Envelope) WithProperties(props map[string]any) {
	if len(props) == 0 {
		return
	}
	e.CustomProperties = props
}

// IdentifyPayload is the record submitted to the identify endpoint.
type IdentifyPayload struct {
	ClientGeneratedEventID string         `json:"client_generated_event_id"`
	VisitorID              string         `json:"visitor_id"`
	SessionID              string         `json:"session_id"`
	ClientTimestampUTC     string         `json:"client_timestamp_utc"`
	UserAgent              string         `json:"user_agent"`
	PageURL                string         `json:"page_url"`
	Host                   string         `json:"host"`
	AppID                  string         `json:"app_id,omitempty"`
	Email                  string         `json:"email,omitempty"`
	Fullname               string         `json:"fullname,omitempty"`
	AdditionalProperties   map[string]any `json:"additional_properties,omitempty"`
}

// IdentitySnapshot is the local copy kept after a successful identify.
type IdentitySnapshot struct {
	VisitorID    string `json:"visitor_id"`
	AppID        string `json:"app_id,omitempty"`
	Email        string `json:"email,omitempty"`
	Fullname     string `json:"fullname,omitempty"`
	IdentifiedAt string `json:"identified_at"`
}

// SplitUserInfo separates the known identity fields from the rest.
// "fullname" wins over "full_name" when both are present.
func SplitUserInfo(info map[string]any) (appID, email, fullname string, rest map[string]any) {
	rest = make(map[string]any)
	var snake string
	for key, value := range info {
		switch key {
		case "app_id":
			appID = stringify(value)
		case "email":
			email = stringify(value)
		case "fullname":
			fullname = stringify(value)
		case "full_name":
			snake = stringify(value)
		default:
			rest[key] = value
		}
	}
	if fullname == "" {
		fullname = snake
	}
	if len(rest) == 0 {
		rest = nil
	}
	return appID, email, fullname, rest
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
