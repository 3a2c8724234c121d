// Package commands defines the calls a host may issue against the client,
// as a closed set of variants, plus the append-only buffer that holds calls
// issued before the client is initialized.
package commands

import (
	"errors"
	"fmt"

	"github.com/AtRiskMedia/zori-go/internal/domain/entities/consent"
	"github.com/AtRiskMedia/zori-go/internal/domain/events"
	"github.com/AtRiskMedia/zori-go/internal/domain/faults"
)

// Kind names a command variant. The values are the method names hosts use.
type Kind string

const (
	KindTrack        Kind = "track"
	KindIdentify     Kind = "identify"
	KindGetVisitorID Kind = "getVisitorId"
	KindSetConsent   Kind = "setConsent"
	KindOptOut       Kind = "optOut"
	KindHasConsent   Kind = "hasConsent"
	KindGetSessionID Kind = "getSessionId"
	KindPush         Kind = "push"
)

// ErrUnknownMethod is returned by Parse for a method name outside the command set.
var ErrUnknownMethod = errors.New("unknown method")

// Command is one of the variants below. The unexported method closes the set.
type Command interface {
	Kind() Kind
	command()
}

// Track records a named event.
type Track struct {
	Name       string
	Properties map[string]any
	Click      *events.ClickData
}

// Identify attaches user identity fields to the visitor.
type Identify struct {
	UserInfo map[string]any
}

// GetVisitorID resolves the visitor id; Callback, when set, receives it.
type GetVisitorID struct {
	Callback func(id string)
}

// SetConsent records consent preferences.
type SetConsent struct {
	Preferences consent.Preferences
}

// OptOut revokes consent and wipes local identity.
type OptOut struct{}

// HasConsent evaluates the consent gate; Callback, when set, receives the answer.
type HasConsent struct {
	Callback func(granted bool)
}

// GetSessionID reads the current session id; Callback, when set, receives it
// ("" when there is no valid session).
type GetSessionID struct {
	Callback func(id string)
}

// Push wraps another command, as issued through the live push entry point.
type Push struct {
	Inner Command
}

func (Track) Kind() Kind        { return KindTrack }
func (Identify) Kind() Kind     { return KindIdentify }
func (GetVisitorID) Kind() Kind { return KindGetVisitorID }
func (SetConsent) Kind() Kind   { return KindSetConsent }
func (OptOut) Kind() Kind       { return KindOptOut }
func (HasConsent) Kind() Kind   { return KindHasConsent }
func (GetSessionID) Kind() Kind { return KindGetSessionID }
func (Push) Kind() Kind         { return KindPush }

func (Track) command()        {}
func (Identify) command()     {}
func (GetVisitorID) command() {}
func (SetConsent) command()   {}
func (OptOut) command()       {}
func (HasConsent) command()   {}
func (GetSessionID) command() {}
func (Push) command()         {}

// Raw is a loosely typed (method, args...) tuple as pushed by a host before
// the client exists.
type Raw struct {
	Method string
	Args   []any
}

// Parse converts a raw tuple into a typed command.
func Parse(method string, args ...any) (Command, error) {
	switch Kind(method) {
	case KindTrack:
		return parseTrack(args)
	case KindIdentify:
		if len(args) == 0 {
			return nil, faults.Config("identify", "user info must be an object, got nothing")
		}
		info, ok := args[0].(map[string]any)
		if !ok || info == nil {
			return nil, faults.Config("identify", "user info must be an object, got %T", args[0])
		}
		return Identify{UserInfo: info}, nil
	case KindGetVisitorID:
		cb, _ := trailing[func(string)](args)
		return GetVisitorID{Callback: cb}, nil
	case KindSetConsent:
		var arg any
		if len(args) > 0 {
			arg = args[0]
		}
		prefs, err := consent.PreferencesFrom(arg)
		if err != nil {
			return nil, err
		}
		return SetConsent{Preferences: prefs}, nil
	case KindOptOut:
		return OptOut{}, nil
	case KindHasConsent:
		cb, _ := trailing[func(bool)](args)
		return HasConsent{Callback: cb}, nil
	case KindGetSessionID:
		cb, _ := trailing[func(string)](args)
		return GetSessionID{Callback: cb}, nil
	case KindPush:
		if len(args) == 0 {
			return nil, faults.Config("push", "push requires a method name")
		}
		inner, ok := args[0].(string)
		if !ok {
			return nil, faults.Config("push", "method name must be a string, got %T", args[0])
		}
		cmd, err := Parse(inner, args[1:]...)
		if err != nil {
			return nil, err
		}
		return Push{Inner: cmd}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

func parseTrack(args []any) (Command, error) {
	if len(args) == 0 {
		return nil, faults.Config("track", "event name is required")
	}
	name, ok := args[0].(string)
	if !ok || name == "" {
		return nil, faults.Config("track", "event name must be a non-empty string, got %T", args[0])
	}
	cmd := Track{Name: name}
	if len(args) > 1 && args[1] != nil {
		props, ok := args[1].(map[string]any)
		if !ok {
			return nil, faults.Config("track", "properties must be an object, got %T", args[1])
		}
		cmd.Properties = props
	}
	if len(args) > 2 && args[2] != nil {
		click, err := clickFrom(args[2])
		if err != nil {
			return nil, err
		}
		cmd.Click = click
	}
	return cmd, nil
}

func clickFrom(v any) (*events.ClickData, error) {
	switch c := v.(type) {
	case events.ClickData:
		return &c, nil
	case *events.ClickData:
		return c, nil
	case map[string]any:
		click := &events.ClickData{}
		click.Selector, _ = c["selector"].(string)
		switch pos := c["position"].(type) {
		case [2]int:
			click.Position = pos
		case []int:
			if len(pos) == 2 {
				click.Position = [2]int{pos[0], pos[1]}
			}
		case []any:
			if len(pos) == 2 {
				click.Position = [2]int{toInt(pos[0]), toInt(pos[1])}
			}
		}
		return click, nil
	default:
		return nil, faults.Config("track", "click data must be an object, got %T", v)
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// trailing returns the last argument when it has type T.
func trailing[T any](args []any) (T, bool) {
	var zero T
	if len(args) == 0 {
		return zero, false
	}
	v, ok := args[len(args)-1].(T)
	return v, ok
}
