package services

import (
	"context"
	"errors"

	"github.com/AtRiskMedia/zori-go/internal/domain/commands"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
)

// Outcome is the result of one executed command.
type Outcome struct {
	Kind commands.Kind
	// OK is the boolean result of track, identify, setConsent, optOut and hasConsent.
	OK bool
	// ID is the result of getVisitorId and getSessionId.
	ID string
}

// CommandService executes typed commands against the live services.
type CommandService struct {
	consent    *ConsentService
	visitors   *VisitorService
	sessions   *SessionService
	dispatcher *DispatchService
	logger     *logging.ChanneledLogger
}

// NewCommandService creates a new command service
func NewCommandService(consentSvc *ConsentService, visitors *VisitorService, sessions *SessionService, dispatcher *DispatchService, logger *logging.ChanneledLogger) *CommandService {
	return &CommandService{
		consent:    consentSvc,
		visitors:   visitors,
		sessions:   sessions,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Execute runs cmd.
func (s *CommandService) Execute(ctx context.Context, cmd commands.Command) Outcome {
	switch c := cmd.(type) {
	case commands.Track:
		return Outcome{Kind: c.Kind(), OK: s.dispatcher.TrackEvent(ctx, c.Name, c.Properties, c.Click)}

	case commands.Identify:
		ok, err := s.dispatcher.IdentifyUser(ctx, c.UserInfo)
		if err != nil {
			s.logger.LogError(logging.ChannelQueue, "identify", err, nil)
		}
		return Outcome{Kind: c.Kind(), OK: ok}

	case commands.GetVisitorID:
		id := s.visitors.Resolve(ctx).ID
		if c.Callback != nil {
			c.Callback(id)
		}
		return Outcome{Kind: c.Kind(), OK: true, ID: id}

	case commands.SetConsent:
		return Outcome{Kind: c.Kind(), OK: s.consent.SetConsent(ctx, c.Preferences)}

	case commands.OptOut:
		ok := s.consent.OptOut(ctx)
		s.visitors.Forget()
		s.sessions.Reset()
		return Outcome{Kind: c.Kind(), OK: ok}

	case commands.HasConsent:
		granted := s.consent.HasTrackingConsent(ctx)
		if c.Callback != nil {
			c.Callback(granted)
		}
		return Outcome{Kind: c.Kind(), OK: granted}

	case commands.GetSessionID:
		id := s.sessions.CurrentSessionID(ctx)
		if c.Callback != nil {
			c.Callback(id)
		}
		return Outcome{Kind: c.Kind(), OK: id != "", ID: id}

	case commands.Push:
		if c.Inner == nil {
			return Outcome{Kind: c.Kind()}
		}
		return s.Execute(ctx, c.Inner)

	default:
		s.logger.Queue().Warn("Unhandled command", "kind", string(cmd.Kind()))
		return Outcome{Kind: cmd.Kind()}
	}
}

// ExecuteRaw parses and runs one (method, args...) call. Parse failures are
// logged and reported as not OK.
func (s *CommandService) ExecuteRaw(ctx context.Context, raw commands.Raw) (Outcome, error) {
	cmd, err := commands.Parse(raw.Method, raw.Args...)
	if err != nil {
		if errors.Is(err, commands.ErrUnknownMethod) {
			s.logger.Queue().Warn("Skipping unknown method", "method", raw.Method)
		} else {
			s.logger.LogError(logging.ChannelQueue, raw.Method, err, nil)
		}
		return Outcome{Kind: commands.Kind(raw.Method)}, err
	}
	return s.Execute(ctx, cmd), nil
}

// Replay runs a drained snapshot in order. A failing call never stops the
// calls after it. It returns how many calls ran.
func (s *CommandService) Replay(ctx context.Context, snapshot []commands.Raw) int {
	executed := 0
	for _, raw := range snapshot {
		if _, err := s.ExecuteRaw(ctx, raw); err == nil {
			executed++
		}
	}
	s.logger.Queue().Debug("Replayed queued commands", "queued", len(snapshot), "executed", executed)
	return executed
}
