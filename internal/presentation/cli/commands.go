package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/AtRiskMedia/zori-go/pkg/zori"
)

// TrackOptions holds flags for the track command.
type TrackOptions struct {
	*RootOptions
	Props    string
	Selector string
	X, Y     int
}

// NewTrackCommand creates the track command.
func NewTrackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "track <event-name>",
		Short: "Track a named event",
		Long: `Track a named event for the current visitor and session.

Example:
  zori-go track add_to_cart --props '{"sku":"A-1"}' --selector '#buy' --x 10 --y 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseObject("props", opts.Props)
			if err != nil {
				return err
			}
			var click *zori.ClickData
			if opts.Selector != "" {
				click = &zori.ClickData{Selector: opts.Selector, Position: [2]int{opts.X, opts.Y}}
			}

			return opts.withClient(cmd, func(ctx context.Context, c *zori.Client, out *OutputFormatter) error {
				if !c.Track(ctx, args[0], props, click) {
					return NewExitError(ExitFailure, "event not tracked (no consent or invalid name)")
				}
				return out.Success(map[string]any{"event": args[0], "tracked": true, "visitor_id": c.GetVisitorID(ctx)})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Props, "props", "", "custom properties as a JSON object")
	cmd.Flags().StringVar(&opts.Selector, "selector", "", "CSS selector of the clicked element")
	cmd.Flags().IntVar(&opts.X, "x", 0, "click x position")
	cmd.Flags().IntVar(&opts.Y, "y", 0, "click y position")

	return cmd
}

// NewPageViewCommand creates the pageview command.
func NewPageViewCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pageview",
		Short: "Track a page view of --url",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, c *zori.Client, out *OutputFormatter) error {
				if !c.PageView(ctx) {
					return NewExitError(ExitFailure, "page view not tracked (no consent)")
				}
				sessionID, _ := c.GetSessionID(ctx)
				return out.Success(map[string]any{"page": opts.PageURL, "tracked": true, "session_id": sessionID})
			})
		},
	}
}

// NewIdentifyCommand creates the identify command.
func NewIdentifyCommand(rootOpts *RootOptions) *cobra.Command {
	var email, fullname, appID, extra string

	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Attach user identity to the visitor",
		Long: `Attach user identity to the visitor.

Example:
  zori-go identify --email ada@example.com --fullname "Ada Lovelace" --props '{"plan":"pro"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := parseObject("props", extra)
			if err != nil {
				return err
			}
			if info == nil {
				info = map[string]any{}
			}
			for key, value := range map[string]string{"email": email, "fullname": fullname, "app_id": appID} {
				if value != "" {
					info[key] = value
				}
			}
			if len(info) == 0 {
				return NewExitError(ExitCommandError, "nothing to identify: pass --email, --fullname, --app-id or --props")
			}

			return rootOpts.withClient(cmd, func(ctx context.Context, c *zori.Client, out *OutputFormatter) error {
				if !c.Identify(ctx, info) {
					return NewExitError(ExitFailure, "identify not sent (no consent)")
				}
				return out.Success(map[string]any{"identified": true, "visitor_id": c.GetVisitorID(ctx)})
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&fullname, "fullname", "", "user full name")
	cmd.Flags().StringVar(&appID, "app-id", "", "host application user id")
	cmd.Flags().StringVar(&extra, "props", "", "additional properties as a JSON object")

	return cmd
}

// NewConsentCommand creates the consent command group.
func NewConsentCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Inspect or record consent",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the recorded consent and whether tracking is allowed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, c *zori.Client, out *OutputFormatter) error {
				rec := c.ConsentState(ctx)
				data := map[string]any{
					"analytics": rec.AnalyticsGranted.String(),
					"marketing": rec.MarketingGranted,
					"explicit":  rec.HasExplicitConsent,
					"tracking":  c.HasConsent(ctx),
				}
				if !rec.RecordedAt.IsZero() {
					data["recorded_at"] = rec.RecordedAt.UTC().Format(time.RFC3339)
				}
				return out.Success(data)
			})
		},
	})

	var analytics, marketing bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Record consent preferences",
		Long: `Record consent preferences. Unset flags fold to the defaults:
analytics granted, marketing denied.

Example:
  zori-go consent set --analytics=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefs zori.Preferences
			if cmd.Flags().Changed("analytics") {
				prefs.Analytics = &analytics
			}
			if cmd.Flags().Changed("marketing") {
				prefs.Marketing = &marketing
			}
			return opts.withClient(cmd, func(ctx context.Context, c *zori.Client, out *OutputFormatter) error {
				if !c.SetConsent(ctx, prefs) {
					return NewExitError(ExitFailure, "consent not recorded")
				}
				return out.Success(map[string]any{"recorded": true, "tracking": c.HasConsent(ctx)})
			})
		},
	}
	set.Flags().BoolVar(&analytics, "analytics", true, "grant analytics tracking")
	set.Flags().BoolVar(&marketing, "marketing", false, "grant marketing use")
	cmd.AddCommand(set)

	return cmd
}

// NewOptOutCommand creates the optout command.
func NewOptOutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "optout",
		Short: "Deny all tracking and forget the visitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, c *zori.Client, out *OutputFormatter) error {
				return out.Success(map[string]any{"opted_out": c.OptOut(ctx)})
			})
		},
	}
}

// NewSessionCommand creates the session command.
func NewSessionCommand(opts *RootOptions) *cobra.Command {
	var end bool

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show the visitor and current session, or end the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(cmd, func(ctx context.Context, c *zori.Client, out *OutputFormatter) error {
				sessionID, active := c.GetSessionID(ctx)
				data := map[string]any{
					"visitor_id": c.GetVisitorID(ctx),
					"session_id": sessionID,
					"active":     active,
				}
				if end {
					data["ended"] = c.EndSession(ctx)
				}
				return out.Success(data)
			})
		},
	}
	cmd.Flags().BoolVar(&end, "end", false, "end the current session (emits session_end)")

	return cmd
}
