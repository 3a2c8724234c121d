// Package cli implements the zori-go command line: a host that drives one
// client per invocation, with state kept in a SQL store between invocations.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/zori-go/pkg/config"
	"github.com/AtRiskMedia/zori-go/pkg/zori"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Key        string
	BaseURL    string
	StatePath  string
	StateToken string
	LogLevel   string
	LogFormat  string
	Output     string // "json" | "text"

	PageURL    string
	PageTitle  string
	Referrer   string
	UserAgent  string
	DoNotTrack bool
}

// ValidFormats defines the allowed output and log formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the zori-go CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "zori-go",
		Short: "zori-go - event instrumentation client",
		Long: `Drive the zori event-instrumentation client from the command line.

Visitor, session and consent state persist in a local SQLite (or libSQL)
store, so successive invocations behave like page loads in one browser.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Output) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid output %q: must be one of %v", opts.Output, ValidFormats))
			}
			if !slices.Contains(ValidFormats, opts.LogFormat) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid log format %q: must be one of %v", opts.LogFormat, ValidFormats))
			}
			if _, err := logging.ParseLevel(opts.LogLevel); err != nil {
				return WrapExitError(ExitCommandError, "invalid log level", err)
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "YAML client configuration file")
	flags.StringVar(&opts.Key, "key", "", "publishable key (overrides config)")
	flags.StringVar(&opts.BaseURL, "base-url", "", "ingestion endpoint (overrides config)")
	flags.StringVar(&opts.StatePath, "state", config.StatePath, "SQLite path or libSQL URL for client state")
	flags.StringVar(&opts.StateToken, "state-token", "", "auth token for a libSQL state URL")
	flags.StringVar(&opts.LogLevel, "log-level", config.LogLevel, "log level (debug|info|warn|error)")
	flags.StringVar(&opts.LogFormat, "log-format", config.LogFormat, "log format (json|text)")
	flags.StringVarP(&opts.Output, "output", "o", "text", "output format (json|text)")
	flags.StringVar(&opts.PageURL, "url", "https://localhost/", "page URL events are attributed to")
	flags.StringVar(&opts.PageTitle, "title", "", "page title")
	flags.StringVar(&opts.Referrer, "referrer", "", "page referrer")
	flags.StringVar(&opts.UserAgent, "user-agent", "zori-go-cli", "user agent reported in envelopes")
	flags.BoolVar(&opts.DoNotTrack, "dnt", false, "simulate the Do-Not-Track signal")

	// Add subcommands
	cmd.AddCommand(NewTrackCommand(opts))
	cmd.AddCommand(NewPageViewCommand(opts))
	cmd.AddCommand(NewIdentifyCommand(opts))
	cmd.AddCommand(NewConsentCommand(opts))
	cmd.AddCommand(NewOptOutCommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))
	cmd.AddCommand(NewCollectCommand(opts))

	return cmd
}

// clientConfig resolves the client configuration: file, then flags.
func (o *RootOptions) clientConfig() (config.Client, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.LoadFile(o.ConfigPath)
		if err != nil {
			return cfg, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if o.Key != "" {
		cfg.Key = o.Key
	}
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	// Page views are explicit on the command line.
	cfg.AutoPageView = false
	return cfg, nil
}

func (o *RootOptions) logger(w io.Writer) (*logging.ChanneledLogger, error) {
	level, err := logging.ParseLevel(o.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToConsole: true,
		Writer:          w,
		JSONFormat:      o.LogFormat == "json",
		DefaultLevel:    level,
		ChannelLevels:   map[logging.Channel]slog.Level{},
	})
}

func (o *RootOptions) page() zori.Page {
	p := zori.ParsePage(o.PageURL)
	p.Title = o.PageTitle
	p.Referrer = o.Referrer
	p.UserAgent = o.UserAgent
	p.DoNotTrack = o.DoNotTrack
	return p
}

// withClient opens a client over the state store, runs fn, then closes the
// client so pending deliveries finish before the process exits.
func (o *RootOptions) withClient(cmd *cobra.Command, fn func(ctx context.Context, c *zori.Client, out *OutputFormatter) error) error {
	cfg, err := o.clientConfig()
	if err != nil {
		return err
	}
	logger, err := o.logger(cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	defer logger.Close()

	client, err := zori.New(cfg,
		zori.WithSQLStore(o.StatePath, o.StateToken),
		zori.WithPage(zori.NewStaticPage(o.page())),
		zori.WithLogger(logger),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start client", err)
	}

	out := &OutputFormatter{Format: o.Output, Writer: cmd.OutOrStdout()}
	runErr := fn(cmd.Context(), client, out)
	if err := client.Close(); err != nil && runErr == nil {
		runErr = WrapExitError(ExitCommandError, "failed to close client", err)
	}
	return runErr
}

// parseObject decodes a JSON object flag. Empty input yields nil.
func parseObject(flag, raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid --%s JSON", flag), err)
	}
	return obj, nil
}
