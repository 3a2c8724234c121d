package cli

import (
	"github.com/spf13/cobra"

	"github.com/AtRiskMedia/zori-go/internal/application/container"
	"github.com/AtRiskMedia/zori-go/internal/application/startup"
	"github.com/AtRiskMedia/zori-go/pkg/config"
)

// CollectOptions holds flags for the collect command.
type CollectOptions struct {
	*RootOptions
	Addr         string
	RequireKey   string
	Recent       int
	AllowOrigins []string
}

// NewCollectCommand creates the collect command.
func NewCollectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CollectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run a local development collector",
		Long: `Run a local collector that accepts /ingest and /identify posts,
keeps the most recent payloads (GET /recent) and streams them (GET /tail).

Example:
  zori-go collect --addr :8787
  zori-go --base-url http://localhost:8787/ingest --key pk_dev track signup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := opts.logger(cmd.ErrOrStderr())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create logger", err)
			}
			defer logger.Close()

			settings := container.DefaultCollectorSettings()
			settings.Key = opts.RequireKey
			settings.RecentLimit = opts.Recent
			settings.AllowOrigins = opts.AllowOrigins

			if err := startup.RunCollector(cmd.Context(), opts.Addr, settings, logger); err != nil {
				return WrapExitError(ExitCommandError, "collector failed", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":"+config.CollectorPort, "listen address")
	cmd.Flags().StringVar(&opts.RequireKey, "require-key", config.CollectorKey, "only accept this publishable key")
	cmd.Flags().IntVar(&opts.Recent, "recent", config.CollectorRecentLimit, "number of payloads kept for /recent")
	cmd.Flags().StringSliceVar(&opts.AllowOrigins, "allow-origin", config.CollectorAllowOrigins, "CORS origins allowed to post (* for any)")

	return cmd
}
