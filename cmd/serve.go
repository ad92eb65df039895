package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"coherence/internal/mcpserver"
	"coherence/internal/metrics"
	"coherence/pkg/logging"

	"github.com/spf13/cobra"
)

const serveSubsystem = "Serve"

func newServeCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve coherence tools to AI assistants over MCP",
		Long: `Starts an MCP server on stdin and stdout exposing the scenarios below the
scenario path as tools:

  coherence_list_scenarios      List scenarios, optionally by tag
  coherence_run_scenarios       Run scenarios and return the suite result
  coherence_validate_scenarios  Validate scenario files
  coherence_get_results         Fetch the result or progress of a run

Logs are written to stderr so they never corrupt the protocol stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				settings.MetricsAddr = metricsAddr
			}
			if err := initLogging(settings, cmd.ErrOrStderr()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := mcpserver.Options{
				ScenarioPath: settings.ScenarioPath,
				RunConfig:    runnerConfig(settings),
				Version:      GetVersion(),
			}
			if settings.MetricsAddr != "" {
				recorder := metrics.NewRecorder()
				opts.Metrics = recorder
				go func() {
					if err := recorder.Serve(ctx, settings.MetricsAddr); err != nil {
						logging.Error(serveSubsystem, err, "Metrics server stopped")
					}
				}()
			}

			return mcpserver.New(opts).Start(ctx)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}
