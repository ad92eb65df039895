package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"coherence/internal/scenario"
	"coherence/internal/shell"
	"coherence/internal/steps"

	"github.com/spf13/cobra"
)

func newShellCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Step through a scenario interactively",
		Long: `Builds the portal and workspace of one scenario and opens an interactive shell.
Poll the portal one step at a time, deliver events to users by hand and
inspect the call stack and data store between polls.

Type 'help' inside the shell for the list of commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			if err := initLogging(settings, cmd.ErrOrStderr()); err != nil {
				return err
			}

			registry := steps.DefaultRegistry()
			scenarios, err := loadScenarios(settings.ScenarioPath, scenario.Filter{Name: name}, registry)
			if err != nil {
				return err
			}
			switch len(scenarios) {
			case 0:
				return fmt.Errorf("no scenario matches %q", name)
			case 1:
			default:
				return fmt.Errorf("%q matches %d scenarios, pick one of: %v", name, len(scenarios), scenario.Names(scenarios))
			}

			session, err := shell.NewSession(scenarios[0], registry, cmd.OutOrStdout(), shell.Options{
				DefaultTimeout: settings.DefaultTimeout,
				PollInterval:   settings.PollInterval,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()
			return shell.NewREPL(session).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&name, "scenario", "", "Scenario to open (required)")
	_ = cmd.MarkFlagRequired("scenario")
	_ = cmd.RegisterFlagCompletionFunc("scenario", completeScenarioNames)
	return cmd
}
