package cmd

import (
	"fmt"

	"coherence/internal/scenario"
	"coherence/internal/steps"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var (
		name string
		tags []string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate scenario files without running them",
		Long: `Loads every scenario below the scenario path and checks that names are unique,
step ids are unique within a scenario, every action is known and every
required argument is present.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			if err := initLogging(settings, cmd.ErrOrStderr()); err != nil {
				return err
			}

			scenarios, err := loadScenarios(settings.ScenarioPath, scenario.Filter{Name: name, Tags: tags}, steps.DefaultRegistry())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %d scenarios valid\n", len(scenarios))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "scenario", "", "Validate scenarios whose name matches (exact or glob)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Validate scenarios carrying any of these tags")
	_ = cmd.RegisterFlagCompletionFunc("scenario", completeScenarioNames)
	return cmd
}
