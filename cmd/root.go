package cmd

import (
	"errors"
	"fmt"
	"os"

	"coherence/internal/config"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates every scenario passed.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (invalid arguments, unreadable scenarios).
	ExitCodeError = 1
	// ExitCodeScenariosFailed indicates the run completed but scenarios failed.
	ExitCodeScenariosFailed = 2
)

// ScenariosFailedError reports a completed run with failing scenarios.
type ScenariosFailedError struct {
	Failed int
	Errors int
}

func (e *ScenariosFailedError) Error() string {
	return fmt.Sprintf("%d scenarios failed, %d errored", e.Failed, e.Errors)
}

var (
	// configPath is the directory holding config.yaml
	configPath string
	// scenarioPathFlag overrides the configured scenario file or directory
	scenarioPathFlag string
	// debug forces debug logging
	debug bool
)

// rootCmd represents the base command for the coherence application.
var rootCmd = &cobra.Command{
	Use:   "coherence",
	Short: "Run conversation-driven test scenarios against a simulated chat workspace",
	Long: `coherence runs YAML test scenarios as chains of steps that are polled until
they succeed, fail or time out. Each scenario gets its own simulated chat
workspace with users whose events steps can post, await and consume.

Failures carry a call stack listing every step that ran together with the
event it consumed, so a broken conversation can be read back step by step.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "coherence version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps an error returned by a command to the process exit code.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	var failed *ScenariosFailedError
	if errors.As(err, &failed) {
		return ExitCodeScenariosFailed
	}
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", config.GetDefaultConfigPathOrPanic(), "Configuration directory")
	rootCmd.PersistentFlags().StringVar(&scenarioPathFlag, "scenarios", "", "Scenario file or directory (default: <config-path>/scenarios)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newShellCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
