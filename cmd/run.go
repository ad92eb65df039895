package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coherence/internal/config"
	"coherence/internal/metrics"
	"coherence/internal/notify"
	"coherence/internal/reporter"
	"coherence/internal/runner"
	"coherence/internal/scenario"
	"coherence/internal/steps"
	"coherence/pkg/logging"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

const runSubsystem = "Run"

// runOptions holds the flags of the run command.
type runOptions struct {
	scenario      string
	tags          []string
	parallel      int
	failFast      bool
	timeout       time.Duration
	pollInterval  time.Duration
	output        string
	reportPath    string
	metricsAddr   string
	notifyWebhook string
	watch         bool
	verbose       bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run test scenarios",
		Long: `Runs every scenario found below the scenario path, or the ones selected with
--scenario and --tag. Each scenario is polled until its chain of steps
succeeds, fails or exceeds its timeout.

Examples:
  coherence run                                 # Run all scenarios
  coherence run --scenario 'refund-*'           # Run scenarios matching a glob
  coherence run --tag smoke --parallel 4        # Run tagged scenarios concurrently
  coherence run --output json --report out.json # Machine-readable output
  coherence run --watch                         # Rerun whenever a scenario file changes

Exit codes: 0 when every scenario passed, 1 on errors, 2 when scenarios failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.scenario, "scenario", "", "Run scenarios whose name matches (exact or glob)")
	flags.StringSliceVar(&opts.tags, "tag", nil, "Run scenarios carrying any of these tags")
	flags.IntVar(&opts.parallel, "parallel", 0, "Number of scenarios run concurrently (default from config)")
	flags.BoolVar(&opts.failFast, "fail-fast", false, "Stop scheduling scenarios after the first failure")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Per-step timeout for scenarios without one (default from config)")
	flags.DurationVar(&opts.pollInterval, "poll-interval", 0, "Delay between polls (default from config)")
	flags.StringVarP(&opts.output, "output", "o", "console", "Output format: console, json or yaml")
	flags.StringVar(&opts.reportPath, "report", "", "Also save the suite result to this .json or .yaml file")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.StringVar(&opts.notifyWebhook, "notify-webhook", "", "Post failed scenarios to this incoming-webhook URL")
	flags.BoolVar(&opts.watch, "watch", false, "Rerun when scenario files change")
	flags.BoolVar(&opts.verbose, "verbose", false, "Show every step of every scenario")

	_ = cmd.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"console", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("scenario", completeScenarioNames)

	return cmd
}

// applyRunFlags overrides cfg with the flags set on cmd.
func applyRunFlags(cmd *cobra.Command, opts *runOptions, cfg config.CoherenceConfig) (config.CoherenceConfig, error) {
	flags := cmd.Flags()
	if flags.Changed("parallel") {
		cfg.Parallel = opts.parallel
	}
	if flags.Changed("fail-fast") {
		cfg.FailFast = opts.failFast
	}
	if flags.Changed("timeout") {
		cfg.DefaultTimeout = opts.timeout
	}
	if flags.Changed("poll-interval") {
		cfg.PollInterval = opts.pollInterval
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if flags.Changed("notify-webhook") {
		cfg.NotifyWebhook = opts.notifyWebhook
	}

	if errs := config.Validate(cfg); errs.HasErrors() {
		return cfg, errs
	}
	return cfg, nil
}

func runRun(cmd *cobra.Command, opts *runOptions) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	settings, err = applyRunFlags(cmd, opts, settings)
	if err != nil {
		return err
	}
	if err := initLogging(settings, cmd.ErrOrStderr()); err != nil {
		return err
	}
	format, err := reporter.ParseFormat(opts.output)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	console, err := reporter.New(format, out, reporter.ConsoleOptions{
		Verbose: opts.verbose,
		Color:   isTerminal(out),
	})
	if err != nil {
		return err
	}
	reporters := []runner.Reporter{console}
	if settings.NotifyWebhook != "" {
		reporters = append(reporters, notify.NewFailureReporter(notify.NewWebhook(settings.NotifyWebhook)))
	}

	registry := steps.DefaultRegistry()
	var runnerOpts []runner.Option
	if settings.MetricsAddr != "" {
		recorder := metrics.NewRecorder()
		runnerOpts = append(runnerOpts, runner.WithMetrics(recorder))
		go func() {
			if err := recorder.Serve(ctx, settings.MetricsAddr); err != nil {
				logging.Error(runSubsystem, err, "Metrics server stopped")
			}
		}()
	}
	r := runner.New(registry, reporter.NewMulti(reporters...), runnerOpts...)

	execute := func() (*runner.SuiteResult, error) {
		scenarios, err := loadScenarios(settings.ScenarioPath, scenario.Filter{Name: opts.scenario, Tags: opts.tags}, registry)
		if err != nil {
			return nil, err
		}
		if len(scenarios) == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  No scenarios found in %s\n", settings.ScenarioPath)
			return &runner.SuiteResult{}, nil
		}

		stopSpinner := startSpinner(cmd.ErrOrStderr(), format, len(scenarios))
		suite, err := r.Run(ctx, runnerConfig(settings), scenarios)
		stopSpinner()
		if err != nil {
			return suite, fmt.Errorf("run interrupted: %w", err)
		}

		if opts.reportPath != "" {
			if err := reporter.SaveReport(opts.reportPath, *suite); err != nil {
				return suite, err
			}
			logging.Info(runSubsystem, "Report saved to %s", opts.reportPath)
		}
		return suite, nil
	}

	if opts.watch {
		return watchAndRun(ctx, settings.ScenarioPath, cmd.ErrOrStderr(), execute)
	}

	suite, err := execute()
	if err != nil {
		return err
	}
	if !suite.Succeeded() {
		return &ScenariosFailedError{Failed: suite.Failed, Errors: suite.Errors}
	}
	return nil
}

// startSpinner shows progress on w while a machine-readable report is
// pending. Console output already reports progress line by line.
func startSpinner(w io.Writer, format reporter.Format, total int) func() {
	if format == reporter.FormatConsole || !isTerminal(w) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = fmt.Sprintf(" Running %d scenarios...", total)
	s.Start()
	return s.Stop
}

// watchAndRun runs execute once, then again whenever a scenario file below
// path changes, until ctx is cancelled.
func watchAndRun(ctx context.Context, path string, w io.Writer, execute func() (*runner.SuiteResult, error)) error {
	changed := make(chan struct{}, 1)
	watcher := scenario.NewWatcher(path, scenario.DefaultDebounceInterval, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	defer func() {
		if err := watcher.Stop(); err != nil {
			logging.Warn(runSubsystem, "Stopping watcher: %v", err)
		}
	}()

	for {
		if _, err := execute(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Error(runSubsystem, err, "Run failed")
		}
		fmt.Fprintf(w, "👀 Watching %s for changes (Ctrl+C to stop)\n", path)

		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			logging.Info(runSubsystem, "Scenario files changed, rerunning")
		}
	}
}

// completeScenarioNames provides shell completion for --scenario.
func completeScenarioNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	settings, err := loadSettings()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	scenarios, err := scenario.NewLoader().LoadScenarios(settings.ScenarioPath)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return scenario.Names(scenarios), cobra.ShellCompDirectiveNoFileComp
}
