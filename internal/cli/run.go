package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/filtergate/internal/harness"
	"github.com/roach88/filtergate/internal/store"
	"github.com/roach88/filtergate/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// IDGenerator overrides the run ID source for scenarios without run_id
	// (for testing). If nil, defaults to harness.UUIDv7Generator.
	IDGenerator harness.IDGenerator
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	Pass   bool         `json:"pass"`
	Trace  *trace.Trace `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
	Stored bool         `json:"stored"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print its trace",
		Long: `Run a scenario on the simulated clock and print every call, execution
and settlement in order. With --db the run and its trace are stored.

Exit codes:
  0 - All assertions passed
  1 - One or more assertions failed
  2 - Command error (unreadable scenario, database error)

Examples:
  filtersim run ./testdata/scenarios/throttle_burst.yaml
  filtersim run ./testdata/scenarios/throttle_burst.yaml --db ./runs.db
  filtersim run ./testdata/scenarios/throttle_burst.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database to record the run")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return commandError(formatter, ErrCodeScenario, "failed to load scenario", err)
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}
	if opts.IDGenerator != nil {
		runOpts = append(runOpts, harness.WithIDGenerator(opts.IDGenerator))
	}

	logger.Info("running scenario", "name", scenario.Name, "filter", scenario.Filter.String())
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return commandError(formatter, ErrCodeScenario, "failed to run scenario", err)
	}

	out := RunOutput{Pass: result.Pass, Trace: result.Trace, Errors: result.Errors}

	if opts.Database != "" {
		if err := saveRun(cmd.Context(), opts.Database, result); err != nil {
			return commandError(formatter, ErrCodeDatabase, "failed to store run", err)
		}
		out.Stored = true
		logger.Info("run stored", "run_id", result.Trace.RunID, "db", opts.Database)
	}

	if formatter.JSON() {
		if !result.Pass {
			if err := formatter.Failure(ErrCodeAssertionFail, fmt.Sprintf("%d assertion(s) failed", len(result.Errors)), out); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(result.Errors)))
		}
		return formatter.Success(out)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s  %s  run=%s\n", scenario.Name, result.Trace.Filter, result.Trace.RunID)
	fmt.Fprint(w, trace.FormatText(result.Trace.Events))
	if out.Stored {
		fmt.Fprintf(w, "stored in %s\n", opts.Database)
	}

	if !result.Pass {
		fmt.Fprintf(w, "✗ %d assertion(s) failed\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(strings.TrimRight(e, "\n"), "\n", "\n  "))
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d assertion(s) failed", len(result.Errors)))
	}
	fmt.Fprintf(w, "✓ %d execution(s), all assertions passed\n", result.Trace.Count(trace.KindExec))
	return nil
}

func saveRun(ctx context.Context, path string, result *harness.Result) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); err == nil {
			err = closeErr
		}
	}()
	return st.SaveTrace(ctx, result.Trace, result.Pass, result.Errors)
}
