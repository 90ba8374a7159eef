package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/filtergate/internal/store"
	"github.com/roach88/filtergate/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Scenario string // list only: filter runs by scenario name
	Kind     string // show only: filter events by kind
}

// TraceStats summarises a stored trace.
type TraceStats struct {
	Calls    int `json:"calls"`
	Execs    int `json:"execs"`
	Resolved int `json:"resolved"`
	Rejected int `json:"rejected"`
	Canceled int `json:"canceled"`
}

// TraceOutput is the JSON payload when showing one run.
type TraceOutput struct {
	Run    store.Run     `json:"run"`
	Events []trace.Event `json:"events"`
	Stats  TraceStats    `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "List stored runs or show one run's trace",
		Long: `Read runs recorded with "filtersim run --db".

Without a run ID, lists stored runs in creation order. With a run ID,
prints that run's events in sequence order.

Examples:
  filtersim trace --db ./runs.db
  filtersim trace --db ./runs.db --scenario throttle_burst
  filtersim trace --db ./runs.db 01890a5d-ac96-774b-bcce-b302099a8057
  filtersim trace --db ./runs.db 01890a5d-ac96-774b-bcce-b302099a8057 --kind exec`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return listRuns(opts, cmd)
			}
			return showRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "list only runs of this scenario")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "show only events of this kind (call|exec|resolve|reject|cancel)")

	return cmd
}

func listRuns(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return commandError(formatter, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), opts.Scenario)
	if err != nil {
		return commandError(formatter, ErrCodeDatabase, "failed to list runs", err)
	}

	if formatter.JSON() {
		return formatter.Success(runs)
	}

	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}
	for _, r := range runs {
		status := "✓"
		if !r.Pass {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s  %-24s %s  (%d events)\n", status, r.ID, r.Scenario, r.Filter, r.Events)
	}
	return nil
}

func showRun(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Kind != "" && !validKind(trace.Kind(opts.Kind)) {
		return commandError(formatter, ErrCodeGeneric, fmt.Sprintf("invalid kind %q", opts.Kind), nil)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return commandError(formatter, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	tr, err := st.ReadTrace(context.Background(), runID)
	if errors.Is(err, store.ErrNotFound) {
		_ = formatter.Error(ErrCodeRunNotFound, fmt.Sprintf("run not found: %s", runID), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return commandError(formatter, ErrCodeDatabase, "failed to read run", err)
	}
	run, err := st.ReadRun(context.Background(), runID)
	if err != nil {
		return commandError(formatter, ErrCodeDatabase, "failed to read run", err)
	}

	events := tr.Events
	if opts.Kind != "" {
		events = tr.OfKind(trace.Kind(opts.Kind))
		if events == nil {
			events = []trace.Event{}
		}
	}
	stats := traceStats(tr)

	if formatter.JSON() {
		return formatter.Success(TraceOutput{Run: run, Events: events, Stats: stats})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s  %s  run=%s\n", run.Scenario, run.Filter, run.ID)
	fmt.Fprint(w, trace.FormatText(events))
	fmt.Fprintf(w, "calls=%d execs=%d resolved=%d rejected=%d canceled=%d\n",
		stats.Calls, stats.Execs, stats.Resolved, stats.Rejected, stats.Canceled)
	return nil
}

func traceStats(tr *trace.Trace) TraceStats {
	return TraceStats{
		Calls:    tr.Count(trace.KindCall),
		Execs:    tr.Count(trace.KindExec),
		Resolved: tr.Count(trace.KindResolve),
		Rejected: tr.Count(trace.KindReject),
		Canceled: tr.Count(trace.KindCancel),
	}
}

func validKind(k trace.Kind) bool {
	switch k {
	case trace.KindCall, trace.KindExec, trace.KindResolve, trace.KindReject, trace.KindCancel:
		return true
	}
	return false
}
