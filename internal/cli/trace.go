package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/seqx/internal/exchange"
	"github.com/roach88/seqx/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database    string
	RunID       string
	Correlation string // optional - filter to one request and its responses
}

// TraceResult holds the trace of one run.
type TraceResult struct {
	RunID       string             `json:"run_id"`
	Correlation string             `json:"correlation,omitempty"`
	Timeline    []store.TraceEvent `json:"timeline"`
	FetchOrder  []string           `json:"fetch_order"`
	Stats       TraceStats         `json:"stats"`
}

// TraceStats holds summary counts for a trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Selected    int `json:"selected"`
	Completed   int `json:"completed"`
	Responses   int `json:"responses"`
	Retrieved   int `json:"retrieved"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded runs",
		Long: `Inspect the exchange trace recorded by "seqx run --db".

Without --run, lists the recorded runs. With --run, shows the run's
timeline and the order in which the driver selected items. --item narrows
the timeline to one request and the responses correlated with it.

Examples:
  seqx trace --db ./trace.db
  seqx trace --db ./trace.db --run 0192...
  seqx trace --db ./trace.db --run 0192... --item A-0001
  seqx trace --db ./trace.db --run 0192... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show")
	cmd.Flags().StringVar(&opts.Correlation, "item", "", "filter to one request id and its responses")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Correlation != "" && opts.RunID == "" {
		return NewExitError(ExitCommandError, "--item requires --run")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		return listRuns(ctx, st, opts, cmd)
	}

	var events []store.TraceEvent
	if opts.Correlation != "" {
		events, err = st.ReadCorrelation(ctx, opts.RunID, opts.Correlation)
	} else {
		events, err = st.ReadRun(ctx, opts.RunID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	order, err := st.FetchOrder(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read fetch order", err)
	}

	result := TraceResult{
		RunID:       opts.RunID,
		Correlation: opts.Correlation,
		Timeline:    events,
		FetchOrder:  order,
		Stats:       traceStats(events),
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd.OutOrStdout(), result)
	}
	if len(events) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No events found for run: %s\n", opts.RunID)
		return nil
	}
	outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

func listRuns(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: runs})
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-24s %4d events  %s\n", r.ID, r.Name, r.Events, r.StartedAt)
	}
	return nil
}

func traceStats(events []store.TraceEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, ev := range events {
		switch ev.Kind {
		case exchange.EventSelected:
			stats.Selected++
		case exchange.EventCompleted:
			stats.Completed++
		case exchange.EventResponseInserted:
			stats.Responses++
		case exchange.EventResponseRetrieved:
			stats.Retrieved++
		}
	}
	return stats
}

func outputTraceJSON(w io.Writer, result TraceResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(CLIResponse{Status: "ok", Data: result})
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Run: %s\n", result.RunID)
	if result.Correlation != "" {
		fmt.Fprintf(w, "Item: %s\n", result.Correlation)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Timeline:")
	for _, ev := range result.Timeline {
		formatTimelineEvent(w, ev, verbose)
	}
	fmt.Fprintln(w)

	if len(result.FetchOrder) > 0 {
		fmt.Fprintln(w, "Fetch order:")
		for i, id := range result.FetchOrder {
			fmt.Fprintf(w, "  %d. %s\n", i+1, id)
		}
		fmt.Fprintln(w)
	}

	s := result.Stats
	fmt.Fprintf(w, "Stats: %d events, %d selected, %d completed, %d responses (%d retrieved)\n",
		s.TotalEvents, s.Selected, s.Completed, s.Responses, s.Retrieved)
}

func formatTimelineEvent(w io.Writer, ev store.TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] %-18s %s", ev.Seq, ev.Kind, ev.ItemID)
	if ev.CorrelationID != ev.ItemID {
		fmt.Fprintf(w, " -> %s", ev.CorrelationID)
	}
	if verbose {
		fmt.Fprintf(w, " (%s", ev.ItemName)
		if ev.ProducerID != "" {
			fmt.Fprintf(w, ", producer %s", truncateID(ev.ProducerID))
		}
		fmt.Fprint(w, ")")
	}
	fmt.Fprintln(w)
}

// truncateID shortens long ids (UUIDs) for display.
func truncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + "..."
}
