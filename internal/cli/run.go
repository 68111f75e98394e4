package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/seqx/internal/harness"
	"github.com/roach88/seqx/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database         string
	RequestCapacity  int
	ResponseCapacity int
	QueueCapacity    int
	TimeoutMS        int
	RunID            string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario",
		Long: `Run a scenario against a live sequencer and driver.

Each sequence runs on its own goroutine, the driver on another. The exchange
is traced into a SQLite database: in memory by default, or the file given
with --db so "seqx trace" can inspect it afterwards.

Capacity and timeout flags override the scenario's own values.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (unreadable scenario, database error, ...)

Examples:
  seqx run ./scenarios/arrival_order.yaml
  seqx run ./scenarios/arrival_order.yaml --db ./trace.db
  seqx run ./scenarios/alu.yaml --request-capacity 1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", ":memory:", "path to SQLite trace database")
	cmd.Flags().IntVar(&opts.RequestCapacity, "request-capacity", 0, "request queue capacity (0 = unbounded)")
	cmd.Flags().IntVar(&opts.ResponseCapacity, "response-capacity", 0, "response store capacity (0 = unbounded)")
	cmd.Flags().IntVar(&opts.QueueCapacity, "queue-capacity", 0, "sequencer queue capacity (0 = unbounded)")
	cmd.Flags().IntVar(&opts.TimeoutMS, "timeout-ms", 0, "scenario timeout in milliseconds")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id recorded in the trace (default: new UUIDv7)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	if err := applyOverrides(opts, cmd, scenario); err != nil {
		return WrapExitError(ExitCommandError, "invalid flag", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Debug("running scenario", "path", path, "db", opts.Database)
	result, err := harness.Run(ctx, scenario,
		harness.WithStore(st),
		harness.WithRunID(opts.RunID),
		harness.WithLogger(logger),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return WrapExitError(ExitFailure, "interrupted", err)
		}
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	if opts.Format == "json" {
		if err := out.Success(result); err != nil {
			return err
		}
	} else {
		printResult(out.Writer, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// applyOverrides copies explicitly set flags onto the scenario.
func applyOverrides(opts *RunOptions, cmd *cobra.Command, s *harness.Scenario) error {
	flags := cmd.Flags()
	for _, o := range []struct {
		flag string
		val  int
		dst  *int
	}{
		{"request-capacity", opts.RequestCapacity, &s.RequestCapacity},
		{"response-capacity", opts.ResponseCapacity, &s.ResponseCapacity},
		{"queue-capacity", opts.QueueCapacity, &s.QueueCapacity},
	} {
		if !flags.Changed(o.flag) {
			continue
		}
		if o.val < 0 {
			return fmt.Errorf("--%s must be >= 0, got %d", o.flag, o.val)
		}
		*o.dst = o.val
	}
	if flags.Changed("timeout-ms") {
		if opts.TimeoutMS <= 0 {
			return fmt.Errorf("--timeout-ms must be > 0, got %d", opts.TimeoutMS)
		}
		s.TimeoutMS = opts.TimeoutMS
	}
	return nil
}

func printResult(w io.Writer, r *harness.Result) {
	fmt.Fprintf(w, "%s %s (run %s)\n", mark(r.Pass), r.Scenario, r.RunID)
	fmt.Fprintf(w, "  fetched: %d\n", len(r.Fetched))
	for _, tr := range r.Sequences {
		fmt.Fprintf(w, "  sequence %s\n", tr.Name)
		for _, step := range tr.Steps {
			fmt.Fprintf(w, "    %s\n", step)
		}
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// discardLogger is used when a command runs many scenarios quietly.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
