package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scopeprobe/internal/scenario"
	"github.com/roach88/scopeprobe/internal/trace"
	"github.com/roach88/scopeprobe/probe"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Record string // optional trace database path
}

// RunReport is the per-scenario outcome of a run.
type RunReport struct {
	File     string   `json:"file"`
	Scenario string   `json:"scenario,omitempty"`
	Pass     bool     `json:"pass"`
	Steps    int      `json:"steps"`
	Session  string   `json:"session,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenarios against a simulated page",
		Long: `Run scenario files against a fresh simulated page each.

Every scenario executes under a virtual clock, so timelines and poll
budgets complete instantly and deterministically. With --record, the raw
tick trace of each scenario is persisted to a SQLite database for later
inspection with the trace command.

Examples:
  scopeprobe run scenarios/email-appears.yaml
  scopeprobe run scenarios/*.yaml --record ./probe-trace.db --verbose`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Record, "record", "", "path to SQLite trace database")

	return cmd
}

func runScenarios(opts *RunOptions, files []string, cmd *cobra.Command) error {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	var sink *trace.Store
	if opts.Record != "" {
		var err error
		sink, err = trace.Open(opts.Record)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open trace database", err)
		}
		defer sink.Close()
	}

	reports := make([]RunReport, 0, len(files))
	failed := 0
	for _, file := range files {
		report, err := runOne(file, sink, logger)
		if err != nil {
			return err
		}
		if !report.Pass {
			failed++
		}
		reports = append(reports, report)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		if err := out.Success(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			status := "pass"
			if !r.Pass {
				status = "FAIL"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s (%d steps)\n", status, r.File, r.Steps)
			for _, e := range r.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "      %s\n", e)
			}
			if r.Session != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "      session %s\n", r.Session)
			}
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", failed, len(files)))
	}
	return nil
}

func runOne(file string, sink *trace.Store, logger *slog.Logger) (RunReport, error) {
	sc, err := scenario.Load(file)
	if err != nil {
		return RunReport{}, WrapExitError(ExitCommandError, fmt.Sprintf("failed to load %s", file), err)
	}

	var observers []probe.Observer
	var recorder *trace.Recorder
	if sink != nil {
		recorder = trace.NewRecorder(trace.WithSink(sink), trace.WithLogger(logger))
		observers = append(observers, recorder)
	}

	logger.Debug("running scenario", "file", file, "name", sc.Name)
	result, err := scenario.Run(sc, observers...)
	if err != nil {
		return RunReport{}, WrapExitError(ExitCommandError, fmt.Sprintf("failed to run %s", file), err)
	}

	report := RunReport{
		File:     file,
		Scenario: sc.Name,
		Pass:     result.Pass,
		Steps:    len(result.Steps),
		Errors:   result.Errors,
	}
	if recorder != nil {
		report.Session = recorder.Session()
	}
	return report, nil
}
