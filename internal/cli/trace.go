package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/scopeprobe/internal/trace"
	"github.com/roach88/scopeprobe/probe"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string // optional - dump one session instead of listing
}

// SessionDump is the JSON payload for one dumped session.
type SessionDump struct {
	Session      string                  `json:"session"`
	Observations []probe.TickObservation `json:"observations"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded tick traces",
		Long: `Inspect tick traces recorded with "run --record".

Without --session, lists the recorded sessions, most recent first. With
--session, dumps every observation of that session in emission order:
which tick ran when, how many candidates it saw, what value each read
produced, and how the operation ended.

Examples:
  scopeprobe trace --db ./probe-trace.db
  scopeprobe trace --db ./probe-trace.db --session 0190f7a2-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id to dump")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := trace.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace database", err)
	}
	defer st.Close()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if opts.Session == "" {
		return listSessions(ctx, st, opts, out, cmd)
	}
	return dumpSession(ctx, st, opts, out, cmd)
}

func listSessions(ctx context.Context, st *trace.Store, opts *TraceOptions, out *OutputFormatter, cmd *cobra.Command) error {
	sessions, err := st.Sessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	if opts.Format == "json" {
		return out.Success(sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
	return nil
}

func dumpSession(ctx context.Context, st *trace.Store, opts *TraceOptions, out *OutputFormatter, cmd *cobra.Command) error {
	obs, err := st.ReadSession(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}
	if len(obs) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no observations for session %s", opts.Session))
	}

	if opts.Format == "json" {
		return out.Success(SessionDump{Session: opts.Session, Observations: obs})
	}

	for _, o := range obs {
		line := fmt.Sprintf("%s %-7s tick=%d candidates=%d matched=%d",
			o.At.Format("15:04:05.000"), o.Op, o.Tick, o.Candidates, o.Matched)
		if o.ModelPath != "" {
			line += " model=" + o.ModelPath
		}
		if o.Selector != "" {
			line += " selector=" + o.Selector
		}
		if o.Value != "" {
			line += " value=" + o.Value
		}
		if o.Failure != "" {
			line += " failure=" + o.Failure
		}
		if o.Outcome != "" {
			line += " outcome=" + o.Outcome
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
