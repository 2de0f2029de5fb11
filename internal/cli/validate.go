package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/scopeprobe/internal/scenario"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidationReport is the per-file outcome of a validate run.
type ValidationReport struct {
	File  string `json:"file"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>...",
		Short: "Validate scenario files without running them",
		Long: `Check scenario files against the schema and cross-field rules.

Each file is validated independently; all problems are reported before
the command exits.

Examples:
  scopeprobe validate scenarios/email-appears.yaml
  scopeprobe validate scenarios/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *ValidateOptions, files []string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	reports := make([]ValidationReport, 0, len(files))
	failed := 0
	for _, file := range files {
		report := ValidationReport{File: file, Valid: true}
		if _, err := scenario.Load(file); err != nil {
			report.Valid = false
			report.Error = err.Error()
			failed++
		}
		reports = append(reports, report)
	}

	if opts.Format == "json" {
		if err := out.Success(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			if r.Valid {
				fmt.Fprintf(cmd.OutOrStdout(), "ok    %s\n", r.File)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "error %s: %s\n", r.File, r.Error)
			}
		}
	}

	if failed > 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("%d of %d scenario files invalid", failed, len(files)))
	}
	return nil
}
