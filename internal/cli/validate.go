package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/filtergate/internal/config"
)

// ValidationResult holds validate command output.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Config *config.Config `json:"config,omitempty"`
	Filter string         `json:"filter,omitempty"`
	Error  string         `json:"error,omitempty"`
	Line   int            `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a filter config (.yaml, .yml or .cue)",
		Long: `Check a filter configuration against the #Filter schema and the
cross-field rules (throttle needs ms and takes no max_wait, ...).

Exit codes:
  0 - Config is valid
  1 - Config is invalid
  2 - Command error (unreadable file, unsupported extension)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(path)
	if err != nil {
		var cerr *config.Error
		if errors.As(err, &cerr) && (cerr.Code == config.ErrCodeRead || cerr.Code == config.ErrCodeFormat) {
			return commandError(formatter, ErrCodeConfig, "failed to load config", err)
		}
		return outputValidationFailure(formatter, err)
	}

	formatter.VerboseLog("loaded %s", path)

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Config: cfg, Filter: cfg.String()})
	}
	fmt.Fprintf(formatter.Writer, "✓ Config valid: %s\n", cfg.String())
	return nil
}

func outputValidationFailure(formatter *OutputFormatter, err error) error {
	result := ValidationResult{Valid: false, Error: err.Error()}

	var cerr *config.Error
	if errors.As(err, &cerr) && cerr.Pos.IsValid() {
		result.Line = cerr.Pos.Line()
	}

	if formatter.JSON() {
		if encErr := formatter.Failure(ErrCodeConfig, err.Error(), result); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		if result.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", result.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s\n", err)
	}
	return WrapExitError(ExitFailure, "validation failed", err)
}
