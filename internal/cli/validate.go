package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qbind/internal/catalog"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool             `json:"valid"`
	Entities []EntitySummary  `json:"entities,omitempty"`
	Error    *ValidationError `json:"error,omitempty"`
}

// ValidationError is a catalog load failure with its CUE position.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{}

	cmd := &cobra.Command{
		Use:   "validate [catalog-dir]",
		Short: "Validate a catalog without resolving statements",
		Long: `Load a CUE catalog (or introspect a SQLite database) and check it:
entity tables, keys, inheritance, discriminators and navigations.

Exit codes:
  0 - Catalog valid
  1 - Catalog invalid
  2 - Command error (invalid paths, etc.)

Examples:
  qbind validate ./catalog
  qbind validate --db kitchen.db
  qbind validate ./catalog --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if opts.Dir != "" {
					return NewExitError(ExitCommandError, "catalog directory given twice")
				}
				opts.Dir = args[0]
			}
			return runValidate(cmd.Context(), rootOpts, *opts, cmd)
		},
	}

	opts.addFlags(cmd)
	return cmd
}

func runValidate(ctx context.Context, opts *RootOptions, catOpts CatalogOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loaded, err := LoadCatalog(ctx, catOpts)
	if err != nil {
		loadErr := asLoadError(err)
		if isCommandError(loadErr.Code) {
			return commandError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputValidationError(formatter, loadErr)
	}
	defer loaded.Close()

	formatter.VerboseLog("Validated %d entities from %s", len(loaded.Catalog.Names()), loaded.Source)
	return outputValidateSuccess(formatter, summarize(loaded.Catalog))
}

// isCommandError reports whether a load code means the catalog could not
// be reached at all, as opposed to being invalid.
func isCommandError(code string) bool {
	switch code {
	case ErrCodeNotFound, catalog.ErrCodeScanError, catalog.ErrCodeNoFiles, ErrCodeDatabase, ErrCodeBadOptions:
		return true
	}
	return false
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, entities []EntitySummary) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Entities: entities})
	}

	fmt.Fprintf(formatter.Writer, "✓ Catalog valid (%d entities)\n", len(entities))
	for _, e := range entities {
		fmt.Fprintf(formatter.Writer, "  %s\n", e.Name)
	}
	return nil
}

// outputValidationError reports an invalid catalog (exit code 1).
func outputValidationError(formatter *OutputFormatter, loadErr *catalog.LoadError) error {
	verr := &ValidationError{Code: loadErr.Code, Message: loadErr.Message}
	if loadErr.Pos.IsValid() {
		verr.File = loadErr.Pos.Filename()
		verr.Line = loadErr.Pos.Line()
	}

	if formatter.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Error: verr},
			Error:  &CLIError{Code: verr.Code, Message: verr.Message},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", verr.Code, verr.Message))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	if verr.Line > 0 {
		fmt.Fprintf(formatter.Writer, "%s:%d\n", verr.File, verr.Line)
	}
	fmt.Fprintf(formatter.Writer, "  %s: %s\n", verr.Code, verr.Message)

	return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", verr.Code, verr.Message))
}
