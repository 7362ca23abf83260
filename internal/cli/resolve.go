package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/qbind/internal/catalog"
	"github.com/roach88/qbind/internal/harness"
	"github.com/roach88/qbind/internal/querysql"
	"github.com/roach88/qbind/internal/sqlir"
	"github.com/roach88/qbind/internal/stage"
	"github.com/roach88/qbind/internal/uniqueid"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	CatalogOptions
	Execute bool // run the compiled SQL against --db
}

// ResolveResult is the output of the resolve command.
type ResolveResult struct {
	RunID   string   `json:"run_id"`
	SQL     string   `json:"sql"`
	Params  []any    `json:"params"`
	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <statement.yaml>",
		Short: "Resolve a statement and print its SQL",
		Long: `Resolve a front-end statement against a catalog and compile it to
parameterized SQLite SQL.

The statement file holds one statement in the scenario statement format
(from, select, where, group_by, order_by, top, distinct, result).

Exit codes:
  0 - Statement resolved
  1 - Resolution failed (UNSUPPORTED_SHAPE, SCHEMA_RESOLUTION, ...)
  2 - Command error (invalid paths, unreadable catalog or statement)

Examples:
  qbind resolve --catalog ./catalog stmt.yaml
  qbind resolve --db kitchen.db --execute stmt.yaml
  qbind resolve --db kitchen.db stmt.yaml --format json -v`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.Execute, "execute", false, "run the compiled SQL against --db and print the rows")

	return cmd
}

func runResolve(ctx context.Context, opts *ResolveOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Execute && opts.Database == "" {
		return commandError(formatter, ErrCodeBadOptions, "--execute requires --db")
	}

	spec, err := loadStatementSpec(path)
	if err != nil {
		return commandError(formatter, ErrCodeStatement, err.Error())
	}

	loaded, err := LoadCatalog(ctx, opts.CatalogOptions)
	if err != nil {
		loadErr := asLoadError(err)
		return commandError(formatter, loadErr.Code, loadErr.Message)
	}
	defer loaded.Close()
	formatter.VerboseLog("Loaded %d entities from %s", len(loaded.Catalog.Names()), loaded.Source)

	stmt, err := harness.NewBuilder(loaded.Catalog).Build(*spec)
	if err != nil {
		return commandError(formatter, ErrCodeStatement, err.Error())
	}
	formatter.Dump("Statement", stmt)

	stg := stage.New(catalog.NewResolver(loaded.Catalog), uniqueid.NewAliases(),
		stage.WithLogger(newLogger(opts.RootOptions, formatter.GetErrWriter())),
	)
	resolved, err := stg.Resolve(stmt)
	if err != nil {
		code := string(sqlir.CodeOf(err))
		if code == "" {
			code = ErrCodeGeneric
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "resolution failed", err)
	}
	formatter.Dump("Resolved", resolved.Statement)

	sql, params, err := querysql.NewSQLCompiler().Compile(resolved.Statement)
	if err != nil {
		_ = formatter.Error(ErrCodeCompile, err.Error(), nil)
		return WrapExitError(ExitFailure, "compilation failed", err)
	}

	result := ResolveResult{RunID: resolved.RunID, SQL: sql, Params: params}
	if result.Params == nil {
		result.Params = []any{}
	}

	if opts.Execute {
		rows, err := loaded.Store.QueryRows(ctx, sql, params...)
		if err != nil {
			return commandError(formatter, ErrCodeExecute, err.Error())
		}
		result.Columns, result.Rows = rows.Columns, rows.Values
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	outputResolveText(formatter, result, opts.Execute)
	return nil
}

// loadStatementSpec reads a statement file with strict field checking.
func loadStatementSpec(path string) (*harness.StatementSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement file: %w", err)
	}

	var spec harness.StatementSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("failed to parse statement: %w", err)
	}
	return &spec, nil
}

func outputResolveText(f *OutputFormatter, result ResolveResult, executed bool) {
	w := f.Writer
	fmt.Fprintln(w, result.SQL)
	if len(result.Params) > 0 {
		fmt.Fprintln(w)
		for i, p := range result.Params {
			fmt.Fprintf(w, "  ?%d = %v\n", i+1, p)
		}
	}
	if !executed {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "columns: [%s]\n", strings.Join(result.Columns, ", "))
	for _, row := range result.Rows {
		fmt.Fprintf(w, "  %s\n", harness.FormatValues(row))
	}
	fmt.Fprintf(w, "(%d rows)\n", len(result.Rows))
}

// commandError reports a command-level failure (exit code 2).
func commandError(f *OutputFormatter, code, message string) error {
	_ = f.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
