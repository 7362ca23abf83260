package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qbind/internal/catalog"
)

// IntrospectOptions holds flags for the introspect command.
type IntrospectOptions struct {
	*RootOptions
	Package string // CUE package clause of the output
}

// EntitySummary describes one catalog entity in JSON output.
type EntitySummary struct {
	Name        string   `json:"name"`
	Table       string   `json:"table"`
	Key         string   `json:"key"`
	Base        string   `json:"base,omitempty"`
	Columns     []string `json:"columns"`
	Navigations []string `json:"navigations,omitempty"`
}

// IntrospectResult is the JSON output of the introspect command.
type IntrospectResult struct {
	Database string          `json:"database"`
	Entities []EntitySummary `json:"entities"`
}

// NewIntrospectCommand creates the introspect command.
func NewIntrospectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IntrospectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "introspect <database>",
		Short: "Print the catalog of a SQLite database",
		Long: `Read the tables, columns and foreign keys of a SQLite database and
print the derived catalog as CUE, ready to edit and load with --catalog.

Each table becomes an entity. A foreign key becomes a navigation on both
sides: a one-navigation named after the column (KitchenID -> Kitchen)
and a many-navigation on the target named after the table (Cooks).

Examples:
  qbind introspect kitchen.db > catalog/kitchen.cue
  qbind introspect kitchen.db --package kitchen
  qbind introspect kitchen.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntrospect(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Package, "package", "", "CUE package name for the output")

	return cmd
}

func runIntrospect(ctx context.Context, opts *IntrospectOptions, database string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loaded, err := LoadCatalog(ctx, CatalogOptions{Database: database})
	if err != nil {
		loadErr := asLoadError(err)
		return commandError(formatter, loadErr.Code, loadErr.Message)
	}
	defer loaded.Close()

	formatter.VerboseLog("Introspected %d tables from %s", len(loaded.Catalog.Names()), database)

	if formatter.Format == "json" {
		return formatter.Success(IntrospectResult{
			Database: database,
			Entities: summarize(loaded.Catalog),
		})
	}

	src, err := catalog.Format(loaded.Catalog, opts.Package)
	if err != nil {
		return commandError(formatter, ErrCodeDatabase, err.Error())
	}
	_, err = formatter.Writer.Write(src)
	return err
}

// summarize lists the entities of cat in declaration order. Columns
// include inherited ones.
func summarize(cat *catalog.Catalog) []EntitySummary {
	names := cat.Names()
	out := make([]EntitySummary, 0, len(names))
	for _, name := range names {
		e, _ := cat.Entity(name)
		s := EntitySummary{
			Name:  e.Name,
			Table: cat.Table(e),
			Key:   cat.Key(e),
			Base:  e.Base,
		}
		for _, c := range cat.AllColumns(e) {
			s.Columns = append(s.Columns, fmt.Sprintf("%s %s", c.Name, c.Type))
		}
		for _, n := range e.Navigations {
			s.Navigations = append(s.Navigations, fmt.Sprintf("%s -> %s", n.Name, n.Target))
		}
		out = append(out, s)
	}
	return out
}
