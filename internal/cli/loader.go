package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/qbind/internal/catalog"
	"github.com/roach88/qbind/internal/store"
)

// Error code constants - unified across all CLI commands. Load and
// catalog validation codes (E001-E107) come from the catalog package;
// resolution failures report their own codes (SCHEMA_RESOLUTION, ...).
const (
	ErrCodeGeneric     = catalog.ErrCodeGeneric
	ErrCodeNotFound    = catalog.ErrCodeNotFound
	ErrCodeWriteFailed = "E007" // File write error

	ErrCodeDatabase   = "E201" // Database open or introspection failed
	ErrCodeStatement  = "E202" // Statement file unreadable or not typed against the catalog
	ErrCodeCompile    = "E203" // Resolved statement could not be compiled
	ErrCodeExecute    = "E204" // Compiled statement failed against the database
	ErrCodeBadOptions = "E205" // Conflicting or missing flags
)

// CatalogOptions selects where a command reads its catalog from.
// Exactly one is set.
type CatalogOptions struct {
	Dir      string // directory of CUE catalog files
	Database string // existing SQLite database, introspected
}

func (o *CatalogOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Dir, "catalog", "", "directory of CUE catalog files")
	cmd.Flags().StringVar(&o.Database, "db", "", "SQLite database to introspect the catalog from")
}

// LoadedCatalog is a catalog with the database it came from, if any.
type LoadedCatalog struct {
	Catalog *catalog.Catalog
	Store   *store.Store // nil for a CUE catalog
	Source  string
}

// Close closes the database, if any.
func (l *LoadedCatalog) Close() error {
	if l.Store == nil {
		return nil
	}
	return l.Store.Close()
}

// LoadCatalog loads the catalog selected by opts. The returned error is a
// *catalog.LoadError carrying the code to report.
func LoadCatalog(ctx context.Context, opts CatalogOptions) (*LoadedCatalog, error) {
	switch {
	case (opts.Dir == "") == (opts.Database == ""):
		return nil, &catalog.LoadError{Code: ErrCodeBadOptions, Message: "exactly one of --catalog and --db is required"}

	case opts.Dir != "":
		cat, err := catalog.LoadDir(opts.Dir)
		if err != nil {
			return nil, asLoadError(err)
		}
		return &LoadedCatalog{Catalog: cat, Source: opts.Dir}, nil
	}

	// store.Open creates missing files; a typo must not introspect an
	// empty database.
	if _, err := os.Stat(opts.Database); err != nil {
		return nil, &catalog.LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", opts.Database)}
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, &catalog.LoadError{Code: ErrCodeDatabase, Message: err.Error()}
	}
	cat, err := st.IntrospectCatalog(ctx)
	if err != nil {
		st.Close()
		return nil, &catalog.LoadError{Code: ErrCodeDatabase, Message: err.Error()}
	}
	return &LoadedCatalog{Catalog: cat, Store: st, Source: opts.Database}, nil
}

func asLoadError(err error) *catalog.LoadError {
	var loadErr *catalog.LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}
	return &catalog.LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}
