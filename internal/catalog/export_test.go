package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qbind/internal/catalog"
	"github.com/roach88/qbind/internal/sqlir"
	"github.com/roach88/qbind/internal/testutil"
)

func TestFormat_RoundTrip(t *testing.T) {
	want := testutil.KitchenCatalog()

	src, err := catalog.Format(want, "")
	require.NoError(t, err)

	got, err := catalog.Compile(cuecontext.New().CompileBytes(src))
	require.NoError(t, err, string(src))

	assert.Equal(t, want.Names(), got.Names())
	for _, name := range want.Names() {
		w, _ := want.Entity(name)
		g, ok := got.Entity(name)
		require.True(t, ok, name)
		assert.Equal(t, w, g, name)
	}
}

func TestFormat_LoadDir(t *testing.T) {
	src, err := catalog.Format(testutil.KitchenCatalog(), "kitchen")
	require.NoError(t, err)
	assert.Contains(t, string(src), "package kitchen")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.cue"), src, 0o644))

	cat, err := catalog.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, testutil.KitchenCatalog().Names(), cat.Names())
}

func TestFormat_QuotesNonIdentifiers(t *testing.T) {
	cat, err := catalog.New(catalog.Entity{
		Name:  "Order",
		Table: "order items",
		Key:   "line-id",
		Columns: []catalog.Column{
			{Name: "line-id", Type: sqlir.Int},
			{Name: "_note", Type: sqlir.String},
			{Name: "placed", Type: sqlir.DateTime},
		},
	})
	require.NoError(t, err)

	src, err := catalog.Format(cat, "")
	require.NoError(t, err)
	assert.Contains(t, string(src), `"line-id"`)
	assert.Contains(t, string(src), `"_note"`)

	got, err := catalog.Compile(cuecontext.New().CompileBytes(src))
	require.NoError(t, err, string(src))
	e, ok := got.Entity("Order")
	require.True(t, ok)
	assert.Equal(t, []catalog.Column{
		{Name: "line-id", Type: sqlir.Int},
		{Name: "_note", Type: sqlir.String},
		{Name: "placed", Type: sqlir.DateTime},
	}, e.Columns)
}

func TestFormat_UnsupportedColumnType(t *testing.T) {
	cat, err := catalog.New(catalog.Entity{
		Name:    "Cook",
		Table:   "Cook",
		Key:     "ID",
		Columns: []catalog.Column{{Name: "ID", Type: sqlir.Int}, {Name: "Kitchen", Type: sqlir.EntityType("Kitchen")}},
	})
	require.NoError(t, err)

	_, err = catalog.Format(cat, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column Kitchen")
}
