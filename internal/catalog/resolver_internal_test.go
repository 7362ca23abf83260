package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qbind/internal/sqlir"
	"github.com/roach88/qbind/internal/uniqueid"
)

func TestResolveJoin_UnmappedTarget(t *testing.T) {
	// Built without New: the navigation target was never validated.
	cook := &Entity{
		Name:    "Cook",
		Table:   "CookTable",
		Key:     "ID",
		Columns: []Column{{Name: "ID", Type: sqlir.Int}, {Name: "OvenID", Type: sqlir.Int}},
		Navigations: []Navigation{
			{Name: "Oven", Target: "Oven", ThisKey: "OvenID", OtherKey: "ID"},
		},
	}
	cat := &Catalog{entities: map[string]*Entity{"Cook": cook}, order: []string{"Cook"}}
	r := NewResolver(cat)

	origin := &sqlir.Entity{
		T:          sqlir.EntityType("Cook"),
		TableAlias: "t0",
		Columns:    []*sqlir.Column{{T: sqlir.Int, TableAlias: "t0", Name: "OvenID"}},
	}
	join, err := r.ResolveJoin(origin, sqlir.Member{Name: "Oven", Type: sqlir.EntityType("Oven"), Declaring: "Cook"},
		sqlir.CardinalityOne, uniqueid.NewAliases())
	require.Error(t, err)
	assert.Nil(t, join)
	assert.True(t, sqlir.IsSchemaResolution(err))

	var lookup *LookupError
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, "Cook", lookup.Entity)
	assert.Equal(t, "Oven", lookup.Member)
}
