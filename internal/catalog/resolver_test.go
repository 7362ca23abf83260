package catalog_test

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qbind/internal/catalog"
	"github.com/roach88/qbind/internal/sqlir"
	"github.com/roach88/qbind/internal/testutil"
	"github.com/roach88/qbind/internal/uniqueid"
)

func TestKitchenCUEMatchesFixture(t *testing.T) {
	v := cuecontext.New().CompileString(testutil.KitchenCUE)
	require.NoError(t, v.Err())

	compiled, err := catalog.Compile(v)
	require.NoError(t, err)

	fixture := testutil.KitchenCatalog()
	assert.Equal(t, fixture.Names(), compiled.Names())
	for _, name := range fixture.Names() {
		want, _ := fixture.Entity(name)
		got, ok := compiled.Entity(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
}

func TestResolveTableAndEntity(t *testing.T) {
	r := catalog.NewResolver(testutil.KitchenCatalog())
	aliases := uniqueid.NewAliases()

	table, err := r.ResolveTable(&sqlir.UnresolvedTable{Item: testutil.CookType}, aliases)
	require.NoError(t, err)
	assert.Equal(t, &sqlir.SimpleTable{Item: testutil.CookType, Name: "CookTable", Alias: "t0"}, table)

	entity, err := r.ResolveTableEntity(table)
	require.NoError(t, err)
	assert.Equal(t, "t0", entity.TableAlias)
	require.NotNil(t, entity.PrimaryKey)
	assert.Equal(t, testutil.PK("t0", "ID"), entity.PrimaryKey)
	assert.Len(t, entity.Columns, 8)

	chef, err := r.ResolveTable(&sqlir.UnresolvedTable{Item: testutil.ChefType}, aliases)
	require.NoError(t, err)
	assert.Equal(t, "CookTable", chef.Name, "derived entity shares its base's table")
	assert.Equal(t, "t1", chef.Alias)

	chefEntity, err := r.ResolveTableEntity(chef)
	require.NoError(t, err)
	assert.Len(t, chefEntity.Columns, 9)
	_, ok := chefEntity.Column("LetterOfRecommendation")
	assert.True(t, ok)
}

func TestResolveTable_Unmapped(t *testing.T) {
	r := catalog.NewResolver(testutil.KitchenCatalog())

	_, err := r.ResolveTable(&sqlir.UnresolvedTable{Item: sqlir.EntityType("Waiter")}, uniqueid.NewAliases())
	require.Error(t, err)
	assert.True(t, sqlir.IsSchemaResolution(err))

	var lookup *catalog.LookupError
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, "Waiter", lookup.Entity)
}

func TestResolveJoin(t *testing.T) {
	r := catalog.NewResolver(testutil.KitchenCatalog())
	aliases := uniqueid.NewAliases()

	cookTable, err := r.ResolveTable(&sqlir.UnresolvedTable{Item: testutil.CookType}, aliases)
	require.NoError(t, err)
	cook, err := r.ResolveTableEntity(cookTable)
	require.NoError(t, err)

	t.Run("one navigation to primary key", func(t *testing.T) {
		join, err := r.ResolveJoin(cook, sqlir.Member{Name: "Kitchen", Type: testutil.KitchenType, Declaring: "Cook"},
			sqlir.CardinalityOne, aliases)
		require.NoError(t, err)

		foreign, ok := join.Foreign.(*sqlir.SimpleTable)
		require.True(t, ok)
		assert.Equal(t, "KitchenTable", foreign.Name)
		assert.Equal(t, testutil.Col("t0", "KitchenID", sqlir.Int), join.LeftKey)
		assert.Equal(t, &sqlir.Column{T: sqlir.Int, TableAlias: foreign.Alias, Name: "ID", IsPrimaryKey: true}, join.RightKey)
	})

	t.Run("one navigation to non-key column", func(t *testing.T) {
		join, err := r.ResolveJoin(cook, sqlir.Member{Name: "Substitution", Type: testutil.CookType, Declaring: "Cook"},
			sqlir.CardinalityOne, aliases)
		require.NoError(t, err)

		right, ok := join.RightKey.(*sqlir.Column)
		require.True(t, ok)
		assert.Equal(t, "FirstName", right.Name)
		assert.False(t, right.IsPrimaryKey)
	})

	t.Run("cardinality mismatch", func(t *testing.T) {
		_, err := r.ResolveJoin(cook, sqlir.Member{Name: "Kitchen", Type: testutil.KitchenType},
			sqlir.CardinalityMany, aliases)
		require.Error(t, err)
		assert.True(t, sqlir.IsSchemaResolution(err))
	})

	t.Run("unknown navigation", func(t *testing.T) {
		_, err := r.ResolveJoin(cook, sqlir.Member{Name: "Oven"}, sqlir.CardinalityOne, aliases)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Cook.Oven")
	})
}

func TestResolveMember(t *testing.T) {
	r := catalog.NewResolver(testutil.KitchenCatalog())
	table := &sqlir.SimpleTable{Item: testutil.CookType, Name: "CookTable", Alias: "t0"}
	cook, err := r.ResolveTableEntity(table)
	require.NoError(t, err)

	firstName, _ := cook.Column("FirstName")

	testCases := []struct {
		name    string
		source  sqlir.Expression
		member  string
		want    sqlir.Expression
		wantErr bool
	}{
		{
			name:   "column",
			source: cook,
			member: "IsFullTimeEmployee",
			want:   testutil.Col("t0", "IsFullTimeEmployee", sqlir.Bool),
		},
		{
			name:   "one navigation",
			source: cook,
			member: "Kitchen",
			want: &sqlir.EntityRefMember{
				Entity: cook,
				Member: sqlir.Member{Name: "Kitchen", Type: testutil.KitchenType, Declaring: "Cook"},
			},
		},
		{
			name:   "string length",
			source: firstName,
			member: "Length",
			want:   &sqlir.Function{Name: "LEN", Args: []sqlir.Expression{firstName}, T: sqlir.Int},
		},
		{
			name:    "unknown column",
			source:  cook,
			member:  "Nickname",
			wantErr: true,
		},
		{
			name:    "unknown value member",
			source:  firstName,
			member:  "Year",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.ResolveMember(tc.source, sqlir.Member{Name: tc.member, Declaring: "Cook"})
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, sqlir.IsSchemaResolution(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveConstant(t *testing.T) {
	r := catalog.NewResolver(testutil.KitchenCatalog())

	t.Run("entity constant becomes primary key literal", func(t *testing.T) {
		got, err := r.ResolveConstant(sqlir.NewConstant(map[string]any{"ID": int64(5), "FirstName": "Hugo"}, testutil.CookType))
		require.NoError(t, err)
		assert.Equal(t, &sqlir.EntityConstant{T: testutil.CookType, PrimaryKey: testutil.Int(5)}, got)
	})

	t.Run("null entity unchanged", func(t *testing.T) {
		c := sqlir.NewConstant(nil, testutil.CookType)
		got, err := r.ResolveConstant(c)
		require.NoError(t, err)
		assert.Same(t, c, got)
	})

	t.Run("scalar unchanged", func(t *testing.T) {
		c := testutil.Int(3)
		got, err := r.ResolveConstant(c)
		require.NoError(t, err)
		assert.Same(t, c, got)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := r.ResolveConstant(sqlir.NewConstant(map[string]any{"FirstName": "Hugo"}, testutil.CookType))
		require.Error(t, err)
		assert.True(t, sqlir.IsSchemaResolution(err))
	})
}

func TestResolveTypeCheck(t *testing.T) {
	r := catalog.NewResolver(testutil.KitchenCatalog())
	cook := &sqlir.Entity{T: testutil.CookType, TableAlias: "t0"}

	t.Run("same type", func(t *testing.T) {
		got, err := r.ResolveTypeCheck(cook, testutil.CookType)
		require.NoError(t, err)
		assert.Equal(t, testutil.Bool(true), got)
	})

	t.Run("base type", func(t *testing.T) {
		chef := &sqlir.Entity{T: testutil.ChefType, TableAlias: "t0"}
		got, err := r.ResolveTypeCheck(chef, testutil.CookType)
		require.NoError(t, err)
		assert.Equal(t, testutil.Bool(true), got)
	})

	t.Run("unrelated type", func(t *testing.T) {
		got, err := r.ResolveTypeCheck(cook, testutil.KitchenType)
		require.NoError(t, err)
		assert.Equal(t, testutil.Bool(false), got)
	})

	t.Run("subtype compares discriminator", func(t *testing.T) {
		got, err := r.ResolveTypeCheck(cook, testutil.ChefType)
		require.NoError(t, err)

		want := sqlir.NewBinary(sqlir.OpEqual,
			&sqlir.MemberAccess{Source: cook, Member: sqlir.Member{Name: "Kind", Type: sqlir.String, Declaring: "Cook"}},
			testutil.Str("Chef"),
		)
		assert.Equal(t, want, got)
	})
}

func TestResolveTypeCheck_IntegerDiscriminator(t *testing.T) {
	cat, err := catalog.New(
		catalog.Entity{
			Name:  "Dish",
			Table: "DishTable",
			Key:   "ID",
			Columns: []catalog.Column{
				{Name: "ID", Type: sqlir.Int},
				{Name: "Course", Type: sqlir.Int},
			},
		},
		catalog.Entity{
			Name:          "Dessert",
			Base:          "Dish",
			Discriminator: &catalog.Discriminator{Column: "Course", Value: "3"},
		},
		catalog.Entity{
			Name:          "Starter",
			Base:          "Dish",
			Discriminator: &catalog.Discriminator{Column: "Course", Value: "first"},
		},
	)
	require.NoError(t, err)
	r := catalog.NewResolver(cat)
	dish := &sqlir.Entity{T: sqlir.EntityType("Dish"), TableAlias: "t0"}

	got, err := r.ResolveTypeCheck(dish, sqlir.EntityType("Dessert"))
	require.NoError(t, err)
	want := sqlir.NewBinary(sqlir.OpEqual,
		&sqlir.MemberAccess{Source: dish, Member: sqlir.Member{Name: "Course", Type: sqlir.Int, Declaring: "Dish"}},
		testutil.Int(3),
	)
	assert.Equal(t, want, got)

	_, err = r.ResolveTypeCheck(dish, sqlir.EntityType("Starter"))
	require.Error(t, err)
	assert.True(t, sqlir.IsSchemaResolution(err))
	assert.Contains(t, err.Error(), "Starter.Course")
}
