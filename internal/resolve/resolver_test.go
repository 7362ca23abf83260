package resolve_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qbind/internal/catalog"
	"github.com/roach88/qbind/internal/mapping"
	"github.com/roach88/qbind/internal/resolve"
	"github.com/roach88/qbind/internal/sqlir"
	"github.com/roach88/qbind/internal/stage"
	"github.com/roach88/qbind/internal/testutil"
	"github.com/roach88/qbind/internal/uniqueid"
)

type fixture struct {
	stage    *stage.Stage
	ctx      *mapping.Context
	resolver *resolve.Resolver
}

func newFixture() *fixture {
	schema := catalog.NewResolver(testutil.KitchenCatalog())
	aliases := uniqueid.NewAliases()
	st := stage.New(schema, aliases, stage.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ctx := mapping.NewContext()
	return &fixture{
		stage:    st,
		ctx:      ctx,
		resolver: resolve.New(st, schema, aliases, ctx),
	}
}

// table resolves an input table over item and makes it the statement in
// scope.
func (f *fixture) table(t *testing.T, item sqlir.Type) (input, resolved *sqlir.SqlTable) {
	t.Helper()
	input = testutil.Table(item)
	source, err := f.resolver.ResolveTableInfo(input.Source)
	require.NoError(t, err)
	resolved = sqlir.NewSqlTable(source, sqlir.JoinInner)
	f.ctx.AddTableMapping(input, resolved)
	f.ctx.EnterStatement([]*sqlir.SqlTable{resolved})
	return input, resolved
}

func TestResolveTableReference(t *testing.T) {
	f := newFixture()
	cook, resolved := f.table(t, testutil.CookType)

	got, err := f.resolver.Resolve(testutil.Ref(cook))
	require.NoError(t, err)

	entity, ok := got.(*sqlir.Entity)
	require.True(t, ok)
	assert.Equal(t, "t0", entity.TableAlias)
	assert.Equal(t, testutil.PK("t0", "ID"), entity.PrimaryKey)

	table, err := f.ctx.TableForEntity(entity)
	require.NoError(t, err)
	assert.Same(t, resolved, table)
}

func TestResolveTableReference_Unknown(t *testing.T) {
	f := newFixture()

	_, err := f.resolver.Resolve(testutil.Ref(testutil.Table(testutil.CookType)))
	require.Error(t, err)
	assert.True(t, sqlir.IsInternalConsistency(err))
}

func TestResolveMemberAccess(t *testing.T) {
	testCases := []struct {
		name  string
		build func(cook sqlir.Expression) sqlir.Expression
		want  sqlir.Expression
	}{
		{
			name: "column",
			build: func(cook sqlir.Expression) sqlir.Expression {
				return testutil.Member(cook, "FirstName", sqlir.String)
			},
			want: testutil.Col("t0", "FirstName", sqlir.String),
		},
		{
			name: "primary key column",
			build: func(cook sqlir.Expression) sqlir.Expression {
				return testutil.Member(cook, "ID", sqlir.Int)
			},
			want: testutil.PK("t0", "ID"),
		},
		{
			name: "value member of a column",
			build: func(cook sqlir.Expression) sqlir.Expression {
				return testutil.Member(testutil.Member(cook, "FirstName", sqlir.String), "Length", sqlir.Int)
			},
			want: &sqlir.Function{
				Name: "LEN",
				Args: []sqlir.Expression{testutil.Col("t0", "FirstName", sqlir.String)},
				T:    sqlir.Int,
			},
		},
		{
			name: "column through a navigation",
			build: func(cook sqlir.Expression) sqlir.Expression {
				return testutil.Member(testutil.Member(cook, "Kitchen", testutil.KitchenType), "Name", sqlir.String)
			},
			want: testutil.Col("t1", "Name", sqlir.String),
		},
		{
			name: "member of a record constructor",
			build: func(cook sqlir.Expression) sqlir.Expression {
				record := &sqlir.New{
					Ctor:    "Pair",
					Members: []string{"Name", "Salary"},
					Args:    []sqlir.Expression{testutil.Member(cook, "FirstName", sqlir.String), testutil.Member(cook, "Salary", sqlir.Decimal)},
					T:       sqlir.RecordType("Pair"),
				}
				return testutil.Member(record, "Salary", sqlir.Decimal)
			},
			want: testutil.Col("t0", "Salary", sqlir.Decimal),
		},
		{
			name: "named source",
			build: func(cook sqlir.Expression) sqlir.Expression {
				return testutil.Member(&sqlir.Named{Name: "c", Inner: cook}, "Kind", sqlir.String)
			},
			want: testutil.Col("t0", "Kind", sqlir.String),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			cook, _ := f.table(t, testutil.CookType)

			got, err := f.resolver.Resolve(tc.build(testutil.Ref(cook)))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveMemberAccess_Navigation(t *testing.T) {
	f := newFixture()
	cook, resolved := f.table(t, testutil.CookType)

	got, err := f.resolver.Resolve(testutil.Member(testutil.Ref(cook), "Kitchen", testutil.KitchenType))
	require.NoError(t, err)

	ref, ok := got.(*sqlir.EntityRefMember)
	require.True(t, ok, "a one-navigation stays a placeholder until its context is known")
	assert.Equal(t, "Kitchen", ref.Member.Name)
	assert.Equal(t, testutil.KitchenType, ref.Type())
	assert.Empty(t, resolved.Joins(), "no join is added before the navigation is used")
}

func TestResolveMemberAccess_Errors(t *testing.T) {
	testCases := []struct {
		name      string
		member    func(kitchen sqlir.Expression) sqlir.Expression
		wantShape bool
	}{
		{
			name: "collection navigation",
			member: func(kitchen sqlir.Expression) sqlir.Expression {
				return testutil.Member(kitchen, "Cooks", sqlir.CollectionOf(testutil.CookType))
			},
			wantShape: true,
		},
		{
			name: "unknown member",
			member: func(kitchen sqlir.Expression) sqlir.Expression {
				return testutil.Member(kitchen, "Nope", sqlir.Int)
			},
		},
		{
			name: "member of a constant",
			member: func(sqlir.Expression) sqlir.Expression {
				return testutil.Member(testutil.Int(3), "Digits", sqlir.Int)
			},
			wantShape: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			kitchen, _ := f.table(t, testutil.KitchenType)

			_, err := f.resolver.Resolve(tc.member(testutil.Ref(kitchen)))
			require.Error(t, err)
			if tc.wantShape {
				assert.True(t, sqlir.IsUnsupportedShape(err), err.Error())
			} else {
				assert.True(t, sqlir.IsSchemaResolution(err), err.Error())
			}
		})
	}
}

func TestResolveNavigation_ReusesJoin(t *testing.T) {
	f := newFixture()
	cook, resolved := f.table(t, testutil.CookType)

	name := testutil.Member(testutil.Member(testutil.Ref(cook), "Kitchen", testutil.KitchenType), "Name", sqlir.String)
	room := testutil.Member(testutil.Member(testutil.Ref(cook), "Kitchen", testutil.KitchenType), "RoomNumber", sqlir.Int)

	first, err := f.resolver.Resolve(name)
	require.NoError(t, err)
	second, err := f.resolver.Resolve(room)
	require.NoError(t, err)

	assert.Equal(t, testutil.Col("t1", "Name", sqlir.String), first)
	assert.Equal(t, testutil.Col("t1", "RoomNumber", sqlir.Int), second)
	require.Len(t, resolved.Joins(), 1)

	joined := resolved.Joins()[0]
	assert.Equal(t, sqlir.JoinLeft, joined.Semantics)
	join := joined.Source.(*sqlir.JoinedTable).Join.(*sqlir.ResolvedJoin)
	assert.Equal(t, testutil.Col("t0", "KitchenID", sqlir.Int), join.LeftKey)
	assert.Equal(t, testutil.PK("t1", "ID"), join.RightKey)
}

func TestResolveEquality(t *testing.T) {
	pair := func(args ...sqlir.Expression) *sqlir.New {
		members := make([]string, len(args))
		for i := range args {
			members[i] = string(rune('A' + i))
		}
		return &sqlir.New{Ctor: "Pair", Members: members, Args: args, T: sqlir.RecordType("Pair")}
	}
	name := testutil.Col("t0", "FirstName", sqlir.String)
	id := testutil.PK("t0", "ID")
	null := sqlir.NewConstant(nil, sqlir.String)

	testCases := []struct {
		name  string
		build func(cook sqlir.Expression) sqlir.Expression
		want  sqlir.Expression
	}{
		{
			name: "tuple equality is a conjunction",
			build: func(cook sqlir.Expression) sqlir.Expression {
				return sqlir.NewBinary(sqlir.OpEqual,
					pair(testutil.Member(cook, "FirstName", sqlir.String), testutil.Member(cook, "ID", sqlir.Int)),
					pair(testutil.Str("Remy"), testutil.Int(5)))
			},
			want: sqlir.NewBinary(sqlir.OpAndAlso,
				sqlir.NewBinary(sqlir.OpEqual, name, testutil.Str("Remy")),
				sqlir.NewBinary(sqlir.OpEqual, id, testutil.Int(5))),
		},
		{
			name: "tuple inequality is a disjunction",
			build: func(cook sqlir.Expression) sqlir.Expression {
				return sqlir.NewBinary(sqlir.OpNotEqual,
					pair(testutil.Member(cook, "FirstName", sqlir.String), testutil.Member(cook, "ID", sqlir.Int)),
					pair(testutil.Str("Remy"), testutil.Int(5)))
			},
			want: sqlir.NewBinary(sqlir.OpOrElse,
				sqlir.NewBinary(sqlir.OpNotEqual, name, testutil.Str("Remy")),
				sqlir.NewBinary(sqlir.OpNotEqual, id, testutil.Int(5))),
		},
		{
			name: "nested tuples flatten",
			build: func(cook sqlir.Expression) sqlir.Expression {
				return sqlir.NewBinary(sqlir.OpEqual,
					pair(pair(testutil.Member(cook, "ID", sqlir.Int))),
					pair(pair(testutil.Int(5))))
			},
			want: sqlir.NewBinary(sqlir.OpEqual, id, testutil.Int(5)),
		},
		{
			name: "tuple member compared with null",
			build: func(cook sqlir.Expression) sqlir.Expression {
				return sqlir.NewBinary(sqlir.OpEqual,
					pair(testutil.Member(cook, "FirstName", sqlir.String)),
					pair(null))
			},
			want: &sqlir.IsNull{Inner: name},
		},
		{
			name: "empty tuples are equal",
			build: func(sqlir.Expression) sqlir.Expression {
				return sqlir.NewBinary(sqlir.OpEqual, pair(), pair())
			},
			want: testutil.Bool(true),
		},
		{
			name: "equal to null",
			build: func(cook sqlir.Expression) sqlir.Expression {
				return sqlir.NewBinary(sqlir.OpEqual, testutil.Member(cook, "FirstName", sqlir.String), null)
			},
			want: &sqlir.IsNull{Inner: name},
		},
		{
			name: "null on the left",
			build: func(cook sqlir.Expression) sqlir.Expression {
				return sqlir.NewBinary(sqlir.OpNotEqual, null, testutil.Member(cook, "FirstName", sqlir.String))
			},
			want: &sqlir.IsNotNull{Inner: name},
		},
		{
			name: "plain comparison",
			build: func(cook sqlir.Expression) sqlir.Expression {
				return sqlir.NewBinary(sqlir.OpLessThan, testutil.Member(cook, "ID", sqlir.Int), testutil.Int(5))
			},
			want: sqlir.NewBinary(sqlir.OpLessThan, id, testutil.Int(5)),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			cook, _ := f.table(t, testutil.CookType)

			got, err := f.resolver.Resolve(tc.build(testutil.Ref(cook)))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveEquality_Mismatched(t *testing.T) {
	a := &sqlir.New{Ctor: "A", Members: []string{"X"}, Args: []sqlir.Expression{testutil.Int(1)}, T: sqlir.RecordType("A")}
	b := &sqlir.New{Ctor: "B", Members: []string{"X"}, Args: []sqlir.Expression{testutil.Int(1)}, T: sqlir.RecordType("B")}

	testCases := []struct {
		name string
		expr sqlir.Expression
	}{
		{name: "different constructors", expr: sqlir.NewBinary(sqlir.OpEqual, a, b)},
		{name: "tuple against a scalar", expr: sqlir.NewBinary(sqlir.OpEqual, a, testutil.Int(1))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newFixture().resolver.Resolve(tc.expr)
			require.Error(t, err)
			assert.True(t, sqlir.IsUnsupportedShape(err))
		})
	}
}

func TestResolveTypeCheck(t *testing.T) {
	testCases := []struct {
		name   string
		target sqlir.Type
		want   sqlir.Expression
	}{
		{name: "same type", target: testutil.CookType, want: testutil.Bool(true)},
		{name: "unrelated type", target: testutil.KitchenType, want: testutil.Bool(false)},
		{
			name:   "derived type",
			target: testutil.ChefType,
			want:   sqlir.NewBinary(sqlir.OpEqual, testutil.Col("t0", "Kind", sqlir.String), testutil.Str("Chef")),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			cook, _ := f.table(t, testutil.CookType)

			got, err := f.resolver.Resolve(&sqlir.TypeCheck{Operand: testutil.Ref(cook), Target: tc.target})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveConstant_Entity(t *testing.T) {
	got, err := newFixture().resolver.Resolve(sqlir.NewConstant(map[string]any{"ID": int64(3), "Name": "Main"}, testutil.KitchenType))
	require.NoError(t, err)
	assert.Equal(t, &sqlir.EntityConstant{T: testutil.KitchenType, PrimaryKey: testutil.Int(3)}, got)
}

func TestResolveTableInfo(t *testing.T) {
	t.Run("sub-statement gets a generated alias", func(t *testing.T) {
		f := newFixture()
		cook := testutil.Table(testutil.CookType)
		sub := &sqlir.SubStatementTable{Statement: testutil.Select(testutil.Member(testutil.Ref(cook), "ID", sqlir.Int), cook)}

		got, err := f.resolver.ResolveTableInfo(sub)
		require.NoError(t, err)

		resolved, ok := got.(*sqlir.SubStatementTable)
		require.True(t, ok)
		assert.Equal(t, "q0", resolved.Alias)
		assert.Equal(t, testutil.PK("t0", "ID"), resolved.Statement.Projection)
	})

	t.Run("group elements over a non-grouping", func(t *testing.T) {
		f := newFixture()
		cook, _ := f.table(t, testutil.CookType)

		_, err := f.resolver.ResolveTableInfo(&sqlir.GroupElementsTable{Grouping: testutil.Ref(cook)})
		require.Error(t, err)
		assert.True(t, sqlir.IsUnsupportedShape(err))
	})

	t.Run("simple tables pass through", func(t *testing.T) {
		simple := &sqlir.SimpleTable{Item: testutil.CookType, Name: "CookTable", Alias: "c"}
		got, err := newFixture().resolver.ResolveTableInfo(simple)
		require.NoError(t, err)
		assert.Same(t, simple, got)
	})
}

func TestResolveJoinInfo_CollectionSource(t *testing.T) {
	f := newFixture()
	kitchen, _ := f.table(t, testutil.KitchenType)

	got, err := f.resolver.ResolveJoinInfo(&sqlir.UnresolvedCollectionJoin{
		Source: testutil.Ref(kitchen),
		Member: sqlir.Member{Name: "Cooks", Type: sqlir.CollectionOf(testutil.CookType), Declaring: "Kitchen"},
	})
	require.NoError(t, err)

	join, ok := got.(*sqlir.ResolvedJoin)
	require.True(t, ok)
	assert.Equal(t, &sqlir.SimpleTable{Item: testutil.CookType, Name: "CookTable", Alias: "t1"}, join.Foreign)
	assert.Equal(t, testutil.PK("t0", "ID"), join.LeftKey)
	assert.Equal(t, testutil.Col("t1", "KitchenID", sqlir.Int), join.RightKey)
}

func TestResolveBoundNodesPassThrough(t *testing.T) {
	col := &sqlir.Column{T: sqlir.Int, TableAlias: "x", Name: "y"}
	got, err := newFixture().resolver.Resolve(col)
	require.NoError(t, err)
	assert.Same(t, col, got)

	got, err = newFixture().resolver.Resolve(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
