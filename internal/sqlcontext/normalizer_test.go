package sqlcontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qbind/internal/mapping"
	"github.com/roach88/qbind/internal/sqlir"
	"github.com/roach88/qbind/internal/testutil"
)

// fakeNavigator serves one navigation and counts the joins it adds.
type fakeNavigator struct {
	join   *sqlir.ResolvedJoin
	entity *sqlir.Entity
	joined int
}

func (f *fakeNavigator) NavigationJoin(*sqlir.EntityRefMember) (*sqlir.ResolvedJoin, error) {
	return f.join, nil
}

func (f *fakeNavigator) JoinNavigation(*sqlir.EntityRefMember, *sqlir.ResolvedJoin) (*sqlir.Entity, error) {
	f.joined++
	return f.entity, nil
}

func newNormalizer() *Normalizer {
	return New(&fakeNavigator{}, mapping.NewContext())
}

var (
	fullTime = testutil.Col("t0", "IsFullTimeEmployee", sqlir.Bool)
	starred  = testutil.Col("t0", "IsStarredCook", sqlir.Bool)
	salary   = testutil.Col("t0", "Salary", sqlir.Decimal)
	cookID   = testutil.PK("t0", "ID")
)

func asInt(c *sqlir.Column) *sqlir.Column { return c.Retype(sqlir.Int) }

func one() *sqlir.Constant { return testutil.Int(1) }

func eqOne(e sqlir.Expression) *sqlir.Binary {
	return sqlir.NewBinary(sqlir.OpEqual, e, one())
}

func cookEntity() *sqlir.Entity {
	return &sqlir.Entity{
		T:          testutil.CookType,
		TableAlias: "t0",
		PrimaryKey: cookID,
		Columns:    []*sqlir.Column{cookID, fullTime},
	}
}

func TestApplyContext(t *testing.T) {
	comparison := sqlir.NewBinary(sqlir.OpGreaterThan, salary, sqlir.NewConstant(100.0, sqlir.Decimal))

	testCases := []struct {
		name string
		expr sqlir.Expression
		sctx sqlir.SqlExpressionContext
		want sqlir.Expression
	}{
		{
			name: "bool column as a single value",
			expr: fullTime,
			sctx: sqlir.SingleValueRequired,
			want: &sqlir.ConvertedBoolean{Inner: asInt(fullTime)},
		},
		{
			name: "bool column as a value",
			expr: fullTime,
			sctx: sqlir.ValueRequired,
			want: &sqlir.ConvertedBoolean{Inner: sqlir.NewBooleanCase(eqOne(asInt(fullTime)))},
		},
		{
			name: "bool column as a predicate",
			expr: fullTime,
			sctx: sqlir.PredicateRequired,
			want: eqOne(asInt(fullTime)),
		},
		{
			name: "bool literal as a predicate",
			expr: testutil.Bool(true),
			sctx: sqlir.PredicateRequired,
			want: eqOne(one()),
		},
		{
			name: "false literal as a single value",
			expr: testutil.Bool(false),
			sctx: sqlir.SingleValueRequired,
			want: &sqlir.ConvertedBoolean{Inner: testutil.Int(0)},
		},
		{
			name: "comparison as a predicate",
			expr: comparison,
			sctx: sqlir.PredicateRequired,
			want: comparison,
		},
		{
			name: "comparison as a value",
			expr: comparison,
			sctx: sqlir.ValueRequired,
			want: &sqlir.ConvertedBoolean{Inner: sqlir.NewBooleanCase(comparison)},
		},
		{
			name: "comparison of bool columns",
			expr: sqlir.NewBinary(sqlir.OpEqual, fullTime, starred),
			sctx: sqlir.PredicateRequired,
			want: sqlir.NewBinary(sqlir.OpEqual,
				&sqlir.ConvertedBoolean{Inner: asInt(fullTime)},
				&sqlir.ConvertedBoolean{Inner: asInt(starred)}),
		},
		{
			name: "conjunction of bool columns",
			expr: sqlir.NewBinary(sqlir.OpAndAlso, fullTime, starred),
			sctx: sqlir.PredicateRequired,
			want: sqlir.NewBinary(sqlir.OpAndAlso, eqOne(asInt(fullTime)), eqOne(asInt(starred))),
		},
		{
			name: "bitwise and of bools",
			expr: &sqlir.Binary{Op: sqlir.OpAnd, Left: fullTime, Right: starred, T: sqlir.Bool},
			sctx: sqlir.PredicateRequired,
			want: &sqlir.Binary{Op: sqlir.OpAnd, Left: eqOne(asInt(fullTime)), Right: eqOne(asInt(starred)), T: sqlir.Bool},
		},
		{
			name: "negation",
			expr: sqlir.NewNot(fullTime),
			sctx: sqlir.PredicateRequired,
			want: &sqlir.Unary{Op: sqlir.OpNot, Operand: eqOne(asInt(fullTime)), T: sqlir.Bool},
		},
		{
			name: "null check over a bool column",
			expr: &sqlir.IsNull{Inner: fullTime},
			sctx: sqlir.PredicateRequired,
			want: &sqlir.IsNull{Inner: &sqlir.ConvertedBoolean{Inner: asInt(fullTime)}},
		},
		{
			name: "int column as a predicate",
			expr: cookID,
			sctx: sqlir.PredicateRequired,
			want: eqOne(cookID),
		},
		{
			name: "case arms are single values",
			expr: &sqlir.Case{Test: fullTime, Then: salary, Else: sqlir.NewConstant(0.0, sqlir.Decimal), T: sqlir.Decimal},
			sctx: sqlir.ValueRequired,
			want: &sqlir.Case{Test: eqOne(asInt(fullTime)), Then: salary, Else: sqlir.NewConstant(0.0, sqlir.Decimal), T: sqlir.Decimal},
		},
		{
			name: "named bool column",
			expr: &sqlir.Named{Name: "Full", Inner: fullTime},
			sctx: sqlir.ValueRequired,
			want: &sqlir.Named{Name: "Full", Inner: &sqlir.ConvertedBoolean{Inner: sqlir.NewBooleanCase(eqOne(asInt(fullTime)))}},
		},
		{
			name: "bool aggregate",
			expr: &sqlir.Aggregation{Func: sqlir.AggMax, Arg: fullTime, T: sqlir.Bool},
			sctx: sqlir.SingleValueRequired,
			want: &sqlir.ConvertedBoolean{Inner: &sqlir.Aggregation{
				Func: sqlir.AggMax, Arg: &sqlir.ConvertedBoolean{Inner: asInt(fullTime)}, T: sqlir.Int,
			}},
		},
		{
			name: "entity as a single value",
			expr: cookEntity(),
			sctx: sqlir.SingleValueRequired,
			want: cookID,
		},
		{
			name: "entity as a value",
			expr: cookEntity(),
			sctx: sqlir.ValueRequired,
			want: cookEntity(),
		},
		{
			name: "named entity as a single value",
			expr: &sqlir.Named{Name: "c", Inner: cookEntity()},
			sctx: sqlir.SingleValueRequired,
			want: cookID,
		},
		{
			name: "named entity as a value drops the name",
			expr: &sqlir.Named{Name: "c", Inner: cookEntity()},
			sctx: sqlir.ValueRequired,
			want: cookEntity(),
		},
		{
			name: "entity constant as a single value",
			expr: &sqlir.EntityConstant{T: testutil.CookType, PrimaryKey: testutil.Int(7)},
			sctx: sqlir.SingleValueRequired,
			want: testutil.Int(7),
		},
		{
			name: "record arguments keep their values",
			expr: &sqlir.New{Ctor: "P", Members: []string{"A"}, Args: []sqlir.Expression{starred}, T: sqlir.RecordType("P")},
			sctx: sqlir.ValueRequired,
			want: &sqlir.New{
				Ctor:    "P",
				Members: []string{"A"},
				Args:    []sqlir.Expression{&sqlir.ConvertedBoolean{Inner: sqlir.NewBooleanCase(eqOne(asInt(starred)))}},
				T:       sqlir.RecordType("P"),
			},
		},
		{
			name: "nil stays nil",
			expr: nil,
			sctx: sqlir.PredicateRequired,
			want: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := newNormalizer().ApplyContext(tc.expr, tc.sctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApplyContext_Errors(t *testing.T) {
	sub := &sqlir.SubStatement{Statement: testutil.Scalar(fullTime, testutil.Table(testutil.CookType))}

	testCases := []struct {
		name     string
		expr     sqlir.Expression
		sctx     sqlir.SqlExpressionContext
		wantCode sqlir.ErrorCode
	}{
		{name: "entity as a predicate", expr: cookEntity(), sctx: sqlir.PredicateRequired, wantCode: sqlir.ErrCodeUnsupportedShape},
		{name: "named entity as a predicate", expr: &sqlir.Named{Name: "c", Inner: cookEntity()}, sctx: sqlir.PredicateRequired, wantCode: sqlir.ErrCodeUnsupportedShape},
		{name: "string as a predicate", expr: testutil.Col("t0", "FirstName", sqlir.String), sctx: sqlir.PredicateRequired, wantCode: sqlir.ErrCodeUnsupportedShape},
		{name: "sub-statement as a predicate", expr: sub, sctx: sqlir.PredicateRequired, wantCode: sqlir.ErrCodeUnsupportedShape},
		{
			name:     "conversion from bool",
			expr:     &sqlir.Unary{Op: sqlir.OpConvert, Operand: fullTime, T: sqlir.Int},
			sctx:     sqlir.ValueRequired,
			wantCode: sqlir.ErrCodeUnsupportedShape,
		},
		{
			name:     "conversion to bool",
			expr:     &sqlir.Unary{Op: sqlir.OpConvert, Operand: cookID, T: sqlir.Bool},
			sctx:     sqlir.PredicateRequired,
			wantCode: sqlir.ErrCodeUnsupportedShape,
		},
		{
			name:     "record as a single value",
			expr:     &sqlir.New{Ctor: "P", T: sqlir.RecordType("P")},
			sctx:     sqlir.SingleValueRequired,
			wantCode: sqlir.ErrCodeUnsupportedShape,
		},
		{
			name:     "grouping as a single value",
			expr:     &sqlir.GroupingSelect{Key: cookID, Element: cookEntity()},
			sctx:     sqlir.SingleValueRequired,
			wantCode: sqlir.ErrCodeUnsupportedShape,
		},
		{
			name:     "unresolved member access",
			expr:     testutil.Member(cookEntity(), "FirstName", sqlir.String),
			sctx:     sqlir.ValueRequired,
			wantCode: sqlir.ErrCodeInternalConsistency,
		},
		{
			name:     "unresolved type check",
			expr:     &sqlir.TypeCheck{Operand: cookEntity(), Target: testutil.ChefType},
			sctx:     sqlir.PredicateRequired,
			wantCode: sqlir.ErrCodeInternalConsistency,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := newNormalizer().ApplyContext(tc.expr, tc.sctx)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.Equal(t, tc.wantCode, sqlir.CodeOf(err), err.Error())
		})
	}
}

func TestApplyContext_Idempotent(t *testing.T) {
	exprs := map[string]sqlir.Expression{
		"bool column":  fullTime,
		"bool literal": testutil.Bool(true),
		"comparison":   sqlir.NewBinary(sqlir.OpLessThan, cookID, testutil.Int(9)),
		"conjunction":  sqlir.NewBinary(sqlir.OpOrElse, fullTime, sqlir.NewNot(starred)),
		"entity":       cookEntity(),
		"int column":   cookID,
	}
	contexts := []sqlir.SqlExpressionContext{
		sqlir.SingleValueRequired,
		sqlir.ValueRequired,
		sqlir.PredicateRequired,
	}

	for name, expr := range exprs {
		for _, sctx := range contexts {
			t.Run(name+"/"+sctx.String(), func(t *testing.T) {
				n := newNormalizer()
				once, err := n.ApplyContext(expr, sctx)
				if err != nil {
					// Shapes rejected once are rejected again.
					_, again := n.ApplyContext(expr, sctx)
					require.Error(t, again)
					return
				}
				twice, err := n.ApplyContext(once, sctx)
				require.NoError(t, err)
				assert.Equal(t, once, twice)
			})
		}
	}
}

func TestApplyContext_PredicateRoundTrip(t *testing.T) {
	n := newNormalizer()
	predicates := []sqlir.Expression{
		fullTime,
		sqlir.NewBinary(sqlir.OpEqual, cookID, testutil.Int(3)),
		sqlir.NewBinary(sqlir.OpAndAlso, fullTime, starred),
	}

	for _, p := range predicates {
		t.Run(sqlir.Describe(p), func(t *testing.T) {
			direct, err := n.ApplyContext(p, sqlir.PredicateRequired)
			require.NoError(t, err)

			value, err := n.ApplyContext(p, sqlir.ValueRequired)
			require.NoError(t, err)
			assert.Equal(t, sqlir.Int, value.Type())

			back, err := n.ApplyContext(value, sqlir.PredicateRequired)
			require.NoError(t, err)
			assert.Equal(t, direct, back)
		})
	}
}

func TestApplyContext_ValueTopLevelOnly(t *testing.T) {
	ctx := mapping.NewContext()
	n := New(&fakeNavigator{}, ctx)

	// A raw converted column is materialized only at the top of a value slot.
	raw := &sqlir.ConvertedBoolean{Inner: asInt(starred)}

	single, err := n.ApplyContext(raw, sqlir.SingleValueRequired)
	require.NoError(t, err)
	assert.Same(t, raw, single)

	value, err := n.ApplyContext(raw, sqlir.ValueRequired)
	require.NoError(t, err)
	assert.Equal(t, &sqlir.ConvertedBoolean{Inner: sqlir.NewBooleanCase(eqOne(asInt(starred)))}, value)

	// Inside a grouping key the value stays raw.
	grouping := &sqlir.GroupingSelect{Key: starred, Element: cookEntity()}
	ctx.AddGroupingMapping(grouping, testutil.Table(testutil.CookType))
	got, err := n.ApplyContext(grouping, sqlir.ValueRequired)
	require.NoError(t, err)
	assert.Equal(t, &sqlir.ConvertedBoolean{Inner: asInt(starred)}, got.(*sqlir.GroupingSelect).Key)
}

func TestApplyContext_Navigation(t *testing.T) {
	kitchen := &sqlir.Entity{
		T:          testutil.KitchenType,
		TableAlias: "t1",
		PrimaryKey: testutil.PK("t1", "ID"),
		Columns:    []*sqlir.Column{testutil.PK("t1", "ID")},
	}
	ref := &sqlir.EntityRefMember{
		Entity: cookEntity(),
		Member: sqlir.Member{Name: "Kitchen", Type: testutil.KitchenType, Declaring: "Cook"},
	}
	foreignKey := testutil.Col("t0", "KitchenID", sqlir.Int)

	testCases := []struct {
		name       string
		rightKey   *sqlir.Column
		sctx       sqlir.SqlExpressionContext
		want       sqlir.Expression
		wantJoined int
	}{
		{
			name:     "single value through a primary key uses the foreign key",
			rightKey: testutil.PK("t1", "ID"),
			sctx:     sqlir.SingleValueRequired,
			want:     foreignKey,
		},
		{
			name:       "single value through another column joins",
			rightKey:   testutil.Col("t1", "Code", sqlir.Int),
			sctx:       sqlir.SingleValueRequired,
			want:       testutil.PK("t1", "ID"),
			wantJoined: 1,
		},
		{
			name:       "value joins",
			rightKey:   testutil.PK("t1", "ID"),
			sctx:       sqlir.ValueRequired,
			want:       kitchen,
			wantJoined: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			nav := &fakeNavigator{
				join:   &sqlir.ResolvedJoin{LeftKey: foreignKey, RightKey: tc.rightKey},
				entity: kitchen,
			}
			got, err := New(nav, mapping.NewContext()).ApplyContext(ref, tc.sctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantJoined, nav.joined)
		})
	}

	_, err := New(&fakeNavigator{}, mapping.NewContext()).ApplyContext(ref, sqlir.PredicateRequired)
	require.Error(t, err)
	assert.True(t, sqlir.IsUnsupportedShape(err))
}

func TestApplySelectionContext(t *testing.T) {
	n := newNormalizer()
	table := testutil.Table(testutil.CookType)

	t.Run("bool projection is materialized", func(t *testing.T) {
		stmt := testutil.Select(fullTime, table)
		got, err := n.ApplySelectionContext(stmt, sqlir.ValueRequired)
		require.NoError(t, err)

		assert.Equal(t, sqlir.SequenceInfo{ItemType: sqlir.Int}, got.DataInfo)
		assert.Equal(t, &sqlir.ConvertedBoolean{Inner: sqlir.NewBooleanCase(eqOne(asInt(fullTime)))}, got.Projection)
		assert.Same(t, fullTime, stmt.Projection, "the input statement is not modified")
	})

	t.Run("unchanged statement is returned as is", func(t *testing.T) {
		stmt := testutil.Select(salary, table)
		got, err := n.ApplySelectionContext(stmt, sqlir.ValueRequired)
		require.NoError(t, err)
		assert.Same(t, stmt, got)
	})

	t.Run("scalar bool as a single value", func(t *testing.T) {
		stmt := testutil.Scalar(sqlir.NewBinary(sqlir.OpEqual, cookID, testutil.Int(1)), table)
		got, err := n.ApplySelectionContext(stmt, sqlir.SingleValueRequired)
		require.NoError(t, err)
		assert.Equal(t, sqlir.ScalarInfo{T: sqlir.Int}, got.DataInfo)
	})

	t.Run("statement as a predicate", func(t *testing.T) {
		_, err := n.ApplySelectionContext(testutil.Select(salary, table), sqlir.PredicateRequired)
		require.Error(t, err)
		assert.True(t, sqlir.IsUnsupportedShape(err))
	})
}

func TestApplyTableContext(t *testing.T) {
	n := newNormalizer()
	inner := testutil.Select(fullTime, testutil.Table(testutil.CookType))

	got, err := n.ApplyTableContext(&sqlir.SubStatementTable{Alias: "q0", Statement: inner}, sqlir.ValueRequired)
	require.NoError(t, err)

	sub, ok := got.(*sqlir.SubStatementTable)
	require.True(t, ok)
	assert.Equal(t, "q0", sub.Alias)
	assert.Equal(t, sqlir.Int, sub.Statement.Projection.Type())

	joined, err := n.ApplyJoinContext(&sqlir.ResolvedJoin{
		Foreign:  &sqlir.SubStatementTable{Alias: "q1", Statement: inner},
		LeftKey:  cookID,
		RightKey: testutil.Col("q1", "ID", sqlir.Int),
	}, sqlir.SingleValueRequired)
	require.NoError(t, err)
	foreign := joined.(*sqlir.ResolvedJoin).Foreign.(*sqlir.SubStatementTable)
	assert.Equal(t, sqlir.Int, foreign.Statement.Projection.Type(), "the foreign side is always a value")

	simple := &sqlir.SimpleTable{Item: testutil.CookType, Name: "CookTable", Alias: "t0"}
	same, err := n.ApplyTableContext(simple, sqlir.ValueRequired)
	require.NoError(t, err)
	assert.Same(t, simple, same)
}

func TestApplyContext_GroupingStaysRegistered(t *testing.T) {
	ctx := mapping.NewContext()
	n := New(&fakeNavigator{}, ctx)

	table := testutil.Table(testutil.CookType)
	grouping := &sqlir.GroupingSelect{
		Key:     fullTime,
		Element: cookEntity(),
		Aggregations: []*sqlir.Named{
			{Name: "a0", Inner: &sqlir.Aggregation{Func: sqlir.AggCount, T: sqlir.Int}},
		},
	}
	ctx.AddGroupingMapping(grouping, table)

	got, err := n.ApplyContext(grouping, sqlir.ValueRequired)
	require.NoError(t, err)

	rebuilt, ok := got.(*sqlir.GroupingSelect)
	require.True(t, ok)
	assert.NotSame(t, grouping, rebuilt)
	assert.Same(t, grouping.Aggregations[0], rebuilt.Aggregations[0], "unchanged aggregations are shared")

	registered, err := ctx.TableForGrouping(rebuilt)
	require.NoError(t, err)
	assert.Same(t, table, registered)
}

func TestApplyContext_UnregisteredGrouping(t *testing.T) {
	ctx := mapping.NewContext()
	grouping := &sqlir.GroupingSelect{Key: starred, Element: cookEntity()}

	got, err := New(&fakeNavigator{}, ctx).ApplyContext(grouping, sqlir.ValueRequired)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, sqlir.IsInternalConsistency(err), err.Error())

	_, groupings := ctx.Len()
	assert.Zero(t, groupings, "nothing is registered on failure")
}
