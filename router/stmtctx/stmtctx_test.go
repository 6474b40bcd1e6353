package stmtctx_test

import (
	"math"
	"testing"

	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/router/rfqn"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAggregation(t *testing.T) {
	assert := assert.New(t)

	for _, tt := range []struct {
		expr string
		agg  stmtctx.AggregationType
		arg  string
	}{
		{expr: "COUNT(*)", agg: stmtctx.AggCount, arg: "*"},
		{expr: " sum( price ) ", agg: stmtctx.AggSum, arg: "price"},
		{expr: "AVG(o.price * 2)", agg: stmtctx.AggAvg, arg: "o.price * 2"},
		{expr: "max(coalesce(a, 0))", agg: stmtctx.AggMax, arg: "coalesce(a, 0)"},
		{expr: "Min(a)", agg: stmtctx.AggMin, arg: "a"},
		{expr: "count(a) + sum(b)", agg: stmtctx.AggNone},
		{expr: "user_id", agg: stmtctx.AggNone},
		{expr: "lower(name)", agg: stmtctx.AggNone},
	} {
		agg, arg := stmtctx.ParseAggregation(tt.expr)
		assert.Equal(tt.agg, agg, tt.expr)
		assert.Equal(tt.arg, arg, tt.expr)
	}

	assert.Equal("sum(price)", stmtctx.NormalizeExpression("SUM( price )"))
	assert.Equal("name='A b'", stmtctx.NormalizeExpression("NAME = 'A b'"))
}

func TestParameterResolution(t *testing.T) {
	assert := assert.New(t)

	v, err := stmtctx.Param(1).Resolve([]any{1, "x"})
	assert.NoError(err)
	assert.Equal("x", v)

	v, err = stmtctx.Lit(int64(5)).Resolve(nil)
	assert.NoError(err)
	assert.Equal(int64(5), v)

	_, err = stmtctx.Param(2).Resolve([]any{1})
	code, _ := spqrerror.Code(err)
	assert.Equal(spqrerror.SPQR_PARAMETER_MISSING, code)

	c := stmtctx.Condition{Column: "id", Op: stmtctx.OpIn, Values: []stmtctx.ValueExpr{
		stmtctx.Param(0), stmtctx.Lit(3), stmtctx.Param(4),
	}}
	assert.Equal([][]int{{0}, {}, {4}}, c.ParameterMarkerGroups())
}

func TestPagination(t *testing.T) {
	assert := assert.New(t)

	lit := func(v int64, inclusive bool) *stmtctx.PaginationValue {
		return &stmtctx.PaginationValue{Value: stmtctx.Lit(v), Inclusive: inclusive}
	}

	for _, tt := range []struct {
		name     string
		dialect  stmtctx.Dialect
		p        *stmtctx.Pagination
		params   []any
		offset   int64
		rowCount int64
		bounded  bool
		shard    int64
	}{
		{
			name:    "limit offset",
			dialect: stmtctx.DialectPostgres,
			p:       &stmtctx.Pagination{Offset: lit(2, false), RowCount: lit(2, false)},
			offset:  2, rowCount: 2, bounded: true, shard: 4,
		},
		{
			name:    "limit params",
			dialect: stmtctx.DialectMySQL,
			p: &stmtctx.Pagination{
				Offset:   &stmtctx.PaginationValue{Value: stmtctx.Param(0)},
				RowCount: &stmtctx.PaginationValue{Value: stmtctx.Param(1)},
			},
			params: []any{int64(10), int32(5)},
			offset: 10, rowCount: 5, bounded: true, shard: 15,
		},
		{
			name:    "remaining rows",
			dialect: stmtctx.DialectMySQL,
			p:       &stmtctx.Pagination{Offset: lit(10, false), RowCount: lit(math.MaxInt64, false)},
			offset:  10, rowCount: math.MaxInt64, bounded: true, shard: math.MaxInt64,
		},
		{
			name:    "remaining rows as unsigned parameter",
			dialect: stmtctx.DialectMySQL,
			p: &stmtctx.Pagination{
				Offset:   &stmtctx.PaginationValue{Value: stmtctx.Param(0)},
				RowCount: &stmtctx.PaginationValue{Value: stmtctx.Param(1)},
			},
			params: []any{int64(5), uint64(math.MaxUint64)},
			offset: 5, rowCount: math.MaxInt64, bounded: true, shard: math.MaxInt64,
		},
		{
			name:    "offset only",
			dialect: stmtctx.DialectPostgres,
			p:       &stmtctx.Pagination{Offset: lit(100, false)},
			offset:  100, bounded: false,
		},
		{
			name:    "rownum open bounds",
			dialect: stmtctx.DialectOracle,
			p:       &stmtctx.Pagination{Offset: lit(2, false), RowCount: lit(5, false)},
			offset:  2, rowCount: 2, bounded: true, shard: 5,
		},
		{
			name:    "rownum closed bounds",
			dialect: stmtctx.DialectOracle,
			p:       &stmtctx.Pagination{Offset: lit(2, true), RowCount: lit(5, true)},
			offset:  1, rowCount: 4, bounded: true, shard: 5,
		},
		{
			name:    "top with row number",
			dialect: stmtctx.DialectSQLServer,
			p:       &stmtctx.Pagination{Offset: lit(3, false), RowCount: lit(10, true)},
			offset:  3, rowCount: 7, bounded: true, shard: 10,
		},
		{
			name:    "empty window",
			dialect: stmtctx.DialectOracle,
			p:       &stmtctx.Pagination{Offset: lit(10, false), RowCount: lit(5, true)},
			offset:  10, rowCount: 0, bounded: true, shard: 5,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			offset, err := tt.p.ActualOffset(tt.dialect, tt.params)
			assert.NoError(err)
			assert.Equal(tt.offset, offset)

			rc, bounded, err := tt.p.ActualRowCount(tt.dialect, tt.params)
			assert.NoError(err)
			assert.Equal(tt.bounded, bounded)
			assert.Equal(tt.rowCount, rc)

			shard, _, err := tt.p.ShardRowCount(tt.dialect, tt.params)
			assert.NoError(err)
			assert.Equal(tt.shard, shard)
		})
	}

	var p *stmtctx.Pagination
	offset, err := p.ActualOffset(stmtctx.DialectPostgres, nil)
	assert.NoError(err)
	assert.Zero(offset)

	bad := &stmtctx.Pagination{RowCount: lit(0, false)}
	bad.RowCount.Value = stmtctx.Lit("ten")
	_, _, err = bad.ActualRowCount(stmtctx.DialectPostgres, nil)
	assert.Error(err)
}

func TestStatementTables(t *testing.T) {
	assert := assert.New(t)

	sql := "SELECT * FROM t_order o JOIN t_order_item i ON o.order_id = i.order_id JOIN t_order x ON true"
	stmt := &stmtctx.Statement{
		SQL: sql,
		Tables: []stmtctx.TableRef{
			{Name: rfqn.RelationFQN{RelationName: "t_order"}, Alias: "o", Span: stmtctx.Span{Start: 14, Stop: 21}},
			{Name: rfqn.RelationFQN{RelationName: "t_order_item"}, Alias: "i", Span: stmtctx.Span{Start: 29, Stop: 41}},
			{Name: rfqn.RelationFQN{RelationName: "T_ORDER"}, Alias: "x", Span: stmtctx.Span{Start: 76, Stop: 83}},
		},
	}
	assert.NoError(stmt.Validate())
	assert.Equal([]string{"t_order", "t_order_item"}, stmt.LogicTables())

	name, ok := stmt.ResolveTable("I")
	assert.True(ok)
	assert.Equal("t_order_item", name)
	_, ok = stmt.ResolveTable("")
	assert.False(ok)

	stmt.Tables[0].Span.Stop = 1000
	assert.Error(stmt.Validate())
}

func TestParseDialect(t *testing.T) {
	assert := assert.New(t)

	for s, d := range map[string]stmtctx.Dialect{
		"":           stmtctx.DialectPostgres,
		"PostgreSQL": stmtctx.DialectPostgres,
		"mysql":      stmtctx.DialectMySQL,
		"oracle":     stmtctx.DialectOracle,
		"mssql":      stmtctx.DialectSQLServer,
	} {
		actual, err := stmtctx.ParseDialect(s)
		assert.NoError(err)
		assert.Equal(d, actual, s)
	}
	_, err := stmtctx.ParseDialect("db2")
	assert.Error(err)
	assert.True(stmtctx.DialectPostgres.NumberedMarkers())
	assert.False(stmtctx.DialectMySQL.NumberedMarkers())
}

func TestSelectContextDerived(t *testing.T) {
	assert := assert.New(t)

	stmt := &stmtctx.Statement{
		Projections: []stmtctx.Projection{
			{Expression: "user_id"},
			{Expression: "AVG(price)", Alias: "avg_price"},
			{Expression: "COUNT(*)"},
		},
		GroupBy: []stmtctx.OrderItem{{Expression: "user_id"}, {Expression: "status"}},
	}
	sc, err := stmtctx.NewSelectContext(stmt)
	require.NoError(t, err)

	assert.True(sc.IsGroupBy())
	assert.True(sc.DerivedOrderBy)
	assert.True(sc.StreamGroupBy())
	assert.False(sc.MemoryGroupBy())

	assert.Equal([]stmtctx.DerivedColumn{
		{Kind: stmtctx.DerivedGroupBy, Expression: "status", Alias: "GROUP_BY_DERIVED_0"},
		{Kind: stmtctx.DerivedAvgCount, Expression: "COUNT(price)", Alias: "AVG_DERIVED_COUNT_0"},
		{Kind: stmtctx.DerivedAvgSum, Expression: "SUM(price)", Alias: "AVG_DERIVED_SUM_0"},
	}, sc.Derived)

	require.Len(t, sc.Aggregations, 2)
	avg := sc.Aggregations[0]
	assert.Equal(stmtctx.AggAvg, avg.Type)
	assert.Equal(1, avg.Column.Projection)
	assert.Equal(1, avg.Count.Derived)
	assert.Equal(2, avg.Sum.Derived)
	assert.Equal(stmtctx.AggCount, sc.Aggregations[1].Type)
}

func TestSelectContextMemoryGroupBy(t *testing.T) {
	assert := assert.New(t)

	stmt := &stmtctx.Statement{
		Projections: []stmtctx.Projection{
			{Expression: "o.user_id"},
			{Expression: "SUM(price)", Alias: "total"},
		},
		GroupBy: []stmtctx.OrderItem{{Expression: "user_id"}},
		OrderBy: []stmtctx.OrderItem{{Expression: "total", Desc: true}},
	}
	sc, err := stmtctx.NewSelectContext(stmt)
	require.NoError(t, err)

	assert.Empty(sc.Derived)
	assert.Equal(0, sc.GroupBy[0].Column.Projection)
	assert.Equal(1, sc.OrderBy[0].Column.Projection)
	assert.True(sc.MemoryGroupBy())

	/* same items in the same order allow streaming */
	stmt.OrderBy = []stmtctx.OrderItem{{Position: 1, Desc: true}}
	sc, err = stmtctx.NewSelectContext(stmt)
	require.NoError(t, err)
	assert.True(sc.StreamGroupBy())
	assert.False(sc.DerivedOrderBy)
}

func TestSelectContextOrderByDerived(t *testing.T) {
	assert := assert.New(t)

	stmt := &stmtctx.Statement{
		Projections: []stmtctx.Projection{{Expression: "name"}},
		OrderBy:     []stmtctx.OrderItem{{Expression: "created_at"}, {Expression: "MAX(price)"}},
		GroupBy:     []stmtctx.OrderItem{{Expression: "created_at"}},
	}
	sc, err := stmtctx.NewSelectContext(stmt)
	require.NoError(t, err)

	/* group by reuses the column derived for order by */
	assert.Len(sc.Derived, 2)
	assert.Equal("ORDER_BY_DERIVED_0", sc.Derived[0].Alias)
	assert.Equal("ORDER_BY_DERIVED_1", sc.Derived[1].Alias)
	assert.Equal(0, sc.GroupBy[0].Column.Derived)
	require.Len(t, sc.Aggregations, 1)
	assert.Equal(stmtctx.AggMax, sc.Aggregations[0].Type)
	assert.Equal(1, sc.Aggregations[0].Column.Derived)

	_, err = stmtctx.NewSelectContext(&stmtctx.Statement{
		Projections: []stmtctx.Projection{{Expression: "a"}},
		OrderBy:     []stmtctx.OrderItem{{Position: 3}},
	})
	assert.Error(err)

	_, err = stmtctx.NewSelectContext(&stmtctx.Statement{
		Projections: []stmtctx.Projection{{Expression: "COUNT(DISTINCT a)"}},
	})
	code, _ := spqrerror.Code(err)
	assert.Equal(spqrerror.SPQR_NOT_IMPLEMENTED, code)
}

func TestSelectContextStar(t *testing.T) {
	assert := assert.New(t)

	sc, err := stmtctx.NewSelectContext(&stmtctx.Statement{
		Projections: []stmtctx.Projection{{Expression: "*"}},
		OrderBy:     []stmtctx.OrderItem{{Expression: "o.created_at", Desc: true}},
	})
	require.NoError(t, err)

	assert.True(sc.HasStar)
	assert.Empty(sc.Derived)
	assert.Equal(stmtctx.ColumnRef{Label: "created_at", Projection: -1, Derived: -1}, sc.OrderBy[0].Column)
	assert.False(sc.IsGroupBy())
}

func TestDefaultNullsFirst(t *testing.T) {
	assert := assert.New(t)

	assert.False(stmtctx.DialectPostgres.DefaultNullsFirst(false))
	assert.True(stmtctx.DialectPostgres.DefaultNullsFirst(true))
	assert.True(stmtctx.DialectOracle.DefaultNullsFirst(true))
	assert.True(stmtctx.DialectMySQL.DefaultNullsFirst(false))
	assert.False(stmtctx.DialectMySQL.DefaultNullsFirst(true))
	assert.False(stmtctx.DialectSQLServer.DefaultNullsFirst(true))
}
