package main

import (
	"testing"

	"github.com/pg-sharding/spqrkernel/router/stmtctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementFileSelect(t *testing.T) {
	assert := assert.New(t)

	sf, err := LoadStatementFile("testdata/select_avg.yaml")
	require.NoError(t, err)
	sf.Dialect = "postgres"

	stmt, err := sf.Statement()
	require.NoError(t, err)

	assert.Equal(stmtctx.Select, stmt.Kind)
	require.Len(t, stmt.Tables, 1)
	assert.Equal("t_order", stmt.SQL[stmt.Tables[0].Span.Start:stmt.Tables[0].Span.Stop])
	assert.Equal("user_id, AVG(price) AS avg_price", stmt.SQL[stmt.ProjectionsSpan.Start:stmt.ProjectionsSpan.Stop])

	require.NotNil(t, stmt.Having)
	assert.Equal("HAVING AVG(price) > 10", stmt.SQL[stmt.Having.Span.Start:stmt.Having.Span.Stop])
	assert.Equal(stmt.Having.Span.Stop, stmt.OrderByInsertPos)

	require.Len(t, stmt.Conditions, 1)
	assert.Equal(stmtctx.OpIn, stmt.Conditions[0][0].Op)
	assert.Equal([]stmtctx.ValueExpr{stmtctx.Param(0), stmtctx.Param(1)}, stmt.Conditions[0][0].Values)

	p := stmt.Pagination
	require.NotNil(t, p)
	assert.Equal("2", stmt.SQL[p.Offset.Span.Start:p.Offset.Span.Stop])
	assert.Equal("5", stmt.SQL[p.RowCount.Span.Start:p.RowCount.Span.Stop])
	assert.Equal(stmtctx.Lit(int64(5)), p.RowCount.Value)

	params, err := sf.BindParams()
	require.NoError(t, err)
	assert.Equal([]any{int64(1), int64(2)}, params)
}

func TestStatementFileInsert(t *testing.T) {
	assert := assert.New(t)

	sf, err := LoadStatementFile("testdata/insert_keys.yaml")
	require.NoError(t, err)

	stmt, err := sf.Statement()
	require.NoError(t, err)

	ins := stmt.Insert
	require.NotNil(t, ins)
	assert.Equal("t_order", ins.Table)
	assert.Equal(')', rune(stmt.SQL[ins.ColumnsEnd]))
	assert.Equal("(user_id, status", stmt.SQL[stmt.Tables[0].Span.Stop+1:ins.ColumnsEnd])
	require.Len(t, ins.Rows, 2)
	assert.Equal("($2, 'paid')", stmt.SQL[ins.Rows[1].Span.Start:ins.Rows[1].Span.Stop])
	assert.Equal([]stmtctx.ValueExpr{stmtctx.Param(1), stmtctx.Lit("paid")}, ins.Rows[1].Values)
}

func TestStatementFileMySQLPagination(t *testing.T) {
	assert := assert.New(t)

	sf := &StatementFile{
		SQL:     "SELECT a FROM t_order ORDER BY a LIMIT ?, ?",
		Dialect: "mysql",
		Tables:  []TableCfg{{Name: "t_order"}},
		OrderBy: []OrderCfg{{Expr: "a"}},
		Limit: &LimitCfg{
			Offset:   &BoundCfg{Value: "$1"},
			RowCount: &BoundCfg{Value: "$2"},
		},
	}
	stmt, err := sf.Statement()
	require.NoError(t, err)

	sql := stmt.SQL
	assert.Equal(len(sql)-4, stmt.Pagination.Offset.Span.Start)
	assert.Equal(len(sql)-1, stmt.Pagination.RowCount.Span.Start)
	assert.Equal(stmtctx.Param(1), stmt.Pagination.RowCount.Value)
}

func TestStatementFileErrors(t *testing.T) {
	for _, tt := range []struct {
		name string
		sf   StatementFile
		err  string
	}{
		{
			name: "unknown kind",
			sf:   StatementFile{SQL: "MERGE INTO t", Kind: "merge"},
			err:  `unknown statement kind "merge"`,
		},
		{
			name: "bad parameter reference",
			sf: StatementFile{
				SQL:        "SELECT a FROM t WHERE a = $0",
				Tables:     []TableCfg{{Name: "t"}},
				Conditions: [][]ConditionCfg{{{Table: "t", Column: "a", Op: "=", Values: []interface{}{"$0"}}}},
			},
			err: "parameters are numbered from $1",
		},
		{
			name: "oracle pagination without span",
			sf: StatementFile{
				SQL:     "SELECT a FROM t WHERE ROWNUM <= 3",
				Dialect: "oracle",
				Tables:  []TableCfg{{Name: "t"}},
				Limit:   &LimitCfg{RowCount: &BoundCfg{Value: 3}},
			},
			err: "needs an explicit span",
		},
		{
			name: "rows mismatch",
			sf: StatementFile{
				SQL:    "INSERT INTO t (a) VALUES (1)",
				Kind:   "insert",
				Tables: []TableCfg{{Name: "t"}},
				Insert: &InsertCfg{Columns: []string{"a"}, Rows: [][]interface{}{{1}, {2}}},
			},
			err: "1 value tuples, 2 rows described",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.sf.Statement()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestStatementFileQualifiedTable(t *testing.T) {
	assert := assert.New(t)

	sf := &StatementFile{
		SQL:    "DELETE FROM sales.t_order WHERE order_id = 3",
		Kind:   "delete",
		Tables: []TableCfg{{Name: "sales.t_order"}},
	}
	stmt, err := sf.Statement()
	require.NoError(t, err)

	ref := stmt.Tables[0]
	assert.Equal("sales", ref.Name.SchemaName)
	assert.Equal("t_order", stmt.SQL[ref.Span.Start:ref.Span.Stop])

	sf.Tables[0].Name = "sales..t_order"
	_, err = sf.Statement()
	assert.Error(err)
}

func TestStatementFileNullOrdering(t *testing.T) {
	assert := assert.New(t)

	first := true
	for _, tt := range []struct {
		dialect string
		cfg     OrderCfg
		exp     bool
	}{
		{dialect: "postgres", cfg: OrderCfg{Expr: "a"}, exp: false},
		{dialect: "postgres", cfg: OrderCfg{Expr: "a", Desc: true}, exp: true},
		{dialect: "mysql", cfg: OrderCfg{Expr: "a"}, exp: true},
		{dialect: "mysql", cfg: OrderCfg{Expr: "a", Desc: true}, exp: false},
		{dialect: "postgres", cfg: OrderCfg{Expr: "a", Desc: true, NullsFirst: new(bool)}, exp: false},
		{dialect: "mysql", cfg: OrderCfg{Expr: "a", Desc: true, NullsFirst: &first}, exp: true},
	} {
		sf := &StatementFile{
			SQL:     "SELECT a FROM t_order ORDER BY a",
			Dialect: tt.dialect,
			Tables:  []TableCfg{{Name: "t_order"}},
			OrderBy: []OrderCfg{tt.cfg},
		}
		stmt, err := sf.Statement()
		require.NoError(t, err)
		require.Len(t, stmt.OrderBy, 1)
		assert.Equal(tt.exp, stmt.OrderBy[0].NullsFirst, "%s %+v", tt.dialect, tt.cfg)
	}
}
