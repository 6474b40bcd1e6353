package route_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pg-sharding/spqrkernel/pkg/models/shrule/shruletest"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/router/rfqn"
	"github.com/pg-sharding/spqrkernel/router/route"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ignoreUnexported = cmpopts.IgnoreUnexported(route.Unit{})

func eq(col string, v any) stmtctx.Condition {
	return stmtctx.Condition{Column: col, Op: stmtctx.OpEq, Values: []stmtctx.ValueExpr{stmtctx.Lit(v)}}
}

func on(table string, c stmtctx.Condition) stmtctx.Condition {
	c.Table = table
	return c
}

func statement(kind stmtctx.Kind, conds stmtctx.ShardingConditions, tables ...string) *stmtctx.Statement {
	stmt := &stmtctx.Statement{Kind: kind, Conditions: conds}
	for _, t := range tables {
		stmt.Tables = append(stmt.Tables, stmtctx.TableRef{Name: rfqn.RelationFQN{RelationName: t}})
	}
	return stmt
}

func unit(ds string, groups []int, pairs ...string) *route.Unit {
	u := &route.Unit{DataSource: ds, Groups: groups}
	for i := 0; i < len(pairs); i += 2 {
		u.Tables = append(u.Tables, route.TableMapper{Logical: pairs[i], Actual: pairs[i+1]})
	}
	return u
}

func TestRoute(t *testing.T) {
	rule := shruletest.MustOrderRule("")

	for _, tt := range []struct {
		name string
		stmt *stmtctx.Statement
		exp  []*route.Unit
	}{
		{
			name: "precise database and table",
			stmt: statement(stmtctx.Select, stmtctx.ShardingConditions{{eq("user_id", int64(1)), eq("order_id", int64(2))}}, "t_order"),
			exp:  []*route.Unit{unit("ds1", []int{0}, "t_order", "t_order_0")},
		},
		{
			name: "no conditions",
			stmt: statement(stmtctx.Select, nil, "t_order"),
			exp: []*route.Unit{
				unit("ds0", []int{0}, "t_order", "t_order_0"),
				unit("ds0", []int{0}, "t_order", "t_order_1"),
				unit("ds1", []int{0}, "t_order", "t_order_0"),
				unit("ds1", []int{0}, "t_order", "t_order_1"),
			},
		},
		{
			name: "binding tables follow the first table",
			stmt: statement(stmtctx.Select, stmtctx.ShardingConditions{{on("t_order", eq("user_id", int64(1)))}}, "t_order", "t_order_item"),
			exp: []*route.Unit{
				unit("ds1", []int{0}, "t_order", "t_order_0", "t_order_item", "t_order_item_0"),
				unit("ds1", []int{0}, "t_order", "t_order_1", "t_order_item", "t_order_item_1"),
			},
		},
		{
			name: "binding decision reused even with sibling conditions",
			stmt: statement(stmtctx.Select, stmtctx.ShardingConditions{{
				on("t_order", eq("order_id", int64(3))),
				on("t_order_item", eq("order_id", int64(4))),
			}}, "t_order", "t_order_item"),
			exp: []*route.Unit{
				unit("ds0", []int{0}, "t_order", "t_order_1", "t_order_item", "t_order_item_1"),
				unit("ds1", []int{0}, "t_order", "t_order_1", "t_order_item", "t_order_item_1"),
			},
		},
		{
			name: "unbound join is a cartesian product per datasource",
			stmt: statement(stmtctx.Select, stmtctx.ShardingConditions{{
				on("t_order", eq("user_id", int64(1))),
				on("t_user", eq("user_id", int64(1))),
			}}, "t_order", "t_user"),
			exp: []*route.Unit{
				unit("ds1", []int{0}, "t_order", "t_order_0", "t_user", "t_user"),
				unit("ds1", []int{0}, "t_order", "t_order_1", "t_user", "t_user"),
			},
		},
		{
			name: "or groups are unioned",
			stmt: statement(stmtctx.Select, stmtctx.ShardingConditions{
				{eq("user_id", int64(0)), eq("order_id", int64(1))},
				{eq("user_id", int64(1)), eq("order_id", int64(1))},
				{eq("user_id", int64(3)), eq("order_id", int64(5))},
			}, "t_order"),
			exp: []*route.Unit{
				unit("ds0", []int{0}, "t_order", "t_order_1"),
				unit("ds1", []int{1, 2}, "t_order", "t_order_1"),
			},
		},
		{
			name: "contradicting conditions route nowhere",
			stmt: statement(stmtctx.Select, stmtctx.ShardingConditions{{eq("user_id", int64(0)), eq("user_id", int64(1))}}, "t_order"),
			exp:  nil,
		},
		{
			name: "broadcast read is unicast",
			stmt: statement(stmtctx.Select, nil, "t_config"),
			exp:  []*route.Unit{unit("ds0", []int{0}, "t_config", "t_config")},
		},
		{
			name: "broadcast write goes everywhere",
			stmt: statement(stmtctx.Update, nil, "t_config"),
			exp: []*route.Unit{
				unit("ds0", []int{0}, "t_config", "t_config"),
				unit("ds1", []int{0}, "t_config", "t_config"),
			},
		},
		{
			name: "broadcast insert carries every row",
			stmt: func() *stmtctx.Statement {
				stmt := statement(stmtctx.Insert, nil, "t_config")
				stmt.Insert = &stmtctx.InsertInfo{Table: "t_config", Rows: make([]stmtctx.InsertRow, 3)}
				return stmt
			}(),
			exp: []*route.Unit{
				unit("ds0", []int{0, 1, 2}, "t_config", "t_config"),
				unit("ds1", []int{0, 1, 2}, "t_config", "t_config"),
			},
		},
		{
			name: "broadcast joined with sharded table",
			stmt: statement(stmtctx.Select, stmtctx.ShardingConditions{{
				on("t_order", eq("user_id", int64(0))),
				on("t_order", eq("order_id", int64(0))),
			}}, "t_order", "t_config"),
			exp: []*route.Unit{unit("ds0", []int{0}, "t_order", "t_order_0", "t_config", "t_config")},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			units, err := route.NewEngine(rule).Route(&stmtctx.Bound{Stmt: tt.stmt})
			require.NoError(t, err)
			if diff := cmp.Diff(tt.exp, units, ignoreUnexported, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("units mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRouteDefaultDataSource(t *testing.T) {
	assert := assert.New(t)

	units, err := route.NewEngine(shruletest.MustOrderRule("ds1")).Route(&stmtctx.Bound{
		Stmt: statement(stmtctx.Select, nil, "t_plain", "t_config"),
	})
	require.NoError(t, err)
	if diff := cmp.Diff([]*route.Unit{
		unit("ds1", []int{0}, "t_plain", "t_plain", "t_config", "t_config"),
	}, units, ignoreUnexported); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}

	_, err = route.NewEngine(shruletest.MustOrderRule("")).Route(&stmtctx.Bound{
		Stmt: statement(stmtctx.Select, nil, "t_plain"),
	})
	code, _ := spqrerror.Code(err)
	assert.Equal(spqrerror.SPQR_NO_DATASHARD, code)

	_, err = route.NewEngine(shruletest.MustOrderRule("ds1")).Route(&stmtctx.Bound{
		Stmt: statement(stmtctx.Select, nil, "t_plain", "t_order"),
	})
	code, _ = spqrerror.Code(err)
	assert.Equal(spqrerror.SPQR_NO_DATASHARD, code)
}

func TestRouteBindingInvariant(t *testing.T) {
	rule := shruletest.MustOrderRule("")
	engine := route.NewEngine(rule)

	for uid := int64(0); uid < 4; uid++ {
		for oid := int64(0); oid < 4; oid++ {
			units, err := engine.Route(&stmtctx.Bound{Stmt: statement(stmtctx.Select, stmtctx.ShardingConditions{{
				on("t_order", eq("user_id", uid)),
				on("t_order", eq("order_id", oid)),
			}}, "t_order", "t_order_item")})
			require.NoError(t, err)
			require.Len(t, units, 1)

			u := units[0]
			order, _ := u.ActualTable("t_order")
			item, _ := u.ActualTable("T_ORDER_ITEM")
			assert.Equal(t, order[len(order)-1], item[len(item)-1], "user %d order %d", uid, oid)
		}
	}
}

func TestRouteUnionMatchesTargets(t *testing.T) {
	rule := shruletest.MustOrderRule("")

	units, err := route.NewEngine(rule).Route(&stmtctx.Bound{Stmt: statement(stmtctx.Select, stmtctx.ShardingConditions{{
		{Column: "order_id", Op: stmtctx.OpIn, Values: []stmtctx.ValueExpr{stmtctx.Lit(int64(1)), stmtctx.Lit(int64(3))}},
	}}, "t_order")})
	require.NoError(t, err)

	seen := map[string]int{}
	for _, u := range units {
		actual, ok := u.ActualTable("t_order")
		require.True(t, ok)
		seen[u.DataSource+"."+actual]++
	}
	assert.Equal(t, map[string]int{"ds0.t_order_1": 1, "ds1.t_order_1": 1}, seen)
}

func TestRouteInsert(t *testing.T) {
	assert := assert.New(t)
	rule := shruletest.MustOrderRule("")

	stmt := statement(stmtctx.Insert, nil, "t_order")
	stmt.Insert = &stmtctx.InsertInfo{
		Table:   "t_order",
		Columns: []string{"user_id", "order_id"},
		Rows: []stmtctx.InsertRow{
			{Values: []stmtctx.ValueExpr{stmtctx.Lit(int64(1)), stmtctx.Lit(int64(1))}},
			{Values: []stmtctx.ValueExpr{stmtctx.Lit(int64(2)), stmtctx.Lit(int64(2))}},
			{Values: []stmtctx.ValueExpr{stmtctx.Lit(int64(3)), stmtctx.Lit(int64(5))}},
		},
	}
	units, err := route.NewEngine(rule).Route(&stmtctx.Bound{Stmt: stmt})
	require.NoError(t, err)
	if diff := cmp.Diff([]*route.Unit{
		unit("ds0", []int{1}, "t_order", "t_order_0"),
		unit("ds1", []int{0, 2}, "t_order", "t_order_1"),
	}, units, ignoreUnexported); diff != "" {
		t.Errorf("units mismatch (-want +got):\n%s", diff)
	}

	stmt.Insert.Columns = []string{"status", "order_id"}
	stmt.Insert.Rows = stmt.Insert.Rows[:1]
	_, err = route.NewEngine(rule).Route(&stmtctx.Bound{Stmt: stmt})
	code, _ := spqrerror.Code(err)
	assert.Equal(spqrerror.SPQR_NOT_IMPLEMENTED, code)
}
