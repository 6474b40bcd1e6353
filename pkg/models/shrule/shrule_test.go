package shrule_test

import (
	"testing"

	"github.com/pg-sharding/spqrkernel/pkg/models/shrule"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/pkg/shardalgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandInline(t *testing.T) {
	assert := assert.New(t)

	for _, tt := range []struct {
		expr string
		exp  []string
		err  bool
	}{
		{
			expr: "ds${0..1}.t_order_${0..1}",
			exp:  []string{"ds0.t_order_0", "ds0.t_order_1", "ds1.t_order_0", "ds1.t_order_1"},
		},
		{
			expr: "ds_${['a', 'b']}.t_user",
			exp:  []string{"ds_a.t_user", "ds_b.t_user"},
		},
		{
			expr: "ds0.t_config, ds1.t_config",
			exp:  []string{"ds0.t_config", "ds1.t_config"},
		},
		{
			expr: "ds${[0,1]}.t_${2..3}, ds9.t_x",
			exp:  []string{"ds0.t_2", "ds0.t_3", "ds1.t_2", "ds1.t_3", "ds9.t_x"},
		},
		{expr: "ds${0..1.t", err: true},
		{expr: "ds${1..0}.t", err: true},
		{expr: "ds${x}.t", err: true},
	} {
		res, err := shrule.ExpandInline(tt.expr)
		if tt.err {
			assert.Error(err, tt.expr)
			continue
		}
		assert.NoError(err, tt.expr)
		assert.Equal(tt.exp, res, tt.expr)
	}
}

func TestParseDataNode(t *testing.T) {
	assert := assert.New(t)

	dn, err := shrule.ParseDataNode(" ds0.t_order_1 ")
	assert.NoError(err)
	assert.Equal(shrule.DataNode{DataSource: "ds0", Table: "t_order_1"}, dn)
	assert.Equal("ds0.t_order_1", dn.String())

	for _, bad := range []string{"t_order", ".t", "ds.", "a.b.c"} {
		_, err := shrule.ParseDataNode(bad)
		assert.Error(err, bad)
	}
}

func strategy(t *testing.T, col string, count string) *shrule.StrategyRule {
	alg, err := shardalgo.NewModAlgorithm(shardalgo.Props{"sharding-count": count})
	require.NoError(t, err)
	return &shrule.StrategyRule{Columns: []string{col}, AlgorithmName: "mod", Algorithm: alg}
}

func table(t *testing.T, name, nodes string) *shrule.TableRule {
	dns, err := shrule.ParseDataNodes(nodes)
	require.NoError(t, err)
	return &shrule.TableRule{
		LogicTable:       name,
		DataNodes:        dns,
		DatabaseStrategy: strategy(t, "user_id", "2"),
		TableStrategy:    strategy(t, "order_id", "2"),
	}
}

func TestTableRule(t *testing.T) {
	assert := assert.New(t)

	tr := table(t, "t_order", "ds${0..1}.t_order_${0..1}")
	assert.Equal([]string{"ds0", "ds1"}, tr.DataSourceNames())
	assert.Equal([]string{"t_order_0", "t_order_1"}, tr.ActualTables("ds1"))

	ord, ok := tr.TableOrdinal("ds1", "t_order_1")
	assert.True(ok)
	assert.Equal(1, ord)
	_, ok = tr.TableOrdinal("ds1", "t_order_7")
	assert.False(ok)

	assert.True(tr.IsShardingColumn("USER_ID"))
	assert.False(tr.IsShardingColumn("status"))
	assert.Equal([]string{"user_id", "order_id"}, tr.ShardingColumns())
}

func TestShardingRuleValidate(t *testing.T) {
	assert := assert.New(t)

	build := func(mod func(r *shrule.ShardingRule)) error {
		r := shrule.NewShardingRule([]string{"ds0", "ds1"}, "ds0")
		require.NoError(t, r.AddTable(table(t, "t_order", "ds${0..1}.t_order_${0..1}")))
		require.NoError(t, r.AddTable(table(t, "t_order_item", "ds${0..1}.t_order_item_${0..1}")))
		r.AddBindingGroup(shrule.BindingGroup{"t_order", "t_order_item"})
		r.AddBroadcastTable("t_config")
		if mod != nil {
			mod(r)
		}
		return r.Validate()
	}

	assert.NoError(build(nil))

	for name, mod := range map[string]func(r *shrule.ShardingRule){
		"unknown default": func(r *shrule.ShardingRule) { r.DefaultDataSource = "ds7" },
		"duplicate datasource": func(r *shrule.ShardingRule) {
			r.DataSources = []string{"ds0", "ds1", "ds0"}
		},
		"unknown datasource": func(r *shrule.ShardingRule) {
			_ = r.AddTable(table(t, "t_user", "ds${0..2}.t_user"))
		},
		"uneven binding": func(r *shrule.ShardingRule) {
			_ = r.AddTable(table(t, "t_user", "ds${0..1}.t_user"))
			r.AddBindingGroup(shrule.BindingGroup{"t_order", "t_user"})
		},
		"unknown binding table": func(r *shrule.ShardingRule) {
			r.AddBindingGroup(shrule.BindingGroup{"t_missing", "t_order"})
		},
		"broadcast and sharded": func(r *shrule.ShardingRule) {
			r.AddBroadcastTable("T_ORDER")
		},
		"complex without complex algorithm": func(r *shrule.ShardingRule) {
			tr := table(t, "t_user", "ds${0..1}.t_user")
			tr.TableStrategy.Columns = []string{"a", "b"}
			_ = r.AddTable(tr)
		},
	} {
		err := build(mod)
		assert.Error(err, name)
		code, _ := spqrerror.Code(err)
		assert.Equal(spqrerror.SPQR_INVALID_RULE, code, name)
	}
}

func TestShardingRuleLookups(t *testing.T) {
	assert := assert.New(t)

	r := shrule.NewShardingRule([]string{"ds0", "ds1"}, "")
	require.NoError(t, r.AddTable(table(t, "t_order", "ds${0..1}.t_order_${0..1}")))
	require.NoError(t, r.AddTable(table(t, "t_order_item", "ds${0..1}.t_order_item_${0..1}")))
	assert.Error(r.AddTable(table(t, "T_Order", "ds0.x")))
	r.AddBindingGroup(shrule.BindingGroup{"t_order", "t_order_item"})
	r.AddBroadcastTable("t_config")
	require.NoError(t, r.Validate())

	_, ok := r.TableRule("T_ORDER")
	assert.True(ok)
	assert.True(r.IsSharded("t_order_item"))
	assert.True(r.IsBroadcast("T_Config"))
	assert.False(r.IsSharded("t_config"))

	g, ok := r.BindingGroupOf("t_order_item")
	assert.True(ok)
	assert.Equal(shrule.BindingGroup{"t_order", "t_order_item"}, g)
	_, ok = r.BindingGroupOf("t_config")
	assert.False(ok)

	assert.Equal(1, r.DataSourceIndex("ds1"))
	assert.Equal(2, r.DataSourceIndex("ds9"))
	assert.Len(r.TableRules(), 2)
}
