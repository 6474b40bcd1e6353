// Package shruletest provides a sample sharding rule for tests.
package shruletest

import (
	"github.com/pg-sharding/spqrkernel/pkg/keygen"
	"github.com/pg-sharding/spqrkernel/pkg/models/shrule"
	"github.com/pg-sharding/spqrkernel/pkg/shardalgo"
)

/*
* OrderRule describes two datasources ds0 and ds1 with
*
*	t_order, t_order_item   ds${0..1}.<name>_${0..1}, database by user_id % 2,
*	                        table by order_id % 2, bound together
*	t_user                  ds${0..1}.t_user, database by user_id % 2
*	t_config                broadcast
*
* t_order generates order_id from a sequence starting at 1000.
 */
func OrderRule(defaultDataSource string) (*shrule.ShardingRule, error) {
	mod := func() (shardalgo.Algorithm, error) {
		return shardalgo.NewModAlgorithm(shardalgo.Props{"sharding-count": "2"})
	}
	dbAlg, err := mod()
	if err != nil {
		return nil, err
	}
	tblAlg, err := mod()
	if err != nil {
		return nil, err
	}

	strategies := func() (*shrule.StrategyRule, *shrule.StrategyRule) {
		return &shrule.StrategyRule{Columns: []string{"user_id"}, AlgorithmName: "db_mod", Algorithm: dbAlg},
			&shrule.StrategyRule{Columns: []string{"order_id"}, AlgorithmName: "tbl_mod", Algorithm: tblAlg}
	}

	rule := shrule.NewShardingRule([]string{"ds0", "ds1"}, defaultDataSource)
	for _, name := range []string{"t_order", "t_order_item"} {
		dns, err := shrule.ParseDataNodes("ds${0..1}." + name + "_${0..1}")
		if err != nil {
			return nil, err
		}
		db, tbl := strategies()
		tr := &shrule.TableRule{LogicTable: name, DataNodes: dns, DatabaseStrategy: db, TableStrategy: tbl}
		if name == "t_order" {
			tr.KeyGenerate = &shrule.KeyGenerateRule{
				Column:    "order_id",
				Generator: keygen.NewSequenceGenerator("t_order.order_id", 10, keygen.NewLocalRangeSource(1000)),
			}
		}
		if err := rule.AddTable(tr); err != nil {
			return nil, err
		}
	}

	dns, err := shrule.ParseDataNodes("ds${0..1}.t_user")
	if err != nil {
		return nil, err
	}
	db, _ := strategies()
	if err := rule.AddTable(&shrule.TableRule{LogicTable: "t_user", DataNodes: dns, DatabaseStrategy: db}); err != nil {
		return nil, err
	}

	rule.AddBindingGroup(shrule.BindingGroup{"t_order", "t_order_item"})
	rule.AddBroadcastTable("t_config")
	return rule, rule.Validate()
}

func MustOrderRule(defaultDataSource string) *shrule.ShardingRule {
	rule, err := OrderRule(defaultDataSource)
	if err != nil {
		panic(err)
	}
	return rule
}
