package shrule

import (
	"strings"

	"github.com/pg-sharding/spqrkernel/pkg/shardalgo"
)

// StrategyRule binds sharding columns to an algorithm instance. More than
// one column requires a complex keys algorithm.
type StrategyRule struct {
	Columns       []string
	AlgorithmName string
	Algorithm     shardalgo.Algorithm
}

func (s *StrategyRule) Complex() bool {
	return len(s.Columns) > 1
}

func (s *StrategyRule) HasColumn(col string) bool {
	for _, c := range s.Columns {
		if strings.EqualFold(c, col) {
			return true
		}
	}
	return false
}

// KeyGenerator produces values for generated key columns.
type KeyGenerator interface {
	Type() string
	NextKey() (any, error)
}

type KeyGenerateRule struct {
	Column    string
	Generator KeyGenerator
}

type TableRule struct {
	LogicTable string
	DataNodes  []DataNode

	// nil strategies mean "no sharding on that level": every datasource
	// (or every table of a datasource) is a candidate.
	DatabaseStrategy *StrategyRule
	TableStrategy    *StrategyRule

	KeyGenerate *KeyGenerateRule
}

// DataSourceNames lists datasources in order of first appearance.
func (t *TableRule) DataSourceNames() []string {
	var res []string
	seen := map[string]struct{}{}
	for _, dn := range t.DataNodes {
		if _, ok := seen[dn.DataSource]; ok {
			continue
		}
		seen[dn.DataSource] = struct{}{}
		res = append(res, dn.DataSource)
	}
	return res
}

func (t *TableRule) ActualTables(ds string) []string {
	var res []string
	for _, dn := range t.DataNodes {
		if dn.DataSource == ds {
			res = append(res, dn.Table)
		}
	}
	return res
}

// TableOrdinal is the position of the actual table inside its datasource.
func (t *TableRule) TableOrdinal(ds, actual string) (int, bool) {
	for i, tbl := range t.ActualTables(ds) {
		if tbl == actual {
			return i, true
		}
	}
	return 0, false
}

func (t *TableRule) IsShardingColumn(col string) bool {
	return (t.DatabaseStrategy != nil && t.DatabaseStrategy.HasColumn(col)) ||
		(t.TableStrategy != nil && t.TableStrategy.HasColumn(col))
}

// ShardingColumns returns the union of database and table strategy columns.
func (t *TableRule) ShardingColumns() []string {
	var res []string
	for _, s := range []*StrategyRule{t.DatabaseStrategy, t.TableStrategy} {
		if s == nil {
			continue
		}
		for _, c := range s.Columns {
			dup := false
			for _, r := range res {
				if strings.EqualFold(r, c) {
					dup = true
					break
				}
			}
			if !dup {
				res = append(res, c)
			}
		}
	}
	return res
}
