package shrule

import (
	"sort"
	"strings"

	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/pkg/shardalgo"
)

// BindingGroup lists logical tables sharing the same shard ordinal.
type BindingGroup []string

func (g BindingGroup) Contains(table string) bool {
	for _, t := range g {
		if strings.EqualFold(t, table) {
			return true
		}
	}
	return false
}

// ShardingRule is the immutable routing metadata of one logical database.
// Build it with NewShardingRule, add tables, then call Validate once.
type ShardingRule struct {
	DataSources       []string
	DefaultDataSource string

	tables        map[string]*TableRule
	bindingGroups []BindingGroup
	broadcast     map[string]struct{}
}

func NewShardingRule(dataSources []string, defaultDataSource string) *ShardingRule {
	return &ShardingRule{
		DataSources:       dataSources,
		DefaultDataSource: defaultDataSource,
		tables:            map[string]*TableRule{},
		broadcast:         map[string]struct{}{},
	}
}

func key(name string) string {
	return strings.ToLower(name)
}

func (r *ShardingRule) AddTable(t *TableRule) error {
	if t.LogicTable == "" {
		return spqrerror.New(spqrerror.SPQR_INVALID_RULE, "table rule without logical table name")
	}
	if _, ok := r.tables[key(t.LogicTable)]; ok {
		return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "duplicate table rule for %s", t.LogicTable)
	}
	r.tables[key(t.LogicTable)] = t
	return nil
}

func (r *ShardingRule) AddBindingGroup(g BindingGroup) {
	r.bindingGroups = append(r.bindingGroups, g)
}

func (r *ShardingRule) AddBroadcastTable(name string) {
	r.broadcast[key(name)] = struct{}{}
}

func (r *ShardingRule) TableRule(logical string) (*TableRule, bool) {
	t, ok := r.tables[key(logical)]
	return t, ok
}

// TableRules returns table rules ordered by logical name.
func (r *ShardingRule) TableRules() []*TableRule {
	res := make([]*TableRule, 0, len(r.tables))
	for _, t := range r.tables {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return key(res[i].LogicTable) < key(res[j].LogicTable) })
	return res
}

func (r *ShardingRule) BindingGroups() []BindingGroup {
	return r.bindingGroups
}

func (r *ShardingRule) BroadcastTables() []string {
	res := make([]string, 0, len(r.broadcast))
	for t := range r.broadcast {
		res = append(res, t)
	}
	sort.Strings(res)
	return res
}

func (r *ShardingRule) IsBroadcast(logical string) bool {
	_, ok := r.broadcast[key(logical)]
	return ok
}

func (r *ShardingRule) IsSharded(logical string) bool {
	_, ok := r.tables[key(logical)]
	return ok
}

// BindingGroupOf returns the group containing logical, if any.
func (r *ShardingRule) BindingGroupOf(logical string) (BindingGroup, bool) {
	for _, g := range r.bindingGroups {
		if g.Contains(logical) {
			return g, true
		}
	}
	return nil, false
}

func (r *ShardingRule) DataSourceIndex(ds string) int {
	for i, d := range r.DataSources {
		if d == ds {
			return i
		}
	}
	return len(r.DataSources)
}

func (r *ShardingRule) Validate() error {
	if len(r.DataSources) == 0 {
		return spqrerror.New(spqrerror.SPQR_INVALID_RULE, "no datasources configured")
	}
	known := map[string]struct{}{}
	for _, ds := range r.DataSources {
		if _, ok := known[ds]; ok {
			return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "duplicate datasource %s", ds)
		}
		known[ds] = struct{}{}
	}
	if r.DefaultDataSource != "" {
		if _, ok := known[r.DefaultDataSource]; !ok {
			return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "default datasource %s is not configured", r.DefaultDataSource)
		}
	}

	for _, t := range r.tables {
		if err := r.validateTable(t, known); err != nil {
			return err
		}
	}

	grouped := map[string]struct{}{}
	for _, g := range r.bindingGroups {
		if err := r.validateBindingGroup(g, grouped); err != nil {
			return err
		}
	}

	for b := range r.broadcast {
		if _, ok := r.tables[b]; ok {
			return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "table %s is both broadcast and sharded", b)
		}
	}
	return nil
}

func (r *ShardingRule) validateTable(t *TableRule, known map[string]struct{}) error {
	if len(t.DataNodes) == 0 {
		return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "table %s has no data nodes", t.LogicTable)
	}
	seen := map[DataNode]struct{}{}
	for _, dn := range t.DataNodes {
		if _, ok := known[dn.DataSource]; !ok {
			return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "table %s references unknown datasource %s", t.LogicTable, dn.DataSource)
		}
		if _, ok := seen[dn]; ok {
			return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "table %s lists data node %s twice", t.LogicTable, dn)
		}
		seen[dn] = struct{}{}
	}
	for _, s := range []*StrategyRule{t.DatabaseStrategy, t.TableStrategy} {
		if s == nil {
			continue
		}
		if len(s.Columns) == 0 {
			return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "strategy %s of table %s has no columns", s.AlgorithmName, t.LogicTable)
		}
		if s.Algorithm == nil {
			return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "strategy of table %s has no algorithm", t.LogicTable)
		}
		if s.Complex() {
			if _, ok := s.Algorithm.(shardalgo.ComplexKeysAlgorithm); !ok {
				return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE,
					"table %s shards on %d columns but algorithm %s is not a complex keys algorithm",
					t.LogicTable, len(s.Columns), s.Algorithm.Type())
			}
		} else if _, ok := s.Algorithm.(shardalgo.PreciseAlgorithm); !ok {
			return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE,
				"table %s: algorithm %s cannot shard a single column", t.LogicTable, s.Algorithm.Type())
		}
	}
	if t.KeyGenerate != nil && (t.KeyGenerate.Column == "" || t.KeyGenerate.Generator == nil) {
		return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "table %s has incomplete key generate rule", t.LogicTable)
	}
	return nil
}

func (r *ShardingRule) validateBindingGroup(g BindingGroup, grouped map[string]struct{}) error {
	if len(g) < 2 {
		return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "binding group %v needs at least two tables", []string(g))
	}
	var first *TableRule
	for _, name := range g {
		t, ok := r.TableRule(name)
		if !ok {
			return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "binding table %s has no table rule", name)
		}
		if _, ok := grouped[key(name)]; ok {
			return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "table %s belongs to several binding groups", name)
		}
		grouped[key(name)] = struct{}{}

		if first == nil {
			first = t
			continue
		}
		if len(t.DataNodes) != len(first.DataNodes) {
			return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE,
				"binding tables %s and %s have different data node counts", first.LogicTable, t.LogicTable)
		}
		for _, ds := range first.DataSourceNames() {
			if len(t.ActualTables(ds)) != len(first.ActualTables(ds)) {
				return spqrerror.Newf(spqrerror.SPQR_INVALID_RULE,
					"binding tables %s and %s are distributed differently over %s", first.LogicTable, t.LogicTable, ds)
			}
		}
	}
	return nil
}
