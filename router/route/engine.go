package route

import (
	"slices"
	"sort"
	"strings"

	"github.com/pg-sharding/spqrkernel/pkg/models/shrule"
	"github.com/pg-sharding/spqrkernel/pkg/models/shvalue"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/pkg/shardalgo"
	"github.com/pg-sharding/spqrkernel/pkg/spqrlog"
	"github.com/pg-sharding/spqrkernel/router/rmeta"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
)

type Engine struct {
	rule *shrule.ShardingRule
}

func NewEngine(rule *shrule.ShardingRule) *Engine {
	return &Engine{rule: rule}
}

// placement is one candidate location of a routed entity: a single table
// or all tables of one binding group present in the statement.
type placement struct {
	ds      string
	tables  []TableMapper
	ordinal int
}

type nodeRef struct {
	ds      string
	ordinal int
}

/*
* Route computes routing units of the bound statement. Units are ordered by
* datasource configuration order, then by actual table ordinals.
 */
func (e *Engine) Route(b *stmtctx.Bound) ([]*Unit, error) {
	stmt := b.Stmt
	var sharded, broadcast, plain []string
	for _, t := range stmt.LogicTables() {
		switch {
		case e.rule.IsSharded(t):
			sharded = append(sharded, t)
		case e.rule.IsBroadcast(t):
			broadcast = append(broadcast, t)
		default:
			plain = append(plain, t)
		}
	}

	var units []*Unit
	var err error
	switch {
	case len(sharded) > 0 && len(plain) > 0:
		return nil, spqrerror.Newf(spqrerror.SPQR_NO_DATASHARD,
			"tables %v have no sharding rule and cannot be combined with sharded tables %v", plain, sharded)
	case len(sharded) > 0:
		units, err = e.routeSharded(b, sharded, broadcast)
	case len(plain) > 0:
		units, err = e.routeDefault(stmt, append(plain, broadcast...))
	default:
		units = e.routeBroadcast(stmt, broadcast)
	}
	if err != nil {
		return nil, err
	}

	if stmt.Kind != stmtctx.Select && len(units) == 0 {
		return nil, spqrerror.Newf(spqrerror.SPQR_NO_DATASHARD, "statement on %v matches no data node", stmt.LogicTables())
	}

	spqrlog.Zero.Debug().
		Strs("units", Strings(units)).
		Msg("routed statement")
	return units, nil
}

func identity(tables []string) []TableMapper {
	res := make([]TableMapper, 0, len(tables))
	for _, t := range tables {
		res = append(res, TableMapper{Logical: t, Actual: t})
	}
	return res
}

// allGroups lists every group of a statement that is not sharded: each
// VALUES row of an INSERT, the single group of anything else.
func allGroups(stmt *stmtctx.Statement) []int {
	if stmt.Kind != stmtctx.Insert || stmt.Insert == nil || len(stmt.Insert.Rows) == 0 {
		return []int{0}
	}
	res := make([]int, len(stmt.Insert.Rows))
	for i := range res {
		res[i] = i
	}
	return res
}

func (e *Engine) routeDefault(stmt *stmtctx.Statement, tables []string) ([]*Unit, error) {
	if e.rule.DefaultDataSource == "" {
		return nil, spqrerror.Newf(spqrerror.SPQR_NO_DATASHARD,
			"tables %v have no sharding rule and no default datasource is configured", tables)
	}
	return []*Unit{{DataSource: e.rule.DefaultDataSource, Tables: identity(tables), Groups: allGroups(stmt)}}, nil
}

// routeBroadcast sends writes everywhere, reads to a single datasource.
// Every unit carries all rows of the statement.
func (e *Engine) routeBroadcast(stmt *stmtctx.Statement, tables []string) []*Unit {
	if stmt.Kind.ReadOnly() {
		ds := e.rule.DefaultDataSource
		if ds == "" {
			ds = e.rule.DataSources[0]
		}
		return []*Unit{{DataSource: ds, Tables: identity(tables), Groups: allGroups(stmt)}}
	}
	units := make([]*Unit, 0, len(e.rule.DataSources))
	for _, ds := range e.rule.DataSources {
		units = append(units, &Unit{DataSource: ds, Tables: identity(tables), Groups: allGroups(stmt)})
	}
	return units
}

func (e *Engine) routeSharded(b *stmtctx.Bound, sharded, broadcast []string) ([]*Unit, error) {
	groups, err := rmeta.Extract(e.rule, b)
	if err != nil {
		return nil, err
	}

	byKey := map[string]*Unit{}
	var units []*Unit
	for _, g := range groups {
		if g.Empty {
			continue
		}
		gunits, err := e.routeGroup(g, sharded)
		if err != nil {
			return nil, err
		}
		for _, u := range gunits {
			u.Tables = append(u.Tables, identity(broadcast)...)
			k := u.key()
			if prev, ok := byKey[k]; ok {
				if !prev.HasGroup(g.Index) {
					prev.Groups = append(prev.Groups, g.Index)
				}
				continue
			}
			u.Groups = []int{g.Index}
			byKey[k] = u
			units = append(units, u)
		}
	}

	sort.SliceStable(units, func(i, j int) bool {
		di, dj := e.rule.DataSourceIndex(units[i].DataSource), e.rule.DataSourceIndex(units[j].DataSource)
		if di != dj {
			return di < dj
		}
		return slices.Compare(units[i].ordinals, units[j].ordinals) < 0
	})

	if b.Stmt.Kind == stmtctx.Insert {
		if err := checkInsertRows(groups, units); err != nil {
			return nil, err
		}
	}
	return units, nil
}

func checkInsertRows(groups []*rmeta.GroupValues, units []*Unit) error {
	for _, g := range groups {
		n := 0
		for _, u := range units {
			if u.HasGroup(g.Index) {
				n++
			}
		}
		if n > 1 {
			return spqrerror.Newf(spqrerror.SPQR_NOT_IMPLEMENTED,
				"insert row %d routes to %d data nodes, sharding values must identify a single node", g.Index, n)
		}
	}
	return nil
}

func (e *Engine) routeGroup(g *rmeta.GroupValues, sharded []string) ([]*Unit, error) {
	/* binding group name -> authoritative decision, entity index */
	decisions := map[string][]nodeRef{}
	entityOf := map[string]int{}
	var entities [][]placement

	for _, name := range sharded {
		tr, _ := e.rule.TableRule(name)
		bg, bound := e.rule.BindingGroupOf(name)
		gkey := ""
		if bound {
			gkey = strings.ToLower(strings.Join(bg, ","))
		}

		if refs, ok := decisions[gkey]; bound && ok {
			idx := entityOf[gkey]
			for i, ref := range refs {
				actuals := tr.ActualTables(ref.ds)
				if ref.ordinal >= len(actuals) {
					return nil, spqrerror.Newf(spqrerror.SPQR_BINDING_DECISION_MISSING,
						"binding table %s has no table with ordinal %d on %s", name, ref.ordinal, ref.ds)
				}
				entities[idx][i].tables = append(entities[idx][i].tables, TableMapper{Logical: name, Actual: actuals[ref.ordinal]})
			}
			continue
		}

		nodes, err := e.routeTable(tr, g.Table(name))
		if err != nil {
			return nil, err
		}
		ps := make([]placement, 0, len(nodes))
		refs := make([]nodeRef, 0, len(nodes))
		for _, dn := range nodes {
			ord, _ := tr.TableOrdinal(dn.DataSource, dn.Table)
			ps = append(ps, placement{ds: dn.DataSource, tables: []TableMapper{{Logical: name, Actual: dn.Table}}, ordinal: ord})
			refs = append(refs, nodeRef{ds: dn.DataSource, ordinal: ord})
		}
		if bound {
			decisions[gkey] = refs
			entityOf[gkey] = len(entities)
		}
		entities = append(entities, ps)
	}

	return cartesian(entities), nil
}

// cartesian combines placements of all entities located on the same datasource.
func cartesian(entities [][]placement) []*Unit {
	combos := []*Unit{{}}
	for _, ps := range entities {
		var next []*Unit
		for _, c := range combos {
			for _, p := range ps {
				if c.DataSource != "" && c.DataSource != p.ds {
					continue
				}
				u := &Unit{
					DataSource: p.ds,
					Tables:     append(slices.Clone(c.Tables), p.tables...),
					ordinals:   append(slices.Clone(c.ordinals), p.ordinal),
				}
				next = append(next, u)
			}
		}
		combos = next
	}
	if len(entities) == 0 {
		return nil
	}
	return combos
}

/*
* routeTable applies the database strategy over datasource names and then
* the table strategy over actual tables of every chosen datasource.
 */
func (e *Engine) routeTable(tr *shrule.TableRule, vals map[string]shvalue.Value) ([]shrule.DataNode, error) {
	dss, err := shard(tr.LogicTable, tr.DatabaseStrategy, tr.DataSourceNames(), vals)
	if err != nil {
		return nil, err
	}
	var res []shrule.DataNode
	for _, ds := range dss {
		tables, err := shard(tr.LogicTable, tr.TableStrategy, tr.ActualTables(ds), vals)
		if err != nil {
			return nil, err
		}
		for _, t := range tables {
			res = append(res, shrule.DataNode{DataSource: ds, Table: t})
		}
	}
	spqrlog.Zero.Debug().
		Str("table", tr.LogicTable).
		Int("nodes", len(res)).
		Msg("routed table")
	return res, nil
}

func shard(table string, s *shrule.StrategyRule, targets []string, vals map[string]shvalue.Value) ([]string, error) {
	if s == nil {
		return targets, nil
	}
	if !s.Complex() {
		v, ok := vals[strings.ToLower(s.Columns[0])]
		if !ok {
			return targets, nil
		}
		return shardalgo.DoSharding(s.Algorithm, targets, v)
	}

	keys := map[string]shvalue.Value{}
	for _, c := range s.Columns {
		if v, ok := vals[strings.ToLower(c)]; ok {
			keys[c] = v
		}
	}
	if len(keys) == 0 {
		return targets, nil
	}
	cv, err := shvalue.NewComplexKeys(table, keys)
	if err != nil {
		return nil, err
	}
	return shardalgo.DoSharding(s.Algorithm, targets, cv)
}
