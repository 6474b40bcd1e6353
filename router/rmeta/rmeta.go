package rmeta

import (
	"strings"

	"github.com/pg-sharding/spqrkernel/pkg/models/shrule"
	"github.com/pg-sharding/spqrkernel/pkg/models/shvalue"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/pkg/spqrlog"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
)

// GroupValues are the sharding values of one OR group of conditions, or
// of one row of a multi-row INSERT.
type GroupValues struct {
	Index int
	// this maps lowercased table names to lowercased column names to the
	// restriction the group puts on the column
	Values map[string]map[string]shvalue.Value
	// Empty is set when conditions of the group contradict each other,
	// such a group matches no rows at all
	Empty bool
}

func newGroup(idx int) *GroupValues {
	return &GroupValues{Index: idx, Values: map[string]map[string]shvalue.Value{}}
}

// Table returns the column restrictions of a logical table.
func (g *GroupValues) Table(name string) map[string]shvalue.Value {
	return g.Values[strings.ToLower(name)]
}

func (g *GroupValues) add(v shvalue.Value) error {
	tkey, ckey := strings.ToLower(v.Table), strings.ToLower(v.Column)
	cols, ok := g.Values[tkey]
	if !ok {
		cols = map[string]shvalue.Value{}
		g.Values[tkey] = cols
	}
	prev, ok := cols[ckey]
	if !ok {
		nonEmpty, err := v.Satisfiable()
		if err != nil {
			return err
		}
		if !nonEmpty {
			g.Empty = true
			return nil
		}
		cols[ckey] = v
		return nil
	}
	merged, nonEmpty, err := shvalue.Intersect(prev, v)
	if err != nil {
		return err
	}
	if !nonEmpty {
		g.Empty = true
		return nil
	}
	cols[ckey] = merged
	return nil
}

type RoutingMetadataContext struct {
	Rule  *shrule.ShardingRule
	Bound *stmtctx.Bound
}

func NewRoutingMetadataContext(rule *shrule.ShardingRule, b *stmtctx.Bound) *RoutingMetadataContext {
	return &RoutingMetadataContext{Rule: rule, Bound: b}
}

// Extract resolves sharding conditions of the statement against bound
// parameters. A statement without conditions yields one unrestricted group.
func Extract(rule *shrule.ShardingRule, b *stmtctx.Bound) ([]*GroupValues, error) {
	return NewRoutingMetadataContext(rule, b).Extract()
}

func (rm *RoutingMetadataContext) Extract() ([]*GroupValues, error) {
	stmt := rm.Bound.Stmt
	if stmt.Kind == stmtctx.Insert && stmt.Insert != nil && len(stmt.Insert.Rows) > 0 {
		return rm.extractInsert()
	}
	if len(stmt.Conditions) == 0 {
		return []*GroupValues{newGroup(0)}, nil
	}

	groups := make([]*GroupValues, 0, len(stmt.Conditions))
	for i, and := range stmt.Conditions {
		g := newGroup(i)
		for _, c := range and {
			if err := rm.processCondition(g, c); err != nil {
				return nil, err
			}
		}
		spqrlog.Zero.Debug().
			Int("group", i).
			Bool("empty", g.Empty).
			Interface("values", g.Values).
			Msg("extracted sharding values")
		groups = append(groups, g)
	}
	return groups, nil
}

func (rm *RoutingMetadataContext) processCondition(g *GroupValues, c stmtctx.Condition) error {
	table, ok := rm.Bound.Stmt.ResolveTable(c.Table)
	if !ok {
		spqrlog.Zero.Debug().Str("table", c.Table).Str("column", c.Column).Msg("condition on unknown relation ignored")
		return nil
	}
	tr, ok := rm.Rule.TableRule(table)
	if !ok || !tr.IsShardingColumn(c.Column) {
		return nil
	}

	vals := make([]any, 0, len(c.Values))
	for _, e := range c.Values {
		v, err := e.Resolve(rm.Bound.Params)
		if err != nil {
			return err
		}
		vals = append(vals, v)
	}

	argc := func(n int) error {
		if len(vals) != n {
			return spqrerror.Newf(spqrerror.SPQR_UNEXPECTED,
				"operator %s on %s.%s expects %d values, got %d", c.Op, table, c.Column, n, len(vals))
		}
		return nil
	}

	var v shvalue.Value
	var err error
	switch c.Op {
	case stmtctx.OpEq:
		if err := argc(1); err != nil {
			return err
		}
		v, err = shvalue.NewPrecise(table, c.Column, vals[0])
	case stmtctx.OpIn:
		if len(vals) == 0 {
			return spqrerror.Newf(spqrerror.SPQR_UNEXPECTED, "empty IN list on %s.%s", table, c.Column)
		}
		v, err = shvalue.NewList(table, c.Column, vals)
	case stmtctx.OpBetween:
		if err := argc(2); err != nil {
			return err
		}
		v, err = shvalue.NewRange(table, c.Column, shvalue.Closed(vals[0]), shvalue.Closed(vals[1]))
	case stmtctx.OpLt:
		if err := argc(1); err != nil {
			return err
		}
		v, err = shvalue.NewRange(table, c.Column, shvalue.Unbounded, shvalue.Open(vals[0]))
	case stmtctx.OpLte:
		if err := argc(1); err != nil {
			return err
		}
		v, err = shvalue.NewRange(table, c.Column, shvalue.Unbounded, shvalue.Closed(vals[0]))
	case stmtctx.OpGt:
		if err := argc(1); err != nil {
			return err
		}
		v, err = shvalue.NewRange(table, c.Column, shvalue.Open(vals[0]), shvalue.Unbounded)
	case stmtctx.OpGte:
		if err := argc(1); err != nil {
			return err
		}
		v, err = shvalue.NewRange(table, c.Column, shvalue.Closed(vals[0]), shvalue.Unbounded)
	default:
		/* not a narrowing operator */
		return nil
	}
	if err != nil {
		return err
	}
	return g.add(v)
}

func (rm *RoutingMetadataContext) extractInsert() ([]*GroupValues, error) {
	stmt := rm.Bound.Stmt
	table := stmt.Insert.Table
	if table == "" {
		tables := stmt.LogicTables()
		if len(tables) == 0 {
			return nil, spqrerror.New(spqrerror.SPQR_UNEXPECTED, "insert without target table")
		}
		table = tables[0]
	}
	tr, sharded := rm.Rule.TableRule(table)

	gk := rm.Bound.GeneratedKey
	groups := make([]*GroupValues, 0, len(stmt.Insert.Rows))
	for i, row := range stmt.Insert.Rows {
		g := newGroup(i)
		if !sharded {
			groups = append(groups, g)
			continue
		}
		if len(row.Values) != len(stmt.Insert.Columns) {
			return nil, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED,
				"insert row %d has %d values for %d columns", i, len(row.Values), len(stmt.Insert.Columns))
		}
		for j, col := range stmt.Insert.Columns {
			if !tr.IsShardingColumn(col) {
				continue
			}
			val, err := row.Values[j].Resolve(rm.Bound.Params)
			if err != nil {
				return nil, err
			}
			v, err := shvalue.NewPrecise(table, col, val)
			if err != nil {
				return nil, err
			}
			if err := g.add(v); err != nil {
				return nil, err
			}
		}
		if gk != nil && tr.IsShardingColumn(gk.Column) {
			if i >= len(gk.Values) {
				return nil, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED, "no generated key for insert row %d", i)
			}
			v, err := shvalue.NewPrecise(table, gk.Column, gk.Values[i])
			if err != nil {
				return nil, err
			}
			if err := g.add(v); err != nil {
				return nil, err
			}
		}
		groups = append(groups, g)
	}
	return groups, nil
}
