package stmtctx

import (
	"fmt"
	"strings"

	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/router/merge/having"
)

type DerivedKind int

const (
	DerivedOrderBy = DerivedKind(iota)
	DerivedGroupBy
	DerivedAvgCount
	DerivedAvgSum
	DerivedHaving
)

func (k DerivedKind) prefix() string {
	switch k {
	case DerivedOrderBy:
		return "ORDER_BY_DERIVED_"
	case DerivedGroupBy:
		return "GROUP_BY_DERIVED_"
	case DerivedAvgCount:
		return "AVG_DERIVED_COUNT_"
	case DerivedHaving:
		return "HAVING_DERIVED_"
	default:
		return "AVG_DERIVED_SUM_"
	}
}

// DerivedColumn is appended to the select list of every shard statement
// and hidden from the merged result.
type DerivedColumn struct {
	Kind       DerivedKind
	Expression string
	Alias      string
}

// ColumnRef points at a projection, a derived column or, for star
// projections, at a label resolved from shard metadata.
type ColumnRef struct {
	Label      string
	Projection int
	Derived    int
}

func (c ColumnRef) same(o ColumnRef) bool {
	if c.Projection >= 0 || o.Projection >= 0 {
		return c.Projection == o.Projection
	}
	if c.Derived >= 0 || o.Derived >= 0 {
		return c.Derived == o.Derived
	}
	return NormalizeExpression(c.Label) == NormalizeExpression(o.Label)
}

type SortItem struct {
	Column     ColumnRef
	Expression string
	Desc       bool
	NullsFirst bool
}

type AggregationColumn struct {
	Type   AggregationType
	Column ColumnRef
	// AVG only
	Count ColumnRef
	Sum   ColumnRef
}

// SelectContext is the merge relevant analysis of a SELECT statement,
// shared by the rewrite and merge engines.
type SelectContext struct {
	Stmt         *Statement
	Derived      []DerivedColumn
	GroupBy      []SortItem
	OrderBy      []SortItem
	Aggregations []AggregationColumn
	HasStar      bool
	// DerivedOrderBy is set when ORDER BY is generated from GROUP BY
	DerivedOrderBy bool
}

func NewSelectContext(stmt *Statement) (*SelectContext, error) {
	sc := &SelectContext{Stmt: stmt}
	for _, p := range stmt.Projections {
		if p.Star() {
			sc.HasStar = true
		}
	}

	for _, item := range stmt.OrderBy {
		ref, err := sc.resolve(item, DerivedOrderBy)
		if err != nil {
			return nil, err
		}
		sc.OrderBy = append(sc.OrderBy, SortItem{Column: ref, Expression: sc.expressionOf(item), Desc: item.Desc, NullsFirst: item.NullsFirst})
	}
	for _, item := range stmt.GroupBy {
		ref, err := sc.resolve(item, DerivedGroupBy)
		if err != nil {
			return nil, err
		}
		sc.GroupBy = append(sc.GroupBy, SortItem{Column: ref, Expression: sc.expressionOf(item), Desc: item.Desc, NullsFirst: item.NullsFirst})
	}
	if len(sc.OrderBy) == 0 && len(sc.GroupBy) > 0 {
		sc.OrderBy = append(sc.OrderBy, sc.GroupBy...)
		sc.DerivedOrderBy = true
	}
	sc.deriveHaving()

	for i, p := range stmt.Projections {
		if err := sc.addAggregation(p.Expression, ColumnRef{Label: p.Label(), Projection: i, Derived: -1}); err != nil {
			return nil, err
		}
	}
	for i, d := range sc.Derived {
		if d.Kind != DerivedOrderBy && d.Kind != DerivedGroupBy && d.Kind != DerivedHaving {
			continue
		}
		if err := sc.addAggregation(d.Expression, ColumnRef{Label: d.Alias, Projection: -1, Derived: i}); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

/*
* deriveHaving makes shards return the aggregates HAVING filters on that
* the select list lacks, HAVING itself is evaluated after merge. A
* condition outside the HAVING grammar derives nothing, the merge reports
* it when rows of several shards are filtered.
 */
func (sc *SelectContext) deriveHaving() {
	if sc.Stmt.Having == nil {
		return
	}
	expr, err := having.Parse(sc.Stmt.Having.Text)
	if err != nil {
		return
	}
	for _, ref := range having.References(expr) {
		if agg, _ := ParseAggregation(ref); agg == AggNone {
			continue
		}
		if _, ok := sc.Reference(ref); ok {
			continue
		}
		sc.addDerived(DerivedHaving, ref)
	}
}

func (sc *SelectContext) expressionOf(item OrderItem) string {
	if item.Position > 0 && item.Position <= len(sc.Stmt.Projections) {
		return sc.Stmt.Projections[item.Position-1].Expression
	}
	return item.Expression
}

func (sc *SelectContext) addDerived(kind DerivedKind, expr string) ColumnRef {
	n := 0
	for _, d := range sc.Derived {
		if d.Kind == kind {
			n++
		}
	}
	d := DerivedColumn{Kind: kind, Expression: expr, Alias: fmt.Sprintf("%s%d", kind.prefix(), n)}
	sc.Derived = append(sc.Derived, d)
	return ColumnRef{Label: d.Alias, Projection: -1, Derived: len(sc.Derived) - 1}
}

func (sc *SelectContext) resolve(item OrderItem, kind DerivedKind) (ColumnRef, error) {
	projs := sc.Stmt.Projections
	if item.Position > 0 {
		if item.Position > len(projs) {
			return ColumnRef{}, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED,
				"position %d is not in select list of %d items", item.Position, len(projs))
		}
		return ColumnRef{Label: projs[item.Position-1].Label(), Projection: item.Position - 1, Derived: -1}, nil
	}

	expr := NormalizeExpression(item.Expression)
	for i, p := range projs {
		if p.Alias != "" && strings.EqualFold(p.Alias, strings.TrimSpace(item.Expression)) {
			return ColumnRef{Label: p.Label(), Projection: i, Derived: -1}, nil
		}
	}
	for i, p := range projs {
		if NormalizeExpression(p.Expression) == expr {
			return ColumnRef{Label: p.Label(), Projection: i, Derived: -1}, nil
		}
	}
	for i, p := range projs {
		if !p.Star() && unqualified(NormalizeExpression(p.Expression)) == unqualified(expr) {
			return ColumnRef{Label: p.Label(), Projection: i, Derived: -1}, nil
		}
	}
	for i, d := range sc.Derived {
		if NormalizeExpression(d.Expression) == expr {
			return ColumnRef{Label: d.Alias, Projection: -1, Derived: i}, nil
		}
	}
	if agg, _ := ParseAggregation(item.Expression); sc.HasStar && agg == AggNone {
		return ColumnRef{Label: unqualified(strings.TrimSpace(item.Expression)), Projection: -1, Derived: -1}, nil
	}
	return sc.addDerived(kind, strings.TrimSpace(item.Expression)), nil
}

func (sc *SelectContext) addAggregation(expr string, ref ColumnRef) error {
	agg, arg := ParseAggregation(expr)
	if agg == AggNone {
		return nil
	}
	if strings.HasPrefix(strings.ToUpper(arg), "DISTINCT") {
		return spqrerror.Newf(spqrerror.SPQR_NOT_IMPLEMENTED, "distinct aggregation %s is not supported across shards", expr)
	}
	col := AggregationColumn{Type: agg, Column: ref}
	if agg == AggAvg {
		col.Count = sc.addDerived(DerivedAvgCount, "COUNT("+arg+")")
		col.Sum = sc.addDerived(DerivedAvgSum, "SUM("+arg+")")
	}
	sc.Aggregations = append(sc.Aggregations, col)
	return nil
}

// IsGroupBy reports whether rows of different shards must be folded.
func (sc *SelectContext) IsGroupBy() bool {
	return len(sc.GroupBy) > 0 || len(sc.Aggregations) > 0
}

// StreamGroupBy reports whether shard rows arrive sorted by the group key,
// which holds when GROUP BY and the effective ORDER BY list the same items.
func (sc *SelectContext) StreamGroupBy() bool {
	if len(sc.GroupBy) == 0 {
		return true
	}
	if len(sc.GroupBy) != len(sc.OrderBy) {
		return false
	}
	for i := range sc.GroupBy {
		if !sc.GroupBy[i].Column.same(sc.OrderBy[i].Column) {
			return false
		}
	}
	return true
}

// MemoryGroupBy reports whether shards must return every group row.
func (sc *SelectContext) MemoryGroupBy() bool {
	return sc.IsGroupBy() && !sc.StreamGroupBy()
}

// Reference finds the projection or derived column a HAVING reference
// names: an alias first, then an equal expression.
func (sc *SelectContext) Reference(ref string) (ColumnRef, bool) {
	projs := sc.Stmt.Projections
	ref = strings.TrimSpace(ref)
	for i, p := range projs {
		if p.Alias != "" && strings.EqualFold(p.Alias, ref) {
			return ColumnRef{Label: p.Label(), Projection: i, Derived: -1}, true
		}
	}
	expr := NormalizeExpression(ref)
	for i, p := range projs {
		if NormalizeExpression(p.Expression) == expr {
			return ColumnRef{Label: p.Label(), Projection: i, Derived: -1}, true
		}
	}
	for i, d := range sc.Derived {
		if NormalizeExpression(d.Expression) == expr {
			return ColumnRef{Label: d.Alias, Projection: -1, Derived: i}, true
		}
	}
	for i, p := range projs {
		if !p.Star() && unqualified(NormalizeExpression(p.Expression)) == unqualified(expr) {
			return ColumnRef{Label: p.Label(), Projection: i, Derived: -1}, true
		}
	}
	return ColumnRef{}, false
}
