package merge

import (
	"github.com/pg-sharding/spqrkernel/pkg/engine"
	"github.com/pg-sharding/spqrkernel/pkg/spqrlog"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
)

type Strategy int

const (
	StrategyIterator = Strategy(iota)
	StrategyStreamOrder
	StrategyStreamGroup
	StrategyMemoryGroup
)

func (s Strategy) String() string {
	switch s {
	case StrategyStreamOrder:
		return "stream order by"
	case StrategyStreamGroup:
		return "stream group by"
	case StrategyMemoryGroup:
		return "memory group by"
	}
	return "iterator"
}

// SelectStrategy picks how shard results of a SELECT are combined.
func SelectStrategy(sc *stmtctx.SelectContext) Strategy {
	switch {
	case sc == nil:
		return StrategyIterator
	case sc.IsGroupBy() || sc.Stmt.Having != nil:
		if sc.StreamGroupBy() {
			return StrategyStreamGroup
		}
		return StrategyMemoryGroup
	case len(sc.OrderBy) > 0:
		return StrategyStreamOrder
	}
	return StrategyIterator
}

/*
* Merge combines shard results, given in routing unit order, into one
* result equivalent to single node execution. A single result is
* returned as is, its statement was not rewritten.
 */
func Merge(b *stmtctx.Bound, sc *stmtctx.SelectContext, results []QueryResult) (QueryResult, error) {
	switch len(results) {
	case 0:
		return emptyResult{}, nil
	case 1:
		return NewIteratorMerge(results), nil
	}
	if sc == nil {
		return NewIteratorMerge(results), nil
	}

	cs, err := newColumnSet(sc, results[0])
	if err != nil {
		return nil, err
	}

	strategy := SelectStrategy(sc)
	spqrlog.Zero.Debug().
		Str("strategy", strategy.String()).
		Int("results", len(results)).
		Int("derived columns", cs.derived).
		Msg("merge shard results")

	var res QueryResult
	switch strategy {
	case StrategyStreamGroup:
		var src QueryResult = NewIteratorMerge(results)
		if len(sc.OrderBy) > 0 {
			if src, err = newOrderMerge(results, cs, sc.OrderBy); err != nil {
				return nil, err
			}
		}
		if res, err = NewStreamGroupMerge(src, cs); err != nil {
			return nil, err
		}
	case StrategyMemoryGroup:
		if res, err = NewMemoryGroupMerge(results, cs); err != nil {
			return nil, err
		}
	case StrategyStreamOrder:
		if res, err = newOrderMerge(results, cs, sc.OrderBy); err != nil {
			return nil, err
		}
	default:
		res = NewIteratorMerge(results)
	}

	if cs.derived > 0 {
		res = &hideDerived{QueryResult: res, visible: cs.visible()}
	}
	return decorate(res, b.Stmt.Dialect, b.Stmt.Pagination, b.Params)
}

func newOrderMerge(results []QueryResult, cs *columnSet, items []stmtctx.SortItem) (*StreamOrderMerge, error) {
	idxs, err := cs.sortKeys(items)
	if err != nil {
		return nil, err
	}
	columns := make([]int, len(idxs))
	keys := make([]engine.SortKey, len(idxs))
	for i, idx := range idxs {
		columns[i] = idx + 1
		keys[i] = sortKey(i, items[i].Desc, items[i].NullsFirst)
	}
	return NewStreamOrderMerge(results, columns, keys)
}
