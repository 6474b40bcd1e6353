package merge

import (
	"github.com/pg-sharding/spqrkernel/pkg/engine"
	"github.com/pg-sharding/spqrkernel/pkg/tupleslot"
)

type memoryGroup struct {
	row  []any
	aggs []aggregator
}

/*
* MemoryGroupMerge reads every shard result to the end, folds rows by
* group key and exposes the groups sorted by ORDER BY. Groups with equal
* sort keys keep the order in which they were first seen.
 */
type MemoryGroupMerge struct {
	*SlotResult
}

func NewMemoryGroupMerge(results []QueryResult, cs *columnSet) (*MemoryGroupMerge, error) {
	group, err := cs.sortKeys(cs.sc.GroupBy)
	if err != nil {
		return nil, err
	}
	order, err := cs.sortKeys(cs.sc.OrderBy)
	if err != nil {
		return nil, err
	}
	factory, err := newAggregatorFactory(cs)
	if err != nil {
		return nil, err
	}
	hf, err := newHavingFilter(cs)
	if err != nil {
		return nil, err
	}

	groups := map[string]*memoryGroup{}
	var seen []*memoryGroup
	for _, r := range results {
		for {
			ok, err := r.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			row, err := readRow(r, cs.count)
			if err != nil {
				return nil, err
			}
			key, err := engine.GroupKey(row, group)
			if err != nil {
				return nil, err
			}
			g, ok := groups[key]
			if !ok {
				g = &memoryGroup{row: row, aggs: factory.create()}
				groups[key] = g
				seen = append(seen, g)
			}
			if err := mergeRow(g.aggs, row); err != nil {
				return nil, err
			}
		}
	}

	labels := make([]string, cs.count)
	for i := range labels {
		if labels[i], err = results[0].ColumnLabel(i + 1); err != nil {
			return nil, err
		}
	}
	slot := tupleslot.New(labels)
	for _, g := range seen {
		if err := finishRow(g.aggs, g.row); err != nil {
			return nil, err
		}
		ok, err := hf.accept(g.row)
		if err != nil {
			return nil, err
		}
		if ok {
			slot.WriteDataRow(g.row...)
		}
	}

	keys := make([]engine.SortKey, len(order))
	for i, it := range cs.sc.OrderBy {
		keys[i] = sortKey(order[i], it.Desc, it.NullsFirst)
	}
	sorted, err := engine.ProcessOrderBy(slot.Rows(), keys)
	if err != nil {
		return nil, err
	}
	slot.SetRows(sorted)

	return &MemoryGroupMerge{SlotResult: NewSlotResult(slot)}, nil
}

func sortKey(idx int, desc, nullsFirst bool) engine.SortKey {
	k := engine.SortKey{Index: idx, Order: engine.ASC, NullsFirst: nullsFirst}
	if desc {
		k.Order = engine.DESC
	}
	return k
}
