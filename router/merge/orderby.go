package merge

import (
	"container/heap"

	"github.com/pg-sharding/spqrkernel/pkg/engine"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

type orderEntry struct {
	result QueryResult
	unit   int
	keys   []any
}

type orderHeap struct {
	entries []*orderEntry
	keys    []engine.SortKey
	err     error
}

func (h *orderHeap) Len() int { return len(h.entries) }

func (h *orderHeap) Less(i, j int) bool {
	c, err := engine.CompareRows(h.entries[i].keys, h.entries[j].keys, h.keys)
	if err != nil {
		if h.err == nil {
			h.err = err
		}
		return false
	}
	if c == 0 {
		return h.entries[i].unit < h.entries[j].unit
	}
	return c < 0
}

func (h *orderHeap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *orderHeap) Push(x any) { h.entries = append(h.entries, x.(*orderEntry)) }

func (h *orderHeap) Pop() any {
	n := len(h.entries)
	e := h.entries[n-1]
	h.entries = h.entries[:n-1]
	return e
}

/*
* StreamOrderMerge is an N-way merge of shard results that are each sorted
* by the statement ORDER BY. Only the current row of every shard is held,
* together with its cached sort values. Shard order is trusted, a shard
* that returns unsorted rows makes the merged order unsorted too.
 */
type StreamOrderMerge struct {
	h       *orderHeap
	columns []int
	labels  QueryResult
	started bool
	current *orderEntry
}

// NewStreamOrderMerge positions every shard result on its first row.
// columns are 1-based sort column positions, matched with items.
func NewStreamOrderMerge(results []QueryResult, columns []int, items []engine.SortKey) (*StreamOrderMerge, error) {
	keys := make([]engine.SortKey, len(items))
	for i, it := range items {
		keys[i] = engine.SortKey{Index: i, Order: it.Order, NullsFirst: it.NullsFirst}
	}
	m := &StreamOrderMerge{
		h:       &orderHeap{keys: keys},
		columns: columns,
		labels:  results[0],
	}
	for i, r := range results {
		ok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		e := &orderEntry{result: r, unit: i}
		if err := m.load(e); err != nil {
			return nil, err
		}
		m.h.entries = append(m.h.entries, e)
	}
	heap.Init(m.h)
	if m.h.err != nil {
		return nil, m.h.err
	}
	return m, nil
}

func (m *StreamOrderMerge) load(e *orderEntry) error {
	if e.keys == nil {
		e.keys = make([]any, len(m.columns))
	}
	for i, c := range m.columns {
		v, err := e.result.Value(c)
		if err != nil {
			return err
		}
		e.keys[i] = v
	}
	return nil
}

func (m *StreamOrderMerge) Next() (bool, error) {
	if m.started && len(m.h.entries) > 0 {
		top := m.h.entries[0]
		ok, err := top.result.Next()
		if err != nil {
			return false, err
		}
		if ok {
			if err := m.load(top); err != nil {
				return false, err
			}
			heap.Fix(m.h, 0)
		} else {
			heap.Pop(m.h)
		}
		if m.h.err != nil {
			return false, m.h.err
		}
	}
	m.started = true
	if len(m.h.entries) == 0 {
		m.current = nil
		return false, nil
	}
	m.current = m.h.entries[0]
	return true, nil
}

func (m *StreamOrderMerge) Value(columnIndex int) (any, error) {
	if m.current == nil {
		return nil, spqrerror.New(spqrerror.SPQR_MERGE_ERROR, "cursor is not positioned on a row")
	}
	return m.current.result.Value(columnIndex)
}

func (m *StreamOrderMerge) ColumnCount() int {
	return m.labels.ColumnCount()
}

func (m *StreamOrderMerge) ColumnLabel(columnIndex int) (string, error) {
	return m.labels.ColumnLabel(columnIndex)
}

func (m *StreamOrderMerge) WasNull() bool {
	if m.current == nil {
		return false
	}
	return m.current.result.WasNull()
}
