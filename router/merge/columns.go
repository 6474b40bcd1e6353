package merge

import (
	"strings"

	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
)

// columnSet maps column references of the statement onto shard result
// positions. Labels come from the first shard result.
type columnSet struct {
	sc      *stmtctx.SelectContext
	count   int
	derived int
	labels  map[string]int
}

func newColumnSet(sc *stmtctx.SelectContext, first QueryResult) (*columnSet, error) {
	cs := &columnSet{
		sc:      sc,
		count:   first.ColumnCount(),
		derived: len(sc.Derived),
		labels:  map[string]int{},
	}
	if cs.derived > cs.count {
		return nil, spqrerror.Newf(spqrerror.SPQR_MERGE_ERROR,
			"shard result has %d columns, %d derived columns expected", cs.count, cs.derived)
	}
	for i := 1; i <= cs.count; i++ {
		l, err := first.ColumnLabel(i)
		if err != nil {
			return nil, err
		}
		l = strings.ToLower(l)
		if _, ok := cs.labels[l]; !ok {
			cs.labels[l] = i
		}
	}
	return cs, nil
}

// visible is the number of columns the merged result exposes.
func (cs *columnSet) visible() int {
	return cs.count - cs.derived
}

func (cs *columnSet) label(l string) (int, bool) {
	l = strings.ToLower(strings.TrimSpace(l))
	if idx, ok := cs.labels[l]; ok {
		return idx, true
	}
	if dot := strings.LastIndexByte(l, '.'); dot >= 0 {
		idx, ok := cs.labels[l[dot+1:]]
		return idx, ok
	}
	return 0, false
}

// index resolves a column reference to its 1-based position.
func (cs *columnSet) index(ref stmtctx.ColumnRef) (int, error) {
	switch {
	case ref.Derived >= 0:
		return cs.visible() + ref.Derived + 1, nil
	case ref.Projection >= 0 && !cs.sc.HasStar:
		return ref.Projection + 1, nil
	}
	if idx, ok := cs.label(ref.Label); ok {
		return idx, nil
	}
	return 0, spqrerror.Newf(spqrerror.SPQR_MERGE_ERROR, "column %q is not present in shard results", ref.Label)
}

// sortKeys resolves sort items to 0-based row positions.
func (cs *columnSet) sortKeys(items []stmtctx.SortItem) ([]int, error) {
	res := make([]int, 0, len(items))
	for _, it := range items {
		idx, err := cs.index(it.Column)
		if err != nil {
			return nil, err
		}
		res = append(res, idx-1)
	}
	return res, nil
}

// hideDerived cuts derived columns off the merged result.
type hideDerived struct {
	QueryResult
	visible int
}

func (h *hideDerived) ColumnCount() int {
	return h.visible
}

func (h *hideDerived) Value(columnIndex int) (any, error) {
	if columnIndex < 1 || columnIndex > h.visible {
		return nil, columnOutOfRange(columnIndex, h.visible)
	}
	return h.QueryResult.Value(columnIndex)
}

func (h *hideDerived) ColumnLabel(columnIndex int) (string, error) {
	if columnIndex < 1 || columnIndex > h.visible {
		return "", columnOutOfRange(columnIndex, h.visible)
	}
	return h.QueryResult.ColumnLabel(columnIndex)
}
