package merge

import (
	"github.com/pg-sharding/spqrkernel/pkg/engine"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/router/merge/having"
)

type havingFilter struct {
	expr having.Expr
	cs   *columnSet
}

func newHavingFilter(cs *columnSet) (*havingFilter, error) {
	h := cs.sc.Stmt.Having
	if h == nil {
		return nil, nil
	}
	expr, err := having.Parse(h.Text)
	if err != nil {
		return nil, err
	}
	return &havingFilter{expr: expr, cs: cs}, nil
}

type rowEnv struct {
	cs  *columnSet
	row []any
}

func (e rowEnv) Lookup(ref string) (any, error) {
	col, ok := e.cs.sc.Reference(ref)
	if !ok {
		return nil, spqrerror.Newf(spqrerror.SPQR_HAVING_EVAL,
			"having: %s is neither a select list item nor its alias", ref)
	}
	idx, err := e.cs.index(col)
	if err != nil {
		return nil, spqrerror.Newf(spqrerror.SPQR_HAVING_EVAL, "having: %v", err)
	}
	return e.row[idx-1], nil
}

// accept is true for a nil filter.
func (f *havingFilter) accept(row []any) (bool, error) {
	if f == nil {
		return true, nil
	}
	return having.Filter(f.expr, rowEnv{cs: f.cs, row: row})
}

/*
* StreamGroupMerge folds consecutive rows with equal group keys of a
* stream ordered by those keys. One pending row, the first row of the
* next group, is kept.
 */
type StreamGroupMerge struct {
	rowResult

	src     QueryResult
	columns int
	group   []int
	aggs    *aggregatorFactory
	having  *havingFilter

	pending []any
	started bool
}

func NewStreamGroupMerge(src QueryResult, cs *columnSet) (*StreamGroupMerge, error) {
	group, err := cs.sortKeys(cs.sc.GroupBy)
	if err != nil {
		return nil, err
	}
	aggs, err := newAggregatorFactory(cs)
	if err != nil {
		return nil, err
	}
	hf, err := newHavingFilter(cs)
	if err != nil {
		return nil, err
	}
	return &StreamGroupMerge{
		rowResult: rowResult{labels: src},
		src:       src,
		columns:   cs.count,
		group:     group,
		aggs:      aggs,
		having:    hf,
	}, nil
}

func (m *StreamGroupMerge) advance() error {
	ok, err := m.src.Next()
	if err != nil {
		return err
	}
	if !ok {
		m.pending = nil
		return nil
	}
	m.pending, err = readRow(m.src, m.columns)
	return err
}

func (m *StreamGroupMerge) Next() (bool, error) {
	if !m.started {
		m.started = true
		if err := m.advance(); err != nil {
			return false, err
		}
	}
	for m.pending != nil {
		row := m.pending
		key, err := engine.GroupKey(row, m.group)
		if err != nil {
			return false, err
		}
		aggs := m.aggs.create()
		if err := mergeRow(aggs, row); err != nil {
			return false, err
		}
		for {
			if err := m.advance(); err != nil {
				return false, err
			}
			if m.pending == nil {
				break
			}
			next, err := engine.GroupKey(m.pending, m.group)
			if err != nil {
				return false, err
			}
			if next != key {
				break
			}
			if err := mergeRow(aggs, m.pending); err != nil {
				return false, err
			}
		}
		if err := finishRow(aggs, row); err != nil {
			return false, err
		}
		ok, err := m.having.accept(row)
		if err != nil {
			return false, err
		}
		if ok {
			m.row = row
			return true, nil
		}
	}
	m.row = nil
	return false, nil
}
