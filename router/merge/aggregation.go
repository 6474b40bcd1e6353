package merge

import (
	"github.com/cockroachdb/apd/v3"
	"github.com/pg-sharding/spqrkernel/pkg/engine"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
)

// aggregator folds partial aggregates of one group coming from several
// shards. Positions are 0-based row indexes.
type aggregator interface {
	merge(row []any) error
	// result writes the folded value into row
	result(row []any) error
}

func newAggregator(agg stmtctx.AggregationType, col, count, sum int) aggregator {
	switch agg {
	case stmtctx.AggCount:
		return &countAggregator{col: col}
	case stmtctx.AggSum:
		return &sumAggregator{col: col}
	case stmtctx.AggMax:
		return &extremeAggregator{col: col, sign: 1}
	case stmtctx.AggMin:
		return &extremeAggregator{col: col, sign: -1}
	default:
		return &avgAggregator{col: col, count: count, sum: sum}
	}
}

type countAggregator struct {
	col int
	n   int64
}

func (a *countAggregator) merge(row []any) error {
	v := row[a.col]
	if v == nil {
		return nil
	}
	n, err := engine.ToInt64(v)
	if err != nil {
		return err
	}
	a.n += n
	return nil
}

func (a *countAggregator) result(row []any) error {
	row[a.col] = a.n
	return nil
}

// decimalSum adds values exactly, it stays integral while every input is.
type decimalSum struct {
	sum      apd.Decimal
	seen     bool
	integral bool
}

func (s *decimalSum) add(v any) error {
	d, err := engine.ToDecimal(v)
	if err != nil {
		return err
	}
	if !s.seen {
		s.integral = true
	}
	s.seen = true
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
	default:
		s.integral = false
	}
	if _, err := engine.DecimalContext.Add(&s.sum, &s.sum, d); err != nil {
		return spqrerror.Newf(spqrerror.SPQR_MERGE_ERROR, "sum overflow: %v", err)
	}
	return nil
}

func (s *decimalSum) value() any {
	if !s.seen {
		return nil
	}
	if s.integral {
		if n, err := s.sum.Int64(); err == nil {
			return n
		}
	}
	return new(apd.Decimal).Set(&s.sum)
}

type sumAggregator struct {
	col int
	s   decimalSum
}

func (a *sumAggregator) merge(row []any) error {
	if row[a.col] == nil {
		return nil
	}
	return a.s.add(row[a.col])
}

func (a *sumAggregator) result(row []any) error {
	row[a.col] = a.s.value()
	return nil
}

type extremeAggregator struct {
	col  int
	sign int
	v    any
}

func (a *extremeAggregator) merge(row []any) error {
	v := row[a.col]
	if v == nil {
		return nil
	}
	if a.v == nil {
		a.v = v
		return nil
	}
	c, err := engine.Compare(v, a.v)
	if err != nil {
		return err
	}
	if c*a.sign > 0 {
		a.v = v
	}
	return nil
}

func (a *extremeAggregator) result(row []any) error {
	row[a.col] = a.v
	return nil
}

// avgAggregator recomputes AVG from the derived COUNT and SUM columns,
// division happens once the group is complete.
type avgAggregator struct {
	col, count, sum int
	n               int64
	s               decimalSum
}

func (a *avgAggregator) merge(row []any) error {
	if v := row[a.count]; v != nil {
		n, err := engine.ToInt64(v)
		if err != nil {
			return err
		}
		a.n += n
	}
	if v := row[a.sum]; v != nil {
		return a.s.add(v)
	}
	return nil
}

func (a *avgAggregator) result(row []any) error {
	if a.n == 0 || !a.s.seen {
		row[a.col] = nil
		return nil
	}
	res := new(apd.Decimal)
	if _, err := engine.DecimalContext.Quo(res, &a.s.sum, apd.New(a.n, 0)); err != nil {
		return spqrerror.Newf(spqrerror.SPQR_MERGE_ERROR, "avg: %v", err)
	}
	row[a.col] = res
	return nil
}

type aggregatorFactory struct {
	cols  []stmtctx.AggregationColumn
	index [][3]int
}

func newAggregatorFactory(cs *columnSet) (*aggregatorFactory, error) {
	f := &aggregatorFactory{cols: cs.sc.Aggregations}
	for _, c := range f.cols {
		col, err := cs.index(c.Column)
		if err != nil {
			return nil, err
		}
		idx := [3]int{col - 1, -1, -1}
		if c.Type == stmtctx.AggAvg {
			count, err := cs.index(c.Count)
			if err != nil {
				return nil, err
			}
			sum, err := cs.index(c.Sum)
			if err != nil {
				return nil, err
			}
			idx[1], idx[2] = count-1, sum-1
		}
		f.index = append(f.index, idx)
	}
	return f, nil
}

func (f *aggregatorFactory) create() []aggregator {
	res := make([]aggregator, len(f.cols))
	for i, c := range f.cols {
		res[i] = newAggregator(c.Type, f.index[i][0], f.index[i][1], f.index[i][2])
	}
	return res
}

func mergeRow(aggs []aggregator, row []any) error {
	for _, a := range aggs {
		if err := a.merge(row); err != nil {
			return err
		}
	}
	return nil
}

func finishRow(aggs []aggregator, row []any) error {
	for _, a := range aggs {
		if err := a.result(row); err != nil {
			return err
		}
	}
	return nil
}
