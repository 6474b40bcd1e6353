package stmtctx

import (
	"math"

	"github.com/pg-sharding/spqrkernel/pkg/engine"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

type PaginationValue struct {
	Value ValueExpr
	// Span covers the literal or the parameter marker
	Span Span
	// Inclusive marks closed row number bounds: ROWNUM >= o, ROWNUM <= e, TOP(e)
	Inclusive bool
}

/*
* Pagination describes the row window requested by the statement. For
* LIMIT dialects Offset is the number of skipped rows and RowCount the
* window size. For row number dialects Offset is the lower row number
* bound and RowCount is the upper (end) bound.
 */
type Pagination struct {
	Offset   *PaginationValue
	RowCount *PaginationValue
}

func (d Dialect) RowNumberStyle() bool {
	return d == DialectOracle || d == DialectSQLServer
}

func (pv *PaginationValue) resolve(params []any) (int64, bool, error) {
	if pv == nil {
		return 0, false, nil
	}
	v, err := pv.Value.Resolve(params)
	if err != nil {
		return 0, false, err
	}
	if v == nil {
		return 0, false, nil
	}
	if u, ok := v.(uint64); ok && u > math.MaxInt64 {
		return math.MaxInt64, true, nil
	}
	n, err := engine.ToInt64(v)
	if err != nil {
		return 0, false, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, "pagination bound is not an integer: %v", v)
	}
	return n, true, nil
}

// ActualOffset is the number of merged rows to skip.
func (p *Pagination) ActualOffset(d Dialect, params []any) (int64, error) {
	if p == nil {
		return 0, nil
	}
	o, ok, err := p.Offset.resolve(params)
	if err != nil || !ok {
		return 0, err
	}
	if d.RowNumberStyle() && p.Offset.Inclusive {
		o--
	}
	if o < 0 {
		return 0, nil
	}
	return o, nil
}

// ActualRowCount is the number of merged rows to return after skipping,
// bounded is false when the window is open-ended.
func (p *Pagination) ActualRowCount(d Dialect, params []any) (int64, bool, error) {
	if p == nil {
		return 0, false, nil
	}
	n, ok, err := p.RowCount.resolve(params)
	if err != nil || !ok {
		return 0, false, err
	}
	if !d.RowNumberStyle() {
		if n < 0 {
			return 0, false, nil
		}
		return n, true, nil
	}
	end := n
	if !p.RowCount.Inclusive {
		end--
	}
	offset, err := p.ActualOffset(d, params)
	if err != nil {
		return 0, false, err
	}
	if end-offset < 0 {
		return 0, true, nil
	}
	return end - offset, true, nil
}

// ShardRowCount is the row count bound every shard must return so that
// the merged window can be computed: offset + rowCount for LIMIT dialects,
// the unchanged end bound for row number dialects.
func (p *Pagination) ShardRowCount(d Dialect, params []any) (int64, bool, error) {
	if p == nil {
		return 0, false, nil
	}
	n, ok, err := p.RowCount.resolve(params)
	if err != nil || !ok {
		return 0, false, err
	}
	if d.RowNumberStyle() {
		return n, true, nil
	}
	if n < 0 {
		return 0, false, nil
	}
	o, _, err := p.Offset.resolve(params)
	if err != nil {
		return 0, false, err
	}
	if o < 0 {
		o = 0
	}
	/* LIMIT o, <huge> reads all remaining rows */
	if n > math.MaxInt64-o {
		return math.MaxInt64, true, nil
	}
	return o + n, true, nil
}
