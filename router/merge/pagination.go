package merge

import (
	"github.com/pg-sharding/spqrkernel/pkg/spqrlog"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
)

// paginator skips offset rows of the merged stream and caps the rest.
type paginator struct {
	QueryResult

	offset   int64
	rowCount int64
	bounded  bool

	skipped   bool
	exhausted bool
	returned  int64
}

func (p *paginator) Next() (bool, error) {
	if p.exhausted {
		return false, nil
	}
	if !p.skipped {
		p.skipped = true
		for i := int64(0); i < p.offset; i++ {
			ok, err := p.QueryResult.Next()
			if err != nil {
				return false, err
			}
			if !ok {
				spqrlog.Zero.Debug().
					Int64("offset", p.offset).
					Int64("skipped", i).
					Msg("offset exhausts merged result")
				p.exhausted = true
				return false, nil
			}
		}
	}
	if p.bounded && p.returned >= p.rowCount {
		p.exhausted = true
		return false, nil
	}
	ok, err := p.QueryResult.Next()
	if err != nil {
		return false, err
	}
	if !ok {
		p.exhausted = true
		return false, nil
	}
	p.returned++
	return true, nil
}

// LimitDecorator applies LIMIT/OFFSET to the merged result.
type LimitDecorator struct {
	paginator
}

// RowNumberDecorator applies ROWNUM bounds to the merged result.
type RowNumberDecorator struct {
	paginator
}

// TopDecorator applies TOP(e) with a ROW_NUMBER lower bound.
type TopDecorator struct {
	paginator
}

func newPaginator(src QueryResult, d stmtctx.Dialect, p *stmtctx.Pagination, params []any) (paginator, error) {
	offset, err := p.ActualOffset(d, params)
	if err != nil {
		return paginator{}, err
	}
	rowCount, bounded, err := p.ActualRowCount(d, params)
	if err != nil {
		return paginator{}, err
	}
	return paginator{QueryResult: src, offset: offset, rowCount: rowCount, bounded: bounded}, nil
}

func NewLimitDecorator(src QueryResult, d stmtctx.Dialect, p *stmtctx.Pagination, params []any) (*LimitDecorator, error) {
	pg, err := newPaginator(src, d, p, params)
	if err != nil {
		return nil, err
	}
	return &LimitDecorator{paginator: pg}, nil
}

func NewRowNumberDecorator(src QueryResult, p *stmtctx.Pagination, params []any) (*RowNumberDecorator, error) {
	pg, err := newPaginator(src, stmtctx.DialectOracle, p, params)
	if err != nil {
		return nil, err
	}
	return &RowNumberDecorator{paginator: pg}, nil
}

func NewTopDecorator(src QueryResult, p *stmtctx.Pagination, params []any) (*TopDecorator, error) {
	pg, err := newPaginator(src, stmtctx.DialectSQLServer, p, params)
	if err != nil {
		return nil, err
	}
	return &TopDecorator{paginator: pg}, nil
}

// decorate picks the pagination decorator of the dialect.
func decorate(src QueryResult, d stmtctx.Dialect, p *stmtctx.Pagination, params []any) (QueryResult, error) {
	if p == nil || (p.Offset == nil && p.RowCount == nil) {
		return src, nil
	}
	var res QueryResult
	var err error
	switch d {
	case stmtctx.DialectOracle:
		res, err = NewRowNumberDecorator(src, p, params)
	case stmtctx.DialectSQLServer:
		res, err = NewTopDecorator(src, p, params)
	default:
		res, err = NewLimitDecorator(src, d, p, params)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
