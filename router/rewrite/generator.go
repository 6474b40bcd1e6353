package rewrite

import (
	"math"
	"strconv"
	"strings"

	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
)

// TokenGenerator inspects the statement and contributes tokens, possibly
// none.
type TokenGenerator interface {
	Name() string
	Generate(rc *Context) ([]Token, error)
}

type TableTokenGenerator struct{}

func (TableTokenGenerator) Name() string { return "table" }

func (TableTokenGenerator) Generate(rc *Context) ([]Token, error) {
	var res []Token
	for _, t := range rc.Stmt.Tables {
		if t.Span.Empty() {
			continue
		}
		res = append(res, &TableToken{
			span:     span(t.Span),
			Logical:  t.Name.RelationName,
			Original: rc.Stmt.SQL[t.Span.Start:t.Span.Stop],
			Quoted:   t.Quoted,
			Dialect:  rc.Stmt.Dialect,
		})
	}
	return res, nil
}

/*
* PaginationTokenGenerator widens the row window of every shard so that
* the merged window can be cut out of the merged stream: the offset goes
* to zero and the row count grows to offset + row count. Memory group by
* and HAVING, evaluated after merge, need every group row and drop the
* bound altogether.
 */
type PaginationTokenGenerator struct{}

func (PaginationTokenGenerator) Name() string { return "pagination" }

func (PaginationTokenGenerator) Generate(rc *Context) ([]Token, error) {
	p := rc.Stmt.Pagination
	if p == nil || !rc.Distributed() {
		return nil, nil
	}
	d := rc.Stmt.Dialect
	var res []Token

	if p.Offset != nil {
		res = append(res, boundToken(rc, p.Offset, int64(0), "0"))
	}
	if p.RowCount != nil {
		if rc.Select != nil && (rc.Select.MemoryGroupBy() || rc.Stmt.Having != nil) {
			res = append(res, unboundedToken(rc, p.RowCount))
			return res, nil
		}
		if !d.RowNumberStyle() {
			n, bounded, err := p.ShardRowCount(d, rc.Params)
			if err != nil {
				return nil, err
			}
			if bounded {
				res = append(res, boundToken(rc, p.RowCount, n, strconv.FormatInt(n, 10)))
			}
		}
	}
	return res, nil
}

func boundToken(rc *Context, pv *stmtctx.PaginationValue, v any, text string) Token {
	if pv.Value.IsParam {
		return &ParamToken{
			span:     span(pv.Span),
			Original: rc.Stmt.SQL[pv.Span.Start:pv.Span.Stop],
			Index:    pv.Value.Param,
			Value:    v,
		}
	}
	return &TextToken{span: span(pv.Span), Value: text}
}

func unboundedToken(rc *Context, pv *stmtctx.PaginationValue) Token {
	if rc.Stmt.Dialect == stmtctx.DialectPostgres {
		/* LIMIT ALL and LIMIT NULL both mean no limit */
		return boundToken(rc, pv, nil, "ALL")
	}
	return boundToken(rc, pv, int64(math.MaxInt64), strconv.FormatInt(math.MaxInt64, 10))
}

// ProjectionTokenGenerator appends derived columns after the select list.
type ProjectionTokenGenerator struct{}

func (ProjectionTokenGenerator) Name() string { return "projection" }

func (ProjectionTokenGenerator) Generate(rc *Context) ([]Token, error) {
	if rc.Select == nil || len(rc.Select.Derived) == 0 || !rc.Distributed() {
		return nil, nil
	}
	var sb strings.Builder
	for _, d := range rc.Select.Derived {
		sb.WriteString(", ")
		sb.WriteString(d.Expression)
		sb.WriteString(" AS ")
		sb.WriteString(d.Alias)
	}
	pos := rc.Stmt.ProjectionsSpan.Stop
	return []Token{&TextToken{span: span{Start: pos, Stop: pos}, Value: sb.String()}}, nil
}

// OrderByTokenGenerator orders shard rows by the group key when the
// statement groups without ordering.
type OrderByTokenGenerator struct{}

func (OrderByTokenGenerator) Name() string { return "order by" }

func (OrderByTokenGenerator) Generate(rc *Context) ([]Token, error) {
	if rc.Select == nil || !rc.Select.DerivedOrderBy || !rc.Distributed() {
		return nil, nil
	}
	items := make([]string, 0, len(rc.Select.OrderBy))
	for _, it := range rc.Select.OrderBy {
		items = append(items, it.Expression)
	}
	pos := rc.Stmt.OrderByInsertPos
	return []Token{&TextToken{span: span{Start: pos, Stop: pos}, Value: " ORDER BY " + strings.Join(items, ", ")}}, nil
}

// HavingTokenGenerator removes HAVING from shard statements, groups are
// filtered after merge.
type HavingTokenGenerator struct{}

func (HavingTokenGenerator) Name() string { return "having" }

func (HavingTokenGenerator) Generate(rc *Context) ([]Token, error) {
	h := rc.Stmt.Having
	if h == nil || h.Span.Empty() || !rc.Distributed() {
		return nil, nil
	}
	start := h.Span.Start
	if start > 0 && rc.Stmt.SQL[start-1] == ' ' {
		start--
	}
	return []Token{&TextToken{span: span{Start: start, Stop: h.Span.Stop}}}, nil
}

// GeneratedKeyTokenGenerator adds the generated key column to the column
// list of an INSERT.
type GeneratedKeyTokenGenerator struct{}

func (GeneratedKeyTokenGenerator) Name() string { return "generated key" }

func (GeneratedKeyTokenGenerator) Generate(rc *Context) ([]Token, error) {
	ins := rc.Stmt.Insert
	if ins == nil || rc.GeneratedKey == nil {
		return nil, nil
	}
	if len(ins.Columns) == 0 {
		return nil, spqrerror.Newf(spqrerror.SPQR_NOT_IMPLEMENTED,
			"insert into %s without column list cannot receive generated column %s", ins.Table, rc.GeneratedKey.Column)
	}
	if len(rc.GeneratedKey.Values) != len(ins.Rows) {
		return nil, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED,
			"%d generated keys for %d insert rows", len(rc.GeneratedKey.Values), len(ins.Rows))
	}
	pos := ins.ColumnsEnd
	return []Token{&TextToken{span: span{Start: pos, Stop: pos}, Value: ", " + rc.GeneratedKey.Column}}, nil
}

// InsertValuesTokenGenerator regenerates VALUES tuples when rows are
// split between units or receive a generated key.
type InsertValuesTokenGenerator struct{}

func (InsertValuesTokenGenerator) Name() string { return "insert values" }

func (InsertValuesTokenGenerator) Generate(rc *Context) ([]Token, error) {
	ins := rc.Stmt.Insert
	if ins == nil || len(ins.Rows) == 0 || ins.ValuesSpan.Empty() {
		return nil, nil
	}
	split := rc.Distributed() && len(ins.Rows) > 1
	if !split && rc.GeneratedKey == nil {
		return nil, nil
	}
	return []Token{&InsertValuesToken{
		span:    span(ins.ValuesSpan),
		SQL:     rc.Stmt.SQL,
		Rows:    ins.Rows,
		Key:     rc.GeneratedKey,
		Dialect: rc.Stmt.Dialect,
		KeepAll: !rc.Distributed(),
	}}, nil
}

func DefaultGenerators() []TokenGenerator {
	return []TokenGenerator{
		TableTokenGenerator{},
		ProjectionTokenGenerator{},
		HavingTokenGenerator{},
		OrderByTokenGenerator{},
		PaginationTokenGenerator{},
		GeneratedKeyTokenGenerator{},
		InsertValuesTokenGenerator{},
	}
}
