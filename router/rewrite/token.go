package rewrite

import (
	"strings"

	"github.com/pg-sharding/spqrkernel/router/route"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
)

// Token replaces the [StartIndex, StopIndex) range of the original SQL
// with text computed for a routing unit. Empty ranges insert text.
type Token interface {
	StartIndex() int
	StopIndex() int
	Text(u *route.Unit) string
}

// ParamsRewriter is implemented by tokens that also change the parameter
// list sent along with the rewritten SQL.
type ParamsRewriter interface {
	RewriteParams(u *route.Unit, params []any) []any
}

type span stmtctx.Span

func (s span) StartIndex() int {
	return s.Start
}

func (s span) StopIndex() int {
	return s.Stop
}

type TableToken struct {
	span
	Logical  string
	Original string
	Quoted   bool
	Dialect  stmtctx.Dialect
}

func (t *TableToken) Text(u *route.Unit) string {
	actual, ok := u.ActualTable(t.Logical)
	if !ok {
		return t.Original
	}
	if t.Quoted {
		return quoteIdentifier(t.Dialect, actual)
	}
	return actual
}

// TextToken renders the same text for every unit.
type TextToken struct {
	span
	Value string
}

func NewTextToken(start, stop int, text string) *TextToken {
	return &TextToken{span: span{Start: start, Stop: stop}, Value: text}
}

func (t *TextToken) Text(*route.Unit) string {
	return t.Value
}

// ParamToken keeps its SQL text and overrides one parameter value.
type ParamToken struct {
	span
	Original string
	Index    int
	Value    any
}

func (t *ParamToken) Text(*route.Unit) string {
	return t.Original
}

func (t *ParamToken) RewriteParams(_ *route.Unit, params []any) []any {
	if t.Index < len(params) {
		params[t.Index] = t.Value
	}
	return params
}

/*
* InsertValuesToken regenerates the VALUES tuples of an INSERT for every
* unit: only rows routed to the unit are kept and the generated key
* literal is appended to each of them.
 */
type InsertValuesToken struct {
	span
	SQL     string
	Rows    []stmtctx.InsertRow
	Key     *stmtctx.GeneratedKey
	Dialect stmtctx.Dialect
	// all rows go to every unit when the statement is not distributed
	KeepAll bool
}

func (t *InsertValuesToken) keep(u *route.Unit, row int) bool {
	return t.KeepAll || u.HasGroup(row)
}

func (t *InsertValuesToken) Text(u *route.Unit) string {
	var sb strings.Builder
	first := true
	for i, r := range t.Rows {
		if !t.keep(u, i) {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false

		text := t.SQL[r.Span.Start:r.Span.Stop]
		if t.Key == nil {
			sb.WriteString(text)
			continue
		}
		/* tuple text ends with ")" */
		sb.WriteString(text[:len(text)-1])
		sb.WriteString(", ")
		var v any
		if i < len(t.Key.Values) {
			v = t.Key.Values[i]
		}
		sb.WriteString(formatLiteral(t.Dialect, v))
		sb.WriteString(")")
	}
	return sb.String()
}

// RewriteParams drops parameters of rows sent elsewhere. Numbered markers
// keep the full list so that marker positions stay valid.
func (t *InsertValuesToken) RewriteParams(u *route.Unit, params []any) []any {
	if t.KeepAll || t.Dialect.NumberedMarkers() {
		return params
	}
	drop := map[int]struct{}{}
	for i, r := range t.Rows {
		if t.keep(u, i) {
			continue
		}
		for _, v := range r.Values {
			if v.IsParam {
				drop[v.Param] = struct{}{}
			}
		}
	}
	if len(drop) == 0 {
		return params
	}
	res := make([]any, 0, len(params)-len(drop))
	for i, p := range params {
		if _, ok := drop[i]; !ok {
			res = append(res, p)
		}
	}
	return res
}
