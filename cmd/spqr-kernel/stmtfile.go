package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/pg-sharding/spqrkernel/router/plan"
	"github.com/pg-sharding/spqrkernel/router/rfqn"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

/*
* A statement file describes one parsed statement: its text, the parts
* the kernel needs and bound parameters. Spans are located in the text
* unless given explicitly as [start, stop].
 */
type StatementFile struct {
	SQL     string `yaml:"sql"`
	Kind    string `yaml:"kind"`
	Dialect string `yaml:"dialect"`

	Tables      []TableCfg       `yaml:"tables"`
	Conditions  [][]ConditionCfg `yaml:"conditions"`
	Projections []ProjectionCfg  `yaml:"projections"`
	GroupBy     []OrderCfg       `yaml:"group_by"`
	OrderBy     []OrderCfg       `yaml:"order_by"`
	Having      string           `yaml:"having"`
	Limit       *LimitCfg        `yaml:"limit"`
	Insert      *InsertCfg       `yaml:"insert"`

	Params []ParamCfg `yaml:"params"`
}

type TableCfg struct {
	Name   string `yaml:"name"`
	Schema string `yaml:"schema"`
	Alias  string `yaml:"alias"`
	Span   []int  `yaml:"span"`
}

type ConditionCfg struct {
	Table  string        `yaml:"table"`
	Column string        `yaml:"column"`
	Op     string        `yaml:"op"`
	Values []interface{} `yaml:"values"`
}

type ProjectionCfg struct {
	Expr  string `yaml:"expr"`
	Alias string `yaml:"alias"`
}

type OrderCfg struct {
	Expr       string `yaml:"expr"`
	Position   int    `yaml:"position"`
	Desc       bool   `yaml:"desc"`
	NullsFirst *bool  `yaml:"nulls_first"`
}

type BoundCfg struct {
	Value     interface{} `yaml:"value"`
	Span      []int       `yaml:"span"`
	Inclusive bool        `yaml:"inclusive"`
}

type LimitCfg struct {
	Offset   *BoundCfg `yaml:"offset"`
	RowCount *BoundCfg `yaml:"row_count"`
}

type InsertCfg struct {
	Table   string          `yaml:"table"`
	Columns []string        `yaml:"columns"`
	Rows    [][]interface{} `yaml:"rows"`
}

// ParamCfg is a bind parameter, typed ones are decoded from their text
// form the way bind messages are.
type ParamCfg struct {
	Type  string      `yaml:"type"`
	Value interface{} `yaml:"value"`
}

func LoadStatementFile(path string) (*StatementFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read statement file %s", path)
	}
	var sf StatementFile
	if err := yaml.UnmarshalStrict(data, &sf); err != nil {
		return nil, errors.Wrapf(err, "decode statement file %s", path)
	}
	return &sf, nil
}

func parseKind(s string) (stmtctx.Kind, error) {
	switch strings.ToLower(s) {
	case "", "select":
		return stmtctx.Select, nil
	case "insert":
		return stmtctx.Insert, nil
	case "update":
		return stmtctx.Update, nil
	case "delete":
		return stmtctx.Delete, nil
	case "other":
		return stmtctx.Other, nil
	}
	return 0, errors.Errorf("unknown statement kind %q", s)
}

// normalize turns yaml scalars into the values sharding algorithms expect.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case int:
		return int64(t)
	case uint64:
		return t
	case float64:
		return t
	}
	return v
}

// value decodes a literal or a "$n" reference to the n-th parameter.
func value(v interface{}) (stmtctx.ValueExpr, error) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "$") {
		return stmtctx.Lit(normalize(v)), nil
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 1 {
		return stmtctx.ValueExpr{}, errors.Errorf("bad parameter reference %q, parameters are numbered from $1", s)
	}
	return stmtctx.Param(n - 1), nil
}

func explicitSpan(s []int) (stmtctx.Span, bool, error) {
	switch len(s) {
	case 0:
		return stmtctx.Span{}, false, nil
	case 2:
		return stmtctx.Span{Start: s[0], Stop: s[1]}, true, nil
	}
	return stmtctx.Span{}, false, errors.Errorf("span must be [start, stop], got %v", s)
}

func (sf *StatementFile) BindParams() ([]any, error) {
	res := make([]any, 0, len(sf.Params))
	for i, p := range sf.Params {
		if p.Type == "" {
			res = append(res, normalize(p.Value))
			continue
		}
		raw, ok := p.Value.(string)
		if !ok {
			return nil, errors.Errorf("typed parameter $%d must be given as text", i+1)
		}
		v, err := plan.ParseResolveParamValue(plan.FormatCodeText, p.Type, []byte(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "parameter $%d", i+1)
		}
		res = append(res, v)
	}
	return res, nil
}

// Statement builds the kernel statement, locating spans in the SQL text.
func (sf *StatementFile) Statement() (*stmtctx.Statement, error) {
	kind, err := parseKind(sf.Kind)
	if err != nil {
		return nil, err
	}
	dialect, err := stmtctx.ParseDialect(sf.Dialect)
	if err != nil {
		return nil, err
	}
	stmt := &stmtctx.Statement{SQL: sf.SQL, Kind: kind, Dialect: dialect}
	loc := newLocator(sf.SQL)

	if err := sf.buildTables(stmt, loc); err != nil {
		return nil, err
	}
	for _, group := range sf.Conditions {
		var and stmtctx.AndGroup
		for _, c := range group {
			cond := stmtctx.Condition{Table: c.Table, Column: c.Column, Op: stmtctx.Operator(strings.ToUpper(c.Op))}
			for _, v := range c.Values {
				ve, err := value(v)
				if err != nil {
					return nil, err
				}
				cond.Values = append(cond.Values, ve)
			}
			and = append(and, cond)
		}
		stmt.Conditions = append(stmt.Conditions, and)
	}

	if kind == stmtctx.Select {
		if err := sf.buildSelect(stmt, loc); err != nil {
			return nil, err
		}
	}
	if sf.Insert != nil {
		if err := sf.buildInsert(stmt, loc); err != nil {
			return nil, err
		}
	}
	return stmt, stmt.Validate()
}

func (sf *StatementFile) buildTables(stmt *stmtctx.Statement, loc *locator) error {
	from := loc.keyword(0, "FROM", "INTO", "UPDATE")
	for _, t := range sf.Tables {
		name, err := rfqn.ParseFQN(t.Name)
		if err != nil {
			return err
		}
		if t.Schema != "" {
			name.SchemaName = t.Schema
		}
		ref := stmtctx.TableRef{Name: name, Alias: t.Alias}
		sp, ok, err := explicitSpan(t.Span)
		if err != nil {
			return errors.Wrapf(err, "table %s", t.Name)
		}
		if !ok {
			if sp, ref.Quoted, ok = loc.identifier(from, name.RelationName); !ok {
				return errors.Errorf("table %s is not found in statement text", name.RelationName)
			}
			from = sp.Stop
		}
		ref.Span = sp
		stmt.Tables = append(stmt.Tables, ref)
	}
	return nil
}

func orderItems(d stmtctx.Dialect, cfg []OrderCfg) []stmtctx.OrderItem {
	res := make([]stmtctx.OrderItem, 0, len(cfg))
	for _, o := range cfg {
		nullsFirst := d.DefaultNullsFirst(o.Desc)
		if o.NullsFirst != nil {
			nullsFirst = *o.NullsFirst
		}
		res = append(res, stmtctx.OrderItem{Expression: o.Expr, Position: o.Position, Desc: o.Desc, NullsFirst: nullsFirst})
	}
	return res
}

func (sf *StatementFile) buildSelect(stmt *stmtctx.Statement, loc *locator) error {
	for _, p := range sf.Projections {
		stmt.Projections = append(stmt.Projections, stmtctx.Projection{Expression: p.Expr, Alias: p.Alias})
	}
	stmt.GroupBy = orderItems(stmt.Dialect, sf.GroupBy)
	stmt.OrderBy = orderItems(stmt.Dialect, sf.OrderBy)

	if sp, ok := loc.projections(); ok {
		stmt.ProjectionsSpan = sp
	} else if len(stmt.Projections) > 0 {
		return errors.New("select list is not found in statement text")
	}

	if sf.Having != "" {
		sp, ok := loc.having(sf.Having)
		if !ok {
			return errors.New("having clause is not found in statement text")
		}
		stmt.Having = &stmtctx.Having{Text: sf.Having, Span: sp}
		stmt.OrderByInsertPos = sp.Stop
	} else if len(stmt.GroupBy) > 0 {
		stmt.OrderByInsertPos = loc.clauseEnd(loc.keyword(0, "GROUP BY"))
	}

	if sf.Limit != nil {
		p, err := sf.pagination(stmt.Dialect, loc)
		if err != nil {
			return err
		}
		stmt.Pagination = p
	}
	return nil
}

func (sf *StatementFile) pagination(d stmtctx.Dialect, loc *locator) (*stmtctx.Pagination, error) {
	var offsetAuto, rowCountAuto stmtctx.Span
	var found bool
	switch d {
	case stmtctx.DialectPostgres:
		rowCountAuto, found = loc.tokenAfter("LIMIT")
		offsetAuto, _ = loc.tokenAfter("OFFSET")
		found = found || !offsetAuto.Empty()
	case stmtctx.DialectMySQL:
		first, ok := loc.tokenAfter("LIMIT")
		found = ok
		if second, ok := loc.tokenAfterComma(first); ok {
			offsetAuto, rowCountAuto = first, second
		} else {
			rowCountAuto = first
		}
	}

	bound := func(b *BoundCfg, auto stmtctx.Span, what string) (*stmtctx.PaginationValue, error) {
		if b == nil {
			return nil, nil
		}
		ve, err := value(b.Value)
		if err != nil {
			return nil, err
		}
		sp, ok, err := explicitSpan(b.Span)
		if err != nil {
			return nil, errors.Wrap(err, what)
		}
		if !ok {
			if !found || auto.Empty() {
				return nil, errors.Errorf("%s of %s pagination needs an explicit span", what, d)
			}
			sp = auto
		}
		return &stmtctx.PaginationValue{Value: ve, Span: sp, Inclusive: b.Inclusive}, nil
	}

	offset, err := bound(sf.Limit.Offset, offsetAuto, "offset")
	if err != nil {
		return nil, err
	}
	rowCount, err := bound(sf.Limit.RowCount, rowCountAuto, "row count")
	if err != nil {
		return nil, err
	}
	return &stmtctx.Pagination{Offset: offset, RowCount: rowCount}, nil
}

func (sf *StatementFile) buildInsert(stmt *stmtctx.Statement, loc *locator) error {
	ins := &stmtctx.InsertInfo{Table: sf.Insert.Table, Columns: sf.Insert.Columns}
	if ins.Table == "" && len(stmt.Tables) > 0 {
		ins.Table = stmt.Tables[0].Name.RelationName
	}

	values := loc.keyword(0, "VALUES")
	if values == len(loc.sql) {
		return errors.New("VALUES is not found in insert statement text")
	}
	if len(ins.Columns) > 0 {
		ins.ColumnsEnd = strings.LastIndexByte(loc.sql[:values], ')')
		if ins.ColumnsEnd < 0 {
			return errors.New("insert column list is not found in statement text")
		}
	}

	tuples := loc.tuples(values)
	if len(tuples) != len(sf.Insert.Rows) {
		return errors.Errorf("statement text has %d value tuples, %d rows described", len(tuples), len(sf.Insert.Rows))
	}
	for i, sp := range tuples {
		row := stmtctx.InsertRow{Span: sp}
		for _, v := range sf.Insert.Rows[i] {
			ve, err := value(v)
			if err != nil {
				return err
			}
			row.Values = append(row.Values, ve)
		}
		ins.Rows = append(ins.Rows, row)
	}
	if len(tuples) > 0 {
		ins.ValuesSpan = stmtctx.Span{Start: tuples[0].Start, Stop: tuples[len(tuples)-1].Stop}
	}
	stmt.Insert = ins
	return nil
}
