package stmtctx

import (
	"strings"

	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/router/rfqn"
)

type Kind int

const (
	Select = Kind(iota)
	Insert
	Update
	Delete
	Other
)

func (k Kind) String() string {
	switch k {
	case Select:
		return "select"
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return "other"
}

func (k Kind) ReadOnly() bool {
	return k == Select
}

// Dialect selects identifier quoting, parameter marker style and the
// pagination decorator.
type Dialect int

const (
	// LIMIT n OFFSET o, $n markers
	DialectPostgres = Dialect(iota)
	// LIMIT o, n, ? markers
	DialectMySQL
	// ROWNUM bounds, ? markers
	DialectOracle
	// TOP(n) with ROW_NUMBER() bounds, ? markers
	DialectSQLServer
)

func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "postgres", "postgresql":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	case "oracle":
		return DialectOracle, nil
	case "sqlserver", "mssql":
		return DialectSQLServer, nil
	}
	return 0, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "unknown dialect %q", s)
}

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	case DialectOracle:
		return "oracle"
	case DialectSQLServer:
		return "sqlserver"
	}
	return "unknown"
}

// NumberedMarkers reports whether parameter markers carry their position.
func (d Dialect) NumberedMarkers() bool {
	return d == DialectPostgres
}

// DefaultNullsFirst reports where the dialect puts nulls when ORDER BY
// names no NULLS FIRST / NULLS LAST. Postgres and Oracle sort nulls as the
// greatest value, MySQL and SQL Server as the smallest.
func (d Dialect) DefaultNullsFirst(desc bool) bool {
	if d == DialectPostgres || d == DialectOracle {
		return desc
	}
	return !desc
}

// Span is the half-open byte range [Start, Stop) of the original SQL.
type Span struct {
	Start int `yaml:"start" json:"start"`
	Stop  int `yaml:"stop" json:"stop"`
}

func (s Span) Empty() bool {
	return s.Start >= s.Stop
}

// TableRef is one occurrence of a table name in the SQL text. Span covers
// the relation name only, without schema or alias, and includes the quotes
// of a quoted name.
type TableRef struct {
	Name   rfqn.RelationFQN
	Alias  string
	Span   Span
	Quoted bool
}

type Having struct {
	Text string
	Span Span
}

type InsertRow struct {
	// Span covers the whole parenthesized tuple
	Span   Span
	Values []ValueExpr
}

type InsertInfo struct {
	Table   string
	Columns []string
	// ColumnsEnd is the offset of the closing parenthesis of the column list
	ColumnsEnd int
	// ValuesSpan covers all tuples, from the first "(" to the last ")"
	ValuesSpan Span
	Rows       []InsertRow
}

func (ii *InsertInfo) ColumnIndex(col string) int {
	for i, c := range ii.Columns {
		if strings.EqualFold(c, col) {
			return i
		}
	}
	return -1
}

/*
* Statement is the bound description of one parsed SQL statement. Parsing
* happens outside of the kernel; spans refer to byte offsets of SQL.
 */
type Statement struct {
	SQL     string
	Kind    Kind
	Dialect Dialect

	Tables     []TableRef
	Conditions ShardingConditions

	Projections     []Projection
	ProjectionsSpan Span
	GroupBy         []OrderItem
	OrderBy         []OrderItem
	// OrderByInsertPos is where a derived ORDER BY clause is spliced in,
	// right after GROUP BY and HAVING.
	OrderByInsertPos int
	Having           *Having
	Pagination       *Pagination

	Insert *InsertInfo
}

// LogicTables returns the distinct logical table names in order of first
// appearance.
func (s *Statement) LogicTables() []string {
	var res []string
	seen := map[string]struct{}{}
	for _, t := range s.Tables {
		if _, ok := seen[t.Name.Key()]; ok {
			continue
		}
		seen[t.Name.Key()] = struct{}{}
		res = append(res, t.Name.RelationName)
	}
	return res
}

// ResolveTable maps an alias or relation name onto the relation name.
func (s *Statement) ResolveTable(name string) (string, bool) {
	if name == "" {
		tables := s.LogicTables()
		if len(tables) == 1 {
			return tables[0], true
		}
		return "", false
	}
	for _, t := range s.Tables {
		if strings.EqualFold(t.Alias, name) || strings.EqualFold(t.Name.RelationName, name) {
			return t.Name.RelationName, true
		}
	}
	return "", false
}

func (s *Statement) Validate() error {
	check := func(sp Span, what string) error {
		if sp.Start < 0 || sp.Stop > len(s.SQL) || sp.Start > sp.Stop {
			return spqrerror.Newf(spqrerror.SPQR_UNEXPECTED, "%s span [%d, %d) is outside of statement text", what, sp.Start, sp.Stop)
		}
		return nil
	}
	for _, t := range s.Tables {
		if err := check(t.Span, "table "+t.Name.String()); err != nil {
			return err
		}
	}
	if s.Having != nil {
		if err := check(s.Having.Span, "having"); err != nil {
			return err
		}
	}
	if s.Pagination != nil {
		for _, b := range []*PaginationValue{s.Pagination.Offset, s.Pagination.RowCount} {
			if b == nil {
				continue
			}
			if err := check(b.Span, "pagination"); err != nil {
				return err
			}
		}
	}
	if s.Insert != nil {
		if err := check(s.Insert.ValuesSpan, "insert values"); err != nil {
			return err
		}
		for _, r := range s.Insert.Rows {
			if err := check(r.Span, "insert row"); err != nil {
				return err
			}
		}
	}
	return nil
}

// GeneratedKey holds values produced for a key column missing from an INSERT.
type GeneratedKey struct {
	Column string
	// one value per insert row
	Values []any
}

// Bound is a statement together with everything known for one execution.
type Bound struct {
	Stmt         *Statement
	Params       []any
	GeneratedKey *GeneratedKey
}
