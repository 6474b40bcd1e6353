package stmtctx

import (
	"regexp"
	"strings"
)

type AggregationType int

const (
	AggNone = AggregationType(iota)
	AggCount
	AggSum
	AggMax
	AggMin
	AggAvg
)

func (a AggregationType) String() string {
	switch a {
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggMax:
		return "MAX"
	case AggMin:
		return "MIN"
	case AggAvg:
		return "AVG"
	}
	return ""
}

var aggregationRe = regexp.MustCompile(`(?is)^\s*(count|sum|max|min|avg)\s*\((.*)\)\s*$`)

// ParseAggregation detects a top level aggregate call and returns its
// argument text.
func ParseAggregation(expr string) (AggregationType, string) {
	m := aggregationRe.FindStringSubmatch(expr)
	if m == nil {
		return AggNone, ""
	}
	arg := strings.TrimSpace(m[2])
	/* "count(a) + sum(b)" is not a single call */
	depth := 0
	for _, c := range arg {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return AggNone, ""
		}
	}
	switch strings.ToLower(m[1]) {
	case "count":
		return AggCount, arg
	case "sum":
		return AggSum, arg
	case "max":
		return AggMax, arg
	case "min":
		return AggMin, arg
	default:
		return AggAvg, arg
	}
}

// NormalizeExpression lowercases expr and drops whitespace outside of
// quoted literals so that textual variants of one expression compare equal.
func NormalizeExpression(expr string) string {
	var sb strings.Builder
	var quote rune
	for _, c := range expr {
		switch {
		case quote != 0:
			sb.WriteRune(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			sb.WriteRune(c)
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		default:
			sb.WriteString(strings.ToLower(string(c)))
		}
	}
	return sb.String()
}

// unqualified strips a leading "owner." from a plain column reference.
func unqualified(expr string) string {
	if strings.ContainsAny(expr, "()") {
		return expr
	}
	if i := strings.LastIndexByte(expr, '.'); i >= 0 {
		return expr[i+1:]
	}
	return expr
}

type Projection struct {
	Expression string
	Alias      string
}

func (p Projection) Label() string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.Expression
}

func (p Projection) Star() bool {
	e := strings.TrimSpace(p.Expression)
	return e == "*" || strings.HasSuffix(e, ".*")
}

func (p Projection) Aggregation() (AggregationType, string) {
	return ParseAggregation(p.Expression)
}

type OrderItem struct {
	Expression string
	// Position is the 1-based select list position for "ORDER BY 2"
	Position int
	Desc     bool
	// NullsFirst is the resolved null placement, independent of Desc
	NullsFirst bool
}
