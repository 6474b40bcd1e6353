package stmtctx

import (
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

// ValueExpr is either a literal or a reference to a bound parameter.
type ValueExpr struct {
	Literal any
	// Param is the 0-based position in the parameter list
	Param   int
	IsParam bool
}

func Lit(v any) ValueExpr {
	return ValueExpr{Literal: v}
}

func Param(idx int) ValueExpr {
	return ValueExpr{Param: idx, IsParam: true}
}

func (e ValueExpr) Resolve(params []any) (any, error) {
	if !e.IsParam {
		return e.Literal, nil
	}
	if e.Param < 0 || e.Param >= len(params) {
		return nil, spqrerror.Newf(spqrerror.SPQR_PARAMETER_MISSING,
			"parameter %d is not bound, %d parameters given", e.Param+1, len(params))
	}
	return params[e.Param], nil
}

type Operator string

const (
	OpEq      = Operator("=")
	OpIn      = Operator("IN")
	OpBetween = Operator("BETWEEN")
	OpLt      = Operator("<")
	OpLte     = Operator("<=")
	OpGt      = Operator(">")
	OpGte     = Operator(">=")
)

type Condition struct {
	// Table is a relation name or alias, empty for single table statements
	Table  string
	Column string
	Op     Operator
	Values []ValueExpr
}

// ParameterMarkerGroups returns the marker positions used by every value
// of the condition in source order, one sub-list per value.
func (c Condition) ParameterMarkerGroups() [][]int {
	res := make([][]int, 0, len(c.Values))
	for _, v := range c.Values {
		if v.IsParam {
			res = append(res, []int{v.Param})
		} else {
			res = append(res, []int{})
		}
	}
	return res
}

// AndGroup conditions hold together.
type AndGroup []Condition

// ShardingConditions are OR-ed AND groups.
type ShardingConditions []AndGroup
