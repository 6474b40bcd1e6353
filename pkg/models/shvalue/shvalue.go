package shvalue

import (
	"fmt"
	"sort"

	"github.com/pg-sharding/spqrkernel/pkg/engine"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

type Kind int

const (
	Precise = Kind(iota)
	Range
	ComplexKeys
	List
)

func (k Kind) String() string {
	switch k {
	case Precise:
		return "precise"
	case Range:
		return "range"
	case ComplexKeys:
		return "complex"
	case List:
		return "list"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Bound is one end of a range. Unbounded ends ignore Value and Inclusive.
type Bound struct {
	Value     any
	Inclusive bool
	Unbounded bool
}

var Unbounded = Bound{Unbounded: true}

func Closed(v any) Bound {
	return Bound{Value: v, Inclusive: true}
}

func Open(v any) Bound {
	return Bound{Value: v}
}

// Value is the runtime sharding value extracted for one logical table.
// Exactly one variant selected by Kind is populated; use the constructors.
type Value struct {
	Kind   Kind
	Table  string
	Column string

	// Precise
	Precise any
	// Range
	Lower Bound
	Upper Bound
	// List
	List []any
	// ComplexKeys: column name -> precise, list or range value
	Keys map[string]Value
}

func checkComparable(table, column string, v any) error {
	if !engine.Comparable(v) {
		return spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE,
			"sharding value %v of type %T for %s.%s is not comparable", v, v, table, column)
	}
	return nil
}

func NewPrecise(table, column string, v any) (Value, error) {
	if err := checkComparable(table, column, v); err != nil {
		return Value{}, err
	}
	return Value{Kind: Precise, Table: table, Column: column, Precise: v}, nil
}

func NewRange(table, column string, lower, upper Bound) (Value, error) {
	for _, b := range []Bound{lower, upper} {
		if b.Unbounded {
			continue
		}
		if err := checkComparable(table, column, b.Value); err != nil {
			return Value{}, err
		}
	}
	return Value{Kind: Range, Table: table, Column: column, Lower: lower, Upper: upper}, nil
}

func NewList(table, column string, vals []any) (Value, error) {
	for _, v := range vals {
		if err := checkComparable(table, column, v); err != nil {
			return Value{}, err
		}
	}
	return Value{Kind: List, Table: table, Column: column, List: vals}, nil
}

func NewComplexKeys(table string, keys map[string]Value) (Value, error) {
	for col, k := range keys {
		if k.Kind == ComplexKeys {
			return Value{}, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE,
				"nested complex sharding value for column %s", col)
		}
	}
	return Value{Kind: ComplexKeys, Table: table, Keys: keys}, nil
}

// Columns returns the sorted column names of a complex value.
func (v Value) Columns() []string {
	cols := make([]string, 0, len(v.Keys))
	for c := range v.Keys {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Points returns the discrete values of a precise or list value.
func (v Value) Points() ([]any, bool) {
	switch v.Kind {
	case Precise:
		return []any{v.Precise}, true
	case List:
		return v.List, true
	case Range, ComplexKeys:
		return nil, false
	}
	return nil, false
}

// Contains reports whether x lies inside the range of v.
func (v Value) Contains(x any) (bool, error) {
	if v.Kind != Range {
		return false, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, "contains on %s value", v.Kind)
	}
	if !v.Lower.Unbounded {
		c, err := engine.Compare(x, v.Lower.Value)
		if err != nil {
			return false, err
		}
		if c < 0 || (c == 0 && !v.Lower.Inclusive) {
			return false, nil
		}
	}
	if !v.Upper.Unbounded {
		c, err := engine.Compare(x, v.Upper.Value)
		if err != nil {
			return false, err
		}
		if c > 0 || (c == 0 && !v.Upper.Inclusive) {
			return false, nil
		}
	}
	return true, nil
}

func (v Value) String() string {
	switch v.Kind {
	case Precise:
		return fmt.Sprintf("%s = %v", v.Column, v.Precise)
	case List:
		return fmt.Sprintf("%s IN %v", v.Column, v.List)
	case Range:
		l, u := "(-inf", "+inf)"
		if !v.Lower.Unbounded {
			l = fmt.Sprintf("(%v", v.Lower.Value)
			if v.Lower.Inclusive {
				l = fmt.Sprintf("[%v", v.Lower.Value)
			}
		}
		if !v.Upper.Unbounded {
			u = fmt.Sprintf("%v)", v.Upper.Value)
			if v.Upper.Inclusive {
				u = fmt.Sprintf("%v]", v.Upper.Value)
			}
		}
		return fmt.Sprintf("%s in %s, %s", v.Column, l, u)
	case ComplexKeys:
		return fmt.Sprintf("complex %v", v.Keys)
	}
	return "unknown sharding value"
}
