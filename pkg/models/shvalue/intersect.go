package shvalue

import (
	"github.com/pg-sharding/spqrkernel/pkg/engine"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

/*
* Intersect combines two values extracted for the same column of one AND
* group. The boolean result is false when no value can satisfy both.
 */
func Intersect(a, b Value) (Value, bool, error) {
	if a.Kind == ComplexKeys || b.Kind == ComplexKeys {
		return Value{}, false, spqrerror.New(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, "cannot intersect complex sharding values")
	}

	if a.Kind == Range && b.Kind == Range {
		return intersectRanges(a, b)
	}

	/* at least one side is discrete */
	if a.Kind == Range {
		a, b = b, a
	}
	pts, _ := a.Points()
	res := make([]any, 0, len(pts))
	for _, p := range pts {
		ok, err := matches(b, p)
		if err != nil {
			return Value{}, false, err
		}
		if ok {
			res = append(res, p)
		}
	}
	switch len(res) {
	case 0:
		return Value{}, false, nil
	case 1:
		v, err := NewPrecise(a.Table, a.Column, res[0])
		return v, err == nil, err
	}
	v, err := NewList(a.Table, a.Column, res)
	return v, err == nil, err
}

func matches(v Value, x any) (bool, error) {
	switch v.Kind {
	case Range:
		return v.Contains(x)
	case Precise, List:
		pts, _ := v.Points()
		for _, p := range pts {
			c, err := engine.Compare(x, p)
			if err != nil {
				return false, err
			}
			if c == 0 {
				return true, nil
			}
		}
		return false, nil
	}
	return false, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, "unexpected %s value", v.Kind)
}

func intersectRanges(a, b Value) (Value, bool, error) {
	lower, err := tighter(a.Lower, b.Lower, true)
	if err != nil {
		return Value{}, false, err
	}
	upper, err := tighter(a.Upper, b.Upper, false)
	if err != nil {
		return Value{}, false, err
	}
	v, err := NewRange(a.Table, a.Column, lower, upper)
	if err != nil {
		return Value{}, false, err
	}
	ok, err := v.Satisfiable()
	if err != nil || !ok {
		return Value{}, false, err
	}
	return v, true, nil
}

// Satisfiable reports whether some value fits the restriction. Only a
// range can be empty, when its lower bound passes the upper one.
func (v Value) Satisfiable() (bool, error) {
	if v.Kind != Range || v.Lower.Unbounded || v.Upper.Unbounded {
		return true, nil
	}
	c, err := engine.Compare(v.Lower.Value, v.Upper.Value)
	if err != nil {
		return false, err
	}
	return c < 0 || (c == 0 && v.Lower.Inclusive && v.Upper.Inclusive), nil
}

func tighter(x, y Bound, isLower bool) (Bound, error) {
	if x.Unbounded {
		return y, nil
	}
	if y.Unbounded {
		return x, nil
	}
	c, err := engine.Compare(x.Value, y.Value)
	if err != nil {
		return Bound{}, err
	}
	if c == 0 {
		return Bound{Value: x.Value, Inclusive: x.Inclusive && y.Inclusive}, nil
	}
	if (c > 0) == isLower {
		return x, nil
	}
	return y, nil
}
