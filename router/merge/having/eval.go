package having

import (
	"github.com/cockroachdb/apd/v3"
	"github.com/pg-sharding/spqrkernel/pkg/engine"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

// Env resolves column and aggregate references of the current group row.
type Env interface {
	Lookup(ref string) (any, error)
}

// Expr evaluates to a value, nil is SQL NULL (unknown for predicates).
type Expr interface {
	Eval(env Env) (any, error)
}

// Filter reports whether the group row passes the condition. Only TRUE
// passes, FALSE, NULL and non-boolean results exclude the row.
func Filter(e Expr, env Env) (bool, error) {
	v, err := e.Eval(env)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	return ok && b, nil
}

type literal struct {
	v any
}

func (l *literal) Eval(Env) (any, error) {
	return l.v, nil
}

type refExpr struct {
	text string
}

func (r *refExpr) Eval(env Env) (any, error) {
	return env.Lookup(r.text)
}

func boolOperand(v any, op string) (*bool, error) {
	if v == nil {
		return nil, nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil, spqrerror.Newf(spqrerror.SPQR_HAVING_EVAL, "having: operand of %s is not boolean: %v", op, v)
	}
	return &b, nil
}

type andExpr struct {
	l, r Expr
}

func (e *andExpr) Eval(env Env) (any, error) {
	lv, err := e.l.Eval(env)
	if err != nil {
		return nil, err
	}
	l, err := boolOperand(lv, "AND")
	if err != nil {
		return nil, err
	}
	if l != nil && !*l {
		return false, nil
	}
	rv, err := e.r.Eval(env)
	if err != nil {
		return nil, err
	}
	r, err := boolOperand(rv, "AND")
	if err != nil {
		return nil, err
	}
	switch {
	case r != nil && !*r:
		return false, nil
	case l == nil || r == nil:
		return nil, nil
	}
	return true, nil
}

type orExpr struct {
	l, r Expr
}

func (e *orExpr) Eval(env Env) (any, error) {
	lv, err := e.l.Eval(env)
	if err != nil {
		return nil, err
	}
	l, err := boolOperand(lv, "OR")
	if err != nil {
		return nil, err
	}
	if l != nil && *l {
		return true, nil
	}
	rv, err := e.r.Eval(env)
	if err != nil {
		return nil, err
	}
	r, err := boolOperand(rv, "OR")
	if err != nil {
		return nil, err
	}
	switch {
	case r != nil && *r:
		return true, nil
	case l == nil || r == nil:
		return nil, nil
	}
	return false, nil
}

type notExpr struct {
	x Expr
}

func (e *notExpr) Eval(env Env) (any, error) {
	v, err := e.x.Eval(env)
	if err != nil {
		return nil, err
	}
	b, err := boolOperand(v, "NOT")
	if err != nil || b == nil {
		return nil, err
	}
	return !*b, nil
}

func compare(l, r any) (int, error) {
	c, err := engine.Compare(l, r)
	if err != nil {
		return 0, spqrerror.Newf(spqrerror.SPQR_HAVING_EVAL, "having: %v", err)
	}
	return c, nil
}

type cmpExpr struct {
	op   string
	l, r Expr
}

func (e *cmpExpr) Eval(env Env) (any, error) {
	l, err := e.l.Eval(env)
	if err != nil {
		return nil, err
	}
	r, err := e.r.Eval(env)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return nil, nil
	}
	c, err := compare(l, r)
	if err != nil {
		return nil, err
	}
	switch e.op {
	case "=":
		return c == 0, nil
	case "<>":
		return c != 0, nil
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

type isNullExpr struct {
	x   Expr
	not bool
}

func (e *isNullExpr) Eval(env Env) (any, error) {
	v, err := e.x.Eval(env)
	if err != nil {
		return nil, err
	}
	return (v == nil) != e.not, nil
}

type betweenExpr struct {
	x, lo, hi Expr
	not       bool
}

func (e *betweenExpr) Eval(env Env) (any, error) {
	ge := &cmpExpr{op: ">=", l: e.x, r: e.lo}
	le := &cmpExpr{op: "<=", l: e.x, r: e.hi}
	var res Expr = &andExpr{l: ge, r: le}
	if e.not {
		res = &notExpr{x: res}
	}
	return res.Eval(env)
}

type inExpr struct {
	x    Expr
	list []Expr
	not  bool
}

func (e *inExpr) Eval(env Env) (any, error) {
	v, err := e.x.Eval(env)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	sawNull := false
	found := false
	for _, item := range e.list {
		iv, err := item.Eval(env)
		if err != nil {
			return nil, err
		}
		if iv == nil {
			sawNull = true
			continue
		}
		c, err := compare(v, iv)
		if err != nil {
			return nil, err
		}
		if c == 0 {
			found = true
			break
		}
	}
	switch {
	case found:
		return !e.not, nil
	case sawNull:
		return nil, nil
	}
	return e.not, nil
}

type arithExpr struct {
	op   string
	l, r Expr
}

func (e *arithExpr) Eval(env Env) (any, error) {
	lv, err := e.l.Eval(env)
	if err != nil {
		return nil, err
	}
	rv, err := e.r.Eval(env)
	if err != nil {
		return nil, err
	}
	if lv == nil || rv == nil {
		return nil, nil
	}
	l, err := engine.ToDecimal(lv)
	if err != nil {
		return nil, spqrerror.Newf(spqrerror.SPQR_HAVING_EVAL, "having: %v", err)
	}
	r, err := engine.ToDecimal(rv)
	if err != nil {
		return nil, spqrerror.Newf(spqrerror.SPQR_HAVING_EVAL, "having: %v", err)
	}

	res := new(apd.Decimal)
	switch e.op {
	case "+":
		_, err = engine.DecimalContext.Add(res, l, r)
	case "-":
		_, err = engine.DecimalContext.Sub(res, l, r)
	case "*":
		_, err = engine.DecimalContext.Mul(res, l, r)
	case "/", "%":
		if r.IsZero() {
			return nil, spqrerror.New(spqrerror.SPQR_HAVING_EVAL, "having: division by zero")
		}
		if e.op == "/" {
			_, err = engine.DecimalContext.Quo(res, l, r)
		} else {
			_, err = engine.DecimalContext.Rem(res, l, r)
		}
	}
	if err != nil {
		return nil, spqrerror.Newf(spqrerror.SPQR_HAVING_EVAL, "having: %v", err)
	}
	return res, nil
}

type negExpr struct {
	x Expr
}

func (e *negExpr) Eval(env Env) (any, error) {
	v, err := e.x.Eval(env)
	if err != nil || v == nil {
		return nil, err
	}
	d, err := engine.ToDecimal(v)
	if err != nil {
		return nil, spqrerror.Newf(spqrerror.SPQR_HAVING_EVAL, "having: %v", err)
	}
	return new(apd.Decimal).Neg(d), nil
}

// References lists the column and call texts the expression looks up, in
// source order.
func References(e Expr) []string {
	var res []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch x := e.(type) {
		case *refExpr:
			res = append(res, x.text)
		case *andExpr:
			walk(x.l)
			walk(x.r)
		case *orExpr:
			walk(x.l)
			walk(x.r)
		case *cmpExpr:
			walk(x.l)
			walk(x.r)
		case *arithExpr:
			walk(x.l)
			walk(x.r)
		case *notExpr:
			walk(x.x)
		case *negExpr:
			walk(x.x)
		case *isNullExpr:
			walk(x.x)
		case *betweenExpr:
			walk(x.x)
			walk(x.lo)
			walk(x.hi)
		case *inExpr:
			walk(x.x)
			for _, it := range x.list {
				walk(it)
			}
		}
	}
	walk(e)
	return res
}
