package having

import (
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

type parser struct {
	src  string
	toks []token
	pos  int
}

/*
* Parse compiles a HAVING condition. The grammar covers boolean logic,
* comparisons, IS [NOT] NULL, [NOT] BETWEEN, [NOT] IN, arithmetic and
* references to columns and aggregate calls.
 */
func Parse(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
	return e, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return spqrerror.Newf(spqrerror.SPQR_HAVING_EVAL, "having: "+format+" at position %d", append(args, t.pos)...)
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.peek().keyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) acceptOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, got %q", what, t.text)
	}
	return t, nil
}

func (p *parser) parseOr() (Expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &orExpr{l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (Expr, error) {
	l, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l = &andExpr{l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.acceptKeyword("NOT") {
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notExpr{x: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	l, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	if op, ok := p.acceptOp("=", "<>", "!=", "<", "<=", ">", ">="); ok {
		r, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if op == "!=" {
			op = "<>"
		}
		return &cmpExpr{op: op, l: l, r: r}, nil
	}

	if p.acceptKeyword("IS") {
		not := p.acceptKeyword("NOT")
		if t := p.next(); !t.keyword("NULL") {
			return nil, p.errorf(t, "expected NULL, got %q", t.text)
		}
		return &isNullExpr{x: l, not: not}, nil
	}

	not := p.acceptKeyword("NOT")
	switch {
	case p.acceptKeyword("BETWEEN"):
		lo, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if t := p.next(); !t.keyword("AND") {
			return nil, p.errorf(t, "expected AND, got %q", t.text)
		}
		hi, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &betweenExpr{x: l, lo: lo, hi: hi, not: not}, nil
	case p.acceptKeyword("IN"):
		if _, err := p.expect(tokLParen, "("); err != nil {
			return nil, err
		}
		var list []Expr
		for {
			e, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			list = append(list, e)
			if p.peek().kind == tokComma {
				p.pos++
				continue
			}
			break
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return &inExpr{x: l, list: list, not: not}, nil
	}
	if not {
		t := p.peek()
		return nil, p.errorf(t, "expected BETWEEN or IN after NOT, got %q", t.text)
	}
	return l, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	l, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return l, nil
		}
		r, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		l = &arithExpr{op: op, l: l, r: r}
	}
}

func (p *parser) parseMultiplicative() (Expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("*", "/", "%")
		if !ok {
			return l, nil
		}
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = &arithExpr{op: op, l: l, r: r}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if _, ok := p.acceptOp("-"); ok {
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negExpr{x: x}, nil
	}
	if _, ok := p.acceptOp("+"); ok {
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		d, _, err := apd.NewFromString(t.text)
		if err != nil {
			return nil, p.errorf(t, "bad number %q", t.text)
		}
		return &literal{v: d}, nil
	case tokString:
		return &literal{v: t.text}, nil
	case tokLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return e, nil
	case tokIdent:
		switch {
		case t.keyword("NULL"):
			return &literal{v: nil}, nil
		case t.keyword("TRUE"):
			return &literal{v: true}, nil
		case t.keyword("FALSE"):
			return &literal{v: false}, nil
		}
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		name := t.text
		for p.peek().kind == tokDot {
			p.pos++
			part, err := p.expect(tokIdent, "identifier")
			if err != nil {
				return nil, err
			}
			name += "." + part.text
		}
		return &refExpr{text: name}, nil
	}
	return nil, p.errorf(t, "unexpected %q", t.text)
}

// parseCall keeps the source text of a function call, calls are resolved
// against shard columns rather than evaluated.
func (p *parser) parseCall(name token) (Expr, error) {
	depth := 0
	for {
		t := p.next()
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth == 0 {
				return &refExpr{text: strings.TrimSpace(p.src[name.pos : t.pos+1])}, nil
			}
		case tokEOF:
			return nil, p.errorf(t, "unbalanced parentheses in call of %s", name.text)
		}
	}
}
