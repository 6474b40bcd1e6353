package rewrite

import (
	"sort"
	"strings"

	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/pkg/spqrlog"
	"github.com/pg-sharding/spqrkernel/router/plan"
	"github.com/pg-sharding/spqrkernel/router/route"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
)

// Context is everything token generators may look at.
type Context struct {
	Stmt *stmtctx.Statement
	// Select is nil for statements other than SELECT
	Select       *stmtctx.SelectContext
	Params       []any
	GeneratedKey *stmtctx.GeneratedKey
	Units        []*route.Unit
}

func NewContext(b *stmtctx.Bound, sc *stmtctx.SelectContext, units []*route.Unit) *Context {
	return &Context{
		Stmt:         b.Stmt,
		Select:       sc,
		Params:       b.Params,
		GeneratedKey: b.GeneratedKey,
		Units:        units,
	}
}

// Distributed reports whether results of several units are merged.
func (rc *Context) Distributed() bool {
	return len(rc.Units) > 1
}

type Engine struct {
	generators []TokenGenerator
}

func NewEngine(generators ...TokenGenerator) *Engine {
	if len(generators) == 0 {
		generators = DefaultGenerators()
	}
	return &Engine{generators: generators}
}

// Tokens collects tokens of all generators sorted by start offset.
func (e *Engine) Tokens(rc *Context) ([]Token, error) {
	var tokens []Token
	for _, g := range e.generators {
		ts, err := g.Generate(rc)
		if err != nil {
			return nil, err
		}
		if len(ts) > 0 {
			spqrlog.Zero.Debug().
				Str("generator", g.Name()).
				Int("tokens", len(ts)).
				Msg("generated rewrite tokens")
		}
		tokens = append(tokens, ts...)
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		if tokens[i].StartIndex() != tokens[j].StartIndex() {
			return tokens[i].StartIndex() < tokens[j].StartIndex()
		}
		return tokens[i].StopIndex() < tokens[j].StopIndex()
	})

	for i, t := range tokens {
		if t.StartIndex() < 0 || t.StopIndex() > len(rc.Stmt.SQL) || t.StartIndex() > t.StopIndex() {
			return nil, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED,
				"token [%d, %d) is outside of statement text", t.StartIndex(), t.StopIndex())
		}
		if i > 0 && t.StartIndex() < tokens[i-1].StopIndex() {
			return nil, spqrerror.Newf(spqrerror.SPQR_OVERLAPPING_TOKENS,
				"token [%d, %d) overlaps token [%d, %d)",
				t.StartIndex(), t.StopIndex(), tokens[i-1].StartIndex(), tokens[i-1].StopIndex())
		}
	}
	return tokens, nil
}

// Splice renders the statement for one unit.
func Splice(sql string, tokens []Token, u *route.Unit) string {
	var sb strings.Builder
	last := 0
	for _, t := range tokens {
		sb.WriteString(sql[last:t.StartIndex()])
		sb.WriteString(t.Text(u))
		last = t.StopIndex()
	}
	sb.WriteString(sql[last:])
	return sb.String()
}

func params(tokens []Token, u *route.Unit, src []any) []any {
	res := append([]any(nil), src...)
	for _, t := range tokens {
		if pr, ok := t.(ParamsRewriter); ok {
			res = pr.RewriteParams(u, res)
		}
	}
	return res
}

/*
* Rewrite produces one statement with its parameters per routing unit,
* in unit order.
 */
func (e *Engine) Rewrite(rc *Context) ([]*plan.ShardPlan, error) {
	if err := rc.Stmt.Validate(); err != nil {
		return nil, err
	}
	tokens, err := e.Tokens(rc)
	if err != nil {
		return nil, err
	}

	res := make([]*plan.ShardPlan, 0, len(rc.Units))
	for _, u := range rc.Units {
		sp := &plan.ShardPlan{
			Unit:       u,
			DataSource: u.DataSource,
			Query:      Splice(rc.Stmt.SQL, tokens, u),
			Params:     params(tokens, u, rc.Params),
		}
		spqrlog.Zero.Debug().
			Str("unit", u.String()).
			Str("query", sp.Query).
			Msg("rewrote statement")
		res = append(res, sp)
	}
	return res, nil
}
