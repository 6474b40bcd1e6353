package main

import (
	"strings"

	"github.com/pg-sharding/spqrkernel/router/stmtctx"
)

// locator finds clause positions in statement text. It knows quotes and
// word boundaries but no grammar, nested queries need explicit spans.
type locator struct {
	sql   string
	upper string
}

func newLocator(sql string) *locator {
	return &locator{sql: sql, upper: strings.ToUpper(sql)}
}

func isIdent(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func (l *locator) wordAt(i int, word string) bool {
	if !strings.HasPrefix(l.upper[i:], word) {
		return false
	}
	if i > 0 && isIdent(l.sql[i-1]) {
		return false
	}
	end := i + len(word)
	return end == len(l.sql) || !isIdent(l.sql[end])
}

// scan calls f for every offset at or after from outside of string
// literals until f returns true.
func (l *locator) scan(from int, f func(i int) bool) int {
	var quote byte
	for i := from; i < len(l.sql); i++ {
		c := l.sql[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			continue
		case c == '\'':
			quote = c
			continue
		}
		if f(i) {
			return i
		}
	}
	return len(l.sql)
}

// keyword returns the offset of the first of kws at or after from, or the
// text length when there is none.
func (l *locator) keyword(from int, kws ...string) int {
	return l.scan(from, func(i int) bool {
		for _, kw := range kws {
			if l.wordAt(i, kw) {
				return true
			}
		}
		return false
	})
}

// identifier finds name at or after from. A double quoted name spans its
// quotes.
func (l *locator) identifier(from int, name string) (stmtctx.Span, bool, bool) {
	if from >= len(l.sql) {
		from = 0
	}
	upper := strings.ToUpper(name)
	i := l.scan(from, func(i int) bool { return l.wordAt(i, upper) })
	if i == len(l.sql) {
		return stmtctx.Span{}, false, false
	}
	stop := i + len(name)
	if i > 0 && stop < len(l.sql) && l.sql[i-1] == '"' && l.sql[stop] == '"' {
		return stmtctx.Span{Start: i - 1, Stop: stop + 1}, true, true
	}
	return stmtctx.Span{Start: i, Stop: stop}, false, true
}

func (l *locator) skipSpaces(i int) int {
	for i < len(l.sql) && (l.sql[i] == ' ' || l.sql[i] == '\t' || l.sql[i] == '\n' || l.sql[i] == '\r') {
		i++
	}
	return i
}

func (l *locator) trimRight(start, stop int) int {
	for stop > start && strings.ContainsRune(" \t\r\n;", rune(l.sql[stop-1])) {
		stop--
	}
	return stop
}

// projections returns the span of the first select list.
func (l *locator) projections() (stmtctx.Span, bool) {
	i := l.keyword(0, "SELECT")
	if i == len(l.sql) {
		return stmtctx.Span{}, false
	}
	start := l.skipSpaces(i + len("SELECT"))
	stop := l.trimRight(start, l.keyword(start, "FROM"))
	return stmtctx.Span{Start: start, Stop: stop}, stop > start
}

// having returns the span from the HAVING keyword to the end of text.
func (l *locator) having(text string) (stmtctx.Span, bool) {
	i := l.keyword(0, "HAVING")
	if i == len(l.sql) {
		return stmtctx.Span{}, false
	}
	j := strings.Index(l.sql[i:], text)
	if j < 0 {
		return stmtctx.Span{}, false
	}
	return stmtctx.Span{Start: i, Stop: i + j + len(text)}, true
}

// clauseEnd is the end offset of the clause starting at start, trailing
// spaces excluded.
func (l *locator) clauseEnd(start int) int {
	if start >= len(l.sql) {
		return l.trimRight(0, len(l.sql))
	}
	end := l.keyword(start+1, "HAVING", "ORDER BY", "LIMIT", "OFFSET", "FETCH", "UNION")
	return l.trimRight(start, end)
}

func (l *locator) token(i int) (stmtctx.Span, bool) {
	start := l.skipSpaces(i)
	stop := start
	for stop < len(l.sql) && !strings.ContainsRune(" \t\r\n,);", rune(l.sql[stop])) {
		stop++
	}
	return stmtctx.Span{Start: start, Stop: stop}, stop > start
}

// tokenAfter returns the literal or marker following kw.
func (l *locator) tokenAfter(kw string) (stmtctx.Span, bool) {
	i := l.keyword(0, kw)
	if i == len(l.sql) {
		return stmtctx.Span{}, false
	}
	return l.token(i + len(kw))
}

// tokenAfterComma returns the token following prev and a comma.
func (l *locator) tokenAfterComma(prev stmtctx.Span) (stmtctx.Span, bool) {
	i := l.skipSpaces(prev.Stop)
	if i >= len(l.sql) || l.sql[i] != ',' {
		return stmtctx.Span{}, false
	}
	return l.token(i + 1)
}

// tuples returns spans of the parenthesized value tuples following the
// VALUES keyword at values.
func (l *locator) tuples(values int) []stmtctx.Span {
	var res []stmtctx.Span
	i := l.skipSpaces(values + len("VALUES"))
	for i < len(l.sql) && l.sql[i] == '(' {
		depth := 0
		end := l.scan(i, func(j int) bool {
			switch l.sql[j] {
			case '(':
				depth++
			case ')':
				depth--
			}
			return depth == 0
		})
		if end == len(l.sql) {
			break
		}
		res = append(res, stmtctx.Span{Start: i, Stop: end + 1})
		i = l.skipSpaces(end + 1)
		if i >= len(l.sql) || l.sql[i] != ',' {
			break
		}
		i = l.skipSpaces(i + 1)
	}
	return res
}
