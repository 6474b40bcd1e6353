package having

import (
	"strings"
	"unicode"

	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

type tokenKind int

const (
	tokEOF = tokenKind(iota)
	tokIdent
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokDot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// keyword reports whether the token is the given keyword, case-insensitive.
func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func lex(src string) ([]token, error) {
	var res []token
	i := 0
	for i < len(src) {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			res = append(res, token{tokLParen, "(", i})
			i++
		case c == ')':
			res = append(res, token{tokRParen, ")", i})
			i++
		case c == ',':
			res = append(res, token{tokComma, ",", i})
			i++
		case c == '.' && (i+1 >= len(src) || !isDigit(src[i+1])):
			res = append(res, token{tokDot, ".", i})
			i++
		case isDigit(src[i]) || c == '.':
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				i++
				if i < len(src) && (src[i] == '+' || src[i] == '-') {
					i++
				}
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			res = append(res, token{tokNumber, src[start:i], start})
		case c == '\'':
			start := i
			var sb strings.Builder
			i++
			closed := false
			for i < len(src) {
				if src[i] == '\'' {
					if i+1 < len(src) && src[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, spqrerror.Newf(spqrerror.SPQR_HAVING_EVAL, "unterminated string literal at %d", start)
			}
			res = append(res, token{tokString, sb.String(), start})
		case c == '"' || c == '`':
			start := i
			end := strings.IndexByte(src[i+1:], src[i])
			if end < 0 {
				return nil, spqrerror.Newf(spqrerror.SPQR_HAVING_EVAL, "unterminated quoted identifier at %d", start)
			}
			res = append(res, token{tokIdent, src[i+1 : i+1+end], start})
			i += end + 2
		case c == '_' || unicode.IsLetter(c):
			start := i
			for i < len(src) && (src[i] == '_' || src[i] == '$' || isDigit(src[i]) || unicode.IsLetter(rune(src[i]))) {
				i++
			}
			res = append(res, token{tokIdent, src[start:i], start})
		default:
			start := i
			switch {
			case strings.HasPrefix(src[i:], "<="), strings.HasPrefix(src[i:], ">="),
				strings.HasPrefix(src[i:], "<>"), strings.HasPrefix(src[i:], "!="):
				i += 2
			case strings.ContainsRune("=<>+-*/%", c):
				i++
			default:
				return nil, spqrerror.Newf(spqrerror.SPQR_HAVING_EVAL, "unexpected character %q at %d", c, i)
			}
			res = append(res, token{tokOp, src[start:i], start})
		}
	}
	res = append(res, token{tokEOF, "", len(src)})
	return res, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
