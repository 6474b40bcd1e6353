package rfqn

import (
	"strings"

	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

// RelationFQN is a table name as written in a statement, optionally
// schema qualified.
type RelationFQN struct {
	RelationName string
	SchemaName   string
}

func (n RelationFQN) String() string {
	if n.SchemaName == "" {
		return n.RelationName
	}
	return n.SchemaName + "." + n.RelationName
}

// Key is the case-insensitive lookup key of the relation name, the schema
// does not take part in sharding rule lookup.
func (n RelationFQN) Key() string {
	return strings.ToLower(n.RelationName)
}

func invalidName(s, why string) error {
	return spqrerror.Newf(spqrerror.SPQR_UNEXPECTED, "invalid qualified name %q: %s", s, why)
}

/*
* ParseFQN splits "table" or "schema.table". A double quoted part may hold
* dots and spaces, a doubled quote inside it stands for one quote.
 */
func ParseFQN(s string) (RelationFQN, error) {
	var parts []string
	var cur strings.Builder
	inQuote, closed := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote && c == '"':
			if i+1 < len(s) && s[i+1] == '"' {
				cur.WriteByte('"')
				i++
				continue
			}
			inQuote, closed = false, true
		case inQuote:
			cur.WriteByte(c)
		case c == '.':
			if cur.Len() == 0 {
				return RelationFQN{}, invalidName(s, "empty name part")
			}
			parts = append(parts, cur.String())
			cur.Reset()
			closed = false
		case closed:
			return RelationFQN{}, invalidName(s, "text after closing quote")
		case c == '"':
			if cur.Len() > 0 {
				return RelationFQN{}, invalidName(s, "quote inside name")
			}
			inQuote = true
		case c == ' ' || c == '\t' || c == '\n':
			return RelationFQN{}, invalidName(s, "unquoted space")
		default:
			cur.WriteByte(c)
		}
	}
	if inQuote {
		return RelationFQN{}, invalidName(s, "unterminated quote")
	}
	if cur.Len() == 0 {
		return RelationFQN{}, invalidName(s, "empty name part")
	}
	parts = append(parts, cur.String())

	switch len(parts) {
	case 1:
		return RelationFQN{RelationName: parts[0]}, nil
	case 2:
		return RelationFQN{SchemaName: parts[0], RelationName: parts[1]}, nil
	}
	return RelationFQN{}, invalidName(s, "too many name parts")
}
