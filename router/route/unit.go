package route

import (
	"strings"
)

type TableMapper struct {
	Logical string
	Actual  string
}

// Unit is one datasource together with the actual tables substituted for
// every logical table of the statement. It receives one rewritten statement.
type Unit struct {
	DataSource string
	Tables     []TableMapper
	// Groups lists the condition groups routed here, for INSERT these are
	// the row indexes
	Groups []int

	ordinals []int
}

func (u *Unit) ActualTable(logical string) (string, bool) {
	for _, m := range u.Tables {
		if strings.EqualFold(m.Logical, logical) {
			return m.Actual, true
		}
	}
	return "", false
}

func (u *Unit) HasGroup(idx int) bool {
	for _, g := range u.Groups {
		if g == idx {
			return true
		}
	}
	return false
}

func (u *Unit) String() string {
	var sb strings.Builder
	sb.WriteString(u.DataSource)
	sb.WriteString("[")
	for i, m := range u.Tables {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(m.Logical)
		sb.WriteString("->")
		sb.WriteString(m.Actual)
	}
	sb.WriteString("]")
	return sb.String()
}

func (u *Unit) key() string {
	var sb strings.Builder
	sb.WriteString(u.DataSource)
	for _, m := range u.Tables {
		sb.WriteByte(0)
		sb.WriteString(strings.ToLower(m.Logical))
		sb.WriteByte('=')
		sb.WriteString(m.Actual)
	}
	return sb.String()
}

// Strings renders units for logging.
func Strings(units []*Unit) []string {
	res := make([]string, 0, len(units))
	for _, u := range units {
		res = append(res, u.String())
	}
	return res
}
