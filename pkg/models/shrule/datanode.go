package shrule

import (
	"strconv"
	"strings"

	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

// DataNode is one physical table placed on one datasource.
type DataNode struct {
	DataSource string
	Table      string
}

func ParseDataNode(s string) (DataNode, error) {
	s = strings.TrimSpace(s)
	ds, tbl, ok := strings.Cut(s, ".")
	if !ok || ds == "" || tbl == "" || strings.Contains(tbl, ".") {
		return DataNode{}, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "invalid data node %q, expected <datasource>.<table>", s)
	}
	return DataNode{DataSource: ds, Table: tbl}, nil
}

func (d DataNode) String() string {
	return d.DataSource + "." + d.Table
}

/*
* ExpandInline expands an inline expression such as
* "ds${0..1}.t_order_${0..1}" into every combination, leftmost placeholder
* varying slowest. Top level commas separate independent expressions.
* A placeholder is either an integer range ${a..b} or a list ${[x, y]}.
 */
func ExpandInline(expr string) ([]string, error) {
	var res []string
	for _, part := range splitTopLevel(expr) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		expanded, err := expandOne(part)
		if err != nil {
			return nil, err
		}
		res = append(res, expanded...)
	}
	return res, nil
}

func splitTopLevel(expr string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, expr[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, expr[start:])
}

func expandOne(expr string) ([]string, error) {
	open := strings.Index(expr, "${")
	if open < 0 {
		return []string{expr}, nil
	}
	end := strings.IndexByte(expr[open:], '}')
	if end < 0 {
		return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "unterminated placeholder in %q", expr)
	}
	end += open

	choices, err := placeholderValues(expr[open+2 : end])
	if err != nil {
		return nil, err
	}
	rest, err := expandOne(expr[end+1:])
	if err != nil {
		return nil, err
	}

	prefix := expr[:open]
	res := make([]string, 0, len(choices)*len(rest))
	for _, c := range choices {
		for _, r := range rest {
			res = append(res, prefix+c+r)
		}
	}
	return res, nil
}

func placeholderValues(body string) ([]string, error) {
	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "[") && strings.HasSuffix(body, "]") {
		var res []string
		for _, item := range strings.Split(body[1:len(body)-1], ",") {
			item = strings.Trim(strings.TrimSpace(item), `'"`)
			if item == "" {
				return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "empty item in placeholder ${%s}", body)
			}
			res = append(res, item)
		}
		return res, nil
	}

	lo, hi, ok := strings.Cut(body, "..")
	if !ok {
		return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "unsupported placeholder ${%s}", body)
	}
	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "invalid range start in ${%s}", body)
	}
	to, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "invalid range end in ${%s}", body)
	}
	if to < from {
		return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "descending range in ${%s}", body)
	}
	res := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		res = append(res, strconv.Itoa(i))
	}
	return res, nil
}

// ParseDataNodes expands expr and parses every resulting data node.
func ParseDataNodes(expr string) ([]DataNode, error) {
	names, err := ExpandInline(expr)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "data node expression %q is empty", expr)
	}
	res := make([]DataNode, 0, len(names))
	for _, n := range names {
		dn, err := ParseDataNode(n)
		if err != nil {
			return nil, err
		}
		res = append(res, dn)
	}
	return res, nil
}
