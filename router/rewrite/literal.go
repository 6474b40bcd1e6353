package rewrite

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
)

func quoteIdentifier(d stmtctx.Dialect, name string) string {
	switch d {
	case stmtctx.DialectPostgres:
		return pq.QuoteIdentifier(name)
	case stmtctx.DialectMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case stmtctx.DialectSQLServer:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

func quoteLiteral(d stmtctx.Dialect, s string) string {
	if d == stmtctx.DialectPostgres {
		return pq.QuoteLiteral(s)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// formatLiteral renders a generated value as SQL literal text.
func formatLiteral(d stmtctx.Dialect, v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return quoteLiteral(d, v)
	case []byte:
		return quoteLiteral(d, string(v))
	case time.Time:
		return quoteLiteral(d, v.Format(time.RFC3339Nano))
	default:
		return quoteLiteral(d, fmt.Sprint(v))
	}
}
