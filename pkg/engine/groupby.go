package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

// GroupKey encodes the values of the grouping columns of a row into a map
// key. Numerically equal values of different Go types share one key.
func GroupKey(row []any, idxs []int) (string, error) {
	var sb strings.Builder
	for _, idx := range idxs {
		if err := writeKeyPart(&sb, row[idx]); err != nil {
			return "", err
		}
		sb.WriteByte(0)
	}
	return sb.String(), nil
}

func writeKeyPart(sb *strings.Builder, v any) error {
	if v == nil {
		sb.WriteString("n")
		return nil
	}
	switch classify(v) {
	case classSigned, classUnsigned, classFloat, classDecimal:
		d, err := ToDecimal(v)
		if err != nil {
			return err
		}
		var reduced apd.Decimal
		reduced.Reduce(d)
		sb.WriteString("d:")
		sb.WriteString(reduced.Text('f'))
	case classString:
		sb.WriteString("s:")
		sb.WriteString(strconv.Quote(string(asBytes(v))))
	case classBool:
		sb.WriteString("b:")
		sb.WriteString(strconv.FormatBool(v.(bool)))
	case classTime:
		sb.WriteString("t:")
		sb.WriteString(v.(time.Time).UTC().Format(time.RFC3339Nano))
	default:
		return spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, "cannot group by value of type %T", v)
	}
	return nil
}
