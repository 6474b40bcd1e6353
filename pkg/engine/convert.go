package engine

import (
	"fmt"
	"math"
	"strconv"

	"github.com/cockroachdb/apd/v3"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

// DecimalContext is used for all aggregate arithmetic. Division keeps
// enough digits for AVG over any realistic row count.
var DecimalContext = apd.BaseContext.WithPrecision(34)

type Kind int

const (
	KindAny = Kind(iota)
	KindInt64
	KindUint64
	KindFloat64
	KindDecimal
	KindString
	KindBytes
	KindBool
)

// ToDecimal converts a numeric value (or its textual form) to a decimal.
func ToDecimal(v any) (*apd.Decimal, error) {
	d := new(apd.Decimal)
	switch t := v.(type) {
	case *apd.Decimal:
		return d.Set(t), nil
	case apd.Decimal:
		return d.Set(&t), nil
	case float32:
		return d.SetFloat64(float64(t))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, "cannot aggregate %v", t)
		}
		return d.SetFloat64(t)
	case string:
		res, _, err := d.SetString(t)
		if err != nil {
			return nil, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, "cannot convert %q to decimal", t)
		}
		return res, nil
	case []byte:
		return ToDecimal(string(t))
	}

	switch classify(v) {
	case classSigned:
		return d.SetInt64(signed(v)), nil
	case classUnsigned:
		u := unsigned(v)
		if _, _, err := d.SetString(strconv.FormatUint(u, 10)); err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, "cannot convert value of type %T to decimal", v)
}

// ToInt64 converts integral values, decimals without fractional part and
// their textual forms to int64.
func ToInt64(v any) (int64, error) {
	switch classify(v) {
	case classSigned:
		return signed(v), nil
	case classUnsigned:
		u := unsigned(v)
		if u > math.MaxInt64 {
			return 0, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, "value %d overflows int64", u)
		}
		return int64(u), nil
	}
	d, err := ToDecimal(v)
	if err != nil {
		return 0, err
	}
	return d.Int64()
}

// Convert coerces v into the Go representation selected by kind. Nil is
// passed through for every kind.
func Convert(v any, kind Kind) (any, error) {
	if v == nil || kind == KindAny {
		return v, nil
	}
	switch kind {
	case KindInt64:
		return ToInt64(v)
	case KindUint64:
		n, err := ToInt64(v)
		if err != nil {
			if u, ok := v.(uint64); ok {
				return u, nil
			}
			return nil, err
		}
		if n < 0 {
			return nil, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, "negative value %d for unsigned kind", n)
		}
		return uint64(n), nil
	case KindFloat64:
		d, err := ToDecimal(v)
		if err != nil {
			return nil, err
		}
		return d.Float64()
	case KindDecimal:
		return ToDecimal(v)
	case KindString:
		switch t := v.(type) {
		case string:
			return t, nil
		case []byte:
			return string(t), nil
		case *apd.Decimal:
			return t.String(), nil
		}
		return fmt.Sprint(v), nil
	case KindBytes:
		switch t := v.(type) {
		case []byte:
			return t, nil
		case string:
			return []byte(t), nil
		}
		return []byte(fmt.Sprint(v)), nil
	case KindBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			return strconv.ParseBool(t)
		}
		n, err := ToInt64(v)
		if err != nil {
			return nil, err
		}
		return n != 0, nil
	}
	return nil, fmt.Errorf("unknown value kind %d", kind)
}
