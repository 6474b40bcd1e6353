package engine

import (
	"bytes"
	"cmp"
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

type valueClass int

const (
	classSigned = valueClass(iota)
	classUnsigned
	classFloat
	classDecimal
	classString
	classBool
	classTime
	classUnknown
)

func classify(v any) valueClass {
	switch v.(type) {
	case int, int8, int16, int32, int64:
		return classSigned
	case uint, uint8, uint16, uint32, uint64:
		return classUnsigned
	case float32, float64:
		return classFloat
	case *apd.Decimal, apd.Decimal:
		return classDecimal
	case string, []byte:
		return classString
	case bool:
		return classBool
	case time.Time:
		return classTime
	default:
		return classUnknown
	}
}

func isNumeric(c valueClass) bool {
	return c <= classDecimal
}

// Comparable reports whether v can take part in ordering and range checks.
func Comparable(v any) bool {
	return classify(v) != classUnknown
}

/*
* Compare orders two non-null values. Numbers of different Go types are
* compared by value, strings and byte slices lexicographically.
 */
func Compare(l, r any) (int, error) {
	lc, rc := classify(l), classify(r)
	if lc == classUnknown || rc == classUnknown {
		return 0, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE,
			"values of type %T and %T are not comparable", l, r)
	}

	if isNumeric(lc) && isNumeric(rc) {
		return compareNumeric(l, lc, r, rc)
	}
	if lc != rc {
		return 0, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE,
			"values of type %T and %T are not comparable", l, r)
	}

	switch lc {
	case classString:
		return bytes.Compare(asBytes(l), asBytes(r)), nil
	case classBool:
		lb, rb := l.(bool), r.(bool)
		switch {
		case lb == rb:
			return 0, nil
		case !lb:
			return -1, nil
		default:
			return 1, nil
		}
	case classTime:
		return l.(time.Time).Compare(r.(time.Time)), nil
	}
	return 0, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, "unsupported value type %T", l)
}

// CompareWithNulls orders values treating nil as the smallest value when
// nullsFirst is set and as the greatest otherwise.
func CompareWithNulls(l, r any, nullsFirst bool) (int, error) {
	switch {
	case l == nil && r == nil:
		return 0, nil
	case l == nil:
		if nullsFirst {
			return -1, nil
		}
		return 1, nil
	case r == nil:
		if nullsFirst {
			return 1, nil
		}
		return -1, nil
	}
	return Compare(l, r)
}

func compareNumeric(l any, lc valueClass, r any, rc valueClass) (int, error) {
	switch {
	case lc == classSigned && rc == classSigned:
		return cmp.Compare(signed(l), signed(r)), nil
	case lc == classUnsigned && rc == classUnsigned:
		return cmp.Compare(unsigned(l), unsigned(r)), nil
	case lc == classSigned && rc == classUnsigned:
		lv := signed(l)
		if lv < 0 {
			return -1, nil
		}
		return cmp.Compare(uint64(lv), unsigned(r)), nil
	case lc == classUnsigned && rc == classSigned:
		rv := signed(r)
		if rv < 0 {
			return 1, nil
		}
		return cmp.Compare(unsigned(l), uint64(rv)), nil
	case lc != classDecimal && rc != classDecimal:
		lf, rf := float(l), float(r)
		if math.IsNaN(lf) || math.IsNaN(rf) {
			return 0, spqrerror.New(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, "NaN is not comparable")
		}
		return cmp.Compare(lf, rf), nil
	}

	ld, err := ToDecimal(l)
	if err != nil {
		return 0, err
	}
	rd, err := ToDecimal(r)
	if err != nil {
		return 0, err
	}
	return ld.Cmp(rd), nil
}

func asBytes(v any) []byte {
	switch t := v.(type) {
	case string:
		return []byte(t)
	case []byte:
		return t
	}
	return nil
}

func signed(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	}
	return 0
}

func unsigned(v any) uint64 {
	switch t := v.(type) {
	case uint:
		return uint64(t)
	case uint8:
		return uint64(t)
	case uint16:
		return uint64(t)
	case uint32:
		return uint64(t)
	case uint64:
		return t
	}
	return 0
}

func float(v any) float64 {
	switch t := v.(type) {
	case float32:
		return float64(t)
	case float64:
		return t
	}
	switch classify(v) {
	case classSigned:
		return float64(signed(v))
	case classUnsigned:
		return float64(unsigned(v))
	}
	return math.NaN()
}

// EqualFold compares column labels the way the merge engine resolves them.
func EqualFold(l, r string) bool {
	return strings.EqualFold(l, r)
}
