package shardalgo

import (
	"slices"
	"strconv"
	"strings"

	"github.com/pg-sharding/spqrkernel/pkg/models/shvalue"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/pkg/spqrlog"
)

type Algorithm interface {
	Type() string
}

// PreciseAlgorithm maps one value onto one of the available targets.
// ok is false when no target matches, which is not an error by itself.
type PreciseAlgorithm interface {
	Algorithm
	DoPreciseSharding(targets []string, v shvalue.Value) (target string, ok bool, err error)
}

type RangeAlgorithm interface {
	Algorithm
	DoRangeSharding(targets []string, v shvalue.Value) ([]string, error)
}

// ComplexKeysAlgorithm decides on several columns at once.
type ComplexKeysAlgorithm interface {
	Algorithm
	DoComplexSharding(targets []string, v shvalue.Value) ([]string, error)
}

/*
* DoSharding dispatches a sharding value to the matching contract of alg
* and verifies every returned name is one of the available targets.
* The result keeps the order of targets and contains no duplicates.
 */
func DoSharding(alg Algorithm, targets []string, v shvalue.Value) ([]string, error) {
	var res []string

	switch v.Kind {
	case shvalue.Precise, shvalue.List:
		palg, ok := alg.(PreciseAlgorithm)
		if !ok {
			return nil, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE,
				"algorithm %s does not accept %s sharding values", alg.Type(), v.Kind)
		}
		pts, _ := v.Points()
		for _, p := range pts {
			pv, err := shvalue.NewPrecise(v.Table, v.Column, p)
			if err != nil {
				return nil, err
			}
			name, ok, err := palg.DoPreciseSharding(targets, pv)
			if err != nil {
				return nil, err
			}
			if ok {
				res = append(res, name)
			}
		}
	case shvalue.Range:
		ralg, ok := alg.(RangeAlgorithm)
		if !ok {
			/* algorithm cannot narrow ranges, every target may hold matching rows */
			return slices.Clone(targets), nil
		}
		names, err := ralg.DoRangeSharding(targets, v)
		if err != nil {
			return nil, err
		}
		res = names
	case shvalue.ComplexKeys:
		calg, ok := alg.(ComplexKeysAlgorithm)
		if !ok {
			return nil, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE,
				"algorithm %s does not accept complex sharding values", alg.Type())
		}
		names, err := calg.DoComplexSharding(targets, v)
		if err != nil {
			return nil, err
		}
		res = names
	default:
		return nil, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, "unknown sharding value kind %d", int(v.Kind))
	}

	return normalizeTargets(alg, targets, res)
}

func normalizeTargets(alg Algorithm, targets []string, names []string) ([]string, error) {
	chosen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if !slices.Contains(targets, n) {
			spqrlog.Zero.Error().
				Str("algorithm", alg.Type()).
				Str("target", n).
				Strs("available", targets).
				Msg("sharding algorithm returned unknown target")
			return nil, spqrerror.Newf(spqrerror.SPQR_TARGET_OUT_OF_RANGE,
				"algorithm %s returned target %q outside of available targets %v", alg.Type(), n, targets)
		}
		chosen[n] = struct{}{}
	}
	res := make([]string, 0, len(chosen))
	for _, t := range targets {
		if _, ok := chosen[t]; ok {
			res = append(res, t)
		}
	}
	return res, nil
}

// TargetSuffix parses the trailing digits of a target name, so that
// "t_order_1" and "ds1" both map onto index 1 and "t_order_11" onto 11.
func TargetSuffix(name string) (int, bool) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return 0, false
	}
	n, err := strconv.Atoi(name[i:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// TargetBySuffix finds the target whose numeric suffix equals idx.
func TargetBySuffix(targets []string, idx int) (string, bool) {
	for _, t := range targets {
		if n, ok := TargetSuffix(t); ok && n == idx {
			return t, true
		}
	}
	return "", false
}

// Props are algorithm properties as written in the rule configuration.
type Props map[string]string

func (p Props) Int(key string) (int64, error) {
	raw, ok := p[key]
	if !ok {
		return 0, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "property %q is required", key)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "property %q is not an integer: %q", key, raw)
	}
	return v, nil
}

func (p Props) String(key, def string) string {
	if raw, ok := p[key]; ok {
		return strings.TrimSpace(raw)
	}
	return def
}

func (p Props) List(key string) []string {
	raw, ok := p[key]
	if !ok {
		return nil
	}
	var res []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}

func (p Props) Ints(key string) ([]int64, error) {
	parts := p.List(key)
	if len(parts) == 0 {
		return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "property %q is required", key)
	}
	res := make([]int64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "property %q contains non-integer %q", key, part)
		}
		res = append(res, v)
	}
	return res, nil
}
