package shardalgo

import (
	"slices"

	"github.com/pg-sharding/spqrkernel/pkg/models/hashfunction"
	"github.com/pg-sharding/spqrkernel/pkg/models/shvalue"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

const (
	TypeComplexHashMod = "COMPLEX_HASH_MOD"

	PropShardingColumns = "sharding-columns"
)

// ComplexHashModAlgorithm hashes the values of several columns together.
// Any column without discrete values makes every target a candidate.
type ComplexHashModAlgorithm struct {
	columns []string
	count   int64
}

var _ ComplexKeysAlgorithm = &ComplexHashModAlgorithm{}

func NewComplexHashModAlgorithm(props Props) (Algorithm, error) {
	cols := props.List(PropShardingColumns)
	if len(cols) == 0 {
		return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "property %q is required", PropShardingColumns)
	}
	count, err := props.Int(PropShardingCount)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "%s must be positive", PropShardingCount)
	}
	return &ComplexHashModAlgorithm{columns: cols, count: count}, nil
}

func (c *ComplexHashModAlgorithm) Type() string {
	return TypeComplexHashMod
}

func (c *ComplexHashModAlgorithm) DoComplexSharding(targets []string, v shvalue.Value) ([]string, error) {
	points := make([][]any, 0, len(c.columns))
	for _, col := range c.columns {
		kv, ok := v.Keys[col]
		if !ok {
			return slices.Clone(targets), nil
		}
		pts, discrete := kv.Points()
		if !discrete {
			return slices.Clone(targets), nil
		}
		points = append(points, pts)
	}

	var res []string
	var rec func(lvl int, acc uint64) error
	rec = func(lvl int, acc uint64) error {
		if lvl == len(points) {
			if name, ok := TargetBySuffix(targets, int(acc%uint64(c.count))); ok {
				res = append(res, name)
			}
			return nil
		}
		for _, p := range points[lvl] {
			h, err := hashfunction.ApplyMurmurHashFunction(p)
			if err != nil {
				return spqrerror.New(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, err.Error())
			}
			if err := rec(lvl+1, acc*31+uint64(h)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := rec(0, 0); err != nil {
		return nil, err
	}
	return res, nil
}
