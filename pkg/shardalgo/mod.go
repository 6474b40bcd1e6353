package shardalgo

import (
	"math"
	"slices"

	"github.com/pg-sharding/spqrkernel/pkg/engine"
	"github.com/pg-sharding/spqrkernel/pkg/models/hashfunction"
	"github.com/pg-sharding/spqrkernel/pkg/models/shvalue"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

const (
	TypeMod     = "MOD"
	TypeHashMod = "HASH_MOD"

	PropShardingCount = "sharding-count"
	PropHashFunction  = "hash-function"
)

type ModAlgorithm struct {
	count int64
}

var _ PreciseAlgorithm = &ModAlgorithm{}
var _ RangeAlgorithm = &ModAlgorithm{}

func NewModAlgorithm(props Props) (Algorithm, error) {
	count, err := props.Int(PropShardingCount)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "%s must be positive", PropShardingCount)
	}
	return &ModAlgorithm{count: count}, nil
}

func (m *ModAlgorithm) Type() string {
	return TypeMod
}

func (m *ModAlgorithm) shard(v any) (int, error) {
	n, err := engine.ToInt64(v)
	if err != nil {
		return 0, spqrerror.Newf(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, "%s expects integer sharding values, got %T", TypeMod, v)
	}
	r := n % m.count
	if r < 0 {
		r = -r
	}
	return int(r), nil
}

func (m *ModAlgorithm) DoPreciseSharding(targets []string, v shvalue.Value) (string, bool, error) {
	idx, err := m.shard(v.Precise)
	if err != nil {
		return "", false, err
	}
	name, ok := TargetBySuffix(targets, idx)
	return name, ok, nil
}

func (m *ModAlgorithm) DoRangeSharding(targets []string, v shvalue.Value) ([]string, error) {
	if v.Lower.Unbounded || v.Upper.Unbounded {
		return slices.Clone(targets), nil
	}
	lo, err := engine.ToInt64(v.Lower.Value)
	if err != nil {
		return slices.Clone(targets), nil
	}
	hi, err := engine.ToInt64(v.Upper.Value)
	if err != nil {
		return slices.Clone(targets), nil
	}
	if !v.Lower.Inclusive {
		if lo == math.MaxInt64 {
			return nil, nil
		}
		lo++
	}
	if !v.Upper.Inclusive {
		if hi == math.MinInt64 {
			return nil, nil
		}
		hi--
	}
	if hi < lo {
		return nil, nil
	}
	/* unsigned width does not wrap for any lo <= hi */
	width := uint64(hi) - uint64(lo)
	if width >= uint64(m.count-1) {
		return slices.Clone(targets), nil
	}
	var res []string
	for i := uint64(0); i <= width; i++ {
		x := lo + int64(i)
		idx, err := m.shard(x)
		if err != nil {
			return nil, err
		}
		if name, ok := TargetBySuffix(targets, idx); ok && !slices.Contains(res, name) {
			res = append(res, name)
		}
	}
	return res, nil
}

type HashModAlgorithm struct {
	count int64
	hf    hashfunction.HashFunctionType
}

var _ PreciseAlgorithm = &HashModAlgorithm{}

func NewHashModAlgorithm(props Props) (Algorithm, error) {
	count, err := props.Int(PropShardingCount)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "%s must be positive", PropShardingCount)
	}
	hf, err := hashfunction.HashFunctionByName(props.String(PropHashFunction, "murmur"))
	if err != nil {
		return nil, spqrerror.New(spqrerror.SPQR_INVALID_RULE, err.Error())
	}
	return &HashModAlgorithm{count: count, hf: hf}, nil
}

func (h *HashModAlgorithm) Type() string {
	return TypeHashMod
}

func (h *HashModAlgorithm) DoPreciseSharding(targets []string, v shvalue.Value) (string, bool, error) {
	hv, err := hashfunction.ApplyHashFunction(v.Precise, h.hf)
	if err != nil {
		return "", false, spqrerror.New(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, err.Error())
	}
	name, ok := TargetBySuffix(targets, int(hv%uint64(h.count)))
	return name, ok, nil
}
