package shardalgo

import (
	"sync"

	"github.com/pg-sharding/spqrkernel/pkg/models/kr"
	"github.com/pg-sharding/spqrkernel/pkg/models/shvalue"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/pkg/spqrlog"
)

const (
	TypeVolumeRange   = "VOLUME_RANGE"
	TypeBoundaryRange = "BOUNDARY_RANGE"

	PropRangeLower     = "range-lower"
	PropRangeUpper     = "range-upper"
	PropShardingVolume = "sharding-volume"
	PropShardingRanges = "sharding-ranges"
)

/*
* partitionedAlgorithm holds the partition map shared by every statement
* using the algorithm instance. The map is built on first use and never
* changes afterwards.
 */
type partitionedAlgorithm struct {
	typ   string
	build func() ([]*kr.KeyRange, error)

	once    sync.Once
	pm      *kr.PartitionMap
	initErr error
}

var _ PreciseAlgorithm = &partitionedAlgorithm{}
var _ RangeAlgorithm = &partitionedAlgorithm{}

func (a *partitionedAlgorithm) Type() string {
	return a.typ
}

func (a *partitionedAlgorithm) partitions() (*kr.PartitionMap, error) {
	a.once.Do(func() {
		krs, err := a.build()
		if err != nil {
			a.initErr = err
			return
		}
		a.pm, a.initErr = kr.NewPartitionMap(krs)
		if a.initErr == nil {
			spqrlog.Zero.Debug().
				Str("algorithm", a.typ).
				Int("partitions", a.pm.Len()).
				Msg("built partition map")
		}
	})
	return a.pm, a.initErr
}

// PartitionMap exposes the lazily built partitions.
func (a *partitionedAlgorithm) PartitionMap() (*kr.PartitionMap, error) {
	return a.partitions()
}

func (a *partitionedAlgorithm) DoPreciseSharding(targets []string, v shvalue.Value) (string, bool, error) {
	pm, err := a.partitions()
	if err != nil {
		return "", false, err
	}
	idx, ok, err := pm.PartitionOf(v.Precise)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, spqrerror.Newf(spqrerror.SPQR_NO_PARTITION,
			"value %v of %s.%s matches no configured partition", v.Precise, v.Table, v.Column)
	}
	name, found := TargetBySuffix(targets, idx)
	return name, found, nil
}

func (a *partitionedAlgorithm) DoRangeSharding(targets []string, v shvalue.Value) ([]string, error) {
	pm, err := a.partitions()
	if err != nil {
		return nil, err
	}
	idxs, err := pm.Span(v.Lower, v.Upper)
	if err != nil {
		return nil, err
	}
	var res []string
	for _, idx := range idxs {
		if name, ok := TargetBySuffix(targets, idx); ok {
			res = append(res, name)
		}
	}
	return res, nil
}

func NewVolumeRangeAlgorithm(props Props) (Algorithm, error) {
	lower, err := props.Int(PropRangeLower)
	if err != nil {
		return nil, err
	}
	upper, err := props.Int(PropRangeUpper)
	if err != nil {
		return nil, err
	}
	volume, err := props.Int(PropShardingVolume)
	if err != nil {
		return nil, err
	}
	return &partitionedAlgorithm{
		typ: TypeVolumeRange,
		build: func() ([]*kr.KeyRange, error) {
			return kr.VolumePartitions(lower, upper, volume)
		},
	}, nil
}

func NewBoundaryRangeAlgorithm(props Props) (Algorithm, error) {
	bounds, err := props.Ints(PropShardingRanges)
	if err != nil {
		return nil, err
	}
	return &partitionedAlgorithm{
		typ: TypeBoundaryRange,
		build: func() ([]*kr.KeyRange, error) {
			return kr.BoundaryPartitions(bounds)
		},
	}, nil
}
