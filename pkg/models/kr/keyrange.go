package kr

import (
	"fmt"
	"sort"

	"github.com/pg-sharding/spqrkernel/pkg/engine"
	"github.com/pg-sharding/spqrkernel/pkg/models/shvalue"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

// KeyRangeBound is a numeric partition boundary. Infinite lower bounds
// mean -inf, infinite upper bounds mean +inf.
type KeyRangeBound struct {
	Value    int64
	Infinite bool
}

// KeyRange is the partition [LowerBound, UpperBound) with index ID.
type KeyRange struct {
	ID         int
	LowerBound KeyRangeBound
	UpperBound KeyRangeBound
}

func (kr *KeyRange) String() string {
	l, u := "-inf", "+inf"
	if !kr.LowerBound.Infinite {
		l = fmt.Sprintf("%d", kr.LowerBound.Value)
	}
	if !kr.UpperBound.Infinite {
		u = fmt.Sprintf("%d", kr.UpperBound.Value)
	}
	return fmt.Sprintf("%d:[%s, %s)", kr.ID, l, u)
}

// cmpLower returns the position of v relative to the lower bound.
func (kr *KeyRange) cmpLower(v any) (int, error) {
	if kr.LowerBound.Infinite {
		return 1, nil
	}
	return engine.Compare(v, kr.LowerBound.Value)
}

func (kr *KeyRange) cmpUpper(v any) (int, error) {
	if kr.UpperBound.Infinite {
		return -1, nil
	}
	return engine.Compare(v, kr.UpperBound.Value)
}

func (kr *KeyRange) Contains(v any) (bool, error) {
	lc, err := kr.cmpLower(v)
	if err != nil {
		return false, err
	}
	uc, err := kr.cmpUpper(v)
	if err != nil {
		return false, err
	}
	return lc >= 0 && uc < 0, nil
}

// PartitionMap is an immutable ordered set of contiguous key ranges.
type PartitionMap struct {
	ranges []*KeyRange
}

func NewPartitionMap(ranges []*KeyRange) (*PartitionMap, error) {
	if len(ranges) == 0 {
		return nil, spqrerror.New(spqrerror.SPQR_INVALID_RULE, "partition map must not be empty")
	}
	sorted := make([]*KeyRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for i, r := range sorted {
		if !r.LowerBound.Infinite && !r.UpperBound.Infinite && r.LowerBound.Value >= r.UpperBound.Value {
			return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "empty partition %s", r)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.UpperBound.Infinite || r.LowerBound.Infinite || prev.UpperBound.Value != r.LowerBound.Value {
			return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "partitions %s and %s are not contiguous", prev, r)
		}
	}
	return &PartitionMap{ranges: sorted}, nil
}

func (pm *PartitionMap) Len() int {
	return len(pm.ranges)
}

func (pm *PartitionMap) KeyRanges() []*KeyRange {
	return pm.ranges
}

// PartitionOf returns the index of the partition containing v.
func (pm *PartitionMap) PartitionOf(v any) (int, bool, error) {
	var searchErr error
	i := sort.Search(len(pm.ranges), func(i int) bool {
		c, err := pm.ranges[i].cmpUpper(v)
		if err != nil && searchErr == nil {
			searchErr = err
		}
		return c < 0
	})
	if searchErr != nil {
		return 0, false, searchErr
	}
	if i == len(pm.ranges) {
		return 0, false, nil
	}
	ok, err := pm.ranges[i].Contains(v)
	if err != nil || !ok {
		return 0, false, err
	}
	return pm.ranges[i].ID, true, nil
}

// Span returns the indexes of all partitions intersecting the range
// between lower and upper. Endpoints outside the map are clamped.
func (pm *PartitionMap) Span(lower, upper shvalue.Bound) ([]int, error) {
	first, last := 0, len(pm.ranges)-1
	if !lower.Unbounded {
		idx, err := pm.clamp(lower.Value)
		if err != nil {
			return nil, err
		}
		first = idx
	}
	if !upper.Unbounded {
		idx, err := pm.clamp(upper.Value)
		if err != nil {
			return nil, err
		}
		last = idx
		/* x < bound where bound opens the partition: that partition is not touched */
		if !upper.Inclusive && last > first {
			r := pm.ranges[last]
			if !r.LowerBound.Infinite {
				c, err := engine.Compare(upper.Value, r.LowerBound.Value)
				if err != nil {
					return nil, err
				}
				if c == 0 {
					last--
				}
			}
		}
	}
	if first > last {
		return nil, nil
	}
	res := make([]int, 0, last-first+1)
	for i := first; i <= last; i++ {
		res = append(res, pm.ranges[i].ID)
	}
	return res, nil
}

func (pm *PartitionMap) clamp(v any) (int, error) {
	for i, r := range pm.ranges {
		ok, err := r.Contains(v)
		if err != nil {
			return 0, err
		}
		if ok {
			return i, nil
		}
	}
	c, err := pm.ranges[0].cmpLower(v)
	if err != nil {
		return 0, err
	}
	if c < 0 {
		return 0, nil
	}
	return len(pm.ranges) - 1, nil
}

// VolumePartitions splits [lower, upper) into fixed width partitions with
// two open-ended partitions around it.
func VolumePartitions(lower, upper, volume int64) ([]*KeyRange, error) {
	if volume <= 0 || lower >= upper {
		return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE,
			"invalid volume range lower=%d upper=%d volume=%d", lower, upper, volume)
	}
	res := []*KeyRange{{
		ID:         0,
		LowerBound: KeyRangeBound{Infinite: true},
		UpperBound: KeyRangeBound{Value: lower},
	}}
	for cur := lower; cur < upper; {
		next := upper
		/* unsigned distance, cur + volume may not fit into int64 */
		if uint64(volume) < uint64(upper)-uint64(cur) {
			next = cur + volume
		}
		res = append(res, &KeyRange{
			ID:         len(res),
			LowerBound: KeyRangeBound{Value: cur},
			UpperBound: KeyRangeBound{Value: next},
		})
		cur = next
	}
	res = append(res, &KeyRange{
		ID:         len(res),
		LowerBound: KeyRangeBound{Value: upper},
		UpperBound: KeyRangeBound{Infinite: true},
	})
	return res, nil
}

// BoundaryPartitions builds partitions from strictly ascending boundaries.
func BoundaryPartitions(bounds []int64) ([]*KeyRange, error) {
	if len(bounds) == 0 {
		return nil, spqrerror.New(spqrerror.SPQR_INVALID_RULE, "sharding ranges must not be empty")
	}
	res := []*KeyRange{{
		ID:         0,
		LowerBound: KeyRangeBound{Infinite: true},
		UpperBound: KeyRangeBound{Value: bounds[0]},
	}}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] <= bounds[i-1] {
			return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "sharding ranges are not ascending at %d", bounds[i])
		}
		res = append(res, &KeyRange{
			ID:         i,
			LowerBound: KeyRangeBound{Value: bounds[i-1]},
			UpperBound: KeyRangeBound{Value: bounds[i]},
		})
	}
	res = append(res, &KeyRange{
		ID:         len(bounds),
		LowerBound: KeyRangeBound{Value: bounds[len(bounds)-1]},
		UpperBound: KeyRangeBound{Infinite: true},
	})
	return res, nil
}
