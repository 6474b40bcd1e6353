package keygen

import (
	"context"
	"fmt"
	"sync"

	"github.com/pg-sharding/spqrkernel/pkg/models/shrule"
)

const DEFAULT_ID_RANGE_SIZE uint64 = 1

// IdRange is the closed interval [Left, Right] of reserved identifiers.
type IdRange struct {
	Left  int64
	Right int64
}

// RangeSource hands out disjoint identifier ranges for a sequence.
type RangeSource interface {
	NextRange(ctx context.Context, sequenceName string, rangeSize uint64) (*IdRange, error)
}

type LocalRangeSource struct {
	mu   sync.Mutex
	next map[string]int64
	from int64
}

var _ RangeSource = &LocalRangeSource{}

func NewLocalRangeSource(start int64) *LocalRangeSource {
	return &LocalRangeSource{next: map[string]int64{}, from: start}
}

func (s *LocalRangeSource) NextRange(_ context.Context, sequenceName string, rangeSize uint64) (*IdRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	left, ok := s.next[sequenceName]
	if !ok {
		left = s.from
	}
	right := left + int64(rangeSize) - 1
	s.next[sequenceName] = right + 1
	return &IdRange{Left: left, Right: right}, nil
}

type cachedIdRange struct {
	idRange *IdRange
	mu      sync.Mutex
}

func (cir *cachedIdRange) nextVal() (int64, bool) {
	if cir.idRange == nil {
		return 0, false
	}
	if cir.idRange.Left < cir.idRange.Right {
		res := cir.idRange.Left
		cir.idRange.Left++
		return res, true
	} else if cir.idRange.Left == cir.idRange.Right {
		res := cir.idRange.Left
		cir.idRange = nil // the range is over
		return res, true
	}
	return 0, false
}

// SequenceGenerator caches a range of identifiers and asks its source for
// a new one when the range is exhausted.
type SequenceGenerator struct {
	name      string
	rangeSize uint64
	src       RangeSource
	rng       cachedIdRange
}

var _ shrule.KeyGenerator = &SequenceGenerator{}

func NewSequenceGenerator(name string, rangeSize uint64, src RangeSource) *SequenceGenerator {
	if rangeSize == 0 {
		rangeSize = DEFAULT_ID_RANGE_SIZE
	}
	return &SequenceGenerator{name: name, rangeSize: rangeSize, src: src}
}

func (g *SequenceGenerator) Type() string {
	return TypeSequence
}

func (g *SequenceGenerator) NextKey() (any, error) {
	return g.NextVal(context.Background())
}

func (g *SequenceGenerator) NextVal(ctx context.Context) (int64, error) {
	g.rng.mu.Lock()
	defer g.rng.mu.Unlock()
	if nextVal, ok := g.rng.nextVal(); ok {
		return nextVal, nil
	}
	newRange, err := g.src.NextRange(ctx, g.name, g.rangeSize)
	if err != nil {
		return 0, err
	}
	g.rng.idRange = newRange
	if nextVal, ok := g.rng.nextVal(); ok {
		return nextVal, nil
	}
	return 0, fmt.Errorf("can`t get next value from fresh id range! sequence='%s'", g.name)
}
