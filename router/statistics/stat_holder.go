package statistics

import (
	"sync"
	"time"

	"github.com/caio/go-tdigest"
)

type StatHolder interface {
	// add quantile to stat holder
	Add(statType StatisticsType, value float64) error

	RecordStartTime(statType StatisticsType, t time.Time)
	// TakeStartTime returns and forgets the pending start of a stage
	TakeStartTime(statType StatisticsType) (time.Time, bool)
	GetTimeQuantile(statType StatisticsType, q float64) float64
}

// Timings keeps stage durations, in milliseconds, of one source of
// statements, usually a logical table.
type Timings struct {
	mu      sync.Mutex
	digests map[StatisticsType]*tdigest.TDigest
	starts  map[StatisticsType]time.Time
}

var _ StatHolder = &Timings{}

func NewTimings() *Timings {
	return &Timings{
		digests: map[StatisticsType]*tdigest.TDigest{},
		starts:  map[StatisticsType]time.Time{},
	}
}

func (t *Timings) Add(statType StatisticsType, value float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	td, ok := t.digests[statType]
	if !ok {
		var err error
		if td, err = tdigest.New(); err != nil {
			return err
		}
		t.digests[statType] = td
	}
	return td.Add(value)
}

func (t *Timings) RecordStartTime(statType StatisticsType, tm time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.starts[statType] = tm
}

func (t *Timings) TakeStartTime(statType StatisticsType) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tm, ok := t.starts[statType]
	delete(t.starts, statType)
	return tm, ok
}

func (t *Timings) GetTimeQuantile(statType StatisticsType, q float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	td, ok := t.digests[statType]
	if !ok {
		return 0
	}
	return td.Quantile(q)
}
