package statistics

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/caio/go-tdigest"
)

// StatisticsType names a stage of statement processing.
type StatisticsType string

const (
	StatisticsTypeRoute   = StatisticsType("route")
	StatisticsTypeRewrite = StatisticsType("rewrite")
	StatisticsTypeExecute = StatisticsType("execute")
	StatisticsTypeMerge   = StatisticsType("merge")
)

type statistics struct {
	mu                sync.Mutex
	total             map[StatisticsType]*tdigest.TDigest
	Quantiles         []float64
	QuantilesStr      []string
	NeedToCollectData bool
}

var queryStatistics = statistics{
	total: map[StatisticsType]*tdigest.TDigest{},
}

// InitStatistics sets the reported quantiles and drops collected totals.
// An empty list disables collection.
func InitStatistics(q []float64) {
	queryStatistics.mu.Lock()
	defer queryStatistics.mu.Unlock()

	queryStatistics.Quantiles = q
	queryStatistics.QuantilesStr = make([]string, len(q))
	for i, v := range q {
		queryStatistics.QuantilesStr[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	queryStatistics.NeedToCollectData = len(q) > 0
	queryStatistics.total = map[StatisticsType]*tdigest.TDigest{}
}

func InitStatisticsStr(q []string) error {
	qs := make([]float64, len(q))
	for i, qStr := range q {
		var err error
		qs[i], err = strconv.ParseFloat(qStr, 64)
		if err != nil {
			return fmt.Errorf("could not parse time quantile to float: \"%s\"", qStr)
		}
	}
	InitStatistics(qs)
	queryStatistics.mu.Lock()
	queryStatistics.QuantilesStr = q
	queryStatistics.mu.Unlock()
	return nil
}

func GetQuantiles() *[]float64 {
	return &queryStatistics.Quantiles
}

func GetQuantilesStr() *[]string {
	return &queryStatistics.QuantilesStr
}

func collecting() bool {
	queryStatistics.mu.Lock()
	defer queryStatistics.mu.Unlock()
	return queryStatistics.NeedToCollectData
}

func RecordStartTime(statType StatisticsType, t time.Time, h StatHolder) {
	if h == nil || !collecting() {
		return
	}
	h.RecordStartTime(statType, t)
}

// RecordFinished closes the pending stage of h started with RecordStartTime.
func RecordFinished(statType StatisticsType, t time.Time, h StatHolder) {
	if h == nil {
		return
	}
	start, ok := h.TakeStartTime(statType)
	if !ok || start.IsZero() {
		return
	}
	d := t.Sub(start)
	observeStage(statType, d)

	ms := float64(d.Microseconds()) / 1000
	_ = h.Add(statType, ms)

	queryStatistics.mu.Lock()
	defer queryStatistics.mu.Unlock()
	td, ok := queryStatistics.total[statType]
	if !ok {
		td, _ = tdigest.New()
		queryStatistics.total[statType] = td
	}
	_ = td.Add(ms)
}

func GetTimeQuantile(statType StatisticsType, q float64, h StatHolder) float64 {
	if h == nil || !collecting() {
		return 0
	}
	return h.GetTimeQuantile(statType, q)
}

func GetTotalTimeQuantile(statType StatisticsType, q float64) float64 {
	queryStatistics.mu.Lock()
	defer queryStatistics.mu.Unlock()
	if !queryStatistics.NeedToCollectData {
		return 0
	}
	td, ok := queryStatistics.total[statType]
	if !ok {
		return 0
	}
	return td.Quantile(q)
}
