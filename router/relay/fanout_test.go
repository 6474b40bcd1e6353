package relay_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/pg-sharding/spqrkernel/pkg/tupleslot"
	"github.com/pg-sharding/spqrkernel/router/merge"
	"github.com/pg-sharding/spqrkernel/router/plan"
	"github.com/pg-sharding/spqrkernel/router/relay"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
)

type slotResult struct {
	*merge.SlotResult
	closed *atomic.Int32
}

func (r slotResult) Close() error {
	r.closed.Inc()
	return nil
}

func newResult(closed *atomic.Int32, vals ...any) relay.ShardResult {
	s := tupleslot.New([]string{"v"})
	for _, v := range vals {
		s.WriteDataRow(v)
	}
	return slotResult{SlotResult: merge.NewSlotResult(s), closed: closed}
}

func scatter(datasources ...string) *plan.ScatterPlan {
	p := plan.NewScatterPlan(&stmtctx.Statement{SQL: "SELECT v FROM t"}, nil)
	for _, ds := range datasources {
		p.Add(&plan.ShardPlan{DataSource: ds, Query: "SELECT v FROM t"})
	}
	return p
}

func TestFanOutKeepsUnitOrder(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)

	delays := map[string]time.Duration{"ds0": 30 * time.Millisecond, "ds1": 15 * time.Millisecond, "ds2": 0}
	closed := atomic.NewInt32(0)
	exec := relay.ShardExecutorFunc(func(ctx context.Context, sp *plan.ShardPlan) (relay.ShardResult, error) {
		time.Sleep(delays[sp.DataSource])
		return newResult(closed, sp.DataSource), nil
	})
	tracer := mocktracer.New()

	rs, err := relay.FanOut(context.Background(), scatter("ds0", "ds1", "ds2"), exec, relay.WithTracer(tracer))
	require.NoError(t, err)
	require.Len(t, rs, 3)

	for i, r := range rs {
		ok, err := r.Next()
		require.NoError(t, err)
		require.True(t, ok)
		v, err := r.Value(1)
		require.NoError(t, err)
		assert.Equal(fmt.Sprintf("ds%d", i), v)
	}
	assert.NoError(relay.CloseAll(rs))
	assert.Equal(int32(3), closed.Load())

	spans := tracer.FinishedSpans()
	assert.Len(spans, 3)
	for _, s := range spans {
		assert.Equal("shard query", s.OperationName)
		assert.NotNil(s.Tag("datasource"))
	}
}

func TestFanOutClosesOpenedOnError(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("boom")
	opened := atomic.NewInt32(0)
	closed := atomic.NewInt32(0)
	exec := relay.ShardExecutorFunc(func(ctx context.Context, sp *plan.ShardPlan) (relay.ShardResult, error) {
		if sp.DataSource == "ds1" {
			return nil, boom
		}
		opened.Inc()
		return newResult(closed, 1), nil
	})

	rs, err := relay.FanOut(context.Background(), scatter("ds0", "ds1", "ds2"), exec)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, rs)
	assert.Equal(t, opened.Load(), closed.Load())
}

func TestFanOutRetries(t *testing.T) {
	defer goleak.VerifyNone(t)

	errTransient := errors.New("connection reset")
	errPermanent := errors.New("syntax error")

	for _, tt := range []struct {
		name     string
		fail     error
		retries  uint64
		attempts int32
		err      error
	}{
		{name: "transient error is retried", fail: errTransient, retries: 2, attempts: 2},
		{name: "permanent error is not retried", fail: errPermanent, retries: 2, attempts: 1, err: errPermanent},
		{name: "retries are off by default", fail: errTransient, retries: 0, attempts: 1, err: errTransient},
	} {
		t.Run(tt.name, func(t *testing.T) {
			attempts := atomic.NewInt32(0)
			closed := atomic.NewInt32(0)
			exec := relay.ShardExecutorFunc(func(ctx context.Context, sp *plan.ShardPlan) (relay.ShardResult, error) {
				if attempts.Inc() == 1 {
					return nil, tt.fail
				}
				return newResult(closed, 1), nil
			})

			rs, err := relay.FanOut(context.Background(), scatter("ds0"), exec,
				relay.WithRetries(tt.retries, time.Millisecond),
				relay.WithTransient(func(err error) bool { return errors.Is(err, errTransient) }))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
				assert.Len(t, rs, 1)
			}
			assert.Equal(t, tt.attempts, attempts.Load())
		})
	}
}

func TestFanOutParallelism(t *testing.T) {
	defer goleak.VerifyNone(t)

	running := atomic.NewInt32(0)
	peak := atomic.NewInt32(0)
	closed := atomic.NewInt32(0)
	exec := relay.ShardExecutorFunc(func(ctx context.Context, sp *plan.ShardPlan) (relay.ShardResult, error) {
		n := running.Inc()
		defer running.Dec()
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return newResult(closed), nil
	})

	rs, err := relay.FanOut(context.Background(), scatter("ds0", "ds1", "ds2", "ds3"), exec, relay.WithParallelism(1))
	require.NoError(t, err)
	assert.Len(t, rs, 4)
	assert.Equal(t, int32(1), peak.Load())
}

func TestIsTransient(t *testing.T) {
	assert := assert.New(t)

	assert.True(relay.IsTransient(driver.ErrBadConn))
	assert.True(relay.IsTransient(fmt.Errorf("ds0: %w", driver.ErrBadConn)))
	assert.False(relay.IsTransient(errors.New("duplicate key")))
}
