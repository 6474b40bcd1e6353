package relay

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pg-sharding/spqrkernel/pkg/spqrlog"
	"github.com/pg-sharding/spqrkernel/router/merge"
	"github.com/pg-sharding/spqrkernel/router/plan"
	"github.com/pg-sharding/spqrkernel/router/statistics"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

// ShardResult is an open shard cursor. The caller closes it after the
// merged result is drained.
type ShardResult interface {
	merge.QueryResult
	Close() error
}

type ShardExecutor interface {
	Query(ctx context.Context, sp *plan.ShardPlan) (ShardResult, error)
}

type ShardExecutorFunc func(ctx context.Context, sp *plan.ShardPlan) (ShardResult, error)

func (f ShardExecutorFunc) Query(ctx context.Context, sp *plan.ShardPlan) (ShardResult, error) {
	return f(ctx, sp)
}

type options struct {
	retries     uint64
	backoff     time.Duration
	parallelism int
	tracer      opentracing.Tracer
	transient   func(error) bool
	stats       statistics.StatHolder
}

type Option func(*options)

// WithRetries retries a failed shard query up to n more times when the
// error is transient.
func WithRetries(n uint64, backoff time.Duration) Option {
	return func(o *options) {
		o.retries = n
		o.backoff = backoff
	}
}

// WithParallelism bounds the number of concurrently running shard queries.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

func WithTracer(t opentracing.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithStatHolder collects execute stage durations into h as well as into
// the totals.
func WithStatHolder(h statistics.StatHolder) Option {
	return func(o *options) {
		o.stats = h
	}
}

func WithTransient(f func(error) bool) Option {
	return func(o *options) {
		o.transient = f
	}
}

// IsTransient reports errors after which a query can be sent again
// without side effects.
func IsTransient(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || pgconn.SafeToRetry(err)
}

/*
* FanOut runs every shard statement of p concurrently and returns open
* cursors in unit order. If any statement fails, cursors already opened
* are closed and the first error is returned.
 */
func FanOut(ctx context.Context, p *plan.ScatterPlan, exec ShardExecutor, opts ...Option) ([]ShardResult, error) {
	o := options{
		backoff:   100 * time.Millisecond,
		tracer:    opentracing.GlobalTracer(),
		transient: IsTransient,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.backoff <= 0 {
		o.backoff = time.Millisecond
	}

	statistics.ScatterStarted()
	defer statistics.ScatterFinished()

	h := o.stats
	if h == nil {
		h = statistics.NewTimings()
	}
	statistics.RecordStartTime(statistics.StatisticsTypeExecute, time.Now(), h)
	defer func() {
		statistics.RecordFinished(statistics.StatisticsTypeExecute, time.Now(), h)
	}()

	results := make([]ShardResult, len(p.SubPlans))
	// cursors outlive Wait, a group context would be canceled under them
	var g errgroup.Group
	if o.parallelism > 0 {
		g.SetLimit(o.parallelism)
	}
	for i, sp := range p.SubPlans {
		g.Go(func() error {
			res, err := query(ctx, &o, p.ID, sp, exec)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, r := range results {
			if r == nil {
				continue
			}
			if cerr := r.Close(); cerr != nil {
				spqrlog.Zero.Error().Err(cerr).Str("plan", p.ID).Msg("failed to close shard result")
			}
		}
		return nil, err
	}
	return results, nil
}

func query(ctx context.Context, o *options, planID string, sp *plan.ShardPlan, exec ShardExecutor) (ShardResult, error) {
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, o.tracer, "shard query")
	defer span.Finish()
	span.SetTag("plan", planID)
	span.SetTag("datasource", sp.DataSource)
	ext.DBStatement.Set(span, sp.Query)

	var res ShardResult
	attempt := 0
	b := retry.WithMaxRetries(o.retries, retry.NewConstant(o.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		var err error
		res, err = exec.Query(ctx, sp)
		if err == nil {
			return nil
		}
		spqrlog.Zero.Debug().
			Err(err).
			Str("plan", planID).
			Str("datasource", sp.DataSource).
			Int("attempt", attempt).
			Msg("shard query failed")
		if o.transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		ext.LogError(span, err)
		return nil, err
	}
	return res, nil
}

// Results exposes shard cursors to the merge engine.
func Results(rs []ShardResult) []merge.QueryResult {
	res := make([]merge.QueryResult, len(rs))
	for i, r := range rs {
		res[i] = r
	}
	return res
}

// CloseAll closes every cursor and returns the first error.
func CloseAll(rs []ShardResult) error {
	var first error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
