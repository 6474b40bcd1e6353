package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/opentracing/opentracing-go"
	"github.com/pg-sharding/spqrkernel/pkg/config"
	"github.com/pg-sharding/spqrkernel/pkg/spqrlog"
	"github.com/pg-sharding/spqrkernel/router/merge"
	"github.com/pg-sharding/spqrkernel/router/plan"
	"github.com/pg-sharding/spqrkernel/router/relay"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

type execOptions struct {
	dsns        map[string]string
	parallelism int
	retries     uint64
	backoff     time.Duration
}

// jaegerLogger sends tracer messages to the kernel logger.
type jaegerLogger struct{}

func (jaegerLogger) Error(msg string) {
	spqrlog.Zero.Error().Msg(msg)
}

func (jaegerLogger) Infof(msg string, args ...interface{}) {
	spqrlog.Zero.Info().Msgf(msg, args...)
}

// initJaegerTracer installs a global tracer reporting to url. With no url
// the no-op tracer stays in place and the returned closer is nil.
func initJaegerTracer(url string) (io.Closer, error) {
	if url == "" {
		return nil, nil
	}
	cfg := jaegercfg.Configuration{
		ServiceName: "spqr-kernel",
		Sampler: &jaegercfg.SamplerConfig{
			Type:              "const",
			Param:             1,
			SamplingServerURL: url,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans: false,
		},
		Gen128Bit: true,
		Tags: []opentracing.Tag{
			{Key: "span.kind", Value: "client"},
		},
	}
	return cfg.InitGlobalTracer(
		"spqr-kernel",
		jaegercfg.Logger(jaegerLogger{}),
		jaegercfg.Metrics(metrics.NullFactory),
	)
}

// connectionStrings merges config connections with command line overrides.
func connectionStrings(cfg *config.ShardingCfg, overrides map[string]string) map[string]string {
	res := make(map[string]string, len(cfg.Connections)+len(overrides))
	for ds, dsn := range cfg.Connections {
		res[ds] = dsn
	}
	for ds, dsn := range overrides {
		res[ds] = dsn
	}
	return res
}

// connect opens one pool per datasource the plan touches.
func connect(ctx context.Context, dsns map[string]string, p *plan.ScatterPlan) (map[string]relay.PgxQuerier, func(), error) {
	pools := map[string]*pgxpool.Pool{}
	closeAll := func() {
		for _, pool := range pools {
			pool.Close()
		}
	}
	conns := map[string]relay.PgxQuerier{}
	for _, ds := range p.ExecutionTargets() {
		dsn, ok := dsns[ds]
		if !ok {
			closeAll()
			return nil, nil, errors.Errorf("no connection string for datasource %s", ds)
		}
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			closeAll()
			return nil, nil, errors.Wrapf(err, "connect to datasource %s", ds)
		}
		pools[ds] = pool
		conns[ds] = pool
	}
	return conns, closeAll, nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	}
	return fmt.Sprint(v)
}

// writeRows prints a header of column labels followed by tab separated rows.
func writeRows(w io.Writer, res merge.QueryResult) (int, error) {
	n := res.ColumnCount()
	cols := make([]string, n)
	for i := range cols {
		label, err := res.ColumnLabel(i + 1)
		if err != nil {
			return 0, err
		}
		cols[i] = label
	}
	if n > 0 {
		if _, err := fmt.Fprintln(w, strings.Join(cols, "\t")); err != nil {
			return 0, err
		}
	}

	rows := 0
	for {
		ok, err := res.Next()
		if err != nil {
			return rows, err
		}
		if !ok {
			return rows, nil
		}
		for i := range cols {
			v, err := res.Value(i + 1)
			if err != nil {
				return rows, err
			}
			cols[i] = formatValue(v)
		}
		if _, err := fmt.Fprintln(w, strings.Join(cols, "\t")); err != nil {
			return rows, err
		}
		rows++
	}
}

func newExecCmd(opts *options) *cobra.Command {
	eo := &execOptions{}
	cmd := &cobra.Command{
		Use:   "exec `statement-file`",
		Short: "run a statement on its shards and print the merged result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, qr, p, err := opts.plan(cmd, args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			closer, err := initJaegerTracer(cfg.JaegerConfig.JaegerUrl)
			if err != nil {
				return fmt.Errorf("could not initialize jaeger tracer: %s", err.Error())
			}
			if closer != nil {
				defer func() { _ = closer.Close() }()
			}

			conns, closeConns, err := connect(ctx, connectionStrings(cfg, eo.dsns), p)
			if err != nil {
				return err
			}
			defer closeConns()

			rs, err := relay.FanOut(ctx, p, relay.PgxExecutor{Conns: conns},
				relay.WithParallelism(eo.parallelism),
				relay.WithRetries(eo.retries, eo.backoff),
			)
			if err != nil {
				return errors.Wrap(err, "execute plan")
			}
			defer func() {
				if err := relay.CloseAll(rs); err != nil {
					spqrlog.Zero.Error().Err(err).Str("plan", p.ID).Msg("failed to close shard results")
				}
			}()

			res, err := qr.Merge(ctx, p, relay.Results(rs))
			if err != nil {
				return err
			}
			rows, err := writeRows(cmd.OutOrStdout(), res)
			if err != nil {
				return errors.Wrap(err, "read merged result")
			}
			spqrlog.Zero.Info().Str("plan", p.ID).Int("rows", rows).Int("units", len(p.SubPlans)).Msg("statement executed")
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&eo.dsns, "dsn", nil, "datasource connection strings, override config connections")
	cmd.Flags().IntVar(&eo.parallelism, "parallelism", 0, "max shard statements in flight, 0 is unlimited")
	cmd.Flags().Uint64Var(&eo.retries, "retries", 0, "retries of transient shard errors")
	cmd.Flags().DurationVar(&eo.backoff, "backoff", 100*time.Millisecond, "pause between retries")
	return cmd
}
