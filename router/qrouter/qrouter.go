package qrouter

import (
	"context"
	"sync"
	"time"

	"github.com/pg-sharding/spqrkernel/pkg/config"
	"github.com/pg-sharding/spqrkernel/pkg/models/shrule"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/pkg/shardalgo"
	"github.com/pg-sharding/spqrkernel/pkg/spqrlog"
	"github.com/pg-sharding/spqrkernel/router/merge"
	"github.com/pg-sharding/spqrkernel/router/plan"
	"github.com/pg-sharding/spqrkernel/router/rewrite"
	"github.com/pg-sharding/spqrkernel/router/route"
	"github.com/pg-sharding/spqrkernel/router/statistics"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
)

type QueryRouter interface {
	// Plan routes and rewrites stmt, returning one shard statement per
	// routing unit.
	Plan(ctx context.Context, stmt *stmtctx.Statement, params []any) (*plan.ScatterPlan, error)
	// Merge combines shard results of p, given in the order of p.SubPlans.
	Merge(ctx context.Context, p *plan.ScatterPlan, results []merge.QueryResult) (merge.QueryResult, error)

	Rule() *shrule.ShardingRule
}

type ShardingQrouter struct {
	rule     *shrule.ShardingRule
	router   *route.Engine
	rewriter *rewrite.Engine

	// logical table name -> *statistics.Timings
	timings sync.Map
}

var _ QueryRouter = &ShardingQrouter{}

func NewQrouter(rule *shrule.ShardingRule) *ShardingQrouter {
	return &ShardingQrouter{
		rule:     rule,
		router:   route.NewEngine(rule),
		rewriter: rewrite.NewEngine(),
	}
}

/*
* NewQrouterFromConfig builds the sharding rule of cfg and applies its
* ambient settings: log destination and level, statistics quantiles and
* the slow route threshold.
 */
func NewQrouterFromConfig(cfg *config.ShardingCfg, registry *shardalgo.Registry) (*ShardingQrouter, error) {
	spqrlog.ReloadLogger(cfg.LogFile, cfg.PrettyLogging)
	if cfg.LogLevel != "" {
		if err := spqrlog.UpdateZeroLogLevel(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	rule, err := cfg.Build(registry)
	if err != nil {
		return nil, err
	}
	statistics.InitStatistics(cfg.Statistics.Quantiles)
	spqrlog.ReloadRLogger(cfg.RouteLogThreshold())
	return NewQrouter(rule), nil
}

func (qr *ShardingQrouter) Rule() *shrule.ShardingRule {
	return qr.rule
}

// Timings returns collected stage durations of statements whose first
// logical table is table.
func (qr *ShardingQrouter) Timings(table string) statistics.StatHolder {
	h, _ := qr.timings.LoadOrStore(table, statistics.NewTimings())
	return h.(statistics.StatHolder)
}

func (qr *ShardingQrouter) holder(stmt *stmtctx.Statement) statistics.StatHolder {
	tables := stmt.LogicTables()
	if len(tables) == 0 {
		return nil
	}
	return qr.Timings(tables[0])
}

func (qr *ShardingQrouter) Plan(ctx context.Context, stmt *stmtctx.Statement, params []any) (*plan.ScatterPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if stmt == nil {
		return nil, spqrerror.New(spqrerror.SPQR_UNEXPECTED, "nil statement")
	}
	start := time.Now()
	h := qr.holder(stmt)

	b := &stmtctx.Bound{Stmt: stmt, Params: params}
	gk, err := qr.generateKeys(stmt)
	if err != nil {
		return nil, err
	}
	b.GeneratedKey = gk

	var sc *stmtctx.SelectContext
	if stmt.Kind == stmtctx.Select {
		if sc, err = stmtctx.NewSelectContext(stmt); err != nil {
			return nil, err
		}
	}

	statistics.RecordStartTime(statistics.StatisticsTypeRoute, start, h)
	units, err := qr.router.Route(b)
	statistics.RecordFinished(statistics.StatisticsTypeRoute, time.Now(), h)
	if err != nil {
		return nil, err
	}

	statistics.RecordStartTime(statistics.StatisticsTypeRewrite, time.Now(), h)
	subPlans, err := qr.rewriter.Rewrite(rewrite.NewContext(b, sc, units))
	statistics.RecordFinished(statistics.StatisticsTypeRewrite, time.Now(), h)
	if err != nil {
		return nil, err
	}

	p := plan.NewScatterPlan(stmt, sc)
	p.Params = params
	for _, sp := range subPlans {
		p.Add(sp)
	}

	spqrlog.Zero.Debug().
		Str("plan", p.ID).
		Str("kind", stmt.Kind.String()).
		Strs("units", route.Strings(units)).
		Strs("targets", p.ExecutionTargets()).
		Msg("planned statement")
	statistics.RecordPlan(stmt.Kind.String(), len(units))
	spqrlog.RLogger.ReportRoute(stmt.SQL, len(units), time.Since(start))

	return p, nil
}

// generateKeys fills the generated key column of an INSERT that omits it.
func (qr *ShardingQrouter) generateKeys(stmt *stmtctx.Statement) (*stmtctx.GeneratedKey, error) {
	if stmt.Kind != stmtctx.Insert || stmt.Insert == nil {
		return nil, nil
	}
	table := stmt.Insert.Table
	if table == "" {
		if tables := stmt.LogicTables(); len(tables) > 0 {
			table = tables[0]
		}
	}
	tr, ok := qr.rule.TableRule(table)
	if !ok || tr.KeyGenerate == nil || tr.KeyGenerate.Generator == nil {
		return nil, nil
	}
	if len(stmt.Insert.Columns) == 0 {
		return nil, spqrerror.Newf(spqrerror.SPQR_NOT_IMPLEMENTED,
			"insert into %s without column list cannot receive generated column %s", table, tr.KeyGenerate.Column)
	}
	if stmt.Insert.ColumnIndex(tr.KeyGenerate.Column) >= 0 {
		return nil, nil
	}

	gk := &stmtctx.GeneratedKey{Column: tr.KeyGenerate.Column}
	for range stmt.Insert.Rows {
		v, err := tr.KeyGenerate.Generator.NextKey()
		if err != nil {
			return nil, err
		}
		gk.Values = append(gk.Values, v)
	}
	spqrlog.Zero.Debug().
		Str("table", table).
		Str("column", gk.Column).
		Str("generator", tr.KeyGenerate.Generator.Type()).
		Int("rows", len(gk.Values)).
		Msg("generated insert keys")
	return gk, nil
}

func (qr *ShardingQrouter) Merge(ctx context.Context, p *plan.ScatterPlan, results []merge.QueryResult) (merge.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(results) != len(p.SubPlans) {
		return nil, spqrerror.Newf(spqrerror.SPQR_MERGE_ERROR,
			"plan %s has %d units, got %d results", p.ID, len(p.SubPlans), len(results))
	}
	h := qr.holder(p.Stmt)

	statistics.RecordStartTime(statistics.StatisticsTypeMerge, time.Now(), h)
	defer func() {
		statistics.RecordFinished(statistics.StatisticsTypeMerge, time.Now(), h)
	}()

	var sc *stmtctx.SelectContext
	if p.Rewritten() {
		sc = p.Select
	}
	statistics.RecordMerge(merge.SelectStrategy(sc).String())
	return merge.Merge(&stmtctx.Bound{Stmt: p.Stmt, Params: p.Params}, sc, results)
}
