package plan

import (
	"github.com/google/uuid"
	"github.com/pg-sharding/spqrkernel/pkg/spqrlog"
	"github.com/pg-sharding/spqrkernel/router/route"
	"github.com/pg-sharding/spqrkernel/router/stmtctx"
	"golang.org/x/exp/slices"
)

type Plan interface {
	iPlan()
	ExecutionTargets() []string
}

// ShardPlan is the statement prepared for a single routing unit.
type ShardPlan struct {
	Plan
	Unit       *route.Unit
	DataSource string
	Query      string
	Params     []any
}

func (sp *ShardPlan) ExecutionTargets() []string {
	return []string{sp.DataSource}
}

type ScatterPlan struct {
	Plan
	ID     string
	Stmt   *stmtctx.Statement
	Params []any

	/* one slice per routing unit, in routing order */
	SubPlans []*ShardPlan

	// Select is nil for statements that do not return rows
	Select *stmtctx.SelectContext
}

func NewScatterPlan(stmt *stmtctx.Statement, sc *stmtctx.SelectContext) *ScatterPlan {
	return &ScatterPlan{
		ID:     uuid.NewString(),
		Stmt:   stmt,
		Select: sc,
	}
}

func (sp *ScatterPlan) Add(p *ShardPlan) {
	sp.SubPlans = append(sp.SubPlans, p)
}

// ExecutionTargets lists every datasource the plan touches, once each.
func (sp *ScatterPlan) ExecutionTargets() []string {
	var res []string
	for _, p := range sp.SubPlans {
		res = CombineExecutionTargets(res, p.ExecutionTargets())
	}
	return res
}

// Units returns routing units of the plan in execution order.
func (sp *ScatterPlan) Units() []*route.Unit {
	res := make([]*route.Unit, 0, len(sp.SubPlans))
	for _, p := range sp.SubPlans {
		res = append(res, p.Unit)
	}
	return res
}

// Rewritten reports whether shard statements differ from a single-node
// execution, i.e. results need pagination and derived columns handled
// on merge.
func (sp *ScatterPlan) Rewritten() bool {
	return len(sp.SubPlans) > 1
}

func CombineExecutionTargets(t1, t2 []string) []string {
	if t1 == nil && t2 == nil {
		return nil
	}

	spqrlog.Zero.Debug().
		Strs("targets1", t1).
		Strs("targets2", t2).
		Msg("combine execution targets")

	res := append([]string{}, t1...)
	for _, t := range t2 {
		if !slices.Contains(res, t) {
			res = append(res, t)
		}
	}
	return res
}
