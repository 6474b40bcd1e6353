package relay

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/router/plan"
)

// PgxQuerier is satisfied by *pgx.Conn and *pgxpool.Pool.
type PgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgxRowsResult adapts pgx rows to a shard cursor. Values are decoded by
// pgx into their default Go types.
type PgxRowsResult struct {
	rowBuffer
	rows pgx.Rows
}

var _ ShardResult = &PgxRowsResult{}

func NewPgxRowsResult(rows pgx.Rows) *PgxRowsResult {
	fds := rows.FieldDescriptions()
	labels := make([]string, len(fds))
	for i, fd := range fds {
		labels[i] = fd.Name
	}
	return &PgxRowsResult{rowBuffer: rowBuffer{labels: labels}, rows: rows}
}

func (r *PgxRowsResult) Next() (bool, error) {
	if !r.rows.Next() {
		r.row = nil
		return false, r.rows.Err()
	}
	vals, err := r.rows.Values()
	if err != nil {
		r.row = nil
		return false, err
	}
	r.row = vals
	return true, nil
}

func (r *PgxRowsResult) Close() error {
	r.rows.Close()
	return r.rows.Err()
}

type PgxExecutor struct {
	Conns map[string]PgxQuerier
}

var _ ShardExecutor = PgxExecutor{}

func (e PgxExecutor) Query(ctx context.Context, sp *plan.ShardPlan) (ShardResult, error) {
	conn, ok := e.Conns[sp.DataSource]
	if !ok {
		return nil, spqrerror.Newf(spqrerror.SPQR_NO_DATASHARD, "no connection to datasource %s", sp.DataSource)
	}
	rows, err := conn.Query(ctx, sp.Query, sp.Params...)
	if err != nil {
		return nil, err
	}
	return NewPgxRowsResult(rows), nil
}
