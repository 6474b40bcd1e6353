package relay

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/router/plan"
)

// rowBuffer holds the current row of a driver cursor.
type rowBuffer struct {
	labels []string
	row    []any
	null   bool
}

func (b *rowBuffer) Value(columnIndex int) (any, error) {
	if b.row == nil {
		return nil, spqrerror.New(spqrerror.SPQR_MERGE_ERROR, "cursor is not positioned on a row")
	}
	if columnIndex < 1 || columnIndex > len(b.row) {
		return nil, spqrerror.Newf(spqrerror.SPQR_MERGE_ERROR, "column index %d is out of range [1, %d]", columnIndex, len(b.row))
	}
	v := b.row[columnIndex-1]
	b.null = v == nil
	return v, nil
}

func (b *rowBuffer) ColumnCount() int {
	return len(b.labels)
}

func (b *rowBuffer) ColumnLabel(columnIndex int) (string, error) {
	if columnIndex < 1 || columnIndex > len(b.labels) {
		return "", spqrerror.Newf(spqrerror.SPQR_MERGE_ERROR, "column index %d is out of range [1, %d]", columnIndex, len(b.labels))
	}
	return b.labels[columnIndex-1], nil
}

func (b *rowBuffer) WasNull() bool {
	return b.null
}

// SQLRowsResult adapts database/sql rows to a shard cursor.
type SQLRowsResult struct {
	rowBuffer
	rows *sql.Rows
}

var _ ShardResult = &SQLRowsResult{}

func NewSQLRowsResult(rows *sql.Rows) (*SQLRowsResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	return &SQLRowsResult{rowBuffer: rowBuffer{labels: cols}, rows: rows}, nil
}

func (r *SQLRowsResult) Next() (bool, error) {
	if !r.rows.Next() {
		r.row = nil
		return false, r.rows.Err()
	}
	vals := make([]any, len(r.labels))
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		r.row = nil
		return false, err
	}
	r.row = vals
	return true, nil
}

func (r *SQLRowsResult) Close() error {
	return r.rows.Close()
}

// QueryxShard sends the statement of sp to db.
func QueryxShard(ctx context.Context, db *sqlx.DB, sp *plan.ShardPlan) (*SQLRowsResult, error) {
	rows, err := db.QueryxContext(ctx, sp.Query, sp.Params...)
	if err != nil {
		return nil, err
	}
	res, err := NewSQLRowsResult(rows.Rows)
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	return res, nil
}

// SQLXExecutor queries datasources through sqlx handles keyed by name.
type SQLXExecutor struct {
	DBs map[string]*sqlx.DB
}

var _ ShardExecutor = SQLXExecutor{}

func (e SQLXExecutor) Query(ctx context.Context, sp *plan.ShardPlan) (ShardResult, error) {
	db, ok := e.DBs[sp.DataSource]
	if !ok {
		return nil, spqrerror.Newf(spqrerror.SPQR_NO_DATASHARD, "no connection to datasource %s", sp.DataSource)
	}
	return QueryxShard(ctx, db, sp)
}

// Exec runs a statement that returns no rows on every unit of p, one
// unit after another, and sums affected rows.
func (e SQLXExecutor) Exec(ctx context.Context, p *plan.ScatterPlan) (int64, error) {
	var total int64
	for _, sp := range p.SubPlans {
		db, ok := e.DBs[sp.DataSource]
		if !ok {
			return total, spqrerror.Newf(spqrerror.SPQR_NO_DATASHARD, "no connection to datasource %s", sp.DataSource)
		}
		res, err := db.ExecContext(ctx, sp.Query, sp.Params...)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
