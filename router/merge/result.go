package merge

import (
	"github.com/pg-sharding/spqrkernel/pkg/engine"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
)

/*
* QueryResult is a forward-only row cursor. Column indexes are 1-based.
* A cursor is positioned before its first row until Next is called.
 */
type QueryResult interface {
	Next() (bool, error)
	Value(columnIndex int) (any, error)
	ColumnCount() int
	ColumnLabel(columnIndex int) (string, error)
	// WasNull reports whether the last value read was NULL
	WasNull() bool
}

// ValueOf reads a column converted to the requested representation.
func ValueOf(r QueryResult, columnIndex int, kind engine.Kind) (any, error) {
	v, err := r.Value(columnIndex)
	if err != nil {
		return nil, err
	}
	return engine.Convert(v, kind)
}

// readRow copies the current row of r, index i of the copy holds column i+1.
func readRow(r QueryResult, columns int) ([]any, error) {
	row := make([]any, columns)
	for i := range row {
		v, err := r.Value(i + 1)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func columnOutOfRange(idx, count int) error {
	return spqrerror.Newf(spqrerror.SPQR_MERGE_ERROR, "column index %d is out of range [1, %d]", idx, count)
}

// rowResult exposes one buffered row at a time.
type rowResult struct {
	labels QueryResult
	row    []any
	null   bool
}

func (r *rowResult) Value(columnIndex int) (any, error) {
	if r.row == nil {
		return nil, spqrerror.New(spqrerror.SPQR_MERGE_ERROR, "cursor is not positioned on a row")
	}
	if columnIndex < 1 || columnIndex > len(r.row) {
		return nil, columnOutOfRange(columnIndex, len(r.row))
	}
	v := r.row[columnIndex-1]
	r.null = v == nil
	return v, nil
}

func (r *rowResult) ColumnCount() int {
	return r.labels.ColumnCount()
}

func (r *rowResult) ColumnLabel(columnIndex int) (string, error) {
	return r.labels.ColumnLabel(columnIndex)
}

func (r *rowResult) WasNull() bool {
	return r.null
}

// emptyResult is the merge of zero shard results.
type emptyResult struct{}

func (emptyResult) Next() (bool, error) {
	return false, nil
}

func (emptyResult) Value(columnIndex int) (any, error) {
	return nil, columnOutOfRange(columnIndex, 0)
}

func (emptyResult) ColumnCount() int {
	return 0
}

func (emptyResult) ColumnLabel(columnIndex int) (string, error) {
	return "", columnOutOfRange(columnIndex, 0)
}

func (emptyResult) WasNull() bool {
	return false
}
