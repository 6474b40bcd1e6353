package merge

import (
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/pkg/tupleslot"
)

// SlotResult iterates over buffered rows of a tuple slot.
type SlotResult struct {
	slot *tupleslot.TupleTableSlot
	pos  int
	row  tupleslot.Row
	null bool
}

func NewSlotResult(slot *tupleslot.TupleTableSlot) *SlotResult {
	return &SlotResult{slot: slot}
}

func (r *SlotResult) Next() (bool, error) {
	if r.pos >= len(r.slot.Raw) {
		r.row = nil
		return false, nil
	}
	r.row = r.slot.Raw[r.pos]
	r.pos++
	return true, nil
}

func (r *SlotResult) Value(columnIndex int) (any, error) {
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

func (r *SlotResult) ColumnCount() int {
	return len(r.slot.Desc)
}

func (r *SlotResult) ColumnLabel(columnIndex int) (string, error) {
	if columnIndex < 1 || columnIndex > len(r.slot.Desc) {
		return "", columnOutOfRange(columnIndex, len(r.slot.Desc))
	}
	return r.slot.Desc[columnIndex-1], nil
}

func (r *SlotResult) WasNull() bool {
	return r.null
}
