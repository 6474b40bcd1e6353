package tupleslot

import "strings"

// Row is one materialized result row, 0-based.
type Row []any

type TupleTableSlot struct {
	// column labels as reported by the first shard
	Desc []string

	Raw []Row
}

func New(desc []string) *TupleTableSlot {
	return &TupleTableSlot{Desc: desc}
}

func (tts *TupleTableSlot) WriteDataRow(vals ...any) {
	row := make(Row, len(vals))
	copy(row, vals)
	tts.Raw = append(tts.Raw, row)
}

// ColumnIndex resolves a label case-insensitively to a 0-based index.
func (tts *TupleTableSlot) ColumnIndex(label string) (int, bool) {
	for i, d := range tts.Desc {
		if strings.EqualFold(d, label) {
			return i, true
		}
	}
	return 0, false
}

// Rows exposes the buffered rows as plain slices for sorting.
func (tts *TupleTableSlot) Rows() [][]any {
	res := make([][]any, len(tts.Raw))
	for i, r := range tts.Raw {
		res[i] = r
	}
	return res
}

func (tts *TupleTableSlot) SetRows(rows [][]any) {
	tts.Raw = tts.Raw[:0]
	for _, r := range rows {
		tts.Raw = append(tts.Raw, Row(r))
	}
}
