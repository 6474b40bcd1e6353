package merge

// IteratorMerge concatenates shard results in routing unit order.
type IteratorMerge struct {
	results []QueryResult
	cur     int
}

func NewIteratorMerge(results []QueryResult) *IteratorMerge {
	return &IteratorMerge{results: results}
}

func (m *IteratorMerge) Next() (bool, error) {
	for m.cur < len(m.results) {
		ok, err := m.results[m.cur].Next()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		m.cur++
	}
	return false, nil
}

func (m *IteratorMerge) current() QueryResult {
	if m.cur < len(m.results) {
		return m.results[m.cur]
	}
	return m.results[len(m.results)-1]
}

func (m *IteratorMerge) Value(columnIndex int) (any, error) {
	return m.current().Value(columnIndex)
}

func (m *IteratorMerge) ColumnCount() int {
	return m.results[0].ColumnCount()
}

func (m *IteratorMerge) ColumnLabel(columnIndex int) (string, error) {
	return m.results[0].ColumnLabel(columnIndex)
}

func (m *IteratorMerge) WasNull() bool {
	return m.current().WasNull()
}
