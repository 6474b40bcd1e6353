package engine

import "sort"

// ProcessOrderBy sorts buffered rows in place, keeping the relative order
// of rows with equal keys.
func ProcessOrderBy(data [][]any, keys []SortKey) ([][]any, error) {
	if len(keys) == 0 {
		return data, nil
	}
	sortable := &SortableWithContext{
		Data: data,
		Keys: keys,
	}
	sort.Stable(sortable)
	if sortable.Err != nil {
		return nil, sortable.Err
	}
	return data, nil
}
