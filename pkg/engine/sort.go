package engine

const (
	ASC = iota
	DESC
)

// SortKey addresses one 0-based column of a buffered row.
type SortKey struct {
	Index      int
	Order      int
	NullsFirst bool
}

// CompareRows compares two buffered rows key by key.
// Null placement follows NullsFirst regardless of the key direction.
func CompareRows(l, r []any, keys []SortKey) (int, error) {
	for _, k := range keys {
		lv, rv := l[k.Index], r[k.Index]
		c, err := CompareWithNulls(lv, rv, k.NullsFirst)
		if err != nil {
			return 0, err
		}
		if c == 0 {
			continue
		}
		if k.Order == DESC && lv != nil && rv != nil {
			return -c, nil
		}
		return c, nil
	}
	return 0, nil
}

type SortableWithContext struct {
	Data [][]any
	Keys []SortKey

	// first comparison failure, sort.Interface cannot return it
	Err error
}

func (a *SortableWithContext) Len() int      { return len(a.Data) }
func (a *SortableWithContext) Swap(i, j int) { a.Data[i], a.Data[j] = a.Data[j], a.Data[i] }
func (a *SortableWithContext) Less(i, j int) bool {
	c, err := CompareRows(a.Data[i], a.Data[j], a.Keys)
	if err != nil {
		if a.Err == nil {
			a.Err = err
		}
		return false
	}
	return c < 0
}
