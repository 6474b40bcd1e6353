package shvalue_test

import (
	"testing"

	"github.com/pg-sharding/spqrkernel/pkg/models/shvalue"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPrecise(t *testing.T, v any) shvalue.Value {
	res, err := shvalue.NewPrecise("t_order", "order_id", v)
	require.NoError(t, err)
	return res
}

func mustList(t *testing.T, vals ...any) shvalue.Value {
	res, err := shvalue.NewList("t_order", "order_id", vals)
	require.NoError(t, err)
	return res
}

func mustRange(t *testing.T, l, u shvalue.Bound) shvalue.Value {
	res, err := shvalue.NewRange("t_order", "order_id", l, u)
	require.NoError(t, err)
	return res
}

func TestNonComparableValue(t *testing.T) {
	assert := assert.New(t)

	_, err := shvalue.NewPrecise("t_order", "order_id", map[string]int{})
	assert.True(spqrerror.IsConfigurationError(err))

	_, err = shvalue.NewList("t_order", "order_id", []any{int64(1), []int{1}})
	assert.True(spqrerror.IsConfigurationError(err))

	_, err = shvalue.NewRange("t_order", "order_id", shvalue.Closed(struct{}{}), shvalue.Unbounded)
	assert.True(spqrerror.IsConfigurationError(err))
}

func TestContains(t *testing.T) {
	assert := assert.New(t)

	r := mustRange(t, shvalue.Open(int64(10)), shvalue.Closed(int64(20)))

	for _, c := range []struct {
		x   int64
		exp bool
	}{
		{10, false},
		{11, true},
		{20, true},
		{21, false},
	} {
		ok, err := r.Contains(c.x)
		assert.NoError(err)
		assert.Equal(c.exp, ok, "value %d", c.x)
	}

	_, err := mustPrecise(t, int64(1)).Contains(int64(1))
	assert.Error(err)
}

func TestIntersect(t *testing.T) {
	assert := assert.New(t)

	type tcase struct {
		name string
		a, b shvalue.Value
		ok   bool
		exp  shvalue.Value
	}

	for _, tt := range []tcase{
		{
			name: "same precise",
			a:    mustPrecise(t, int64(1)),
			b:    mustPrecise(t, int64(1)),
			ok:   true,
			exp:  mustPrecise(t, int64(1)),
		},
		{
			name: "different precise",
			a:    mustPrecise(t, int64(1)),
			b:    mustPrecise(t, int64(2)),
			ok:   false,
		},
		{
			name: "list and range",
			a:    mustList(t, int64(1), int64(5), int64(9)),
			b:    mustRange(t, shvalue.Closed(int64(5)), shvalue.Unbounded),
			ok:   true,
			exp:  mustList(t, int64(5), int64(9)),
		},
		{
			name: "range and precise",
			a:    mustRange(t, shvalue.Unbounded, shvalue.Open(int64(5))),
			b:    mustPrecise(t, int64(4)),
			ok:   true,
			exp:  mustPrecise(t, int64(4)),
		},
		{
			name: "ranges",
			a:    mustRange(t, shvalue.Closed(int64(1)), shvalue.Closed(int64(10))),
			b:    mustRange(t, shvalue.Open(int64(3)), shvalue.Unbounded),
			ok:   true,
			exp:  mustRange(t, shvalue.Open(int64(3)), shvalue.Closed(int64(10))),
		},
		{
			name: "disjoint ranges",
			a:    mustRange(t, shvalue.Unbounded, shvalue.Open(int64(3))),
			b:    mustRange(t, shvalue.Closed(int64(3)), shvalue.Unbounded),
			ok:   false,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			res, ok, err := shvalue.Intersect(tt.a, tt.b)
			assert.NoError(err)
			assert.Equal(tt.ok, ok)
			if tt.ok {
				assert.Equal(tt.exp, res)
			}
		})
	}
}

func TestSatisfiable(t *testing.T) {
	assert := assert.New(t)

	for i, c := range []struct {
		v   shvalue.Value
		exp bool
	}{
		{v: mustRange(t, shvalue.Closed(int64(25)), shvalue.Closed(int64(5))), exp: false},
		{v: mustRange(t, shvalue.Closed(int64(5)), shvalue.Closed(int64(5))), exp: true},
		{v: mustRange(t, shvalue.Closed(int64(5)), shvalue.Open(int64(5))), exp: false},
		{v: mustRange(t, shvalue.Closed(int64(5)), shvalue.Unbounded), exp: true},
		{v: mustPrecise(t, int64(1)), exp: true},
	} {
		ok, err := c.v.Satisfiable()
		assert.NoError(err, "test case %d", i)
		assert.Equal(c.exp, ok, "test case %d", i)
	}
}
