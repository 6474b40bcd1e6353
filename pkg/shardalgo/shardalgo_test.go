package shardalgo_test

import (
	"math"
	"sync"
	"testing"

	"github.com/pg-sharding/spqrkernel/pkg/models/shvalue"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/pkg/shardalgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func precise(t *testing.T, v any) shvalue.Value {
	pv, err := shvalue.NewPrecise("t_order", "order_id", v)
	require.NoError(t, err)
	return pv
}

func TestTargetSuffix(t *testing.T) {
	assert := assert.New(t)

	for _, tt := range []struct {
		name string
		idx  int
		ok   bool
	}{
		{name: "ds0", idx: 0, ok: true},
		{name: "t_order_11", idx: 11, ok: true},
		{name: "t_order_01", idx: 1, ok: true},
		{name: "t_order", ok: false},
	} {
		idx, ok := shardalgo.TargetSuffix(tt.name)
		assert.Equal(tt.ok, ok, tt.name)
		assert.Equal(tt.idx, idx, tt.name)
	}

	name, ok := shardalgo.TargetBySuffix([]string{"t_1", "t_11"}, 1)
	assert.True(ok)
	assert.Equal("t_1", name)
}

func TestModPrecise(t *testing.T) {
	assert := assert.New(t)

	alg, err := shardalgo.DefaultRegistry.New(shardalgo.TypeMod, shardalgo.Props{"sharding-count": "2"})
	require.NoError(t, err)

	targets := []string{"t_order_0", "t_order_1"}
	for _, tt := range []struct {
		v   any
		exp []string
	}{
		{v: int64(10), exp: []string{"t_order_0"}},
		{v: int64(11), exp: []string{"t_order_1"}},
		{v: int32(-3), exp: []string{"t_order_1"}},
		{v: uint64(4), exp: []string{"t_order_0"}},
	} {
		res, err := shardalgo.DoSharding(alg, targets, precise(t, tt.v))
		assert.NoError(err)
		assert.Equal(tt.exp, res, "value %v", tt.v)
	}

	_, err = shardalgo.DoSharding(alg, targets, precise(t, "abc"))
	assert.Error(err)
	code, _ := spqrerror.Code(err)
	assert.Equal(spqrerror.SPQR_UNEXPECTED_VALUE_TYPE, code)
}

func TestModRangeAndList(t *testing.T) {
	assert := assert.New(t)

	alg, err := shardalgo.NewModAlgorithm(shardalgo.Props{"sharding-count": "4"})
	require.NoError(t, err)
	targets := []string{"ds0", "ds1", "ds2", "ds3"}

	/* 5 <= x < 7 touches 1 and 2 */
	rv, err := shvalue.NewRange("t", "c", shvalue.Closed(int64(5)), shvalue.Open(int64(7)))
	require.NoError(t, err)
	res, err := shardalgo.DoSharding(alg, targets, rv)
	assert.NoError(err)
	assert.Equal([]string{"ds1", "ds2"}, res)

	rv, err = shvalue.NewRange("t", "c", shvalue.Closed(int64(1)), shvalue.Unbounded)
	require.NoError(t, err)
	res, err = shardalgo.DoSharding(alg, targets, rv)
	assert.NoError(err)
	assert.Equal(targets, res)

	for _, tt := range []struct {
		name         string
		lower, upper shvalue.Bound
		exp          []string
	}{
		{name: "inverted", lower: shvalue.Closed(int64(9)), upper: shvalue.Closed(int64(2)), exp: nil},
		{name: "open on max", lower: shvalue.Open(int64(math.MaxInt64)), upper: shvalue.Closed(int64(math.MaxInt64)), exp: nil},
		{name: "near max", lower: shvalue.Closed(int64(math.MaxInt64 - 1)), upper: shvalue.Closed(int64(math.MaxInt64)), exp: []string{"ds2", "ds3"}},
		{name: "full int64 span", lower: shvalue.Closed(int64(math.MinInt64)), upper: shvalue.Closed(int64(math.MaxInt64)), exp: targets},
		{name: "negative values share suffixes", lower: shvalue.Closed(int64(-1)), upper: shvalue.Closed(int64(1)), exp: []string{"ds0", "ds1"}},
	} {
		rv, err := shvalue.NewRange("t", "c", tt.lower, tt.upper)
		require.NoError(t, err, tt.name)
		res, err := shardalgo.DoSharding(alg, targets, rv)
		assert.NoError(err, tt.name)
		if tt.exp == nil {
			assert.Empty(res, tt.name)
			continue
		}
		assert.Equal(tt.exp, res, tt.name)
	}

	lv, err := shvalue.NewList("t", "c", []any{int64(7), int64(3), int64(11)})
	require.NoError(t, err)
	res, err = shardalgo.DoSharding(alg, targets, lv)
	assert.NoError(err)
	assert.Equal([]string{"ds3"}, res)
}

func TestHashModStable(t *testing.T) {
	assert := assert.New(t)

	alg, err := shardalgo.DefaultRegistry.New(shardalgo.TypeHashMod, shardalgo.Props{
		"sharding-count": "3",
		"hash-function":  "city",
	})
	require.NoError(t, err)
	targets := []string{"ds0", "ds1", "ds2"}

	first, err := shardalgo.DoSharding(alg, targets, precise(t, "user-42"))
	require.NoError(t, err)
	assert.Len(first, 1)
	for i := 0; i < 10; i++ {
		again, err := shardalgo.DoSharding(alg, targets, precise(t, "user-42"))
		assert.NoError(err)
		assert.Equal(first, again)
	}

	/* hash algorithms cannot narrow a range */
	rv, err := shvalue.NewRange("t", "c", shvalue.Closed("a"), shvalue.Closed("b"))
	require.NoError(t, err)
	res, err := shardalgo.DoSharding(alg, targets, rv)
	assert.NoError(err)
	assert.Equal(targets, res)

	_, err = shardalgo.NewHashModAlgorithm(shardalgo.Props{"sharding-count": "3", "hash-function": "sha"})
	assert.Error(err)
}

func TestVolumeRange(t *testing.T) {
	assert := assert.New(t)

	alg, err := shardalgo.DefaultRegistry.New(shardalgo.TypeVolumeRange, shardalgo.Props{
		"range-lower":     "10",
		"range-upper":     "40",
		"sharding-volume": "10",
	})
	require.NoError(t, err)
	targets := []string{"t_0", "t_1", "t_2", "t_3", "t_4"}

	res, err := shardalgo.DoSharding(alg, targets, precise(t, int64(25)))
	assert.NoError(err)
	assert.Equal([]string{"t_2"}, res)

	rv, err := shvalue.NewRange("t", "c", shvalue.Closed(int64(15)), shvalue.Open(int64(30)))
	require.NoError(t, err)
	res, err = shardalgo.DoSharding(alg, targets, rv)
	assert.NoError(err)
	assert.Equal([]string{"t_1", "t_2"}, res)

	/* partition 2 has no physical table */
	res, err = shardalgo.DoSharding(alg, []string{"t_0", "t_1"}, precise(t, int64(25)))
	assert.NoError(err)
	assert.Empty(res)
}

func TestBoundaryRange(t *testing.T) {
	assert := assert.New(t)

	alg, err := shardalgo.DefaultRegistry.New(shardalgo.TypeBoundaryRange, shardalgo.Props{
		"sharding-ranges": "1, 5, 10",
	})
	require.NoError(t, err)
	targets := []string{"t_0", "t_1", "t_2", "t_3"}

	for _, tt := range []struct {
		v   int64
		exp string
	}{
		{v: -100, exp: "t_0"},
		{v: 1, exp: "t_1"},
		{v: 9, exp: "t_2"},
		{v: 10, exp: "t_3"},
	} {
		res, err := shardalgo.DoSharding(alg, targets, precise(t, tt.v))
		assert.NoError(err)
		assert.Equal([]string{tt.exp}, res, "value %d", tt.v)
	}

	/* BETWEEN 25 AND 5 */
	rv, err := shvalue.NewRange("t", "c", shvalue.Closed(int64(25)), shvalue.Closed(int64(5)))
	require.NoError(t, err)
	res, err := shardalgo.DoSharding(alg, targets, rv)
	assert.NoError(err)
	assert.Empty(res)

	_, err = shardalgo.NewBoundaryRangeAlgorithm(shardalgo.Props{"sharding-ranges": "5,x"})
	assert.Error(err)

	bad, err := shardalgo.NewBoundaryRangeAlgorithm(shardalgo.Props{"sharding-ranges": "5,1"})
	require.NoError(t, err)
	_, err = shardalgo.DoSharding(bad, targets, precise(t, int64(3)))
	assert.Error(err)
	code, _ := spqrerror.Code(err)
	assert.Equal(spqrerror.SPQR_INVALID_RULE, code)
}

func TestRangePartitionMapConcurrentInit(t *testing.T) {
	alg, err := shardalgo.NewVolumeRangeAlgorithm(shardalgo.Props{
		"range-lower":     "0",
		"range-upper":     "100",
		"sharding-volume": "25",
	})
	require.NoError(t, err)
	targets := []string{"t_0", "t_1", "t_2", "t_3", "t_4", "t_5"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			res, err := shardalgo.DoSharding(alg, targets, precise(t, v))
			assert.NoError(t, err)
			assert.Len(t, res, 1)
		}(int64(i * 7))
	}
	wg.Wait()
}

func TestComplexHashMod(t *testing.T) {
	assert := assert.New(t)

	alg, err := shardalgo.DefaultRegistry.New(shardalgo.TypeComplexHashMod, shardalgo.Props{
		"sharding-columns": "user_id, order_id",
		"sharding-count":   "4",
	})
	require.NoError(t, err)
	targets := []string{"ds0", "ds1", "ds2", "ds3"}

	user, err := shvalue.NewPrecise("t_order", "user_id", int64(1))
	require.NoError(t, err)
	order, err := shvalue.NewPrecise("t_order", "order_id", int64(42))
	require.NoError(t, err)
	cv, err := shvalue.NewComplexKeys("t_order", map[string]shvalue.Value{
		"user_id":  user,
		"order_id": order,
	})
	require.NoError(t, err)

	res, err := shardalgo.DoSharding(alg, targets, cv)
	assert.NoError(err)
	assert.Len(res, 1)

	/* missing column means full fan-out */
	cv, err = shvalue.NewComplexKeys("t_order", map[string]shvalue.Value{"user_id": user})
	require.NoError(t, err)
	res, err = shardalgo.DoSharding(alg, targets, cv)
	assert.NoError(err)
	assert.Equal(targets, res)

	/* standard algorithms reject complex values */
	mod, err := shardalgo.NewModAlgorithm(shardalgo.Props{"sharding-count": "2"})
	require.NoError(t, err)
	_, err = shardalgo.DoSharding(mod, targets, cv)
	assert.Error(err)
}

type rogueAlgorithm struct{}

func (rogueAlgorithm) Type() string { return "ROGUE" }

func (rogueAlgorithm) DoPreciseSharding([]string, shvalue.Value) (string, bool, error) {
	return "ds9", true, nil
}

func TestRegistry(t *testing.T) {
	assert := assert.New(t)

	r := shardalgo.NewRegistry()
	assert.NoError(r.Register("ROGUE", func(shardalgo.Props) (shardalgo.Algorithm, error) {
		return rogueAlgorithm{}, nil
	}))
	assert.Error(r.Register("ROGUE", nil))

	alg, err := r.New("ROGUE", nil)
	require.NoError(t, err)

	_, err = shardalgo.DoSharding(alg, []string{"ds0", "ds1"}, precise(t, int64(1)))
	assert.Error(err)
	assert.True(spqrerror.IsConfigurationError(err))
	code, _ := spqrerror.Code(err)
	assert.Equal(spqrerror.SPQR_TARGET_OUT_OF_RANGE, code)

	r.Seal()
	assert.True(r.Sealed())
	assert.Error(r.Register("OTHER", nil))

	_, err = r.New("NOPE", nil)
	code, _ = spqrerror.Code(err)
	assert.Equal(spqrerror.SPQR_UNKNOWN_ALGORITHM, code)

	assert.Equal([]string{"BOUNDARY_RANGE", "COMPLEX_HASH_MOD", "HASH_MOD", "MOD", "VOLUME_RANGE"},
		shardalgo.DefaultRegistry.Types())
}
