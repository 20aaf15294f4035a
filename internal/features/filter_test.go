package features

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawVector(t *testing.T, rows int) Vector {
	t.Helper()
	series := make([][]float64, rows)
	for i := range series {
		series[i] = make([]float64, DenylistChannels)
		for ch := range series[i] {
			series[i][ch] = math.Sin(float64(i)*0.3+float64(ch)) * float64(ch+1)
		}
	}
	raw, err := NewExtractor(DenylistChannels, nil).Extract(series)
	require.NoError(t, err)
	return raw
}

func TestFilter_WidthAndOrder(t *testing.T) {
	f := NewFilter(Denylist)

	for _, rows := range []int{1, 2, 5, 64} {
		raw := rawVector(t, rows)
		out, err := f.Apply(raw)
		require.NoError(t, err)

		assert.Equal(t, len(Schema(DenylistChannels))-72, out.Len(), "rows=%d", rows)
		for i := 1; i < len(out.Names); i++ {
			require.Less(t, out.Names[i-1], out.Names[i], "names must be strictly increasing")
		}
		for _, v := range out.Values {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "filtered values must be finite")
		}
		for _, n := range Denylist {
			_, ok := out.Get(n)
			assert.False(t, ok, "%s should be removed", n)
		}
	}
}

func TestFilter_Imputation(t *testing.T) {
	f := NewFilter(nil)
	raw := Vector{
		Names:  []string{"0__b", "0__a", "0__c", "0__d"},
		Values: []float64{math.NaN(), 1.5, math.Inf(1), math.Inf(-1)},
	}

	out, err := f.Apply(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"0__a", "0__b", "0__c", "0__d"}, out.Names)
	assert.Equal(t, []float64{1.5, 0, 0, 0}, out.Values)

	// input left untouched
	assert.True(t, math.IsNaN(raw.Values[0]))
	assert.Equal(t, "0__b", raw.Names[0])
}

func TestFilter_LexicographicChannelOrder(t *testing.T) {
	f := NewFilter(nil)
	raw := Vector{
		Names:  []string{"2__mean", "10__mean", "1__mean", "0__mean"},
		Values: []float64{2, 10, 1, 0},
	}

	out, err := f.Apply(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"0__mean", "10__mean", "1__mean", "2__mean"}, out.Names)
	assert.Equal(t, []float64{0, 10, 1, 2}, out.Values)
}

func TestFilter_Idempotent(t *testing.T) {
	filtered, err := NewFilter(Denylist).Apply(rawVector(t, 16))
	require.NoError(t, err)

	again, err := NewFilter(nil).Apply(filtered)
	require.NoError(t, err)
	assert.Equal(t, filtered, again)
}

func TestFilter_MissingDenylistedName(t *testing.T) {
	deny := append([]string{"0__no_such_statistic"}, Denylist...)
	f := NewFilter(deny)

	_, err := f.Apply(rawVector(t, 8))
	require.Error(t, err)

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"0__no_such_statistic"}, schemaErr.Missing)

	assert.Error(t, f.CheckSchema(Schema(DenylistChannels)))
}

func TestFilter_DuplicateNames(t *testing.T) {
	f := NewFilter(nil)
	_, err := f.Apply(Vector{Names: []string{"0__a", "0__a"}, Values: []float64{1, 2}})

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Error(), "duplicate")
}

func TestFilter_LengthMismatch(t *testing.T) {
	_, err := NewFilter(nil).Apply(Vector{Names: []string{"0__a"}, Values: nil})
	assert.Error(t, err)
}
