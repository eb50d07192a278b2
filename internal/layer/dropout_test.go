package layer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

func ramp(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = float64(i + 1)
	}
	return v
}

func TestDropoutZeroProbability(t *testing.T) {
	d := NewDropout(0, 50)
	x := ramp(50)

	inference, err := d.Forward(x)
	require.NoError(t, err)
	inference = append([]float64(nil), inference...)

	training, err := d.TrainingForward(x)
	require.NoError(t, err)
	assert.Equal(t, inference, training)
	assert.Equal(t, 1.0, d.Scale())
	assert.Empty(t, d.Dropped())
}

func TestDropoutFullProbability(t *testing.T) {
	d := NewDropout(1, 50)
	assert.Equal(t, 1.0, d.Scale())

	out, err := d.TrainingForward(ramp(50))
	require.NoError(t, err)
	for i, v := range out {
		assert.Zero(t, v, "unit %d", i)
	}

	dx, err := d.Backward(ramp(50))
	require.NoError(t, err)
	for _, v := range dx {
		assert.Zero(t, v)
	}
}

func TestDropoutInferenceIsIdentity(t *testing.T) {
	d := NewDropout(0.7, 20)
	out, err := d.Forward(ramp(20))
	require.NoError(t, err)
	assert.Equal(t, ramp(20), out)
}

func TestDropoutMaskIsRebuilt(t *testing.T) {
	d := NewDropout(0.5, 200)
	d.Init(Auto, Normal, dlmath.NewRNG(9))

	out, err := d.TrainingForward(ones(200))
	require.NoError(t, err)
	first := append([]int(nil), d.Dropped()...)
	assert.Greater(t, len(first), 50)
	assert.Less(t, len(first), 150)
	for i, v := range out {
		assert.True(t, v == 0 || v == 2, "unit %d = %v", i, v)
	}

	_, err = d.TrainingForward(ones(200))
	require.NoError(t, err)
	second := d.Dropped()
	assert.NotEqual(t, first, second)

	dx, err := d.Backward(ones(200))
	require.NoError(t, err)
	dropped := map[int]bool{}
	for _, i := range second {
		dropped[i] = true
	}
	for i, v := range dx {
		if dropped[i] {
			assert.Zero(t, v)
		} else {
			assert.Equal(t, 2.0, v)
		}
	}
}

func TestDropoutDropsSampleEqualToProbability(t *testing.T) {
	sample := dlmath.NewRNG(DefaultDropoutSeed).Float64()

	d := NewDropout(sample, 1)
	out, err := d.TrainingForward([]float64{3})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, out)
	assert.Equal(t, []int{0}, d.Dropped())

	below := NewDropout(math.Nextafter(sample, 0), 1)
	out, err = below.TrainingForward([]float64{3})
	require.NoError(t, err)
	assert.Empty(t, below.Dropped())
	assert.InDelta(t, 3*below.Scale(), out[0], 1e-12)
}
