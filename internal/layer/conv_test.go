package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

func s3(h, w, c int) dlmath.Shape3d { return dlmath.Shape3d{Height: h, Width: w, Channels: c} }
func s2(h, w int) dlmath.Shape2d    { return dlmath.Shape2d{Height: h, Width: w} }

func TestConvolutionalOutputSize(t *testing.T) {
	tests := []struct {
		in      dlmath.Shape3d
		kernel  dlmath.Shape2d
		filters int
		stride  dlmath.Shape2d
		padding dlmath.Shape2d
	}{
		{s3(28, 28, 1), s2(3, 3), 8, s2(1, 1), s2(0, 0)},
		{s3(28, 28, 1), s2(5, 5), 4, s2(2, 2), s2(2, 2)},
		{s3(7, 9, 3), s2(3, 2), 2, s2(2, 3), s2(1, 0)},
		{s3(4, 4, 2), s2(4, 4), 1, s2(1, 1), s2(0, 0)},
	}

	for _, tt := range tests {
		c := NewConvolutional(tt.in, tt.kernel, tt.filters, tt.stride, tt.padding)
		h := (tt.in.Height-tt.kernel.Height+2*tt.padding.Height)/tt.stride.Height + 1
		w := (tt.in.Width-tt.kernel.Width+2*tt.padding.Width)/tt.stride.Width + 1
		assert.Equal(t, h*w*tt.filters, c.OutputSize(), "%v", tt)
		assert.Equal(t, tt.filters*tt.kernel.Size()*tt.in.Channels+tt.filters, c.ParamCount())
	}
}

func TestConvolutionalRejectsOversizedKernel(t *testing.T) {
	c := NewConvolutional(dlmath.Shape3d{}, s2(5, 5), 1, s2(1, 1), s2(0, 0))
	err := c.SetInputShape(NewLayerShape(s3(3, 3, 1)))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	strided := NewConvolutional(dlmath.Shape3d{}, s2(3, 3), 1, s2(2, 2), s2(0, 0))
	err = strided.SetInputShape(NewLayerShape(s3(2, 2, 1)))
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.Zero(t, strided.OutputSize())
}

func TestConvolutionalRoundTrip(t *testing.T) {
	c := NewConvolutional(s3(3, 3, 1), s2(2, 2), 1, s2(1, 1), s2(0, 0))
	params := c.Params()
	for i := 0; i < 4; i++ {
		params[i] = 1
	}
	params[4] = 0.5

	out, err := c.Forward(ones(9))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4.5, 4.5, 4.5, 4.5}, out, 1e-12)

	dx, err := c.Backward(ones(4))
	require.NoError(t, err)
	assert.Equal(t, []float64{
		1, 2, 1,
		2, 4, 2,
		1, 2, 1,
	}, dx)
	assert.Equal(t, []float64{4, 4, 4, 4, 4}, c.Gradients())

	// the input gradient is recomputed, parameter gradients accumulate
	dx, err = c.Backward(ones(4))
	require.NoError(t, err)
	assert.Equal(t, 4.0, dx[4])
	assert.Equal(t, []float64{8, 8, 8, 8, 8}, c.Gradients())
}

func TestConvolutionalInit(t *testing.T) {
	c := NewConvolutional(s3(5, 5, 2), s2(3, 3), 4, s2(1, 1), s2(1, 1))
	c.Init(Kaiming, Normal, dlmath.NewRNG(3))

	k := 4 * 3 * 3 * 2
	nonZero := 0
	for _, v := range c.Params()[:k] {
		if v != 0 {
			nonZero++
		}
	}
	assert.Equal(t, k, nonZero)
	assert.Equal(t, []float64{BiasInit, BiasInit, BiasInit, BiasInit}, c.Params()[k:])
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}
