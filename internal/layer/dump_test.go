package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

func TestDumpLoadRoundTrip(t *testing.T) {
	concat, err := NewConcatenate(NewLayerShape(s3(2, 2, 1), s3(2, 2, 3)), dlmath.AxisChannels)
	require.NoError(t, err)

	layers := []Layer{
		NewDense(4, 3),
		NewReLU(5),
		NewSoftmax(5),
		NewTanh(5),
		NewLinear(5),
		NewSigmoid(5),
		NewELU(5, 0.3),
		NewConvolutional(s3(6, 6, 2), s2(3, 3), 4, s2(1, 1), s2(1, 1)),
		NewMaxPool(s3(6, 6, 2), s2(2, 2), s2(2, 2)),
		NewAveragePool(s3(6, 6, 2), s2(3, 3), s2(1, 1)),
		NewDropout(0.25, 7),
		concat,
		NewRecurrent(2, 3, 4, 5),
		NewMSELoss(3, 8, 0.1),
		NewCCELoss(10, 16),
	}

	rng := dlmath.NewRNG(11)
	for i, l := range layers {
		l.SetName(l.Type() + "_test")
		l.Init(Xavier, Uniform, rng)
		t.Run(l.Type(), func(t *testing.T) {
			s, err := l.Dump()
			require.NoError(t, err)

			got, err := FromDump(s)
			require.NoError(t, err)

			assert.Equal(t, l.Type(), got.Type())
			assert.Equal(t, l.Name(), got.Name())
			assert.True(t, l.InputShape().Equal(got.InputShape()), "layer %d input shape", i)
			assert.True(t, l.OutputShape().Equal(got.OutputShape()), "layer %d output shape", i)
			require.Equal(t, l.ParamCount(), got.ParamCount())
			for p := 0; p < l.ParamCount(); p++ {
				want, _ := l.Param(p)
				have, _ := got.Param(p)
				assert.Equal(t, want, have)
			}
		})
	}
}

func TestDumpKeepsHyperparameters(t *testing.T) {
	elu := NewELU(2, 0.3)
	s, err := elu.Dump()
	require.NoError(t, err)
	got, err := FromDump(s)
	require.NoError(t, err)
	out, err := got.Forward([]float64{-1, 1})
	require.NoError(t, err)
	want, err := elu.Forward([]float64{-1, 1})
	require.NoError(t, err)
	assert.Equal(t, want, out)

	mse := NewMSELoss(2, 4, 0.5)
	s, err = mse.Dump()
	require.NoError(t, err)
	loaded, err := FromDump(s)
	require.NoError(t, err)
	assert.Equal(t, 0.5, loaded.(*MSELoss).Tolerance())
	assert.Equal(t, 4, loaded.(*MSELoss).BatchSize())
}

func TestLoadRejectsWrongType(t *testing.T) {
	s, err := NewReLU(2).Dump()
	require.NoError(t, err)
	assert.ErrorIs(t, NewTanh(0).Load(s), ErrMalformedDump)

	s.Fields[fieldType].Kind = nil
	_, err = FromDump(s)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRegistry(t *testing.T) {
	l, err := New(TypeConvolutional)
	require.NoError(t, err)
	assert.Equal(t, TypeConvolutional, l.Type())

	_, err = New("Nope")
	assert.ErrorIs(t, err, ErrUnknownType)

	assert.ErrorIs(t, Register(TypeDense, func() Layer { return NewDense(1, 1) }), ErrDuplicateType)
}
