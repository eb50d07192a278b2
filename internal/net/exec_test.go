package net

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
	"github.com/FlavioCFOliveira/edgegraph/internal/layer"
	"github.com/FlavioCFOliveira/edgegraph/internal/opt"
)

func TestCCEAccuracyScenario(t *testing.T) {
	m := New()
	in := layer.NewLinear(3)
	loss := layer.NewCCELoss(0, 1)
	m.AddLayer(in)
	m.AddLoss(loss)
	require.NoError(t, m.CreateLossEdge(in, loss))

	assert.True(t, math.IsNaN(m.AvgLoss()))
	assert.True(t, math.IsNaN(m.Accuracy()))

	require.NoError(t, m.Step([]float64{0.1, 0.7, 0.2}, []float64{0, 1, 0}))
	assert.Equal(t, 1, loss.Correct())
	assert.Equal(t, 0, loss.Incorrect())
	assert.InDelta(t, -math.Log(0.7), m.AvgLoss(), 1e-9)
	assert.Equal(t, 1.0, m.Accuracy())

	require.NoError(t, m.Step([]float64{0.6, 0.3, 0.1}, []float64{0, 1, 0}))
	assert.Equal(t, 1, loss.Incorrect())
	assert.Equal(t, 0.5, m.Accuracy())
	assert.InDelta(t, (-math.Log(0.7)-math.Log(0.3))/2, m.AvgLoss(), 1e-9)

	m.ResetScore()
	assert.True(t, math.IsNaN(m.Accuracy()))
}

func TestStepGradientAndTrain(t *testing.T) {
	m := New()
	d := layer.NewDense(2, 1)
	loss := layer.NewMSELoss(0, 1, 0)
	m.AddLayer(d)
	m.AddLoss(loss)
	require.NoError(t, m.CreateLossEdge(d, loss))
	copy(d.Params(), []float64{0.5, -0.5, 0.1})

	// pred = 0.5 - 1 + 0.1 = -0.4; dL/dpred = -2 * (1 - -0.4) = -2.8
	require.NoError(t, m.Step([]float64{1, 2}, []float64{1}))
	assert.InDeltaSlice(t, []float64{-2.8, -5.6, -2.8}, d.Gradients(), 1e-12)

	// A second step accumulates.
	require.NoError(t, m.Step([]float64{1, 2}, []float64{1}))
	assert.InDeltaSlice(t, []float64{-5.6, -11.2, -5.6}, d.Gradients(), 1e-12)

	m.Train(opt.NewGD(0.1))
	assert.InDeltaSlice(t, []float64{1.06, 0.62, 0.66}, d.Params(), 1e-12)
	assert.Equal(t, []float64{0, 0, 0}, d.Gradients())
	assert.True(t, math.IsNaN(m.AvgLoss()), "train resets the score")
}

func TestStepBatchNormalisation(t *testing.T) {
	m := New()
	d := layer.NewDense(1, 1)
	loss := layer.NewMSELoss(0, 1, 0)
	m.AddLayer(d)
	m.AddLoss(loss)
	require.NoError(t, m.CreateLossEdge(d, loss))
	m.SetBatchSize(4)
	copy(d.Params(), []float64{1, 0})

	// pred = 2; dL/dpred = -2 * (0 - 2) / 4 = 1
	require.NoError(t, m.Step([]float64{2}, []float64{0}))
	assert.InDeltaSlice(t, []float64{2, 1}, d.Gradients(), 1e-12)
	assert.Equal(t, 4, loss.BatchSize())
}

func TestStepErrors(t *testing.T) {
	assert.True(t, errors.Is(New().Step(nil, nil), ErrNoLoss))

	m := New()
	d := layer.NewDense(2, 2)
	loss := layer.NewMSELoss(2, 1, 0)
	m.AddLayer(d)
	m.AddLoss(loss)
	assert.True(t, errors.Is(m.Step([]float64{1, 2}, []float64{0, 0}), ErrNoLoss), "unreachable loss")

	require.NoError(t, m.CreateLossEdge(d, loss))
	assert.True(t, errors.Is(m.Step([]float64{1}, []float64{0, 0}), ErrNoInput))
	assert.True(t, errors.Is(m.Step([]float64{1, 2}, []float64{0}), layer.ErrShapeMismatch))
	assert.NoError(t, m.Step([]float64{1, 2}, []float64{0, 0}))

	_, err := New().Predict([]float64{1})
	assert.True(t, errors.Is(err, ErrNoInput))
}

func TestFanInSumsInputs(t *testing.T) {
	m := New()
	a := layer.NewLinear(2)
	b := layer.NewLinear(2)
	c := layer.NewLinear(0)
	loss := layer.NewMSELoss(0, 1, 0)
	m.AddLayer(a)
	m.AddLayer(b)
	m.AddLayer(c)
	m.AddLoss(loss)
	require.NoError(t, m.CreateEdges([]layer.Layer{a, b}, c))
	require.NoError(t, m.CreateLossEdge(c, loss))

	assert.Equal(t, 4, m.InputSize())
	out, err := m.Predict([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 6}, out)

	require.NoError(t, m.Step([]float64{1, 2, 3, 4}, []float64{4, 6}))
	assert.Equal(t, 0.0, loss.Loss())
}

func TestFanOutSumsGradients(t *testing.T) {
	// d feeds two branches, each with its own loss.
	m := New()
	d := layer.NewDense(1, 1)
	l1 := layer.NewLinear(0)
	l2 := layer.NewLinear(0)
	loss1 := layer.NewMSELoss(0, 1, 0)
	loss2 := layer.NewMSELoss(0, 1, 0)
	m.AddLayer(d)
	m.AddLayer(l1)
	m.AddLayer(l2)
	m.AddLoss(loss1)
	m.AddLoss(loss2)
	require.NoError(t, m.CreateEdge(d, l1))
	require.NoError(t, m.CreateEdge(d, l2))
	require.NoError(t, m.CreateLossEdge(l1, loss1))
	require.NoError(t, m.CreateLossEdge(l2, loss2))
	copy(d.Params(), []float64{1, 0})

	// Both predictions are 1 against targets 0: each loss sends back 2.
	require.NoError(t, m.Step([]float64{1}, []float64{0, 0}))
	assert.InDeltaSlice(t, []float64{4, 4}, d.Gradients(), 1e-12)
	assert.Equal(t, 1.0, m.AvgLoss())

	out, err := m.Predict([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, out, "outputs joined in index order")
}

func TestConcatenateRoutesGradients(t *testing.T) {
	m := New()
	a := layer.NewDense(1, 2)
	b := layer.NewDense(1, 3)
	c, err := layer.NewConcatenate(layer.NewLayerShape(dlmath.Shape3dOf(2), dlmath.Shape3dOf(3)), dlmath.AxisHeight)
	require.NoError(t, err)
	loss := layer.NewMSELoss(0, 1, 0)
	m.AddLayer(a)
	m.AddLayer(b)
	m.AddLayer(c)
	m.AddLoss(loss)
	require.NoError(t, m.CreateEdges([]layer.Layer{a, b}, c))
	require.NoError(t, m.CreateLossEdge(c, loss))

	// Zero weights: the outputs are the biases.
	copy(a.Params(), []float64{0, 0, 1, 2})
	copy(b.Params(), []float64{0, 0, 0, 3, 4, 5})

	out, err := m.Predict([]float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, out)

	// Against a zero target the loss gradient is 2 * prediction.
	require.NoError(t, m.Step([]float64{1, 1}, []float64{0, 0, 0, 0, 0}))
	assert.InDeltaSlice(t, []float64{2, 4, 2, 4}, a.Gradients(), 1e-12)
	assert.InDeltaSlice(t, []float64{6, 8, 10, 6, 8, 10}, b.Gradients(), 1e-12)
}

// crossed builds in -> {wide, narrow} -> concatenate([4, 8]) -> mse with
// wide registered first, so the lower index feeds the second input. Every
// weight is 0 and the biases count 1..12 in concatenated order.
func crossed(t *testing.T) (*Model, *layer.Dense, *layer.Dense) {
	t.Helper()
	m := New()
	in := layer.NewLinear(1)
	wide := layer.NewDense(0, 8)
	narrow := layer.NewDense(0, 4)
	c, err := layer.NewConcatenate(layer.NewLayerShape(dlmath.Shape3dOf(4), dlmath.Shape3dOf(8)), dlmath.AxisHeight)
	require.NoError(t, err)
	loss := layer.NewMSELoss(0, 1, 0)
	m.AddLayer(in)
	m.AddLayer(wide)
	m.AddLayer(narrow)
	m.AddLayer(c)
	m.AddLoss(loss)
	require.NoError(t, m.CreateEdge(in, wide))
	require.NoError(t, m.CreateEdge(in, narrow))
	require.NoError(t, m.CreateEdges([]layer.Layer{wide, narrow}, c))
	require.NoError(t, m.CreateLossEdge(c, loss))

	copy(narrow.Params()[4:], []float64{1, 2, 3, 4})
	copy(wide.Params()[8:], []float64{5, 6, 7, 8, 9, 10, 11, 12})
	return m, wide, narrow
}

func TestConcatenateInputsFollowShapes(t *testing.T) {
	m, wide, narrow := crossed(t)

	out, err := m.Predict([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, out)

	require.NoError(t, m.Step([]float64{1}, make([]float64, 12)))
	assert.InDeltaSlice(t, []float64{2, 4, 6, 8, 2, 4, 6, 8}, narrow.Gradients(), 1e-12)
	assert.InDeltaSlice(t, []float64{10, 12, 14, 16, 18, 20, 22, 24, 10, 12, 14, 16, 18, 20, 22, 24},
		wide.Gradients(), 1e-12)

	clone := m.Clone()
	got, err := clone.Predict([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, out, got)
}

func TestConcatenateRejectsSurplusInput(t *testing.T) {
	m := New()
	a := layer.NewLinear(2)
	b := layer.NewLinear(2)
	extra := layer.NewLinear(2)
	c, err := layer.NewConcatenate(layer.NewLayerShape(dlmath.Shape3dOf(2), dlmath.Shape3dOf(2)), dlmath.AxisHeight)
	require.NoError(t, err)
	for _, l := range []layer.Layer{a, b, extra, c} {
		m.AddLayer(l)
	}
	require.NoError(t, m.CreateEdges([]layer.Layer{a, b}, c))
	require.NoError(t, m.CreateEdge(a, c), "repeated edge keeps its input")

	err = m.CreateEdge(extra, c)
	assert.True(t, errors.Is(err, layer.ErrShapeMismatch))
}

func TestConcatenateInputCount(t *testing.T) {
	m := New()
	a := layer.NewLinear(2)
	c, err := layer.NewConcatenate(layer.NewLayerShape(dlmath.Shape3dOf(2), dlmath.Shape3dOf(2)), dlmath.AxisHeight)
	require.NoError(t, err)
	m.AddLayer(a)
	m.AddLayer(c)
	require.NoError(t, m.CreateEdge(a, c))

	_, err = m.Predict([]float64{1, 2})
	assert.True(t, errors.Is(err, layer.ErrShapeMismatch))
}

func TestDropoutOnlyWhileTraining(t *testing.T) {
	m := New()
	in := layer.NewLinear(100)
	drop := layer.NewDropout(0.5, 0)
	loss := layer.NewMSELoss(0, 1, 0)
	m.AddLayer(in)
	m.AddLayer(drop)
	m.AddLoss(loss)
	require.NoError(t, m.CreateEdge(in, drop))
	require.NoError(t, m.CreateLossEdge(drop, loss))

	x := make([]float64, 100)
	for i := range x {
		x[i] = 1
	}
	out, err := m.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, x, out)

	require.NoError(t, m.Step(x, make([]float64, 100)))
	assert.NotEmpty(t, drop.Dropped())
	for _, i := range drop.Dropped() {
		assert.Equal(t, 0.0, drop.LastOutput()[i])
	}
}

func TestPredictAll(t *testing.T) {
	m := chain(t)
	m.Init(layer.Xavier, layer.Normal, 1)

	out, err := m.PredictAll([][]float64{{0, 0}, {1, 1}})
	require.NoError(t, err)
	require.Len(t, out, 2)
	first, err := m.Predict([]float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, first, out[0])

	_, err = m.PredictAll([][]float64{{1}})
	assert.True(t, errors.Is(err, ErrNoInput))
}
