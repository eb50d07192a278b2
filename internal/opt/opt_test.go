package opt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// group is a fixed parameter group for tests.
type group struct {
	params []float64
	grads  []float64
}

func (g *group) Params() []float64    { return g.params }
func (g *group) Gradients() []float64 { return g.grads }
func (g *group) ClearGradients() {
	for i := range g.grads {
		g.grads[i] = 0
	}
}

type model []*group

func (m model) ParamGroups() []Parameters {
	out := make([]Parameters, len(m))
	for i, g := range m {
		out[i] = g
	}
	return out
}

func TestStepInPlace(t *testing.T) {
	params := []float64{1.0, 2.0, 3.0}
	StepInPlace(params, []float64{0.1, 0.2, 0.3}, 0.1)
	assert.InDeltaSlice(t, []float64{0.99, 1.98, 2.97}, params, 1e-12)
}

func TestGDTrain(t *testing.T) {
	a := &group{params: []float64{1, 2}, grads: []float64{0.5, -1}}
	b := &group{params: []float64{3}, grads: []float64{2}}
	gd := NewGD(0.1)

	gd.Train(model{a, b})

	assert.InDeltaSlice(t, []float64{0.95, 2.1}, a.params, 1e-12)
	assert.InDeltaSlice(t, []float64{2.8}, b.params, 1e-12)
	assert.Equal(t, []float64{0, 0}, a.grads)
	assert.Equal(t, []float64{0}, b.grads)

	// Cleared gradients make a second step a no-op.
	gd.Train(model{a, b})
	assert.InDeltaSlice(t, []float64{0.95, 2.1}, a.params, 1e-12)
}

func TestGDLearningRate(t *testing.T) {
	gd := NewGD(0.5)
	var lr LearningRater = gd
	lr.SetLearningRate(0.25)
	assert.Equal(t, 0.25, gd.LearningRate())
	assert.Equal(t, 0.25, gd.Eta)
}

func TestAdamDefaults(t *testing.T) {
	a := NewAdam(0.001)
	assert.Equal(t, 0.9, a.Beta1)
	assert.Equal(t, 0.999, a.Beta2)
	assert.Equal(t, 1e-8, a.Epsilon)
	assert.Equal(t, 0, a.Steps())
}

func TestAdamFirstStep(t *testing.T) {
	// With bias correction the first update is eta * g / (|g| + eps).
	g := &group{params: []float64{1, -1, 0}, grads: []float64{0.5, -2, 0}}
	a := NewAdam(0.1)

	a.Train(model{g})

	require.Equal(t, 1, a.Steps())
	want := []float64{
		1 - 0.1*0.5/(0.5+1e-8),
		-1 + 0.1*2/(2+1e-8),
		0,
	}
	assert.InDeltaSlice(t, want, g.params, 1e-12)
	assert.Equal(t, []float64{0, 0, 0}, g.grads)
}

func TestAdamPerParameterMoments(t *testing.T) {
	// Two groups with different gradient histories must not share moments.
	a1 := &group{params: []float64{0}, grads: []float64{1}}
	b1 := &group{params: []float64{0}, grads: []float64{1}}
	adam := NewAdam(0.1)
	adam.Train(model{a1, b1})
	assert.InDelta(t, a1.params[0], b1.params[0], 1e-15)

	a1.grads[0] = 1
	b1.grads[0] = -1
	adam.Train(model{a1, b1})

	// Second step by hand for the a group.
	m := 0.9*0.1 + 0.1*1
	v := 0.999*0.001 + 0.001*1
	mh := m / (1 - 0.9*0.9)
	vh := v / (1 - 0.999*0.999)
	first := -0.1 * 1 / (1 + 1e-8)
	assert.InDelta(t, first-0.1*mh/(math.Sqrt(vh)+1e-8), a1.params[0], 1e-12)
	assert.NotEqual(t, a1.params[0], b1.params[0])
}

func TestAdamReset(t *testing.T) {
	g := &group{params: []float64{1}, grads: []float64{1}}
	a := NewAdam(0.1)
	a.Train(model{g})
	a.Reset()
	assert.Equal(t, 0, a.Steps())

	// After a reset the next step behaves like a first step again.
	g.params[0] = 1
	g.grads[0] = 1
	a.Train(model{g})
	assert.InDelta(t, 1-0.1/(1+1e-8), g.params[0], 1e-12)
}

func TestAdamConverges(t *testing.T) {
	// Minimise (x-3)^2.
	g := &group{params: []float64{0}, grads: []float64{0}}
	a := NewAdam(0.1)
	for i := 0; i < 500; i++ {
		g.grads[0] = 2 * (g.params[0] - 3)
		a.Train(model{g})
	}
	assert.InDelta(t, 3, g.params[0], 1e-2)
}
