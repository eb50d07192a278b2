// Package opt provides optimization algorithms and learning-rate schedulers.
package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Parameters is a group of parameters with a matching gradient buffer.
// Every layer satisfies it.
type Parameters interface {
	Params() []float64
	Gradients() []float64
	ClearGradients()
}

// Parameterized exposes the parameter groups an optimizer updates. The
// order of the groups must be stable between calls.
type Parameterized interface {
	ParamGroups() []Parameters
}

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	// Train applies one update to every group and clears the gradients.
	Train(p Parameterized)
	// Reset drops any state accumulated across Train calls.
	Reset()
}

// LearningRater is an optimizer with an adjustable learning rate.
type LearningRater interface {
	LearningRate() float64
	SetLearningRate(lr float64)
}

// GD is plain gradient descent: params -= eta * gradients.
type GD struct {
	Eta float64
}

// NewGD creates a gradient-descent optimizer.
func NewGD(eta float64) *GD {
	return &GD{Eta: eta}
}

func (g *GD) Train(p Parameterized) {
	for _, group := range p.ParamGroups() {
		StepInPlace(group.Params(), group.Gradients(), g.Eta)
		group.ClearGradients()
	}
}

func (g *GD) Reset() {}

func (g *GD) LearningRate() float64      { return g.Eta }
func (g *GD) SetLearningRate(lr float64) { g.Eta = lr }

// StepInPlace updates params in-place: params = params - lr * gradients
func StepInPlace(params, gradients []float64, lr float64) {
	floats.AddScaled(params, -lr, gradients)
}

// Adam optimizer with per-parameter first and second moments and bias
// correction.
type Adam struct {
	Eta     float64
	Beta1   float64 // Exponential decay rate for first moment
	Beta2   float64 // Exponential decay rate for second moment
	Epsilon float64 // Small constant for numerical stability

	m [][]float64
	v [][]float64
	t int
}

// NewAdam creates a new Adam optimizer with default values.
func NewAdam(eta float64) *Adam {
	return &Adam{
		Eta:     eta,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
	}
}

// Train performs one Adam step on every group.
func (a *Adam) Train(p Parameterized) {
	groups := p.ParamGroups()
	if len(a.m) != len(groups) {
		a.m = make([][]float64, len(groups))
		a.v = make([][]float64, len(groups))
	}
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for k, group := range groups {
		params, grads := group.Params(), group.Gradients()
		if len(a.m[k]) != len(params) {
			a.m[k] = make([]float64, len(params))
			a.v[k] = make([]float64, len(params))
		}
		m, v := a.m[k], a.v[k]
		for i, g := range grads {
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*g
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*g*g
			params[i] -= a.Eta * (m[i] / c1) / (math.Sqrt(v[i]/c2) + a.Epsilon)
		}
		group.ClearGradients()
	}
}

// Reset clears the moments and the step counter.
func (a *Adam) Reset() {
	a.m = nil
	a.v = nil
	a.t = 0
}

// Steps returns the number of Train calls since the last Reset.
func (a *Adam) Steps() int { return a.t }

func (a *Adam) LearningRate() float64      { return a.Eta }
func (a *Adam) SetLearningRate(lr float64) { a.Eta = lr }
