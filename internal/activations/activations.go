// Package activations provides vector activation functions and their
// derivatives. Derivatives are evaluated against the cached activation
// output so the forward pass never has to be recomputed.
package activations

import "math"

// Activation is an element-wise (or, for Softmax, vector-wise) activation.
type Activation interface {
	// Name returns the layer type tag the activation is registered under.
	Name() string

	// Activate writes f(x) into dst and returns dst.
	Activate(dst, x []float64) []float64

	// Derivative writes dL/dx into dst given the cached output y = f(x) and
	// the upstream gradient dL/dy.
	Derivative(dst, y, grad []float64) []float64
}

// ReLU activation function.
type ReLU struct{}

func (ReLU) Name() string { return "Relu" }

// Activate computes max(0, x)
func (ReLU) Activate(dst, x []float64) []float64 {
	for i, v := range x {
		dst[i] = math.Max(v, 0)
	}
	return dst
}

// Derivative passes the gradient where the output is positive.
func (ReLU) Derivative(dst, y, grad []float64) []float64 {
	for i := range y {
		if y[i] > 0 {
			dst[i] = grad[i]
		} else {
			dst[i] = 0
		}
	}
	return dst
}

// Softmax activation function for output layers.
type Softmax struct{}

func (Softmax) Name() string { return "Softmax" }

// Activate computes exp(x) / sum(exp(x)), shifted by max(x) for stability.
func (Softmax) Activate(dst, x []float64) []float64 {
	if len(x) == 0 {
		return dst
	}
	maxVal := x[0]
	for _, v := range x[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	sum := 0.0
	for i, v := range x {
		dst[i] = math.Exp(v - maxVal)
		sum += dst[i]
	}

	inv := 1 / sum
	for i := range dst[:len(x)] {
		dst[i] *= inv
	}
	return dst
}

// Derivative multiplies grad by the softmax Jacobian J_ij = s_i(δ_ij - s_j)
// built from the cached output s.
func (Softmax) Derivative(dst, s, grad []float64) []float64 {
	dot := 0.0
	for j := range s {
		dot += s[j] * grad[j]
	}
	for i := range s {
		dst[i] = s[i] * (grad[i] - dot)
	}
	return dst
}

// Tanh activation function.
type Tanh struct{}

func (Tanh) Name() string { return "Tanh" }

// Activate computes tanh(x)
func (Tanh) Activate(dst, x []float64) []float64 {
	for i, v := range x {
		dst[i] = math.Tanh(v)
	}
	return dst
}

// Derivative computes (1 - y^2) * grad
func (Tanh) Derivative(dst, y, grad []float64) []float64 {
	for i := range y {
		dst[i] = (1 - y[i]*y[i]) * grad[i]
	}
	return dst
}

// Linear is the identity activation.
type Linear struct{}

func (Linear) Name() string { return "Linear" }

func (Linear) Activate(dst, x []float64) []float64 {
	copy(dst, x)
	return dst
}

func (Linear) Derivative(dst, _, grad []float64) []float64 {
	copy(dst, grad)
	return dst
}

// Sigmoid activation function.
type Sigmoid struct{}

func (Sigmoid) Name() string { return "Sigmoid" }

// Activate computes 1 / (1 + exp(-x))
func (Sigmoid) Activate(dst, x []float64) []float64 {
	for i, v := range x {
		dst[i] = 1 / (1 + math.Exp(-v))
	}
	return dst
}

// Derivative computes y * (1 - y) * grad
func (Sigmoid) Derivative(dst, y, grad []float64) []float64 {
	for i := range y {
		dst[i] = y[i] * (1 - y[i]) * grad[i]
	}
	return dst
}

// ELU (Exponential Linear Unit) activation function.
type ELU struct {
	Alpha float64
}

// NewELU creates an ELU with the given alpha value.
func NewELU(alpha float64) ELU {
	return ELU{Alpha: alpha}
}

func (ELU) Name() string { return "Elu" }

// Activate computes x if x > 0, else alpha*(exp(x) - 1)
func (e ELU) Activate(dst, x []float64) []float64 {
	for i, v := range x {
		if v > 0 {
			dst[i] = v
		} else {
			dst[i] = e.Alpha * (math.Exp(v) - 1)
		}
	}
	return dst
}

// Derivative uses f'(x) = f(x) + alpha for x <= 0.
func (e ELU) Derivative(dst, y, grad []float64) []float64 {
	for i := range y {
		if y[i] > 0 {
			dst[i] = grad[i]
		} else {
			dst[i] = (y[i] + e.Alpha) * grad[i]
		}
	}
	return dst
}
