// Package loss provides the loss functions used by the loss layers together
// with their first derivatives. Logarithms and divisions are floored so that
// predictions close to zero never produce NaN or Inf.
package loss

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// Epsilon floors predictions before taking their logarithm.
	Epsilon = 0x1p-52
	// MinNormal floors predictions before dividing by them.
	MinNormal = 0x1p-1022
)

// Loss is a loss function with derivative.
type Loss interface {
	// Forward computes the loss between the target and the prediction.
	Forward(target, pred []float64) float64

	// Backward writes dL/dpred scaled by norm into dst and returns dst.
	Backward(dst, target, pred []float64, norm float64) []float64
}

// MeanSquaredError returns mean((y - ŷ)^2).
func MeanSquaredError(y, yHat []float64) float64 {
	if len(y) != len(yHat) {
		panic("loss: target and prediction must have same length")
	}
	if len(y) == 0 {
		return 0
	}
	var sum float64
	for i := range y {
		d := y[i] - yHat[i]
		sum += d * d
	}
	return sum / float64(len(y))
}

// MeanSquaredErrorGrad writes -2 * norm * (y - ŷ) into dst.
func MeanSquaredErrorGrad(dst, y, yHat []float64, norm float64) []float64 {
	for i := range y {
		dst[i] = -2 * norm * (y[i] - yHat[i])
	}
	return dst
}

// CrossEntropy returns sum(-y * log(max(ŷ, Epsilon))).
func CrossEntropy(y, yHat []float64) float64 {
	if len(y) != len(yHat) {
		panic("loss: target and prediction must have same length")
	}
	var sum float64
	for i := range y {
		sum -= y[i] * math.Log(math.Max(yHat[i], Epsilon))
	}
	return sum
}

// CrossEntropyGrad writes -norm * y / max(ŷ, MinNormal) into dst.
func CrossEntropyGrad(dst, y, yHat []float64, norm float64) []float64 {
	for i := range y {
		dst[i] = -norm * y[i] / math.Max(yHat[i], MinNormal)
	}
	return dst
}

// MSE (Mean Squared Error) loss.
type MSE struct{}

// Forward computes mean squared error: (1/n) * sum((y_true - y_pred)^2)
func (MSE) Forward(target, pred []float64) float64 {
	return MeanSquaredError(target, pred)
}

// Backward computes dL/dy_pred = -2 * norm * (y_true - y_pred)
func (MSE) Backward(dst, target, pred []float64, norm float64) []float64 {
	return MeanSquaredErrorGrad(dst, target, pred, norm)
}

// CategoricalCrossEntropy loss over a probability vector, typically a softmax output.
type CategoricalCrossEntropy struct{}

// Forward computes -sum(y_true * log(y_pred)).
func (CategoricalCrossEntropy) Forward(target, pred []float64) float64 {
	return CrossEntropy(target, pred)
}

// Backward computes -norm * y_true / y_pred.
func (CategoricalCrossEntropy) Backward(dst, target, pred []float64, norm float64) []float64 {
	return CrossEntropyGrad(dst, target, pred, norm)
}

// HotIndex returns the index of the first non-zero entry of a one-hot
// target, or -1 when every entry is zero.
func HotIndex(target []float64) int {
	inds, err := floats.Find(nil, func(v float64) bool { return v != 0 }, target, 1)
	if err != nil {
		return -1
	}
	return inds[0]
}
