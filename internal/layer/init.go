package layer

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

// InitMethod selects the standard deviation of initial weights.
type InitMethod int

const (
	// Xavier uses sigma = sqrt(1/fan_in).
	Xavier InitMethod = iota
	// Kaiming uses sigma = sqrt(2/fan_in), suited to ReLU successors.
	Kaiming
	// Auto lets the model pick Kaiming or Xavier by looking at successors.
	// A layer initialised directly with Auto uses Xavier.
	Auto
)

func (m InitMethod) String() string {
	switch m {
	case Xavier:
		return "xavier"
	case Kaiming:
		return "kaiming"
	case Auto:
		return "auto"
	}
	return "unknown"
}

// ParseInitMethod parses "xavier", "kaiming" or "auto".
func ParseInitMethod(s string) (InitMethod, error) {
	switch strings.ToLower(s) {
	case "xavier":
		return Xavier, nil
	case "kaiming", "he":
		return Kaiming, nil
	case "auto", "":
		return Auto, nil
	}
	return Auto, errors.Errorf("unknown init method %q", s)
}

// PDF selects the distribution initial weights are drawn from.
type PDF int

const (
	Normal PDF = iota
	Uniform
)

func (p PDF) String() string {
	if p == Uniform {
		return "uniform"
	}
	return "normal"
}

// ParsePDF parses "normal" or "uniform".
func ParsePDF(s string) (PDF, error) {
	switch strings.ToLower(s) {
	case "normal", "":
		return Normal, nil
	case "uniform":
		return Uniform, nil
	}
	return Normal, errors.Errorf("unknown distribution %q", s)
}

// BiasInit is the constant every bias starts from.
const BiasInit = 0.01

// initWeights fills weights from the distribution selected by method and pdf
// for a unit with fanIn inputs. Uniform samples span [-sigma*sqrt(3),
// sigma*sqrt(3)) so both distributions share the same standard deviation.
func initWeights(weights []float64, fanIn int, method InitMethod, pdf PDF, rng *dlmath.RNG) {
	if fanIn < 1 {
		fanIn = 1
	}
	sigma := math.Sqrt(1 / float64(fanIn))
	if method == Kaiming {
		sigma = math.Sqrt(2 / float64(fanIn))
	}

	sample := rng.Normal(0, sigma).Rand
	if pdf == Uniform {
		limit := sigma * math.Sqrt(3)
		sample = rng.Uniform(-limit, limit).Rand
	}
	for i := range weights {
		weights[i] = sample()
	}
}

func initBiases(biases []float64) {
	for i := range biases {
		biases[i] = BiasInit
	}
}
