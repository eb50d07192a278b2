package layer

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FlavioCFOliveira/edgegraph/internal/activations"
	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

// Activation applies an activation function element-wise (vector-wise for
// Softmax). The output keeps the input shape.
type Activation struct {
	base
	fn activations.Activation
}

func newActivation(fn activations.Activation, size int) *Activation {
	a := &Activation{base: newBase(fn.Name()), fn: fn}
	if size > 0 {
		if err := a.SetInputShape(FlatShape(size)); err != nil {
			panic(err)
		}
	}
	return a
}

// NewReLU creates a ReLU layer; size 0 infers it from the first edge.
func NewReLU(size int) *Activation { return newActivation(activations.ReLU{}, size) }

// NewSoftmax creates a Softmax layer.
func NewSoftmax(size int) *Activation { return newActivation(activations.Softmax{}, size) }

// NewTanh creates a Tanh layer.
func NewTanh(size int) *Activation { return newActivation(activations.Tanh{}, size) }

// NewLinear creates an identity layer.
func NewLinear(size int) *Activation { return newActivation(activations.Linear{}, size) }

// NewSigmoid creates a Sigmoid layer.
func NewSigmoid(size int) *Activation { return newActivation(activations.Sigmoid{}, size) }

// NewELU creates an ELU layer with the given alpha.
func NewELU(size int, alpha float64) *Activation {
	return newActivation(activations.NewELU(alpha), size)
}

// Func returns the wrapped activation function.
func (a *Activation) Func() activations.Activation {
	return a.fn
}

func (a *Activation) SetInputShape(shape LayerShape) error {
	if shape.Size() <= 0 {
		return errors.Wrapf(ErrShapeMismatch, "%s %q: empty input shape", a.typ, a.name)
	}
	flat := NewLayerShape(shape.Flat())
	a.setShapes(flat, flat)
	return nil
}

func (a *Activation) Forward(x []float64) ([]float64, error) {
	if err := a.storeInput(x); err != nil {
		return nil, err
	}
	return a.fn.Activate(a.output, a.lastInput), nil
}

func (a *Activation) TrainingForward(x []float64) ([]float64, error) {
	return a.Forward(x)
}

// Backward evaluates the derivative against the cached output.
func (a *Activation) Backward(grad []float64) ([]float64, error) {
	if err := a.checkGrad(grad); err != nil {
		return nil, err
	}
	return a.fn.Derivative(a.dx, a.output, grad), nil
}

func (a *Activation) Init(InitMethod, PDF, *dlmath.RNG) {}

func (a *Activation) Clone() Layer {
	return &Activation{base: a.clone(), fn: a.fn}
}

func (a *Activation) Dump() (*structpb.Struct, error) {
	var hyper map[string]interface{}
	if elu, ok := a.fn.(activations.ELU); ok {
		hyper = map[string]interface{}{"alpha": elu.Alpha}
	}
	return dump(a, hyper)
}

func (a *Activation) Load(s *structpb.Struct) error {
	return load(a, s, func(h map[string]*structpb.Value) error {
		if _, ok := a.fn.(activations.ELU); ok {
			if v, ok := h["alpha"]; ok {
				a.fn = activations.NewELU(v.GetNumberValue())
			}
		}
		return nil
	})
}
