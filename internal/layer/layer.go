// Package layer provides the layers of an execution graph: the Layer
// contract, every built-in layer variant and the loss layers that originate
// the backward pass.
//
// Layers own their buffers. Forward keeps a copy of its input for the
// following Backward and returns the layer's own output buffer, which is
// overwritten by the next call.
package layer

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

// Layer is a node of the execution graph.
type Layer interface {
	Name() string
	SetName(name string)
	// Type returns the registry tag of the layer variant.
	Type() string

	InputShape() LayerShape
	// SetInputShape binds the layer to an input shape and derives its output
	// shape, reallocating parameters when their count changes.
	SetInputShape(shape LayerShape) error
	OutputShape() LayerShape
	InputSize() int
	OutputSize() int

	// Forward is the inference path.
	Forward(x []float64) ([]float64, error)
	// TrainingForward is the training path; it differs from Forward only
	// where a layer behaves differently while training.
	TrainingForward(x []float64) ([]float64, error)
	// Backward consumes dL/doutput, accumulates parameter gradients and
	// returns dL/dinput.
	Backward(grad []float64) ([]float64, error)

	LastInput() []float64
	LastOutput() []float64

	ParamCount() int
	Param(i int) (float64, error)
	SetParam(i int, v float64) error
	Gradient(i int) (float64, error)
	// Params and Gradients are live views of the same length.
	Params() []float64
	Gradients() []float64
	ClearGradients()

	Init(method InitMethod, pdf PDF, rng *dlmath.RNG)
	Clone() Layer

	Dump() (*structpb.Struct, error)
	Load(s *structpb.Struct) error
}

// base carries the state shared by every layer.
type base struct {
	name        string
	typ         string
	inputShape  LayerShape
	outputShape LayerShape

	lastInput []float64
	output    []float64
	dx        []float64

	params []float64
	grads  []float64
}

func newBase(typ string) base {
	return base{typ: typ}
}

func (b *base) Name() string            { return b.name }
func (b *base) SetName(name string)     { b.name = name }
func (b *base) Type() string            { return b.typ }
func (b *base) InputShape() LayerShape  { return b.inputShape }
func (b *base) OutputShape() LayerShape { return b.outputShape }
func (b *base) InputSize() int          { return b.inputShape.Size() }
func (b *base) OutputSize() int         { return b.outputShape.Size() }
func (b *base) LastInput() []float64    { return b.lastInput }
func (b *base) LastOutput() []float64   { return b.output }
func (b *base) ParamCount() int         { return len(b.params) }
func (b *base) Params() []float64       { return b.params }
func (b *base) Gradients() []float64    { return b.grads }

// ClearGradients zeroes the gradient accumulator.
func (b *base) ClearGradients() {
	dlmath.Zero(b.grads)
}

func (b *base) checkIndex(i int) error {
	if len(b.params) == 0 {
		return errors.Wrapf(ErrUnsupported, "%s %q has no parameters", b.typ, b.name)
	}
	if i < 0 || i >= len(b.params) {
		return errors.Wrapf(ErrOutOfBounds, "%s %q: parameter %d of %d", b.typ, b.name, i, len(b.params))
	}
	return nil
}

// Param returns the i-th parameter.
func (b *base) Param(i int) (float64, error) {
	if err := b.checkIndex(i); err != nil {
		return 0, err
	}
	return b.params[i], nil
}

// SetParam sets the i-th parameter.
func (b *base) SetParam(i int, v float64) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	b.params[i] = v
	return nil
}

// Gradient returns the i-th accumulated gradient.
func (b *base) Gradient(i int) (float64, error) {
	if err := b.checkIndex(i); err != nil {
		return 0, err
	}
	return b.grads[i], nil
}

// setShapes installs the shapes and sizes the transient buffers.
func (b *base) setShapes(in, out LayerShape) {
	b.inputShape = in
	b.outputShape = out
	b.lastInput = make([]float64, in.Size())
	b.dx = make([]float64, in.Size())
	b.output = make([]float64, out.Size())
}

// setParamCount reallocates parameters and gradients when n changes.
func (b *base) setParamCount(n int) {
	if len(b.params) == n {
		return
	}
	b.params = make([]float64, n)
	b.grads = make([]float64, n)
}

// storeInput checks x against the input size and keeps an owned copy.
func (b *base) storeInput(x []float64) error {
	if b.InputSize() == 0 {
		return errors.Wrapf(ErrShapeMismatch, "%s %q: input shape not set", b.typ, b.name)
	}
	if len(x) != b.InputSize() {
		return errors.Wrapf(ErrShapeMismatch, "%s %q: input size %d, want %d",
			b.typ, b.name, len(x), b.InputSize())
	}
	copy(b.lastInput, x)
	return nil
}

func (b *base) checkGrad(g []float64) error {
	if len(g) != b.OutputSize() {
		return errors.Wrapf(ErrShapeMismatch, "%s %q: gradient size %d, want %d",
			b.typ, b.name, len(g), b.OutputSize())
	}
	return nil
}

// clone deep-copies the shared state.
func (b *base) clone() base {
	c := *b
	c.inputShape = NewLayerShape(b.inputShape.shapes...)
	c.outputShape = NewLayerShape(b.outputShape.shapes...)
	c.lastInput = append([]float64(nil), b.lastInput...)
	c.output = append([]float64(nil), b.output...)
	c.dx = append([]float64(nil), b.dx...)
	c.params = append([]float64(nil), b.params...)
	c.grads = append([]float64(nil), b.grads...)
	return c
}
