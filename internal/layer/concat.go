package layer

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

// Concatenate joins the outputs of several predecessors along one axis.
//
// Forward is called once per predecessor, in the order of the parallel
// input shapes; each call appends its input to the output buffer. Complete
// reports whether the last call delivered the final piece.
type Concatenate struct {
	base
	axis     int
	offsets  []int
	received int
	complete bool
}

// NewConcatenate creates a layer joining inputs of the given shapes along
// axis. Every other axis must agree across the inputs.
func NewConcatenate(inputs LayerShape, axis int) (*Concatenate, error) {
	if axis < 0 || axis >= dlmath.NumAxes {
		return nil, errors.Wrapf(ErrShapeMismatch, "concatenate: axis %d", axis)
	}
	c := &Concatenate{base: newBase(TypeConcatenate), axis: axis}
	if err := c.SetInputShape(inputs); err != nil {
		return nil, err
	}
	return c, nil
}

// Axis returns the concatenation axis.
func (c *Concatenate) Axis() int { return c.axis }

func (c *Concatenate) SetInputShape(shape LayerShape) error {
	if shape.Len() == 0 {
		return errors.Wrapf(ErrShapeMismatch, "concatenate %q: no input shapes", c.name)
	}
	first := shape.Shape(0)
	out := first.WithAxis(c.axis, 0)
	offsets := make([]int, shape.Len())
	for i, s := range shape.shapes {
		for ax := 0; ax < dlmath.NumAxes; ax++ {
			if ax != c.axis && s.Axis(ax) != first.Axis(ax) {
				return errors.Wrapf(ErrShapeMismatch, "concatenate %q: input %d is %v, want %v outside axis %d",
					c.name, i, s, first, c.axis)
			}
		}
		offsets[i] = out.Axis(c.axis)
		out = out.WithAxis(c.axis, out.Axis(c.axis)+s.Axis(c.axis))
	}
	c.offsets = offsets
	c.setShapes(shape, NewLayerShape(out))
	c.received = 0
	c.complete = false
	return nil
}

// Expected returns the number of inputs a full pass delivers.
func (c *Concatenate) Expected() int {
	return c.inputShape.Len()
}

// Complete reports whether the last Forward call delivered the final input.
func (c *Concatenate) Complete() bool {
	return c.complete
}

// Forward appends x, which must match the next expected input shape.
func (c *Concatenate) Forward(x []float64) ([]float64, error) {
	if c.Expected() == 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "concatenate %q: input shape not set", c.name)
	}
	k := c.received
	src := c.inputShape.Shape(k)
	if len(x) != src.Size() {
		return nil, errors.Wrapf(ErrShapeMismatch, "concatenate %q: input %d has size %d, want %d",
			c.name, k, len(x), src.Size())
	}
	dlmath.Append(c.output, c.outputShape.Shape(0), x, src, c.axis, c.offsets[k])
	c.lastInput = append(c.lastInput[:0], x...)

	c.received++
	c.complete = c.received == c.Expected()
	if c.complete {
		c.received = 0
	}
	return c.output, nil
}

func (c *Concatenate) TrainingForward(x []float64) ([]float64, error) {
	return c.Forward(x)
}

// Backward returns the gradient of the joined output unchanged; Split cuts
// it into one gradient per input.
func (c *Concatenate) Backward(grad []float64) ([]float64, error) {
	if err := c.checkGrad(grad); err != nil {
		return nil, err
	}
	c.dx = append(c.dx[:0], grad...)
	return c.dx, nil
}

// Split cuts a gradient of the joined output into one gradient per input,
// in input order.
func (c *Concatenate) Split(grad []float64) ([][]float64, error) {
	if err := c.checkGrad(grad); err != nil {
		return nil, err
	}
	out := c.outputShape.Shape(0)
	parts := make([][]float64, c.Expected())
	for k, s := range c.inputShape.shapes {
		parts[k] = make([]float64, s.Size())
		dlmath.Extract(parts[k], s, grad, out, c.axis, c.offsets[k])
	}
	return parts, nil
}

func (c *Concatenate) Init(InitMethod, PDF, *dlmath.RNG) {}

func (c *Concatenate) Clone() Layer {
	return &Concatenate{
		base:    c.clone(),
		axis:    c.axis,
		offsets: append([]int(nil), c.offsets...),
	}
}

func (c *Concatenate) Dump() (*structpb.Struct, error) {
	return dump(c, map[string]interface{}{"axis": c.axis})
}

func (c *Concatenate) Load(s *structpb.Struct) error {
	return load(c, s, func(h map[string]*structpb.Value) error {
		c.axis = hyperInt(h, "axis")
		if c.axis < 0 || c.axis >= dlmath.NumAxes {
			return errors.Wrapf(ErrMalformedDump, "concatenate axis %d", c.axis)
		}
		return nil
	})
}
