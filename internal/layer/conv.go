package layer

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

// Convolutional is a multi-filter 2D convolution over an HWC volume.
//
// Parameters hold nFilters kernels laid out [filter][row][col][channel],
// followed by one bias per filter.
type Convolutional struct {
	base
	kernel   dlmath.Shape2d
	filters  int
	stride   dlmath.Shape2d
	padding  dlmath.Shape2d
	srcShape dlmath.Shape3d
}

// NewConvolutional creates a convolution over input. A zero-size input is
// inferred from the first incoming edge.
func NewConvolutional(input dlmath.Shape3d, kernel dlmath.Shape2d, filters int, stride, padding dlmath.Shape2d) *Convolutional {
	if filters <= 0 || kernel.Size() <= 0 {
		panic("layer: convolution needs a kernel and at least one filter")
	}
	c := &Convolutional{
		base:    newBase(TypeConvolutional),
		kernel:  kernel,
		filters: filters,
		stride:  stride,
		padding: padding,
	}
	if input.Size() > 0 {
		if err := c.SetInputShape(NewLayerShape(input)); err != nil {
			panic(err)
		}
	}
	return c
}

// Kernel returns the spatial kernel shape.
func (c *Convolutional) Kernel() dlmath.Shape2d { return c.kernel }

// Filters returns the number of filters.
func (c *Convolutional) Filters() int { return c.filters }

func (c *Convolutional) kernelSize() int {
	return c.filters * c.kernel.Size() * c.srcShape.Channels
}

func (c *Convolutional) SetInputShape(shape LayerShape) error {
	if shape.Len() != 1 || shape.Size() <= 0 {
		return errors.Wrapf(ErrShapeMismatch, "convolution %q: needs one non-empty input shape, got %v", c.name, shape)
	}
	src := shape.Shape(0)
	out := dlmath.KernelSlideShape(src, c.kernel, c.filters, c.stride, c.padding)
	if out.Size() <= 0 {
		return errors.Wrapf(ErrShapeMismatch, "convolution %q: kernel %v does not fit input %v", c.name, c.kernel, src)
	}
	c.srcShape = src
	c.setShapes(shape, NewLayerShape(out))
	c.setParamCount(c.kernelSize() + c.filters)
	return nil
}

func (c *Convolutional) kernelParams() []float64 { return c.params[:c.kernelSize()] }
func (c *Convolutional) biasParams() []float64   { return c.params[c.kernelSize():] }

func (c *Convolutional) Forward(x []float64) ([]float64, error) {
	if err := c.storeInput(x); err != nil {
		return nil, err
	}
	dlmath.Conv(c.output, c.lastInput, c.srcShape, c.kernelParams(), c.biasParams(),
		c.kernel, c.filters, c.stride, c.padding)
	return c.output, nil
}

func (c *Convolutional) TrainingForward(x []float64) ([]float64, error) {
	return c.Forward(x)
}

// Backward accumulates kernel and bias gradients and returns the input
// gradient in a single slide.
func (c *Convolutional) Backward(grad []float64) ([]float64, error) {
	if err := c.checkGrad(grad); err != nil {
		return nil, err
	}
	dlmath.Zero(c.dx)
	k := c.kernelSize()
	dlmath.ConvGrad(c.dx, c.grads[:k], c.grads[k:], grad, c.lastInput, c.srcShape,
		c.kernelParams(), c.kernel, c.filters, c.stride, c.padding)
	return c.dx, nil
}

// Init draws the kernels with fan_in = kernel height * width * channels.
func (c *Convolutional) Init(method InitMethod, pdf PDF, rng *dlmath.RNG) {
	initWeights(c.kernelParams(), c.kernel.Size()*c.srcShape.Channels, method, pdf, rng)
	initBiases(c.biasParams())
}

func (c *Convolutional) Clone() Layer {
	cc := *c
	cc.base = c.clone()
	return &cc
}

func (c *Convolutional) Dump() (*structpb.Struct, error) {
	return dump(c, map[string]interface{}{
		"kernel":  shape2dToList(c.kernel),
		"filters": c.filters,
		"stride":  shape2dToList(c.stride),
		"padding": shape2dToList(c.padding),
	})
}

func (c *Convolutional) Load(s *structpb.Struct) error {
	return load(c, s, func(h map[string]*structpb.Value) error {
		c.kernel = hyperShape2d(h, "kernel")
		c.filters = hyperInt(h, "filters")
		c.stride = hyperShape2d(h, "stride")
		c.padding = hyperShape2d(h, "padding")
		if c.filters <= 0 || c.kernel.Size() <= 0 {
			return errors.Wrap(ErrMalformedDump, "convolution needs a kernel and filters")
		}
		return nil
	})
}
