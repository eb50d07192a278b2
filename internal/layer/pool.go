package layer

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

// pool holds the shape bookkeeping shared by the pooling layers. Pooling has
// no padding and preserves the channel count.
type pool struct {
	base
	kernel   dlmath.Shape2d
	stride   dlmath.Shape2d
	srcShape dlmath.Shape3d
}

func (p *pool) SetInputShape(shape LayerShape) error {
	if shape.Len() != 1 || shape.Size() <= 0 {
		return errors.Wrapf(ErrShapeMismatch, "%s %q: needs one non-empty input shape, got %v", p.typ, p.name, shape)
	}
	src := shape.Shape(0)
	out := dlmath.KernelSlideShape(src, p.kernel, src.Channels, p.stride, dlmath.Shape2d{})
	if out.Size() <= 0 {
		return errors.Wrapf(ErrShapeMismatch, "%s %q: kernel %v does not fit input %v", p.typ, p.name, p.kernel, src)
	}
	p.srcShape = src
	p.setShapes(shape, NewLayerShape(out))
	return nil
}

// Kernel returns the pooling window.
func (p *pool) Kernel() dlmath.Shape2d { return p.kernel }

// Stride returns the window stride.
func (p *pool) Stride() dlmath.Shape2d { return p.stride }

func (p *pool) Init(InitMethod, PDF, *dlmath.RNG) {}

func (p *pool) hyper() map[string]interface{} {
	return map[string]interface{}{
		"kernel": shape2dToList(p.kernel),
		"stride": shape2dToList(p.stride),
	}
}

func (p *pool) setHyper(h map[string]*structpb.Value) error {
	p.kernel = hyperShape2d(h, "kernel")
	p.stride = hyperShape2d(h, "stride")
	if p.kernel.Size() <= 0 {
		return errors.Wrap(ErrMalformedDump, "pooling needs a kernel")
	}
	return nil
}

func newPool(typ string, input dlmath.Shape3d, kernel, stride dlmath.Shape2d) pool {
	if kernel.Size() <= 0 {
		panic("layer: pooling needs a non-empty kernel")
	}
	p := pool{base: newBase(typ), kernel: kernel, stride: stride}
	if input.Size() > 0 {
		if err := p.SetInputShape(NewLayerShape(input)); err != nil {
			panic(err)
		}
	}
	return p
}

// MaxPool keeps the maximum of every window and channel.
type MaxPool struct {
	pool
}

// NewMaxPool creates a max-pooling layer. A zero-size input is inferred from
// the first incoming edge.
func NewMaxPool(input dlmath.Shape3d, kernel, stride dlmath.Shape2d) *MaxPool {
	return &MaxPool{pool: newPool(TypeMaxPool, input, kernel, stride)}
}

func (m *MaxPool) Forward(x []float64) ([]float64, error) {
	if err := m.storeInput(x); err != nil {
		return nil, err
	}
	dlmath.MaxPool(m.output, m.lastInput, m.srcShape, m.kernel, m.stride)
	return m.output, nil
}

func (m *MaxPool) TrainingForward(x []float64) ([]float64, error) {
	return m.Forward(x)
}

// Backward routes each window's gradient to the first position that held
// its maximum.
func (m *MaxPool) Backward(grad []float64) ([]float64, error) {
	if err := m.checkGrad(grad); err != nil {
		return nil, err
	}
	dlmath.Zero(m.dx)
	dlmath.MaxPoolGrad(m.dx, grad, m.lastInput, m.srcShape, m.kernel, m.stride)
	return m.dx, nil
}

func (m *MaxPool) Clone() Layer {
	c := *m
	c.base = m.clone()
	return &c
}

func (m *MaxPool) Dump() (*structpb.Struct, error) { return dump(m, m.hyper()) }

func (m *MaxPool) Load(s *structpb.Struct) error { return load(m, s, m.setHyper) }

// AveragePool keeps the mean of every window and channel.
type AveragePool struct {
	pool
}

// NewAveragePool creates an average-pooling layer.
func NewAveragePool(input dlmath.Shape3d, kernel, stride dlmath.Shape2d) *AveragePool {
	return &AveragePool{pool: newPool(TypeAveragePool, input, kernel, stride)}
}

func (a *AveragePool) Forward(x []float64) ([]float64, error) {
	if err := a.storeInput(x); err != nil {
		return nil, err
	}
	dlmath.AvgPool(a.output, a.lastInput, a.srcShape, a.kernel, a.stride)
	return a.output, nil
}

func (a *AveragePool) TrainingForward(x []float64) ([]float64, error) {
	return a.Forward(x)
}

// Backward spreads each window's gradient evenly over the window.
func (a *AveragePool) Backward(grad []float64) ([]float64, error) {
	if err := a.checkGrad(grad); err != nil {
		return nil, err
	}
	dlmath.Zero(a.dx)
	dlmath.AvgPoolGrad(a.dx, grad, a.srcShape, a.kernel, a.stride)
	return a.dx, nil
}

func (a *AveragePool) Clone() Layer {
	c := *a
	c.base = a.clone()
	return &c
}

func (a *AveragePool) Dump() (*structpb.Struct, error) { return dump(a, a.hyper()) }

func (a *AveragePool) Load(s *structpb.Struct) error { return load(a, s, a.setHyper) }
