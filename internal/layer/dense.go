package layer

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

// Dense is a fully connected layer computing W x + b. Activations are
// separate layers.
//
// Parameters are laid out as the row-major [units x in] weight matrix
// followed by the units biases.
type Dense struct {
	base
	units int
}

// NewDense creates a dense layer with the given number of units. in may be
// 0, in which case the input size is inferred from the first incoming edge.
func NewDense(in, units int) *Dense {
	if units <= 0 {
		panic("layer: dense units must be positive")
	}
	d := &Dense{base: newBase(TypeDense), units: units}
	if in > 0 {
		if err := d.SetInputShape(FlatShape(in)); err != nil {
			panic(err)
		}
	}
	return d
}

// Units returns the number of output units.
func (d *Dense) Units() int {
	return d.units
}

func (d *Dense) SetInputShape(shape LayerShape) error {
	in := shape.Size()
	if in <= 0 {
		return errors.Wrapf(ErrShapeMismatch, "dense %q: empty input shape", d.name)
	}
	d.setShapes(NewLayerShape(shape.Flat()), FlatShape(d.units))
	d.setParamCount(d.units*in + d.units)
	return nil
}

func (d *Dense) weights() *mat.Dense {
	in := d.InputSize()
	return mat.NewDense(d.units, in, d.params[:d.units*in])
}

func (d *Dense) biases() []float64 {
	return d.params[d.units*d.InputSize():]
}

// Weight returns the weight from input col to unit row.
func (d *Dense) Weight(row, col int) float64 {
	return d.params[row*d.InputSize()+col]
}

// Bias returns the bias of unit i.
func (d *Dense) Bias(i int) float64 {
	return d.biases()[i]
}

// Forward computes W x + b.
func (d *Dense) Forward(x []float64) ([]float64, error) {
	if err := d.storeInput(x); err != nil {
		return nil, err
	}
	out := mat.NewVecDense(d.units, d.output)
	out.MulVec(d.weights(), mat.NewVecDense(len(d.lastInput), d.lastInput))
	dlmath.ArrSum(d.output, d.output, d.biases())
	return d.output, nil
}

func (d *Dense) TrainingForward(x []float64) ([]float64, error) {
	return d.Forward(x)
}

// Backward accumulates dL/dW = g x^T and dL/db = g, and returns W^T g.
func (d *Dense) Backward(grad []float64) ([]float64, error) {
	if err := d.checkGrad(grad); err != nil {
		return nil, err
	}
	in := d.InputSize()
	g := mat.NewVecDense(d.units, grad)

	wGrad := mat.NewDense(d.units, in, d.grads[:d.units*in])
	wGrad.RankOne(wGrad, 1, g, mat.NewVecDense(in, d.lastInput))
	dlmath.ArrSum(d.grads[d.units*in:], d.grads[d.units*in:], grad)

	dx := mat.NewVecDense(in, d.dx)
	dx.MulVec(d.weights().T(), g)
	return d.dx, nil
}

// Init draws the weights with fan_in = input size and sets biases to BiasInit.
func (d *Dense) Init(method InitMethod, pdf PDF, rng *dlmath.RNG) {
	in := d.InputSize()
	initWeights(d.params[:d.units*in], in, method, pdf, rng)
	initBiases(d.biases())
}

func (d *Dense) Clone() Layer {
	return &Dense{base: d.clone(), units: d.units}
}

func (d *Dense) Dump() (*structpb.Struct, error) {
	return dump(d, map[string]interface{}{"units": d.units})
}

func (d *Dense) Load(s *structpb.Struct) error {
	return load(d, s, func(h map[string]*structpb.Value) error {
		d.units = hyperInt(h, "units")
		if d.units <= 0 {
			return errors.Wrap(ErrMalformedDump, "dense units must be positive")
		}
		return nil
	})
}
