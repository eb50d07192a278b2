package layer

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FlavioCFOliveira/edgegraph/internal/activations"
	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

// Recurrent is an Elman layer unrolled over a fixed number of time steps.
// The input holds steps consecutive vectors and the output steps
// consecutive vectors of units values:
//
//	h(t) = tanh(W_ih x(t) + W_hh h(t-1) + b_h)
//	y(t) = W_ho h(t) + b_o
//
// Parameters are laid out as W_ih [hidden x in], W_hh [hidden x hidden],
// b_h, W_ho [units x hidden] and b_o.
//
// The layer is stateful: the last hidden state of a sequence is the initial
// state of the next one until ResetHiddenState. Backward propagates through
// the time steps of the last sequence only.
type Recurrent struct {
	base
	units  int
	hidden int
	steps  int
	in     int

	state []float64
	// hs holds h(0)..h(steps) of the last Forward.
	hs  []float64
	tmp []float64
}

// NewRecurrent creates a recurrent layer reading in values per time step.
// in may be 0, in which case the input is inferred from the first incoming
// edge and split evenly over the steps.
func NewRecurrent(in, units, hidden, steps int) *Recurrent {
	if units <= 0 || hidden <= 0 || steps <= 0 {
		panic("layer: recurrent units, hidden size and time steps must be positive")
	}
	r := &Recurrent{base: newBase(TypeRecurrent)}
	r.setSizes(units, hidden, steps)
	if in > 0 {
		if err := r.SetInputShape(FlatShape(in * steps)); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Recurrent) setSizes(units, hidden, steps int) {
	r.units = units
	r.hidden = hidden
	r.steps = steps
	r.state = make([]float64, hidden)
	r.hs = make([]float64, (steps+1)*hidden)
	r.tmp = make([]float64, hidden)
}

// Units returns the output size of one time step.
func (r *Recurrent) Units() int { return r.units }

// HiddenSize returns the size of the hidden state.
func (r *Recurrent) HiddenSize() int { return r.hidden }

// TimeSteps returns the sequence length.
func (r *Recurrent) TimeSteps() int { return r.steps }

// HiddenState returns the state the next Forward starts from.
func (r *Recurrent) HiddenState() []float64 { return r.state }

// SetHiddenState sets the leading values of the initial hidden state.
func (r *Recurrent) SetHiddenState(h []float64) error {
	if len(h) > r.hidden {
		return errors.Wrapf(ErrShapeMismatch, "recurrent %q: hidden state of %d values, want at most %d",
			r.name, len(h), r.hidden)
	}
	copy(r.state, h)
	return nil
}

// ResetHiddenState zeroes the initial hidden state.
func (r *Recurrent) ResetHiddenState() {
	dlmath.Zero(r.state)
}

func (r *Recurrent) SetInputShape(shape LayerShape) error {
	size := shape.Size()
	if r.steps <= 0 || size <= 0 || size%r.steps != 0 {
		return errors.Wrapf(ErrShapeMismatch, "recurrent %q: input of %d values over %d steps",
			r.name, size, r.steps)
	}
	r.in = size / r.steps
	r.setShapes(NewLayerShape(shape.Flat()), FlatShape(r.units*r.steps))
	h, o := r.hidden, r.units
	r.setParamCount(h*r.in + h*h + h + o*h + o)
	return nil
}

// split cuts a parameter-sized slice into W_ih, W_hh, b_h, W_ho and b_o.
func (r *Recurrent) split(v []float64) (wih, whh, bh, who, bo []float64) {
	h, o := r.hidden, r.units
	off := 0
	next := func(n int) []float64 {
		s := v[off : off+n]
		off += n
		return s
	}
	return next(h * r.in), next(h * h), next(h), next(o * h), next(o)
}

func (r *Recurrent) hiddenAt(t int) []float64 {
	return r.hs[t*r.hidden : (t+1)*r.hidden]
}

func vec(v []float64) *mat.VecDense { return mat.NewVecDense(len(v), v) }

// Forward runs the sequence from the carried hidden state.
func (r *Recurrent) Forward(x []float64) ([]float64, error) {
	if err := r.storeInput(x); err != nil {
		return nil, err
	}
	wih, whh, bh, who, bo := r.split(r.params)
	h, o := r.hidden, r.units
	Wih := mat.NewDense(h, r.in, wih)
	Whh := mat.NewDense(h, h, whh)
	Who := mat.NewDense(o, h, who)

	copy(r.hiddenAt(0), r.state)
	for t := 0; t < r.steps; t++ {
		cur := r.hiddenAt(t + 1)
		vec(cur).MulVec(Wih, vec(r.lastInput[t*r.in:(t+1)*r.in]))
		vec(r.tmp).MulVec(Whh, vec(r.hiddenAt(t)))
		dlmath.ArrSum(cur, cur, r.tmp)
		dlmath.ArrSum(cur, cur, bh)
		activations.Tanh{}.Activate(cur, cur)

		y := r.output[t*o : (t+1)*o]
		vec(y).MulVec(Who, vec(cur))
		dlmath.ArrSum(y, y, bo)
	}
	copy(r.state, r.hiddenAt(r.steps))
	return r.output, nil
}

func (r *Recurrent) TrainingForward(x []float64) ([]float64, error) {
	return r.Forward(x)
}

// Backward propagates through time over the last sequence, accumulating
// the gradients of every step.
func (r *Recurrent) Backward(grad []float64) ([]float64, error) {
	if err := r.checkGrad(grad); err != nil {
		return nil, err
	}
	wih, whh, _, who, _ := r.split(r.params)
	gwih, gwhh, gbh, gwho, gbo := r.split(r.grads)
	h, o := r.hidden, r.units
	Wih := mat.NewDense(h, r.in, wih)
	Whh := mat.NewDense(h, h, whh)
	Who := mat.NewDense(o, h, who)
	GWih := mat.NewDense(h, r.in, gwih)
	GWhh := mat.NewDense(h, h, gwhh)
	GWho := mat.NewDense(o, h, gwho)

	next := make([]float64, h)
	dh := make([]float64, h)
	dz := make([]float64, h)
	for t := r.steps - 1; t >= 0; t-- {
		g := grad[t*o : (t+1)*o]
		cur := r.hiddenAt(t + 1)
		x := r.lastInput[t*r.in : (t+1)*r.in]

		dlmath.ArrSum(gbo, gbo, g)
		GWho.RankOne(GWho, 1, vec(g), vec(cur))

		vec(dh).MulVec(Who.T(), vec(g))
		dlmath.ArrSum(dh, dh, next)
		activations.Tanh{}.Derivative(dz, cur, dh)

		dlmath.ArrSum(gbh, gbh, dz)
		GWih.RankOne(GWih, 1, vec(dz), vec(x))
		GWhh.RankOne(GWhh, 1, vec(dz), vec(r.hiddenAt(t)))

		vec(r.dx[t*r.in:(t+1)*r.in]).MulVec(Wih.T(), vec(dz))
		vec(next).MulVec(Whh.T(), vec(dz))
	}
	return r.dx, nil
}

// Init draws W_ih with fan_in = input size per step, W_hh and W_ho with
// fan_in = hidden size, sets the biases to BiasInit and zeroes the hidden
// state.
func (r *Recurrent) Init(method InitMethod, pdf PDF, rng *dlmath.RNG) {
	wih, whh, bh, who, bo := r.split(r.params)
	initWeights(wih, r.in, method, pdf, rng)
	initWeights(whh, r.hidden, method, pdf, rng)
	initWeights(who, r.hidden, method, pdf, rng)
	initBiases(bh)
	initBiases(bo)
	r.ResetHiddenState()
}

func (r *Recurrent) Clone() Layer {
	return &Recurrent{
		base:   r.clone(),
		units:  r.units,
		hidden: r.hidden,
		steps:  r.steps,
		in:     r.in,
		state:  append([]float64(nil), r.state...),
		hs:     append([]float64(nil), r.hs...),
		tmp:    make([]float64, r.hidden),
	}
}

func (r *Recurrent) Dump() (*structpb.Struct, error) {
	return dump(r, map[string]interface{}{
		"units":      r.units,
		"hidden":     r.hidden,
		"time_steps": r.steps,
	})
}

func (r *Recurrent) Load(s *structpb.Struct) error {
	return load(r, s, func(h map[string]*structpb.Value) error {
		units, hidden, steps := hyperInt(h, "units"), hyperInt(h, "hidden"), hyperInt(h, "time_steps")
		if units <= 0 || hidden <= 0 || steps <= 0 {
			return errors.Wrapf(ErrMalformedDump, "recurrent sizes %d/%d/%d", units, hidden, steps)
		}
		r.setSizes(units, hidden, steps)
		return nil
	})
}
