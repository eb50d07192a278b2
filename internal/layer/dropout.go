package layer

import (
	"strconv"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

// DefaultDropoutSeed seeds a dropout layer until Init reseeds it.
const DefaultDropoutSeed = 42

// Dropout implements inverted dropout. During training each unit is zeroed
// with probability p and survivors are scaled by 1/(1-p); during inference
// the layer is the identity.
type Dropout struct {
	base
	p       float64
	scale   float64
	dropped []int
	rng     *dlmath.RNG
}

// NewDropout creates a dropout layer with drop probability p. size 0 infers
// the size from the first incoming edge.
func NewDropout(p float64, size int) *Dropout {
	if p < 0 || p > 1 {
		panic("layer: drop probability must be in [0, 1]")
	}
	d := &Dropout{base: newBase(TypeDropout), rng: dlmath.NewRNG(DefaultDropoutSeed)}
	d.setProbability(p)
	if size > 0 {
		if err := d.SetInputShape(FlatShape(size)); err != nil {
			panic(err)
		}
	}
	return d
}

func (d *Dropout) setProbability(p float64) {
	d.p = p
	d.scale = 1
	if p != 1 {
		d.scale = 1 / (1 - p)
	}
}

// Probability returns the drop probability.
func (d *Dropout) Probability() float64 { return d.p }

// Scale returns the factor applied to surviving units.
func (d *Dropout) Scale() float64 { return d.scale }

// Dropped returns the indices zeroed by the last TrainingForward.
func (d *Dropout) Dropped() []int { return d.dropped }

func (d *Dropout) SetInputShape(shape LayerShape) error {
	if shape.Size() <= 0 {
		return errors.Wrapf(ErrShapeMismatch, "dropout %q: empty input shape", d.name)
	}
	flat := NewLayerShape(shape.Flat())
	d.setShapes(flat, flat)
	return nil
}

// Forward is the identity.
func (d *Dropout) Forward(x []float64) ([]float64, error) {
	if err := d.storeInput(x); err != nil {
		return nil, err
	}
	copy(d.output, d.lastInput)
	return d.output, nil
}

// TrainingForward draws a fresh mask: a unit survives when its uniform
// sample is above p. With p 0 nothing is dropped.
func (d *Dropout) TrainingForward(x []float64) ([]float64, error) {
	if err := d.storeInput(x); err != nil {
		return nil, err
	}
	d.dropped = d.dropped[:0]
	for i, v := range d.lastInput {
		if d.p > 0 && d.rng.Float64() <= d.p {
			d.output[i] = 0
			d.dropped = append(d.dropped, i)
		} else {
			d.output[i] = v * d.scale
		}
	}
	return d.output, nil
}

// Backward scales by the same factor and zeroes the dropped units.
func (d *Dropout) Backward(grad []float64) ([]float64, error) {
	if err := d.checkGrad(grad); err != nil {
		return nil, err
	}
	dlmath.ArrScale(d.dx, d.scale, grad)
	for _, i := range d.dropped {
		d.dx[i] = 0
	}
	return d.dx, nil
}

// Init reseeds the mask generator from rng.
func (d *Dropout) Init(_ InitMethod, _ PDF, rng *dlmath.RNG) {
	d.rng = dlmath.NewRNG(rng.Uint64())
}

func (d *Dropout) Clone() Layer {
	return &Dropout{
		base:    d.clone(),
		p:       d.p,
		scale:   d.scale,
		dropped: append([]int(nil), d.dropped...),
		rng:     dlmath.NewRNG(d.rng.Seed()),
	}
}

func (d *Dropout) Dump() (*structpb.Struct, error) {
	return dump(d, map[string]interface{}{
		"drop_probability": d.p,
		"seed":             strconv.FormatUint(d.rng.Seed(), 10),
	})
}

func (d *Dropout) Load(s *structpb.Struct) error {
	return load(d, s, func(h map[string]*structpb.Value) error {
		p := h["drop_probability"].GetNumberValue()
		if p < 0 || p > 1 {
			return errors.Wrapf(ErrMalformedDump, "drop probability %v", p)
		}
		d.setProbability(p)
		seed, err := strconv.ParseUint(h["seed"].GetStringValue(), 10, 64)
		if err != nil {
			return errors.Wrap(ErrMalformedDump, "dropout seed")
		}
		d.rng = dlmath.NewRNG(seed)
		return nil
	})
}
