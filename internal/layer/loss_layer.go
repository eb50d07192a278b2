package layer

import (
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
	"github.com/FlavioCFOliveira/edgegraph/internal/loss"
)

// LossLayer is a graph sink comparing a prediction with a target. It
// originates the backward pass and keeps a running score.
type LossLayer interface {
	Layer

	// SetTarget sets the ground truth of the current sample.
	SetTarget(target []float64) error
	Target() []float64
	// Loss returns the loss of the last Forward.
	Loss() float64
	CumulativeLoss() float64
	Correct() int
	Incorrect() int
	// AvgLoss and Accuracy divide by Correct()+Incorrect() and are NaN
	// before the first Forward.
	AvgLoss() float64
	Accuracy() float64
	ResetScore()
	SetBatchSize(n int)
	BatchSize() int
}

// lossBase implements the score keeping shared by the loss layers.
type lossBase struct {
	base
	fn           loss.Loss
	target       []float64
	loss         float64
	cumulative   float64
	correct      int
	incorrect    int
	batchSize    int
	invBatchSize float64
}

func newLossBase(typ string, fn loss.Loss, size, batchSize int) lossBase {
	l := lossBase{base: newBase(typ), fn: fn}
	l.SetBatchSize(batchSize)
	if size > 0 {
		if err := l.SetInputShape(FlatShape(size)); err != nil {
			panic(err)
		}
	}
	return l
}

// SetInputShape binds the prediction size. Loss layers have no output.
func (l *lossBase) SetInputShape(shape LayerShape) error {
	if shape.Size() <= 0 {
		return errors.Wrapf(ErrShapeMismatch, "%s %q: empty input shape", l.typ, l.name)
	}
	l.setShapes(NewLayerShape(shape.Flat()), LayerShape{})
	return nil
}

func (l *lossBase) SetTarget(target []float64) error {
	if len(target) != l.InputSize() {
		return errors.Wrapf(ErrShapeMismatch, "%s %q: target size %d, want %d",
			l.typ, l.name, len(target), l.InputSize())
	}
	l.target = append(l.target[:0], target...)
	return nil
}

func (l *lossBase) Target() []float64       { return l.target }
func (l *lossBase) Loss() float64           { return l.loss }
func (l *lossBase) CumulativeLoss() float64 { return l.cumulative }
func (l *lossBase) Correct() int            { return l.correct }
func (l *lossBase) Incorrect() int          { return l.incorrect }

func (l *lossBase) samples() float64 {
	n := l.correct + l.incorrect
	if n == 0 {
		return math.NaN()
	}
	return float64(n)
}

func (l *lossBase) AvgLoss() float64  { return l.cumulative / l.samples() }
func (l *lossBase) Accuracy() float64 { return float64(l.correct) / l.samples() }

// ResetScore clears the running loss and tallies.
func (l *lossBase) ResetScore() {
	l.cumulative = 0
	l.correct = 0
	l.incorrect = 0
}

// SetBatchSize sets the gradient normaliser 1/max(n, 1).
func (l *lossBase) SetBatchSize(n int) {
	l.batchSize = n
	l.invBatchSize = 1 / float64(max(n, 1))
}

func (l *lossBase) BatchSize() int { return l.batchSize }

// evaluate records the loss of x against the target.
func (l *lossBase) evaluate(x []float64) error {
	if l.target == nil {
		return errors.Wrapf(ErrNoTarget, "%s %q", l.typ, l.name)
	}
	if err := l.storeInput(x); err != nil {
		return err
	}
	l.loss = l.fn.Forward(l.target, l.lastInput)
	l.cumulative += l.loss
	return nil
}

// Backward ignores grad and emits the loss derivative scaled by
// 1/batch size.
func (l *lossBase) Backward([]float64) ([]float64, error) {
	if l.target == nil {
		return nil, errors.Wrapf(ErrNoTarget, "%s %q", l.typ, l.name)
	}
	return l.fn.Backward(l.dx, l.target, l.lastInput, l.invBatchSize), nil
}

func (l *lossBase) Init(InitMethod, PDF, *dlmath.RNG) {}

func (l *lossBase) cloneLoss() lossBase {
	c := *l
	c.base = l.clone()
	c.target = append([]float64(nil), l.target...)
	return c
}

// MSELoss is the mean squared error loss. A sample counts as correct when
// its loss lies within the tolerance.
type MSELoss struct {
	lossBase
	tolerance float64
}

// NewMSELoss creates an MSE loss over size predictions.
func NewMSELoss(size, batchSize int, tolerance float64) *MSELoss {
	return &MSELoss{lossBase: newLossBase(TypeMSELoss, loss.MSE{}, size, batchSize), tolerance: tolerance}
}

// Tolerance returns the loss window counted as correct.
func (m *MSELoss) Tolerance() float64 { return m.tolerance }

// Forward records the loss and returns no output.
func (m *MSELoss) Forward(x []float64) ([]float64, error) {
	if err := m.evaluate(x); err != nil {
		return nil, err
	}
	if math.Abs(m.loss) <= m.tolerance {
		m.correct++
	} else {
		m.incorrect++
	}
	return m.output, nil
}

func (m *MSELoss) TrainingForward(x []float64) ([]float64, error) {
	return m.Forward(x)
}

func (m *MSELoss) Clone() Layer {
	return &MSELoss{lossBase: m.cloneLoss(), tolerance: m.tolerance}
}

func (m *MSELoss) Dump() (*structpb.Struct, error) {
	return dump(m, map[string]interface{}{"batch_size": m.batchSize, "tolerance": m.tolerance})
}

func (m *MSELoss) Load(s *structpb.Struct) error {
	return load(m, s, func(h map[string]*structpb.Value) error {
		m.SetBatchSize(hyperInt(h, "batch_size"))
		m.tolerance = h["tolerance"].GetNumberValue()
		return nil
	})
}

// CCELoss is the categorical cross-entropy loss over a one-hot target. A
// sample counts as correct when the prediction's argmax is the hot index.
type CCELoss struct {
	lossBase
}

// NewCCELoss creates a categorical cross-entropy loss over size classes.
func NewCCELoss(size, batchSize int) *CCELoss {
	return &CCELoss{lossBase: newLossBase(TypeCCELoss, loss.CategoricalCrossEntropy{}, size, batchSize)}
}

// Forward records the loss and returns no output. A target without a
// non-zero entry fails with ErrInvalidTarget.
func (c *CCELoss) Forward(x []float64) ([]float64, error) {
	if c.target != nil && loss.HotIndex(c.target) < 0 {
		return nil, errors.Wrapf(ErrInvalidTarget, "%s %q", c.typ, c.name)
	}
	if err := c.evaluate(x); err != nil {
		return nil, err
	}
	if dlmath.Argmax(c.lastInput) == loss.HotIndex(c.target) {
		c.correct++
	} else {
		c.incorrect++
	}
	return c.output, nil
}

func (c *CCELoss) TrainingForward(x []float64) ([]float64, error) {
	return c.Forward(x)
}

func (c *CCELoss) Clone() Layer {
	return &CCELoss{lossBase: c.cloneLoss()}
}

func (c *CCELoss) Dump() (*structpb.Struct, error) {
	return dump(c, map[string]interface{}{"batch_size": c.batchSize})
}

func (c *CCELoss) Load(s *structpb.Struct) error {
	return load(c, s, func(h map[string]*structpb.Value) error {
		c.SetBatchSize(hyperInt(h, "batch_size"))
		return nil
	})
}
