package net

import (
	"math"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
	"github.com/FlavioCFOliveira/edgegraph/internal/layer"
	"github.com/FlavioCFOliveira/edgegraph/internal/opt"
)

// split cuts v into consecutive pieces of the given sizes.
func split(v []float64, sizes []int) ([][]float64, bool) {
	total := 0
	for _, s := range sizes {
		total += s
	}
	if total != len(v) {
		return nil, false
	}
	parts := make([][]float64, len(sizes))
	off := 0
	for k, s := range sizes {
		parts[k] = v[off : off+s]
		off += s
	}
	return parts, true
}

// distribute assigns the pieces of input to the input layers in index order.
func (m *Model) distribute(input []float64) (map[int][]float64, error) {
	inputs := m.graph.InputLayers()
	if len(inputs) == 0 {
		return nil, ErrNoInput
	}
	sizes := make([]int, len(inputs))
	for k, i := range inputs {
		sizes[k] = m.graph.Layer(i).InputSize()
	}
	parts, ok := split(input, sizes)
	if !ok {
		return nil, errors.Wrapf(ErrNoInput, "input size %d, want %d", len(input), m.InputSize())
	}
	fed := make(map[int][]float64, len(inputs))
	for k, i := range inputs {
		fed[i] = parts[k]
	}
	return fed, nil
}

// propagate runs the layers of order, feeding each the sum of its
// predecessors' outputs. A Concatenate is fed each predecessor in the
// order of its input slots.
func (m *Model) propagate(order []int, fed map[int][]float64, training bool,
	preds func(int) []int) (map[int][]float64, error) {

	outputs := make(map[int][]float64, len(order))
	for _, i := range order {
		l := m.graph.Layer(i)
		run := l.Forward
		if training {
			run = l.TrainingForward
		}

		if x, ok := fed[i]; ok {
			out, err := run(x)
			if err != nil {
				return nil, err
			}
			outputs[i] = out
			continue
		}

		ps := preds(i)
		if c, ok := l.(*layer.Concatenate); ok {
			inputs, err := m.concatInputs(i, c, ps)
			if err != nil {
				return nil, err
			}
			var out []float64
			for _, p := range inputs {
				var err error
				if out, err = run(outputs[p]); err != nil {
					return nil, err
				}
			}
			outputs[i] = out
			continue
		}

		x := outputs[ps[0]]
		if len(ps) > 1 {
			x = append([]float64(nil), x...)
			for _, p := range ps[1:] {
				if len(outputs[p]) != len(x) {
					return nil, errors.Wrapf(layer.ErrShapeMismatch, "%q: fan-in sizes %d and %d",
						l.Name(), len(x), len(outputs[p]))
				}
				dlmath.ArrSum(x, x, outputs[p])
			}
		}
		out, err := run(x)
		if err != nil {
			return nil, err
		}
		outputs[i] = out
	}
	return outputs, nil
}

// Step runs one training-forward and backward pass on a sample. Parameter
// gradients accumulate until Train is called. With several loss layers the
// target is cut into one piece per loss, in insertion order.
func (m *Model) Step(input, target []float64) error {
	if err := m.score(input, target, true); err != nil {
		return err
	}
	return m.backward()
}

// score feeds a sample through the training-forward graph so that every
// loss layer records it. With training false each layer takes its
// inference path.
func (m *Model) score(input, target []float64, training bool) error {
	losses := m.lossLayers()
	if len(losses) == 0 {
		return ErrNoLoss
	}
	sizes := make([]int, len(losses))
	for k, l := range losses {
		sizes[k] = l.InputSize()
	}
	targets, ok := split(target, sizes)
	if !ok {
		return errors.Wrapf(layer.ErrShapeMismatch, "target size %d", len(target))
	}
	for k, l := range losses {
		if err := l.SetTarget(targets[k]); err != nil {
			return err
		}
	}

	fed, err := m.distribute(input)
	if err != nil {
		return err
	}
	outputs, err := m.propagate(m.graph.TrainingForwardOrder(), fed, training, m.graph.TrainingForwardPredecessors)
	if err != nil {
		return err
	}
	for _, i := range m.graph.LossLayers() {
		if _, ok := outputs[i]; !ok {
			return errors.Wrapf(ErrNoLoss, "%q is not reachable from the inputs", m.graph.Layer(i).Name())
		}
	}
	return nil
}

// backward runs every layer reachable from the losses once the gradients of
// all its successors are summed. A Concatenate hands the k-th piece of its
// gradient to the predecessor filling its k-th input.
func (m *Model) backward() error {
	pending := map[int][]float64{}
	for _, i := range m.graph.BackwardOrder() {
		l := m.graph.Layer(i)
		grad := pending[i]
		if !m.graph.HasBackwardPredecessors(i) {
			grad = nil
		} else if grad == nil {
			continue
		}
		dx, err := l.Backward(grad)
		if err != nil {
			return err
		}

		preds := m.graph.Backward(i)
		if len(preds) == 0 {
			continue
		}
		pieces := make([][]float64, len(preds))
		if c, ok := l.(*layer.Concatenate); ok {
			parts, err := c.Split(dx)
			if err != nil {
				return err
			}
			inputs, err := m.concatInputs(i, c, m.graph.TrainingForwardPredecessors(i))
			if err != nil {
				return err
			}
			for k, p := range inputs {
				for n, q := range preds {
					if q == p {
						pieces[n] = parts[k]
					}
				}
			}
		} else {
			for n := range preds {
				pieces[n] = dx
			}
		}
		for n, p := range preds {
			if pending[p] == nil {
				pending[p] = append([]float64(nil), pieces[n]...)
			} else {
				dlmath.ArrSum(pending[p], pending[p], pieces[n])
			}
		}
	}
	return nil
}

// Train applies the accumulated gradients with o, which clears them, then
// resets the loss score.
func (m *Model) Train(o opt.Optimizer) {
	o.Train(m)
	m.ResetScore()
}

// ResetScore clears the running score of every loss layer.
func (m *Model) ResetScore() {
	for _, l := range m.lossLayers() {
		l.ResetScore()
	}
}

func (m *Model) tally() (cumulative float64, correct, samples int) {
	for _, l := range m.lossLayers() {
		cumulative += l.CumulativeLoss()
		correct += l.Correct()
		samples += l.Correct() + l.Incorrect()
	}
	return cumulative, correct, samples
}

// AvgLoss returns the mean loss since the last reset, NaN before any step.
func (m *Model) AvgLoss() float64 {
	cumulative, _, n := m.tally()
	if n == 0 {
		return math.NaN()
	}
	return cumulative / float64(n)
}

// Accuracy returns the fraction of correct samples since the last reset,
// NaN before any step.
func (m *Model) Accuracy() float64 {
	_, correct, n := m.tally()
	if n == 0 {
		return math.NaN()
	}
	return float64(correct) / float64(n)
}

// Predict runs the inference path and returns the outputs of the output
// layers joined in index order.
func (m *Model) Predict(input []float64) ([]float64, error) {
	fed, err := m.distribute(input)
	if err != nil {
		return nil, err
	}
	outputs, err := m.propagate(m.graph.ForwardOrder(), fed, false, m.graph.ForwardPredecessors)
	if err != nil {
		return nil, err
	}
	var out []float64
	for _, i := range m.graph.OutputLayers() {
		out = append(out, outputs[i]...)
	}
	return out, nil
}

// PredictAll runs Predict on every input.
func (m *Model) PredictAll(inputs [][]float64) ([][]float64, error) {
	out := make([][]float64, len(inputs))
	for k, x := range inputs {
		y, err := m.Predict(x)
		if err != nil {
			return nil, errors.Wrapf(err, "sample %d", k)
		}
		out[k] = y
	}
	return out, nil
}
