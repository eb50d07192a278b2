package net

import (
	"time"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/edgegraph/internal/config"
	"github.com/FlavioCFOliveira/edgegraph/internal/data"
	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
	"github.com/FlavioCFOliveira/edgegraph/internal/opt"
)

// Fit trains the model on ds for cfg.Epochs epochs. Every batch steps each
// of its samples then applies the optimizer once. It returns the score of
// every completed epoch.
func (m *Model) Fit(ds data.Provider, cfg config.Train, o opt.Optimizer, callbacks ...Callback) ([]Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ds.Size() == 0 {
		return nil, errors.Wrap(data.ErrEmpty, "fit")
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := dlmath.NewRNG(seed)
	order := make([]int, ds.Size())
	for i := range order {
		order[i] = i
	}

	m.SetBatchSize(cfg.BatchSize)
	m.ResetScore()
	for _, c := range callbacks {
		c.OnTrainBegin(m)
	}
	defer func() {
		for _, c := range callbacks {
			c.OnTrainEnd(m)
		}
	}()

	var history []Stats
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for _, c := range callbacks {
			c.OnEpochBegin(epoch, m)
		}
		if cfg.Shuffle {
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		var epochLoss float64
		var epochCorrect, epochSamples int
		for batch, start := 0, 0; start < len(order); batch, start = batch+1, start+cfg.BatchSize {
			for _, c := range callbacks {
				c.OnBatchBegin(batch, m)
			}
			end := min(start+cfg.BatchSize, len(order))
			for _, i := range order[start:end] {
				if err := m.Step(ds.Trainset(i), ds.Labels(i)); err != nil {
					return history, errors.Wrapf(err, "epoch %d, sample %d", epoch, i)
				}
			}
			cumulative, correct, n := m.tally()
			s := Stats{Loss: m.AvgLoss(), Accuracy: m.Accuracy(), Samples: n}
			epochLoss += cumulative
			epochCorrect += correct
			epochSamples += n
			m.Train(o)

			for _, c := range callbacks {
				c.OnBatchEnd(batch, s, m)
			}
		}

		s := Stats{
			Loss:     epochLoss / float64(epochSamples),
			Accuracy: float64(epochCorrect) / float64(epochSamples),
			Samples:  epochSamples,
		}
		history = append(history, s)
		for _, c := range callbacks {
			c.OnEpochEnd(epoch, s, m)
		}
		if stopped(callbacks) {
			break
		}
	}
	return history, nil
}

func stopped(callbacks []Callback) bool {
	for _, c := range callbacks {
		if s, ok := c.(Stopper); ok && s.ShouldStop() {
			return true
		}
	}
	return false
}

// Evaluate scores every sample of ds on the inference path of each layer
// without touching gradients or parameters. The running score is reset
// before and after.
func (m *Model) Evaluate(ds data.Provider) (Stats, error) {
	m.ResetScore()
	defer m.ResetScore()
	for i := 0; i < ds.Size(); i++ {
		if err := m.score(ds.Trainset(i), ds.Labels(i), false); err != nil {
			return Stats{}, errors.Wrapf(err, "sample %d", i)
		}
	}
	_, _, n := m.tally()
	return Stats{Loss: m.AvgLoss(), Accuracy: m.Accuracy(), Samples: n}, nil
}
