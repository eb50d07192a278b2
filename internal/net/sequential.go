package net

import (
	"github.com/FlavioCFOliveira/edgegraph/internal/layer"
)

// NewSequential builds a chain model: every layer feeds the next one and
// the last layer feeds loss. Input shapes after the first layer are
// inferred.
func NewSequential(loss layer.LossLayer, layers []layer.Layer, opts ...Option) (*Model, error) {
	m := New(opts...)
	for _, l := range layers {
		m.AddLayer(l)
	}
	for i := 1; i < len(layers); i++ {
		if err := m.CreateEdge(layers[i-1], layers[i]); err != nil {
			return nil, err
		}
	}
	if loss != nil {
		m.AddLoss(loss)
		if len(layers) > 0 {
			if err := m.CreateLossEdge(layers[len(layers)-1], loss); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
