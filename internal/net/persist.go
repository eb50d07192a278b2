package net

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/FlavioCFOliveira/edgegraph/internal/layer"
)

// Field names of a dumped model.
const (
	fieldName      = "name"
	fieldLayers    = "layers"
	fieldEdges     = "edges"
	fieldLossEdges = "loss_edges"
)

// Dump encodes the model as JSON: every layer dump, in index order, and the
// forward and loss edges as index pairs. Edges into a Concatenate follow
// its input order.
func (m *Model) Dump() ([]byte, error) {
	s, err := m.DumpStruct()
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
}

// DumpStruct encodes the model as a protobuf Struct.
func (m *Model) DumpStruct() (*structpb.Struct, error) {
	g := m.graph
	layers := make([]interface{}, g.Len())
	for i, l := range g.Layers() {
		s, err := l.Dump()
		if err != nil {
			return nil, err
		}
		layers[i] = s.AsMap()
	}

	var edges, lossEdges []interface{}
	for i := 0; i < g.Len(); i++ {
		for _, j := range g.Forward(i) {
			if _, ok := g.Layer(j).(*layer.Concatenate); !ok {
				edges = append(edges, []interface{}{i, j})
			}
		}
	}
	for j, l := range g.Layers() {
		c, ok := l.(*layer.Concatenate)
		if !ok || !g.HasForwardPredecessors(j) {
			continue
		}
		inputs, err := m.concatInputs(j, c, g.ForwardPredecessors(j))
		if err != nil {
			return nil, errors.Wrapf(err, "dump model %q", m.name)
		}
		for _, i := range inputs {
			edges = append(edges, []interface{}{i, j})
		}
	}
	for _, j := range g.LossLayers() {
		for _, i := range g.TrainingForwardPredecessors(j) {
			lossEdges = append(lossEdges, []interface{}{i, j})
		}
	}

	s, err := structpb.NewStruct(map[string]interface{}{
		fieldName:      m.name,
		fieldLayers:    layers,
		fieldEdges:     edges,
		fieldLossEdges: lossEdges,
	})
	return s, errors.Wrapf(err, "dump model %q", m.name)
}

// LoadModel rebuilds a model from the JSON written by Dump.
func LoadModel(data []byte, opts ...Option) (*Model, error) {
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(layer.ErrMalformedDump, err.Error())
	}
	return LoadStruct(s, opts...)
}

// LoadStruct rebuilds a model from the Struct written by DumpStruct.
func LoadStruct(s *structpb.Struct, opts ...Option) (*Model, error) {
	f := s.GetFields()
	m := New(append([]Option{WithName(f[fieldName].GetStringValue())}, opts...)...)

	values := f[fieldLayers].GetListValue().GetValues()
	layers := make([]layer.Layer, len(values))
	for i, v := range values {
		l, err := layer.FromDump(v.GetStructValue())
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		if ll, ok := l.(layer.LossLayer); ok {
			m.graph.AddLoss(ll)
		} else {
			m.graph.AddNode(l)
		}
		layers[i] = l
	}
	m.names.Skip(len(layers))

	pairs := func(key string, add func(from, to layer.Layer) error) error {
		for _, v := range f[key].GetListValue().GetValues() {
			p := v.GetListValue().GetValues()
			if len(p) != 2 {
				return errors.Wrapf(layer.ErrMalformedDump, "%s entry has %d indices", key, len(p))
			}
			i, j := int(p[0].GetNumberValue()), int(p[1].GetNumberValue())
			if i < 0 || i >= len(layers) || j < 0 || j >= len(layers) {
				return errors.Wrapf(layer.ErrMalformedDump, "%s entry [%d %d]", key, i, j)
			}
			if err := add(layers[i], layers[j]); err != nil {
				return err
			}
		}
		return nil
	}
	if err := pairs(fieldEdges, m.CreateEdge); err != nil {
		return nil, err
	}
	err := pairs(fieldLossEdges, func(from, to layer.Layer) error {
		ll, ok := to.(layer.LossLayer)
		if !ok {
			return errors.Wrapf(layer.ErrMalformedDump, "%q is not a loss layer", to.Name())
		}
		return m.graph.AddLossEdge(from, ll)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Save writes the parameters of every layer, in index order, with gob. The
// topology is not written; Restore expects a model built the same way.
func (m *Model) Save(w io.Writer) error {
	params := make([][]float64, m.graph.Len())
	for i, l := range m.graph.Layers() {
		params[i] = l.Params()
	}
	return errors.Wrap(gob.NewEncoder(w).Encode(params), "failed to encode params")
}

// Restore reads parameters written by Save.
func (m *Model) Restore(r io.Reader) error {
	var params [][]float64
	if err := gob.NewDecoder(r).Decode(&params); err != nil {
		return errors.Wrap(err, "failed to decode params")
	}
	if len(params) != m.graph.Len() {
		return errors.Wrapf(ErrIncompatible, "%d layers, want %d", len(params), m.graph.Len())
	}
	for i, l := range m.graph.Layers() {
		if len(params[i]) != l.ParamCount() {
			return errors.Wrapf(ErrIncompatible, "layer %q: %d params, want %d",
				l.Name(), len(params[i]), l.ParamCount())
		}
	}
	for i, l := range m.graph.Layers() {
		copy(l.Params(), params[i])
	}
	return nil
}

// SaveFile writes the parameters to a file.
func (m *Model) SaveFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	if err := m.Save(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// RestoreFile reads parameters from a file written by SaveFile.
func (m *Model) RestoreFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()
	return m.Restore(file)
}
