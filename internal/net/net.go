// Package net provides the Model: a trainable execution graph of layers
// with its step executor, training loop and persistence.
package net

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
	"github.com/FlavioCFOliveira/edgegraph/internal/graph"
	"github.com/FlavioCFOliveira/edgegraph/internal/layer"
	"github.com/FlavioCFOliveira/edgegraph/internal/opt"
)

var (
	// ErrNoInput is returned when the model has no input layer or an input
	// does not match the input layers.
	ErrNoInput = errors.New("net: no input")
	// ErrNoLoss is returned when training without a reachable loss layer.
	ErrNoLoss = errors.New("net: no loss layer")
	// ErrIncompatible is returned when restored parameters do not fit the
	// model.
	ErrIncompatible = errors.New("net: incompatible parameters")
)

// Model owns a graph of layers and runs it.
type Model struct {
	name   string
	graph  *graph.DLGraph
	names  dlmath.Counter
	logger *slog.Logger
	// slots maps a Concatenate index to the predecessor feeding each of
	// its inputs, -1 while unconnected.
	slots map[int][]int
}

var _ opt.Parameterized = (*Model)(nil)

// Option configures a Model.
type Option func(*Model)

// WithName sets the model name.
func WithName(name string) Option {
	return func(m *Model) { m.name = name }
}

// WithLogger sets the logger used for initialisation and training events.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// New creates an empty model.
func New(opts ...Option) *Model {
	m := &Model{
		name:   "model",
		graph:  graph.NewDLGraph(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		slots:  map[int][]int{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Model) Name() string            { return m.name }
func (m *Model) Logger() *slog.Logger    { return m.logger }
func (m *Model) Graph() *graph.DLGraph   { return m.graph }
func (m *Model) Layers() []layer.Layer   { return m.graph.Layers() }
func (m *Model) Layer(i int) layer.Layer { return m.graph.Layer(i) }

// nameLayer assigns "<type>_<n>" to unnamed layers.
func (m *Model) nameLayer(l layer.Layer) {
	if l.Name() == "" {
		l.SetName(fmt.Sprintf("%s_%d", strings.ToLower(l.Type()), m.names.Next()))
	}
}

// AddLayer registers l and returns its index.
func (m *Model) AddLayer(l layer.Layer) int {
	m.nameLayer(l)
	return m.graph.AddNode(l)
}

// AddLoss registers a loss layer and returns its index.
func (m *Model) AddLoss(l layer.LossLayer) int {
	m.nameLayer(l)
	return m.graph.AddLoss(l)
}

// connect infers the input shape of to from the output of from when to has
// none yet, and checks the sizes agree otherwise. For a Concatenate it
// returns the input slot from fills: the first unconnected input of a
// matching size. Other layers get slot -1.
func (m *Model) connect(from, to layer.Layer) (int, error) {
	i, ok := m.graph.IndexOf(from)
	if !ok {
		return -1, errors.Wrapf(graph.ErrNodeNotFound, "source %q", from.Name())
	}
	j, ok := m.graph.IndexOf(to)
	if !ok {
		return -1, errors.Wrapf(graph.ErrNodeNotFound, "destination %q", to.Name())
	}
	if from.OutputSize() == 0 {
		return -1, errors.Wrapf(layer.ErrShapeMismatch, "%q has no output shape", from.Name())
	}
	if to.InputSize() == 0 {
		return -1, to.SetInputShape(from.OutputShape())
	}
	if c, ok := to.(*layer.Concatenate); ok {
		return m.slot(i, j, c)
	}
	if to.InputSize() != from.OutputSize() {
		return -1, errors.Wrapf(layer.ErrShapeMismatch, "%q outputs %d values, %q takes %d",
			from.Name(), from.OutputSize(), to.Name(), to.InputSize())
	}
	return -1, nil
}

func (m *Model) slot(from, to int, c *layer.Concatenate) (int, error) {
	taken := m.slots[to]
	for k, p := range taken {
		if p == from {
			return k, nil
		}
	}
	size := m.graph.Layer(from).OutputSize()
	for k, s := range c.InputShape().Shapes() {
		if s.Size() == size && (k >= len(taken) || taken[k] < 0) {
			return k, nil
		}
	}
	return -1, errors.Wrapf(layer.ErrShapeMismatch, "%q output %v does not match a free input of %q",
		m.graph.Layer(from).Name(), m.graph.Layer(from).OutputShape(), c.Name())
}

// CreateEdge connects from -> to, inferring the input shape of to.
func (m *Model) CreateEdge(from, to layer.Layer) error {
	k, err := m.connect(from, to)
	if err != nil {
		return err
	}
	if err := m.graph.AddEdge(from, to); err != nil {
		return err
	}
	if k >= 0 {
		i, _ := m.graph.IndexOf(from)
		j, _ := m.graph.IndexOf(to)
		taken := m.slots[j]
		if taken == nil {
			taken = make([]int, to.(*layer.Concatenate).Expected())
			for n := range taken {
				taken[n] = -1
			}
			m.slots[j] = taken
		}
		taken[k] = i
	}
	return nil
}

// concatInputs returns the predecessors of Concatenate i in input order.
// Edges added on the graph directly fall back to ascending index order.
func (m *Model) concatInputs(i int, c *layer.Concatenate, preds []int) ([]int, error) {
	taken, ok := m.slots[i]
	if !ok {
		if len(preds) != c.Expected() {
			return nil, errors.Wrapf(layer.ErrShapeMismatch, "concatenate %q has %d inputs, want %d",
				c.Name(), len(preds), c.Expected())
		}
		return preds, nil
	}
	for k, p := range taken {
		if p < 0 {
			return nil, errors.Wrapf(layer.ErrShapeMismatch, "concatenate %q: input %d is not connected",
				c.Name(), k)
		}
	}
	return taken, nil
}

// CreateEdges connects every layer of froms to to.
func (m *Model) CreateEdges(froms []layer.Layer, to layer.Layer) error {
	for _, from := range froms {
		if err := m.CreateEdge(from, to); err != nil {
			return err
		}
	}
	return nil
}

// CreateLossEdge connects a layer to a loss layer.
func (m *Model) CreateLossEdge(from layer.Layer, to layer.LossLayer) error {
	if _, err := m.connect(from, to); err != nil {
		return err
	}
	return m.graph.AddLossEdge(from, to)
}

// Init initialises every layer from a generator seeded with seed and returns
// the seed used. A zero seed is replaced by a time-derived one. With
// layer.Auto a layer feeding a ReLU uses Kaiming and any other Xavier.
func (m *Model) Init(method layer.InitMethod, pdf layer.PDF, seed uint64) uint64 {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	m.logger.Info("initializing model parameters", "model", m.name, "seed", seed,
		"method", method.String(), "pdf", pdf.String())

	rng := dlmath.NewRNG(seed)
	for i, l := range m.graph.Layers() {
		l.Init(m.resolve(i, method), pdf, rng)
	}
	return seed
}

func (m *Model) resolve(i int, method layer.InitMethod) layer.InitMethod {
	if method != layer.Auto {
		return method
	}
	for _, s := range m.graph.Forward(i) {
		if m.graph.Layer(s).Type() == layer.TypeReLU {
			return layer.Kaiming
		}
	}
	return layer.Xavier
}

// InputSize returns the total input size of the input layers.
func (m *Model) InputSize() int {
	n := 0
	for _, i := range m.graph.InputLayers() {
		n += m.graph.Layer(i).InputSize()
	}
	return n
}

// OutputSize returns the total output size of the output layers.
func (m *Model) OutputSize() int {
	n := 0
	for _, i := range m.graph.OutputLayers() {
		n += m.graph.Layer(i).OutputSize()
	}
	return n
}

// ParamGroups returns the layers holding parameters, in index order.
func (m *Model) ParamGroups() []opt.Parameters {
	var groups []opt.Parameters
	for _, l := range m.graph.Layers() {
		if l.ParamCount() > 0 {
			groups = append(groups, l)
		}
	}
	return groups
}

// ParamCount returns the number of parameters of the model.
func (m *Model) ParamCount() int {
	n := 0
	for _, l := range m.graph.Layers() {
		n += l.ParamCount()
	}
	return n
}

// SetBatchSize sets the gradient normaliser of every loss layer.
func (m *Model) SetBatchSize(n int) {
	for _, l := range m.lossLayers() {
		l.SetBatchSize(n)
	}
}

func (m *Model) lossLayers() []layer.LossLayer {
	idx := m.graph.LossLayers()
	out := make([]layer.LossLayer, len(idx))
	for k, i := range idx {
		out[k] = m.graph.Layer(i).(layer.LossLayer)
	}
	return out
}

// Clone deep-copies the model: layers, parameters and edges.
func (m *Model) Clone() *Model {
	slots := make(map[int][]int, len(m.slots))
	for i, taken := range m.slots {
		slots[i] = append([]int(nil), taken...)
	}
	return &Model{
		name:   m.name,
		graph:  m.graph.Clone(),
		names:  m.names,
		logger: m.logger,
		slots:  slots,
	}
}

// Summary writes one row per layer and the parameter total to w.
func (m *Model) Summary(w io.Writer) {
	rule := strings.Repeat("_", 72)
	fmt.Fprintf(w, "Model: %s\n%s\n", m.name, rule)
	fmt.Fprintf(w, "%-24s %-16s %-18s %-10s\n", "Layer (type)", "Input Shape", "Output Shape", "Param #")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	for _, l := range m.graph.Layers() {
		fmt.Fprintf(w, "%-24s %-16s %-18s %-10d\n",
			fmt.Sprintf("%s (%s)", l.Name(), l.Type()), l.InputShape(), l.OutputShape(), l.ParamCount())
	}
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "Total params: %d\n%s\n", m.ParamCount(), rule)
}
