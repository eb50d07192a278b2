package graph

import (
	"sort"

	"github.com/pkg/errors"
	gg "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/edgegraph/internal/layer"
)

// DLGraph owns the layers of a model and three graphs over them:
//
//   - forward: the inference path, without loss layers
//   - training-forward: the forward arcs plus the arcs into loss layers
//   - backward: the reverse of every training-forward arc
//
// The backward arcs are recorded explicitly when an edge is added. Input
// and output layer sets are recomputed after every mutation.
type DLGraph struct {
	layers   []layer.Layer
	forward  *Graph[layer.Layer]
	training *Graph[layer.Layer]
	backward *Graph[layer.Layer]

	losses  []int
	inputs  []int
	outputs []int
}

// NewDLGraph creates an empty graph.
func NewDLGraph() *DLGraph {
	g := &DLGraph{}
	g.forward = New(&g.layers)
	g.training = New(&g.layers)
	g.backward = New(&g.layers)
	return g
}

// AddNode appends a layer and returns its index. Adding a layer twice
// returns its existing index.
func (g *DLGraph) AddNode(l layer.Layer) int {
	if i, ok := g.IndexOf(l); ok {
		return i
	}
	g.layers = append(g.layers, l)
	g.update()
	return len(g.layers) - 1
}

// AddLoss appends a loss layer and returns its index.
func (g *DLGraph) AddLoss(l layer.LossLayer) int {
	if i, ok := g.IndexOf(l); ok {
		return i
	}
	i := g.AddNode(l)
	g.losses = append(g.losses, i)
	g.update()
	return i
}

// IndexOf returns the index of l.
func (g *DLGraph) IndexOf(l layer.Layer) (int, bool) {
	return g.forward.Index(l)
}

func (g *DLGraph) isLoss(i int) bool {
	for _, l := range g.losses {
		if l == i {
			return true
		}
	}
	return false
}

func (g *DLGraph) indices(from, to layer.Layer) (int, int, error) {
	i, ok := g.IndexOf(from)
	if !ok {
		return 0, 0, errors.Wrapf(ErrNodeNotFound, "source %q", from.Name())
	}
	j, ok := g.IndexOf(to)
	if !ok {
		return 0, 0, errors.Wrapf(ErrNodeNotFound, "destination %q", to.Name())
	}
	if i == j {
		return 0, 0, errors.Wrapf(ErrCycle, "self loop on %q", from.Name())
	}
	if g.reaches(j, i) {
		return 0, 0, errors.Wrapf(ErrCycle, "%q -> %q", from.Name(), to.Name())
	}
	return i, j, nil
}

// AddEdge connects from -> to on the forward and training-forward graphs
// and to -> from on the backward graph.
func (g *DLGraph) AddEdge(from, to layer.Layer) error {
	i, j, err := g.indices(from, to)
	if err != nil {
		return err
	}
	if g.isLoss(i) || g.isLoss(j) {
		return errors.Wrapf(ErrLossEdge, "%q -> %q: use a loss edge", from.Name(), to.Name())
	}
	for _, gr := range []*Graph[layer.Layer]{g.forward, g.training} {
		if err := gr.AddArc(i, j); err != nil {
			return err
		}
	}
	if err := g.backward.AddArc(j, i); err != nil {
		return err
	}
	g.update()
	return nil
}

// AddEdges connects every layer of froms to to.
func (g *DLGraph) AddEdges(froms []layer.Layer, to layer.Layer) error {
	for _, from := range froms {
		if err := g.AddEdge(from, to); err != nil {
			return err
		}
	}
	return nil
}

// AddFanOut connects from to every layer of tos.
func (g *DLGraph) AddFanOut(from layer.Layer, tos []layer.Layer) error {
	for _, to := range tos {
		if err := g.AddEdge(from, to); err != nil {
			return err
		}
	}
	return nil
}

// AddLossEdge connects a layer to a loss layer. The arc only exists on the
// training-forward and backward graphs.
func (g *DLGraph) AddLossEdge(from layer.Layer, to layer.LossLayer) error {
	i, j, err := g.indices(from, to)
	if err != nil {
		return err
	}
	if !g.isLoss(j) || g.isLoss(i) {
		return errors.Wrapf(ErrLossEdge, "%q -> %q", from.Name(), to.Name())
	}
	if err := g.training.AddArc(i, j); err != nil {
		return err
	}
	if err := g.backward.AddArc(j, i); err != nil {
		return err
	}
	g.update()
	return nil
}

// update recomputes the input and output layer sets.
func (g *DLGraph) update() {
	g.inputs = g.inputs[:0]
	g.outputs = g.outputs[:0]
	for i := range g.layers {
		if g.isLoss(i) {
			continue
		}
		if !g.forward.HasPredecessors(i) {
			g.inputs = append(g.inputs, i)
		}
		if !g.forward.HasSuccessors(i) {
			g.outputs = append(g.outputs, i)
		}
	}
}

// directed builds a gonum view of gr over every layer.
func (g *DLGraph) directed(gr *Graph[layer.Layer]) *simple.DirectedGraph {
	d := simple.NewDirectedGraph()
	for i := range g.layers {
		d.AddNode(simple.Node(i))
	}
	for _, a := range gr.Arcs() {
		d.SetEdge(d.NewEdge(simple.Node(a.From), simple.Node(a.To)))
	}
	return d
}

// reaches reports whether to is reachable from from. The training-forward
// graph holds every forward arc, so it is the one checked.
func (g *DLGraph) reaches(from, to int) bool {
	d := g.directed(g.training)
	return topo.PathExistsIn(d, simple.Node(from), simple.Node(to))
}

func (g *DLGraph) Layers() []layer.Layer   { return g.layers }
func (g *DLGraph) Layer(i int) layer.Layer { return g.layers[i] }
func (g *DLGraph) Len() int                { return len(g.layers) }

// InputLayers returns the non-loss layers without forward predecessors.
func (g *DLGraph) InputLayers() []int { return append([]int(nil), g.inputs...) }

// OutputLayers returns the non-loss layers without forward successors.
func (g *DLGraph) OutputLayers() []int { return append([]int(nil), g.outputs...) }

// LossLayers returns the loss layer indices in insertion order.
func (g *DLGraph) LossLayers() []int { return append([]int(nil), g.losses...) }

func (g *DLGraph) Forward(i int) []int                       { return g.forward.Successors(i) }
func (g *DLGraph) ForwardPredecessors(i int) []int           { return g.forward.Predecessors(i) }
func (g *DLGraph) HasForward(i int) bool                     { return g.forward.HasSuccessors(i) }
func (g *DLGraph) HasForwardPredecessors(i int) bool         { return g.forward.HasPredecessors(i) }
func (g *DLGraph) TrainingForward(i int) []int               { return g.training.Successors(i) }
func (g *DLGraph) TrainingForwardPredecessors(i int) []int   { return g.training.Predecessors(i) }
func (g *DLGraph) HasTrainingForward(i int) bool             { return g.training.HasSuccessors(i) }
func (g *DLGraph) HasTrainingForwardPredecessors(i int) bool { return g.training.HasPredecessors(i) }
func (g *DLGraph) Backward(i int) []int                      { return g.backward.Successors(i) }
func (g *DLGraph) BackwardPredecessors(i int) []int          { return g.backward.Predecessors(i) }
func (g *DLGraph) HasBackward(i int) bool                    { return g.backward.HasSuccessors(i) }
func (g *DLGraph) HasBackwardPredecessors(i int) bool        { return g.backward.HasPredecessors(i) }

// ForwardMatrix returns the adjacency matrix of the forward graph.
func (g *DLGraph) ForwardMatrix() *mat.Dense { return g.forward.AdjacencyMatrix() }

// TrainingForwardMatrix returns the adjacency matrix of the training-forward graph.
func (g *DLGraph) TrainingForwardMatrix() *mat.Dense { return g.training.AdjacencyMatrix() }

// BackwardMatrix returns the adjacency matrix of the backward graph.
func (g *DLGraph) BackwardMatrix() *mat.Dense { return g.backward.AdjacencyMatrix() }

// ForwardRun returns the forward arcs in frontier order starting from the
// input layers.
func (g *DLGraph) ForwardRun() []Arc {
	return run(g.forward, g.inputs)
}

// TrainingForwardRun returns the training-forward arcs starting from the
// input layers.
func (g *DLGraph) TrainingForwardRun() []Arc {
	return run(g.training, g.inputs)
}

// BackwardRun returns the backward arcs starting from the loss layers.
func (g *DLGraph) BackwardRun() []Arc {
	return run(g.backward, g.losses)
}

// run expands the frontier round by round. For each frontier node and each
// of its successors an arc is emitted, unless the successor is already
// queued for the next round; a successor is queued unless it is in the
// current round, already done or already queued.
func run(gr *Graph[layer.Layer], frontier []int) []Arc {
	var arcs []Arc
	var done []int
	current := append([]int(nil), frontier...)

	for len(current) > 0 {
		var next []int
		for _, n := range current {
			for _, s := range gr.Successors(n) {
				if contains(next, s) {
					continue
				}
				arcs = append(arcs, Arc{From: n, To: s})
				if !contains(current, s) && !contains(done, s) {
					next = append(next, s)
				}
			}
		}
		done = append(done, current...)
		current = next
	}
	return arcs
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// ForwardOrder returns every layer reachable from the inputs on the forward
// graph, each after all of its forward predecessors.
func (g *DLGraph) ForwardOrder() []int {
	return g.order(g.forward, g.inputs, g.ForwardRun())
}

// TrainingForwardOrder is ForwardOrder on the training-forward graph.
func (g *DLGraph) TrainingForwardOrder() []int {
	return g.order(g.training, g.inputs, g.TrainingForwardRun())
}

// BackwardOrder returns every layer reachable from the loss layers on the
// backward graph, each after all of its backward predecessors.
func (g *DLGraph) BackwardOrder() []int {
	return g.order(g.backward, g.losses, g.BackwardRun())
}

func (g *DLGraph) order(gr *Graph[layer.Layer], frontier []int, arcs []Arc) []int {
	reachable := map[int]bool{}
	for _, i := range frontier {
		reachable[i] = true
	}
	for _, a := range arcs {
		reachable[a.To] = true
	}

	sorted, err := topo.SortStabilized(g.directed(gr), byID)
	if err != nil {
		// Edge insertion rejects cycles.
		panic(err)
	}
	order := make([]int, 0, len(reachable))
	for _, n := range sorted {
		if i := int(n.ID()); reachable[i] {
			order = append(order, i)
		}
	}
	return order
}

func byID(nodes []gg.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
}

// Clone deep-copies every layer and the three arc sets.
func (g *DLGraph) Clone() *DLGraph {
	c := &DLGraph{
		layers: make([]layer.Layer, len(g.layers)),
		losses: append([]int(nil), g.losses...),
	}
	for i, l := range g.layers {
		c.layers[i] = l.Clone()
	}
	c.forward = g.forward.Clone(&c.layers)
	c.training = g.training.Clone(&c.layers)
	c.backward = g.backward.Clone(&c.layers)
	c.update()
	return c
}
