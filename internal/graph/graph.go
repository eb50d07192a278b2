// Package graph provides the directed graphs that connect layers: a generic
// adjacency graph over an external node list and DLGraph, which keeps the
// forward, training-forward and backward graphs of a model side by side.
package graph

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrCycle        = errors.New("edge would create a cycle")
	ErrLossEdge     = errors.New("invalid loss edge")
)

// Arc is a directed edge between two node indices.
type Arc struct {
	From, To int
}

// Graph is an adjacency list over an external, append-only node list.
// Successors keep insertion order.
type Graph[T comparable] struct {
	nodes *[]T
	adj   map[int][]int
}

// New creates an empty graph over nodes.
func New[T comparable](nodes *[]T) *Graph[T] {
	return &Graph[T]{nodes: nodes, adj: make(map[int][]int)}
}

// Nodes returns the node list the graph indexes into.
func (g *Graph[T]) Nodes() []T {
	return *g.nodes
}

// Index returns the index of n in the node list.
func (g *Graph[T]) Index(n T) (int, bool) {
	for i, v := range *g.nodes {
		if v == n {
			return i, true
		}
	}
	return -1, false
}

// AddEdge adds an arc between two nodes of the node list.
func (g *Graph[T]) AddEdge(from, to T) error {
	i, ok := g.Index(from)
	if !ok {
		return errors.Wrap(ErrNodeNotFound, "edge source")
	}
	j, ok := g.Index(to)
	if !ok {
		return errors.Wrap(ErrNodeNotFound, "edge destination")
	}
	return g.AddArc(i, j)
}

// AddArc adds the arc i -> j. Adding an existing arc is a no-op.
func (g *Graph[T]) AddArc(i, j int) error {
	n := len(*g.nodes)
	if i < 0 || i >= n || j < 0 || j >= n {
		return errors.Wrapf(ErrNodeNotFound, "arc %d -> %d over %d nodes", i, j, n)
	}
	if g.HasArc(i, j) {
		return nil
	}
	g.adj[i] = append(g.adj[i], j)
	return nil
}

// HasArc reports whether the arc i -> j exists.
func (g *Graph[T]) HasArc(i, j int) bool {
	for _, s := range g.adj[i] {
		if s == j {
			return true
		}
	}
	return false
}

// Successors returns the successors of i in insertion order.
func (g *Graph[T]) Successors(i int) []int {
	return append([]int(nil), g.adj[i]...)
}

// Predecessors returns the predecessors of i in ascending index order.
func (g *Graph[T]) Predecessors(i int) []int {
	var preds []int
	for from, succ := range g.adj {
		for _, s := range succ {
			if s == i {
				preds = append(preds, from)
				break
			}
		}
	}
	sort.Ints(preds)
	return preds
}

func (g *Graph[T]) HasSuccessors(i int) bool {
	return len(g.adj[i]) > 0
}

func (g *Graph[T]) HasPredecessors(i int) bool {
	for _, succ := range g.adj {
		for _, s := range succ {
			if s == i {
				return true
			}
		}
	}
	return false
}

// Arcs returns every arc, grouped by ascending source index.
func (g *Graph[T]) Arcs() []Arc {
	froms := make([]int, 0, len(g.adj))
	for from := range g.adj {
		froms = append(froms, from)
	}
	sort.Ints(froms)

	var arcs []Arc
	for _, from := range froms {
		for _, to := range g.adj[from] {
			arcs = append(arcs, Arc{From: from, To: to})
		}
	}
	return arcs
}

// AdjacencyMatrix returns an n x n matrix with 1 at (i, j) for every arc
// i -> j. It returns nil for an empty node list.
func (g *Graph[T]) AdjacencyMatrix() *mat.Dense {
	n := len(*g.nodes)
	if n == 0 {
		return nil
	}
	m := mat.NewDense(n, n, nil)
	for from, succ := range g.adj {
		for _, to := range succ {
			m.Set(from, to, 1)
		}
	}
	return m
}

// Clone copies the arcs onto another node list of the same length.
func (g *Graph[T]) Clone(nodes *[]T) *Graph[T] {
	c := New(nodes)
	for from, succ := range g.adj {
		c.adj[from] = append([]int(nil), succ...)
	}
	return c
}
