package opt

import (
	"testing"

	"golang.org/x/exp/rand"
)

func benchGroup(n int) model {
	r := rand.New(rand.NewSource(1))
	g := &group{params: make([]float64, n), grads: make([]float64, n)}
	for i := range g.params {
		g.params[i] = r.NormFloat64()
	}
	return model{g}
}

func fill(m model) {
	for i := range m[0].grads {
		m[0].grads[i] = 0.01
	}
}

func BenchmarkGD(b *testing.B) {
	m := benchGroup(10000)
	gd := NewGD(0.01)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fill(m)
		gd.Train(m)
	}
}

func BenchmarkAdam(b *testing.B) {
	m := benchGroup(10000)
	a := NewAdam(0.001)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fill(m)
		a.Train(m)
	}
}
