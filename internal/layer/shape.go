package layer

import (
	"strings"

	"github.com/FlavioCFOliveira/edgegraph/internal/dlmath"
)

// LayerShape is an ordered list of parallel 3D shapes. Most layers carry a
// single shape; Concatenate carries one per predecessor.
type LayerShape struct {
	shapes []dlmath.Shape3d
}

// NewLayerShape builds a LayerShape from the given parallel shapes.
func NewLayerShape(shapes ...dlmath.Shape3d) LayerShape {
	return LayerShape{shapes: append([]dlmath.Shape3d(nil), shapes...)}
}

// FlatShape is a single {size, 1, 1} shape.
func FlatShape(size int) LayerShape {
	return NewLayerShape(dlmath.Shape3dOf(size))
}

// Len returns the number of parallel shapes.
func (s LayerShape) Len() int {
	return len(s.shapes)
}

// Shape returns the i-th parallel shape.
func (s LayerShape) Shape(i int) dlmath.Shape3d {
	return s.shapes[i]
}

// Shapes returns a copy of the parallel shapes.
func (s LayerShape) Shapes() []dlmath.Shape3d {
	return append([]dlmath.Shape3d(nil), s.shapes...)
}

// Size is the sum of the parallel shape sizes.
func (s LayerShape) Size() int {
	n := 0
	for _, sh := range s.shapes {
		n += sh.Size()
	}
	return n
}

// Flat returns the single shape, or a {size, 1, 1} shape when several
// parallel shapes are present.
func (s LayerShape) Flat() dlmath.Shape3d {
	if len(s.shapes) == 1 {
		return s.shapes[0]
	}
	return dlmath.Shape3dOf(s.Size())
}

// Equal reports whether both shapes list the same parallel shapes.
func (s LayerShape) Equal(o LayerShape) bool {
	if len(s.shapes) != len(o.shapes) {
		return false
	}
	for i := range s.shapes {
		if s.shapes[i] != o.shapes[i] {
			return false
		}
	}
	return true
}

func (s LayerShape) String() string {
	parts := make([]string, len(s.shapes))
	for i, sh := range s.shapes {
		parts[i] = sh.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
