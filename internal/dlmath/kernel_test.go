package dlmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

func TestKernelSlideShape(t *testing.T) {
	tests := []struct {
		name     string
		src      Shape3d
		kernel   Shape2d
		filters  int
		stride   Shape2d
		padding  Shape2d
		expected Shape3d
	}{
		{"valid 3x3 k2", Shape3d{3, 3, 3}, Shape2d{2, 2}, 3, Shape2d{1, 1}, Shape2d{}, Shape3d{2, 2, 3}},
		{"padded", Shape3d{3, 3, 1}, Shape2d{2, 2}, 4, Shape2d{1, 1}, Shape2d{1, 1}, Shape3d{4, 4, 4}},
		{"strided", Shape3d{28, 28, 1}, Shape2d{3, 3}, 8, Shape2d{2, 2}, Shape2d{}, Shape3d{13, 13, 8}},
		{"rectangular", Shape3d{5, 7, 2}, Shape2d{3, 2}, 1, Shape2d{2, 3}, Shape2d{1, 0}, Shape3d{3, 2, 1}},
		{"zero stride floored", Shape3d{4, 4, 1}, Shape2d{2, 2}, 1, Shape2d{0, 0}, Shape2d{}, Shape3d{3, 3, 1}},
		{"kernel larger than strided source", Shape3d{2, 2, 1}, Shape2d{3, 3}, 1, Shape2d{2, 2}, Shape2d{}, Shape3d{0, 0, 1}},
		{"empty source", Shape3d{0, 0, 1}, Shape2d{2, 2}, 1, Shape2d{1, 1}, Shape2d{}, Shape3d{0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KernelSlideShape(tt.src, tt.kernel, tt.filters, tt.stride, tt.padding)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestKernelSlideVisitsEveryWindow(t *testing.T) {
	src := Shape3d{4, 5, 1}
	var visited []Coord2d
	var corners [][2]int
	op := func(_ []float64, _ Shape3d, at Coord2d, _ []float64, _ Shape3d,
		_ []float64, _ Shape2d, _ int, row, col int) {
		visited = append(visited, at)
		corners = append(corners, [2]int{row, col})
	}

	KernelSlide(op, nil, nil, src, nil, Shape2d{3, 3}, 1, Shape2d{2, 2}, Shape2d{1, 1})

	// (4 - 3 + 2)/2 + 1 = 2 rows, (5 - 3 + 2)/2 + 1 = 3 cols
	require.Len(t, visited, 6)
	assert.Equal(t, Coord2d{0, 0}, visited[0])
	assert.Equal(t, Coord2d{1, 2}, visited[5])
	assert.Equal(t, [2]int{-1, -1}, corners[0])
	assert.Equal(t, [2]int{1, 3}, corners[5])
}

func TestConvForwardUniform(t *testing.T) {
	srcShape := Shape3d{3, 3, 1}
	kShape := Shape2d{2, 2}
	dst := make([]float64, 4)

	Conv(dst, ones(9), srcShape, ones(4), []float64{0.5}, kShape, 1, Shape2d{1, 1}, Shape2d{})

	for i, v := range dst {
		assert.InDelta(t, 4.5, v, 1e-12, "dst[%d]", i)
	}
}

func TestConvForwardMultiFilter(t *testing.T) {
	// 3x3x1 source, two 2x2 filters: an all-ones filter and a top-left picker.
	src := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	kernel := []float64{
		1, 1, 1, 1,
		1, 0, 0, 0,
	}
	dst := make([]float64, 2*2*2)

	Conv(dst, src, Shape3d{3, 3, 1}, kernel, nil, Shape2d{2, 2}, 2, Shape2d{1, 1}, Shape2d{})

	expected := []float64{
		12, 1, 16, 2,
		24, 4, 28, 5,
	}
	assert.InDeltaSlice(t, expected, dst, 1e-12)
}

func TestConvRoundTripAllOnes(t *testing.T) {
	srcShape := Shape3d{3, 3, 1}
	kShape := Shape2d{2, 2}
	src := ones(9)
	kernel := ones(4)

	dst := make([]float64, 4)
	Conv(dst, src, srcShape, kernel, []float64{0}, kShape, 1, Shape2d{1, 1}, Shape2d{})

	srcGrad := make([]float64, 9)
	kernelGrad := make([]float64, 4)
	biasGrad := make([]float64, 1)
	ConvGrad(srcGrad, kernelGrad, biasGrad, ones(4), src, srcShape, kernel, kShape, 1, Shape2d{1, 1}, Shape2d{})

	// Each input position receives one unit per window covering it.
	assert.Equal(t, []float64{
		1, 2, 1,
		2, 4, 2,
		1, 2, 1,
	}, srcGrad)
	assert.Equal(t, []float64{4, 4, 4, 4}, kernelGrad)
	assert.Equal(t, []float64{4}, biasGrad)
}

func TestConvRoundTripPadded(t *testing.T) {
	srcShape := Shape3d{3, 3, 1}
	kShape := Shape2d{2, 2}
	src := ones(9)
	kernel := ones(4)
	padding := Shape2d{1, 1}

	out := KernelSlideShape(srcShape, kShape, 1, Shape2d{1, 1}, padding)
	require.Equal(t, Shape3d{4, 4, 1}, out)

	dst := make([]float64, out.Size())
	Conv(dst, src, srcShape, kernel, nil, kShape, 1, Shape2d{1, 1}, padding)
	assert.Equal(t, []float64{
		1, 2, 2, 1,
		2, 4, 4, 2,
		2, 4, 4, 2,
		1, 2, 2, 1,
	}, dst)

	srcGrad := make([]float64, 9)
	kernelGrad := make([]float64, 4)
	ConvGrad(srcGrad, kernelGrad, nil, ones(16), src, srcShape, kernel, kShape, 1, Shape2d{1, 1}, padding)

	// With one pixel of padding every input position is covered by 4 windows.
	assert.Equal(t, ones(9), scale(srcGrad, 0.25))
	// Each weight only sees the 9 in-range positions.
	assert.Equal(t, []float64{9, 9, 9, 9}, kernelGrad)
}

func scale(v []float64, c float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * c
	}
	return out
}

func TestMaxPoolUniformTieBreak(t *testing.T) {
	srcShape := Shape3d{3, 3, 3}
	src := ones(srcShape.Size())
	kShape := Shape2d{2, 2}
	stride := Shape2d{2, 2}

	dst := make([]float64, 1*1*3)
	MaxPool(dst, src, srcShape, kShape, stride)
	assert.Equal(t, []float64{1, 1, 1}, dst)

	srcGrad := make([]float64, srcShape.Size())
	MaxPoolGrad(srcGrad, []float64{1, 2, 3}, src, srcShape, kShape, stride)

	for ch := 0; ch < 3; ch++ {
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				want := 0.0
				if r == 0 && c == 0 {
					want = float64(ch + 1)
				}
				assert.Equal(t, want, srcGrad[srcShape.Index(r, c, ch)], "(%d,%d,%d)", r, c, ch)
			}
		}
	}
}

func TestMaxPoolOverlappingWindows(t *testing.T) {
	srcShape := Shape3d{3, 3, 1}
	src := []float64{
		1, 5, 2,
		3, 4, 9,
		7, 0, 6,
	}
	dst := make([]float64, 4)
	MaxPool(dst, src, srcShape, Shape2d{2, 2}, Shape2d{1, 1})
	assert.Equal(t, []float64{5, 9, 7, 9}, dst)

	srcGrad := make([]float64, 9)
	MaxPoolGrad(srcGrad, []float64{1, 1, 1, 1}, src, srcShape, Shape2d{2, 2}, Shape2d{1, 1})
	assert.Equal(t, []float64{
		0, 1, 0,
		0, 0, 2,
		1, 0, 0,
	}, srcGrad)
}

func TestAvgPool(t *testing.T) {
	srcShape := Shape3d{4, 4, 1}
	src := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	dst := make([]float64, 4)

	AvgPool(dst, src, srcShape, Shape2d{2, 2}, Shape2d{2, 2})

	assert.InDeltaSlice(t, []float64{3.5, 5.5, 11.5, 13.5}, dst, 1e-12)
}

func TestAvgPoolGradOverlap(t *testing.T) {
	srcShape := Shape3d{3, 3, 1}
	srcGrad := make([]float64, 9)

	AvgPoolGrad(srcGrad, []float64{4, 4, 4, 4}, srcShape, Shape2d{2, 2}, Shape2d{1, 1})

	assert.InDeltaSlice(t, []float64{
		1, 2, 1,
		2, 4, 2,
		1, 2, 1,
	}, srcGrad, 1e-12)
}

func TestAppendExtract(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{5, 6}
	aShape := Shape3d{2, 2, 1}
	bShape := Shape3d{2, 1, 1}
	outShape := Shape3d{2, 3, 1}
	out := make([]float64, outShape.Size())

	Append(out, outShape, a, aShape, AxisWidth, 0)
	Append(out, outShape, b, bShape, AxisWidth, 2)
	assert.Equal(t, []float64{1, 2, 5, 3, 4, 6}, out)

	back := make([]float64, 2)
	Extract(back, bShape, out, outShape, AxisWidth, 2)
	assert.Equal(t, b, back)
}
