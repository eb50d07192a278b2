package dlmath

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrAliased is returned by kernels that cannot write into their own input.
var ErrAliased = errors.New("dlmath: source and destination must not overlap")

// ArrSum writes src1 + src2 into dst.
func ArrSum(dst, src1, src2 []float64) []float64 {
	return floats.AddTo(dst, src1, src2)
}

// ArrMul writes the element-wise product of src1 and src2 into dst.
func ArrMul(dst, src1, src2 []float64) []float64 {
	return floats.MulTo(dst, src1, src2)
}

// ArrScale writes c*src into dst.
func ArrScale(dst []float64, c float64, src []float64) []float64 {
	return floats.ScaleTo(dst, c, src)
}

// ArrAddScaled accumulates alpha*src into dst.
func ArrAddScaled(dst []float64, alpha float64, src []float64) {
	floats.AddScaled(dst, alpha, src)
}

// Zero clears dst.
func Zero(dst []float64) {
	for i := range dst {
		dst[i] = 0
	}
}

// MatArrMul computes dst = M*arr where M is a rows x cols row-major matrix.
func MatArrMul(dst, m, arr []float64, rows, cols int) ([]float64, error) {
	if len(dst) > 0 && len(arr) > 0 && &dst[0] == &arr[0] {
		return nil, ErrAliased
	}
	w := mat.NewDense(rows, cols, m)
	out := mat.NewVecDense(rows, dst[:rows])
	out.MulVec(w, mat.NewVecDense(cols, arr[:cols]))
	return dst, nil
}

// Max returns the largest value in src.
func Max(src []float64) float64 {
	return floats.Max(src)
}

// Argmax returns the index of the first occurrence of the largest value.
func Argmax(src []float64) int {
	return floats.MaxIdx(src)
}

// MaxAndArgmax returns both the largest value and its first index.
func MaxAndArgmax(src []float64) (float64, int) {
	i := floats.MaxIdx(src)
	return src[i], i
}

// Append copies the src volume into dst at offset along axis. dst and src
// must agree on every other axis.
func Append(dst []float64, dstShape Shape3d, src []float64, srcShape Shape3d, axis, offset int) {
	for r := 0; r < srcShape.Height; r++ {
		for c := 0; c < srcShape.Width; c++ {
			for ch := 0; ch < srcShape.Channels; ch++ {
				dr, dc, dch := r, c, ch
				switch axis {
				case AxisHeight:
					dr += offset
				case AxisWidth:
					dc += offset
				case AxisChannels:
					dch += offset
				}
				dst[dstShape.Index(dr, dc, dch)] = src[srcShape.Index(r, c, ch)]
			}
		}
	}
}

// Extract is the inverse of Append: it copies the region of src starting at
// offset along axis, with extent dstShape, into dst.
func Extract(dst []float64, dstShape Shape3d, src []float64, srcShape Shape3d, axis, offset int) {
	for r := 0; r < dstShape.Height; r++ {
		for c := 0; c < dstShape.Width; c++ {
			for ch := 0; ch < dstShape.Channels; ch++ {
				sr, sc, sch := r, c, ch
				switch axis {
				case AxisHeight:
					sr += offset
				case AxisWidth:
					sc += offset
				case AxisChannels:
					sch += offset
				}
				dst[dstShape.Index(r, c, ch)] = src[srcShape.Index(sr, sc, sch)]
			}
		}
	}
}
