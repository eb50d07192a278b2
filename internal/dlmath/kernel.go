package dlmath

import "math"

// KernelOp is invoked by KernelSlide once per output position. row and col
// are the source coordinates of the window's top-left corner; they are
// negative when the window overlaps the padding. Implementations must skip
// source coordinates outside srcShape, which is how zero padding is applied
// without materialising it.
type KernelOp func(dst []float64, dstShape Shape3d, dstCoord Coord2d,
	src []float64, srcShape Shape3d,
	kernel []float64, kernelShape Shape2d, nFilters int,
	row, col int)

// SlideSide returns the number of window positions along one axis.
func SlideSide(in, kernel, stride, padding int) int {
	if in == 0 {
		return 0
	}
	if stride < 1 {
		stride = 1
	}
	n := in - kernel + 2*padding
	if n < 0 {
		return 0
	}
	return n/stride + 1
}

// KernelSlideShape returns the destination shape produced by sliding a
// kernelShape window over srcShape. The channel axis becomes nFilters.
func KernelSlideShape(srcShape Shape3d, kernelShape Shape2d, nFilters int, stride, padding Shape2d) Shape3d {
	return Shape3d{
		Height:   SlideSide(srcShape.Height, kernelShape.Height, stride.Height, padding.Height),
		Width:    SlideSide(srcShape.Width, kernelShape.Width, stride.Width, padding.Width),
		Channels: nFilters,
	}
}

// KernelSlide slides a kernelShape window over src with the given stride and
// padding and lets op reduce each window into dst.
func KernelSlide(op KernelOp, dst, src []float64, srcShape Shape3d,
	kernel []float64, kernelShape Shape2d, nFilters int,
	stride, padding Shape2d) {

	if stride.Height < 1 {
		stride.Height = 1
	}
	if stride.Width < 1 {
		stride.Width = 1
	}
	dstShape := KernelSlideShape(srcShape, kernelShape, nFilters, stride, padding)

	for r := 0; r < dstShape.Height; r++ {
		row := r*stride.Height - padding.Height
		for c := 0; c < dstShape.Width; c++ {
			col := c*stride.Width - padding.Width
			op(dst, dstShape, Coord2d{Row: r, Col: c},
				src, srcShape, kernel, kernelShape, nFilters, row, col)
		}
	}
}

// kernelIndex addresses weight (kr, kc, ch) of filter f; filters are stored
// one after the other, each as a kh x kw x channels volume.
func kernelIndex(f, kr, kc, ch int, kernelShape Shape2d, channels int) int {
	return ((f*kernelShape.Height+kr)*kernelShape.Width+kc)*channels + ch
}

// Conv computes a multi-filter convolution of src into dst. kernel holds
// nFilters filters of kernelShape x srcShape.Channels weights; bias, when not
// nil, holds one value per filter.
func Conv(dst, src []float64, srcShape Shape3d, kernel, bias []float64,
	kernelShape Shape2d, nFilters int, stride, padding Shape2d) {

	op := func(dst []float64, dstShape Shape3d, at Coord2d,
		src []float64, srcShape Shape3d,
		k []float64, kShape Shape2d, nFilters int, row, col int) {

		base := dstShape.Index(at.Row, at.Col, 0)
		for f := 0; f < nFilters; f++ {
			sum := 0.0
			for kr := 0; kr < kShape.Height; kr++ {
				sr := row + kr
				for kc := 0; kc < kShape.Width; kc++ {
					sc := col + kc
					if !srcShape.Contains(sr, sc) {
						continue
					}
					s := srcShape.Index(sr, sc, 0)
					w := kernelIndex(f, kr, kc, 0, kShape, srcShape.Channels)
					for ch := 0; ch < srcShape.Channels; ch++ {
						sum += src[s+ch] * k[w+ch]
					}
				}
			}
			if bias != nil {
				sum += bias[f]
			}
			dst[base+f] = sum
		}
	}
	KernelSlide(op, dst, src, srcShape, kernel, kernelShape, nFilters, stride, padding)
}

// ConvGrad back-propagates grad (shaped like Conv's output) in a single
// slide. Weight and bias gradients are accumulated into kernelGrad and
// biasGrad; the input gradient is scatter-accumulated into srcGrad, which the
// caller is expected to have cleared.
func ConvGrad(srcGrad, kernelGrad, biasGrad, grad, src []float64, srcShape Shape3d,
	kernel []float64, kernelShape Shape2d, nFilters int, stride, padding Shape2d) {

	op := func(_ []float64, dstShape Shape3d, at Coord2d,
		src []float64, srcShape Shape3d,
		k []float64, kShape Shape2d, nFilters int, row, col int) {

		base := dstShape.Index(at.Row, at.Col, 0)
		for f := 0; f < nFilters; f++ {
			g := grad[base+f]
			if biasGrad != nil {
				biasGrad[f] += g
			}
			for kr := 0; kr < kShape.Height; kr++ {
				sr := row + kr
				for kc := 0; kc < kShape.Width; kc++ {
					sc := col + kc
					if !srcShape.Contains(sr, sc) {
						continue
					}
					s := srcShape.Index(sr, sc, 0)
					w := kernelIndex(f, kr, kc, 0, kShape, srcShape.Channels)
					for ch := 0; ch < srcShape.Channels; ch++ {
						kernelGrad[w+ch] += src[s+ch] * g
						srcGrad[s+ch] += k[w+ch] * g
					}
				}
			}
		}
	}
	KernelSlide(op, nil, src, srcShape, kernel, kernelShape, nFilters, stride, padding)
}

// maxInWindow returns the flat source index of the first maximum in the
// window at (row, col) for channel ch, scanning row-major. It returns -1 if
// the window does not touch the source.
func maxInWindow(src []float64, srcShape Shape3d, kShape Shape2d, row, col, ch int) int {
	best := -1
	bestVal := math.Inf(-1)
	for kr := 0; kr < kShape.Height; kr++ {
		for kc := 0; kc < kShape.Width; kc++ {
			sr, sc := row+kr, col+kc
			if !srcShape.Contains(sr, sc) {
				continue
			}
			i := srcShape.Index(sr, sc, ch)
			if best < 0 || src[i] > bestVal {
				best, bestVal = i, src[i]
			}
		}
	}
	return best
}

// MaxPool writes the per-window, per-channel maximum of src into dst.
func MaxPool(dst, src []float64, srcShape Shape3d, kernelShape, stride Shape2d) {
	op := func(dst []float64, dstShape Shape3d, at Coord2d,
		src []float64, srcShape Shape3d,
		_ []float64, kShape Shape2d, _ int, row, col int) {

		for ch := 0; ch < srcShape.Channels; ch++ {
			v := 0.0
			if i := maxInWindow(src, srcShape, kShape, row, col, ch); i >= 0 {
				v = src[i]
			}
			dst[dstShape.Index(at.Row, at.Col, ch)] = v
		}
	}
	KernelSlide(op, dst, src, srcShape, nil, kernelShape, srcShape.Channels, stride, Shape2d{})
}

// MaxPoolGrad routes every output gradient to the position that held the
// window maximum in src. Ties go to the first position in row-major order.
// srcGrad is accumulated into and should be cleared by the caller.
func MaxPoolGrad(srcGrad, grad, src []float64, srcShape Shape3d, kernelShape, stride Shape2d) {
	op := func(_ []float64, dstShape Shape3d, at Coord2d,
		src []float64, srcShape Shape3d,
		_ []float64, kShape Shape2d, _ int, row, col int) {

		for ch := 0; ch < srcShape.Channels; ch++ {
			if i := maxInWindow(src, srcShape, kShape, row, col, ch); i >= 0 {
				srcGrad[i] += grad[dstShape.Index(at.Row, at.Col, ch)]
			}
		}
	}
	KernelSlide(op, nil, src, srcShape, nil, kernelShape, srcShape.Channels, stride, Shape2d{})
}

// AvgPool writes the per-window, per-channel mean of src into dst.
func AvgPool(dst, src []float64, srcShape Shape3d, kernelShape, stride Shape2d) {
	inv := 1.0 / float64(kernelShape.Size())
	op := func(dst []float64, dstShape Shape3d, at Coord2d,
		src []float64, srcShape Shape3d,
		_ []float64, kShape Shape2d, _ int, row, col int) {

		for ch := 0; ch < srcShape.Channels; ch++ {
			sum := 0.0
			for kr := 0; kr < kShape.Height; kr++ {
				for kc := 0; kc < kShape.Width; kc++ {
					sr, sc := row+kr, col+kc
					if srcShape.Contains(sr, sc) {
						sum += src[srcShape.Index(sr, sc, ch)]
					}
				}
			}
			dst[dstShape.Index(at.Row, at.Col, ch)] = sum * inv
		}
	}
	KernelSlide(op, dst, src, srcShape, nil, kernelShape, srcShape.Channels, stride, Shape2d{})
}

// AvgPoolGrad spreads each output gradient evenly over its window.
// Overlapping windows accumulate; srcGrad should be cleared by the caller.
func AvgPoolGrad(srcGrad, grad []float64, srcShape Shape3d, kernelShape, stride Shape2d) {
	inv := 1.0 / float64(kernelShape.Size())
	op := func(_ []float64, dstShape Shape3d, at Coord2d,
		_ []float64, srcShape Shape3d,
		_ []float64, kShape Shape2d, _ int, row, col int) {

		for ch := 0; ch < srcShape.Channels; ch++ {
			g := grad[dstShape.Index(at.Row, at.Col, ch)] * inv
			for kr := 0; kr < kShape.Height; kr++ {
				for kc := 0; kc < kShape.Width; kc++ {
					sr, sc := row+kr, col+kc
					if srcShape.Contains(sr, sc) {
						srcGrad[srcShape.Index(sr, sc, ch)] += g
					}
				}
			}
		}
	}
	KernelSlide(op, nil, nil, srcShape, nil, kernelShape, srcShape.Channels, stride, Shape2d{})
}
