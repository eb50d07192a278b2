// Package dlmath provides the numeric kernels shared by every layer:
// shapes, element-wise operations, dense products and the sliding-window
// primitive used by convolution and pooling.
package dlmath

import "fmt"

// Axis indices of a Shape3d.
const (
	AxisHeight = iota
	AxisWidth
	AxisChannels
	NumAxes
)

// Shape2d is a height x width extent.
type Shape2d struct {
	Height int
	Width  int
}

// Size returns the number of elements covered by the shape.
func (s Shape2d) Size() int {
	return s.Height * s.Width
}

func (s Shape2d) String() string {
	return fmt.Sprintf("(%d, %d)", s.Height, s.Width)
}

// Shape3d is a height x width x channels volume. Volumes are stored row-major
// with channels innermost: (row*Width + col)*Channels + ch.
type Shape3d struct {
	Height   int
	Width    int
	Channels int
}

// Shape3dFrom2d lifts a 2D shape into a single-channel volume.
func Shape3dFrom2d(s Shape2d) Shape3d {
	return Shape3d{Height: s.Height, Width: s.Width, Channels: 1}
}

// Shape3dOf returns a flat {size, 1, 1} volume.
func Shape3dOf(size int) Shape3d {
	return Shape3d{Height: size, Width: 1, Channels: 1}
}

// Size returns the number of elements in the volume.
func (s Shape3d) Size() int {
	return s.Height * s.Width * s.Channels
}

// Shape2d drops the channel axis.
func (s Shape3d) Shape2d() Shape2d {
	return Shape2d{Height: s.Height, Width: s.Width}
}

// Axis returns the extent along axis (AxisHeight, AxisWidth, AxisChannels).
func (s Shape3d) Axis(axis int) int {
	switch axis {
	case AxisHeight:
		return s.Height
	case AxisWidth:
		return s.Width
	case AxisChannels:
		return s.Channels
	}
	panic(fmt.Sprintf("dlmath: axis %d out of range", axis))
}

// WithAxis returns a copy of s with the extent along axis replaced by v.
func (s Shape3d) WithAxis(axis, v int) Shape3d {
	switch axis {
	case AxisHeight:
		s.Height = v
	case AxisWidth:
		s.Width = v
	case AxisChannels:
		s.Channels = v
	default:
		panic(fmt.Sprintf("dlmath: axis %d out of range", axis))
	}
	return s
}

// Index returns the flat offset of (row, col, ch).
func (s Shape3d) Index(row, col, ch int) int {
	return (row*s.Width+col)*s.Channels + ch
}

// Contains reports whether (row, col) lies inside the spatial extent.
func (s Shape3d) Contains(row, col int) bool {
	return row >= 0 && row < s.Height && col >= 0 && col < s.Width
}

func (s Shape3d) String() string {
	return fmt.Sprintf("(%d, %d, %d)", s.Height, s.Width, s.Channels)
}

// Coord2d addresses one spatial position.
type Coord2d struct {
	Row int
	Col int
}
