// Package mask - binary segmentation masks and their COCO run-length encoding.
//
// Dense masks are stored column-major (the pixel at column x, row y lives at
// Data[x*Height+y]), which is the traversal order used by the COCO tooling.
// Keeping that single convention everywhere makes encoded counts interchangeable
// with masks produced by other COCO implementations bit for bit.
package mask

import (
	"github.com/pkg/errors"
)

var (
	// ErrMalformedMask is returned when run lengths do not add up to the mask area,
	// or when a compressed count string cannot be parsed.
	ErrMalformedMask = errors.New("malformed mask")
	// ErrShapeMismatch is returned when two masks (or a mask and an image) disagree in size.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidPolygon is returned for polygons with fewer than three vertices
	// or an odd number of coordinates.
	ErrInvalidPolygon = errors.New("invalid polygon")
	// ErrEmptyInput is returned when merging an empty list of masks.
	ErrEmptyInput = errors.New("empty input")
)

// Mask is a dense binary mask in column-major order.
type Mask struct {
	// Height is the number of rows.
	Height int
	// Width is the number of columns.
	Width int
	// Data holds one byte per pixel (0 or 1), column-major.
	Data []uint8
}

// NewMask allocates an all-background mask.
//
// Arguments:
//   - height: Number of rows.
//   - width: Number of columns.
//
// Returns:
//   - *Mask: A zeroed mask of the given size.
func NewMask(height, width int) *Mask {
	return &Mask{
		Height: height,
		Width:  width,
		Data:   make([]uint8, height*width),
	}
}

// At reports whether the pixel at column x, row y is foreground.
func (m *Mask) At(x, y int) bool {
	return m.Data[x*m.Height+y] != 0
}

// Set marks the pixel at column x, row y as foreground or background.
func (m *Mask) Set(x, y int, v bool) {
	if v {
		m.Data[x*m.Height+y] = 1
	} else {
		m.Data[x*m.Height+y] = 0
	}
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Equal reports whether two masks have the same size and the same foreground pixels.
func (m *Mask) Equal(o *Mask) bool {
	if m.Height != o.Height || m.Width != o.Width || len(m.Data) != len(o.Data) {
		return false
	}
	for i := range m.Data {
		if (m.Data[i] != 0) != (o.Data[i] != 0) {
			return false
		}
	}
	return true
}
