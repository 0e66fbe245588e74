// Package images - Pixel-space helpers for annotation boxes and image buffers.
package images

import (
	"image"
	"math"
)

// Rect is a box snapped to the pixel grid.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// RectFromBBox snaps a COCO [x, y, w, h] box outwards to whole pixels, so
// every pixel the box touches is inside the Rect.
//
// Arguments:
//   - x, y: The top-left corner.
//   - w, h: The box extent.
//
// Returns:
//   - Rect: The covering pixel rectangle. A box with no positive extent gives
//     an empty Rect at its corner.
//
// @example
// r := images.RectFromBBox(0.5, 1, 2, 2.2) // Rect{X1: 0, Y1: 1, X2: 3, Y2: 4}
func RectFromBBox(x, y, w, h float64) Rect {
	x1, y1 := int(math.Floor(x)), int(math.Floor(y))
	if w <= 0 || h <= 0 {
		return Rect{X1: x1, Y1: y1, X2: x1, Y2: y1}
	}
	return Rect{
		X1: x1,
		Y1: y1,
		X2: int(math.Ceil(x + w)),
		Y2: int(math.Ceil(y + h)),
	}
}

// Dx returns the width.
func (r Rect) Dx() int { return r.X2 - r.X1 }

// Dy returns the height.
func (r Rect) Dy() int { return r.Y2 - r.Y1 }

// Empty reports whether the Rect contains no pixels.
func (r Rect) Empty() bool { return r.X1 >= r.X2 || r.Y1 >= r.Y2 }

// Area returns the pixel count, 0 for an empty Rect.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// ToImageRect converts to an image.Rectangle.
func (r Rect) ToImageRect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// CalculateIoU measures how much two boxes overlap, as the ratio of the
// intersection area to the union area.
//
//	IoU = Area of Intersection / Area of Union
//
// The intersection corner is the maximum of the two top-left corners and the
// minimum of the two bottom-right corners. When its width or height is not
// positive the boxes are disjoint and the result is 0. The union follows from
// inclusion-exclusion: Area(A) + Area(B) - Area(A ∩ B).
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea

	// Cast before dividing; integer division would truncate to 0.
	return float32(interArea) / float32(unionArea)
}
