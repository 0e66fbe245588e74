package mask

import (
	"math"
	"slices"

	"github.com/pkg/errors"
)

// spanBuilder accumulates foreground spans, given in increasing column-major
// order, into canonical run lengths.
type spanBuilder struct {
	counts []uint32
	pos    uint64
}

func (b *spanBuilder) add(start, end uint64) {
	if end <= start {
		return
	}
	if len(b.counts) > 0 && start == b.pos {
		b.counts[len(b.counts)-1] += uint32(end - start)
	} else {
		b.counts = append(b.counts, uint32(start-b.pos), uint32(end-start))
	}
	b.pos = end
}

func (b *spanBuilder) finish(total uint64) []uint32 {
	if b.pos < total || len(b.counts) == 0 {
		b.counts = append(b.counts, uint32(total-b.pos))
	}
	return b.counts
}

type vertex struct{ x, y float64 }

func parsePolygon(flat []float64) ([]vertex, error) {
	if len(flat)%2 != 0 {
		return nil, errors.Wrapf(ErrInvalidPolygon, "odd coordinate count %d", len(flat))
	}
	pts := make([]vertex, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		x, y := flat[i], flat[i+1]
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return nil, errors.Wrapf(ErrInvalidPolygon, "non-finite vertex %d", i/2)
		}
		pts = append(pts, vertex{x, y})
	}
	if n := len(pts); n > 3 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	if len(pts) < 3 {
		return nil, errors.Wrapf(ErrInvalidPolygon, "%d vertices, need at least 3", len(pts))
	}
	return pts, nil
}

// rasterize fills one polygon with the even-odd rule. A pixel belongs to the
// polygon when its centre (x+0.5, y+0.5) is inside. Each column is scanned on
// its own vertical centre line so spans are produced in codec order.
func rasterize(pts []vertex, height, width int) RLE {
	xMin, xMax := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		xMin = min(xMin, p.x)
		xMax = max(xMax, p.x)
	}
	// Clamp before converting: out-of-range float to int is undefined.
	first := int(min(float64(width), max(0, math.Floor(xMin-0.5))))
	last := int(max(-1, min(float64(width-1), math.Ceil(xMax-0.5))))

	h := uint64(height)
	var b spanBuilder
	ys := make([]float64, 0, 8)
	for x := first; x <= last; x++ {
		xc := float64(x) + 0.5
		ys = ys[:0]
		for i := range pts {
			p, q := pts[i], pts[(i+1)%len(pts)]
			if (p.x <= xc) == (q.x <= xc) {
				continue
			}
			t := (xc - p.x) / (q.x - p.x)
			ys = append(ys, p.y+t*(q.y-p.y))
		}
		slices.Sort(ys)
		col := uint64(x) * h
		for k := 0; k+1 < len(ys); k += 2 {
			y0 := clampRow(math.Ceil(ys[k]-0.5), height)
			y1 := clampRow(math.Ceil(ys[k+1]-0.5), height)
			b.add(col+uint64(y0), col+uint64(y1))
		}
	}
	return RLE{Height: height, Width: width, Counts: b.finish(uint64(height) * uint64(width))}
}

func clampRow(v float64, height int) int {
	if v < 0 {
		return 0
	}
	if v > float64(height) {
		return height
	}
	return int(v)
}

// FromPolygons rasterizes polygon segmentation into run-length form.
//
// Every polygon is a flat list of x,y pairs and describes one part of the
// instance; the parts are unioned. A trailing vertex repeating the first one
// is ignored.
//
// Arguments:
//   - polygons: The vertex lists.
//   - height: Mask height, normally the image height.
//   - width: Mask width, normally the image width.
//
// Returns:
//   - RLE: The rasterized mask.
//   - error: ErrInvalidPolygon for degenerate vertex lists, ErrMalformedMask
//     for a negative size.
//
// Example:
//
// ```go
//
//	rle, err := mask.FromPolygons([][]float64{{1, 1, 3, 1, 3, 3, 1, 3}}, 4, 4)
//	// rle.Counts == []uint32{5, 2, 2, 2, 5}
//
// ```
func FromPolygons(polygons [][]float64, height, width int) (RLE, error) {
	if height < 0 || width < 0 {
		return RLE{}, errors.Wrapf(ErrMalformedMask, "negative size [%d, %d]", height, width)
	}
	if len(polygons) == 0 {
		return RLE{}, errors.Wrap(ErrInvalidPolygon, "no polygons")
	}
	parts := make([]RLE, 0, len(polygons))
	for i, flat := range polygons {
		pts, err := parsePolygon(flat)
		if err != nil {
			return RLE{}, errors.WithMessagef(err, "polygon %d", i)
		}
		parts = append(parts, rasterize(pts, height, width))
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return Merge(parts, true)
}

// FromBBox rasterizes an axis-aligned box [x, y, w, h] through the polygon
// path. Boxes with no positive extent produce an empty mask.
func FromBBox(x, y, w, h float64, height, width int) (RLE, error) {
	if height < 0 || width < 0 {
		return RLE{}, errors.Wrapf(ErrMalformedMask, "negative size [%d, %d]", height, width)
	}
	if w <= 0 || h <= 0 {
		return RLE{Height: height, Width: width, Counts: []uint32{uint32(height * width)}}, nil
	}
	return FromPolygons([][]float64{{x, y, x + w, y, x + w, y + h, x, y + h}}, height, width)
}

// ValidatePolygons checks polygon structure without rasterizing.
func ValidatePolygons(polygons [][]float64) error {
	if len(polygons) == 0 {
		return errors.Wrap(ErrInvalidPolygon, "no polygons")
	}
	for i, flat := range polygons {
		if _, err := parsePolygon(flat); err != nil {
			return errors.WithMessagef(err, "polygon %d", i)
		}
	}
	return nil
}
