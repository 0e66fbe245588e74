package mask

import (
	"slices"

	"github.com/pkg/errors"
)

// RLE is the compact run-length form of a binary mask.
//
// Counts alternate background and foreground runs in column-major order,
// always starting with background (a leading zero means the first pixel is
// foreground). A valid RLE has counts summing to Height*Width.
type RLE struct {
	// Height is the number of rows of the encoded mask.
	Height int
	// Width is the number of columns of the encoded mask.
	Width int
	// Counts are the alternating run lengths.
	Counts []uint32
}

// Size returns the mask size as [height, width], the order used by COCO documents.
func (r RLE) Size() [2]int {
	return [2]int{r.Height, r.Width}
}

// Pixels returns Height*Width.
func (r RLE) Pixels() uint64 {
	return uint64(r.Height) * uint64(r.Width)
}

// Valid checks the size is non-negative and the runs cover the mask exactly.
func (r RLE) Valid() error {
	if r.Height < 0 || r.Width < 0 {
		return errors.Wrapf(ErrMalformedMask, "negative size [%d, %d]", r.Height, r.Width)
	}
	var sum uint64
	for _, c := range r.Counts {
		sum += uint64(c)
	}
	if sum != r.Pixels() {
		return errors.Wrapf(ErrMalformedMask, "counts sum to %d, size [%d, %d] needs %d",
			sum, r.Height, r.Width, r.Pixels())
	}
	return nil
}

// Equal reports whether two RLEs have the same size and identical counts.
func (r RLE) Equal(o RLE) bool {
	return r.Height == o.Height && r.Width == o.Width && slices.Equal(r.Counts, o.Counts)
}

// Encode converts a dense mask to its run-length form.
//
// The scan is column-major and a new run starts every time the pixel value
// flips, beginning with the (possibly empty) background run.
//
// Arguments:
//   - m: The dense mask to encode.
//
// Returns:
//   - RLE: The run-length encoding of m.
//
// Example:
//
// ```go
//
//	m := mask.NewMask(4, 4)
//	m.Set(1, 1, true)
//	rle := mask.Encode(m) // rle.Counts == []uint32{5, 1, 10}
//
// ```
func Encode(m *Mask) RLE {
	counts := make([]uint32, 0, 8)
	var prev uint8
	var run uint32
	for _, v := range m.Data {
		if v != 0 {
			v = 1
		}
		if v != prev {
			counts = append(counts, run)
			prev = v
			run = 0
		}
		run++
	}
	counts = append(counts, run)
	return RLE{Height: m.Height, Width: m.Width, Counts: counts}
}

// Decode expands a run-length mask into a freshly allocated dense mask.
//
// Arguments:
//   - r: The RLE to expand.
//
// Returns:
//   - *Mask: The dense mask.
//   - error: ErrMalformedMask if the counts do not sum to Height*Width.
func Decode(r RLE) (*Mask, error) {
	if err := r.Valid(); err != nil {
		return nil, err
	}
	m := NewMask(r.Height, r.Width)
	pos := 0
	for i, c := range r.Counts {
		n := int(c)
		if i%2 == 1 {
			for j := pos; j < pos+n; j++ {
				m.Data[j] = 1
			}
		}
		pos += n
	}
	return m, nil
}

// Area returns the number of foreground pixels without decoding.
func Area(r RLE) uint64 {
	var area uint64
	for i := 1; i < len(r.Counts); i += 2 {
		area += uint64(r.Counts[i])
	}
	return area
}

// ToBBox returns the tight bounding box [x, y, w, h] of the foreground.
//
// A foreground run that wraps from one column into the next covers the full
// height of the mask. An empty mask yields a zero box.
func ToBBox(r RLE) [4]float64 {
	h := uint64(r.Height)
	if h == 0 || Area(r) == 0 {
		return [4]float64{}
	}
	xMin, yMin := uint64(r.Width), h
	var xMax, yMax uint64
	var pos uint64
	for i, c := range r.Counts {
		start := pos
		pos += uint64(c)
		if i%2 == 0 || c == 0 {
			continue
		}
		end := pos - 1
		xs, ys := start/h, start%h
		xe, ye := end/h, end%h
		xMin = min(xMin, xs)
		xMax = max(xMax, xe)
		if xe > xs {
			ys, ye = 0, h-1
		}
		yMin = min(yMin, ys)
		yMax = max(yMax, ye)
	}
	return [4]float64{
		float64(xMin),
		float64(yMin),
		float64(xMax - xMin + 1),
		float64(yMax - yMin + 1),
	}
}
