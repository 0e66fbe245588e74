package mask

import (
	"github.com/pkg/errors"
)

// runCursor walks a count sequence one run at a time, skipping empty runs.
type runCursor struct {
	counts []uint32
	i      int
	rem    uint64
	fg     bool
}

func newRunCursor(counts []uint32) *runCursor {
	c := &runCursor{counts: counts}
	if len(counts) > 0 {
		c.rem = uint64(counts[0])
	}
	c.skipEmpty()
	return c
}

func (c *runCursor) skipEmpty() {
	for c.rem == 0 && c.i < len(c.counts)-1 {
		c.i++
		c.rem = uint64(c.counts[c.i])
		c.fg = !c.fg
	}
}

func (c *runCursor) advance(n uint64) {
	c.rem -= n
	c.skipEmpty()
}

// walk performs the merge-sort style pass over two equally sized run sequences,
// calling visit for every maximal stretch on which neither input changes value.
func walk(a, b RLE, visit func(n uint64, fa, fb bool)) {
	ca, cb := newRunCursor(a.Counts), newRunCursor(b.Counts)
	total := a.Pixels()
	for pos := uint64(0); pos < total; {
		step := min(ca.rem, cb.rem)
		if step == 0 {
			return
		}
		visit(step, ca.fg, cb.fg)
		pos += step
		ca.advance(step)
		cb.advance(step)
	}
}

func checkPair(a, b RLE) error {
	if a.Height != b.Height || a.Width != b.Width {
		return errors.Wrapf(ErrShapeMismatch, "[%d, %d] vs [%d, %d]", a.Height, a.Width, b.Height, b.Width)
	}
	if err := a.Valid(); err != nil {
		return err
	}
	return b.Valid()
}

// combine merges two masks with op, producing canonical counts.
func combine(a, b RLE, op func(fa, fb bool) bool) RLE {
	counts := make([]uint32, 0, max(len(a.Counts), len(b.Counts)))
	fg := false
	var run uint64
	walk(a, b, func(n uint64, fa, fb bool) {
		if v := op(fa, fb); v != fg {
			counts = append(counts, uint32(run))
			fg = v
			run = 0
		}
		run += n
	})
	counts = append(counts, uint32(run))
	return RLE{Height: a.Height, Width: a.Width, Counts: counts}
}

func unionOp(a, b bool) bool { return a || b }
func intersectOp(a, b bool) bool { return a && b }

// IoU computes intersection over union of two masks directly on their runs.
//
// Two empty masks have an IoU of 0.
//
// Arguments:
//   - a: The first mask.
//   - b: The second mask.
//
// Returns:
//   - float64: A value in [0, 1].
//   - error: ErrShapeMismatch if the sizes differ, ErrMalformedMask if either is invalid.
func IoU(a, b RLE) (float64, error) {
	if err := checkPair(a, b); err != nil {
		return 0, err
	}
	inter, union := overlap(a, b)
	if union == 0 {
		return 0, nil
	}
	return float64(inter) / float64(union), nil
}

func overlap(a, b RLE) (inter, union uint64) {
	walk(a, b, func(n uint64, fa, fb bool) {
		if fa && fb {
			inter += n
		}
		if fa || fb {
			union += n
		}
	})
	return inter, union
}

// Merge reduces same-size masks to one by repeated union or intersection.
//
// Arguments:
//   - rs: The masks to merge.
//   - union: True for union, false for intersection.
//
// Returns:
//   - RLE: The merged mask.
//   - error: ErrEmptyInput when rs is empty, ErrShapeMismatch on differing sizes.
func Merge(rs []RLE, union bool) (RLE, error) {
	if len(rs) == 0 {
		return RLE{}, ErrEmptyInput
	}
	if err := rs[0].Valid(); err != nil {
		return RLE{}, err
	}
	op := intersectOp
	if union {
		op = unionOp
	}
	out := RLE{Height: rs[0].Height, Width: rs[0].Width, Counts: append([]uint32(nil), rs[0].Counts...)}
	for _, r := range rs[1:] {
		if err := checkPair(out, r); err != nil {
			return RLE{}, err
		}
		out = combine(out, r, op)
	}
	if len(rs) == 1 {
		// Normalise through a no-op merge so callers always get canonical runs.
		out = combine(out, out, op)
	}
	return out, nil
}

// IoUMatrix scores every detection against every ground truth, the way COCO
// evaluation does: for a crowd ground truth the union is the detection's area.
//
// Arguments:
//   - dts: Detection masks.
//   - gts: Ground-truth masks.
//   - crowd: Crowd flag per ground truth; nil means no crowd.
//
// Returns:
//   - [][]float64: A len(dts) x len(gts) matrix.
//   - error: ErrShapeMismatch for size disagreements or a crowd slice of the wrong length.
func IoUMatrix(dts, gts []RLE, crowd []bool) ([][]float64, error) {
	if crowd != nil && len(crowd) != len(gts) {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d crowd flags for %d ground truths", len(crowd), len(gts))
	}
	out := make([][]float64, len(dts))
	for i, d := range dts {
		out[i] = make([]float64, len(gts))
		for j, g := range gts {
			if err := checkPair(d, g); err != nil {
				return nil, errors.WithMessagef(err, "detection %d, ground truth %d", i, j)
			}
			inter, union := overlap(d, g)
			if crowd != nil && crowd[j] {
				union = Area(d)
			}
			if union > 0 {
				out[i][j] = float64(inter) / float64(union)
			}
		}
	}
	return out, nil
}
