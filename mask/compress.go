package mask

import (
	"strings"

	"github.com/pkg/errors"
)

// The compressed form packs each count into 6-bit chunks offset into the
// printable range starting at '0'. Five bits carry data, bit 5 marks a
// continuation and bit 4 of the final chunk carries the sign. Counts after
// the second are stored as the difference to the count two positions back.
const (
	chunkOffset   = 48
	chunkData     = 0x1f
	chunkSign     = 0x10
	chunkContinue = 0x20
	chunkMax      = chunkOffset + 0x3f
)

// String returns the COCO compressed representation of the counts.
func (r RLE) String() string {
	return EncodeString(r)
}

// EncodeString compresses the counts of r into the ASCII form used by COCO
// documents for crowd annotations.
//
// Arguments:
//   - r: The RLE to compress.
//
// Returns:
//   - string: The compressed counts.
//
// Example:
//
// ```go
//
//	r := mask.RLE{Height: 9, Width: 10, Counts: []uint32{6, 1, 40, 4, 5, 4, 5, 4, 21}}
//	s := mask.EncodeString(r) // "61X13mN000`0"
//
// ```
func EncodeString(r RLE) string {
	var sb strings.Builder
	sb.Grow(len(r.Counts) * 2)
	for i, c := range r.Counts {
		x := int64(c)
		if i > 2 {
			x -= int64(r.Counts[i-2])
		}
		for more := true; more; {
			b := byte(x & chunkData)
			x >>= 5
			if b&chunkSign != 0 {
				more = x != -1
			} else {
				more = x != 0
			}
			if more {
				b |= chunkContinue
			}
			sb.WriteByte(b + chunkOffset)
		}
	}
	return sb.String()
}

// DecodeString parses compressed counts into an RLE of the given size.
//
// Arguments:
//   - s: The compressed counts.
//   - height: Mask height.
//   - width: Mask width.
//
// Returns:
//   - RLE: The decoded run lengths.
//   - error: ErrMalformedMask for characters outside the alphabet, a truncated
//     final count, or a negative run.
func DecodeString(s string, height, width int) (RLE, error) {
	counts := make([]uint32, 0, len(s))
	for p := 0; p < len(s); {
		var x int64
		k := 0
		for more := true; more; {
			if p >= len(s) {
				return RLE{}, errors.Wrapf(ErrMalformedMask, "truncated count at byte %d", p)
			}
			ch := s[p]
			if ch < chunkOffset || ch > chunkMax {
				return RLE{}, errors.Wrapf(ErrMalformedMask, "invalid character %q at byte %d", ch, p)
			}
			b := int64(ch - chunkOffset)
			x |= (b & chunkData) << (5 * k)
			more = b&chunkContinue != 0
			p++
			k++
			if !more && b&chunkSign != 0 {
				x |= -1 << (5 * k)
			}
		}
		if m := len(counts); m > 2 {
			x += int64(counts[m-2])
		}
		if x < 0 || x > int64(^uint32(0)) {
			return RLE{}, errors.Wrapf(ErrMalformedMask, "run %d decodes to %d", len(counts), x)
		}
		counts = append(counts, uint32(x))
	}
	return RLE{Height: height, Width: width, Counts: counts}, nil
}
