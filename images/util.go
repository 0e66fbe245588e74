package images

import (
	"crypto/md5"
	"fmt"
	"image"
)

// ComputeChecksum generates a deterministic checksum of an RGBA buffer, used
// to verify that rendering is repeatable and leaves its input untouched.
//
// Arguments:
// - img: The buffer to compute checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string, or "empty" for a zero-sized buffer.
//
// Example:
//
// ```go
//
//	checksum := ComputeChecksum(frame)
//	fmt.Printf("Frame checksum: %s\n", checksum)
//
// ```
func ComputeChecksum(img *image.RGBA) string {
	b := img.Bounds()
	if b.Empty() {
		return "empty"
	}

	hash := md5.New()
	fmt.Fprintf(hash, "%dx%d:", b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		hash.Write(img.Pix[off : off+4*b.Dx()])
	}
	return fmt.Sprintf("%x", hash.Sum(nil))
}
