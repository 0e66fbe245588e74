package render

import (
	"image"

	"github.com/nfnt/resize"
)

// Thumbnail downscales img so that neither side exceeds maxSide, keeping the
// aspect ratio. Images already small enough, and maxSide 0, return img as is.
//
// Arguments:
//   - img: The image to shrink, usually a Render result.
//   - maxSide: The largest allowed width or height in pixels.
//
// Returns:
//   - image.Image: The preview.
//
// @example
// preview := render.Thumbnail(out, 320)
func Thumbnail(img image.Image, maxSide uint) image.Image {
	b := img.Bounds()
	if maxSide == 0 || (uint(b.Dx()) <= maxSide && uint(b.Dy()) <= maxSide) {
		return img
	}
	return resize.Thumbnail(maxSide, maxSide, img, resize.Bilinear)
}
