package images

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"  // GIF decoder registration.
	_ "image/jpeg" // JPEG decoder registration.
	_ "image/png"  // PNG decoder registration.

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp" // BMP decoder registration.
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // TIFF decoder registration.
	_ "golang.org/x/image/webp" // WebP decoder registration.

	"github.com/nvr-ai/go-coco/blob"
	"github.com/nvr-ai/go-coco/mask"
)

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format Format `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// Format names an encoded image format, as reported by image.Decode.
type Format string

// Format constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG Format = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG Format = "png"
	// FormatGIF is the GIF image format.
	FormatGIF Format = "gif"
	// FormatBMP is the BMP image format.
	FormatBMP Format = "bmp"
	// FormatTIFF is the TIFF image format.
	FormatTIFF Format = "tiff"
	// FormatWebP is the WebP image format.
	FormatWebP Format = "webp"
)

// Probe reads only the header of data.
//
// Returns:
//   - Image: Format and dimensions, with Data set to data.
//   - error: An error if the format is not recognised.
func Probe(data []byte) (Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, errors.Wrap(err, "probe image")
	}
	return Image{Format: Format(format), Data: data, Width: cfg.Width, Height: cfg.Height}, nil
}

// Decode decodes any registered format into an RGBA buffer with its origin
// at (0, 0).
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - *image.RGBA: The decoded pixels.
//   - Format: The detected format.
//   - error: An error if the data cannot be decoded.
//
// Example:
//
// ```go
//
//	rgba, format, err := images.Decode(data)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(format, rgba.Bounds().Dx(), rgba.Bounds().Dy())
//
// ```
func Decode(data []byte) (*image.RGBA, Format, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(err, "decode image")
	}
	return ToRGBA(img), Format(format), nil
}

// ToRGBA returns img as an *image.RGBA with its origin at (0, 0). An RGBA
// image already at the origin is returned as is, anything else is copied.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}

// Fetch reads name from store and decodes it.
func Fetch(ctx context.Context, store blob.Store, name string) (*image.RGBA, Format, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		return nil, "", errors.Wrapf(err, "fetch image %s", name)
	}
	rgba, format, err := Decode(data)
	if err != nil {
		return nil, "", errors.WithMessage(err, name)
	}
	return rgba, format, nil
}

// CheckDimensions verifies that img is width x height pixels.
//
// Returns:
//   - error: mask.ErrShapeMismatch when the sizes differ.
func CheckDimensions(img image.Image, width, height int) error {
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return errors.Wrapf(mask.ErrShapeMismatch, "image is %dx%d, expected %dx%d", b.Dx(), b.Dy(), width, height)
	}
	return nil
}
