// Package render - Draws COCO annotations onto RGBA images.
//
// Rendering is a pure function of its inputs: the source buffer is copied
// before anything is drawn and colours depend only on the category id, so the
// same inputs always produce the same pixels.
package render

import (
	"fmt"
	"image"
	"math"

	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"

	"github.com/nvr-ai/go-coco/coco"
	"github.com/nvr-ai/go-coco/config"
	"github.com/nvr-ai/go-coco/images"
	"github.com/nvr-ai/go-coco/mask"
)

// Options selects what Render draws.
type Options struct {
	// DrawBoxes outlines each annotation's bounding box.
	DrawBoxes bool `json:"draw_boxes" yaml:"draw_boxes"`
	// DrawMasks blends each annotation's segmentation mask.
	DrawMasks bool `json:"draw_masks" yaml:"draw_masks"`
	// DrawLabels writes the category name (and score, for results) at the box corner.
	DrawLabels bool `json:"draw_labels" yaml:"draw_labels"`
	// Thickness is the box outline width in pixels, grown outwards.
	Thickness int `json:"thickness" yaml:"thickness"`
	// Alpha is the mask opacity in [0, 1].
	Alpha float64 `json:"alpha" yaml:"alpha"`
}

// DefaultOptions draws boxes and masks at 40% opacity.
func DefaultOptions() Options {
	return Options{
		DrawBoxes: true,
		DrawMasks: true,
		Thickness: 2,
		Alpha:     0.4,
	}
}

// FromConfig converts the configuration form of the options.
func FromConfig(c config.Render) Options {
	return Options{
		DrawBoxes:  c.Boxes,
		DrawMasks:  c.Masks,
		DrawLabels: c.Labels,
		Thickness:  c.Thickness,
		Alpha:      c.Alpha,
	}
}

// Render draws anns over a copy of src and returns the copy.
//
// For each annotation, in order, the box outline is drawn first, then the
// mask is blended over it, then the label is written. Masks come from
// idx.Mask, so polygon segmentation is rasterized and RLE segmentation is
// decoded; annotations without segmentation get no mask.
//
// Arguments:
//   - src: The image pixels. Never modified.
//   - anns: The annotations to draw, normally all of one image.
//   - idx: The index owning anns, used for masks, boxes and category names.
//   - opts: What to draw.
//
// Returns:
//   - *image.RGBA: A new buffer with the annotations drawn.
//   - error: mask.ErrShapeMismatch when an annotation's image or mask size
//     differs from src, whatever opts selects, or any mask error. Rendering
//     stops at the first failure.
//
// Example:
//
// ```go
//
//	anns, _ := idx.AnnotationsForImage(imageID)
//	out, err := render.Render(pixels, anns, idx, render.DefaultOptions())
//
// ```
func Render(src *image.RGBA, anns []*coco.Annotation, idx *coco.Index, opts Options) (*image.RGBA, error) {
	if opts.Alpha < 0 || opts.Alpha > 1 || math.IsNaN(opts.Alpha) {
		return nil, errors.Errorf("alpha must be in [0, 1], got %v", opts.Alpha)
	}

	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)

	for _, ann := range anns {
		img, err := idx.Image(ann.ImageID)
		if err != nil {
			return nil, errors.WithMessagef(err, "annotation %d", ann.ID)
		}
		if img.Width != b.Dx() || img.Height != b.Dy() {
			return nil, errors.Wrapf(mask.ErrShapeMismatch,
				"annotation %d: image %d is %dx%d, buffer is %dx%d", ann.ID, img.ID, img.Width, img.Height, b.Dx(), b.Dy())
		}
		col := ColorFor(ann.CategoryID)

		var box images.Rect
		if opts.DrawBoxes || opts.DrawLabels {
			bb, err := idx.BBox(ann)
			if err != nil {
				return nil, errors.WithMessagef(err, "annotation %d", ann.ID)
			}
			box = boxRect(bb)
		}

		if opts.DrawBoxes {
			drawBox(dst, box, max(opts.Thickness, 1), col)
		}

		if opts.DrawMasks && ann.Segmentation.Kind != coco.SegmentationNone {
			rle, err := idx.Mask(ann)
			if err != nil {
				return nil, errors.WithMessagef(err, "annotation %d", ann.ID)
			}
			if rle.Height != b.Dy() || rle.Width != b.Dx() {
				return nil, errors.Wrapf(mask.ErrShapeMismatch,
					"annotation %d: mask is %dx%d, image is %dx%d", ann.ID, rle.Width, rle.Height, b.Dx(), b.Dy())
			}
			m, err := mask.Decode(rle)
			if err != nil {
				return nil, errors.WithMessagef(err, "annotation %d", ann.ID)
			}
			blendMask(dst, m, col, opts.Alpha)
		}

		if opts.DrawLabels && !box.Empty() {
			drawLabel(dst, box, labelText(idx, ann), col)
		}
	}
	return dst, nil
}

// RenderImage renders all annotations of one image over its pixels.
//
// Arguments:
//   - idx: The annotation index.
//   - imageID: The image to render.
//   - pixels: The decoded image; its size must match the image record.
//   - opts: What to draw.
//
// Returns:
//   - *image.RGBA: The rendered image.
//   - error: coco.ErrNotFound for an unknown image, mask.ErrShapeMismatch when
//     pixels do not match the recorded size, or any error from Render.
func RenderImage(idx *coco.Index, imageID int64, pixels image.Image, opts Options) (*image.RGBA, error) {
	img, err := idx.Image(imageID)
	if err != nil {
		return nil, err
	}
	if err := images.CheckDimensions(pixels, img.Width, img.Height); err != nil {
		return nil, errors.WithMessagef(err, "image %d (%s)", img.ID, img.FileName)
	}
	anns, err := idx.AnnotationsForImage(imageID)
	if err != nil {
		return nil, err
	}
	return Render(images.ToRGBA(pixels), anns, idx, opts)
}

// boxRect truncates the box to whole pixels the way the outline is drawn:
// corner and extent are each cut to integers.
func boxRect(b coco.BBox) images.Rect {
	if b.Width <= 0 || b.Height <= 0 {
		return images.Rect{}
	}
	x, y := int(b.X), int(b.Y)
	return images.Rect{X1: x, Y1: y, X2: x + int(b.Width), Y2: y + int(b.Height)}
}

func labelText(idx *coco.Index, ann *coco.Annotation) string {
	name := fmt.Sprintf("category %d", ann.CategoryID)
	if cat, err := idx.Category(ann.CategoryID); err == nil && cat.Name != "" {
		name = cat.Name
	}
	if ann.Score != nil {
		return fmt.Sprintf("%s %.2f", name, *ann.Score)
	}
	return name
}
