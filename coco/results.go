package coco

import (
	"fmt"

	gojson "github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-coco/mask"
)

// LoadResults loads detection results against the images and categories of
// idx and returns a new Index holding them as annotations.
//
// Results are a JSON array of annotation records carrying a score. Ids are
// assigned 1..n in input order and iscrowd is cleared. Box-only results get a
// rectangular polygon segmentation and the box area; segmentation results get
// their area from the mask and, when missing, a box derived from the mask.
// Results referencing an image or category absent from idx fail with
// ErrDanglingReference.
//
// Arguments:
//   - data: The JSON array of results.
//
// Returns:
//   - *Index: A new index sharing idx's images and categories.
//   - error: ErrParse, ErrDanglingReference, or a mask error from derivation.
func (idx *Index) LoadResults(data []byte) (*Index, error) {
	var raws []rawAnnotation
	if err := gojson.Unmarshal(data, &raws); err != nil {
		return nil, &ParseError{Path: "results", Err: err}
	}

	anns := make([]*Annotation, 0, len(raws))
	for i, raw := range raws {
		path := fmt.Sprintf("results[%d]", i)
		ann, err := raw.toAnnotation(path, false)
		if err != nil {
			return nil, err
		}
		ann.ID = int64(i + 1)
		ann.IsCrowd = false

		img, ok := idx.imageByID[ann.ImageID]
		if !ok {
			return nil, errors.Wrapf(ErrDanglingReference, "%s: image_id %d is not in the index", path, ann.ImageID)
		}

		switch {
		case ann.Segmentation.Kind == SegmentationNone && ann.BBox != nil:
			b := ann.BBox
			x1, y1, x2, y2 := b.X, b.Y, b.X+b.Width, b.Y+b.Height
			ann.Segmentation = Segmentation{
				Kind:     SegmentationPolygon,
				Polygons: [][]float64{{x1, y1, x1, y2, x2, y2, x2, y1}},
			}
			area := b.Area()
			ann.Area = &area

		case ann.Segmentation.Kind != SegmentationNone:
			rle, err := idx.Mask(ann)
			if err != nil {
				return nil, errors.WithMessage(err, path)
			}
			if err := rle.Valid(); err != nil {
				return nil, errors.WithMessage(err, path)
			}
			area := float64(mask.Area(rle))
			ann.Area = &area
			if ann.BBox == nil {
				bb := mask.ToBBox(rle)
				ann.BBox = &BBox{X: bb[0], Y: bb[1], Width: bb[2], Height: bb[3]}
			}

		default:
			return nil, parseErrorf(path, "result for image %d has neither bbox nor segmentation", img.ID)
		}
		anns = append(anns, ann)
	}

	return build(idx.images, idx.categories, anns)
}
