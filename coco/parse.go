package coco

import (
	"bytes"
	"fmt"

	gojson "github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-coco/mask"
)

// rawDocument mirrors the top level of a COCO annotation file. Unknown keys
// such as "info" and "licenses" are ignored.
type rawDocument struct {
	Images      []rawImage      `json:"images"`
	Categories  []rawCategory   `json:"categories"`
	Annotations []rawAnnotation `json:"annotations"`
}

type rawImage struct {
	ID           *int64 `json:"id"`
	FileName     string `json:"file_name"`
	Width        *int   `json:"width"`
	Height       *int   `json:"height"`
	License      int64  `json:"license"`
	CocoURL      string `json:"coco_url"`
	DateCaptured string `json:"date_captured"`
}

type rawCategory struct {
	ID            *int64 `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

type rawAnnotation struct {
	ID           *int64            `json:"id"`
	ImageID      *int64            `json:"image_id"`
	CategoryID   *int64            `json:"category_id"`
	BBox         []float64         `json:"bbox"`
	Segmentation gojson.RawMessage `json:"segmentation"`
	Area         *float64          `json:"area"`
	IsCrowd      crowdFlag         `json:"iscrowd"`
	Score        *float64          `json:"score"`
}

type rawRLE struct {
	Counts gojson.RawMessage `json:"counts"`
	Size   []int             `json:"size"`
}

// crowdFlag accepts both the integer (0/1) and boolean spellings of iscrowd.
type crowdFlag bool

func (f *crowdFlag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "0", "false", "null":
		*f = false
	case "1", "true":
		*f = true
	default:
		return errors.Errorf("iscrowd must be 0 or 1, got %s", data)
	}
	return nil
}

func (img rawImage) toImage(path string) (*Image, error) {
	if img.ID == nil {
		return nil, parseErrorf(path, "missing id")
	}
	if *img.ID < 0 {
		return nil, parseErrorf(path, "negative id %d", *img.ID)
	}
	if img.Width == nil || img.Height == nil {
		return nil, parseErrorf(path, "image %d: missing width or height", *img.ID)
	}
	if *img.Width < 0 || *img.Height < 0 {
		return nil, parseErrorf(path, "image %d: negative size %dx%d", *img.ID, *img.Width, *img.Height)
	}
	return &Image{
		ID:           *img.ID,
		FileName:     img.FileName,
		Width:        *img.Width,
		Height:       *img.Height,
		License:      img.License,
		CocoURL:      img.CocoURL,
		DateCaptured: img.DateCaptured,
	}, nil
}

func (c rawCategory) toCategory(path string) (*Category, error) {
	if c.ID == nil {
		return nil, parseErrorf(path, "missing id")
	}
	if *c.ID < 0 {
		return nil, parseErrorf(path, "negative id %d", *c.ID)
	}
	return &Category{ID: *c.ID, Name: c.Name, Supercategory: c.Supercategory}, nil
}

// toAnnotation converts the raw record. requireID is false for detection
// results, whose ids are assigned by the loader.
func (a rawAnnotation) toAnnotation(path string, requireID bool) (*Annotation, error) {
	ann := &Annotation{IsCrowd: bool(a.IsCrowd), Area: a.Area, Score: a.Score}
	if a.ID != nil {
		ann.ID = *a.ID
	} else if requireID {
		return nil, parseErrorf(path, "missing id")
	}
	if ann.ID < 0 {
		return nil, parseErrorf(path, "negative id %d", ann.ID)
	}
	if a.ImageID == nil || a.CategoryID == nil {
		return nil, parseErrorf(path, "annotation %d: missing image_id or category_id", ann.ID)
	}
	ann.ImageID, ann.CategoryID = *a.ImageID, *a.CategoryID

	switch len(a.BBox) {
	case 0:
	case 4:
		ann.BBox = &BBox{X: a.BBox[0], Y: a.BBox[1], Width: a.BBox[2], Height: a.BBox[3]}
	default:
		return nil, parseErrorf(path+".bbox", "expected 4 values, got %d", len(a.BBox))
	}

	seg, err := parseSegmentation(a.Segmentation, path+".segmentation")
	if err != nil {
		return nil, err
	}
	ann.Segmentation = seg
	return ann, nil
}

// parseSegmentation decides the segmentation variant once. Polygon structure
// is validated here; RLE counts are only checked for syntax, their sum is
// checked when the mask is decoded.
func parseSegmentation(raw []byte, path string) (Segmentation, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return Segmentation{Kind: SegmentationNone}, nil
	}

	switch raw[0] {
	case '[':
		var polys [][]float64
		if err := gojson.Unmarshal(raw, &polys); err != nil {
			return Segmentation{}, &ParseError{Path: path, Err: err}
		}
		if len(polys) == 0 {
			return Segmentation{Kind: SegmentationNone}, nil
		}
		if err := mask.ValidatePolygons(polys); err != nil {
			return Segmentation{}, &ParseError{Path: path, Err: err}
		}
		return Segmentation{Kind: SegmentationPolygon, Polygons: polys}, nil

	case '{':
		var r rawRLE
		if err := gojson.Unmarshal(raw, &r); err != nil {
			return Segmentation{}, &ParseError{Path: path, Err: err}
		}
		if len(r.Size) != 2 || r.Size[0] < 0 || r.Size[1] < 0 {
			return Segmentation{}, &ParseError{
				Path: path + ".size",
				Err:  errors.Wrapf(mask.ErrMalformedMask, "size must be [height, width], got %v", r.Size),
			}
		}
		h, w := r.Size[0], r.Size[1]
		counts := bytes.TrimSpace(r.Counts)
		if len(counts) > 0 && counts[0] == '"' {
			var s string
			if err := gojson.Unmarshal(counts, &s); err != nil {
				return Segmentation{}, &ParseError{Path: path + ".counts", Err: err}
			}
			rle, err := mask.DecodeString(s, h, w)
			if err != nil {
				return Segmentation{}, &ParseError{Path: path + ".counts", Err: err}
			}
			return Segmentation{Kind: SegmentationRLE, RLE: rle, Compressed: true}, nil
		}
		var cs []uint32
		if err := gojson.Unmarshal(counts, &cs); err != nil {
			return Segmentation{}, &ParseError{Path: path + ".counts", Err: err}
		}
		return Segmentation{Kind: SegmentationRLE, RLE: mask.RLE{Height: h, Width: w, Counts: cs}}, nil

	default:
		return Segmentation{}, parseErrorf(path, "unexpected segmentation %s", truncate(raw, 32))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s...", b[:n])
}
