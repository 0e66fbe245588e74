// Package coco - COCO annotation documents and the read-only index built over them.
//
// An Index is produced once by Load (or LoadFile) and never changes afterwards,
// so a single *Index can be shared by any number of goroutines without locking.
// Entities handed out by the Index are owned by it and must be treated as
// read-only by callers.
package coco

import (
	"github.com/nvr-ai/go-coco/mask"
)

// Image is one entry of the document's images collection.
type Image struct {
	// ID is the unique, non-negative image id.
	ID int64 `json:"id" yaml:"id"`
	// FileName is the image file name relative to the image root.
	FileName string `json:"file_name" yaml:"file_name"`
	// Width is the image width in pixels.
	Width int `json:"width" yaml:"width"`
	// Height is the image height in pixels.
	Height int `json:"height" yaml:"height"`
	// License is the optional license id.
	License int64 `json:"license,omitempty" yaml:"license,omitempty"`
	// CocoURL is the optional source URL.
	CocoURL string `json:"coco_url,omitempty" yaml:"coco_url,omitempty"`
	// DateCaptured is the optional capture timestamp, kept verbatim.
	DateCaptured string `json:"date_captured,omitempty" yaml:"date_captured,omitempty"`
}

// Category is one entry of the document's categories collection.
type Category struct {
	// ID is the unique category id.
	ID int64 `json:"id" yaml:"id"`
	// Name is the human-readable label.
	Name string `json:"name" yaml:"name"`
	// Supercategory is the optional parent label.
	Supercategory string `json:"supercategory,omitempty" yaml:"supercategory,omitempty"`
}

// BBox is an axis-aligned box in pixel coordinates, stored as [x, y, w, h] in documents.
type BBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Array returns the box in document order.
func (b BBox) Array() [4]float64 {
	return [4]float64{b.X, b.Y, b.Width, b.Height}
}

// Area returns Width*Height.
func (b BBox) Area() float64 {
	return b.Width * b.Height
}

// SegmentationKind tags which variant a Segmentation holds.
type SegmentationKind int

const (
	// SegmentationNone means the annotation carries no segmentation.
	SegmentationNone SegmentationKind = iota
	// SegmentationPolygon means the segmentation is a list of polygons.
	SegmentationPolygon
	// SegmentationRLE means the segmentation is a run-length mask.
	SegmentationRLE
)

// String returns the kind name.
func (k SegmentationKind) String() string {
	switch k {
	case SegmentationPolygon:
		return "polygon"
	case SegmentationRLE:
		return "rle"
	default:
		return "none"
	}
}

// Segmentation is the closed variant decided once when the document is parsed.
type Segmentation struct {
	// Kind selects which of the fields below is meaningful.
	Kind SegmentationKind
	// Polygons holds flat x,y vertex lists when Kind is SegmentationPolygon.
	Polygons [][]float64
	// RLE holds the run-length mask when Kind is SegmentationRLE.
	RLE mask.RLE
	// Compressed records that the document stored the counts as a compressed string.
	Compressed bool
}

// Annotation is one entry of the document's annotations collection, or one
// detection result loaded against an Index.
type Annotation struct {
	// ID is the unique annotation id.
	ID int64
	// ImageID references the owning Image.
	ImageID int64
	// CategoryID references the Category.
	CategoryID int64
	// BBox is the stored box, nil when the document omits it.
	BBox *BBox
	// Segmentation is the parsed segmentation variant.
	Segmentation Segmentation
	// Area is the stored area, nil when the document omits it.
	Area *float64
	// IsCrowd marks crowd annotations (conventionally RLE).
	IsCrowd bool
	// Score is the detection confidence, set only for results.
	Score *float64
}

// Stats summarises the contents of an Index.
type Stats struct {
	Images      int `json:"images"`
	Categories  int `json:"categories"`
	Annotations int `json:"annotations"`
	Crowd       int `json:"crowd"`
	Polygons    int `json:"polygons"`
	RLEs        int `json:"rles"`
}
