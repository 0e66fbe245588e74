package coco

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	gojson "github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-coco/mask"
)

// Index is the read-only query structure over one annotation document.
//
// All maps are built during Load; no method mutates the Index afterwards, so
// it is safe for concurrent use.
type Index struct {
	images      []*Image
	categories  []*Category
	annotations []*Annotation

	imageByID      map[int64]*Image
	categoryByID   map[int64]*Category
	annotationByID map[int64]*Annotation

	// Reverse maps keep load order.
	annsByImage    map[int64][]*Annotation
	annsByCategory map[int64][]*Annotation

	// Category name lookups, built like a class-name index.
	catIDsByName  map[string][]int64
	catIDsBySuper map[string][]int64

	// Bitmaps over annotation load positions, for filtered queries.
	posByImage    map[int64]*roaring.Bitmap
	posByCategory map[int64]*roaring.Bitmap
	crowd         *roaring.Bitmap
	// Bitmaps over image load positions, per category.
	imgPosByCategory map[int64]*roaring.Bitmap
}

// Load parses an annotation document and builds the Index.
//
// Loading is all-or-nothing: a structural problem yields an error matching
// ErrParse, an annotation referencing an unknown image or category yields
// ErrDanglingReference, and no Index is returned in either case.
//
// Arguments:
//   - data: The raw JSON document.
//
// Returns:
//   - *Index: The ready index.
//   - error: ErrParse or ErrDanglingReference.
//
// Example:
//
// ```go
//
//	idx, err := coco.Load(data)
//	if err != nil {
//	    log.Fatalf("failed to load annotations: %v", err)
//	}
//	anns, err := idx.AnnotationsForImage(1)
//
// ```
func Load(data []byte) (*Index, error) {
	var doc rawDocument
	if err := gojson.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}

	images := make([]*Image, 0, len(doc.Images))
	for i, raw := range doc.Images {
		img, err := raw.toImage(fmt.Sprintf("images[%d]", i))
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	categories := make([]*Category, 0, len(doc.Categories))
	for i, raw := range doc.Categories {
		cat, err := raw.toCategory(fmt.Sprintf("categories[%d]", i))
		if err != nil {
			return nil, err
		}
		categories = append(categories, cat)
	}

	annotations := make([]*Annotation, 0, len(doc.Annotations))
	for i, raw := range doc.Annotations {
		ann, err := raw.toAnnotation(fmt.Sprintf("annotations[%d]", i), true)
		if err != nil {
			return nil, err
		}
		annotations = append(annotations, ann)
	}

	return build(images, categories, annotations)
}

// build validates uniqueness and references and constructs every lookup.
func build(images []*Image, categories []*Category, annotations []*Annotation) (*Index, error) {
	idx := &Index{
		images:           images,
		categories:       categories,
		annotations:      annotations,
		imageByID:        make(map[int64]*Image, len(images)),
		categoryByID:     make(map[int64]*Category, len(categories)),
		annotationByID:   make(map[int64]*Annotation, len(annotations)),
		annsByImage:      make(map[int64][]*Annotation, len(images)),
		annsByCategory:   make(map[int64][]*Annotation, len(categories)),
		catIDsByName:     make(map[string][]int64, len(categories)),
		catIDsBySuper:    make(map[string][]int64),
		posByImage:       make(map[int64]*roaring.Bitmap, len(images)),
		posByCategory:    make(map[int64]*roaring.Bitmap, len(categories)),
		crowd:            roaring.New(),
		imgPosByCategory: make(map[int64]*roaring.Bitmap, len(categories)),
	}

	imagePos := make(map[int64]uint32, len(images))
	for i, img := range images {
		if _, dup := idx.imageByID[img.ID]; dup {
			return nil, parseErrorf(fmt.Sprintf("images[%d]", i), "duplicate image id %d", img.ID)
		}
		idx.imageByID[img.ID] = img
		idx.annsByImage[img.ID] = []*Annotation{}
		idx.posByImage[img.ID] = roaring.New()
		imagePos[img.ID] = uint32(i)
	}

	for i, cat := range categories {
		if _, dup := idx.categoryByID[cat.ID]; dup {
			return nil, parseErrorf(fmt.Sprintf("categories[%d]", i), "duplicate category id %d", cat.ID)
		}
		idx.categoryByID[cat.ID] = cat
		idx.annsByCategory[cat.ID] = []*Annotation{}
		idx.posByCategory[cat.ID] = roaring.New()
		idx.imgPosByCategory[cat.ID] = roaring.New()
		idx.catIDsByName[cat.Name] = append(idx.catIDsByName[cat.Name], cat.ID)
		if cat.Supercategory != "" {
			idx.catIDsBySuper[cat.Supercategory] = append(idx.catIDsBySuper[cat.Supercategory], cat.ID)
		}
	}

	for i, ann := range annotations {
		if _, dup := idx.annotationByID[ann.ID]; dup {
			return nil, parseErrorf(fmt.Sprintf("annotations[%d]", i), "duplicate annotation id %d", ann.ID)
		}
		if _, ok := idx.imageByID[ann.ImageID]; !ok {
			return nil, errors.Wrapf(ErrDanglingReference, "annotation %d: image_id %d", ann.ID, ann.ImageID)
		}
		if _, ok := idx.categoryByID[ann.CategoryID]; !ok {
			return nil, errors.Wrapf(ErrDanglingReference, "annotation %d: category_id %d", ann.ID, ann.CategoryID)
		}

		pos := uint32(i)
		idx.annotationByID[ann.ID] = ann
		idx.annsByImage[ann.ImageID] = append(idx.annsByImage[ann.ImageID], ann)
		idx.annsByCategory[ann.CategoryID] = append(idx.annsByCategory[ann.CategoryID], ann)
		idx.posByImage[ann.ImageID].Add(pos)
		idx.posByCategory[ann.CategoryID].Add(pos)
		idx.imgPosByCategory[ann.CategoryID].Add(imagePos[ann.ImageID])
		if ann.IsCrowd {
			idx.crowd.Add(pos)
		}
	}

	for _, b := range idx.posByImage {
		b.RunOptimize()
	}
	for _, b := range idx.posByCategory {
		b.RunOptimize()
	}
	return idx, nil
}

// Image returns the image with the given id.
func (idx *Index) Image(id int64) (*Image, error) {
	img, ok := idx.imageByID[id]
	if !ok {
		return nil, &NotFoundError{Kind: "image", ID: id}
	}
	return img, nil
}

// Category returns the category with the given id.
func (idx *Index) Category(id int64) (*Category, error) {
	cat, ok := idx.categoryByID[id]
	if !ok {
		return nil, &NotFoundError{Kind: "category", ID: id}
	}
	return cat, nil
}

// Annotation returns the annotation with the given id.
func (idx *Index) Annotation(id int64) (*Annotation, error) {
	ann, ok := idx.annotationByID[id]
	if !ok {
		return nil, &NotFoundError{Kind: "annotation", ID: id}
	}
	return ann, nil
}

// Images returns all images in load order. The returned slice is a copy.
func (idx *Index) Images() []*Image { return slices.Clone(idx.images) }

// Categories returns all categories in load order. The returned slice is a copy.
func (idx *Index) Categories() []*Category { return slices.Clone(idx.categories) }

// Annotations returns all annotations in load order. The returned slice is a copy.
func (idx *Index) Annotations() []*Annotation { return slices.Clone(idx.annotations) }

// AnnotationsForImage returns the annotations of an image in load order.
//
// An unknown image id is an error matching ErrNotFound; a known image without
// annotations yields an empty, non-nil slice.
func (idx *Index) AnnotationsForImage(imageID int64) ([]*Annotation, error) {
	anns, ok := idx.annsByImage[imageID]
	if !ok {
		return nil, &NotFoundError{Kind: "image", ID: imageID}
	}
	return slices.Clone(anns), nil
}

// AnnotationsForCategory returns the annotations of a category in load order,
// with the same not-found contract as AnnotationsForImage.
func (idx *Index) AnnotationsForCategory(categoryID int64) ([]*Annotation, error) {
	anns, ok := idx.annsByCategory[categoryID]
	if !ok {
		return nil, &NotFoundError{Kind: "category", ID: categoryID}
	}
	return slices.Clone(anns), nil
}

// CategoryIDs returns the ids of categories matching any of names and any of
// supercategories, in load order. An empty filter matches everything.
func (idx *Index) CategoryIDs(names, supercategories []string) []int64 {
	match := func(lookup map[string][]int64, keys []string) map[int64]bool {
		if len(keys) == 0 {
			return nil
		}
		set := make(map[int64]bool)
		for _, k := range keys {
			for _, id := range lookup[k] {
				set[id] = true
			}
		}
		return set
	}
	byName := match(idx.catIDsByName, names)
	bySuper := match(idx.catIDsBySuper, supercategories)

	ids := make([]int64, 0, len(idx.categories))
	for _, cat := range idx.categories {
		if byName != nil && !byName[cat.ID] {
			continue
		}
		if bySuper != nil && !bySuper[cat.ID] {
			continue
		}
		ids = append(ids, cat.ID)
	}
	return ids
}

// Stats counts the indexed entities.
func (idx *Index) Stats() Stats {
	s := Stats{
		Images:      len(idx.images),
		Categories:  len(idx.categories),
		Annotations: len(idx.annotations),
		Crowd:       int(idx.crowd.GetCardinality()),
	}
	for _, ann := range idx.annotations {
		switch ann.Segmentation.Kind {
		case SegmentationPolygon:
			s.Polygons++
		case SegmentationRLE:
			s.RLEs++
		}
	}
	return s
}

// Mask converts an annotation's segmentation to run-length form, sized to its
// image. Nothing is cached; every call builds a fresh RLE.
//
// Polygons are rasterized, RLE segmentation is copied, and an annotation with
// no segmentation is rasterized from its bbox (or is empty without one).
//
// Arguments:
//   - ann: An annotation owned by this Index.
//
// Returns:
//   - mask.RLE: The mask, Height x Width of the owning image.
//   - error: ErrNotFound for a foreign annotation, mask.ErrShapeMismatch when
//     a stored RLE disagrees with the image size, or a rasterizer error.
func (idx *Index) Mask(ann *Annotation) (mask.RLE, error) {
	img, ok := idx.imageByID[ann.ImageID]
	if !ok {
		return mask.RLE{}, &NotFoundError{Kind: "image", ID: ann.ImageID}
	}

	seg := ann.Segmentation
	switch seg.Kind {
	case SegmentationRLE:
		if seg.RLE.Height != img.Height || seg.RLE.Width != img.Width {
			return mask.RLE{}, errors.Wrapf(mask.ErrShapeMismatch,
				"annotation %d: mask [%d, %d], image %d is [%d, %d]",
				ann.ID, seg.RLE.Height, seg.RLE.Width, img.ID, img.Height, img.Width)
		}
		return mask.RLE{Height: seg.RLE.Height, Width: seg.RLE.Width, Counts: slices.Clone(seg.RLE.Counts)}, nil
	case SegmentationPolygon:
		rle, err := mask.FromPolygons(seg.Polygons, img.Height, img.Width)
		if err != nil {
			return mask.RLE{}, errors.WithMessagef(err, "annotation %d", ann.ID)
		}
		return rle, nil
	default:
		if ann.BBox != nil {
			return mask.FromBBox(ann.BBox.X, ann.BBox.Y, ann.BBox.Width, ann.BBox.Height, img.Height, img.Width)
		}
		return mask.RLE{
			Height: img.Height,
			Width:  img.Width,
			Counts: []uint32{uint32(img.Height * img.Width)},
		}, nil
	}
}

// BBox resolves an annotation's box. A stored bbox is authoritative; when the
// document omits it, the box is derived from the mask.
func (idx *Index) BBox(ann *Annotation) (BBox, error) {
	if ann.BBox != nil {
		return *ann.BBox, nil
	}
	rle, err := idx.Mask(ann)
	if err != nil {
		return BBox{}, err
	}
	b := mask.ToBBox(rle)
	return BBox{X: b[0], Y: b[1], Width: b[2], Height: b[3]}, nil
}

// Area resolves an annotation's area. A stored area is authoritative; when the
// document omits it, the area is the mask's foreground pixel count.
func (idx *Index) Area(ann *Annotation) (float64, error) {
	if ann.Area != nil {
		return *ann.Area, nil
	}
	rle, err := idx.Mask(ann)
	if err != nil {
		return 0, err
	}
	if err := rle.Valid(); err != nil {
		return 0, errors.WithMessagef(err, "annotation %d", ann.ID)
	}
	return float64(mask.Area(rle)), nil
}
