package coco

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Filter selects annotations. Empty fields do not constrain the result.
type Filter struct {
	// ImageIDs keeps annotations of any of these images.
	ImageIDs []int64 `json:"image_ids" yaml:"image_ids"`
	// CategoryIDs keeps annotations of any of these categories.
	CategoryIDs []int64 `json:"category_ids" yaml:"category_ids"`
	// AreaRange keeps annotations whose resolved area lies in [min, max].
	AreaRange *[2]float64 `json:"area_range" yaml:"area_range"`
	// IsCrowd keeps only crowd (true) or only non-crowd (false) annotations.
	IsCrowd *bool `json:"iscrowd" yaml:"iscrowd"`
}

// union ORs the bitmaps of the given keys. Unknown keys contribute nothing.
func union(lookup map[int64]*roaring.Bitmap, keys []int64) *roaring.Bitmap {
	bs := make([]*roaring.Bitmap, 0, len(keys))
	for _, k := range keys {
		if b, ok := lookup[k]; ok {
			bs = append(bs, b)
		}
	}
	if len(bs) == 0 {
		return roaring.New()
	}
	return roaring.FastOr(bs...)
}

// FindAnnotations returns the annotations matching every constraint of f, in
// load order. Image and category constraints are resolved on bitmaps built at
// load time; the area constraint uses Area, so annotations whose area cannot
// be resolved are left out.
func (idx *Index) FindAnnotations(f Filter) []*Annotation {
	var sel *roaring.Bitmap
	narrow := func(b *roaring.Bitmap) {
		if sel == nil {
			sel = b
			return
		}
		sel = roaring.And(sel, b)
	}

	if len(f.ImageIDs) > 0 {
		narrow(union(idx.posByImage, f.ImageIDs))
	}
	if len(f.CategoryIDs) > 0 {
		narrow(union(idx.posByCategory, f.CategoryIDs))
	}
	if f.IsCrowd != nil {
		if *f.IsCrowd {
			narrow(idx.crowd)
		} else {
			all := roaring.New()
			all.AddRange(0, uint64(len(idx.annotations)))
			narrow(roaring.AndNot(all, idx.crowd))
		}
	}

	keep := func(ann *Annotation) bool {
		if f.AreaRange == nil {
			return true
		}
		area, err := idx.Area(ann)
		return err == nil && area >= f.AreaRange[0] && area <= f.AreaRange[1]
	}

	out := make([]*Annotation, 0)
	if sel == nil {
		for _, ann := range idx.annotations {
			if keep(ann) {
				out = append(out, ann)
			}
		}
		return out
	}

	it := sel.Iterator()
	for it.HasNext() {
		if ann := idx.annotations[it.Next()]; keep(ann) {
			out = append(out, ann)
		}
	}
	return out
}

// ImageIDs returns the ids of images that contain at least one annotation of
// every given category, in load order. With no categories it returns every
// image id.
func (idx *Index) ImageIDs(categoryIDs []int64) []int64 {
	if len(categoryIDs) == 0 {
		ids := make([]int64, len(idx.images))
		for i, img := range idx.images {
			ids[i] = img.ID
		}
		return ids
	}

	bs := make([]*roaring.Bitmap, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		b, ok := idx.imgPosByCategory[id]
		if !ok {
			return []int64{}
		}
		bs = append(bs, b)
	}
	sel := roaring.FastAnd(bs...)

	ids := make([]int64, 0, sel.GetCardinality())
	it := sel.Iterator()
	for it.HasNext() {
		ids = append(ids, idx.images[it.Next()].ID)
	}
	return ids
}
