package coco

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-coco/mask"
)

// sampleDocument is a small document exercising every segmentation variant.
//
// Annotation 10 is a crowd RLE covering column 1 with a stored bbox that does
// not match its mask; 11 is a polygon triangle with neither bbox nor area; 12
// has only a bbox and a stored area that disagrees with it.
const sampleDocument = `{
  "info": {"description": "sample"},
  "images": [
    {"id": 1, "width": 4, "height": 4, "file_name": "a.jpg"},
    {"id": 2, "width": 6, "height": 6, "file_name": "b.jpg"},
    {"id": 3, "width": 4, "height": 4, "file_name": "c.jpg"}
  ],
  "categories": [
    {"id": 1, "name": "cat", "supercategory": "animal"},
    {"id": 2, "name": "dog", "supercategory": "animal"},
    {"id": 3, "name": "car", "supercategory": "vehicle"}
  ],
  "annotations": [
    {"id": 10, "image_id": 1, "category_id": 1, "bbox": [0, 0, 2, 2],
     "segmentation": {"counts": [4, 4, 8], "size": [4, 4]}, "iscrowd": 1},
    {"id": 11, "image_id": 1, "category_id": 2,
     "segmentation": [[0, 0, 4, 0, 0, 4]], "iscrowd": 0},
    {"id": 12, "image_id": 2, "category_id": 1, "bbox": [1, 1, 2, 3], "area": 100}
  ]
}`

func loadSample(t *testing.T) *Index {
	t.Helper()
	idx, err := Load([]byte(sampleDocument))
	require.NoError(t, err)
	return idx
}

func annotationIDs(anns []*Annotation) []int64 {
	ids := make([]int64, len(anns))
	for i, a := range anns {
		ids[i] = a.ID
	}
	return ids
}

// TestLoad_CrowdRLEScenario loads a single crowd RLE annotation and checks
// the image lookup and the decoded area.
func TestLoad_CrowdRLEScenario(t *testing.T) {
	idx, err := Load([]byte(`{
	  "images": [{"id": 1, "width": 4, "height": 4, "file_name": "a.jpg"}],
	  "categories": [{"id": 1, "name": "cat"}],
	  "annotations": [{"id": 10, "image_id": 1, "category_id": 1, "bbox": [0, 0, 2, 2],
	    "segmentation": {"counts": [4, 4, 8], "size": [4, 4]}, "iscrowd": 1}]
	}`))
	require.NoError(t, err)

	anns, err := idx.AnnotationsForImage(1)
	require.NoError(t, err)
	require.Len(t, anns, 1)
	assert.Equal(t, int64(10), anns[0].ID)
	assert.True(t, anns[0].IsCrowd)

	rle, err := idx.Mask(anns[0])
	require.NoError(t, err)
	m, err := mask.Decode(rle)
	require.NoError(t, err)
	assert.Equal(t, 8, m.Count())
	assert.Equal(t, uint64(8), mask.Area(rle))

	_, err = idx.Annotation(999)
	assert.ErrorIs(t, err, ErrNotFound)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "annotation", nf.Kind)
	assert.Equal(t, int64(999), nf.ID)
}

// TestLoad_CountsSumMismatch checks that a short RLE loads but fails to decode.
func TestLoad_CountsSumMismatch(t *testing.T) {
	idx, err := Load([]byte(`{
	  "images": [{"id": 1, "width": 4, "height": 4}],
	  "categories": [{"id": 1, "name": "cat"}],
	  "annotations": [{"id": 1, "image_id": 1, "category_id": 1,
	    "segmentation": {"counts": [4, 4, 7], "size": [4, 4]}}]
	}`))
	require.NoError(t, err)

	ann, err := idx.Annotation(1)
	require.NoError(t, err)
	rle, err := idx.Mask(ann)
	require.NoError(t, err)

	_, err = mask.Decode(rle)
	assert.ErrorIs(t, err, mask.ErrMalformedMask)
	_, err = idx.Area(ann)
	assert.ErrorIs(t, err, mask.ErrMalformedMask)
}

func TestLoad_Completeness(t *testing.T) {
	idx := loadSample(t)

	assert.Equal(t, Stats{Images: 3, Categories: 3, Annotations: 3, Crowd: 1, Polygons: 1, RLEs: 1}, idx.Stats())

	img, err := idx.Image(2)
	require.NoError(t, err)
	assert.Equal(t, "b.jpg", img.FileName)
	assert.Equal(t, 6, img.Width)

	cat, err := idx.Category(3)
	require.NoError(t, err)
	assert.Equal(t, "car", cat.Name)
	assert.Equal(t, "vehicle", cat.Supercategory)

	for _, ann := range idx.Annotations() {
		got, err := idx.Annotation(ann.ID)
		require.NoError(t, err)
		assert.Same(t, ann, got)
		_, err = idx.Image(ann.ImageID)
		assert.NoError(t, err)
		_, err = idx.Category(ann.CategoryID)
		assert.NoError(t, err)
	}

	ann, err := idx.Annotation(11)
	require.NoError(t, err)
	assert.Equal(t, SegmentationPolygon, ann.Segmentation.Kind)
	assert.Nil(t, ann.BBox)
	assert.Nil(t, ann.Area)

	ann, err = idx.Annotation(12)
	require.NoError(t, err)
	assert.Equal(t, SegmentationNone, ann.Segmentation.Kind)
}

func TestIndex_ReverseLookups(t *testing.T) {
	idx := loadSample(t)

	anns, err := idx.AnnotationsForImage(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, annotationIDs(anns))

	anns, err = idx.AnnotationsForCategory(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 12}, annotationIDs(anns))

	// Known but empty differs from unknown.
	anns, err = idx.AnnotationsForImage(3)
	require.NoError(t, err)
	assert.NotNil(t, anns)
	assert.Empty(t, anns)

	anns, err = idx.AnnotationsForCategory(3)
	require.NoError(t, err)
	assert.Empty(t, anns)

	_, err = idx.AnnotationsForImage(42)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = idx.AnnotationsForCategory(42)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = idx.Image(42)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = idx.Category(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndex_ReturnedSlicesAreCopies(t *testing.T) {
	idx := loadSample(t)

	anns, err := idx.AnnotationsForImage(1)
	require.NoError(t, err)
	anns[0] = nil

	again, err := idx.AnnotationsForImage(1)
	require.NoError(t, err)
	assert.NotNil(t, again[0])

	imgs := idx.Images()
	imgs[0] = nil
	assert.NotNil(t, idx.Images()[0])
}

func TestLoad_DanglingReference(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown image",
			doc: `{"images": [{"id": 1, "width": 4, "height": 4}], "categories": [{"id": 1, "name": "cat"}],
			  "annotations": [{"id": 1, "image_id": 5, "category_id": 1}]}`,
		},
		{
			name: "unknown category",
			doc: `{"images": [{"id": 1, "width": 4, "height": 4}], "categories": [{"id": 1, "name": "cat"}],
			  "annotations": [{"id": 1, "image_id": 1, "category_id": 7}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := Load([]byte(tt.doc))
			assert.Nil(t, idx)
			assert.ErrorIs(t, err, ErrDanglingReference)
			assert.NotErrorIs(t, err, ErrParse)
		})
	}
}

func TestLoad_ParseErrors(t *testing.T) {
	const head = `{"images": [{"id": 1, "width": 4, "height": 4}], "categories": [{"id": 1, "name": "cat"}], "annotations": [`
	tests := []struct {
		name  string
		doc   string
		cause error
	}{
		{name: "not json", doc: `{"images": [`},
		{name: "images not a list", doc: `{"images": {"id": 1}}`},
		{name: "image without id", doc: `{"images": [{"width": 4, "height": 4}]}`},
		{name: "image without size", doc: `{"images": [{"id": 1}]}`},
		{name: "negative image size", doc: `{"images": [{"id": 1, "width": -4, "height": 4}]}`},
		{name: "duplicate image id", doc: `{"images": [{"id": 1, "width": 4, "height": 4}, {"id": 1, "width": 2, "height": 2}]}`},
		{name: "duplicate category id", doc: `{"categories": [{"id": 1, "name": "a"}, {"id": 1, "name": "b"}]}`},
		{name: "annotation without id", doc: head + `{"image_id": 1, "category_id": 1}]}`},
		{name: "duplicate annotation id", doc: head + `{"id": 1, "image_id": 1, "category_id": 1}, {"id": 1, "image_id": 1, "category_id": 1}]}`},
		{name: "short bbox", doc: head + `{"id": 1, "image_id": 1, "category_id": 1, "bbox": [0, 0, 2]}]}`},
		{name: "bad iscrowd", doc: head + `{"id": 1, "image_id": 1, "category_id": 1, "iscrowd": 2}]}`},
		{
			name:  "odd polygon",
			doc:   head + `{"id": 1, "image_id": 1, "category_id": 1, "segmentation": [[0, 0, 1, 1, 2]]}]}`,
			cause: mask.ErrInvalidPolygon,
		},
		{
			name:  "two point polygon",
			doc:   head + `{"id": 1, "image_id": 1, "category_id": 1, "segmentation": [[0, 0, 1, 1]]}]}`,
			cause: mask.ErrInvalidPolygon,
		},
		{
			name:  "rle size of one value",
			doc:   head + `{"id": 1, "image_id": 1, "category_id": 1, "segmentation": {"counts": [16], "size": [4]}}]}`,
			cause: mask.ErrMalformedMask,
		},
		{
			name:  "bad compressed counts",
			doc:   head + `{"id": 1, "image_id": 1, "category_id": 1, "segmentation": {"counts": "4\u007f", "size": [4, 4]}}]}`,
			cause: mask.ErrMalformedMask,
		},
		{name: "segmentation scalar", doc: head + `{"id": 1, "image_id": 1, "category_id": 1, "segmentation": 3}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := Load([]byte(tt.doc))
			assert.Nil(t, idx)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

func TestLoad_SegmentationVariants(t *testing.T) {
	idx, err := Load([]byte(`{
	  "images": [{"id": 1, "width": 4, "height": 4}],
	  "categories": [{"id": 1, "name": "cat"}],
	  "annotations": [
	    {"id": 1, "image_id": 1, "category_id": 1, "segmentation": {"counts": "448", "size": [4, 4]}},
	    {"id": 2, "image_id": 1, "category_id": 1, "segmentation": []},
	    {"id": 3, "image_id": 1, "category_id": 1, "segmentation": null, "iscrowd": true},
	    {"id": 4, "image_id": 1, "category_id": 1, "segmentation": [[1, 1, 3, 1, 3, 3, 1, 3, 1, 1]]}
	  ]
	}`))
	require.NoError(t, err)

	ann, err := idx.Annotation(1)
	require.NoError(t, err)
	assert.Equal(t, SegmentationRLE, ann.Segmentation.Kind)
	assert.True(t, ann.Segmentation.Compressed)
	assert.Equal(t, []uint32{4, 4, 8}, ann.Segmentation.RLE.Counts)

	for _, id := range []int64{2, 3} {
		ann, err = idx.Annotation(id)
		require.NoError(t, err)
		assert.Equal(t, SegmentationNone, ann.Segmentation.Kind, "annotation %d", id)
	}
	ann, err = idx.Annotation(3)
	require.NoError(t, err)
	assert.True(t, ann.IsCrowd)

	ann, err = idx.Annotation(4)
	require.NoError(t, err)
	rle, err := idx.Mask(ann)
	require.NoError(t, err)
	assert.Equal(t, []uint32{5, 2, 2, 2, 5}, rle.Counts)
}

func TestIndex_Mask(t *testing.T) {
	idx := loadSample(t)

	tests := []struct {
		id       int64
		size     [2]int
		counts   []uint32
		area     uint64
	}{
		{id: 10, size: [2]int{4, 4}, counts: []uint32{4, 4, 8}, area: 8},
		{id: 11, size: [2]int{4, 4}, counts: []uint32{0, 3, 1, 2, 2, 1, 7}, area: 6},
		{id: 12, size: [2]int{6, 6}, area: 6},
	}
	for _, tt := range tests {
		ann, err := idx.Annotation(tt.id)
		require.NoError(t, err)
		rle, err := idx.Mask(ann)
		require.NoError(t, err)
		require.NoError(t, rle.Valid())
		assert.Equal(t, tt.size, rle.Size(), "annotation %d", tt.id)
		if tt.counts != nil {
			assert.Equal(t, tt.counts, rle.Counts, "annotation %d", tt.id)
		}
		assert.Equal(t, tt.area, mask.Area(rle), "annotation %d", tt.id)
	}

	// The stored counts are not shared with the caller.
	ann, err := idx.Annotation(10)
	require.NoError(t, err)
	rle, err := idx.Mask(ann)
	require.NoError(t, err)
	rle.Counts[0] = 0
	assert.Equal(t, uint32(4), ann.Segmentation.RLE.Counts[0])
}

func TestIndex_MaskShapeMismatch(t *testing.T) {
	idx, err := Load([]byte(`{
	  "images": [{"id": 1, "width": 4, "height": 4}],
	  "categories": [{"id": 1, "name": "cat"}],
	  "annotations": [{"id": 1, "image_id": 1, "category_id": 1,
	    "segmentation": {"counts": [3, 3, 3], "size": [3, 3]}}]
	}`))
	require.NoError(t, err)

	ann, err := idx.Annotation(1)
	require.NoError(t, err)
	_, err = idx.Mask(ann)
	assert.ErrorIs(t, err, mask.ErrShapeMismatch)
}

func TestIndex_EmptyMaskWithoutGeometry(t *testing.T) {
	idx, err := Load([]byte(`{
	  "images": [{"id": 1, "width": 3, "height": 2}],
	  "categories": [{"id": 1, "name": "cat"}],
	  "annotations": [{"id": 1, "image_id": 1, "category_id": 1}]
	}`))
	require.NoError(t, err)

	ann, err := idx.Annotation(1)
	require.NoError(t, err)
	rle, err := idx.Mask(ann)
	require.NoError(t, err)
	assert.Equal(t, []uint32{6}, rle.Counts)

	box, err := idx.BBox(ann)
	require.NoError(t, err)
	assert.Equal(t, BBox{}, box)
}

// TestIndex_BBoxAndArea covers both resolution paths: stored values win, and
// missing values are derived from the mask.
func TestIndex_BBoxAndArea(t *testing.T) {
	idx := loadSample(t)

	tests := []struct {
		name string
		id   int64
		box  BBox
		area float64
	}{
		{name: "stored bbox, derived area", id: 10, box: BBox{X: 0, Y: 0, Width: 2, Height: 2}, area: 8},
		{name: "derived bbox and area", id: 11, box: BBox{X: 0, Y: 0, Width: 3, Height: 3}, area: 6},
		{name: "stored bbox and area", id: 12, box: BBox{X: 1, Y: 1, Width: 2, Height: 3}, area: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ann, err := idx.Annotation(tt.id)
			require.NoError(t, err)

			box, err := idx.BBox(ann)
			require.NoError(t, err)
			assert.Equal(t, tt.box, box)

			area, err := idx.Area(ann)
			require.NoError(t, err)
			assert.InDelta(t, tt.area, area, 1e-9)
		})
	}

	// The mask of annotation 10 disagrees with its stored box.
	ann, err := idx.Annotation(10)
	require.NoError(t, err)
	rle, err := idx.Mask(ann)
	require.NoError(t, err)
	assert.Equal(t, [4]float64{1, 0, 1, 4}, mask.ToBBox(rle))
}

func TestIndex_CategoryIDs(t *testing.T) {
	idx := loadSample(t)

	assert.Equal(t, []int64{1, 2, 3}, idx.CategoryIDs(nil, nil))
	assert.Equal(t, []int64{1, 3}, idx.CategoryIDs([]string{"car", "cat"}, nil))
	assert.Equal(t, []int64{1, 2}, idx.CategoryIDs(nil, []string{"animal"}))
	assert.Equal(t, []int64{1}, idx.CategoryIDs([]string{"cat", "car"}, []string{"animal"}))
	assert.Empty(t, idx.CategoryIDs([]string{"zebra"}, nil))
}

func BenchmarkLoad(b *testing.B) {
	data := []byte(sampleDocument)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Load(data); err != nil {
			b.Fatal(err)
		}
	}
}
