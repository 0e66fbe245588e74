package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIoU_Correctness validates the IoU implementation against known test cases
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Rect
		r2       Rect
		expected float32
	}{
		{"Identical rectangles", Rect{0, 0, 100, 100}, Rect{0, 0, 100, 100}, 1.0},
		{"No overlap", Rect{0, 0, 100, 100}, Rect{200, 200, 300, 300}, 0.0},
		{"Touching edges", Rect{0, 0, 100, 100}, Rect{100, 0, 200, 100}, 0.0},
		// intersection=2500, union=10000+10000-2500=17500
		{"Half overlap", Rect{0, 0, 100, 100}, Rect{50, 50, 150, 150}, 0.142857},
		// intersection=100, union=19900
		{"Small overlap", Rect{0, 0, 100, 100}, Rect{90, 90, 190, 190}, 0.005025},
		{"One inside other", Rect{0, 0, 100, 100}, Rect{25, 25, 75, 75}, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.InDelta(t, tt.expected, result, 0.001)

			// IoU(A, B) == IoU(B, A)
			assert.InDelta(t, result, CalculateIoU(tt.r2, tt.r1), 1e-6)
		})
	}
}

// TestIoU_vs_ImageRectangle compares our implementation against image.Rectangle
func TestIoU_vs_ImageRectangle(t *testing.T) {
	testCases := []struct {
		name string
		r1   Rect
		r2   Rect
	}{
		{"No overlap", Rect{0, 0, 100, 100}, Rect{200, 200, 300, 300}},
		{"Partial overlap", Rect{0, 0, 100, 100}, Rect{50, 50, 150, 150}},
		{"Full overlap", Rect{50, 50, 150, 150}, Rect{50, 50, 150, 150}},
		{"One inside other", Rect{0, 0, 100, 100}, Rect{25, 25, 75, 75}},
		{"Large boxes", Rect{0, 0, 1920, 1080}, Rect{960, 540, 1920, 1080}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateIoU(tc.r1, tc.r2)
			want := imageRectangleIoU(tc.r1.ToImageRect(), tc.r2.ToImageRect())
			assert.InDelta(t, want, got, 0.0001)
		})
	}
}

// imageRectangleIoU implements IoU using Go's standard library image.Rectangle
func imageRectangleIoU(r1, r2 image.Rectangle) float32 {
	intersect := r1.Intersect(r2)
	if intersect.Empty() {
		return 0.0
	}
	intersectArea := intersect.Dx() * intersect.Dy()
	union := r1.Dx()*r1.Dy() + r2.Dx()*r2.Dy() - intersectArea
	return float32(intersectArea) / float32(union)
}

// TestIoU_EdgeCases tests edge cases and boundary conditions
func TestIoU_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		r1   Rect
		r2   Rect
	}{
		{"Zero area rectangle 1", Rect{0, 0, 0, 0}, Rect{0, 0, 100, 100}},
		{"Zero area rectangle 2", Rect{0, 0, 100, 100}, Rect{50, 50, 50, 50}},
		{"Both zero area", Rect{0, 0, 0, 0}, Rect{10, 10, 10, 10}},
		{"Negative coordinates", Rect{-100, -100, 0, 0}, Rect{-50, -50, 50, 50}},
		{"Single pixel", Rect{0, 0, 1, 1}, Rect{0, 0, 1, 1}},
		{"Very large coordinates", Rect{0, 0, 999999, 999999}, Rect{500000, 500000, 999999, 999999}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range []float32{CalculateIoU(tt.r1, tt.r2), CalculateIoU(tt.r2, tt.r1)} {
				assert.GreaterOrEqual(t, v, float32(0))
				assert.LessOrEqual(t, v, float32(1))
			}
		})
	}
}

func TestRectFromBBox(t *testing.T) {
	tests := []struct {
		name     string
		bbox     [4]float64
		expected Rect
	}{
		{"whole pixels", [4]float64{1, 2, 3, 4}, Rect{1, 2, 4, 6}},
		{"fractional snaps outwards", [4]float64{0.5, 1, 2, 2.2}, Rect{0, 1, 3, 4}},
		{"zero width", [4]float64{3.7, 2, 0, 5}, Rect{3, 2, 3, 2}},
		{"negative height", [4]float64{1, 1, 2, -1}, Rect{1, 1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RectFromBBox(tt.bbox[0], tt.bbox[1], tt.bbox[2], tt.bbox[3])
			assert.Equal(t, tt.expected, r)
		})
	}

	assert.True(t, RectFromBBox(0, 0, 0, 1).Empty())
	assert.Equal(t, 0, Rect{5, 5, 2, 2}.Area())
	assert.Equal(t, 12, RectFromBBox(1, 2, 3, 4).Area())
}

func BenchmarkCalculateIoU(b *testing.B) {
	cases := map[string][2]Rect{
		"NonOverlapping": {{0, 0, 100, 100}, {200, 200, 300, 300}},
		"FullOverlap":    {{50, 50, 150, 150}, {50, 50, 150, 150}},
		"PartialOverlap": {{0, 0, 100, 100}, {50, 50, 150, 150}},
	}
	for name, rs := range cases {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = CalculateIoU(rs[0], rs[1])
			}
		})
	}
}
