package mask

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// denseIoU is the reference implementation on decoded masks.
func denseIoU(a, b *Mask) float64 {
	var inter, union int
	for i := range a.Data {
		fa, fb := a.Data[i] != 0, b.Data[i] != 0
		if fa && fb {
			inter++
		}
		if fa || fb {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func TestIoU_Correctness(t *testing.T) {
	square := RLE{Height: 4, Width: 4, Counts: []uint32{5, 2, 2, 2, 5}}
	column1 := RLE{Height: 4, Width: 4, Counts: []uint32{4, 4, 8}}
	column3 := RLE{Height: 4, Width: 4, Counts: []uint32{12, 4}}
	empty := RLE{Height: 4, Width: 4, Counts: []uint32{16}}
	full := RLE{Height: 4, Width: 4, Counts: []uint32{0, 16}}

	tests := []struct {
		name     string
		a, b     RLE
		expected float64
	}{
		{"identical", square, square, 1.0},
		{"disjoint", column1, column3, 0.0},
		{"partial", square, column1, 2.0 / 6.0},
		{"contained", square, full, 4.0 / 16.0},
		{"both empty", empty, empty, 0.0},
		{"one empty", empty, square, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iou, err := IoU(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, iou, 1e-9)

			reverse, err := IoU(tt.b, tt.a)
			require.NoError(t, err)
			assert.InDelta(t, iou, reverse, 1e-12, "IoU must be symmetric")
		})
	}
}

func TestIoU_MatchesDenseReference(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 100; i++ {
		h, w := 1+rng.Intn(30), 1+rng.Intn(30)
		a := randomMask(rng, h, w, rng.Float64())
		b := randomMask(rng, h, w, rng.Float64())

		iou, err := IoU(Encode(a), Encode(b))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, iou, 0.0)
		assert.LessOrEqual(t, iou, 1.0)
		assert.InDelta(t, denseIoU(a, b), iou, 1e-12)
	}
}

func TestIoU_ShapeMismatch(t *testing.T) {
	a := RLE{Height: 4, Width: 4, Counts: []uint32{16}}
	b := RLE{Height: 2, Width: 8, Counts: []uint32{16}}
	_, err := IoU(a, b)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMerge(t *testing.T) {
	column1 := RLE{Height: 4, Width: 4, Counts: []uint32{4, 4, 8}}
	column2 := RLE{Height: 4, Width: 4, Counts: []uint32{8, 4, 4}}
	square := RLE{Height: 4, Width: 4, Counts: []uint32{5, 2, 2, 2, 5}}

	union, err := Merge([]RLE{column1, column2}, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{4, 8, 4}, union.Counts)

	inter, err := Merge([]RLE{square, column1}, false)
	require.NoError(t, err)
	assert.Equal(t, []uint32{5, 2, 9}, inter.Counts)

	single, err := Merge([]RLE{{Height: 2, Width: 2, Counts: []uint32{0, 0, 0, 4}}}, true)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 4}, single.Counts, "single input is returned in canonical form")
}

func TestMerge_Associative(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		h, w := 1+rng.Intn(20), 1+rng.Intn(20)
		a := Encode(randomMask(rng, h, w, 0.3))
		b := Encode(randomMask(rng, h, w, 0.3))
		c := Encode(randomMask(rng, h, w, 0.3))

		for _, union := range []bool{true, false} {
			all, err := Merge([]RLE{a, b, c}, union)
			require.NoError(t, err)
			ab, err := Merge([]RLE{a, b}, union)
			require.NoError(t, err)
			nested, err := Merge([]RLE{ab, c}, union)
			require.NoError(t, err)
			assert.True(t, all.Equal(nested), "merge(union=%v) must be associative", union)
		}
	}
}

func TestMerge_Errors(t *testing.T) {
	_, err := Merge(nil, true)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Merge([]RLE{
		{Height: 4, Width: 4, Counts: []uint32{16}},
		{Height: 4, Width: 3, Counts: []uint32{12}},
	}, true)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Merge([]RLE{{Height: 4, Width: 4, Counts: []uint32{15}}}, false)
	assert.ErrorIs(t, err, ErrMalformedMask)
}

func TestIoUMatrix_Crowd(t *testing.T) {
	square := RLE{Height: 4, Width: 4, Counts: []uint32{5, 2, 2, 2, 5}}
	full := RLE{Height: 4, Width: 4, Counts: []uint32{0, 16}}

	m, err := IoUMatrix([]RLE{square}, []RLE{full, full}, []bool{false, true})
	require.NoError(t, err)
	require.Len(t, m, 1)
	assert.InDelta(t, 0.25, m[0][0], 1e-9)
	assert.InDelta(t, 1.0, m[0][1], 1e-9, "crowd union is the detection area")

	_, err = IoUMatrix([]RLE{square}, []RLE{full}, []bool{true, false})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func BenchmarkIoU(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	x := Encode(randomMask(rng, 480, 640, 0.3))
	y := Encode(randomMask(rng, 480, 640, 0.3))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = IoU(x, y)
	}
}
