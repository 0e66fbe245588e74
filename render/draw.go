package render

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/nvr-ai/go-coco/images"
	"github.com/nvr-ai/go-coco/mask"
)

// drawBox outlines r with thickness nested one-pixel rings, growing outwards.
// Pixels outside dst are skipped.
func drawBox(dst *image.RGBA, r images.Rect, thickness int, col color.RGBA) {
	if r.Empty() {
		return
	}
	b := dst.Bounds()
	for i := 0; i < thickness; i++ {
		ring := images.Rect{X1: r.X1 - i, Y1: r.Y1 - i, X2: r.X2 + i, Y2: r.Y2 + i}
		for x := max(ring.X1, b.Min.X); x < min(ring.X2, b.Max.X); x++ {
			dst.SetRGBA(x, ring.Y1, col)
			dst.SetRGBA(x, ring.Y2-1, col)
		}
		for y := max(ring.Y1, b.Min.Y); y < min(ring.Y2, b.Max.Y); y++ {
			dst.SetRGBA(ring.X1, y, col)
			dst.SetRGBA(ring.X2-1, y, col)
		}
	}
}

// blendMask mixes col into every foreground pixel of m at opacity alpha.
// m must have the size of dst.
func blendMask(dst *image.RGBA, m *mask.Mask, col color.RGBA, alpha float64) {
	keep := 1 - alpha
	mix := func(c, v uint8) uint8 {
		return uint8(math.Round(keep*float64(c) + alpha*float64(v)))
	}
	for x := 0; x < m.Width; x++ {
		for y := 0; y < m.Height; y++ {
			if !m.At(x, y) {
				continue
			}
			off := dst.PixOffset(dst.Rect.Min.X+x, dst.Rect.Min.Y+y)
			p := dst.Pix[off : off+4 : off+4]
			p[0] = mix(p[0], col.R)
			p[1] = mix(p[1], col.G)
			p[2] = mix(p[2], col.B)
		}
	}
}

// drawLabel writes text on a col background above the box, or inside its top
// edge when there is no room above.
func drawLabel(dst *image.RGBA, box images.Rect, text string, col color.RGBA) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	top := box.Y1 - face.Height
	if top < dst.Bounds().Min.Y {
		top = box.Y1
	}
	bg := image.Rect(box.X1, top, box.X1+w, top+face.Height)
	xdraw.Draw(dst, bg, image.NewUniform(col), image.Point{}, xdraw.Src)

	d := font.Drawer{
		Dst:  dst,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P(bg.Min.X, bg.Min.Y+face.Ascent),
	}
	d.DrawString(text)
}
