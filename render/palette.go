package render

import "image/color"

// palette is fixed at compile time; ColorFor indexes it by category id.
var palette = [...]color.RGBA{
	{R: 0, G: 255, B: 127, A: 255},   // spring green
	{R: 255, G: 105, B: 180, A: 255}, // hot pink
	{R: 255, G: 99, B: 71, A: 255},   // tomato
	{R: 255, G: 215, B: 0, A: 255},   // gold
	{R: 188, G: 143, B: 143, A: 255}, // rosy brown
	{R: 0, G: 191, B: 255, A: 255},   // deep sky blue
	{R: 143, G: 188, B: 143, A: 255}, // dark sea green
	{R: 238, G: 130, B: 238, A: 255}, // violet
	{R: 154, G: 205, B: 50, A: 255},  // yellow green
	{R: 205, G: 133, B: 63, A: 255},  // peru
	{R: 30, G: 144, B: 255, A: 255},  // dodger blue
	{R: 112, G: 128, B: 144, A: 255}, // slate gray
	{R: 127, G: 255, B: 212, A: 255}, // aquamarine
	{R: 51, G: 153, B: 255, A: 255},  // blue
	{R: 0, G: 255, B: 255, A: 255},   // cyan
	{R: 138, G: 43, B: 226, A: 255},  // blue violet
	{R: 165, G: 42, B: 42, A: 255},   // brown
	{R: 216, G: 191, B: 216, A: 255}, // thistle
	{R: 240, G: 255, B: 255, A: 255}, // azure
	{R: 95, G: 158, B: 160, A: 255},  // cadet blue
}

// ColorFor returns the drawing colour of a category. The same id always maps
// to the same colour.
func ColorFor(categoryID int64) color.RGBA {
	return palette[uint64(categoryID)%uint64(len(palette))]
}
