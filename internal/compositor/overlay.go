package compositor

import (
	"image"
	"image/color"
	"image/draw"
)

var (
	overlayColor = color.RGBA{R: 255, G: 196, B: 0, A: 255}
	gripColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// DrawOverlay strokes an editing box and fills its corner handles onto a
// composited frame, in the same coordinate space the frame was rendered
// in. The caller decides when the overlay is visible.
func DrawOverlay(dst *image.RGBA, box Rect) {
	bounds := dst.Bounds()
	fill := func(r image.Rectangle, c color.RGBA) {
		draw.Draw(dst, r.Intersect(bounds), image.NewUniform(c), image.Point{}, draw.Src)
	}

	x0, y0 := int(box.X), int(box.Y)
	x1, y1 := int(box.X+box.W), int(box.Y+box.H)
	fill(image.Rect(x0, y0, x1, y0+1), overlayColor)
	fill(image.Rect(x0, y1-1, x1, y1), overlayColor)
	fill(image.Rect(x0, y0, x0+1, y1), overlayColor)
	fill(image.Rect(x1-1, y0, x1, y1), overlayColor)

	for _, h := range Handles(box) {
		if h.Kind == HandleMove {
			continue
		}
		r := image.Rect(int(h.Rect.X), int(h.Rect.Y), int(h.Rect.X+h.Rect.W), int(h.Rect.Y+h.Rect.H))
		fill(r, gripColor)
	}
}
