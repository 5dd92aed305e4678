package compositor

import "github.com/minawa/panelreel/internal/timeline"

// HandleKind identifies a manipulation handle on an editing overlay.
type HandleKind int

const (
	HandleNone HandleKind = iota
	HandleMove
	HandleNW
	HandleNE
	HandleSW
	HandleSE
)

// HandleSize is the edge length of a corner handle in canvas pixels.
const HandleSize = 12.0

// Rect is an axis-aligned canvas-space rectangle.
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Handle is one draggable rectangle of an editing overlay.
type Handle struct {
	Kind HandleKind
	Rect Rect
}

// TransformBox maps a clip's surface-space transform rectangle into canvas
// space through the current display scale. Rotation is ignored for handle
// placement, matching the axis-aligned selection box.
func TransformBox(tr timeline.Transform, scale float64) Rect {
	return Rect{
		X: (tr.CX - tr.W/2) * scale,
		Y: (tr.CY - tr.H/2) * scale,
		W: tr.W * scale,
		H: tr.H * scale,
	}
}

// CropBox maps a clip's bitmap-space crop rectangle into canvas space. The
// bitmap is assumed displayed at the clip's transform footprint, so crop
// coordinates scale by the ratio of transform size to native bitmap size,
// then by the display scale.
func CropBox(cr timeline.Crop, tr timeline.Transform, bitmapW, bitmapH float64, scale float64) Rect {
	if bitmapW <= 0 || bitmapH <= 0 {
		return Rect{}
	}
	rx := tr.W / bitmapW
	ry := tr.H / bitmapH
	left := tr.CX - tr.W/2
	top := tr.CY - tr.H/2
	return Rect{
		X: (left + cr.X*rx) * scale,
		Y: (top + cr.Y*ry) * scale,
		W: cr.W * rx * scale,
		H: cr.H * ry * scale,
	}
}

// Handles returns the four corner handles plus the whole-box move handle
// for an overlay rectangle.
func Handles(box Rect) []Handle {
	half := HandleSize / 2
	corner := func(kind HandleKind, x, y float64) Handle {
		return Handle{Kind: kind, Rect: Rect{X: x - half, Y: y - half, W: HandleSize, H: HandleSize}}
	}
	return []Handle{
		corner(HandleNW, box.X, box.Y),
		corner(HandleNE, box.X+box.W, box.Y),
		corner(HandleSW, box.X, box.Y+box.H),
		corner(HandleSE, box.X+box.W, box.Y+box.H),
		{Kind: HandleMove, Rect: box},
	}
}

// HitHandle returns the handle under the point. Corners win over the move
// box so small boxes stay resizable.
func HitHandle(handles []Handle, x, y float64) HandleKind {
	for _, h := range handles {
		if h.Kind != HandleMove && h.Rect.Contains(x, y) {
			return h.Kind
		}
	}
	for _, h := range handles {
		if h.Kind == HandleMove && h.Rect.Contains(x, y) {
			return HandleMove
		}
	}
	return HandleNone
}
