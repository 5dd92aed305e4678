package editor

import (
	"fmt"

	"github.com/minawa/panelreel/internal/compositor"
	"github.com/minawa/panelreel/internal/timeline"
)

// dragState captures the geometry at drag start; updates are computed as
// deltas against it so intermediate pointer events never accumulate error.
type dragState struct {
	handle         compositor.HandleKind
	mode           Mode
	startX, startY float64
	origTransform  timeline.Transform
	origCrop       timeline.Crop
	bitmapW        float64
	bitmapH        float64
}

// OverlayBox returns the surface-space editing box active for the current
// selection and mode: the transform box, or the crop box in crop mode. It
// is what the preview strokes over the frame and what drags hit-test
// against. Absent while playback runs, when no image clip is selected, and
// in crop mode before the clip's bitmap has decoded.
func (s *Session) OverlayBox(bitmapW, bitmapH float64) (compositor.Rect, bool) {
	if s.running {
		return compositor.Rect{}, false
	}
	clip, ok := s.SelectedClip()
	if !ok || clip.Kind != timeline.KindImage {
		return compositor.Rect{}, false
	}

	if s.mode == ModeCrop {
		if bitmapW <= 0 || bitmapH <= 0 {
			return compositor.Rect{}, false
		}
		return compositor.CropBox(clip.Crop, clip.Transform, bitmapW, bitmapH, 1), true
	}
	return compositor.TransformBox(clip.Transform, 1), true
}

// BeginSurfaceDrag starts a transform or crop manipulation at a
// surface-space point. It engages only while playback is paused and a clip
// is selected, and only if the point lands on one of the active overlay's
// handles. Crop mode needs the selected clip's native bitmap size for the
// surface-to-bitmap delta conversion.
func (s *Session) BeginSurfaceDrag(x, y float64, bitmapW, bitmapH float64) bool {
	box, ok := s.OverlayBox(bitmapW, bitmapH)
	if !ok {
		return false
	}
	clip, _ := s.SelectedClip()

	handle := compositor.HitHandle(compositor.Handles(box), x, y)
	if handle == compositor.HandleNone {
		return false
	}

	s.drag = &dragState{
		handle:        handle,
		mode:          s.mode,
		startX:        x,
		startY:        y,
		origTransform: clip.Transform,
		origCrop:      clip.Crop,
		bitmapW:       bitmapW,
		bitmapH:       bitmapH,
	}
	return true
}

// UpdateSurfaceDrag applies the pointer's travel since drag start to the
// selected clip's transform or crop.
func (s *Session) UpdateSurfaceDrag(x, y float64) error {
	if s.drag == nil {
		return fmt.Errorf("no drag in progress")
	}
	dx := x - s.drag.startX
	dy := y - s.drag.startY

	if s.drag.mode == ModeCrop {
		return s.applyCropDrag(dx, dy)
	}
	return s.applyTransformDrag(dx, dy)
}

// EndSurfaceDrag finishes the manipulation and notifies the change hook.
func (s *Session) EndSurfaceDrag() {
	if s.drag == nil {
		return
	}
	s.drag = nil
	s.notify()
}

func (s *Session) applyTransformDrag(dx, dy float64) error {
	d := s.drag
	tr := d.origTransform

	if d.handle == compositor.HandleMove {
		tr.CX += dx
		tr.CY += dy
		return s.setSelectedTransform(tr)
	}

	// Corner drags resize anchored at the opposite corner.
	left := tr.CX - tr.W/2
	top := tr.CY - tr.H/2
	right := tr.CX + tr.W/2
	bottom := tr.CY + tr.H/2

	switch d.handle {
	case compositor.HandleNW:
		left = min(left+dx, right-s.minSize)
		top = min(top+dy, bottom-s.minSize)
	case compositor.HandleNE:
		right = max(right+dx, left+s.minSize)
		top = min(top+dy, bottom-s.minSize)
	case compositor.HandleSW:
		left = min(left+dx, right-s.minSize)
		bottom = max(bottom+dy, top+s.minSize)
	case compositor.HandleSE:
		right = max(right+dx, left+s.minSize)
		bottom = max(bottom+dy, top+s.minSize)
	}

	tr.CX = (left + right) / 2
	tr.CY = (top + bottom) / 2
	tr.W = right - left
	tr.H = bottom - top
	return s.setSelectedTransform(tr)
}

// applyCropDrag converts the surface-space delta into source-bitmap pixels
// via the ratio of the clip's transform size to the bitmap's native size,
// then clamps the result inside the bitmap bounds.
func (s *Session) applyCropDrag(dx, dy float64) error {
	d := s.drag
	tr := d.origTransform
	if tr.W <= 0 || tr.H <= 0 {
		return fmt.Errorf("degenerate transform")
	}

	bx := dx * d.bitmapW / tr.W
	by := dy * d.bitmapH / tr.H

	cr := d.origCrop
	left := cr.X
	top := cr.Y
	right := cr.X + cr.W
	bottom := cr.Y + cr.H

	switch d.handle {
	case compositor.HandleMove:
		left = clamp(left+bx, 0, d.bitmapW-cr.W)
		top = clamp(top+by, 0, d.bitmapH-cr.H)
		right = left + cr.W
		bottom = top + cr.H
	case compositor.HandleNW:
		left = clamp(left+bx, 0, right-1)
		top = clamp(top+by, 0, bottom-1)
	case compositor.HandleNE:
		right = clamp(right+bx, left+1, d.bitmapW)
		top = clamp(top+by, 0, bottom-1)
	case compositor.HandleSW:
		left = clamp(left+bx, 0, right-1)
		bottom = clamp(bottom+by, top+1, d.bitmapH)
	case compositor.HandleSE:
		right = clamp(right+bx, left+1, d.bitmapW)
		bottom = clamp(bottom+by, top+1, d.bitmapH)
	}

	return s.setSelectedCrop(timeline.Crop{X: left, Y: top, W: right - left, H: bottom - top})
}

func (s *Session) setSelectedTransform(tr timeline.Transform) error {
	sel := *s.selection
	return s.tl.SetTransform(sel.LayerIndex, sel.ClipIndex, tr)
}

func (s *Session) setSelectedCrop(cr timeline.Crop) error {
	sel := *s.selection
	return s.tl.SetCrop(sel.LayerIndex, sel.ClipIndex, cr)
}

// DragClipTo re-derives a clip's start time from the pointer's timeline
// position and re-runs placement, so dragging reuses the same
// overlap-repair guarantees as initial insertion. It returns the clip's
// new in-layer index.
func (s *Session) DragClipTo(layerIdx, clipIdx int, pointerX, pxPerSec float64) (int, error) {
	if pxPerSec <= 0 {
		return -1, fmt.Errorf("invalid timeline scale %v", pxPerSec)
	}
	l, err := s.tl.Layer(layerIdx)
	if err != nil {
		return -1, err
	}
	idx, err := s.tl.MoveTo(l.ID, clipIdx, pointerX/pxPerSec)
	if err != nil {
		return -1, err
	}
	s.notify()
	return idx, nil
}

// TrimClipTo drags a clip's trailing edge: the pointer position becomes
// the clip's new end time, and later clips shift forward as needed.
func (s *Session) TrimClipTo(layerIdx, clipIdx int, pointerX, pxPerSec float64) error {
	if pxPerSec <= 0 {
		return fmt.Errorf("invalid timeline scale %v", pxPerSec)
	}
	l, err := s.tl.Layer(layerIdx)
	if err != nil {
		return err
	}
	c, err := s.tl.Clip(layerIdx, clipIdx)
	if err != nil {
		return err
	}
	if err := s.tl.ResizeTo(l.ID, clipIdx, pointerX/pxPerSec-c.Start); err != nil {
		return err
	}
	s.notify()
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
