package editor

import (
	"github.com/minawa/panelreel/internal/timeline"
)

// HitTest returns the topmost active image clip whose transform rectangle
// contains the surface-space point: layers are walked from the highest
// index down, matching compositing order. The hit box is the axis-aligned
// transform rectangle, the same box the selection handles use.
func (s *Session) HitTest(x, y float64) (timeline.Placed, bool) {
	placed := s.tl.ImagesAt(s.playhead)
	for i := len(placed) - 1; i >= 0; i-- {
		if transformContains(placed[i].Clip.Transform, x, y) {
			return placed[i], true
		}
	}
	return timeline.Placed{}, false
}

// SelectAt hit-tests and selects in one step, clearing the selection when
// the point hits nothing.
func (s *Session) SelectAt(x, y float64) bool {
	p, ok := s.HitTest(x, y)
	if !ok {
		s.ClearSelection()
		return false
	}
	_ = s.Select(p.LayerIndex, p.ClipIndex)
	return true
}

func transformContains(tr timeline.Transform, x, y float64) bool {
	return x >= tr.CX-tr.W/2 && x < tr.CX+tr.W/2 &&
		y >= tr.CY-tr.H/2 && y < tr.CY+tr.H/2
}
