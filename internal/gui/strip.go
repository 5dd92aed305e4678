package gui

import (
	"image"
	"image/color"
	"image/draw"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/minawa/panelreel/internal/editor"
	"github.com/minawa/panelreel/internal/timeline"
)

const (
	stripRowHeight = 24
	stripPxPerSec  = 50.0
	// trimGrip is the drag zone at a clip's trailing edge, in pixels.
	trimGrip = 6.0
)

var (
	stripBackground = color.RGBA{30, 30, 34, 255}
	imageClipColor  = color.RGBA{70, 110, 180, 255}
	audioClipColor  = color.RGBA{80, 160, 90, 255}
	selectedColor   = color.RGBA{220, 180, 60, 255}
	playheadColor   = color.RGBA{240, 80, 80, 255}
)

// stripDrag tracks one in-progress timeline gesture: either moving a clip
// or trimming its trailing edge.
type stripDrag struct {
	layerIdx int
	clipIdx  int
	trim     bool
	// grabOffset keeps the pointer anchored where the clip was grabbed,
	// so a move drag does not jump the clip's start to the pointer.
	grabOffset float64
}

// timelineStrip draws one row per layer with clips as blocks on a
// seconds-to-pixels scale. Dragging a block re-runs placement; dragging
// its trailing edge trims.
type timelineStrip struct {
	widget.BaseWidget

	session  *editor.Session
	img      *canvas.Image
	width    float64
	onChange func()

	drag *stripDrag
}

var _ fyne.Tappable = (*timelineStrip)(nil)
var _ fyne.Draggable = (*timelineStrip)(nil)

func newTimelineStrip(session *editor.Session, width float64, onChange func()) *timelineStrip {
	s := &timelineStrip{
		session:  session,
		img:      canvas.NewImageFromImage(nil),
		width:    width,
		onChange: onChange,
	}
	s.img.FillMode = canvas.ImageFillContain
	s.ExtendBaseWidget(s)
	return s
}

func (s *timelineStrip) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(s.img)
}

func (s *timelineStrip) MinSize() fyne.Size {
	rows := s.session.Timeline().LayerCount()
	if rows < 2 {
		rows = 2
	}
	return fyne.NewSize(float32(s.width), float32(rows*stripRowHeight))
}

// redraw rebuilds the strip image from the current model.
func (s *timelineStrip) redraw() {
	tl := s.session.Timeline()
	rows := tl.LayerCount()
	h := rows * stripRowHeight
	if h < 2*stripRowHeight {
		h = 2 * stripRowHeight
	}
	img := image.NewRGBA(image.Rect(0, 0, int(s.width), h))
	draw.Draw(img, img.Bounds(), image.NewUniform(stripBackground), image.Point{}, draw.Src)

	sel, hasSel := s.session.Selected()
	for li := 0; li < rows; li++ {
		l, err := tl.Layer(li)
		if err != nil {
			continue
		}
		for ci, c := range l.Clips {
			fill := imageClipColor
			if c.Kind == timeline.KindAudio {
				fill = audioClipColor
			}
			if hasSel && sel.LayerIndex == li && sel.ClipIndex == ci {
				fill = selectedColor
			}
			dur := c.Duration
			if !c.DurationKnown {
				// An unprobed clip still needs a grabbable block.
				dur = 1
			}
			x0 := int(c.Start * stripPxPerSec)
			x1 := int((c.Start + dur) * stripPxPerSec)
			rect := image.Rect(x0, li*stripRowHeight+2, x1-1, (li+1)*stripRowHeight-2)
			draw.Draw(img, rect.Intersect(img.Bounds()), image.NewUniform(fill), image.Point{}, draw.Src)
		}
	}

	px := int(s.session.Playhead() * stripPxPerSec)
	line := image.Rect(px, 0, px+1, h)
	draw.Draw(img, line.Intersect(img.Bounds()), image.NewUniform(playheadColor), image.Point{}, draw.Src)

	s.img.Image = img
	s.img.Refresh()
}

// clipAt maps a widget point to the clip block under it.
func (s *timelineStrip) clipAt(pos fyne.Position) (layerIdx, clipIdx int, clip timeline.Clip, ok bool) {
	tl := s.session.Timeline()
	layerIdx = int(pos.Y) / stripRowHeight
	if layerIdx < 0 || layerIdx >= tl.LayerCount() {
		return 0, 0, timeline.Clip{}, false
	}
	t := float64(pos.X) / stripPxPerSec

	l, err := tl.Layer(layerIdx)
	if err != nil {
		return 0, 0, timeline.Clip{}, false
	}
	for ci, c := range l.Clips {
		end := c.End()
		if !c.DurationKnown {
			end = c.Start + 1
		}
		if t >= c.Start && t < end {
			return layerIdx, ci, *c, true
		}
	}
	return 0, 0, timeline.Clip{}, false
}

func (s *timelineStrip) Tapped(ev *fyne.PointEvent) {
	if s.session.Running() {
		return
	}
	li, ci, _, ok := s.clipAt(ev.Position)
	if !ok {
		s.session.ClearSelection()
	} else {
		_ = s.session.Select(li, ci)
	}
	s.redraw()
}

func (s *timelineStrip) Dragged(ev *fyne.DragEvent) {
	if s.session.Running() {
		return
	}
	if s.drag == nil {
		start := fyne.NewPos(ev.Position.X-ev.Dragged.DX, ev.Position.Y-ev.Dragged.DY)
		li, ci, clip, ok := s.clipAt(start)
		if !ok {
			return
		}
		endX := clip.End() * stripPxPerSec
		trim := clip.DurationKnown && float64(start.X) >= endX-trimGrip
		grab := float64(start.X) - clip.Start*stripPxPerSec
		s.drag = &stripDrag{layerIdx: li, clipIdx: ci, trim: trim, grabOffset: grab}
		_ = s.session.Select(li, ci)
	}

	d := s.drag
	if d.trim {
		if err := s.session.TrimClipTo(d.layerIdx, d.clipIdx, float64(ev.Position.X), stripPxPerSec); err != nil {
			return
		}
	} else {
		idx, err := s.session.DragClipTo(d.layerIdx, d.clipIdx, float64(ev.Position.X)-d.grabOffset, stripPxPerSec)
		if err != nil {
			return
		}
		d.clipIdx = idx
		_ = s.session.Select(d.layerIdx, idx)
	}
	s.redraw()
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *timelineStrip) DragEnd() {
	s.drag = nil
}
