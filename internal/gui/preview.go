package gui

import (
	"context"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/minawa/panelreel/internal/assets"
	"github.com/minawa/panelreel/internal/compositor"
	"github.com/minawa/panelreel/internal/editor"
)

// preview shows the composited frame and forwards pointer gestures to the
// editing session. Widget coordinates are converted to surface pixels
// through the display scale before any hit-test or drag math runs.
type preview struct {
	widget.BaseWidget

	session *editor.Session
	comp    *compositor.Compositor
	bitmaps *assets.BitmapCache

	img      *canvas.Image
	scale    float64 // display pixels per surface pixel
	size     fyne.Size
	dragging bool
}

var _ fyne.Tappable = (*preview)(nil)
var _ fyne.Draggable = (*preview)(nil)

func newPreview(session *editor.Session, comp *compositor.Compositor, bitmaps *assets.BitmapCache, displayW float64) *preview {
	w, h := comp.Surface()
	scale := displayW / float64(w)
	p := &preview{
		session: session,
		comp:    comp,
		bitmaps: bitmaps,
		img:     canvas.NewImageFromImage(nil),
		scale:   scale,
		size:    fyne.NewSize(float32(displayW), float32(float64(h)*scale)),
	}
	p.img.FillMode = canvas.ImageFillContain
	p.ExtendBaseWidget(p)
	return p
}

func (p *preview) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(p.img)
}

func (p *preview) MinSize() fyne.Size { return p.size }

// redraw composites the current playhead, strokes the selection's editing
// box and handles while paused, and pushes the frame to screen.
func (p *preview) redraw(ctx context.Context) {
	frame := p.comp.Frame(ctx, p.session.Playhead())
	bw, bh := p.selectedBitmapSize()
	if box, ok := p.session.OverlayBox(bw, bh); ok {
		compositor.DrawOverlay(frame, box)
	}
	p.img.Image = frame
	p.img.Refresh()
}

func (p *preview) Tapped(ev *fyne.PointEvent) {
	if p.session.Running() {
		return
	}
	p.session.SelectAt(p.toSurface(ev.Position))
	p.redraw(context.Background())
}

func (p *preview) Dragged(ev *fyne.DragEvent) {
	if p.session.Running() {
		return
	}
	if !p.dragging {
		startX := ev.Position.X - ev.Dragged.DX
		startY := ev.Position.Y - ev.Dragged.DY
		sx, sy := p.toSurface(fyne.NewPos(startX, startY))
		bw, bh := p.selectedBitmapSize()
		if !p.session.BeginSurfaceDrag(sx, sy, bw, bh) {
			return
		}
		p.dragging = true
	}
	x, y := p.toSurface(ev.Position)
	if err := p.session.UpdateSurfaceDrag(x, y); err != nil {
		return
	}
	p.redraw(context.Background())
}

func (p *preview) DragEnd() {
	if !p.dragging {
		return
	}
	p.dragging = false
	p.session.EndSurfaceDrag()
	p.redraw(context.Background())
}

func (p *preview) toSurface(pos fyne.Position) (x, y float64) {
	return float64(pos.X) / p.scale, float64(pos.Y) / p.scale
}

// selectedBitmapSize returns the selected clip's native bitmap size for
// crop-space conversion, or zero if nothing decoded is selected.
func (p *preview) selectedBitmapSize() (w, h float64) {
	clip, ok := p.session.SelectedClip()
	if !ok {
		return 0, 0
	}
	img, ok := p.bitmaps.Lookup(clip.ID)
	if !ok {
		return 0, 0
	}
	b := img.Bounds()
	return float64(b.Dx()), float64(b.Dy())
}
