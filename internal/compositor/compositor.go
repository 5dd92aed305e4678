// Package compositor renders the timeline at a single instant onto a
// fixed-aspect raster surface. Draw order is load-bearing: the background
// clip first, then every other active image clip in ascending layer order.
package compositor

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"github.com/rs/zerolog"

	"github.com/minawa/panelreel/internal/assets"
	"github.com/minawa/panelreel/internal/timeline"
)

// Compositor draws composited frames from the timeline keyed by playhead
// time. Bitmaps decode in the background; an undecoded clip is skipped for
// the frame and retried on the next one.
type Compositor struct {
	logger  zerolog.Logger
	tl      *timeline.Timeline
	bitmaps *assets.BitmapCache

	width, height int
}

// New creates a compositor bound to a timeline and its bitmap cache.
func New(logger zerolog.Logger, tl *timeline.Timeline, bitmaps *assets.BitmapCache) *Compositor {
	w, h := tl.Surface()
	return &Compositor{
		logger:  logger.With().Str("component", "compositor").Logger(),
		tl:      tl,
		bitmaps: bitmaps,
		width:   w,
		height:  h,
	}
}

// Surface returns the canonical surface resolution.
func (c *Compositor) Surface() (w, h int) { return c.width, c.height }

// Frame renders the composited frame at the given playhead time.
func (c *Compositor) Frame(ctx context.Context, playhead float64) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	for _, p := range c.tl.ImagesAt(playhead) {
		clip := p.Clip
		img, ok := c.bitmaps.Lookup(clip.ID)
		if !ok {
			if !c.bitmaps.Failed(clip.ID) {
				c.requestDecode(ctx, clip)
			}
			continue
		}
		c.drawClip(dst, img, clip)
	}

	return dst
}

// Prefetch kicks off decodes for every image clip so frames fill in
// without waiting for the playhead to reach them.
func (c *Compositor) Prefetch(ctx context.Context) {
	for _, p := range c.tl.Flatten() {
		if p.Clip.Kind == timeline.KindImage {
			c.requestDecode(ctx, p.Clip)
		}
	}
}

func (c *Compositor) requestDecode(ctx context.Context, clip *timeline.Clip) {
	id := clip.ID
	c.bitmaps.Request(ctx, id, clip.Asset, func(w, h int) {
		c.tl.InitCrop(id, w, h)
	})
}

// drawClip maps the clip's source-space crop rectangle onto its
// surface-space transform rectangle, rotated about the transform center.
func (c *Compositor) drawClip(dst *image.RGBA, src image.Image, clip *timeline.Clip) {
	cr := clip.Crop
	if cr.W <= 0 || cr.H <= 0 {
		b := src.Bounds()
		cr = timeline.Crop{W: float64(b.Dx()), H: float64(b.Dy())}
	}

	sr := image.Rect(int(cr.X), int(cr.Y), int(cr.X+cr.W), int(cr.Y+cr.H)).Intersect(src.Bounds())
	if sr.Empty() {
		return
	}

	tr := clip.Transform
	if tr.W <= 0 || tr.H <= 0 {
		return
	}

	m := clipMatrix(tr, cr)
	xdraw.ApproxBiLinear.Transform(dst, m, src, sr, xdraw.Over, nil)
}

// clipMatrix builds the source→surface affine map: center the crop,
// scale it to the transform size, rotate, then translate to the transform
// center.
func clipMatrix(tr timeline.Transform, cr timeline.Crop) f64.Aff3 {
	sx := tr.W / cr.W
	sy := tr.H / cr.H
	cos := math.Cos(tr.Rotation)
	sin := math.Sin(tr.Rotation)

	ccx := cr.X + cr.W/2
	ccy := cr.Y + cr.H/2

	return f64.Aff3{
		cos * sx, -sin * sy, tr.CX - cos*sx*ccx + sin*sy*ccy,
		sin * sx, cos * sy, tr.CY - sin*sx*ccx - cos*sy*ccy,
	}
}
