package compositor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/minawa/panelreel/internal/assets"
	"github.com/minawa/panelreel/internal/timeline"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
}

func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func splitPNG(t *testing.T, w, h int, left, right color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetRGBA(x, y, left)
			} else {
				img.SetRGBA(x, y, right)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	black = color.RGBA{A: 255}
)

func sameColor(got color.RGBA, want color.RGBA) bool {
	diff := func(a, b uint8) int { return int(math.Abs(float64(int(a) - int(b)))) }
	return diff(got.R, want.R) < 24 && diff(got.G, want.G) < 24 && diff(got.B, want.B) < 24
}

// newScene builds a timeline + compositor and blocks until every image
// clip's bitmap has decoded (or failed).
func newScene(t *testing.T, tl *timeline.Timeline) (*Compositor, *assets.BitmapCache) {
	t.Helper()
	f := assets.NewFetcher(testLogger(), time.Second)
	cache := assets.NewBitmapCache(testLogger(), f)
	comp := New(testLogger(), tl, cache)
	comp.Prefetch(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for _, p := range tl.Flatten() {
		if p.Clip.Kind != timeline.KindImage {
			continue
		}
		for {
			if _, ok := cache.Lookup(p.Clip.ID); ok {
				break
			}
			if cache.Failed(p.Clip.ID) {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("decode never completed")
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	return comp, cache
}

func TestFrameCompositesBackgroundThenLayers(t *testing.T) {
	tl := timeline.New(100, 100)
	bg := tl.Background()
	panels := tl.AddLayer("panels")

	bgClip := timeline.NewImageClip(timeline.InlineRef(solidPNG(t, 100, 100, blue), "image/png"), 10, 100, 100)
	if _, err := tl.InsertAt(bg.ID, bgClip, 0); err != nil {
		t.Fatal(err)
	}

	// Red overlay covering the left half, active [0, 2).
	overlay := timeline.NewImageClip(timeline.InlineRef(solidPNG(t, 50, 100, red), "image/png"), 2, 100, 100)
	overlay.Transform = timeline.Transform{CX: 25, CY: 50, W: 50, H: 100}
	if _, err := tl.InsertAt(panels.ID, overlay, 0); err != nil {
		t.Fatal(err)
	}

	comp, _ := newScene(t, tl)

	frame := comp.Frame(context.Background(), 1.0)
	if got := frame.RGBAAt(10, 50); !sameColor(got, red) {
		t.Errorf("left half should be the overlay, got %+v", got)
	}
	if got := frame.RGBAAt(75, 50); !sameColor(got, blue) {
		t.Errorf("right half should be the background, got %+v", got)
	}

	// Past the overlay's span only the background remains.
	frame = comp.Frame(context.Background(), 3.0)
	if got := frame.RGBAAt(10, 50); !sameColor(got, blue) {
		t.Errorf("expired overlay still drawn, got %+v", got)
	}
}

func TestFrameAppliesCrop(t *testing.T) {
	tl := timeline.New(100, 100)
	panels := tl.AddLayer("panels")

	// Bitmap is green|red halves; crop selects the red half.
	clip := timeline.NewImageClip(timeline.InlineRef(splitPNG(t, 20, 10, green, red), "image/png"), 2, 100, 100)
	clip.Crop = timeline.Crop{X: 10, Y: 0, W: 10, H: 10}
	if _, err := tl.InsertAt(panels.ID, clip, 0); err != nil {
		t.Fatal(err)
	}

	comp, _ := newScene(t, tl)
	frame := comp.Frame(context.Background(), 0.5)

	if got := frame.RGBAAt(50, 50); !sameColor(got, red) {
		t.Errorf("crop should select the red half, got %+v", got)
	}
}

func TestFrameAppliesRotation(t *testing.T) {
	tl := timeline.New(100, 100)
	panels := tl.AddLayer("panels")

	// Wide red bar rotated a quarter turn becomes a tall bar.
	clip := timeline.NewImageClip(timeline.InlineRef(solidPNG(t, 40, 10, red), "image/png"), 2, 100, 100)
	clip.Transform = timeline.Transform{CX: 50, CY: 50, W: 40, H: 10, Rotation: math.Pi / 2}
	if _, err := tl.InsertAt(panels.ID, clip, 0); err != nil {
		t.Fatal(err)
	}

	comp, _ := newScene(t, tl)
	frame := comp.Frame(context.Background(), 0.5)

	if got := frame.RGBAAt(50, 65); !sameColor(got, red) {
		t.Errorf("rotated bar should cover (50,65), got %+v", got)
	}
	if got := frame.RGBAAt(65, 50); !sameColor(got, black) {
		t.Errorf("(65,50) should be outside the rotated bar, got %+v", got)
	}
}

func TestFrameSkipsFailedDecodes(t *testing.T) {
	tl := timeline.New(100, 100)
	panels := tl.AddLayer("panels")

	clip := timeline.NewImageClip(timeline.InlineRef([]byte("garbage"), "image/png"), 2, 100, 100)
	if _, err := tl.InsertAt(panels.ID, clip, 0); err != nil {
		t.Fatal(err)
	}

	comp, _ := newScene(t, tl)
	frame := comp.Frame(context.Background(), 0.5)

	if got := frame.RGBAAt(50, 50); !sameColor(got, black) {
		t.Errorf("failed clip must not be drawn, got %+v", got)
	}
}

func TestDrawOverlayStrokesBoxAndHandles(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 100, 100))
	box := Rect{X: 20, Y: 20, W: 40, H: 30}

	DrawOverlay(frame, box)

	if got := frame.RGBAAt(40, 20); got != overlayColor {
		t.Errorf("top edge not stroked, got %+v", got)
	}
	if got := frame.RGBAAt(20, 35); got != overlayColor {
		t.Errorf("left edge not stroked, got %+v", got)
	}
	if got := frame.RGBAAt(20, 20); got != gripColor {
		t.Errorf("NW handle not filled, got %+v", got)
	}
	if got := frame.RGBAAt(60, 50); got != gripColor {
		t.Errorf("SE handle not filled, got %+v", got)
	}
	if got := frame.RGBAAt(40, 35); (got != color.RGBA{}) {
		t.Errorf("box interior must stay untouched, got %+v", got)
	}
}

func TestHandleGeometryAndHitOrder(t *testing.T) {
	tr := timeline.Transform{CX: 100, CY: 100, W: 80, H: 40}

	box := TransformBox(tr, 0.5)
	want := Rect{X: 30, Y: 40, W: 40, H: 20}
	if box != want {
		t.Fatalf("TransformBox = %+v, want %+v", box, want)
	}

	handles := Handles(box)
	if len(handles) != 5 {
		t.Fatalf("expected 5 handles, got %d", len(handles))
	}

	// Corner wins over the move box where they overlap.
	if kind := HitHandle(handles, box.X, box.Y); kind != HandleNW {
		t.Errorf("expected HandleNW at the corner, got %v", kind)
	}
	if kind := HitHandle(handles, box.X+box.W/2, box.Y+box.H/2); kind != HandleMove {
		t.Errorf("expected HandleMove at the center, got %v", kind)
	}
	if kind := HitHandle(handles, -100, -100); kind != HandleNone {
		t.Errorf("expected no hit far away, got %v", kind)
	}
}

func TestCropBoxMapsBitmapSpaceThroughDisplayScale(t *testing.T) {
	tr := timeline.Transform{CX: 50, CY: 50, W: 100, H: 100}
	cr := timeline.Crop{X: 100, Y: 50, W: 200, H: 100}

	// Bitmap is 400x200 shown at 100x100, displayed at half scale.
	box := CropBox(cr, tr, 400, 200, 0.5)
	want := Rect{X: 12.5, Y: 12.5, W: 25, H: 25}
	if box != want {
		t.Errorf("CropBox = %+v, want %+v", box, want)
	}
}
