package assets

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/minawa/panelreel/internal/timeline"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
}

// encodePNG renders a solid-color PNG for decode tests.
func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

// encodeWAV builds a minimal 16-bit mono PCM file with the given number of
// samples at the cache sample rate.
func encodeWAV(t *testing.T, samples int) []byte {
	t.Helper()

	dataLen := samples * 2
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(SampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

func waitForBitmap(t *testing.T, c *BitmapCache, clipID string) image.Image {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if img, ok := c.Lookup(clipID); ok {
			return img
		}
		if c.Failed(clipID) {
			t.Fatal("bitmap decode failed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("bitmap never became ready")
	return nil
}

func TestFetcherResolvesAllRefKinds(t *testing.T) {
	payload := []byte("panel bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	f := NewFetcher(testLogger(), time.Second)
	ctx := context.Background()

	got, err := f.Fetch(ctx, timeline.URLRef(srv.URL+"/panel.png"))
	if err != nil {
		t.Fatalf("url fetch: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("url fetch returned wrong bytes")
	}

	got, err = f.Fetch(ctx, timeline.InlineRef(payload, "image/png"))
	if err != nil {
		t.Fatalf("inline fetch: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("inline fetch returned wrong bytes")
	}

	path := t.TempDir() + "/panel.bin"
	if err := os.WriteFile(path, payload, 0644); err != nil {
		t.Fatal(err)
	}
	got, err = f.Fetch(ctx, timeline.StoredRef(path))
	if err != nil {
		t.Fatalf("path fetch: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("path fetch returned wrong bytes")
	}
}

func TestFetcherRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(testLogger(), time.Second)
	if _, err := f.Fetch(context.Background(), timeline.URLRef(srv.URL)); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestBitmapCacheDecodesOnceAndReportsBounds(t *testing.T) {
	data := encodePNG(t, 64, 32, color.RGBA{R: 255, A: 255})
	f := NewFetcher(testLogger(), time.Second)
	c := NewBitmapCache(testLogger(), f)

	var gotW, gotH int
	done := make(chan struct{})
	c.Request(context.Background(), "clip-1", timeline.InlineRef(data, "image/png"), func(w, h int) {
		gotW, gotH = w, h
		close(done)
	})

	img := waitForBitmap(t, c, "clip-1")
	<-done
	if gotW != 64 || gotH != 32 {
		t.Errorf("onReady got %dx%d, want 64x32", gotW, gotH)
	}
	if img.Bounds().Dx() != 64 {
		t.Errorf("unexpected bitmap width %d", img.Bounds().Dx())
	}

	// A second request for the same clip identity is a no-op.
	c.Request(context.Background(), "clip-1", timeline.InlineRef(data, "image/png"), func(w, h int) {
		t.Error("onReady must not fire for an existing entry")
	})
	time.Sleep(20 * time.Millisecond)
}

func TestBitmapCacheMarksFailedDecodes(t *testing.T) {
	f := NewFetcher(testLogger(), time.Second)
	c := NewBitmapCache(testLogger(), f)

	c.Request(context.Background(), "bad", timeline.InlineRef([]byte("not an image"), "image/png"), nil)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.Failed("bad") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("decode failure was never recorded")
}

func TestAudioCacheProbesNaturalDuration(t *testing.T) {
	data := encodeWAV(t, SampleRate/10) // 0.1s of silence
	f := NewFetcher(testLogger(), time.Second)
	c := NewAudioCache(testLogger(), f, 2)

	track, err := c.Get(context.Background(), timeline.InlineRef(data, "audio/wav"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if math.Abs(track.Duration-0.1) > 0.01 {
		t.Errorf("probed duration %v, want ~0.1", track.Duration)
	}
	if track.Format != "wav" {
		t.Errorf("sniffed format %q, want wav", track.Format)
	}
	if _, err := track.NewStream(); err != nil {
		t.Errorf("NewStream failed: %v", err)
	}
}

func TestPreloadIsolatesFailures(t *testing.T) {
	good := encodeWAV(t, SampleRate) // 1s

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	tl := timeline.New(1920, 1080)
	l := tl.AddLayer("narration")
	ok := timeline.NewAudioClip(timeline.InlineRef(good, "audio/wav"))
	bad := timeline.NewAudioClip(timeline.URLRef(srv.URL + "/voice.mp3"))
	if _, err := tl.InsertAt(l.ID, ok, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := tl.InsertAt(l.ID, bad, 5); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(testLogger(), time.Second)
	c := NewAudioCache(testLogger(), f, 2)

	var mu sync.Mutex
	durations := make(map[string]float64)
	c.Preload(context.Background(), tl.Flatten(), func(clipID string, d float64) {
		mu.Lock()
		durations[clipID] = d
		mu.Unlock()
	})

	if _, found := durations[bad.ID]; found {
		t.Error("failed asset must not report a duration")
	}
	d, found := durations[ok.ID]
	if !found {
		t.Fatal("preload skipped the healthy asset")
	}
	if math.Abs(d-1.0) > 0.01 {
		t.Errorf("probed duration %v, want ~1.0", d)
	}
}

func TestThumbnailFitsBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	thumb := Thumbnail(img, 100, 100)
	b := thumb.Bounds()
	if b.Dx() > 100 || b.Dy() > 100 {
		t.Errorf("thumbnail %dx%d exceeds bounds", b.Dx(), b.Dy())
	}
}
