package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"

	// Decoders for the bitmap formats panel sources arrive in.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"

	"github.com/minawa/panelreel/internal/timeline"
)

type bitmapState int

const (
	bitmapPending bitmapState = iota
	bitmapReady
	bitmapFailed
)

type bitmapEntry struct {
	state bitmapState
	img   image.Image
	err   error
}

// BitmapCache holds decoded bitmaps keyed by clip identity. Entries are
// append-only: a changed asset reference is a new clip identity, never an
// in-place invalidation. Decoding runs in the background; the compositor
// polls Lookup each frame and simply skips clips that are not ready yet.
type BitmapCache struct {
	mu      sync.Mutex
	logger  zerolog.Logger
	fetcher *Fetcher
	entries map[string]*bitmapEntry
}

// NewBitmapCache creates an empty cache backed by the given fetcher.
func NewBitmapCache(logger zerolog.Logger, fetcher *Fetcher) *BitmapCache {
	return &BitmapCache{
		logger:  logger.With().Str("component", "bitmaps").Logger(),
		fetcher: fetcher,
		entries: make(map[string]*bitmapEntry),
	}
}

// Request starts decoding the clip's bitmap unless it is already pending,
// ready or failed. onReady, if non-nil, is invoked once with the decoded
// bitmap's native bounds (used to initialize the clip's crop).
func (c *BitmapCache) Request(ctx context.Context, clipID string, ref timeline.AssetRef, onReady func(w, h int)) {
	c.mu.Lock()
	if _, exists := c.entries[clipID]; exists {
		c.mu.Unlock()
		return
	}
	c.entries[clipID] = &bitmapEntry{state: bitmapPending}
	c.mu.Unlock()

	go func() {
		img, err := c.decode(ctx, ref)

		c.mu.Lock()
		entry := c.entries[clipID]
		if err != nil {
			entry.state = bitmapFailed
			entry.err = err
		} else {
			entry.state = bitmapReady
			entry.img = img
		}
		c.mu.Unlock()

		if err != nil {
			c.logger.Warn().Err(err).Str("clip", clipID).Msg("bitmap decode failed")
			return
		}
		if onReady != nil {
			b := img.Bounds()
			onReady(b.Dx(), b.Dy())
		}
	}()
}

func (c *BitmapCache) decode(ctx context.Context, ref timeline.AssetRef) (image.Image, error) {
	data, err := c.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding bitmap: %w", err)
	}

	c.logger.Debug().Str("format", format).
		Int("w", img.Bounds().Dx()).Int("h", img.Bounds().Dy()).
		Msg("bitmap decoded")
	return img, nil
}

// Lookup returns the decoded bitmap if it is ready.
func (c *BitmapCache) Lookup(clipID string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[clipID]
	if !ok || entry.state != bitmapReady {
		return nil, false
	}
	return entry.img, true
}

// Failed reports whether the clip's bitmap decode failed. The clip stays
// in the model for user correction; it is just never drawn.
func (c *BitmapCache) Failed(clipID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[clipID]
	return ok && entry.state == bitmapFailed
}

// Thumbnail scales a decoded bitmap down to fit the timeline strip.
func Thumbnail(img image.Image, maxW, maxH uint) image.Image {
	return resize.Thumbnail(maxW, maxH, img, resize.Bilinear)
}
