package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/rs/zerolog"

	"github.com/minawa/panelreel/internal/assets"
	"github.com/minawa/panelreel/internal/timeline"
)

// The process-wide playback context; ebiten allows exactly one.
var (
	audioCtxOnce sync.Once
	audioCtx     *audio.Context
)

func playbackContext() *audio.Context {
	audioCtxOnce.Do(func() {
		audioCtx = audio.NewContext(assets.SampleRate)
	})
	return audioCtx
}

// EbitenFactory builds playback handles on the ebiten audio stack, backed
// by the decoded-audio cache so repeated acquisition needs no network
// round-trip.
type EbitenFactory struct {
	logger zerolog.Logger
	cache  *assets.AudioCache
}

// NewEbitenFactory creates the factory.
func NewEbitenFactory(logger zerolog.Logger, cache *assets.AudioCache) *EbitenFactory {
	return &EbitenFactory{
		logger: logger.With().Str("component", "playback").Logger(),
		cache:  cache,
	}
}

// Acquire fetches (or reuses) the clip's decoded asset and wraps it in a
// fresh player. Each handle owns its own stream; streams are stateful.
func (f *EbitenFactory) Acquire(ctx context.Context, clip timeline.Clip) (Handle, error) {
	track, err := f.cache.Get(ctx, clip.Asset)
	if err != nil {
		return nil, fmt.Errorf("loading audio for clip %s: %w", clip.ID, err)
	}

	stream, err := track.NewStream()
	if err != nil {
		return nil, fmt.Errorf("decoding audio for clip %s: %w", clip.ID, err)
	}

	p, err := playbackContext().NewPlayer(stream)
	if err != nil {
		return nil, fmt.Errorf("creating player for clip %s: %w", clip.ID, err)
	}

	return &ebitenHandle{p: p}, nil
}

type ebitenHandle struct {
	p *audio.Player
}

func (h *ebitenHandle) Play()  { h.p.Play() }
func (h *ebitenHandle) Pause() { h.p.Pause() }

func (h *ebitenHandle) Seek(offset time.Duration) error {
	return h.p.SetPosition(offset)
}

func (h *ebitenHandle) Close() error {
	return h.p.Close()
}
