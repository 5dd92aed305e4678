package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/minawa/panelreel/internal/timeline"
)

// SampleRate is the fixed playback sample rate. Every decoded stream is
// 16-bit stereo at this rate, so one second is SampleRate*4 bytes.
const SampleRate = 48000

const bytesPerSecond = SampleRate * 4

// AudioTrack is a fetched and probed narration asset: the raw encoded
// bytes, the sniffed container format and the natural duration in seconds.
type AudioTrack struct {
	Data     []byte
	Format   string
	Duration float64
}

// NewStream decodes the track into a fresh seekable PCM stream. Streams
// are stateful, so every playback handle gets its own.
func (t *AudioTrack) NewStream() (io.ReadSeeker, error) {
	return decodeStream(t.Data, t.Format)
}

type audioEntry struct {
	done  chan struct{}
	track *AudioTrack
	err   error
}

// AudioCache fetches and probes narration audio once per source identity.
// Entries are append-only for the session; subsequent playback needs no
// network round-trip.
type AudioCache struct {
	mu      sync.Mutex
	logger  zerolog.Logger
	fetcher *Fetcher
	workers int
	entries map[string]*audioEntry
}

// NewAudioCache creates an empty cache. workers bounds preload parallelism.
func NewAudioCache(logger zerolog.Logger, fetcher *Fetcher, workers int) *AudioCache {
	if workers <= 0 {
		workers = 4
	}
	return &AudioCache{
		logger:  logger.With().Str("component", "audio").Logger(),
		fetcher: fetcher,
		workers: workers,
		entries: make(map[string]*audioEntry),
	}
}

// Get returns the cached track for the reference, fetching and probing it
// on first use. Concurrent callers for one identity share a single fetch.
func (c *AudioCache) Get(ctx context.Context, ref timeline.AssetRef) (*AudioTrack, error) {
	id := ref.Identity()
	if id == "" {
		return nil, fmt.Errorf("empty asset reference")
	}

	c.mu.Lock()
	entry, ok := c.entries[id]
	if ok {
		c.mu.Unlock()
		select {
		case <-entry.done:
			return entry.track, entry.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	entry = &audioEntry{done: make(chan struct{})}
	c.entries[id] = entry
	c.mu.Unlock()

	entry.track, entry.err = c.load(ctx, ref)
	close(entry.done)

	if entry.err != nil {
		c.logger.Warn().Err(entry.err).Str("asset", id).Msg("audio load failed")
	}
	return entry.track, entry.err
}

func (c *AudioCache) load(ctx context.Context, ref timeline.AssetRef) (*AudioTrack, error) {
	data, err := c.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	format := sniffFormat(data)
	stream, err := decodeStream(data, format)
	if err != nil {
		return nil, err
	}

	duration, err := streamDuration(stream)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Str("asset", ref.Identity()).
		Str("format", format).Float64("duration", duration).
		Msg("audio decoded")

	return &AudioTrack{Data: data, Format: format, Duration: duration}, nil
}

// Preload fetches and probes every audio clip in the flattened timeline
// ahead of interactive use. Failures are isolated per asset: each fetch is
// time-bounded by the fetcher and a failed item is logged, not returned.
// onDuration receives each clip's probed natural length.
func (c *AudioCache) Preload(ctx context.Context, placed []timeline.Placed, onDuration func(clipID string, seconds float64)) {
	g := new(errgroup.Group)
	g.SetLimit(c.workers)

	for _, p := range placed {
		if p.Clip.Kind != timeline.KindAudio || p.Clip.Asset.IsZero() {
			continue
		}
		clip := p.Clip
		g.Go(func() error {
			track, err := c.Get(ctx, clip.Asset)
			if err != nil {
				return nil // already logged; do not stall the batch
			}
			if onDuration != nil {
				onDuration(clip.ID, track.Duration)
			}
			return nil
		})
	}

	_ = g.Wait()
}

func sniffFormat(data []byte) string {
	switch {
	case len(data) >= 4 && string(data[:4]) == "RIFF":
		return "wav"
	case len(data) >= 4 && string(data[:4]) == "OggS":
		return "ogg"
	default:
		return "mp3"
	}
}

func decodeStream(data []byte, format string) (io.ReadSeeker, error) {
	r := bytes.NewReader(data)
	switch format {
	case "wav":
		s, err := wav.DecodeWithSampleRate(SampleRate, r)
		if err != nil {
			return nil, fmt.Errorf("decoding wav: %w", err)
		}
		return s, nil
	case "ogg":
		s, err := vorbis.DecodeWithSampleRate(SampleRate, r)
		if err != nil {
			return nil, fmt.Errorf("decoding ogg: %w", err)
		}
		return s, nil
	default:
		s, err := mp3.DecodeWithSampleRate(SampleRate, r)
		if err != nil {
			return nil, fmt.Errorf("decoding mp3: %w", err)
		}
		return s, nil
	}
}

type lengther interface {
	Length() int64
}

func streamDuration(s io.ReadSeeker) (float64, error) {
	if l, ok := s.(lengther); ok {
		return float64(l.Length()) / bytesPerSecond, nil
	}
	n, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("measuring stream: %w", err)
	}
	return float64(n) / bytesPerSecond, nil
}
