package export

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/minawa/panelreel/internal/timeline"
)

// ClipEntry is the transport form of one placed clip. Src is always a
// canonical string reference; inline audio bytes are uploaded and
// rewritten before an entry is emitted.
type ClipEntry struct {
	Kind       string          `json:"kind"`
	Src        string          `json:"src"`
	Start      float64         `json:"start"`
	Duration   *float64        `json:"duration"`
	Layer      int             `json:"layer"`
	Index      int             `json:"index"`
	Background bool            `json:"background"`
	Transform  *TransformEntry `json:"transform,omitempty"`
	Crop       *CropEntry      `json:"crop,omitempty"`
}

// TransformEntry mirrors a clip's destination rectangle in surface space.
type TransformEntry struct {
	CX       float64 `json:"cx"`
	CY       float64 `json:"cy"`
	W        float64 `json:"w"`
	H        float64 `json:"h"`
	Rotation float64 `json:"rotation"`
}

// CropEntry mirrors a clip's source rectangle in bitmap pixel space.
type CropEntry struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Serializer flattens the timeline into transport entries, resolving
// in-memory audio through the asset store on the way. It reads a snapshot
// of the model and never writes back to it.
type Serializer struct {
	logger   zerolog.Logger
	uploader *Uploader
}

// NewSerializer builds a serializer backed by the given uploader.
func NewSerializer(logger zerolog.Logger, uploader *Uploader) *Serializer {
	return &Serializer{
		logger:   logger.With().Str("component", "serializer").Logger(),
		uploader: uploader,
	}
}

// Serialize flattens the timeline. Every asset reference is normalized to
// its canonical string form; audio that exists only as in-memory bytes is
// uploaded first and its entry carries the stored location instead.
func (s *Serializer) Serialize(ctx context.Context, tl *timeline.Timeline) ([]ClipEntry, error) {
	placed := tl.Flatten()
	entries := make([]ClipEntry, 0, len(placed))
	for _, p := range placed {
		entry, err := s.entryFor(ctx, p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	s.logger.Info().Int("clips", len(entries)).Msg("timeline serialized")
	return entries, nil
}

func (s *Serializer) entryFor(ctx context.Context, p timeline.Placed) (ClipEntry, error) {
	c := p.Clip
	entry := ClipEntry{
		Start:      c.Start,
		Layer:      p.LayerIndex,
		Index:      p.ClipIndex,
		Background: p.Background,
	}
	if c.DurationKnown {
		d := c.Duration
		entry.Duration = &d
	}

	switch c.Kind {
	case timeline.KindImage:
		entry.Kind = "image"
		entry.Src = c.Asset.Normalize()
		entry.Transform = &TransformEntry{
			CX:       c.Transform.CX,
			CY:       c.Transform.CY,
			W:        c.Transform.W,
			H:        c.Transform.H,
			Rotation: c.Transform.Rotation,
		}
		if c.HasCrop() {
			entry.Crop = &CropEntry{X: c.Crop.X, Y: c.Crop.Y, W: c.Crop.W, H: c.Crop.H}
		}
	case timeline.KindAudio:
		entry.Kind = "audio"
		src, err := s.resolveAudio(ctx, c)
		if err != nil {
			return ClipEntry{}, err
		}
		entry.Src = src
	default:
		return ClipEntry{}, fmt.Errorf("clip %s has unknown kind %q", c.ID, c.Kind)
	}

	if entry.Src == "" {
		return ClipEntry{}, fmt.Errorf("clip %s has no asset reference", c.ID)
	}
	return entry, nil
}

// resolveAudio turns an audio asset into a location reference. URL and
// stored-path references pass through untouched; inline bytes are pushed
// to the asset store.
func (s *Serializer) resolveAudio(ctx context.Context, c *timeline.Clip) (string, error) {
	if c.Asset.Kind() != timeline.AssetInlineBytes {
		return c.Asset.Normalize(), nil
	}
	if s.uploader == nil {
		return "", fmt.Errorf("clip %s holds inline audio but no upload service is configured", c.ID)
	}
	data, mime := c.Asset.Inline()
	name := c.ID + extensionFor(mime)
	loc, err := s.uploader.Upload(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("resolving inline audio for clip %s: %w", c.ID, err)
	}
	return loc, nil
}

func extensionFor(mime string) string {
	switch mime {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	default:
		return ".bin"
	}
}
