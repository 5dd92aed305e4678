package timeline

import (
	"github.com/google/uuid"
)

// ClipKind distinguishes what a clip renders as.
type ClipKind string

const (
	KindImage ClipKind = "image"
	KindAudio ClipKind = "audio"
)

// Transform is an image clip's destination rectangle on the compositing
// surface: center position, size and rotation, all in surface pixels.
type Transform struct {
	CX       float64 `json:"cx"`
	CY       float64 `json:"cy"`
	W        float64 `json:"w"`
	H        float64 `json:"h"`
	Rotation float64 `json:"rotation"` // radians, about the center
}

// Crop selects the sub-region of the decoded bitmap to draw. Coordinates
// are in the source bitmap's native pixel space, independent of the
// surface resolution.
type Crop struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// FullSurface returns the default transform covering the whole surface.
func FullSurface(width, height int) Transform {
	return Transform{
		CX: float64(width) / 2,
		CY: float64(height) / 2,
		W:  float64(width),
		H:  float64(height),
	}
}

// Clip is a single placed media reference on a layer.
type Clip struct {
	ID    string
	Kind  ClipKind
	Asset AssetRef

	// Start is seconds from timeline origin, never negative.
	Start float64
	// Duration in seconds. For audio clips it stays zero with
	// DurationKnown false until the asset's natural length has been
	// probed; it is fixed thereafter.
	Duration      float64
	DurationKnown bool

	// Image-only state.
	Transform Transform
	Crop      Crop
}

// NewImageClip creates an image clip with the default full-surface
// transform. The crop starts empty and is initialized from the bitmap's
// native size on first decode.
func NewImageClip(asset AssetRef, duration float64, surfaceW, surfaceH int) *Clip {
	return &Clip{
		ID:            uuid.NewString(),
		Kind:          KindImage,
		Asset:         asset,
		Duration:      duration,
		DurationKnown: true,
		Transform:     FullSurface(surfaceW, surfaceH),
	}
}

// NewAudioClip creates an audio clip whose duration is unknown until the
// asset has been decoded.
func NewAudioClip(asset AssetRef) *Clip {
	return &Clip{
		ID:    uuid.NewString(),
		Kind:  KindAudio,
		Asset: asset,
	}
}

// End returns the clip's nominal end time.
func (c *Clip) End() float64 { return c.Start + c.Duration }

// Contains reports whether the clip's span covers the given time. A clip
// with unknown duration never contains a time.
func (c *Clip) Contains(t float64) bool {
	if !c.DurationKnown {
		return false
	}
	return c.Start <= t && t < c.End()
}

// HasCrop reports whether the crop rectangle has been initialized.
func (c *Clip) HasCrop() bool { return c.Crop.W > 0 && c.Crop.H > 0 }

func (c *Clip) clone() *Clip {
	dup := *c
	return &dup
}
