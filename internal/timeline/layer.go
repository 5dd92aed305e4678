package timeline

import (
	"github.com/google/uuid"
)

// BackgroundLayerID identifies the always-first backdrop layer.
const BackgroundLayerID = "background"

// Layer is an ordered, independently composited track of clips. Layer
// array order IS compositing order: later layers draw over earlier ones.
type Layer struct {
	ID    string
	Name  string
	Clips []*Clip
}

// NewLayer creates an empty named layer.
func NewLayer(name string) *Layer {
	return &Layer{ID: uuid.NewString(), Name: name}
}

func newBackgroundLayer() *Layer {
	return &Layer{ID: BackgroundLayerID, Name: "Background"}
}

// IsBackground reports whether this is the backdrop layer.
func (l *Layer) IsBackground() bool { return l.ID == BackgroundLayerID }

// ClipAt returns the clip whose span covers t, if any.
func (l *Layer) ClipAt(t float64) (*Clip, int, bool) {
	for i, c := range l.Clips {
		if c.Contains(t) {
			return c, i, true
		}
	}
	return nil, -1, false
}

// End returns the end time of the layer's last clip.
func (l *Layer) End() float64 {
	end := 0.0
	for _, c := range l.Clips {
		if e := c.End(); e > end {
			end = e
		}
	}
	return end
}

func (l *Layer) clone() *Layer {
	dup := &Layer{ID: l.ID, Name: l.Name, Clips: make([]*Clip, len(l.Clips))}
	for i, c := range l.Clips {
		dup.Clips[i] = c.clone()
	}
	return dup
}
