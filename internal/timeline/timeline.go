package timeline

import (
	"fmt"
	"math"
	"sync"
)

// DefaultSnap is the default snapping granularity in seconds.
const DefaultSnap = 0.1

// Placed annotates a clip with its position in the layer stack. The
// compositor, audio scheduler and export serializer consume this view so
// they need not know about layer structure directly.
type Placed struct {
	Clip       *Clip
	LayerIndex int
	ClipIndex  int
	Background bool
}

// Timeline is the authoritative in-memory model: ordered layers of clips
// plus the snapping granularity every mutation is quantized to.
//
// Mutations are guarded by a mutex because asynchronous decode completions
// (natural audio duration, initial crop bounds) land out-of-band; all other
// mutation happens synchronously inside user-gesture handlers.
type Timeline struct {
	mu     sync.Mutex
	layers []*Layer
	snap   float64

	surfaceW, surfaceH int
}

// New creates a timeline with the non-deletable background layer at index 0.
func New(surfaceW, surfaceH int) *Timeline {
	return &Timeline{
		layers:   []*Layer{newBackgroundLayer()},
		snap:     DefaultSnap,
		surfaceW: surfaceW,
		surfaceH: surfaceH,
	}
}

// SetSnap overrides the snapping granularity. Non-positive values are ignored.
func (t *Timeline) SetSnap(g float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if g > 0 {
		t.snap = g
	}
}

// Snap rounds a time value to the nearest multiple of the granularity.
func (t *Timeline) Snap(v float64) float64 {
	snapped := math.Round(v/t.snap) * t.snap
	if snapped < 0 || snapped == 0 {
		return 0
	}
	return snapped
}

// Surface returns the canonical compositing resolution.
func (t *Timeline) Surface() (w, h int) { return t.surfaceW, t.surfaceH }

// LayerCount returns the number of layers.
func (t *Timeline) LayerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.layers)
}

// Layer returns the layer at the given z index.
func (t *Timeline) Layer(i int) (*Layer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.layers) {
		return nil, fmt.Errorf("layer index %d out of range", i)
	}
	return t.layers[i], nil
}

// LayerByID finds a layer and its z index.
func (t *Timeline) LayerByID(id string) (*Layer, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.layerByID(id)
}

func (t *Timeline) layerByID(id string) (*Layer, int, error) {
	for i, l := range t.layers {
		if l.ID == id {
			return l, i, nil
		}
	}
	return nil, -1, fmt.Errorf("no layer with id %q", id)
}

// AddLayer appends a new layer on top of the stack and returns it.
func (t *Timeline) AddLayer(name string) *Layer {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := NewLayer(name)
	t.layers = append(t.layers, l)
	return l
}

// RemoveLayer deletes a layer. The background layer cannot be removed.
func (t *Timeline) RemoveLayer(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, i, err := t.layerByID(id)
	if err != nil {
		return err
	}
	if i == 0 {
		return fmt.Errorf("background layer cannot be removed")
	}
	t.layers = append(t.layers[:i], t.layers[i+1:]...)
	return nil
}

// Background returns the backdrop layer.
func (t *Timeline) Background() *Layer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.layers[0]
}

// TotalDuration is the maximum clip end time over all layers.
func (t *Timeline) TotalDuration() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0.0
	for _, l := range t.layers {
		if e := l.End(); e > total {
			total = e
		}
	}
	return total
}

// Flatten produces a single sequence ordered by layer, then in-layer index.
// Clips are cloned so callers can read them without racing mutations.
func (t *Timeline) Flatten() []Placed {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Placed
	for li, l := range t.layers {
		for ci, c := range l.Clips {
			out = append(out, Placed{
				Clip:       c.clone(),
				LayerIndex: li,
				ClipIndex:  ci,
				Background: li == 0,
			})
		}
	}
	return out
}

// ClipByID locates a clip anywhere in the stack.
func (t *Timeline) ClipByID(id string) (*Clip, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, l := range t.layers {
		for _, c := range l.Clips {
			if c.ID == id {
				return c, true
			}
		}
	}
	return nil, false
}

// Clip returns a copy of the clip at (layer index, clip index).
func (t *Timeline) Clip(layerIdx, clipIdx int) (Clip, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.clipAt(layerIdx, clipIdx)
	if err != nil {
		return Clip{}, err
	}
	return *c, nil
}

func (t *Timeline) clipAt(layerIdx, clipIdx int) (*Clip, error) {
	if layerIdx < 0 || layerIdx >= len(t.layers) {
		return nil, fmt.Errorf("layer index %d out of range", layerIdx)
	}
	l := t.layers[layerIdx]
	if clipIdx < 0 || clipIdx >= len(l.Clips) {
		return nil, fmt.Errorf("clip index %d out of range on layer %q", clipIdx, l.ID)
	}
	return l.Clips[clipIdx], nil
}

// SetTransform replaces an image clip's destination rectangle.
func (t *Timeline) SetTransform(layerIdx, clipIdx int, tr Transform) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.clipAt(layerIdx, clipIdx)
	if err != nil {
		return err
	}
	if c.Kind != KindImage {
		return fmt.Errorf("clip %s is not an image clip", c.ID)
	}
	c.Transform = tr
	return nil
}

// SetCrop replaces an image clip's source-space crop rectangle.
func (t *Timeline) SetCrop(layerIdx, clipIdx int, cr Crop) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.clipAt(layerIdx, clipIdx)
	if err != nil {
		return err
	}
	if c.Kind != KindImage {
		return fmt.Errorf("clip %s is not an image clip", c.ID)
	}
	c.Crop = cr
	return nil
}

// InitCrop records the bitmap's native bounds as the clip's crop, once.
// Called from decode completions; a crop the user already edited is kept.
func (t *Timeline) InitCrop(clipID string, bitmapW, bitmapH int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, l := range t.layers {
		for _, c := range l.Clips {
			if c.ID == clipID && !c.HasCrop() {
				c.Crop = Crop{W: float64(bitmapW), H: float64(bitmapH)}
				return
			}
		}
	}
}

// SetNaturalDuration fixes an audio clip's probed duration. It applies
// only once; the owning layer is repaired afterwards since the clip's
// span just grew from zero.
func (t *Timeline) SetNaturalDuration(clipID string, d float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, l := range t.layers {
		for _, c := range l.Clips {
			if c.ID != clipID {
				continue
			}
			if c.DurationKnown || d <= 0 {
				return
			}
			c.Duration = d
			c.DurationKnown = true
			fixOverlaps(l)
			return
		}
	}
}
