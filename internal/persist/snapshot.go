// Package persist owns project persistence: the sanitized snapshot sent
// to the persistence service on an autosave cadence, and local project
// files for the CLI.
package persist

import (
	"fmt"

	"github.com/minawa/panelreel/internal/timeline"
)

// ClipSnapshot is the persisted form of one clip. Inline byte payloads
// are stripped: the clip keeps its place on the timeline but its Src is
// empty and Inline is set, so a reload knows the media must be re-added.
type ClipSnapshot struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	Src       string             `json:"src,omitempty"`
	Inline    bool               `json:"inline,omitempty"`
	Start     float64            `json:"start"`
	Duration  *float64           `json:"duration"`
	Transform *timeline.Transform `json:"transform,omitempty"`
	Crop      *timeline.Crop      `json:"crop,omitempty"`
}

// LayerSnapshot is the persisted form of one layer.
type LayerSnapshot struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Clips []ClipSnapshot `json:"clips"`
}

// ProjectSnapshot is the body sent to the persistence service and the
// shape of local project files.
type ProjectSnapshot struct {
	ProjectID string          `json:"projectId"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Layers    []LayerSnapshot `json:"layers"`
}

// Snapshot captures the timeline in its persisted form. The model is read
// through its copying accessors and never mutated.
func Snapshot(projectID string, tl *timeline.Timeline) ProjectSnapshot {
	w, h := tl.Surface()
	snap := ProjectSnapshot{ProjectID: projectID, Width: w, Height: h}

	for i := 0; i < tl.LayerCount(); i++ {
		l, err := tl.Layer(i)
		if err != nil {
			continue
		}
		ls := LayerSnapshot{ID: l.ID, Name: l.Name, Clips: make([]ClipSnapshot, 0, len(l.Clips))}
		for _, c := range l.Clips {
			ls.Clips = append(ls.Clips, snapshotClip(c))
		}
		snap.Layers = append(snap.Layers, ls)
	}
	return snap
}

func snapshotClip(c *timeline.Clip) ClipSnapshot {
	cs := ClipSnapshot{ID: c.ID, Start: c.Start}
	if c.DurationKnown {
		d := c.Duration
		cs.Duration = &d
	}
	switch c.Kind {
	case timeline.KindImage:
		cs.Kind = "image"
		tr := c.Transform
		cs.Transform = &tr
		if c.HasCrop() {
			cr := c.Crop
			cs.Crop = &cr
		}
	case timeline.KindAudio:
		cs.Kind = "audio"
	}
	if c.Asset.Kind() == timeline.AssetInlineBytes {
		cs.Inline = true
	} else {
		cs.Src = c.Asset.Normalize()
	}
	return cs
}

// Restore rebuilds a timeline from a snapshot. Clips that were persisted
// with stripped inline media come back without a playable reference; they
// stay on the timeline for the user to re-link.
func Restore(snap ProjectSnapshot) (*timeline.Timeline, error) {
	tl := timeline.New(snap.Width, snap.Height)

	for li, ls := range snap.Layers {
		var layerID string
		if li == 0 {
			if ls.ID != timeline.BackgroundLayerID {
				return nil, fmt.Errorf("snapshot layer 0 is %q, want the background layer", ls.ID)
			}
			layerID = timeline.BackgroundLayerID
		} else {
			layerID = tl.AddLayer(ls.Name).ID
		}

		for ci, cs := range ls.Clips {
			if err := restoreClip(tl, layerID, li, ci, cs); err != nil {
				return nil, fmt.Errorf("layer %d clip %d: %w", li, ci, err)
			}
		}
	}
	return tl, nil
}

func restoreClip(tl *timeline.Timeline, layerID string, layerIdx, clipIdx int, cs ClipSnapshot) error {
	ref := timeline.ParseRef(cs.Src)
	w, h := tl.Surface()

	switch cs.Kind {
	case "image":
		dur := 0.0
		if cs.Duration != nil {
			dur = *cs.Duration
		}
		c := timeline.NewImageClip(ref, dur, w, h)
		if _, err := tl.InsertAt(layerID, c, cs.Start); err != nil {
			return err
		}
		if cs.Transform != nil {
			if err := tl.SetTransform(layerIdx, clipIdx, *cs.Transform); err != nil {
				return err
			}
		}
		if cs.Crop != nil {
			if err := tl.SetCrop(layerIdx, clipIdx, *cs.Crop); err != nil {
				return err
			}
		}
	case "audio":
		c := timeline.NewAudioClip(ref)
		if _, err := tl.InsertAt(layerID, c, cs.Start); err != nil {
			return err
		}
		if cs.Duration != nil {
			tl.SetNaturalDuration(c.ID, *cs.Duration)
		}
	default:
		return fmt.Errorf("unknown clip kind %q", cs.Kind)
	}
	return nil
}
