package timeline

import "sort"

// AudioCurrentOrNext implements the current-or-next rule: it returns the
// audio clip active at the playhead, or failing that the nearest upcoming
// one by start time. Clips whose duration is still unprobed only match as
// upcoming, since their span is unknown.
func (t *Timeline) AudioCurrentOrNext(playhead float64) (Placed, bool) {
	clips := t.audioByStart()
	for _, p := range clips {
		if p.Clip.Contains(playhead) || p.Clip.Start >= playhead {
			return p, true
		}
	}
	return Placed{}, false
}

// ImagesAt returns the image clips active at the given time in compositing
// order: background first, then ascending layer index.
func (t *Timeline) ImagesAt(playhead float64) []Placed {
	var out []Placed
	for _, p := range t.Flatten() {
		if p.Clip.Kind == KindImage && p.Clip.Contains(playhead) {
			out = append(out, p)
		}
	}
	return out
}

// AudioClips returns every audio clip in the timeline, ordered by start.
func (t *Timeline) AudioClips() []Placed {
	return t.audioByStart()
}

func (t *Timeline) audioByStart() []Placed {
	var out []Placed
	for _, p := range t.Flatten() {
		if p.Clip.Kind == KindAudio {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Clip.Start < out[j].Clip.Start
	})
	return out
}
