package timeline

import (
	"fmt"
	"sort"
)

// InsertAt places a clip on a layer at the snapped desired time and returns
// the clip's final in-layer index. If the drop point falls inside an
// existing clip's span, the new clip lands before or after that clip
// depending on which half of the span the point is in. Overlap is resolved
// by shifting later clips forward; existing clips are never shrunk or
// deleted.
func (t *Timeline) InsertAt(layerID string, c *Clip, desired float64) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, _, err := t.layerByID(layerID)
	if err != nil {
		return -1, err
	}

	at := t.Snap(desired)

	// Image durations live on the snap grid like start times do. Audio
	// keeps its probed natural length.
	if c.Kind == KindImage {
		c.Duration = t.Snap(c.Duration)
		if c.Duration < t.snap {
			c.Duration = t.snap
		}
	}

	idx := insertionIndex(l, at)

	l.Clips = append(l.Clips, nil)
	copy(l.Clips[idx+1:], l.Clips[idx:])
	l.Clips[idx] = c

	// The clip may not start earlier than the end of its predecessor.
	c.Start = at
	if idx > 0 {
		if prevEnd := l.Clips[idx-1].End(); c.Start < prevEnd {
			c.Start = t.Snap(prevEnd)
			if c.Start < prevEnd {
				c.Start = prevEnd
			}
		}
	}

	// Forward-shift in index order: the insertion index carries the user's
	// placement intent, so the overlapped clip is pushed behind the drop
	// rather than re-sorted in front of it.
	shiftForward(l)
	return indexOf(l, c), nil
}

// Remove detaches and returns the clip at the given in-layer index.
func (t *Timeline) Remove(layerID string, clipIdx int) (*Clip, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remove(layerID, clipIdx)
}

func (t *Timeline) remove(layerID string, clipIdx int) (*Clip, error) {
	l, _, err := t.layerByID(layerID)
	if err != nil {
		return nil, err
	}
	if clipIdx < 0 || clipIdx >= len(l.Clips) {
		return nil, fmt.Errorf("clip index %d out of range on layer %q", clipIdx, layerID)
	}

	c := l.Clips[clipIdx]
	l.Clips = append(l.Clips[:clipIdx], l.Clips[clipIdx+1:]...)
	return c, nil
}

// MoveTo repositions a clip at a new start time. The clip is detached and
// re-inserted so a drag gets the same overlap-repair guarantees as initial
// placement, wherever the clip lands relative to its old neighbors.
func (t *Timeline) MoveTo(layerID string, clipIdx int, newStart float64) (int, error) {
	t.mu.Lock()
	c, err := t.remove(layerID, clipIdx)
	t.mu.Unlock()
	if err != nil {
		return -1, err
	}
	return t.InsertAt(layerID, c, newStart)
}

// ResizeTo trims a clip to a new duration, then shifts later clips forward
// as needed. The duration never drops below one snap step.
func (t *Timeline) ResizeTo(layerID string, clipIdx int, newDuration float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, _, err := t.layerByID(layerID)
	if err != nil {
		return err
	}
	if clipIdx < 0 || clipIdx >= len(l.Clips) {
		return fmt.Errorf("clip index %d out of range on layer %q", clipIdx, layerID)
	}

	d := t.Snap(newDuration)
	if d < t.snap {
		d = t.snap
	}

	c := l.Clips[clipIdx]
	c.Duration = d
	c.DurationKnown = true

	fixOverlaps(l)
	return nil
}

// FixOverlaps re-establishes the no-overlap invariant on one layer. It is
// the repair-everything fallback; every mutation already runs it.
func (t *Timeline) FixOverlaps(layerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, _, err := t.layerByID(layerID)
	if err != nil {
		return err
	}
	fixOverlaps(l)
	return nil
}

// fixOverlaps sorts clips by start time, then shifts forward. Durations
// are never reduced, so user work is rescheduled rather than destroyed.
func fixOverlaps(l *Layer) {
	sort.SliceStable(l.Clips, func(i, j int) bool {
		return l.Clips[i].Start < l.Clips[j].Start
	})
	shiftForward(l)
}

// shiftForward walks clips in index order pushing every clip that begins
// before the running cursor up to the cursor.
func shiftForward(l *Layer) {
	cursor := 0.0
	for _, c := range l.Clips {
		if c.Start < cursor {
			c.Start = cursor
		}
		cursor = c.End()
	}
}

// insertionIndex picks where a drop at time `at` lands: strictly before a
// clip, strictly after, or, inside a clip's span, on the side of its
// midpoint the point falls on.
func insertionIndex(l *Layer, at float64) int {
	for i, c := range l.Clips {
		if at < c.Start {
			return i
		}
		if c.Contains(at) {
			mid := c.Start + c.Duration/2
			if at < mid {
				return i
			}
			return i + 1
		}
	}
	return len(l.Clips)
}

func indexOf(l *Layer, c *Clip) int {
	for i, cc := range l.Clips {
		if cc == c {
			return i
		}
	}
	return -1
}
