// Package editor owns the editing session: the shared playhead, the
// running/paused flag, the single-clip selection, and the pointer-driven
// manipulation of clip placement, transform and crop.
package editor

import (
	"github.com/rs/zerolog"

	"github.com/minawa/panelreel/internal/timeline"
)

// Mode selects which overlay the pointer manipulates. The two modes are
// mutually exclusive and only engaged while playback is paused.
type Mode int

const (
	ModeTransform Mode = iota
	ModeCrop
)

// Selection identifies the single selected clip.
type Selection struct {
	LayerIndex int
	ClipIndex  int
}

// Session is the explicit editing state shared by the compositor, the
// audio scheduler and the GUI: one playhead, one running flag, at most one
// selected clip. All methods run on the UI goroutine.
type Session struct {
	logger zerolog.Logger
	tl     *timeline.Timeline

	playhead  float64
	running   bool
	selection *Selection
	mode      Mode

	minSize  float64
	onChange func()

	drag *dragState
}

// NewSession creates a paused session at playhead zero.
func NewSession(logger zerolog.Logger, tl *timeline.Timeline, minHandleSize float64) *Session {
	if minHandleSize <= 0 {
		minHandleSize = 40
	}
	return &Session{
		logger:  logger.With().Str("component", "editor").Logger(),
		tl:      tl,
		minSize: minHandleSize,
	}
}

// Timeline exposes the underlying model.
func (s *Session) Timeline() *timeline.Timeline { return s.tl }

// SetOnChange registers the hook notified after every model mutation;
// the autosaver hangs off this.
func (s *Session) SetOnChange(fn func()) { s.onChange = fn }

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Playhead returns the current time position.
func (s *Session) Playhead() float64 { return s.playhead }

// SetPlayhead seeks, clamped to [0, totalDuration].
func (s *Session) SetPlayhead(t float64) {
	total := s.tl.TotalDuration()
	if t < 0 {
		t = 0
	}
	if t > total {
		t = total
	}
	s.playhead = t
}

// Advance moves the playhead forward while playing. It returns false when
// the end of the timeline is reached, leaving the session paused there.
func (s *Session) Advance(dt float64) bool {
	if !s.running {
		return false
	}
	total := s.tl.TotalDuration()
	s.playhead += dt
	if s.playhead >= total {
		s.playhead = total
		s.running = false
		return false
	}
	return true
}

// Running reports whether playback is active.
func (s *Session) Running() bool { return s.running }

// SetRunning flips the transport. Starting playback leaves edit overlays
// behind: any in-progress drag is dropped.
func (s *Session) SetRunning(running bool) {
	s.running = running
	if running {
		s.drag = nil
	}
}

// Mode returns the current manipulation mode.
func (s *Session) Mode() Mode { return s.mode }

// SetMode toggles crop editing. Ignored while playing.
func (s *Session) SetMode(m Mode) {
	if s.running {
		return
	}
	s.mode = m
}

// Select marks the clip at (layer, index) as the selection.
func (s *Session) Select(layerIdx, clipIdx int) error {
	if _, err := s.tl.Clip(layerIdx, clipIdx); err != nil {
		return err
	}
	s.selection = &Selection{LayerIndex: layerIdx, ClipIndex: clipIdx}
	return nil
}

// ClearSelection drops the selection and leaves crop mode.
func (s *Session) ClearSelection() {
	s.selection = nil
	s.mode = ModeTransform
	s.drag = nil
}

// Selected returns the current selection, if any.
func (s *Session) Selected() (Selection, bool) {
	if s.selection == nil {
		return Selection{}, false
	}
	return *s.selection, true
}

// SelectedClip returns a copy of the selected clip.
func (s *Session) SelectedClip() (timeline.Clip, bool) {
	if s.selection == nil {
		return timeline.Clip{}, false
	}
	c, err := s.tl.Clip(s.selection.LayerIndex, s.selection.ClipIndex)
	if err != nil {
		return timeline.Clip{}, false
	}
	return c, true
}

// AddImageClip places a new image clip on the layer at the given time.
func (s *Session) AddImageClip(layerIdx int, ref timeline.AssetRef, at, duration float64) (*timeline.Clip, error) {
	l, err := s.tl.Layer(layerIdx)
	if err != nil {
		return nil, err
	}
	w, h := s.tl.Surface()
	c := timeline.NewImageClip(ref, duration, w, h)
	if _, err := s.tl.InsertAt(l.ID, c, at); err != nil {
		return nil, err
	}
	s.notify()
	return c, nil
}

// AddAudioClip places a new narration clip; its duration stays unknown
// until the asset has been probed.
func (s *Session) AddAudioClip(layerIdx int, ref timeline.AssetRef, at float64) (*timeline.Clip, error) {
	l, err := s.tl.Layer(layerIdx)
	if err != nil {
		return nil, err
	}
	c := timeline.NewAudioClip(ref)
	if _, err := s.tl.InsertAt(l.ID, c, at); err != nil {
		return nil, err
	}
	s.notify()
	return c, nil
}

// RemoveClip deletes a clip; the selection is cleared if it pointed there.
func (s *Session) RemoveClip(layerIdx, clipIdx int) error {
	l, err := s.tl.Layer(layerIdx)
	if err != nil {
		return err
	}
	if _, err := s.tl.Remove(l.ID, clipIdx); err != nil {
		return err
	}
	if s.selection != nil && s.selection.LayerIndex == layerIdx && s.selection.ClipIndex == clipIdx {
		s.ClearSelection()
	}
	s.notify()
	return nil
}
