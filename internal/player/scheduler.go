package player

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/minawa/panelreel/internal/timeline"
)

type schedState int

const (
	stateIdle schedState = iota
	stateScheduled
)

// Scheduler is a two-state machine (Idle / Scheduled) that binds one
// playback handle to the audio clip under or after the playhead. Pausing
// or seeking tears the handle down and cancels pending chaining; a
// generation counter invalidates every callback armed before the teardown.
type Scheduler struct {
	logger  zerolog.Logger
	tl      *timeline.Timeline
	factory Factory

	mu     sync.Mutex
	gen    int
	state  schedState
	handle Handle
	clipID string
	timer  *time.Timer
}

// NewScheduler creates an idle scheduler bound to the timeline.
func NewScheduler(logger zerolog.Logger, tl *timeline.Timeline, factory Factory) *Scheduler {
	return &Scheduler{
		logger:  logger.With().Str("component", "scheduler").Logger(),
		tl:      tl,
		factory: factory,
	}
}

// Play finds the audio clip active at the playhead, or the next upcoming
// one, and starts (or schedules) it. Any previous handle is fully torn
// down first.
func (s *Scheduler) Play(ctx context.Context, playhead float64) {
	s.mu.Lock()
	s.teardownLocked()
	gen := s.gen
	s.mu.Unlock()

	s.scheduleFrom(ctx, playhead, gen)
}

// Stop immediately discards the current handle and cancels all pending
// chaining. Used for both pause and seek; resuming after a seek re-runs
// the current-or-next lookup via Play.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.teardownLocked()
	s.mu.Unlock()
}

// Playing reports the clip bound to the Scheduled state, if any.
func (s *Scheduler) Playing() (clipID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clipID, s.state == stateScheduled
}

func (s *Scheduler) scheduleFrom(ctx context.Context, playhead float64, gen int) {
	p, ok := s.tl.AudioCurrentOrNext(playhead)
	if !ok {
		s.logger.Debug().Float64("playhead", playhead).Msg("no audio clip to schedule")
		return
	}

	clip := *p.Clip
	go s.acquireAndStart(ctx, clip, playhead, gen)
}

// acquireAndStart runs off the UI path: acquisition may block on fetch and
// decode. The generation check discards the handle if a pause or seek
// happened while we were acquiring.
func (s *Scheduler) acquireAndStart(ctx context.Context, clip timeline.Clip, playhead float64, gen int) {
	h, err := s.factory.Acquire(ctx, clip)
	if err != nil {
		s.logger.Warn().Err(err).Str("clip", clip.ID).Msg("audio handle acquisition failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		go closeHandle(h)
		return
	}

	if playhead > clip.Start {
		if err := h.Seek(seconds(playhead - clip.Start)); err != nil {
			s.logger.Warn().Err(err).Str("clip", clip.ID).Msg("audio seek failed")
			go closeHandle(h)
			return
		}
		s.startLocked(ctx, clip, playhead, gen, h)
		return
	}

	if playhead < clip.Start {
		// Upcoming clip: hold the handle and start when the playhead
		// reaches it.
		s.state = stateScheduled
		s.handle = h
		s.clipID = clip.ID
		s.timer = time.AfterFunc(seconds(clip.Start-playhead), func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if gen != s.gen || s.handle != h {
				return
			}
			s.startLocked(ctx, clip, clip.Start, gen, h)
		})
		return
	}

	s.startLocked(ctx, clip, clip.Start, gen, h)
}

// startLocked begins playback and arms the chain timer at the clip's
// nominal end. Clips whose duration is still unprobed play without
// chaining.
func (s *Scheduler) startLocked(ctx context.Context, clip timeline.Clip, from float64, gen int, h Handle) {
	s.state = stateScheduled
	s.handle = h
	s.clipID = clip.ID
	h.Play()

	s.logger.Debug().Str("clip", clip.ID).Float64("from", from).Msg("audio started")

	if !clip.DurationKnown {
		return
	}
	end := clip.End()
	s.timer = time.AfterFunc(seconds(end-from), func() {
		s.onClipEnd(ctx, end, gen)
	})
}

// onClipEnd tears down the finished handle, then applies the
// current-or-next rule from just after the nominal end to chain into the
// following clip.
func (s *Scheduler) onClipEnd(ctx context.Context, end float64, gen int) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	if s.handle != nil {
		s.handle.Pause()
		go closeHandle(s.handle)
		s.handle = nil
	}
	s.state = stateIdle
	s.clipID = ""
	s.mu.Unlock()

	s.scheduleFrom(ctx, end+1e-9, gen)
}

// teardownLocked invalidates every pending callback and discards the
// current handle. The handle is paused before it is released so no
// orphaned sound continues.
func (s *Scheduler) teardownLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.handle != nil {
		s.handle.Pause()
		go closeHandle(s.handle)
		s.handle = nil
	}
	s.state = stateIdle
	s.clipID = ""
}

func closeHandle(h Handle) {
	_ = h.Close()
}
