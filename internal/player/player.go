// Package player keeps narration audio aligned to the visual playhead.
// The scheduler owns at most one playback handle at a time and chains
// clip-to-clip playback while the transport is running.
package player

import (
	"context"
	"time"

	"github.com/minawa/panelreel/internal/timeline"
)

// Handle is one live audio playback instance bound to a single clip.
type Handle interface {
	Play()
	Pause()
	// Seek positions playback at an offset into the clip's asset.
	Seek(offset time.Duration) error
	Close() error
}

// Factory acquires playback handles. Acquisition may block on fetch and
// decode, so the scheduler always calls it off the UI path.
type Factory interface {
	Acquire(ctx context.Context, clip timeline.Clip) (Handle, error)
}

func seconds(v float64) time.Duration {
	if v < 0 {
		v = 0
	}
	return time.Duration(v * float64(time.Second))
}
