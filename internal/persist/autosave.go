package persist

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Autosaver coalesces bursts of edits into one persisted write per
// debounce window. It is suspended for the duration of an export so a
// transient upload-rewritten timeline is never persisted; edits made
// while suspended are flushed after Resume. A failed flush keeps the
// dirty flag set and retries on the next cycle.
type Autosaver struct {
	logger   zerolog.Logger
	debounce time.Duration
	flush    func(context.Context) error
	status   func(error)

	mu        sync.Mutex
	timer     *time.Timer
	dirty     bool
	suspended bool
	disabled  bool
	closed    bool
}

// NewAutosaver wires a debounced writer around the given flush function.
// The status callback receives nil on a successful write and the error
// otherwise; it drives the non-blocking save indicator.
func NewAutosaver(logger zerolog.Logger, debounce time.Duration, flush func(context.Context) error, status func(error)) *Autosaver {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Autosaver{
		logger:   logger.With().Str("component", "autosave").Logger(),
		debounce: debounce,
		flush:    flush,
		status:   status,
	}
}

// Touch marks the project dirty and (re)arms the debounce timer.
func (a *Autosaver) Touch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.dirty = true
	if a.suspended || a.disabled {
		return
	}
	a.armLocked()
}

// Disable turns automatic saving off for the whole session. Unlike Suspend
// it is not cleared by Resume, so an export's suspend/resume bracket cannot
// re-enable a config-disabled autosaver. Manual Flush still writes.
func (a *Autosaver) Disable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disabled = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// Suspend pauses autosaving. Edits keep accumulating in the dirty flag.
func (a *Autosaver) Suspend() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.suspended = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// Resume re-enables autosaving and schedules a flush if edits landed
// while suspended.
func (a *Autosaver) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.suspended = false
	if a.dirty && !a.disabled && !a.closed {
		a.armLocked()
	}
}

// Flush writes immediately if the project is dirty. Used by manual "save
// now" and at shutdown.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if !a.dirty || a.closed {
		a.mu.Unlock()
		return nil
	}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.dirty = false
	a.mu.Unlock()

	err := a.flush(ctx)
	a.report(err)
	if err != nil {
		a.mu.Lock()
		a.dirty = true
		a.mu.Unlock()
	}
	return err
}

// Close stops the autosaver. Pending edits are not flushed.
func (a *Autosaver) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Autosaver) armLocked() {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, a.fire)
}

func (a *Autosaver) fire() {
	a.mu.Lock()
	if a.closed || a.suspended || a.disabled || !a.dirty {
		a.mu.Unlock()
		return
	}
	a.dirty = false
	a.timer = nil
	a.mu.Unlock()

	err := a.flush(context.Background())
	a.report(err)
	if err != nil {
		// Retry on the next cycle rather than failing the session.
		a.mu.Lock()
		if !a.closed {
			a.dirty = true
			if !a.suspended && !a.disabled {
				a.armLocked()
			}
		}
		a.mu.Unlock()
	}
}

func (a *Autosaver) report(err error) {
	if err != nil {
		a.logger.Warn().Err(err).Msg("autosave failed")
	} else {
		a.logger.Debug().Msg("autosave complete")
	}
	if a.status != nil {
		a.status(err)
	}
}
