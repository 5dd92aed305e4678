// Package gui hosts the desktop editor window: composited preview,
// transport controls, layer and clip actions, autosave status, and the
// export flow.
package gui

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/minawa/panelreel/internal/assets"
	"github.com/minawa/panelreel/internal/compositor"
	"github.com/minawa/panelreel/internal/config"
	"github.com/minawa/panelreel/internal/editor"
	"github.com/minawa/panelreel/internal/export"
	"github.com/minawa/panelreel/internal/persist"
	"github.com/minawa/panelreel/internal/player"
	"github.com/minawa/panelreel/pkg/util"
)

const frameInterval = 33 * time.Millisecond

// Deps carries everything the editor window needs. Store may be nil when
// no persistence service is configured; autosave then writes the local
// project file only.
type Deps struct {
	Logger      zerolog.Logger
	Config      *config.Config
	ProjectID   string
	ProjectPath string

	Session    *editor.Session
	Compositor *compositor.Compositor
	Scheduler  *player.Scheduler
	Bitmaps    *assets.BitmapCache

	Store      *persist.Store
	Serializer *export.Serializer
	Render     *export.Client
}

// RunGUI opens the editor window and blocks until it closes.
func RunGUI(deps Deps) {
	logger := deps.Logger.With().Str("component", "gui").Logger()
	sess := deps.Session
	cfg := deps.Config

	myApp := app.NewWithID("panelreel")
	w := myApp.NewWindow("panelreel editor")

	statusLabel := widget.NewLabel("")
	saver := newAutosaver(deps, statusLabel)
	defer saver.Close()
	sess.SetOnChange(saver.Touch)

	exporter := export.NewExporter(logger, deps.Serializer, deps.Render, saver)

	prev := newPreview(sess, deps.Compositor, deps.Bitmaps, 960)
	timestampLabel := widget.NewLabel("0:00.0")
	slider := widget.NewSlider(0, maxTime(sess))
	slider.Step = cfg.Timeline.SnapGranularity

	strip := newTimelineStrip(sess, 960, func() {
		slider.Max = maxTime(sess)
		prev.redraw(context.Background())
	})

	seek := func(val float64) {
		wasRunning := sess.Running()
		deps.Scheduler.Stop()
		sess.SetPlayhead(val)
		timestampLabel.SetText(util.FormatTimestamp(sess.Playhead()))
		if wasRunning {
			deps.Scheduler.Play(context.Background(), sess.Playhead())
		}
		prev.redraw(context.Background())
	}
	slider.OnChanged = seek

	playButton := widget.NewButton("Play", nil)
	playButton.OnTapped = func() {
		if sess.Running() {
			deps.Scheduler.Stop()
			sess.SetRunning(false)
			playButton.SetText("Play")
			return
		}
		sess.SetRunning(true)
		deps.Scheduler.Play(context.Background(), sess.Playhead())
		playButton.SetText("Pause")
	}

	cropCheck := widget.NewCheck("Crop mode", func(on bool) {
		if on {
			sess.SetMode(editor.ModeCrop)
		} else {
			sess.SetMode(editor.ModeTransform)
		}
	})

	layerSelect := widget.NewSelect(layerNames(sess), nil)
	layerSelect.SetSelectedIndex(0)

	addLayerButton := widget.NewButton("Add Layer", func() {
		name := fmt.Sprintf("Layer %d", sess.Timeline().LayerCount())
		sess.Timeline().AddLayer(name)
		layerSelect.Options = layerNames(sess)
		layerSelect.SetSelectedIndex(len(layerSelect.Options) - 1)
		saver.Touch()
	})

	addPanelButton := widget.NewButton("Add Panel", func() {
		fd := dialog.NewFileOpen(func(ur fyne.URIReadCloser, err error) {
			if ur == nil || err != nil {
				return
			}
			path := ur.URI().Path()
			ur.Close()
			_, err = sess.AddImageClip(layerSelect.SelectedIndex(), util.RefForPath(path), sess.Playhead(), cfg.Timeline.ImageDuration)
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			slider.Max = maxTime(sess)
			prev.redraw(context.Background())
		}, w)
		fd.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".gif", ".webp"}))
		fd.Show()
	})

	addNarrationButton := widget.NewButton("Add Narration", func() {
		fd := dialog.NewFileOpen(func(ur fyne.URIReadCloser, err error) {
			if ur == nil || err != nil {
				return
			}
			path := ur.URI().Path()
			ur.Close()
			_, err = sess.AddAudioClip(layerSelect.SelectedIndex(), util.RefForPath(path), sess.Playhead())
			if err != nil {
				dialog.ShowError(err, w)
			}
		}, w)
		fd.SetFilter(storage.NewExtensionFileFilter([]string{".mp3", ".wav", ".ogg"}))
		fd.Show()
	})

	removeButton := widget.NewButton("Remove Clip", func() {
		sel, ok := sess.Selected()
		if !ok {
			return
		}
		if err := sess.RemoveClip(sel.LayerIndex, sel.ClipIndex); err != nil {
			dialog.ShowError(err, w)
			return
		}
		slider.Max = maxTime(sess)
		prev.redraw(context.Background())
	})

	exportButton := widget.NewButton("Export", func() {
		runExport(w, deps, exporter, statusLabel)
	})

	w.SetContent(container.NewVBox(
		prev,
		slider,
		strip,
		container.NewHBox(playButton, timestampLabel, cropCheck),
		container.NewHBox(layerSelect, addLayerButton, addPanelButton, addNarrationButton, removeButton),
		container.NewHBox(exportButton, statusLabel),
	))

	stop := make(chan struct{})
	go frameLoop(sess, deps.Scheduler, prev, strip, slider, timestampLabel, playButton, stop)

	w.SetOnClosed(func() {
		close(stop)
		deps.Scheduler.Stop()
		if err := saver.Flush(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("final save failed")
		}
		if err := writeProjectThumbnail(deps); err != nil {
			logger.Warn().Err(err).Msg("thumbnail write failed")
		}
	})

	deps.Compositor.Prefetch(context.Background())
	prev.redraw(context.Background())
	w.ShowAndRun()
}

// frameLoop drives playback: it advances the playhead at the display
// cadence and mirrors it into the transport widgets.
func frameLoop(sess *editor.Session, sched *player.Scheduler, prev *preview, strip *timelineStrip, slider *widget.Slider, ts *widget.Label, playButton *widget.Button, stop <-chan struct{}) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		fyne.Do(func() {
			if sess.Running() {
				if !sess.Advance(frameInterval.Seconds()) {
					// Reached the end; the session paused itself.
					sched.Stop()
					playButton.SetText("Play")
				}
				slider.Max = maxTime(sess)
				slider.Value = sess.Playhead()
				slider.Refresh()
				ts.SetText(util.FormatTimestamp(sess.Playhead()))
			}
			prev.redraw(context.Background())
			strip.redraw()
		})
	}
}

// newAutosaver builds the debounced writer: the persistence service when
// configured, always the local project file.
func newAutosaver(deps Deps, status *widget.Label) *persist.Autosaver {
	flush := func(ctx context.Context) error {
		snap := persist.Snapshot(deps.ProjectID, deps.Session.Timeline())
		if deps.ProjectPath != "" {
			if err := persist.SaveFile(deps.ProjectPath, snap); err != nil {
				return err
			}
		}
		if deps.Store != nil {
			return deps.Store.Save(ctx, snap)
		}
		return nil
	}
	onStatus := func(err error) {
		fyne.Do(func() {
			if err != nil {
				status.SetText("save failed, retrying")
			} else {
				status.SetText("saved " + time.Now().Format("15:04:05"))
			}
		})
	}
	debounce := time.Duration(deps.Config.Autosave.DebounceSeconds * float64(time.Second))
	saver := persist.NewAutosaver(deps.Logger, debounce, flush, onStatus)
	if !deps.Config.Autosave.Enabled {
		saver.Disable()
	}
	return saver
}

func runExport(w fyne.Window, deps Deps, exporter *export.Exporter, status *widget.Label) {
	status.SetText("exporting")
	go func() {
		res := export.Resolution{Width: deps.Config.Surface.Width, Height: deps.Config.Surface.Height}
		result, err := exporter.Export(context.Background(), deps.ProjectID, deps.Session.Timeline(), res)
		if err == nil && result.URL != "" {
			result.Video, err = deps.Render.Download(context.Background(), result.URL)
		}
		fyne.Do(func() {
			if err != nil {
				status.SetText("export failed")
				dialog.ShowError(err, w)
				return
			}
			status.SetText("export complete")
			saveRenderedVideo(w, result.Video)
		})
	}()
}

func saveRenderedVideo(w fyne.Window, video []byte) {
	fd := dialog.NewFileSave(func(uw fyne.URIWriteCloser, err error) {
		if uw == nil || err != nil {
			return
		}
		defer uw.Close()
		if _, err := uw.Write(video); err != nil {
			dialog.ShowError(err, w)
		}
	}, w)
	fd.SetFileName(fmt.Sprintf("render_%d.mp4", time.Now().Unix()))
	fd.Show()
}

// writeProjectThumbnail composites the first frame, scales it down and
// stores it next to the project file for the project picker.
func writeProjectThumbnail(deps Deps) error {
	if deps.ProjectPath == "" {
		return nil
	}
	frame := deps.Compositor.Frame(context.Background(), 0)
	thumb := assets.Thumbnail(frame, 320, 180)

	out, err := os.Create(deps.ProjectPath + ".thumb.png")
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, thumb)
}

func layerNames(sess *editor.Session) []string {
	tl := sess.Timeline()
	names := make([]string, 0, tl.LayerCount())
	for i := 0; i < tl.LayerCount(); i++ {
		l, err := tl.Layer(i)
		if err != nil {
			continue
		}
		names = append(names, l.Name)
	}
	return names
}

func maxTime(sess *editor.Session) float64 {
	total := sess.Timeline().TotalDuration()
	if total <= 0 {
		total = 1
	}
	return total
}
